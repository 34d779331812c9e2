package api

import (
	"context"
	"net/http"

	"github.com/strrl/aurora-cli/pkg/models"
)

// Me returns the identity behind the stored access token
func (c *Client) Me(ctx context.Context) (models.Me, error) {
	var me models.Me
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/auth/me"}, &me)
	return me, err
}

// Login exchanges credentials for a token pair. The pair is not stored here.
func (c *Client) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	return c.postTokens(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates an organization with its owner and returns the owner's tokens
func (c *Client) Register(ctx context.Context, orgName, email, password string) (models.TokenPair, error) {
	return c.postTokens(ctx, "/auth/register", map[string]string{
		"org_name": orgName,
		"email":    email,
		"password": password,
	})
}

// RequestPasswordReset asks the backend to mail a reset token
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/auth/password/reset", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password using a mailed reset token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return c.postJSON(ctx, "/auth/password/reset/confirm", map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, nil)
}

func (c *Client) postTokens(ctx context.Context, path string, payload interface{}) (models.TokenPair, error) {
	var pair models.TokenPair
	if err := c.postJSON(ctx, path, payload, &pair); err != nil {
		return pair, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return pair, ErrRefreshRejected
	}
	return pair, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	req, err := NewJSONRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.DoJSON(ctx, req, out)
}
