package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/strrl/aurora-cli/pkg/models"
)

// Team lists members and seat usage
func (c *Client) Team(ctx context.Context) (models.MemberList, error) {
	var list models.MemberList
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/team/"}, &list)
	return list, err
}

// Invite sends an invitation. A full organization is reported as 429.
func (c *Client) Invite(ctx context.Context, email string, role models.Role) error {
	if !role.Invitable() {
		return fmt.Errorf("cannot invite with role %q, use admin or member", role)
	}
	return c.postJSON(ctx, "/team/invites", map[string]string{
		"email": email,
		"role":  string(role),
	}, nil)
}

// AcceptInvite joins an organization with an invite token and returns
// the new member's tokens
func (c *Client) AcceptInvite(ctx context.Context, token, password string) (models.TokenPair, error) {
	return c.postTokens(ctx, "/team/invites/accept", map[string]string{
		"token":    token,
		"password": password,
	})
}

// UpdateMemberRole changes a member's role
func (c *Client) UpdateMemberRole(ctx context.Context, memberID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	path := "/team/members/" + url.PathEscape(memberID) + "/role"
	return c.sendJSON(ctx, http.MethodPatch, path, map[string]string{"role": string(role)}, nil)
}

// RemoveMember removes a member from the organization
func (c *Client) RemoveMember(ctx context.Context, memberID string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/team/members/" + url.PathEscape(memberID)}, nil)
}
