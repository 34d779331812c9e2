package api

import (
	"context"
	"net/http"
)

// UpdateOrganization renames the organization
func (c *Client) UpdateOrganization(ctx context.Context, name string) error {
	return c.sendJSON(ctx, http.MethodPatch, "/settings/org", map[string]string{"name": name}, nil)
}

// DeleteOrganization deletes the organization and all of its data
func (c *Client) DeleteOrganization(ctx context.Context) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/settings/org"}, nil)
}

// ChangePassword updates the current user's password
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.postJSON(ctx, "/settings/profile/password", map[string]string{
		"current_password": current,
		"new_password":     next,
	}, nil)
}
