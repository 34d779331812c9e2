package api

import (
	"context"
	"net/http"

	"github.com/strrl/aurora-cli/pkg/models"
)

// Usage returns the current period's consumption against the plan limits
func (c *Client) Usage(ctx context.Context) (models.UsageMetrics, error) {
	var resp struct {
		Usage models.UsageMetrics `json:"usage"`
	}
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/usage/"}, &resp)
	return resp.Usage, err
}
