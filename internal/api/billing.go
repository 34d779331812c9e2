package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/strrl/aurora-cli/pkg/models"
)

type redirect struct {
	URL string `json:"url"`
}

// CheckoutSession returns the payment page URL for upgrading to plan
func (c *Client) CheckoutSession(ctx context.Context, plan models.Plan) (string, error) {
	if plan == models.PlanFree {
		return "", fmt.Errorf("the free plan does not require checkout")
	}
	var resp redirect
	err := c.postJSON(ctx, "/billing/checkout-session", map[string]string{"plan": string(plan)}, &resp)
	return resp.URL, err
}

// BillingPortal returns the subscription management URL
func (c *Client) BillingPortal(ctx context.Context) (string, error) {
	var resp redirect
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/billing/portal"}, &resp)
	return resp.URL, err
}
