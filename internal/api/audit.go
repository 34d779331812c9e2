package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/strrl/aurora-cli/pkg/models"
)

const (
	DefaultAuditPageSize = 20
	MaxAuditPageSize     = 100
)

// AuditFilter narrows an audit log query. Zero fields are not sent.
type AuditFilter struct {
	Action   string
	UserID   string
	Start    time.Time
	End      time.Time
	Page     int
	PageSize int
}

func (f AuditFilter) query() url.Values {
	q := url.Values{}
	if f.Action != "" {
		q.Set("action", f.Action)
	}
	if f.UserID != "" {
		q.Set("user_id", f.UserID)
	}
	if !f.Start.IsZero() {
		q.Set("start", f.Start.UTC().Format(time.RFC3339))
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.UTC().Format(time.RFC3339))
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	switch {
	case size <= 0:
		size = DefaultAuditPageSize
	case size > MaxAuditPageSize:
		size = MaxAuditPageSize
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(size))
	return q
}

// AuditLog returns one page of the organization's audit log (Pro and Enterprise only)
func (c *Client) AuditLog(ctx context.Context, filter AuditFilter) (models.AuditLogPage, error) {
	var page models.AuditLogPage
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/audit-log/", Query: filter.query()}, &page)
	return page, err
}
