package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/strrl/aurora-cli/pkg/models"
)

// Documents lists the organization's documents
func (c *Client) Documents(ctx context.Context) ([]models.Document, error) {
	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: "/documents/"}, &resp)
	return resp.Documents, err
}

// UploadDocument sends a file for indexing. Indexing continues in the
// background; poll DocumentStatus for progress.
func (c *Client) UploadDocument(ctx context.Context, filename string, content io.Reader) (models.DocumentStatus, error) {
	var status models.DocumentStatus

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return status, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return status, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return status, fmt.Errorf("failed to build upload: %w", err)
	}

	req := Request{
		Method:      http.MethodPost,
		Path:        "/documents/upload",
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	}
	err = c.DoJSON(ctx, req, &status)
	return status, err
}

// DocumentStatus returns the indexing state of one document
func (c *Client) DocumentStatus(ctx context.Context, id string) (models.DocumentStatus, error) {
	var status models.DocumentStatus
	path := "/documents/" + url.PathEscape(id) + "/status"
	err := c.DoJSON(ctx, Request{Method: http.MethodGet, Path: path}, &status)
	return status, err
}

// DeleteDocument removes a document and its chunks
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.DoJSON(ctx, Request{Method: http.MethodDelete, Path: "/documents/" + url.PathEscape(id)}, nil)
}
