package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is a non-success HTTP response from the backend
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string // server-provided message, may be empty
	Code   string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error: %s %s returned %d: %s", e.Method, e.Path, e.Status, e.Detail)
	}
	return fmt.Sprintf("api error: %s %s returned %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// TransportError is a failure to reach the backend or to read its response
type TransportError struct {
	Op  string // "send", "read", "decode"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 response, e.g. a plan-gated feature
func IsForbidden(err error) bool {
	return StatusOf(err) == http.StatusForbidden
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsQuotaLimit reports whether err is a 429 plan limit response
func IsQuotaLimit(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}

// Detail returns the server's message for err, or fallback when there is none
func Detail(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

const maxErrorBody = 64 << 10

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code"`
}

// newAPIError reads and closes resp.Body
func newAPIError(req Request, resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{Method: req.Method, Path: req.Path, Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Detail = parseDetail(body.Detail)
	return apiErr
}

// parseDetail accepts a plain string, a validation error list
// ([{"msg": ...}]) or an object carrying a message.
func parseDetail(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			if item.Msg != "" {
				return item.Msg
			}
		}
		return ""
	}

	var obj struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Detail != "" {
			return obj.Detail
		}
		return obj.Message
	}
	return ""
}
