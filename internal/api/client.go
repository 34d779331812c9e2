// Package api is the client for the Aurora Workspace backend.
//
// Every call goes through one pipeline that attaches the stored access
// token and, on a 401, refreshes the token pair once and replays the
// request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/strrl/aurora-cli/internal/credentials"
	"github.com/strrl/aurora-cli/internal/logger"
	"github.com/strrl/aurora-cli/pkg/models"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultUserAgent = "aurora-cli"
	DefaultTimeout   = 30 * time.Second

	refreshPath = "/auth/refresh"
)

// ErrRefreshRejected is returned when a token endpoint answers
// without a usable token pair
var ErrRefreshRejected = errors.New("refresh returned an incomplete token pair")

// Options configures a Client
type Options struct {
	BaseURL string

	// HTTPClient is used for ordinary calls. When nil a client with
	// Timeout is created.
	HTTPClient *http.Client

	// StreamClient is used for the chat stream and has no overall timeout
	// by default; cancel through the request context instead.
	StreamClient *http.Client

	Credentials credentials.Store

	// OnAuthExpired is called once a refresh has failed and the stored
	// tokens were cleared.
	OnAuthExpired func()

	UserAgent string
	Timeout   time.Duration
}

// Client talks to the backend
type Client struct {
	baseURL       string
	http          *http.Client
	stream        *http.Client
	creds         credentials.Store
	onAuthExpired func()
	userAgent     string

	refreshGroup singleflight.Group
}

// New creates a Client
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", opts.BaseURL)
	}
	if opts.Credentials == nil {
		return nil, errors.New("api client requires a credentials store")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	sc := opts.StreamClient
	if sc == nil {
		sc = &http.Client{Transport: hc.Transport}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		http:          hc,
		stream:        sc,
		creds:         opts.Credentials,
		onAuthExpired: opts.OnAuthExpired,
		userAgent:     ua,
	}, nil
}

// SetAuthExpiredHook replaces the hook called after a failed refresh.
// It is meant for wiring at startup, before any request is in flight.
func (c *Client) SetAuthExpiredHook(fn func()) {
	c.onAuthExpired = fn
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one backend call. It is never mutated by the client,
// so the same value can be sent again after a refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// NewJSONRequest encodes payload as the request body
func NewJSONRequest(method, path string, payload interface{}) (Request, error) {
	req := Request{Method: method, Path: path}
	if payload == nil {
		return req, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
	}
	req.Body = body
	req.ContentType = "application/json"
	return req, nil
}

// attempt is the per-send state of one logical call
type attempt struct {
	retried bool
	token   string // access token sent with this attempt
}

// Do sends req and returns the response of a successful call. The caller
// closes the body. Error statuses are returned as *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	return c.do(ctx, c.http, req)
}

// DoJSON sends req and decodes a successful response into out (may be nil)
func (c *Client) DoJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.do(ctx, c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &TransportError{Op: "decode", URL: c.baseURL + req.Path, Err: err}
	}
	return nil
}

// Stream sends req on the stream client and returns the open body
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	resp, err := c.do(ctx, c.stream, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, req Request) (*http.Response, error) {
	at := attempt{token: c.accessToken()}
	for {
		resp, err := c.send(ctx, hc, req, at.token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		apiErr := newAPIError(req, resp)
		if apiErr.Status != http.StatusUnauthorized || at.retried {
			return nil, apiErr
		}

		next, ok := c.recoverAuth(ctx, at)
		if !ok {
			return nil, apiErr
		}
		at = next
	}
}

// recoverAuth decides how a 401 is retried. The returned attempt is
// always marked retried.
func (c *Client) recoverAuth(ctx context.Context, at attempt) (attempt, bool) {
	pair, err := c.creds.Load()
	if err != nil {
		logger.LogWarn("failed to load credentials", "err", err)
		return at, false
	}
	if pair.RefreshToken == "" {
		return at, false
	}

	next := attempt{retried: true}

	// Another call already rotated the pair while this one was in flight
	if pair.AccessToken != "" && pair.AccessToken != at.token {
		logger.LogDebug("access token rotated concurrently, retrying")
		next.token = pair.AccessToken
		return next, true
	}

	v, err, shared := c.refreshGroup.Do(pair.RefreshToken, func() (interface{}, error) {
		// A flight for this refresh token may have finished between Load and Do
		if cur, err := c.creds.Load(); err == nil && cur.Complete() && cur.RefreshToken != pair.RefreshToken {
			return models.TokenPair{AccessToken: cur.AccessToken, RefreshToken: cur.RefreshToken}, nil
		}
		// A cancelled caller must not log everyone out
		return c.refresh(context.WithoutCancel(ctx), pair.RefreshToken)
	})
	if err != nil {
		return at, false
	}
	logger.LogDebug("token refreshed", "shared", shared)
	next.token = v.(models.TokenPair).AccessToken
	return next, true
}

// refresh exchanges the refresh token for a new pair. It sends directly
// and never goes through the 401 handling.
func (c *Client) refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	pair, err := c.requestRefresh(ctx, refreshToken)
	if err == nil {
		err = c.creds.Save(credentials.Pair{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	}
	if err != nil {
		logger.LogInfo("session expired", "err", err)
		if clearErr := c.creds.Clear(); clearErr != nil {
			logger.LogError("failed to clear credentials", "err", clearErr)
		}
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return models.TokenPair{}, err
	}
	return pair, nil
}

func (c *Client) requestRefresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair
	req, err := NewJSONRequest(http.MethodPost, refreshPath, map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return pair, err
	}

	resp, err := c.send(ctx, c.http, req, "")
	if err != nil {
		return pair, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return pair, newAPIError(req, resp)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return pair, &TransportError{Op: "decode", URL: c.baseURL + refreshPath, Err: err}
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return pair, ErrRefreshRejected
	}
	return pair, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, req Request, token string) (*http.Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &TransportError{Op: "send", URL: target, Err: err}
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := hc.Do(httpReq)
	if err != nil {
		logger.LogDebug("request failed", "method", req.Method, "path", req.Path, "request_id", requestID, "err", err)
		return nil, &TransportError{Op: "send", URL: target, Err: err}
	}
	logger.LogDebug("request", "method", req.Method, "path", req.Path, "status", resp.StatusCode,
		"request_id", requestID, "elapsed", time.Since(start))
	return resp, nil
}

func (c *Client) accessToken() string {
	pair, err := c.creds.Load()
	if err != nil {
		logger.LogWarn("failed to load credentials", "err", err)
		return ""
	}
	return pair.AccessToken
}
