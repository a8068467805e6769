package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopfront/client-go/pkg/config"
	pkgerrors "github.com/shopfront/client-go/pkg/errors"
	"github.com/shopfront/client-go/pkg/logger"
	"github.com/shopfront/client-go/pkg/metrics"
)

// RefreshPath is the one endpoint whose authorization failures never trigger
// another refresh.
const RefreshPath = "token/refresh/"

// CredentialSource is the session surface the gateway needs: read the current
// pair, install a refreshed access token, and force the logged-out state when
// refresh fails. *session.Store satisfies it.
type CredentialSource interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(ctx context.Context, token string) error
	ForceLogout(ctx context.Context) error
}

// Request describes one backend call.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Operation string
}

// Response carries the raw status and body of a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client issues authenticated requests against the storefront backend. Every
// request carries the current access credential as a bearer token; a single
// authorization failure is transparently healed by one refresh plus one
// replay, never more.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   CredentialSource
	log     *logger.Logger
	metrics *metrics.RequestMetrics

	// Serializes refresh attempts so concurrently failing requests reuse the
	// first fresh token instead of invalidating each other's credentials.
	refreshMu sync.Mutex
}

// New builds the gateway client.
func New(cfg config.APIConfig, creds CredentialSource, log *logger.Logger, m *metrics.RequestMetrics) (*Client, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential source required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute, got %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		creds:   creds,
		log:     log,
		metrics: m,
	}, nil
}

// Do executes the request and maps failures to domain errors. On a 401 it
// refreshes the access credential once and replays the original request once;
// any further authorization failure forces logout and surfaces to the caller.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()
	resp, err := c.do(ctx, req, c.creds.AccessToken(), false)
	c.observe(req.Operation, started, err)
	return resp, err
}

// DoJSON executes the request and decodes a successful response body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding backend response")
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request, token string, retried bool) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, err, "backend unreachable")
	}
	body, readErr := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if readErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetwork, readErr, "reading backend response")
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
	}

	authFailure := httpResp.StatusCode == http.StatusUnauthorized
	if authFailure && !retried && req.Path != RefreshPath {
		return c.refreshAndReplay(ctx, req, token, body)
	}
	if authFailure && retried && req.Path != RefreshPath {
		// The replayed request was rejected with the fresh credential; the
		// session is not salvageable client-side.
		if logoutErr := c.creds.ForceLogout(ctx); logoutErr != nil && c.log != nil {
			c.log.Error(ctx, "forcing logout after retried auth failure", logoutErr)
		}
	}

	return nil, errorFromResponse(httpResp.StatusCode, body)
}

// refreshAndReplay performs the single refresh-then-retry cycle for origErr,
// the body of the original 401 response.
func (c *Client) refreshAndReplay(ctx context.Context, req Request, usedToken string, origBody []byte) (*Response, error) {
	c.refreshMu.Lock()

	// Another request's refresh may have already replaced the credential
	// while this one was in flight. Reuse it rather than invalidating it.
	current := c.creds.AccessToken()
	if current != "" && current != usedToken {
		c.refreshMu.Unlock()
		if c.log != nil {
			c.log.Debug(ctx, "retrying with credential refreshed by a concurrent request")
		}
		return c.do(ctx, req, current, true)
	}

	fresh, err := c.refresh(ctx)
	if err != nil {
		c.refreshMu.Unlock()
		c.metrics.IncRefresh("failed")
		if c.log != nil {
			c.log.Warn(ctx, "credential refresh failed, forcing logout")
		}
		if logoutErr := c.creds.ForceLogout(ctx); logoutErr != nil && c.log != nil {
			c.log.Error(ctx, "forcing logout after refresh failure", logoutErr)
		}
		// The caller sees the original authorization failure; the refresh
		// error rides along as the cause.
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, authMessage(origBody))
	}

	if err := c.creds.SetAccessToken(ctx, fresh); err != nil {
		c.refreshMu.Unlock()
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing refreshed credential")
	}
	c.refreshMu.Unlock()
	c.metrics.IncRefresh("ok")

	return c.do(ctx, req, fresh, true)
}

// refresh exchanges the refresh credential for a new access credential.
func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken := c.creds.RefreshToken()
	if refreshToken == "" {
		return "", ErrMissingRefreshCredential
	}

	resp, err := c.do(ctx, Request{
		Method:    http.MethodPost,
		Path:      RefreshPath,
		Body:      map[string]string{"refresh": refreshToken},
		Operation: "refresh",
	}, "", true)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNetwork) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshRejected, err)
	}

	var payload struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Access == "" {
		return "", ErrRefreshRejected
	}
	return payload.Access, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid request path")
	}
	target := c.baseURL.ResolveReference(ref)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		body = bytes.NewReader(encoded)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func (c *Client) observe(operation string, started time.Time, err error) {
	c.metrics.ObserveDuration(operation, time.Since(started))
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if typed := pkgerrors.As(err); typed != nil {
			outcome = strings.ToLower(string(typed.Code()))
		}
	}
	c.metrics.IncRequest(operation, outcome)
}
