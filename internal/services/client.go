package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/time/rate"
)

// TokenSource hands out a fresh access token, refreshing it when needed.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// SessionRevoker clears the session if accessToken is still the current token.
type SessionRevoker interface {
	ClearToken(accessToken string) bool
}

// ErrorKind classifies an [APIError].
type ErrorKind int

const (
	KindUpstream ErrorKind = iota
	KindUnauthorized
	KindRateLimited
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate limited"
	case KindNetwork:
		return "network"
	default:
		return "upstream"
	}
}

// APIError is a failed call to the resource API.
type APIError struct {
	Kind       ErrorKind
	Status     int
	StatusText string
	Message    string        // error.message from the response body, if present
	RetryAfter time.Duration // set for [KindRateLimited] when the server sent Retry-After
	Err        error         // transport error for [KindNetwork]
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("spotify API network error: %v", e.Err)
	case KindRateLimited:
		if e.RetryAfter > 0 {
			return fmt.Sprintf("spotify API rate limited, retry after %s", e.RetryAfter)
		}
		return "spotify API rate limited"
	}

	msg := fmt.Sprintf("spotify API %s: %d %s", e.Kind, e.Status, e.StatusText)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	switch e.Kind {
	case KindUnauthorized:
		return target == shared.ErrUnauthorized
	case KindRateLimited:
		return target == shared.ErrRateLimited
	case KindNetwork:
		return target == shared.ErrNetwork
	default:
		return target == shared.ErrUpstream
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// RetryDelay is how long the caller should wait before calling again; 0 means no hint.
func (e *APIError) RetryDelay() time.Duration { return e.RetryAfter }

// CallOptions describes a single API call.
type CallOptions struct {
	Method string     // defaults to GET
	Query  url.Values // appended to the path
	Body   any        // JSON encoded when non-nil
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
}

// Empty reports whether the response carried no content (204, or a 2xx with an empty body).
func (r *Response) Empty() bool {
	return r.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(r.Body)) == 0
}

// Decode unmarshals the body into v. Decoding an empty response is a no-op.
func (r *Response) Decode(v any) error {
	if r.Empty() {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ClientOpts configures a [Client].
type ClientOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Limiter    *rate.Limiter
	Revoker    SessionRevoker
	Logger     *log.Logger
	Now        func() time.Time
}

// Client executes authenticated calls against the resource API.
//
// Failures are never retried here; 429 responses carry the server's retry hint for the caller.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	revoker    SessionRevoker
	logger     *log.Logger
	now        func() time.Time
}

// NewClient creates a [Client] that authenticates with tokens.
func NewClient(tokens TokenSource, opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.spotify.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tokens:     tokens,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		revoker:    opts.Revoker,
		logger:     opts.Logger.With("component", "api"),
		now:        opts.Now,
	}
}

// NewLimiter builds the client-side limiter from the HTTP config; nil when rate limiting is off.
func NewLimiter(cfg shared.HTTPConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// Call performs an authenticated request to path, relative to the API base URL.
//
// Token errors are returned unchanged, as are context errors from waiting on the limiter.
// HTTP and transport failures are returned as [*APIError].
func (c *Client) Call(ctx context.Context, path string, opts CallOptions) (*Response, error) {
	// The token is read after the limiter wait so it cannot go stale while queued.
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, path, opts, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", req.Method, "path", path, "error", err)
		return nil, &APIError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.logger.Debug("request", "method", req.Method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	case resp.StatusCode == http.StatusUnauthorized:
		if c.revoker != nil && c.revoker.ClearToken(token) {
			c.logger.Warn("access token rejected, session cleared")
		}
		return nil, c.statusError(KindUnauthorized, resp, body)
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr := c.statusError(KindRateLimited, resp, body)
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
		c.logger.Warn("rate limited", "path", path, "retry_after", apiErr.RetryAfter)
		return nil, apiErr
	default:
		return nil, c.statusError(KindUpstream, resp, body)
	}
}

func (c *Client) newRequest(ctx context.Context, path string, opts CallOptions, token string) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if len(opts.Query) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		target += sep + opts.Query.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) statusError(kind ErrorKind, resp *http.Response, body []byte) *APIError {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	return &APIError{
		Kind:       kind,
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Message:    payload.Error.Message,
	}
}

// parseRetryAfter reads a Retry-After header given either as seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, shared.ErrNoSession) ||
		errors.Is(err, shared.ErrUnauthorized) ||
		errors.Is(err, shared.ErrRefreshFailed)
}
