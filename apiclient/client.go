// Package apiclient is the HTTP transport to the restaurant REST backend.
// It attaches the bearer token to outgoing requests and runs the refresh
// protocol when the backend answers 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"github.com/yeremiapane/restaurant-floor/utils"
)

const (
	DefaultRefreshBackoff     = 2 * time.Second
	DefaultMaxRefreshAttempts = 3

	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
	LoginPath   = "/auth/token"
	SignupPath  = "/signup"
	WebhookPath = "/payments/webhook"
)

// exemptPaths never receive the bearer header and never trigger refresh.
var exemptPaths = []string{LoginPath, LogoutPath, RefreshPath, SignupPath, WebhookPath}

// IsExempt reports whether path belongs to the public allow-list.
func IsExempt(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	for _, p := range exemptPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Session is what the transport needs from the session manager.
type Session interface {
	Token() string
	UpdateToken(token string)
	ForceLogout(ctx context.Context)
}

type Options struct {
	BaseURL            string
	HTTPClient         *http.Client
	RefreshBackoff     time.Duration
	MaxRefreshAttempts int
	CoalesceRefresh    bool
	Clock              Clock
}

type Client struct {
	baseURL     string
	http        *http.Client
	backoff     time.Duration
	maxAttempts int
	coalesce    bool
	clock       Clock
	group       singleflight.Group

	mu      sync.RWMutex
	session Session
}

// New builds a client. When no HTTP client is given, one with a cookie jar
// is created so the refresh cookie set at login rides along on refresh.
func New(opts Options, sess Session) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			utils.ErrorLogger.Printf("Cookie jar unavailable: %v", err)
		}
		httpClient = &http.Client{Jar: jar}
	}
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        httpClient,
		backoff:     opts.RefreshBackoff,
		maxAttempts: opts.MaxRefreshAttempts,
		coalesce:    opts.CoalesceRefresh,
		clock:       opts.Clock,
		session:     sess,
	}
	if c.backoff <= 0 {
		c.backoff = DefaultRefreshBackoff
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxRefreshAttempts
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	return c
}

// BindSession attaches the session after construction.
func (c *Client) BindSession(sess Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
}

func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends a request and decodes the {result, message} envelope into out.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	var env struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Message: GenericErrorMessage, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &APIError{Message: GenericErrorMessage, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}

// DoRaw is Do for public endpoints that answer with the bare payload.
func (c *Client) DoRaw(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.call(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Message: GenericErrorMessage, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	status, raw, err := c.execute(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Message: extractMessage(raw)}
	}
	return raw, nil
}

// execute runs one logical request through the interceptor pipeline. A 401
// on a non-exempt path waits, refreshes and replays as a new send; after
// maxAttempts refreshes, or on any refresh failure, the session is forced
// out.
func (c *Client) execute(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	exempt := IsExempt(path)
	retries := 0

	for {
		status, raw, err := c.send(ctx, method, path, payload, exempt)
		if err != nil {
			return 0, nil, &APIError{Message: GenericErrorMessage, Err: err}
		}

		sess := c.currentSession()
		if status != http.StatusUnauthorized || exempt || sess == nil {
			return status, raw, nil
		}

		if retries >= c.maxAttempts {
			utils.ErrorLogger.Printf("%s %s still unauthorized after %d refreshes", method, path, retries)
			sess.ForceLogout(ctx)
			return status, raw, ErrSessionExpired
		}
		retries++

		if err := c.clock.Sleep(ctx, c.backoff); err != nil {
			return 0, nil, &APIError{Message: GenericErrorMessage, Err: err}
		}

		token, err := c.Refresh(ctx)
		if err != nil {
			utils.ErrorLogger.Printf("Token refresh failed (attempt %d): %v", retries, err)
			sess.ForceLogout(ctx)
			return 0, nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		sess.UpdateToken(token)
		utils.InfoLogger.Debugf("Token refreshed, replaying %s %s (attempt %d)", method, path, retries)
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, exempt bool) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(utils.RequestIDHeader, utils.NewRequestID())

	if !exempt {
		if sess := c.currentSession(); sess != nil {
			if token := sess.Token(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	utils.InfoLogger.Debugf("%s %s | %3d | %v", method, path, resp.StatusCode, time.Since(start))
	return resp.StatusCode, raw, nil
}

// Refresh asks the backend for a new access token. The request carries the
// refresh cookie from the jar and no bearer header.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if !c.coalesce {
		return c.refresh(ctx)
	}
	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	status, raw, err := c.send(ctx, http.MethodPost, RefreshPath, nil, true)
	if err != nil {
		return "", &APIError{Message: GenericErrorMessage, Err: err}
	}
	if status < 200 || status >= 300 {
		return "", &APIError{Status: status, Message: extractMessage(raw)}
	}

	var env struct {
		Result struct {
			AccessToken string `json:"accessToken"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode refresh response: %w", err)
	}
	if env.Result.AccessToken == "" {
		return "", fmt.Errorf("refresh response carried no access token")
	}
	return env.Result.AccessToken, nil
}

// QueryPath appends query parameters to path.
func QueryPath(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
