// Package hh implements an authenticated, rate-limited client for the
// hh.ru REST API: OAuth2 token lifecycle, typed error classification
// and a per-request synthetic client identity.
package hh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultAPIURL is the hh.ru mobile/partner API base.
	DefaultAPIURL = "https://api.hh.ru"
	// DefaultOAuthURL is the hh.ru OAuth provider base.
	DefaultOAuthURL = "https://hh.ru/oauth"

	// DefaultDelay is the minimum spacing between any two outbound
	// requests from this process.
	DefaultDelay = 300 * time.Millisecond

	maxBodyBytes = 2 << 20
)

// Credentials holds the OAuth token pair and the access-token expiry
// as epoch milliseconds. A zero AccessExpiresAt means the client has
// never authenticated.
type Credentials struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt int64
}

// CredentialStore persists Credentials across process restarts.
type CredentialStore interface {
	LoadCredentials() (Credentials, error)
	SaveCredentials(Credentials) error
}

// Config carries everything a Client needs, injected from main.
type Config struct {
	APIURL       string
	OAuthURL     string
	ClientID     string
	ClientSecret string
	Delay        time.Duration // min spacing between requests; 0 = DefaultDelay
	Store        CredentialStore
	HTTPClient   *http.Client // optional; redirects are disabled either way
}

// Client is the API transport. It owns the Credentials and the
// process-wide rate limiter; construct one and pass it around.
type Client struct {
	apiURL       string
	oauthURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	limiter      *rate.Limiter
	store        CredentialStore

	mu    sync.Mutex
	creds Credentials

	now func() time.Time
}

// New builds a Client and loads previously persisted Credentials, if a
// store is configured.
func New(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = DefaultOAuthURL
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	// The platform uses redirects as part of its flows; they are
	// returned to the caller for classification, never followed.
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	c := &Client{
		apiURL:       cfg.APIURL,
		oauthURL:     cfg.OAuthURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   hc,
		limiter:      rate.NewLimiter(rate.Every(cfg.Delay), 1),
		store:        cfg.Store,
		now:          time.Now,
	}
	if cfg.Store != nil {
		creds, err := cfg.Store.LoadCredentials()
		if err != nil {
			slog.Warn("hh: loading credentials failed", slog.Any("error", err))
		} else {
			c.creds = creds
		}
	}
	return c
}

// IsAuthenticated reports whether an access token is present.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.AccessToken != ""
}

// AccessExpired reports whether the access token has passed its expiry.
func (c *Client) AccessExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().UnixMilli() >= c.creds.AccessExpiresAt
}

func (c *Client) hasRefreshToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.RefreshToken != ""
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.AccessToken
}

// API performs an authenticated call against the API base. On a
// Forbidden classification with an expired access token and a refresh
// token at hand it refreshes once and retries the original request
// once; a failure of the retried call propagates unchanged. This is
// the only automatic retry at the transport layer.
func (c *Client) API(ctx context.Context, method, endpoint string, params map[string]string) (map[string]any, error) {
	res, err := c.Request(ctx, method, c.apiURL, endpoint, params, true)
	if err == nil {
		return res, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindForbidden && c.AccessExpired() && c.hasRefreshToken() {
		if rerr := c.Refresh(ctx); rerr != nil {
			return nil, rerr
		}
		return c.Request(ctx, method, c.apiURL, endpoint, params, true)
	}
	return nil, err
}

// Request executes a single API call: rate-limited, carrying a fresh
// synthetic identity, params query-encoded for GET/DELETE and
// form-encoded for POST/PUT. A non-empty response body is parsed as
// JSON; non-2xx responses are classified on the parsed body.
func (c *Client) Request(ctx context.Context, method, baseURL, endpoint string, params map[string]string, includeAuth bool) (map[string]any, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("hh: invalid method %q", method)
	}
	hasBody := method == http.MethodPost || method == http.MethodPut

	var queryParams map[string]string
	if !hasBody {
		queryParams = params
	}
	u, err := buildURL(baseURL, endpoint, queryParams)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if hasBody {
		body = strings.NewReader(encodeForm(params))
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("hh: build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent())
	if hasBody {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if includeAuth {
		if tok := c.accessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hh: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	slog.Debug("hh: response",
		slog.Int("status", resp.StatusCode),
		slog.String("method", method),
		slog.String("endpoint", endpoint),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("hh: read body: %w", err)
	}

	parsed := map[string]any{}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		if jerr := json.Unmarshal([]byte(trimmed), &parsed); jerr != nil {
			// Error pages are not always JSON; classification then
			// falls back to the status code alone.
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil, fmt.Errorf("hh: parse response: %w", jerr)
			}
			parsed = map[string]any{}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(resp.StatusCode, parsed)
	}
	return parsed, nil
}

// handleToken installs an accepted token response and persists it.
func (c *Client) handleToken(token map[string]any) {
	access, _ := token["access_token"].(string)
	refresh, _ := token["refresh_token"].(string)
	var expiresIn int64
	if n, ok := token["expires_in"].(float64); ok {
		expiresIn = int64(n)
	}

	c.mu.Lock()
	c.creds = Credentials{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: c.now().UnixMilli() + expiresIn*1000,
	}
	creds := c.creds
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveCredentials(creds); err != nil {
			slog.Warn("hh: persisting credentials failed", slog.Any("error", err))
		}
	}
}

// buildURL joins base path and endpoint with exactly one slash and
// appends query-encoded params.
func buildURL(baseURL, endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("hh: parse base url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if params != nil {
		u.RawQuery = encodeForm(params)
	}
	return u.String(), nil
}

func encodeForm(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}
