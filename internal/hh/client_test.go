package hh

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// memStore is an in-memory CredentialStore for tests.
type memStore struct {
	creds Credentials
	saves int
}

func (m *memStore) LoadCredentials() (Credentials, error)   { return m.creds, nil }
func (m *memStore) SaveCredentials(c Credentials) error     { m.creds = c; m.saves++; return nil }

func newTestClient(serverURL string, st CredentialStore) *Client {
	return New(Config{
		APIURL:       serverURL,
		OAuthURL:     serverURL + "/oauth",
		ClientID:     "cid",
		ClientSecret: "csecret",
		Delay:        time.Millisecond,
		Store:        st,
	})
}

func TestRequestURLJoin(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)

	tests := []struct {
		base, endpoint string
	}{
		{server.URL + "/api/", "/me"},
		{server.URL + "/api", "me"},
		{server.URL + "/api/", "me"},
		{server.URL + "/api", "/me"},
	}
	for _, tt := range tests {
		if _, err := c.Request(context.Background(), http.MethodGet, tt.base, tt.endpoint, nil, false); err != nil {
			t.Fatalf("Request(%q, %q): %v", tt.base, tt.endpoint, err)
		}
		if gotPath != "/api/me" {
			t.Errorf("join(%q, %q) path = %q, want /api/me", tt.base, tt.endpoint, gotPath)
		}
	}

	if _, err := c.Request(context.Background(), http.MethodGet, server.URL, "/me", map[string]string{"page": "2", "per_page": "100"}, false); err != nil {
		t.Fatalf("Request with params: %v", err)
	}
	if gotQuery != "page=2&per_page=100" {
		t.Errorf("query = %q, want page=2&per_page=100", gotQuery)
	}
}

func TestRequestFormBody(t *testing.T) {
	var gotContentType, gotValue, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotQuery = r.URL.RawQuery
		r.ParseForm()
		gotValue = r.PostFormValue("vacancy_id")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	_, err := c.Request(context.Background(), http.MethodPost, server.URL, "/negotiations",
		map[string]string{"vacancy_id": "42"}, false)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("content type = %q", gotContentType)
	}
	if gotValue != "42" {
		t.Errorf("form vacancy_id = %q, want 42", gotValue)
	}
	if gotQuery != "" {
		t.Errorf("POST put params in the query: %q", gotQuery)
	}
}

func TestRequestInvalidMethod(t *testing.T) {
	c := newTestClient("http://unused", nil)
	if _, err := c.Request(context.Background(), "PATCH", "http://unused", "/x", nil, false); err == nil {
		t.Error("expected error for unsupported method")
	}
}

func TestRequestEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	res, err := c.Request(context.Background(), http.MethodGet, server.URL, "/x", nil, false)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(res) != 0 {
		t.Errorf("empty body should yield empty map, got %v", res)
	}
}

func TestRequestDoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirected" {
			t.Error("redirect was followed")
		}
		http.Redirect(w, r, "/redirected", http.StatusFound)
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	_, err := c.Request(context.Background(), http.MethodGet, server.URL, "/x", nil, false)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Kind != KindUnexpected || apiErr.StatusCode != http.StatusFound {
		t.Errorf("redirect classified as %v (status %d), want unexpected 302", apiErr.Kind, apiErr.StatusCode)
	}
}

func TestRequestFreshIdentityPerRequest(t *testing.T) {
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	for i := 0; i < 3; i++ {
		if _, err := c.Request(context.Background(), http.MethodGet, server.URL, "/x", nil, false); err != nil {
			t.Fatalf("Request: %v", err)
		}
	}
	for _, ua := range agents {
		if !userAgentRe.MatchString(ua) {
			t.Errorf("user agent %q has unexpected shape", ua)
		}
	}
	if agents[0] == agents[1] && agents[1] == agents[2] {
		t.Error("identity was cached across requests")
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(Config{
		APIURL: server.URL,
		Delay:  50 * time.Millisecond,
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Request(context.Background(), http.MethodGet, server.URL, "/x", nil, false); err != nil {
			t.Fatalf("Request: %v", err)
		}
	}
	// First grant is immediate, the next two wait 50ms each.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("three requests completed in %v, want >= ~100ms spacing", elapsed)
	}
}

func TestAuthenticateInstallsAndPersistsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		r.ParseForm()
		if r.PostFormValue("grant_type") != "authorization_code" || r.PostFormValue("code") != "abc" {
			t.Errorf("unexpected token request: %v", r.PostForm)
		}
		w.Write([]byte(`{"access_token": "at1", "refresh_token": "rt1", "expires_in": 3600}`))
	}))
	defer server.Close()

	st := &memStore{}
	c := newTestClient(server.URL, st)

	if c.IsAuthenticated() {
		t.Error("fresh client should not be authenticated")
	}
	if err := c.Authenticate(context.Background(), "abc"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !c.IsAuthenticated() {
		t.Error("client should be authenticated after exchange")
	}
	if c.AccessExpired() {
		t.Error("fresh token should not be expired")
	}
	if st.saves != 1 {
		t.Errorf("credentials persisted %d times, want 1", st.saves)
	}
	if st.creds.AccessToken != "at1" || st.creds.RefreshToken != "rt1" {
		t.Errorf("persisted credentials = %+v", st.creds)
	}
	if st.creds.AccessExpiresAt <= time.Now().UnixMilli() {
		t.Errorf("expiry %d not in the future", st.creds.AccessExpiresAt)
	}
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	c := newTestClient("http://unused", &memStore{})
	if err := c.Refresh(context.Background()); err == nil {
		t.Error("expected state error without refresh token")
	}
}

func TestAPIRefreshesOnceOnExpiredForbidden(t *testing.T) {
	var tokenCalls, meCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			tokenCalls++
			r.ParseForm()
			if r.PostFormValue("grant_type") != "refresh_token" || r.PostFormValue("refresh_token") != "rt-old" {
				t.Errorf("unexpected refresh request: %v", r.PostForm)
			}
			w.Write([]byte(`{"access_token": "at-new", "refresh_token": "rt-new", "expires_in": 3600}`))
		case "/me":
			meCalls++
			if r.Header.Get("Authorization") == "Bearer at-new" {
				w.Write([]byte(`{"first_name": "A"}`))
				return
			}
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"description": "token expired"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	st := &memStore{creds: Credentials{AccessToken: "at-old", RefreshToken: "rt-old", AccessExpiresAt: 1}}
	c := newTestClient(server.URL, st)

	res, err := c.API(context.Background(), http.MethodGet, "/me", nil)
	if err != nil {
		t.Fatalf("API: %v", err)
	}
	if res["first_name"] != "A" {
		t.Errorf("result = %v", res)
	}
	if tokenCalls != 1 {
		t.Errorf("token exchanges = %d, want 1", tokenCalls)
	}
	if meCalls != 2 {
		t.Errorf("/me calls = %d, want 2", meCalls)
	}
	if st.creds.AccessToken != "at-new" {
		t.Errorf("new token not persisted: %+v", st.creds)
	}
}

func TestAPIRefreshesAtMostOnce(t *testing.T) {
	var tokenCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			tokenCalls++
			w.Write([]byte(`{"access_token": "at-new", "refresh_token": "rt-new", "expires_in": 3600}`))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	st := &memStore{creds: Credentials{AccessToken: "at-old", RefreshToken: "rt-old", AccessExpiresAt: 1}}
	c := newTestClient(server.URL, st)

	_, err := c.API(context.Background(), http.MethodGet, "/me", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindForbidden {
		t.Fatalf("expected Forbidden after retry, got %v", err)
	}
	if tokenCalls != 1 {
		t.Errorf("token exchanges = %d, want exactly 1", tokenCalls)
	}
}

func TestAPIDoesNotRefreshWithValidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			t.Error("refresh attempted with unexpired token")
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	future := time.Now().Add(time.Hour).UnixMilli()
	st := &memStore{creds: Credentials{AccessToken: "at", RefreshToken: "rt", AccessExpiresAt: future}}
	c := newTestClient(server.URL, st)

	_, err := c.API(context.Background(), http.MethodGet, "/me", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindForbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestAPILimitExceededClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors": [{"value": "limit_exceeded"}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	_, err := c.API(context.Background(), http.MethodPost, "/negotiations", map[string]string{"vacancy_id": "1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindLimitExceeded {
		t.Fatalf("expected LimitExceeded, got %v", err)
	}
}

func TestAuthorizeURL(t *testing.T) {
	c := newTestClient("https://example.test", nil)

	u, err := c.AuthorizeURL("hhandroid://oauthresponse", "", "")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	for _, want := range []string{
		"/oauth/authorize?",
		"client_id=cid",
		"client_secret=csecret",
		"response_type=code",
		"redirect_uri=hhandroid%3A%2F%2Foauthresponse",
	} {
		if !strings.Contains(u, want) {
			t.Errorf("authorize url %q missing %q", u, want)
		}
	}
	if strings.Contains(u, "state=") || strings.Contains(u, "scope=") {
		t.Errorf("empty optional params must be omitted: %q", u)
	}

	u, err = c.AuthorizeURL("", "s1", "resumes")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	if !strings.Contains(u, "state=s1") || !strings.Contains(u, "scope=resumes") {
		t.Errorf("optional params missing: %q", u)
	}
	if strings.Contains(u, "redirect_uri=") {
		t.Errorf("empty redirect_uri must be omitted: %q", u)
	}
}
