package hh

import (
	"context"
	"errors"
	"net/http"
)

// RedirectScheme is the custom URI scheme the provider redirects to
// after the user approves access in the embedded web view. Any URI
// with this scheme carries the authorization code.
const RedirectScheme = "hhandroid"

// AuthorizeURL builds the provider's authorization endpoint URL.
// Optional parameters are included only when non-empty.
func (c *Client) AuthorizeURL(redirectURI, state, scope string) (string, error) {
	params := map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"response_type": "code",
	}
	for k, v := range map[string]string{
		"redirect_uri": redirectURI,
		"state":        state,
		"scope":        scope,
	} {
		if v != "" {
			params[k] = v
		}
	}
	return buildURL(c.oauthURL, "/authorize", params)
}

// Authenticate exchanges an authorization code for a token pair and
// installs it.
func (c *Client) Authenticate(ctx context.Context, code string) error {
	token, err := c.Request(ctx, http.MethodPost, c.oauthURL, "/token", map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
	}, false)
	if err != nil {
		return err
	}
	c.handleToken(token)
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	refresh := c.creds.RefreshToken
	c.mu.Unlock()
	if refresh == "" {
		return errors.New("hh: no refresh token")
	}

	token, err := c.Request(ctx, http.MethodPost, c.oauthURL, "/token", map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "refresh_token",
		"refresh_token": refresh,
	}, false)
	if err != nil {
		return err
	}
	c.handleToken(token)
	return nil
}
