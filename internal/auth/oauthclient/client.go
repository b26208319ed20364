package oauthclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"social-login/internal/auth"

	"golang.org/x/oauth2"
)

const maxTokenResponseSize = 1 << 20

// TokenResponse is the parsed token endpoint payload. It is never persisted.
type TokenResponse map[string]any

// AccessToken returns the access_token entry, or "" when absent.
func (t TokenResponse) AccessToken() string {
	s, _ := t["access_token"].(string)
	return s
}

// Client builds the authorization redirect and performs the
// authorization-code-for-token exchange for one provider.
type Client struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessTokenMethod string // http.MethodGet or http.MethodPost
	AccessTokenURL    string
	CallbackURL       string
	Scope             []string
	ScopeDelimiter    string
	Headers           http.Header

	// AuthStyle selects where client credentials go on the token request.
	// oauth2.AuthStyleInHeader sends HTTP Basic auth, anything else sends
	// client_id and client_secret alongside the other parameters.
	AuthStyle oauth2.AuthStyle

	// State is added to the redirect when non-empty.
	State string
	// CodeVerifier is added to the exchange when non-empty (PKCE).
	CodeVerifier string

	HTTPClient *http.Client
}

// ScopeParam joins the scopes with the delimiter, each scope once, in
// first-seen order.
func (c *Client) ScopeParam() string {
	delim := c.ScopeDelimiter
	if delim == "" {
		delim = " "
	}

	seen := make(map[string]struct{}, len(c.Scope))
	out := make([]string, 0, len(c.Scope))
	for _, s := range c.Scope {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, delim)
}

// RedirectURL returns authorizeURL with the standard authorization request
// parameters. Keys in extra override the computed ones.
func (c *Client) RedirectURL(authorizeURL string, extra map[string]string) string {
	params := url.Values{}
	params.Set("client_id", c.ConsumerKey)
	params.Set("redirect_uri", c.CallbackURL)
	params.Set("scope", c.ScopeParam())
	params.Set("response_type", "code")
	if c.State != "" {
		params.Set("state", c.State)
	}
	for k, v := range extra {
		params.Set(k, v)
	}

	sep := "?"
	if strings.Contains(authorizeURL, "?") {
		sep = "&"
	}
	return authorizeURL + sep + params.Encode()
}

// ExchangeCode trades an authorization code for the provider's token map.
// It makes exactly one HTTP call and never retries.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenResponse, error) {
	data := url.Values{}
	data.Set("redirect_uri", c.CallbackURL)
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	if c.CodeVerifier != "" {
		data.Set("code_verifier", c.CodeVerifier)
	}

	basicAuth := c.AuthStyle == oauth2.AuthStyleInHeader
	if !basicAuth {
		data.Set("client_id", c.ConsumerKey)
		data.Set("client_secret", c.ConsumerSecret)
	}

	req, err := c.newTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	if basicAuth {
		req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &auth.NetworkError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, &auth.NetworkError{Op: "token exchange", Err: err}
	}

	var token TokenResponse
	if resp.StatusCode == http.StatusOK {
		token = parseTokenBody(resp.Header.Get("Content-Type"), body)
	}

	if len(token) == 0 {
		return nil, auth.NewOAuth2Error("Error retrieving access token: %s", body)
	}
	if _, ok := token["access_token"]; !ok {
		return nil, auth.NewOAuth2Error("Error retrieving access token: %s", body)
	}

	return token, nil
}

func (c *Client) newTokenRequest(ctx context.Context, data url.Values) (*http.Request, error) {
	method := strings.ToUpper(c.AccessTokenMethod)
	if method == "" {
		method = http.MethodPost
	}

	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet:
		target := c.AccessTokenURL
		if strings.Contains(target, "?") {
			target += "&" + data.Encode()
		} else {
			target += "?" + data.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, c.AccessTokenURL, strings.NewReader(data.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, auth.NewOAuth2Error("invalid access token url %q: %v", c.AccessTokenURL, err)
	}

	for k, vs := range c.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// parseTokenBody decodes JSON when the content type says so, and
// URL-encoded form data otherwise. Unparseable bodies yield nil.
func parseTokenBody(contentType string, body []byte) TokenResponse {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		var token TokenResponse
		if err := json.Unmarshal(body, &token); err != nil {
			return nil
		}
		return token
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil
	}
	token := make(TokenResponse, len(values))
	for k, v := range values {
		if len(v) > 0 {
			token[k] = v[0]
		}
	}
	return token
}

func (t TokenResponse) String() string {
	return fmt.Sprintf("TokenResponse(%d keys)", len(t))
}
