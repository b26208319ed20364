package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"social-login/internal/auth"
	"social-login/internal/auth/oauthclient"
	"social-login/internal/auth/provider"
	"social-login/internal/logger"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

const (
	providerID   = "google"
	providerName = "Google"

	DefaultProfileURL = "https://www.googleapis.com/oauth2/v1/userinfo"

	scopeProfile = "profile"
	scopeEmail   = "email"
)

var reauthParams = map[string]string{"prompt": "select_account consent"}

type Config struct {
	ClientID     string
	ClientSecret string

	// AuthParams are static authorization parameters, e.g. access_type.
	AuthParams map[string]string

	// CallbackPath is the route the callback handler is mounted on.
	CallbackPath  string
	PublicBaseURL string

	HTTPClient *http.Client

	// Endpoint and ProfileURL default to Google's production URLs.
	Endpoint   oauth2.Endpoint
	ProfileURL string
}

// Provider adapts Google's OAuth2 endpoints and userinfo payload.
type Provider struct {
	cfg Config
}

func New(cfg Config) *Provider {
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint.AuthURL = googleoauth.Endpoint.AuthURL
	}
	if cfg.Endpoint.TokenURL == "" {
		cfg.Endpoint.TokenURL = googleoauth.Endpoint.TokenURL
	}
	if cfg.ProfileURL == "" {
		cfg.ProfileURL = DefaultProfileURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) Settings() provider.Settings {
	return provider.Settings{
		ID:   providerID,
		Name: providerName,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.cfg.Endpoint.AuthURL,
			TokenURL:  p.cfg.Endpoint.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		ProfileURL:          p.cfg.ProfileURL,
		AccessTokenMethod:   http.MethodPost,
		ScopeDelimiter:      " ",
		LoginCancelledError: "access_denied",
	}
}

func (p *Provider) Scope() []string {
	return []string{scopeProfile, scopeEmail}
}

func (p *Provider) Credentials() (provider.Credentials, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return provider.Credentials{}, auth.NewOAuth2Error("google oauth credentials are not configured")
	}
	return provider.Credentials{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
	}, nil
}

func (p *Provider) CallbackURL(r *http.Request) string {
	return provider.AbsoluteURL(r, p.cfg.PublicBaseURL, p.cfg.CallbackPath)
}

// AuthParams merges the configured params with the request's auth_params
// and forces the account chooser plus consent on reauthentication.
func (p *Provider) AuthParams(r *http.Request, action provider.Action) map[string]string {
	return provider.MergeAuthParams(p.cfg.AuthParams, r, action, reauthParams)
}

func (p *Provider) Token(resp oauthclient.TokenResponse) (string, error) {
	return provider.BearerToken(resp)
}

// ExtraData performs one GET against the userinfo endpoint and maps the
// payload onto an Identity. Non-2xx answers surface as *auth.HTTPError.
func (p *Provider) ExtraData(ctx context.Context, token string) (*auth.Identity, error) {
	u, err := url.Parse(p.cfg.ProfileURL)
	if err != nil {
		return nil, auth.NewOAuth2Error("invalid google profile url: %v", err)
	}
	q := u.Query()
	q.Set("alt", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, auth.NewOAuth2Error("google profile request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, &auth.NetworkError{Op: "google profile fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &auth.NetworkError{Op: "google profile fetch", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &auth.HTTPError{
			URL:        p.cfg.ProfileURL,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, auth.NewOAuth2Error("google profile payload is not json: %v", err)
	}

	identity := &auth.Identity{
		Provider:  providerID,
		Token:     token,
		UID:       stringValue(data, "id"),
		Email:     stringValue(data, "email"),
		FirstName: stringValue(data, "given_name"),
		LastName:  stringValue(data, "family_name"),
		ExtraData: data,
	}

	if identity.UID == "" || identity.Email == "" {
		return nil, auth.NewOAuth2Error("google profile is missing id or email")
	}
	// Email is the account join key; an address Google has not verified
	// cannot claim one.
	if verified, ok := data["verified_email"].(bool); ok && !verified {
		return nil, auth.NewOAuth2Error("google account email is not verified")
	}

	logger.Info("google profile fetched", map[string]any{
		"uid_present":    identity.UID != "",
		"verified_email": data["verified_email"],
	})

	return identity, nil
}

func stringValue(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
