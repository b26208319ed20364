package keycloak

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"social-login/internal/auth"
	"social-login/internal/auth/oauthclient"
	"social-login/internal/auth/provider"
	"social-login/internal/logger"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	providerID   = "keycloak"
	providerName = "Keycloak"
)

var reauthParams = map[string]string{"prompt": "login"}

type Config struct {
	// Issuer must be the realm issuer URL, e.g.
	// http://localhost:8081/realms/social-login
	Issuer       string
	ClientID     string
	ClientSecret string // empty for public clients

	// PublicBaseURL replaces scheme and host of the discovered
	// authorization endpoint when browsers reach Keycloak through a
	// different address than this service does.
	PublicBaseURL string

	AuthParams   map[string]string
	CallbackPath string
	AppPublicURL string
	HTTPClient   *http.Client
}

// Provider implements the OAuth2 adapter against a Keycloak realm,
// with endpoints taken from OIDC discovery.
type Provider struct {
	cfg        Config
	oidc       *oidc.Provider
	endpoint   oauth2.Endpoint
	profileURL string
}

// New initializes a Keycloak provider using discovery.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, errors.New("keycloak oauth config missing required fields")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	oidcProvider, err := oidc.NewProvider(oidc.ClientContext(ctx, cfg.HTTPClient), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init keycloak oidc provider: %w", err)
	}

	var discovered struct {
		UserInfoURL string `json:"userinfo_endpoint"`
	}
	if err := oidcProvider.Claims(&discovered); err != nil {
		return nil, fmt.Errorf("keycloak discovery claims parse failed: %w", err)
	}

	ep := oidcProvider.Endpoint()
	if cfg.PublicBaseURL != "" {
		ep.AuthURL, err = rebase(ep.AuthURL, cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("keycloak public base url: %w", err)
		}
	}
	if cfg.ClientSecret == "" {
		ep.AuthStyle = oauth2.AuthStyleInParams
	} else {
		ep.AuthStyle = oauth2.AuthStyleInHeader
	}

	logger.Info("keycloak discovery complete", map[string]any{
		"issuer":   cfg.Issuer,
		"auth_url": ep.AuthURL,
	})

	return &Provider{
		cfg:        cfg,
		oidc:       oidcProvider,
		endpoint:   ep,
		profileURL: discovered.UserInfoURL,
	}, nil
}

func (p *Provider) Settings() provider.Settings {
	return provider.Settings{
		ID:                  providerID,
		Name:                providerName,
		Endpoint:            p.endpoint,
		ProfileURL:          p.profileURL,
		AccessTokenMethod:   http.MethodPost,
		ScopeDelimiter:      " ",
		LoginCancelledError: "access_denied",
		PKCE:                true,
	}
}

func (p *Provider) Scope() []string {
	return []string{oidc.ScopeOpenID, "email", "profile"}
}

func (p *Provider) Credentials() (provider.Credentials, error) {
	if p.cfg.ClientID == "" {
		return provider.Credentials{}, auth.NewOAuth2Error("keycloak client id is not configured")
	}
	return provider.Credentials{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
	}, nil
}

func (p *Provider) CallbackURL(r *http.Request) string {
	return provider.AbsoluteURL(r, p.cfg.AppPublicURL, p.cfg.CallbackPath)
}

func (p *Provider) AuthParams(r *http.Request, action provider.Action) map[string]string {
	return provider.MergeAuthParams(p.cfg.AuthParams, r, action, reauthParams)
}

func (p *Provider) Token(resp oauthclient.TokenResponse) (string, error) {
	return provider.BearerToken(resp)
}

// ExtraData calls the realm's userinfo endpoint with the access token.
func (p *Provider) ExtraData(ctx context.Context, token string) (*auth.Identity, error) {
	if p.profileURL == "" {
		return nil, auth.NewOAuth2Error("keycloak realm does not advertise a userinfo endpoint")
	}

	info, err := p.oidc.UserInfo(
		oidc.ClientContext(ctx, p.cfg.HTTPClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
	)
	if err != nil {
		return nil, &auth.NetworkError{Op: "keycloak userinfo", Err: err}
	}

	var data map[string]any
	if err := info.Claims(&data); err != nil {
		return nil, auth.NewOAuth2Error("keycloak userinfo claims parse failed: %v", err)
	}

	if info.Subject == "" || info.Email == "" {
		return nil, auth.NewOAuth2Error("keycloak userinfo missing required claims")
	}
	if verified, ok := data["email_verified"].(bool); ok && !verified {
		return nil, auth.NewOAuth2Error("keycloak account email is not verified")
	}

	given, _ := data["given_name"].(string)
	family, _ := data["family_name"].(string)

	logger.Info("keycloak userinfo fetched", map[string]any{
		"subject_present": info.Subject != "",
		"email_verified":  info.EmailVerified,
	})

	return &auth.Identity{
		Provider:  providerID,
		UID:       info.Subject,
		Email:     info.Email,
		FirstName: given,
		LastName:  family,
		Token:     token,
		ExtraData: data,
	}, nil
}

func rebase(raw, base string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String(), nil
}
