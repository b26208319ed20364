package provider

import (
	"context"
	"net/http"

	"social-login/internal/auth"
	"social-login/internal/auth/oauthclient"

	"golang.org/x/oauth2"
)

// Action is the login intent requested through the "action" query parameter.
type Action string

const (
	ActionAuthenticate   Action = "authenticate"
	ActionReauthenticate Action = "reauthenticate"
	ActionRerequest      Action = "rerequest"
)

// ParseAction maps a query value to an Action. Unknown or empty values
// fall back to ActionAuthenticate.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionReauthenticate, ActionRerequest:
		return Action(s)
	default:
		return ActionAuthenticate
	}
}

// Credentials are the OAuth client credentials registered with a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Settings is the static description of a provider.
type Settings struct {
	ID   string
	Name string

	// Endpoint carries the authorize URL, the token URL and the client
	// authentication style (basic auth or body parameters).
	Endpoint          oauth2.Endpoint
	ProfileURL        string
	AccessTokenMethod string
	ScopeDelimiter    string
	Headers           http.Header

	// LoginCancelledError is the "error" value the provider sends back
	// when the user declines consent.
	LoginCancelledError string

	// PKCE enables code_challenge / code_verifier on the flow.
	PKCE bool
}

// Adapter defines the contract every external auth provider
// must implement. Implementations return identity facts only and
// must not perform user creation, linking, or session management.
type Adapter interface {
	Settings() Settings

	// Scope returns the scopes to request, in order.
	Scope() []string

	// Credentials returns the configured client credentials, or an
	// *auth.OAuth2Error when they are missing.
	Credentials() (Credentials, error)

	// CallbackURL returns the absolute redirect URI registered with the provider.
	CallbackURL(r *http.Request) string

	// AuthParams returns extra authorization request parameters.
	AuthParams(r *http.Request, action Action) map[string]string

	// Token extracts the bearer token from a token endpoint response.
	Token(resp oauthclient.TokenResponse) (string, error)

	// ExtraData fetches the user's profile and normalizes it.
	ExtraData(ctx context.Context, token string) (*auth.Identity, error)
}

// NewClient builds the OAuth2 client for one request against adapter a.
func NewClient(a Adapter, r *http.Request, creds Credentials, httpClient *http.Client) *oauthclient.Client {
	s := a.Settings()
	return &oauthclient.Client{
		ConsumerKey:       creds.ClientID,
		ConsumerSecret:    creds.ClientSecret,
		AccessTokenMethod: s.AccessTokenMethod,
		AccessTokenURL:    s.Endpoint.TokenURL,
		CallbackURL:       a.CallbackURL(r),
		Scope:             a.Scope(),
		ScopeDelimiter:    s.ScopeDelimiter,
		Headers:           s.Headers,
		AuthStyle:         s.Endpoint.AuthStyle,
		HTTPClient:        httpClient,
	}
}

// BearerToken is the shared Token implementation: the access_token entry,
// or an *auth.OAuth2Error when the response carries none.
func BearerToken(resp oauthclient.TokenResponse) (string, error) {
	token := resp.AccessToken()
	if token == "" {
		return "", auth.NewOAuth2Error("token response has no usable access_token")
	}
	return token, nil
}
