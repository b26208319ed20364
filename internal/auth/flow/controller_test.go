package flow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"social-login/internal/account"
	"social-login/internal/auth"
	"social-login/internal/auth/credential"
	"social-login/internal/auth/provider"
	"social-login/internal/auth/provider/google"
	"social-login/internal/auth/resolver"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints.
type fakeGoogle struct {
	*httptest.Server
	tokenStatus  int
	profileBody  string
	lastVerifier atomic.Value
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		tokenStatus: http.StatusOK,
		profileBody: `{"id":"1","email":"a@x.com","given_name":"Ada","family_name":"Lovelace"}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lastVerifier.Store(r.PostForm.Get("code_verifier"))
		if f.tokenStatus != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, f.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok123","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.profileBody))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGoogle) provider(secret string) *google.Provider {
	return google.New(google.Config{
		ClientID:     "cid",
		ClientSecret: secret,
		CallbackPath: "/login/callback/",
		HTTPClient:   f.Client(),
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.URL + "/auth",
			TokenURL: f.URL + "/token",
		},
		ProfileURL: f.URL + "/userinfo",
	})
}

// pkceGoogle turns PKCE on for an otherwise ordinary adapter.
type pkceGoogle struct {
	*google.Provider
}

func (p pkceGoogle) Settings() provider.Settings {
	s := p.Provider.Settings()
	s.PKCE = true
	return s
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(ctx context.Context, u *account.User) (credential.Credential, error) {
	return credential.Credential{Value: "cred-" + u.Email}, nil
}

type resolverFunc func(ctx context.Context, id *auth.Identity) (*account.User, error)

func (f resolverFunc) Resolve(ctx context.Context, id *auth.Identity) (*account.User, error) {
	return f(ctx, id)
}

func newController(adapter provider.Adapter, res resolver.Resolver) *Controller {
	return NewController(Config{
		Registry:   provider.NewRegistry(adapter),
		Resolver:   res,
		Issuer:     fakeIssuer{},
		SuccessURL: "/welcome",
	})
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// callbackRequest carries the state cookie from a login outcome.
func callbackRequest(query string, login Outcome) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "http://app.local/login/callback/?"+query, nil)
	for _, c := range login.Cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func stateOf(t *testing.T, login Outcome) string {
	t.Helper()
	c := cookieNamed(login.Cookies, stateCookieName)
	require.NotNil(t, c)
	return c.Value
}

func TestLoginRedirects(t *testing.T) {
	f := newFakeGoogle(t)
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(account.NewMemoryStore()))

	r := httptest.NewRequest(http.MethodGet, "http://app.local/login/?action=reauthenticate", nil)
	out, err := ctrl.Login(r, "google")
	require.NoError(t, err)
	require.Equal(t, KindRedirect, out.Kind)

	u, err := url.Parse(out.URL)
	require.NoError(t, err)
	assert.Equal(t, f.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://app.local/login/callback/", q.Get("redirect_uri"))
	assert.Equal(t, "profile email", q.Get("scope"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "select_account consent", q.Get("prompt"))
	assert.Equal(t, stateOf(t, out), q.Get("state"))
	assert.Empty(t, q.Get("code_challenge"))

	state := cookieNamed(out.Cookies, stateCookieName)
	assert.True(t, state.HttpOnly)
	assert.Nil(t, cookieNamed(out.Cookies, pkceCookieName))
}

func TestLoginMissingCredentialsRendersError(t *testing.T) {
	f := newFakeGoogle(t)
	ctrl := newController(f.provider(""), resolver.NewAccountResolver(account.NewMemoryStore()))

	out, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)
	require.Equal(t, KindRender, out.Kind)
	assert.Equal(t, ViewAuthenticationError, out.View)
	assert.Equal(t, "google oauth credentials are not configured", out.Error.ErrorName())
}

func TestLoginUnknownProvider(t *testing.T) {
	f := newFakeGoogle(t)
	ctrl := newController(f.provider("secret"), nil)

	_, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "nope")
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestCallbackClassifiesProviderErrors(t *testing.T) {
	f := newFakeGoogle(t)
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(account.NewMemoryStore()))

	tests := []struct {
		name     string
		query    string
		wantKind Kind
		wantCode ErrorCode
	}{
		{name: "cancelled", query: "error=access_denied", wantKind: KindRedirect},
		{name: "cancelled with code", query: "error=access_denied&code=abc", wantKind: KindRedirect},
		{name: "other error", query: "error=server_error", wantKind: KindRender, wantCode: ErrorUnknown},
		{name: "no code", query: "", wantKind: KindRender, wantCode: ErrorUnknown},
		{name: "empty error", query: "error=", wantKind: KindRender, wantCode: ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/login/callback/?"+tt.query, nil)
			out, err := ctrl.Callback(r, "google")
			require.NoError(t, err)
			require.Equal(t, tt.wantKind, out.Kind)

			if tt.wantKind == KindRedirect {
				assert.Equal(t, DefaultCancelledURL, out.URL)
				assert.Nil(t, out.Credential)
				return
			}
			assert.Equal(t, tt.wantCode, out.Error.Code)
			assert.Empty(t, out.Error.ErrorName())
		})
	}
}

func TestCallbackRejectsStateMismatch(t *testing.T) {
	f := newFakeGoogle(t)
	store := account.NewMemoryStore()
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(store))

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state=forged", login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRender, out.Kind)
	assert.Equal(t, ErrorUnknown, out.Error.Code)

	users, _ := store.Counts()
	assert.Zero(t, users)
}

func TestCallbackSuccess(t *testing.T) {
	f := newFakeGoogle(t)
	store := account.NewMemoryStore()
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(store))

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRedirect, out.Kind)
	assert.Equal(t, "/welcome", out.URL)
	require.NotNil(t, out.Credential)
	assert.Equal(t, "cred-a@x.com", out.Credential.Value)

	cleared := cookieNamed(out.Cookies, stateCookieName)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	u, err := store.FindUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Ada", u.FirstName)
}

func TestCallbackAccountExists(t *testing.T) {
	f := newFakeGoogle(t)
	store := account.NewMemoryStore()
	store.PutUser(account.User{Email: "a@x.com", PasswordUsable: true})
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(store))

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRender, out.Kind)
	assert.ErrorIs(t, out.Error.Err, auth.ErrAccountExists)
	assert.Equal(t, auth.AccountExistsMessage, out.Error.ErrorName())

	_, links := store.Counts()
	assert.Zero(t, links)
}

func TestCallbackTokenFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.tokenStatus = http.StatusInternalServerError
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(account.NewMemoryStore()))

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRender, out.Kind)

	var oauthErr *auth.OAuth2Error
	require.ErrorAs(t, out.Error.Err, &oauthErr)
	assert.Contains(t, out.Error.ErrorName(), "invalid_grant")
}

func TestCallbackProfileFailure(t *testing.T) {
	f := newFakeGoogle(t)
	f.profileBody = `{"id":"1"}`
	ctrl := newController(f.provider("secret"), resolver.NewAccountResolver(account.NewMemoryStore()))

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRender, out.Kind)
	assert.Equal(t, "google profile is missing id or email", out.Error.ErrorName())
}

func TestCallbackImmediateResponsePassesThrough(t *testing.T) {
	f := newFakeGoogle(t)
	imm := &auth.ImmediateResponse{Status: http.StatusTeapot, Body: []byte("short")}
	res := resolverFunc(func(ctx context.Context, id *auth.Identity) (*account.User, error) {
		return nil, imm
	})
	ctrl := newController(f.provider("secret"), res)

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindImmediate, out.Kind)
	assert.Same(t, imm, out.Immediate)
}

func TestCallbackUnexpectedErrorEscapes(t *testing.T) {
	f := newFakeGoogle(t)
	boom := errors.New("database on fire")
	res := resolverFunc(func(ctx context.Context, id *auth.Identity) (*account.User, error) {
		return nil, boom
	})
	ctrl := newController(f.provider("secret"), res)

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	_, err = ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	assert.ErrorIs(t, err, boom)
}

func TestPKCERoundTrip(t *testing.T) {
	f := newFakeGoogle(t)
	res := resolverFunc(func(ctx context.Context, id *auth.Identity) (*account.User, error) {
		return &account.User{ID: uuid.New(), Email: id.Email}, nil
	})
	ctrl := newController(pkceGoogle{f.provider("secret")}, res)

	login, err := ctrl.Login(httptest.NewRequest(http.MethodGet, "/login/", nil), "google")
	require.NoError(t, err)

	u, err := url.Parse(login.URL)
	require.NoError(t, err)
	verifier := cookieNamed(login.Cookies, pkceCookieName)
	require.NotNil(t, verifier)
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier.Value), u.Query().Get("code_challenge"))

	out, err := ctrl.Callback(callbackRequest("code=abc&state="+stateOf(t, login), login), "google")
	require.NoError(t, err)
	require.Equal(t, KindRedirect, out.Kind)
	assert.Equal(t, verifier.Value, f.lastVerifier.Load())

	// Without the verifier cookie the callback is refused.
	r := httptest.NewRequest(http.MethodGet, "/login/callback/?code=abc&state="+stateOf(t, login), nil)
	r.AddCookie(&http.Cookie{Name: stateCookieName, Value: stateOf(t, login)})
	out, err = ctrl.Callback(r, "google")
	require.NoError(t, err)
	assert.Equal(t, KindRender, out.Kind)
}
