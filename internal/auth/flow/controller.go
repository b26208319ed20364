package flow

import (
	"errors"
	"net/http"
	"time"

	"social-login/internal/auth"
	"social-login/internal/auth/credential"
	"social-login/internal/auth/provider"
	"social-login/internal/auth/resolver"
	"social-login/internal/logger"
	"social-login/internal/metrics"
)

const DefaultCancelledURL = "/login/cancelled/"

type Config struct {
	Registry *provider.Registry
	Resolver resolver.Resolver

	// Issuer is optional; without it a successful login only redirects.
	Issuer credential.Issuer

	// HTTPClient is used for every provider call. Its Timeout bounds
	// the token exchange and the profile fetch.
	HTTPClient *http.Client

	SuccessURL   string
	CancelledURL string
	CookieSecure bool
	Metrics      metrics.Recorder
}

// Controller drives the two HTTP-facing steps of a login: the redirect to
// the provider and the callback back from it.
type Controller struct {
	cfg  Config
	jar  cookieJar
	stat metrics.Recorder
}

func NewController(cfg Config) *Controller {
	if cfg.SuccessURL == "" {
		cfg.SuccessURL = "/"
	}
	if cfg.CancelledURL == "" {
		cfg.CancelledURL = DefaultCancelledURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	stat := cfg.Metrics
	if stat == nil {
		stat = metrics.Nop{}
	}
	return &Controller{
		cfg:  cfg,
		jar:  cookieJar{secure: cfg.CookieSecure},
		stat: stat,
	}
}

// Login builds the authorization redirect for providerID.
// The returned error is non-nil only for unknown providers and bugs.
func (c *Controller) Login(r *http.Request, providerID string) (Outcome, error) {
	adapter, err := c.cfg.Registry.Get(providerID)
	if err != nil {
		return Outcome{}, err
	}
	settings := adapter.Settings()

	creds, err := adapter.Credentials()
	if err != nil {
		return c.fail(providerID, err)
	}

	action := provider.ParseAction(r.URL.Query().Get("action"))
	client := provider.NewClient(adapter, r, creds, c.cfg.HTTPClient)

	state, stateCookie, err := c.jar.newState()
	if err != nil {
		return Outcome{}, err
	}
	client.State = state
	cookies := []*http.Cookie{stateCookie}

	params := adapter.AuthParams(r, action)
	if settings.PKCE {
		challenge, pkceCookie := c.jar.newPKCE()
		if params == nil {
			params = map[string]string{}
		}
		params["code_challenge"] = challenge
		params["code_challenge_method"] = "S256"
		cookies = append(cookies, pkceCookie)
	}

	c.stat.RecordLogin(providerID, string(action))
	logger.Info("login redirect", map[string]any{
		"provider": providerID,
		"action":   string(action),
	})

	return redirect(client.RedirectURL(settings.Endpoint.AuthURL, params), cookies...), nil
}

// Callback handles the provider redirect. Recoverable failures come back
// as an Outcome; the returned error is reserved for unknown providers and
// unexpected failures, which the host should surface as 5xx.
func (c *Controller) Callback(r *http.Request, providerID string) (Outcome, error) {
	adapter, err := c.cfg.Registry.Get(providerID)
	if err != nil {
		return Outcome{}, err
	}
	settings := adapter.Settings()
	q := r.URL.Query()

	if q.Has("error") || q.Get("code") == "" {
		code := ErrorUnknown
		if providerErr := q.Get("error"); providerErr != "" && providerErr == settings.LoginCancelledError {
			code = ErrorCancelled
		}
		logger.Warn("provider callback without code", map[string]any{
			"provider":    providerID,
			"error":       q.Get("error"),
			"description": q.Get("error_description"),
			"outcome":     string(code),
		})
		return c.authError(providerID, code, nil), nil
	}

	if !validState(r) {
		logger.Warn("callback state mismatch", map[string]any{"provider": providerID})
		return c.authError(providerID, ErrorUnknown, nil), nil
	}

	creds, err := adapter.Credentials()
	if err != nil {
		return c.fail(providerID, err)
	}
	client := provider.NewClient(adapter, r, creds, c.cfg.HTTPClient)
	if settings.PKCE {
		client.CodeVerifier = pkceVerifier(r)
		if client.CodeVerifier == "" {
			logger.Warn("callback missing pkce verifier", map[string]any{"provider": providerID})
			return c.authError(providerID, ErrorUnknown, nil), nil
		}
	}

	ctx := r.Context()

	start := time.Now()
	resp, err := client.ExchangeCode(ctx, q.Get("code"))
	c.stat.RecordProviderCall(providerID, "token", time.Since(start), err)
	if err != nil {
		return c.fail(providerID, err)
	}

	token, err := adapter.Token(resp)
	if err != nil {
		return c.fail(providerID, err)
	}

	start = time.Now()
	identity, err := adapter.ExtraData(ctx, token)
	c.stat.RecordProviderCall(providerID, "profile", time.Since(start), err)
	if err != nil {
		return c.fail(providerID, err)
	}
	if identity.Provider == "" {
		identity.Provider = settings.ID
	}

	user, err := c.cfg.Resolver.Resolve(ctx, identity)
	if err != nil {
		return c.fail(providerID, err)
	}

	out := redirect(c.cfg.SuccessURL, c.jar.clear()...)
	if c.cfg.Issuer != nil {
		cred, err := c.cfg.Issuer.Issue(ctx, user)
		if err != nil {
			return c.fail(providerID, err)
		}
		out.Credential = &cred
	}

	c.stat.RecordCallback(providerID, "success")
	logger.Info("login succeeded", map[string]any{
		"provider": providerID,
		"user_id":  user.ID.String(),
		"outcome":  "success",
	})
	return out, nil
}

// fail classifies err. Short-circuit responses pass through unchanged,
// recoverable errors become the error view, and anything else is returned.
func (c *Controller) fail(providerID string, err error) (Outcome, error) {
	var imm *auth.ImmediateResponse
	if errors.As(err, &imm) {
		c.stat.RecordCallback(providerID, "immediate")
		return immediate(imm), nil
	}

	if !auth.IsRecoverable(err) {
		c.stat.RecordCallback(providerID, "internal")
		logger.Error("login failed unexpectedly", map[string]any{
			"provider": providerID,
			"error":    err.Error(),
		})
		return Outcome{}, err
	}

	logger.Warn("login failed", map[string]any{
		"provider": providerID,
		"error":    err.Error(),
		"outcome":  string(ErrorUnknown),
	})
	return c.authError(providerID, ErrorUnknown, err), nil
}

// authError renders the failure. Cancellation gets its own page.
func (c *Controller) authError(providerID string, code ErrorCode, err error) Outcome {
	c.stat.RecordCallback(providerID, string(code))

	if code == ErrorCancelled {
		return redirect(c.cfg.CancelledURL, c.jar.clear()...)
	}
	return Outcome{
		Kind:    KindRender,
		Cookies: c.jar.clear(),
		View:    ViewAuthenticationError,
		Status:  http.StatusOK,
		Error:   &AuthError{Provider: providerID, Code: code, Err: err},
	}
}
