package flow

import (
	"crypto/subtle"
	"net/http"
	"time"

	"social-login/internal/utils"

	"golang.org/x/oauth2"
)

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	flowCookieTTL   = 5 * time.Minute
	stateBytes      = 32
)

type cookieJar struct {
	secure bool
}

func (j cookieJar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(flowCookieTTL.Seconds()),
	}
}

func (j cookieJar) expired(name string) *http.Cookie {
	c := j.cookie(name, "")
	c.MaxAge = -1
	return c
}

// newState returns a fresh CSRF state and the cookie that remembers it.
func (j cookieJar) newState() (string, *http.Cookie, error) {
	state, err := utils.RandomString(stateBytes)
	if err != nil {
		return "", nil, err
	}
	return state, j.cookie(stateCookieName, state), nil
}

// newPKCE returns the S256 challenge and the cookie holding its verifier.
func (j cookieJar) newPKCE() (string, *http.Cookie) {
	verifier := oauth2.GenerateVerifier()
	return oauth2.S256ChallengeFromVerifier(verifier), j.cookie(pkceCookieName, verifier)
}

// clear expires both flow cookies; they are single use.
func (j cookieJar) clear() []*http.Cookie {
	return []*http.Cookie{j.expired(stateCookieName), j.expired(pkceCookieName)}
}

func validState(r *http.Request) bool {
	got := r.URL.Query().Get("state")
	if got == "" {
		return false
	}
	c, err := r.Cookie(stateCookieName)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(got)) == 1
}

func pkceVerifier(r *http.Request) string {
	c, err := r.Cookie(pkceCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
