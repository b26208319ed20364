package provider

import (
	"net/http"
	"net/url"
	"strings"
)

// AuthParamsQueryKey is the login query parameter carrying URL-encoded
// per-request provider parameters.
const AuthParamsQueryKey = "auth_params"

// MergeAuthParams layers the static configured params, the per-request
// auth_params override, and finally the re-consent params when the action
// is ActionReauthenticate. A malformed auth_params value is ignored.
func MergeAuthParams(static map[string]string, r *http.Request, action Action, reauth map[string]string) map[string]string {
	out := make(map[string]string, len(static))
	for k, v := range static {
		out[k] = v
	}

	if r != nil {
		if raw := r.URL.Query().Get(AuthParamsQueryKey); raw != "" {
			if dynamic, err := url.ParseQuery(raw); err == nil {
				for k, v := range dynamic {
					if len(v) > 0 {
						out[k] = v[len(v)-1]
					}
				}
			}
		}
	}

	if action == ActionReauthenticate {
		for k, v := range reauth {
			out[k] = v
		}
	}

	return out
}

// AbsoluteURL resolves path against publicBaseURL, or against the request's
// own scheme and host when no public base URL is configured.
func AbsoluteURL(r *http.Request, publicBaseURL, path string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + path
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + path
}
