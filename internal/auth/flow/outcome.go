package flow

import (
	"net/http"

	"social-login/internal/auth"
	"social-login/internal/auth/credential"
)

// Kind discriminates Outcome.
type Kind int

const (
	KindRedirect Kind = iota + 1
	KindRender
	KindImmediate
)

// Views rendered by the host.
const (
	ViewAuthenticationError = "authentication_error.html"
	ViewLoginCancelled      = "login_cancelled.html"
)

// ErrorCode classifies a failed login.
type ErrorCode string

const (
	ErrorUnknown   ErrorCode = "unknown"
	ErrorCancelled ErrorCode = "cancelled"
)

// AuthError is the context handed to the error view.
type AuthError struct {
	Provider string
	Code     ErrorCode
	Err      error
}

// ErrorName is the user-facing message for the failure, or "".
func (e AuthError) ErrorName() string {
	if e.Err == nil {
		return ""
	}
	return auth.UserMessage(e.Err)
}

// Outcome is the result of one flow step. Exactly one of the kind-specific
// groups of fields is meaningful.
type Outcome struct {
	Kind Kind

	// Cookies are set on every kind of response.
	Cookies []*http.Cookie

	// KindRedirect
	URL        string
	Credential *credential.Credential

	// KindRender
	View   string
	Status int
	Error  *AuthError

	// KindImmediate
	Immediate *auth.ImmediateResponse
}

func redirect(url string, cookies ...*http.Cookie) Outcome {
	return Outcome{Kind: KindRedirect, URL: url, Cookies: cookies}
}

func immediate(resp *auth.ImmediateResponse) Outcome {
	return Outcome{Kind: KindImmediate, Immediate: resp}
}
