package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// AccountExistsMessage is shown to the user when a federated login collides
// with a local account that has no linked social account.
const AccountExistsMessage = "An account already exists with this e-mail address."

var (
	// ErrAccountExists rejects a login whose email already belongs to a local
	// user without a linked social account. Never auto-link on this error.
	ErrAccountExists = errors.New(AccountExistsMessage)

	// ErrPermissionDenied is returned by collaborators that refuse the login.
	ErrPermissionDenied = errors.New("permission denied")
)

// OAuth2Error is a provider or protocol level failure.
type OAuth2Error struct {
	Message string
}

func (e *OAuth2Error) Error() string {
	return e.Message
}

func NewOAuth2Error(format string, args ...any) *OAuth2Error {
	return &OAuth2Error{Message: fmt.Sprintf(format, args...)}
}

// HTTPError is a non-2xx response from a provider endpoint.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// NetworkError wraps transport failures, timeouts included.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ImmediateResponse aborts the current flow and is written to the client as-is.
type ImmediateResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

func (e *ImmediateResponse) Error() string {
	return fmt.Sprintf("immediate response: %d", e.Status)
}

// IsRecoverable reports whether err belongs to the set of failures a login
// flow turns into an error page. Anything else is a bug and should surface as 5xx.
func IsRecoverable(err error) bool {
	var (
		oauthErr *OAuth2Error
		httpErr  *HTTPError
		netErr   *NetworkError
	)
	switch {
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrPermissionDenied),
		errors.As(err, &oauthErr),
		errors.As(err, &httpErr),
		errors.As(err, &netErr):
		return true
	}
	return false
}

// UserMessage returns the message to display for err, or "" when the error
// carries nothing fit for end users.
func UserMessage(err error) string {
	if errors.Is(err, ErrAccountExists) {
		return AccountExistsMessage
	}
	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr.Message
	}
	return ""
}
