package credential

import (
	"context"
	"errors"
	"time"

	"social-login/internal/account"
)

// ErrInvalid is returned by Verify for unknown, expired, or tampered values.
var ErrInvalid = errors.New("credential: invalid or expired")

// Credential is the opaque value handed to the client after a login.
type Credential struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer turns a resolved user into a credential. The flow does not care
// how the value is encoded.
type Issuer interface {
	Issue(ctx context.Context, u *account.User) (Credential, error)
}

// Verifier maps a presented credential back to the user id it was issued for.
type Verifier interface {
	Verify(ctx context.Context, value string) (userID string, err error)
}

// Revoker is implemented by issuers whose credentials can be withdrawn
// before they expire.
type Revoker interface {
	Revoke(ctx context.Context, value string) error
}

// IssueVerifier is what the application wires in: one scheme both issues
// and checks credentials.
type IssueVerifier interface {
	Issuer
	Verifier
}
