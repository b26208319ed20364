package resolver

import (
	"context"

	"social-login/internal/account"
	"social-login/internal/auth"
)

// Resolver determines which local user an external identity belongs to.
// It is the ONLY place where identity-to-user mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (*account.User, error)
}

// UserFactory builds the user row created on a first federated login.
// Fields it leaves unset keep their zero value.
type UserFactory func(identity *auth.Identity) *account.User

// DefaultUserFactory copies email and names from the identity. The provider
// picture becomes the profile photo only when photoFromProvider is set.
func DefaultUserFactory(photoFromProvider bool) UserFactory {
	return func(identity *auth.Identity) *account.User {
		u := &account.User{
			Email:     identity.Email,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
		}
		if photoFromProvider {
			u.ProfilePhoto = identity.Picture()
		}
		return u
	}
}
