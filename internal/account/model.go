package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("account: not found")
	ErrDuplicate = errors.New("account: unique constraint violated")
)

// User is a local account. Email is globally unique, compared case-insensitively.
type User struct {
	ID             uuid.UUID
	Email          string
	FirstName      string
	LastName       string
	ProfilePhoto   string
	PasswordUsable bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SocialAccount links a provider identity to a local user.
// (Provider, UID) is unique; so is (UserID, Provider).
type SocialAccount struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Provider   string
	UID        string
	ExtraData  map[string]any
	LastLogin  time.Time
	DateJoined time.Time
}

// Store persists users and their social accounts.
type Store interface {
	// FindUserByEmail returns ErrNotFound when no user has the email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)

	// FindSocialAccountByUser returns the user's first social account,
	// or ErrNotFound.
	FindSocialAccountByUser(ctx context.Context, userID uuid.UUID) (*SocialAccount, error)

	// TouchLastLogin refreshes the social account's last login time.
	TouchLastLogin(ctx context.Context, socialAccountID uuid.UUID, at time.Time) error

	// CreateUserWithSocialAccount inserts both rows atomically. A uniqueness
	// violation on either row returns ErrDuplicate and leaves nothing behind.
	CreateUserWithSocialAccount(ctx context.Context, u *User, sa *SocialAccount) error
}
