package session

import (
	"context"
	"errors"
	"time"

	"social-login/internal/account"
	"social-login/internal/auth/credential"
)

// Issuer hands out opaque session ids backed by a Store.
type Issuer struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewIssuer(store Store, ttl time.Duration) *Issuer {
	return &Issuer{store: store, ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(ctx context.Context, u *account.User) (credential.Credential, error) {
	if u == nil {
		return credential.Credential{}, errors.New("session: nil user")
	}

	id, err := GenerateID()
	if err != nil {
		return credential.Credential{}, err
	}

	now := i.now()
	s := Session{
		SessionID: id,
		UserID:    u.ID.String(),
		CreatedAt: now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.Create(ctx, s); err != nil {
		return credential.Credential{}, err
	}

	return credential.Credential{Value: id, ExpiresAt: s.ExpiresAt}, nil
}

func (i *Issuer) Verify(ctx context.Context, value string) (string, error) {
	if value == "" {
		return "", credential.ErrInvalid
	}

	s, err := i.store.Get(ctx, value)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", credential.ErrInvalid
	}

	// Redis expires the key, but a store without TTLs might not.
	if i.now().After(s.ExpiresAt) {
		_ = i.store.Delete(ctx, value)
		return "", credential.ErrInvalid
	}

	return s.UserID, nil
}

func (i *Issuer) Revoke(ctx context.Context, value string) error {
	if value == "" {
		return nil
	}
	return i.store.Delete(ctx, value)
}
