package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"social-login/internal/account"
	"social-login/internal/auth"
	"social-login/internal/logger"

	"golang.org/x/sync/singleflight"
)

// resolveTimeout bounds a shared resolution once no caller is waiting on it.
const resolveTimeout = 30 * time.Second

// AccountResolver maps identities onto local users, using email as the
// join key. A found user is only logged in when their social account is
// the incoming identity; nothing is ever auto-linked.
type AccountResolver struct {
	store   account.Store
	newUser UserFactory
	now     func() time.Time
	group   singleflight.Group
}

type Option func(*AccountResolver)

func WithUserFactory(f UserFactory) Option {
	return func(r *AccountResolver) {
		if f != nil {
			r.newUser = f
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *AccountResolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewAccountResolver(store account.Store, opts ...Option) *AccountResolver {
	r := &AccountResolver{
		store:   store,
		newUser: DefaultUserFactory(false),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *AccountResolver) Resolve(ctx context.Context, identity *auth.Identity) (*account.User, error) {
	if identity == nil {
		return nil, errors.New("resolver: identity is nil")
	}
	if identity.Email == "" {
		return nil, auth.NewOAuth2Error("provider returned no email address")
	}

	// Callbacks for the same identity in this process share one resolution;
	// the store's unique constraints cover the cross-process case. The shared
	// work is detached from any single caller's cancellation.
	key := identity.Provider + "|" + identity.UID + "|" + strings.ToLower(identity.Email)
	shared := *identity
	ch := r.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return r.resolve(ctx, &shared)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		u := *res.Val.(*account.User)
		return &u, nil
	}
}

func (r *AccountResolver) resolve(ctx context.Context, identity *auth.Identity) (*account.User, error) {
	u, err := r.store.FindUserByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		return r.login(ctx, u, identity)
	case !errors.Is(err, account.ErrNotFound):
		return nil, fmt.Errorf("resolver: lookup user: %w", err)
	}

	u = r.newUser(identity)
	u.Email = identity.Email
	u.PasswordUsable = false

	sa := &account.SocialAccount{
		Provider:  identity.Provider,
		UID:       identity.UID,
		ExtraData: identity.ExtraData,
	}

	err = r.store.CreateUserWithSocialAccount(ctx, u, sa)
	if errors.Is(err, account.ErrDuplicate) {
		// Lost the race to a concurrent creation: continue as if the user
		// had been found.
		logger.Info("account created concurrently, retrying as existing", map[string]any{
			"provider": identity.Provider,
		})
		existing, findErr := r.store.FindUserByEmail(ctx, identity.Email)
		if findErr != nil {
			if errors.Is(findErr, account.ErrNotFound) {
				// Duplicate on (provider, uid) under a different email.
				return nil, auth.ErrAccountExists
			}
			return nil, fmt.Errorf("resolver: lookup user after conflict: %w", findErr)
		}
		return r.login(ctx, existing, identity)
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: create user: %w", err)
	}

	logger.Info("federated user created", map[string]any{
		"provider": identity.Provider,
		"user_id":  u.ID.String(),
	})
	return u, nil
}

// login handles the "user found" branch. The user's social account must be
// this exact provider identity.
func (r *AccountResolver) login(ctx context.Context, u *account.User, identity *auth.Identity) (*account.User, error) {
	sa, err := r.store.FindSocialAccountByUser(ctx, u.ID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, auth.ErrAccountExists
	}
	if err != nil {
		return nil, fmt.Errorf("resolver: lookup social account: %w", err)
	}
	if sa.Provider != identity.Provider || sa.UID != identity.UID {
		logger.Warn("email already linked to another identity", map[string]any{
			"provider":        identity.Provider,
			"linked_provider": sa.Provider,
			"user_id":         u.ID.String(),
		})
		return nil, auth.ErrAccountExists
	}

	if err := r.store.TouchLastLogin(ctx, sa.ID, r.now()); err != nil {
		return nil, fmt.Errorf("resolver: touch last login: %w", err)
	}
	return u, nil
}
