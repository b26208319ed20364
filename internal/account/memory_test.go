package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := &User{Email: "A@x.com", FirstName: "Ada"}
	sa := &SocialAccount{Provider: "google", UID: "1", ExtraData: map[string]any{"id": "1"}}
	require.NoError(t, s.CreateUserWithSocialAccount(ctx, u, sa))

	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, u.ID, sa.UserID)
	assert.False(t, sa.DateJoined.IsZero())

	found, err := s.FindUserByEmail(ctx, "a@X.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	link, err := s.FindSocialAccountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, sa.ID, link.ID)
	assert.Equal(t, "1", link.UID)
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.FindUserByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindSocialAccountByUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.TouchLastLogin(ctx, uuid.New(), time.Now()), ErrNotFound)
}

func TestMemoryStoreRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateUserWithSocialAccount(ctx,
		&User{Email: "a@x.com"}, &SocialAccount{Provider: "google", UID: "1"}))

	err := s.CreateUserWithSocialAccount(ctx,
		&User{Email: "A@X.COM"}, &SocialAccount{Provider: "google", UID: "2"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = s.CreateUserWithSocialAccount(ctx,
		&User{Email: "b@x.com"}, &SocialAccount{Provider: "google", UID: "1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	users, links := s.Counts()
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, links)
}

func TestMemoryStoreTouchLastLogin(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := &User{Email: "a@x.com"}
	sa := &SocialAccount{Provider: "google", UID: "1"}
	require.NoError(t, s.CreateUserWithSocialAccount(ctx, u, sa))

	later := sa.LastLogin.Add(time.Hour)
	require.NoError(t, s.TouchLastLogin(ctx, sa.ID, later))

	link, err := s.FindSocialAccountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, link.LastLogin.Equal(later))
}
