package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps accounts in process memory, enforcing the same
// uniqueness rules as the Postgres schema. Used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]User
	accounts map[uuid.UUID]SocialAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]User),
		accounts: make(map[uuid.UUID]SocialAccount),
	}
}

func (m *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindSocialAccountByUser(ctx context.Context, userID uuid.UUID) (*SocialAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *SocialAccount
	for _, sa := range m.accounts {
		if sa.UserID != userID {
			continue
		}
		if found == nil || sa.DateJoined.Before(found.DateJoined) {
			sa := sa
			found = &sa
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (m *MemoryStore) TouchLastLogin(ctx context.Context, socialAccountID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sa, ok := m.accounts[socialAccountID]
	if !ok {
		return ErrNotFound
	}
	sa.LastLogin = at
	m.accounts[socialAccountID] = sa
	return nil
}

func (m *MemoryStore) CreateUserWithSocialAccount(ctx context.Context, u *User, sa *SocialAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	for _, existing := range m.accounts {
		if existing.Provider == sa.Provider && existing.UID == sa.UID {
			return ErrDuplicate
		}
	}

	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt, u.UpdatedAt = now, now

	if sa.ID == uuid.Nil {
		sa.ID = uuid.New()
	}
	sa.UserID = u.ID
	sa.DateJoined, sa.LastLogin = now, now

	m.users[u.ID] = *u
	m.accounts[sa.ID] = *sa
	return nil
}

// Counts reports how many users and social accounts are stored.
func (m *MemoryStore) Counts() (users, socialAccounts int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), len(m.accounts)
}

// PutUser stores a user without a social account, as a password signup would.
func (m *MemoryStore) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
}
