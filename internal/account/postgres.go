package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-login/internal/db"

	"github.com/google/uuid"
)

// PostgresStore is the canonical Store backed by the users and
// social_accounts tables.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(d *db.DB) *PostgresStore {
	return &PostgresStore{db: d}
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, first_name, last_name, profile_photo,
		       password_usable, created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`, email).Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfilePhoto,
		&u.PasswordUsable, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find user by email: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) FindSocialAccountByUser(ctx context.Context, userID uuid.UUID) (*SocialAccount, error) {
	var (
		sa    SocialAccount
		extra []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, uid, extra_data, last_login, date_joined
		FROM social_accounts
		WHERE user_id = $1
		ORDER BY date_joined
		LIMIT 1
	`, userID).Scan(
		&sa.ID, &sa.UserID, &sa.Provider, &sa.UID, &extra, &sa.LastLogin, &sa.DateJoined,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account: find social account: %w", err)
	}

	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &sa.ExtraData); err != nil {
			return nil, fmt.Errorf("account: decode extra_data: %w", err)
		}
	}
	return &sa, nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, socialAccountID uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE social_accounts
		SET last_login = $2
		WHERE id = $1
	`, socialAccountID, at)
	if err != nil {
		return fmt.Errorf("account: touch last login: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("account: touch last login: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUserWithSocialAccount inserts the user and the link in one
// transaction so a failed link never leaves an orphaned user.
func (s *PostgresStore) CreateUserWithSocialAccount(ctx context.Context, u *User, sa *SocialAccount) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if sa.ID == uuid.Nil {
		sa.ID = uuid.New()
	}
	sa.UserID = u.ID

	extra := sa.ExtraData
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("account: encode extra_data: %w", err)
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO users (id, email, first_name, last_name, profile_photo, password_usable)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at, updated_at
		`,
			u.ID, u.Email, u.FirstName, u.LastName, u.ProfilePhoto, u.PasswordUsable,
		).Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO social_accounts (id, user_id, provider, uid, extra_data)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING last_login, date_joined
		`,
			sa.ID, sa.UserID, sa.Provider, sa.UID, extraJSON,
		).Scan(&sa.LastLogin, &sa.DateJoined)
	})

	if db.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("account: create user with social account: %w", err)
	}
	return nil
}
