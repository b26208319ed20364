package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-login/internal/account"
	"social-login/internal/auth/credential"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by the access credential.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 access tokens. They cannot be revoked; keep the TTL short.
type JWTIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTIssuer(secret, issuer string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("token: empty signing secret")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (j *JWTIssuer) Issue(ctx context.Context, u *account.User) (credential.Credential, error) {
	if u == nil {
		return credential.Credential{}, errors.New("token: nil user")
	}

	now := j.now().UTC()
	claims := Claims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return credential.Credential{}, fmt.Errorf("token: sign: %w", err)
	}

	return credential.Credential{Value: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (j *JWTIssuer) Verify(ctx context.Context, value string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", credential.ErrInvalid, err)
	}
	if claims.Subject == "" {
		return "", credential.ErrInvalid
	}
	return claims.Subject, nil
}
