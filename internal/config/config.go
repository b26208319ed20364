package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	CredentialSession = "session"
	CredentialJWT     = "jwt"
)

type Config struct {
	AppPort       string `env:"APP_PORT" env-default:"8080"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	LoginSuccessURL string `env:"LOGIN_SUCCESS_URL" env-default:"/"`
	LoginProvider   string `env:"LOGIN_PROVIDER" env-default:"google"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleAuthParams   string `env:"GOOGLE_AUTH_PARAMS"`

	KeycloakIssuer        string `env:"KEYCLOAK_ISSUER"`
	KeycloakClientID      string `env:"KEYCLOAK_CLIENT_ID"`
	KeycloakClientSecret  string `env:"KEYCLOAK_CLIENT_SECRET"`
	KeycloakPublicBaseURL string `env:"KEYCLOAK_PUBLIC_BASE_URL"`
	KeycloakAuthParams    string `env:"KEYCLOAK_AUTH_PARAMS"`

	ProviderHTTPTimeout      time.Duration `env:"PROVIDER_HTTP_TIMEOUT" env-default:"10s"`
	ProfilePhotoFromProvider bool          `env:"PROFILE_PHOTO_FROM_PROVIDER" env-default:"false"`

	StoreDriver string `env:"STORE_DRIVER" env-default:"postgres"`
	DatabaseDSN string `env:"DATABASE_DSN"`

	CredentialKind string        `env:"CREDENTIAL_KIND" env-default:"session"`
	RedisAddr      string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" env-default:"0"`
	SessionTTL     time.Duration `env:"SESSION_TTL" env-default:"24h"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTIssuer string        `env:"JWT_ISSUER" env-default:"social-login"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"15m"`

	AuthCookieName string `env:"AUTH_COOKIE_NAME" env-default:"auth"`
	CookieSecure   bool   `env:"COOKIE_SECURE" env-default:"true"`

	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" env-default:"30"`
	LoginRateBurst     int `env:"LOGIN_RATE_BURST" env-default:"10"`

	// TrustedProxies may set X-Forwarded-For. Empty means the peer address
	// is the client address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:","`
}

// ProviderConfig is the per-provider slice of Config, resolved once at startup.
type ProviderConfig struct {
	ClientID      string
	ClientSecret  string
	AuthParams    map[string]string
	Issuer        string
	PublicBaseURL string
}

// Load reads the environment, and CONFIG_FILE first when it is set.
func Load() (Config, error) {
	var cfg Config

	var err error
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres store"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.CredentialKind {
	case CredentialSession:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for session credentials"))
		}
	case CredentialJWT:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required for jwt credentials"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CREDENTIAL_KIND %q", c.CredentialKind))
	}

	if c.ProviderHTTPTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_HTTP_TIMEOUT must be positive"))
	}

	if _, err := parseParams(c.GoogleAuthParams); err != nil {
		errs = append(errs, fmt.Errorf("GOOGLE_AUTH_PARAMS: %w", err))
	}
	if _, err := parseParams(c.KeycloakAuthParams); err != nil {
		errs = append(errs, fmt.Errorf("KEYCLOAK_AUTH_PARAMS: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// Providers returns the per-provider settings keyed by provider id.
// Providers without a client id are left out.
func (c Config) Providers() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig)

	if c.GoogleClientID != "" {
		params, _ := parseParams(c.GoogleAuthParams)
		out["google"] = ProviderConfig{
			ClientID:     c.GoogleClientID,
			ClientSecret: c.GoogleClientSecret,
			AuthParams:   params,
		}
	}

	if c.KeycloakClientID != "" && c.KeycloakIssuer != "" {
		params, _ := parseParams(c.KeycloakAuthParams)
		out["keycloak"] = ProviderConfig{
			ClientID:      c.KeycloakClientID,
			ClientSecret:  c.KeycloakClientSecret,
			AuthParams:    params,
			Issuer:        c.KeycloakIssuer,
			PublicBaseURL: c.KeycloakPublicBaseURL,
		}
	}

	return out
}

// parseParams decodes a URL-encoded "k=v&k2=v2" string. Later keys win.
func parseParams(raw string) (map[string]string, error) {
	out := make(map[string]string)
	if raw == "" {
		return out, nil
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[len(v)-1]
		}
	}
	return out, nil
}
