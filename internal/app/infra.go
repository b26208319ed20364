package app

import (
	"context"
	"errors"
	"fmt"

	"social-login/internal/account"
	"social-login/internal/config"
	"social-login/internal/db"
	"social-login/internal/logger"
	"social-login/internal/redis"
)

type Infra struct {
	DB       *db.DB        // nil with the memory store
	Redis    *redis.Client // nil with jwt credentials
	Accounts account.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		if err := db.RunMigrations(cfg.DatabaseDSN); err != nil {
			return nil, err
		}

		conn, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		infra.DB = conn
		infra.Accounts = account.NewPostgresStore(conn)
		logger.Info("database ready", nil)

	default:
		infra.Accounts = account.NewMemoryStore()
		logger.Warn("using in-memory account store", nil)
	}

	if cfg.CredentialKind == config.CredentialSession {
		client, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
		logger.Info("redis ready", nil)
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	return errors.Join(errs...)
}
