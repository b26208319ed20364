package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"social-login/internal/auth/credential"
	"social-login/internal/auth/flow"
	"social-login/internal/auth/handler"
	"social-login/internal/auth/resolver"
	"social-login/internal/config"
	"social-login/internal/metrics"
	"social-login/internal/middleware"
	"social-login/internal/session"
	"social-login/internal/token"
	"social-login/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := newRouter(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func newRouter(ctx context.Context, cfg config.Config, infra *Infra) (*gin.Engine, error) {
	// ----------------------------
	// Dependencies
	// ----------------------------

	providerClient := &http.Client{Timeout: cfg.ProviderHTTPTimeout}

	registry, err := buildRegistry(ctx, cfg, providerClient)
	if err != nil {
		return nil, err
	}

	issuer, err := newCredentials(cfg, infra)
	if err != nil {
		return nil, err
	}
	revoker, _ := issuer.(credential.Revoker)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	stats := metrics.NewCollector(promRegistry)

	identityResolver := resolver.NewAccountResolver(
		infra.Accounts,
		resolver.WithUserFactory(resolver.DefaultUserFactory(cfg.ProfilePhotoFromProvider)),
	)

	controller := flow.NewController(flow.Config{
		Registry:     registry,
		Resolver:     identityResolver,
		Issuer:       issuer,
		HTTPClient:   providerClient,
		SuccessURL:   cfg.LoginSuccessURL,
		CancelledURL: handler.CancelledPath,
		CookieSecure: cfg.CookieSecure,
		Metrics:      stats,
	})

	cookie := session.CookieOptions{
		Name:   cfg.AuthCookieName,
		Secure: cfg.CookieSecure,
	}

	authHandler := handler.NewHandler(controller, registry, handler.Options{
		DefaultProvider: cfg.LoginProvider,
		Cookie:          cookie,
		Revoker:         revoker,
	})
	authMiddleware := middleware.NewAuthMiddleware(issuer, cookie)
	limiter := middleware.NewRateLimiter("login", cfg.LoginRatePerMinute, cfg.LoginRateBurst, stats)

	templates, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(templates)

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router, limiter.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler(promRegistry)))

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(middleware.UserIDKey),
		})
	})

	return router, nil
}

// newCredentials picks the credential scheme handed out after login.
func newCredentials(cfg config.Config, infra *Infra) (credential.IssueVerifier, error) {
	switch cfg.CredentialKind {
	case config.CredentialJWT:
		return token.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	case config.CredentialSession:
		if infra.Redis == nil {
			return nil, errors.New("session credentials need redis")
		}
		return session.NewIssuer(session.NewRedisStore(infra.Redis.Client), cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unknown credential kind %q", cfg.CredentialKind)
	}
}
