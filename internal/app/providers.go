package app

import (
	"context"
	"fmt"
	"net/http"

	"social-login/internal/auth/handler"
	"social-login/internal/auth/provider"
	"social-login/internal/auth/provider/google"
	"social-login/internal/auth/provider/keycloak"
	"social-login/internal/config"
)

// buildRegistry creates one adapter per configured provider. The login
// provider must be among them.
func buildRegistry(ctx context.Context, cfg config.Config, httpClient *http.Client) (*provider.Registry, error) {
	var adapters []provider.Adapter

	for id, pc := range cfg.Providers() {
		callbackPath := handler.ProviderCallbackPath(id, cfg.LoginProvider)

		switch id {
		case "google":
			adapters = append(adapters, google.New(google.Config{
				ClientID:      pc.ClientID,
				ClientSecret:  pc.ClientSecret,
				AuthParams:    pc.AuthParams,
				CallbackPath:  callbackPath,
				PublicBaseURL: cfg.PublicBaseURL,
				HTTPClient:    httpClient,
			}))

		case "keycloak":
			kc, err := keycloak.New(ctx, keycloak.Config{
				Issuer:        pc.Issuer,
				ClientID:      pc.ClientID,
				ClientSecret:  pc.ClientSecret,
				PublicBaseURL: pc.PublicBaseURL,
				AuthParams:    pc.AuthParams,
				CallbackPath:  callbackPath,
				AppPublicURL:  cfg.PublicBaseURL,
				HTTPClient:    httpClient,
			})
			if err != nil {
				return nil, fmt.Errorf("keycloak provider: %w", err)
			}
			adapters = append(adapters, kc)
		}
	}

	registry := provider.NewRegistry(adapters...)
	if _, err := registry.Get(cfg.LoginProvider); err != nil {
		return nil, fmt.Errorf("LOGIN_PROVIDER: %w", err)
	}
	return registry, nil
}
