// Package api assembles the API module with all domain systems and route
// registration.
package api

import (
	"context"
	"net/http"

	"github.com/strata-vc/dealdesk/internal/config"
	"github.com/strata-vc/dealdesk/internal/infrastructure"
	"github.com/strata-vc/dealdesk/pkg/middleware"
	"github.com/strata-vc/dealdesk/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	auth, err := middleware.Auth(ctx, &cfg.API.Auth)
	if err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(auth)
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))

	return m, nil
}
