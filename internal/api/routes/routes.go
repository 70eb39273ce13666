// Package routes binds the service's route groups to the application mux.
package routes

import (
	"github.com/ahrav/upload-armada/internal/api/mux"
	"github.com/ahrav/upload-armada/internal/api/routes/health"
	"github.com/ahrav/upload-armada/internal/api/routes/uploads"
	"github.com/ahrav/upload-armada/pkg/web"
)

// Routes constructs an add value which provides the implementation of
// RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

// Add implements the RouteAdder interface.
func (add) Add(app *web.App, cfg mux.Config) {
	health.Routes(app, health.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	uploads.Routes(app, uploads.Config{
		Log:       cfg.Log,
		Issuer:    cfg.Issuer,
		Lifecycle: cfg.Lifecycle,
		Query:     cfg.Query,
	})
}
