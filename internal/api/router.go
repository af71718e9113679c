package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"logiflow-service/internal/api/handlers"
	"logiflow-service/internal/platform/metrics"
	"logiflow-service/internal/services"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Accounts    *services.AccountService
	Routes      *services.RouteService
	Captures    *services.CaptureManager
	CORSOrigins []string
	Greeting    string
	// Ping checks the backing store for /health. Optional.
	Ping func(ctx context.Context) error
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(d Deps) http.Handler {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	healthHandler := &handlers.HealthHandler{Ping: d.Ping}
	sessionHandler := &handlers.SessionHandler{Accounts: d.Accounts}
	captureHandler := &handlers.CaptureHandler{Captures: d.Captures}
	previewHandler := &handlers.PreviewHandler{Routes: d.Routes}
	routeHandler := &handlers.RouteHandler{Routes: d.Routes}
	deliveryHandler := &handlers.DeliveryHandler{Routes: d.Routes, Greeting: d.Greeting}
	adminHandler := &handlers.AdminHandler{Routes: d.Routes}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", UserHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}))

	r.Get("/health", healthHandler.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/session", sessionHandler.Login)

	// Signed in, not gated: a lapsed driver can still see their profile and sign out.
	r.Group(func(r chi.Router) {
		r.Use(identityMiddleware(d.Accounts, false))
		r.Get("/session", sessionHandler.Me)
		r.Delete("/session", sessionHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(identityMiddleware(d.Accounts, true))

		r.Route("/captures/sessions", func(r chi.Router) {
			r.Post("/", captureHandler.Open)
			r.Get("/{sid}", captureHandler.Get)
			r.Post("/{sid}/motion", captureHandler.Motion)
			r.Post("/{sid}/frames", captureHandler.Frame)
			r.Delete("/{sid}", captureHandler.Close)
		})

		r.Route("/preview", func(r chi.Router) {
			r.Get("/", previewHandler.Get)
			r.Patch("/", previewHandler.Patch)
			r.Post("/commit", previewHandler.Commit)
			r.Delete("/", previewHandler.Discard)
		})

		r.Get("/routes", routeHandler.List)
		r.Post("/routes/import", routeHandler.Import)
		r.Post("/routes/activate", routeHandler.Activate)

		r.Route("/deliveries/{id}", func(r chi.Router) {
			r.Post("/navigate", deliveryHandler.Navigate)
			r.Post("/complete", deliveryHandler.Complete)
			r.Patch("/", deliveryHandler.Patch)
			r.Delete("/", deliveryHandler.Delete)
			r.Get("/contact", deliveryHandler.Contact)
		})

		r.With(adminOnly).Get("/admin/deliveries", adminHandler.Deliveries)
	})

	return r
}
