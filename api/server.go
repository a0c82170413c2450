/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for web tooling

ROUTE GROUPS:
  /api/purchases/*   Premium purchase flow
  /api/shop/*        Shop buy and gift
  /api/accounts/*    Account inspection (dev surface)
  /api/admin/*       Signature minting, chain verification
  /metrics           Prometheus metrics
  /healthz           Liveness

SECURITY NOTE:
  The caller supplies already-authenticated account identifiers; there is
  no auth middleware here. Front this with the session layer in production.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/purchases", func(r chi.Router) {
			r.Post("/", h.InitiatePurchase)
			r.Post("/{orderID}/verify", h.VerifyPurchase)
		})

		r.Route("/shop", func(r chi.Router) {
			r.Post("/buy", h.BuyShopItem)
			r.Post("/gift", h.GiftShopItem)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/signature/{orderID}", h.GenerateSignature)
			r.Post("/verify-chain", h.VerifyChain)
		})
	})

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
