// Package api assembles the Kiln HTTP server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberlabs/kiln/api/handlers"
	"github.com/emberlabs/kiln/api/metrics"
)

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Addr           string
	Handlers       *handlers.Handlers
	Logger         *slog.Logger
	AllowedOrigins []string
}

// NewServer builds the router and returns a configured http.Server.
func NewServer(cfg ServerConfig) *http.Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.AccountHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	h := cfg.Handlers

	r.Get("/health", handlers.GetHealth)
	r.Get("/version", handlers.GetVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(handlers.OpRateLimitMiddleware)

		// Public reads
		r.Get("/ledgers", h.ListLedgers)
		r.Get("/ledgers/{ledger}/stats", h.GetLedgerStats)
		r.Get("/ledgers/{ledger}/accounts/{account}", h.GetLedgerAccount)
		r.Get("/portfolios/{account}", h.GetPortfolio)
		r.Get("/events", h.GetEvents)
		r.Get("/accounts/{account}/ancestors", h.GetAncestors)
		r.Get("/merchant/{account}", h.GetMerchant)

		// Authenticated mutations
		r.Group(func(r chi.Router) {
			r.Use(h.RequireCaller)
			r.Post("/ledgers/{ledger}/burn", h.Burn)
			r.Post("/ledgers/{ledger}/withdraw", h.Withdraw)
			r.Post("/merchant/subscribe", h.Subscribe)
			r.Post("/merchant/green-points", h.GiveGreenPoints)
			r.Post("/merchant/redeem", h.Redeem)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/admin/pause", h.Pause)
			r.Post("/admin/unpause", h.Unpause)
			r.Post("/admin/ledgers/{ledger}/reset-burn-data", h.ResetBurnData)
			r.Post("/admin/ledgers/{ledger}/day-milliseconds", h.SetDayMilliseconds)
		})
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
