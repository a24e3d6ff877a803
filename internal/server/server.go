// Package server exposes the service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/metrics"
	"github.com/xtding233/banner-gacha/internal/service"
)

// Options configures the HTTP server.
type Options struct {
	Addr         string
	MaxBodyBytes int64
	ReceiptSize  int
	ReceiptTTL   time.Duration
	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string
	// BuildVersion is reported by /version next to the state versions.
	BuildVersion string
}

type Server struct {
	httpServer *http.Server
	svc        *service.Service
	codec      *admin.TokenCodec
	receipts   *expirable.LRU[string, service.DrawResult]
	inflight   singleflight.Group
	build      string
}

// New creates a Server with every route mounted.
func New(opts Options, svc *service.Service, codec *admin.TokenCodec) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.ReceiptSize <= 0 {
		opts.ReceiptSize = 10000
	}
	if opts.ReceiptTTL <= 0 {
		opts.ReceiptTTL = 10 * time.Minute
	}
	s := &Server{
		svc:      svc,
		codec:    codec,
		receipts: expirable.NewLRU[string, service.DrawResult](opts.ReceiptSize, nil, opts.ReceiptTTL),
		build:    opts.BuildVersion,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.MaxBodyBytes, opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(maxBody int64, origins []string) http.Handler {
	r := chi.NewRouter()

	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders: []string{"Idempotent-Replayed", "X-Request-ID"},
			MaxAge:         60 * 15,
		}))
	}
	r.Use(requestSizeLimit(maxBody))
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/version", s.handleVersion)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/banners", func(r chi.Router) {
			r.Post("/", s.handleCreateBanner)
			r.Get("/", s.handleListBanners)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetBanner)
				r.Patch("/", s.handleUpdateBannerInfo)
				r.Put("/window", s.handleSetWindow)
				r.Put("/active", s.handleSetActive)
				r.Post("/items", s.handleAddItem)
				r.Delete("/items/{item}", s.handleRemoveItem)
				r.Put("/rates/{tier}", s.handleSetBaseRate)
				r.Delete("/rates/{tier}", s.handleClearBaseRate)
				r.Put("/boosts/{item}", s.handleSetBoost)
				r.Delete("/boosts/{item}", s.handleClearBoost)
				r.Put("/pity/{tier}", s.handleConfigurePity)
				r.Delete("/pity/{tier}", s.handleClearPity)
				r.Put("/default-tier", s.handleSetDefaultTier)
				r.Get("/rates", s.handlePreviewRates)
				r.Get("/simulate", s.handleSimulate)
				r.Post("/draws", s.handleDraw)
			})
		})

		r.Route("/players/{player}", func(r chi.Router) {
			r.Get("/pity/{banner}", s.handleGetPity)
			r.Get("/balance", s.handleBalance)
			r.Post("/deposits", s.handleDeposit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/caps", s.handleMintCap)
			r.Get("/caps", s.handleListCaps)
			r.Put("/caps/{cap}/eligible", s.handleSetEligible)
			r.Get("/system", s.handleGetSystem)
			r.Put("/limits", s.handleSetLimits)
			r.Put("/fallback-rates/{tier}", s.handleSetFallbackRate)
			r.Delete("/fallback-rates/{tier}", s.handleClearFallbackRate)
			r.Post("/migrate", s.handleMigrate)
		})
	})

	return r
}

// Handler returns the root handler; tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until Stop is called.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}
