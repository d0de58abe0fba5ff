package routes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"moneta/gateway/middleware"
	"moneta/native/market"
	"moneta/observability/metrics"
	"moneta/oracle"
)

// Config wires the HTTP surface to the engine and its middleware stack.
type Config struct {
	Engine        *market.Engine
	Store         market.State
	Oracle        *oracle.Board
	Logger        *slog.Logger
	Metrics       *metrics.MarketMetrics
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig

	// AdminScopes protect the governance, pause, and reserve endpoints.
	AdminScopes []string
}

// New assembles the gateway router. Read endpoints sit behind the rate
// limiter only; mutating endpoints additionally require authentication.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))

	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mr := newMarketRoutes(cfg.Engine, cfg.Store, cfg.Oracle, cfg.Logger, cfg.Metrics)
	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware())
		}
		if obs != nil {
			sr.Use(obs.Middleware("market"))
		}
		sr.Group(func(gr chi.Router) {
			if cfg.Authenticator != nil {
				gr.Use(cfg.Authenticator.Middleware())
			}
			mr.mountPublic(gr)
		})
		sr.Group(func(gr chi.Router) {
			if cfg.Authenticator != nil {
				gr.Use(cfg.Authenticator.Middleware(cfg.AdminScopes...))
			}
			mr.mountAdmin(gr)
		})
	})

	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	return r
}
