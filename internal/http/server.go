package http

import (
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/config"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type Server struct {
	cfg      config.Config
	logger   slog.Logger
	store    *db.Store
	redis    *redis.Client
	metrics  *metrics
	registry *prometheus.Registry
	now      func() time.Time
}

// NewServer builds the aggregator API. redisClient may be nil, which turns
// off Idempotency-Key handling.
func NewServer(cfg config.Config, logger slog.Logger, store *db.Store, redisClient *redis.Client, registry *prometheus.Registry) (*Server, error) {
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		redis:    redisClient,
		metrics:  m,
		registry: registry,
		now:      time.Now,
	}, nil
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", idempotencyHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.cfg.RateLimitPerMinute > 0 {
				r.Use(httprate.Limit(
					s.cfg.RateLimitPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
						writeError(w, http.StatusTooManyRequests, "rate_limited")
					}),
				))
			}
			r.Post("/devices", s.handleRegisterDevice)
			r.Post("/devices/{deviceId}/link-user", s.handleLinkUser)
			r.Post("/usage", s.handleLogUsage)
			r.Post("/cognitive-health", s.handleComputeSnapshot)
			r.Post("/auth/register", s.handleRegister)
			r.Post("/auth/login", s.handleLogin)
			r.With(s.authMiddleware).Post("/user/profile", s.handleUpdateProfile)
		})

		r.Get("/devices", s.handleListDevices)
		r.Get("/services", s.handleListServices)

		r.Get("/usage/stats", s.handleUsageStats)
		r.Get("/usage/summary", s.handleUsageSummary)
		r.Get("/usage/monthly", s.handleUsageMonthly)

		r.Get("/cognitive-health/{userId}", s.handleListSnapshots)
		r.Get("/brain-impact/{userId}", s.handleBrainImpact)

		r.Get("/auth/user/{userId}", s.handleGetUser)
		r.Get("/user/profile/{id}", s.handleGetProfile)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/suggestions", s.handleSuggestTasks)
	})

	return r
}
