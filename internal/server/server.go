// Package server exposes the backend's HTTP API: aggregated account reads,
// the phase/vs overlays, the trade proxy, and the Versus workflow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/accountmap"
	"github.com/sinfolonokojo/mt5-backend/internal/agentclient"
	"github.com/sinfolonokojo/mt5-backend/internal/agentregistry"
	"github.com/sinfolonokojo/mt5-backend/internal/aggregator"
	"github.com/sinfolonokojo/mt5-backend/internal/authtoken"
	"github.com/sinfolonokojo/mt5-backend/internal/cache"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
	"github.com/sinfolonokojo/mt5-backend/internal/scheduler"
	"github.com/sinfolonokojo/mt5-backend/internal/sinks"
	"github.com/sinfolonokojo/mt5-backend/internal/store"
	"github.com/sinfolonokojo/mt5-backend/internal/versus"
)

// Config wires every collaborator the API surface needs.
type Config struct {
	Port           int
	Host           string
	AllowedOrigins []string
	DevMode        bool

	TradingEnabled bool
	VersusEnabled  bool

	Tokens *authtoken.Issuer
	// LoginPassword is the password POST /api/auth/login checks; when it is
	// empty, every login is rejected.
	LoginPassword string

	Registry     *agentregistry.Registry
	Aggregator   *aggregator.Aggregator
	AccountMap   *accountmap.Map
	SmartCache   *cache.Cache
	PhaseStore   *store.PhaseStore
	VSStore      *store.VSGroupStore
	VersusStore  *store.VersusStore
	TradeHistory *store.TradeHistoryStore
	Engine       *versus.Engine
	Spreadsheet  *sinks.Spreadsheet
	Chat         *sinks.Chat
	Bus          *events.Bus
	// Scheduler is optional; when set, /api/scheduler/status reports the
	// background jobs' last-run outcome.
	Scheduler *scheduler.Scheduler

	NewAgentClient func(baseURL string) *agentclient.Client

	Log zerolog.Logger
}

// Server is the HTTP façade over the orchestrator's domain components.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New builds a Server, wiring middleware and routes.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Get("/verify", s.handleVerify)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/accounts", s.handleGetAccounts)
		r.Get("/accounts/{id}", s.handleGetAccount)
		r.Get("/agents/status", s.handleAgentStatus)
		r.Put("/accounts/{id}/phase", s.handleUpdatePhase)
		r.Put("/accounts/{id}/vs", s.handleUpdateVS)
		r.Get("/accounts/{id}/trade-history", s.handleTradeHistory)
		r.Get("/accounts/{id}/trade-history/sync", s.handleTradeHistorySync)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/sheets/sync", s.handleSheetsSync)
		r.Get("/scheduler/status", s.handleSchedulerStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireFeature(func() bool { return s.cfg.TradingEnabled }))
			r.Post("/accounts/{id}/trade/open", s.handleTradeOpen)
			r.Post("/accounts/{id}/trade/close", s.handleTradeClose)
			r.Put("/accounts/{id}/trade/modify", s.handleTradeModify)
		})
		r.Get("/accounts/{id}/positions", s.handlePositions)

		r.Route("/versus", func(r chi.Router) {
			r.Get("/feature-status", s.handleVersusFeatureStatus)
			r.Group(func(r chi.Router) {
				r.Use(s.requireFeature(func() bool { return s.cfg.VersusEnabled }))
				r.Get("/", s.handleListVersus)
				r.Post("/", s.handleCreateVersus)
				r.Delete("/{id}", s.handleDeleteVersus)
				r.Post("/{id}/congelar", s.handleCongelar)
				r.Post("/{id}/transferir", s.handleTransferir)
			})
		})
	})

	if s.cfg.Chat != nil {
		s.router.Handle("/ws/chat", s.cfg.Chat)
	}
}

// Start runs the HTTP server until it errors or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "mt5-backend", "status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
