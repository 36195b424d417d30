package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/routepbx/routepbx/internal/api/middleware"
	"github.com/routepbx/routepbx/internal/config"
	"github.com/routepbx/routepbx/internal/database"
	"github.com/routepbx/routepbx/internal/dialplan"
	"github.com/routepbx/routepbx/internal/realtime"
	"github.com/routepbx/routepbx/internal/tenant"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router  *chi.Mux
	store   *database.Store
	cfg     *config.Config
	engine  *dialplan.Engine
	tenants *tenant.Resolver
	ws      *realtime.Handler
	metrics http.Handler
	limiter *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted. The realtime
// and metrics handlers may be nil when their subsystems are disabled.
func NewServer(store *database.Store, cfg *config.Config, engine *dialplan.Engine, tenants *tenant.Resolver, ws *realtime.Handler, metrics http.Handler) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   store,
		cfg:     cfg,
		engine:  engine,
		tenants: tenants,
		ws:      ws,
		metrics: metrics,
		limiter: middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background resources owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(false))
	if origins := middleware.ParseCORSOrigins(s.cfg.CORSOrigins); len(origins) > 0 {
		r.Use(middleware.CORS(origins))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// The switch queries this endpoint for dialplan, directory and
	// configuration documents. Not rate limited: one call setup can fan
	// out into several queries.
	r.Get("/xmlcurl", s.handleXMLCurl)
	r.Post("/xmlcurl", s.handleXMLCurl)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.limiter))
		r.Post("/cdrs", s.handleCDRIngest)
		r.Get("/cdrs/{uuid}", s.handleCDRGet)
	})

	if s.ws != nil {
		r.Get("/ws/registrations", s.ws.Registrations)
		r.Get("/ws/calls", s.ws.Calls)
	}
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
