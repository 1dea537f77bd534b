package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/imstrack/imstrack/internal/api/middleware"
	"github.com/imstrack/imstrack/internal/config"
	"github.com/imstrack/imstrack/internal/database"
	"github.com/imstrack/imstrack/internal/tracker"
)

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router  *chi.Mux
	trk     *tracker.Tracker
	cdrs    database.CDRRepository
	cfg     *config.Config
	secret  []byte // JWT signing secret; nil disables auth
	limiter *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted. A nil
// secret disables bearer auth on the control routes.
func NewServer(trk *tracker.Tracker, cdrs database.CDRRepository, cfg *config.Config, secret []byte) *Server {
	rlCfg := middleware.DefaultRateLimitConfig()
	if cfg != nil && cfg.RateLimit > 0 {
		rlCfg.Rate = rate.Limit(cfg.RateLimit)
		rlCfg.Burst = cfg.RateLimit * 2
	}

	s := &Server{
		router:  chi.NewRouter(),
		trk:     trk,
		cdrs:    cdrs,
		cfg:     cfg,
		secret:  secret,
		limiter: middleware.NewIPRateLimiter(rlCfg),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiter's background cleanup.
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

	// API routes under /api/v1.
	r.Route("/api/v1", func(r chi.Router) {
		// Unauthenticated routes.
		r.Get("/health", s.handleHealth)

		// Control routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.limiter))
			if s.secret != nil {
				r.Use(middleware.RequireAuth(s.secret))
			}

			r.Get("/state", s.handleState)
			r.Get("/calls", s.handleListCalls)
			r.Get("/usage", s.handleUsage)

			r.Post("/calls/dial", s.handleDial)
			r.Post("/calls/accept", s.handleAccept)
			r.Post("/calls/reject", s.handleReject)
			r.Post("/calls/hangup", s.handleHangup)
			r.Post("/calls/swap", s.handleSwap)
			r.Post("/calls/resume", s.handleResume)
			r.Post("/calls/conference", s.handleConference)
			r.Post("/calls/dtmf", s.handleDTMF)
			r.Post("/calls/mute", s.handleMute)
			r.Post("/calls/video/pause", s.handleVideoPause)
			r.Post("/calls/video/resume", s.handleVideoResume)
			r.Post("/calls/clear-disconnected", s.handleClearDisconnected)

			r.Route("/cdrs", func(r chi.Router) {
				r.Get("/", s.handleCDRList)
				r.Get("/{id}", s.handleCDRGet)
			})

			r.Post("/system/reload", s.handleReloadConfig)
		})
	})

	slog.Info("api routes mounted")
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState returns the tracker's diagnostic snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.trk.Dump())
}

// handleReloadConfig re-reads the carrier policy file.
func (s *Server) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.trk.ReloadCarrierConfig(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}
