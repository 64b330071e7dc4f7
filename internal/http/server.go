package httpserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ratemate/ratemate/internal/config"
	"github.com/ratemate/ratemate/internal/match"
	"github.com/ratemate/ratemate/internal/payment"
	"github.com/ratemate/ratemate/internal/profile"
	"github.com/ratemate/ratemate/internal/ratelimit"
	"github.com/ratemate/ratemate/internal/rating"
	"github.com/ratemate/ratemate/internal/store"
)

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg        config.Config
	store      *store.Store
	profiles   *profile.Service
	selector   *match.Selector
	aggregator *rating.Aggregator
	poller     *payment.Poller
	submitGate *ratelimit.Gate
	ratersGate *ratelimit.Gate
	logger     *log.Logger
	router     chi.Router
	httpSrv    *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, st *store.Store, profiles *profile.Service, selector *match.Selector, aggregator *rating.Aggregator, poller *payment.Poller, logger *log.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:        cfg,
		store:      st,
		profiles:   profiles,
		selector:   selector,
		aggregator: aggregator,
		poller:     poller,
		submitGate: ratelimit.New(),
		ratersGate: ratelimit.New(),
		logger:     logger,
		router:     r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/leaderboard", s.handleLeaderboard)
	s.router.Get("/stats", s.handleStats)
	s.router.Route("/profiles", func(r chi.Router) {
		r.Post("/", s.handleRegister)
		r.Get("/", s.handleSearch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProfile)
			r.Get("/candidate", s.handleCandidate)
			r.Post("/ratings", s.handleSubmitRating)
			r.Get("/raters", s.handleRaters)
			r.Post("/block", s.handleSetBlocked(true))
			r.Post("/unblock", s.handleSetBlocked(false))
			r.Post("/vip", s.handleSetVIP(true))
			r.Delete("/vip", s.handleSetVIP(false))
			r.Post("/quota", s.handleGrantQuota)
		})
	})
	s.router.Route("/payments", func(r chi.Router) {
		r.Post("/", s.handleCreatePayment)
		r.Get("/{billId}", s.handlePaymentStatus)
	})
}

// Start boots the HTTP server asynchronously.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.HealthCheck(ctx); err != nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}
