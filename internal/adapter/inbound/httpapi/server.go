// Package httpapi serves the agent's JSON API and the Alertmanager webhook.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi/middleware"
	"github.com/kube-rca/agent/pkg/health"
)

// Webhook authentication modes.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthHMAC   = "hmac"
)

// WebhookConfig configures the Alertmanager receiver.
type WebhookConfig struct {
	Enabled bool
	Path    string
	Secret  string
	// AuthType is none, bearer or hmac.
	AuthType string
}

// Config holds HTTP server configuration.
type Config struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	APIToken           string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	Webhook            WebhookConfig
}

// Server wraps an HTTP server with graceful shutdown support.
type Server struct {
	cfg     Config
	handler *Handler
	checker *health.Checker
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a new Server.
func NewServer(cfg Config, handler *Handler, checker *health.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		checker: checker,
		logger:  logger,
	}
}

// Routes builds the router.
//
//	GET  /, /ping, /healthz, /readyz
//	POST /analyze, /summarize-incident, /chat   (API token)
//	POST <webhook path>                         (webhook auth)
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Get("/", Root)
	r.Get("/ping", Ping)
	r.Get("/healthz", s.checker.LivenessHandler())
	r.Get("/readyz", s.checker.ReadinessHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRateLimiter(s.cfg.RateLimitPerMinute))
		r.Use(middleware.BodyReader(s.cfg.MaxBodyBytes))

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(s.cfg.APIToken))
			r.Post("/analyze", s.handler.Analyze)
			r.Post("/summarize-incident", s.handler.SummarizeIncident)
			r.Post("/chat", s.handler.Chat)
		})

		wh := s.cfg.Webhook
		if wh.Enabled && s.handler.parser != nil {
			path := wh.Path
			if path == "" {
				path = "/webhooks/" + s.handler.parser.Source()
			}
			r.Group(func(r chi.Router) {
				if strings.EqualFold(wh.AuthType, AuthBearer) {
					r.Use(middleware.BearerAuth(wh.Secret))
				}
				r.Post(path, s.handler.AlertmanagerWebhook)
			})
		}
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully and waits
// for background webhook analyses.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		s.handler.Wait()
		s.logger.Info("http server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
