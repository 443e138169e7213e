package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi"
	"github.com/kube-rca/agent/internal/adapter/inbound/httpapi/parser"
	"github.com/kube-rca/agent/internal/adapter/inbound/slackbot"
	"github.com/kube-rca/agent/internal/config"
	"github.com/kube-rca/agent/pkg/health"
	"github.com/kube-rca/agent/pkg/version"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, metrics server and optional Slack bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing resources", "error", err)
		}
	}()

	rateLimit := 0
	if cfg.Server.RateLimit.Enabled {
		rateLimit = cfg.Server.RateLimit.RequestsPerMinute
	}
	wh := cfg.Webhook.Alertmanager
	webhook := httpapi.WebhookConfig{
		Enabled:  wh.Enabled,
		Path:     wh.Path,
		Secret:   wh.Secret,
		AuthType: wh.AuthType,
	}
	handler := httpapi.NewHandler(a.service, parser.NewAlertManagerParser(), webhook, logger)
	apiServer := httpapi.NewServer(httpapi.Config{
		Port:               cfg.Server.Port,
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		ShutdownTimeout:    cfg.Server.ShutdownTimeout,
		APIToken:           cfg.Server.APIToken,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		RateLimitPerMinute: rateLimit,
		Webhook:            webhook,
	}, handler, a.checker, logger)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Start(gCtx)
	})

	if cfg.Server.MetricsPort > 0 {
		g.Go(func() error {
			return runMetricsServer(gCtx, cfg.Server.MetricsPort, cfg.Server.ShutdownTimeout, a.checker, logger)
		})
	}

	if cfg.Slack.Enabled && cfg.Slack.SocketMode {
		g.Go(func() error {
			logger.Info("starting slack bot")
			bot := slackbot.NewBot(slackbot.Config{
				BotToken: cfg.Slack.BotToken,
				AppToken: cfg.Slack.AppToken,
			}, a.service, logger)
			if err := bot.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("slack bot: %w", err)
			}
			return nil
		})
	} else {
		logger.Info("slack bot disabled")
	}

	logger.Info("kube-rca-agent started",
		"version", version.Version,
		"port", cfg.Server.Port,
		"engine", a.service.EngineEnabled(),
	)

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		return err
	}
	logger.Info("kube-rca-agent stopped")
	return nil
}

// runMetricsServer serves Prometheus metrics and probes on a separate port.
func runMetricsServer(ctx context.Context, port int, shutdownTimeout time.Duration, checker *health.Checker, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting metrics server", "port", port)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		if shutdownTimeout <= 0 {
			shutdownTimeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
