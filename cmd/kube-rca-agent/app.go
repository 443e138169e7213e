package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kube-rca/agent/internal/adapter/outbound/kubernetes"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/agent"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/ollama"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/openai"
	"github.com/kube-rca/agent/internal/adapter/outbound/llm/tools"
	"github.com/kube-rca/agent/internal/adapter/outbound/notification"
	slacknotifier "github.com/kube-rca/agent/internal/adapter/outbound/notification/slack"
	"github.com/kube-rca/agent/internal/adapter/outbound/persistence/postgres"
	"github.com/kube-rca/agent/internal/adapter/outbound/persistence/sqlite"
	"github.com/kube-rca/agent/internal/adapter/outbound/prometheus"
	"github.com/kube-rca/agent/internal/adapter/outbound/tempo"
	"github.com/kube-rca/agent/internal/agentcache"
	"github.com/kube-rca/agent/internal/config"
	"github.com/kube-rca/agent/internal/domain/port/outbound"
	"github.com/kube-rca/agent/internal/domain/service"
	"github.com/kube-rca/agent/internal/masking"
	"github.com/kube-rca/agent/pkg/health"
)

// app holds the wired analysis service and everything that must be closed.
type app struct {
	service *service.AnalysisService
	checker *health.Checker
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildApp wires adapters into the analysis service. Optional collaborators
// that fail to start are logged and left out so the service runs degraded.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{checker: health.NewChecker()}

	masker, err := masking.New(cfg.Masking.Patterns)
	if err != nil {
		return nil, fmt.Errorf("creating masker: %w", err)
	}

	// --- Kubernetes ---
	var (
		reader    outbound.ClusterReader = kubernetes.UnavailableReader{}
		collector outbound.ContextCollector
	)
	if cfg.Kubernetes.Enabled {
		clients, err := kubernetes.NewClients(cfg.Kubernetes.InCluster, cfg.Kubernetes.Kubeconfig)
		if err != nil {
			logger.Warn("kubernetes clients unavailable, collecting without cluster access", "error", err)
		} else {
			r := kubernetes.NewReader(clients, kubernetes.ReaderConfig{
				Timeout:      cfg.Kubernetes.APITimeout,
				EventLimit:   cfg.Kubernetes.EventLimit,
				LogTailLines: cfg.Kubernetes.LogTailLines,
			})
			reader = r
			collector = kubernetes.NewCollector(r, logger)
			a.checker.Register("kubernetes", r.Ping)
		}
	}

	// --- Observability backends ---
	prom, err := prometheus.New(cfg.Prometheus.URL, cfg.Prometheus.Timeout, logger)
	if err != nil {
		return nil, err
	}
	traces := tempo.New(cfg.Tempo.URL, cfg.Tempo.TenantID, cfg.Tempo.Timeout, logger)

	// --- Stores ---
	var (
		summaries outbound.SummaryStore
		messages  outbound.MessageStore
	)
	switch cfg.Database.Driver {
	case "sqlite":
		store, err := sqlite.NewStore(ctx, sqlite.Config{
			Path:              cfg.Database.SQLite.Path,
			MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
			PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
			PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.checker.Register("database", store.Ping)
		summaries, messages = sqlite.NewSummaryRepo(store), sqlite.NewMessageRepo(store)
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:             cfg.Database.Postgres.ConnectionString(),
			MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.checker.Register("database", store.Ping)
		summaries, messages = postgres.NewSummaryRepo(store), postgres.NewMessageRepo(store)
	default:
		logger.Info("persistence disabled, summaries and agent history are kept nowhere")
	}

	// --- Analysis engine ---
	var agents *agentcache.Cache
	if cfg.LLM.EngineEnabled() {
		chat, err := newChatModel(cfg.LLM, a.checker)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		registry := tools.NewRegistry(masker, logger, tools.Build(reader, prom, traces)...)
		factory, err := agent.NewFactory(chat, registry, messages, agent.Config{
			SystemPrompt: cfg.LLM.SystemPrompt,
			MaxToolTurns: cfg.LLM.MaxToolTurns,
		}, logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating agent factory: %w", err)
		}
		agents, err = agentcache.New(agentcache.Config{
			Capacity: cfg.Agent.CacheSize,
			TTL:      cfg.Agent.CacheTTL,
		}, factory)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("creating agent cache: %w", err)
		}
		logger.Info("analysis engine enabled", "provider", cfg.LLM.Provider, "tools", len(registry.Names()))
	} else {
		logger.Warn("analysis engine disabled, every answer is a fallback")
	}

	// --- Notifier ---
	var notifier outbound.Notifier = notification.NewNoopNotifier(logger)
	if cfg.Slack.Enabled {
		notifier = slacknotifier.NewNotifier(slacknotifier.Config{
			BotToken:       cfg.Slack.BotToken,
			DefaultChannel: cfg.Slack.DefaultChannel,
		})
	}

	svc, err := service.NewAnalysisService(service.Dependencies{
		Collector: collector,
		Agents:    agents,
		Summaries: summaries,
		Notifier:  notifier,
		Masker:    masker,
	}, service.Config{
		TokenBudget:       cfg.Prompt.TokenBudget,
		MaxEvents:         cfg.Prompt.MaxEvents,
		MaxLogLines:       cfg.Prompt.MaxLogLines,
		SummaryMaxItems:   cfg.Prompt.SummaryMaxItems,
		KubernetesEnabled: collector != nil,
		PrometheusEnabled: prom.Enabled(),
		TempoEnabled:      traces.Enabled(),
		NotifyChannel:     cfg.Slack.DefaultChannel,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.service = svc
	return a, nil
}

func newChatModel(cfg config.LLMConfig, checker *health.Checker) (agent.ChatModel, error) {
	switch cfg.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     cfg.OpenAI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		return client, nil
	default:
		client := ollama.NewClient(ollama.Config{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Timeout:     cfg.Ollama.Timeout,
			MaxRetries:  cfg.Ollama.MaxRetries,
			Temperature: cfg.Ollama.Temperature,
			ContextSize: cfg.Ollama.ContextSize,
		})
		checker.Register("llm", client.HealthCheck)
		return client, nil
	}
}
