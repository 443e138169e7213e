package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		errs = append(errs, "server.metricsPort must be between 0 and 65535")
	}
	if cfg.Server.RateLimit.Enabled && cfg.Server.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, "server.rateLimit.requestsPerMinute must be positive when rate limiting is enabled")
	}

	validProviders := map[string]bool{"ollama": true, "openai": true, "none": true, "": true}
	if !validProviders[cfg.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("llm.provider must be one of: ollama, openai, none (got %q)", cfg.LLM.Provider))
	}

	if cfg.LLM.Provider == "ollama" && cfg.LLM.Ollama.BaseURL == "" {
		errs = append(errs, "llm.ollama.baseURL is required when provider is ollama")
	}

	if cfg.LLM.Provider == "openai" && cfg.LLM.OpenAI.APIKey == "" {
		errs = append(errs, "llm.openai.apiKey is required when provider is openai")
	}

	if cfg.LLM.MaxToolTurns <= 0 {
		errs = append(errs, "llm.maxToolTurns must be positive")
	}

	if cfg.Agent.CacheSize < 0 {
		errs = append(errs, "agent.cacheSize must not be negative")
	}
	if cfg.Agent.CacheTTL < 0 {
		errs = append(errs, "agent.cacheTTL must not be negative")
	}

	if cfg.Prompt.MaxLogLines < 0 {
		errs = append(errs, "prompt.maxLogLines must not be negative")
	}
	if cfg.Prompt.MaxEvents < 0 {
		errs = append(errs, "prompt.maxEvents must not be negative")
	}
	if cfg.Prompt.SummaryMaxItems < 1 {
		errs = append(errs, "prompt.summaryMaxItems must be at least 1")
	}

	for idx, pattern := range cfg.Masking.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, fmt.Sprintf("invalid masking regex at index %d: %s", idx, pattern))
		}
	}

	if cfg.Kubernetes.Enabled && cfg.Kubernetes.APITimeout <= 0 {
		errs = append(errs, "kubernetes.apiTimeout must be positive")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "none": true}
	if !validDrivers[cfg.Database.Driver] {
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite, postgres or none (got %q)", cfg.Database.Driver))
	}

	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required when driver is sqlite")
	}

	if cfg.Database.Driver == "postgres" && cfg.Database.Postgres.DSN == "" && cfg.Database.Postgres.Host == "" {
		errs = append(errs, "database.postgres.dsn or database.postgres.host is required when driver is postgres")
	}

	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			errs = append(errs, "slack.botToken is required when slack is enabled")
		}
		if cfg.Slack.SocketMode && cfg.Slack.AppToken == "" {
			errs = append(errs, "slack.appToken is required when slack socket mode is enabled")
		}
	}

	if cfg.Webhook.Alertmanager.Enabled {
		validAuth := map[string]bool{"bearer": true, "hmac": true, "none": true}
		if !validAuth[cfg.Webhook.Alertmanager.AuthType] {
			errs = append(errs, fmt.Sprintf("webhook.alertmanager.authType must be bearer, hmac or none (got %q)", cfg.Webhook.Alertmanager.AuthType))
		}
		if !strings.HasPrefix(cfg.Webhook.Alertmanager.Path, "/") {
			errs = append(errs, "webhook.alertmanager.path must start with /")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn or error (got %q)", cfg.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
