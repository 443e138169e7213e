package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Server defaults
	if cfg.Server.Port != 8000 {
		t.Errorf("expected server.port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort != 9090 {
		t.Errorf("expected server.metricsPort 9090, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("expected server.shutdownTimeout 15s, got %v", cfg.Server.ShutdownTimeout)
	}

	// Agent cache defaults
	if cfg.Agent.CacheSize != 128 {
		t.Errorf("expected agent.cacheSize 128, got %d", cfg.Agent.CacheSize)
	}
	if cfg.Agent.CacheTTL != 0 {
		t.Errorf("expected agent.cacheTTL 0, got %v", cfg.Agent.CacheTTL)
	}

	// Prompt defaults
	if cfg.Prompt.TokenBudget != 32000 {
		t.Errorf("expected prompt.tokenBudget 32000, got %d", cfg.Prompt.TokenBudget)
	}
	if cfg.Prompt.MaxLogLines != 25 || cfg.Prompt.MaxEvents != 25 {
		t.Errorf("expected prompt caps 25/25, got %d/%d", cfg.Prompt.MaxLogLines, cfg.Prompt.MaxEvents)
	}
	if cfg.Prompt.SummaryMaxItems != 3 {
		t.Errorf("expected prompt.summaryMaxItems 3, got %d", cfg.Prompt.SummaryMaxItems)
	}

	// Kubernetes defaults
	if cfg.Kubernetes.APITimeout != 5*time.Second {
		t.Errorf("expected kubernetes.apiTimeout 5s, got %v", cfg.Kubernetes.APITimeout)
	}
	if cfg.Kubernetes.EventLimit != 25 || cfg.Kubernetes.LogTailLines != 25 {
		t.Errorf("expected kubernetes limits 25/25, got %d/%d", cfg.Kubernetes.EventLimit, cfg.Kubernetes.LogTailLines)
	}

	if cfg.Prometheus.Timeout != 5*time.Second {
		t.Errorf("expected prometheus.timeout 5s, got %v", cfg.Prometheus.Timeout)
	}

	// LLM defaults
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected llm.provider ollama, got %q", cfg.LLM.Provider)
	}
	if !cfg.LLM.EngineEnabled() {
		t.Error("expected engine enabled by default")
	}

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected database.driver sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected logging.level info, got %q", cfg.Logging.Level)
	}
}

func TestLoad(t *testing.T) {
	yaml := `
server:
  port: 9000
  metricsPort: 9091
llm:
  provider: ollama
  ollama:
    baseURL: "http://ollama:11434"
    model: "llama3.1:8b"
agent:
  cacheSize: 4
  cacheTTL: 10m
prompt:
  tokenBudget: 1000
masking:
  patterns:
    - "token-\\d+"
database:
  driver: sqlite
  sqlite:
    path: "/tmp/test.db"
`
	f := writeTempYAML(t, yaml)

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Ollama.Model != "llama3.1:8b" {
		t.Errorf("expected ollama model llama3.1:8b, got %q", cfg.LLM.Ollama.Model)
	}
	if cfg.Agent.CacheSize != 4 || cfg.Agent.CacheTTL != 10*time.Minute {
		t.Errorf("unexpected agent config: %+v", cfg.Agent)
	}
	if cfg.Prompt.TokenBudget != 1000 {
		t.Errorf("expected tokenBudget 1000, got %d", cfg.Prompt.TokenBudget)
	}
	if len(cfg.Masking.Patterns) != 1 || cfg.Masking.Patterns[0] != `token-\d+` {
		t.Errorf("unexpected masking patterns: %v", cfg.Masking.Patterns)
	}
	// Verify defaults still apply to unset fields
	if cfg.Prompt.MaxEvents != 25 {
		t.Errorf("expected default maxEvents 25, got %d", cfg.Prompt.MaxEvents)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	f := writeTempYAML(t, ":::invalid yaml:::")
	_, err := Load(f)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret-token-123")
	t.Setenv("TEST_PORT", "9999")

	input := "token: ${TEST_TOKEN}\nport: ${TEST_PORT}\nmissing: ${MISSING_VAR}"
	result := expandEnvVars(input)

	if result != "token: secret-token-123\nport: 9999\nmissing: ${MISSING_VAR}" {
		t.Errorf("unexpected expansion result:\n%s", result)
	}
}

func TestExpandEnvVars_InLoad(t *testing.T) {
	t.Setenv("KUBE_RCA_PG_DSN", "postgres://u:p@db:5432/rca")

	yaml := `
database:
  driver: postgres
  postgres:
    dsn: "${KUBE_RCA_PG_DSN}"
`
	f := writeTempYAML(t, yaml)

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if got := cfg.Database.Postgres.ConnectionString(); got != "postgres://u:p@db:5432/rca" {
		t.Errorf("expected env-expanded dsn, got %q", got)
	}
}

func TestPostgresConnectionString(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: 5432, User: "rca", Password: "p@ss", Database: "kube", SSLMode: "disable"}

	got := pg.ConnectionString()
	want := "postgres://rca:p%40ss@db:5432/kube?sslmode=disable"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("expected valid config to pass validation, got: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, 99999} {
		cfg := DefaultConfig()
		cfg.Server.Port = port
		if err := Validate(cfg); err == nil {
			t.Errorf("expected validation error for port %d, got nil", port)
		}
	}
}

func TestValidate_InvalidProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "unknown"

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for unknown provider, got nil")
	}
}

func TestValidate_NoneProviderDisablesEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "none"

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected provider none to be valid, got %v", err)
	}
	if cfg.LLM.EngineEnabled() {
		t.Error("expected engine disabled for provider none")
	}
}

func TestValidate_OpenAIRequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Provider = "openai"
	cfg.LLM.OpenAI.APIKey = ""

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for missing openai API key, got nil")
	}
}

func TestValidate_InvalidMaskingRegex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Masking.Patterns = []string{`ok-\d+`, `bad(`}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid regex, got nil")
	}
	if !strings.Contains(err.Error(), "invalid masking regex at index 1: bad(") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestValidate_SummaryMaxItemsAtLeastOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Prompt.SummaryMaxItems = 0

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for summaryMaxItems 0, got nil")
	}
}

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Driver = "mongodb"

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for unknown driver, got nil")
	}
}

func TestValidate_SlackRequiresTokens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Slack.Enabled = true
	cfg.Slack.SocketMode = true

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for missing slack tokens, got nil")
	}
	if !strings.Contains(err.Error(), "slack.botToken") || !strings.Contains(err.Error(), "slack.appToken") {
		t.Errorf("expected both token errors, got: %v", err)
	}
}

// writeTempYAML writes content to a temp file and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	f := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp yaml: %v", err)
	}
	return f
}
