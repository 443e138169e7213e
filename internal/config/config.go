package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Agent      AgentConfig      `yaml:"agent"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Masking    MaskingConfig    `yaml:"masking"`
	Kubernetes KubernetesConfig `yaml:"kubernetes"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	Tempo      TempoConfig      `yaml:"tempo"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Slack      SlackConfig      `yaml:"slack"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            int             `yaml:"port"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	MetricsPort     int             `yaml:"metricsPort"`
	APIToken        string          `yaml:"apiToken"`
	MaxBodyBytes    int64           `yaml:"maxBodyBytes"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

type LLMConfig struct {
	// Provider selects the chat model backend: ollama, openai or none.
	// "none" runs the service in fallback mode.
	Provider     string       `yaml:"provider"`
	Ollama       OllamaConfig `yaml:"ollama"`
	OpenAI       OpenAIConfig `yaml:"openai"`
	SystemPrompt string       `yaml:"systemPrompt"`
	MaxToolTurns int          `yaml:"maxToolTurns"`
}

type OllamaConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"maxRetries"`
	Temperature float64       `yaml:"temperature"`
	ContextSize int           `yaml:"contextSize"`
}

type OpenAIConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AgentConfig struct {
	CacheSize int           `yaml:"cacheSize"`
	CacheTTL  time.Duration `yaml:"cacheTTL"`
}

type PromptConfig struct {
	TokenBudget     int `yaml:"tokenBudget"`
	MaxLogLines     int `yaml:"maxLogLines"`
	MaxEvents       int `yaml:"maxEvents"`
	SummaryMaxItems int `yaml:"summaryMaxItems"`
}

type MaskingConfig struct {
	Patterns []string `yaml:"patterns"`
}

type KubernetesConfig struct {
	Enabled      bool          `yaml:"enabled"`
	InCluster    bool          `yaml:"inCluster"`
	Kubeconfig   string        `yaml:"kubeconfig"`
	APITimeout   time.Duration `yaml:"apiTimeout"`
	EventLimit   int64         `yaml:"eventLimit"`
	LogTailLines int64         `yaml:"logTailLines"`
}

type PrometheusConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type TempoConfig struct {
	URL      string        `yaml:"url"`
	TenantID string        `yaml:"tenantID"`
	Timeout  time.Duration `yaml:"timeout"`
}

type WebhookConfig struct {
	Alertmanager WebhookSourceConfig `yaml:"alertmanager"`
}

type WebhookSourceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	Secret   string `yaml:"secret"`
	AuthType string `yaml:"authType"`
}

type SlackConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"botToken"`
	AppToken       string `yaml:"appToken"`
	DefaultChannel string `yaml:"defaultChannel"`
	// SocketMode starts the thread chat bot in addition to the notifier.
	SocketMode bool `yaml:"socketMode"`
}

type DatabaseConfig struct {
	// Driver is sqlite, postgres or none. With none, summaries and agent
	// history are not persisted.
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type PostgresConfig struct {
	// DSN overrides the individual connection fields when set.
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MetricsPort:     9090,
			MaxBodyBytes:    10 << 20,
			RateLimit:       RateLimitConfig{Enabled: false, RequestsPerMinute: 120},
		},
		LLM: LLMConfig{
			Provider:     "ollama",
			MaxToolTurns: 12,
			Ollama: OllamaConfig{
				BaseURL:     "http://localhost:11434",
				Model:       "qwen2.5:14b",
				Timeout:     180 * time.Second,
				MaxRetries:  2,
				Temperature: 0.1,
				ContextSize: 32768,
			},
			OpenAI: OpenAIConfig{
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o-mini",
				MaxTokens:   2048,
				Temperature: 0.1,
				Timeout:     120 * time.Second,
			},
		},
		Agent: AgentConfig{
			CacheSize: 128,
			CacheTTL:  0,
		},
		Prompt: PromptConfig{
			TokenBudget:     32000,
			MaxLogLines:     25,
			MaxEvents:       25,
			SummaryMaxItems: 3,
		},
		Kubernetes: KubernetesConfig{
			Enabled:      true,
			InCluster:    true,
			APITimeout:   5 * time.Second,
			EventLimit:   25,
			LogTailLines: 25,
		},
		Prometheus: PrometheusConfig{
			Timeout: 5 * time.Second,
		},
		Tempo: TempoConfig{
			Timeout: 5 * time.Second,
		},
		Webhook: WebhookConfig{
			Alertmanager: WebhookSourceConfig{
				Enabled:  true,
				Path:     "/webhooks/alertmanager",
				AuthType: "bearer",
			},
		},
		Slack: SlackConfig{
			Enabled:        false,
			DefaultChannel: "#kube-rca",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:              "/data/kube-rca-agent.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "kube_rca",
				Database:        "kube_rca",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// ConnectionString returns the pgx DSN for the configured database.
func (c *PostgresConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// EngineEnabled reports whether a chat model provider is configured.
func (c *LLMConfig) EngineEnabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}
