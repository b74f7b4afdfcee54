package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Proxy       ProxyConfig      `toml:"proxy"`
	Scraper     ScraperConfig    `toml:"scraper"`
	Enrichment  EnrichmentConfig `toml:"enrichment"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
	OpenAI      OpenAIConfig     `toml:"openai"`
	Database    DatabaseConfig   `toml:"database"`
	SeenStore   SeenStoreConfig  `toml:"seen_store"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// ProxyConfig contains rotating-proxy provider configuration
type ProxyConfig struct {
	Enabled        bool          `toml:"enabled"`         // Route browser traffic through a proxy
	ProviderURL    string        `toml:"provider_url"`    // Proxy list provider endpoint
	APIKey         string        `toml:"api_key"`         // Provider token
	RequestTimeout time.Duration `toml:"request_timeout"` // Provider fetch timeout
}

// ScraperConfig contains browser scraping configuration for the company directory
type ScraperConfig struct {
	TargetURL           string        `toml:"target_url"`            // Company listing page
	ProbeURL            string        `toml:"probe_url"`             // Known-good endpoint for proxy connectivity probes
	Headless            bool          `toml:"headless"`              // Run Chrome headless
	NavigationTimeout   time.Duration `toml:"navigation_timeout"`    // Timeout for page navigation
	ResultsTimeout      time.Duration `toml:"results_timeout"`       // Timeout waiting for the results region
	SettleDelay         time.Duration `toml:"settle_delay"`          // Wait after scroll/click before re-measuring
	StallBudget         int           `toml:"stall_budget"`          // Scroll attempts with no new content before giving up
	MinStructuralCount  int           `toml:"min_structural_count"`  // Below this, the script fallback strategy is tried
	MaxSessionAttempts  int           `toml:"max_session_attempts"`  // Browser sessions to attempt before failing the run
	PageLimit           int           `toml:"page_limit"`            // Hard limit on scroll pages (0 = unlimited)
	CompanyCap          int           `toml:"company_cap"`           // Max companies to extract per run (0 = unlimited)
	ScreenshotDir       string        `toml:"screenshot_dir"`        // Directory for failure screenshots (empty = disabled)
	ScraperVersion      string        `toml:"scraper_version"`       // Stamped into scraper metadata
}

// EnrichmentConfig controls the embedding and AI-synthesis stages
type EnrichmentConfig struct {
	EnableEmbeddings    bool   `toml:"enable_embeddings"`    // Compute embeddings per record
	EnableAIInsights    bool   `toml:"enable_ai_insights"`   // Request AI synthesis per record
	Provider            string `toml:"provider"`             // Synthesis provider: "claude" or "gemini"
	EmbeddingProvider   string `toml:"embedding_provider"`   // "gemini" or "openai"
	EmbeddingDimensions int    `toml:"embedding_dimensions"` // Vector dimensionality (default 1536)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for synthesis (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 1024)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between requests (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.3)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Model for synthesis (default: "gemini-2.0-flash")
	EmbeddingModel string  `toml:"embedding_model"` // Model for embeddings (default: "text-embedding-004")
	Timeout        string  `toml:"timeout"`         // Operation timeout as duration string (default: "2m")
	RateLimit      string  `toml:"rate_limit"`      // Minimum interval between requests (default: "4s")
	Temperature    float32 `toml:"temperature"`     // Completion temperature (default: 0.3)
}

// OpenAIConfig contains configuration for an OpenAI-compatible embedding endpoint
type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`        // Default: "https://api.openai.com/v1"
	EmbeddingModel string `toml:"embedding_model"` // Default: "text-embedding-3-small"
	Timeout        string `toml:"timeout"`         // Request timeout (default: "30s")
}

// DatabaseConfig contains hybrid store connection settings
type DatabaseConfig struct {
	ServiceURL string `toml:"service_url"` // Postgres DSN for the pgvector store
	TableName  string `toml:"table_name"`  // Default table for company records
}

// SeenStoreConfig contains configuration for the durable cross-run URL seen-set
type SeenStoreConfig struct {
	Path string `toml:"path"` // Badger database directory
}

// SchedulerConfig contains periodic pipeline configuration
type SchedulerConfig struct {
	Enabled  bool          `toml:"enabled"`
	Interval time.Duration `toml:"interval"` // Interval between runs
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability;
// only user-facing settings should be exposed in launchradar.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Proxy: ProxyConfig{
			Enabled:        true,
			ProviderURL:    "https://proxy.webshare.io/api/v2/proxy/list/?mode=direct&page=1&page_size=100",
			APIKey:         "", // User must provide provider token in config file
			RequestTimeout: 15 * time.Second,
		},
		Scraper: ScraperConfig{
			TargetURL:          "https://www.ycombinator.com/companies",
			ProbeURL:           "https://httpbin.org/ip",
			Headless:           true,
			NavigationTimeout:  60 * time.Second,
			ResultsTimeout:     30 * time.Second,
			SettleDelay:        2 * time.Second,
			StallBudget:        3,
			MinStructuralCount: 10, // Below this the in-page script fallback is tried
			MaxSessionAttempts: 3,
			PageLimit:          0,
			CompanyCap:         0,
			ScraperVersion:     "2.0",
		},
		Enrichment: EnrichmentConfig{
			EnableEmbeddings:    true,
			EnableAIInsights:    true,
			Provider:            "claude",
			EmbeddingProvider:   "openai",
			EmbeddingDimensions: 1536,
		},
		Claude: ClaudeConfig{
			APIKey:      "",
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   1024,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		Gemini: GeminiConfig{
			APIKey:         "",
			Model:          "gemini-2.0-flash",
			EmbeddingModel: "text-embedding-004",
			Timeout:        "2m",
			RateLimit:      "4s", // 15 RPM free tier
			Temperature:    0.3,
		},
		OpenAI: OpenAIConfig{
			APIKey:         "",
			BaseURL:        "https://api.openai.com/v1",
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        "30s",
		},
		Database: DatabaseConfig{
			ServiceURL: "",
			TableName:  "ycombinator_companies",
		},
		SeenStore: SeenStoreConfig{
			Path: "./data/seen",
		},
		Scheduler: SchedulerConfig{
			Enabled:  false, // Disabled by default - user must explicitly opt-in
			Interval: 24 * time.Hour,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LAUNCHRADAR_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("LAUNCHRADAR_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LAUNCHRADAR_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("LAUNCHRADAR_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Proxy provider configuration
	if providerURL := os.Getenv("LAUNCHRADAR_PROXY_PROVIDER_URL"); providerURL != "" {
		config.Proxy.ProviderURL = providerURL
	}
	if apiKey := os.Getenv("LAUNCHRADAR_PROXY_API_KEY"); apiKey != "" {
		config.Proxy.APIKey = apiKey
	}
	if enabled := os.Getenv("LAUNCHRADAR_PROXY_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Proxy.Enabled = b
		}
	}

	// Scraper configuration
	if targetURL := os.Getenv("LAUNCHRADAR_SCRAPER_TARGET_URL"); targetURL != "" {
		config.Scraper.TargetURL = targetURL
	}
	if headless := os.Getenv("LAUNCHRADAR_SCRAPER_HEADLESS"); headless != "" {
		if b, err := strconv.ParseBool(headless); err == nil {
			config.Scraper.Headless = b
		}
	}
	if cap := os.Getenv("LAUNCHRADAR_SCRAPER_COMPANY_CAP"); cap != "" {
		if c, err := strconv.Atoi(cap); err == nil {
			config.Scraper.CompanyCap = c
		}
	}
	if attempts := os.Getenv("LAUNCHRADAR_SCRAPER_MAX_SESSION_ATTEMPTS"); attempts != "" {
		if a, err := strconv.Atoi(attempts); err == nil {
			config.Scraper.MaxSessionAttempts = a
		}
	}

	// Provider API keys (standard variable names take precedence over nothing,
	// config file values still win over these only when env is unset)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	// Database configuration
	if serviceURL := os.Getenv("LAUNCHRADAR_DATABASE_URL"); serviceURL != "" {
		config.Database.ServiceURL = serviceURL
	}
	if tableName := os.Getenv("LAUNCHRADAR_DATABASE_TABLE"); tableName != "" {
		config.Database.TableName = tableName
	}

	// Scheduler configuration
	if interval := os.Getenv("LAUNCHRADAR_SCHEDULER_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Scheduler.Interval = d
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate performs basic sanity checks on the resolved configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.MaxSessionAttempts <= 0 {
		return fmt.Errorf("max_session_attempts must be greater than 0, got: %d", c.Scraper.MaxSessionAttempts)
	}
	if c.Scraper.StallBudget <= 0 {
		return fmt.Errorf("stall_budget must be greater than 0, got: %d", c.Scraper.StallBudget)
	}
	if c.Enrichment.EmbeddingDimensions <= 0 {
		return fmt.Errorf("embedding_dimensions must be greater than 0, got: %d", c.Enrichment.EmbeddingDimensions)
	}
	return nil
}
