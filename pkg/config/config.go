package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Ollama        OllamaConfig        `yaml:"ollama"`
	Research      ResearchConfig      `yaml:"research"`
	Retrievers    []RetrieverConfig   `yaml:"retrievers"`
	Scraper       ScraperConfig       `yaml:"scraper"`
	Documents     DocumentsConfig     `yaml:"documents"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// OllamaConfig contains Ollama-specific configuration. The planner and the
// embedding-backed vector store both talk to Ollama.
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p,omitempty"`
	TopK        int     `yaml:"top_k,omitempty"`
	Timeout     string  `yaml:"timeout"`
}

// ResearchConfig contains research pipeline configuration
type ResearchConfig struct {
	MaxSearchResultsPerQuery int    `yaml:"max_search_results_per_query"`
	MaxSubQueries            int    `yaml:"max_sub_queries"`
	MaxConcurrency           int    `yaml:"max_concurrency"`
	CurateSources            bool   `yaml:"curate_sources"`
	Verbose                  bool   `yaml:"verbose"`
	Timeout                  string `yaml:"timeout"`
}

// RetrieverConfig configures one search backend. Several backends may be
// active at once.
type RetrieverConfig struct {
	Provider string `yaml:"provider"` // "tavily", "searx"
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
}

// ScraperConfig contains scraping configuration
type ScraperConfig struct {
	Timeout        string `yaml:"timeout"`
	UserAgent      string `yaml:"user_agent"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

// DocumentsConfig contains local document configuration
type DocumentsConfig struct {
	Path string `yaml:"path"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Provider     string  `yaml:"provider"` // "otlp", "jaeger", "zipkin"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Provider     string `yaml:"provider"` // "prometheus", "otlp"
	Port         int    `yaml:"port"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	PushInterval string `yaml:"push_interval,omitempty"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
	Output string `yaml:"output"` // "stdout", "file"
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	// Override with environment variables
	config.overrideFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file or returns default config
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
		config.overrideFromEnv()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "2m",
		},
		Research: ResearchConfig{
			MaxSearchResultsPerQuery: 5,
			MaxSubQueries:            5,
			MaxConcurrency:           5,
			CurateSources:            false,
			Verbose:                  false,
			Timeout:                  "5m",
		},
		Retrievers: []RetrieverConfig{
			{Provider: "searx", Endpoint: "http://localhost:8888"},
		},
		Scraper: ScraperConfig{
			Timeout:        "30s",
			UserAgent:      "research-conductor/0.1",
			MaxConcurrency: 8,
			MaxBodyBytes:   2 << 20,
		},
		Documents: DocumentsConfig{
			Path: "./my-docs",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      true,
				Provider:     "otlp",
				Endpoint:     "localhost:4317",
				SamplingRate: 1.0,
				Insecure:     true,
			},
			Metrics: MetricsConfig{
				Enabled:      true,
				Provider:     "prometheus",
				Port:         2223,
				PushInterval: "10s",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
	}
}

// applyDefaults applies default values to missing fields
func (c *Config) applyDefaults() {
	defaults := Default()

	// Apply Ollama defaults
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaults.Ollama.Model
	}
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = defaults.Ollama.Temperature
	}
	if c.Ollama.MaxTokens == 0 {
		c.Ollama.MaxTokens = defaults.Ollama.MaxTokens
	}
	if c.Ollama.Timeout == "" {
		c.Ollama.Timeout = defaults.Ollama.Timeout
	}

	// Apply Research defaults
	if c.Research.MaxSearchResultsPerQuery == 0 {
		c.Research.MaxSearchResultsPerQuery = defaults.Research.MaxSearchResultsPerQuery
	}
	if c.Research.MaxSubQueries == 0 {
		c.Research.MaxSubQueries = defaults.Research.MaxSubQueries
	}
	if c.Research.MaxConcurrency == 0 {
		c.Research.MaxConcurrency = defaults.Research.MaxConcurrency
	}
	if c.Research.Timeout == "" {
		c.Research.Timeout = defaults.Research.Timeout
	}

	// Apply Scraper defaults
	if c.Scraper.Timeout == "" {
		c.Scraper.Timeout = defaults.Scraper.Timeout
	}
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaults.Scraper.UserAgent
	}
	if c.Scraper.MaxConcurrency == 0 {
		c.Scraper.MaxConcurrency = defaults.Scraper.MaxConcurrency
	}
	if c.Scraper.MaxBodyBytes == 0 {
		c.Scraper.MaxBodyBytes = defaults.Scraper.MaxBodyBytes
	}

	if len(c.Retrievers) == 0 {
		c.Retrievers = defaults.Retrievers
	}
	if c.Documents.Path == "" {
		c.Documents.Path = defaults.Documents.Path
	}
}

// overrideFromEnv overrides configuration from environment variables
func (c *Config) overrideFromEnv() {
	// Ollama overrides
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.Ollama.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Ollama.Model = model
	}

	// Retriever overrides
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		for i := range c.Retrievers {
			if c.Retrievers[i].Provider == "tavily" {
				c.Retrievers[i].APIKey = key
			}
		}
	}
	if url := os.Getenv("SEARX_URL"); url != "" {
		for i := range c.Retrievers {
			if c.Retrievers[i].Provider == "searx" {
				c.Retrievers[i].Endpoint = url
			}
		}
	}

	// Document overrides
	if path := os.Getenv("DOC_PATH"); path != "" {
		c.Documents.Path = path
	}

	// Observability overrides
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Tracing.Endpoint = endpoint
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	// Validate Ollama config
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama base_url is required")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama model is required")
	}

	// Validate Research config
	if c.Research.MaxSearchResultsPerQuery < 1 {
		return fmt.Errorf("research max_search_results_per_query must be at least 1")
	}
	if c.Research.MaxConcurrency < 1 {
		return fmt.Errorf("research max_concurrency must be at least 1")
	}

	// Validate retrievers
	for _, r := range c.Retrievers {
		switch r.Provider {
		case "tavily", "searx":
		default:
			return fmt.Errorf("unknown retriever provider: %q", r.Provider)
		}
	}

	// Validate timeout strings
	if _, err := time.ParseDuration(c.Research.Timeout); err != nil {
		return fmt.Errorf("invalid research timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Scraper.Timeout); err != nil {
		return fmt.Errorf("invalid scraper timeout: %w", err)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDuration parses a duration string from config
func (c *Config) GetDuration(value string) (time.Duration, error) {
	return time.ParseDuration(value)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := os.Getenv("ENVIRONMENT")
	return strings.ToLower(env) == "production" || strings.ToLower(env) == "prod"
}
