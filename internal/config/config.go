package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/notesearch/internal/domain"
)

// Config holds the notesearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Tagging   TaggingConfig   `yaml:"tagging"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Backfill  BackfillConfig  `yaml:"backfill"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Store drivers.
const (
	DriverValkey = "valkey"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// DatabaseConfig holds document store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, memory (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds index names, HNSW parameters and provisioning timing.
type IndexConfig struct {
	LexicalName      string `yaml:"lexical_name"`
	VectorName       string `yaml:"vector_name"`
	HNSWM            int    `yaml:"hnsw_m"`
	HNSWEFConstruct  int    `yaml:"hnsw_ef_construction"`
	PollIntervalSec  int    `yaml:"poll_interval_sec"`
	EnsureTimeoutSec int    `yaml:"ensure_timeout_sec"`
	VectorCandidates int    `yaml:"vector_candidates"`
}

// SearchConfig holds the search policy.
type SearchConfig struct {
	PageSize int `yaml:"page_size"`
}

// BackfillConfig holds embedding backfill settings.
type BackfillConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Embedding providers.
const (
	ProviderNone      = "none"
	ProviderOpenAI    = "openai"
	ProviderBedrock   = "bedrock"
	ProviderLangchain = "langchain"
)

// EmbeddingConfig holds embedding settings. One provider serves both
// documents and queries so that their vectors share a space.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, bedrock, langchain, none (default: none)
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Region     string `yaml:"region"`  // bedrock
	Backend    string `yaml:"backend"` // langchain: openai, ollama
	// CacheTTLSec keeps cached embeddings this long; 0 keeps them forever.
	CacheTTLSec int  `yaml:"cache_ttl_sec"`
	Cache       bool `yaml:"cache"`
}

// TaggingConfig configures LLM tag generation for new notes.
type TaggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Backend string `yaml:"backend"` // openai, ollama
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first; variables already
// set in the environment win.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverValkey
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.LexicalName == "" {
		c.Index.LexicalName = "idx:notes"
	}
	if c.Index.VectorName == "" {
		c.Index.VectorName = "idx:notes_vec"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.PollIntervalSec <= 0 {
		c.Index.PollIntervalSec = 10
	}
	if c.Index.EnsureTimeoutSec <= 0 {
		c.Index.EnsureTimeoutSec = 600
	}
	if c.Index.VectorCandidates <= 0 {
		c.Index.VectorCandidates = 100
	}
	if c.Search.PageSize <= 0 {
		c.Search.PageSize = 10
	}
	if c.Backfill.Workers <= 0 {
		c.Backfill.Workers = 4
	}
	if c.Backfill.BatchSize <= 0 {
		c.Backfill.BatchSize = 32
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderNone
	}
	if c.Tagging.Backend == "" {
		c.Tagging.Backend = "openai"
	}
}

// titanDimensions are the output sizes Titan Text Embeddings v2 supports.
var titanDimensions = map[int]struct{}{256: {}, 512: {}, 1024: {}}

// Validate checks the configuration. Every error wraps domain.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverValkey, DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	if c.Search.PageSize > 100 {
		return fmt.Errorf("search.page_size must be at most 100, got %d", c.Search.PageSize)
	}
	if c.Index.LexicalName == c.Index.VectorName {
		return fmt.Errorf("index.lexical_name and index.vector_name must differ")
	}

	if err := c.Embedding.validate(); err != nil {
		return err
	}

	if c.Tagging.Enabled {
		switch c.Tagging.Backend {
		case "openai", "ollama":
		default:
			return fmt.Errorf("unknown tagging.backend %q", c.Tagging.Backend)
		}
		if c.Tagging.Model == "" {
			return fmt.Errorf("tagging.model is required when tagging is enabled")
		}
	}
	return nil
}

func (e *EmbeddingConfig) validate() error {
	switch e.Provider {
	case ProviderNone:
		return nil
	case ProviderOpenAI:
		if e.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required for provider openai")
		}
	case ProviderBedrock:
		if e.Region == "" {
			return fmt.Errorf("embedding.region is required for provider bedrock")
		}
		if _, ok := titanDimensions[e.Dimensions]; !ok {
			return fmt.Errorf("embedding.dimensions %d not supported by bedrock (256, 512 or 1024)", e.Dimensions)
		}
	case ProviderLangchain:
		switch e.Backend {
		case "openai", "ollama":
		default:
			return fmt.Errorf("unknown embedding.backend %q", e.Backend)
		}
	default:
		return fmt.Errorf("unknown embedding.provider %q", e.Provider)
	}

	if e.Model == "" {
		return fmt.Errorf("embedding.model is required for provider %s", e.Provider)
	}
	if e.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", e.Dimensions)
	}
	return nil
}

// PollInterval returns the index poll interval.
func (c *IndexConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// EnsureTimeout returns how long provisioning waits for an index.
func (c *IndexConfig) EnsureTimeout() time.Duration {
	return time.Duration(c.EnsureTimeoutSec) * time.Second
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
