// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Build, Search, Postgres, Kafka, Redis, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Output layout inside Build.OutDir.
const (
	IndexFileName       = "search-index.bin"
	RenderCacheFileName = "document-render-cache.bin"
	PagesDirName        = "rendered-pages"
	LockFileName        = ".build.lock"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Build    BuildConfig    `yaml:"build"`
	Search   SearchConfig   `yaml:"search"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
}

// BuildConfig controls the index builder: where lectures are read from,
// where the index and rendered pages go, and how much work runs in parallel.
type BuildConfig struct {
	LessonsDir    string   `yaml:"lessonsDir"`
	OutDir        string   `yaml:"outDir"`
	RenderScale   float64  `yaml:"renderScale"`
	Workers       int      `yaml:"workers"`
	RenderWorkers int      `yaml:"renderWorkers"`
	Variants      []string `yaml:"variants"`
	JPEGQuality   int      `yaml:"jpegQuality"`
	FailFast      bool     `yaml:"failFast"`
	SynonymsFile  string   `yaml:"synonymsFile"`
}

// IndexPath is where the builder writes the search index.
func (b BuildConfig) IndexPath() string { return filepath.Join(b.OutDir, IndexFileName) }

// RenderCachePath is where the builder keeps the render cache.
func (b BuildConfig) RenderCachePath() string { return filepath.Join(b.OutDir, RenderCacheFileName) }

// PagesDir is where rendered page images are stored.
func (b BuildConfig) PagesDir() string { return filepath.Join(b.OutDir, PagesDirName) }

// SearchConfig controls query execution limits and the HTTP surface of the
// searcher.
type SearchConfig struct {
	IndexPath    string          `yaml:"indexPath"`
	DefaultLimit int             `yaml:"defaultLimit"`
	MaxResults   int             `yaml:"maxResults"`
	CORSOrigin   string          `yaml:"corsOrigin"`
	PagesDir     string          `yaml:"pagesDir"`
	WatchIndex   bool            `yaml:"watchIndex"`
	CacheSize    int             `yaml:"cacheSize"`
	SynonymsFile string          `yaml:"synonymsFile"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig is a per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// PostgresConfig holds PostgreSQL connection parameters. Build reports are
// only persisted when Host is set.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool { return p.Host != "" }

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Events are only
// produced and consumed when Brokers is non-empty.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters. The shared
// query cache is used only when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls span logging.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if cfg.Search.IndexPath == "" {
		cfg.Search.IndexPath = cfg.Build.IndexPath()
	}
	// Queries must be normalized with the synonyms the index was built with.
	if cfg.Search.SynonymsFile == "" {
		cfg.Search.SynonymsFile = cfg.Build.SynonymsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Build.LessonsDir == "":
		return fmt.Errorf("build.lessonsDir must be set")
	case c.Build.OutDir == "":
		return fmt.Errorf("build.outDir must be set")
	case c.Build.RenderScale <= 0:
		return fmt.Errorf("build.renderScale must be positive, got %v", c.Build.RenderScale)
	case c.Build.Workers < 1:
		return fmt.Errorf("build.workers must be at least 1, got %d", c.Build.Workers)
	case c.Build.RenderWorkers < 1:
		return fmt.Errorf("build.renderWorkers must be at least 1, got %d", c.Build.RenderWorkers)
	case c.Search.DefaultLimit < 1:
		return fmt.Errorf("search.defaultLimit must be at least 1, got %d", c.Search.DefaultLimit)
	case c.Search.MaxResults < c.Search.DefaultLimit:
		return fmt.Errorf("search.maxResults (%d) is below search.defaultLimit (%d)", c.Search.MaxResults, c.Search.DefaultLimit)
	}
	for _, v := range c.Build.Variants {
		if v != "lossless" && v != "lossy" {
			return fmt.Errorf("build.variants: unknown variant %q", v)
		}
	}
	if len(c.Build.Variants) == 0 {
		return fmt.Errorf("build.variants must name at least one variant")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:3000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  5 * time.Second,
		},
		Build: BuildConfig{
			LessonsDir:    "lessons",
			OutDir:        "db",
			RenderScale:   2,
			Workers:       runtime.NumCPU(),
			RenderWorkers: runtime.NumCPU(),
			Variants:      []string{"lossless", "lossy"},
			JPEGQuality:   85,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   50,
			WatchIndex:   true,
			CacheSize:    1024,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Postgres: PostgresConfig{
			Port:            5432,
			Database:        "lecturesearch",
			User:            "lecturesearch",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "lecturesearch-searcher",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads the deployment variables (LESSONS_DIR, OUT_DIR,
// BIND_ADDR, INDEX_PATH, CORS_ORIGIN) and the LS_* overrides.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LESSONS_DIR"); v != "" {
		cfg.Build.LessonsDir = v
	}
	if v := os.Getenv("OUT_DIR"); v != "" {
		cfg.Build.OutDir = v
	}
	if v := os.Getenv("BIND_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("INDEX_PATH"); v != "" {
		cfg.Search.IndexPath = v
	}
	if v, ok := os.LookupEnv("CORS_ORIGIN"); ok {
		cfg.Search.CORSOrigin = v
	}
	if v := os.Getenv("LS_PAGES_DIR"); v != "" {
		cfg.Search.PagesDir = v
	}
	if v := os.Getenv("LS_SYNONYMS_FILE"); v != "" {
		cfg.Build.SynonymsFile = v
		cfg.Search.SynonymsFile = v
	}
	if err := envInt("LS_BUILD_WORKERS", &cfg.Build.Workers); err != nil {
		return err
	}
	if err := envInt("LS_RENDER_WORKERS", &cfg.Build.RenderWorkers); err != nil {
		return err
	}
	if v := os.Getenv("LS_RENDER_SCALE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("LS_RENDER_SCALE: %w", err)
		}
		cfg.Build.RenderScale = f
	}
	if v := os.Getenv("LS_FAIL_FAST"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LS_FAIL_FAST: %w", err)
		}
		cfg.Build.FailFast = b
	}
	if err := envInt("LS_DEFAULT_LIMIT", &cfg.Search.DefaultLimit); err != nil {
		return err
	}
	if v := os.Getenv("LS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if err := envInt("LS_POSTGRES_PORT", &cfg.Postgres.Port); err != nil {
		return err
	}
	if v := os.Getenv("LS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("LS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("LS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("LS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if err := envInt("LS_METRICS_PORT", &cfg.Metrics.Port); err != nil {
		return err
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
