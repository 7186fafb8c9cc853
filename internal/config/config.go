package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the heatmap service and viewers.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Server    Server    `yaml:"server"`
	Quotes    Quotes    `yaml:"quotes"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Redis     Redis     `yaml:"redis"`
	Refresh   Refresh   `yaml:"refresh"`
	Watchlist Watchlist `yaml:"watchlist"`
	Logging   Logging   `yaml:"logging"`
}

// Storage holds paths for data persistence. An empty path disables the
// corresponding store.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// HTTPAddr returns the host:port the HTTP API listens on.
func (s Server) HTTPAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GRPCAddr returns the host:port of the gRPC health service, or "" when a
// negative port disables it.
func (s Server) GRPCAddr() string {
	if s.GRPCPort < 0 {
		return ""
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.GRPCPort))
}

// Quotes configures the upstream quote provider and the client around it.
type Quotes struct {
	// Provider is "globalquote", "alpaca", "yahoo", or a comma-separated
	// fallback chain such as "yahoo,globalquote".
	Provider        string        `yaml:"provider"`
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	Retries         *int          `yaml:"retries"` // nil means DefaultRetries; 0 disables retrying
	CacheTTL        time.Duration `yaml:"cache_ttl"`
}

// RetryCount returns how many times a failed fetch is retried.
func (q Quotes) RetryCount() int {
	if q.Retries == nil {
		return DefaultRetries
	}
	return *q.Retries
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Redis configures the optional shared quote cache.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Refresh controls the periodic fetch cycle.
type Refresh struct {
	Interval time.Duration `yaml:"interval"`
}

// Watchlist points at the sector/industry table. Empty uses the built-in one.
type Watchlist struct {
	Path string `yaml:"path"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

const (
	DefaultPort            = 5000
	DefaultGRPCPort        = 5001
	DefaultProvider        = "globalquote"
	DefaultBaseURL         = "https://www.alphavantage.co/query"
	DefaultTimeout         = 10 * time.Second
	DefaultMaxConcurrent   = 8
	DefaultRetries         = 2
	DefaultCacheTTL        = 5 * time.Minute
	DefaultRefreshInterval = 5 * time.Minute
)

// Default returns a Config with every default applied and no file behind it.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = DefaultGRPCPort
	}
	if c.Quotes.Provider == "" {
		c.Quotes.Provider = DefaultProvider
	}
	if c.Quotes.BaseURL == "" {
		c.Quotes.BaseURL = DefaultBaseURL
	}
	if c.Quotes.APIKey == "" {
		c.Quotes.APIKey = "demo"
	}
	if c.Quotes.Timeout <= 0 {
		c.Quotes.Timeout = DefaultTimeout
	}
	if c.Quotes.MaxConcurrent <= 0 {
		c.Quotes.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Quotes.Retries == nil || *c.Quotes.Retries < 0 {
		n := DefaultRetries
		c.Quotes.Retries = &n
	}
	if c.Quotes.CacheTTL <= 0 {
		c.Quotes.CacheTTL = DefaultCacheTTL
	}
	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = DefaultRefreshInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, then fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults (still
// subject to environment overrides).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		applyEnvOverrides(cfg)
		cfg.applyDefaults()
		return cfg, nil
	}
	return cfg, err
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// named) into the process environment without overriding variables that are
// already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("HEATMAP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("QUOTE_PROVIDER"); v != "" {
		cfg.Quotes.Provider = v
	}
	if v := os.Getenv("QUOTE_BASE_URL"); v != "" {
		cfg.Quotes.BaseURL = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Quotes.APIKey = v
	}
	// Project-specific name wins over the provider's conventional one.
	if v := os.Getenv("HEATMAP_API_KEY"); v != "" {
		cfg.Quotes.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Refresh.Interval = d
		}
	}

	if v := os.Getenv("WATCHLIST_PATH"); v != "" {
		cfg.Watchlist.Path = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
