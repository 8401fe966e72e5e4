package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for histdata.
type Config struct {
	HistoricalData HistoricalData `yaml:"historical_data"`
	Storage        Storage        `yaml:"storage"`
	Scraper        Scraper        `yaml:"scraper"`
	Alpaca         Alpaca         `yaml:"alpaca"`
	Logging        Logging        `yaml:"logging"`
	Schedule       Schedule       `yaml:"schedule"`
}

// HistoricalData describes one acquisition run. Dates use YYYYMMDD.
type HistoricalData struct {
	SymbolsFile string `yaml:"symbols_file"`
	OutputDir   string `yaml:"output_dir"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	BaseURL     string `yaml:"base_url"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Scraper configures the proxied HTTP fetcher.
type Scraper struct {
	Proxies         []string      `yaml:"proxies"`
	MaxWorkers      int           `yaml:"max_workers"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	Cooldown        time.Duration `yaml:"cooldown"`
	UserAgent       string        `yaml:"user_agent"`
}

// Alpaca holds credentials used to query the trading calendar.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Schedule configures the recurring run.
type Schedule struct {
	Cron string `yaml:"cron"`
}

// DefaultBaseURL is the historical table endpoint queried per symbol.
const DefaultBaseURL = "http://real-chart.finance.yahoo.com/table.csv"

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and fills defaults.
// A missing file yields a config built from environment and defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HISTDATA_SYMBOLS_FILE"); v != "" {
		cfg.HistoricalData.SymbolsFile = v
	}
	if v := os.Getenv("HISTDATA_OUTPUT_DIR"); v != "" {
		cfg.HistoricalData.OutputDir = v
	}
	if v := os.Getenv("HISTDATA_START_DATE"); v != "" {
		cfg.HistoricalData.StartDate = v
	}
	if v := os.Getenv("HISTDATA_END_DATE"); v != "" {
		cfg.HistoricalData.EndDate = v
	}
	if v := os.Getenv("HISTDATA_BASE_URL"); v != "" {
		cfg.HistoricalData.BaseURL = v
	}
	if v := os.Getenv("HISTDATA_PROXIES"); v != "" {
		cfg.Scraper.Proxies = splitList(v)
	}
	if v := os.Getenv("HISTDATA_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scraper.MaxWorkers = n
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HistoricalData.BaseURL == "" {
		cfg.HistoricalData.BaseURL = DefaultBaseURL
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Scraper.MaxWorkers <= 0 {
		cfg.Scraper.MaxWorkers = 8
	}
	if cfg.Scraper.RateLimitPerMin <= 0 {
		cfg.Scraper.RateLimitPerMin = 120
	}
	if cfg.Scraper.MaxAttempts <= 0 {
		cfg.Scraper.MaxAttempts = 3
	}
	if cfg.Scraper.RetryDelay <= 0 {
		cfg.Scraper.RetryDelay = 2 * time.Second
	}
	if cfg.Scraper.Timeout <= 0 {
		cfg.Scraper.Timeout = 30 * time.Second
	}
	if cfg.Scraper.Cooldown <= 0 {
		cfg.Scraper.Cooldown = time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "0 30 21 * * 1-5"
	}
}

// ResolveOutputDir returns the configured output directory, or one derived
// from the date window when none is set. See OutputDirFor.
func (c *Config) ResolveOutputDir() string {
	return c.OutputDirFor(time.Now())
}

// OutputDirFor returns the output directory for the configured window as of
// today. The derived name is <data_dir>/<start>-<end>, with "earliest" for a
// missing start and "open-<today>" for a missing end, so every window and
// every day of an open-ended window gets its own cache.
func (c *Config) OutputDirFor(today time.Time) string {
	if c.HistoricalData.OutputDir != "" {
		return c.HistoricalData.OutputDir
	}
	start := c.HistoricalData.StartDate
	if start == "" {
		start = "earliest"
	}
	end := c.HistoricalData.EndDate
	if end == "" {
		end = "open-" + today.Format("20060102")
	}
	return filepath.Join(c.Storage.DataDir, start+"-"+end)
}

// Validate checks that all required fields are set and well-formed.
func (c *Config) Validate() error {
	if c.HistoricalData.SymbolsFile == "" {
		return fmt.Errorf("historical_data.symbols_file is required")
	}
	for name, v := range map[string]string{
		"historical_data.start_date": c.HistoricalData.StartDate,
		"historical_data.end_date":   c.HistoricalData.EndDate,
	} {
		if v == "" {
			continue
		}
		if _, err := time.Parse("20060102", v); err != nil {
			return fmt.Errorf("%s must be YYYYMMDD, got %q", name, v)
		}
	}
	if c.HistoricalData.StartDate != "" && c.HistoricalData.EndDate != "" &&
		c.HistoricalData.StartDate > c.HistoricalData.EndDate {
		return fmt.Errorf("historical_data.start_date %s is after end_date %s",
			c.HistoricalData.StartDate, c.HistoricalData.EndDate)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
