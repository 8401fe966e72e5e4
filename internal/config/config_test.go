package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "histdata.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HISTDATA_SYMBOLS_FILE", "HISTDATA_OUTPUT_DIR", "HISTDATA_START_DATE",
		"HISTDATA_END_DATE", "HISTDATA_BASE_URL", "HISTDATA_PROXIES", "HISTDATA_MAX_WORKERS",
		"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
historical_data:
  symbols_file: "symbols.csv"
  output_dir: "data/20160115/"
  start_date: "20150701"
  end_date: "20160115"
storage:
  data_dir: "/tmp/histdata"
  sqlite_path: "/tmp/histdata/runs.db"
scraper:
  proxies:
    - "socks5://127.0.0.1:9050"
    - "socks5://127.0.0.1:9052"
  max_workers: 4
  rate_limit_per_min: 60
  timeout: 15s
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- HistoricalData --
	if cfg.HistoricalData.SymbolsFile != "symbols.csv" {
		t.Errorf("HistoricalData.SymbolsFile = %q, want %q", cfg.HistoricalData.SymbolsFile, "symbols.csv")
	}
	if cfg.HistoricalData.StartDate != "20150701" {
		t.Errorf("HistoricalData.StartDate = %q, want %q", cfg.HistoricalData.StartDate, "20150701")
	}
	if cfg.HistoricalData.BaseURL != DefaultBaseURL {
		t.Errorf("HistoricalData.BaseURL = %q, want default", cfg.HistoricalData.BaseURL)
	}
	if got := cfg.ResolveOutputDir(); got != "data/20160115/" {
		t.Errorf("ResolveOutputDir() = %q, want %q", got, "data/20160115/")
	}

	// -- Scraper --
	if len(cfg.Scraper.Proxies) != 2 {
		t.Errorf("Scraper.Proxies = %v, want 2 entries", cfg.Scraper.Proxies)
	}
	if cfg.Scraper.MaxWorkers != 4 {
		t.Errorf("Scraper.MaxWorkers = %d, want %d", cfg.Scraper.MaxWorkers, 4)
	}
	if cfg.Scraper.Timeout != 15*time.Second {
		t.Errorf("Scraper.Timeout = %v, want %v", cfg.Scraper.Timeout, 15*time.Second)
	}
	if cfg.Scraper.MaxAttempts != 3 {
		t.Errorf("Scraper.MaxAttempts = %d, want default 3", cfg.Scraper.MaxAttempts)
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
historical_data:
  symbols_file: "yaml.csv"
  end_date: "20160115"
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("HISTDATA_SYMBOLS_FILE", "env.csv")
	t.Setenv("APCA_API_KEY_ID", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("HISTDATA_PROXIES", "socks5://a:1, socks5://b:2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.HistoricalData.SymbolsFile != "env.csv" {
		t.Errorf("SymbolsFile = %q, want %q (env override)", cfg.HistoricalData.SymbolsFile, "env.csv")
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if len(cfg.Scraper.Proxies) != 2 || cfg.Scraper.Proxies[1] != "socks5://b:2" {
		t.Errorf("Scraper.Proxies = %v", cfg.Scraper.Proxies)
	}
	// No output_dir: derived from data dir and the date window.
	if got, want := cfg.ResolveOutputDir(), filepath.Join("/env/data", "earliest-20160115"); got != want {
		t.Errorf("ResolveOutputDir() = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() on missing file returned error: %v", err)
	}
	if cfg.Storage.DataDir != "data" {
		t.Errorf("Storage.DataDir = %q, want default %q", cfg.Storage.DataDir, "data")
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require symbols_file")
	}
}

func TestValidateDates(t *testing.T) {
	cfg := &Config{HistoricalData: HistoricalData{SymbolsFile: "s.csv", StartDate: "2016-01-01"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for dashed start date")
	}

	cfg.HistoricalData.StartDate = "20160201"
	cfg.HistoricalData.EndDate = "20160101"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for start after end")
	}
}

func TestOutputDirForWindow(t *testing.T) {
	today := time.Date(2016, 1, 20, 15, 0, 0, 0, time.UTC)
	dir := func(start, end string) string {
		cfg := &Config{
			HistoricalData: HistoricalData{StartDate: start, EndDate: end},
			Storage:        Storage{DataDir: "data"},
		}
		return cfg.OutputDirFor(today)
	}

	short := dir("20160114", "20160115")
	long := dir("20150101", "20160115")
	if short == long {
		t.Errorf("windows with different start dates share output dir %q", short)
	}
	if want := filepath.Join("data", "20150101-20160115"); long != want {
		t.Errorf("OutputDirFor = %q, want %q", long, want)
	}

	if got, want := dir("20150101", ""), filepath.Join("data", "20150101-open-20160120"); got != want {
		t.Errorf("open-ended OutputDirFor = %q, want %q", got, want)
	}
	cfg := &Config{HistoricalData: HistoricalData{StartDate: "20150101"}, Storage: Storage{DataDir: "data"}}
	if cfg.OutputDirFor(today) == cfg.OutputDirFor(today.AddDate(0, 0, 1)) {
		t.Error("open-ended window should get a new output dir each day")
	}

	cfg.HistoricalData.OutputDir = "explicit"
	if got := cfg.OutputDirFor(today); got != "explicit" {
		t.Errorf("OutputDirFor with output_dir set = %q, want %q", got, "explicit")
	}
}
