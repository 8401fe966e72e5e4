package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"histdata/internal/config"
	"histdata/internal/domain"
	"histdata/internal/gather"
	"histdata/internal/historical"
	"histdata/internal/scraper"
	"histdata/internal/store"
	"histdata/internal/util"
)

// overrides are the per-run settings every pipeline command accepts on the
// command line. Non-empty values replace the configuration file.
type overrides struct {
	symbolsFile string
	outputDir   string
	startDate   string
	endDate     string
}

func (o *overrides) setFlags(f *flag.FlagSet) {
	f.StringVar(&o.symbolsFile, "symbols", "", "symbol catalog CSV (index,symbol,enable)")
	f.StringVar(&o.outputDir, "output", "", "output directory (default <data_dir>/<start>-<end>)")
	f.StringVar(&o.startDate, "start", "", "first date to request, YYYYMMDD")
	f.StringVar(&o.endDate, "end", "", "last date to request, YYYYMMDD")
}

func (o *overrides) apply(cfg *config.Config) {
	if o.symbolsFile != "" {
		cfg.HistoricalData.SymbolsFile = o.symbolsFile
	}
	if o.outputDir != "" {
		cfg.HistoricalData.OutputDir = o.outputDir
	}
	if o.startDate != "" {
		cfg.HistoricalData.StartDate = o.startDate
	}
	if o.endDate != "" {
		cfg.HistoricalData.EndDate = o.endDate
	}
}

// setup loads the configuration, applies o and installs the default logger.
// The returned func closes the log file, if any.
func setup(o *overrides) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if o != nil {
		o.apply(cfg)
	}

	closeLog := func() {}
	var w io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { f.Close() }
	}
	logger := util.NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return cfg, logger, closeLog, nil
}

// resolveEndDate fills a missing end date from the Alpaca trading calendar
// when credentials are configured.
func resolveEndDate(cfg *config.Config, logger *slog.Logger) {
	if cfg.HistoricalData.EndDate != "" || cfg.Alpaca.APIKey == "" {
		return
	}
	day, err := gather.LatestFinishedTradingDay(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
	if err != nil {
		logger.Warn("could not resolve end date from trading calendar, running open-ended", "err", err)
		return
	}
	cfg.HistoricalData.EndDate = day.Format(domain.DateLayout)
	logger.Info("resolved end date", "end_date", cfg.HistoricalData.EndDate)
}

func openRecorder(cfg *config.Config) (store.Recorder, error) {
	if cfg.Storage.SQLitePath == "" {
		return store.NoopRecorder{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	return store.NewLedger(cfg.Storage.SQLitePath)
}

func newScheduler(cfg *config.Config, logger *slog.Logger) *scraper.HTTPScheduler {
	s := cfg.Scraper
	return scraper.NewHTTPScheduler(scraper.Options{
		Proxies:         s.Proxies,
		MaxWorkers:      s.MaxWorkers,
		RateLimitPerMin: s.RateLimitPerMin,
		MaxAttempts:     s.MaxAttempts,
		RetryDelay:      s.RetryDelay,
		Timeout:         s.Timeout,
		Cooldown:        s.Cooldown,
		UserAgent:       s.UserAgent,
	}, logger)
}

// newDaily validates cfg and builds the pipeline for it.
func newDaily(cfg *config.Config, rec store.Recorder, logger *slog.Logger) (*historical.Daily, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return historical.New(historical.Options{
		SymbolsFile: cfg.HistoricalData.SymbolsFile,
		OutputDir:   cfg.ResolveOutputDir(),
		StartDate:   cfg.HistoricalData.StartDate,
		EndDate:     cfg.HistoricalData.EndDate,
		BaseURL:     cfg.HistoricalData.BaseURL,
	}, newScheduler(cfg, logger), rec, logger)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
