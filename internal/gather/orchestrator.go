package gather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"histdata/internal/domain"
	"histdata/internal/scraper"
)

// RawCache is the subset of the cache store the orchestrator needs.
type RawCache interface {
	RawSeriesPath(symbol string) string
	LoadRawSeries(symbol string) (string, bool, error)
	SaveRawSeries(symbol, series string) error
}

// Orchestrator acquires one raw series per enabled symbol, from the cache
// when possible and through the scheduler otherwise.
type Orchestrator struct {
	sched   scraper.Scheduler
	cache   RawCache
	baseURL string
	log     *slog.Logger
}

// NewOrchestrator creates an Orchestrator that fetches from baseURL.
func NewOrchestrator(sched scraper.Scheduler, cache RawCache, baseURL string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sched:   sched,
		cache:   cache,
		baseURL: baseURL,
		log:     logger.With("component", "orchestrator"),
	}
}

type collected struct {
	symbol string
	result domain.FetchResult
}

// Collect returns a result for every enabled symbol. Disabled symbols are
// absent from the map. A failed fetch never aborts the batch; it is recorded
// as a Failed result. Collect returns once the scheduler has finished and
// every callback has been folded into the map.
func (o *Orchestrator) Collect(ctx context.Context, symbols []domain.Symbol, window domain.DateRange) map[string]domain.FetchResult {
	results := make(map[string]domain.FetchResult, len(symbols))

	var submitted int
	resultCh := make(chan collected, len(symbols))
	done := make(chan struct{})

	// The collector goroutine is the only writer of results until done.
	go func() {
		defer close(done)
		for c := range resultCh {
			results[c.symbol] = c.result
		}
	}()

	cached := 0
	for _, sym := range symbols {
		if !sym.Enabled {
			continue
		}

		series, ok, err := o.cache.LoadRawSeries(sym.Name)
		if err != nil {
			o.log.Warn("raw series cache read failed, refetching", "symbol", sym.Name, "err", err)
		}
		if ok {
			r := domain.Ok(series)
			r.Cached = true
			resultCh <- collected{symbol: sym.Name, result: r}
			cached++
			continue
		}

		req := domain.FetchRequest{
			Symbol:     sym.Name,
			URL:        BuildURL(o.baseURL, sym.Name, window),
			OutputPath: o.cache.RawSeriesPath(sym.Name),
		}
		o.sched.Submit(req, func(req domain.FetchRequest, body string, err error) {
			resultCh <- collected{symbol: req.Symbol, result: o.complete(req, body, err)}
		})
		submitted++
	}

	start := time.Now()
	if submitted > 0 {
		o.log.Info("fetching", "submitted", submitted, "cached", cached)
		if err := o.sched.Run(ctx); err != nil {
			o.log.Warn("scheduler stopped early", "err", err)
		}
	}
	close(resultCh)
	<-done

	o.log.Info("collection complete",
		"results", len(results),
		"cached", cached,
		"fetched", submitted,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return results
}

// complete turns one scheduler callback into a result, persisting the raw
// series on success.
func (o *Orchestrator) complete(req domain.FetchRequest, body string, err error) domain.FetchResult {
	if err != nil {
		o.log.Warn("fetch failed", "symbol", req.Symbol, "err", err)
		return domain.Failed(err)
	}
	if !strings.HasPrefix(body, domain.RawHeader) {
		o.log.Warn("unexpected response", "symbol", req.Symbol, "url", req.URL, "head", head(body))
		return domain.Failed(fmt.Errorf("%s: %w", req.Symbol, domain.ErrBadHeader))
	}
	if err := o.cache.SaveRawSeries(req.Symbol, body); err != nil {
		o.log.Error("saving raw series", "symbol", req.Symbol, "path", req.OutputPath, "err", err)
	}
	return domain.Ok(body)
}

func head(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
