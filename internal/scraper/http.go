package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"histdata/internal/domain"
	"histdata/internal/util"
)

// Compile-time interface check.
var _ Scheduler = (*HTTPScheduler)(nil)

// Options configures an HTTPScheduler.
type Options struct {
	Proxies         []string      // proxy URLs (http://, socks5://); empty means direct
	MaxWorkers      int           // concurrent fetches
	RateLimitPerMin int           // shared across all workers and proxies
	MaxAttempts     int           // per request, each attempt on the next proxy
	RetryDelay      time.Duration // initial backoff, doubled per attempt
	Timeout         time.Duration // per HTTP request
	Cooldown        time.Duration // how long a failing proxy is skipped
	UserAgent       string
}

// proxyClient is a resty client bound to one exit route.
type proxyClient struct {
	name   string
	client *resty.Client
}

// HTTPScheduler executes fetch tasks over HTTP with a worker pool. Requests
// rotate round-robin across proxies; a proxy that errors or gets throttled is
// skipped until its cool-down expires.
type HTTPScheduler struct {
	opts    Options
	clients []proxyClient
	limiter *rate.Limiter
	cooling *cache.Cache
	next    atomic.Uint64
	log     *slog.Logger

	mu      sync.Mutex
	pending []task
}

// NewHTTPScheduler creates a scheduler from opts. Zero values fall back to one
// worker, 60 requests per minute, a single attempt and a 30s timeout.
func NewHTTPScheduler(opts Options, logger *slog.Logger) *HTTPScheduler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = 60
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &HTTPScheduler{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(float64(opts.RateLimitPerMin)/60.0), opts.MaxWorkers),
		cooling: cache.New(opts.Cooldown, 2*opts.Cooldown),
		log:     logger.With("component", "scraper"),
	}

	if len(opts.Proxies) == 0 {
		s.clients = append(s.clients, proxyClient{name: "direct", client: s.newClient("")})
	}
	for _, p := range opts.Proxies {
		s.clients = append(s.clients, proxyClient{name: p, client: s.newClient(p)})
	}
	return s
}

func (s *HTTPScheduler) newClient(proxy string) *resty.Client {
	c := resty.New().
		SetTimeout(s.opts.Timeout).
		SetHeaders(map[string]string{
			"Accept":          "text/csv,text/plain,*/*",
			"Accept-Encoding": "gzip, br",
			"User-Agent":      s.opts.UserAgent,
		}).
		OnAfterResponse(decompressMiddleware)
	if proxy != "" {
		c.SetProxy(proxy)
	}
	return c
}

// Submit queues req. It is safe for concurrent use.
func (s *HTTPScheduler) Submit(req domain.FetchRequest, onComplete Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, task{req: req, onComplete: onComplete})
}

// Run drains the queue with MaxWorkers goroutines and blocks until every
// callback has returned.
func (s *HTTPScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan task, len(tasks))
	for _, t := range tasks {
		taskCh <- t
	}
	close(taskCh)

	var (
		wg       sync.WaitGroup
		okCount  atomic.Int64
		errCount atomic.Int64
		runStart = time.Now()
	)

	s.log.Info("starting fetch batch", "tasks", len(tasks), "workers", s.opts.MaxWorkers, "routes", len(s.clients))

	workers := min(s.opts.MaxWorkers, len(tasks))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskCh {
				if err := ctx.Err(); err != nil {
					errCount.Add(1)
					t.onComplete(t.req, "", err)
					continue
				}

				body, err := s.fetch(ctx, t.req.URL)
				if err != nil {
					errCount.Add(1)
					s.log.Warn("fetch failed", "symbol", t.req.Symbol, "err", err)
				} else {
					okCount.Add(1)
				}
				t.onComplete(t.req, body, err)
			}
		}()
	}

	wg.Wait()

	s.log.Info("fetch batch complete",
		"ok", okCount.Load(),
		"failed", errCount.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return ctx.Err()
}

// fetch GETs url, retrying on the next route after transport errors and
// non-success statuses. 404 is final.
func (s *HTTPScheduler) fetch(ctx context.Context, url string) (string, error) {
	var body string
	err := util.Retry(ctx, s.opts.MaxAttempts, s.opts.RetryDelay, func(attempt int) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		route := s.pick()
		resp, err := route.client.R().SetContext(ctx).Get(url)
		if err != nil {
			s.coolDown(route, err.Error())
			return fmt.Errorf("attempt %d via %s: %w", attempt+1, route.name, err)
		}

		code := resp.StatusCode()
		switch {
		case code == http.StatusNotFound:
			return util.Permanent(fmt.Errorf("%w: %d", ErrStatus, code))
		case code < 200 || code >= 300:
			s.coolDown(route, resp.Status())
			return fmt.Errorf("attempt %d via %s: %w: %d", attempt+1, route.name, ErrStatus, code)
		}

		body = string(resp.Body())
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

// pick returns the next route in round-robin order that is not cooling down.
// When every route is cooling down the plain round-robin choice is used.
func (s *HTTPScheduler) pick() proxyClient {
	n := uint64(len(s.clients))
	start := s.next.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		c := s.clients[(start+i)%n]
		if _, cooling := s.cooling.Get(c.name); !cooling {
			return c
		}
	}
	return s.clients[start%n]
}

func (s *HTTPScheduler) coolDown(route proxyClient, reason string) {
	if len(s.clients) == 1 {
		return
	}
	s.cooling.Set(route.name, reason, cache.DefaultExpiration)
	s.log.Debug("route cooling down", "route", route.name, "reason", reason, "for", s.opts.Cooldown)
}
