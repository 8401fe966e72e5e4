package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"

	"histdata/internal/domain"
	"histdata/internal/util"
)

const body = domain.RawHeader + "\n2016-01-15,1,2,0.5,1.5,100,1.4\n"

type outcome struct {
	body string
	err  error
}

// collect submits one request per symbol and returns the callback outcomes.
func collect(t *testing.T, s Scheduler, base string, symbols ...string) map[string]outcome {
	t.Helper()
	var mu sync.Mutex
	got := map[string]outcome{}
	for _, sym := range symbols {
		s.Submit(domain.FetchRequest{Symbol: sym, URL: base + "?s=" + sym}, func(req domain.FetchRequest, b string, err error) {
			mu.Lock()
			defer mu.Unlock()
			if _, dup := got[req.Symbol]; dup {
				t.Errorf("callback invoked twice for %s", req.Symbol)
			}
			got[req.Symbol] = outcome{body: b, err: err}
		})
	}
	require.NoError(t, s.Run(context.Background()))
	return got
}

func testOptions() Options {
	return Options{
		MaxWorkers:      4,
		RateLimitPerMin: 60_000,
		MaxAttempts:     3,
		RetryDelay:      time.Millisecond,
		Timeout:         5 * time.Second,
	}
}

func TestHTTPSchedulerFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("s") {
		case "MISSING":
			http.NotFound(w, r)
		default:
			fmt.Fprint(w, body)
		}
	}))
	defer srv.Close()

	s := NewHTTPScheduler(testOptions(), util.Discard())
	got := collect(t, s, srv.URL, "AAPL", "MSFT", "MISSING")

	require.Len(t, got, 3)
	require.NoError(t, got["AAPL"].err)
	require.Equal(t, body, got["AAPL"].body, "body must be returned verbatim")
	require.Equal(t, body, got["MSFT"].body)
	require.ErrorIs(t, got["MISSING"].err, ErrStatus)

	// Queue is drained: a second Run has nothing to do.
	require.NoError(t, s.Run(context.Background()))
}

func TestHTTPSchedulerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	s := NewHTTPScheduler(testOptions(), util.Discard())
	got := collect(t, s, srv.URL, "AAPL")

	require.NoError(t, got["AAPL"].err)
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTPSchedulerGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewHTTPScheduler(testOptions(), util.Discard())
	got := collect(t, s, srv.URL, "AAPL")

	require.ErrorIs(t, got["AAPL"].err, ErrStatus)
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTPSchedulerDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write([]byte(body))
		bw.Close()
		w.Header().Set("Content-Encoding", "br")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	s := NewHTTPScheduler(testOptions(), util.Discard())
	got := collect(t, s, srv.URL, "AAPL")

	require.NoError(t, got["AAPL"].err)
	require.Equal(t, body, got["AAPL"].body)
}

func TestHTTPSchedulerCancelled(t *testing.T) {
	s := NewHTTPScheduler(testOptions(), util.Discard())

	var calls atomic.Int32
	for _, sym := range []string{"A", "B", "C"} {
		s.Submit(domain.FetchRequest{Symbol: sym, URL: "http://127.0.0.1:1/"}, func(_ domain.FetchRequest, _ string, err error) {
			calls.Add(1)
			if !errors.Is(err, context.Canceled) {
				t.Errorf("callback err = %v, want context.Canceled", err)
			}
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)
	require.Equal(t, int32(3), calls.Load(), "every submitted task gets a callback")
}

func TestPickSkipsCoolingRoutes(t *testing.T) {
	opts := testOptions()
	opts.Proxies = []string{"http://127.0.0.1:8001", "http://127.0.0.1:8002"}
	s := NewHTTPScheduler(opts, util.Discard())

	s.coolDown(s.clients[0], "429")
	for i := 0; i < 4; i++ {
		require.Equal(t, "http://127.0.0.1:8002", s.pick().name)
	}

	s.coolDown(s.clients[1], "429")
	// Every route cooling: fall back to plain rotation rather than stall.
	require.Contains(t, opts.Proxies, s.pick().name)
}

func TestMockScheduler(t *testing.T) {
	m := &MockScheduler{
		Responses: map[string]string{"AAPL": body},
		Errors:    map[string]error{"MSFT": errors.New("connection reset")},
	}
	got := collect(t, m, "http://example.invalid", "AAPL", "MSFT", "GOOG")

	require.Equal(t, body, got["AAPL"].body)
	require.EqualError(t, got["MSFT"].err, "connection reset")
	require.ErrorIs(t, got["GOOG"].err, ErrNoResponse)
	require.Len(t, m.Requests(), 3)
}
