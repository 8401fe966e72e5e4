package scraper

import (
	"context"
	"errors"
	"sync"

	"histdata/internal/domain"
)

// MockScheduler serves canned responses keyed by symbol. It is deterministic:
// Run completes tasks in submission order on the calling goroutine.
type MockScheduler struct {
	// Responses maps a symbol to the body returned for it.
	Responses map[string]string
	// Errors maps a symbol to a transport failure. Checked before Responses.
	Errors map[string]error

	mu        sync.Mutex
	pending   []task
	requested []domain.FetchRequest
}

var _ Scheduler = (*MockScheduler)(nil)

// ErrNoResponse is returned for symbols with neither a response nor an error.
var ErrNoResponse = errors.New("mock: no response configured")

// Submit queues req. It is safe for concurrent use.
func (m *MockScheduler) Submit(req domain.FetchRequest, onComplete Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, task{req: req, onComplete: onComplete})
}

// Run completes every queued task in order, with the context error once ctx
// is cancelled.
func (m *MockScheduler) Run(ctx context.Context) error {
	m.mu.Lock()
	tasks := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, t := range tasks {
		m.mu.Lock()
		m.requested = append(m.requested, t.req)
		m.mu.Unlock()

		if err := ctx.Err(); err != nil {
			t.onComplete(t.req, "", err)
			continue
		}
		if err, ok := m.Errors[t.req.Symbol]; ok {
			t.onComplete(t.req, "", err)
			continue
		}
		body, ok := m.Responses[t.req.Symbol]
		if !ok {
			t.onComplete(t.req, "", ErrNoResponse)
			continue
		}
		t.onComplete(t.req, body, nil)
	}
	return ctx.Err()
}

// Requests returns every request executed so far.
func (m *MockScheduler) Requests() []domain.FetchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FetchRequest(nil), m.requested...)
}
