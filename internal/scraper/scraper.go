// Package scraper defines the task scheduler that performs network fetches on
// behalf of the orchestrator, and an HTTP implementation that spreads requests
// over a pool of proxies.
package scraper

import (
	"context"
	"errors"

	"histdata/internal/domain"
)

// ErrStatus reports a non-success HTTP status.
var ErrStatus = errors.New("unexpected HTTP status")

// Callback receives the outcome of one submitted request. err is non-nil when
// the network task failed; body is then empty. Callbacks may run concurrently
// on scheduler goroutines.
type Callback func(req domain.FetchRequest, body string, err error)

// Scheduler queues fetch tasks and executes them.
//
// Submit only queues; nothing is fetched until Run. Run blocks until every
// task queued before the call has completed or failed, and every callback has
// returned. If ctx is cancelled, tasks not yet started are completed with the
// context error, so each submitted request sees exactly one callback.
type Scheduler interface {
	Submit(req domain.FetchRequest, onComplete Callback)
	Run(ctx context.Context) error
}

type task struct {
	req        domain.FetchRequest
	onComplete Callback
}
