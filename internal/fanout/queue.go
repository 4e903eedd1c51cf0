package fanout

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"modelchat/internal/metrics"
	"modelchat/pkg/types"
)

// ErrQueueClosed is returned by a QueuedObserver after Close.
var ErrQueueClosed = errors.New("observer queue closed")

type item struct {
	frag   Fragment
	end    bool
	reason types.StopReason
}

// QueuedObserver decouples a slow observer from the publisher. Fragments are
// buffered in a bounded FIFO drained by a single goroutine, so the inner
// observer sees them in publish order. When the buffer is full the fragment
// and the rest of its generation are dropped and counted, and the inner
// observer is told the generation was cancelled. It therefore only ever sees
// a contiguous prefix of a response.
type QueuedObserver struct {
	name    string
	inner   Observer
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	closed   bool
	skipping bool // guarded by mu; set after a drop until the next end
	ch       chan item
	done     chan struct{}
}

// Queued starts the worker for inner. capacity <= 0 means 1.
func Queued(name string, inner Observer, capacity int, log zerolog.Logger, m *metrics.Metrics) *QueuedObserver {
	if capacity <= 0 {
		capacity = 1
	}
	q := &QueuedObserver{
		name:    name,
		inner:   inner,
		log:     log,
		metrics: m,
		ch:      make(chan item, capacity),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// OnFragment enqueues f without blocking.
func (q *QueuedObserver) OnFragment(_ context.Context, f Fragment) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.skipping {
		q.metrics.IncQueueDropped(q.name)
		return nil
	}
	select {
	case q.ch <- item{frag: f}:
	default:
		q.skipping = true
		q.metrics.IncQueueDropped(q.name)
		q.log.Warn().Str("observer", q.name).Int("seq", f.Seq).Msg("observer queue full, dropping rest of response")
	}
	return nil
}

// OnEnd enqueues the end marker behind any pending fragments. It waits for
// room rather than dropping, bounded by ctx. A response cut short by a drop
// ends as cancelled.
func (q *QueuedObserver) OnEnd(ctx context.Context, reason types.StopReason) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if q.skipping {
		q.skipping = false
		reason = types.StopCancelled
	}
	if _, ok := q.inner.(Ender); !ok {
		return nil
	}
	select {
	case q.ch <- item{end: true, reason: reason}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting items and waits until the queue is drained.
func (q *QueuedObserver) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	<-q.done
	return nil
}

func (q *QueuedObserver) run() {
	defer close(q.done)
	ctx := context.Background()
	e := entry{name: q.name, obs: q.inner}
	for it := range q.ch {
		var err error
		if it.end {
			en := q.inner.(Ender)
			err = call(e, func() error { return en.OnEnd(ctx, it.reason) })
		} else {
			err = call(e, func() error { return q.inner.OnFragment(ctx, it.frag) })
		}
		if err != nil {
			q.metrics.IncObserverFailure(q.name)
			q.log.Warn().Err(err).Str("observer", q.name).Msg("queued observer failed")
		}
	}
}
