// Package fanout forwards generated fragments to independent observers such
// as the display and the speech engine.
package fanout

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"modelchat/internal/metrics"
	"modelchat/pkg/types"
)

// Fragment is decoded text from one token, tagged with its 1-based position
// in the generation.
type Fragment struct {
	Seq  int
	Text string
}

// Observer receives fragments in generation order. OnFragment must not
// block indefinitely; wrap slow observers with Queued.
type Observer interface {
	OnFragment(ctx context.Context, f Fragment) error
}

// Ender is implemented by observers that want to know when a generation
// reached a terminal state.
type Ender interface {
	OnEnd(ctx context.Context, reason types.StopReason) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, f Fragment) error

func (fn ObserverFunc) OnFragment(ctx context.Context, f Fragment) error { return fn(ctx, f) }

type entry struct {
	name string
	obs  Observer
}

// FanOut delivers each fragment synchronously to every registered observer.
// A failing observer is logged and skipped; it never prevents delivery to
// the others.
type FanOut struct {
	mu        sync.RWMutex
	observers []entry
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// New returns a FanOut with no observers.
func New(log zerolog.Logger, m *metrics.Metrics) *FanOut {
	return &FanOut{log: log, metrics: m}
}

// Register appends an observer. Observers are called in registration order.
func (f *FanOut) Register(name string, o Observer) {
	f.mu.Lock()
	f.observers = append(f.observers, entry{name: name, obs: o})
	f.mu.Unlock()
}

func (f *FanOut) snapshot() []entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]entry(nil), f.observers...)
}

// Publish forwards frag to all observers.
func (f *FanOut) Publish(ctx context.Context, frag Fragment) {
	f.metrics.IncFragments()
	for _, e := range f.snapshot() {
		if err := call(e, func() error { return e.obs.OnFragment(ctx, frag) }); err != nil {
			f.fail(e.name, "fragment", err)
		}
	}
}

// End notifies observers implementing Ender.
func (f *FanOut) End(ctx context.Context, reason types.StopReason) {
	for _, e := range f.snapshot() {
		en, ok := e.obs.(Ender)
		if !ok {
			continue
		}
		if err := call(e, func() error { return en.OnEnd(ctx, reason) }); err != nil {
			f.fail(e.name, "end", err)
		}
	}
}

// Close closes every observer that implements io.Closer and returns the
// first error.
func (f *FanOut) Close() error {
	var first error
	for _, e := range f.snapshot() {
		if c, ok := e.obs.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = fmt.Errorf("close observer %s: %w", e.name, err)
			}
		}
	}
	return first
}

func (f *FanOut) fail(name, what string, err error) {
	f.metrics.IncObserverFailure(name)
	f.log.Warn().Err(err).Str("observer", name).Str("call", what).Msg("observer failed")
}

// call runs fn, converting a panic into an error.
func call(e entry, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer %s panicked: %v", e.name, r)
		}
	}()
	return fn()
}
