package generation

import (
	"context"
	"runtime"
)

// Yielder is the host's event-processing step. The controller calls it after
// every published fragment so the host can repaint and notice cancellation.
type Yielder interface {
	Yield(ctx context.Context)
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context)

func (f YieldFunc) Yield(ctx context.Context) { f(ctx) }

// goschedYielder lets other goroutines run; used when the host supplies none.
type goschedYielder struct{}

func (goschedYielder) Yield(context.Context) { runtime.Gosched() }
