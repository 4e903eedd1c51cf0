package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"modelchat/internal/fanout"
	"modelchat/pkg/types"
)

// display streams fragments to the terminal. Writes are buffered and
// flushed on every controller yield.
type display struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func newDisplay(w io.Writer) *display { return &display{w: bufio.NewWriter(w)} }

func (d *display) OnFragment(_ context.Context, f fanout.Fragment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.w.WriteString(f.Text)
	return err
}

func (d *display) OnEnd(_ context.Context, reason types.StopReason) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch reason {
	case types.StopTokenBudgetExceeded:
		d.w.WriteString(" [token budget reached]")
	case types.StopCancelled:
		d.w.WriteString(" [cancelled]")
	}
	d.w.WriteString("\n\n")
	return d.w.Flush()
}

// Printf writes a line outside of a generation.
func (d *display) Printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, format, args...)
	d.w.Flush()
}

// Write lets the transcript render straight to the terminal.
func (d *display) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.w.Write(p)
}

func (d *display) Flush() {
	d.mu.Lock()
	_ = d.w.Flush()
	d.mu.Unlock()
}
