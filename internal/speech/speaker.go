// Package speech narrates generated text through a speech synthesizer.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnavailable is returned when the synthesizer binary cannot be found.
var ErrUnavailable = errors.New("speech synthesizer unavailable")

// Speaker says text aloud and returns when it is done.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// ESpeak runs the espeak command line synthesizer once per utterance.
type ESpeak struct {
	path  string
	voice string
}

// NewESpeak resolves binary on PATH.
func NewESpeak(binary, voice string) (*ESpeak, error) {
	if binary == "" {
		binary = "espeak"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, binary, err)
	}
	return &ESpeak{path: path, voice: voice}, nil
}

// Speak feeds text on stdin so it is never parsed as flags.
func (e *ESpeak) Speak(ctx context.Context, text string) error {
	args := []string{"--stdin"}
	if e.voice != "" {
		args = append([]string{"-v", e.voice}, args...)
	}
	cmd := exec.CommandContext(ctx, e.path, args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("espeak: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
