// Package prompt renders user utterances into the conversational template
// the local model was tuned on.
package prompt

import (
	"errors"
	"strings"
)

const (
	// DefaultHumanMarker labels the user side of the template.
	DefaultHumanMarker = "Human"
	// DefaultAssistantMarker labels the assistant side when a persona sets none.
	DefaultAssistantMarker = "AI Engineer"
)

// ErrEmptyInput is returned when the user text is blank after trimming.
var ErrEmptyInput = errors.New("empty input")

// Builder formats prompts as
//
//	### Human: <text>
//	### <Assistant>: <preamble>
//
// A Builder holds no mutable state; Build is safe for concurrent use.
type Builder struct {
	HumanMarker     string
	AssistantMarker string
}

// NewBuilder returns a Builder using the default human marker and the given
// assistant marker (falls back to DefaultAssistantMarker when blank).
func NewBuilder(assistantMarker string) Builder {
	if strings.TrimSpace(assistantMarker) == "" {
		assistantMarker = DefaultAssistantMarker
	}
	return Builder{HumanMarker: DefaultHumanMarker, AssistantMarker: assistantMarker}
}

// Build returns the model-ready prompt for userText. The preamble is copied
// verbatim after the assistant marker.
func (b Builder) Build(preamble, userText string) (string, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return "", ErrEmptyInput
	}
	human := b.HumanMarker
	if human == "" {
		human = DefaultHumanMarker
	}
	assistant := b.AssistantMarker
	if assistant == "" {
		assistant = DefaultAssistantMarker
	}
	var sb strings.Builder
	sb.Grow(len(human) + len(assistant) + len(text) + len(preamble) + 12)
	sb.WriteString("### ")
	sb.WriteString(human)
	sb.WriteString(": ")
	sb.WriteString(text)
	sb.WriteString("\n### ")
	sb.WriteString(assistant)
	sb.WriteString(": ")
	sb.WriteString(preamble)
	return sb.String(), nil
}
