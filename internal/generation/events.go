package generation

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is a generation lifecycle notification.
type Event struct {
	Name      string
	SessionID string
	Fields    map[string]any
}

const (
	EventStart = "generation_start"
	EventDone  = "generation_done"
)

// EventPublisher receives controller events. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events to a zerolog logger at debug level.
type LogPublisher struct{ log zerolog.Logger }

func NewLogPublisher(log zerolog.Logger) LogPublisher { return LogPublisher{log: log} }

func (p LogPublisher) Publish(e Event) {
	p.log.Debug().Str("event", e.Name).Str("session", e.SessionID).Fields(e.Fields).Msg("generation event")
}

// MemoryPublisher stores events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
