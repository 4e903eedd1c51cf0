package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"modelchat/pkg/types"
)

// DefaultPersonaID is used when configuration names no persona.
const DefaultPersonaID = "ai-engineer"

// ErrUnknownPersona is returned by Lookup for an unregistered id.
var ErrUnknownPersona = errors.New("unknown persona")

// Builtins returns the personas shipped with the binary.
func Builtins() []types.Persona {
	return []types.Persona{
		{
			ID:       "ai-engineer",
			Name:     "AIEngineer",
			Marker:   "AI Engineer",
			Preamble: "Hello there, I am an AI Engineer! I love AI and coding. I am here for deep AI conversations. ",
		},
		{
			ID:       "zen-guide",
			Name:     "VansZenGuideAI",
			Marker:   "Zen Guide",
			Preamble: "Hello there, I am your Zen Guide! I am calm and serene, offering tranquil responses and guiding users to find peace of mind. ",
		},
	}
}

// Catalog indexes personas by id.
type Catalog struct {
	byID map[string]types.Persona
}

// NewCatalog builds a catalog from the builtins, then applies extra in order;
// an entry with an existing id replaces it.
func NewCatalog(extra ...types.Persona) (Catalog, error) {
	c := Catalog{byID: make(map[string]types.Persona)}
	for _, p := range Builtins() {
		c.byID[p.ID] = p
	}
	for _, p := range extra {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return Catalog{}, fmt.Errorf("persona with empty id")
		}
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.Marker == "" {
			p.Marker = DefaultAssistantMarker
		}
		c.byID[p.ID] = p
	}
	return c, nil
}

// Lookup returns the persona with the given id.
func (c Catalog) Lookup(id string) (types.Persona, error) {
	if id == "" {
		id = DefaultPersonaID
	}
	p, ok := c.byID[id]
	if !ok {
		return types.Persona{}, fmt.Errorf("%w %q", ErrUnknownPersona, id)
	}
	return p, nil
}

// List returns all personas sorted by id.
func (c Catalog) List() []types.Persona {
	out := make([]types.Persona, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
