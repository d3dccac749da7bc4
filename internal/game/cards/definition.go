package cards

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultDeckMultiplier is how many times the base set is replicated into a deck.
const DefaultDeckMultiplier = 10

var (
	// ErrEmptyCatalog is returned when a deck is requested from a catalog without definitions.
	ErrEmptyCatalog = errors.New("catalog has no card definitions")
	// ErrDuplicateDefinition is returned when two definitions share a name.
	ErrDuplicateDefinition = errors.New("duplicate card definition")
)

// Stats are the immutable gameplay numbers printed on a card.
type Stats struct {
	HP           int
	Power        int
	CastCost     int // crowd required to play the card
	MinimumCrowd int // crowd the card needs to stay around; shown but not enforced
}

// Definition is one named entry of the card catalog.
type Definition struct {
	Name   string
	Stats  Stats
	Art    string // presentation asset reference
	Flavor string
}

// Catalog is an immutable, ordered set of card definitions.
type Catalog struct {
	defs   []Definition
	byName map[string]int
}

// NewCatalog validates and freezes a list of definitions.
// Names are compared case-insensitively.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		defs:   make([]Definition, 0, len(defs)),
		byName: make(map[string]int, len(defs)),
	}
	for _, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("card definition %d has no name", len(c.defs))
		}
		key := strings.ToLower(name)
		if _, exists := c.byName[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDefinition, name)
		}
		if def.Stats.CastCost < 0 || def.Stats.MinimumCrowd < 0 {
			return nil, fmt.Errorf("card %s has a negative cost", name)
		}
		def.Name = name
		c.byName[key] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// DefaultCatalog returns the built-in base set.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog([]Definition{
		{
			Name:   "Test Unit",
			Art:    "placeholder",
			Flavor: "Beep Boop, debugging is fun",
			Stats:  Stats{HP: 2, Power: 2, CastCost: 0, MinimumCrowd: 0},
		},
		{
			Name:   "Ghost",
			Art:    "ghost",
			Flavor: "I am very scary :P",
			Stats:  Stats{HP: 1, Power: 1, CastCost: 1, MinimumCrowd: 0},
		},
	})
	return c
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Definitions returns a copy of the definitions in catalog order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Lookup finds a definition by name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	idx, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Definition{}, false
	}
	return c.defs[idx], true
}

// DeckList assembles the session deck list: the base set in catalog order,
// repeated multiplier times. The last entry is the top of the deck.
func (c *Catalog) DeckList(multiplier int) ([]Definition, error) {
	if len(c.defs) == 0 {
		return nil, ErrEmptyCatalog
	}
	if multiplier < 1 {
		return nil, fmt.Errorf("deck multiplier must be at least 1, got %d", multiplier)
	}
	deck := make([]Definition, 0, len(c.defs)*multiplier)
	for i := 0; i < multiplier; i++ {
		deck = append(deck, c.defs...)
	}
	return deck, nil
}
