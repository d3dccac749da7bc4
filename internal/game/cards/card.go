package cards

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// ZoneKind names the three per-side card containers.
type ZoneKind int

const (
	ZoneDeck ZoneKind = iota
	ZoneHand
	ZoneBattlefield
)

var zoneNames = map[ZoneKind]string{
	ZoneDeck:        "DECK",
	ZoneHand:        "HAND",
	ZoneBattlefield: "BATTLEFIELD",
}

func (z ZoneKind) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// Card is a card instance living in exactly one zone for the whole session.
//
// Zone, Owner and FaceUp are written only by the zone manager; Legal is
// written only by the play validator; Focused is an input-layer marker that
// the zone manager clears when the card is played.
type Card struct {
	ID     string
	Def    Definition
	Owner  side.Side
	Zone   ZoneKind
	HP     int // current hit points
	FaceUp bool
	Legal  bool

	Focused bool
}

// NewCard instantiates a definition for an owner. The card starts face down in the deck.
func NewCard(def Definition, owner side.Side) *Card {
	return &Card{
		ID:    uuid.NewString(),
		Def:   def,
		Owner: owner,
		Zone:  ZoneDeck,
		HP:    def.Stats.HP,
	}
}

// BuildDeck instantiates a deck list for one owner, preserving order.
func BuildDeck(list []Definition, owner side.Side) []*Card {
	deck := make([]*Card, 0, len(list))
	for _, def := range list {
		deck = append(deck, NewCard(def, owner))
	}
	return deck
}

// Name returns the definition name.
func (c *Card) Name() string {
	return c.Def.Name
}

// CastCost returns the crowd needed to play the card.
func (c *Card) CastCost() int {
	return c.Def.Stats.CastCost
}

// StatsText renders "power/current hp" as shown on the card front.
func (c *Card) StatsText() string {
	return fmt.Sprintf("%d/%d", c.Def.Stats.Power, c.HP)
}

// CostsText renders "minimum/cast" as shown on the card front.
func (c *Card) CostsText() string {
	return fmt.Sprintf("%d/%d", c.Def.Stats.MinimumCrowd, c.Def.Stats.CastCost)
}
