package rules

import (
	"fmt"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// HandReader provides read access to the hands being validated.
type HandReader interface {
	// Hand returns the cards in a side's hand in index order.
	Hand(s side.Side) []*cards.Card
}

// CrowdReader provides the current crowd value of a side.
type CrowdReader interface {
	Crowd(s side.Side) int
}

// LegalityResult represents the result of a legality check.
type LegalityResult struct {
	Legal   bool
	Reason  string
	Details map[string]string
}

// PlayValidator projects play legality onto hand cards.
// It keeps no state of its own: every flag it writes is re-derived from the
// hands and the crowd ledger on each call to Recompute.
type PlayValidator struct {
	hands HandReader
	crowd CrowdReader
}

// NewPlayValidator creates a validator reading from the given hands and ledger.
func NewPlayValidator(hands HandReader, crowd CrowdReader) *PlayValidator {
	return &PlayValidator{
		hands: hands,
		crowd: crowd,
	}
}

// Recompute sets Legal on every hand card of both sides and returns the
// number of cards whose flag changed.
func (v *PlayValidator) Recompute() int {
	if v == nil || v.hands == nil || v.crowd == nil {
		return 0
	}

	changed := 0
	for _, s := range side.All {
		crowd := v.crowd.Crowd(s)
		for _, card := range v.hands.Hand(s) {
			legal := card.CastCost() <= crowd
			if card.Legal != legal {
				card.Legal = legal
				changed++
			}
		}
	}
	return changed
}

// Check explains whether a card may be played right now. It does not modify the card.
func (v *PlayValidator) Check(card *cards.Card) LegalityResult {
	if card == nil {
		return LegalityResult{Legal: false, Reason: "Card not found"}
	}
	if card.Zone != cards.ZoneHand {
		return LegalityResult{
			Legal:  false,
			Reason: "Card is not in a hand",
			Details: map[string]string{
				"card_id": card.ID,
				"zone":    card.Zone.String(),
			},
		}
	}
	if v == nil || v.crowd == nil {
		return LegalityResult{Legal: false, Reason: "Play validator not initialized"}
	}

	crowd := v.crowd.Crowd(card.Owner)
	if card.CastCost() > crowd {
		return LegalityResult{
			Legal:  false,
			Reason: "Not enough crowd",
			Details: map[string]string{
				"card_id":   card.ID,
				"cast_cost": fmt.Sprintf("%d", card.CastCost()),
				"crowd":     fmt.Sprintf("%d", crowd),
			},
		}
	}

	return LegalityResult{
		Legal:  true,
		Reason: "Cast cost is covered by crowd",
	}
}
