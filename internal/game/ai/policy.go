// Package ai picks plays for the computer-controlled side.
package ai

import (
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap"
)

// Policy plays the lowest-index legal card in hand. It has no lookahead and
// keeps no state between calls.
type Policy struct {
	seat   side.Side
	logger *zap.Logger
}

// NewPolicy creates a policy for the given seat. logger may be nil.
func NewPolicy(seat side.Side, logger *zap.Logger) *Policy {
	return &Policy{seat: seat, logger: logger}
}

// Seat returns the side this policy plays for.
func (p *Policy) Seat() side.Side {
	return p.seat
}

// Choose returns the hand index to play, or false when no card is legal.
func (p *Policy) Choose(hand []*cards.Card) (int, bool) {
	for i, card := range hand {
		if card != nil && card.Legal {
			if p.logger != nil {
				p.logger.Debug("ai chose card",
					zap.String("side", p.seat.String()),
					zap.Int("hand_index", i),
					zap.String("card_name", card.Name()),
				)
			}
			return i, true
		}
	}
	if p.logger != nil {
		p.logger.Debug("ai has no legal play",
			zap.String("side", p.seat.String()),
			zap.Int("hand_size", len(hand)),
		)
	}
	return -1, false
}
