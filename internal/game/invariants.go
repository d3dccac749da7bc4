package game

import (
	"fmt"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/crowd"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// Verify checks the session state rules that must hold between ticks and
// returns the first violation found.
func (s *Session) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyLocked()
}

func (s *Session) verifyLocked() error {
	seen := make(map[string]cards.ZoneKind)
	for _, sd := range side.All {
		zones := [...][]*cards.Card{
			cards.ZoneDeck:        s.zones.Deck(sd),
			cards.ZoneHand:        s.zones.Hand(sd),
			cards.ZoneBattlefield: s.zones.Battlefield(sd),
		}
		for i, zone := range zones {
			kind := cards.ZoneKind(i)
			for _, card := range zone {
				if prev, dup := seen[card.ID]; dup {
					return fmt.Errorf("card %s is in %s and %s", card.ID, prev, kind)
				}
				seen[card.ID] = kind
				if card.Zone != kind || card.Owner != sd {
					return fmt.Errorf("card %s thinks it is in %s/%s but sits in %s/%s",
						card.ID, card.Owner, card.Zone, sd, kind)
				}
				if want := faceUp(card, sd); card.FaceUp != want {
					return fmt.Errorf("card %s in %s/%s has face up %t", card.ID, sd, kind, card.FaceUp)
				}
			}
		}

		value := s.ledger.Crowd(sd)
		if value != clampCrowd(len(zones[cards.ZoneBattlefield])) {
			return fmt.Errorf("%s crowd %d does not match battlefield size %d",
				sd, value, len(zones[cards.ZoneBattlefield]))
		}
		for i, card := range zones[cards.ZoneHand] {
			if legal := card.CastCost() <= value; card.Legal != legal {
				return fmt.Errorf("%s hand card %d (%s) legal=%t with cost %d and crowd %d",
					sd, i, card.Name(), card.Legal, card.CastCost(), value)
			}
		}
	}
	return nil
}

// faceUp is the visibility rule for a card at rest in a zone.
func faceUp(card *cards.Card, owner side.Side) bool {
	switch card.Zone {
	case cards.ZoneBattlefield:
		return true
	case cards.ZoneHand:
		return owner.Human()
	default:
		return false
	}
}

func clampCrowd(n int) int {
	if n > crowd.MaxCrowd {
		return crowd.MaxCrowd
	}
	return n
}
