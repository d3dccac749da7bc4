package zones

import (
	"errors"
	"fmt"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap"
)

var (
	// ErrInvalidIndex is returned when a hand index is out of bounds.
	ErrInvalidIndex = errors.New("invalid hand index")
	// ErrNotLegal is returned when the selected card is not legal to play.
	ErrNotLegal = errors.New("card is not legal to play")
)

// sideZones holds the three ordered zones of one side.
type sideZones struct {
	deck        []*cards.Card // top of deck is the last element
	hand        []*cards.Card
	battlefield []*cards.Card
}

// Manager owns zone membership for both sides. Draw and Play are the only
// operations that move cards between zones.
type Manager struct {
	zones  [len(side.All)]sideZones
	bus    rules.Publisher
	logger *zap.Logger
}

// NewManager creates an empty zone manager. bus and logger may be nil.
func NewManager(bus rules.Publisher, logger *zap.Logger) *Manager {
	return &Manager{
		bus:    bus,
		logger: logger,
	}
}

func (m *Manager) side(s side.Side) *sideZones {
	if !s.Valid() {
		return nil
	}
	return &m.zones[s]
}

// Deal places a freshly built deck into a side's Deck zone, replacing any
// previous deck. Cards are reset to face down and take s as their owner.
func (m *Manager) Deal(s side.Side, deck []*cards.Card) {
	z := m.side(s)
	if z == nil {
		return
	}
	z.deck = make([]*cards.Card, 0, len(deck))
	for _, card := range deck {
		if card == nil {
			continue
		}
		card.Owner = s
		card.Zone = cards.ZoneDeck
		card.FaceUp = false
		card.Legal = false
		card.Focused = false
		z.deck = append(z.deck, card)
	}
}

// Draw moves up to count cards from the top of a side's deck to the end of
// its hand, keeping their relative order. A short or empty deck yields fewer
// cards; it is not an error. The moved cards are returned.
func (m *Manager) Draw(s side.Side, count int) []*cards.Card {
	z := m.side(s)
	if z == nil || count <= 0 {
		return nil
	}

	m.publish(rules.NewEventWithAmount(rules.EventDrawCard, "", s, count))

	n := count
	if n > len(z.deck) {
		n = len(z.deck)
	}
	if n == 0 {
		return nil
	}

	start := len(z.deck) - n
	drawn := make([]*cards.Card, n)
	copy(drawn, z.deck[start:])
	z.deck = z.deck[:start]

	for _, card := range drawn {
		card.Zone = cards.ZoneHand
		card.FaceUp = s.Human()
		z.hand = append(z.hand, card)

		m.publishMove(card, cards.ZoneDeck)
		evt := rules.NewEvent(rules.EventDrewCard, card.ID, s)
		evt.Zone = cards.ZoneHand
		m.publish(evt)
	}

	if m.logger != nil {
		m.logger.Debug("cards drawn",
			zap.String("side", s.String()),
			zap.Int("requested", count),
			zap.Int("drawn", n),
			zap.Int("deck_left", len(z.deck)),
		)
	}
	return drawn
}

// Play moves the card at handIndex from a side's hand to the end of its
// battlefield. Nothing changes when the index is out of range or the card is
// not legal to play.
func (m *Manager) Play(s side.Side, handIndex int) (*cards.Card, error) {
	z := m.side(s)
	handSize := 0
	if z != nil {
		handSize = len(z.hand)
	}
	if handIndex < 0 || handIndex >= handSize {
		return nil, fmt.Errorf("%w: %d (hand size %d)", ErrInvalidIndex, handIndex, handSize)
	}

	card := z.hand[handIndex]
	if !card.Legal {
		return nil, fmt.Errorf("%w: %s costs %d", ErrNotLegal, card.Name(), card.CastCost())
	}

	z.hand = append(z.hand[:handIndex], z.hand[handIndex+1:]...)
	card.Zone = cards.ZoneBattlefield
	card.FaceUp = true
	card.Legal = false
	card.Focused = false
	z.battlefield = append(z.battlefield, card)

	m.publishMove(card, cards.ZoneHand)
	etb := rules.NewEvent(rules.EventEntersTheBattlefield, card.ID, s)
	etb.Zone = cards.ZoneBattlefield
	etb.Description = fmt.Sprintf("%s enters the battlefield", card.Name())
	m.publish(etb)
	cast := rules.NewEventWithAmount(rules.EventCastCreature, card.ID, s, card.CastCost())
	cast.Description = fmt.Sprintf("%s cast", card.Name())
	m.publish(cast)

	if m.logger != nil {
		m.logger.Debug("card played",
			zap.String("side", s.String()),
			zap.String("card_id", card.ID),
			zap.String("card_name", card.Name()),
			zap.Int("hand_index", handIndex),
		)
	}
	return card, nil
}

// Focus sets the pointer marker on one hand card and clears it on the others.
// A negative index clears the whole hand.
func (m *Manager) Focus(s side.Side, handIndex int) error {
	z := m.side(s)
	if z == nil {
		return nil
	}
	if handIndex >= len(z.hand) {
		return fmt.Errorf("%w: %d (hand size %d)", ErrInvalidIndex, handIndex, len(z.hand))
	}
	for i, card := range z.hand {
		card.Focused = i == handIndex
	}
	return nil
}

// Deck returns a copy of a side's deck, bottom first.
func (m *Manager) Deck(s side.Side) []*cards.Card {
	if z := m.side(s); z != nil {
		return append([]*cards.Card(nil), z.deck...)
	}
	return nil
}

// Hand returns a copy of a side's hand in index order.
func (m *Manager) Hand(s side.Side) []*cards.Card {
	if z := m.side(s); z != nil {
		return append([]*cards.Card(nil), z.hand...)
	}
	return nil
}

// Battlefield returns a copy of a side's battlefield in play order.
func (m *Manager) Battlefield(s side.Side) []*cards.Card {
	if z := m.side(s); z != nil {
		return append([]*cards.Card(nil), z.battlefield...)
	}
	return nil
}

// Count returns the number of cards in one zone of a side.
func (m *Manager) Count(s side.Side, zone cards.ZoneKind) int {
	z := m.side(s)
	if z == nil {
		return 0
	}
	switch zone {
	case cards.ZoneDeck:
		return len(z.deck)
	case cards.ZoneHand:
		return len(z.hand)
	case cards.ZoneBattlefield:
		return len(z.battlefield)
	default:
		return 0
	}
}

// Locate finds a card by id in any zone of either side.
func (m *Manager) Locate(cardID string) (*cards.Card, bool) {
	var found *cards.Card
	m.Each(func(card *cards.Card) bool {
		if card.ID == cardID {
			found = card
			return false
		}
		return true
	})
	return found, found != nil
}

// Each visits every card, side by side, deck then hand then battlefield.
// Returning false stops the walk.
func (m *Manager) Each(visit func(card *cards.Card) bool) {
	for i := range m.zones {
		z := &m.zones[i]
		for _, zone := range [][]*cards.Card{z.deck, z.hand, z.battlefield} {
			for _, card := range zone {
				if !visit(card) {
					return
				}
			}
		}
	}
}

func (m *Manager) publishMove(card *cards.Card, from cards.ZoneKind) {
	evt := rules.NewEvent(rules.EventZoneChange, card.ID, card.Owner)
	evt.FromZone = from
	evt.Zone = card.Zone
	evt.Description = fmt.Sprintf("%s moved from %s to %s", card.Name(), from, card.Zone)
	m.publish(evt)
}

func (m *Manager) publish(evt rules.Event) {
	if m.bus != nil {
		m.bus.Publish(evt)
	}
}
