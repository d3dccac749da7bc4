package game

import (
	"time"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"github.com/thraizz/crowd-server-go/internal/game/watchers"
)

// GameView is the presentation projection of a session for one viewer.
type GameView struct {
	GameID    string     `json:"game_id"`
	Status    string     `json:"status"`
	Viewer    string     `json:"viewer"`
	Tick      uint64     `json:"tick"`
	Turn      TurnView   `json:"turn"`
	Sides     []SideView `json:"sides"`
	QueueLen  int        `json:"queue_len"`
	StartedAt time.Time  `json:"started_at"`
	// LastRejection explains the most recent refused intent until one is applied.
	LastRejection string `json:"last_rejection,omitempty"`
	// Triggered lists the watchers that fired this turn.
	Triggered []string `json:"triggered,omitempty"`
}

// TurnView describes the turn indicator.
type TurnView struct {
	Phase     string `json:"phase"`
	IconIndex int    `json:"icon_index"`
	Active    string `json:"active"`
	Number    int    `json:"number"`
}

// SideView is one side of the table.
type SideView struct {
	Side          string     `json:"side"`
	HP            int        `json:"hp"`
	MaxHP         int        `json:"max_hp"`
	Crowd         int        `json:"crowd"`
	DeckCount     int        `json:"deck_count"`
	HandCount     int        `json:"hand_count"`
	Hand          []CardView `json:"hand"`
	Battlefield   []CardView `json:"battlefield"`
	PlaysThisTurn int        `json:"plays_this_turn"`
	DrawsThisTurn int        `json:"draws_this_turn"`
}

// CardView is what the viewer can see of a card.
type CardView struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Zone    string `json:"zone"`
	Owner   string `json:"owner"`
	Index   int    `json:"index"`
	FaceUp  bool   `json:"face_up"`
	Legal   bool   `json:"legal"`
	Grayed  bool   `json:"grayed"`
	Focused bool   `json:"focused,omitempty"`
	Stats   string `json:"stats,omitempty"`
	Costs   string `json:"costs,omitempty"`
	Art     string `json:"art,omitempty"`
	Flavor  string `json:"flavor,omitempty"`
}

// View projects the session for a viewer. Face-down cards of the other
// side show only their position.
func (s *Session) View(viewer side.Side) *GameView {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := s.turn.State()
	view := &GameView{
		GameID: s.id,
		Status: s.status.String(),
		Viewer: viewer.String(),
		Tick:   s.ticks,
		Turn: TurnView{
			Phase:     turn.Phase.String(),
			IconIndex: turn.IconIndex,
			Active:    turn.Active.String(),
			Number:    turn.TurnNumber,
		},
		Sides:         make([]SideView, 0, len(side.All)),
		QueueLen:      len(s.queue),
		StartedAt:     s.startedAt,
		LastRejection: s.lastRejection,
	}

	for _, w := range s.watchers.GetWatchersByScope(rules.WatcherScopeGame) {
		if w.ConditionMet() {
			view.Triggered = append(view.Triggered, w.GetKey())
		}
	}

	casts, _ := s.watchers.GetWatcher(watchers.KeyCreaturesCast).(*watchers.CreaturesCastWatcher)
	draws, _ := s.watchers.GetWatcher(watchers.KeyCardsDrawn).(*watchers.CardsDrawnWatcher)

	for _, sd := range side.All {
		sv := SideView{
			Side:        sd.String(),
			HP:          s.hp[sd].Current,
			MaxHP:       s.hp[sd].Max,
			Crowd:       s.ledger.Crowd(sd),
			DeckCount:   s.zones.Count(sd, cards.ZoneDeck),
			HandCount:   s.zones.Count(sd, cards.ZoneHand),
			Hand:        buildCardViews(s.zones.Hand(sd), viewer),
			Battlefield: buildCardViews(s.zones.Battlefield(sd), viewer),
		}
		if casts != nil {
			sv.PlaysThisTurn = casts.GetCount(sd)
		}
		if draws != nil {
			sv.DrawsThisTurn = draws.GetCount(sd)
		}
		view.Sides = append(view.Sides, sv)
	}
	return view
}

func buildCardViews(cs []*cards.Card, viewer side.Side) []CardView {
	views := make([]CardView, 0, len(cs))
	for i, card := range cs {
		cv := CardView{
			ID:     card.ID,
			Zone:   card.Zone.String(),
			Owner:  card.Owner.String(),
			Index:  i,
			FaceUp: card.FaceUp,
		}
		if card.FaceUp || card.Owner == viewer {
			cv.Name = card.Name()
			cv.Legal = card.Legal
			cv.Grayed = card.Zone == cards.ZoneHand && !card.Legal
			cv.Focused = card.Focused
			cv.Stats = card.StatsText()
			cv.Costs = card.CostsText()
			cv.Art = card.Def.Art
			cv.Flavor = card.Def.Flavor
		}
		views = append(views, cv)
	}
	return views
}

// Phase returns the phase shown by a view.
func (v *GameView) Phase() (rules.Phase, bool) {
	return rules.ParsePhase(v.Turn.Phase)
}

// Side returns the view of one side.
func (v *GameView) Side(sd side.Side) (SideView, bool) {
	for _, sv := range v.Sides {
		if sv.Side == sd.String() {
			return sv, true
		}
	}
	return SideView{}, false
}
