package watchers

import (
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// Keys under which the session registers the common watchers.
const (
	KeyCreaturesCast   = "CreaturesCastWatcher"
	KeyCardsDrawn      = "CardsDrawnWatcher"
	KeyRejectedIntents = "RejectedIntentsWatcher"
)

// CreaturesCastWatcher tracks creatures played this turn.
type CreaturesCastWatcher struct {
	*rules.BaseWatcher
	cast map[side.Side][]string // side -> card IDs in play order
}

// NewCreaturesCastWatcher creates a new creatures cast watcher.
func NewCreaturesCastWatcher() *CreaturesCastWatcher {
	return &CreaturesCastWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, KeyCreaturesCast),
		cast:        make(map[side.Side][]string),
	}
}

// Watch implements the Watcher interface.
func (w *CreaturesCastWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCastCreature || event.CardID == "" || !event.Side.Valid() {
		return
	}
	w.cast[event.Side] = append(w.cast[event.Side], event.CardID)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CreaturesCastWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.cast = make(map[side.Side][]string)
}

// GetCast returns the card IDs a side played this turn.
func (w *CreaturesCastWatcher) GetCast(s side.Side) []string {
	return append([]string(nil), w.cast[s]...)
}

// GetCount returns the number of creatures a side played this turn.
func (w *CreaturesCastWatcher) GetCount(s side.Side) int {
	return len(w.cast[s])
}

// CardsDrawnWatcher tracks cards drawn this turn.
type CardsDrawnWatcher struct {
	*rules.BaseWatcher
	drawn map[side.Side]int
}

// NewCardsDrawnWatcher creates a new cards drawn watcher.
func NewCardsDrawnWatcher() *CardsDrawnWatcher {
	return &CardsDrawnWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, KeyCardsDrawn),
		drawn:       make(map[side.Side]int),
	}
}

// Watch implements the Watcher interface.
func (w *CardsDrawnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDrewCard || !event.Side.Valid() {
		return
	}
	w.drawn[event.Side]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CardsDrawnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.drawn = make(map[side.Side]int)
}

// GetCount returns the number of cards a side drew this turn.
func (w *CardsDrawnWatcher) GetCount(s side.Side) int {
	return w.drawn[s]
}

// RejectedIntentsWatcher counts play intents that were refused this turn.
type RejectedIntentsWatcher struct {
	*rules.BaseWatcher
	rejected map[side.Side]int
}

// NewRejectedIntentsWatcher creates a new rejected intents watcher.
func NewRejectedIntentsWatcher() *RejectedIntentsWatcher {
	return &RejectedIntentsWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame, KeyRejectedIntents),
		rejected:    make(map[side.Side]int),
	}
}

// Watch implements the Watcher interface.
func (w *RejectedIntentsWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventPlayRejected || !event.Side.Valid() {
		return
	}
	w.rejected[event.Side]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *RejectedIntentsWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.rejected = make(map[side.Side]int)
}

// GetCount returns the number of rejected intents for a side this turn.
func (w *RejectedIntentsWatcher) GetCount(s side.Side) int {
	return w.rejected[s]
}

// RegisterCommon adds the common watchers to a registry.
func RegisterCommon(registry *rules.WatcherRegistry) {
	registry.AddWatcher(NewCreaturesCastWatcher())
	registry.AddWatcher(NewCardsDrawnWatcher())
	registry.AddWatcher(NewRejectedIntentsWatcher())
}
