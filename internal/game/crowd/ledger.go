package crowd

import (
	"strconv"
	"sync"

	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// MaxCrowd caps the crowd value of a side.
const MaxCrowd = 255

// ZoneCounter reports zone sizes. The zone manager satisfies it.
type ZoneCounter interface {
	Count(s side.Side, zone cards.ZoneKind) int
}

// Ledger holds the crowd value of each side. Crowd is derived from the
// battlefield size and only changes through Recompute.
type Ledger struct {
	mu    sync.RWMutex
	crowd [len(side.All)]int
	bus   rules.Publisher
}

// NewLedger creates a ledger with zero crowd on both sides. bus may be nil.
func NewLedger(bus rules.Publisher) *Ledger {
	return &Ledger{bus: bus}
}

// Recompute sets each side's crowd to its battlefield size, clamped to
// [0, MaxCrowd], and publishes EventCrowdChanged for every side whose value moved.
func (l *Ledger) Recompute(zones ZoneCounter) {
	if zones == nil {
		return
	}

	var changed []rules.Event
	l.mu.Lock()
	for _, s := range side.All {
		next := clamp(zones.Count(s, cards.ZoneBattlefield))
		if l.crowd[s] == next {
			continue
		}
		evt := rules.NewEventWithAmount(rules.EventCrowdChanged, "", s, next)
		evt.Metadata["previous"] = strconv.Itoa(l.crowd[s])
		l.crowd[s] = next
		changed = append(changed, evt)
	}
	l.mu.Unlock()

	if l.bus != nil {
		for _, evt := range changed {
			l.bus.Publish(evt)
		}
	}
}

// Crowd returns the current crowd of a side. Unknown sides have no crowd.
func (l *Ledger) Crowd(s side.Side) int {
	if !s.Valid() {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.crowd[s]
}

// CanAfford reports whether a side's crowd covers a cast cost.
func (l *Ledger) CanAfford(s side.Side, cost int) bool {
	return cost <= l.Crowd(s)
}

// Snapshot returns the crowd of both sides indexed by side.
func (l *Ledger) Snapshot() [len(side.All)]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.crowd
}

func clamp(n int) int {
	switch {
	case n < 0:
		return 0
	case n > MaxCrowd:
		return MaxCrowd
	default:
		return n
	}
}
