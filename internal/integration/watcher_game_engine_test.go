package integration

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap/zaptest"
)

type eventLog struct {
	mu     sync.Mutex
	events []rules.Event
}

func (l *eventLog) record(e rules.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(t rules.EventType, sd side.Side) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t && e.Side == sd {
			n++
		}
	}
	return n
}

func newWatchedSession(t *testing.T) (*game.Session, *eventLog) {
	t.Helper()
	opts := game.DefaultOptions()
	opts.CheckInvariants = true
	s, err := game.NewSession("watched", opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	log := &eventLog{}
	s.Events().Subscribe(log.record)
	return s, log
}

// tickUntil ticks until cond holds, failing after limit ticks.
func tickUntil(t *testing.T, s *game.Session, limit int, cond func() bool) {
	t.Helper()
	for i := 0; i < limit; i++ {
		if cond() {
			return
		}
		s.Tick()
	}
	require.True(t, cond(), "condition not reached in %d ticks", limit)
}

func TestWatchersFollowTheTurn(t *testing.T) {
	s, log := newWatchedSession(t)

	// Opening hands are not counted against the first turn.
	view := s.View(side.Player)
	assert.Zero(t, view.Sides[side.Player].DrawsThisTurn)

	require.NoError(t, s.Submit(game.PlayIntent(side.Player, 1)))
	report := s.Tick()
	require.Len(t, report.Outcomes, 1)
	require.True(t, report.Outcomes[0].Applied)

	view = s.View(side.Player)
	assert.Equal(t, 1, view.Sides[side.Player].PlaysThisTurn)
	assert.Equal(t, 1, view.Sides[side.Player].DrawsThisTurn)
	assert.Equal(t, 1, log.count(rules.EventCastCreature, side.Player))
	assert.Equal(t, 1, log.count(rules.EventEntersTheBattlefield, side.Player))

	// Through combat and end of turn into the computer's turn, which plays at once.
	tickUntil(t, s, 10, func() bool { return s.Turn().Active == side.Opponent && len(s.Battlefield(side.Opponent)) == 1 })

	view = s.View(side.Player)
	assert.Zero(t, view.Sides[side.Player].PlaysThisTurn)
	assert.Equal(t, 1, view.Sides[side.Opponent].PlaysThisTurn)
	assert.Equal(t, 1, view.Sides[side.Opponent].DrawsThisTurn)
	assert.Equal(t, 1, log.count(rules.EventEndTurn, side.Player))
	assert.Equal(t, 1, log.count(rules.EventBeginTurn, side.Opponent))
}

func TestRejectedIntentsArePublished(t *testing.T) {
	s, log := newWatchedSession(t)

	// Opponent intent during the human's turn, then an unaffordable Ghost.
	require.NoError(t, s.Submit(game.PlayIntent(side.Opponent, 0)))
	require.NoError(t, s.Submit(game.PlayIntent(side.Player, 0)))

	first := s.Tick()
	require.Len(t, first.Outcomes, 1)
	assert.ErrorIs(t, first.Outcomes[0].Err, game.ErrNotActivePlayer)

	second := s.Tick()
	require.Len(t, second.Outcomes, 1)
	assert.False(t, second.Outcomes[0].Applied)
	assert.Error(t, second.Outcomes[0].Err)

	assert.Equal(t, 1, log.count(rules.EventPlayRejected, side.Opponent))
	assert.Equal(t, 1, log.count(rules.EventPlayRejected, side.Player))
	assert.Equal(t, rules.PhasePlayCreature, s.Turn().Phase)
	assert.Empty(t, s.Battlefield(side.Player))
}

func TestCrowdEventsTrackBattlefield(t *testing.T) {
	s, log := newWatchedSession(t)

	require.NoError(t, s.Submit(game.PlayIntent(side.Player, 1)))
	s.Tick()

	assert.Equal(t, 1, s.Crowd(side.Player))
	assert.Equal(t, 1, log.count(rules.EventCrowdChanged, side.Player))

	// With one crowd the Ghosts in hand become playable.
	for _, c := range s.Hand(side.Player) {
		assert.True(t, c.Legal, c.Name())
	}
}
