package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"github.com/thraizz/crowd-server-go/internal/game/watchers"
	"github.com/thraizz/crowd-server-go/internal/game/zones"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T, mutate func(*Options)) *Session {
	t.Helper()
	opts := DefaultOptions()
	opts.CheckInvariants = true
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewSession("test-game", opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func catalogOf(t *testing.T, names ...string) *cards.Catalog {
	t.Helper()
	base := cards.DefaultCatalog()
	defs := make([]cards.Definition, 0, len(names))
	for _, name := range names {
		def, ok := base.Lookup(name)
		require.True(t, ok, name)
		defs = append(defs, def)
	}
	c, err := cards.NewCatalog(defs)
	require.NoError(t, err)
	return c
}

func handNames(cs []*cards.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name()
	}
	return out
}

func legality(cs []*cards.Card) []bool {
	out := make([]bool, len(cs))
	for i, c := range cs {
		out[i] = c.Legal
	}
	return out
}

// tickUntil ticks until the session reaches phase with the given active side.
func tickUntil(t *testing.T, s *Session, phase rules.Phase, active side.Side, limit int) {
	t.Helper()
	for i := 0; i < limit; i++ {
		turn := s.Turn()
		if turn.Phase == phase && turn.Active == active {
			return
		}
		s.Tick()
	}
	t.Fatalf("did not reach %s for %s within %d ticks", phase, active, limit)
}

func TestNewSessionDealsOpeningHands(t *testing.T) {
	s := newTestSession(t, nil)

	for _, sd := range side.All {
		assert.Len(t, s.Hand(sd), 7)
		assert.Len(t, s.Deck(sd), 13)
		assert.Empty(t, s.Battlefield(sd))
		assert.Equal(t, 0, s.Crowd(sd))
		assert.Equal(t, HitPoints{Current: 20, Max: 20}, s.HitPoints(sd))
	}

	// Top seven of [Test Unit, Ghost] x 10, bottom first.
	assert.Equal(t,
		[]string{"Ghost", "Test Unit", "Ghost", "Test Unit", "Ghost", "Test Unit", "Ghost"},
		handNames(s.Hand(side.Player)))
	assert.Equal(t,
		[]bool{false, true, false, true, false, true, false},
		legality(s.Hand(side.Player)))

	for _, c := range s.Hand(side.Player) {
		assert.True(t, c.FaceUp)
	}
	for _, c := range s.Hand(side.Opponent) {
		assert.False(t, c.FaceUp)
	}

	turn := s.Turn()
	assert.Equal(t, rules.PhaseDrawCard, turn.Phase)
	assert.Equal(t, side.Player, turn.Active)
	require.NoError(t, s.Verify())
}

func TestNewSessionRejectsBadOptions(t *testing.T) {
	cases := map[string]func(*Options){
		"hp":         func(o *Options) { o.StartingHP = 0 },
		"hand":       func(o *Options) { o.OpeningHand = -1 },
		"queue":      func(o *Options) { o.InputQueueSize = 0 },
		"catalog":    func(o *Options) { o.Catalog = nil },
		"multiplier": func(o *Options) { o.DeckMultiplier = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			opts := DefaultOptions()
			mutate(&opts)
			_, err := NewSession("g", opts, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewSession("", DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestScenarioOpponentPlaysCheapestLegalCard(t *testing.T) {
	s := newTestSession(t, func(o *Options) {
		o.Catalog = catalogOf(t, "Ghost", "Test Unit")
		o.DeckMultiplier = 1
		o.OpeningHand = 2
		o.FirstSide = side.Opponent
	})

	require.Equal(t, []string{"Ghost", "Test Unit"}, handNames(s.Hand(side.Opponent)))
	assert.Equal(t, []bool{false, true}, legality(s.Hand(side.Opponent)))

	report := s.Tick()

	require.True(t, report.Entered)
	assert.Equal(t, rules.PhaseDrawCard, report.EnteredPhase)
	require.Len(t, report.Outcomes, 1)
	outcome := report.Outcomes[0]
	assert.True(t, outcome.Applied)
	assert.Equal(t, PlayIntent(side.Opponent, 1).HandIndex, outcome.Intent.HandIndex)
	assert.Equal(t, "ai", outcome.Intent.Source)

	assert.Equal(t, []string{"Ghost"}, handNames(s.Hand(side.Opponent)))
	assert.Equal(t, []string{"Test Unit"}, handNames(s.Battlefield(side.Opponent)))
	assert.Equal(t, 1, s.Crowd(side.Opponent))
	assert.True(t, s.Hand(side.Opponent)[0].Legal, "Ghost is affordable once crowd is 1")
	assert.True(t, s.Battlefield(side.Opponent)[0].FaceUp)
	require.NoError(t, s.Verify())
}

func TestHumanTurnFlow(t *testing.T) {
	s := newTestSession(t, nil)

	report := s.Tick()
	assert.Equal(t, rules.PhaseDrawCard, report.EnteredPhase)
	assert.Equal(t, rules.PhasePlayCreature, report.PhaseAfter)
	assert.Len(t, s.Hand(side.Player), 8)
	assert.Empty(t, report.Outcomes)

	// Waiting for input does not redraw.
	for i := 0; i < 5; i++ {
		s.Tick()
	}
	assert.Len(t, s.Hand(side.Player), 8)
	assert.Equal(t, rules.PhasePlayCreature, s.Turn().Phase)

	require.NoError(t, s.Submit(PlayIntent(side.Player, 1)))
	report = s.Tick()
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Applied)
	assert.Equal(t, rules.PhaseSelectAttackers, report.PhaseAfter)
	assert.Equal(t, 1, s.Crowd(side.Player))
	assert.Len(t, s.Hand(side.Player), 7)

	// Combat placeholders pass through one per tick.
	for _, want := range []rules.Phase{
		rules.PhaseSelectDefenders,
		rules.PhaseResolveCombat,
		rules.PhaseHeal,
		rules.PhaseEndOfTurn,
		rules.PhaseDrawCard,
	} {
		report = s.Tick()
		assert.Equal(t, want, report.PhaseAfter)
	}
	turn := s.Turn()
	assert.Equal(t, side.Opponent, turn.Active)
	assert.Equal(t, 2, turn.TurnNumber)
}

func TestDirectArcSkipsCombat(t *testing.T) {
	s := newTestSession(t, func(o *Options) { o.CombatPassThrough = false })

	s.Tick()
	require.NoError(t, s.Submit(PassIntent(side.Player)))
	report := s.Tick()
	assert.Equal(t, rules.PhaseEndOfTurn, report.PhaseAfter)

	report = s.Tick()
	assert.Equal(t, rules.PhaseEndOfTurn, report.EnteredPhase)
	assert.Equal(t, rules.PhaseDrawCard, report.PhaseAfter)
	assert.Equal(t, side.Opponent, s.Turn().Active)
}

func TestRejectedIntentsChangeNothing(t *testing.T) {
	s := newTestSession(t, nil)
	s.Tick()
	hand := s.Hand(side.Player)

	require.NoError(t, s.Submit(PlayIntent(side.Player, 42)))
	require.NoError(t, s.Submit(PlayIntent(side.Player, 0))) // Ghost, crowd 0
	require.NoError(t, s.Submit(PlayIntent(side.Opponent, 1)))

	expected := []error{zones.ErrInvalidIndex, zones.ErrNotLegal, ErrNotActivePlayer}
	for _, want := range expected {
		report := s.Tick()
		require.Len(t, report.Outcomes, 1)
		assert.False(t, report.Outcomes[0].Applied)
		assert.ErrorIs(t, report.Outcomes[0].Err, want)
		assert.Equal(t, rules.PhasePlayCreature, report.PhaseAfter)
	}

	assert.Equal(t, hand, s.Hand(side.Player))
	assert.Empty(t, s.Battlefield(side.Player))
	assert.Empty(t, s.Battlefield(side.Opponent))

	view := s.View(side.Player)
	sv, ok := view.Side(side.Player)
	require.True(t, ok)
	assert.Equal(t, 0, sv.PlaysThisTurn)
}

func TestIntentsOutsidePlayPhaseStayQueued(t *testing.T) {
	s := newTestSession(t, nil)
	s.Tick()
	require.NoError(t, s.Submit(PassIntent(side.Player)))
	s.Tick() // SelectAttackers

	require.NoError(t, s.Submit(PassIntent(side.Player)))
	s.Tick()
	s.Tick()
	assert.Equal(t, 1, s.QueueLen())
}

func TestInputQueueIsBounded(t *testing.T) {
	s := newTestSession(t, func(o *Options) { o.InputQueueSize = 2 })

	require.NoError(t, s.Submit(PassIntent(side.Player)))
	require.NoError(t, s.Submit(PassIntent(side.Player)))
	assert.ErrorIs(t, s.Submit(PassIntent(side.Player)), ErrInputQueueFull)

	assert.ErrorIs(t, s.Submit(PassIntent(side.Side(5))), ErrInvalidIntent)
	assert.ErrorIs(t, s.Submit(Intent{Kind: IntentKind(9), Side: side.Player}), ErrInvalidIntent)
}

func TestAIStallWithoutPass(t *testing.T) {
	s := newTestSession(t, func(o *Options) {
		o.Catalog = catalogOf(t, "Ghost")
		o.FirstSide = side.Opponent
		o.AIPassWhenStuck = false
	})

	handBefore := len(s.Hand(side.Opponent))
	for i := 0; i < 20; i++ {
		s.Tick()
	}

	turn := s.Turn()
	assert.Equal(t, rules.PhasePlayCreature, turn.Phase)
	assert.Equal(t, side.Opponent, turn.Active)
	assert.Len(t, s.Hand(side.Opponent), handBefore+1, "draw fires once per phase entry")

	// An explicit pass from the stalled side unblocks it.
	require.NoError(t, s.Submit(PassIntent(side.Opponent)))
	report := s.Tick()
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Applied)
	assert.Equal(t, rules.PhaseSelectAttackers, report.PhaseAfter)
}

func TestAIPassesWhenStuck(t *testing.T) {
	s := newTestSession(t, func(o *Options) {
		o.Catalog = catalogOf(t, "Ghost")
		o.FirstSide = side.Opponent
	})

	report := s.Tick()
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, IntentPass, report.Outcomes[0].Intent.Kind)
	assert.Equal(t, rules.PhaseSelectAttackers, report.PhaseAfter)
	tickUntil(t, s, rules.PhaseDrawCard, side.Player, 10)
}

func TestTurnAlternation(t *testing.T) {
	s := newTestSession(t, nil)

	var order []side.Side
	s.Events().SubscribeTyped(rules.EventBeginTurn, func(e rules.Event) {
		order = append(order, e.Side)
	})

	for i := 0; i < 400 && len(order) < 12; i++ {
		turn := s.Turn()
		if turn.Phase == rules.PhasePlayCreature && turn.Active == side.Player && s.QueueLen() == 0 {
			require.NoError(t, s.Submit(PassIntent(side.Player)))
		}
		s.Tick()
	}

	require.Len(t, order, 12)
	for i, sd := range order {
		want := side.Player
		if i%2 == 1 {
			want = side.Opponent
		}
		assert.Equal(t, want, sd, "turn %d", i+1)
	}
}

func TestRandomPlayKeepsInvariants(t *testing.T) {
	s := newTestSession(t, nil)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 600; i++ {
		turn := s.Turn()
		if turn.Active == side.Player && s.QueueLen() == 0 {
			switch rng.Intn(4) {
			case 0:
				_ = s.Submit(PassIntent(side.Player))
			case 1:
				_ = s.Submit(PlayIntent(side.Opponent, rng.Intn(5)))
			default:
				_ = s.Submit(PlayIntent(side.Player, rng.Intn(len(s.Hand(side.Player))+2)-1))
			}
		}
		s.Tick()
		require.NoError(t, s.Verify(), "tick %d", i)
	}

	total := 0
	for _, sd := range side.All {
		total += len(s.Deck(sd)) + len(s.Hand(sd)) + len(s.Battlefield(sd))
		assert.Empty(t, s.Deck(sd), "decks run out over a long game")
	}
	assert.Equal(t, 40, total)
}

func TestFinishedSessionIgnoresInput(t *testing.T) {
	s := newTestSession(t, nil)
	s.Finish()
	s.Finish()

	assert.ErrorIs(t, s.Submit(PassIntent(side.Player)), ErrGameFinished)
	report := s.Tick()
	assert.False(t, report.Changed())
	assert.Equal(t, StatusFinished, s.Status())
	assert.Equal(t, uint64(0), s.Ticks())
}

func TestNotLegalRejectionExplainsCrowd(t *testing.T) {
	s := newTestSession(t, nil)
	s.Tick()

	var rejected []rules.Event
	s.Events().SubscribeTyped(rules.EventPlayRejected, func(e rules.Event) {
		rejected = append(rejected, e)
	})

	idx := -1
	for i, c := range s.Hand(side.Player) {
		if !c.Legal {
			idx = i
			break
		}
	}
	require.GreaterOrEqual(t, idx, 0, "opening hand has a card the empty crowd cannot pay for")

	require.NoError(t, s.Submit(PlayIntent(side.Player, idx)))
	report := s.Tick()
	require.Len(t, report.Outcomes, 1)
	err := report.Outcomes[0].Err
	assert.ErrorIs(t, err, zones.ErrNotLegal)
	assert.Contains(t, err.Error(), "Not enough crowd, crowd 0")

	require.Len(t, rejected, 1)
	assert.Equal(t, err.Error(), rejected[0].Description)
	assert.Equal(t, "0", rejected[0].Metadata["crowd"])
	assert.Equal(t, "1", rejected[0].Metadata["cast_cost"])
	assert.Equal(t, err.Error(), s.View(side.Player).LastRejection)

	require.NoError(t, s.Submit(PassIntent(side.Player)))
	s.Tick()
	assert.Empty(t, s.View(side.Player).LastRejection)
}

func TestNonActiveIntentIsDroppedDuringStall(t *testing.T) {
	s := newTestSession(t, func(o *Options) {
		o.Catalog = catalogOf(t, "Ghost")
		o.FirstSide = side.Opponent
		o.AIPassWhenStuck = false
	})
	s.Tick()
	s.Tick()
	require.Equal(t, rules.PhasePlayCreature, s.Turn().Phase)

	// Meant for the player's next turn, but consumed while the opponent is stuck.
	require.NoError(t, s.Submit(PassIntent(side.Player)))
	report := s.Tick()
	require.Len(t, report.Outcomes, 1)
	assert.ErrorIs(t, report.Outcomes[0].Err, ErrNotActivePlayer)
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, side.Opponent, s.Turn().Active)
	assert.Equal(t, rules.PhasePlayCreature, s.Turn().Phase)
}

func TestFinishDetachesWatchers(t *testing.T) {
	s := newTestSession(t, nil)
	plays := func() int {
		sv, ok := s.View(side.Player).Side(side.Player)
		require.True(t, ok)
		return sv.PlaysThisTurn
	}

	s.Events().Publish(rules.NewEvent(rules.EventCastCreature, "c1", side.Player))
	assert.Equal(t, 1, plays())

	s.Finish()
	s.Events().Publish(rules.NewEvent(rules.EventCastCreature, "c2", side.Player))
	assert.Equal(t, 1, plays())
}

func TestViewListsTriggeredWatchers(t *testing.T) {
	s := newTestSession(t, nil)
	assert.Empty(t, s.View(side.Player).Triggered)

	s.Tick()
	assert.Equal(t, []string{watchers.KeyCardsDrawn}, s.View(side.Player).Triggered)
}

func TestFocusMarksOneHandCard(t *testing.T) {
	s := newTestSession(t, nil)

	require.NoError(t, s.Focus(side.Player, 2))
	for i, c := range s.Hand(side.Player) {
		assert.Equal(t, i == 2, c.Focused, "card %d", i)
	}
	sv, ok := s.View(side.Player).Side(side.Player)
	require.True(t, ok)
	assert.True(t, sv.Hand[2].Focused)

	require.NoError(t, s.Focus(side.Player, 0))
	assert.True(t, s.Hand(side.Player)[0].Focused)
	assert.False(t, s.Hand(side.Player)[2].Focused)

	assert.ErrorIs(t, s.Focus(side.Player, 7), zones.ErrInvalidIndex)
	assert.True(t, s.Hand(side.Player)[0].Focused, "a bad index changes nothing")

	require.NoError(t, s.Focus(side.Player, -1))
	for _, c := range s.Hand(side.Player) {
		assert.False(t, c.Focused)
	}

	s.Finish()
	assert.ErrorIs(t, s.Focus(side.Player, 0), ErrGameFinished)
}

func TestVerifyReportsFirstViolationInZoneOrder(t *testing.T) {
	s := newTestSession(t, nil)
	deckCard := s.Deck(side.Player)[0]
	handCard := s.Hand(side.Player)[0]
	fieldCard := s.Deck(side.Player)[1]

	deckCard.FaceUp = true
	handCard.Legal = !handCard.Legal
	fieldCard.Zone = cards.ZoneBattlefield

	first := s.Verify()
	require.Error(t, first)
	assert.Contains(t, first.Error(), deckCard.ID)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first.Error(), s.Verify().Error())
	}
}
