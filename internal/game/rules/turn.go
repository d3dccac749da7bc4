package rules

import (
	"fmt"

	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// Phase is one step of a turn.
type Phase int

const (
	PhaseDrawCard Phase = iota
	PhasePlayCreature
	PhaseSelectAttackers
	PhaseSelectDefenders
	PhaseResolveCombat
	PhaseHeal
	PhaseEndOfTurn
)

var phaseNames = map[Phase]string{
	PhaseDrawCard:        "DRAW_CARD",
	PhasePlayCreature:    "PLAY_CREATURE",
	PhaseSelectAttackers: "SELECT_ATTACKERS",
	PhaseSelectDefenders: "SELECT_DEFENDERS",
	PhaseResolveCombat:   "RESOLVE_COMBAT",
	PhaseHeal:            "HEAL",
	PhaseEndOfTurn:       "END_OF_TURN",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// phaseSequence is the strict successor order; EndOfTurn wraps to DrawCard.
var phaseSequence = []Phase{
	PhaseDrawCard,
	PhasePlayCreature,
	PhaseSelectAttackers,
	PhaseSelectDefenders,
	PhaseResolveCombat,
	PhaseHeal,
	PhaseEndOfTurn,
}

// Next returns the strict successor of p.
func (p Phase) Next() Phase {
	for i, phase := range phaseSequence {
		if phase == p {
			return phaseSequence[(i+1)%len(phaseSequence)]
		}
	}
	return PhaseDrawCard
}

// Combat reports whether p is one of the combat placeholder phases.
func (p Phase) Combat() bool {
	switch p {
	case PhaseSelectAttackers, PhaseSelectDefenders, PhaseResolveCombat, PhaseHeal:
		return true
	default:
		return false
	}
}

// icon slots shown by the phase indicator; other phases keep the last slot.
var phaseIcons = map[Phase]int{
	PhasePlayCreature:    0,
	PhaseSelectAttackers: 1,
	PhaseSelectDefenders: 2,
	PhaseResolveCombat:   3,
}

// ParsePhase resolves a phase by its String name.
func ParsePhase(name string) (Phase, bool) {
	for phase, n := range phaseNames {
		if n == name {
			return phase, true
		}
	}
	return 0, false
}

// TurnState is a value copy of the controller used for views and snapshots.
type TurnState struct {
	Phase      Phase
	Active     side.Side
	TurnNumber int
	IconIndex  int
}

// TurnController tracks the current phase and the active side.
//
// Every phase assignment arms an entry edge. TakeEntry consumes it, so the
// caller fires a phase's entry hook exactly once no matter how many ticks the
// phase lasts.
type TurnController struct {
	phase        Phase
	active       side.Side
	turnNumber   int
	iconIndex    int
	passThrough  bool
	pendingEntry bool
}

// NewTurnController creates a controller at turn 1, DrawCard, with first as the active side.
// When passThrough is set a play leads into the combat phases; otherwise it goes
// straight to EndOfTurn.
func NewTurnController(first side.Side, passThrough bool) *TurnController {
	if !first.Valid() {
		first = side.Player
	}
	return &TurnController{
		phase:        PhaseDrawCard,
		active:       first,
		turnNumber:   1,
		passThrough:  passThrough,
		pendingEntry: true,
	}
}

// CurrentPhase returns the phase currently in progress.
func (tc *TurnController) CurrentPhase() Phase {
	return tc.phase
}

// ActivePlayer returns the side whose turn is in progress.
func (tc *TurnController) ActivePlayer() side.Side {
	return tc.active
}

// TurnNumber returns the current turn number (1-based).
func (tc *TurnController) TurnNumber() int {
	return tc.turnNumber
}

// IconIndex returns the phase indicator slot.
func (tc *TurnController) IconIndex() int {
	return tc.iconIndex
}

// PassThrough reports whether plays route through the combat phases.
func (tc *TurnController) PassThrough() bool {
	return tc.passThrough
}

// State returns a copy of the controller state.
func (tc *TurnController) State() TurnState {
	return TurnState{
		Phase:      tc.phase,
		Active:     tc.active,
		TurnNumber: tc.turnNumber,
		IconIndex:  tc.iconIndex,
	}
}

// TakeEntry reports the current phase and whether it was entered since the
// last call. The edge is cleared by the call.
func (tc *TurnController) TakeEntry() (Phase, bool) {
	entered := tc.pendingEntry
	tc.pendingEntry = false
	return tc.phase, entered
}

// Advance moves to the next phase of the turn and returns it.
// PlayCreature skips the combat phases unless pass-through is enabled.
func (tc *TurnController) Advance() Phase {
	next := tc.phase.Next()
	if tc.phase == PhasePlayCreature && !tc.passThrough {
		next = PhaseEndOfTurn
	}
	tc.setPhase(next)
	return next
}

// EndTurn hands the turn to the other side and restarts at DrawCard.
func (tc *TurnController) EndTurn() side.Side {
	tc.active = tc.active.Other()
	tc.turnNumber++
	tc.setPhase(PhaseDrawCard)
	return tc.active
}

func (tc *TurnController) setPhase(p Phase) {
	tc.phase = p
	tc.pendingEntry = true
	if icon, ok := phaseIcons[p]; ok {
		tc.iconIndex = icon
	}
}
