package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thraizz/crowd-server-go/internal/game/ai"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/crowd"
	"github.com/thraizz/crowd-server-go/internal/game/rules"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"github.com/thraizz/crowd-server-go/internal/game/watchers"
	"github.com/thraizz/crowd-server-go/internal/game/zones"
	"go.uber.org/zap"
)

var (
	// ErrInputQueueFull is returned when a side submits intents faster than ticks consume them.
	ErrInputQueueFull = errors.New("input queue is full")
	// ErrNotActivePlayer is reported for an intent from the side whose turn it is not.
	ErrNotActivePlayer = errors.New("not the active player")
	// ErrGameFinished is returned when submitting to a session that has ended.
	ErrGameFinished = errors.New("game is finished")
	// ErrInvalidIntent is returned for malformed intents.
	ErrInvalidIntent = errors.New("invalid intent")
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusInProgress Status = iota
	StatusFinished
)

func (s Status) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusFinished:
		return "FINISHED"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}

// IntentKind is the type of a queued player intent.
type IntentKind int

const (
	IntentPlay IntentKind = iota
	IntentPass
)

func (k IntentKind) String() string {
	switch k {
	case IntentPlay:
		return "PLAY"
	case IntentPass:
		return "PASS"
	default:
		return fmt.Sprintf("INTENT_%d", int(k))
	}
}

// Intent is a request from one side, consumed by the tick pipeline.
type Intent struct {
	Kind      IntentKind
	Side      side.Side
	HandIndex int
	Source    string // "ai", "grpc", "websocket", ...
}

// PlayIntent builds a play intent for a hand index.
func PlayIntent(s side.Side, handIndex int) Intent {
	return Intent{Kind: IntentPlay, Side: s, HandIndex: handIndex}
}

// PassIntent builds a pass intent.
func PassIntent(s side.Side) Intent {
	return Intent{Kind: IntentPass, Side: s}
}

// Outcome is the result of consuming one intent.
type Outcome struct {
	Intent  Intent
	Applied bool
	CardID  string
	Err     error
}

// TickReport describes what one tick did.
type TickReport struct {
	Tick         uint64
	PhaseBefore  rules.Phase
	PhaseAfter   rules.Phase
	Entered      bool
	EnteredPhase rules.Phase
	Outcomes     []Outcome
}

// Changed reports whether the tick moved the session forward.
func (r TickReport) Changed() bool {
	return r.Entered || len(r.Outcomes) > 0 || r.PhaseBefore != r.PhaseAfter
}

// Options configure a session.
type Options struct {
	StartingHP        int
	OpeningHand       int
	DeckMultiplier    int
	CombatPassThrough bool
	InputQueueSize    int
	AIPassWhenStuck   bool
	CheckInvariants   bool
	FirstSide         side.Side
	Catalog           *cards.Catalog
}

// DefaultOptions returns the standard session settings.
func DefaultOptions() Options {
	return Options{
		StartingHP:        20,
		OpeningHand:       7,
		DeckMultiplier:    cards.DefaultDeckMultiplier,
		CombatPassThrough: true,
		InputQueueSize:    8,
		AIPassWhenStuck:   true,
		FirstSide:         side.Player,
		Catalog:           cards.DefaultCatalog(),
	}
}

func (o Options) validate() error {
	if o.StartingHP < 1 {
		return fmt.Errorf("starting hp must be positive, got %d", o.StartingHP)
	}
	if o.OpeningHand < 0 {
		return fmt.Errorf("opening hand cannot be negative, got %d", o.OpeningHand)
	}
	if o.InputQueueSize < 1 {
		return fmt.Errorf("input queue size must be positive, got %d", o.InputQueueSize)
	}
	if o.Catalog == nil {
		return cards.ErrEmptyCatalog
	}
	return nil
}

// HitPoints is a side's current and maximum life.
type HitPoints struct {
	Current int
	Max     int
}

// Session is the context of one game: every component of the rule engine
// hangs off it and Tick runs them in order. All exported methods are safe
// for concurrent use; the pipeline itself runs under the session lock.
type Session struct {
	id     string
	opts   Options
	logger *zap.Logger

	bus       *rules.EventBus
	zones     *zones.Manager
	ledger    *crowd.Ledger
	validator *rules.PlayValidator
	turn      *rules.TurnController
	watchers  *rules.WatcherRegistry
	policy    *ai.Policy

	hp            [len(side.All)]HitPoints
	queue         []Intent
	watcherHandle int
	lastRejection string
	ticks         uint64
	status        Status
	startedAt     time.Time
	endedAt       time.Time

	mu sync.Mutex
}

// NewSession deals both decks, draws the opening hands and derives the
// initial crowd and legality. No tick has run yet.
func NewSession(id string, opts Options, logger *zap.Logger) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid session options: %w", err)
	}
	list, err := opts.Catalog.DeckList(opts.DeckMultiplier)
	if err != nil {
		return nil, fmt.Errorf("failed to build deck: %w", err)
	}

	bus := rules.NewEventBus()
	s := &Session{
		id:        id,
		opts:      opts,
		logger:    logger,
		bus:       bus,
		zones:     zones.NewManager(bus, logger),
		ledger:    crowd.NewLedger(bus),
		turn:      rules.NewTurnController(opts.FirstSide, opts.CombatPassThrough),
		watchers:  rules.NewWatcherRegistry(),
		policy:    ai.NewPolicy(side.Opponent, logger),
		queue:     make([]Intent, 0, opts.InputQueueSize),
		status:    StatusInProgress,
		startedAt: time.Now(),
	}
	s.validator = rules.NewPlayValidator(s.zones, s.ledger)
	watchers.RegisterCommon(s.watchers)
	s.watcherHandle = bus.Subscribe(s.watchers.NotifyWatchers)

	for _, sd := range side.All {
		s.hp[sd] = HitPoints{Current: opts.StartingHP, Max: opts.StartingHP}
		s.zones.Deal(sd, cards.BuildDeck(list, sd))
		s.zones.Draw(sd, opts.OpeningHand)
	}
	s.recompute()
	// Opening draws are not part of the first turn.
	s.watchers.ResetWatchers()

	if logger != nil {
		logger.Info("session created",
			zap.String("game_id", id),
			zap.Int("deck_size", len(list)),
			zap.Int("opening_hand", opts.OpeningHand),
			zap.String("first_side", s.turn.ActivePlayer().String()),
		)
	}
	return s, nil
}

// ID returns the game id.
func (s *Session) ID() string {
	return s.id
}

// Events exposes the session event bus. Listeners run inside Tick and must
// not call back into the session.
func (s *Session) Events() *rules.EventBus {
	return s.bus
}

// Submit queues an intent for the next PlayCreature tick.
func (s *Session) Submit(intent Intent) error {
	if !intent.Side.Valid() {
		return fmt.Errorf("%w: unknown side %s", ErrInvalidIntent, intent.Side)
	}
	if intent.Kind != IntentPlay && intent.Kind != IntentPass {
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidIntent, intent.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusFinished {
		return ErrGameFinished
	}
	if len(s.queue) >= s.opts.InputQueueSize {
		return ErrInputQueueFull
	}
	s.queue = append(s.queue, intent)

	evt := rules.NewEventWithAmount(rules.EventIntentQueued, "", intent.Side, intent.HandIndex)
	evt.Metadata["kind"] = intent.Kind.String()
	evt.Metadata["source"] = intent.Source
	s.bus.Publish(evt)
	return nil
}

// Tick runs the pipeline once: phase entry hook, at most one intent,
// ledger and validator recomputation.
func (s *Session) Tick() TickReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := TickReport{
		Tick:        s.ticks + 1,
		PhaseBefore: s.turn.CurrentPhase(),
	}
	if s.status == StatusFinished {
		report.PhaseAfter = report.PhaseBefore
		return report
	}

	if phase, entered := s.turn.TakeEntry(); entered {
		report.Entered = true
		report.EnteredPhase = phase
		s.enterPhase(phase)
	}

	if s.turn.CurrentPhase() == rules.PhasePlayCreature {
		if outcome, ok := s.consumeIntent(); ok {
			report.Outcomes = append(report.Outcomes, outcome)
		}
	}

	s.recompute()
	s.ticks++
	report.PhaseAfter = s.turn.CurrentPhase()

	if s.opts.CheckInvariants {
		if err := s.verifyLocked(); err != nil && s.logger != nil {
			s.logger.Error("session invariant violated",
				zap.String("game_id", s.id),
				zap.Uint64("tick", s.ticks),
				zap.Error(err),
			)
		}
	}
	return report
}

func (s *Session) enterPhase(phase rules.Phase) {
	active := s.turn.ActivePlayer()

	switch phase {
	case rules.PhaseDrawCard:
		s.bus.Publish(rules.NewEventWithAmount(rules.EventBeginTurn, "", active, s.turn.TurnNumber()))
		s.zones.Draw(active, 1)
		s.recompute()
		if active == s.policy.Seat() {
			s.runPolicy()
		}
		s.advance()
	case rules.PhaseEndOfTurn:
		s.bus.Publish(rules.NewEventWithAmount(rules.EventEndTurn, "", active, s.turn.TurnNumber()))
		s.watchers.ResetWatchers()
		before := s.turn.CurrentPhase()
		next := s.turn.EndTurn()
		s.publishPhase(before)
		if s.logger != nil {
			s.logger.Debug("turn ended",
				zap.String("game_id", s.id),
				zap.String("next_active", next.String()),
				zap.Int("turn", s.turn.TurnNumber()),
			)
		}
	default:
		if phase.Combat() {
			s.advance()
		}
	}
}

// runPolicy queues the computer side's play ahead of anything else in the queue.
func (s *Session) runPolicy() {
	seat := s.policy.Seat()
	idx, ok := s.policy.Choose(s.zones.Hand(seat))
	switch {
	case ok:
		s.pushFront(Intent{Kind: IntentPlay, Side: seat, HandIndex: idx, Source: "ai"})
	case s.opts.AIPassWhenStuck:
		s.pushFront(Intent{Kind: IntentPass, Side: seat, Source: "ai"})
	}
}

func (s *Session) pushFront(intent Intent) {
	s.queue = append([]Intent{intent}, s.queue...)
}

func (s *Session) consumeIntent() (Outcome, bool) {
	if len(s.queue) == 0 {
		return Outcome{}, false
	}
	intent := s.queue[0]
	s.queue = s.queue[1:]
	outcome := Outcome{Intent: intent}

	// Dropped, not requeued: an intent is always meant for the current turn.
	if intent.Side != s.turn.ActivePlayer() {
		outcome.Err = ErrNotActivePlayer
		s.reject(outcome, nil)
		return outcome, true
	}

	switch intent.Kind {
	case IntentPlay:
		card, err := s.zones.Play(intent.Side, intent.HandIndex)
		if err != nil {
			outcome.Err = err
			if errors.Is(err, zones.ErrNotLegal) {
				hand := s.zones.Hand(intent.Side)
				result := s.validator.Check(hand[intent.HandIndex])
				outcome.Err = fmt.Errorf("%w (%s, crowd %s)", err, result.Reason, result.Details["crowd"])
				s.reject(outcome, result.Details)
				return outcome, true
			}
			s.reject(outcome, nil)
			return outcome, true
		}
		outcome.Applied = true
		outcome.CardID = card.ID
	case IntentPass:
		s.bus.Publish(rules.NewEvent(rules.EventPassed, "", intent.Side))
		outcome.Applied = true
	}

	s.lastRejection = ""
	s.advance()
	return outcome, true
}

// reject publishes a refused intent. details, when set, is copied into the
// event metadata.
func (s *Session) reject(outcome Outcome, details map[string]string) {
	evt := rules.NewEventWithAmount(rules.EventPlayRejected, "", outcome.Intent.Side, outcome.Intent.HandIndex)
	evt.Description = outcome.Err.Error()
	for k, v := range details {
		evt.Metadata[k] = v
	}
	s.bus.Publish(evt)
	s.lastRejection = evt.Description

	if s.logger != nil {
		s.logger.Debug("intent rejected",
			zap.String("game_id", s.id),
			zap.String("side", outcome.Intent.Side.String()),
			zap.String("kind", outcome.Intent.Kind.String()),
			zap.Int("hand_index", outcome.Intent.HandIndex),
			zap.Error(outcome.Err),
		)
	}
}

func (s *Session) advance() {
	before := s.turn.CurrentPhase()
	s.turn.Advance()
	s.publishPhase(before)
}

func (s *Session) publishPhase(before rules.Phase) {
	evt := rules.NewEvent(rules.EventPhaseChanged, "", s.turn.ActivePlayer())
	evt.Metadata["from"] = before.String()
	evt.Metadata["to"] = s.turn.CurrentPhase().String()
	s.bus.Publish(evt)
}

// recompute derives crowd from the battlefields, then legality from crowd.
func (s *Session) recompute() {
	s.ledger.Recompute(s.zones)
	s.validator.Recompute()
}

// Finish stops the session; later ticks and submissions are ignored.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFinished {
		return
	}
	s.status = StatusFinished
	s.endedAt = time.Now()
	s.queue = nil
	s.bus.Unsubscribe(s.watcherHandle)
}

// Focus marks the card at handIndex in a side's hand as pointed at, clearing
// the mark on the rest of that hand. A negative index clears it everywhere.
func (s *Session) Focus(sd side.Side, handIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFinished {
		return ErrGameFinished
	}
	return s.zones.Focus(sd, handIndex)
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn returns a copy of the turn state.
func (s *Session) Turn() rules.TurnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn.State()
}

// Crowd returns a side's crowd.
func (s *Session) Crowd(sd side.Side) int {
	return s.ledger.Crowd(sd)
}

// HitPoints returns a side's hit points.
func (s *Session) HitPoints(sd side.Side) HitPoints {
	if !sd.Valid() {
		return HitPoints{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hp[sd]
}

// Hand returns a copy of a side's hand.
func (s *Session) Hand(sd side.Side) []*cards.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zones.Hand(sd)
}

// Battlefield returns a copy of a side's battlefield.
func (s *Session) Battlefield(sd side.Side) []*cards.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zones.Battlefield(sd)
}

// Deck returns a copy of a side's deck.
func (s *Session) Deck(sd side.Side) []*cards.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zones.Deck(sd)
}

// QueueLen returns the number of pending intents.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Ticks returns the number of completed ticks.
func (s *Session) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}
