package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap"
)

var (
	// ErrGameNotFound is returned for an unknown game id.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameExists is returned when starting a game under an id already in use.
	ErrGameExists = errors.New("game already exists")
	// ErrTooManyGames is returned when the engine is at its session limit.
	ErrTooManyGames = errors.New("too many concurrent games")
)

// Notification types emitted by the engine.
const (
	NotificationGameStarted     = "GAME_STARTED"
	NotificationGameStateChange = "GAME_STATE_CHANGE"
	NotificationGameEnded       = "GAME_ENDED"
)

// GameNotification is pushed to UI transports when a session changes.
type GameNotification struct {
	Type      string
	GameID    string
	Timestamp time.Time
	Data      map[string]interface{}
}

// NotificationHandler receives engine notifications.
type NotificationHandler func(notification GameNotification)

// Summary is the record kept for a finished game.
type Summary struct {
	GameID      string
	Turns       int
	Ticks       uint64
	Phase       string
	Active      string
	Crowd       [len(side.All)]int
	HandSize    [len(side.All)]int
	Battlefield [len(side.All)]int
	DeckSize    [len(side.All)]int
	ReplayPath  string
	StartedAt   time.Time
	EndedAt     time.Time
}

// SummaryStore persists summaries of finished games.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary Summary) error
}

// GameInfo is a short listing entry for a running game.
type GameInfo struct {
	GameID    string
	Status    string
	Phase     string
	Active    string
	Turn      int
	Ticks     uint64
	Recording bool
	StartedAt time.Time
}

// Engine runs many sessions and ticks them together.
type Engine struct {
	logger *zap.Logger
	opts   Options

	mu                  sync.RWMutex
	games               map[string]*Session
	maxGames            int
	notificationHandler NotificationHandler
	recorder            *ReplayRecorder
	summaries           SummaryStore
}

// NewEngine creates an engine that starts sessions with opts.
func NewEngine(logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		logger: logger,
		opts:   opts,
		games:  make(map[string]*Session),
	}
}

// SetNotificationHandler sets the handler for game notifications.
func (e *Engine) SetNotificationHandler(handler NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notificationHandler = handler
}

// SetReplayRecorder enables per-tick replay recording for new games.
func (e *Engine) SetReplayRecorder(recorder *ReplayRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = recorder
}

// SetSummaryStore sets where summaries of ended games are written.
func (e *Engine) SetSummaryStore(store SummaryStore) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries = store
}

// SetMaxGames limits concurrent sessions; zero means unlimited.
func (e *Engine) SetMaxGames(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maxGames = n
}

// SetCatalog replaces the catalog used for new games.
func (e *Engine) SetCatalog(catalog *cards.Catalog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Catalog = catalog
}

// emitNotification calls the handler in its own goroutine so it may call
// back into the engine.
func (e *Engine) emitNotification(notificationType, gameID string, data map[string]interface{}) {
	e.mu.RLock()
	handler := e.notificationHandler
	e.mu.RUnlock()

	if handler != nil {
		go handler(GameNotification{
			Type:      notificationType,
			GameID:    gameID,
			Timestamp: time.Now(),
			Data:      data,
		})
	}
}

// StartGame creates a session. An empty gameID gets a generated one.
func (e *Engine) StartGame(gameID string) (string, error) {
	if gameID == "" {
		gameID = uuid.NewString()
	}

	e.mu.Lock()
	if _, exists := e.games[gameID]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrGameExists, gameID)
	}
	if e.maxGames > 0 && len(e.games) >= e.maxGames {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: limit %d", ErrTooManyGames, e.maxGames)
	}
	session, err := NewSession(gameID, e.opts, e.logger)
	if err != nil {
		e.mu.Unlock()
		return "", err
	}
	e.games[gameID] = session
	recorder := e.recorder
	e.mu.Unlock()

	if recorder != nil {
		recorder.StartRecording(gameID)
		recorder.RecordState(gameID, session.Snapshot())
	}

	if e.logger != nil {
		e.logger.Info("game started", zap.String("game_id", gameID))
	}
	e.emitNotification(NotificationGameStarted, gameID, nil)
	return gameID, nil
}

func (e *Engine) session(gameID string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	session, ok := e.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return session, nil
}

// Session returns a running session.
func (e *Engine) Session(gameID string) (*Session, error) {
	return e.session(gameID)
}

// Submit queues an intent on a game.
func (e *Engine) Submit(gameID string, intent Intent) error {
	session, err := e.session(gameID)
	if err != nil {
		return err
	}
	return session.Submit(intent)
}

// PlayCard queues a play of the card at handIndex for a side.
func (e *Engine) PlayCard(gameID string, s side.Side, handIndex int, source string) error {
	intent := PlayIntent(s, handIndex)
	intent.Source = source
	return e.Submit(gameID, intent)
}

// Pass queues a pass for a side.
func (e *Engine) Pass(gameID string, s side.Side, source string) error {
	intent := PassIntent(s)
	intent.Source = source
	return e.Submit(gameID, intent)
}

// Focus moves a side's pointer marker to handIndex; a negative index clears it.
func (e *Engine) Focus(gameID string, s side.Side, handIndex int) error {
	session, err := e.session(gameID)
	if err != nil {
		return err
	}
	return session.Focus(s, handIndex)
}

// Tick advances one game by one tick.
func (e *Engine) Tick(gameID string) (TickReport, error) {
	session, err := e.session(gameID)
	if err != nil {
		return TickReport{}, err
	}
	return e.tickSession(session), nil
}

// TickAll advances every running game by one tick, in id order.
func (e *Engine) TickAll() map[string]TickReport {
	e.mu.RLock()
	sessions := make([]*Session, 0, len(e.games))
	for _, session := range e.games {
		sessions = append(sessions, session)
	}
	e.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID() < sessions[j].ID() })

	reports := make(map[string]TickReport, len(sessions))
	for _, session := range sessions {
		reports[session.ID()] = e.tickSession(session)
	}
	return reports
}

// tickSession runs one tick. Ticks that change nothing are neither recorded
// nor announced.
func (e *Engine) tickSession(session *Session) TickReport {
	report := session.Tick()

	if !report.Changed() {
		return report
	}

	e.mu.RLock()
	recorder := e.recorder
	e.mu.RUnlock()
	if recorder != nil {
		recorder.RecordState(session.ID(), session.Snapshot())
	}

	data := map[string]interface{}{
		"tick":  report.Tick,
		"phase": report.PhaseAfter.String(),
	}
	if len(report.Outcomes) > 0 {
		outcome := report.Outcomes[0]
		data["intent"] = outcome.Intent.Kind.String()
		data["side"] = outcome.Intent.Side.String()
		data["applied"] = outcome.Applied
		if outcome.Err != nil {
			data["error"] = outcome.Err.Error()
		}
	}
	e.emitNotification(NotificationGameStateChange, session.ID(), data)
	return report
}

// Run ticks all games every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.TickAll()
		}
	}
}

// GetGameView returns the view of a game for a viewer.
func (e *Engine) GetGameView(gameID string, viewer side.Side) (*GameView, error) {
	session, err := e.session(gameID)
	if err != nil {
		return nil, err
	}
	return session.View(viewer), nil
}

// ListGames lists running games in id order.
func (e *Engine) ListGames() []GameInfo {
	e.mu.RLock()
	sessions := make([]*Session, 0, len(e.games))
	for _, session := range e.games {
		sessions = append(sessions, session)
	}
	recorder := e.recorder
	e.mu.RUnlock()

	infos := make([]GameInfo, 0, len(sessions))
	for _, session := range sessions {
		turn := session.Turn()
		infos = append(infos, GameInfo{
			GameID:    session.ID(),
			Status:    session.Status().String(),
			Phase:     turn.Phase.String(),
			Active:    turn.Active.String(),
			Turn:      turn.TurnNumber,
			Ticks:     session.Ticks(),
			Recording: recorder != nil && recorder.IsRecording(session.ID()),
			StartedAt: session.startedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].GameID < infos[j].GameID })
	return infos
}

// EndGame stops a game, saves its replay and summary, and removes it.
// Storage failures are logged and do not keep the game alive.
func (e *Engine) EndGame(ctx context.Context, gameID string) (*Summary, error) {
	e.mu.Lock()
	session, ok := e.games[gameID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	delete(e.games, gameID)
	recorder := e.recorder
	store := e.summaries
	e.mu.Unlock()

	session.Finish()
	summary := session.Summary()

	if recorder != nil {
		recorder.RecordState(gameID, session.Snapshot())
		recorder.StopRecording(gameID)
		path, err := recorder.SaveReplay(gameID)
		if err != nil {
			// The session is gone, so the replay cannot be saved later either.
			recorder.ClearReplay(gameID)
			if e.logger != nil {
				e.logger.Warn("failed to save replay", zap.String("game_id", gameID), zap.Error(err))
			}
		} else {
			summary.ReplayPath = path
		}
	}

	if store != nil {
		if err := store.SaveSummary(ctx, summary); err != nil && e.logger != nil {
			e.logger.Warn("failed to save game summary", zap.String("game_id", gameID), zap.Error(err))
		}
	}

	if e.logger != nil {
		e.logger.Info("game ended",
			zap.String("game_id", gameID),
			zap.Int("turns", summary.Turns),
			zap.Uint64("ticks", summary.Ticks),
		)
	}
	e.emitNotification(NotificationGameEnded, gameID, map[string]interface{}{"turns": summary.Turns})
	return &summary, nil
}

// Summary describes the session as it stands.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := s.turn.State()
	summary := Summary{
		GameID:    s.id,
		Turns:     turn.TurnNumber,
		Ticks:     s.ticks,
		Phase:     turn.Phase.String(),
		Active:    turn.Active.String(),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	for _, sd := range side.All {
		summary.Crowd[sd] = s.ledger.Crowd(sd)
		summary.HandSize[sd] = len(s.zones.Hand(sd))
		summary.Battlefield[sd] = len(s.zones.Battlefield(sd))
		summary.DeckSize[sd] = len(s.zones.Deck(sd))
	}
	if summary.EndedAt.IsZero() {
		summary.EndedAt = time.Now()
	}
	return summary
}
