package game

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thraizz/crowd-server-go/internal/game/side"
	"go.uber.org/zap/zaptest"
)

type memorySummaryStore struct {
	mu        sync.Mutex
	summaries []Summary
	err       error
}

func (m *memorySummaryStore) SaveSummary(_ context.Context, summary Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries = append(m.summaries, summary)
	return m.err
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.CheckInvariants = true
	return NewEngine(zaptest.NewLogger(t), opts)
}

func TestEngineStartGame(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.StartGame("")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = e.StartGame("fixed")
	require.NoError(t, err)
	_, err = e.StartGame("fixed")
	assert.ErrorIs(t, err, ErrGameExists)

	games := e.ListGames()
	require.Len(t, games, 2)
	for _, g := range games {
		assert.Equal(t, "DRAW_CARD", g.Phase)
		assert.Equal(t, "PLAYER", g.Active)
		assert.Equal(t, 1, g.Turn)
	}
}

func TestEngineMaxGames(t *testing.T) {
	e := newTestEngine(t)
	e.SetMaxGames(1)

	_, err := e.StartGame("a")
	require.NoError(t, err)
	_, err = e.StartGame("b")
	assert.ErrorIs(t, err, ErrTooManyGames)
}

func TestEngineUnknownGame(t *testing.T) {
	e := newTestEngine(t)

	assert.ErrorIs(t, e.PlayCard("missing", side.Player, 0, "test"), ErrGameNotFound)
	_, err := e.GetGameView("missing", side.Player)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = e.Tick("missing")
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = e.EndGame(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestEnginePlayThroughView(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.StartGame("view-game")
	require.NoError(t, err)

	e.TickAll()
	require.NoError(t, e.PlayCard(id, side.Player, 1, "test"))
	report, err := e.Tick(id)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	require.True(t, report.Outcomes[0].Applied)

	view, err := e.GetGameView(id, side.Player)
	require.NoError(t, err)
	assert.Equal(t, "SELECT_ATTACKERS", view.Turn.Phase)
	assert.Equal(t, 1, view.Turn.IconIndex)

	player, ok := view.Side(side.Player)
	require.True(t, ok)
	assert.Equal(t, 1, player.Crowd)
	assert.Equal(t, 1, player.PlaysThisTurn)
	assert.Equal(t, 1, player.DrawsThisTurn)
	require.Len(t, player.Battlefield, 1)
	assert.Equal(t, "Test Unit", player.Battlefield[0].Name)
	assert.Equal(t, "2/2", player.Battlefield[0].Stats)
	for _, c := range player.Hand {
		assert.NotEmpty(t, c.Name)
		assert.Equal(t, !c.Legal, c.Grayed)
	}

	opponent, ok := view.Side(side.Opponent)
	require.True(t, ok)
	assert.Equal(t, 7, opponent.HandCount)
	for _, c := range opponent.Hand {
		assert.False(t, c.FaceUp)
		assert.Empty(t, c.Name, "face-down cards stay hidden from the other side")
	}

	ownView, err := e.GetGameView(id, side.Opponent)
	require.NoError(t, err)
	own, _ := ownView.Side(side.Opponent)
	assert.NotEmpty(t, own.Hand[0].Name)
}

func TestEngineNotifications(t *testing.T) {
	e := newTestEngine(t)

	received := make(chan GameNotification, 16)
	e.SetNotificationHandler(func(n GameNotification) { received <- n })

	id, err := e.StartGame("notify")
	require.NoError(t, err)
	e.TickAll()

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case n := <-received:
			assert.Equal(t, id, n.GameID)
			seen[n.Type] = true
		case <-timeout:
			t.Fatalf("timed out waiting for notifications, got %v", seen)
		}
	}
	assert.True(t, seen[NotificationGameStarted])
	assert.True(t, seen[NotificationGameStateChange])
}

func TestEngineEndGameSavesReplayAndSummary(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	e.SetReplayRecorder(NewReplayRecorder(zaptest.NewLogger(t), dir))
	store := &memorySummaryStore{}
	e.SetSummaryStore(store)

	id, err := e.StartGame("ended")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		e.TickAll()
	}

	summary, err := e.EndGame(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), summary.Ticks)
	assert.Equal(t, 8, summary.HandSize[side.Player])
	assert.Equal(t, ReplayPath(dir, id), summary.ReplayPath)
	require.Len(t, store.summaries, 1)
	assert.Equal(t, id, store.summaries[0].GameID)
	assert.Empty(t, e.ListGames())

	replay, err := LoadReplayFromFile(dir, id)
	require.NoError(t, err)
	// start + draw tick + play-phase entry + final; the two idle ticks are skipped
	assert.Equal(t, 4, replay.Size())
	assert.Equal(t, StatusFinished, replay.GetStateAt(3).Status)
}

func TestEngineIdleTicksAreNotRecorded(t *testing.T) {
	e := newTestEngine(t)
	recorder := NewReplayRecorder(zaptest.NewLogger(t), t.TempDir())
	e.SetReplayRecorder(recorder)

	id, err := e.StartGame("idle")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		report, err := e.Tick(id)
		require.NoError(t, err)
		assert.True(t, report.Changed())
	}

	replay, ok := recorder.GetReplay(id)
	require.True(t, ok)
	settled := replay.Size()
	assert.Equal(t, 3, settled)

	// The human is thinking: nothing moves, nothing is recorded.
	for i := 0; i < 500; i++ {
		report, err := e.Tick(id)
		require.NoError(t, err)
		require.False(t, report.Changed())
	}
	assert.Equal(t, settled, replay.Size())

	require.NoError(t, e.PlayCard(id, side.Player, 42, "test"))
	_, err = e.Tick(id)
	require.NoError(t, err)
	assert.Equal(t, settled+1, replay.Size(), "a rejected intent is still a change")
}

func TestEngineListGamesReportsRecording(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.StartGame("before")
	require.NoError(t, err)

	e.SetReplayRecorder(NewReplayRecorder(zaptest.NewLogger(t), t.TempDir()))
	_, err = e.StartGame("after")
	require.NoError(t, err)

	games := e.ListGames()
	require.Len(t, games, 2)
	assert.Equal(t, "after", games[0].GameID)
	assert.True(t, games[0].Recording)
	assert.Equal(t, "before", games[1].GameID)
	assert.False(t, games[1].Recording)
}

func TestEngineEndGameDropsUnsavableReplay(t *testing.T) {
	e := newTestEngine(t)
	// A regular file where the replay directory should be.
	blocker := filepath.Join(t.TempDir(), "replays")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	recorder := NewReplayRecorder(zaptest.NewLogger(t), blocker)
	e.SetReplayRecorder(recorder)

	id, err := e.StartGame("unsaved")
	require.NoError(t, err)
	e.TickAll()

	summary, err := e.EndGame(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, summary.ReplayPath)

	_, kept := recorder.GetReplay(id)
	assert.False(t, kept)
	assert.False(t, recorder.IsRecording(id))
}

func TestEngineEndGameToleratesStoreFailure(t *testing.T) {
	e := newTestEngine(t)
	e.SetSummaryStore(&memorySummaryStore{err: errors.New("db down")})

	id, err := e.StartGame("")
	require.NoError(t, err)
	_, err = e.EndGame(context.Background(), id)
	assert.NoError(t, err)
}

func TestEngineRun(t *testing.T) {
	e := newTestEngine(t)
	id, err := e.StartGame("runner")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool {
		s, err := e.Session(id)
		return err == nil && s.Ticks() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Error(t, e.Run(context.Background(), 0))
}
