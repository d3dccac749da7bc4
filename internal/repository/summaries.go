package repository

import (
	"context"
	"fmt"

	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/game/side"
)

// SummaryRepository stores summaries of finished games.
type SummaryRepository struct {
	q Querier
}

// NewSummaryRepository creates a summary repository.
func NewSummaryRepository(q Querier) *SummaryRepository {
	return &SummaryRepository{q: q}
}

var _ game.SummaryStore = (*SummaryRepository)(nil)

// SaveSummary inserts or replaces the summary of a game.
func (r *SummaryRepository) SaveSummary(ctx context.Context, s game.Summary) error {
	p, o := side.Player, side.Opponent
	_, err := r.q.Exec(ctx, `
		INSERT INTO game_summaries (
			game_id, turns, ticks, phase, active,
			player_crowd, opponent_crowd, player_hand, opponent_hand,
			player_battlefield, opponent_battlefield, player_deck, opponent_deck,
			replay_path, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (game_id) DO UPDATE SET
			turns = EXCLUDED.turns,
			ticks = EXCLUDED.ticks,
			phase = EXCLUDED.phase,
			active = EXCLUDED.active,
			player_crowd = EXCLUDED.player_crowd,
			opponent_crowd = EXCLUDED.opponent_crowd,
			player_hand = EXCLUDED.player_hand,
			opponent_hand = EXCLUDED.opponent_hand,
			player_battlefield = EXCLUDED.player_battlefield,
			opponent_battlefield = EXCLUDED.opponent_battlefield,
			player_deck = EXCLUDED.player_deck,
			opponent_deck = EXCLUDED.opponent_deck,
			replay_path = EXCLUDED.replay_path,
			ended_at = EXCLUDED.ended_at
	`,
		s.GameID, s.Turns, int64(s.Ticks), s.Phase, s.Active,
		s.Crowd[p], s.Crowd[o], s.HandSize[p], s.HandSize[o],
		s.Battlefield[p], s.Battlefield[o], s.DeckSize[p], s.DeckSize[o],
		s.ReplayPath, s.StartedAt, s.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save summary for %s: %w", s.GameID, err)
	}
	return nil
}

// ListSummaries returns the most recently ended games first.
func (r *SummaryRepository) ListSummaries(ctx context.Context, limit int) ([]game.Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.q.Query(ctx, `
		SELECT game_id, turns, ticks, phase, active,
			player_crowd, opponent_crowd, player_hand, opponent_hand,
			player_battlefield, opponent_battlefield, player_deck, opponent_deck,
			replay_path, started_at, ended_at
		FROM game_summaries
		ORDER BY ended_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	p, o := side.Player, side.Opponent
	var out []game.Summary
	for rows.Next() {
		var s game.Summary
		var ticks int64
		if err := rows.Scan(
			&s.GameID, &s.Turns, &ticks, &s.Phase, &s.Active,
			&s.Crowd[p], &s.Crowd[o], &s.HandSize[p], &s.HandSize[o],
			&s.Battlefield[p], &s.Battlefield[o], &s.DeckSize[p], &s.DeckSize[o],
			&s.ReplayPath, &s.StartedAt, &s.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.Ticks = uint64(ticks)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	return out, nil
}
