package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/thraizz/crowd-server-go/internal/game/cards"
)

// CardRepository stores the card catalog.
type CardRepository struct {
	q Querier
}

// NewCardRepository creates a card repository.
func NewCardRepository(q Querier) *CardRepository {
	return &CardRepository{q: q}
}

// LoadCatalog reads every card in position order. An empty table yields
// (nil, nil) so callers can fall back to another catalog.
func (r *CardRepository) LoadCatalog(ctx context.Context) (*cards.Catalog, error) {
	rows, err := r.q.Query(ctx, `
		SELECT name, hp, power, cast_cost, minimum_crowd, art, flavor
		FROM cards
		ORDER BY position, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var defs []cards.Definition
	for rows.Next() {
		var def cards.Definition
		if err := rows.Scan(
			&def.Name,
			&def.Stats.HP,
			&def.Stats.Power,
			&def.Stats.CastCost,
			&def.Stats.MinimumCrowd,
			&def.Art,
			&def.Flavor,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}

	if len(defs) == 0 {
		return nil, nil
	}
	return cards.NewCatalog(defs)
}

// UpsertDefinitions writes definitions in one batch. Their order becomes
// the catalog order. Returns the number of rows written.
func (r *CardRepository) UpsertDefinitions(ctx context.Context, defs []cards.Definition) (int, error) {
	if len(defs) == 0 {
		return 0, nil
	}
	// Reject what NewCatalog would reject before touching the table.
	if _, err := cards.NewCatalog(defs); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for i, def := range defs {
		batch.Queue(`
			INSERT INTO cards (name, position, hp, power, cast_cost, minimum_crowd, art, flavor)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name) DO UPDATE SET
				position = EXCLUDED.position,
				hp = EXCLUDED.hp,
				power = EXCLUDED.power,
				cast_cost = EXCLUDED.cast_cost,
				minimum_crowd = EXCLUDED.minimum_crowd,
				art = EXCLUDED.art,
				flavor = EXCLUDED.flavor
		`,
			def.Name,
			i,
			def.Stats.HP,
			def.Stats.Power,
			def.Stats.CastCost,
			def.Stats.MinimumCrowd,
			def.Art,
			def.Flavor,
		)
	}

	results := r.q.SendBatch(ctx, batch)
	written := 0
	for _, def := range defs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return written, fmt.Errorf("failed to upsert card %s: %w", def.Name, err)
		}
		written++
	}
	if err := results.Close(); err != nil {
		return written, fmt.Errorf("failed to close batch: %w", err)
	}
	return written, nil
}

// Count returns the number of stored cards.
func (r *CardRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.q.QueryRow(ctx, "SELECT COUNT(*) FROM cards").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return count, nil
}

// Truncate removes every card.
func (r *CardRepository) Truncate(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, "TRUNCATE cards"); err != nil {
		return fmt.Errorf("failed to clear cards: %w", err)
	}
	return nil
}
