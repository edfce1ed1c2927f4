package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/metrics"
	"rasviz/backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// PlayerRepository stores canonical pro-bowler records
type PlayerRepository struct {
	db *Database
}

const upsertPlayer = `
	INSERT INTO players (
		player, position, ras, pro_bowls, multiple_pro_bowls,
		college, draft, draft_round, profile_url
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (player, draft) DO UPDATE SET
		position = EXCLUDED.position,
		ras = EXCLUDED.ras,
		pro_bowls = EXCLUDED.pro_bowls,
		multiple_pro_bowls = EXCLUDED.multiple_pro_bowls,
		college = EXCLUDED.college,
		draft_round = EXCLUDED.draft_round,
		profile_url = EXCLUDED.profile_url,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
`

const selectPlayer = `
	SELECT id, player, position, ras, pro_bowls, multiple_pro_bowls,
	       college, draft, draft_round, profile_url, created_at, updated_at
	FROM players
`

// Upsert inserts or updates one record keyed by player and draft
func (r *PlayerRepository) Upsert(ctx context.Context, p *models.PlayerRecord) error {
	start := time.Now()
	err := r.db.Pool.QueryRow(ctx, upsertPlayer, playerArgs(p)...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	metrics.RecordDBQuery("upsert", "players", queryStatus(err), time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

// UpsertBatch writes every record in one round trip and returns the count
func (r *PlayerRepository) UpsertBatch(ctx context.Context, records []models.PlayerRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for i := range records {
		batch.Queue(upsertPlayer, playerArgs(&records[i])...)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range records {
		p := &records[i]
		if err := results.QueryRow().Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			metrics.RecordDBQuery("upsert_batch", "players", "error", time.Since(start).Seconds())
			return i, fmt.Errorf("failed to upsert player %q: %w", p.Player, err)
		}
	}

	metrics.RecordDBQuery("upsert_batch", "players", "success", time.Since(start).Seconds())
	log.Info().Int("count", len(records)).Msg("Players stored")
	return len(records), nil
}

// GetByName retrieves the most recently updated record for a player
func (r *PlayerRepository) GetByName(ctx context.Context, name string) (*models.PlayerRecord, error) {
	row := r.db.Pool.QueryRow(ctx, selectPlayer+` WHERE player = $1 ORDER BY updated_at DESC LIMIT 1`, name)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("player %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

// ListByPosition retrieves every record for a position, or all records
// when position is empty
func (r *PlayerRepository) ListByPosition(ctx context.Context, position string) ([]models.PlayerRecord, error) {
	query := selectPlayer + ` WHERE ($1 = '' OR position = $1) ORDER BY player`

	rows, err := r.db.Pool.Query(ctx, query, position)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []models.PlayerRecord
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}
	return out, nil
}

func playerArgs(p *models.PlayerRecord) []interface{} {
	return []interface{}{
		p.Player, p.Position, p.RAS, p.ProBowls, p.MultipleProBowls,
		p.College, p.Draft, p.DraftRound, p.ProfileURL,
	}
}

func scanPlayer(row pgx.Row) (*models.PlayerRecord, error) {
	var p models.PlayerRecord
	err := row.Scan(
		&p.ID, &p.Player, &p.Position, &p.RAS, &p.ProBowls, &p.MultipleProBowls,
		&p.College, &p.Draft, &p.DraftRound, &p.ProfileURL, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func queryStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
