package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/metrics"
	"rasviz/backend/internal/models"
)

// CombineRepository stores scraped combine results
type CombineRepository struct {
	db *Database
}

const upsertCombine = `
	INSERT INTO combine_results (
		combine_year, player, position, school, player_url, height_inches,
		athletic_score, pro_bowl_count, all_pro_count, career_av,
		draft_round, draft_pick, measurements
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (combine_year, player) DO UPDATE SET
		position = EXCLUDED.position,
		school = EXCLUDED.school,
		player_url = EXCLUDED.player_url,
		height_inches = EXCLUDED.height_inches,
		athletic_score = EXCLUDED.athletic_score,
		pro_bowl_count = EXCLUDED.pro_bowl_count,
		all_pro_count = EXCLUDED.all_pro_count,
		career_av = EXCLUDED.career_av,
		draft_round = EXCLUDED.draft_round,
		draft_pick = EXCLUDED.draft_pick,
		measurements = EXCLUDED.measurements,
		updated_at = NOW()
`

// UpsertBatch writes every record keyed by year and player name
func (r *CombineRepository) UpsertBatch(ctx context.Context, records []*models.CombineRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	start := time.Now()

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(upsertCombine, combineArgs(rec)...)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for i, rec := range records {
		if _, err := results.Exec(); err != nil {
			metrics.RecordDBQuery("upsert_batch", "combine_results", "error", time.Since(start).Seconds())
			return i, fmt.Errorf("failed to upsert combine record %q (%d): %w", rec.Player(), rec.Year, err)
		}
	}

	metrics.RecordDBQuery("upsert_batch", "combine_results", "success", time.Since(start).Seconds())
	log.Info().Int("count", len(records)).Msg("Combine results stored")
	return len(records), nil
}

// CountByYear returns the number of stored players per combine year
func (r *CombineRepository) CountByYear(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT combine_year, COUNT(*)
		FROM combine_results
		GROUP BY combine_year
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count combine results: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			return nil, fmt.Errorf("failed to scan combine count: %w", err)
		}
		out[year] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating combine counts: %w", err)
	}
	return out, nil
}

func combineArgs(rec *models.CombineRecord) []interface{} {
	acc := rec.Accolades
	if acc == nil {
		acc = &models.Accolades{}
	}
	return []interface{}{
		rec.Year, rec.Player(), optional(rec.Values["Pos"]), optional(rec.Values["School"]),
		rec.PlayerURL, rec.HeightInches, rec.AthleticScore,
		acc.ProBowlCount, acc.AllProCount, acc.CareerAV, acc.DraftRound, acc.DraftPick,
		rec.Values,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
