package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rasviz/backend/internal/models"
)

// PositionStat is one row of the position summary
type PositionStat struct {
	Position         string   `json:"Position"`
	PlayerCount      int      `json:"PlayerCount"`
	AvgRAS           *float64 `json:"AvgRAS"`
	AvgProBowls      *float64 `json:"AvgProBowls"`
	TotalProBowls    float64  `json:"TotalProBowls"`
	MultiProBowlRate float64  `json:"MultiProBowlRate"`
}

// PositionSummary aggregates players per position in order of first
// appearance. Excluded positions and positions with fewer than minPlayers
// rows are left out. A missing pro-bowl count is not a multiple pro bowler.
func PositionSummary(records []models.PlayerRecord, excluded []string, minPlayers int) []PositionStat {
	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[p] = true
	}

	var order []string
	groups := make(map[string][]models.PlayerRecord)
	for _, r := range records {
		if skip[r.Position] {
			continue
		}
		if _, seen := groups[r.Position]; !seen {
			order = append(order, r.Position)
		}
		groups[r.Position] = append(groups[r.Position], r)
	}

	stats := make([]PositionStat, 0, len(order))
	for _, pos := range order {
		group := groups[pos]
		if len(group) < minPlayers {
			continue
		}

		row := PositionStat{Position: pos, PlayerCount: len(group)}
		if ras := present(group, rasOf); len(ras) > 0 {
			row.AvgRAS = ptr(stat.Mean(ras, nil))
		}
		if pb := present(group, proBowlsOf); len(pb) > 0 {
			row.AvgProBowls = ptr(stat.Mean(pb, nil))
			row.TotalProBowls = floats.Sum(pb)
		}

		multiple := 0
		for _, r := range group {
			if r.IsMultipleProBowler() {
				multiple++
			}
		}
		row.MultiProBowlRate = float64(multiple) / float64(len(group)) * 100
		stats = append(stats, row)
	}

	return stats
}

// Positions lists the distinct positions in order of first appearance
func Positions(records []models.PlayerRecord, excluded []string) []string {
	skip := make(map[string]bool, len(excluded))
	for _, p := range excluded {
		skip[p] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if skip[r.Position] || seen[r.Position] {
			continue
		}
		seen[r.Position] = true
		out = append(out, r.Position)
	}
	return out
}
