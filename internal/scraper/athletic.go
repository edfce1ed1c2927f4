package scraper

import (
	"math"
	"strconv"
	"strings"

	"rasviz/backend/internal/models"
)

type scoreComponent struct {
	column string
	name   string
	invert bool
}

// Lower times are better for the dash and the cone drill
var scoreComponents = []scoreComponent{
	{column: "40yd", name: "40yd_score", invert: true},
	{column: "Vertical", name: "Vertical_score"},
	{column: "Broad Jump", name: "Broad_score"},
	{column: "3Cone", name: "3Cone_score", invert: true},
}

// ScoreAthleticism coerces the combine measurement columns and adds the
// min-max scaled components and their mean. A component whose column has a
// single distinct value is left out.
func ScoreAthleticism(records []*models.CombineRecord) {
	present := make(map[string]bool)
	for _, col := range models.CombineNumericColumns {
		for _, rec := range records {
			raw, ok := rec.Values[col]
			if !ok {
				continue
			}
			present[col] = true
			rec.Numeric[col] = parseMeasurement(raw)
		}
	}

	components := make(map[*models.CombineRecord]map[string]*float64, len(records))
	used := 0
	for _, comp := range scoreComponents {
		if !present[comp.column] {
			continue
		}
		lo, hi, ok := columnRange(records, comp.column)
		if !ok || lo == hi {
			continue
		}
		used++
		for _, rec := range records {
			if components[rec] == nil {
				components[rec] = make(map[string]*float64)
			}
			v := rec.Numeric[comp.column]
			if v == nil {
				components[rec][comp.name] = nil
				continue
			}
			scaled := (*v - lo) / (hi - lo) * 10
			if comp.invert {
				scaled = 10 - scaled
			}
			components[rec][comp.name] = &scaled
		}
	}

	if used == 0 {
		return
	}
	for _, rec := range records {
		rec.SetAthleticScore(components[rec])
	}
}

func columnRange(records []*models.CombineRecord, column string) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, rec := range records {
		if v := rec.Numeric[column]; v != nil {
			lo = math.Min(lo, *v)
			hi = math.Max(hi, *v)
			ok = true
		}
	}
	return lo, hi, ok
}

func parseMeasurement(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
