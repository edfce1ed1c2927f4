package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"rasviz/backend/internal/models"
)

// ErrInsufficientData is returned when a stage has too few usable rows or columns
var ErrInsufficientData = errors.New("insufficient data for analysis")

// Summary mirrors a describe() row set: count, mean, sample std and quartiles.
// Statistics that are undefined for the observed count are nil.
type Summary struct {
	Count int      `json:"count"`
	Mean  *float64 `json:"mean"`
	Std   *float64 `json:"std"`
	Min   *float64 `json:"min"`
	Q25   *float64 `json:"25%"`
	Q50   *float64 `json:"50%"`
	Q75   *float64 `json:"75%"`
	Max   *float64 `json:"max"`
}

// Describe summarizes the present values
func Describe(values []float64) Summary {
	s := Summary{Count: len(values)}
	if len(values) == 0 {
		return s
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean := stat.Mean(sorted, nil)
	s.Mean = &mean
	if len(sorted) > 1 {
		std := stat.StdDev(sorted, nil)
		s.Std = &std
	}
	s.Min = &sorted[0]
	s.Max = &sorted[len(sorted)-1]
	s.Q25 = ptr(quantile(sorted, 0.25))
	s.Q50 = ptr(quantile(sorted, 0.50))
	s.Q75 = ptr(quantile(sorted, 0.75))
	return s
}

// quantile interpolates linearly between closest ranks over (n-1)p.
// sorted must be ascending and non-empty.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// PositionAggregate is the grouped RAS and pro-bowl summary for one position
type PositionAggregate struct {
	Position     string   `json:"Position"`
	RASMean      *float64 `json:"RAS_mean"`
	RASStd       *float64 `json:"RAS_std"`
	RASCount     int      `json:"RAS_count"`
	ProBowlsMean *float64 `json:"Pro_Bowls_mean"`
	ProBowlsSum  float64  `json:"Pro_Bowls_sum"`
}

// DescriptiveStats is the output of the describe stage
type DescriptiveStats struct {
	Players     int                 `json:"players"`
	RAS         Summary             `json:"ras"`
	ProBowls    Summary             `json:"pro_bowls"`
	Pairs       int                 `json:"complete_pairs"`
	Correlation *float64            `json:"correlation"`
	PValue      *float64            `json:"p_value"`
	Positions   []PositionAggregate `json:"positions"`
}

// Descriptive computes summary statistics, the RAS/pro-bowl correlation and
// per-position aggregates. Missing values are left out of every statistic.
func Descriptive(records []models.PlayerRecord) *DescriptiveStats {
	out := &DescriptiveStats{
		Players:  len(records),
		RAS:      Describe(present(records, rasOf)),
		ProBowls: Describe(present(records, proBowlsOf)),
	}

	xs, ys := pairs(records, rasOf, proBowlsOf)
	out.Pairs = len(xs)
	if len(xs) >= 2 {
		out.Correlation = pearson(xs, ys)
	}
	if len(xs) >= 3 && out.Correlation != nil {
		p := pearsonPValue(*out.Correlation, len(xs))
		out.PValue = &p
	}

	groups := make(map[string][]models.PlayerRecord)
	for _, r := range records {
		groups[r.Position] = append(groups[r.Position], r)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		group := groups[name]
		ras := Describe(present(group, rasOf))
		pb := present(group, proBowlsOf)
		agg := PositionAggregate{
			Position: name,
			RASMean:  ras.Mean,
			RASStd:   ras.Std,
			RASCount: ras.Count,
		}
		if len(pb) > 0 {
			agg.ProBowlsMean = ptr(stat.Mean(pb, nil))
			agg.ProBowlsSum = floats.Sum(pb)
		}
		out.Positions = append(out.Positions, agg)
	}

	return out
}

// pearson returns nil when the coefficient is undefined, e.g. a constant input
func pearson(xs, ys []float64) *float64 {
	if len(xs) < 2 {
		return nil
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}

// pearsonPValue is the two-sided p-value of the regression slope t-test
func pearsonPValue(r float64, n int) float64 {
	df := float64(n - 2)
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(df/((1-r)*(1+r)))
	return twoSidedT(t, df)
}

func twoSidedT(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.Survival(math.Abs(t))
}

func rasOf(r models.PlayerRecord) *float64      { return r.RAS }
func proBowlsOf(r models.PlayerRecord) *float64 { return r.ProBowls }

func present(records []models.PlayerRecord, get func(models.PlayerRecord) *float64) []float64 {
	var out []float64
	for _, r := range records {
		if v := get(r); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func pairs(records []models.PlayerRecord, fx, fy func(models.PlayerRecord) *float64) (xs, ys []float64) {
	for _, r := range records {
		x, y := fx(r), fy(r)
		if x == nil || y == nil {
			continue
		}
		xs = append(xs, *x)
		ys = append(ys, *y)
	}
	return xs, ys
}

func ptr(v float64) *float64 { return &v }
