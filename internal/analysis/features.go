package analysis

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"rasviz/backend/internal/models"
)

// Feature column names
const (
	FeatureConst      = "const"
	FeatureRAS        = "RAS_numeric"
	FeatureDraftRound = "draft_round"
	dummyPrefix       = "pos_"
	maxDummies        = 5
)

// PositionDummies returns the sorted indicator column names for every
// position present in records
func PositionDummies(records []models.PlayerRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		name := dummyPrefix + r.Position
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Usable returns the records for which every field getter yields a value.
// Each analysis filters through it with its own key fields.
func Usable(records []models.PlayerRecord, fields ...func(models.PlayerRecord) *float64) []models.PlayerRecord {
	var out []models.PlayerRecord
next:
	for _, r := range records {
		for _, get := range fields {
			if get(r) == nil {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

// Complete returns the rows with both RAS and a pro-bowl count
func Complete(records []models.PlayerRecord) []models.PlayerRecord {
	return Usable(records, rasOf, proBowlsOf)
}

// Design is a feature matrix with its column names and target
type Design struct {
	Features []string
	X        *mat.Dense
	Y        []float64
}

// Rows returns the number of observations
func (d *Design) Rows() int {
	return len(d.Y)
}

// Subset returns the design restricted to the given row indices
func (d *Design) Subset(idx []int) *Design {
	cols := len(d.Features)
	x := mat.NewDense(len(idx), cols, nil)
	y := make([]float64, len(idx))
	for i, src := range idx {
		x.SetRow(i, mat.Row(nil, src, d.X))
		y[i] = d.Y[src]
	}
	return &Design{Features: d.Features, X: x, Y: y}
}

// Column returns the design restricted to one named feature
func (d *Design) Column(name string) *Design {
	j := indexOf(d.Features, name)
	if j < 0 {
		return nil
	}
	x := mat.NewDense(d.Rows(), 1, mat.Col(nil, j, d.X))
	return &Design{Features: []string{name}, X: x, Y: d.Y}
}

// featureValue returns a record's value for a column, nil when missing
func featureValue(r models.PlayerRecord, name string) *float64 {
	switch {
	case name == FeatureConst:
		return ptr(1)
	case name == FeatureRAS:
		return r.RAS
	case name == FeatureDraftRound:
		return r.DraftRound
	case strings.HasPrefix(name, dummyPrefix):
		if strings.TrimPrefix(name, dummyPrefix) == r.Position {
			return ptr(1)
		}
		return ptr(0)
	}
	return nil
}

// buildDesign assembles rows. With fillMissing unset a row missing any
// feature is dropped; otherwise missing values become zero.
func buildDesign(records []models.PlayerRecord, features []string, target func(models.PlayerRecord) float64, fillMissing bool) *Design {
	var data, y []float64
	for _, r := range records {
		row := make([]float64, len(features))
		ok := true
		for j, name := range features {
			v := featureValue(r, name)
			if v == nil {
				if !fillMissing {
					ok = false
					break
				}
				continue
			}
			row[j] = *v
		}
		if !ok {
			continue
		}
		data = append(data, row...)
		y = append(y, target(r))
	}

	d := &Design{Features: features, Y: y}
	if len(y) > 0 {
		d.X = mat.NewDense(len(y), len(features), data)
	}
	return d
}

func proBowlTarget(r models.PlayerRecord) float64 {
	return *r.ProBowls
}

func multipleTarget(r models.PlayerRecord) float64 {
	if r.IsMultipleProBowler() {
		return 1
	}
	return 0
}

func anyDraftRound(records []models.PlayerRecord) bool {
	for _, r := range records {
		if r.DraftRound != nil {
			return true
		}
	}
	return false
}

// regressionFeatures is const + RAS, then one fewer dummy than positions
// (at most five) and the draft round when known
func regressionFeatures(dummies []string, draft bool) []string {
	features := []string{FeatureConst, FeatureRAS}
	features = append(features, dummies[:clamp(len(dummies)-1, 0, maxDummies)]...)
	if draft {
		features = append(features, FeatureDraftRound)
	}
	return features
}

// classificationFeatures is RAS, up to five dummies and the draft round
func classificationFeatures(dummies []string, draft bool) []string {
	features := []string{FeatureRAS}
	features = append(features, dummies[:clamp(len(dummies), 0, maxDummies)]...)
	if draft {
		features = append(features, FeatureDraftRound)
	}
	return features
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
