package analysis

import (
	"strings"
)

// Prediction is one point of the probability grid
type Prediction struct {
	RAS                    float64 `json:"RAS"`
	Position               string  `json:"Position"`
	LogisticRegressionProb float64 `json:"LogisticRegression_Prob"`
	RandomForestProb       float64 `json:"RandomForest_Prob"`
}

// DefaultDraftRound is assumed for grid rows when the models use the draft round
const DefaultDraftRound = 3

// GridRAS returns 1.0, 1.1, ..., 10.0
func GridRAS() []float64 {
	out := make([]float64, 91)
	for i := range out {
		out[i] = 1 + float64(i)/10
	}
	return out
}

// GridOptions selects the positions and RAS values to score
type GridOptions struct {
	Positions []string
	RAS       []float64
}

// PredictionGrid scores every position and RAS pair with both classifiers.
// A missing or failing model contributes a probability of 0.
func PredictionGrid(c *Classification, opts GridOptions) []Prediction {
	values := opts.RAS
	if values == nil {
		values = GridRAS()
	}

	out := make([]Prediction, 0, len(opts.Positions)*len(values))
	for _, pos := range opts.Positions {
		for _, ras := range values {
			row := gridRow(c.Features, pos, ras)
			out = append(out, Prediction{
				RAS:                    ras,
				Position:               pos,
				LogisticRegressionProb: probability(logisticOf(c), row),
				RandomForestProb:       probability(forestOf(c), row),
			})
		}
	}
	return out
}

func gridRow(features []string, position string, ras float64) []float64 {
	row := make([]float64, len(features))
	for j, name := range features {
		switch {
		case name == FeatureRAS:
			row[j] = ras
		case name == FeatureDraftRound:
			row[j] = DefaultDraftRound
		case strings.HasPrefix(name, dummyPrefix) && strings.TrimPrefix(name, dummyPrefix) == position:
			row[j] = 1
		}
	}
	return row
}

func probability(c Classifier, row []float64) float64 {
	if c == nil {
		return 0
	}
	p, err := c.PredictProba(row)
	if err != nil {
		return 0
	}
	return p
}

// logisticOf and forestOf keep a nil model from becoming a non-nil interface
func logisticOf(c *Classification) Classifier {
	if c.Logistic == nil {
		return nil
	}
	return c.Logistic
}

func forestOf(c *Classification) Classifier {
	if c.Forest == nil {
		return nil
	}
	return c.Forest
}
