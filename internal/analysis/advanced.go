package analysis

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/models"
)

// Regression targets
const (
	TargetProBowls = "Pro_Bowls_numeric"
)

// AdvancedOptions tunes the regression and classification stages
type AdvancedOptions struct {
	MinRows      int
	TestFraction float64
	Seed         int64
	Excluded     []string
	// Positions overrides the grid positions; nil means every non-excluded position
	Positions []string
	// GridRAS overrides the grid RAS values
	GridRAS []float64
}

// Advanced is the outcome of the regression and classification stages.
// AdvancedErr and ClassifyErr record stages that degraded without failing
// the whole analysis.
type Advanced struct {
	Rows           int
	Basic          *OLSResult
	Multiple       *OLSResult
	MultipleErr    error
	Classification *Classification
	ClassifyErr    error
	Predictions    []Prediction
}

// RunAdvanced fits the basic and multiple regressions, trains the
// classifiers and builds the prediction grid over records
func RunAdvanced(records []models.PlayerRecord, opts AdvancedOptions) (*Advanced, error) {
	complete := Complete(records)
	if len(complete) < opts.MinRows {
		return nil, fmt.Errorf("%w: %d complete rows, need %d", ErrInsufficientData, len(complete), opts.MinRows)
	}

	out := &Advanced{Rows: len(complete)}
	dummies := PositionDummies(records)

	basic, err := FitOLS(TargetProBowls, buildDesign(complete, []string{FeatureConst, FeatureRAS}, proBowlTarget, false))
	if err != nil {
		return nil, fmt.Errorf("basic regression: %w", err)
	}
	out.Basic = basic

	features := regressionFeatures(dummies, anyDraftRound(complete))
	if len(features) > 2 {
		out.Multiple, out.MultipleErr = FitOLS(TargetProBowls, buildDesign(complete, features, proBowlTarget, false))
		if out.MultipleErr != nil {
			log.Warn().Err(out.MultipleErr).Msg("Skipping advanced regression")
		}
	} else {
		out.MultipleErr = fmt.Errorf("%w: no features beyond RAS", ErrInsufficientData)
	}

	design := buildDesign(complete, classificationFeatures(dummies, anyDraftRound(complete)), multipleTarget, true)
	out.Classification, out.ClassifyErr = Classify(design, ClassifyOptions{
		TestFraction: opts.TestFraction,
		Seed:         opts.Seed,
	})
	if out.Classification == nil {
		return out, nil
	}

	positions := opts.Positions
	if positions == nil {
		positions = Positions(records, opts.Excluded)
	}
	out.Predictions = PredictionGrid(out.Classification, GridOptions{Positions: positions, RAS: opts.GridRAS})

	return out, nil
}
