package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/models"
)

func player(name, pos string, ras, pb *float64, draft string) models.PlayerRecord {
	r := models.PlayerRecord{Player: name, Position: pos, RAS: ras, ProBowls: pb, Draft: draft}
	r.Derive()
	return r
}

func correlationProfile(t *testing.T) ingest.AliasTable {
	t.Helper()
	aliases, err := ingest.DefaultAliases()
	require.NoError(t, err)
	table, err := aliases.Profile(ingest.ProfileCorrelation)
	require.NoError(t, err)
	return table
}

// league builds a table where players with RAS above 5 tend to be multiple pro bowlers
func league() []models.PlayerRecord {
	positions := []string{"WR", "QB", "RB", "DB"}
	var out []models.PlayerRecord
	for i := 0; i < 40; i++ {
		ras := 1 + float64(i%10)
		pb := 1.0
		if ras > 5 {
			pb = 2 + float64(i%3)
		}
		if i%7 == 0 {
			pb = 3 - pb/2
		}
		draft := fmt.Sprintf("2015 Round %d", i%7+1)
		out = append(out, player(fmt.Sprintf("P%d", i), positions[i%4], ptr(ras), ptr(pb), draft))
	}
	// rows without RAS never reach the models
	out = append(out, player("NoRAS", "WR", nil, ptr(4), "Undrafted"))
	return out
}

func TestDescribe(t *testing.T) {
	s := Describe([]float64{4, 1, 3, 2})

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, *s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), *s.Std, 1e-12)
	assert.Equal(t, 1.0, *s.Min)
	assert.InDelta(t, 1.75, *s.Q25, 1e-12)
	assert.InDelta(t, 2.5, *s.Q50, 1e-12)
	assert.InDelta(t, 3.25, *s.Q75, 1e-12)
	assert.Equal(t, 4.0, *s.Max)

	single := Describe([]float64{7})
	assert.Nil(t, single.Std)
	assert.Equal(t, 7.0, *single.Q75)

	empty := Describe(nil)
	assert.Equal(t, 0, empty.Count)
	assert.Nil(t, empty.Mean)
}

func TestDescriptive_SkipsMissingValues(t *testing.T) {
	records := []models.PlayerRecord{
		player("A", "WR", ptr(1), ptr(2), ""),
		player("B", "WR", ptr(2), ptr(4), ""),
		player("C", "QB", ptr(3), ptr(6), ""),
		player("D", "QB", ptr(4), ptr(8), ""),
		player("E", "QB", nil, ptr(1), ""),
		player("F", "RB", ptr(9), nil, ""),
	}

	stats := Descriptive(records)

	assert.Equal(t, 6, stats.Players)
	assert.Equal(t, 5, stats.RAS.Count)
	assert.Equal(t, 5, stats.ProBowls.Count)
	assert.Equal(t, 4, stats.Pairs)
	require.NotNil(t, stats.Correlation)
	assert.InDelta(t, 1, *stats.Correlation, 1e-9)
	require.NotNil(t, stats.PValue)
	assert.InDelta(t, 0, *stats.PValue, 1e-6)

	require.Len(t, stats.Positions, 3)
	assert.Equal(t, []string{"QB", "RB", "WR"}, []string{
		stats.Positions[0].Position, stats.Positions[1].Position, stats.Positions[2].Position,
	})
	qb := stats.Positions[0]
	assert.Equal(t, 2, qb.RASCount)
	assert.InDelta(t, 3.5, *qb.RASMean, 1e-12)
	assert.InDelta(t, 15, qb.ProBowlsSum, 1e-12)
	assert.Nil(t, stats.Positions[1].ProBowlsMean)
}

func TestDescriptive_PValueNeedsThreePairs(t *testing.T) {
	stats := Descriptive([]models.PlayerRecord{
		player("A", "WR", ptr(1), ptr(1), ""),
		player("B", "WR", ptr(2), ptr(3), ""),
	})
	assert.NotNil(t, stats.Correlation)
	assert.Nil(t, stats.PValue)
}

func TestUsable(t *testing.T) {
	records := []models.PlayerRecord{
		player("A", "WR", ptr(9), ptr(2), "2015 Round 1"),
		player("B", "WR", nil, ptr(2), "2015 Round 2"),
		player("C", "QB", ptr(7), nil, "Unknown"),
		player("D", "QB", ptr(6), ptr(1), "Unknown"),
	}

	assert.Len(t, Complete(records), 2)

	draft := func(r models.PlayerRecord) *float64 { return r.DraftRound }
	got := Usable(records, rasOf, draft)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Player)
	assert.Len(t, Usable(records), 4, "no fields keeps every row")
}

func TestPositionSummary_ExcludesDB(t *testing.T) {
	records := []models.PlayerRecord{
		player("W1", "WR", ptr(8), ptr(2), ""),
		player("D1", "DB", ptr(9), ptr(5), ""),
		player("W2", "WR", ptr(6), ptr(1), ""),
		player("D2", "DB", ptr(7), ptr(3), ""),
		player("W3", "WR", nil, nil, ""),
		player("D3", "DB", ptr(5), ptr(2), ""),
		player("Q1", "QB", ptr(9), ptr(4), ""),
		player("Q2", "QB", ptr(9), ptr(4), ""),
	}

	stats := PositionSummary(records, []string{"DB"}, 3)

	require.Len(t, stats, 1, "DB is excluded and QB has too few players")
	wr := stats[0]
	assert.Equal(t, "WR", wr.Position)
	assert.Equal(t, 3, wr.PlayerCount)
	assert.InDelta(t, 7, *wr.AvgRAS, 1e-12)
	assert.InDelta(t, 1.5, *wr.AvgProBowls, 1e-12)
	assert.Equal(t, 3.0, wr.TotalProBowls)
	assert.InDelta(t, 100.0/3, wr.MultiProBowlRate, 1e-9, "missing count is not multiple")

	assert.Equal(t, []string{"WR", "QB"}, Positions(records, []string{"DB"}))
	assert.Len(t, PositionSummary(records, nil, 3), 2, "DB is kept when not excluded")
}

func measurementTable() *models.Table {
	tbl := &models.Table{Columns: []string{"player_name", "ras_score", "constant", "forty", "sparse", "vertical", "pro_bowls"}}
	for i := 0; i < 10; i++ {
		pb := float64(i)
		forty := fmt.Sprintf("%.1fs", 5.0-0.1*pb)
		if i == 3 {
			forty = "N/A"
		}
		sparse := ""
		if i == 0 {
			sparse = "12"
		}
		tbl.Rows = append(tbl.Rows, models.Row{
			"player_name": models.Plain(fmt.Sprintf("P%d", i)),
			"ras_score":   models.Plain(fmt.Sprintf("%.1f", 5+pb/2)),
			"constant":    models.Plain("7"),
			"forty":       models.Plain(forty),
			"sparse":      models.Plain(sparse),
			"vertical":    models.Plain(fmt.Sprintf("%d in", 30+i)),
			"pro_bowls":   models.Plain(fmt.Sprintf("%d", i)),
		})
	}
	return tbl
}

func TestCorrelate(t *testing.T) {
	corr, err := Correlate(measurementTable(), correlationProfile(t), CorrelationOptions{MinCompleteness: 0.1})
	require.NoError(t, err)

	want := []string{"constant_numeric", "forty_numeric", "vertical_numeric", ColumnRAS, ColumnProBowls, ColumnMultipleProBowls}
	if diff := cmp.Diff(want, corr.Columns); diff != "" {
		t.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}

	v, ok := corr.Full.At("vertical_numeric", ColumnProBowls)
	require.True(t, ok)
	assert.InDelta(t, 1, *v, 1e-9)

	v, _ = corr.Full.At("forty_numeric", ColumnProBowls)
	assert.InDelta(t, -1, *v, 1e-9, "N/A row is dropped pairwise")

	v, _ = corr.Full.At("constant_numeric", ColumnRAS)
	assert.Nil(t, v, "constant column has undefined correlation")

	data, err := json.Marshal(corr.Full)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"constant_numeric":{"constant_numeric":null`)

	assert.Equal(t, []string{"constant_numeric", "forty_numeric", "vertical_numeric"}, corr.Success.Rows)
	assert.Equal(t, []string{ColumnRAS, ColumnProBowls, ColumnMultipleProBowls}, corr.Success.Columns)

	header, rows := corr.Success.CSV()
	assert.Equal(t, []string{"", ColumnRAS, ColumnProBowls, ColumnMultipleProBowls}, header)
	assert.Equal(t, "constant_numeric", rows[0][0])
	assert.Equal(t, "", rows[0][1])
}

func TestCorrelate_NeedsProBowls(t *testing.T) {
	tbl := &models.Table{Columns: []string{"player_name", "ras_score", "forty"}}
	tbl.Rows = []models.Row{{"player_name": models.Plain("A"), "ras_score": models.Plain("9"), "forty": models.Plain("4.4")}}

	_, err := Correlate(tbl, correlationProfile(t), CorrelationOptions{MinCompleteness: 0.1})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestCorrelate_TooFewColumns(t *testing.T) {
	tbl := &models.Table{Columns: []string{"player_name", "pro_bowls"}}
	for i := 0; i < 5; i++ {
		tbl.Rows = append(tbl.Rows, models.Row{"player_name": models.Plain("A"), "pro_bowls": models.Plain(fmt.Sprint(i))})
	}

	_, err := Correlate(tbl, correlationProfile(t), CorrelationOptions{MinCompleteness: 0.1})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Forty", DisplayName("forty_numeric"))
	assert.Equal(t, "Multiple Pro Bowls", DisplayName("multiple_pro_bowls"))
	assert.Equal(t, "40Yd", DisplayName("40yd_numeric"))
	assert.Equal(t, "Ras", DisplayName(ColumnRAS))
}

func TestFitOLS_KnownLine(t *testing.T) {
	n := 10
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		xi := float64(i + 1)
		x.Set(i, 0, 1)
		x.Set(i, 1, xi)
		noise := 0.1
		if i%2 == 1 {
			noise = -0.1
		}
		y[i] = 1 + 2*xi + noise
	}

	res, err := FitOLS(TargetProBowls, &Design{Features: []string{FeatureConst, FeatureRAS}, X: x, Y: y})
	require.NoError(t, err)

	intercept, _ := res.Coefficient(FeatureConst)
	slope, _ := res.Coefficient(FeatureRAS)
	assert.InDelta(t, 1, intercept, 0.15)
	assert.InDelta(t, 2, slope, 0.05)
	assert.Greater(t, res.R2, 0.99)
	assert.Equal(t, 10, res.N)
	assert.Equal(t, 8, res.DFResid)
	assert.Equal(t, 1, res.DFModel)
	assert.Less(t, res.P[1], 1e-6)

	summary := res.Summary()
	assert.Contains(t, summary, "OLS Regression Results")
	assert.Contains(t, summary, "R-squared:")
	assert.Contains(t, summary, FeatureRAS)
}

func TestFitOLS_RankDeficientUsesPseudoInverse(t *testing.T) {
	n := 8
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		xi := float64(i)
		x.Set(i, 0, 1)
		x.Set(i, 1, xi)
		x.Set(i, 2, xi)
		y[i] = 3 + 2*xi
		if i%2 == 0 {
			y[i] += 0.2
		}
	}

	res, err := FitOLS("y", &Design{Features: []string{"const", "a", "b"}, X: x, Y: y})
	require.NoError(t, err)
	assert.InDelta(t, res.Coef[1], res.Coef[2], 1e-9, "duplicate columns share the weight")
	assert.InDelta(t, 2, res.Coef[1]+res.Coef[2], 0.1)
	assert.Equal(t, 1, res.DFModel)
}

func TestFitOLS_TooFewRows(t *testing.T) {
	x := mat.NewDense(2, 2, []float64{1, 1, 1, 2})
	_, err := FitOLS("y", &Design{Features: []string{"const", "x"}, X: x, Y: []float64{1, 2}})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func thresholdDesign() *Design {
	n := 20
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i+1))
		if i+1 > 10 {
			y[i] = 1
		}
	}
	// overlap so the classes are not separable
	y[8], y[12] = 1, 0
	return &Design{Features: []string{FeatureRAS}, X: x, Y: y}
}

func TestLogisticRegression(t *testing.T) {
	lr := NewLogisticRegression()
	require.NoError(t, lr.Fit(thresholdDesign()))

	low, err := lr.PredictProba([]float64{3})
	require.NoError(t, err)
	high, err := lr.PredictProba([]float64{18})
	require.NoError(t, err)

	assert.Less(t, low, 0.5)
	assert.Greater(t, high, 0.5)
	assert.Greater(t, lr.Coef[0], 0.0)
	assert.Equal(t, []float64{math.Abs(lr.Coef[0])}, lr.Importance())

	_, err = lr.PredictProba([]float64{1, 2})
	assert.Error(t, err)
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	d := thresholdDesign()
	for i := range d.Y {
		d.Y[i] = 0
	}
	err := NewLogisticRegression().Fit(d)
	assert.True(t, errors.Is(err, ErrSingleClass))
}

func TestRandomForest(t *testing.T) {
	rf := NewRandomForest(42)
	require.NoError(t, rf.Fit(thresholdDesign()))

	low, err := rf.PredictProba([]float64{2})
	require.NoError(t, err)
	high, err := rf.PredictProba([]float64{19})
	require.NoError(t, err)
	assert.Less(t, low, 0.5)
	assert.Greater(t, high, 0.5)
	assert.InDelta(t, 1, floats.Sum(rf.Importance()), 1e-9)

	again := NewRandomForest(42)
	require.NoError(t, again.Fit(thresholdDesign()))
	mid1, _ := rf.PredictProba([]float64{10.5})
	mid2, _ := again.PredictProba([]float64{10.5})
	assert.Equal(t, mid1, mid2, "same seed gives the same forest")
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(20, 0.25, 42)
	require.NoError(t, err)
	assert.Len(t, test, 5)
	assert.Len(t, train, 15)

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		assert.False(t, seen[i])
		seen[i] = true
	}
	assert.Len(t, seen, 20)

	again, _, _ := TrainTestSplit(20, 0.25, 42)
	assert.Equal(t, train, again)

	_, _, err = TrainTestSplit(1, 0.25, 42)
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestClassificationReport(t *testing.T) {
	report := ClassificationReport([]float64{0, 0, 1, 1}, []float64{0, 1, 1, 1})

	assert.Contains(t, report, "precision")
	assert.Contains(t, report, "             0       1.00      0.50      0.67         2")
	assert.Contains(t, report, "             1       0.67      1.00      0.80         2")
	assert.Contains(t, report, "accuracy")
}

func TestClassify_FallsBackToRAS(t *testing.T) {
	d := thresholdDesign()
	x := mat.NewDense(d.Rows(), 2, nil)
	for i := 0; i < d.Rows(); i++ {
		x.Set(i, 0, d.X.At(i, 0))
	}
	d = &Design{Features: []string{FeatureRAS, "pos_WR"}, X: x, Y: d.Y}

	res, err := Classify(d, ClassifyOptions{TestFraction: 0.99, Seed: 42})
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, []string{FeatureRAS}, res.Features)
	assert.NotNil(t, res.Logistic)
	assert.NotNil(t, res.Forest)
	assert.Empty(t, res.LogisticReport)
}

func TestGridRAS(t *testing.T) {
	grid := GridRAS()
	require.Len(t, grid, 91)
	assert.Equal(t, 1.0, grid[0])
	assert.Equal(t, 1.1, grid[1])
	assert.Equal(t, 10.0, grid[90])
}

func TestRunAdvanced_WRGrid(t *testing.T) {
	res, err := RunAdvanced(league(), AdvancedOptions{
		MinRows:      10,
		TestFraction: 0.25,
		Seed:         42,
		Excluded:     []string{"DB"},
		Positions:    []string{"WR"},
		GridRAS:      []float64{1, 5, 10},
	})
	require.NoError(t, err)

	assert.Equal(t, 40, res.Rows, "row without RAS is dropped")
	require.NotNil(t, res.Basic)
	require.NotNil(t, res.Multiple)
	assert.Equal(t, []string{FeatureConst, FeatureRAS, "pos_DB", "pos_QB", "pos_RB", FeatureDraftRound}, res.Multiple.Features)
	require.NotNil(t, res.Classification)
	assert.Equal(t, []string{FeatureRAS, "pos_DB", "pos_QB", "pos_RB", "pos_WR", FeatureDraftRound}, res.Classification.Features)

	require.Len(t, res.Predictions, 3)
	for i, ras := range []float64{1, 5, 10} {
		p := res.Predictions[i]
		assert.Equal(t, "WR", p.Position)
		assert.Equal(t, ras, p.RAS)
		assert.GreaterOrEqual(t, p.LogisticRegressionProb, 0.0)
		assert.LessOrEqual(t, p.LogisticRegressionProb, 1.0)
		assert.GreaterOrEqual(t, p.RandomForestProb, 0.0)
		assert.LessOrEqual(t, p.RandomForestProb, 1.0)
	}
	assert.Greater(t, res.Predictions[2].LogisticRegressionProb, res.Predictions[0].LogisticRegressionProb)
}

func TestRunAdvanced_DefaultGridSkipsExcluded(t *testing.T) {
	res, err := RunAdvanced(league(), AdvancedOptions{MinRows: 10, TestFraction: 0.25, Seed: 42, Excluded: []string{"DB"}})
	require.NoError(t, err)

	assert.Len(t, res.Predictions, 3*91)
	for _, p := range res.Predictions {
		assert.NotEqual(t, "DB", p.Position)
	}
}

func TestRunAdvanced_TooFewRows(t *testing.T) {
	records := league()[:5]
	_, err := RunAdvanced(records, AdvancedOptions{MinRows: 10, TestFraction: 0.25, Seed: 42})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestPredictionGrid_MissingModelsScoreZero(t *testing.T) {
	preds := PredictionGrid(&Classification{Features: []string{FeatureRAS}}, GridOptions{
		Positions: []string{"WR"},
		RAS:       []float64{5},
	})
	require.Len(t, preds, 1)
	assert.Equal(t, 0.0, preds[0].LogisticRegressionProb)
	assert.Equal(t, 0.0, preds[0].RandomForestProb)
}

func TestCheckTable(t *testing.T) {
	tbl := &models.Table{Columns: []string{"player_name", "Height", "40_yard_dash", "Bench_Press", "college"}}
	for i := 0; i < 5; i++ {
		tbl.Rows = append(tbl.Rows, models.Row{"player_name": models.Plain(fmt.Sprint(i))})
	}

	check := CheckTable("measurements.csv", tbl)
	assert.Equal(t, 5, check.Rows)
	assert.Len(t, check.Sample, 3)
	assert.Equal(t, []string{"Height", "40_yard_dash", "Bench_Press"}, check.MeasurementColumns)
	assert.True(t, check.HasMeasurements())
}
