package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasviz/backend/internal/analysis"
	"rasviz/backend/internal/artifact"
	"rasviz/backend/internal/client"
	"rasviz/backend/internal/config"
	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/models"
	"rasviz/backend/internal/repository"
)

func newTestPipeline(t *testing.T, baseURL string) (*Pipeline, *artifact.Store, *bytes.Buffer) {
	t.Helper()

	cfg := &config.Config{
		ProBowlersURL:     baseURL + "/pro-bowlers/",
		RASSearchURL:      baseURL + "/",
		PFRBaseURL:        baseURL,
		CombineYears:      "2024",
		AccoladeRetries:   1,
		ExcludedPositions: []string{"DB"},
		MinCompleteness:   0.1,
		MinRegressionRows: 10,
		MinPositionSize:   3,
		TestFraction:      0.25,
		RandomSeed:        42,
	}
	store := artifact.NewStore(t.TempDir(), t.TempDir())
	aliases, err := ingest.DefaultAliases()
	require.NoError(t, err)

	var out bytes.Buffer
	c := client.NewClient("test-agent", 5*time.Second)
	return New(cfg, store, c, aliases, nil).WithOutput(&out), store, &out
}

func writeBasic(t *testing.T, store *artifact.Store, rows [][]string) {
	t.Helper()
	header := []string{"Name", "Pos", "RAS", "Draft", "ProBowls"}
	require.NoError(t, store.WriteTable(artifact.ProBowlersBasicCSV, header, rows))
}

func stages(report *models.RunReport) map[string]models.StageStatus {
	out := make(map[string]models.StageStatus, len(report.Stages))
	for _, s := range report.Stages {
		out[s.Stage] = s.Status
	}
	return out
}

func TestRun_UnknownJob(t *testing.T) {
	p, _, _ := newTestPipeline(t, "http://localhost")

	report, err := p.Run(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.Nil(t, report)
}

func TestRun_NormalizeFallsBackToSample(t *testing.T) {
	p, store, out := newTestPipeline(t, "http://localhost")

	report, err := p.Run(context.Background(), JobNormalize)
	require.NoError(t, err)

	want := map[string]models.StageStatus{
		"normalize/normalize":     models.StageSuccess,
		"normalize/store_players": models.StageSkipped,
	}
	if diff := cmp.Diff(want, stages(report)); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}

	var exported []models.PlayerRecord
	require.NoError(t, store.ReadJSON(artifact.ProcessedDataJSON, &exported))
	require.Len(t, exported, 3)
	assert.Equal(t, "Sample Player 1", exported[0].Player)
	assert.Equal(t, 9.8, *exported[0].RAS)
	assert.True(t, store.Exists(artifact.ProBowlersJSON))
	assert.True(t, store.Exists(artifact.RunReportJSON))
	assert.Contains(t, out.String(), "normalize/normalize")
}

func TestRun_PositionsExcludeDB(t *testing.T) {
	p, store, _ := newTestPipeline(t, "http://localhost")
	writeBasic(t, store, [][]string{
		{"A", "WR", "9.0", "2015 Round 1", "3"},
		{"B", "WR", "8.0", "2016 Round 2", "1"},
		{"C", "WR", "N/A", "2017 Round 3", "2"},
		{"D", "DB", "7.0", "2015 Round 1", "4"},
		{"E", "DB", "6.0", "2016 Round 1", "2"},
		{"F", "DB", "5.0", "2017 Round 1", "1"},
		{"G", "QB", "9.5", "2018 Round 1", "5"},
	})

	_, err := p.Run(context.Background(), JobPositions)
	require.NoError(t, err)

	var stats []analysis.PositionStat
	require.NoError(t, store.ReadJSON(artifact.PositionStatsJSON, &stats))
	require.Len(t, stats, 1, "DB is excluded and QB has too few players")
	assert.Equal(t, "WR", stats[0].Position)
	assert.Equal(t, 3, stats[0].PlayerCount)
	assert.InDelta(t, 8.5, *stats[0].AvgRAS, 1e-9)
	assert.Equal(t, 6.0, stats[0].TotalProBowls)

	// the raw export keeps every position
	_, err = p.Run(context.Background(), JobNormalize)
	require.NoError(t, err)
	var exported []models.PlayerRecord
	require.NoError(t, store.ReadJSON(artifact.ProcessedDataJSON, &exported))
	assert.Len(t, exported, 7)
}

func TestRun_AnalyzeWithoutInputIsFatal(t *testing.T) {
	p, store, _ := newTestPipeline(t, "http://localhost")

	report, err := p.Run(context.Background(), JobAnalyze)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Fatal())
	assert.Equal(t, models.StageFatal, stages(report)["analyze/describe"])
	assert.True(t, store.Exists(artifact.RunReportJSON), "the report is written even when the run fails")
}

func TestRun_AnalyzeWritesDescriptiveStats(t *testing.T) {
	p, store, out := newTestPipeline(t, "http://localhost")
	writeBasic(t, store, [][]string{
		{"A", "WR", "9.0", "2015 Round 1", "3"},
		{"B", "WR", "8.0", "2016 Round 2", "1"},
		{"C", "WR", "N/A", "2017 Round 3", "2"},
		{"D", "QB", "7.0", "2018 Round 1", "1"},
	})

	report, err := p.Run(context.Background(), JobAnalyze)
	require.NoError(t, err)
	assert.Equal(t, models.StageSuccess, stages(report)["analyze/describe"])

	var stats analysis.DescriptiveStats
	require.NoError(t, store.ReadJSON(artifact.DescriptiveStatsJSON, &stats))
	assert.Equal(t, 4, stats.Players)
	assert.Equal(t, 3, stats.RAS.Count, "N/A is left out")
	assert.Equal(t, 4, stats.ProBowls.Count)
	require.NotNil(t, stats.RAS.Mean)
	assert.InDelta(t, 8.0, *stats.RAS.Mean, 1e-9)
	require.Len(t, stats.Positions, 2)
	assert.Equal(t, "QB", stats.Positions[0].Position)

	console := out.String()
	assert.Contains(t, console, "4 players")
	assert.Regexp(t, `count\s*│\s*3\s*│\s*4\s*│`, console)
	assert.Contains(t, console, "8.000", "RAS mean")
	assert.True(t, store.Exists(artifact.ProcessedDataJSON))
}

func TestRun_PositionsPrintsMultiProBowlRate(t *testing.T) {
	p, store, out := newTestPipeline(t, "http://localhost")
	writeBasic(t, store, [][]string{
		{"A", "WR", "9.0", "2015 Round 1", "3"},
		{"B", "WR", "8.0", "2016 Round 2", "1"},
		{"C", "WR", "7.0", "2017 Round 3", "2"},
	})

	_, err := p.Run(context.Background(), JobPositions)
	require.NoError(t, err)

	var stats []analysis.PositionStat
	require.NoError(t, store.ReadJSON(artifact.PositionStatsJSON, &stats))
	require.Len(t, stats, 1)
	assert.InDelta(t, 66.666, stats[0].MultiProBowlRate, 1e-2)
	assert.Contains(t, out.String(), "66.7%")
	assert.NotContains(t, out.String(), "6666.7%")
}

func TestRun_NormalizeUnrecognizedTableHasNoRecordsToStore(t *testing.T) {
	p, store, _ := newTestPipeline(t, "http://localhost")
	p.db = &repository.Database{}
	require.NoError(t, store.WriteTable(artifact.ProBowlersBasicCSV, []string{"Foo", "Bar"}, [][]string{{"1", "2"}}))

	report, err := p.Run(context.Background(), JobNormalize)
	require.NoError(t, err)

	reasons := make(map[string]string)
	for _, s := range report.Stages {
		reasons[s.Stage] = s.Reason
	}
	assert.Equal(t, models.StageSkipped, stages(report)["normalize/normalize"])
	assert.Equal(t, models.StageSkipped, stages(report)["normalize/store_players"])
	assert.Equal(t, errNoRecords.Error(), reasons["normalize/store_players"])
}

func TestRun_AdvancedWritesPredictions(t *testing.T) {
	p, store, _ := newTestPipeline(t, "http://localhost")
	positions := []string{"WR", "QB", "RB", "DB"}
	var rows [][]string
	for i := 0; i < 40; i++ {
		rows = append(rows, []string{
			fmt.Sprintf("Player %d", i),
			positions[i%4],
			fmt.Sprintf("%.1f", 5+float64(i%10)*0.5),
			fmt.Sprintf("%d Round %d", 2000+i%20, i%7+1),
			fmt.Sprintf("%d", 1+i%3),
		})
	}
	writeBasic(t, store, rows)

	report, err := p.Run(context.Background(), JobAdvanced)
	require.NoError(t, err)
	got := stages(report)
	assert.Equal(t, models.StageSuccess, got["advanced/fit_models"])
	assert.Equal(t, models.StageSuccess, got["advanced/basic_regression"])
	assert.Equal(t, models.StageSuccess, got["advanced/predictions"])
	assert.True(t, store.Exists(artifact.BasicRegressionTXT))

	var preds []analysis.Prediction
	require.NoError(t, store.ReadJSON(artifact.MLPredictionsJSON, &preds))
	assert.Len(t, preds, 3*len(analysis.GridRAS()))
	for _, pr := range preds {
		assert.NotEqual(t, "DB", pr.Position)
		assert.GreaterOrEqual(t, pr.LogisticRegressionProb, 0.0)
		assert.LessOrEqual(t, pr.LogisticRegressionProb, 1.0)
	}
}

func TestRun_AdvancedTooFewRowsSkips(t *testing.T) {
	p, store, _ := newTestPipeline(t, "http://localhost")
	writeBasic(t, store, [][]string{
		{"A", "WR", "9.0", "2015 Round 1", "3"},
		{"B", "QB", "8.0", "2016 Round 2", "1"},
	})

	report, err := p.Run(context.Background(), JobAdvanced)
	require.NoError(t, err)
	assert.Equal(t, models.StageSkipped, stages(report)["advanced/fit_models"])
	assert.False(t, store.Exists(artifact.MLPredictionsJSON))
}

func TestRun_CollectUpstreamFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	p, store, _ := newTestPipeline(t, srv.URL)

	report, err := p.Run(context.Background(), JobCollect)
	require.Error(t, err)
	assert.Equal(t, models.StageFatal, stages(report)["collect/scrape_list"])
	assert.False(t, store.Exists(artifact.ProBowlersBasicCSV))
}

func TestRun_CollectWritesTables(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pro-bowlers/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><table class="tablepress">
			<thead><tr><th>Name</th><th>Pos</th><th>RAS</th><th>ProBowls</th></tr></thead>
			<tbody>
			<tr><td><a href="http://%s/players/alpha">Alpha One</a></td><td>WR</td><td>9.91</td><td>3</td></tr>
			<tr><td>Bravo Two</td><td>QB</td><td>8.10</td><td>1</td></tr>
			</tbody></table></body></html>`, r.Host)
	})
	mux.HandleFunc("/players/alpha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1 class="entry-title">Alpha One</h1>
			<div class="measurement"><div class="label">Height</div><div class="value">6'2"</div></div></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	p, store, _ := newTestPipeline(t, srv.URL)

	report, err := p.Run(context.Background(), JobCollect)
	require.NoError(t, err)
	got := stages(report)
	assert.Equal(t, models.StageSuccess, got["collect/scrape_list"])
	assert.Equal(t, models.StageSuccess, got["collect/enrich_profiles"])

	tbl, err := ingest.LoadFile(store.Path(artifact.ProBowlersBasicCSV))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.True(t, store.Exists(artifact.ProBowlersDetailedCSV))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.StageStatus
	}{
		{"nil", nil, models.StageSuccess},
		{"plain", errors.New("boom"), models.StageSkipped},
		{"disabled", errDisabled, models.StageSkipped},
		{"explicit", fatal(errors.New("boom")), models.StageFatal},
		{"no input", fmt.Errorf("load: %w", ingest.ErrNoInput), models.StageFatal},
		{"cancelled", context.Canceled, models.StageFatal},
		{"deadline", context.DeadlineExceeded, models.StageFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
