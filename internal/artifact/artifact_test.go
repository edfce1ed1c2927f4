package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/models"
)

func f(v float64) *float64 { return &v }

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "backend"), filepath.Join(dir, "frontend", "public", "data"))
}

func TestStore_Path(t *testing.T) {
	s := NewStore("/b", "/f")
	assert.Equal(t, filepath.Join("/f", "processed_data.json"), s.Path(ProcessedDataJSON))
	assert.Equal(t, filepath.Join("/b", "data", "combine_data", "nfl_combine_data.csv"), s.Path(CombineCSV))
}

func TestStore_PlayerRecordsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	college := "Alabama"
	url := "https://ras.football/p1/"
	in := []models.PlayerRecord{
		{Player: "Sample Player 1", Position: "QB", RAS: f(9.8), ProBowls: f(3), College: &college, Draft: "2020 Round 1", ProfileURL: &url},
		{Player: "Sample Player 3", Position: "RB", RAS: f(7.6), ProBowls: f(1), College: &college, Draft: "2021 Round 1", ProfileURL: &url},
	}
	for i := range in {
		in[i].Derive()
	}

	require.NoError(t, s.WriteRecords(ProcessedDataJSON, Flatteners(in)))
	assert.True(t, s.Exists(ProcessedDataJSON))

	var out []models.PlayerRecord
	require.NoError(t, s.ReadJSON(ProcessedDataJSON, &out))
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatal(diff)
	}
}

func TestStore_WriteOverwrites(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WriteText(BasicRegressionTXT, "first run, longer text"))
	require.NoError(t, s.WriteText(BasicRegressionTXT, "second"))

	data, err := os.ReadFile(s.Path(BasicRegressionTXT))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestStore_WriteCSVUnionHeader(t *testing.T) {
	s := newTestStore(t)

	a := models.NewCombineRecord(2024)
	a.Set("Player", "A")
	a.Set("40yd", "4.4")
	b := models.NewCombineRecord(2023)
	b.Set("Player", "B")
	b.Set("Bench", "20")

	require.NoError(t, s.WriteCSV(CombineCSV, Flatteners([]*models.CombineRecord{a, b})))

	data, err := os.ReadFile(s.Path(CombineCSV))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Player_URL,Player,40yd,Height_inches,Combine_Year,Bench", lines[0])
	assert.Equal(t, ",B,,,2023,20", lines[2])
}

func TestStore_WriteCellsReadsBackLinked(t *testing.T) {
	s := newTestStore(t)

	tbl := &models.Table{
		Columns: []string{"Name", "Pos"},
		Rows: []models.Row{
			{"Name": models.Linked("Alpha, Jr.", "https://ras.football/alpha/"), "Pos": models.Plain("QB")},
		},
	}
	require.NoError(t, s.WriteCells(ProBowlersBasicCSV, tbl))

	back, err := ingest.LoadFile(s.Path(ProBowlersBasicCSV))
	require.NoError(t, err)
	if diff := cmp.Diff(tbl, back); diff != "" {
		t.Fatal(diff)
	}
}

func TestFormatValue(t *testing.T) {
	var missing *float64
	assert.Equal(t, "", FormatValue(missing))
	assert.Equal(t, "9.8", FormatValue(f(9.8)))
	assert.Equal(t, "3", FormatValue(3))
	assert.Equal(t, "true", FormatValue(true))
}
