package artifact

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/metrics"
	"rasviz/backend/internal/models"
)

// Root selects which directory an artifact lives under
type Root int

const (
	// Backend is the backend data/analysis root
	Backend Root = iota
	// Frontend is the frontend public data directory
	Frontend
)

// Kind is a named artifact with a fixed location
type Kind struct {
	Name string
	Root Root
	Path string
}

// Artifact kinds shared with the frontend and between jobs
var (
	ProBowlersBasicCSV      = Kind{"pro_bowlers_basic_csv", Backend, "data/pro_bowlers_ras.csv"}
	ProBowlersDetailedCSV   = Kind{"pro_bowlers_detailed_csv", Backend, "data/pro_bowlers_ras_detailed.csv"}
	ProBowlersJSON          = Kind{"pro_bowlers_json", Backend, "data/pro_bowlers_ras.json"}
	DetailedMeasurementsCSV = Kind{"detailed_measurements_csv", Backend, "data/player_detailed_measurements.csv"}
	DetailedMeasurementJSON = Kind{"detailed_measurements_json", Backend, "data/player_detailed_measurements.json"}
	CombineCSV              = Kind{"combine_csv", Backend, "data/combine_data/nfl_combine_data.csv"}
	DescriptiveStatsJSON    = Kind{"descriptive_stats", Backend, "analysis/descriptive_stats.json"}
	MeasurementCorrCSV      = Kind{"measurement_correlation_csv", Backend, "analysis/visualizations/measurement_correlation.csv"}
	SuccessCorrCSV          = Kind{"success_correlation_csv", Backend, "analysis/visualizations/success_correlation.csv"}
	BasicRegressionTXT      = Kind{"basic_regression", Backend, "analysis/advanced/basic_regression.txt"}
	AdvancedRegressionTXT   = Kind{"advanced_regression", Backend, "analysis/advanced/advanced_regression.txt"}
	LogisticRegressionTXT   = Kind{"logistic_regression", Backend, "analysis/advanced/logistic_regression_results.txt"}
	RandomForestTXT         = Kind{"random_forest", Backend, "analysis/advanced/random_forest_results.txt"}
	RunReportJSON           = Kind{"run_report", Backend, "analysis/run_report.json"}

	CombineJSON         = Kind{"nfl_combine_data", Frontend, "nfl_combine_data.json"}
	ProcessedDataJSON   = Kind{"processed_data", Frontend, "processed_data.json"}
	PositionStatsJSON   = Kind{"position_stats", Frontend, "position_stats.json"}
	MeasurementCorrJSON = Kind{"measurement_correlation", Frontend, "measurement_correlation.json"}
	SuccessCorrJSON     = Kind{"success_correlation", Frontend, "success_correlation.json"}
	MLPredictionsJSON   = Kind{"ml_predictions", Frontend, "ml_predictions.json"}
)

// FrontendKinds are the artifacts the frontend fetches by file name
var FrontendKinds = []Kind{
	CombineJSON,
	ProcessedDataJSON,
	PositionStatsJSON,
	MeasurementCorrJSON,
	SuccessCorrJSON,
	MLPredictionsJSON,
}

// Store resolves artifact kinds to files and writes them whole
type Store struct {
	backendDir  string
	frontendDir string
}

// NewStore creates a store over the two artifact roots
func NewStore(backendDir, frontendDir string) *Store {
	return &Store{backendDir: backendDir, frontendDir: frontendDir}
}

// Path returns the file path of an artifact
func (s *Store) Path(k Kind) string {
	if k.Root == Frontend {
		return filepath.Join(s.frontendDir, k.Path)
	}
	return filepath.Join(s.backendDir, k.Path)
}

// Exists reports whether the artifact has been written
func (s *Store) Exists(k Kind) bool {
	_, err := os.Stat(s.Path(k))
	return err == nil
}

// WriteJSON writes v as JSON, replacing any previous file
func (s *Store) WriteJSON(k Kind, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", k.Name, err)
	}
	return s.write(k, data)
}

// WriteRecords writes flat records as a JSON array
func (s *Store) WriteRecords(k Kind, records []models.Flattener) error {
	objects := make([]models.Object, len(records))
	for i, r := range records {
		objects[i] = r.Flatten()
	}
	if err := s.WriteJSON(k, objects); err != nil {
		return err
	}
	metrics.RecordArtifact(k.Name, len(records))
	return nil
}

// WriteCSV writes flat records with a header that is the union of their
// keys in order of first appearance
func (s *Store) WriteCSV(k Kind, records []models.Flattener) error {
	objects := make([]models.Object, len(records))
	var header []string
	seen := make(map[string]bool)
	for i, r := range records {
		objects[i] = r.Flatten()
		for _, f := range objects[i] {
			if !seen[f.Key] {
				seen[f.Key] = true
				header = append(header, f.Key)
			}
		}
	}

	rows := make([][]string, 0, len(objects))
	for _, obj := range objects {
		row := make([]string, len(header))
		for i, key := range header {
			if v, ok := obj.Get(key); ok {
				row[i] = FormatValue(v)
			}
		}
		rows = append(rows, row)
	}

	if err := s.WriteTable(k, header, rows); err != nil {
		return err
	}
	metrics.RecordArtifact(k.Name, len(records))
	return nil
}

// WriteTable writes a header and rows as CSV
func (s *Store) WriteTable(k Kind, header []string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to encode %s: %w", k.Name, err)
	}
	return s.write(k, buf.Bytes())
}

// WriteCells writes a scraped table as CSV, linked cells in dict-like form
func (s *Store) WriteCells(k Kind, tbl *models.Table) error {
	rows := make([][]string, 0, tbl.Len())
	for _, r := range tbl.Rows {
		row := make([]string, len(tbl.Columns))
		for i, col := range tbl.Columns {
			row[i] = r[col].String()
		}
		rows = append(rows, row)
	}
	if err := s.WriteTable(k, tbl.Columns, rows); err != nil {
		return err
	}
	metrics.RecordArtifact(k.Name, tbl.Len())
	return nil
}

// WriteText writes a plain text artifact
func (s *Store) WriteText(k Kind, text string) error {
	return s.write(k, []byte(text))
}

// ReadJSON decodes an artifact into v
func (s *Store) ReadJSON(k Kind, v interface{}) error {
	data, err := os.ReadFile(s.Path(k))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", k.Name, err)
	}
	return nil
}

func (s *Store) write(k Kind, data []byte) error {
	path := s.Path(k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", k.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", k.Name, err)
	}

	log.Info().
		Str("artifact", k.Name).
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Artifact written")
	return nil
}

// FormatValue renders a flat value for CSV. Missing values are empty.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case *float64:
		if val == nil {
			return ""
		}
		return strconv.FormatFloat(*val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	case *bool:
		if val == nil {
			return ""
		}
		return strconv.FormatBool(*val)
	case models.Cell:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Flatteners adapts a typed slice for the record writers
func Flatteners[T models.Flattener](records []T) []models.Flattener {
	out := make([]models.Flattener, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}
