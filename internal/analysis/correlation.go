package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/models"
)

// Derived column names of the correlation stage
const (
	ColumnRAS              = "ras_numeric"
	ColumnProBowls         = "pro_bowls_numeric"
	ColumnMultipleProBowls = "multiple_pro_bowls"
)

// outcomeColumns are ordered after the measurement columns
var outcomeColumns = []string{ColumnRAS, ColumnProBowls, ColumnMultipleProBowls}

// identityColumns never carry a measurement
var identityColumns = map[string]bool{
	"player_name": true,
	"position":    true,
	"profile_url": true,
	"player_id":   true,
}

// Matrix is a labelled grid of coefficients; nil entries are undefined
type Matrix struct {
	Rows    []string
	Columns []string
	Values  [][]*float64
}

// At returns the coefficient for a row/column pair
func (m *Matrix) At(row, col string) (*float64, bool) {
	ri, ci := indexOf(m.Rows, row), indexOf(m.Columns, col)
	if ri < 0 || ci < 0 {
		return nil, false
	}
	return m.Values[ri][ci], true
}

// Object returns the nested row -> column -> value form, optionally relabelled
func (m *Matrix) Object(label func(string) string) models.Object {
	if label == nil {
		label = func(s string) string { return s }
	}
	out := make(models.Object, 0, len(m.Rows))
	for i, row := range m.Rows {
		inner := make(models.Object, 0, len(m.Columns))
		for j, col := range m.Columns {
			inner = append(inner, models.Field{Key: label(col), Value: m.Values[i][j]})
		}
		out = append(out, models.Field{Key: label(row), Value: inner})
	}
	return out
}

// MarshalJSON writes the nested form keyed by the raw field names
func (m *Matrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Object(nil))
}

// CSV returns a header and rows with the row label in the first column
func (m *Matrix) CSV() ([]string, [][]string) {
	header := append([]string{""}, m.Columns...)
	rows := make([][]string, 0, len(m.Rows))
	for i, row := range m.Rows {
		line := []string{row}
		for _, v := range m.Values[i] {
			if v == nil {
				line = append(line, "")
				continue
			}
			line = append(line, strconv.FormatFloat(*v, 'f', -1, 64))
		}
		rows = append(rows, line)
	}
	return header, rows
}

// Correlations holds the full matrix and its outcome-only projection
type Correlations struct {
	Columns []string
	Full    *Matrix
	Success *Matrix
}

// CorrelationOptions tunes the completeness filter
type CorrelationOptions struct {
	// MinCompleteness is the fraction of rows a column must exceed
	MinCompleteness float64
}

// Correlate computes pairwise Pearson coefficients between the numeric
// measurement columns of tbl and the RAS and pro-bowl outcomes.
func Correlate(tbl *models.Table, aliases ingest.AliasTable, opts CorrelationOptions) (*Correlations, error) {
	schema, err := aliases.Resolve(tbl.Columns)
	if err != nil {
		return nil, err
	}

	pbCol, ok := schema.Column(ingest.FieldProBowls)
	if !ok {
		return nil, fmt.Errorf("%w: no pro bowl column", ErrInsufficientData)
	}
	rasCol, hasRAS := schema.Column(ingest.FieldRAS)
	playerCol, _ := schema.Column(ingest.FieldPlayer)

	n := tbl.Len()
	columns := make(map[string][]*float64)
	var measurements []string

	for _, col := range tbl.Columns {
		if identityColumns[col] || col == playerCol || col == pbCol || (hasRAS && col == rasCol) {
			continue
		}
		name := col + "_numeric"
		values := make([]*float64, n)
		for i, row := range tbl.Rows {
			values[i] = ingest.ExtractNumber(row.Text(col))
		}
		columns[name] = values
		measurements = append(measurements, name)
	}

	pb := make([]*float64, n)
	multiple := make([]*float64, n)
	for i, row := range tbl.Rows {
		pb[i] = ingest.ParseNumber(row.Text(pbCol))
		flag := 0.0
		if pb[i] != nil && *pb[i] > 1 {
			flag = 1
		}
		multiple[i] = ptr(flag)
	}
	columns[ColumnProBowls] = pb
	columns[ColumnMultipleProBowls] = multiple

	if hasRAS {
		ras := make([]*float64, n)
		for i, row := range tbl.Rows {
			ras[i] = ingest.ParseNumber(row.Text(rasCol))
		}
		columns[ColumnRAS] = ras
	}

	var valid []string
	threshold := float64(n) * opts.MinCompleteness
	candidates := append(append([]string(nil), measurements...), ColumnRAS, ColumnProBowls, ColumnMultipleProBowls)
	for _, name := range candidates {
		values, ok := columns[name]
		if !ok {
			continue
		}
		if float64(countPresent(values)) > threshold {
			valid = append(valid, name)
		}
	}
	if len(valid) <= 2 {
		return nil, fmt.Errorf("%w: %d qualifying columns", ErrInsufficientData, len(valid))
	}

	ordered := orderColumns(valid)
	full := &Matrix{Rows: ordered, Columns: ordered, Values: make([][]*float64, len(ordered))}
	for i, a := range ordered {
		full.Values[i] = make([]*float64, len(ordered))
		for j, b := range ordered {
			full.Values[i][j] = pairwisePearson(columns[a], columns[b])
		}
	}

	return &Correlations{
		Columns: ordered,
		Full:    full,
		Success: successMatrix(full),
	}, nil
}

// orderColumns sorts measurement columns and appends the outcomes in fixed order
func orderColumns(valid []string) []string {
	isOutcome := make(map[string]bool, len(outcomeColumns))
	for _, c := range outcomeColumns {
		isOutcome[c] = true
	}
	var others, outcomes []string
	for _, c := range valid {
		if !isOutcome[c] {
			others = append(others, c)
		}
	}
	sort.Strings(others)
	for _, c := range outcomeColumns {
		if indexOf(valid, c) >= 0 {
			outcomes = append(outcomes, c)
		}
	}
	return append(others, outcomes...)
}

// successMatrix keeps outcome columns and drops outcome rows
func successMatrix(full *Matrix) *Matrix {
	var cols, rows []string
	for _, c := range full.Columns {
		if indexOf(outcomeColumns, c) >= 0 {
			cols = append(cols, c)
		} else {
			rows = append(rows, c)
		}
	}

	m := &Matrix{Rows: rows, Columns: cols, Values: make([][]*float64, len(rows))}
	for i, r := range rows {
		m.Values[i] = make([]*float64, len(cols))
		for j, c := range cols {
			m.Values[i][j], _ = full.At(r, c)
		}
	}
	return m
}

// DisplayName turns a derived column into a title such as "Forty Yard"
func DisplayName(column string) string {
	name := strings.ReplaceAll(column, "_numeric", "")
	name = strings.ReplaceAll(name, "_", " ")

	var b strings.Builder
	prevLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func pairwisePearson(a, b []*float64) *float64 {
	var xs, ys []float64
	for i := range a {
		if a[i] == nil || b[i] == nil {
			continue
		}
		xs = append(xs, *a[i])
		ys = append(ys, *b[i])
	}
	return pearson(xs, ys)
}

func countPresent(values []*float64) int {
	n := 0
	for _, v := range values {
		if v != nil {
			n++
		}
	}
	return n
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
