package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/models"
)

// ErrNoInput is returned when none of the candidate files could be loaded
var ErrNoInput = errors.New("no input file could be loaded")

// LoadFile reads a CSV or JSON table, chosen by extension
func LoadFile(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tbl *models.Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		tbl, err = ReadJSON(f)
	default:
		tbl, err = ReadCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(tbl.Columns) == 0 {
		return nil, fmt.Errorf("%s: no columns", path)
	}
	return tbl, nil
}

// LoadFirst tries the candidates in order and returns the first table
// that loads together with its path.
func LoadFirst(candidates ...string) (*models.Table, string, error) {
	for _, path := range candidates {
		tbl, err := LoadFile(path)
		if err != nil {
			log.Info().Err(err).Str("path", path).Msg("Candidate input not usable")
			continue
		}
		log.Info().
			Str("path", path).
			Int("rows", tbl.Len()).
			Msg("Loaded input")
		return tbl, path, nil
	}
	return nil, "", fmt.Errorf("%w: tried %v", ErrNoInput, candidates)
}

// ReadCSV reads a table with a header row. Ragged rows are padded.
func ReadCSV(r io.Reader) (*models.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return &models.Table{}, nil
	}
	if err != nil {
		return nil, err
	}

	tbl := &models.Table{}
	for _, h := range header {
		tbl.AddColumn(strings.TrimPrefix(h, "\ufeff"))
	}

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(models.Row, len(tbl.Columns))
		for i, col := range tbl.Columns {
			if i < len(rec) {
				row[col] = models.ParseCell(rec[i])
			} else {
				row[col] = models.Plain("")
			}
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

// ReadJSON reads an array of flat objects, keeping key order of first
// appearance as the column order.
func ReadJSON(r io.Reader) (*models.Table, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}

	tbl := &models.Table{}
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		row := make(models.Row)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", tok)
			}
			var cell models.Cell
			if err := dec.Decode(&cell); err != nil {
				return nil, err
			}
			tbl.AddColumn(key)
			row[key] = cell
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		tbl.Rows = append(tbl.Rows, row)
	}

	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}

	for _, row := range tbl.Rows {
		for _, col := range tbl.Columns {
			if _, ok := row[col]; !ok {
				row[col] = models.Plain("")
			}
		}
	}
	return tbl, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
