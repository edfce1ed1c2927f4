package ingest

import (
	"strings"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/models"
)

// SampleTable is the stand-in table used when no raw file exists yet
func SampleTable() *models.Table {
	columns := []string{"Name", "Pos", "RAS", "Draft", "College", "ProBowls"}
	values := [][]string{
		{"Sample Player 1", "QB", "9.8", "2020 Round 1", "Alabama", "3"},
		{"Sample Player 2", "WR", "8.7", "2019 Round 2", "Ohio State", "2"},
		{"Sample Player 3", "RB", "7.6", "2021 Round 1", "Clemson", "1"},
	}

	tbl := &models.Table{Columns: columns}
	for _, v := range values {
		row := make(models.Row, len(columns))
		for i, col := range columns {
			row[col] = models.Plain(v[i])
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl
}

// Normalizer converts raw tables into canonical player records
type Normalizer struct {
	aliases AliasTable
}

// NewNormalizer creates a normalizer for one alias profile
func NewNormalizer(aliases AliasTable) *Normalizer {
	return &Normalizer{aliases: aliases}
}

// Normalize resolves the table's columns once and builds one record per row
func (n *Normalizer) Normalize(tbl *models.Table) ([]models.PlayerRecord, Schema, error) {
	schema, err := n.aliases.Resolve(tbl.Columns)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Interface("schema", schema).
		Int("rows", tbl.Len()).
		Msg("Resolved column aliases")

	for _, f := range []Field{FieldRAS, FieldProBowls, FieldPosition} {
		if _, ok := schema[f]; !ok {
			log.Warn().Str("field", string(f)).Msg("No column found for field")
		}
	}

	records := make([]models.PlayerRecord, 0, tbl.Len())
	for _, row := range tbl.Rows {
		records = append(records, buildRecord(row, schema))
	}
	return records, schema, nil
}

func buildRecord(row models.Row, schema Schema) models.PlayerRecord {
	rec := models.PlayerRecord{
		Player:   models.UnknownValue,
		Position: models.UnknownValue,
		Draft:    models.UnknownValue,
	}

	if col, ok := schema[FieldPlayer]; ok {
		cell := row[col]
		rec.Player = strings.TrimSpace(cell.Text)
		if cell.IsLinked() {
			u := cell.URL
			rec.ProfileURL = &u
		}
	}
	if rec.ProfileURL == nil {
		if col, ok := schema[FieldProfileURL]; ok {
			rec.ProfileURL = urlFromCell(row[col])
		}
	}
	if col, ok := schema[FieldPosition]; ok {
		rec.Position = strings.TrimSpace(row.Text(col))
	}
	if col, ok := schema[FieldRAS]; ok {
		rec.RAS = ParseNumber(row.Text(col))
	}
	if col, ok := schema[FieldProBowls]; ok {
		rec.ProBowls = ParseNumber(row.Text(col))
	}
	if col, ok := schema[FieldCollege]; ok {
		if v := strings.TrimSpace(row.Text(col)); v != "" {
			rec.College = &v
		}
	}
	if col, ok := schema[FieldDraft]; ok {
		rec.Draft = strings.TrimSpace(row.Text(col))
	}

	rec.Derive()
	return rec
}

func urlFromCell(c models.Cell) *string {
	if c.IsLinked() {
		u := c.URL
		return &u
	}
	if v := strings.TrimSpace(c.Text); strings.HasPrefix(v, "http") {
		return &v
	}
	return nil
}
