package analysis

import (
	"strings"

	"rasviz/backend/internal/models"
)

// MeasurementTerms are the column name fragments that mark a measurement
var MeasurementTerms = []string{
	"height", "weight", "bench", "forty", "40_", "40-yard", "sprint",
	"dash", "vertical", "jump", "broad", "shuttle", "cone", "drill",
}

// sampleRows is the number of rows echoed by a data check
const sampleRows = 3

// DataCheck summarizes a measurements table for inspection
type DataCheck struct {
	Source             string
	Rows               int
	Columns            []string
	Sample             []models.Row
	MeasurementColumns []string
}

// HasMeasurements reports whether any measurement column was found
func (c *DataCheck) HasMeasurements() bool {
	return len(c.MeasurementColumns) > 0
}

// CheckTable reports the shape of tbl and the columns that look like
// athletic measurements
func CheckTable(source string, tbl *models.Table) *DataCheck {
	check := &DataCheck{
		Source:  source,
		Rows:    tbl.Len(),
		Columns: tbl.Columns,
	}
	check.Sample = tbl.Rows[:min(sampleRows, tbl.Len())]

	for _, col := range tbl.Columns {
		lower := strings.ToLower(col)
		for _, term := range MeasurementTerms {
			if strings.Contains(lower, term) {
				check.MeasurementColumns = append(check.MeasurementColumns, col)
				break
			}
		}
	}
	return check
}
