package models

import (
	"encoding/json"
	"math"
	"strings"
)

// Combine measurement columns coerced to numbers before scoring
var CombineNumericColumns = []string{"40yd", "Vertical", "Broad Jump", "3Cone", "Shuttle", "Bench"}

// Score component columns in output order
var CombineScoreColumns = []string{"40yd_score", "Vertical_score", "Broad_score", "3Cone_score"}

// Accolades are read from a player's Pro Football Reference page
type Accolades struct {
	ProBowlCount int      `json:"Pro_Bowl_Count" db:"pro_bowl_count"`
	AllProCount  int      `json:"All_Pro_Count" db:"all_pro_count"`
	ProBowlYears []string `json:"-"`
	AllProYears  []string `json:"-"`
	CareerAV     *float64 `json:"Career_AV" db:"career_av"`
	DraftRound   *string  `json:"Draft_Round" db:"draft_round"`
	DraftPick    *float64 `json:"Draft_Pick" db:"draft_pick"`
}

// CombineRecord is one row of a combine results table
type CombineRecord struct {
	Year         int
	Columns      []string
	Values       map[string]string
	PlayerURL    *string
	HeightInches *float64

	// Set once accolades were requested for the run
	Accolades *Accolades

	Numeric       map[string]*float64
	Scores        map[string]*float64
	AthleticScore *float64
	scored        bool
}

// NewCombineRecord creates an empty record for a combine year
func NewCombineRecord(year int) *CombineRecord {
	return &CombineRecord{
		Year:    year,
		Values:  make(map[string]string),
		Numeric: make(map[string]*float64),
		Scores:  make(map[string]*float64),
	}
}

// Set stores a column value, keeping first-seen column order
func (r *CombineRecord) Set(column, value string) {
	if _, ok := r.Values[column]; !ok {
		r.Columns = append(r.Columns, column)
	}
	r.Values[column] = value
}

// Player returns the player column
func (r *CombineRecord) Player() string {
	return strings.TrimSpace(r.Values["Player"])
}

// SetAthleticScore records the components and their rounded mean
func (r *CombineRecord) SetAthleticScore(components map[string]*float64) {
	r.scored = true
	r.Scores = components

	sum, n := 0.0, 0
	for _, name := range CombineScoreColumns {
		if v, ok := components[name]; ok && v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		r.AthleticScore = nil
		return
	}
	score := math.Round(sum/float64(n)*100) / 100
	r.AthleticScore = &score
}

// Flatten returns the record as one flat object
func (r *CombineRecord) Flatten() Object {
	obj := Object{{Key: "Player_URL", Value: r.PlayerURL}}
	for _, col := range r.Columns {
		if v, ok := r.Numeric[col]; ok {
			obj = append(obj, Field{Key: col, Value: v})
			continue
		}
		obj = append(obj, Field{Key: col, Value: r.Values[col]})
	}
	obj = append(obj,
		Field{Key: "Height_inches", Value: r.HeightInches},
		Field{Key: "Combine_Year", Value: r.Year},
	)
	if a := r.Accolades; a != nil {
		obj = append(obj,
			Field{Key: "Pro_Bowl_Count", Value: a.ProBowlCount},
			Field{Key: "All_Pro_Count", Value: a.AllProCount},
			Field{Key: "Career_AV", Value: a.CareerAV},
			Field{Key: "Draft_Round", Value: a.DraftRound},
			Field{Key: "Draft_Pick", Value: a.DraftPick},
		)
	}
	if r.scored {
		for _, name := range CombineScoreColumns {
			if v, ok := r.Scores[name]; ok {
				obj = append(obj, Field{Key: name, Value: v})
			}
		}
		obj = append(obj, Field{Key: "Athletic_Score", Value: r.AthleticScore})
	}
	return obj
}

// MarshalJSON writes the flattened record
func (r *CombineRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Flatten())
}
