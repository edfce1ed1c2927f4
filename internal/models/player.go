package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// UnknownValue fills Position and Draft when no alias resolves
const UnknownValue = "Unknown"

// PlayerRecord is one canonical row of the pro-bowler table.
// Nil pointers are missing values; they are never coerced to zero.
type PlayerRecord struct {
	ID               int       `db:"id"`
	Player           string    `db:"player"`
	Position         string    `db:"position"`
	RAS              *float64  `db:"ras"`
	ProBowls         *float64  `db:"pro_bowls"`
	MultipleProBowls *bool     `db:"multiple_pro_bowls"`
	College          *string   `db:"college"`
	Draft            string    `db:"draft"`
	DraftRound       *float64  `db:"draft_round"`
	ProfileURL       *string   `db:"profile_url"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

var draftRoundPattern = regexp.MustCompile(`Round (\d+)`)

// ParseDraftRound extracts the round number from draft text such as
// "2020 Round 1". Nil when the text carries no round.
func ParseDraftRound(draft string) *float64 {
	m := draftRoundPattern.FindStringSubmatch(draft)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}

// MultipleFlag is true exactly when count > 1, nil when count is missing
func MultipleFlag(count *float64) *bool {
	if count == nil {
		return nil
	}
	v := *count > 1
	return &v
}

// Derive recomputes the fields that follow from the stored ones
func (p *PlayerRecord) Derive() {
	p.MultipleProBowls = MultipleFlag(p.ProBowls)
	p.DraftRound = ParseDraftRound(p.Draft)
}

// IsMultipleProBowler treats a missing count as not multiple
func (p *PlayerRecord) IsMultipleProBowler() bool {
	return p.MultipleProBowls != nil && *p.MultipleProBowls
}

// Flatten returns the exported column set in a stable order.
// College is written only when known.
func (p PlayerRecord) Flatten() Object {
	obj := Object{
		{Key: "Player", Value: p.Player},
		{Key: "Position", Value: p.Position},
		{Key: "RAS_numeric", Value: p.RAS},
		{Key: "Pro_Bowls_numeric", Value: p.ProBowls},
	}
	if p.College != nil {
		obj = append(obj, Field{Key: "College", Value: *p.College})
	}
	return append(obj,
		Field{Key: "Draft", Value: p.Draft},
		Field{Key: "Profile_URL", Value: p.ProfileURL},
	)
}

// MarshalJSON writes the flattened record
func (p PlayerRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Flatten())
}

// UnmarshalJSON reads an exported record and re-derives computed fields
func (p *PlayerRecord) UnmarshalJSON(data []byte) error {
	var in struct {
		Player     string   `json:"Player"`
		Position   string   `json:"Position"`
		RAS        *float64 `json:"RAS_numeric"`
		ProBowls   *float64 `json:"Pro_Bowls_numeric"`
		College    *string  `json:"College"`
		Draft      string   `json:"Draft"`
		ProfileURL *string  `json:"Profile_URL"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to decode player record: %w", err)
	}

	*p = PlayerRecord{
		Player:     in.Player,
		Position:   in.Position,
		RAS:        in.RAS,
		ProBowls:   in.ProBowls,
		College:    in.College,
		Draft:      in.Draft,
		ProfileURL: in.ProfileURL,
	}
	p.Derive()
	return nil
}
