package models

import (
	"encoding/json"
	"sort"
)

// MeasurementProfile is the detailed athletic profile scraped for one player
type MeasurementProfile struct {
	PlayerName   string
	RASScore     string
	ProfileURL   string
	PlayerID     string
	Position     string
	ProBowls     string
	Measurements map[string]string
}

// Flatten writes identity fields first, then measurements sorted by label
func (m *MeasurementProfile) Flatten() Object {
	obj := Object{
		{Key: "player_name", Value: m.PlayerName},
		{Key: "ras_score", Value: m.RASScore},
		{Key: "profile_url", Value: m.ProfileURL},
		{Key: "player_id", Value: nullable(m.PlayerID)},
	}

	labels := make([]string, 0, len(m.Measurements))
	for k := range m.Measurements {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for _, k := range labels {
		obj = append(obj, Field{Key: k, Value: m.Measurements[k]})
	}

	return append(obj,
		Field{Key: "position", Value: m.Position},
		Field{Key: "pro_bowls", Value: m.ProBowls},
	)
}

// MarshalJSON writes the flattened profile
func (m *MeasurementProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
