package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`(\d+\.\d+|\d+)`)

// missing markers seen in scraped tables
var missingMarkers = map[string]bool{
	"":     true,
	"-":    true,
	"n/a":  true,
	"na":   true,
	"nan":  true,
	"none": true,
	"null": true,
}

// ParseNumber coerces text to a number. Anything that does not parse is
// missing (nil), never zero.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if missingMarkers[strings.ToLower(s)] {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ExtractNumber returns the first decimal number embedded in text such as
// "4.42s" or "6' 2\"". Nil when the text holds no digits.
func ExtractNumber(s string) *float64 {
	m := numberPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &v
}
