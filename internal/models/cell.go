package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CellKind discriminates the Cell variant
type CellKind int

const (
	// PlainText is a cell with display text only
	PlainText CellKind = iota
	// LinkedText is a cell whose text carried a hyperlink
	LinkedText
)

// Cell is one table value scraped from a page: either plain text or
// text plus the URL it linked to.
type Cell struct {
	Kind CellKind
	Text string
	URL  string
}

// Plain builds a PlainText cell
func Plain(text string) Cell {
	return Cell{Kind: PlainText, Text: text}
}

// Linked builds a LinkedText cell
func Linked(text, url string) Cell {
	return Cell{Kind: LinkedText, Text: text, URL: url}
}

// IsLinked reports whether the cell carries a URL
func (c Cell) IsLinked() bool {
	return c.Kind == LinkedText
}

var linkedCellPattern = regexp.MustCompile(
	`^\{\s*['"]text['"]\s*:\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")\s*,\s*['"]link['"]\s*:\s*(?:'((?:[^'\\]|\\.)*)'|"((?:[^"\\]|\\.)*)")\s*\}$`,
)

// String renders the cell for CSV output. Linked cells use the
// {'text': ..., 'link': ...} form older raw files were written with.
func (c Cell) String() string {
	if c.Kind != LinkedText {
		return c.Text
	}
	return fmt.Sprintf("{'text': %s, 'link': %s}", reprQuote(c.Text), reprQuote(c.URL))
}

var (
	singleQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	doubleQuoter = strings.NewReplacer(`\`, `\\`)
	unquoter     = strings.NewReplacer(`\\`, `\`, `\'`, `'`, `\"`, `"`)
)

// reprQuote prefers single quotes and switches to double quotes only when
// that avoids escaping.
func reprQuote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + doubleQuoter.Replace(s) + `"`
	}
	return "'" + singleQuoter.Replace(s) + "'"
}

// ParseCell decodes a CSV field. Dict-like linked cells become LinkedText,
// everything else is PlainText.
func ParseCell(raw string) Cell {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return Plain(raw)
	}
	m := linkedCellPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Plain(raw)
	}
	return Linked(unquoter.Replace(m[1]+m[2]), unquoter.Replace(m[3]+m[4]))
}

// MarshalJSON encodes plain cells as strings and linked cells as
// {"text": ..., "link": ...}.
func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Kind == LinkedText {
		return json.Marshal(struct {
			Text string `json:"text"`
			Link string `json:"link"`
		}{c.Text, c.URL})
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts strings, numbers, booleans, null and
// {"text","link"} objects.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode cell: %w", err)
	}

	switch val := v.(type) {
	case nil:
		*c = Plain("")
	case string:
		*c = ParseCell(val)
	case float64:
		*c = Plain(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		*c = Plain(strconv.FormatBool(val))
	case map[string]interface{}:
		text, _ := val["text"].(string)
		link, _ := val["link"].(string)
		if link == "" {
			*c = Plain(text)
		} else {
			*c = Linked(text, link)
		}
	default:
		*c = Plain(string(data))
	}
	return nil
}
