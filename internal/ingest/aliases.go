package ingest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Field is a canonical column of the player table
type Field string

const (
	FieldPlayer     Field = "player"
	FieldPosition   Field = "position"
	FieldRAS        Field = "ras"
	FieldProBowls   Field = "pro_bowls"
	FieldCollege    Field = "college"
	FieldDraft      Field = "draft"
	FieldProfileURL Field = "profile_url"
	FieldLinks      Field = "links"
)

// Alias profile names, one per job
const (
	ProfileNormalize    = "normalize"
	ProfileAnalyze      = "analyze"
	ProfileMeasurements = "measurements"
	ProfileCorrelation  = "correlation"
)

// ErrUnrecognizedSchema is returned when a table matches none of the
// identifying aliases
var ErrUnrecognizedSchema = errors.New("table matches no known column aliases")

// identifying fields; a table must resolve at least one of them
var identifying = []Field{FieldPlayer, FieldRAS, FieldProBowls}

//go:embed aliases.yaml
var defaultAliases []byte

// AliasTable maps each canonical field to its ordered alias list
type AliasTable map[Field][]string

// Aliases holds the alias table of every job profile
type Aliases struct {
	Profiles map[string]AliasTable `yaml:"profiles"`
}

// Schema is an alias table resolved against one table's columns.
// A field is absent when none of its aliases is present.
type Schema map[Field]string

// Column returns the resolved column for a field
func (s Schema) Column(f Field) (string, bool) {
	c, ok := s[f]
	return c, ok
}

// DefaultAliases returns the embedded alias profiles
func DefaultAliases() (*Aliases, error) {
	return parseAliases(defaultAliases)
}

// LoadAliases returns the embedded profiles, with profiles from path
// replacing those of the same name when path is set.
func LoadAliases(path string) (*Aliases, error) {
	aliases, err := DefaultAliases()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases file: %w", err)
	}
	override, err := parseAliases(data)
	if err != nil {
		return nil, err
	}
	for name, table := range override.Profiles {
		aliases.Profiles[name] = table
	}
	return aliases, nil
}

func parseAliases(data []byte) (*Aliases, error) {
	var a Aliases
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse aliases: %w", err)
	}
	if a.Profiles == nil {
		a.Profiles = make(map[string]AliasTable)
	}
	return &a, nil
}

// Profile returns the alias table of a job
func (a *Aliases) Profile(name string) (AliasTable, error) {
	table, ok := a.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown alias profile %q", name)
	}
	return table, nil
}

// Resolve picks, for every field, the first alias present in columns.
// Tables resolving none of the identifying fields are rejected.
func (t AliasTable) Resolve(columns []string) (Schema, error) {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	schema := make(Schema)
	for field, aliases := range t {
		for _, alias := range aliases {
			if present[alias] {
				schema[field] = alias
				break
			}
		}
	}

	for _, f := range identifying {
		if _, ok := schema[f]; ok {
			return schema, nil
		}
	}
	return nil, fmt.Errorf("%w: columns %v", ErrUnrecognizedSchema, columns)
}
