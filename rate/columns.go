// Package rate turns uploaded surveillance extracts into validated
// positivity results.
package rate

import (
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v2"

	"github.com/epimap/epimap-api/consts"
)

// SchemaUnresolvedError rejects a whole table whose required columns could
// not be matched against the synonym table. The message names the missing
// fields so the user can fix the extract.
type SchemaUnresolvedError struct {
	Missing []string
}

func (e *SchemaUnresolvedError) Error() string {
	return fmt.Sprintf("cannot resolve required columns: %s", strings.Join(e.Missing, ", "))
}

// SynonymTable is the versioned set of known header spellings. Each list
// is ordered; resolution walks it top to bottom and the first
// case-insensitive hit in the header wins.
type SynonymTable struct {
	Version    int      `yaml:"version"`
	Unit       []string `yaml:"unit"`
	Tested     []string `yaml:"tested"`
	Positive   []string `yaml:"positive"`
	Attendance []string `yaml:"attendance"`
	Period     []string `yaml:"period"`
	AgeGroup   []string `yaml:"age_group"`
	Method     []string `yaml:"method"`
}

// DefaultSynonyms returns the compiled-in table from consts.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		Version:    consts.ColumnSynonymVersion,
		Unit:       consts.UnitColumnSynonyms,
		Tested:     consts.TestedColumnSynonyms,
		Positive:   consts.PositiveColumnSynonyms,
		Attendance: consts.AttendanceColumnSynonyms,
		Period:     consts.PeriodColumnSynonyms,
		AgeGroup:   consts.AgeGroupColumnSynonyms,
		Method:     consts.MethodColumnSynonyms,
	}
}

// LoadSynonyms reads a synonym table from a yaml file, allowing field
// teams to version new header spellings without a rebuild.
func LoadSynonyms(path string) (SynonymTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SynonymTable{}, err
	}
	var table SynonymTable
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return SynonymTable{}, fmt.Errorf("parse synonym table %s: %w", path, err)
	}
	return table, nil
}

// ColumnMap holds resolved header indexes. Optional columns are -1 when
// absent.
type ColumnMap struct {
	Unit       int
	Tested     int
	Positive   int
	Attendance int
	Period     int
	AgeGroup   int
	Method     int
}

// Resolve maps a header row to column indexes. Unit, tested and positive
// are required; the rest are optional.
func (t SynonymTable) Resolve(header []string) (ColumnMap, error) {
	normalized := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := normalized[key]; !exists {
			normalized[key] = i
		}
	}

	find := func(synonyms []string) int {
		for _, synonym := range synonyms {
			if i, ok := normalized[synonym]; ok {
				return i
			}
		}
		return -1
	}

	m := ColumnMap{
		Unit:       find(t.Unit),
		Tested:     find(t.Tested),
		Positive:   find(t.Positive),
		Attendance: find(t.Attendance),
		Period:     find(t.Period),
		AgeGroup:   find(t.AgeGroup),
		Method:     find(t.Method),
	}

	var missing []string
	if m.Unit < 0 {
		missing = append(missing, "unit")
	}
	if m.Tested < 0 {
		missing = append(missing, "tested")
	}
	if m.Positive < 0 {
		missing = append(missing, "positive")
	}
	if len(missing) > 0 {
		return ColumnMap{}, &SchemaUnresolvedError{Missing: missing}
	}
	return m, nil
}
