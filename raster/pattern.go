package raster

import (
	"regexp"
	"sort"
)

// Tile naming conventions vary by export pipeline, so detection runs an
// ordered strategy list rather than a hardcoded chain: offset pairs first,
// then plain numeric sequences, then zero-padded indices. For each group
// prefix the first strategy that matches at least two files in the
// directory wins; files it claims are withheld from later strategies.

// PatternStrategy recognizes one tile naming convention. Match returns
// the group prefix a filename belongs to.
type PatternStrategy interface {
	Name() string
	Match(filename string) (group string, ok bool)
}

// offsetPairStrategy matches earth-engine style exports that suffix the
// row/column pixel offset of each tile: X-0000000000-0000001024.tif.
type offsetPairStrategy struct{}

var offsetPairPattern = regexp.MustCompile(`^(.+)-(\d{10})-(\d{10})\.[A-Za-z0-9.]+$`)

func (offsetPairStrategy) Name() string { return "offset-pair" }

func (offsetPairStrategy) Match(filename string) (string, bool) {
	m := offsetPairPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// numericSequenceStrategy matches delimiter-separated sequence suffixes:
// ndvi-1.asc, ndvi_2.asc.
type numericSequenceStrategy struct{}

var numericSequencePattern = regexp.MustCompile(`^(.+)[-_](\d+)\.[A-Za-z0-9.]+$`)

func (numericSequenceStrategy) Name() string { return "numeric-sequence" }

func (numericSequenceStrategy) Match(filename string) (string, bool) {
	m := numericSequencePattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// zeroPaddedStrategy matches bare zero-padded indices glued to the prefix:
// rainfall001.asc.
type zeroPaddedStrategy struct{}

var zeroPaddedPattern = regexp.MustCompile(`^(.+?)(0\d{2,})\.[A-Za-z0-9.]+$`)

func (zeroPaddedStrategy) Name() string { return "zero-padded" }

func (zeroPaddedStrategy) Match(filename string) (string, bool) {
	m := zeroPaddedPattern.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DefaultStrategies is the detection order. Appending a new convention
// never changes how existing directories group.
func DefaultStrategies() []PatternStrategy {
	return []PatternStrategy{
		offsetPairStrategy{},
		numericSequenceStrategy{},
		zeroPaddedStrategy{},
	}
}

// TileGroup is one detected set of tiles sharing a prefix and convention.
type TileGroup struct {
	Prefix   string
	Strategy string
	Files    []string // sorted, merge order
}

// DetectGroups assigns filenames to tile groups. Filenames are sorted
// first so grouping and merge order never depend on directory iteration
// order. Files matching no strategy, or whose group has fewer than two
// members, are left ungrouped.
func DetectGroups(filenames []string, strategies []PatternStrategy) []TileGroup {
	remaining := append([]string(nil), filenames...)
	sort.Strings(remaining)

	var groups []TileGroup
	for _, strategy := range strategies {
		byPrefix := map[string][]string{}
		for _, name := range remaining {
			if prefix, ok := strategy.Match(name); ok {
				byPrefix[prefix] = append(byPrefix[prefix], name)
			}
		}

		prefixes := make([]string, 0, len(byPrefix))
		for prefix, files := range byPrefix {
			if len(files) >= 2 {
				prefixes = append(prefixes, prefix)
			}
		}
		sort.Strings(prefixes)

		claimed := map[string]bool{}
		for _, prefix := range prefixes {
			groups = append(groups, TileGroup{
				Prefix:   prefix,
				Strategy: strategy.Name(),
				Files:    byPrefix[prefix],
			})
			for _, name := range byPrefix[prefix] {
				claimed[name] = true
			}
		}

		next := remaining[:0]
		for _, name := range remaining {
			if !claimed[name] {
				next = append(next, name)
			}
		}
		remaining = next
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Prefix < groups[j].Prefix })
	return groups
}
