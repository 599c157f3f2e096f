// Package markers handles the marker-distance CSV consumed by the
// photogrammetry processing script. Each record pairs two coded targets
// placed in the scene with the measured distance between them, which the
// processing script turns into a scale bar.
package markers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ScaleBar is one row of the marker file: two target IDs and the measured
// distance between them in meters.
type ScaleBar struct {
	From     int
	To       int
	Distance float64
}

// TargetLabel returns the label the photogrammetry tool assigns to a
// detected coded target.
func TargetLabel(id int) string {
	return fmt.Sprintf("target %d", id)
}

// Labels returns the target labels for both ends of the scale bar.
func (s ScaleBar) Labels() (string, string) {
	return TargetLabel(s.From), TargetLabel(s.To)
}

// Validate checks a single scale bar record.
func (s ScaleBar) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.From, validation.Required, validation.Min(1)),
		validation.Field(&s.To, validation.Required, validation.Min(1)),
		validation.Field(&s.Distance, validation.Required, validation.Min(0.0).Exclusive()),
	)
	if err != nil {
		return err
	}
	if s.From == s.To {
		return fmt.Errorf("marker pair %d,%d references the same target", s.From, s.To)
	}
	return nil
}

// pairKey normalizes a marker pair so that (1,2) and (2,1) collide.
func (s ScaleBar) pairKey() string {
	a, b := s.From, s.To
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d-%d", a, b)
}

// Parse reads marker records from r. Expected format per line:
//
//	from_id,to_id,distance
//
// Example: 1,2,0.33
// Blank lines and lines starting with # are skipped.
func Parse(r io.Reader) ([]ScaleBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.Comment = '#'
	reader.TrimLeadingSpace = true

	var bars []ScaleBar
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse marker file: %w", err)
		}

		from, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid from-target %q: %w", record[0], err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid to-target %q: %w", record[1], err)
		}
		distance, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid distance %q: %w", record[2], err)
		}

		bars = append(bars, ScaleBar{From: from, To: to, Distance: distance})
	}

	return bars, nil
}

// Load reads and parses the marker file at path.
func Load(path string) ([]ScaleBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker file: %w", err)
	}
	defer f.Close()

	bars, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ValidateSet validates every record and rejects duplicate pairs.
// All problems are reported, not just the first.
func ValidateSet(bars []ScaleBar) error {
	if len(bars) == 0 {
		return fmt.Errorf("marker file contains no scale bar records")
	}

	seen := make(map[string]int)
	var problems []string

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		if prev, ok := seen[bar.pairKey()]; ok {
			problems = append(problems,
				fmt.Sprintf("record %d: duplicate of record %d (targets %d and %d)",
					i+1, prev, bar.From, bar.To))
			continue
		}
		seen[bar.pairKey()] = i + 1
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid marker file:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

// TargetIDs returns the sorted set of target IDs referenced by the records.
func TargetIDs(bars []ScaleBar) []int {
	set := make(map[int]bool)
	for _, bar := range bars {
		set[bar.From] = true
		set[bar.To] = true
	}
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
