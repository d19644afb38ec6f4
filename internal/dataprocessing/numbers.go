package dataprocessing

import (
	"fmt"
	"strconv"
	"strings"

	"lacphcli/pkg/contracts/domain"
)

// placeholder marks a figure the bulletin withheld.
const placeholder = "--"

var numbersAsWords = map[string]int64{
	"no":    0,
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
	"six":   6,
	"seven": 7,
	"eight": 8,
	"nine":  9,
}

// parseCount converts a bulletin figure into a count. Thousands separators
// are dropped, small numbers written as words are mapped and the "--"
// placeholder is unknown.
func parseCount(raw string) (domain.Count, error) {
	s := strings.TrimSpace(raw)
	if s == placeholder {
		return domain.Unknown(), nil
	}
	if v, ok := numbersAsWords[strings.ToLower(s)]; ok {
		return domain.Known(v), nil
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return domain.Unknown(), fmt.Errorf("parse count %q: %w", raw, err)
	}
	if v < 0 {
		return domain.Unknown(), fmt.Errorf("parse count %q: negative", raw)
	}
	return domain.Known(v), nil
}

// parseRate converts a published rate into a measure.
func parseRate(raw string) (domain.Measure, error) {
	s := strings.TrimSpace(raw)
	if s == placeholder {
		return domain.UnknownMeasure(), nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return domain.UnknownMeasure(), fmt.Errorf("parse rate %q: %w", raw, err)
	}
	return domain.KnownMeasure(v), nil
}

// normalizeLabel collapses runs of whitespace inside a label.
func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
