package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// countState distinguishes the three states a reported figure can be in.
type countState uint8

const (
	countUnknown countState = iota
	countKnown
	countNotApplicable
)

// notApplicableJSON is the wire form of a NotApplicable count.
const notApplicableJSON = `"n/a"`

// Count is a reported integer figure. The zero value is Unknown, so a field
// that was never parsed can not be mistaken for a reported zero.
type Count struct {
	value int64
	state countState
}

// Known returns a count holding a reported value.
func Known(v int64) Count {
	return Count{value: v, state: countKnown}
}

// Unknown returns a count for a figure the source did not report.
func Unknown() Count {
	return Count{}
}

// NotApplicable returns a count marked "n/a" on the wire. The parser never
// produces it; it survives decoding so stored and exported data can carry
// the mark, and it behaves like Unknown in arithmetic.
func NotApplicable() Count {
	return Count{state: countNotApplicable}
}

// Value returns the count and whether it is known.
func (c Count) Value() (int64, bool) {
	return c.value, c.state == countKnown
}

// IsKnown reports whether the count holds a value.
func (c Count) IsKnown() bool { return c.state == countKnown }

// IsNotApplicable reports whether the count was marked not applicable.
func (c Count) IsNotApplicable() bool { return c.state == countNotApplicable }

// Add sums two counts. The result is known only when both operands are.
func (c Count) Add(o Count) Count {
	if !c.IsKnown() || !o.IsKnown() {
		return Unknown()
	}
	return Known(c.value + o.value)
}

// Sub subtracts o from c. The result is known only when both operands are.
func (c Count) Sub(o Count) Count {
	if !c.IsKnown() || !o.IsKnown() {
		return Unknown()
	}
	return Known(c.value - o.value)
}

func (c Count) String() string {
	switch c.state {
	case countKnown:
		return strconv.FormatInt(c.value, 10)
	case countNotApplicable:
		return "n/a"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes a known count as a number, an unknown count as null and
// a not applicable count as "n/a".
func (c Count) MarshalJSON() ([]byte, error) {
	switch c.state {
	case countKnown:
		return []byte(strconv.FormatInt(c.value, 10)), nil
	case countNotApplicable:
		return []byte(notApplicableJSON), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the forms produced by MarshalJSON.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null":
		*c = Unknown()
		return nil
	case notApplicableJSON:
		*c = NotApplicable()
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode count %s: %w", data, err)
	}
	*c = Known(v)
	return nil
}

// Measure is an optional real-valued figure such as a rate or an average.
type Measure struct {
	value float64
	known bool
}

// KnownMeasure returns a measure holding v. Non-finite values are unknown.
func KnownMeasure(v float64) Measure {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Measure{}
	}
	return Measure{value: v, known: true}
}

// UnknownMeasure returns a measure without a value.
func UnknownMeasure() Measure {
	return Measure{}
}

// Value returns the measure and whether it is known.
func (m Measure) Value() (float64, bool) {
	return m.value, m.known
}

// IsKnown reports whether the measure holds a value.
func (m Measure) IsKnown() bool { return m.known }

func (m Measure) String() string {
	if !m.known {
		return "unknown"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

// MarshalJSON encodes a known measure as a number and an unknown one as null.
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(m.value, 'g', -1, 64)), nil
}

// UnmarshalJSON decodes the forms produced by MarshalJSON.
func (m *Measure) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*m = UnknownMeasure()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode measure %s: %w", data, err)
	}
	*m = KnownMeasure(v)
	return nil
}

// PerCapita scales a count to a rate per RateScale people. An unknown count
// or a non-positive population yields an unknown measure.
func PerCapita(c Count, population int64) Measure {
	v, ok := c.Value()
	if !ok || population <= 0 {
		return UnknownMeasure()
	}
	return KnownMeasure(float64(v) / float64(population) * RateScale)
}

// RateScale is the population unit rates are expressed in.
const RateScale = 100000

// Flag is the tri-state correctional facility outbreak marker of an area.
type Flag uint8

const (
	FlagUnknown Flag = iota
	FlagFalse
	FlagTrue
)

// FlagOf converts a boolean to a recorded flag.
func FlagOf(b bool) Flag {
	if b {
		return FlagTrue
	}
	return FlagFalse
}

// IsTrue reports whether the flag was recorded as set.
func (f Flag) IsTrue() bool { return f == FlagTrue }

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the flag as true, false or null.
func (f Flag) MarshalJSON() ([]byte, error) {
	switch f {
	case FlagTrue:
		return []byte("true"), nil
	case FlagFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes the forms produced by MarshalJSON.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*f = FlagTrue
	case "false":
		*f = FlagFalse
	case "null":
		*f = FlagUnknown
	default:
		return fmt.Errorf("decode flag %s: unexpected value", data)
	}
	return nil
}
