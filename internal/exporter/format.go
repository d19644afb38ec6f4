package exporter

import (
	"fmt"

	"lacphcli/pkg/contracts/domain"
)

// countCell returns a known count as int64 and nil otherwise. Not applicable
// counts are written as "n/a".
func countCell(c domain.Count) any {
	if v, ok := c.Value(); ok {
		return v
	}
	if c.IsNotApplicable() {
		return "n/a"
	}
	return nil
}

// measureCell returns a known measure as float64 and nil otherwise.
func measureCell(m domain.Measure) any {
	if v, ok := m.Value(); ok {
		return v
	}
	return nil
}

// flagCell returns a recorded flag as bool and nil otherwise.
func flagCell(f domain.Flag) any {
	switch f {
	case domain.FlagTrue:
		return true
	case domain.FlagFalse:
		return false
	}
	return nil
}

// formatCell renders a cell value for CSV output. Missing values are empty.
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return formatInt(x)
	case float64:
		return formatFloat(x)
	case bool:
		return formatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
