package errors

import (
	stderrors "errors"
	"fmt"

	"lacphcli/pkg/contracts/domain"
)

// As and Is re-export the standard library helpers so callers importing
// this package under its own name keep a single errors import.
var (
	As = stderrors.As
	Is = stderrors.Is
)

// ParseFailure reports a required bulletin field whose pattern did not match.
type ParseFailure struct {
	Date    domain.Date
	Field   string
	Pattern string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse bulletin %s: field %s: pattern %q not matched", e.Date, e.Field, e.Pattern)
}

// NewParseFailure creates a parse failure for field on date.
func NewParseFailure(date domain.Date, field, pattern string) *ParseFailure {
	return &ParseFailure{Date: date, Field: field, Pattern: pattern}
}

// DateMismatch reports a bulletin whose embedded release date is not the
// date it was requested for.
type DateMismatch struct {
	Expected domain.Date
	Parsed   domain.Date
}

func (e *DateMismatch) Error() string {
	return fmt.Sprintf("parse bulletin %s: field date: release date is %s", e.Expected, e.Parsed)
}

// DuplicateDate reports two reports for the same date reaching a builder.
type DuplicateDate struct {
	Date     domain.Date
	Category domain.Category
}

func (e *DuplicateDate) Error() string {
	return fmt.Sprintf("build %s series: duplicate report for %s", e.Category, e.Date)
}

// OrderError reports reports handed to a builder out of date order.
type OrderError struct {
	Date     domain.Date
	Previous domain.Date
	Category domain.Category
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("build %s series: report %s follows %s", e.Category, e.Date, e.Previous)
}

// MissingPopulation reports a group without a denominator. It never aborts a
// build; the affected rate is left unknown.
type MissingPopulation struct {
	Date     domain.Date
	Category domain.Category
	Group    string
}

func (e *MissingPopulation) Error() string {
	return fmt.Sprintf("build %s series: %s.%s: no population for group", e.Category, e.Date, e.Group)
}
