// Package dataprocessing turns the plain text of a daily public health
// bulletin into a domain.DailyReport.
//
// # Architecture
//
// The package is organized into three components:
//
// 1. Eras: an ordered table mapping effective-from dates to the layout
// rules of the bulletin format in force on that date.
// 2. Parser: locates each statistic block, extracts its entries and applies
// the correction overlay.
// 3. Processor: carries known-corrupt area observations forward from the
// last valid value.
//
// # Usage
//
//	rules, _ := corrections.Default()
//	parser := dataprocessing.NewParser(rules, dataprocessing.DefaultEras(), logger)
//	report, err := parser.Parse(ctx, text, domain.MustParseDate("2020-04-13"))
//
// # Data Flow
//
//	raw text → substitutions → Parser → DailyReport → field overrides
//
// # Error Handling
//
// Missing required fields (release date, headline figures, department
// totals) produce an *errors.ParseFailure naming the field and the pattern
// that did not match. A release date other than the requested one produces
// an *errors.DateMismatch. Optional sections that are absent yield empty
// maps.
package dataprocessing
