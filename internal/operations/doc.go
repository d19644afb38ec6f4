// Package operations runs the bulletin pipeline as an ordered list of steps
// over a set of dates.
//
// A run moves through three steps:
//
//   - fetch: downloads the bulletin of every requested date with bounded
//     concurrency. Dates whose bulletin cannot be fetched are recorded as
//     skipped and the run continues without them.
//   - parse: turns each bulletin into a daily report, serving reports already
//     parsed under the current rule version from the store. The first parse
//     failure aborts the run.
//   - build: derives the aggregate, age, gender, race, area and region series
//     from the parsed reports.
//
// Each step is tracked by a StepState, traced with its own span and timed in
// the pipeline metrics.
//
// Example usage:
//
//	m := operations.NewManager(operations.Dependencies{
//		Fetcher: fetcher,
//		Parser:  parser,
//		Store:   st,
//		Builder: builder,
//		Regions: aggregator,
//	}, operations.NewConfig())
//
//	state, err := m.Run(ctx, dates)
//	if err != nil {
//		return err
//	}
//	series := state.Series()
package operations
