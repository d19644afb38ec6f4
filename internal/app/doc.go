// Package app wires the pipeline components together and manages their
// lifecycle for the command line entry points.
//
// # Initialization Flow
//
//	1. Resolve the data layout and create its directories
//	2. Initialize logging and observability
//	3. Load the correction rules, population tables and region map
//	4. Open the report store and build the bulletin fetcher
//	5. Create the operations manager, services and exporter
//
// # Usage
//
//	application, err := app.New(cfg, app.Options{})
//	if err != nil {
//	    return err
//	}
//	defer application.Close(ctx)
//
//	dates, err := application.Dates(ctx, from, to)
//	result, err := application.RunPipeline(ctx, dates, exporter.Options{CSV: true, Workbook: true})
//
// # Error Handling
//
// All initialization errors are returned to the caller. The package never
// calls os.Exit, leaving the exit code to the command.
package app
