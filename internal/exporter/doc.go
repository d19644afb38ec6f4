// Package exporter writes derived series to disk.
//
// This package contains three main components:
//
// Table: the column layout of one category, with typed cell values and
// stable column names shared by every output format.
//
// CSVWriter: Core CSV writing functionality with support for headers and
// UTF-8 BOM for Excel compatibility.
//
// SeriesExporter: writes every category of a series set as its own CSV file
// and as one sheet of an XLSX workbook.
//
// Example usage:
//
//	exp := exporter.NewSeriesExporter(paths, logger)
//	files, err := exp.Export(ctx, series, exporter.Options{CSV: true, Workbook: true})
package exporter
