package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lacphcli/internal/config"
	"lacphcli/pkg/contracts/domain"
)

// WorkbookName is the file name of the XLSX export.
const WorkbookName = "lacph_series.xlsx"

// CSVName returns the file name of a category's CSV export.
func CSVName(c domain.Category) string {
	return fmt.Sprintf("lacph_%s.csv", c)
}

// Options selects the output formats.
type Options struct {
	// Dir overrides the export directory of the configured paths.
	Dir      string
	CSV      bool
	Workbook bool
}

// SeriesExporter writes series sets as CSV files and an XLSX workbook.
type SeriesExporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewSeriesExporter creates an exporter writing under paths.ExportDir.
func NewSeriesExporter(paths *config.Paths, logger *slog.Logger) *SeriesExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesExporter{
		paths:  paths,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Export writes set in the selected formats and returns the files written.
func (e *SeriesExporter) Export(ctx context.Context, set *domain.SeriesSet, opts Options) ([]string, error) {
	if set == nil {
		return nil, fmt.Errorf("no series to export")
	}
	dir := opts.Dir
	if dir == "" && e.paths != nil {
		dir = e.paths.ExportDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	tables := Tables(set)
	var files []string

	if opts.CSV {
		w := NewCSVWriter(nil, e.logger)
		for _, t := range tables {
			if err := ctx.Err(); err != nil {
				return files, err
			}
			path, err := w.WriteTable(filepath.Join(dir, CSVName(t.Category)), t)
			if err != nil {
				return files, fmt.Errorf("failed to export %s series: %w", t.Category, err)
			}
			files = append(files, path)
		}
	}

	if opts.Workbook {
		path := filepath.Join(dir, WorkbookName)
		if err := WriteWorkbook(path, tables); err != nil {
			return files, err
		}
		files = append(files, path)
	}

	e.logger.InfoContext(ctx, "series exported",
		slog.String("dir", dir),
		slog.String("rule_version", set.RuleVersion),
		slog.Int("files", len(files)))
	return files, nil
}
