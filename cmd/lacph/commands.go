package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lacphcli/internal/app"
	"lacphcli/internal/config"
	"lacphcli/internal/exporter"
	"lacphcli/internal/validation"
	"lacphcli/pkg/contracts"
	"lacphcli/pkg/contracts/domain"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	dataDir    string
	logLevel   string
	source     string

	// logger replaces the configured process logger in tests.
	logger *slog.Logger
}

// load builds the configuration and applies the command line overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configFile)
	if err != nil {
		return nil, err
	}
	if g.dataDir != "" {
		cfg.Paths.DataDir = g.dataDir
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.source != "" {
		cfg.Fetch.Source = g.source
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globalFlags) open() (*app.Application, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, app.Options{Logger: g.logger})
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&globalFlags{})
}

func newRootCmdWith(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lacph",
		Short: "Parse LA County public-health bulletins into time series",
		Long: `lacph fetches the daily COVID-19 bulletins of the Los Angeles County
Department of Public Health, parses them into structured reports and derives
aggregate, age, gender, race, area and region time series.`,
		Version:       contracts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", "", "Data directory (overrides paths.data_dir)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&g.source, "source", "", "Bulletin source: http or dir")

	cmd.AddCommand(newRunCmd(g), newParseCmd(g), newServeCmd(g), newVersionCmd())
	return cmd
}

// RunSummary is printed by the run command.
type RunSummary struct {
	RunID    string        `json:"run_id"`
	Status   string        `json:"status"`
	Dates    int           `json:"dates"`
	Reports  int           `json:"reports"`
	Skipped  []SkippedDate `json:"skipped,omitempty"`
	Files    []string      `json:"files,omitempty"`
	Snapshot string        `json:"snapshot,omitempty"`
	Duration string        `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// SkippedDate names a date left out of a run.
type SkippedDate struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		from, to, out string
		csv, xlsx     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, parse and build the series for a date range",
		Long: `Fetch the bulletins of every date from --from through --to, parse them
through the report store and export the derived series. Without bounds every
date the source can serve is processed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromDate, err := optionalDate("from", from)
			if err != nil {
				return err
			}
			toDate, err := optionalDate("to", to)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.open()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if out != "" {
				if err := validation.NewFileValidator(a.Logger).ValidateOutputDirectory(out); err != nil {
					return err
				}
			}

			dates, err := a.Dates(ctx, fromDate, toDate)
			if err != nil {
				return err
			}

			result, runErr := a.RunPipeline(ctx, dates, exporter.Options{Dir: out, CSV: csv, Workbook: xlsx})
			if result != nil && result.Run != nil {
				if err := writeJSON(cmd.OutOrStdout(), summarize(result, runErr)); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First bulletin date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last bulletin date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&out, "out", "", "Export directory (defaults to <data-dir>/exports)")
	cmd.Flags().BoolVar(&csv, "csv", true, "Write one CSV file per category")
	cmd.Flags().BoolVar(&xlsx, "xlsx", true, "Write the XLSX workbook")
	return cmd
}

func summarize(result *app.RunResult, runErr error) RunSummary {
	run := result.Run
	s := RunSummary{
		RunID:    run.ID,
		Status:   string(run.GetStatus()),
		Dates:    len(run.Dates),
		Reports:  len(run.Reports()),
		Files:    result.Files,
		Snapshot: result.Snapshot,
		Duration: run.Duration().String(),
	}
	for _, d := range run.SkippedDates() {
		s.Skipped = append(s.Skipped, SkippedDate{Date: d.Date.String(), Reason: d.Reason})
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	return s
}

func newParseCmd(g *globalFlags) *cobra.Command {
	var date, file string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse one bulletin file and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := domain.ParseDate(date)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}

			a, err := g.open()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			report, err := a.ParseFile(cmd.Context(), d, file)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Bulletin date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&file, "file", "", "Bulletin text or HTML file")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored reports and series over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := g.open()
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			return a.Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if full {
				return writeJSON(cmd.OutOrStdout(), contracts.GetVersionInfo())
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), contracts.GetVersionString())
			return err
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Print build details as JSON")
	return cmd
}

func optionalDate(name, value string) (domain.Date, error) {
	if value == "" {
		return domain.Date{}, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return domain.Date{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return d, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
