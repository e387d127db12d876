package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/store"
	"github.com/roach88/storyviz/internal/timing"
)

// TimingOptions holds flags for the timing command.
type TimingOptions struct {
	*RootOptions
	Database string
	Export   string // "", "csv" or "json"
	Out      string
}

// TimingReport is the JSON payload of the timing command.
type TimingReport struct {
	RunID    string            `json:"run_id"`
	Mode     ir.Mode           `json:"mode"`
	Beats    int               `json:"beats"`
	Expected float64           `json:"expected_seconds"`
	Measured float64           `json:"measured_seconds"`
	Records  []ir.TimingRecord `json:"records"`
}

// NewTimingCommand creates the timing command.
func NewTimingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TimingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "timing <run-id>",
		Short: "Show or export per-beat timing for a run",
		Long: `Show the timing telemetry recorded for a persisted run.

Each executed beat has one record holding its expected and measured
duration. --export writes the raw records as CSV or JSON, to --out or
to stdout.

Examples:
  storyviz timing --db ./runs.db 0192f0c4-...
  storyviz timing --db ./runs.db --export csv --out timing.csv 0192f0c4-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTiming(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STORYVIZ_DB)")
	cmd.Flags().StringVar(&opts.Export, "export", "", "export format (csv|json)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write the export to this file instead of stdout")

	return cmd
}

func runTiming(opts *TimingOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	switch opts.Export {
	case "", "csv", "json":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid export format %q: must be csv or json", opts.Export))
	}

	st, err := openExistingStore(opts.Database, opts.Config.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: no run %q", ErrCodeNotFound, runID), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	records, err := st.ReadTimingRecords(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read timing records", err)
	}

	log := timing.NewLog()
	for _, r := range records {
		log.Append(r)
	}

	if opts.Export != "" {
		return exportTiming(opts, log, cmd.OutOrStdout(), formatter)
	}

	report := TimingReport{RunID: run.ID, Mode: run.Mode, Beats: log.Len(), Records: log.Records()}
	for _, r := range records {
		report.Expected += r.Expected
		report.Measured += r.Measured
	}

	if formatter.IsJSON() {
		if report.Records == nil {
			report.Records = []ir.TimingRecord{}
		}
		return formatter.Respond(CLIResponse{Status: "ok", Data: report, RunID: run.ID})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Timing for run %s (%s, %s)\n", run.ID, run.Mode, run.Status)
	fmt.Fprintln(w)
	if len(records) == 0 {
		fmt.Fprintln(w, "  (no beats executed)")
		return nil
	}
	fmt.Fprintf(w, "  %-10s %-16s %10s %10s %10s\n", "BEAT", "ACTION", "EXPECTED", "MEASURED", "DRIFT")
	for _, r := range records {
		fmt.Fprintf(w, "  %-10s %-16s %9.3fs %9.3fs %+9.3fs\n", r.BeatID, r.Action, r.Expected, r.Measured, r.Measured-r.Expected)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Total: %d beats, %.3fs expected, %.3fs measured\n", report.Beats, report.Expected, report.Measured)
	return nil
}

func exportTiming(opts *TimingOptions, log *timing.Log, stdout io.Writer, formatter *OutputFormatter) error {
	w := stdout
	if opts.Out != "" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to create %s", ErrCodeWriteFailed, opts.Out), err)
		}
		defer f.Close()
		w = f
	}

	var err error
	if opts.Export == "csv" {
		err = log.WriteCSV(w)
	} else {
		err = log.WriteJSON(w)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to write export", ErrCodeWriteFailed), err)
	}
	if opts.Out != "" {
		formatter.VerboseLog("Exported %d record(s) to %s", log.Len(), opts.Out)
	}
	return nil
}

// openExistingStore opens the database named by the flag or, failing that,
// the environment. The file must already exist.
func openExistingStore(flag, fallback string) (*store.Store, error) {
	path := flag
	if path == "" {
		path = fallback
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set STORYVIZ_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: database not found: %s", ErrCodeNotFound, path), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
