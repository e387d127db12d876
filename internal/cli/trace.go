package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Event    string // optional - filter to calls dispatched for this event type
	Compare  string // optional - run ID to compare against
	Latest   string // optional - trace the latest run of this scene
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID          string    `json:"id"`
	Scene       string    `json:"scene"`
	Storyboard  string    `json:"storyboard"`
	Mode        ir.Mode   `json:"mode"`
	Status      string    `json:"status"`
	TraceDigest string    `json:"trace_digest,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// TraceResult holds the trace of one run.
type TraceResult struct {
	RunID       string     `json:"run_id"`
	Scene       string     `json:"scene"`
	Storyboard  string     `json:"storyboard"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	TraceDigest string     `json:"trace_digest,omitempty"`
	Event       string     `json:"event,omitempty"`
	Calls       []ir.Call  `json:"calls"`
	Stats       TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalCalls int            `json:"total_calls"`
	BeatCalls  int            `json:"beat_calls"`
	EventCalls int            `json:"event_calls"`
	ByEvent    map[string]int `json:"by_event,omitempty"`
}

// CompareResult reports the comparison of two runs.
type CompareResult struct {
	Left       string `json:"left"`
	Right      string `json:"right"`
	Identical  bool   `json:"identical"`
	Divergence string `json:"divergence,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Query the recorded call trace of a run",
		Long: `Query the component calls recorded for a persisted run.

Without a run ID, lists every run in the database. With one, prints the
run's calls in dispatch order. --latest picks the most recent run of a
scene instead of naming a run ID.

--event restricts the trace to calls dispatched for one event type.
--compare reports the first call where two runs diverge.

Examples:
  storyviz trace --db ./runs.db
  storyviz trace --db ./runs.db 0192f0c4-...
  storyviz trace --db ./runs.db --latest bfs-queue --event enqueue
  storyviz trace --db ./runs.db run-a --compare run-b`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STORYVIZ_DB)")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter to calls dispatched for this event type")
	cmd.Flags().StringVar(&opts.Compare, "compare", "", "compare against this run ID")
	cmd.Flags().StringVar(&opts.Latest, "latest", "", "trace the latest run of this scene")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := context.Background()

	if runID != "" && opts.Latest != "" {
		return NewExitError(ExitCommandError, "pass a run ID or --latest, not both")
	}

	st, err := openExistingStore(opts.Database, opts.Config.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.Latest != "" {
		run, err := st.LatestRun(ctx, opts.Latest)
		if err != nil {
			return runLookupError(err)
		}
		runID = run.ID
	}

	if runID == "" {
		if opts.Compare != "" || opts.Event != "" {
			return NewExitError(ExitCommandError, "--compare and --event need a run ID")
		}
		return listRuns(ctx, st, formatter)
	}

	if opts.Compare != "" {
		return compareRuns(ctx, st, runID, opts.Compare, formatter)
	}

	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return runLookupError(err)
	}

	var calls []ir.Call
	if opts.Event != "" {
		calls, err = st.CallsForEvent(ctx, runID, opts.Event)
	} else {
		calls, err = st.ReadCalls(ctx, runID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read calls", err)
	}
	if calls == nil {
		calls = []ir.Call{}
	}

	result := TraceResult{
		RunID:       run.ID,
		Scene:       run.Scene,
		Storyboard:  run.Storyboard,
		Status:      string(run.Status),
		Error:       run.Error,
		TraceDigest: run.TraceDigest,
		Event:       opts.Event,
		Calls:       calls,
		Stats:       traceStats(calls),
	}

	if formatter.IsJSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

func runLookupError(err error) error {
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
	}
	return WrapExitError(ExitCommandError, "failed to read run", err)
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, len(runs))
	for i, r := range runs {
		summaries[i] = RunSummary{
			ID:          r.ID,
			Scene:       r.Scene,
			Storyboard:  r.Storyboard,
			Mode:        r.Mode,
			Status:      string(r.Status),
			TraceDigest: r.TraceDigest,
			StartedAt:   r.StartedAt,
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %-10s %s/%s (%s)\n", s.ID, s.Status, s.Scene, s.Storyboard, s.Mode)
	}
	return nil
}

func compareRuns(ctx context.Context, st *store.Store, left, right string, formatter *OutputFormatter) error {
	for _, id := range []string{left, right} {
		if _, err := st.ReadRun(ctx, id); err != nil {
			return runLookupError(err)
		}
	}
	div, err := st.CompareRuns(ctx, left, right)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compare runs", err)
	}

	result := CompareResult{Left: left, Right: right, Identical: div.Identical()}
	if !div.Identical() {
		result.Divergence = div.String()
	}

	if formatter.IsJSON() {
		var err error
		if result.Identical {
			err = formatter.Success(result)
		} else {
			err = formatter.Fail("E_DIVERGED", result.Divergence, result, "")
		}
		if err != nil {
			return err
		}
	} else if result.Identical {
		fmt.Fprintf(formatter.Writer, "✓ %s and %s are identical\n", left, right)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s and %s diverge\n", left, right)
		fmt.Fprintf(formatter.Writer, "  %s\n", result.Divergence)
	}

	if !result.Identical {
		return NewExitError(ExitFailure, "runs diverged")
	}
	return nil
}

func traceStats(calls []ir.Call) TraceStats {
	stats := TraceStats{TotalCalls: len(calls)}
	for _, c := range calls {
		if c.EventType == "" {
			stats.BeatCalls++
			continue
		}
		stats.EventCalls++
		if stats.ByEvent == nil {
			stats.ByEvent = make(map[string]int)
		}
		stats.ByEvent[c.EventType]++
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Scene: %s  Storyboard: %s\n", result.Scene, result.Storyboard)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if result.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Calls ===")
	if len(result.Calls) == 0 {
		fmt.Fprintln(w, "  (no calls)")
	}
	for _, c := range result.Calls {
		formatCall(w, c, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Calls: %d\n", result.Stats.TotalCalls)
	fmt.Fprintf(w, "  Beat Calls:  %d\n", result.Stats.BeatCalls)
	fmt.Fprintf(w, "  Event Calls: %d\n", result.Stats.EventCalls)
	for _, ev := range ir.SortedKeys(result.Stats.ByEvent) {
		fmt.Fprintf(w, "    %s: %d\n", ev, result.Stats.ByEvent[ev])
	}
	if result.TraceDigest != "" {
		fmt.Fprintf(w, "  Digest:      %s\n", result.TraceDigest)
	}
}

// formatCall formats a single call for text output.
func formatCall(w io.Writer, c ir.Call, verbose bool) {
	line := fmt.Sprintf("  [%d] %s.%s", c.Seq, c.Component, c.Action)
	if len(c.Args) > 0 {
		line += " " + formatArgs(c.Args)
	}
	if c.EventType != "" {
		line += fmt.Sprintf("  <- %s", c.EventType)
		if c.StepIndex != nil {
			line += fmt.Sprintf("#%d", *c.StepIndex)
		}
	}
	fmt.Fprintln(w, line)
	if verbose {
		fmt.Fprintf(w, "       at %s\n", ir.BeatID(c.Act, c.Shot, c.Beat))
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	parts := make([]string, 0, len(args))
	for _, k := range ir.SortedKeys(args) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}
