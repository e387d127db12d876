package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/platform/otel"
	"github.com/roach88/storyviz/internal/render"
	"github.com/roach88/storyviz/internal/store"
	"github.com/roach88/storyviz/internal/timing"
	"github.com/roach88/storyviz/internal/trace"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Database    string
	Mode        string
	NoNarration bool
	Project     string
	RunID       string
	MetricsFile string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil and --run-id is unset, defaults to UUIDv7Generator.
	RunIDs trace.RunIDGenerator
}

// RenderSummary is the data reported after a render.
type RenderSummary struct {
	RunID      string  `json:"run_id"`
	Scene      string  `json:"scene"`
	Algorithm  string  `json:"algorithm"`
	Storyboard string  `json:"storyboard"`
	Mode       ir.Mode `json:"mode"`
	State      string  `json:"state"`
	Calls      int     `json:"calls"`
	Beats      int     `json:"beats"`
	Expected   float64 `json:"expected_seconds"`
	Digest     string  `json:"digest"`
	Database   string  `json:"database,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <scene> <storyboard>",
		Short: "Render a storyboard against a scene",
		Long: `Render a storyboard against a scene once.

Every beat is executed in order and every dispatched component call is
recorded. With --db, the run, its calls and its timing records are
persisted to SQLite for the trace, timing and verify commands.

With --project, <scene> and <storyboard> are document names inside the
project directory instead of file paths.

Examples:
  storyviz render scenes/bfs.yaml storyboards/intro.yaml
  storyviz render --db ./runs.db --mode fast bfs-queue intro --project ./project
  storyviz render --metrics-file ./render.prom scene.yaml board.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $STORYVIZ_DB)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "timing mode override (draft|normal|fast)")
	cmd.Flags().BoolVar(&opts.NoNarration, "no-narration", false, "disable narration pacing")
	cmd.Flags().StringVar(&opts.Project, "project", "", "resolve documents by name inside this project directory")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "use this run ID instead of a generated one")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")

	return cmd
}

func runRender(opts *RenderOptions, sceneArg, storyboardArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.log()

	sc, sb, baseDir, err := resolveDocuments(opts.Project, sceneArg, storyboardArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load documents", err)
	}

	mode := opts.Config.Mode
	if opts.Mode != "" {
		mode = ir.Mode(opts.Mode)
	}
	if mode != "" && !ir.ValidModes[mode] {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be one of draft, normal, fast", mode))
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.DB
	}
	var st *store.Store
	if dbPath != "" {
		logger.Info("opening database", "path", dbPath)
		st, err = store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	tp, shutdown, err := otel.Setup(ctx, otel.Settings{
		Enabled:     opts.Config.OTelEnabled,
		Endpoint:    opts.Config.OTelEndpoint,
		ServiceName: "storyviz",
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "error", err)
		}
	}()

	var (
		reg     *prometheus.Registry
		metrics *timing.Metrics
	)
	if opts.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		metrics = timing.NewMetrics(reg)
	}

	renderOpts := render.Options{
		Scene:          sc,
		Storyboard:     sb,
		Mode:           mode,
		Adapters:       render.DefaultAdapters(baseDir),
		Types:          componentTypes(),
		MaxEvents:      opts.Config.MaxEvents,
		Store:          st,
		RunIDs:         runIDGenerator(opts.RunID, opts.RunIDs),
		Metrics:        metrics,
		TracerProvider: tp,
		Logger:         logger,
	}
	if !opts.NoNarration {
		renderOpts.Narration = opts.Config.Narrator()
	}

	res, runErr := render.Run(ctx, renderOpts)
	if res == nil {
		return WrapExitError(ExitCommandError, "render setup failed", runErr)
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to write metrics", ErrCodeWriteFailed), err)
		}
		formatter.VerboseLog("Metrics written to %s", opts.MetricsFile)
	}

	summary := RenderSummary{
		RunID:      res.RunID,
		Scene:      sc.Name,
		Algorithm:  sc.Algorithm,
		Storyboard: sb.Name,
		Mode:       res.Mode,
		State:      res.State.String(),
		Calls:      len(res.Calls),
		Beats:      len(res.Records),
		Expected:   expectedSeconds(res.Records),
		Digest:     res.Digest,
		Database:   dbPath,
	}

	if runErr != nil {
		if formatter.IsJSON() {
			_ = formatter.Fail("E_RENDER_FAILED", runErr.Error(), summary, res.RunID)
		} else {
			writeRenderSummary(formatter, summary)
			fmt.Fprintf(formatter.Writer, "✗ Render failed: %v\n", runErr)
		}
		return WrapExitError(ExitFailure, "render failed", runErr)
	}

	if formatter.IsJSON() {
		return formatter.Respond(CLIResponse{Status: "ok", Data: summary, RunID: res.RunID})
	}
	writeRenderSummary(formatter, summary)
	return nil
}

func writeRenderSummary(f *OutputFormatter, s RenderSummary) {
	mark := "✓"
	if s.State != "completed" {
		mark = "✗"
	}
	fmt.Fprintf(f.Writer, "%s Rendered %s with %s\n", mark, s.Storyboard, s.Scene)
	fmt.Fprintf(f.Writer, "  Run:      %s\n", s.RunID)
	fmt.Fprintf(f.Writer, "  Mode:     %s\n", s.Mode)
	fmt.Fprintf(f.Writer, "  State:    %s\n", s.State)
	fmt.Fprintf(f.Writer, "  Beats:    %d (%.2fs expected)\n", s.Beats, s.Expected)
	fmt.Fprintf(f.Writer, "  Calls:    %d\n", s.Calls)
	fmt.Fprintf(f.Writer, "  Digest:   %s\n", s.Digest)
	if s.Database != "" {
		fmt.Fprintf(f.Writer, "  Database: %s\n", s.Database)
	}
}

func expectedSeconds(records []ir.TimingRecord) float64 {
	var total float64
	for _, r := range records {
		total += r.Expected
	}
	return total
}

// runIDGenerator picks the run ID source: an explicit ID, an injected
// generator, or UUIDv7.
func runIDGenerator(id string, gen trace.RunIDGenerator) trace.RunIDGenerator {
	switch {
	case id != "":
		return trace.NewFixedGenerator(id)
	case gen != nil:
		return gen
	default:
		return trace.UUIDv7Generator{}
	}
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
