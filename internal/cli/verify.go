package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/render"
	"github.com/roach88/storyviz/internal/store"
	"github.com/roach88/storyviz/internal/trace"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Mode     string
	Project  string
	Runs     int

	// RunIDs allows overriding the run ID generator (for testing).
	RunIDs trace.RunIDGenerator
}

// VerifyResult reports whether repeated renders produced identical traces.
type VerifyResult struct {
	Deterministic bool     `json:"deterministic"`
	RunIDs        []string `json:"run_ids"`
	Digests       []string `json:"digests"`
	Calls         int      `json:"calls"`
	Divergence    string   `json:"divergence,omitempty"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <scene> <storyboard>",
		Short: "Check that renders are deterministic",
		Long: `Render a storyboard several times and compare the call traces.

Each run is persisted (in memory unless --db is given) and the stored
traces are compared call by call. The first divergent call is reported.
Narration is disabled so every run sees the same durations.

Examples:
  storyviz verify scenes/bfs.yaml storyboards/intro.yaml
  storyviz verify --runs 5 --db ./runs.db bfs-queue intro --project ./project`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default in-memory)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "timing mode override (draft|normal|fast)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "resolve documents by name inside this project directory")
	cmd.Flags().IntVar(&opts.Runs, "runs", 2, "number of renders to compare (at least 2)")

	return cmd
}

func runVerify(opts *VerifyOptions, sceneArg, storyboardArg string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.log()

	if opts.Runs < 2 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--runs must be at least 2, got %d", opts.Runs))
	}
	mode := ir.Mode(opts.Mode)
	if mode != "" && !ir.ValidModes[mode] {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be one of draft, normal, fast", mode))
	}

	sc, sb, baseDir, err := resolveDocuments(opts.Project, sceneArg, storyboardArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load documents", err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = ":memory:"
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	gen := opts.RunIDs
	if gen == nil {
		gen = trace.UUIDv7Generator{}
	}

	result := VerifyResult{Deterministic: true}
	for i := range opts.Runs {
		formatter.VerboseLog("Render %d of %d", i+1, opts.Runs)
		res, err := render.Run(ctx, render.Options{
			Scene:      sc,
			Storyboard: sb,
			Mode:       mode,
			Adapters:   render.DefaultAdapters(baseDir),
			Types:      componentTypes(),
			MaxEvents:  opts.Config.MaxEvents,
			Store:      st,
			RunIDs:     gen,
			Logger:     logger,
		})
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("render %d failed", i+1), err)
		}
		result.RunIDs = append(result.RunIDs, res.RunID)
		result.Digests = append(result.Digests, res.Digest)
		result.Calls = len(res.Calls)
	}

	for _, id := range result.RunIDs[1:] {
		div, err := st.CompareRuns(ctx, result.RunIDs[0], id)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compare runs", err)
		}
		if !div.Identical() {
			result.Deterministic = false
			result.Divergence = fmt.Sprintf("%s vs %s: %s", result.RunIDs[0], id, div)
			break
		}
	}
	if result.Deterministic {
		for _, d := range result.Digests[1:] {
			if d != result.Digests[0] {
				result.Deterministic = false
				result.Divergence = fmt.Sprintf("digest %s != %s", d, result.Digests[0])
				break
			}
		}
	}

	if formatter.IsJSON() {
		var err error
		if result.Deterministic {
			err = formatter.Success(result)
		} else {
			err = formatter.Fail("E_NONDETERMINISTIC", result.Divergence, result, "")
		}
		if err != nil {
			return err
		}
	} else {
		writeVerifyResult(formatter, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "renders diverged")
	}
	return nil
}

func writeVerifyResult(f *OutputFormatter, r VerifyResult) {
	if r.Deterministic {
		fmt.Fprintf(f.Writer, "✓ %d renders identical (%d calls)\n", len(r.RunIDs), r.Calls)
		fmt.Fprintf(f.Writer, "  Digest: %s\n", r.Digests[0])
		return
	}
	fmt.Fprintln(f.Writer, "✗ Renders diverged")
	fmt.Fprintf(f.Writer, "  %s\n", r.Divergence)
}
