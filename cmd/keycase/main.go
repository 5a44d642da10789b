// Command keycase executes an execution plan file locally and writes the
// result document next to it.
//
//	keycase [flags] <plan.json|plan.yaml>
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/petrijr/keycase"
	"github.com/petrijr/keycase/internal/backend"
	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/keywords"
	"github.com/petrijr/keycase/pkg/log"
	"github.com/petrijr/keycase/pkg/planfile"
)

// Exit codes
const (
	exitPassed = 0
	exitError  = 1
	exitFailed = 2
)

const (
	appName    = "keycase"
	appVersion = "1.0.0"
	divider    = "============================================================"
	subDivider = "----------------------------------------"
)

type options struct {
	projectID   string
	runID       string
	verbose     bool
	outputDir   string
	store       string
	parallel    int
	stepTimeout time.Duration
	planPath    string
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitPassed
		}
		return exitError
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := log.NewWithOptions(
		stderr, log.FormatText, appName, "local", appVersion, level,
	)

	res, err := execute(ctx, opts, logger, stdout)
	if err != nil {
		logger.Error("Execution failed", log.Error(err))
		return exitError
	}

	printResult(stdout, res)

	out := planfile.ResultPath(opts.planPath, opts.outputDir)
	if err := planfile.WriteResult(out, res); err != nil {
		logger.Error("Failed to write results", log.Error(err))
		return exitError
	}
	_, _ = fmt.Fprintf(stdout, "Results saved to: %s\n", out)

	if res.Status() != api.RunPassed {
		return exitFailed
	}
	return exitPassed
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.projectID, "project-id", "local", "Project ID")
	fs.StringVar(&opts.runID, "run-id", "",
		"Run ID (defaults to the plan's runId, else generated)")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.StringVar(&opts.outputDir, "output", "",
		"Directory for the results file (default: current directory)")
	fs.StringVar(&opts.store, "store", "",
		"SQLite file to record the run in (default: in memory)")
	fs.IntVar(&opts.parallel, "parallel", 1,
		"Maximum number of flows executed concurrently")
	fs.DurationVar(&opts.stepTimeout, "step-timeout", 0,
		"Timeout for each keyword call (0 disables)")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(),
			"Usage: %s [flags] <plan.json|plan.yaml>\n", appName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one plan file")
	}
	opts.planPath = fs.Arg(0)
	return opts, nil
}

func execute(
	ctx context.Context, opts *options, logger *slog.Logger, stdout io.Writer,
) (*api.RunResult, error) {
	logger.Info("Loading execution plan", slog.String("path", opts.planPath))
	plan, err := planfile.Load(opts.planPath)
	if err != nil {
		return nil, err
	}

	reg := keycase.NewRegistry()
	if err := keywords.RegisterAll(reg); err != nil {
		return nil, err
	}
	reg.Freeze()
	logger.Debug("Keywords registered", slog.Int("count", reg.Len()))

	engOpts := keycase.EngineOptions{
		StepTimeout:      opts.stepTimeout,
		MaxParallelFlows: opts.parallel,
	}
	if opts.verbose {
		engOpts.Observer = keycase.NewLoggingObserver(logger)
	}

	eng, closeStore, err := openEngine(reg, opts.store, engOpts)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	runLabel := opts.runID
	if runLabel == "" {
		runLabel = plan.RunID.String()
	}
	if runLabel == "" {
		runLabel = "auto-generated"
	}
	_, _ = fmt.Fprintf(stdout, "\nExecuting plan: %s\n", planName(plan))
	_, _ = fmt.Fprintf(stdout, "Run ID: %s\n%s\n", runLabel, subDivider)

	return keycase.Execute(ctx, eng, plan, opts.projectID, api.ID(opts.runID))
}

func openEngine(
	reg *keycase.Registry, store string, opts keycase.EngineOptions,
) (keycase.Engine, func(), error) {
	if store == "" {
		return keycase.NewInMemoryEngineWithOptions(reg, opts), func() {}, nil
	}

	db, err := sql.Open("sqlite", backend.SQLiteDSN(store))
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", store, err)
	}
	eng, err := keycase.NewSQLiteEngineWithOptions(reg, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return eng, func() { _ = db.Close() }, nil
}

func planName(plan *api.ExecutionPlan) string {
	if plan.Name == "" {
		return "Unnamed"
	}
	return plan.Name
}

func printResult(w io.Writer, res *api.RunResult) {
	var b strings.Builder
	b.WriteString("\n" + divider + "\n")
	b.WriteString("EXECUTION RESULTS\n")
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(&b, "Status: %s\n", res.Status())
	fmt.Fprintf(&b, "Start Time: %s\n", res.StartDateTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "End Time: %s\n", res.EndDateTime.Format(time.RFC3339))

	if res.Error != nil {
		fmt.Fprintf(&b, "Error: %s: %s\n", res.Error.Type, res.Error.Message)
		for _, issue := range res.Error.Issues {
			fmt.Fprintf(&b, "  - %s\n", issue)
		}
	}

	b.WriteString("\nFlow Results:\n")
	b.WriteString(subDivider + "\n")
	for _, fr := range res.FlowResults {
		mark := "[PASS]"
		if !fr.Passed() {
			mark = "[FAIL]"
		}
		fmt.Fprintf(&b, "%s Flow: %s - %s\n", mark, fr.Name, fr.Status)
		if fr.Message != nil {
			fmt.Fprintf(&b, "  Message: %s\n", *fr.Message)
		}
		if fr.FailedOnStepID != nil {
			fmt.Fprintf(&b, "  Failed on step: %s\n", *fr.FailedOnStepID)
		}
	}
	b.WriteString(divider + "\n\n")
	_, _ = io.WriteString(w, b.String())
}
