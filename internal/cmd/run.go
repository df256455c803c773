package cmd

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/compound/internal/dispatch"
	"github.com/Iron-Ham/compound/internal/event"
	"github.com/Iron-Ham/compound/internal/fleet"
	"github.com/Iron-Ham/compound/internal/teardown"
)

var runCmd = &cobra.Command{
	Use:   "run --demand <label> [--role <role>] [--ordinal <n>] -- <command> [args...]",
	Short: "Provision a compound worker and run a command on its members",
	Long: `Run the whole lifecycle once against the configured static backend:
provision a compound worker for the demand, launch it, run the command on
the selected members, and tear the worker down if the command succeeded
everywhere.

Each run of the command gets its own workspace directory, exported as
WORKSPACE, plus the COMPOUND_* variables describing the worker.

Examples:
  compound run --demand web --role db -- ./migrate.sh
  compound run --demand web --role db --ordinal 2 -- pg_isready
  compound run --demand web -- make test            # runs on the root`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

var (
	runDemand  string
	runRole    string
	runOrdinal int
	runJobID   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDemand, "demand", "", "label the compound worker must serve (required)")
	runCmd.Flags().StringVar(&runRole, "role", "", "role to run on (default: the root)")
	runCmd.Flags().IntVar(&runOrdinal, "ordinal", 0, "1-based member of the role to run on (0 = every member)")
	runCmd.Flags().StringVar(&runJobID, "job", "", "job ID used to name workspaces (default: random)")
	_ = runCmd.MarkFlagRequired("demand")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	m, err := fleet.New(cfg, fleet.WithLogger(logger))
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	m.Bus().Subscribe(event.TypeLaunchFailed, func(e event.Event) {
		if lf, ok := e.(event.LaunchFailedEvent); ok {
			p.line("%s could not connect: %s", lf.Worker, strings.Join(lf.Failed, ", "))
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := m.Acquire(ctx, runDemand)
	if err != nil {
		return fmt.Errorf("acquire worker for %q: %w", runDemand, err)
	}
	p.header(fmt.Sprintf("%s online (%s)", w.Name(), w.Composition()))

	jobID := runJobID
	if jobID == "" {
		jobID = "run-" + uuid.NewString()[:8]
	}
	env := environ()
	maps.Copy(env, m.JobEnvironment(w.Name()))

	step := dispatch.CommandStep{
		Name:   args[0],
		Args:   args[1:],
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
	}
	ok, dispatchErr := m.Dispatch(ctx, dispatch.Request{
		JobID:   jobID,
		Node:    w.Name(),
		Role:    runRole,
		Ordinal: runOrdinal,
		Env:     env,
	}, step)
	p.line("dispatch %s", p.status(ok))

	outcome := teardown.OutcomeSuccess
	switch {
	case ctx.Err() != nil:
		outcome = teardown.OutcomeAborted
	case !ok:
		outcome = teardown.OutcomeFailure
	}
	report := m.Finalize(context.WithoutCancel(ctx), w.Name(), outcome)
	if report.Skipped {
		p.line("%s kept: %s", w.Name(), report.Reason)
	} else {
		p.line("%s torn down (%d members) %s", w.Name(), len(report.Members), p.status(!report.Failed()))
	}

	if dispatchErr != nil {
		return dispatchErr
	}
	if !ok {
		return fmt.Errorf("command failed on %s", w.Name())
	}
	return nil
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
