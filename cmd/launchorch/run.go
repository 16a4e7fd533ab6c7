package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aescanero/launchorch/internal/application/orchestrator"
	"github.com/aescanero/launchorch/pkg/domain"
	"github.com/aescanero/launchorch/pkg/ports"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes of the run command
const (
	exitSuccess   = 0
	exitFailed    = 1
	exitCancelled = 2
)

// drainTimeout bounds the wait for trailing events after a run finished
const drainTimeout = time.Second

func newRunCmd(opts *globalOptions) *cobra.Command {
	var validateOnly bool

	cmd := &cobra.Command{
		Use:   "run NAME",
		Short: "Launch one entry and wait for it to finish",
		Long: `Launch a stored entry, print its status events and exit once the run
reaches a terminal state.

Exit codes: 0 on success, 1 on failure, 2 when cancelled (Ctrl+C).

Example:
  launchorch run "Apex Legends"
  launchorch run "Apex Legends" --validate-only
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			logger, err := initLogger(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
				defer cancel()
				eng.shutdown(shutdownCtx)
			}()

			result, err := runOnce(ctx, eng, args[0], orchestrator.LaunchOptions{ValidateOnly: validateOnly}, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if code := exitCode(result); code != exitSuccess {
				return &exitError{code: code, err: fmt.Errorf("run %s finished %s", result.RunID, result.FinalState)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Stop after file validation")

	return cmd
}

// runOnce launches an entry, prints its events to out and returns its
// result. Cancelling ctx cancels the run.
func runOnce(ctx context.Context, eng *engine, name string, opts orchestrator.LaunchOptions, out io.Writer) (*domain.LaunchResult, error) {
	subCtx, unsubscribe := context.WithCancel(context.Background())
	defer unsubscribe()

	// Subscribe before launching; the run id is only known afterwards
	events := make(chan domain.StatusEvent, 256)
	err := eng.eventBus.Subscribe(subCtx, ports.TopicLaunchEvents, func(ctx context.Context, event domain.StatusEvent) error {
		select {
		case events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	runID, err := eng.manager.Launch(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "run %s started for %q\n", runID, name)

	done := make(chan struct{})
	var result *domain.LaunchResult
	var waitErr error
	go func() {
		defer close(done)
		result, waitErr = eng.manager.Wait(context.Background(), runID)
	}()

	cancelled, finished := false, false
	for {
		select {
		case event := <-events:
			if event.RunID == runID {
				printEvent(out, event)
				finished = finished || isFinal(event)
			}
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				if err := eng.manager.Cancel(context.Background(), runID); err != nil && !errors.Is(err, domain.ErrRunFinished) {
					eng.logger.Warn("failed to cancel run", zap.String("run_id", runID), zap.Error(err))
				}
			}
			ctx = context.Background()
		case <-done:
			if waitErr != nil {
				return nil, waitErr
			}
			if !finished {
				drain(out, events, runID)
			}
			printResult(out, result)
			return result, nil
		}
	}
}

// drain prints the run's remaining events up to its terminal state
func drain(out io.Writer, events <-chan domain.StatusEvent, runID string) {
	timeout := time.NewTimer(drainTimeout)
	defer timeout.Stop()

	for {
		select {
		case event := <-events:
			if event.RunID != runID {
				continue
			}
			printEvent(out, event)
			if isFinal(event) {
				return
			}
		case <-timeout.C:
			return
		}
	}
}

func isFinal(event domain.StatusEvent) bool {
	return event.Type == domain.EventStateChanged && event.State.IsTerminal()
}

func printEvent(out io.Writer, event domain.StatusEvent) {
	line := fmt.Sprintf("%s  %-10s %-20s", event.Timestamp.Format("15:04:05.000"), event.State, event.Type)
	if event.Detail != "" {
		line += "  " + event.Detail
	}
	if event.Kind != domain.KindNone {
		line += fmt.Sprintf(" [%s]", event.Kind)
	}
	fmt.Fprintln(out, line)
}

func printResult(out io.Writer, result *domain.LaunchResult) {
	fmt.Fprintf(out, "result: %s (%s) in %s\n", result.Outcome, result.FinalState, result.Duration().Round(time.Millisecond))
	if result.Process != nil {
		fmt.Fprintf(out, "process: %s pid %d\n", result.Process.ImageName, result.Process.PID)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if result.Error != nil {
		fmt.Fprintf(out, "error: %s during %s: %s\n", result.Error.Kind, result.Error.Stage, result.Error.Message)
	}
}

// exitCode maps a run outcome to the process exit code
func exitCode(result *domain.LaunchResult) int {
	switch result.Outcome {
	case domain.OutcomeSuccess:
		return exitSuccess
	case domain.OutcomeCancelled:
		return exitCancelled
	default:
		return exitFailed
	}
}
