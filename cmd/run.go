package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/droidpilot/internal/adb"
	"github.com/xkilldash9x/droidpilot/internal/config"
	"github.com/xkilldash9x/droidpilot/internal/decision"
	"github.com/xkilldash9x/droidpilot/internal/observability"
	"github.com/xkilldash9x/droidpilot/internal/pilot"
	"github.com/xkilldash9x/droidpilot/internal/tui"
)

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run \"goal...\"",
		Short: "Starts one automation run toward the given goal",
		Long: `Starts one automation run: droidpilot repeatedly screenshots the
connected device, asks the decision service for the single next adb
command, executes it, and stops when the service reports the goal done,
the step ceiling is reached, you cancel, or any stage fails.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so CLI values override config file and env.
			if err := viper.BindPFlag("pilot.max_steps", cmd.Flags().Lookup("max-steps")); err != nil {
				return err
			}
			if err := viper.BindPFlag("bridge.serial", cmd.Flags().Lookup("device")); err != nil {
				return err
			}
			if err := viper.BindPFlag("decision.api_key", cmd.Flags().Lookup("api-key")); err != nil {
				return err
			}
			if err := viper.BindPFlag("ui.disabled", cmd.Flags().Lookup("no-tui")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("failed to unmarshal config with flag overrides: %w", err)
			}

			goal := strings.TrimSpace(strings.Join(args, " "))
			if goal == "" {
				return fmt.Errorf("goal must not be empty")
			}
			// Refuse before doing any device work; the decision client
			// would only fail later with a less direct message.
			if cfg.Decision.APIKey == "" {
				return fmt.Errorf("decision service API key is missing: set decision.api_key or DROIDPILOT_DECISION_API_KEY")
			}

			bridge := adb.New(cfg.Bridge, logger)
			decider, err := decision.NewClient(cfg.Decision, logger)
			if err != nil {
				return fmt.Errorf("failed to create decision client: %w", err)
			}

			p := pilot.New(bridge, decider, pilot.Config{
				MaxSteps:    cfg.Pilot.MaxSteps,
				SettleDelay: cfg.Pilot.SettleDelay,
			}, logger)

			logger.Info("Starting run",
				zap.String("goal", goal),
				zap.Int("max_steps", cfg.Pilot.MaxSteps),
				zap.Duration("settle_delay", cfg.Pilot.SettleDelay),
			)

			// The loop runs on its own goroutine; the shell consumes the
			// event stream on this one. They share nothing else.
			g, runCtx := errgroup.WithContext(ctx)

			var reason pilot.TerminalReason
			var runErr error
			g.Go(func() error {
				reason, runErr = p.Run(runCtx, goal)
				// The loop's failure is reported through the terminal
				// event and the return values; don't cancel the shell
				// mid-render by returning it here.
				return nil
			})

			if cfg.UI.Disabled {
				tui.RunPlain(os.Stdout, p.Events())
			} else {
				if err := tui.Run(runCtx, goal, p.Events(), p.Stop, cfg.UI); err != nil {
					logger.Warn("Shell exited with error", zap.Error(err))
				}
				// The operator may quit the shell while the loop is mid
				// step; the stop flag is already set, so this only waits
				// for the current blocking call to finish.
				go drainEvents(p.Events())
			}

			if err := g.Wait(); err != nil {
				return err
			}

			switch reason {
			case pilot.ReasonGoalDone:
				fmt.Printf("\nGoal complete after %d step(s).\n", p.Steps())
				return nil
			case pilot.ReasonStepLimit:
				fmt.Printf("\nStep limit reached after %d step(s); goal not reported done.\n", p.Steps())
				return nil
			case pilot.ReasonCancelled:
				fmt.Printf("\nRun cancelled after %d step(s).\n", p.Steps())
				return nil
			default:
				return fmt.Errorf("run failed after %d step(s): %w", p.Steps(), runErr)
			}
		},
	}

	runCmd.Flags().Int("max-steps", 20, "Fixed ceiling on loop steps before the run is stopped")
	runCmd.Flags().String("device", "", "Device serial to target when several are attached")
	runCmd.Flags().String("api-key", "", "Decision service API key (overrides config/env)")
	runCmd.Flags().Bool("no-tui", false, "Disable the interactive shell; print plain progress lines")

	return runCmd
}

// drainEvents keeps the loop's non-blocking sends cheap after the shell
// has gone away.
func drainEvents(events <-chan pilot.Event) {
	for range events {
	}
}
