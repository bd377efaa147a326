package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/dyluth/romp/internal/orchestrator"
	"github.com/dyluth/romp/internal/printer"
	"github.com/spf13/cobra"
)

var (
	reviewWorkDir string
	reviewVerbose bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <scope>",
	Short: "Review one codebase scope through the five-stage pipeline",
	Long: `Run a single review agent through five stages, each with its own tool allow-list:

  1. assemble  read prior context from the store (read-only)
  2. review    examine the code (file tools only)
  3. post      post findings, warnings and needs
  4. decide    record decisions with rejected alternatives
  5. handoff   hand the results on

Each stage receives the previous stages' output as context. The first failing
stage aborts the run.

Examples:
  # Review the auth module
  romp review src/auth/

  # Review a checkout elsewhere, printing every agent message
  romp review src/db/ --workdir ../service --verbose`,
	Args: usageArgs(cobra.ExactArgs(1)),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewWorkDir, "workdir", "w", "", "Directory agents run in (default: current directory)")
	reviewCmd.Flags().BoolVarP(&reviewVerbose, "verbose", "v", false, "Print every agent message")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	scope := strings.TrimSpace(args[0])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := openRunEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg, err := env.orchestratorConfig(reviewWorkDir, reviewVerbose)
	if err != nil {
		return err
	}
	pipeline, err := orchestrator.NewReviewPipeline(cfg, env.cfg.AgentID)
	if err != nil {
		return fmt.Errorf("failed to create review pipeline: %w", err)
	}

	reportCommit(reviewWorkDir)
	printer.Step("Reviewing %s as agent %s on instance %s\n", scope, pipeline.Agent, env.cfg.Instance)
	result, err := pipeline.Run(ctx, scope)
	if err != nil {
		details := map[string]string{"Scope": scope}
		if result != nil {
			details["Run"] = result.RunID
			if result.State.FailedStage != "" {
				details["Stage"] = result.State.FailedStage
			}
		}
		return printer.ErrorWithContext(
			"review failed",
			err.Error(),
			details,
			[]string{"Inspect the run:\n  romp runs " + runIDOf(result)},
		)
	}

	printer.Success("Review of %s complete: %d stages, %d compliance warnings (run %s)\n",
		scope, len(result.Stages), len(result.Warnings), result.RunID)
	return nil
}

func runIDOf(result *orchestrator.ReviewResult) string {
	if result == nil {
		return ""
	}
	return result.RunID
}
