package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dyluth/romp/internal/orchestrator"
	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/watch"
	"github.com/spf13/cobra"
)

var (
	swarmWorkDir string
	swarmVerbose bool
)

var swarmCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Run the auth and db reviewers as a coordinated swarm",
	Long: `Run two review agents that share nothing but the store:

  auth-reviewer  reviews src/auth/, records a decision and hands off
  db-reviewer    waits for that handoff, assembles context for src/db/,
                 decides and delegates what is left

Neither agent sees the other's output directly. With store.scope_mode set to
tree, db-reviewer's assembled context includes auth-reviewer's decisions.

Examples:
  romp swarm
  romp swarm --workdir ../service`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runSwarm,
}

func init() {
	swarmCmd.Flags().StringVarP(&swarmWorkDir, "workdir", "w", "", "Directory agents run in (default: current directory)")
	swarmCmd.Flags().BoolVarP(&swarmVerbose, "verbose", "v", false, "Print every agent message")
	rootCmd.AddCommand(swarmCmd)
}

func runSwarm(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := openRunEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	cfg, err := env.orchestratorConfig(swarmWorkDir, swarmVerbose)
	if err != nil {
		return err
	}
	swarm, err := orchestrator.NewSwarm(cfg, watch.NewHandoffBarrier(env.client, env.cfg.Swarm.BarrierTimeout))
	if err != nil {
		return fmt.Errorf("failed to create swarm: %w", err)
	}
	swarm.MaxParallel = env.cfg.Swarm.MaxParallel
	swarm.BarrierTimeout = env.cfg.Swarm.BarrierTimeout

	reportCommit(swarmWorkDir)
	agents := orchestrator.DefaultSwarm()
	printer.Step("Starting swarm of %d agents on instance %s (scope mode %s)\n", len(agents), env.cfg.Instance, env.cfg.Store.ScopeMode)

	results, err := swarm.RunSwarm(ctx, agents)
	if err != nil {
		return printer.ErrorWithContext(
			"swarm failed",
			err.Error(),
			map[string]string{"Completed agents": fmt.Sprint(len(results))},
			[]string{"Inspect recent runs:\n  romp runs"},
		)
	}

	for _, r := range results {
		printer.Success("%s (%s): %d compliance warnings\n", r.Name, r.Scope, len(r.Warnings))
	}
	return nil
}
