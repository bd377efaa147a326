package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/printer"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs [RUN_ID]",
	Short: "Show past review and swarm runs from the local ledger",
	Long: `Show the audit trail kept in the local run ledger.

Without RUN_ID, lists the most recent runs. With RUN_ID, shows each stage
execution of that run: agent, status, tool calls and compliance warnings.

Examples:
  romp runs
  romp runs --limit 50
  romp runs 7f9c2ba4-e88f-4a3b-9b6d-0c1d2e3f4a5b`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "l", 20, "Maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return printer.ErrorWithContext(
			"cannot open run ledger",
			err.Error(),
			map[string]string{"Path": cfg.Ledger.Path},
			[]string{"Set ledger.path in romp.yml to a writable location"},
		)
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := l.ListRuns(ctx, runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		formatRuns(out, runs)
		return nil
	}

	run, err := l.GetRun(ctx, args[0])
	if errors.Is(err, sql.ErrNoRows) {
		return printer.Error(
			fmt.Sprintf("run '%s' not found", args[0]),
			"The ledger has no run with that ID.",
			[]string{"List recent runs:\n  romp runs"},
		)
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	stages, err := l.StagesForRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to get stages: %w", err)
	}
	formatRunDetail(out, run, stages)
	return nil
}

func formatRuns(w io.Writer, runs []*ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	fmt.Fprintf(w, "%-36s %-7s %-10s %-20s %s\n", "ID", "KIND", "STATUS", "STARTED", "SCOPE")
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s %-7s %-10s %-20s %s\n",
			r.ID, r.Kind, r.Status, r.StartedAt.Format(time.DateTime), r.Scope)
	}
}

func formatRunDetail(w io.Writer, run *ledger.Run, stages []*ledger.StageExecution) {
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Kind)
	fmt.Fprintf(w, "  Scope:    %s\n", run.Scope)
	fmt.Fprintf(w, "  Instance: %s\n", run.Instance)
	fmt.Fprintf(w, "  Status:   %s\n", run.Status)
	fmt.Fprintf(w, "  Started:  %s\n", run.StartedAt.Format(time.DateTime))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Second))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", run.Error)
	}

	fmt.Fprintln(w)
	for _, s := range stages {
		fmt.Fprintf(w, "%d. %s/%s  %s  %s  %d tool calls\n",
			s.Sequence, s.Agent, s.Stage, s.Status, time.Duration(s.DurationMs)*time.Millisecond, len(s.ToolCalls))
		if s.Error != "" {
			fmt.Fprintf(w, "   error: %s\n", s.Error)
		}
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "   warning: %s\n", warning)
		}
		if s.Result != "" {
			fmt.Fprintf(w, "   %s\n", printer.Preview(s.Result, previewWidth))
		}
	}
}
