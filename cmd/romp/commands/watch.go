package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/watch"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	watchOutputFormat string
	watchKinds        []string
	watchAgent        string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time blackboard activity",
	Long: `Stream blackboard writes as they happen: posted entries, decisions,
handoffs and delegations.

Output Formats:
  default - Human-readable output with timestamps and emojis
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch everything
  romp watch

  # Only decisions and handoffs from one agent
  romp watch --kind decision,handoff --agent auth-reviewer

  # Export events as JSON
  romp watch --output=json > events.jsonl`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	watchCmd.Flags().StringSliceVar(&watchKinds, "kind", nil, "Only these event kinds: entry, decision, handoff, delegation")
	watchCmd.Flags().StringVar(&watchAgent, "agent", "", "Only events written by this agent")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	outputFormat, err := watch.ParseOutputFormat(watchOutputFormat)
	if err != nil {
		return printer.Error(
			"invalid output format",
			err.Error(),
			[]string{"Valid formats: default, json"},
		)
	}

	filter := watch.Filter{AgentID: watchAgent}
	for _, k := range watchKinds {
		kind := blackboard.EventKind(k)
		switch kind {
		case blackboard.EventEntry, blackboard.EventDecision, blackboard.EventHandoff, blackboard.EventDelegation:
			filter.Kinds = append(filter.Kinds, kind)
		default:
			return printer.Error(
				"invalid event kind",
				fmt.Sprintf("Unknown kind: %s", k),
				[]string{"Valid kinds: entry, decision, handoff, delegation"},
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	printer.Step("Watching instance %s (Ctrl-C to stop)\n", cfg.Instance)
	return watch.StreamActivity(ctx, client, outputFormat, filter, cmd.OutOrStdout())
}
