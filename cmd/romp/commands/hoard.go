package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/romp/internal/hoard"
	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/resolver"
	"github.com/dyluth/romp/internal/timespec"
	"github.com/dyluth/romp/pkg/blackboard"
	"github.com/spf13/cobra"
)

var (
	hoardOutputFormat string
	hoardSince        string
	hoardUntil        string
	hoardType         string
	hoardScope        string
	hoardAgent        string
)

var hoardCmd = &cobra.Command{
	Use:   "hoard [RECORD_ID]",
	Short: "Inspect blackboard entries with filtering",
	Long: `Inspect the blackboard in list or get mode.

List Mode (no RECORD_ID):
  Displays entries matching filters as a table or JSONL stream.

Get Mode (with RECORD_ID):
  Displays a single entry, decision, handoff or delegation as pretty-printed JSON.
  RECORD_ID may be a full UUID or a unique prefix of at least 6 characters.

Output Formats (list mode only):
  default - Human-readable table with ID, Type, Agent, Scope and Summary
  jsonl   - Line-delimited JSON, one entry per line

Filters (list mode only):
  --since  - Entries created after this time (duration, days or RFC3339)
  --until  - Entries created before this time
  --type   - Entry type (glob pattern: "warning", "*ing")
  --scope  - Entries related to this scope under the configured scope mode
  --agent  - Entries posted by this agent (exact match)

Examples:
  # List all entries
  romp hoard

  # Warnings about auth from the last day
  romp hoard --type=warning --scope=src/auth/ --since=1d

  # Pipe to jq
  romp hoard --output=jsonl --since=1h | jq 'select(.agent_id=="db-reviewer") | .summary'`,
	Args: usageArgs(cobra.MaximumNArgs(1)),
	RunE: runHoard,
}

func init() {
	hoardCmd.Flags().StringVarP(&hoardOutputFormat, "output", "o", "default", "Output format: default or jsonl (ignored in get mode)")

	hoardCmd.Flags().StringVar(&hoardSince, "since", "", "Show entries after time (duration or RFC3339)")
	hoardCmd.Flags().StringVar(&hoardUntil, "until", "", "Show entries before time (duration or RFC3339)")

	hoardCmd.Flags().StringVar(&hoardType, "type", "", "Filter by entry type (glob pattern)")
	hoardCmd.Flags().StringVar(&hoardScope, "scope", "", "Filter by related scope")
	hoardCmd.Flags().StringVar(&hoardAgent, "agent", "", "Filter by agent (exact match)")

	rootCmd.AddCommand(hoardCmd)
}

func runHoard(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	isGetMode := len(args) > 0

	var outputFormat hoard.OutputFormat
	if !isGetMode {
		var err error
		outputFormat, err = hoard.ParseOutputFormat(hoardOutputFormat)
		if err != nil {
			return printer.Error(
				"invalid output format",
				err.Error(),
				[]string{"Valid formats: default, jsonl"},
			)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()

	if isGetMode {
		return runHoardGet(ctx, client, cfg.Instance, args[0], out)
	}

	tr, err := timespec.ParseRange(hoardSince, hoardUntil, time.Now())
	if err != nil {
		return printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use duration format like '1h30m', days like '7d' or RFC3339 like '2025-10-29T13:00:00Z'"},
		)
	}

	matcher, err := blackboard.NewScopeMatcher(blackboard.ScopeMode(cfg.Store.ScopeMode))
	if err != nil {
		return err
	}

	filters := hoard.FilterCriteria{
		Range:    tr,
		TypeGlob: hoardType,
		Scope:    hoardScope,
		AgentID:  hoardAgent,
	}
	if err := hoard.ListEntries(ctx, client, matcher, outputFormat, filters, out); err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}
	return nil
}

func runHoardGet(ctx context.Context, client *blackboard.Client, instance, arg string, out io.Writer) error {
	id, err := resolver.ResolveRecordID(ctx, client, arg)
	if err == nil {
		err = hoard.GetRecord(ctx, client, id, out)
	}

	var ambiguous *resolver.AmbiguousError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ambiguous):
		return printer.Error("ambiguous record ID", resolver.FormatAmbiguousError(ambiguous), nil)
	case resolver.IsNotFoundError(err) || hoard.IsNotFound(err):
		return printer.Error(
			fmt.Sprintf("record with ID '%s' not found", arg),
			"No entry, decision, handoff or delegation has that ID.",
			[]string{
				"List all entries:\n  romp hoard",
				fmt.Sprintf("Check the instance:\n  %s=%s", "ROMP_INSTANCE", instance),
			},
		)
	case errors.Is(err, resolver.ErrTooShort):
		return printer.Error("invalid record ID", err.Error(), []string{"Use a full UUID or a prefix of at least 6 characters"})
	default:
		return fmt.Errorf("failed to get record: %w", err)
	}
}
