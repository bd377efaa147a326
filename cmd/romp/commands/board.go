package commands

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dyluth/romp/internal/mcpserver"
	"github.com/dyluth/romp/internal/store"
	"github.com/spf13/cobra"
)

var (
	boardAgent string
	boardOps   []string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Serve the shared store as MCP tools over stdio",
	Long: `Serve every store operation as an MCP tool named romp_<operation> on
stdin/stdout. Agent runners start this command themselves; records written
through it are attributed to --agent.

Examples:
  romp board --agent auth-reviewer
  romp board --agent main --ops assemble,why,read`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runBoard,
}

func init() {
	boardCmd.Flags().StringVar(&boardAgent, "agent", "", "Agent identity stamped on writes (default: agent_id from config)")
	boardCmd.Flags().StringSliceVar(&boardOps, "ops", nil, "Operations to expose (default: all)")
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	// stdout carries the MCP protocol.
	log.SetOutput(os.Stderr)
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	agent := boardAgent
	if agent == "" {
		agent = cfg.AgentID
	}

	ops := make([]store.Operation, 0, len(boardOps))
	for _, name := range boardOps {
		op, err := store.ParseToolName(name)
		if err != nil {
			return fmt.Errorf("invalid --ops value: %w", err)
		}
		ops = append(ops, op)
	}

	client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	board, err := newBoard(client, cfg, agent)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	s, err := mcpserver.New(board, agent, ops)
	if err != nil {
		return err
	}
	return mcpserver.Serve(s)
}
