package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyluth/romp/internal/config"
	"github.com/dyluth/romp/internal/git"
	"github.com/dyluth/romp/internal/ledger"
	"github.com/dyluth/romp/internal/orchestrator"
	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/runner"
	"github.com/dyluth/romp/internal/stage"
	"github.com/dyluth/romp/internal/store"
	"github.com/dyluth/romp/pkg/blackboard"
)

func loadConfig() (*config.RompConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": configPath},
			[]string{"Fix the file, or remove it to run with defaults"},
		)
	}
	return cfg, nil
}

// connect opens the blackboard named by cfg and verifies Redis is reachable.
func connect(ctx context.Context, cfg *config.RompConfig) (*blackboard.Client, error) {
	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := blackboard.NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.RedisURL),
			map[string]string{"Instance": cfg.Instance},
			[]string{
				"Start Redis locally:\n  docker run -d -p 6379:6379 redis:7-alpine",
				fmt.Sprintf("Point romp at another server:\n  export %s=redis://host:6379/0", config.EnvRedisURL),
			},
		)
	}
	return client, nil
}

func newBoard(client *blackboard.Client, cfg *config.RompConfig, agentID string) (*store.Board, error) {
	return store.NewBoard(client, store.Options{
		AgentID:          agentID,
		ScopeMode:        blackboard.ScopeMode(cfg.Store.ScopeMode),
		MaxContextTokens: cfg.Store.MaxContextTokens,
		DelegationTimeouts: store.DelegationTimeouts{
			High:   cfg.Store.DelegationTimeouts.High,
			Normal: cfg.Store.DelegationTimeouts.Normal,
			Low:    cfg.Store.DelegationTimeouts.Low,
		},
	})
}

// boardCommand is how an agent runner launches this binary's MCP server.
func boardCommand() ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate romp executable: %w", err)
	}
	// Agents run in their work directory, so the config must not be relative.
	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return []string{exe, "--config", absConfig, "board"}, nil
}

// runEnv is everything a review or swarm run needs.
type runEnv struct {
	cfg    *config.RompConfig
	client *blackboard.Client
	board  *store.Board
	ledger *ledger.Ledger
}

func openRunEnv(ctx context.Context) (*runEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	board, err := newBoard(client, cfg, cfg.AgentID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	env := &runEnv{cfg: cfg, client: client, board: board}
	if l, err := ledger.Open(cfg.Ledger.Path); err != nil {
		printer.Warning("Run ledger unavailable, continuing without it: %v\n", err)
	} else {
		env.ledger = l
	}
	return env, nil
}

func (e *runEnv) Close() {
	if e.ledger != nil {
		e.ledger.Close()
	}
	e.client.Close()
}

// orchestratorConfig builds the shared run configuration. verbose prints every
// agent message as it arrives.
func (e *runEnv) orchestratorConfig(workDir string, verbose bool) (orchestrator.Config, error) {
	boardCmd, err := boardCommand()
	if err != nil {
		return orchestrator.Config{}, err
	}
	if e.cfg.Runner.MCPConfig != "" {
		boardCmd = nil
	}

	claude := runner.NewClaudeRunner(runner.ClaudeConfig{
		Command:      e.cfg.Runner.Command,
		Model:        e.cfg.Runner.Model,
		ExtraArgs:    e.cfg.Runner.ExtraArgs,
		Timeout:      e.cfg.Runner.Timeout,
		MCPConfig:    e.cfg.Runner.MCPConfig,
		BoardCommand: boardCmd,
	})

	var hook stage.MessageHook
	if verbose {
		hook = func(s stage.Stage, msg runner.Message) {
			printer.Detail("%s/%s %s", s.Agent, s.Name, printer.Preview(runner.Summarize(msg), 160))
		}
	}

	cfg := orchestrator.Config{
		Executor:     stage.NewExecutor(claude, hook),
		Auditor:      e.board,
		Compliance:   orchestrator.ComplianceMode(e.cfg.Compliance),
		Reporter:     printerReporter{},
		InstanceName: e.cfg.Instance,
		WorkDir:      workDir,
	}
	if e.ledger != nil {
		cfg.Recorder = e.ledger
	}
	return cfg, nil
}

// reportCommit names the commit agents will read. Outside a Git repository it
// prints nothing.
func reportCommit(workDir string) {
	desc := git.NewChecker(workDir).Describe()
	switch {
	case desc == "":
	case strings.HasSuffix(desc, git.UncommittedSuffix):
		printer.Warning("Reviewing %s: agents will also read files that are not committed\n", desc)
	default:
		printer.Step("Reviewing commit %s\n", desc)
	}
}
