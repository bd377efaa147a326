package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCommand is the agent CLI executable.
	DefaultCommand = "claude"

	// DefaultTimeout bounds a single invocation.
	DefaultTimeout = 15 * time.Minute

	// maxStderrSize is how much stderr is kept for error reports
	maxStderrSize = 64 * 1024

	// waitDelay bounds how long Wait blocks on output pipes after the process exits.
	waitDelay = 5 * time.Second
)

// maxLineSize is the largest single stream-json line accepted (10MB)
var maxLineSize = 10 * 1024 * 1024

// ClaudeConfig configures the claude CLI runner.
type ClaudeConfig struct {
	Command   string
	Model     string
	ExtraArgs []string
	Timeout   time.Duration

	// MCPConfig is a static --mcp-config file. Ignored when BoardCommand is set.
	MCPConfig string

	// BoardCommand launches the store's MCP server. When set, every invocation
	// with store operations gets a generated MCP config that runs it with
	// --agent <Options.AgentID> --ops <Options.StoreOperations>.
	BoardCommand []string
}

// ClaudeRunner invokes the claude CLI in print mode with stream-json output.
type ClaudeRunner struct {
	config ClaudeConfig
}

// NewClaudeRunner creates a runner, applying defaults for unset fields.
func NewClaudeRunner(cfg ClaudeConfig) *ClaudeRunner {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ClaudeRunner{config: cfg}
}

// Args builds the CLI arguments for one invocation.
func (r *ClaudeRunner) Args(prompt string, opts Options, mcpConfig string) []string {
	args := []string{"-p", prompt, "--output-format", "stream-json", "--verbose"}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(opts.AllowedTools, ","))
	}
	if mcpConfig != "" {
		args = append(args, "--mcp-config", mcpConfig)
	}
	if r.config.Model != "" {
		args = append(args, "--model", r.config.Model)
	}
	return append(args, r.config.ExtraArgs...)
}

// Invoke starts the CLI and returns a stream over its stdout.
// A non-zero exit surfaces from Recv as an error carrying stderr.
func (r *ClaudeRunner) Invoke(ctx context.Context, prompt string, opts Options) (Stream, error) {
	mcpConfig := r.config.MCPConfig
	var cleanup func()
	switch {
	case len(r.config.BoardCommand) == 0:
	case len(opts.StoreOperations) == 0:
		mcpConfig = ""
	default:
		path, err := writeMCPConfig(r.config.BoardCommand, opts.AgentID, opts.StoreOperations)
		if err != nil {
			return nil, err
		}
		mcpConfig = path
		cleanup = func() { os.Remove(path) }
	}

	execCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	cmd := exec.CommandContext(execCtx, r.config.Command, r.Args(prompt, opts, mcpConfig)...)
	cmd.Dir = opts.WorkDir
	cmd.WaitDelay = waitDelay

	stderr := &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrSize}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("failed to start %s: %w", r.config.Command, err)
	}

	log.Printf("[DEBUG] Started agent: command=%s agent=%s workdir=%s tools=%d", r.config.Command, opts.AgentID, opts.WorkDir, len(opts.AllowedTools))

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, min(64*1024, maxLineSize)), maxLineSize)

	return &processStream{
		cmd:     cmd,
		scanner: scanner,
		stderr:  stderr,
		ctx:     execCtx,
		cancel:  cancel,
		cleanup: cleanup,
		timeout: r.config.Timeout,
	}, nil
}

// processStream decodes a running CLI's stdout line by line.
type processStream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *limitedWriter
	ctx     context.Context
	cancel  context.CancelFunc
	cleanup func()
	timeout time.Duration

	done    bool
	waitErr error
	once    sync.Once
}

func (s *processStream) Recv() (Message, error) {
	if s.done {
		return Message{}, s.finalErr()
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := DecodeLine(line)
		if err != nil {
			log.Printf("[WARN] Skipping undecodable agent output: %v line=%s", err, truncate(string(line), 200))
			continue
		}
		if msg.Kind == KindResult && msg.IsError {
			s.stop(fmt.Errorf("agent reported an error: %s", truncate(strings.TrimSpace(msg.Text), 500)))
			return Message{}, s.finalErr()
		}
		return msg, nil
	}

	if scanErr := s.scanner.Err(); scanErr != nil {
		// The process may be blocked writing to the pipe we stopped reading.
		s.stop(fmt.Errorf("failed to read agent output: %w", scanErr))
		return Message{}, s.finalErr()
	}

	s.done = true
	s.waitErr = s.wait()
	return Message{}, s.finalErr()
}

// stop kills the process, reaps it and ends the stream with err.
func (s *processStream) stop(err error) {
	s.done = true
	s.cancel()
	if waitErr := s.wait(); waitErr != nil {
		log.Printf("[DEBUG] Agent stopped: %v", waitErr)
	}
	s.waitErr = err
}

func (s *processStream) finalErr() error {
	if s.waitErr != nil {
		return s.waitErr
	}
	return io.EOF
}

func (s *processStream) wait() error {
	err := s.cmd.Wait()
	if err == nil {
		return nil
	}
	if errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("agent timed out after %s", s.timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("agent exited with code %d: %s", exitErr.ExitCode(), truncate(strings.TrimSpace(s.stderr.String()), 500))
	}
	return err
}

// Close stops the process if it is still running and releases resources.
func (s *processStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		if !s.done {
			s.done = true
			s.waitErr = s.wait()
		}
		if s.cleanup != nil {
			s.cleanup()
		}
	})
	return nil
}

type mcpServerEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// writeMCPConfig writes a temporary --mcp-config file exposing ops of the store
// under the "romp" server name for one agent identity.
func writeMCPConfig(boardCommand []string, agentID string, ops []string) (string, error) {
	args := append([]string{}, boardCommand[1:]...)
	if agentID != "" {
		args = append(args, "--agent", agentID)
	}
	args = append(args, "--ops", strings.Join(ops, ","))
	config := map[string]map[string]mcpServerEntry{
		"mcpServers": {
			"romp": {Command: boardCommand[0], Args: args},
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal MCP config: %w", err)
	}

	f, err := os.CreateTemp("", "romp-mcp-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create MCP config: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write MCP config: %w", err)
	}
	return f.Name(), nil
}

// limitedWriter wraps a buffer and enforces a size limit.
// Once the limit is reached, further writes are discarded.
type limitedWriter struct {
	w       *bytes.Buffer
	limit   int
	written int
	mu      sync.Mutex
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return len(p), nil
	}
	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
	}
	n, err := lw.w.Write(toWrite)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

func (lw *limitedWriter) String() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.String()
}

// truncate truncates a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
