package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where romp looks for its configuration.
const DefaultPath = "romp.yml"

// Environment variables that override file settings.
const (
	EnvRedisURL = "ROMP_REDIS_URL"
	EnvInstance = "ROMP_INSTANCE"
	EnvAgentID  = "ROMP_AGENT_ID"
)

const (
	defaultVersion          = "1.0"
	defaultInstance         = "default"
	defaultRedisURL         = "redis://localhost:6379/0"
	defaultAgentID          = "main"
	defaultCommand          = "claude"
	defaultRunnerTimeout    = 15 * time.Minute
	defaultScopeMode        = "prefix"
	defaultMaxContextTokens = 4000
	defaultCompliance       = "warn"
	defaultLedgerPath       = ".romp/ledger.db"
	defaultMaxParallel      = 1
	defaultBarrierTimeout   = 2 * time.Minute
)

// RompConfig represents the top-level romp.yml configuration
type RompConfig struct {
	Version  string `yaml:"version"`
	Instance string `yaml:"instance,omitempty"` // Namespaces every Redis key
	RedisURL string `yaml:"redis_url,omitempty"`
	AgentID  string `yaml:"agent_id,omitempty"` // Identity of the review pipeline's agent

	Runner     RunnerConfig `yaml:"runner,omitempty"`
	Store      StoreConfig  `yaml:"store,omitempty"`
	Compliance string       `yaml:"compliance,omitempty"` // off, warn or enforce
	Ledger     LedgerConfig `yaml:"ledger,omitempty"`
	Swarm      SwarmConfig  `yaml:"swarm,omitempty"`
}

// RunnerConfig specifies how agents are invoked
type RunnerConfig struct {
	Command   string        `yaml:"command,omitempty"`
	Model     string        `yaml:"model,omitempty"`
	MCPConfig string        `yaml:"mcp_config,omitempty"` // Explicit MCP config file; generated per agent when empty
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	ExtraArgs []string      `yaml:"extra_args,omitempty"`
}

// StoreConfig tunes the shared store
type StoreConfig struct {
	ScopeMode          string                   `yaml:"scope_mode,omitempty"` // prefix or tree
	MaxContextTokens   int                      `yaml:"max_context_tokens,omitempty"`
	DelegationTimeouts DelegationTimeoutsConfig `yaml:"delegation_timeouts,omitempty"`
}

// DelegationTimeoutsConfig maps urgency to how long a delegation stays open
type DelegationTimeoutsConfig struct {
	High   time.Duration `yaml:"high,omitempty"`
	Normal time.Duration `yaml:"normal,omitempty"`
	Low    time.Duration `yaml:"low,omitempty"`
}

// LedgerConfig locates the run audit database
type LedgerConfig struct {
	Path string `yaml:"path,omitempty"`
}

// SwarmConfig controls multi-agent runs
type SwarmConfig struct {
	MaxParallel    int           `yaml:"max_parallel,omitempty"`
	BarrierTimeout time.Duration `yaml:"barrier_timeout,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *RompConfig {
	cfg := &RompConfig{Version: defaultVersion}
	// Defaults always validate.
	_ = cfg.Validate()
	return cfg
}

// Validate applies defaults, then checks every value
func (c *RompConfig) Validate() error {
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.Version != defaultVersion {
		return fmt.Errorf("unsupported version: %s (expected: %s)", c.Version, defaultVersion)
	}

	if c.Instance == "" {
		c.Instance = defaultInstance
	}
	if strings.ContainsAny(c.Instance, ": ") {
		return fmt.Errorf("invalid instance name %q: must not contain ':' or spaces", c.Instance)
	}
	if c.RedisURL == "" {
		c.RedisURL = defaultRedisURL
	}
	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}
	if c.AgentID == "" {
		c.AgentID = defaultAgentID
	}

	if c.Runner.Command == "" {
		c.Runner.Command = defaultCommand
	}
	if c.Runner.Timeout == 0 {
		c.Runner.Timeout = defaultRunnerTimeout
	}
	if c.Runner.Timeout < 0 {
		return fmt.Errorf("runner.timeout must be positive, got %s", c.Runner.Timeout)
	}

	if c.Store.ScopeMode == "" {
		c.Store.ScopeMode = defaultScopeMode
	}
	if c.Store.ScopeMode != "prefix" && c.Store.ScopeMode != "tree" {
		return fmt.Errorf("invalid store.scope_mode: %s (must be 'prefix' or 'tree')", c.Store.ScopeMode)
	}
	if c.Store.MaxContextTokens == 0 {
		c.Store.MaxContextTokens = defaultMaxContextTokens
	}
	if c.Store.MaxContextTokens < 0 {
		return fmt.Errorf("store.max_context_tokens must be > 0, got %d", c.Store.MaxContextTokens)
	}
	dt := &c.Store.DelegationTimeouts
	for name, d := range map[string]*time.Duration{"high": &dt.High, "normal": &dt.Normal, "low": &dt.Low} {
		if *d < 0 {
			return fmt.Errorf("store.delegation_timeouts.%s must be positive, got %s", name, *d)
		}
	}
	if dt.High == 0 {
		dt.High = time.Hour
	}
	if dt.Normal == 0 {
		dt.Normal = 4 * time.Hour
	}
	if dt.Low == 0 {
		dt.Low = 24 * time.Hour
	}

	if c.Compliance == "" {
		c.Compliance = defaultCompliance
	}
	if c.Compliance != "off" && c.Compliance != "warn" && c.Compliance != "enforce" {
		return fmt.Errorf("invalid compliance: %s (must be 'off', 'warn' or 'enforce')", c.Compliance)
	}

	if c.Ledger.Path == "" {
		c.Ledger.Path = defaultLedgerPath
	}

	if c.Swarm.MaxParallel == 0 {
		c.Swarm.MaxParallel = defaultMaxParallel
	}
	if c.Swarm.MaxParallel < 1 {
		return fmt.Errorf("swarm.max_parallel must be >= 1, got %d", c.Swarm.MaxParallel)
	}
	if c.Swarm.BarrierTimeout == 0 {
		c.Swarm.BarrierTimeout = defaultBarrierTimeout
	}
	if c.Swarm.BarrierTimeout < 0 {
		return fmt.Errorf("swarm.barrier_timeout must be positive, got %s", c.Swarm.BarrierTimeout)
	}

	return nil
}

// RedisOptions parses RedisURL into client options.
func (c *RompConfig) RedisOptions() (*redis.Options, error) {
	return redis.ParseURL(c.RedisURL)
}

// Load reads romp.yml from path, applies environment overrides and validates
// the result. A missing file yields the defaults.
func Load(path string) (*RompConfig, error) {
	var config RompConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		config.Version = defaultVersion
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *RompConfig) applyEnv() {
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvInstance); v != "" {
		c.Instance = v
	}
	if v := os.Getenv(EnvAgentID); v != "" {
		c.AgentID = v
	}
}
