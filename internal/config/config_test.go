package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "romp.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
instance: review-bot
redis_url: redis://redis.internal:6380/2
agent_id: reviewer
runner:
  command: /usr/local/bin/claude
  model: sonnet
  timeout: 5m
  extra_args: ["--max-turns", "20"]
store:
  scope_mode: tree
  max_context_tokens: 8000
  delegation_timeouts:
    high: 30m
compliance: enforce
ledger:
  path: /tmp/romp.db
swarm:
  max_parallel: 2
  barrier_timeout: 45s
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "review-bot", config.Instance)
	assert.Equal(t, "redis://redis.internal:6380/2", config.RedisURL)
	assert.Equal(t, "reviewer", config.AgentID)
	assert.Equal(t, "/usr/local/bin/claude", config.Runner.Command)
	assert.Equal(t, "sonnet", config.Runner.Model)
	assert.Equal(t, 5*time.Minute, config.Runner.Timeout)
	assert.Equal(t, []string{"--max-turns", "20"}, config.Runner.ExtraArgs)
	assert.Equal(t, "tree", config.Store.ScopeMode)
	assert.Equal(t, 8000, config.Store.MaxContextTokens)
	assert.Equal(t, 30*time.Minute, config.Store.DelegationTimeouts.High)
	assert.Equal(t, 4*time.Hour, config.Store.DelegationTimeouts.Normal, "unset urgencies get defaults")
	assert.Equal(t, "enforce", config.Compliance)
	assert.Equal(t, "/tmp/romp.db", config.Ledger.Path)
	assert.Equal(t, 2, config.Swarm.MaxParallel)
	assert.Equal(t, 45*time.Second, config.Swarm.BarrierTimeout)

	opts, err := config.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "romp.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
	assert.Equal(t, "default", config.Instance)
	assert.Equal(t, "main", config.AgentID)
	assert.Equal(t, "claude", config.Runner.Command)
	assert.Equal(t, 15*time.Minute, config.Runner.Timeout)
	assert.Equal(t, "prefix", config.Store.ScopeMode)
	assert.Equal(t, 4000, config.Store.MaxContextTokens)
	assert.Equal(t, "warn", config.Compliance)
	assert.Equal(t, 1, config.Swarm.MaxParallel)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvRedisURL, "redis://override:6379/0")
	t.Setenv(EnvInstance, "from-env")
	t.Setenv(EnvAgentID, "env-agent")

	configPath := writeConfig(t, `version: "1.0"
instance: from-file
agent_id: file-agent
`)
	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "redis://override:6379/0", config.RedisURL)
	assert.Equal(t, "from-env", config.Instance)
	assert.Equal(t, "env-agent", config.AgentID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
store:
  - this is invalid
    yaml syntax
`)
	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_UnreadablePath(t *testing.T) {
	config, err := Load(t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		config   RompConfig
		expected string
	}{
		{"unsupported version", RompConfig{Version: "2.0"}, "unsupported version: 2.0"},
		{"bad instance", RompConfig{Instance: "a:b"}, "invalid instance name"},
		{"bad redis url", RompConfig{RedisURL: "http://nope"}, "invalid redis_url"},
		{"bad scope mode", RompConfig{Store: StoreConfig{ScopeMode: "glob"}}, "invalid store.scope_mode: glob"},
		{"negative tokens", RompConfig{Store: StoreConfig{MaxContextTokens: -1}}, "store.max_context_tokens must be > 0"},
		{"negative delegation timeout", RompConfig{Store: StoreConfig{DelegationTimeouts: DelegationTimeoutsConfig{Low: -time.Second}}}, "store.delegation_timeouts.low"},
		{"bad compliance", RompConfig{Compliance: "strict"}, "invalid compliance: strict"},
		{"negative runner timeout", RompConfig{Runner: RunnerConfig{Timeout: -time.Second}}, "runner.timeout must be positive"},
		{"bad max parallel", RompConfig{Swarm: SwarmConfig{MaxParallel: -1}}, "swarm.max_parallel must be >= 1"},
		{"negative barrier timeout", RompConfig{Swarm: SwarmConfig{BarrierTimeout: -time.Second}}, "swarm.barrier_timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestValidate_IsIdempotent(t *testing.T) {
	config := Default()
	before := *config
	require.NoError(t, config.Validate())
	assert.Equal(t, before, *config)
}
