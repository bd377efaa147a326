package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardCommand_UsesAbsoluteConfigPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configPath = "romp.yml"
	t.Cleanup(resetFlags)

	args, err := boardCommand()
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, "--config", args[1])
	assert.True(t, filepath.IsAbs(args[2]), "config path %q is relative", args[2])
	assert.Equal(t, "romp.yml", filepath.Base(args[2]))
	assert.Equal(t, "board", args[3])
}
