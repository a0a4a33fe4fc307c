// Test Type: Unit Test
// Description: Smoke tests for the CLI wiring - command registration and
// commands that need no on-disk state

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := NewRootCmd()

	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{
		"check", "sync", "pullback", "install", "uninstall",
		"enable", "disable", "status", "info", "prune",
		"genconfig", "version", "completion",
	} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_NoArgsIsError(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(nil)

	err := root.Execute()
	require.Error(t, err)
}

func TestGenConfig_PrintsStarter(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"genconfig"})

	// genconfig without --write only prints; no state is touched.
	require.NoError(t, root.Execute())
}

func TestCompletion_Bash(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"completion", "bash"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "agentsync")
}
