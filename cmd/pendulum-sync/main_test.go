package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppCommands(t *testing.T) {
	app := newApp()
	require.NotNil(t, app.Action, "running without a subcommand performs a full sync")

	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
		assert.NotNil(t, cmd.Action, cmd.Name)
	}
	assert.Equal(t, []string{"run", "download", "mirror", "report", "serve"}, names)

	var flags []string
	for _, f := range app.Flags {
		flags = append(flags, f.Names()[0])
	}
	assert.ElementsMatch(t, []string{"log-level", "workers"}, flags)
}
