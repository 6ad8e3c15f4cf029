package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"serve", "migrate", "--config"} {
		assert.Contains(t, output, sub)
	}
}

func TestServeFlags(t *testing.T) {
	cmd := NewServeCmd()
	for _, name := range []string{"server-port", "log-level", "database-url"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing --%s", name)
	}
}

func TestConfigFlag(t *testing.T) {
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config=/etc/accountd.yaml", "--help"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/etc/accountd.yaml", configFile)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	configFile = ""
	t.Setenv("JWT_SECRET", "migrate-secret-migrate-secret")
	t.Setenv("DATABASE_URL", "")

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
