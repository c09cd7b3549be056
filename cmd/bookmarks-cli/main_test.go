package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFailureStopsCommand(t *testing.T) {
	c := &cli{v: viper.New()}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")

	c.bind("db_path", flags.Lookup("db"))
	require.NoError(t, c.bindErr)
	c.bind("listen_addr", flags.Lookup("listen"))

	err := c.load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_addr")
	assert.Nil(t, c.cfg)
}

func TestBoundFlagOverridesFile(t *testing.T) {
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("db_path: /from/file.db\nlog_level: warn\n"), 0o600))

	c := &cli{v: viper.New(), cfgFile: cfgFile}
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	c.bind("db_path", flags.Lookup("db"))
	require.NoError(t, flags.Parse([]string{"--db", "/from/flag.db"}))

	require.NoError(t, c.load())
	assert.Equal(t, "/from/flag.db", c.cfg.DBPath)
	assert.Equal(t, "warn", c.cfg.LogLevel)
}

func TestRootCommandBindsFlags(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"config", "db", "server", "log-level"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.NotNil(t, serve.Flags().Lookup("listen"))
}
