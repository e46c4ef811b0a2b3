package main

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kafji.net/penbridge/penbridge/config"
)

func parse(t *testing.T, args ...string) *CLI {
	t.Helper()
	var cli CLI
	p, err := kong.New(&cli, kong.Name("penbridge"))
	require.NoError(t, err)
	_, err = p.Parse(args)
	require.NoError(t, err)
	return &cli
}

func TestNoArgsRunsOnDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cli := parse(t)
	cfg, err := config.ReadConfig(cli.Config)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestFlagsOverrideConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cli := parse(t, "--host", "root@192.168.1.20", "-s", "2.5", "--flip", "--no-uniform-scaling", "--mode", "pen")
	cfg, err := config.ReadConfig(cli.Config)
	require.NoError(t, err)
	cli.apply(cfg)

	assert.Equal(t, "root@192.168.1.20", cfg.Device.Address)
	assert.Equal(t, 2.5, cfg.Mapping.Sensitivity)
	assert.False(t, cfg.Mapping.Flip)
	assert.False(t, cfg.Mapping.UniformScaling)
	assert.Equal(t, "pen", cfg.Output.Mode)
}
