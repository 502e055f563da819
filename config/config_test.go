package config_test

import (
	"testing"

	"flow-trainer/config"

	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/stretchr/testify/require"
)

const testYaml = `
database_url: postgres://registry/flow?sslmode=disable
output_root: /var/lib/flowtrain
artifact_bucket: flow-artifacts
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(nil)
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, "outputs", cfg.OutputRoot)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.RegistryEnabled())
	require.False(t, cfg.OffloadEnabled())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(rawbytes.Provider([]byte(testYaml)))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/flowtrain", cfg.OutputRoot)
	require.Equal(t, "flow-artifacts", cfg.ArtifactBucket)
	require.Equal(t, "8080", cfg.ServerPort)
	require.True(t, cfg.RegistryEnabled())
	require.True(t, cfg.OffloadEnabled())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("FLOWTRAIN_OUTPUT_ROOT", "/tmp/runs")
	t.Setenv("FLOWTRAIN_SERVER_PORT", "9090")

	cfg, err := config.LoadFrom(rawbytes.Provider([]byte(testYaml)))
	require.NoError(t, err)
	require.Equal(t, "/tmp/runs", cfg.OutputRoot)
	require.Equal(t, "9090", cfg.ServerPort)
	require.Equal(t, "flow-artifacts", cfg.ArtifactBucket)
}
