package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/gridpilot/internal/controlplane"
	"github.com/voluzi/gridpilot/internal/pipeline"
)

func TestLoadFileWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile("", "kubernetes")
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultPolicies(), cfg.Policies)
	assert.Equal(t, pipeline.DefaultResources("kubernetes"), cfg.Resources)
}

func TestDecodeOverridesOnlyGivenKeys(t *testing.T) {
	cfg := Default("kubernetes")
	err := cfg.Decode(`
[policies.deployment]
max_attempts = 20
interval = "2s"

[policies.health]
max_attempts = 30
`)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Policies.Deployment.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Policies.Deployment.Interval)
	assert.Equal(t, 3, cfg.Policies.Deployment.MaxCycles)
	assert.Equal(t, 30, cfg.Policies.Health.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Policies.Health.Interval)
	assert.Equal(t, pipeline.DefaultPolicies().Service, cfg.Policies.Service)
}

func TestDecodeResources(t *testing.T) {
	cfg := Default("kubernetes")
	err := cfg.Decode(`
[[resources.deployments]]
kind = "deploy"
name = "selenium-hub"
path = "grid/hub.yaml"

[resources.hpa]
kind = "HorizontalPodAutoscaler"
name = "chrome-node-hpa"
path = "grid/hpa.yaml"
`)
	require.NoError(t, err)
	require.Len(t, cfg.Resources.Deployments, 1)
	assert.Equal(t, controlplane.KindDeployment, cfg.Resources.Deployments[0].Kind)
	assert.Equal(t, "grid/hub.yaml", cfg.Resources.Deployments[0].DefinitionPath)
	assert.Equal(t, "grid/hpa.yaml", cfg.Resources.HPA.DefinitionPath)
	assert.Len(t, cfg.Resources.Services, 2)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", "[policies"},
		{"unknown key", "[policies.service]\nretries = 3\n"},
		{"invalid policy", "[policies.hpa]\nmax_attempts = 0\n"},
		{"zero cycles", "[policies.deployment]\nmax_cycles = 0\n"},
		{"unknown kind", "[resources.hpa]\nkind = \"Pod\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Default("kubernetes").Decode(tt.data)
			assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridpilot.toml")
	require.NoError(t, os.WriteFile(path, []byte("[policies.service]\nmax_attempts = 4\n"), 0o644))

	cfg, err := LoadFile(path, "manifests")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Policies.Service.MaxAttempts)
	assert.Equal(t, filepath.Join("manifests", "services", "chrome-node.yaml"), cfg.Resources.Services[0].DefinitionPath)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"), "manifests")
	assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default("kubernetes")
	cfg.Policies.Deployment.MaxCycles = 5

	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, data, "max_cycles = 5")

	decoded := &Config{}
	require.NoError(t, decoded.Decode(data))
	assert.Equal(t, cfg, decoded)
}
