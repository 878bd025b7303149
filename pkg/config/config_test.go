package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize_MissingFile_UsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	mergeDefaults(cfg)
	assert.Equal(t, DefaultMaxConcurrentAgents, cfg.Orchestrator.MaxConcurrentAgents)
	assert.Equal(t, DefaultAutoApproveThreshold, cfg.Approval.AutoApproveThreshold)
}

func TestInitialize_RejectsMissingPrimaryModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
orchestrator:
  max_concurrent_agents: 5
`), 0o644))

	_, err := Initialize(context.Background(), path)
	assert.Error(t, err)
}

func TestInitialize_ExpandsEnvAndLoadsAgents(t *testing.T) {
	t.Setenv("VALIDATOR_ENDPOINT", "http://localhost:9001")
	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  primary_model: gemini-2.0-flash
agents:
  validator:
    backend: http
    endpoint: {{.VALIDATOR_ENDPOINT}}
    fallback_confidence: 0.4
`), 0o644))

	cfg, err := Initialize(context.Background(), path)
	require.NoError(t, err)
	require.True(t, cfg.HasAgent("validator"))
	def, err := cfg.GetAgent("validator")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9001", def.Endpoint)
	assert.Equal(t, "validator", def.Type)
}
