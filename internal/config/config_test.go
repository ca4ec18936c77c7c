package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_AppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
experiment:
  data_dir: /tmp/gdp
  time_limit: 300
  strategies: [gdp.bigm, gdp.hull_exact]
  solver_configs:
    - solver: gams
      subsolver: baron
solvers:
  gams:
    command: gams-runner
    args: ["--model", "{model}"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Experiment.TimeLimit)
	assert.Equal(t, 1e-4, cfg.Experiment.ObjTolerance)
	assert.Equal(t, "no_mode", cfg.Experiment.Mode)
	assert.Equal(t, "/tmp/gdp/archive", cfg.Experiment.ArchiveDir)
	assert.Equal(t, []string{"gdp.bigm", "gdp.hull_exact"}, cfg.Experiment.Strategies)
	assert.Equal(t, "baron", cfg.Experiment.SolverConfigs[0].Subsolver)
	assert.Equal(t, 30, cfg.Solvers["gams"].GraceSeconds)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 1800, cfg.Experiment.TimeLimit)
	assert.Equal(t, "gurobi", cfg.Experiment.SolverConfigs[0].Subsolver)
}
