package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gdp-bench/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSolver_Unsupported(t *testing.T) {
	s := NewCommandSolver(map[string]config.SolverConfig{})
	inst, err := BuildInstance(2, 2, 2, 0, 1, nil)
	require.NoError(t, err)
	_, err = s.Solve(context.Background(), inst, SolveRequest{Solver: "cplex", WorkDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrUnsupportedSolver)
}

func TestCommandSolver_ReadsResultFile(t *testing.T) {
	script := `echo "solving {strategy} with {subsolver} relax={relax}"
cat > result.json <<'JSON'
{"metadata": {"termination_condition": "optimal", "solver_status": "ok", "dual_bound": 1.5},
 "values": {"center_coordinates": {"cluster_1": {"dim_1": 0.25}}, "distances": {"1": 0.1}, "objective_value": 1.5}}
JSON`
	s := NewCommandSolver(map[string]config.SolverConfig{
		"gams": {Command: "sh", Args: []string{"-c", script}, GraceSeconds: 30},
	})
	inst, err := BuildInstance(1, 1, 1, 0, 1, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	resp, err := s.Solve(context.Background(), inst, SolveRequest{
		Solver: "gams", Subsolver: "gurobi", Strategy: "gdp.bigm", TimeLimit: 10, WorkDir: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Log, "solving gdp.bigm with gurobi relax=false")
	assert.Equal(t, "optimal", resp.Metadata.TerminationCondition)
	assert.Equal(t, 1.5, *resp.Metadata.DualBound)
	assert.FileExists(t, filepath.Join(dir, solverModelFile))

	obj, err := inst.Objective()
	require.NoError(t, err)
	assert.Equal(t, 1.5, obj)
	centers, err := inst.CenterCoordinates()
	require.NoError(t, err)
	assert.Equal(t, 0.25, centers["cluster_1"]["dim_1"])
}

func TestCommandSolver_CommandFailsWithoutResult(t *testing.T) {
	s := NewCommandSolver(map[string]config.SolverConfig{
		"scip": {Command: "sh", Args: []string{"-c", "echo broken; exit 3"}},
	})
	inst, err := BuildInstance(1, 1, 1, 0, 1, nil)
	require.NoError(t, err)
	_, err = s.Solve(context.Background(), inst, SolveRequest{Solver: "scip", TimeLimit: 10, WorkDir: t.TempDir()})
	assert.Error(t, err)
}

func TestCommandSolver_KilledAtDeadline(t *testing.T) {
	s := NewCommandSolver(map[string]config.SolverConfig{
		"scip": {Command: "sh", Args: []string{"-c", "exec sleep 30"}, GraceSeconds: 1},
	})
	inst, err := BuildInstance(1, 1, 1, 0, 1, nil)
	require.NoError(t, err)
	resp, err := s.Solve(context.Background(), inst, SolveRequest{Solver: "scip", TimeLimit: 0, WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "maxTimeLimit", resp.Metadata.TerminationCondition)
	assert.Less(t, resp.Duration, 20.0)
}

func TestExpandArgs(t *testing.T) {
	args := expandArgs([]string{"--relax={relax}", "{model}", "{time_limit}", "{subsolver}"},
		SolveRequest{TimeLimit: 30, Relax: true, WorkDir: "/w"}, "/w/model.json")
	assert.Equal(t, []string{"--relax=true", "/w/model.json", "30", "direct"}, args)
}

func TestSaveAndLoadInstance(t *testing.T) {
	dir := t.TempDir()
	inst, err := BuildInstance(2, 3, 4, -1, 1, nil)
	require.NoError(t, err)
	inst.Name = "model_x_1"
	path, err := SaveInstance(dir, inst)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadInstance(dir, "model_x_1.json")
	require.NoError(t, err)
	assert.Equal(t, inst.ID, loaded.ID)
	assert.Equal(t, inst.Points, loaded.Points)
	assert.Equal(t, []int{1, 2, 3}, loaded.Clusters())
}
