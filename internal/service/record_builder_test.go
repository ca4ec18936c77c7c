package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gdp-bench/internal/model"
	"gdp-bench/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstance(withValues bool) *model.Instance {
	inst := &model.Instance{
		ID:     "inst-1",
		Name:   "model_test_1",
		Params: model.ModelParameters{NDimensions: 2, NClusters: 2, NPoints: 2, CoordRangeLower: 0, CoordRangeUpper: 1},
		Points: [][]float64{{0.1, 0.2}, {0.8, 0.9}},
	}
	if withValues {
		inst.LoadValues(&model.InstanceValues{
			CenterCoordinates: map[string]map[string]float64{
				"cluster_1": {"dim_1": 0.1, "dim_2": 0.2},
				"cluster_2": {"dim_1": 0.8, "dim_2": 0.9},
			},
			Distances: map[string]float64{"1": 0, "2": 0},
			Objective: model.Float(10),
		})
	}
	return inst
}

func testBuilder(s store.ResultStore) *RecordBuilder {
	b := NewRecordBuilder(s, &model.SysInfo{Platform: "linux"})
	b.now = func() time.Time { return time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC) }
	return b
}

func readArtifact(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestRecordBuilder_RelaxationGapAsymmetry(t *testing.T) {
	ctx := context.Background()
	mem := &store.MemoryStore{}
	b := testBuilder(mem)
	dir := t.TempDir()

	cfg := model.RunConfig{ModelName: "model_test_1", Strategy: "gdp.bigm", Solver: "gams", Subsolver: "gurobi", Mode: "no_mode"}
	abs, rel := PairGap(model.Float(10), model.Float(8))
	gap := &model.RelaxationGapRecord{AbsoluteGap: abs, RelativeGap: rel}

	orig, err := b.Build(ctx, BuildInput{
		Config:         cfg,
		Instance:       testInstance(true),
		Metadata:       model.ResultMetadata{TerminationCondition: "optimal", SolverStatus: "ok", BestObjectiveBound: model.Float(9.5)},
		Duration:       3.5,
		RootRelaxation: model.Float(8),
		RelaxationGap:  gap,
		ResultsDir:     filepath.Join(dir, "original"),
	})
	require.NoError(t, err)

	relax, err := b.Build(ctx, BuildInput{
		Config:        cfg,
		Instance:      testInstance(true),
		Metadata:      model.ResultMetadata{TerminationCondition: "optimal", SolverStatus: "ok"},
		Duration:      0.5,
		IsRelaxation:  true,
		RelaxationGap: gap,
		ResultsDir:    filepath.Join(dir, "relaxed"),
	})
	require.NoError(t, err)

	require.Len(t, mem.Rows, 2)
	o, r := mem.Rows[0], mem.Rows[1]
	assert.Equal(t, model.ProblemOriginal, o.ProblemType)
	require.NotNil(t, o.RelativeGap)
	require.NotNil(t, o.AbsoluteGap)
	assert.Equal(t, 20.0, *o.RelativeGap)
	assert.Equal(t, 2.0, *o.AbsoluteGap)
	assert.Equal(t, model.ProblemRelaxation, r.ProblemType)
	assert.Nil(t, r.RelativeGap)
	assert.Nil(t, r.AbsoluteGap)

	assert.Equal(t, "2024-10-14 12:00:00", o.RunTime)
	assert.Equal(t, "optimal", o.Status)
	assert.Equal(t, 9.5, *o.LowerBound)
	assert.Equal(t, 0.5, *o.BoundAbsoluteGap)
	assert.InDelta(t, 5.0, *o.BoundRelativeGap, 1e-12)
	assert.Equal(t, 20.0, *o.RootRelaxationGap)
	assert.Equal(t, "cluster_1_dim_1=0.100000, cluster_1_dim_2=0.200000, cluster_2_dim_1=0.800000, cluster_2_dim_2=0.900000", o.CenterCoordinates)
	assert.Equal(t, "d1=0.000000, d2=0.000000", o.Distances)

	origJSON := readArtifact(t, orig.ArtifactPath)
	perf := origJSON["performance"].(map[string]interface{})
	assert.Equal(t, 20.0, perf["relaxation_gap_percent"])
	assert.Equal(t, 2.0, perf["absolute_gap"])
	assert.Equal(t, "gurobi", perf["subsolver"])
	assert.Contains(t, origJSON, "system")
	assert.Equal(t, "solution_data_original.json", filepath.Base(orig.ArtifactPath))

	relaxJSON := readArtifact(t, relax.ArtifactPath)
	relaxPerf := relaxJSON["performance"].(map[string]interface{})
	assert.NotContains(t, relaxPerf, "relaxation_gap_percent")
	assert.NotContains(t, relaxPerf, "absolute_gap")
	assert.Equal(t, true, relaxPerf["is_relaxation"])
}

func TestRecordBuilder_OriginalWithoutCompanionHasNullGapKeys(t *testing.T) {
	mem := &store.MemoryStore{}
	res, err := testBuilder(mem).Build(context.Background(), BuildInput{
		Config:     model.RunConfig{ModelName: "m", Strategy: "gdp.hull", Solver: "scip"},
		Instance:   testInstance(true),
		Metadata:   model.ResultMetadata{TerminationCondition: "optimal"},
		ResultsDir: t.TempDir(),
	})
	require.NoError(t, err)

	perf := readArtifact(t, res.ArtifactPath)["performance"].(map[string]interface{})
	v, ok := perf["relaxation_gap_percent"]
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Nil(t, perf["subsolver"])
	assert.Nil(t, mem.Rows[0].RelativeGap)
}

func TestRecordBuilder_ExtractionFailure(t *testing.T) {
	mem := &store.MemoryStore{}
	res, err := testBuilder(mem).Build(context.Background(), BuildInput{
		Config:   model.RunConfig{ModelName: "m", Strategy: "gdp.bigm", Solver: "gams", Subsolver: "baron"},
		Instance: testInstance(false),
		Metadata: model.ResultMetadata{TerminationCondition: "maxTimeLimit", DualBound: model.Float(4)},
		Duration: 1800,
	})
	require.NoError(t, err)
	assert.Empty(t, res.ArtifactPath)

	require.Len(t, mem.Rows, 1)
	row := mem.Rows[0]
	assert.Equal(t, "maxTimeLimit", row.Status)
	assert.Nil(t, row.ObjectiveValue)
	assert.Equal(t, 4.0, *row.LowerBound)
	assert.Nil(t, row.BoundAbsoluteGap)
	assert.Nil(t, row.BoundRelativeGap)
	assert.Empty(t, row.CenterCoordinates)
	assert.Empty(t, row.Distances)
}

func TestRecordBuilder_NonOptimalWithValues(t *testing.T) {
	mem := &store.MemoryStore{}
	_, err := testBuilder(mem).Build(context.Background(), BuildInput{
		Config:   model.RunConfig{ModelName: "m", Strategy: "gdp.bigm", Solver: "gams", Subsolver: "gurobi"},
		Instance: testInstance(true),
		Metadata: model.ResultMetadata{TerminationCondition: "maxTimeLimit", ProblemLowerBound: model.Float(8)},
		Duration: 1800,
	})
	require.NoError(t, err)
	row := mem.Rows[0]
	require.NotNil(t, row.ObjectiveValue)
	assert.Equal(t, 10.0, *row.ObjectiveValue)
	assert.Equal(t, 2.0, *row.BoundAbsoluteGap)
	assert.Equal(t, 20.0, *row.BoundRelativeGap)
}
