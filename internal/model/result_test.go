package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSolveStatus(t *testing.T) {
	cases := map[string]SolveStatus{
		"optimal":               StatusOptimal,
		"maxTimeLimit":          StatusTimeout,
		"infeasible":            StatusInfeasible,
		"infeasibleOrUnbounded": StatusInfeasible,
		"solverFailure":         StatusError,
		"internalSolverError":   StatusError,
		"":                      StatusUnknown,
		"other":                 StatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSolveStatus(in), in)
	}
}

func TestResultMetadata_BoundPriority(t *testing.T) {
	m := ResultMetadata{SolverLowerBound: Float(1), BestObjectiveBound: Float(2)}
	require.NotNil(t, m.Bound())
	assert.Equal(t, 2.0, *m.Bound())

	m.ProblemLowerBound = Float(3)
	assert.Equal(t, 3.0, *m.Bound())

	m.DualBound = Float(4)
	assert.Equal(t, 4.0, *m.Bound())

	assert.Nil(t, ResultMetadata{}.Bound())
}

func TestSolverCombo(t *testing.T) {
	assert.Equal(t, "gams_gurobi", SolverCombo("gams", "gurobi"))
	assert.Equal(t, "scip_direct", SolverCombo("scip", ""))
	assert.Equal(t, "scip_direct", ResultRow{Solver: "scip", Subsolver: "None"}.SolverCombo())
}

func TestFilterOriginal(t *testing.T) {
	rows := []ResultRow{
		{ModelName: "a", ProblemType: ProblemOriginal},
		{ModelName: "a", ProblemType: ProblemRelaxation},
		{ModelName: "b", ProblemType: ProblemOriginal},
	}
	got := FilterOriginal(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].ModelName)
}

func TestInstance_ValuesRequired(t *testing.T) {
	inst := &Instance{Params: ModelParameters{NDimensions: 1, NClusters: 2, NPoints: 2}}
	_, err := inst.CenterCoordinates()
	assert.ErrorIs(t, err, ErrNoValues)

	inst.LoadValues(&InstanceValues{
		CenterCoordinates: map[string]map[string]float64{
			"cluster_1": {"dim_1": 0.5},
		},
		Distances: map[string]float64{"1": 0.1, "2": 0.2},
		Objective: Float(0.3),
	})
	_, err = inst.CenterCoordinates()
	assert.ErrorIs(t, err, ErrNoValues)

	d, err := inst.Distances()
	require.NoError(t, err)
	assert.Len(t, d, 2)

	obj, err := inst.Objective()
	require.NoError(t, err)
	assert.Equal(t, 0.3, obj)
}
