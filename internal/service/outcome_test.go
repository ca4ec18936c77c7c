package service

import (
	"math"
	"testing"

	"gdp-bench/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(modelName, strategy, status string, obj *float64, duration float64) model.ResultRow {
	return model.ResultRow{
		ModelName:      modelName,
		Strategy:       strategy,
		Status:         status,
		ObjectiveValue: obj,
		Duration:       duration,
		ProblemType:    model.ProblemOriginal,
		Solver:         "gams",
		Subsolver:      "gurobi",
		Mode:           "no_mode",
	}
}

func outcomeFixture() []model.ResultRow {
	return []model.ResultRow{
		row("m1", "gdp.bigm", "optimal", model.Float(10), 5),
		row("m1", "gdp.hull", "optimal", model.Float(10.00001), 7),
		row("m1", "gdp.hull_exact", "optimal", model.Float(12), 3),
		row("m2", "gdp.bigm", "maxTimeLimit", model.Float(30), 1800),
		row("m2", "gdp.hull", "optimal", model.Float(20), 100),
		row("m2", "gdp.hull_exact", "infeasible", nil, 2),
		row("m3", "gdp.bigm", "solverFailure", nil, 1),
		row("m3", "gdp.hull", "optimal", model.Float(5), 1900),
		// 松弛行不参与分析
		{ModelName: "m4", Strategy: "gdp.bigm", Status: "optimal", ObjectiveValue: model.Float(1), ProblemType: model.ProblemRelaxation},
	}
}

func TestGroundTruth_IsMinimumOfOptimalRows(t *testing.T) {
	rows := outcomeFixture()
	gt := GroundTruth(model.FilterOriginal(rows))
	assert.Equal(t, 10.0, gt["m1"])
	assert.Equal(t, 20.0, gt["m2"])
	assert.Equal(t, 5.0, gt["m3"])
	assert.NotContains(t, gt, "m4")

	for _, r := range model.FilterOriginal(rows) {
		if model.ParseSolveStatus(r.Status) == model.StatusOptimal && r.ObjectiveValue != nil {
			assert.LessOrEqual(t, gt[r.ModelName], *r.ObjectiveValue)
		}
	}
}

func TestClassifyRow_Tolerance(t *testing.T) {
	r := row("m", "gdp.bigm", "optimal", model.Float(10.0), 1)
	gt := map[string]float64{"m": 10.00005}

	assert.Equal(t, model.OutcomeOptimal, ClassifyRow(r, gt, 1800, 1e-4))
	assert.Equal(t, model.OutcomeWrongOptimal, ClassifyRow(r, gt, 1800, 1e-6))
}

func TestClassifyRow_TimeoutOverridesEverything(t *testing.T) {
	gt := map[string]float64{"m": 10}
	for _, status := range []string{"optimal", "infeasible", "solverFailure", "", "maxTimeLimit"} {
		for _, obj := range []*float64{nil, model.Float(10), model.Float(99)} {
			r := row("m", "gdp.bigm", status, obj, 1800)
			assert.Equal(t, model.OutcomeTimeout, ClassifyRow(r, gt, 1800, 1e-4), status)
			r.Duration = 5000
			assert.Equal(t, model.OutcomeTimeout, ClassifyRow(r, gt, 1800, 1e-4), status)
		}
	}
}

func TestClassifyRow_StatusDerived(t *testing.T) {
	gt := map[string]float64{"m": 10}
	assert.Equal(t, model.OutcomeTimeout, ClassifyRow(row("m", "s", "maxTimeLimit", nil, 10), gt, 1800, 1e-4))
	assert.Equal(t, model.OutcomeInfeasible, ClassifyRow(row("m", "s", "infeasible", nil, 10), gt, 1800, 1e-4))
	assert.Equal(t, model.OutcomeSolverError, ClassifyRow(row("m", "s", "internalSolverError", nil, 10), gt, 1800, 1e-4))
	assert.Equal(t, model.OutcomeMissing, ClassifyRow(row("m", "s", "", nil, 10), gt, 1800, 1e-4))
	assert.Equal(t, model.OutcomeWrongOptimal, ClassifyRow(row("m", "s", "optimal", nil, 10), gt, 1800, 1e-4))
}

func TestCountOutcomes(t *testing.T) {
	counts := CountOutcomes(outcomeFixture(), 1800, 1e-4)
	require.Len(t, counts, 3)

	assert.Equal(t, model.StrategyOutcomeCount{
		Strategy: "gdp.bigm", Optimal: 1, Timeout: 1, SolverError: 1, Total: 3,
	}, counts[0])
	assert.Equal(t, model.StrategyOutcomeCount{
		Strategy: "gdp.hull", Optimal: 2, Timeout: 1, Total: 3,
	}, counts[1])
	// m3 没有 hull_exact 结果，记为 missing
	assert.Equal(t, model.StrategyOutcomeCount{
		Strategy: "gdp.hull_exact", Infeasible: 1, WrongOptimal: 1, Missing: 1, Total: 3,
	}, counts[2])

	total := TotalOutcomes(counts)
	assert.Equal(t, 9, total.Total)
	assert.Equal(t, 3, total.Optimal)
}

func TestCountOutcomes_Idempotent(t *testing.T) {
	rows := outcomeFixture()
	first := CountOutcomes(rows, 1800, 1e-4)
	second := CountOutcomes(rows, 1800, 1e-4)
	assert.Equal(t, first, second)
}

func TestSplitBySolverCombo(t *testing.T) {
	rows := []model.ResultRow{
		{Solver: "gams", Subsolver: "gurobi"},
		{Solver: "scip"},
		{Solver: "gams", Subsolver: "gurobi"},
	}
	groups, order := SplitBySolverCombo(rows)
	assert.Equal(t, []string{"gams_gurobi", "scip_direct"}, order)
	assert.Len(t, groups["gams_gurobi"], 2)
}

func TestRuntimeProfile(t *testing.T) {
	got := RuntimeProfile([]float64{5, 2, 1, 2})
	assert.Equal(t, []ProfilePoint{{X: 1, Y: 1}, {X: 2, Y: 3}, {X: 5, Y: 4}}, got)
	assert.Empty(t, RuntimeProfile(nil))
}

func TestGapProfile_ClampsNonFinite(t *testing.T) {
	inf := math.Inf(1)
	nan := math.NaN()
	got := GapProfile(2, []*float64{model.Float(3), nil, &inf, model.Float(1), &nan}, 3)
	assert.Equal(t, []ProfilePoint{{X: 0, Y: 2}, {X: 1, Y: 3}, {X: 3, Y: 7}}, got)

	assert.Equal(t, []ProfilePoint{{X: 0, Y: 4}}, GapProfile(4, nil, 0))
}

func TestBuildProfiles(t *testing.T) {
	rows := []model.ResultRow{
		row("m1", "gdp.bigm", "optimal", model.Float(10), 1),
		row("m2", "gdp.bigm", "optimal", model.Float(20), 2),
		row("m3", "gdp.bigm", "optimal", model.Float(30), 2),
		row("m4", "gdp.bigm", "optimal", model.Float(40), 5),
		row("m1", "gdp.hull", "maxTimeLimit", model.Float(11), 10),
		row("m2", "gdp.hull", "optimal", model.Float(20), 4),
	}
	rows[4].BoundAbsoluteGap = model.Float(0.5)

	set := BuildProfiles(rows, 10, 1e-4, false)
	require.Len(t, set.Profiles, 2)
	assert.Equal(t, 4, set.Models)
	assert.Equal(t, 0.5, set.FiniteMaxGap)

	bigm := set.Profiles[0]
	assert.Equal(t, "BigM", bigm.DisplayName)
	assert.Equal(t, []ProfilePoint{{X: 1, Y: 1}, {X: 2, Y: 3}, {X: 5, Y: 4}}, bigm.Runtime)
	assert.Equal(t, []ProfilePoint{{X: 0, Y: 4}}, bigm.Gap)

	hull := set.Profiles[1]
	assert.Equal(t, 1, hull.Solved)
	assert.Equal(t, 1, hull.TimedOut)
	assert.Equal(t, []ProfilePoint{{X: 4, Y: 1}}, hull.Runtime)
	assert.Equal(t, []ProfilePoint{{X: 0, Y: 1}, {X: 0.5, Y: 2}}, hull.Gap)

	frac := BuildProfiles(rows, 10, 1e-4, true)
	assert.Equal(t, []ProfilePoint{{X: 1, Y: 0.25}, {X: 2, Y: 0.75}, {X: 5, Y: 1}}, frac.Profiles[0].Runtime)
}

func TestCompareStrategies(t *testing.T) {
	rows := []model.ResultRow{
		row("m1", "gdp.bigm", "optimal", model.Float(10), 1),
		row("m1", "gdp.hull", "optimal", model.Float(10.00001), 3),
		row("m2", "gdp.bigm", "optimal", model.Float(20), 2),
		row("m2", "gdp.hull", "optimal", model.Float(21), 4),
		row("m2", "gdp.hull", "optimal", model.Float(20), 6),
		row("m3", "gdp.bigm", "optimal", model.Float(1), 1),
	}
	points := CompareStrategies(rows, "gdp.bigm", "gdp.hull", MetricDuration, 1e-4)
	require.Len(t, points, 3)
	assert.Equal(t, "m1", points[0].ModelName)
	assert.Equal(t, 1.0, *points[0].X)
	assert.Equal(t, 3.0, *points[0].Y)
	assert.False(t, points[0].DifferentObjective)
	assert.True(t, points[1].DifferentObjective)
	assert.False(t, points[2].DifferentObjective)

	assert.False(t, DifferentObjective(nil, model.Float(1), 1e-4))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricDuration, m)
	_, err = ParseMetric("nope")
	assert.Error(t, err)
}

func TestStrategyDisplayName(t *testing.T) {
	cases := map[string]string{
		"gdp.bigm":                  "BigM",
		"gdp.hull":                  "Hull(ε-approx.)",
		"gdp.hull_exact":            "Hull Exact",
		"gdp.hull_reduced_y":        "Hull Reduced Y",
		"gdp.binary_multiplication": "Binary Mult.",
		"gdp.convex_flag_hull":      "convex_flag_Hull(ε-approx.)",
	}
	for in, want := range cases {
		assert.Equal(t, want, StrategyDisplayName(in))
	}
}

func TestNormalizeHullStrategy(t *testing.T) {
	rows := []model.ResultRow{{Strategy: "gdp.hull_eps_1e-4"}, {Strategy: "gdp.bigm"}}
	got := NormalizeHullStrategy(rows)
	assert.Equal(t, "gdp.hull", got[0].Strategy)
	assert.Equal(t, "gdp.hull_eps_1e-4", rows[0].Strategy)

	rows = append(rows, model.ResultRow{Strategy: "gdp.hull"})
	got = NormalizeHullStrategy(rows)
	assert.Equal(t, "gdp.hull_eps_1e-4", got[0].Strategy)
}

func TestExpandConvexVariants(t *testing.T) {
	available := map[string]bool{"gdp.hull": true, "gdp.convex_flag_hull": true}
	got := ExpandConvexVariants([]string{"gdp.hull_exact", "gdp.hull"}, available)
	assert.Equal(t, []string{"gdp.hull_exact", "gdp.hull", "gdp.convex_flag_hull"}, got)
	assert.Equal(t, "convex_flag_x", ConvexStrategyName("x"))
}
