package service

import (
	"strings"
	"testing"

	"gdp-bench/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConclusion_SignificantBest(t *testing.T) {
	counts := []model.StrategyOutcomeCount{
		{Strategy: "gdp.bigm", Optimal: 90, Timeout: 10, Total: 100},
		{Strategy: "gdp.hull", Optimal: 40, Timeout: 60, Total: 100},
	}
	stats, tests := ComputeStrategyStats(counts)
	c := GenerateConclusion(counts, stats, tests)

	assert.Equal(t, VerdictBestSignificant, c.Verdict)
	assert.Equal(t, "gdp.bigm", c.Metrics["best_strategy"])
	require.Len(t, c.Claims, 1)
	assert.Contains(t, c.Claims[0], "BigM")
	// hull 超时过半
	require.Len(t, c.Caveats, 1)
	assert.Contains(t, c.Caveats[0], "Hull(ε-approx.)")
}

func TestGenerateConclusion_NoDifference(t *testing.T) {
	counts := []model.StrategyOutcomeCount{
		{Strategy: "gdp.bigm", Optimal: 6, Timeout: 4, Total: 10},
		{Strategy: "gdp.hull", Optimal: 5, Timeout: 4, WrongOptimal: 1, Total: 10},
	}
	stats, tests := ComputeStrategyStats(counts)
	c := GenerateConclusion(counts, stats, tests)

	assert.Equal(t, VerdictNoDifference, c.Verdict)
	assert.Greater(t, c.Metrics["p_gdp.bigm_vs_gdp.hull"], 0.05)
	require.Len(t, c.Caveats, 1)
	assert.Contains(t, c.Caveats[0], "容差")
}

func TestGenerateConclusion_InsufficientData(t *testing.T) {
	c := GenerateConclusion(nil, nil, nil)
	assert.Equal(t, VerdictInsufficientData, c.Verdict)
	assert.NotEmpty(t, c.Caveats)

	counts := []model.StrategyOutcomeCount{{Strategy: "gdp.bigm", Optimal: 2, Total: 3}}
	stats, tests := ComputeStrategyStats(counts)
	c = GenerateConclusion(counts, stats, tests)
	assert.Equal(t, VerdictInsufficientData, c.Verdict)
	assert.Len(t, c.Caveats, 2)
}

func TestRenderOutcomeMarkdown(t *testing.T) {
	rep := BuildOutcomeReport(outcomeFixture(), "gams_gurobi", 1800, 1e-4)
	assert.Equal(t, 3, rep.Models)
	assert.Equal(t, 9, rep.Total.Total)

	md := RenderOutcomeMarkdown(rep)
	assert.True(t, strings.HasPrefix(md, "# 求解结果分析\n"))
	assert.Contains(t, md, "- solver_combo: gams_gurobi\n")
	assert.Contains(t, md, "- time_limit: 1800 s\n")
	assert.Contains(t, md, "| BigM | 1 | 1 | 0 | 0 | 1 | 0 | 3 |\n")
	assert.Contains(t, md, "| **TOTAL** | 3 | 2 | 1 | 1 | 1 | 1 | 9 |\n")
	assert.Contains(t, md, "## 显著性检验")
	assert.Contains(t, md, "\"strategy_1\": \"gdp.bigm\"")
	assert.Contains(t, md, "- verdict: ")
}
