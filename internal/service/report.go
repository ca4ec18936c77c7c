package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gdp-bench/internal/model"
)

const OutcomeMarkdownFile = "solution_outcomes.md"

// OutcomeReport 一个求解器组合的结果分析
type OutcomeReport struct {
	Experiment  string                       `json:"experiment,omitempty"`
	SolverCombo string                       `json:"solver_combo"`
	TimeLimit   int                          `json:"time_limit"`
	Tolerance   float64                      `json:"tolerance"`
	Models      int                          `json:"models"`
	Counts      []model.StrategyOutcomeCount `json:"counts"`
	Total       model.StrategyOutcomeCount   `json:"total"`
	Stats       []StrategyStats              `json:"stats"`
	Tests       []PairTest                   `json:"tests"`
	Conclusion  Conclusion                   `json:"conclusion"`
	GeneratedAt time.Time                    `json:"generated_at"`
}

// BuildOutcomeReport 只使用 Original 行
func BuildOutcomeReport(rows []model.ResultRow, solverCombo string, timeLimit int, tol float64) *OutcomeReport {
	rows = model.FilterOriginal(rows)
	counts := CountOutcomes(rows, float64(timeLimit), tol)
	stats, tests := ComputeStrategyStats(counts)
	return &OutcomeReport{
		SolverCombo: solverCombo,
		TimeLimit:   timeLimit,
		Tolerance:   tol,
		Models:      len(distinctModels(rows)),
		Counts:      counts,
		Total:       TotalOutcomes(counts),
		Stats:       stats,
		Tests:       tests,
		Conclusion:  GenerateConclusion(counts, stats, tests),
		GeneratedAt: time.Now(),
	}
}

func RenderOutcomeMarkdown(rep *OutcomeReport) string {
	var b strings.Builder
	b.WriteString("# 求解结果分析\n\n")
	if rep.Experiment != "" {
		b.WriteString(fmt.Sprintf("- experiment: %s\n", rep.Experiment))
	}
	b.WriteString(fmt.Sprintf("- solver_combo: %s\n", rep.SolverCombo))
	b.WriteString(fmt.Sprintf("- time_limit: %d s\n", rep.TimeLimit))
	b.WriteString(fmt.Sprintf("- tolerance: %s\n", formatTolerance(rep.Tolerance)))
	b.WriteString(fmt.Sprintf("- models: %d\n", rep.Models))
	b.WriteString(fmt.Sprintf("- generated_at: %s\n\n", rep.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("## 结果计数\n\n")
	b.WriteString("| 策略 | Optimal | Timeout | Infeasible | Wrong Opt | Solver Err | Missing | Total |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: | ---: | ---: |\n")
	for _, c := range append(append([]model.StrategyOutcomeCount(nil), rep.Counts...), rep.Total) {
		name := StrategyDisplayName(c.Strategy)
		if c.Strategy == "TOTAL" {
			name = "**TOTAL**"
		}
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %d | %d |\n",
			name, c.Optimal, c.Timeout, c.Infeasible, c.WrongOptimal, c.SolverError, c.Missing, c.Total))
	}
	b.WriteString("\n")

	b.WriteString("## 最优率\n\n")
	b.WriteString("| 策略 | N | Optimal | OptimalRate | CI95 |\n")
	b.WriteString("| --- | ---: | ---: | ---: | --- |\n")
	for _, s := range rep.Stats {
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %.3f | [%.3f, %.3f] |\n",
			StrategyDisplayName(s.Strategy), s.N, s.Optimal, s.OptimalRate, s.CI95Low, s.CI95High))
	}
	b.WriteString("\n")

	b.WriteString("## 显著性检验\n\n")
	if len(rep.Tests) == 0 {
		b.WriteString("- 无（策略数不足）\n\n")
	} else {
		j, _ := json.MarshalIndent(rep.Tests, "", "  ")
		b.WriteString("```json\n")
		b.WriteString(string(j))
		b.WriteString("\n```\n\n")
	}

	b.WriteString("## 自动结论\n\n")
	b.WriteString(fmt.Sprintf("- verdict: %s\n", rep.Conclusion.Verdict))
	if len(rep.Conclusion.Claims) > 0 {
		b.WriteString("\n### 主要论断\n\n")
		for _, c := range rep.Conclusion.Claims {
			b.WriteString(fmt.Sprintf("- %s\n", c))
		}
	}
	if len(rep.Conclusion.Caveats) > 0 {
		b.WriteString("\n### 注意事项/局限\n\n")
		max := len(rep.Conclusion.Caveats)
		if max > 20 {
			max = 20
		}
		for i := 0; i < max; i++ {
			b.WriteString(fmt.Sprintf("- %s\n", rep.Conclusion.Caveats[i]))
		}
		if len(rep.Conclusion.Caveats) > max {
			b.WriteString(fmt.Sprintf("- ...(剩余 %d 条省略)\n", len(rep.Conclusion.Caveats)-max))
		}
	}
	return b.String()
}
