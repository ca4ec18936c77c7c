package service

import (
	"math"
	"sort"

	"gdp-bench/internal/model"
)

// GroundTruth 每个模型在所有 optimal 行中的最小目标值
func GroundTruth(rows []model.ResultRow) map[string]float64 {
	gt := map[string]float64{}
	for _, r := range rows {
		if r.ObjectiveValue == nil || model.ParseSolveStatus(r.Status) != model.StatusOptimal {
			continue
		}
		if v, ok := gt[r.ModelName]; !ok || *r.ObjectiveValue < v {
			gt[r.ModelName] = *r.ObjectiveValue
		}
	}
	return gt
}

// ClassifyRow 优先级：超时 > 正确最优 > 错误最优 > 不可行 > 求解器错误 > 缺失
func ClassifyRow(row model.ResultRow, groundTruth map[string]float64, timeLimit, tol float64) model.Outcome {
	status := model.ParseSolveStatus(row.Status)
	if row.Duration >= timeLimit || status == model.StatusTimeout {
		return model.OutcomeTimeout
	}
	switch status {
	case model.StatusOptimal:
		gt, ok := groundTruth[row.ModelName]
		if ok && row.ObjectiveValue != nil && math.Abs(*row.ObjectiveValue-gt) <= tol {
			return model.OutcomeOptimal
		}
		return model.OutcomeWrongOptimal
	case model.StatusInfeasible:
		return model.OutcomeInfeasible
	case model.StatusError:
		return model.OutcomeSolverError
	}
	return model.OutcomeMissing
}

// CountOutcomes 按策略统计结果，策略顺序为首次出现顺序。
// 某模型在其他策略下出现过但本策略没有结果时记为 missing。
func CountOutcomes(rows []model.ResultRow, timeLimit, tol float64) []model.StrategyOutcomeCount {
	rows = model.FilterOriginal(rows)
	gt := GroundTruth(rows)

	strategies := Strategies(rows)
	models := map[string]bool{}
	seen := map[string]map[string]bool{}
	counts := map[string]*model.StrategyOutcomeCount{}
	for _, s := range strategies {
		counts[s] = &model.StrategyOutcomeCount{Strategy: s}
		seen[s] = map[string]bool{}
	}

	for _, r := range rows {
		models[r.ModelName] = true
		seen[r.Strategy][r.ModelName] = true
		counts[r.Strategy].Record(ClassifyRow(r, gt, timeLimit, tol))
	}

	out := make([]model.StrategyOutcomeCount, 0, len(strategies))
	for _, s := range strategies {
		c := counts[s]
		for m := range models {
			if !seen[s][m] {
				c.Record(model.OutcomeMissing)
			}
		}
		out = append(out, *c)
	}
	return out
}

// Strategies 按首次出现顺序返回策略名
func Strategies(rows []model.ResultRow) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range rows {
		if !seen[r.Strategy] {
			seen[r.Strategy] = true
			out = append(out, r.Strategy)
		}
	}
	return out
}

// SplitBySolverCombo 按求解器组合分组，返回分组和组合的首次出现顺序
func SplitBySolverCombo(rows []model.ResultRow) (map[string][]model.ResultRow, []string) {
	groups := map[string][]model.ResultRow{}
	var order []string
	for _, r := range rows {
		combo := r.SolverCombo()
		if _, ok := groups[combo]; !ok {
			order = append(order, combo)
		}
		groups[combo] = append(groups[combo], r)
	}
	return groups, order
}

// TotalOutcomes 汇总所有策略的计数
func TotalOutcomes(counts []model.StrategyOutcomeCount) model.StrategyOutcomeCount {
	total := model.StrategyOutcomeCount{Strategy: "TOTAL"}
	for _, c := range counts {
		total.Add(c)
	}
	return total
}

func distinctModels(rows []model.ResultRow) []string {
	set := map[string]bool{}
	for _, r := range rows {
		set[r.ModelName] = true
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
