package service

import (
	"fmt"
	"math"
	"strings"

	"gdp-bench/internal/model"
)

type Metric string

const (
	MetricDuration          Metric = "duration"
	MetricRelativeGap       Metric = "relative_gap"
	MetricAbsoluteGap       Metric = "absolute_gap"
	MetricRootRelaxation    Metric = "root_relaxation_value"
	MetricRootRelaxationGap Metric = "root_relaxation_gap"
)

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricDuration, MetricRelativeGap, MetricAbsoluteGap, MetricRootRelaxation, MetricRootRelaxationGap:
		return m, nil
	case "":
		return MetricDuration, nil
	}
	return "", fmt.Errorf("未知的对比指标: %s", s)
}

func (m Metric) value(r model.ResultRow) *float64 {
	switch m {
	case MetricRelativeGap:
		return r.RelativeGap
	case MetricAbsoluteGap:
		return r.AbsoluteGap
	case MetricRootRelaxation:
		return r.RootRelaxationValue
	case MetricRootRelaxationGap:
		return r.RootRelaxationGap
	}
	d := r.Duration
	return &d
}

// ComparisonPoint 同一模型在两个策略下的一对结果
type ComparisonPoint struct {
	ModelName          string   `json:"model_name"`
	X                  *float64 `json:"x"`
	Y                  *float64 `json:"y"`
	Objective1         *float64 `json:"objective_1"`
	Objective2         *float64 `json:"objective_2"`
	DifferentObjective bool     `json:"different_objective"`
}

// CompareStrategies 按模型名配对两个策略的结果；同一模型有多行时取笛卡尔积。
// 只影响对比图的着色，不参与结果分类。
func CompareStrategies(rows []model.ResultRow, s1, s2 string, metric Metric, tol float64) []ComparisonPoint {
	rows = model.FilterOriginal(rows)
	byModel := map[string][]model.ResultRow{}
	for _, r := range rows {
		if r.Strategy == s2 {
			byModel[r.ModelName] = append(byModel[r.ModelName], r)
		}
	}

	var out []ComparisonPoint
	for _, a := range rows {
		if a.Strategy != s1 {
			continue
		}
		for _, b := range byModel[a.ModelName] {
			out = append(out, ComparisonPoint{
				ModelName:          a.ModelName,
				X:                  metric.value(a),
				Y:                  metric.value(b),
				Objective1:         a.ObjectiveValue,
				Objective2:         b.ObjectiveValue,
				DifferentObjective: DifferentObjective(a.ObjectiveValue, b.ObjectiveValue, tol),
			})
		}
	}
	return out
}

// DifferentObjective |o1-o2| > tol；任一缺失时视为相同
func DifferentObjective(o1, o2 *float64, tol float64) bool {
	if o1 == nil || o2 == nil {
		return false
	}
	return math.Abs(*o1-*o2) > tol
}

// StrategyDisplayName 画图与报告使用的策略名
func StrategyDisplayName(strategy string) string {
	name := strings.ReplaceAll(strategy, "gdp.", "")
	// 长名称先替换，避免被 hull 部分匹配
	name = strings.ReplaceAll(name, "hull_exact", "Hull Exact")
	name = strings.ReplaceAll(name, "hull_reduced_y", "Hull Reduced Y")
	name = strings.ReplaceAll(name, "binary_multiplication", "Binary Mult.")
	name = strings.ReplaceAll(name, "hull", "Hull(ε-approx.)")
	name = strings.ReplaceAll(name, "bigm", "BigM")
	return name
}

// NormalizeHullStrategy 没有 gdp.hull 但有 gdp.hull_eps_1e-4 时，把后者改名为 gdp.hull
func NormalizeHullStrategy(rows []model.ResultRow) []model.ResultRow {
	hasHull, hasEps := false, false
	for _, r := range rows {
		switch r.Strategy {
		case "gdp.hull":
			hasHull = true
		case "gdp.hull_eps_1e-4":
			hasEps = true
		}
	}
	out := make([]model.ResultRow, len(rows))
	copy(out, rows)
	if hasHull || !hasEps {
		return out
	}
	for i := range out {
		if out[i].Strategy == "gdp.hull_eps_1e-4" {
			out[i].Strategy = "gdp.hull"
		}
	}
	return out
}

// ConvexStrategyName gdp.hull -> gdp.convex_flag_hull
func ConvexStrategyName(s string) string {
	if strings.HasPrefix(s, "gdp.") {
		return "gdp.convex_flag_" + strings.TrimPrefix(s, "gdp.")
	}
	return "convex_flag_" + s
}

// ExpandConvexVariants 在基础策略后追加已存在的 convex_flag_ 版本
func ExpandConvexVariants(base []string, available map[string]bool) []string {
	out := append([]string(nil), base...)
	for _, s := range base {
		if c := ConvexStrategyName(s); available[c] {
			out = append(out, c)
		}
	}
	return out
}

// FilterStrategies include 非空时只保留其中的策略，再去掉 exclude 中的策略
func FilterStrategies(rows []model.ResultRow, include, exclude []string) []model.ResultRow {
	inc := toSet(include)
	exc := toSet(exclude)
	var out []model.ResultRow
	for _, r := range rows {
		if len(inc) > 0 && !inc[r.Strategy] {
			continue
		}
		if exc[r.Strategy] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
