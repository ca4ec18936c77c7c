package service

import (
	"fmt"
	"math"

	"gdp-bench/internal/model"
)

// StrategyStats 某策略正确求得最优的比例与 95% 置信区间
type StrategyStats struct {
	Strategy    string  `json:"strategy"`
	N           int     `json:"n"`
	Optimal     int     `json:"optimal"`
	OptimalRate float64 `json:"optimal_rate"`
	CI95Low     float64 `json:"ci95_low"`
	CI95High    float64 `json:"ci95_high"`
}

// PairTest 两个策略最优率的双侧两比例 z 检验
type PairTest struct {
	Strategy1 string  `json:"strategy_1"`
	Strategy2 string  `json:"strategy_2"`
	Z         float64 `json:"z"`
	PValue    float64 `json:"p_value"`
}

// ComputeStrategyStats 基于结果计数给出每个策略的最优率，并对每一对策略做显著性检验
func ComputeStrategyStats(counts []model.StrategyOutcomeCount) ([]StrategyStats, []PairTest) {
	stats := make([]StrategyStats, 0, len(counts))
	for _, c := range counts {
		stats = append(stats, calcStrategyStats(c))
	}

	var tests []PairTest
	for i := 0; i < len(stats); i++ {
		for j := i + 1; j < len(stats); j++ {
			a, b := stats[i], stats[j]
			p, z := twoPropZTest(a.Optimal, a.N, b.Optimal, b.N)
			tests = append(tests, PairTest{Strategy1: a.Strategy, Strategy2: b.Strategy, Z: z, PValue: p})
		}
	}
	return stats, tests
}

// CompareStrategyRates 单独比较两个策略
func CompareStrategyRates(counts []model.StrategyOutcomeCount, s1, s2 string) (*PairTest, error) {
	var a, b *model.StrategyOutcomeCount
	for i := range counts {
		switch counts[i].Strategy {
		case s1:
			a = &counts[i]
		case s2:
			b = &counts[i]
		}
	}
	if a == nil || b == nil {
		return nil, fmt.Errorf("策略不存在: %s / %s", s1, s2)
	}
	p, z := twoPropZTest(a.Optimal, a.Total, b.Optimal, b.Total)
	return &PairTest{Strategy1: s1, Strategy2: s2, Z: z, PValue: p}, nil
}

func calcStrategyStats(c model.StrategyOutcomeCount) StrategyStats {
	st := StrategyStats{Strategy: c.Strategy, N: c.Total, Optimal: c.Optimal}
	if c.Total > 0 {
		st.OptimalRate = float64(c.Optimal) / float64(c.Total)
		st.CI95Low, st.CI95High = wilsonCI(c.Optimal, c.Total, 1.96)
	}
	return st
}

// Wilson score interval for proportion
func wilsonCI(k int, n int, z float64) (float64, float64) {
	if n == 0 {
		return 0, 0
	}
	p := float64(k) / float64(n)
	zz := z * z
	den := 1 + zz/float64(n)
	center := (p + zz/(2*float64(n))) / den
	half := (z / den) * math.Sqrt((p*(1-p)+zz/(4*float64(n)))/float64(n))
	low := math.Max(0, center-half)
	high := math.Min(1, center+half)
	return low, high
}

// two-proportion z-test (two-sided)
func twoPropZTest(x1, n1, x2, n2 int) (pValue float64, z float64) {
	if n1 == 0 || n2 == 0 {
		return 1, 0
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	p := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(p * (1 - p) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 1, 0
	}
	z = (p2 - p1) / se
	pValue = 2 * (1 - normCDF(math.Abs(z)))
	return pValue, z
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
