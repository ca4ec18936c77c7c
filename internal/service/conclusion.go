package service

import (
	"fmt"
	"math"

	"gdp-bench/internal/model"
)

const (
	VerdictInsufficientData = "insufficient_data"
	VerdictBestSignificant  = "best_strategy_significant"
	VerdictNoDifference     = "no_significant_difference"

	// 每个策略至少需要的实例数
	minSampleSize = 10
	alpha         = 0.05
)

type Conclusion struct {
	Verdict string                 `json:"verdict"`
	Claims  []string               `json:"claims"`
	Metrics map[string]interface{} `json:"metrics"`
	Caveats []string               `json:"caveats"`
}

// GenerateConclusion 根据各策略最优率与两两检验结果给出结论（工程简化版）
func GenerateConclusion(counts []model.StrategyOutcomeCount, stats []StrategyStats, tests []PairTest) Conclusion {
	out := Conclusion{
		Verdict: VerdictInsufficientData,
		Claims:  []string{},
		Metrics: map[string]interface{}{},
		Caveats: []string{},
	}
	if len(stats) == 0 {
		out.Caveats = append(out.Caveats, "没有可用的策略结果。")
		return out
	}

	for _, s := range stats {
		out.Metrics[s.Strategy+"_optimal_rate"] = s.OptimalRate
		out.Metrics[s.Strategy+"_ci95"] = []float64{s.CI95Low, s.CI95High}
		if s.N < minSampleSize {
			out.Caveats = append(out.Caveats, fmt.Sprintf("%s 样本量不足（N=%d，建议>=%d）。", StrategyDisplayName(s.Strategy), s.N, minSampleSize))
		}
	}

	// 最优率最高的策略；并列取先出现者
	best := stats[0]
	for _, s := range stats[1:] {
		if s.OptimalRate > best.OptimalRate {
			best = s
		}
	}
	out.Metrics["best_strategy"] = best.Strategy

	if len(stats) > 1 && best.N >= minSampleSize {
		significant := true
		maxP := 0.0
		for _, s := range stats {
			if s.Strategy == best.Strategy {
				continue
			}
			p := getPValue(tests, best.Strategy, s.Strategy)
			out.Metrics[fmt.Sprintf("p_%s_vs_%s", best.Strategy, s.Strategy)] = p
			maxP = math.Max(maxP, p)
			if !(best.OptimalRate > s.OptimalRate && p < alpha) {
				significant = false
			}
		}
		if significant {
			out.Verdict = VerdictBestSignificant
			out.Claims = append(out.Claims, fmt.Sprintf("%s 的最优求解率（%.1f%%）显著高于其他所有策略（p<%.2f）。",
				StrategyDisplayName(best.Strategy), best.OptimalRate*100, alpha))
		} else {
			out.Verdict = VerdictNoDifference
			out.Claims = append(out.Claims, fmt.Sprintf("%s 的最优求解率最高（%.1f%%），但与其他策略的差异不全显著（最大 p=%.3f）。",
				StrategyDisplayName(best.Strategy), best.OptimalRate*100, maxP))
		}
	} else if len(stats) == 1 {
		out.Caveats = append(out.Caveats, "只有一个策略，无法做组间显著性对比。")
	}

	for _, c := range counts {
		if c.Total > 0 && float64(c.Timeout)/float64(c.Total) > 0.5 {
			out.Caveats = append(out.Caveats, fmt.Sprintf("%s 超过半数实例超时，可考虑提高时间限制。", StrategyDisplayName(c.Strategy)))
		}
		if c.WrongOptimal > 0 {
			out.Caveats = append(out.Caveats, fmt.Sprintf("%s 有 %d 个实例报告最优但目标值偏离基准，注意检查目标值容差。",
				StrategyDisplayName(c.Strategy), c.WrongOptimal))
		}
	}
	return out
}

// getPValue 两个策略的检验结果，顺序无关；找不到时返回 1
func getPValue(tests []PairTest, s1, s2 string) float64 {
	for _, t := range tests {
		if (t.Strategy1 == s1 && t.Strategy2 == s2) || (t.Strategy1 == s2 && t.Strategy2 == s1) {
			return t.PValue
		}
	}
	return 1
}
