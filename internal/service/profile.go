package service

import (
	"math"
	"sort"

	"gdp-bench/internal/model"
)

// ProfilePoint 阶梯曲线上的一个点，y 从 x 处开始生效（post 阶梯）
type ProfilePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type StrategyProfile struct {
	Strategy    string         `json:"strategy"`
	DisplayName string         `json:"display_name"`
	Solved      int            `json:"solved"`
	TimedOut    int            `json:"timed_out"`
	Runtime     []ProfilePoint `json:"runtime"`
	Gap         []ProfilePoint `json:"gap"`
}

type ProfileSet struct {
	TimeLimit float64 `json:"time_limit"`
	// 所有超时行中最大的有限间隙，用于截断缺失值
	FiniteMaxGap float64           `json:"finite_max_gap"`
	Models       int               `json:"models"`
	Fraction     bool              `json:"fraction"`
	Profiles     []StrategyProfile `json:"profiles"`
}

// RuntimeProfile 按求解时间升序的累计求解数；相同时间合并为一个点
func RuntimeProfile(durations []float64) []ProfilePoint {
	sorted := append([]float64(nil), durations...)
	sort.Float64s(sorted)

	var out []ProfilePoint
	for i, d := range sorted {
		y := float64(i + 1)
		if n := len(out); n > 0 && out[n-1].X == d {
			out[n-1].Y = y
			continue
		}
		out = append(out, ProfilePoint{X: d, Y: y})
	}
	return out
}

// GapProfile 超时阶段曲线：起点 (0, nSolved)，之后每个间隙 g 处 y = nSolved + 间隙不超过 g 的超时数。
// nil 或非有限间隙按 finiteMax 处理。
func GapProfile(nSolved int, gaps []*float64, finiteMax float64) []ProfilePoint {
	values := make([]float64, 0, len(gaps))
	for _, g := range gaps {
		if g == nil || math.IsNaN(*g) || math.IsInf(*g, 0) {
			values = append(values, finiteMax)
			continue
		}
		values = append(values, math.Min(*g, finiteMax))
	}

	out := []ProfilePoint{{X: 0, Y: float64(nSolved)}}
	for _, p := range RuntimeProfile(values) {
		p.Y += float64(nSolved)
		if p.X == 0 {
			out[0].Y = p.Y
			continue
		}
		out = append(out, p)
	}
	return out
}

// BuildProfiles 每个策略的求解时间阶段与间隙阶段曲线。
// 正确求得最优的行进入时间阶段，超时行进入间隙阶段（使用 Bound Absolute Gap），其余不计入。
func BuildProfiles(rows []model.ResultRow, timeLimit, tol float64, fraction bool) ProfileSet {
	rows = model.FilterOriginal(rows)
	gt := GroundTruth(rows)

	set := ProfileSet{TimeLimit: timeLimit, Models: len(distinctModels(rows)), Fraction: fraction}

	solved := map[string][]float64{}
	gaps := map[string][]*float64{}
	for _, r := range rows {
		switch ClassifyRow(r, gt, timeLimit, tol) {
		case model.OutcomeOptimal:
			solved[r.Strategy] = append(solved[r.Strategy], r.Duration)
		case model.OutcomeTimeout:
			gaps[r.Strategy] = append(gaps[r.Strategy], r.BoundAbsoluteGap)
			if g := r.BoundAbsoluteGap; g != nil && !math.IsNaN(*g) && !math.IsInf(*g, 0) && *g > set.FiniteMaxGap {
				set.FiniteMaxGap = *g
			}
		}
	}

	for _, s := range Strategies(rows) {
		p := StrategyProfile{
			Strategy:    s,
			DisplayName: StrategyDisplayName(s),
			Solved:      len(solved[s]),
			TimedOut:    len(gaps[s]),
			Runtime:     RuntimeProfile(solved[s]),
			Gap:         GapProfile(len(solved[s]), gaps[s], set.FiniteMaxGap),
		}
		if fraction && set.Models > 0 {
			scale(p.Runtime, float64(set.Models))
			scale(p.Gap, float64(set.Models))
		}
		set.Profiles = append(set.Profiles, p)
	}
	return set
}

func scale(points []ProfilePoint, n float64) {
	for i := range points {
		points[i].Y /= n
	}
}
