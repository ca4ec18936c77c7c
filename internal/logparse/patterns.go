package logparse

import (
	"regexp"
	"strconv"
	"strings"
)

const num = `([-+]?\d*\.\d+(?:[eE][-+]?\d+)?)`

var numRe = regexp.MustCompile(`[-+]?\d*\.\d+(?:[eE][-+]?\d+)?`)

// 用第一个捕获组匹配出的数值
func captureFloat(re *regexp.Regexp) func(string) (float64, bool) {
	return func(content string) (float64, bool) {
		m := re.FindStringSubmatch(content)
		if m == nil {
			return 0, false
		}
		return parseFloat(m[1])
	}
}

// 先确认 marker 出现，再按 re 取值
func guarded(marker, re *regexp.Regexp) func(string) (float64, bool) {
	extract := captureFloat(re)
	return func(content string) (float64, bool) {
		if !marker.MatchString(content) {
			return 0, false
		}
		return extract(content)
	}
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// 以空白切分后能解析为浮点数的字段
func numericFields(line string) []float64 {
	var out []float64
	for _, part := range strings.Fields(line) {
		if v, ok := parseFloat(part); ok {
			out = append(out, v)
		}
	}
	return out
}

// 返回 header 之后的各行（整体去掉首尾空白后按换行切分）
func linesAfter(content string, header *regexp.Regexp) ([]string, bool) {
	loc := header.FindStringIndex(content)
	if loc == nil {
		return nil, false
	}
	rest := strings.TrimSpace(content[loc[1]:])
	return strings.Split(rest, "\n"), true
}

// ---- Gurobi ----

var (
	gurobiRootRe      = regexp.MustCompile(`Root relaxation: objective\s+` + num)
	gurobiCutoffRe    = regexp.MustCompile(`Root relaxation: cutoff`)
	gurobiNodeTableRe = regexp.MustCompile(`Nodes\s+\|\s+Current Node\s+\|\s+Objective Bounds`)
	gurobiNodeRowRe   = regexp.MustCompile(`^\s+\d+\s+\d+`)
	gurobiNodeBoundRe = regexp.MustCompile(`\|\s+.*?\s+.*?\s+\|\s+.*?\s+` + num + `\s+`)
	gurobiExploredRe  = regexp.MustCompile(`Explored \d+ nodes?`)
	gurobiBestBoundRe = regexp.MustCompile(`[Bb]est bound ` + num)
	gurobiGapLineRe   = regexp.MustCompile(`[Bb]est objective [-+]?\d*\.\d+(?:[eE][-+]?\d+)?, best bound ` + num)
)

var gurobiPatterns = []Pattern{
	{Name: "root relaxation", Extract: captureFloat(gurobiRootRe)},
	{Name: "cutoff node table", Extract: gurobiCutoffTable},
	{Name: "explored best bound", Extract: guarded(gurobiExploredRe, gurobiBestBoundRe)},
	{Name: "gap line", Extract: captureFloat(gurobiGapLineRe)},
}

// 根松弛被 cutoff 时，取节点表第一行的 BestBd 列
func gurobiCutoffTable(content string) (float64, bool) {
	if !gurobiCutoffRe.MatchString(content) {
		return 0, false
	}
	lines, ok := linesAfter(content, gurobiNodeTableRe)
	if !ok {
		return 0, false
	}
	for _, line := range lines {
		if !gurobiNodeRowRe.MatchString(line) {
			continue
		}
		if m := gurobiNodeBoundRe.FindStringSubmatch(line); m != nil {
			if v, ok := parseFloat(m[1]); ok {
				return v, true
			}
		}
		if values := numericFields(line); len(values) >= 2 {
			return values[len(values)-2], true
		}
		break
	}
	return 0, false
}

// ---- BARON ----

var (
	baronHeaderRe        = regexp.MustCompile(`Iteration\s+Time[^\n]*Lower bound\s+Upper bound\s+Progress`)
	baronRowRe           = regexp.MustCompile(`\s*\S+\s+\S+\s+\S+\s+` + num + `\s+`)
	baronPreprocessingRe = regexp.MustCompile(`Problem solved during preprocessing`)
	baronBestPossibleRe  = regexp.MustCompile(`Best possible = ` + num)
	baronLowerBoundIsRe  = regexp.MustCompile(`Lower bound is\s+` + num)
)

var baronPatterns = []Pattern{
	{Name: "iteration table", Extract: baronIterationTable},
	{Name: "preprocessing best possible", Extract: guarded(baronPreprocessingRe, baronBestPossibleRe)},
	{Name: "preprocessing lower bound", Extract: guarded(baronPreprocessingRe, baronLowerBoundIsRe)},
}

// 迭代表第一行的 Lower bound 列
func baronIterationTable(content string) (float64, bool) {
	lines, ok := linesAfter(content, baronHeaderRe)
	if !ok {
		return 0, false
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "===") {
			continue
		}
		if m := baronRowRe.FindStringSubmatch(line); m != nil {
			if v, ok := parseFloat(m[1]); ok {
				return v, true
			}
		}
		parts := strings.Fields(line)
		if len(parts) < 5 {
			continue
		}
		if v, ok := parseFloat(parts[3]); ok {
			return v, true
		}
		if values := numericFields(line); len(values) >= 3 {
			return values[2], true
		}
	}
	return 0, false
}

// ---- IPOPT ----

var (
	ipoptObjectiveRe = regexp.MustCompile(`Objective\s*\.\.\.\s*` + num)
	ipoptFValueRe    = regexp.MustCompile(`IPOPT\s+\d+\s+\d+\.\d+\s+\d+\.\d+\s+f\s+` + num)
	ipoptLineRe      = regexp.MustCompile(`IPOPT.*`)
)

var ipoptPatterns = []Pattern{
	{Name: "objective", Extract: captureFloat(ipoptObjectiveRe)},
	{Name: "f value", Extract: captureFloat(ipoptFValueRe)},
	{Name: "last iteration line", Extract: ipoptLastLine},
}

func ipoptLastLine(content string) (float64, bool) {
	lines := ipoptLineRe.FindAllString(content, -1)
	if len(lines) == 0 {
		return 0, false
	}
	tokens := numRe.FindAllString(lines[len(lines)-1], -1)
	switch {
	case len(tokens) >= 2:
		return parseFloat(tokens[len(tokens)-2])
	case len(tokens) == 1:
		return parseFloat(tokens[0])
	}
	return 0, false
}

// ---- SCIP ----

var (
	scipTrivialRe     = regexp.MustCompile(`problem is solved by trivial preprocessing`)
	scipObjectiveRe   = regexp.MustCompile(`objective value\s*:\s*` + num)
	scipLP0Re         = regexp.MustCompile(`LP0\s+\(\d+r,\s*\d+c\)\s*:\s*(?:opt\.|infeas\.|unbounded)\s*\[` + num)
	scipRootDualRe    = regexp.MustCompile(`root node[\s\S]*?dual bound\s*:\s*` + num)
	scipSummaryDualRe = regexp.MustCompile(`Dual Bound\s*:\s*` + num)
)

var scipPatterns = []Pattern{
	{Name: "trivial preprocessing", Extract: guarded(scipTrivialRe, scipObjectiveRe)},
	{Name: "LP0", Extract: captureFloat(scipLP0Re)},
	{Name: "root node dual bound", Extract: captureFloat(scipRootDualRe)},
	{Name: "dual bound summary", Extract: captureFloat(scipSummaryDualRe)},
}
