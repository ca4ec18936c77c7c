package service

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gdp-bench/internal/model"
)

const (
	OutcomeSummaryFile  = "solution_outcomes.txt"
	summaryStatsMarker  = "Summary Statistics:"
	outcomeSummaryTitle = "Solution Outcomes Summary"
)

// WriteOutcomeSummary 写出 7 列格式的 solution_outcomes.txt，策略名使用展示名
func WriteOutcomeSummary(w io.Writer, counts []model.StrategyOutcomeCount, timeLimit int, tol float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", outcomeSummaryTitle)
	fmt.Fprintf(bw, "%s\n\n", strings.Repeat("=", len(outcomeSummaryTitle)-2))
	fmt.Fprintf(bw, "Time limit: %d seconds\n", timeLimit)
	fmt.Fprintf(bw, "Objective tolerance: %s\n\n", formatTolerance(tol))

	fmt.Fprintf(bw, "%-20s %-8s %-8s %-10s %-9s %-10s %-8s %-8s\n",
		"Strategy", "Optimal", "Timeout", "Infeasible", "Wrong_Opt", "Solver_Err", "Missing", "Total")
	fmt.Fprintln(bw, strings.Repeat("-", 85))
	for _, c := range counts {
		writeCountRow(bw, "", StrategyDisplayName(c.Strategy), c)
		fmt.Fprintln(bw)
	}

	fmt.Fprintln(bw)
	fmt.Fprintln(bw, summaryStatsMarker)
	fmt.Fprintln(bw, strings.Repeat("-", 85))
	writeCountRow(bw, "", "TOTAL", TotalOutcomes(counts))
	fmt.Fprintln(bw)
	return bw.Flush()
}

// writeCountRow 固定宽度的一行计数，不含换行
func writeCountRow(w io.Writer, indent, name string, c model.StrategyOutcomeCount) {
	fmt.Fprintf(w, "%s%-20s %-8d %-8d %-10d %-9d %-10d %-8d %-8d", indent, name,
		c.Optimal, c.Timeout, c.Infeasible, c.WrongOptimal, c.SolverError, c.Missing, c.Total)
}

func formatTolerance(tol float64) string {
	return strconv.FormatFloat(tol, 'g', -1, 64)
}
