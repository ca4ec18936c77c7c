package service

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gdp-bench/internal/model"
)

const AggregateReportFile = "aggregated_solution_outcomes.txt"

var (
	numberToken     = regexp.MustCompile(`\b\d+\b`)
	leadingName     = regexp.MustCompile(`^([^0-9]+)`)
	timeLimitLine   = regexp.MustCompile(`Time limit: (\d+) seconds`)
	tolerancePrefix = regexp.MustCompile(`Objective tolerance: ([\d.e-]+)`)
)

// 7 列格式的默认列顺序，文件里没有表头时使用
var fullColumns = []string{"optimal", "timeout", "infeasible", "wrong_optimal", "solver_error", "missing", "total"}

// 表头单词到计数字段的映射，旧格式的 Wrong 也视为 wrong_optimal
var headerFields = map[string]string{
	"optimal":    "optimal",
	"timeout":    "timeout",
	"infeasible": "infeasible",
	"wrong":      "wrong_optimal",
	"wrong_opt":  "wrong_optimal",
	"solver_err": "solver_error",
	"missing":    "missing",
	"total":      "total",
}

// ParsedOutcomeFile 一个 solution_outcomes.txt 的解析结果
type ParsedOutcomeFile struct {
	Path         string                       `json:"path"`
	Experiment   string                       `json:"experiment"`
	SolverCombo  string                       `json:"solver_combo"`
	TimeLimit    *int                         `json:"time_limit"`
	ObjTolerance *float64                     `json:"obj_tolerance"`
	Strategies   []model.StrategyOutcomeCount `json:"strategies"`
	Total        *model.StrategyOutcomeCount  `json:"total,omitempty"`
}

type StrategyAggregate struct {
	model.StrategyOutcomeCount
	Experiments []string `json:"experiments"`
}

type ExperimentTotal struct {
	Experiment  string `json:"experiment"`
	SolverCombo string `json:"solver_combo"`
	Optimal     int    `json:"optimal"`
	Timeout     int    `json:"timeout"`
	// TOTAL 行的 total 除以策略数，只是近似的问题数
	Problems int `json:"problems"`
	Total    int `json:"total"`
}

// Insight 某项计数最高的策略；Rate 只在 Total > 0 时给出
type Insight struct {
	Strategy string   `json:"strategy"`
	Count    int      `json:"count"`
	Total    int      `json:"total"`
	Rate     *float64 `json:"rate"`
}

type AggregateReport struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	Files          []ParsedOutcomeFile        `json:"files"`
	Strategies     []StrategyAggregate        `json:"strategies"`
	GrandTotal     model.StrategyOutcomeCount `json:"grand_total"`
	Experiments    []ExperimentTotal          `json:"experiments"`
	BestByOptimal  *Insight                   `json:"best_by_optimal,omitempty"`
	MostTimeouts   *Insight                   `json:"most_timeouts,omitempty"`
	MostInfeasible *Insight                   `json:"most_infeasible,omitempty"`
}

// FindOutcomeFiles 递归查找 root 下所有 solution_outcomes.txt
func FindOutcomeFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == OutcomeSummaryFile {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历目录 %s 失败: %w", root, err)
	}
	return files, nil
}

// ExtractExperimentInfo 从路径中取实验名和求解器组合：
// 离文件最近的含 plots/archive 的目录，前一段是实验名，后一段是组合
func ExtractExperimentInfo(path string) (experiment, solverCombo string) {
	experiment, solverCombo = "unknown", "unknown"
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if strings.Contains(parts[i], "plots") || strings.Contains(parts[i], "archive") {
			if i > 0 && parts[i-1] != "" {
				experiment = parts[i-1]
			}
			if i+1 < len(parts)-1 {
				solverCombo = parts[i+1]
			}
			break
		}
	}
	return experiment, solverCombo
}

// ParseOutcomeSummary 解析结果汇总文本。表头决定列顺序，同时支持旧格式与 7 列格式；
// 数字个数少于列数的行直接跳过。
func ParseOutcomeSummary(r io.Reader) (*ParsedOutcomeFile, error) {
	out := &ParsedOutcomeFile{}
	columns := fullColumns
	inTable, inSummary := false, false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := timeLimitLine.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				out.TimeLimit = &v
			}
			continue
		}
		if m := tolerancePrefix.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				out.ObjTolerance = &v
			}
			continue
		}

		if strings.Contains(line, "Strategy") && strings.Contains(line, "Optimal") && strings.Contains(line, "Timeout") {
			inTable = true
			if cols := headerColumns(line); len(cols) > 0 {
				columns = cols
			}
			continue
		}
		if strings.Contains(line, summaryStatsMarker) {
			inSummary = true
			continue
		}
		if inSummary && strings.Contains(line, "TOTAL") {
			if c, ok := countsFromLine("TOTAL", line, columns); ok {
				out.Total = &c
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "=") {
			continue
		}
		if inTable && !inSummary && !strings.HasPrefix(line, "TOTAL") {
			if !leadingName.MatchString(line) {
				continue
			}
			if c, ok := countsFromLine("", line, columns); ok {
				out.Strategies = append(out.Strategies, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取结果汇总失败: %w", err)
	}
	return out, nil
}

// ParseOutcomeFile 解析单个文件并填入路径中的实验信息
func ParseOutcomeFile(path string) (*ParsedOutcomeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", path, err)
	}
	defer f.Close()

	parsed, err := ParseOutcomeSummary(f)
	if err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	parsed.Path = path
	parsed.Experiment, parsed.SolverCombo = ExtractExperimentInfo(path)
	for i := range parsed.Strategies {
		parsed.Strategies[i].Experiment = parsed.Experiment
		parsed.Strategies[i].SolverCombo = parsed.SolverCombo
	}
	return parsed, nil
}

func headerColumns(line string) []string {
	var cols []string
	for _, tok := range strings.Fields(line) {
		if field, ok := headerFields[strings.ToLower(tok)]; ok {
			cols = append(cols, field)
		}
	}
	return cols
}

// countsFromLine 取行尾的 len(columns) 个整数作为计数；name 为空时用计数之前的文本作策略名
func countsFromLine(name, line string, columns []string) (model.StrategyOutcomeCount, bool) {
	c := model.StrategyOutcomeCount{Strategy: name}
	locs := numberToken.FindAllStringIndex(line, -1)
	if len(locs) < len(columns) || len(columns) == 0 {
		return c, false
	}
	locs = locs[len(locs)-len(columns):]
	if c.Strategy == "" {
		c.Strategy = strings.TrimSpace(line[:locs[0][0]])
		if c.Strategy == "" {
			return c, false
		}
	}
	for i, col := range columns {
		v, err := strconv.Atoi(line[locs[i][0]:locs[i][1]])
		if err != nil {
			return c, false
		}
		switch col {
		case "optimal":
			c.Optimal = v
		case "timeout":
			c.Timeout = v
		case "infeasible":
			c.Infeasible = v
		case "wrong_optimal":
			c.WrongOptimal = v
		case "solver_error":
			c.SolverError = v
		case "missing":
			c.Missing = v
		case "total":
			c.Total = v
		}
	}
	return c, true
}

// Aggregate 跨实验合并：按策略累加，总计为各策略之和；
// 只有 TOTAL 行的文件把 TOTAL 行计入总计
func Aggregate(files []ParsedOutcomeFile) AggregateReport {
	rep := AggregateReport{GeneratedAt: time.Now(), Files: files}
	rep.GrandTotal.Strategy = "GRAND TOTAL"

	index := map[string]int{}
	for _, f := range files {
		expKey := f.Experiment + "_" + f.SolverCombo
		for _, s := range f.Strategies {
			i, ok := index[s.Strategy]
			if !ok {
				i = len(rep.Strategies)
				index[s.Strategy] = i
				rep.Strategies = append(rep.Strategies, StrategyAggregate{
					StrategyOutcomeCount: model.StrategyOutcomeCount{Strategy: s.Strategy},
				})
			}
			rep.Strategies[i].Add(s)
			rep.Strategies[i].Experiments = append(rep.Strategies[i].Experiments, expKey)
			rep.GrandTotal.Add(s)
		}
		if len(f.Strategies) == 0 && f.Total != nil {
			rep.GrandTotal.Add(*f.Total)
		}
	}

	expIndex := map[string]int{}
	for _, f := range files {
		if f.Total == nil {
			continue
		}
		problems := 0
		if len(rep.Strategies) > 0 {
			problems = f.Total.Total / len(rep.Strategies)
		}
		et := ExperimentTotal{
			Experiment:  f.Experiment,
			SolverCombo: f.SolverCombo,
			Optimal:     f.Total.Optimal,
			Timeout:     f.Total.Timeout,
			Problems:    problems,
			Total:       f.Total.Total,
		}
		key := f.Experiment + "_" + f.SolverCombo
		if i, ok := expIndex[key]; ok {
			rep.Experiments[i] = et
			continue
		}
		expIndex[key] = len(rep.Experiments)
		rep.Experiments = append(rep.Experiments, et)
	}

	rep.BestByOptimal = argmaxInsight(rep.Strategies, func(c model.StrategyOutcomeCount) int { return c.Optimal })
	rep.MostTimeouts = argmaxInsight(rep.Strategies, func(c model.StrategyOutcomeCount) int { return c.Timeout })
	for _, s := range rep.Strategies {
		if s.Infeasible > 0 {
			rep.MostInfeasible = argmaxInsight(rep.Strategies, func(c model.StrategyOutcomeCount) int { return c.Infeasible })
			break
		}
	}
	return rep
}

// argmaxInsight 并列时取先出现的策略
func argmaxInsight(aggs []StrategyAggregate, field func(model.StrategyOutcomeCount) int) *Insight {
	if len(aggs) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(aggs); i++ {
		if field(aggs[i].StrategyOutcomeCount) > field(aggs[best].StrategyOutcomeCount) {
			best = i
		}
	}
	a := aggs[best]
	in := &Insight{Strategy: a.Strategy, Count: field(a.StrategyOutcomeCount), Total: a.Total}
	if a.Total > 0 {
		rate := float64(in.Count) / float64(a.Total) * 100
		in.Rate = &rate
	}
	return in
}

// AggregateDir 查找、解析并汇总 root 下的全部结果文件；解析失败的文件记录日志后跳过
func AggregateDir(root string) (*AggregateReport, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("归档目录不存在 %s: %w", root, ErrMissingInput)
	}
	paths, err := FindOutcomeFiles(root)
	if err != nil {
		return nil, err
	}
	var files []ParsedOutcomeFile
	for _, p := range paths {
		parsed, err := ParseOutcomeFile(p)
		if err != nil {
			log.Printf("解析结果汇总失败 %s: %v", p, err)
			continue
		}
		log.Printf("解析 %s: %d 个策略", p, len(parsed.Strategies))
		files = append(files, *parsed)
	}
	rep := Aggregate(files)
	return &rep, nil
}

// WriteAggregateReport 输出跨实验汇总的文本报告
func WriteAggregateReport(w io.Writer, rep AggregateReport) error {
	bw := bufio.NewWriter(w)
	eq := strings.Repeat("=", 80)
	dash80 := strings.Repeat("-", 80)
	dash85 := strings.Repeat("-", 85)
	dash100 := strings.Repeat("-", 100)

	fmt.Fprintln(bw, "AGGREGATED SOLUTION OUTCOMES REPORT - K-MEANS PROJECT")
	fmt.Fprintf(bw, "%s\n\n", eq)
	fmt.Fprintf(bw, "Generated on: %s\n", rep.GeneratedAt.Format(runTimeLayout))
	fmt.Fprintf(bw, "Total experiments analyzed: %d\n\n", len(rep.Files))

	fmt.Fprintln(bw, "INDIVIDUAL EXPERIMENT SUMMARIES")
	fmt.Fprintf(bw, "%s\n\n", eq)
	for i, f := range rep.Files {
		fmt.Fprintf(bw, "%d. EXPERIMENT: %s\n", i+1, strings.ToUpper(f.Experiment))
		fmt.Fprintf(bw, "   Solver: %s\n", f.SolverCombo)
		fmt.Fprintf(bw, "   Time limit: %s seconds\n", optionalInt(f.TimeLimit))
		fmt.Fprintf(bw, "   Objective tolerance: %s\n", optionalTolerance(f.ObjTolerance))
		fmt.Fprintf(bw, "   File: %s\n\n", f.Path)

		fmt.Fprintf(bw, "   %-20s %-8s %-8s %-10s %-9s %-10s %-8s %-8s\n",
			"Strategy", "Optimal", "Timeout", "Infeasible", "Wrong_Opt", "Solver_Err", "Missing", "Total")
		fmt.Fprintf(bw, "   %s\n", dash85)
		for _, s := range f.Strategies {
			writeCountRow(bw, "   ", s.Strategy, s)
			fmt.Fprintln(bw)
		}
		if f.Total != nil {
			fmt.Fprintf(bw, "   %s\n", dash85)
			writeCountRow(bw, "   ", "TOTAL", *f.Total)
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "\n%s\n\n", eq)
	}

	fmt.Fprintln(bw, "OVERALL AGGREGATED STATISTICS")
	fmt.Fprintf(bw, "%s\n\n", eq)
	fmt.Fprintln(bw, "STRATEGY PERFORMANCE ACROSS ALL EXPERIMENTS")
	fmt.Fprintf(bw, "%s\n\n", dash80)
	fmt.Fprintf(bw, "%-20s %-8s %-8s %-10s %-9s %-10s %-8s %-8s %-3s\n",
		"Strategy", "Optimal", "Timeout", "Infeasible", "Wrong_Opt", "Solver_Err", "Missing", "Total", "Experiments")
	fmt.Fprintln(bw, dash100)
	for _, s := range rep.Strategies {
		writeCountRow(bw, "", s.Strategy, s.StrategyOutcomeCount)
		fmt.Fprintf(bw, " %-3d\n", len(s.Experiments))
	}
	fmt.Fprintln(bw, dash100)
	writeCountRow(bw, "", "GRAND TOTAL", rep.GrandTotal)
	fmt.Fprint(bw, "\n\n")

	fmt.Fprintln(bw, "EXPERIMENT COMPARISON")
	fmt.Fprintf(bw, "%s\n\n", dash80)
	fmt.Fprintf(bw, "%-30s %-15s %-8s %-8s %-8s %-8s\n", "Experiment", "Solver", "Optimal", "Timeout", "Problems", "Total")
	fmt.Fprintln(bw, dash85)
	for _, e := range rep.Experiments {
		fmt.Fprintf(bw, "%-30s %-15s %-8d %-8d %-8d %-8d\n", e.Experiment, e.SolverCombo, e.Optimal, e.Timeout, e.Problems, e.Total)
	}
	fmt.Fprintf(bw, "\n%s\n\n", eq)

	fmt.Fprintln(bw, "PERFORMANCE INSIGHTS")
	fmt.Fprintf(bw, "%s\n\n", dash80)
	writeInsight(bw, rep.BestByOptimal, "Best performing strategy (by optimal solutions)", "Optimal solutions", "Success rate")
	writeInsight(bw, rep.MostTimeouts, "Strategy with most timeouts", "Timeouts", "Timeout rate")
	writeInsight(bw, rep.MostInfeasible, "Strategy with most infeasible solutions", "Infeasible", "Infeasible rate")

	return bw.Flush()
}

func writeInsight(w io.Writer, in *Insight, title, countLabel, rateLabel string) {
	if in == nil {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", title, in.Strategy)
	fmt.Fprintf(w, "  - %s: %d\n", countLabel, in.Count)
	if in.Rate != nil {
		fmt.Fprintf(w, "  - %s: %.1f%%\n", rateLabel, *in.Rate)
	}
	fmt.Fprintln(w)
}

func optionalInt(v *int) string {
	if v == nil {
		return "N/A"
	}
	return strconv.Itoa(*v)
}

func optionalTolerance(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return formatTolerance(*v)
}
