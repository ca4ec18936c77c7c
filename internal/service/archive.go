package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gdp-bench/internal/config"
	"gdp-bench/internal/model"
	"gdp-bench/internal/store"
)

const (
	PlotsDir             = "plots"
	relaxationGapsDir    = "relaxation_gaps"
	rootRelaxationDir    = "root_relaxation_scatter"
	nodeRelaxationDir    = "node_relaxation"
	profileDataFile      = "profile_data.csv"
	combinedSuffix       = "_combined"
	convexSuffix         = "_convex"
	defaultPlotExtension = ".png"
	reducedYStrategy     = "gdp.hull_reduced_y"
	hullExactConicNoChol = "gdp.hull_exact_conic_no_cholesky"
	hullExactStrategy    = "gdp.hull_exact"
	hullStrategy         = "gdp.hull"
	bigmStrategy         = "gdp.bigm"
	binaryMultStrategy   = "gdp.binary_multiplication"
)

// 逐模型对比的策略对
var comparisonPairs = [][2]string{
	{bigmStrategy, hullStrategy},
	{hullExactStrategy, hullStrategy},
	{bigmStrategy, hullExactStrategy},
	{hullExactStrategy, reducedYStrategy},
	{hullExactStrategy, binaryMultStrategy},
	{bigmStrategy, binaryMultStrategy},
}

// 松弛间隙对比的基准策略
var gapBaseStrategies = []string{hullExactStrategy, binaryMultStrategy, bigmStrategy}

var rootScatterPairs = [][2]string{
	{bigmStrategy, hullExactStrategy},
	{bigmStrategy, hullExactConicNoChol},
}

// 只包含部分策略的性能曲线，文件名后缀 -> 基础策略
var profileSubsets = []struct {
	suffix     string
	strategies []string
}{
	{"hull_exact_vs_hull", []string{hullExactStrategy, hullStrategy}},
	{"bigm_exact_hulls_hull", []string{bigmStrategy, hullExactStrategy, hullExactConicNoChol, hullStrategy}},
	{"exact_hulls_hull", []string{hullExactStrategy, hullExactConicNoChol, hullStrategy}},
}

// ArchiveProcessor 为归档实验目录生成结果摘要、性能曲线与对比图
type ArchiveProcessor struct {
	timeLimit int
	tolerance float64
	exclude   []string
	plots     PlotSink
}

func NewArchiveProcessor(exp config.ExperimentConfig, plots PlotSink) *ArchiveProcessor {
	exclude := exp.ExcludeStrategies
	if len(exclude) == 0 {
		exclude = []string{reducedYStrategy}
	}
	return &ArchiveProcessor{
		timeLimit: exp.TimeLimit,
		tolerance: exp.ObjTolerance,
		exclude:   exclude,
		plots:     plots,
	}
}

// ProcessArchives 处理 root 下的每个子目录，返回实际处理过的目录。
// 单个目录失败只记录日志。
func (p *ArchiveProcessor) ProcessArchives(ctx context.Context, root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("归档目录不存在 %s: %w", root, ErrMissingInput)
		}
		return nil, fmt.Errorf("读取归档目录失败: %w", err)
	}

	var processed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		dir := filepath.Join(root, e.Name())
		ok, err := p.ProcessArchiveFolder(ctx, dir)
		if err != nil {
			log.Printf("处理归档目录失败 %s: %v", dir, err)
			continue
		}
		if ok {
			processed = append(processed, dir)
		}
	}
	return processed, nil
}

// ProcessArchiveFolder 目录中恰好有一个 xlsx 且还没有 plots/ 时才处理，否则返回 false
func (p *ArchiveProcessor) ProcessArchiveFolder(ctx context.Context, dir string) (bool, error) {
	xlsx, err := findExcelFile(dir)
	if err != nil {
		return false, err
	}
	if xlsx == "" {
		log.Printf("跳过 %s: 没有唯一的 xlsx 文件", dir)
		return false, nil
	}
	plotsDir := filepath.Join(dir, PlotsDir)
	if _, err := os.Stat(plotsDir); err == nil {
		log.Printf("跳过 %s: plots 目录已存在", dir)
		return false, nil
	}

	rows, err := store.NewExcelStore(xlsx).Load(ctx)
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(plotsDir, 0o755); err != nil {
		return false, fmt.Errorf("创建 plots 目录失败: %w", err)
	}
	rows = model.FilterOriginal(rows)
	log.Printf("处理归档 %s: %d 条原问题记录", dir, len(rows))

	groups, combos := SplitBySolverCombo(rows)
	for _, combo := range combos {
		if err := p.writeComboOutputs(plotsDir, combo, NormalizeHullStrategy(groups[combo])); err != nil {
			return false, fmt.Errorf("求解器组合 %s: %w", combo, err)
		}
	}

	for _, combo := range combos {
		convex, ok := groups[combo+convexSuffix]
		if !ok {
			continue
		}
		combined := append([]model.ResultRow(nil), NormalizeHullStrategy(groups[combo])...)
		for _, r := range NormalizeHullStrategy(convex) {
			r.Strategy = ConvexStrategyName(r.Strategy)
			combined = append(combined, r)
		}
		if err := p.writeComboOutputs(plotsDir, combo+combinedSuffix, combined); err != nil {
			return false, fmt.Errorf("求解器组合 %s: %w", combo+combinedSuffix, err)
		}
	}
	return true, nil
}

func (p *ArchiveProcessor) writeComboOutputs(plotsDir, label string, rows []model.ResultRow) error {
	dir := filepath.Join(plotsDir, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	limit := float64(p.timeLimit)
	available := toSet(Strategies(rows))

	for _, pair := range comparisonPairs {
		if !available[pair[0]] || !available[pair[1]] {
			log.Printf("%s: 缺少策略 %s 或 %s，跳过对比图", label, pair[0], pair[1])
			continue
		}
		points := CompareStrategies(rows, pair[0], pair[1], MetricDuration, p.tolerance)
		path := filepath.Join(dir, fmt.Sprintf("comparison_%s_vs_%s%s", pair[0], pair[1], defaultPlotExtension))
		p.plot(p.plots.ComparisonScatter(points, pair[0], pair[1], MetricDuration, limit, path), path)
	}

	filtered := FilterStrategies(rows, nil, p.exclude)
	counts := CountOutcomes(filtered, limit, p.tolerance)
	if err := writeTextFile(filepath.Join(dir, OutcomeSummaryFile), func(f *os.File) error {
		return WriteOutcomeSummary(f, counts, p.timeLimit, p.tolerance)
	}); err != nil {
		return err
	}
	rep := BuildOutcomeReport(filtered, label, p.timeLimit, p.tolerance)
	if err := os.WriteFile(filepath.Join(dir, OutcomeMarkdownFile), []byte(RenderOutcomeMarkdown(rep)), 0o644); err != nil {
		return fmt.Errorf("写入结果报告失败: %w", err)
	}

	set := BuildProfiles(filtered, limit, p.tolerance, false)
	if err := WriteProfileCSV(filepath.Join(dir, profileDataFile), set); err != nil {
		return err
	}
	if len(counts) > 0 {
		path := filepath.Join(dir, "solution_outcomes_bar"+defaultPlotExtension)
		p.plot(p.plots.OutcomeBars(counts, path), path)
		path = filepath.Join(dir, "profile_combined"+defaultPlotExtension)
		p.plot(p.plots.RuntimeProfile(set, path), path)
		path = filepath.Join(dir, "profile_combined_gap"+defaultPlotExtension)
		p.plot(p.plots.GapProfile(set, path), path)
		path = filepath.Join(dir, "profile_absolute_performance"+defaultPlotExtension)
		p.plot(p.plots.CombinedProfile(set, path), path)
		path = filepath.Join(dir, "profile_fraction_performance"+defaultPlotExtension)
		p.plot(p.plots.CombinedProfile(BuildProfiles(filtered, limit, p.tolerance, true), path), path)

		for _, sp := range set.Profiles {
			single, _ := set.SingleStrategy(sp.Strategy)
			path = filepath.Join(dir, "profile_"+sp.Strategy+defaultPlotExtension)
			p.plot(p.plots.CombinedProfile(single, path), path)
		}
	}

	for _, sub := range profileSubsets {
		include := ExpandConvexVariants(sub.strategies, available)
		subset := FilterStrategies(rows, include, nil)
		if len(subset) == 0 {
			continue
		}
		subSet := BuildProfiles(subset, limit, p.tolerance, false)
		path := filepath.Join(dir, "profile_combined_"+sub.suffix+defaultPlotExtension)
		p.plot(p.plots.RuntimeProfile(subSet, path), path)
		path = filepath.Join(dir, "profile_absolute_performance_"+sub.suffix+defaultPlotExtension)
		p.plot(p.plots.CombinedProfile(subSet, path), path)
	}

	if err := p.writeGapComparisons(filepath.Join(plotsDir, relaxationGapsDir, label), rows, []Metric{MetricRelativeGap, MetricAbsoluteGap}); err != nil {
		return err
	}
	if err := p.writeGapComparisons(filepath.Join(plotsDir, nodeRelaxationDir, label), rows, []Metric{MetricRootRelaxation, MetricRootRelaxationGap}); err != nil {
		return err
	}
	return p.writeRootScatter(filepath.Join(plotsDir, rootRelaxationDir, label), rows, available)
}

// writeGapComparisons 每个基准策略与其余策略逐一对比；基准不存在时改用第一个策略
func (p *ArchiveProcessor) writeGapComparisons(dir string, rows []model.ResultRow, metrics []Metric) error {
	var present []Metric
	for _, m := range metrics {
		if hasMetric(rows, m) {
			present = append(present, m)
		}
	}
	strategies := Strategies(rows)
	if len(present) == 0 || len(strategies) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	available := toSet(strategies)
	done := map[string]bool{}
	for _, base := range gapBaseStrategies {
		if !available[base] {
			base = strategies[0]
		}
		for _, s := range strategies {
			if s == base {
				continue
			}
			for _, m := range present {
				name := fmt.Sprintf("%s_%s_vs_%s%s", m, base, s, defaultPlotExtension)
				if done[name] {
					continue
				}
				done[name] = true
				path := filepath.Join(dir, name)
				points := CompareStrategies(rows, base, s, m, p.tolerance)
				p.plot(p.plots.ComparisonScatter(points, base, s, m, 0, path), path)
			}
		}
	}
	return nil
}

func (p *ArchiveProcessor) writeRootScatter(dir string, rows []model.ResultRow, available map[string]bool) error {
	if !hasMetric(rows, MetricRootRelaxation) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	for _, pair := range rootScatterPairs {
		if !available[pair[0]] || !available[pair[1]] {
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("root_relaxation_%s_vs_%s%s", pair[0], pair[1], defaultPlotExtension))
		points := CompareStrategies(rows, pair[0], pair[1], MetricRootRelaxation, p.tolerance)
		p.plot(p.plots.ComparisonScatter(points, pair[0], pair[1], MetricRootRelaxation, 0, path), path)
	}
	return nil
}

// plot 绘图失败不影响其余输出
func (p *ArchiveProcessor) plot(err error, path string) {
	if err != nil {
		log.Printf("绘图失败 %s: %v", path, err)
	}
}

// CleanArchivePlots 删除 root 下每个归档目录中的 plots/，返回删除的目录
func CleanArchivePlots(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("归档目录不存在 %s: %w", root, ErrMissingInput)
		}
		return nil, fmt.Errorf("读取归档目录失败: %w", err)
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name(), PlotsDir)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("删除 plots 目录失败: %w", err)
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

// WriteProfileCSV 把性能曲线的点写成长表：strategy, display_name, phase, x, y
func WriteProfileCSV(path string, set ProfileSet) error {
	return writeTextFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write([]string{"strategy", "display_name", "phase", "x", "y"}); err != nil {
			return err
		}
		for _, sp := range set.Profiles {
			for _, phase := range []struct {
				name   string
				points []ProfilePoint
			}{{"runtime", sp.Runtime}, {"gap", sp.Gap}} {
				for _, pt := range phase.points {
					rec := []string{
						sp.Strategy,
						sp.DisplayName,
						phase.name,
						strconv.FormatFloat(pt.X, 'g', -1, 64),
						strconv.FormatFloat(pt.Y, 'g', -1, 64),
					}
					if err := w.Write(rec); err != nil {
						return err
					}
				}
			}
		}
		w.Flush()
		return w.Error()
	})
}

// findExcelFile 只有恰好一个 .xlsx 时返回其路径
func findExcelFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("读取目录失败: %w", err)
	}
	var found []string
	for _, e := range entries {
		// 跳过 Excel 打开时产生的锁文件
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".xlsx") {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}
	if len(found) != 1 {
		return "", nil
	}
	return found[0], nil
}

func hasMetric(rows []model.ResultRow, m Metric) bool {
	for _, r := range rows {
		if m.value(r) != nil {
			return true
		}
	}
	return false
}

func writeTextFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建文件失败: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("写入 %s 失败: %w", filepath.Base(path), err)
	}
	return f.Close()
}
