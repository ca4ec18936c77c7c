package service

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gdp-bench/internal/config"
	"gdp-bench/internal/model"
	"gdp-bench/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 只记录请求绘制的文件，不真正绘图
type recordingSink struct {
	paths    []string
	combined []ProfileSet
}

func (s *recordingSink) RuntimeProfile(set ProfileSet, path string) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) GapProfile(set ProfileSet, path string) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) CombinedProfile(set ProfileSet, path string) error {
	s.paths = append(s.paths, path)
	s.combined = append(s.combined, set)
	return nil
}

func (s *recordingSink) OutcomeBars(counts []model.StrategyOutcomeCount, path string) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) ComparisonScatter(points []ComparisonPoint, s1, s2 string, metric Metric, timeLimit float64, path string) error {
	s.paths = append(s.paths, path)
	return nil
}

func (s *recordingSink) has(suffix string) bool {
	for _, p := range s.paths {
		if strings.HasSuffix(filepath.ToSlash(p), suffix) {
			return true
		}
	}
	return false
}

func archiveRow(modelName, strategy, subsolver, status string, obj float64, duration float64) model.ResultRow {
	return model.ResultRow{
		RunTime:        "2024-10-14 12:00:00",
		Mode:           "no_mode",
		Strategy:       strategy,
		ModelName:      modelName,
		ProblemType:    model.ProblemOriginal,
		Duration:       duration,
		Status:         status,
		ObjectiveValue: model.Float(obj),
		Solver:         "gams",
		Subsolver:      subsolver,
	}
}

func writeArchiveXLSX(t *testing.T, dir, name string, rows []model.ResultRow) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	s := store.NewExcelStore(filepath.Join(dir, name))
	for _, r := range rows {
		require.NoError(t, s.Append(context.Background(), r))
	}
}

func archiveFixture() []model.ResultRow {
	gapped := archiveRow("m1", "gdp.hull_exact", "gurobi", "optimal", 10, 3)
	gapped.RelativeGap = model.Float(12.5)
	return []model.ResultRow{
		archiveRow("m1", "gdp.bigm", "gurobi", "optimal", 10, 5),
		archiveRow("m1", "gdp.hull_eps_1e-4", "gurobi", "optimal", 10, 7),
		gapped,
		archiveRow("m1", "gdp.hull_reduced_y", "gurobi", "optimal", 10, 2),
		archiveRow("m2", "gdp.bigm", "gurobi", "maxTimeLimit", 30, 1800),
		archiveRow("m2", "gdp.hull_eps_1e-4", "gurobi", "optimal", 20, 100),
		archiveRow("m1", "gdp.bigm", "gurobi_convex", "optimal", 10, 4),
		archiveRow("m2", "gdp.bigm", "gurobi_convex", "optimal", 20, 40),
		{ModelName: "m1", Strategy: "gdp.bigm", ProblemType: model.ProblemRelaxation, Status: "optimal", Solver: "gams", Subsolver: "gurobi"},
	}
}

func newTestArchiveProcessor(sink PlotSink) *ArchiveProcessor {
	exp := config.Default().Experiment
	exp.TimeLimit = 1800
	exp.ObjTolerance = 1e-4
	return NewArchiveProcessor(exp, sink)
}

func TestProcessArchives(t *testing.T) {
	root := t.TempDir()
	writeArchiveXLSX(t, filepath.Join(root, "exp1"), "results.xlsx", archiveFixture())

	// 已有 plots 的目录跳过
	writeArchiveXLSX(t, filepath.Join(root, "exp2"), "results.xlsx", archiveFixture())
	require.NoError(t, os.MkdirAll(filepath.Join(root, "exp2", PlotsDir), 0o755))

	// 两个 xlsx 的目录跳过
	writeArchiveXLSX(t, filepath.Join(root, "exp3"), "a.xlsx", archiveFixture())
	writeArchiveXLSX(t, filepath.Join(root, "exp3"), "b.xlsx", archiveFixture())

	require.NoError(t, os.MkdirAll(filepath.Join(root, "exp4"), 0o755))

	sink := &recordingSink{}
	p := newTestArchiveProcessor(sink)
	processed, err := p.ProcessArchives(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "exp1")}, processed)

	plots := filepath.Join(root, "exp1", PlotsDir)
	for _, f := range []string{OutcomeSummaryFile, OutcomeMarkdownFile, profileDataFile} {
		assert.FileExists(t, filepath.Join(plots, "gams_gurobi", f))
		assert.FileExists(t, filepath.Join(plots, "gams_gurobi_convex", f))
		assert.FileExists(t, filepath.Join(plots, "gams_gurobi_combined", f))
	}

	parsed, err := ParseOutcomeFile(filepath.Join(plots, "gams_gurobi", OutcomeSummaryFile))
	require.NoError(t, err)
	var names []string
	for _, s := range parsed.Strategies {
		names = append(names, s.Strategy)
	}
	// hull_eps_1e-4 改名为 hull，hull_reduced_y 不出现在摘要里
	assert.Equal(t, []string{"BigM", "Hull(ε-approx.)", "Hull Exact"}, names)
	require.NotNil(t, parsed.TimeLimit)
	assert.Equal(t, 1800, *parsed.TimeLimit)

	combined, err := ParseOutcomeFile(filepath.Join(plots, "gams_gurobi_combined", OutcomeSummaryFile))
	require.NoError(t, err)
	assert.Len(t, combined.Strategies, 4)
	assert.Equal(t, "convex_flag_BigM", combined.Strategies[3].Strategy)

	assert.True(t, sink.has("gams_gurobi/comparison_gdp.bigm_vs_gdp.hull.png"))
	assert.True(t, sink.has("gams_gurobi/comparison_gdp.hull_exact_vs_gdp.hull_reduced_y.png"))
	assert.True(t, sink.has("gams_gurobi/profile_combined.png"))
	assert.True(t, sink.has("gams_gurobi/solution_outcomes_bar.png"))
	assert.True(t, sink.has("gams_gurobi_combined/profile_combined_hull_exact_vs_hull.png"))
	assert.True(t, sink.has("gams_gurobi/profile_absolute_performance.png"))
	assert.True(t, sink.has("gams_gurobi/profile_fraction_performance.png"))
	assert.True(t, sink.has("gams_gurobi/profile_absolute_performance_hull_exact_vs_hull.png"))
	assert.True(t, sink.has("gams_gurobi/profile_gdp.bigm.png"))
	assert.True(t, sink.has("gams_gurobi/profile_gdp.hull_exact.png"))
	assert.False(t, sink.has("gams_gurobi/profile_gdp.hull_reduced_y.png"))
	assert.False(t, sink.has("gams_gurobi/profile_fraction.png"))

	var fraction, single int
	for _, set := range sink.combined {
		if set.Fraction {
			fraction++
		}
		if len(set.Profiles) == 1 {
			single++
		}
	}
	assert.Positive(t, fraction)
	assert.Positive(t, single)
	assert.True(t, sink.has("relaxation_gaps/gams_gurobi/relative_gap_gdp.hull_exact_vs_gdp.bigm.png"))
	assert.False(t, sink.has("relaxation_gaps/gams_gurobi/absolute_gap_gdp.hull_exact_vs_gdp.bigm.png"))

	// 再次处理时 plots 已存在
	again, err := p.ProcessArchives(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, again)

	// 生成的摘要可以直接被汇总
	rep, err := AggregateDir(root)
	require.NoError(t, err)
	assert.Len(t, rep.Files, 3)
	var combos []string
	for _, e := range rep.Experiments {
		assert.Equal(t, "exp1", e.Experiment)
		combos = append(combos, e.SolverCombo)
	}
	sort.Strings(combos)
	assert.Equal(t, []string{"gams_gurobi", "gams_gurobi_combined", "gams_gurobi_convex"}, combos)
}

func TestProcessArchives_MissingRoot(t *testing.T) {
	p := newTestArchiveProcessor(&recordingSink{})
	_, err := p.ProcessArchives(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestCleanArchivePlots(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "exp1", PlotsDir, "gams_gurobi"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "exp2"), 0o755))

	removed, err := CleanArchivePlots(root)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "exp1", PlotsDir)}, removed)
	assert.NoDirExists(t, filepath.Join(root, "exp1", PlotsDir))
	assert.DirExists(t, filepath.Join(root, "exp2"))
}

func TestWriteProfileCSV(t *testing.T) {
	set := BuildProfiles(outcomeFixture(), 1800, 1e-4, false)
	path := filepath.Join(t.TempDir(), profileDataFile)
	require.NoError(t, WriteProfileCSV(path, set))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"strategy", "display_name", "phase", "x", "y"}, records[0])
	assert.Equal(t, []string{"gdp.bigm", "BigM", "runtime", "5", "1"}, records[1])
}
