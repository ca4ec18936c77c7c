package service

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gdp-bench/internal/model"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// 对数坐标下的最小横坐标
const minLogX = 1e-2

var (
	colorOptimal   = color.RGBA{R: 46, G: 160, B: 67, A: 255}
	colorTimeout   = color.RGBA{R: 245, G: 140, B: 30, A: 255}
	colorWrong     = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorSame      = color.RGBA{R: 31, G: 119, B: 180, A: 200}
	colorDifferent = color.RGBA{R: 214, G: 39, B: 40, A: 200}
	colorLimit     = color.RGBA{R: 220, G: 0, B: 0, A: 180}
)

// 已知策略的固定颜色，其余按 plotutil 调色板分配
var strategyColors = map[string]color.Color{
	"gdp.bigm":                  color.RGBA{B: 255, A: 255},
	"gdp.hull":                  color.RGBA{R: 165, G: 42, B: 42, A: 255},
	"gdp.hull_exact":            color.RGBA{G: 128, A: 255},
	"gdp.hull_reduced_y":        color.RGBA{R: 128, B: 128, A: 255},
	"gdp.binary_multiplication": color.RGBA{R: 255, G: 165, A: 255},
}

// PlotSink 把分析结果渲染成图片文件
type PlotSink interface {
	RuntimeProfile(set ProfileSet, path string) error
	GapProfile(set ProfileSet, path string) error
	// CombinedProfile 左侧求解时间阶段，右侧间隙阶段，共用纵轴
	CombinedProfile(set ProfileSet, path string) error
	OutcomeBars(counts []model.StrategyOutcomeCount, path string) error
	ComparisonScatter(points []ComparisonPoint, s1, s2 string, metric Metric, timeLimit float64, path string) error
}

// GonumPlotter 基于 gonum/plot，输出格式由文件扩展名决定
type GonumPlotter struct {
	Width  vg.Length
	Height vg.Length
}

func NewGonumPlotter() *GonumPlotter {
	return &GonumPlotter{Width: 10 * vg.Inch, Height: 6 * vg.Inch}
}

func (g *GonumPlotter) RuntimeProfile(set ProfileSet, path string) error {
	p, err := runtimePlot(set)
	if err != nil {
		return err
	}
	return p.Save(g.Width, g.Height, path)
}

func (g *GonumPlotter) GapProfile(set ProfileSet, path string) error {
	p, err := gapPlot(set)
	if err != nil {
		return err
	}
	return p.Save(g.Width, g.Height, path)
}

func (g *GonumPlotter) CombinedProfile(set ProfileSet, path string) error {
	runtime, err := runtimePlot(set)
	if err != nil {
		return err
	}
	gap, err := gapPlot(set)
	if err != nil {
		return err
	}
	runtime.Title.Text = "Runtime Phase"
	gap.Title.Text = "Gap Phase"
	gap.Y.Label.Text = ""
	gap.Legend = plot.NewLegend()

	img := vgimg.New(g.Width*7/5, g.Height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align([][]*plot.Plot{{runtime, gap}}, tiles, dc)
	runtime.Draw(canvases[0][0])
	gap.Draw(canvases[0][1])
	return writeImage(img, path)
}

// writeImage 按扩展名选择 jpg 或 png 编码
func writeImage(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图片文件失败: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		_, err = vgimg.JpegCanvas{Canvas: img}.WriteTo(f)
	default:
		_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(f)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("写入图片失败: %w", err)
	}
	return f.Close()
}

func runtimePlot(set ProfileSet) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Performance Profile"
	p.X.Label.Text = "Solution Time (s)"
	p.Y.Label.Text = yLabel(set.Fraction, "Number of Instances Solved")
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	maxX := math.Max(set.TimeLimit, minLogX*10)
	for i, sp := range set.Profiles {
		if len(sp.Runtime) == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(sp.Runtime)+1)
		for _, pt := range sp.Runtime {
			pts = append(pts, plotter.XY{X: math.Max(pt.X, minLogX), Y: pt.Y})
			maxX = math.Max(maxX, pt.X)
		}
		// 曲线延伸到时间限制处
		last := pts[len(pts)-1]
		if last.X < set.TimeLimit {
			pts = append(pts, plotter.XY{X: set.TimeLimit, Y: last.Y})
		}
		line, err := stepLine(pts, sp.Strategy, i)
		if err != nil {
			return nil, err
		}
		p.Add(line)
		p.Legend.Add(sp.DisplayName, line)
	}

	yMax := yAxisMax(set)
	if set.TimeLimit > 0 {
		limit, err := vertical(set.TimeLimit, 0, yMax)
		if err != nil {
			return nil, err
		}
		p.Add(limit)
		p.Legend.Add(fmt.Sprintf("Time limit %gs", set.TimeLimit), limit)
	}

	p.X.Min, p.X.Max = minLogX, maxX*1.2
	p.Y.Min, p.Y.Max = 0, yMax
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func gapPlot(set ProfileSet) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Performance Profile (Gap Phase)"
	p.X.Label.Text = "Gap"
	p.Y.Label.Text = yLabel(set.Fraction, "Number of Instances")
	p.Add(plotter.NewGrid())

	maxX := set.FiniteMaxGap
	if maxX <= 0 {
		maxX = 1
	}
	for i, sp := range set.Profiles {
		if len(sp.Gap) < 2 {
			continue
		}
		pts := make(plotter.XYs, len(sp.Gap))
		for j, pt := range sp.Gap {
			pts[j] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := stepLine(pts, sp.Strategy, i)
		if err != nil {
			return nil, err
		}
		p.Add(line)
		p.Legend.Add(sp.DisplayName, line)
	}

	p.X.Min, p.X.Max = 0, maxX
	p.Y.Min, p.Y.Max = 0, yAxisMax(set)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// SingleStrategy 只保留一个策略曲线的视图，纵轴范围不变
func (s ProfileSet) SingleStrategy(strategy string) (ProfileSet, bool) {
	for _, sp := range s.Profiles {
		if sp.Strategy == strategy {
			out := s
			out.Profiles = []StrategyProfile{sp}
			return out, true
		}
	}
	return ProfileSet{}, false
}

// OutcomeBars 每个策略三根柱：最优、超时、错误（其余全部）
func (g *GonumPlotter) OutcomeBars(counts []model.StrategyOutcomeCount, path string) error {
	if len(counts) == 0 {
		return fmt.Errorf("没有可绘制的策略结果")
	}
	p := plot.New()
	p.Title.Text = "Solution Outcomes"
	p.Y.Label.Text = "Number of Instances"

	optimal := make(plotter.Values, len(counts))
	timeout := make(plotter.Values, len(counts))
	wrong := make(plotter.Values, len(counts))
	names := make([]string, len(counts))
	for i, c := range counts {
		optimal[i] = float64(c.Optimal)
		timeout[i] = float64(c.Timeout)
		wrong[i] = float64(c.Total - c.Optimal - c.Timeout)
		names[i] = StrategyDisplayName(c.Strategy)
	}

	w := vg.Points(18)
	series := []struct {
		label  string
		values plotter.Values
		color  color.Color
		offset vg.Length
	}{
		{"Optimal", optimal, colorOptimal, -w},
		{"Timeout", timeout, colorTimeout, 0},
		{"Wrong Solution", wrong, colorWrong, w},
	}
	for _, s := range series {
		bars, err := plotter.NewBarChart(s.values, w)
		if err != nil {
			return fmt.Errorf("创建柱状图失败: %w", err)
		}
		bars.Color = s.color
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = s.offset
		p.Add(bars)
		p.Legend.Add(s.label, bars)
	}
	p.NominalX(names...)
	p.Y.Min = 0
	p.Legend.Top = true
	return p.Save(g.Width, g.Height, path)
}

// ComparisonScatter 两个策略逐模型对比；目标值相同为蓝色，不同为红色
func (g *GonumPlotter) ComparisonScatter(points []ComparisonPoint, s1, s2 string, metric Metric, timeLimit float64, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", StrategyDisplayName(s1), StrategyDisplayName(s2))
	p.X.Label.Text = fmt.Sprintf("%s %s", StrategyDisplayName(s1), metricLabel(metric))
	p.Y.Label.Text = fmt.Sprintf("%s %s", StrategyDisplayName(s2), metricLabel(metric))
	p.Add(plotter.NewGrid())

	logScale := metric == MetricDuration
	var same, diff plotter.XYs
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, pt := range points {
		if pt.X == nil || pt.Y == nil {
			continue
		}
		x, y := *pt.X, *pt.Y
		if logScale {
			x, y = math.Max(x, minLogX), math.Max(y, minLogX)
		}
		lo, hi = math.Min(lo, math.Min(x, y)), math.Max(hi, math.Max(x, y))
		if pt.DifferentObjective {
			diff = append(diff, plotter.XY{X: x, Y: y})
		} else {
			same = append(same, plotter.XY{X: x, Y: y})
		}
	}
	if logScale && timeLimit > 0 {
		hi = math.Max(hi, timeLimit)
	}
	if math.IsInf(lo, 0) {
		lo, hi = 0, 1
		if logScale {
			lo, hi = minLogX, math.Max(timeLimit, 1)
		}
	}
	if hi <= lo {
		hi = lo + 1
	}
	if logScale {
		lo, hi = math.Max(lo*0.9, minLogX), hi*1.2
		p.X.Scale, p.Y.Scale = plot.LogScale{}, plot.LogScale{}
		p.X.Tick.Marker, p.Y.Tick.Marker = plot.LogTicks{Prec: -1}, plot.LogTicks{Prec: -1}
	}

	diag, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return fmt.Errorf("创建对角线失败: %w", err)
	}
	diag.Color = color.Black
	diag.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(diag)
	p.Legend.Add("x=y", diag)

	if logScale && timeLimit > 0 && timeLimit <= hi {
		limit, err := vertical(timeLimit, lo, hi)
		if err != nil {
			return err
		}
		p.Add(limit)
		p.Legend.Add(fmt.Sprintf("Time limit %gs", timeLimit), limit)
	}

	for _, group := range []struct {
		label string
		pts   plotter.XYs
		color color.Color
	}{
		{"Same objective", same, colorSame},
		{"Different objective", diff, colorDifferent},
	} {
		if len(group.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(group.pts)
		if err != nil {
			return fmt.Errorf("创建散点图失败: %w", err)
		}
		sc.GlyphStyle.Color = group.color
		sc.GlyphStyle.Radius = vg.Points(3)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(group.label, sc)
	}

	p.X.Min, p.X.Max = lo, hi
	p.Y.Min, p.Y.Max = lo, hi
	return p.Save(g.Width, g.Width, path)
}

func stepLine(pts plotter.XYs, strategy string, i int) (*plotter.Line, error) {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("创建曲线失败: %w", err)
	}
	line.StepStyle = plotter.PostStep
	line.Width = vg.Points(2)
	line.Dashes = plotutil.Dashes(i)
	if c, ok := strategyColors[strategy]; ok {
		line.Color = c
	} else {
		line.Color = plotutil.Color(i)
	}
	return line, nil
}

// vertical 在 x 处画一条虚线
func vertical(x, y0, y1 float64) (*plotter.Line, error) {
	line, err := plotter.NewLine(plotter.XYs{{X: x, Y: y0}, {X: x, Y: y1}})
	if err != nil {
		return nil, fmt.Errorf("创建时间限制线失败: %w", err)
	}
	line.Color = colorLimit
	line.Width = vg.Points(2)
	line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	return line, nil
}

func yAxisMax(set ProfileSet) float64 {
	if set.Fraction {
		return 1.05
	}
	return float64(set.Models) + 1
}

func yLabel(fraction bool, label string) string {
	if fraction {
		return "Fraction of Instances"
	}
	return label
}

func metricLabel(m Metric) string {
	switch m {
	case MetricDuration:
		return "Solution Time (s)"
	case MetricRelativeGap:
		return "Relative Gap (%)"
	case MetricAbsoluteGap:
		return "Absolute Gap"
	case MetricRootRelaxation:
		return "Root Relaxation Value"
	case MetricRootRelaxationGap:
		return "Root Relaxation Gap (%)"
	}
	return string(m)
}
