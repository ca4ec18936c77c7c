package handler

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"gdp-bench/internal/config"
	"gdp-bench/internal/model"
	"gdp-bench/internal/service"
	"gdp-bench/internal/store"

	"github.com/gin-gonic/gin"
)

// ExperimentHandler 基于结果表的分析接口
type ExperimentHandler struct {
	store store.ResultStore
	exp   config.ExperimentConfig
}

func NewExperimentHandler(s store.ResultStore, exp config.ExperimentConfig) *ExperimentHandler {
	return &ExperimentHandler{store: s, exp: exp}
}

// ListResults 获取结果行
func (h *ExperimentHandler) ListResults(c *gin.Context) {
	rows, ok := h.loadRows(c, false)
	if !ok {
		return
	}
	problemType := c.Query("problem_type")
	strategy := c.Query("strategy")

	out := make([]model.ResultRow, 0, len(rows))
	for _, r := range rows {
		if problemType != "" && string(r.ProblemType) != problemType {
			continue
		}
		if strategy != "" && r.Strategy != strategy {
			continue
		}
		out = append(out, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"results": out,
		"total":   len(out),
	})
}

// GetOutcomes 各策略的结果计数；format=text 时返回汇总文本
func (h *ExperimentHandler) GetOutcomes(c *gin.Context) {
	timeLimit, tol, ok := h.limits(c)
	if !ok {
		return
	}
	rows, ok := h.loadRows(c, true)
	if !ok {
		return
	}

	counts := service.CountOutcomes(rows, float64(timeLimit), tol)
	if c.Query("format") == "text" {
		var buf bytes.Buffer
		if err := service.WriteOutcomeSummary(&buf, counts, timeLimit, tol); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, buf.String())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"solver_combo": c.Query("solver_combo"),
		"time_limit":   timeLimit,
		"tolerance":    tol,
		"outcomes":     counts,
		"total":        service.TotalOutcomes(counts),
	})
}

// GetProfiles 性能曲线数据
func (h *ExperimentHandler) GetProfiles(c *gin.Context) {
	timeLimit, tol, ok := h.limits(c)
	if !ok {
		return
	}
	fraction, _ := strconv.ParseBool(c.DefaultQuery("fraction", "false"))
	rows, ok := h.loadRows(c, true)
	if !ok {
		return
	}
	rows = service.FilterStrategies(rows, nil, h.exp.ExcludeStrategies)

	c.JSON(http.StatusOK, gin.H{
		"profiles": service.BuildProfiles(rows, float64(timeLimit), tol, fraction),
	})
}

// CompareStrategies 两个策略逐模型对比
func (h *ExperimentHandler) CompareStrategies(c *gin.Context) {
	s1, s2 := c.Query("s1"), c.Query("s2")
	if s1 == "" || s2 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "s1 和 s2 不能为空"})
		return
	}
	metric, err := service.ParseMetric(c.DefaultQuery("metric", string(service.MetricDuration)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	_, tol, ok := h.limits(c)
	if !ok {
		return
	}
	rows, ok := h.loadRows(c, true)
	if !ok {
		return
	}

	points := service.CompareStrategies(rows, s1, s2, metric, tol)
	different := 0
	for _, p := range points {
		if p.DifferentObjective {
			different++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"strategy_1": s1,
		"strategy_2": s2,
		"metric":     metric,
		"points":     points,
		"different":  different,
	})
}

// GetStrategyStats 各策略最优率、两两显著性检验和自动结论
func (h *ExperimentHandler) GetStrategyStats(c *gin.Context) {
	timeLimit, tol, ok := h.limits(c)
	if !ok {
		return
	}
	rows, ok := h.loadRows(c, true)
	if !ok {
		return
	}

	rep := service.BuildOutcomeReport(rows, c.Query("solver_combo"), timeLimit, tol)
	c.JSON(http.StatusOK, gin.H{
		"stats":      rep.Stats,
		"tests":      rep.Tests,
		"conclusion": rep.Conclusion,
	})
}

// GetOutcomeReport Markdown 格式的分析报告
func (h *ExperimentHandler) GetOutcomeReport(c *gin.Context) {
	timeLimit, tol, ok := h.limits(c)
	if !ok {
		return
	}
	rows, ok := h.loadRows(c, true)
	if !ok {
		return
	}
	rows = service.FilterStrategies(rows, nil, h.exp.ExcludeStrategies)

	rep := service.BuildOutcomeReport(rows, c.Query("solver_combo"), timeLimit, tol)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(service.RenderOutcomeMarkdown(rep)))
}

// GetAggregateReport 汇总归档目录下所有 solution_outcomes.txt
func (h *ExperimentHandler) GetAggregateReport(c *gin.Context) {
	root, err := resolveArchiveRoot(h.exp.ArchiveDir, c.Query("root"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rep, err := service.AggregateDir(root)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrMissingInput) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if c.Query("format") == "text" {
		var buf bytes.Buffer
		if err := service.WriteAggregateReport(&buf, *rep); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, buf.String())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report": rep,
	})
}

// loadRows 读取结果表，solver_combo 参数非空时按组合过滤；originalOnly 时只保留原问题行并统一 hull 命名
func (h *ExperimentHandler) loadRows(c *gin.Context, originalOnly bool) ([]model.ResultRow, bool) {
	rows, err := h.store.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if combo := c.Query("solver_combo"); combo != "" {
		groups, _ := service.SplitBySolverCombo(rows)
		rows = groups[combo]
	}
	if originalOnly {
		rows = service.NormalizeHullStrategy(model.FilterOriginal(rows))
	}
	return rows, true
}

// limits 解析 time_limit 和 tolerance，缺省使用配置
func (h *ExperimentHandler) limits(c *gin.Context) (int, float64, bool) {
	timeLimit := h.exp.TimeLimit
	if v := c.Query("time_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "time_limit 无效"})
			return 0, 0, false
		}
		timeLimit = n
	}
	tol := h.exp.ObjTolerance
	if v := c.Query("tolerance"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tolerance 无效"})
			return 0, 0, false
		}
		tol = f
	}
	return timeLimit, tol, true
}
