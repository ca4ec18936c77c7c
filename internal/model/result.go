package model

import (
	"strings"
)

// ProblemType 区分原问题与松弛问题，写入结果表的 Problem Type 列
type ProblemType string

const (
	ProblemOriginal   ProblemType = "Original"
	ProblemRelaxation ProblemType = "Relaxation"
)

// SolveStatus 求解器终止状态的归一化结果
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "optimal"
	StatusInfeasible SolveStatus = "infeasible"
	StatusTimeout    SolveStatus = "timeout"
	StatusError      SolveStatus = "error"
	StatusUnknown    SolveStatus = "unknown"
)

// ParseSolveStatus 把求解器返回的 termination condition 字符串映射为 SolveStatus。
// 结果表里的 Status 列保存原始字符串，分类时再调用本函数。
func ParseSolveStatus(termination string) SolveStatus {
	s := strings.ToLower(strings.TrimSpace(termination))
	switch {
	case s == "":
		return StatusUnknown
	case s == "optimal" || s == "globallyoptimal" || s == "locallyoptimal":
		return StatusOptimal
	case strings.Contains(s, "infeasible") || s == "unbounded":
		return StatusInfeasible
	case strings.Contains(s, "timelimit") || s == "timeout" || strings.Contains(s, "maxiterations") ||
		strings.Contains(s, "maxevaluations"):
		return StatusTimeout
	case strings.Contains(s, "error") || strings.Contains(s, "failure") || s == "aborted" ||
		s == "licensingproblems" || s == "invalidproblem" || s == "solvererror":
		return StatusError
	}
	return StatusUnknown
}

// RunConfig 单次求解的配置，创建后不再修改
type RunConfig struct {
	ModelName    string  `json:"model_name"`
	Strategy     string  `json:"strategy"`
	Solver       string  `json:"solver"`
	Subsolver    string  `json:"subsolver"` // 空串表示 direct
	Mode         string  `json:"mode"`
	TimeLimit    int     `json:"time_limit"`
	ObjTolerance float64 `json:"obj_tolerance"`
}

// SolverCombo 形如 gams_gurobi / scip_direct
func (c RunConfig) SolverCombo() string {
	return SolverCombo(c.Solver, c.Subsolver)
}

func (c RunConfig) RowKey() RowKey {
	return RowKey{ModelName: c.ModelName, Strategy: c.Strategy, Mode: c.Mode}
}

func SolverCombo(solver, subsolver string) string {
	if subsolver == "" || subsolver == "None" {
		subsolver = "direct"
	}
	return solver + "_" + subsolver
}

// ResultRow 结果表的一行；同时作为 gorm 镜像表的模型。
// 可空数值一律用指针，nil 在 xlsx 中写为空单元格。
type ResultRow struct {
	ID uint `gorm:"primarykey" json:"id,omitempty"`

	RunTime     string      `gorm:"type:varchar(30)" json:"run_time"`
	Mode        string      `gorm:"type:varchar(50);index:idx_result_key" json:"mode"`
	Strategy    string      `gorm:"type:varchar(100);index:idx_result_key" json:"strategy"`
	ModelName   string      `gorm:"type:varchar(255);index:idx_result_key" json:"model_name"`
	ProblemType ProblemType `gorm:"type:varchar(20);index:idx_result_key" json:"problem_type"`
	Duration    float64     `json:"duration"`
	Status      string      `gorm:"type:varchar(50)" json:"status"`

	ObjectiveValue   *float64 `json:"objective_value"`
	LowerBound       *float64 `json:"lower_bound"`
	BoundAbsoluteGap *float64 `json:"bound_absolute_gap"`
	BoundRelativeGap *float64 `json:"bound_relative_gap"`

	RootRelaxationValue *float64 `json:"root_relaxation_value"`
	RootRelaxationGap   *float64 `json:"root_relaxation_gap"`

	// 原问题与松弛问题之间的间隙，只挂在 Original 行上
	RelativeGap *float64 `json:"relative_gap"`
	AbsoluteGap *float64 `json:"absolute_gap"`

	CenterCoordinates string `gorm:"type:longtext" json:"center_coordinates"`
	Distances         string `gorm:"type:longtext" json:"distances"`

	Solver    string `gorm:"type:varchar(50)" json:"solver"`
	Subsolver string `gorm:"type:varchar(50)" json:"subsolver"`

	NDimensions     int     `json:"n_dimensions"`
	NClusters       int     `json:"n_clusters"`
	NPoints         int     `json:"n_points"`
	CoordRangeLower float64 `json:"coord_range_lower"`
	CoordRangeUpper float64 `json:"coord_range_upper"`
}

func (ResultRow) TableName() string {
	return "result_rows"
}

func (r ResultRow) SolverCombo() string {
	return SolverCombo(r.Solver, r.Subsolver)
}

func (r ResultRow) Key() RowKey {
	return RowKey{ModelName: r.ModelName, Strategy: r.Strategy, Mode: r.Mode}
}

// RowKey 回填间隙时使用的匹配条件（Problem Type 由调用方决定）
type RowKey struct {
	ModelName string
	Strategy  string
	Mode      string
}

func (k RowKey) Matches(r ResultRow) bool {
	return r.ModelName == k.ModelName && r.Strategy == k.Strategy && r.Mode == k.Mode
}

// FilterOriginal 只保留原问题行，所有对比分析都基于它
func FilterOriginal(rows []ResultRow) []ResultRow {
	out := make([]ResultRow, 0, len(rows))
	for _, r := range rows {
		if r.ProblemType == ProblemOriginal {
			out = append(out, r)
		}
	}
	return out
}

// Float 返回 v 的指针，便于构造可空字段
func Float(v float64) *float64 {
	return &v
}
