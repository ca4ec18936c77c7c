// Package store 结果表的持久化。
//
// 结果表只追加、不去重；唯一的原地修改是 UpdateGapColumns，
// 用于松弛问题跑完后把间隙回填到对应的原问题行上。
package store

import (
	"context"

	"gdp-bench/internal/model"
)

type ResultStore interface {
	Append(ctx context.Context, row model.ResultRow) error
	// UpdateGapColumns 给匹配 key 的 Original 行写入间隙，并清空匹配 key 的 Relaxation 行的同名列；
	// 没有匹配的 Original 行时什么都不做
	UpdateGapColumns(ctx context.Context, key model.RowKey, rel, abs *float64) error
	Load(ctx context.Context) ([]model.ResultRow, error)
}

// Columns xlsx 列顺序，与历史结果文件保持一致
var Columns = []string{
	"Run Time",
	"Mode",
	"Strategy",
	"Model Name",
	"Problem Type",
	"Duration (sec)",
	"Status",
	"Objective Value",
	"Lower Bound",
	"Bound Absolute Gap",
	"Bound Relative Gap (%)",
	"Root Relaxation Value",
	"Root Relaxation Gap (%)",
	"Relative Gap (%)",
	"Absolute Gap",
	"Center Coordinates",
	"Distances",
	"Solver",
	"Subsolver",
	"n_dimensions",
	"n_clusters",
	"n_points",
	"coord_range_lower",
	"coord_range_upper",
}

// applyGapUpdate 在内存中的行集合上执行回填，返回是否有行被修改
func applyGapUpdate(rows []model.ResultRow, key model.RowKey, rel, abs *float64) bool {
	matched := false
	for i := range rows {
		if rows[i].ProblemType == model.ProblemOriginal && key.Matches(rows[i]) {
			rows[i].RelativeGap = copyFloat(rel)
			rows[i].AbsoluteGap = copyFloat(abs)
			matched = true
		}
	}
	if !matched {
		return false
	}
	for i := range rows {
		if rows[i].ProblemType == model.ProblemRelaxation && key.Matches(rows[i]) {
			rows[i].RelativeGap = nil
			rows[i].AbsoluteGap = nil
		}
	}
	return true
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
