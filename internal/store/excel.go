package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gdp-bench/internal/model"

	"github.com/xuri/excelize/v2"
)

// ExcelStore 以单个 xlsx 文件保存结果表：整表读入、追加、整表重写。
// 进程内写入由互斥锁串行化，多进程并发写同一文件会丢更新。
type ExcelStore struct {
	path string
	mu   sync.Mutex
}

func NewExcelStore(path string) *ExcelStore {
	return &ExcelStore{path: path}
}

func (s *ExcelStore) Path() string {
	return s.path
}

func (s *ExcelStore) Append(ctx context.Context, row model.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	rows = append(rows, row)
	if err := s.save(rows); err != nil {
		return err
	}
	return nil
}

func (s *ExcelStore) UpdateGapColumns(ctx context.Context, key model.RowKey, rel, abs *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load()
	if err != nil {
		return err
	}
	if !applyGapUpdate(rows, key, rel, abs) {
		return nil
	}
	return s.save(rows)
}

func (s *ExcelStore) Load(ctx context.Context) ([]model.ResultRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// 文件不存在时返回空表
func (s *ExcelStore) load() ([]model.ResultRow, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("打开结果文件失败: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	cells, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("读取结果表失败: %w", err)
	}
	if len(cells) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(cells[0]))
	for i, name := range cells[0] {
		index[name] = i
	}
	rows := make([]model.ResultRow, 0, len(cells)-1)
	for n, line := range cells[1:] {
		row, err := decodeRow(index, line)
		if err != nil {
			return nil, fmt.Errorf("解析结果表第 %d 行失败: %w", n+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// 先写临时文件再改名，避免写到一半留下损坏的结果表
func (s *ExcelStore) save(rows []model.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := encodeRow(row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("写入结果行失败: %w", err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建结果目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".results-*.xlsx")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	if err := f.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入结果文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入结果文件失败: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("替换结果文件失败: %w", err)
	}
	return nil
}

func encodeRow(r model.ResultRow) []interface{} {
	subsolver := r.Subsolver
	if subsolver == "" {
		subsolver = "None"
	}
	return []interface{}{
		r.RunTime,
		r.Mode,
		r.Strategy,
		r.ModelName,
		string(r.ProblemType),
		r.Duration,
		r.Status,
		cellFloat(r.ObjectiveValue),
		cellFloat(r.LowerBound),
		cellFloat(r.BoundAbsoluteGap),
		cellFloat(r.BoundRelativeGap),
		cellFloat(r.RootRelaxationValue),
		cellFloat(r.RootRelaxationGap),
		cellFloat(r.RelativeGap),
		cellFloat(r.AbsoluteGap),
		r.CenterCoordinates,
		r.Distances,
		r.Solver,
		subsolver,
		r.NDimensions,
		r.NClusters,
		r.NPoints,
		r.CoordRangeLower,
		r.CoordRangeUpper,
	}
}

// nil 和非有限值写成空单元格
func cellFloat(v *float64) interface{} {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	return *v
}

func decodeRow(index map[string]int, line []string) (model.ResultRow, error) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(line) {
			return ""
		}
		return line[i]
	}
	var err error
	optFloat := func(col string) *float64 {
		if err != nil {
			return nil
		}
		var v *float64
		v, err = parseOptFloat(get(col))
		if err != nil {
			err = fmt.Errorf("列 %s: %w", col, err)
		}
		return v
	}
	reqFloat := func(col string) float64 {
		v := optFloat(col)
		if v == nil {
			return 0
		}
		return *v
	}
	reqInt := func(col string) int {
		return int(math.Round(reqFloat(col)))
	}

	subsolver := get("Subsolver")
	if subsolver == "None" || subsolver == "nan" {
		subsolver = ""
	}
	row := model.ResultRow{
		RunTime:             get("Run Time"),
		Mode:                get("Mode"),
		Strategy:            get("Strategy"),
		ModelName:           get("Model Name"),
		ProblemType:         model.ProblemType(get("Problem Type")),
		Duration:            reqFloat("Duration (sec)"),
		Status:              get("Status"),
		ObjectiveValue:      optFloat("Objective Value"),
		LowerBound:          optFloat("Lower Bound"),
		BoundAbsoluteGap:    optFloat("Bound Absolute Gap"),
		BoundRelativeGap:    optFloat("Bound Relative Gap (%)"),
		RootRelaxationValue: optFloat("Root Relaxation Value"),
		RootRelaxationGap:   optFloat("Root Relaxation Gap (%)"),
		RelativeGap:         optFloat("Relative Gap (%)"),
		AbsoluteGap:         optFloat("Absolute Gap"),
		CenterCoordinates:   get("Center Coordinates"),
		Distances:           get("Distances"),
		Solver:              get("Solver"),
		Subsolver:           subsolver,
		NDimensions:         reqInt("n_dimensions"),
		NClusters:           reqInt("n_clusters"),
		NPoints:             reqInt("n_points"),
		CoordRangeLower:     reqFloat("coord_range_lower"),
		CoordRangeUpper:     reqFloat("coord_range_upper"),
	}
	return row, err
}

// 空串与 nan 视为缺失
func parseOptFloat(s string) (*float64, error) {
	switch s {
	case "", "nan", "NaN", "None":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}
