package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gdp-bench/internal/model"
	"gdp-bench/internal/store"
)

const runTimeLayout = "2006-01-02 15:04:05"

type BuildInput struct {
	Config         model.RunConfig
	Instance       *model.Instance
	Metadata       model.ResultMetadata
	Duration       float64
	RootRelaxation *float64
	IsRelaxation   bool
	// 伴随的松弛间隙，只对原问题生效
	RelaxationGap *model.RelaxationGapRecord
	// JSON 产物所在目录，为空时不写产物
	ResultsDir string
}

type BuildResult struct {
	Row          model.ResultRow
	Solution     *model.Solution
	ArtifactPath string
}

// RecordBuilder 把一次求解整理成结果行，写 JSON 产物并追加到结果表
type RecordBuilder struct {
	store   store.ResultStore
	sysInfo *model.SysInfo
	now     func() time.Time
}

func NewRecordBuilder(s store.ResultStore, sysInfo *model.SysInfo) *RecordBuilder {
	return &RecordBuilder{store: s, sysInfo: sysInfo, now: time.Now}
}

func (b *RecordBuilder) Build(ctx context.Context, in BuildInput) (*BuildResult, error) {
	if in.Instance == nil {
		return nil, fmt.Errorf("缺少模型实例: %s", in.Config.ModelName)
	}
	status := model.ParseSolveStatus(in.Metadata.TerminationCondition)
	sol := extractSolution(in.Instance, status)

	solutionStatus := in.Metadata.TerminationCondition
	if status == model.StatusOptimal {
		solutionStatus = string(model.StatusOptimal)
	}

	bound := in.Metadata.Bound()
	boundAbs, boundRel := PairGap(sol.Objective, bound)
	rootGap := RelativeGap(sol.Objective, in.RootRelaxation)

	var relGap *model.RelaxationGapRecord
	if !in.IsRelaxation && in.RelaxationGap != nil {
		relGap = in.RelaxationGap
	}

	problemType := model.ProblemOriginal
	if in.IsRelaxation {
		problemType = model.ProblemRelaxation
	}
	params := in.Instance.Params

	row := model.ResultRow{
		RunTime:             b.now().Format(runTimeLayout),
		Mode:                in.Config.Mode,
		Strategy:            in.Config.Strategy,
		ModelName:           in.Config.ModelName,
		ProblemType:         problemType,
		Duration:            in.Duration,
		Status:              solutionStatus,
		ObjectiveValue:      sol.Objective,
		LowerBound:          bound,
		BoundAbsoluteGap:    boundAbs,
		BoundRelativeGap:    boundRel,
		RootRelaxationValue: in.RootRelaxation,
		RootRelaxationGap:   rootGap,
		CenterCoordinates:   FormatCenterCoordinates(in.Instance, sol.CenterCoordinates),
		Distances:           FormatDistances(in.Instance, sol.Distances),
		Solver:              in.Config.Solver,
		Subsolver:           in.Config.Subsolver,
		NDimensions:         params.NDimensions,
		NClusters:           params.NClusters,
		NPoints:             params.NPoints,
		CoordRangeLower:     params.CoordRangeLower,
		CoordRangeUpper:     params.CoordRangeUpper,
	}
	if relGap != nil {
		row.RelativeGap = relGap.RelativeGap
		row.AbsoluteGap = relGap.AbsoluteGap
	}

	res := &BuildResult{Row: row, Solution: sol}

	if in.ResultsDir != "" {
		artifact := model.SolutionArtifact{
			ModelParameters: params,
			Solution: model.ArtifactSolution{
				Status:            solutionStatus,
				CenterCoordinates: sol.CenterCoordinates,
				Distances:         sol.Distances,
				ObjectiveValue:    sol.Objective,
				LowerBound:        bound,
				AbsoluteGap:       boundAbs,
				RelativeGap:       boundRel,
			},
			Performance: model.ArtifactPerformance{
				SolutionTimeSeconds:      in.Duration,
				SolverStatus:             in.Metadata.SolverStatus,
				TerminationCondition:     in.Metadata.TerminationCondition,
				Solver:                   in.Config.Solver,
				IsRelaxation:             in.IsRelaxation,
				RootRelaxationValue:      in.RootRelaxation,
				RootRelaxationGapPercent: rootGap,
			},
			System: b.sysInfo,
		}
		if in.Config.Subsolver != "" {
			sub := in.Config.Subsolver
			artifact.Performance.Subsolver = &sub
		}
		if !in.IsRelaxation {
			var rel, abs *float64
			if relGap != nil {
				rel, abs = relGap.RelativeGap, relGap.AbsoluteGap
			}
			artifact.Performance.RelaxationGapPercent = model.NewOptionalFloat(rel)
			artifact.Performance.AbsoluteGap = model.NewOptionalFloat(abs)
		}

		path := filepath.Join(in.ResultsDir, ArtifactFileName(in.IsRelaxation))
		if err := WriteJSON(path, artifact); err != nil {
			return nil, err
		}
		res.ArtifactPath = path
		log.Printf("结果已保存到 %s", path)
	}

	if err := b.store.Append(ctx, row); err != nil {
		return nil, fmt.Errorf("追加结果行失败: %w", err)
	}
	return res, nil
}

func ArtifactFileName(isRelaxation bool) string {
	if isRelaxation {
		return "solution_data_relaxation.json"
	}
	return "solution_data_original.json"
}

// extractSolution 非最优状态下也尝试读取变量值，失败时解的各字段为 nil
func extractSolution(inst *model.Instance, status model.SolveStatus) *model.Solution {
	centers, err := inst.CenterCoordinates()
	if err == nil {
		var distances map[string]float64
		distances, err = inst.Distances()
		if err == nil {
			var obj float64
			obj, err = inst.Objective()
			if err == nil {
				if status != model.StatusOptimal {
					log.Printf("非最优状态下成功读取解，目标值: %v", obj)
				}
				return &model.Solution{CenterCoordinates: centers, Distances: distances, Objective: &obj}
			}
		}
	}
	log.Printf("读取解失败: %v", err)
	return &model.Solution{}
}

// FormatCenterCoordinates 形如 cluster_1_dim_1=0.500000, cluster_1_dim_2=...
func FormatCenterCoordinates(inst *model.Instance, centers map[string]map[string]float64) string {
	if len(centers) == 0 {
		return ""
	}
	var parts []string
	for _, k := range inst.Clusters() {
		ck := fmt.Sprintf("cluster_%d", k)
		dims, ok := centers[ck]
		if !ok {
			continue
		}
		for _, j := range inst.Dimensions() {
			dj := fmt.Sprintf("dim_%d", j)
			if v, ok := dims[dj]; ok {
				parts = append(parts, fmt.Sprintf("%s_%s=%.6f", ck, dj, v))
			}
		}
	}
	return strings.Join(parts, ", ")
}

func FormatDistances(inst *model.Instance, distances map[string]float64) string {
	if len(distances) == 0 {
		return ""
	}
	var parts []string
	for _, i := range inst.PointSet() {
		key := fmt.Sprintf("%d", i)
		if v, ok := distances[key]; ok {
			parts = append(parts, fmt.Sprintf("d%s=%.6f", key, v))
		}
	}
	return strings.Join(parts, ", ")
}

func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 JSON 失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	return nil
}

func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}
