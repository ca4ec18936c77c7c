package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gdp-bench/internal/config"
	"gdp-bench/internal/db"
	"gdp-bench/internal/logparse"
	"gdp-bench/internal/model"
	"gdp-bench/internal/store"

	"github.com/google/uuid"
)

var ErrMissingInput = errors.New("缺少输入文件")

const (
	BatchesDir      = "batches"
	timestampLayout = "2006-01-02_15-04-05"
	outputLogFile   = "output_log.txt"
	gapsSummaryFile = "gaps_summary.json"
)

type GenerateBatchRequest struct {
	Dimensions []int      `json:"dimensions"`
	Clusters   []int      `json:"clusters"`
	Points     []int      `json:"points"`
	CoordRange [2]float64 `json:"coord_range"`
	// 为空时使用 batch_<solver>_<subsolver>_<mode>_<时间戳>
	Name      string `json:"name"`
	Mode      string `json:"mode"`
	Solver    string `json:"solver"`
	Subsolver string `json:"subsolver"`
	Seed      int64  `json:"seed"`
}

type RunBatchRequest struct {
	// 批文件路径，或 batches 目录下的批名称
	BatchFile     string               `json:"batch_file"`
	Strategies    []string             `json:"strategies"`
	Mode          string               `json:"mode"`
	TimeLimit     int                  `json:"time_limit"`
	MaxModels     int                  `json:"max_models"`
	SolverConfigs []config.SolverCombo `json:"solver_configs"`

	CalculateRelaxationGap bool `json:"calculate_relaxation_gap"`
	RelaxationOnly         bool `json:"relaxation_only"`
}

type StrategyOptions struct {
	TimeLimit              int
	CalculateRelaxationGap bool
	RelaxationOnly         bool
}

// StrategyResult 单个 (模型, 策略) 的求解结果
type StrategyResult struct {
	Dir         string
	Original    *BuildResult
	Relaxation  *BuildResult
	GapsSummary *model.GapsSummary
}

type BatchRunner struct {
	dataDir  string
	defaults config.ExperimentConfig
	solver   Solver
	builder  *RecordBuilder
	store    store.ResultStore
	now      func() time.Time
}

func NewBatchRunner(exp config.ExperimentConfig, solver Solver, builder *RecordBuilder, s store.ResultStore) *BatchRunner {
	return &BatchRunner{
		dataDir:  exp.DataDir,
		defaults: exp,
		solver:   solver,
		builder:  builder,
		store:    s,
		now:      time.Now,
	}
}

// GenerateBatch 生成参数组合的全部实例（按参数和升序），实例名写入 batches/<name>.txt
func (r *BatchRunner) GenerateBatch(req GenerateBatchRequest) (string, error) {
	if len(req.Dimensions) == 0 {
		req.Dimensions = []int{2}
	}
	if len(req.Clusters) == 0 {
		req.Clusters = []int{3}
	}
	if len(req.Points) == 0 {
		req.Points = []int{10}
	}
	if req.CoordRange == [2]float64{} {
		req.CoordRange = [2]float64{0, 10}
	}
	if req.Mode == "" {
		req.Mode = r.defaults.Mode
	}
	if req.Solver == "" {
		req.Solver = "gams"
	}
	if req.Seed == 0 {
		req.Seed = r.now().UnixNano()
	}

	timestamp := r.now().Format(timestampLayout)
	solverStr := model.SolverCombo(req.Solver, req.Subsolver)
	if req.Name == "" {
		req.Name = fmt.Sprintf("batch_%s_%s_%s", solverStr, req.Mode, timestamp)
	}

	type combo struct{ dim, clusters, points int }
	var combos []combo
	for _, d := range req.Dimensions {
		for _, c := range req.Clusters {
			for _, p := range req.Points {
				combos = append(combos, combo{d, c, p})
			}
		}
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].dim+combos[i].clusters+combos[i].points < combos[j].dim+combos[j].clusters+combos[j].points
	})
	log.Printf("生成批次 %s，共 %d 个模型", req.Name, len(combos))

	rng := rand.New(rand.NewSource(req.Seed))
	names := make([]string, 0, len(combos))
	for i, c := range combos {
		inst, err := BuildInstance(c.dim, c.clusters, c.points, req.CoordRange[0], req.CoordRange[1], rng)
		if err != nil {
			return "", err
		}
		base := fmt.Sprintf("model_%s_%s_%s_dim%d_clusters%d_points%d", solverStr, req.Mode, timestamp, c.dim, c.clusters, c.points)
		inst.Name = r.uniqueModelName(base)
		if _, err := SaveInstance(r.dataDir, inst); err != nil {
			return "", err
		}
		log.Printf("已保存模型 %d/%d: %s", i+1, len(combos), inst.Name)
		names = append(names, inst.Name)
	}

	path := filepath.Join(r.dataDir, BatchesDir, req.Name+".txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("创建批次目录失败: %w", err)
	}
	content := strings.Join(names, "\n")
	if len(names) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("写入批文件失败: %w", err)
	}
	log.Printf("批文件已生成: %s", path)
	return path, nil
}

func (r *BatchRunner) uniqueModelName(base string) string {
	for counter := 1; ; counter++ {
		name := fmt.Sprintf("%s_%d", base, counter)
		if _, err := os.Stat(InstancePath(r.dataDir, name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
	}
}

// ResolveBatchPath 已存在的路径原样返回，否则视为 batches 目录下的批名称
func (r *BatchRunner) ResolveBatchPath(batch string) string {
	if _, err := os.Stat(batch); err == nil {
		return batch
	}
	name := batch
	if filepath.Ext(name) == "" {
		name += ".txt"
	}
	return filepath.Join(r.dataDir, BatchesDir, name)
}

// ReadBatchFile 读取批文件中的模型名（跳过空行）
func ReadBatchFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("批文件不存在 %s: %w", path, ErrMissingInput)
	}
	if err != nil {
		return nil, fmt.Errorf("读取批文件失败: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// RunBatch 依次运行 求解器组合 × 模型 × 策略；单个组合失败只记录错误，不中断批次
func (r *BatchRunner) RunBatch(ctx context.Context, req RunBatchRequest) (*model.BatchRun, error) {
	if len(req.Strategies) == 0 {
		req.Strategies = r.defaults.Strategies
	}
	if req.Mode == "" {
		req.Mode = r.defaults.Mode
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = r.defaults.TimeLimit
	}
	if len(req.SolverConfigs) == 0 {
		req.SolverConfigs = r.defaults.SolverConfigs
	}

	path := r.ResolveBatchPath(req.BatchFile)
	names, err := ReadBatchFile(path)
	if err != nil {
		return nil, err
	}
	if req.MaxModels > 0 && len(names) > req.MaxModels {
		names = names[:req.MaxModels]
	}

	strategiesJSON, _ := json.Marshal(req.Strategies)
	solverConfigsJSON, _ := json.Marshal(req.SolverConfigs)
	run := &model.BatchRun{
		RunID:                  uuid.NewString(),
		BatchFile:              path,
		Mode:                   req.Mode,
		TimeLimit:              req.TimeLimit,
		StrategiesJSON:         string(strategiesJSON),
		SolverConfigsJSON:      string(solverConfigsJSON),
		CalculateRelaxationGap: req.CalculateRelaxationGap,
		RelaxationOnly:         req.RelaxationOnly,
		ModelCount:             len(names),
		StartedAt:              r.now(),
	}
	if db.DB != nil {
		if err := db.DB.WithContext(ctx).Create(run).Error; err != nil {
			log.Printf("写入批次记录失败: %v", err)
		}
	}

	batchName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log.Printf("运行批次 %s: %d 个模型, 策略 %v, 模式 %s", batchName, len(names), req.Strategies, req.Mode)

	opts := StrategyOptions{
		TimeLimit:              req.TimeLimit,
		CalculateRelaxationGap: req.CalculateRelaxationGap,
		RelaxationOnly:         req.RelaxationOnly,
	}

	for _, sc := range req.SolverConfigs {
		combo := model.SolverCombo(sc.Solver, sc.Subsolver)
		log.Printf("求解器组合: %s", combo)
		for i, name := range names {
			if err := ctx.Err(); err != nil {
				return r.finish(ctx, run, batchName), err
			}
			log.Printf("处理模型 %d/%d: %s (%s)", i+1, len(names), name, combo)
			inst, err := LoadInstance(r.dataDir, name)
			if err != nil {
				for _, strategy := range req.Strategies {
					r.recordFailure(run, fmt.Sprintf("model=%s solver=%s strategy=%s load failed: %v", name, combo, strategy, err))
				}
				continue
			}
			for _, strategy := range req.Strategies {
				cfg := model.RunConfig{
					ModelName:    name,
					Strategy:     strategy,
					Solver:       sc.Solver,
					Subsolver:    sc.Subsolver,
					Mode:         req.Mode,
					TimeLimit:    req.TimeLimit,
					ObjTolerance: r.defaults.ObjTolerance,
				}
				if _, err := r.RunStrategy(ctx, inst, cfg, opts); err != nil {
					r.recordFailure(run, fmt.Sprintf("model=%s solver=%s strategy=%s failed: %v", name, combo, strategy, err))
					continue
				}
				run.Completed++
				log.Printf("策略完成: %s", strategy)
			}
		}
		log.Printf("求解器组合 %s 完成", combo)
	}

	return r.finish(ctx, run, batchName), nil
}

func (r *BatchRunner) recordFailure(run *model.BatchRun, msg string) {
	log.Printf("运行失败: %s", msg)
	run.Failed++
	run.Errors = append(run.Errors, msg)
}

// finish 写批次元数据 JSON，并更新数据库记录
func (r *BatchRunner) finish(ctx context.Context, run *model.BatchRun, batchName string) *model.BatchRun {
	finished := r.now()
	run.FinishedAt = &finished

	path := filepath.Join(r.dataDir, BatchesDir, fmt.Sprintf("%s_run_%s.json", batchName, run.RunID))
	run.ResultPath = path
	if err := WriteJSON(path, run); err != nil {
		log.Printf("写入批次元数据失败: %v", err)
	}
	if db.DB != nil && run.ID != 0 {
		if err := db.DB.WithContext(ctx).Save(run).Error; err != nil {
			log.Printf("更新批次记录失败: %v", err)
		}
	}
	log.Printf("批次完成: 成功 %d, 失败 %d", run.Completed, run.Failed)
	return run
}

// RunStrategy 对单个模型执行一个策略：先解原问题，按需再解松弛问题，
// 两者都有目标值时把间隙随原问题行一起写入
func (r *BatchRunner) RunStrategy(ctx context.Context, inst *model.Instance, cfg model.RunConfig, opts StrategyOptions) (*StrategyResult, error) {
	baseDir, err := r.strategyDir(cfg)
	if err != nil {
		return nil, err
	}
	res := &StrategyResult{Dir: baseDir}

	var orig *solvedRun
	if !opts.RelaxationOnly {
		orig, err = r.solve(ctx, inst, cfg, opts.TimeLimit, false, filepath.Join(baseDir, "original"))
		if err != nil {
			return res, fmt.Errorf("求解原问题失败: %w", err)
		}
	}

	if !opts.CalculateRelaxationGap && !opts.RelaxationOnly {
		res.Original, err = r.record(ctx, orig, cfg, nil)
		return res, err
	}

	relaxedInst := *inst
	relaxedInst.ClearValues()
	relaxed, relaxErr := r.solve(ctx, &relaxedInst, cfg, opts.TimeLimit, true, filepath.Join(baseDir, "relaxed"))
	if relaxErr != nil {
		if orig != nil {
			if res.Original, err = r.record(ctx, orig, cfg, nil); err != nil {
				return res, err
			}
		}
		return res, fmt.Errorf("求解松弛问题失败: %w", relaxErr)
	}

	var origObj *float64
	if orig != nil {
		origObj = orig.objective()
	} else {
		origObj = r.priorOriginalObjective(ctx, cfg)
	}
	relaxObj := relaxed.objective()

	var gap *model.RelaxationGapRecord
	if origObj != nil && relaxObj != nil {
		abs, rel := PairGap(origObj, relaxObj)
		gap = &model.RelaxationGapRecord{AbsoluteGap: abs, RelativeGap: rel}
		if rel != nil {
			log.Printf("松弛间隙: %.2f%%, 绝对间隙: %.6f", *rel, *abs)
		} else {
			log.Printf("绝对间隙: %.6f, 相对间隙无法计算（目标值为 0）", *abs)
		}
	}

	if orig != nil {
		if res.Original, err = r.record(ctx, orig, cfg, gap); err != nil {
			return res, err
		}
	}
	if res.Relaxation, err = r.record(ctx, relaxed, cfg, nil); err != nil {
		return res, err
	}
	if gap == nil {
		return res, nil
	}

	summary := &model.GapsSummary{
		ModelName:            cfg.ModelName,
		Strategy:             cfg.Strategy,
		Mode:                 cfg.Mode,
		OriginalObjective:    origObj,
		RelaxedObjective:     relaxObj,
		AbsoluteGap:          gap.AbsoluteGap,
		RelaxationGapPercent: gap.RelativeGap,
	}
	res.GapsSummary = summary
	if err := WriteJSON(filepath.Join(baseDir, gapsSummaryFile), summary); err != nil {
		return res, err
	}

	// 只解松弛问题时，把间隙回填到之前运行留下的原问题行
	if orig == nil && gap.RelativeGap != nil {
		if err := r.store.UpdateGapColumns(ctx, cfg.RowKey(), gap.RelativeGap, gap.AbsoluteGap); err != nil {
			return res, fmt.Errorf("回填间隙失败: %w", err)
		}
	}
	return res, nil
}

// solvedRun 一次已完成但尚未入表的求解
type solvedRun struct {
	inst  *model.Instance
	resp  *SolveResponse
	root  *float64
	relax bool
	dir   string
}

func (s *solvedRun) objective() *float64 {
	return extractSolution(s.inst, model.ParseSolveStatus(s.resp.Metadata.TerminationCondition)).Objective
}

func (r *BatchRunner) solve(ctx context.Context, inst *model.Instance, cfg model.RunConfig, timeLimit int, relax bool, dir string) (*solvedRun, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建结果目录失败: %w", err)
	}
	inst.ClearValues()
	resp, err := r.solver.Solve(ctx, inst, SolveRequest{
		Solver:    cfg.Solver,
		Subsolver: cfg.Subsolver,
		Strategy:  cfg.Strategy,
		TimeLimit: timeLimit,
		Relax:     relax,
		WorkDir:   dir,
	})
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, outputLogFile)
	if err := os.WriteFile(logPath, []byte(resp.Log), 0o644); err != nil {
		return nil, fmt.Errorf("写入求解日志失败: %w", err)
	}
	root := logparse.ParseRootRelaxationFile(logPath, cfg.Solver, cfg.Subsolver)
	return &solvedRun{inst: inst, resp: resp, root: root.Ptr(), relax: relax, dir: dir}, nil
}

func (r *BatchRunner) record(ctx context.Context, run *solvedRun, cfg model.RunConfig, gap *model.RelaxationGapRecord) (*BuildResult, error) {
	return r.builder.Build(ctx, BuildInput{
		Config:         cfg,
		Instance:       run.inst,
		Metadata:       run.resp.Metadata,
		Duration:       run.resp.Duration,
		RootRelaxation: run.root,
		IsRelaxation:   run.relax,
		RelaxationGap:  gap,
		ResultsDir:     run.dir,
	})
}

// priorOriginalObjective 结果表中同一模型、策略、模式和求解器组合最近一条原问题行的目标值
func (r *BatchRunner) priorOriginalObjective(ctx context.Context, cfg model.RunConfig) *float64 {
	rows, err := r.store.Load(ctx)
	if err != nil {
		log.Printf("读取结果表失败，无法计算松弛间隙: %v", err)
		return nil
	}
	key := cfg.RowKey()
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if row.ProblemType != model.ProblemOriginal || !key.Matches(row) {
			continue
		}
		if model.SolverCombo(row.Solver, row.Subsolver) != cfg.SolverCombo() {
			continue
		}
		if row.ObjectiveValue != nil {
			return row.ObjectiveValue
		}
	}
	return nil
}

// strategyDir <data>/<solver组合>_<策略>/<模式>/<时间戳>，同一秒内重复时追加序号
func (r *BatchRunner) strategyDir(cfg model.RunConfig) (string, error) {
	base := filepath.Join(r.dataDir, cfg.SolverCombo()+"_"+cfg.Strategy, cfg.Mode, r.now().Format(timestampLayout))
	dir := base
	for i := 2; ; i++ {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			break
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建结果目录失败: %w", err)
	}
	return dir, nil
}
