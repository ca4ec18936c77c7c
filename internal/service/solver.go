package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gdp-bench/internal/config"
	"gdp-bench/internal/model"
)

var ErrUnsupportedSolver = errors.New("不支持的求解器")

const (
	solverModelFile  = "model.json"
	solverResultFile = "result.json"
)

type SolveRequest struct {
	Solver    string
	Subsolver string
	Strategy  string
	TimeLimit int
	// 求解整数松弛后的连续问题
	Relax   bool
	WorkDir string
}

type SolveResponse struct {
	Metadata model.ResultMetadata
	Log      string
	// 单位：秒
	Duration float64
}

// Solver 求解一个实例；成功时求解值已载入 inst
type Solver interface {
	Solve(ctx context.Context, inst *model.Instance, req SolveRequest) (*SolveResponse, error)
}

// solverOutput 外部命令写在工作目录下的 result.json
type solverOutput struct {
	Metadata model.ResultMetadata  `json:"metadata"`
	Values   *model.InstanceValues `json:"values"`
}

// CommandSolver 按求解器名称调用配置好的外部命令
type CommandSolver struct {
	solvers map[string]config.SolverConfig
}

func NewCommandSolver(solvers map[string]config.SolverConfig) *CommandSolver {
	return &CommandSolver{solvers: solvers}
}

func (s *CommandSolver) Solve(ctx context.Context, inst *model.Instance, req SolveRequest) (*SolveResponse, error) {
	cfg, ok := s.solvers[req.Solver]
	if !ok || cfg.Command == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSolver, req.Solver)
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建工作目录失败: %w", err)
	}
	modelPath := filepath.Join(req.WorkDir, solverModelFile)
	if err := WriteJSON(modelPath, inst); err != nil {
		return nil, err
	}
	resultPath := filepath.Join(req.WorkDir, solverResultFile)
	_ = os.Remove(resultPath)

	limit := time.Duration(req.TimeLimit+cfg.GraceSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	args := expandArgs(cfg.Args, req, modelPath)
	cmd := exec.CommandContext(runCtx, cfg.Command, args...)
	cmd.Dir = req.WorkDir
	cmd.WaitDelay = 5 * time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	log.Printf("调用求解器: %s %s", cfg.Command, strings.Join(args, " "))
	start := time.Now()
	runErr := cmd.Run()
	resp := &SolveResponse{Log: out.String(), Duration: time.Since(start).Seconds()}

	var result solverOutput
	readErr := ReadJSON(resultPath, &result)
	if readErr == nil {
		resp.Metadata = result.Metadata
		if result.Values != nil {
			inst.LoadValues(result.Values)
		}
	}

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		log.Printf("求解器超时被终止: %s", req.Solver)
		if readErr != nil {
			resp.Metadata = model.ResultMetadata{TerminationCondition: "maxTimeLimit", SolverStatus: "aborted"}
		}
		return resp, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runErr != nil && readErr != nil:
		return nil, fmt.Errorf("求解器执行失败: %w", runErr)
	case runErr != nil:
		log.Printf("求解器退出码非零，但结果文件存在: %v", runErr)
	case readErr != nil:
		return nil, fmt.Errorf("读取求解结果失败: %w", readErr)
	}
	return resp, nil
}

func expandArgs(args []string, req SolveRequest, modelPath string) []string {
	subsolver := req.Subsolver
	if subsolver == "" {
		subsolver = "direct"
	}
	r := strings.NewReplacer(
		"{model}", modelPath,
		"{workdir}", req.WorkDir,
		"{strategy}", req.Strategy,
		"{subsolver}", subsolver,
		"{time_limit}", strconv.Itoa(req.TimeLimit),
		"{relax}", strconv.FormatBool(req.Relax),
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
