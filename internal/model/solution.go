package model

// Solution 从模型中读出的聚类解
type Solution struct {
	// cluster_k -> dim_j -> 坐标
	CenterCoordinates map[string]map[string]float64 `json:"center_coordinates"`
	// 点编号 -> 到所属中心的距离
	Distances map[string]float64 `json:"distances"`
	Objective *float64           `json:"objective_value"`
}

// ResultMetadata 求解器返回的元数据，界值字段按优先级取第一个非空
type ResultMetadata struct {
	TerminationCondition string   `json:"termination_condition"`
	SolverStatus         string   `json:"solver_status"`
	DualBound            *float64 `json:"dual_bound,omitempty"`
	ProblemLowerBound    *float64 `json:"problem_lower_bound,omitempty"`
	BestObjectiveBound   *float64 `json:"best_objective_bound,omitempty"`
	SolverLowerBound     *float64 `json:"solver_lower_bound,omitempty"`
}

// Bound 依次取 dual bound、problem lower bound、best objective bound、solver lower bound
func (m ResultMetadata) Bound() *float64 {
	for _, b := range []*float64{m.DualBound, m.ProblemLowerBound, m.BestObjectiveBound, m.SolverLowerBound} {
		if b != nil {
			return b
		}
	}
	return nil
}

// RelaxationGapRecord 原问题目标值与松弛目标值的间隙
type RelaxationGapRecord struct {
	AbsoluteGap *float64 `json:"absolute_gap"`
	RelativeGap *float64 `json:"relative_gap"`
}

// SolveOutcome 一次求解的完整结果
type SolveOutcome struct {
	Config         RunConfig
	Status         SolveStatus
	Metadata       ResultMetadata
	Solution       *Solution
	Bound          *float64
	Duration       float64
	RootRelaxation *float64
	Log            string
	IsRelaxation   bool
	RelaxationGap  *RelaxationGapRecord
}

// ModelParameters 对应 JSON 产物的 model_parameters
type ModelParameters struct {
	NDimensions     int     `json:"n_dimensions"`
	NClusters       int     `json:"n_clusters"`
	NPoints         int     `json:"n_points"`
	CoordRangeLower float64 `json:"coord_range_lower"`
	CoordRangeUpper float64 `json:"coord_range_upper"`
}

// SolutionArtifact 对应 solution_data_{original|relaxation}.json
type SolutionArtifact struct {
	ModelParameters ModelParameters     `json:"model_parameters"`
	Solution        ArtifactSolution    `json:"solution"`
	Performance     ArtifactPerformance `json:"performance"`
	System          *SysInfo            `json:"system,omitempty"`
}

type ArtifactSolution struct {
	Status            string                        `json:"status"`
	CenterCoordinates map[string]map[string]float64 `json:"center_coordinates"`
	Distances         map[string]float64            `json:"distances"`
	ObjectiveValue    *float64                      `json:"objective_value"`
	LowerBound        *float64                      `json:"lower_bound"`
	AbsoluteGap       *float64                      `json:"absolute_gap"`
	RelativeGap       *float64                      `json:"relative_gap"`
}

type ArtifactPerformance struct {
	SolutionTimeSeconds      float64  `json:"solution_time_seconds"`
	SolverStatus             string   `json:"solver_status"`
	TerminationCondition     string   `json:"termination_condition"`
	Solver                   string   `json:"solver"`
	Subsolver                *string  `json:"subsolver"`
	IsRelaxation             bool     `json:"is_relaxation"`
	RootRelaxationValue      *float64 `json:"root_relaxation_value"`
	RootRelaxationGapPercent *float64 `json:"root_relaxation_gap_percent"`

	// 仅原问题产物包含以下两项；松弛问题产物中不出现
	RelaxationGapPercent *OptionalFloat `json:"relaxation_gap_percent,omitempty"`
	AbsoluteGap          *OptionalFloat `json:"absolute_gap,omitempty"`
}

// GapsSummary 对应 gaps_summary.json
type GapsSummary struct {
	ModelName            string   `json:"model_name"`
	Strategy             string   `json:"strategy"`
	Mode                 string   `json:"mode"`
	OriginalObjective    *float64 `json:"original_objective"`
	RelaxedObjective     *float64 `json:"relaxed_objective"`
	AbsoluteGap          *float64 `json:"absolute_gap"`
	RelaxationGapPercent *float64 `json:"relaxation_gap_percent"`
}
