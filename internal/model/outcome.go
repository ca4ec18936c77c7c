package model

// Outcome 单行结果的分类
type Outcome string

const (
	OutcomeOptimal      Outcome = "optimal"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeInfeasible   Outcome = "infeasible"
	OutcomeWrongOptimal Outcome = "wrong_optimal"
	OutcomeSolverError  Outcome = "solver_error"
	OutcomeMissing      Outcome = "missing"
)

// StrategyOutcomeCount 每个 (实验, 求解器组合, 策略) 的结果计数
type StrategyOutcomeCount struct {
	Experiment   string `json:"experiment,omitempty"`
	SolverCombo  string `json:"solver_combo,omitempty"`
	Strategy     string `json:"strategy"`
	Optimal      int    `json:"optimal"`
	Timeout      int    `json:"timeout"`
	Infeasible   int    `json:"infeasible"`
	WrongOptimal int    `json:"wrong_optimal"`
	SolverError  int    `json:"solver_error"`
	Missing      int    `json:"missing"`
	Total        int    `json:"total"`
}

// Add 累加计数，Total 也一并累加
func (c *StrategyOutcomeCount) Add(o StrategyOutcomeCount) {
	c.Optimal += o.Optimal
	c.Timeout += o.Timeout
	c.Infeasible += o.Infeasible
	c.WrongOptimal += o.WrongOptimal
	c.SolverError += o.SolverError
	c.Missing += o.Missing
	c.Total += o.Total
}

// Record 记一次分类结果
func (c *StrategyOutcomeCount) Record(o Outcome) {
	switch o {
	case OutcomeOptimal:
		c.Optimal++
	case OutcomeTimeout:
		c.Timeout++
	case OutcomeInfeasible:
		c.Infeasible++
	case OutcomeWrongOptimal:
		c.WrongOptimal++
	case OutcomeSolverError:
		c.SolverError++
	default:
		c.Missing++
	}
	c.Total++
}
