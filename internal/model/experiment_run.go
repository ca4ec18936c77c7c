package model

import (
	"time"

	"gorm.io/gorm"
)

// BatchRun 一次批量运行的元数据（用于复现与排错）
type BatchRun struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	RunID     string `gorm:"type:varchar(36);uniqueIndex" json:"run_id"`
	BatchFile string `gorm:"type:varchar(500);not null" json:"batch_file"`
	Mode      string `gorm:"type:varchar(50);index" json:"mode"`
	TimeLimit int    `json:"time_limit"`

	// JSON 数组：策略列表 / 求解器组合
	StrategiesJSON    string `gorm:"type:text" json:"strategies_json"`
	SolverConfigsJSON string `gorm:"type:text" json:"solver_configs_json"`

	CalculateRelaxationGap bool `json:"calculate_relaxation_gap"`
	RelaxationOnly         bool `json:"relaxation_only"`

	ModelCount int `json:"model_count"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	// 每个失败组合一行
	Errors     []string   `gorm:"serializer:json;type:text" json:"errors"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	// 元数据文件路径
	ResultPath string `gorm:"type:varchar(500)" json:"result_path"`
}
