package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Database   DatabaseConfig          `yaml:"database"`
	Experiment ExperimentConfig        `yaml:"experiment"`
	Solvers    map[string]SolverConfig `yaml:"solvers"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	// 关闭时只写 xlsx，不做数据库镜像
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	Charset  string `yaml:"charset"`
}

type ExperimentConfig struct {
	DataDir     string `yaml:"data_dir"`
	ResultsFile string `yaml:"results_file"`
	ArchiveDir  string `yaml:"archive_dir"`
	// 单位：秒
	TimeLimit    int     `yaml:"time_limit"`
	ObjTolerance float64 `yaml:"obj_tolerance"`
	Mode         string  `yaml:"mode"`

	Strategies    []string      `yaml:"strategies"`
	SolverConfigs []SolverCombo `yaml:"solver_configs"`

	CalculateRelaxationGap bool `yaml:"calculate_relaxation_gap"`
	RelaxationOnly         bool `yaml:"relaxation_only"`
	// 合并画图时排除的策略（例如 gdp.hull_reduced_y）
	ExcludeStrategies []string `yaml:"exclude_strategies"`
}

type SolverCombo struct {
	Solver    string `yaml:"solver" json:"solver"`
	Subsolver string `yaml:"subsolver" json:"subsolver"`
}

// SolverConfig 外部求解器命令。Args 支持占位符：
// {model} {workdir} {strategy} {subsolver} {time_limit} {relax}
type SolverConfig struct {
	Command      string   `yaml:"command"`
	Args         []string `yaml:"args"`
	GraceSeconds int      `yaml:"grace_seconds"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	config.applyDefaults()

	return &config, nil
}

// Default 返回未加载文件时使用的配置
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	e := &c.Experiment
	if e.DataDir == "" {
		e.DataDir = "data"
	}
	if e.ResultsFile == "" {
		e.ResultsFile = "results.xlsx"
	}
	if e.ArchiveDir == "" {
		e.ArchiveDir = e.DataDir + "/archive"
	}
	if e.TimeLimit <= 0 {
		e.TimeLimit = 1800
	}
	if e.ObjTolerance <= 0 {
		e.ObjTolerance = 1e-4
	}
	if e.Mode == "" {
		e.Mode = "no_mode"
	}
	if len(e.Strategies) == 0 {
		e.Strategies = []string{"gdp.bigm", "gdp.hull", "gdp.hull_exact"}
	}
	if len(e.SolverConfigs) == 0 {
		e.SolverConfigs = []SolverCombo{{Solver: "gams", Subsolver: "gurobi"}}
	}
	for name, s := range c.Solvers {
		if s.GraceSeconds <= 0 {
			s.GraceSeconds = 30
			c.Solvers[name] = s
		}
	}
}
