package service

import (
	"path/filepath"

	"gdp-bench/internal/config"
	"gdp-bench/internal/db"
	"gdp-bench/internal/store"
)

type ServiceContext struct {
	Config   *config.Config
	Store    store.ResultStore
	Builder  *RecordBuilder
	Runner   *BatchRunner
	Archives *ArchiveProcessor
}

// NewServiceContext xlsx 为主存储；数据库可用时再镜像一份到 MySQL
func NewServiceContext(cfg *config.Config) *ServiceContext {
	exp := cfg.Experiment
	var results store.ResultStore = store.NewExcelStore(filepath.Join(exp.DataDir, exp.ResultsFile))
	if db.DB != nil {
		results = store.NewMultiStore(results, store.NewGormStore(db.DB))
	}

	builder := NewRecordBuilder(results, CollectSysInfo())
	solver := NewCommandSolver(cfg.Solvers)

	return &ServiceContext{
		Config:   cfg,
		Store:    results,
		Builder:  builder,
		Runner:   NewBatchRunner(exp, solver, builder, results),
		Archives: NewArchiveProcessor(exp, NewGonumPlotter()),
	}
}
