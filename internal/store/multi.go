package store

import (
	"context"
	"log"

	"gdp-bench/internal/model"
)

// MultiStore 写入主存储并同步到镜像；镜像失败只记日志。读取只走主存储。
type MultiStore struct {
	primary ResultStore
	mirrors []ResultStore
}

func NewMultiStore(primary ResultStore, mirrors ...ResultStore) *MultiStore {
	return &MultiStore{primary: primary, mirrors: mirrors}
}

func (s *MultiStore) Append(ctx context.Context, row model.ResultRow) error {
	if err := s.primary.Append(ctx, row); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.Append(ctx, row); err != nil {
			log.Printf("镜像写入结果行失败: %v", err)
		}
	}
	return nil
}

func (s *MultiStore) UpdateGapColumns(ctx context.Context, key model.RowKey, rel, abs *float64) error {
	if err := s.primary.UpdateGapColumns(ctx, key, rel, abs); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.UpdateGapColumns(ctx, key, rel, abs); err != nil {
			log.Printf("镜像回填间隙失败: %v", err)
		}
	}
	return nil
}

func (s *MultiStore) Load(ctx context.Context) ([]model.ResultRow, error) {
	return s.primary.Load(ctx)
}

// MemoryStore 内存实现，测试和只读分析时使用
type MemoryStore struct {
	Rows []model.ResultRow
}

func (s *MemoryStore) Append(ctx context.Context, row model.ResultRow) error {
	s.Rows = append(s.Rows, row)
	return nil
}

func (s *MemoryStore) UpdateGapColumns(ctx context.Context, key model.RowKey, rel, abs *float64) error {
	applyGapUpdate(s.Rows, key, rel, abs)
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) ([]model.ResultRow, error) {
	out := make([]model.ResultRow, len(s.Rows))
	copy(out, s.Rows)
	return out, nil
}
