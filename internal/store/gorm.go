package store

import (
	"context"
	"fmt"

	"gdp-bench/internal/model"

	"gorm.io/gorm"
)

// GormStore 结果表的关系型镜像，表结构由 model.ResultRow 迁移生成
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(ctx context.Context, row model.ResultRow) error {
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("写入结果行失败: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateGapColumns(ctx context.Context, key model.RowKey, rel, abs *float64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ResultRow{}).
			Where("model_name = ? AND strategy = ? AND mode = ? AND problem_type = ?",
				key.ModelName, key.Strategy, key.Mode, model.ProblemOriginal).
			Updates(map[string]interface{}{
				"relative_gap": rel,
				"absolute_gap": abs,
			})
		if res.Error != nil {
			return fmt.Errorf("回填原问题间隙失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// MySQL 在值未变化时也返回 0，这里再确认一次是否真的没有匹配行
			var n int64
			if err := tx.Model(&model.ResultRow{}).
				Where("model_name = ? AND strategy = ? AND mode = ? AND problem_type = ?",
					key.ModelName, key.Strategy, key.Mode, model.ProblemOriginal).
				Count(&n).Error; err != nil {
				return fmt.Errorf("查询原问题行失败: %w", err)
			}
			if n == 0 {
				return nil
			}
		}
		if err := tx.Model(&model.ResultRow{}).
			Where("model_name = ? AND strategy = ? AND mode = ? AND problem_type = ?",
				key.ModelName, key.Strategy, key.Mode, model.ProblemRelaxation).
			Updates(map[string]interface{}{
				"relative_gap": nil,
				"absolute_gap": nil,
			}).Error; err != nil {
			return fmt.Errorf("清空松弛问题间隙失败: %w", err)
		}
		return nil
	})
}

func (s *GormStore) Load(ctx context.Context) ([]model.ResultRow, error) {
	var rows []model.ResultRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询结果表失败: %w", err)
	}
	return rows, nil
}
