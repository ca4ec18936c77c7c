package db

import (
	"errors"
	"fmt"
	"log"

	"gdp-bench/internal/config"
	"gdp-bench/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

var ErrDisabled = errors.New("数据库未启用")

func DSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
	)
}

// InitDB 连接 MySQL 并迁移结果镜像表；未启用时返回 ErrDisabled
func InitDB(cfg *config.Config) error {
	if !cfg.Database.Enabled {
		return ErrDisabled
	}

	var err error
	DB, err = gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	// 自动迁移
	if err := DB.AutoMigrate(
		&model.ResultRow{},
		&model.BatchRun{},
	); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	log.Println("数据库初始化成功")
	return nil
}
