package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"acadcore/cbcs/config"
	"acadcore/cbcs/internal/repository"
	"acadcore/cbcs/internal/service"
	"acadcore/cbcs/pkg/database"
	applogger "acadcore/cbcs/pkg/logger"
)

// app 命令执行所需的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	svc    *service.Service
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

// openApp 连接数据库并组装 Service，不启动 HTTP 与巡检
func openApp() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepository(db)
	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		svc:    service.NewService(cfg, repo, logger),
	}, nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	a.logger.Sync()
}
