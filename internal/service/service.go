package service

import (
	"go.uber.org/zap"

	"acadcore/cbcs/config"
	"acadcore/cbcs/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Cycle       CycleService
	Preference  PreferenceService
	Coordinator CycleCoordinator
	Runner      AllocationRunner
	Dispatcher  *Dispatcher
	Watchdog    *Watchdog
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	logger *zap.Logger,
) *Service {
	runner := NewAllocationRunner(repo, logger.Named("runner"))
	dispatcher := NewDispatcher(runner, cfg.Allocation.FinalizeTimeout, logger.Named("dispatcher"))
	coordinator := NewCycleCoordinator(repo, dispatcher, logger.Named("coordinator"))

	return &Service{
		Cycle:       NewCycleService(repo, coordinator, cfg.Allocation.DefaultPolicy, logger),
		Preference:  NewPreferenceService(repo, coordinator, logger),
		Coordinator: coordinator,
		Runner:      runner,
		Dispatcher:  dispatcher,
		Watchdog: NewWatchdog(repo, dispatcher,
			cfg.Allocation.WatchdogInterval, cfg.Allocation.StuckAfter, logger.Named("watchdog")),
	}
}
