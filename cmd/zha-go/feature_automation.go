//go:build !no_automation

package main

import (
	"log/slog"

	"zha-go/internal/automation"
	"zha-go/internal/coordinator"
	"zha-go/internal/web"
)

type autoStopper struct {
	engine *automation.Engine
}

func (a *autoStopper) Stop() {
	if a.engine != nil {
		a.engine.Stop()
	}
}

func initAutomation(coord *coordinator.Coordinator, cfg *Config, logger *slog.Logger) (*autoStopper, []web.ServerOption) {
	if !cfg.Automation.Enabled {
		return &autoStopper{}, nil
	}
	scriptMgr, err := automation.NewManager(cfg.ScriptsDir, logger)
	if err != nil {
		logger.Error("create script manager", "err", err)
		return &autoStopper{}, nil
	}

	engine := automation.NewEngine(coord, scriptMgr, automation.Config{
		HandlerTimeout: cfg.Automation.HandlerTimeout,
		QueueSize:      cfg.Automation.QueueSize,
	}, logger)
	engine.Start()

	return &autoStopper{engine: engine}, []web.ServerOption{web.WithAutomation(engine, scriptMgr)}
}
