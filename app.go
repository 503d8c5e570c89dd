package main

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"focuswatch/internal/config"
	"focuswatch/internal/game"
	"focuswatch/internal/logging"
	"focuswatch/internal/monitor"
	"focuswatch/internal/overlay"
	"focuswatch/internal/wire"
)

// App is the Wails binding. The frontend only sends commands and listens
// to events; polling lives in the monitor.
type App struct {
	ctx   context.Context
	log   *zap.Logger
	cfg   *config.Config
	stack *wire.Stack

	unsubscribe func()
}

// NewApp loads configuration. A broken config file falls back to defaults
// so the window still opens.
func NewApp() *App {
	cfg, err := config.Load("")
	log := logging.Must(cfg != nil && cfg.Debug)
	if err != nil {
		log.Sugar().Warnf("[App] Using default config: %v", err)
		cfg = config.Default()
	}
	return &App{log: log, cfg: cfg}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	stack, err := wire.New(ctx, a.cfg, config.DefaultPath(), a.log)
	if err != nil {
		a.log.Sugar().Errorf("[App] Failed to start: %v", err)
		return
	}
	a.stack = stack

	a.unsubscribe = stack.Monitor.Subscribe(func(ev monitor.Event) {
		runtime.EventsEmit(a.ctx, ev.Name(), ev)
	})

	if err := stack.Start(ctx); err != nil {
		a.log.Sugar().Errorf("[App] Failed to start monitor: %v", err)
	}
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.stack != nil {
		a.stack.Close()
	}
	_ = a.log.Sync()
}

// StartMonitor resumes polling
func (a *App) StartMonitor() string {
	if a.stack == nil {
		return "not initialized"
	}
	if err := a.stack.Monitor.Start(); err != nil {
		return err.Error()
	}
	return ""
}

// StopMonitor pauses polling
func (a *App) StopMonitor() {
	if a.stack != nil {
		a.stack.Monitor.Stop()
	}
}

// ForceRefresh polls immediately
func (a *App) ForceRefresh() {
	if a.stack != nil {
		a.stack.Monitor.ForceRefresh()
	}
}

// SetRoleAndBracket changes the benchmark. Returns an error message for
// unknown names.
func (a *App) SetRoleAndBracket(role, bracket string) string {
	if a.stack == nil {
		return "not initialized"
	}
	r, ok := game.ParseRole(role)
	if !ok {
		return "unknown role: " + role
	}
	b, ok := game.ParseBracket(bracket)
	if !ok {
		return "unknown bracket: " + bracket
	}
	if err := a.stack.UpdatePreferences(r, b, a.stack.AutoImport.Enabled()); err != nil {
		return err.Error()
	}
	return ""
}

// SetAutoImportEnabled toggles automatic build import
func (a *App) SetAutoImportEnabled(enabled bool) string {
	if a.stack == nil {
		return "not initialized"
	}
	role, bracket := a.stack.Monitor.Preferences()
	if err := a.stack.UpdatePreferences(role, bracket, enabled); err != nil {
		return err.Error()
	}
	return ""
}

// GetState returns the monitor state for the initial render
func (a *App) GetState() overlay.StateResponse {
	if a.stack == nil {
		return overlay.StateResponse{}
	}
	return overlay.StateResponse{
		State:      a.stack.Monitor.State(),
		AutoImport: a.stack.AutoImport.Enabled(),
	}
}

// GetChampionIcon returns the Data Dragon icon URL for a champion
func (a *App) GetChampionIcon(championID int) string {
	if a.stack == nil {
		return ""
	}
	return a.stack.Registry.IconURL(championID)
}

// GetChampionName returns the display name for a champion
func (a *App) GetChampionName(championID int) string {
	if a.stack == nil {
		return ""
	}
	return a.stack.Registry.DisplayName(championID)
}
