//go:build no_automation

package automation

import (
	"errors"
	"log/slog"
	"time"

	"zha-go/internal/coordinator"
)

var (
	ErrScriptNotFound = errors.New("script not found")
	errDisabled       = errors.New("automation disabled")
)

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is a Lua automation stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// Config tunes the engine.
type Config struct {
	HandlerTimeout time.Duration
	QueueSize      int
}

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Handlers int      `json:"handlers"`
	Duration string   `json:"duration"`
}

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

// NewManager returns nil manager when automation is disabled.
func NewManager(_ string, _ *slog.Logger) (*Manager, error) { return nil, nil }

func (m *Manager) List() ([]*Script, error)        { return []*Script{}, nil }
func (m *Manager) Get(_ string) (*Script, error)   { return nil, ErrScriptNotFound }
func (m *Manager) Save(_ *Script) (*Script, error) { return nil, errDisabled }
func (m *Manager) Delete(_ string) error           { return ErrScriptNotFound }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

// NewEngine returns a no-op engine when automation is disabled.
func NewEngine(_ *coordinator.Coordinator, _ *Manager, _ Config, _ *slog.Logger) *Engine {
	return &Engine{}
}

func (e *Engine) Start()                      {}
func (e *Engine) Stop()                       {}
func (e *Engine) Running() []string           { return []string{} }
func (e *Engine) ReloadScript(_ string) error { return errDisabled }
func (e *Engine) StopScript(_ string)         {}

func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{OK: false, Error: errDisabled.Error(), Logs: []string{}}
}

func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: errDisabled.Error(), Logs: []string{}}
}
