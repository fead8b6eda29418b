//go:build !no_automation

package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zha-go/internal/coordinator"
	"zha-go/internal/helpers"
	"zha-go/internal/zcl"
)

// Config tunes the engine.
type Config struct {
	// HandlerTimeout bounds one handler call, including the commands it issues.
	HandlerTimeout time.Duration
	// QueueSize is the number of pending handler calls before events are dropped.
	QueueSize int
}

func (c Config) withDefaults() Config {
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = 10 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Handlers int      `json:"handlers"`
	Duration string   `json:"duration"`
}

// luaEventHandler is a registered Lua callback for an event type.
type luaEventHandler struct {
	eventType string // "*" matches every event
	ieee      string // filter: only match this IEEE (empty = any)
	clusterID int    // filter: only match this cluster (-1 = any)
	fn        *lua.LFunction
}

// scriptVM is the Lua state of one script. Only the engine worker touches
// state once the script is running.
type scriptVM struct {
	id       string
	state    *lua.LState
	handlers []luaEventHandler
	logs     func(string) // captures zha.log output in one-shot runs
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers
}

type job struct {
	vm *scriptVM
	fn func(L *lua.LState)
}

// Engine runs Lua scripts and dispatches coordinator events to them. All
// handler calls run on a single worker goroutine.
type Engine struct {
	coord   *coordinator.Coordinator
	manager *Manager
	logger  *slog.Logger
	cfg     Config

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	vms     map[string]*scriptVM // script ID -> running VM
	unsub   func()
	started bool
}

// NewEngine creates a new automation engine.
func NewEngine(coord *coordinator.Coordinator, mgr *Manager, cfg Config, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		coord:   coord,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		cfg:     cfg,
		jobs:    make(chan job, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		vms:     make(map[string]*scriptVM),
	}
}

// Start launches the worker, subscribes to the event bus and loads all
// enabled scripts. A script that fails to load is logged and skipped.
func (e *Engine) Start() {
	e.mu.Lock()
	e.started = true
	e.mu.Unlock()

	go e.worker()
	e.unsub = e.coord.Events().OnAll(e.dispatchEvent)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}

	e.mu.Lock()
	n := len(e.vms)
	e.mu.Unlock()
	e.logger.Info("automation engine started", "scripts", n)
}

// Stop unsubscribes from the event bus, stops the worker and closes every VM.
func (e *Engine) Stop() {
	if e.unsub != nil {
		e.unsub()
	}
	e.cancel()

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, vm := range e.vms {
		vm.cancel()
		vm.state.Close()
		delete(e.vms, id)
	}
	e.logger.Info("automation engine stopped")
}

func (e *Engine) worker() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			return
		case j := <-e.jobs:
			e.run(j)
		}
	}
}

func (e *Engine) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "script", j.vm.id, "panic", r)
		}
	}()
	j.fn(j.vm.state)
}

// enqueue schedules fn on the worker. It never blocks; a full queue drops fn.
func (e *Engine) enqueue(vm *scriptVM, fn func(L *lua.LState)) bool {
	if vm.ctx.Err() != nil {
		return false
	}
	select {
	case e.jobs <- job{vm: vm, fn: func(L *lua.LState) {
		if vm.ctx.Err() == nil {
			fn(L)
		}
	}}:
		return true
	default:
		e.logger.Warn("automation queue full, dropping call", "script", vm.id)
		return false
	}
}

// Running returns the sorted IDs of running scripts.
func (e *Engine) Running() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.vms))
	for id := range e.vms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReloadScript stops the old VM (if any) and starts a new one.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript stops a running script VM.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a stored script once in a throwaway VM.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: err.Error(), Logs: []string{}, Duration: time.Since(start).String()}
	}
	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes code once in a throwaway VM, capturing zha.log output.
// Handlers registered with zha.on are counted but never called.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.HandlerTimeout)
	defer cancel()

	res := &RunResult{Logs: []string{}}
	var logMu sync.Mutex
	vm := e.newVM("run", ctx, cancel)
	defer vm.state.Close()
	vm.logs = func(msg string) {
		logMu.Lock()
		res.Logs = append(res.Logs, msg)
		logMu.Unlock()
	}

	vm.state.SetContext(ctx)
	err := vm.state.DoString(code)
	res.Duration = time.Since(start).String()

	vm.mu.Lock()
	res.Handlers = len(vm.handlers)
	vm.mu.Unlock()

	if err != nil {
		res.Error = luaError(err, e.cfg.HandlerTimeout)
		e.logger.Warn("script run failed", "err", res.Error)
		return res
	}
	res.OK = true
	return res
}

func luaError(err error, timeout time.Duration) string {
	msg := err.Error()
	if strings.Contains(msg, context.DeadlineExceeded.Error()) {
		return fmt.Sprintf("timeout (%s)", timeout)
	}
	return msg
}

func (e *Engine) newVM(id string, ctx context.Context, cancel context.CancelFunc) *scriptVM {
	L := lua.NewState()

	// Sandbox: remove dangerous libs and functions
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}

	vm := &scriptVM{id: id, state: L, ctx: ctx, cancel: cancel}
	registerZHAModule(L, vm, e)
	registerSystemModule(L, vm, e)
	return vm
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	vm, ok := e.vms[id]
	delete(e.vms, id)
	e.mu.Unlock()
	if !ok {
		return
	}
	vm.cancel()
	// The worker may be inside one of its handlers; close the state on the worker.
	select {
	case e.jobs <- job{vm: vm, fn: func(L *lua.LState) { L.Close() }}:
	case <-e.ctx.Done():
		vm.state.Close()
	}
	e.logger.Info("script stopped", "id", id)
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(e.ctx)
	vm := e.newVM(s.ID, ctx, cancel)

	runCtx, runCancel := context.WithTimeout(ctx, e.cfg.HandlerTimeout)
	vm.state.SetContext(runCtx)
	err := vm.state.DoString(s.LuaCode)
	vm.state.RemoveContext()
	runCancel()
	if err != nil {
		cancel()
		vm.state.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	if old, ok := e.vms[s.ID]; ok {
		old.cancel()
	}
	e.vms[s.ID] = vm
	e.mu.Unlock()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name, "handlers", len(vm.handlers))
	return nil
}

// dispatchEvent queues every matching Lua handler on the worker.
func (e *Engine) dispatchEvent(event coordinator.Event) {
	e.mu.Lock()
	vms := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vms = append(vms, vm)
	}
	e.mu.Unlock()

	fields := eventFields(event)
	for _, vm := range vms {
		vm.mu.Lock()
		handlers := append([]luaEventHandler(nil), vm.handlers...)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event.Type, fields) {
				continue
			}
			fn := h.fn
			e.enqueue(vm, func(L *lua.LState) {
				e.callHandler(L, vm, fn, event.Type, fields)
			})
		}
	}
}

// eventFields flattens event data into the table handed to Lua handlers.
func eventFields(event coordinator.Event) map[string]interface{} {
	switch data := event.Data.(type) {
	case map[string]interface{}:
		return data
	case helpers.ClusterMatch:
		return matchFields(data)
	}
	return map[string]interface{}{}
}

func matchFields(m helpers.ClusterMatch) map[string]interface{} {
	return map[string]interface{}{
		"source_ieee":     m.SourceIEEE,
		"source_endpoint": m.SourceEndpoint,
		"cluster_id":      m.ClusterID,
		"target_ieee":     m.TargetIEEE,
		"target_endpoint": m.TargetEndpoint,
	}
}

func matchesHandler(h luaEventHandler, eventType string, fields map[string]interface{}) bool {
	if h.eventType != "*" && h.eventType != eventType {
		return false
	}
	if h.ieee != "" {
		found := false
		for _, key := range []string{"ieee", "source_ieee", "target_ieee"} {
			if v, _ := fields[key].(string); v == h.ieee {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if h.clusterID >= 0 {
		id, ok := fields["cluster_id"].(uint16)
		if !ok || int(id) != h.clusterID {
			return false
		}
	}
	return true
}

func (e *Engine) callHandler(L *lua.LState, vm *scriptVM, fn *lua.LFunction, eventType string, fields map[string]interface{}) {
	ctx, cancel := context.WithTimeout(vm.ctx, e.cfg.HandlerTimeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	event := L.NewTable()
	for k, v := range fields {
		event.RawSetString(k, goToLua(L, v))
	}
	event.RawSetString("type", lua.LString(eventType))

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, event); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		e.logger.Error("lua handler error", "script", vm.id, "event", eventType, "err", luaError(err, e.cfg.HandlerTimeout))
	}
}

// goToLua converts a Go value to a Lua value.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int8:
		return lua.LNumber(val)
	case int16:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint8:
		return lua.LNumber(val)
	case uint16:
		return lua.LNumber(val)
	case uint32:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case zcl.EnumValue:
		t := L.NewTable()
		t.RawSetString("type", lua.LString(val.Type))
		t.RawSetString("name", lua.LString(val.Name))
		t.RawSetString("value", lua.LNumber(val.Value))
		return t
	case zcl.Bitmap:
		t := L.NewTable()
		t.RawSetString("type", lua.LString(val.Type))
		t.RawSetString("value", lua.LNumber(val.Value))
		return t
	case helpers.ClusterMatch:
		return goToLua(L, matchFields(val))
	case map[string]interface{}:
		t := L.NewTable()
		for k, vv := range val {
			t.RawSetString(k, goToLua(L, vv))
		}
		return t
	case []interface{}:
		t := L.NewTable()
		for i, vv := range val {
			t.RawSetInt(i+1, goToLua(L, vv))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// luaToGo converts a Lua value to the JSON-like Go value the helpers accept.
// Tables with a sequence part become slices, other tables maps.
func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 {
			out := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, luaToGo(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]interface{})
		val.ForEach(func(k, vv lua.LValue) {
			out[k.String()] = luaToGo(vv)
		})
		return out
	}
	return nil
}
