//go:build !no_automation

package automation

import (
	"context"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"zha-go/internal/coordinator"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
)

const maxHandlersPerScript = 100

// registerZHAModule registers the `zha` global table in a Lua state.
func registerZHAModule(L *lua.LState, vm *scriptVM, e *Engine) {
	fns := map[string]func(*lua.LState, *scriptVM, *Engine) int{
		"on":       zhaOn,
		"command":  zhaCommand,
		"bind":     zhaBind,
		"unbind":   zhaUnbind,
		"matches":  zhaMatches,
		"bindable": zhaBindable,
		"targets":  zhaTargets,
		"convert":  zhaConvert,
		"after":    zhaAfter,
		"devices":  zhaDevices,
		"log":      zhaLog,
	}
	mod := L.NewTable()
	for name, fn := range fns {
		fn := fn
		mod.RawSetString(name, L.NewFunction(func(L *lua.LState) int {
			return fn(L, vm, e)
		}))
	}
	L.SetGlobal("zha", mod)
}

// callContext bounds a coordinator call made from Lua.
func callContext(L *lua.LState, vm *scriptVM, e *Engine) (context.Context, context.CancelFunc) {
	parent := L.Context()
	if parent == nil {
		parent = vm.ctx
	}
	return context.WithTimeout(parent, e.cfg.HandlerTimeout)
}

// pushError returns nil, msg to Lua.
func pushError(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

// zha.on(event_type, [filter], fn). filter may hold ieee and cluster_id.
func zhaOn(L *lua.LState, vm *scriptVM, e *Engine) int {
	h := luaEventHandler{eventType: L.CheckString(1), clusterID: -1}
	if L.GetTop() >= 3 {
		filter := L.CheckTable(2)
		h.fn = L.CheckFunction(3)
		if v := filter.RawGetString("ieee"); v != lua.LNil {
			h.ieee = resolveIEEE(e, v.String())
		}
		if v, ok := filter.RawGetString("cluster_id").(lua.LNumber); ok {
			h.clusterID = int(v)
		}
	} else {
		h.fn = L.CheckFunction(2)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// zha.command(ieee_or_name, endpoint, cluster_id, command, [fields])
// returns the coerced fields, or nil and an error message.
func zhaCommand(L *lua.LState, vm *scriptVM, e *Engine) int {
	target := L.CheckString(1)
	ep := L.CheckInt(2)
	cluster := L.CheckInt(3)
	command := L.CheckString(4)
	if ep < 0 || ep > 255 {
		L.ArgError(2, "endpoint must be 0-255")
		return 0
	}
	if cluster < 0 || cluster > 0xFFFF {
		L.ArgError(3, "cluster must be 0-65535")
		return 0
	}

	var fields map[string]interface{}
	if tbl, ok := L.Get(5).(*lua.LTable); ok {
		if m, ok := luaToGo(tbl).(map[string]interface{}); ok {
			fields = m
		}
	}

	ctx, cancel := callContext(L, vm, e)
	defer cancel()
	coerced, err := e.coord.IssueCommand(ctx, coordinator.CommandRequest{
		IEEE:      resolveIEEE(e, target),
		Endpoint:  uint8(ep),
		ClusterID: uint16(cluster),
		Command:   command,
		Fields:    fields,
	})
	if err != nil {
		e.logger.Warn("script command failed", "script", vm.id, "target", target, "command", command, "err", err)
		return pushError(L, err)
	}
	L.Push(goToLua(L, coerced))
	return 1
}

func pushMatches(L *lua.LState, matches []helpers.ClusterMatch) {
	tbl := L.NewTable()
	for i, m := range matches {
		tbl.RawSetInt(i+1, goToLua(L, m))
	}
	L.Push(tbl)
}

// zha.bind(src, dst) returns the bound matches, or nil and an error message.
// A partial failure returns the matches that succeeded and the error.
func zhaBind(L *lua.LState, vm *scriptVM, e *Engine) int {
	return bindOp(L, vm, e, e.coord.BindDevices)
}

// zha.unbind(src, dst) returns the unbound matches, or nil and an error message.
func zhaUnbind(L *lua.LState, vm *scriptVM, e *Engine) int {
	return bindOp(L, vm, e, e.coord.UnbindDevices)
}

func bindOp(L *lua.LState, vm *scriptVM, e *Engine, op func(context.Context, string, string) ([]helpers.ClusterMatch, error)) int {
	src := resolveIEEE(e, L.CheckString(1))
	dst := resolveIEEE(e, L.CheckString(2))

	ctx, cancel := callContext(L, vm, e)
	defer cancel()
	matches, err := op(ctx, src, dst)
	if err != nil {
		e.logger.Warn("script bind failed", "script", vm.id, "source", src, "target", dst, "err", err)
		if len(matches) == 0 {
			return pushError(L, err)
		}
		pushMatches(L, matches)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	pushMatches(L, matches)
	return 1
}

// zha.matches(src, dst) returns the bindable cluster matches.
func zhaMatches(L *lua.LState, _ *scriptVM, e *Engine) int {
	matches, err := e.coord.MatchedClusters(resolveIEEE(e, L.CheckString(1)), resolveIEEE(e, L.CheckString(2)))
	if err != nil {
		return pushError(L, err)
	}
	pushMatches(L, matches)
	return 1
}

// zha.bindable(src, dst) reports whether dst is a bindable target of src.
func zhaBindable(L *lua.LState, _ *scriptVM, e *Engine) int {
	matches, err := e.coord.MatchedClusters(resolveIEEE(e, L.CheckString(1)), resolveIEEE(e, L.CheckString(2)))
	if err != nil {
		return pushError(L, err)
	}
	L.Push(lua.LBool(len(matches) > 0))
	return 1
}

// zha.targets(src) returns the IEEE addresses src can be bound to.
func zhaTargets(L *lua.LState, _ *scriptVM, e *Engine) int {
	devices, err := e.coord.BindableTargets(resolveIEEE(e, L.CheckString(1)))
	if err != nil {
		return pushError(L, err)
	}
	tbl := L.NewTable()
	for i, dev := range devices {
		tbl.RawSetInt(i+1, lua.LString(dev.IEEEAddress))
	}
	L.Push(tbl)
	return 1
}

// zha.convert(value, type_name) coerces value to a registered ZCL type.
func zhaConvert(L *lua.LState, _ *scriptVM, e *Engine) int {
	value := luaToGo(L.CheckAny(1))
	typeName := L.CheckString(2)

	ft, ok := e.coord.Registry().Type(typeName)
	if !ok {
		L.Push(lua.LNil)
		L.Push(lua.LString("unknown type " + typeName))
		return 2
	}
	out, err := helpers.ConvertZCLValue(value, ft)
	if err != nil {
		return pushError(L, err)
	}
	L.Push(goToLua(L, out))
	return 1
}

// zha.after(seconds, fn) runs fn later on the engine worker.
func zhaAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)
	if vm.logs != nil {
		e.logger.Debug("zha.after ignored in one-shot run")
		return 0
	}

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}
		e.enqueue(vm, func(L *lua.LState) {
			ctx, cancel := context.WithTimeout(vm.ctx, e.cfg.HandlerTimeout)
			defer cancel()
			L.SetContext(ctx)
			defer L.RemoveContext()
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "script", vm.id, "err", err)
			}
		})
	}()
	return 0
}

// zha.devices() returns a table of all devices.
func zhaDevices(L *lua.LState, _ *scriptVM, e *Engine) int {
	devices, err := e.coord.Devices().ListDevices()
	if err != nil {
		L.Push(L.NewTable())
		return 1
	}

	tbl := L.NewTable()
	for i, dev := range devices {
		d := L.NewTable()
		d.RawSetString("ieee", lua.LString(dev.IEEEAddress))
		d.RawSetString("name", lua.LString(dev.FriendlyName))
		d.RawSetString("model", lua.LString(dev.Model))
		d.RawSetString("manufacturer", lua.LString(dev.Manufacturer))
		d.RawSetString("mains_powered", lua.LBool(dev.NodeDescriptor.IsMainsPowered()))
		tbl.RawSetInt(i+1, d)
	}
	L.Push(tbl)
	return 1
}

// zha.log(msg)
func zhaLog(L *lua.LState, vm *scriptVM, e *Engine) int {
	msg := L.CheckString(1)
	if vm.logs != nil {
		vm.logs(msg)
	}
	e.logger.Info("script log", "script", vm.id, "msg", msg)
	return 0
}

// resolveIEEE maps an IEEE address in either notation or a friendly name to
// the store key. Unknown targets are returned unchanged.
func resolveIEEE(e *Engine, target string) string {
	if ieee, err := coordinator.NormalizeIEEE(target); err == nil {
		return ieee
	}
	if dev := findByName(e, target); dev != nil {
		return dev.IEEEAddress
	}
	return target
}

func findByName(e *Engine, name string) *store.Device {
	devices, err := e.coord.Devices().ListDevices()
	if err != nil {
		return nil
	}
	for _, dev := range devices {
		if dev.FriendlyName != "" && strings.EqualFold(dev.FriendlyName, name) {
			return dev
		}
	}
	return nil
}
