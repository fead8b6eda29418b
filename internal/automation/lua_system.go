//go:build !no_automation

package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// clock is replaced in tests.
var clock = time.Now

var datetimeComponents = map[string]func(time.Time) lua.LValue{
	"hour":      func(t time.Time) lua.LValue { return lua.LNumber(t.Hour()) },
	"minute":    func(t time.Time) lua.LValue { return lua.LNumber(t.Minute()) },
	"second":    func(t time.Time) lua.LValue { return lua.LNumber(t.Second()) },
	"weekday":   func(t time.Time) lua.LValue { return lua.LNumber(t.Weekday()) },
	"day":       func(t time.Time) lua.LValue { return lua.LNumber(t.Day()) },
	"month":     func(t time.Time) lua.LValue { return lua.LNumber(t.Month()) },
	"year":      func(t time.Time) lua.LValue { return lua.LNumber(t.Year()) },
	"timestamp": func(t time.Time) lua.LValue { return lua.LNumber(t.Unix()) },
	"time_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.TimeOnly)) },
	"date_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.DateOnly)) },
}

var scriptLogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// registerSystemModule installs the `system` table: datetime, time_between
// and a leveled log that also feeds the one-shot run output.
func registerSystemModule(L *lua.LState, vm *scriptVM, e *Engine) {
	logFn := func(L *lua.LState) int {
		level, msg := L.CheckString(1), L.CheckString(2)
		if vm.logs != nil {
			vm.logs("[" + level + "] " + msg)
		}
		lvl, ok := scriptLogLevels[level]
		if !ok {
			lvl = slog.LevelInfo
		}
		e.logger.Log(context.Background(), lvl, "script log", "script", vm.id, "msg", msg)
		return 0
	}
	L.SetGlobal("system", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"datetime":     systemDatetime,
		"time_between": systemTimeBetween,
		"log":          logFn,
	}))
}

func systemDatetime(L *lua.LState) int {
	component := L.CheckString(1)
	get, ok := datetimeComponents[component]
	if !ok {
		L.ArgError(1, "unknown component: "+component)
		return 0
	}
	L.Push(get(clock()))
	return 1
}

// systemTimeBetween reports whether now lies in [from, to). Bounds are hours
// or "HH:MM" strings; from > to wraps midnight.
func systemTimeBetween(L *lua.LState) int {
	from := minuteOfDay(L, 1)
	to := minuteOfDay(L, 2)
	now := clock()
	m := now.Hour()*60 + now.Minute()

	if from <= to {
		L.Push(lua.LBool(m >= from && m < to))
	} else {
		L.Push(lua.LBool(m >= from || m < to))
	}
	return 1
}

func minuteOfDay(L *lua.LState, n int) int {
	switch v := L.CheckAny(n).(type) {
	case lua.LNumber:
		return int(v) * 60
	case lua.LString:
		var h, m int
		if _, err := fmt.Sscanf(string(v), "%d:%d", &h, &m); err != nil || h < 0 || h > 24 || m < 0 || m > 59 {
			L.ArgError(n, fmt.Sprintf("invalid time %q", string(v)))
		}
		return h*60 + m
	}
	L.ArgError(n, "hour or \"HH:MM\" expected")
	return 0
}
