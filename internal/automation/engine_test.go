//go:build !no_automation

package automation

import (
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"zha-go/internal/coordinator"
	"zha-go/internal/gateway"
	"zha-go/internal/gateway/gatewaytest"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
	"zha-go/internal/zcl"
	"zha-go/internal/zcl/clusters"
	"zha-go/internal/zdo"
)

const (
	remoteIEEE = "012D6F000A9069E8"
	lightIEEE  = "00158D0000000001"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	engine  *Engine
	manager *Manager
	gw      *gatewaytest.Gateway
	store   *store.BoltStore
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := testLogger()

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.SaveDevice(&store.Device{
		IEEEAddress:    remoteIEEE,
		FriendlyName:   "Remote",
		NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.EndDevice, MACCapabilityFlags: 0x80},
		Endpoints:      []store.Endpoint{{ID: 1, OutClusters: []uint16{0x0006}}},
	}))

	reg := zcl.NewRegistry(logger)
	clusters.Register(reg)
	gw := &gatewaytest.Gateway{}
	coord := coordinator.New(gw, st, reg, coordinator.NewEventBus(logger), coordinator.Config{}, logger)
	t.Cleanup(coord.Stop)

	mgr := newTestManager(t)
	return &testEnv{
		engine:  NewEngine(coord, mgr, cfg, logger),
		manager: mgr,
		gw:      gw,
		store:   st,
	}
}

func (env *testEnv) save(t *testing.T, id, code string) {
	t.Helper()
	_, err := env.manager.Save(&Script{ID: id, Meta: ScriptMeta{Name: id, Enabled: true}, LuaCode: code})
	require.NoError(t, err)
}

func (env *testEnv) joinLight() {
	env.gw.Join(gateway.DeviceJoinedEvent{
		IEEE:           lightIEEE,
		ShortAddr:      0x1234,
		NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.Router, MACCapabilityFlags: 0x8E},
		Endpoints:      []gateway.SimpleDescriptor{{Endpoint: 11, InClusters: []uint16{0x0003, 0x0006}}},
	})
}

func TestGoToLua(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		val  interface{}
		want lua.LValueType
	}{
		{"nil", nil, lua.LTNil},
		{"bool", true, lua.LTBool},
		{"string", "hello", lua.LTString},
		{"bytes", []byte{0x01, 0x02}, lua.LTString},
		{"int", 42, lua.LTNumber},
		{"uint16", uint16(1024), lua.LTNumber},
		{"int8", int8(-10), lua.LTNumber},
		{"float32", float32(1.5), lua.LTNumber},
		{"enum", zcl.EnumValue{Type: "StepMode", Name: "Down", Value: 1}, lua.LTTable},
		{"bitmap", zcl.Bitmap{Type: "Options", Value: 3}, lua.LTTable},
		{"match", helpers.ClusterMatch{ClusterID: 6}, lua.LTTable},
		{"map", map[string]interface{}{"a": 1}, lua.LTTable},
		{"slice", []interface{}{1, 2, 3}, lua.LTTable},
		{"unknown", struct{}{}, lua.LTString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, goToLua(L, tt.val).Type())
		})
	}

	enum := goToLua(L, zcl.EnumValue{Type: "StepMode", Name: "Down", Value: 1}).(*lua.LTable)
	assert.Equal(t, lua.LString("Down"), enum.RawGetString("name"))
	assert.Equal(t, lua.LNumber(1), enum.RawGetString("value"))
}

func TestLuaToGo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	require.NoError(t, L.DoString(`_v = {level = 254, name = "x", on = true, list = {1, "b"}}`))

	got := luaToGo(L.GetGlobal("_v"))
	assert.Equal(t, map[string]interface{}{
		"level": float64(254),
		"name":  "x",
		"on":    true,
		"list":  []interface{}{float64(1), "b"},
	}, got)
	assert.Nil(t, luaToGo(lua.LNil))
}

func TestMatchesHandler(t *testing.T) {
	tests := []struct {
		name    string
		handler luaEventHandler
		evType  string
		fields  map[string]interface{}
		want    bool
	}{
		{"type match", luaEventHandler{eventType: "device_joined", clusterID: -1}, "device_joined", map[string]interface{}{"ieee": "AABB"}, true},
		{"wrong type", luaEventHandler{eventType: "device_joined", clusterID: -1}, "device_left", map[string]interface{}{}, false},
		{"wildcard", luaEventHandler{eventType: "*", clusterID: -1}, "binding_created", map[string]interface{}{}, true},
		{"ieee match", luaEventHandler{eventType: "device_left", ieee: "AABB", clusterID: -1}, "device_left", map[string]interface{}{"ieee": "AABB"}, true},
		{"ieee mismatch", luaEventHandler{eventType: "device_left", ieee: "AABB", clusterID: -1}, "device_left", map[string]interface{}{"ieee": "CCDD"}, false},
		{"ieee as binding target", luaEventHandler{eventType: "binding_created", ieee: "CCDD", clusterID: -1}, "binding_created", map[string]interface{}{"source_ieee": "AABB", "target_ieee": "CCDD"}, true},
		{"cluster match", luaEventHandler{eventType: "command_issued", clusterID: 6}, "command_issued", map[string]interface{}{"cluster_id": uint16(6)}, true},
		{"cluster mismatch", luaEventHandler{eventType: "command_issued", clusterID: 8}, "command_issued", map[string]interface{}{"cluster_id": uint16(6)}, false},
		{"cluster missing", luaEventHandler{eventType: "device_joined", clusterID: 8}, "device_joined", map[string]interface{}{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesHandler(tt.handler, tt.evType, tt.fields))
		})
	}
}

func TestEventFields(t *testing.T) {
	m := helpers.ClusterMatch{SourceIEEE: "A", SourceEndpoint: 1, ClusterID: 6, TargetIEEE: "B", TargetEndpoint: 2}
	fields := eventFields(coordinator.Event{Type: coordinator.EventBindingCreated, Data: m})
	assert.Equal(t, "B", fields["target_ieee"])
	assert.Equal(t, uint16(6), fields["cluster_id"])
	assert.Empty(t, eventFields(coordinator.Event{Data: "junk"}))
}

func TestRunLuaCodeConvert(t *testing.T) {
	env := newTestEnv(t, Config{})

	res := env.engine.RunLuaCode(`
		local v = zha.convert("OffEffectIdentifier.Dying_Light", "OffEffectIdentifier")
		zha.log(v.name .. "=" .. v.value)
		local n = zha.convert("0x10", "uint8")
		zha.log(tostring(n))
		local bad, err = zha.convert(300, "uint8")
		zha.log(err)
		local _, unknown = zha.convert(1, "NoSuchType")
		zha.log(unknown)
		zha.on("device_joined", function(e) end)
	`)
	require.True(t, res.OK, res.Error)
	require.Len(t, res.Logs, 4)
	assert.Equal(t, "Dying_Light=1", res.Logs[0])
	assert.Equal(t, "16", res.Logs[1])
	assert.Contains(t, res.Logs[2], "300")
	assert.Equal(t, "unknown type NoSuchType", res.Logs[3])
	assert.Equal(t, 1, res.Handlers)
}

func TestRunLuaCodeErrors(t *testing.T) {
	env := newTestEnv(t, Config{HandlerTimeout: 100 * time.Millisecond})

	res := env.engine.RunLuaCode(`this is not lua`)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)

	res = env.engine.RunLuaCode(`os.exit(1)`)
	assert.False(t, res.OK)

	res = env.engine.RunLuaCode(`while true do end`)
	assert.False(t, res.OK)
	assert.Equal(t, "timeout (100ms)", res.Error)

	res = env.engine.RunScript("missing")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "script not found")
}

func TestRunLuaCodeMatches(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.joinLight()

	res := env.engine.RunLuaCode(`
		local m = zha.matches("Remote", "00:15:8d:00:00:00:00:01")
		zha.log(#m .. " " .. m[1].cluster_id .. " " .. m[1].target_endpoint)
		zha.log(tostring(zha.bindable("Remote", "` + lightIEEE + `")))
		local targets = zha.targets("Remote")
		zha.log(targets[1])
	`)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, []string{"1 6 11", "true", lightIEEE}, res.Logs)
}

func TestEngineRunsHandlersOnEvents(t *testing.T) {
	env := newTestEnv(t, Config{})
	sent := make(chan gateway.CommandRequest, 1)
	env.gw.On("SendCommand", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		sent <- args.Get(1).(gateway.CommandRequest)
	})

	env.save(t, "identify_new", `
		zha.on("device_joined", function(e)
			local fields, err = zha.command(e.ieee, 11, 3, "identify", {identify_time = "5"})
			if err then error(err) end
		end)
	`)
	env.engine.Start()
	defer env.engine.Stop()
	assert.Equal(t, []string{"identify_new"}, env.engine.Running())

	env.joinLight()

	select {
	case req := <-sent:
		assert.Equal(t, lightIEEE, req.IEEE)
		assert.Equal(t, uint16(0x0003), req.ClusterID)
		assert.Equal(t, []byte{0x05, 0x00}, req.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not issue the command")
	}
}

func TestEngineBindOnJoin(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.gw.On("Bind", mock.Anything, gateway.BindRequest{
		SrcIEEE: remoteIEEE, SrcEP: 1, ClusterID: 0x0006, DstIEEE: lightIEEE, DstEP: 11,
	}).Return(nil).Once()

	env.save(t, "bind_remote", `
		zha.on("device_joined", {ieee = "00:15:8d:00:00:00:00:01"}, function(e)
			local matches, err = zha.bind("Remote", e.ieee)
			if err then error(err) end
		end)
	`)
	env.engine.Start()
	defer env.engine.Stop()

	env.joinLight()

	require.Eventually(t, func() bool {
		bindings, err := env.store.ListBindings(remoteIEEE)
		return err == nil && len(bindings) == 1
	}, 2*time.Second, 10*time.Millisecond)
	env.gw.AssertExpectations(t)
}

func TestRunLuaCodePartialBind(t *testing.T) {
	env := newTestEnv(t, Config{})
	require.NoError(t, env.store.SaveDevice(&store.Device{
		IEEEAddress:    remoteIEEE,
		FriendlyName:   "Remote",
		NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.EndDevice, MACCapabilityFlags: 0x80},
		Endpoints:      []store.Endpoint{{ID: 1, OutClusters: []uint16{0x0006, 0x0008}}},
	}))
	require.NoError(t, env.store.SaveDevice(&store.Device{
		IEEEAddress:    lightIEEE,
		NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.Router, MACCapabilityFlags: 0x8E},
		Endpoints:      []store.Endpoint{{ID: 11, InClusters: []uint16{0x0006, 0x0008}}},
	}))
	env.gw.On("Bind", mock.Anything, mock.MatchedBy(func(r gateway.BindRequest) bool {
		return r.ClusterID == 0x0006
	})).Return(nil)
	env.gw.On("Bind", mock.Anything, mock.MatchedBy(func(r gateway.BindRequest) bool {
		return r.ClusterID == 0x0008
	})).Return(errors.New("rejected"))

	res := env.engine.RunLuaCode(`
		local m, err = zha.bind("Remote", "` + lightIEEE + `")
		zha.log(#m .. " " .. m[1].cluster_id)
		zha.log(tostring(err ~= nil))
	`)
	require.True(t, res.OK, res.Error)
	assert.Equal(t, []string{"1 6", "true"}, res.Logs)
}

func TestEngineHandlerErrorDoesNotStopEngine(t *testing.T) {
	env := newTestEnv(t, Config{})
	var calls atomic.Int32
	env.gw.On("SendCommand", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls.Add(1)
	})

	env.save(t, "faulty", `
		zha.on("device_joined", function(e) error("boom") end)
		zha.on("device_joined", function(e) zha.command(e.ieee, 11, 6, "toggle") end)
	`)
	env.engine.Start()
	defer env.engine.Stop()

	env.joinLight()
	env.joinLight()

	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEngineSkipsBrokenAndDisabledScripts(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.save(t, "broken", `zha.on(`)
	env.save(t, "good", `zha.on("device_left", function() end)`)
	_, err := env.manager.Save(&Script{ID: "off", Meta: ScriptMeta{Name: "off"}, LuaCode: `zha.log("x")`})
	require.NoError(t, err)

	env.engine.Start()
	defer env.engine.Stop()
	assert.Equal(t, []string{"good"}, env.engine.Running())
}

func TestEngineReloadAndStopScript(t *testing.T) {
	env := newTestEnv(t, Config{})
	var calls atomic.Int32
	env.gw.On("SendCommand", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		calls.Add(1)
	})

	env.engine.Start()
	defer env.engine.Stop()
	assert.Empty(t, env.engine.Running())

	env.save(t, "toggle", `zha.on("device_joined", function(e) zha.command(e.ieee, 11, 6, "toggle") end)`)
	require.NoError(t, env.engine.ReloadScript("toggle"))
	assert.Equal(t, []string{"toggle"}, env.engine.Running())

	env.joinLight()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.engine.StopScript("toggle")
	assert.Empty(t, env.engine.Running())
	env.joinLight()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	assert.ErrorIs(t, env.engine.ReloadScript("missing"), ErrScriptNotFound)
}
