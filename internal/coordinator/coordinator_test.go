package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

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
	sensorIEEE = "00158D0000000002"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	coord  *Coordinator
	gw     *gatewaytest.Gateway
	store  *store.BoltStore
	events []Event
	mu     sync.Mutex
}

func (e *testEnv) recorded() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Event(nil), e.events...)
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := newTestLogger()
	reg := zcl.NewRegistry(logger)
	clusters.Register(reg)

	env := &testEnv{gw: &gatewaytest.Gateway{}, store: st}
	bus := NewEventBus(logger)
	bus.OnAll(func(e Event) {
		env.mu.Lock()
		env.events = append(env.events, e)
		env.mu.Unlock()
	})
	env.coord = New(env.gw, st, reg, bus, cfg, logger)
	t.Cleanup(env.coord.Stop)
	return env
}

// seed stores a battery remote with on/off, level and scenes outputs, a
// mains powered light and a battery sensor.
func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	devices := []*store.Device{
		{
			IEEEAddress:    remoteIEEE,
			NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.EndDevice, MACCapabilityFlags: 0x80},
			Endpoints: []store.Endpoint{{
				ID: 1, InClusters: []uint16{0x0000}, OutClusters: []uint16{0x0006, 0x0008, 0x0005},
			}},
		},
		{
			IEEEAddress:    lightIEEE,
			NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.Router, MACCapabilityFlags: 0x8E},
			Endpoints: []store.Endpoint{{
				ID: 11, InClusters: []uint16{0x0000, 0x0003, 0x0005, 0x0006, 0x0008},
			}},
		},
		{
			IEEEAddress:    sensorIEEE,
			NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.EndDevice, MACCapabilityFlags: 0x80},
			Endpoints: []store.Endpoint{{
				ID: 1, InClusters: []uint16{0x0000, 0x0006},
			}},
		},
	}
	for _, d := range devices {
		require.NoError(t, e.store.SaveDevice(d))
	}
}

func TestParseIEEE(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [8]byte
		wantErr bool
	}{
		{"hex string no colons", "00124B001234ABCD", [8]byte{0x00, 0x12, 0x4B, 0x00, 0x12, 0x34, 0xAB, 0xCD}, false},
		{"hex string with colons", "00:12:4b:00:12:34:ab:cd", [8]byte{0x00, 0x12, 0x4B, 0x00, 0x12, 0x34, 0xAB, 0xCD}, false},
		{"all zeros", "0000000000000000", [8]byte{}, false},
		{"too short", "00124B", [8]byte{}, true},
		{"too long", "00124B001234ABCD00", [8]byte{}, true},
		{"invalid hex", "ZZZZZZZZZZZZZZZZ", [8]byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIEEE(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIEEE)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIEEE(t *testing.T) {
	got, err := NormalizeIEEE("00:15:8d:00:00:00:00:01")
	require.NoError(t, err)
	assert.Equal(t, lightIEEE, got)
}

// --- EventBus ---

func TestEventBusOnAndUnsubscribe(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int32

	unsub := eb.On(EventDeviceJoined, func(e Event) {
		count.Add(1)
		assert.False(t, e.Time.IsZero())
	})
	eb.Emit(Event{Type: EventDeviceJoined})
	eb.Emit(Event{Type: EventDeviceLeft})
	assert.Equal(t, int32(1), count.Load())

	unsub()
	eb.Emit(Event{Type: EventDeviceJoined})
	assert.Equal(t, int32(1), count.Load())
}

func TestEventBusPanicRecovery(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var called atomic.Int32

	eb.On(EventDeviceJoined, func(e Event) {
		called.Add(1)
		panic("test panic")
	})
	eb.On(EventDeviceJoined, func(e Event) {
		called.Add(1)
	})

	assert.NotPanics(t, func() { eb.Emit(Event{Type: EventDeviceJoined}) })
	assert.Equal(t, int32(2), called.Load())
}

func TestEventBusConcurrentEmit(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	var count atomic.Int32
	eb.OnAll(func(e Event) { count.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eb.Emit(Event{Type: EventCommandIssued})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(100), count.Load())
}

func TestEventBusSubscribe(t *testing.T) {
	eb := NewEventBus(newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	ch := eb.Subscribe(ctx, 4, EventBindingCreated)

	eb.Emit(Event{Type: EventDeviceJoined})
	eb.Emit(Event{Type: EventBindingCreated, Data: "x"})

	select {
	case e := <-ch:
		assert.Equal(t, EventBindingCreated, e.Type)
		assert.Equal(t, "x", e.Data)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.NotPanics(t, func() { eb.Emit(Event{Type: EventBindingCreated}) })
}

// --- devices ---

func TestJoinStoresDevice(t *testing.T) {
	env := newTestEnv(t, Config{})

	env.gw.Join(gateway.DeviceJoinedEvent{
		IEEE:           "00:15:8d:00:00:00:00:01",
		ShortAddr:      0x1234,
		Manufacturer:   "IKEA of Sweden",
		Model:          "TRADFRI bulb",
		NodeDescriptor: zdo.NodeDescriptor{LogicalType: zdo.Router, MACCapabilityFlags: 0x8E},
		Endpoints: []gateway.SimpleDescriptor{{
			Endpoint: 1, ProfileID: 0x0104, DeviceID: 0x0100, InClusters: []uint16{0, 6, 8},
		}},
	})

	dev, err := env.coord.Devices().GetDevice(lightIEEE)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), dev.ShortAddress)
	assert.Equal(t, "IKEA of Sweden TRADFRI bulb", deviceName(dev))
	assert.True(t, dev.NodeDescriptor.IsMainsPowered())
	ep, ok := dev.Endpoint(1)
	require.True(t, ok)
	assert.Equal(t, []uint16{0, 6, 8}, ep.InClusters)

	events := env.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EventDeviceJoined, events[0].Type)
}

func TestRejoinKeepsFriendlyName(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)

	_, err := env.coord.Devices().RenameDevice(lightIEEE, "Kitchen")
	require.NoError(t, err)
	before, err := env.store.GetDevice(lightIEEE)
	require.NoError(t, err)

	env.gw.Join(gateway.DeviceJoinedEvent{IEEE: lightIEEE, ShortAddr: 0x9999})

	dev, err := env.store.GetDevice(lightIEEE)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", dev.FriendlyName)
	assert.Equal(t, uint16(0x9999), dev.ShortAddress)
	assert.True(t, before.JoinedAt.Equal(dev.JoinedAt))
}

func TestJoinInvalidIEEEIgnored(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.gw.Join(gateway.DeviceJoinedEvent{IEEE: "nope"})

	devs, err := env.coord.Devices().ListDevices()
	require.NoError(t, err)
	assert.Empty(t, devs)
	assert.Empty(t, env.recorded())
}

func TestLeaveRemovesDeviceAndBindings(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)
	require.NoError(t, env.store.SaveBinding(&store.Binding{
		SourceIEEE: remoteIEEE, SourceEndpoint: 1, ClusterID: 6, TargetIEEE: lightIEEE, TargetEndpoint: 11,
	}))

	env.gw.Leave(gateway.DeviceLeftEvent{IEEE: lightIEEE})

	_, err := env.store.GetDevice(lightIEEE)
	assert.ErrorIs(t, err, store.ErrNotFound)
	bindings, err := env.store.ListBindings(remoteIEEE)
	require.NoError(t, err)
	assert.Empty(t, bindings)

	events := env.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EventDeviceLeft, events[0].Type)
}

func TestRemoveUnknownDevice(t *testing.T) {
	env := newTestEnv(t, Config{})
	err := env.coord.Devices().RemoveDevice(lightIEEE)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- commands ---

func TestIssueCommandCoercesAndSends(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)

	env.gw.On("SendCommand", mock.Anything, gateway.CommandRequest{
		IEEE:      lightIEEE,
		Endpoint:  11,
		ClusterID: 0x0003,
		CommandID: 0x00,
		Direction: zcl.DirectionToServer,
		Payload:   []byte{0x01, 0x00},
	}).Return(nil).Once()

	fields, err := env.coord.IssueCommand(context.Background(), CommandRequest{
		IEEE:      lightIEEE,
		Endpoint:  11,
		ClusterID: 0x0003,
		Command:   "identify",
		Fields:    map[string]interface{}{"identify_time": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"identify_time": uint16(1)}, fields)
	env.gw.AssertExpectations(t)

	events := env.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EventCommandIssued, events[0].Type)
}

func TestIssueCommandEnumByName(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)

	env.gw.On("SendCommand", mock.Anything, mock.MatchedBy(func(req gateway.CommandRequest) bool {
		return req.CommandID == 0x40 && assert.ObjectsAreEqual([]byte{0x01, 0x00}, req.Payload)
	})).Return(nil).Once()

	_, err := env.coord.IssueCommand(context.Background(), CommandRequest{
		IEEE:      lightIEEE,
		Endpoint:  11,
		ClusterID: 0x0006,
		Command:   "off_with_effect",
		Fields:    map[string]interface{}{"effect_id": "OffEffectIdentifier.Dying_Light", "effect_variant": 0},
	})
	require.NoError(t, err)
	env.gw.AssertExpectations(t)
}

func TestIssueCommandErrors(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)
	ctx := context.Background()

	_, err := env.coord.IssueCommand(ctx, CommandRequest{
		IEEE: lightIEEE, Endpoint: 11, ClusterID: 0x0003, Command: "identify",
		Fields: map[string]interface{}{"identify_time": "soon"},
	})
	require.ErrorIs(t, err, helpers.ErrCoercion)
	assert.Contains(t, err.Error(), "identify_time")

	_, err = env.coord.IssueCommand(ctx, CommandRequest{
		IEEE: lightIEEE, Endpoint: 11, ClusterID: 0x0003, Command: "explode",
	})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = env.coord.IssueCommand(ctx, CommandRequest{
		IEEE: "00158D00000000FF", Endpoint: 1, ClusterID: 0x0006, Command: "on",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = env.coord.IssueCommand(ctx, CommandRequest{
		IEEE: lightIEEE, Endpoint: 2, ClusterID: 0x0006, Command: "on",
	})
	assert.ErrorContains(t, err, "no endpoint 2")

	env.gw.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything)
	assert.Empty(t, env.recorded())
}

func TestIssueCommandGatewayError(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)
	env.gw.On("SendCommand", mock.Anything, mock.Anything).Return(gateway.ErrTimeout)

	_, err := env.coord.IssueCommand(context.Background(), CommandRequest{
		IEEE: lightIEEE, Endpoint: 11, ClusterID: 0x0006, Command: "toggle",
	})
	assert.ErrorIs(t, err, gateway.ErrTimeout)
	assert.Empty(t, env.recorded())
}

// --- binding ---

func bindReq(cluster uint16) gateway.BindRequest {
	return gateway.BindRequest{SrcIEEE: remoteIEEE, SrcEP: 1, ClusterID: cluster, DstIEEE: lightIEEE, DstEP: 11}
}

func TestBindDevices(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)
	for _, c := range []uint16{0x0006, 0x0008, 0x0005} {
		env.gw.On("Bind", mock.Anything, bindReq(c)).Return(nil).Once()
	}

	matches, err := env.coord.BindDevices(context.Background(), remoteIEEE, lightIEEE)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, []uint16{0x0006, 0x0008, 0x0005},
		[]uint16{matches[0].ClusterID, matches[1].ClusterID, matches[2].ClusterID})
	env.gw.AssertExpectations(t)

	bindings, err := env.store.ListBindings(remoteIEEE)
	require.NoError(t, err)
	assert.Len(t, bindings, 3)
	assert.Len(t, env.recorded(), 3)
}

func TestBindDevicesBindableOnly(t *testing.T) {
	env := newTestEnv(t, Config{BindableOnly: true})
	env.seed(t)
	env.gw.On("Bind", mock.Anything, mock.Anything).Return(nil)

	matches, err := env.coord.BindDevices(context.Background(), remoteIEEE, lightIEEE)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	env.gw.AssertNotCalled(t, "Bind", mock.Anything, bindReq(0x0005))
}

func TestBindDevicesPartialFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)
	env.gw.On("Bind", mock.Anything, bindReq(0x0006)).Return(nil)
	env.gw.On("Bind", mock.Anything, bindReq(0x0008)).Return(errors.New("NOT_SUPPORTED"))
	env.gw.On("Bind", mock.Anything, bindReq(0x0005)).Return(nil)

	matches, err := env.coord.BindDevices(context.Background(), remoteIEEE, lightIEEE)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_SUPPORTED")
	assert.Len(t, matches, 2)

	bindings, err := env.store.ListBindings(remoteIEEE)
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
}

func TestBindToBatteryTargetIsNoop(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)

	matches, err := env.coord.BindDevices(context.Background(), remoteIEEE, sensorIEEE)
	require.NoError(t, err)
	assert.Empty(t, matches)
	env.gw.AssertNotCalled(t, "Bind", mock.Anything, mock.Anything)
}

func TestUnbindDevices(t *testing.T) {
	env := newTestEnv(t, Config{BindableOnly: true})
	env.seed(t)
	env.gw.On("Bind", mock.Anything, mock.Anything).Return(nil)
	env.gw.On("Unbind", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	_, err := env.coord.BindDevices(ctx, remoteIEEE, lightIEEE)
	require.NoError(t, err)
	matches, err := env.coord.UnbindDevices(ctx, remoteIEEE, lightIEEE)
	require.NoError(t, err)
	assert.Len(t, matches, 2)

	bindings, err := env.store.ListBindings("")
	require.NoError(t, err)
	assert.Empty(t, bindings)

	var removed int
	for _, e := range env.recorded() {
		if e.Type == EventBindingRemoved {
			removed++
		}
	}
	assert.Equal(t, 2, removed)
}

func TestBindableTargets(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.seed(t)

	targets, err := env.coord.BindableTargets(remoteIEEE)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, lightIEEE, targets[0].IEEEAddress)

	targets, err = env.coord.BindableTargets(lightIEEE)
	require.NoError(t, err)
	assert.Empty(t, targets)

	_, err = env.coord.BindableTargets("00158D00000000FF")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConvertCommand(t *testing.T) {
	env := newTestEnv(t, Config{})

	fields, payload, err := env.coord.ConvertCommand(0x0008, "move_to_level", "", map[string]interface{}{
		"level": "0x80", "transition_time": 10.0,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"level": uint8(0x80), "transition_time": uint16(10)}, fields)
	assert.Equal(t, []byte{0x80, 0x0A, 0x00}, payload)
	env.gw.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything)
}
