package coordinator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zha-go/internal/gateway"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
	"zha-go/internal/zcl"
)

// Config holds coordinator configuration.
type Config struct {
	// BindableOnly restricts binding to clusters the registry marks bindable.
	BindableOnly bool
}

// ErrInvalidIEEE is wrapped by every malformed IEEE address error.
var ErrInvalidIEEE = errors.New("invalid ieee address")

// ParseIEEE parses "DD:DD:DD:DD:DD:DD:DD:DD" or "DDDDDDDDDDDDDDDD" into [8]byte.
func ParseIEEE(s string) ([8]byte, error) {
	var result [8]byte
	s = strings.ReplaceAll(s, ":", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return result, fmt.Errorf("%w %q: %v", ErrInvalidIEEE, s, err)
	}
	if len(b) != 8 {
		return result, fmt.Errorf("%w %q: must be 8 bytes, got %d", ErrInvalidIEEE, s, len(b))
	}
	copy(result[:], b)
	return result, nil
}

// FormatIEEE renders an address the way devices are keyed in the store.
func FormatIEEE(addr [8]byte) string {
	return fmt.Sprintf("%016X", addr[:])
}

// NormalizeIEEE accepts either IEEE notation and returns the store key.
func NormalizeIEEE(s string) (string, error) {
	addr, err := ParseIEEE(s)
	if err != nil {
		return "", err
	}
	return FormatIEEE(addr), nil
}

// Coordinator ties the device store, the ZCL registry and the Zigbee stack
// gateway together and runs the ZHA helpers against them.
type Coordinator struct {
	gw       gateway.Gateway
	store    store.Store
	graph    *store.Graph
	registry *zcl.Registry
	events   *EventBus
	devices  *DeviceManager
	logger   *slog.Logger
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Coordinator and subscribes to the gateway's device events.
func New(gw gateway.Gateway, st store.Store, registry *zcl.Registry, events *EventBus, cfg Config, logger *slog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		gw:       gw,
		store:    st,
		graph:    store.NewGraph(st),
		registry: registry,
		events:   events,
		logger:   logger,
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.devices = NewDeviceManager(c)
	c.registerIndicationHandlers()
	return c
}

// Context returns the coordinator's context, which is cancelled on Stop().
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// Stop cancels the coordinator context.
func (c *Coordinator) Stop() {
	c.cancel()
}

// Gateway returns the Zigbee stack transport.
func (c *Coordinator) Gateway() gateway.Gateway {
	return c.gw
}

// Store returns the store.
func (c *Coordinator) Store() store.Store {
	return c.store
}

// Graph returns the device graph the matcher reads.
func (c *Coordinator) Graph() helpers.DeviceGraph {
	return c.graph
}

// Registry returns the ZCL registry.
func (c *Coordinator) Registry() *zcl.Registry {
	return c.registry
}

// Events returns the event bus.
func (c *Coordinator) Events() *EventBus {
	return c.events
}

// Devices returns the device manager.
func (c *Coordinator) Devices() *DeviceManager {
	return c.devices
}

func (c *Coordinator) registerIndicationHandlers() {
	c.gw.OnDeviceJoined(func(evt gateway.DeviceJoinedEvent) {
		c.devices.HandleJoin(evt)
	})
	c.gw.OnDeviceLeft(func(evt gateway.DeviceLeftEvent) {
		c.devices.HandleLeave(evt)
	})
}
