// Package gatewaytest provides a testify mock of gateway.Gateway.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"zha-go/internal/gateway"
)

// Gateway is a mocked gateway.Gateway. Join and leave handlers are kept so
// tests can raise events with Join and Leave.
type Gateway struct {
	mock.Mock

	mu     sync.Mutex
	joined []func(gateway.DeviceJoinedEvent)
	left   []func(gateway.DeviceLeftEvent)
}

var _ gateway.Gateway = (*Gateway)(nil)

func (g *Gateway) Bind(ctx context.Context, req gateway.BindRequest) error {
	return g.Called(ctx, req).Error(0)
}

func (g *Gateway) Unbind(ctx context.Context, req gateway.BindRequest) error {
	return g.Called(ctx, req).Error(0)
}

func (g *Gateway) SendCommand(ctx context.Context, req gateway.CommandRequest) error {
	return g.Called(ctx, req).Error(0)
}

func (g *Gateway) OnDeviceJoined(handler func(gateway.DeviceJoinedEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.joined = append(g.joined, handler)
}

func (g *Gateway) OnDeviceLeft(handler func(gateway.DeviceLeftEvent)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.left = append(g.left, handler)
}

func (g *Gateway) Close() error {
	return nil
}

// Join delivers a join event to the registered handlers.
func (g *Gateway) Join(evt gateway.DeviceJoinedEvent) {
	g.mu.Lock()
	handlers := append([]func(gateway.DeviceJoinedEvent){}, g.joined...)
	g.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

// Leave delivers a leave event to the registered handlers.
func (g *Gateway) Leave(evt gateway.DeviceLeftEvent) {
	g.mu.Lock()
	handlers := append([]func(gateway.DeviceLeftEvent){}, g.left...)
	g.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}
