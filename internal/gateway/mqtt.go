package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config holds the MQTT connection to the Zigbee stack.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	Timeout     time.Duration
}

// Request and reply envelopes on <prefix>/gateway/request/<op> and
// <prefix>/gateway/response/<id>.
type request struct {
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

type response struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// MQTTGateway talks to the Zigbee stack over MQTT request/response topics.
type MQTTGateway struct {
	client  pahomqtt.Client
	owned   bool
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]chan response
	closed  bool

	handlerMu    sync.RWMutex
	joinHandlers []func(DeviceJoinedEvent)
	leftHandlers []func(DeviceLeftEvent)
}

func newGateway(cfg Config, logger *slog.Logger) *MQTTGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTTGateway{
		prefix:  cfg.TopicPrefix,
		timeout: timeout,
		logger:  logger.With("component", "gateway"),
		pending: make(map[string]chan response),
	}
}

// Dial connects to the broker and subscribes to the stack's reply and event
// topics. Subscriptions are renewed on every reconnect.
func Dial(cfg Config, logger *slog.Logger) (*MQTTGateway, error) {
	g := newGateway(cfg, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zha-go-gateway"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			g.logger.Info("gateway MQTT connected")
			if err := g.subscribe(c); err != nil {
				g.logger.Error("gateway subscribe", "err", err)
			}
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			g.logger.Warn("gateway MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	g.client = client
	g.owned = true
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return g, nil
}

// New uses an already connected client. The client is not disconnected on Close.
func New(client pahomqtt.Client, cfg Config, logger *slog.Logger) (*MQTTGateway, error) {
	g := newGateway(cfg, logger)
	g.client = client
	if err := g.subscribe(client); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *MQTTGateway) topic(parts ...string) string {
	return g.prefix + "/gateway/" + strings.Join(parts, "/")
}

func (g *MQTTGateway) subscribe(c pahomqtt.Client) error {
	subs := map[string]pahomqtt.MessageHandler{
		g.topic("response", "+"): g.handleResponse,
		g.topic("event", "+"):    g.handleEvent,
	}
	for topic, handler := range subs {
		token := c.Subscribe(topic, 1, handler)
		if !token.WaitTimeout(g.timeout) {
			return fmt.Errorf("subscribe %s: %w", topic, ErrTimeout)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (g *MQTTGateway) Bind(ctx context.Context, req BindRequest) error {
	return g.request(ctx, "bind", req)
}

func (g *MQTTGateway) Unbind(ctx context.Context, req BindRequest) error {
	return g.request(ctx, "unbind", req)
}

func (g *MQTTGateway) SendCommand(ctx context.Context, req CommandRequest) error {
	return g.request(ctx, "command", req)
}

func (g *MQTTGateway) OnDeviceJoined(handler func(DeviceJoinedEvent)) {
	g.handlerMu.Lock()
	defer g.handlerMu.Unlock()
	g.joinHandlers = append(g.joinHandlers, handler)
}

func (g *MQTTGateway) OnDeviceLeft(handler func(DeviceLeftEvent)) {
	g.handlerMu.Lock()
	defer g.handlerMu.Unlock()
	g.leftHandlers = append(g.leftHandlers, handler)
}

// Close fails all pending requests and unsubscribes.
func (g *MQTTGateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	for id, ch := range g.pending {
		ch <- response{ID: id, Error: "gateway closed"}
		delete(g.pending, id)
	}
	g.mu.Unlock()

	g.client.Unsubscribe(g.topic("response", "+"), g.topic("event", "+"))
	if g.owned {
		g.client.Disconnect(250)
	}
	return nil
}

func (g *MQTTGateway) request(ctx context.Context, op string, data interface{}) error {
	id := uuid.NewString()
	ch := make(chan response, 1)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return errors.New("gateway closed")
	}
	g.pending[id] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}()

	payload, err := json.Marshal(request{ID: id, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}
	token := g.client.Publish(g.topic("request", op), 1, false, payload)
	if !token.WaitTimeout(g.timeout) {
		return fmt.Errorf("publish %s: %w", op, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", op, err)
	}
	g.logger.Debug("gateway request", "op", op, "id", id)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if !resp.OK {
			if resp.Error == "" {
				resp.Error = "rejected"
			}
			return fmt.Errorf("%s: %s", op, resp.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *MQTTGateway) handleResponse(_ pahomqtt.Client, msg pahomqtt.Message) {
	var resp response
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
		g.logger.Warn("invalid gateway response", "topic", msg.Topic(), "err", err)
		return
	}
	if resp.ID == "" {
		resp.ID = msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:]
	}

	g.mu.Lock()
	ch, ok := g.pending[resp.ID]
	if ok {
		delete(g.pending, resp.ID)
	}
	g.mu.Unlock()

	if !ok {
		g.logger.Debug("response for unknown request", "id", resp.ID)
		return
	}
	ch <- resp
}

func (g *MQTTGateway) handleEvent(_ pahomqtt.Client, msg pahomqtt.Message) {
	eventType := msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:]

	switch eventType {
	case "device_joined":
		var evt DeviceJoinedEvent
		if err := json.Unmarshal(msg.Payload(), &evt); err != nil || evt.IEEE == "" {
			g.logger.Warn("invalid device_joined event", "err", err)
			return
		}
		g.handlerMu.RLock()
		handlers := append([]func(DeviceJoinedEvent){}, g.joinHandlers...)
		g.handlerMu.RUnlock()
		for _, h := range handlers {
			h(evt)
		}
	case "device_left":
		var evt DeviceLeftEvent
		if err := json.Unmarshal(msg.Payload(), &evt); err != nil || evt.IEEE == "" {
			g.logger.Warn("invalid device_left event", "err", err)
			return
		}
		g.handlerMu.RLock()
		handlers := append([]func(DeviceLeftEvent){}, g.leftHandlers...)
		g.handlerMu.RUnlock()
		for _, h := range handlers {
			h(evt)
		}
	default:
		g.logger.Debug("ignoring gateway event", "type", eventType)
	}
}
