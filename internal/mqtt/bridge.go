//go:build !no_mqtt

package mqtt

import (
	"bytes"
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

	"zha-go/internal/coordinator"
	"zha-go/internal/gateway"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
	"zha-go/internal/zcl"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	// RequestTimeout bounds a single service call. Defaults to 30s.
	RequestTimeout time.Duration
}

// Bridge exposes the ZHA helpers as MQTT services and mirrors coordinator
// events and devices onto topics under <prefix>/zha.
type Bridge struct {
	client  pahomqtt.Client
	owned   bool
	coord   *coordinator.Coordinator
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	unsub   func()
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	services map[string]serviceFunc
}

// serviceFunc handles the data of a service request and returns its result.
type serviceFunc func(ctx context.Context, data json.RawMessage) (interface{}, error)

// serviceRequest is the payload on <prefix>/zha/request/<service>.
type serviceRequest struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// serviceResponse is the payload on <prefix>/zha/response/<id>.
type serviceResponse struct {
	ID      string      `json:"id"`
	Service string      `json:"service"`
	OK      bool        `json:"ok"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func newBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &Bridge{
		coord:   coord,
		prefix:  cfg.TopicPrefix,
		timeout: timeout,
		logger:  logger.With("component", "mqtt"),
		ctx:     ctx,
		cancel:  cancel,
	}
	b.services = map[string]serviceFunc{
		"issue_command":    b.serveIssueCommand,
		"convert":          b.serveConvert,
		"bind":             b.serveBind,
		"unbind":           b.serveUnbind,
		"matched_clusters": b.serveMatchedClusters,
		"bindable_targets": b.serveBindableTargets,
		"rename":           b.serveRename,
		"remove":           b.serveRemove,
	}
	return b
}

// NewBridge creates and connects an MQTT bridge.
func NewBridge(coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(coord, cfg, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "zha-go"
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(b.topic("state"), "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.online(c)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	b.owned = true
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

// New creates a bridge on an already connected client. The client is not
// disconnected on Stop.
func New(client pahomqtt.Client, coord *coordinator.Coordinator, cfg Config, logger *slog.Logger) *Bridge {
	b := newBridge(coord, cfg, logger)
	b.client = client
	b.online(client)
	return b
}

// Start subscribes to coordinator events and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.coord.Events().OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, waits for running service calls and disconnects.
func (b *Bridge) Stop() {
	b.cancel()
	if b.unsub != nil {
		b.unsub()
	}
	b.wg.Wait()
	b.client.Unsubscribe(b.topic("request", "+"))
	b.publishState("offline")
	if b.owned {
		b.client.Disconnect(1000)
	}
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) topic(parts ...string) string {
	return b.prefix + "/zha/" + strings.Join(parts, "/")
}

func (b *Bridge) online(c pahomqtt.Client) {
	b.publishState("online")
	b.publishAllDevices()
	token := c.Subscribe(b.topic("request", "+"), 1, b.handleRequest)
	if !token.WaitTimeout(10 * time.Second) {
		b.logger.Error("subscribe requests timed out")
	} else if err := token.Error(); err != nil {
		b.logger.Error("subscribe requests", "err", err)
	}
}

func (b *Bridge) handleEvent(event coordinator.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("marshal event", "type", event.Type, "err", err)
		return
	}
	b.publish(b.topic("event", event.Type), payload, false)

	switch event.Type {
	case coordinator.EventDeviceJoined, coordinator.EventDeviceUpdated:
		if ieee := eventIEEE(event); ieee != "" {
			if dev, err := b.coord.Devices().GetDevice(ieee); err == nil {
				b.publishDevice(dev)
			}
		}
	case coordinator.EventDeviceLeft:
		if ieee := eventIEEE(event); ieee != "" {
			msg := b.buildRemoveMessage(ieee)
			b.publish(msg.Topic, msg.Payload, true)
		}
	}
}

func eventIEEE(event coordinator.Event) string {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return ""
	}
	ieee, _ := data["ieee"].(string)
	return ieee
}

func (b *Bridge) publishState(state string) {
	b.publish(b.topic("state"), []byte(state), true)
}

func (b *Bridge) publishAllDevices() {
	devices, err := b.coord.Devices().ListDevices()
	if err != nil {
		b.logger.Error("list devices", "err", err)
		return
	}
	for _, dev := range devices {
		b.publishDevice(dev)
	}
}

func (b *Bridge) publishDevice(dev *store.Device) {
	msg := b.buildDeviceMessage(dev)
	b.publish(msg.Topic, msg.Payload, true)
	b.logger.Debug("published device", "ieee", dev.IEEEAddress, "name", deviceDisplayName(dev))
}

func (b *Bridge) handleRequest(_ pahomqtt.Client, msg pahomqtt.Message) {
	service := msg.Topic()[strings.LastIndex(msg.Topic(), "/")+1:]

	var req serviceRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		b.logger.Warn("invalid request JSON", "service", service, "err", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.reply(req.ID, service, b.call(service, req.Data))
	}()
}

type callResult struct {
	result interface{}
	err    error
}

func (b *Bridge) call(service string, data json.RawMessage) callResult {
	fn, ok := b.services[service]
	if !ok {
		return callResult{err: fmt.Errorf("unknown service %q", service)}
	}
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	res, err := fn(ctx, data)
	return callResult{result: res, err: err}
}

func (b *Bridge) reply(id, service string, res callResult) {
	resp := serviceResponse{ID: id, Service: service, OK: res.err == nil, Result: res.result}
	if res.err != nil {
		// partial bind results are reported alongside the error
		if m, ok := res.result.([]helpers.ClusterMatch); !ok || len(m) == 0 {
			resp.Result = nil
		}
		resp.Error = res.err.Error()
		resp.Code = errorCode(res.err)
		b.logger.Warn("service failed", "service", service, "id", id, "err", res.err)
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("marshal response", "service", service, "err", err)
		return
	}
	b.publish(b.topic("response", id), payload, false)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, helpers.ErrCoercion),
		errors.Is(err, coordinator.ErrInvalidIEEE),
		errors.Is(err, zcl.ErrMissingField):
		return "invalid_value"
	case errors.Is(err, coordinator.ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gateway.ErrTimeout):
		return "timeout"
	}
	return "error"
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	return nil
}

type pairArgs struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type convertArgs struct {
	Value     interface{}            `json:"value,omitempty"`
	Type      string                 `json:"type,omitempty"`
	ClusterID uint16                 `json:"cluster_id"`
	Command   string                 `json:"command"`
	Direction zcl.CommandDirection   `json:"direction,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (b *Bridge) serveIssueCommand(ctx context.Context, data json.RawMessage) (interface{}, error) {
	var req coordinator.CommandRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	return b.coord.IssueCommand(ctx, req)
}

func (b *Bridge) serveConvert(_ context.Context, data json.RawMessage) (interface{}, error) {
	var args convertArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	if args.Type != "" {
		ft, ok := b.coord.Registry().Type(args.Type)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", args.Type)
		}
		value, err := helpers.ConvertZCLValue(args.Value, ft)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": value}, nil
	}
	fields, payload, err := b.coord.ConvertCommand(args.ClusterID, args.Command, args.Direction, args.Fields)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"fields": fields, "payload": fmt.Sprintf("%X", payload)}, nil
}

func (b *Bridge) serveBind(ctx context.Context, data json.RawMessage) (interface{}, error) {
	var args pairArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return nonNil(b.coord.BindDevices(ctx, args.Source, args.Target))
}

func (b *Bridge) serveUnbind(ctx context.Context, data json.RawMessage) (interface{}, error) {
	var args pairArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return nonNil(b.coord.UnbindDevices(ctx, args.Source, args.Target))
}

func (b *Bridge) serveMatchedClusters(_ context.Context, data json.RawMessage) (interface{}, error) {
	var args pairArgs
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return nonNil(b.coord.MatchedClusters(args.Source, args.Target))
}

func (b *Bridge) serveBindableTargets(_ context.Context, data json.RawMessage) (interface{}, error) {
	var args struct {
		Source string `json:"source"`
	}
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return b.coord.BindableTargets(args.Source)
}

func (b *Bridge) serveRename(_ context.Context, data json.RawMessage) (interface{}, error) {
	var args struct {
		IEEE string `json:"ieee"`
		Name string `json:"name"`
	}
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return b.coord.Devices().RenameDevice(args.IEEE, args.Name)
}

func (b *Bridge) serveRemove(_ context.Context, data json.RawMessage) (interface{}, error) {
	var args struct {
		IEEE string `json:"ieee"`
	}
	if err := decode(data, &args); err != nil {
		return nil, err
	}
	return nil, b.coord.Devices().RemoveDevice(args.IEEE)
}

// nonNil keeps "no matches" as [] in responses.
func nonNil(matches []helpers.ClusterMatch, err error) (interface{}, error) {
	if matches == nil {
		matches = []helpers.ClusterMatch{}
	}
	return matches, err
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}
