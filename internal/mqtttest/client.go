// Package mqtttest provides an in-memory MQTT client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is a published MQTT message.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Client is a broker-less pahomqtt.Client. Publishes are recorded and routed
// to matching subscriptions of the same client.
type Client struct {
	pahomqtt.Client

	// OnPublish, when set, is called after every publish outside the lock.
	OnPublish func(c *Client, msg Message)

	mu        sync.Mutex
	published []Message
	subs      map[string]pahomqtt.MessageHandler
	retained  map[string]Message
}

// NewClient returns a connected fake client.
func NewClient() *Client {
	return &Client{
		subs:     make(map[string]pahomqtt.MessageHandler),
		retained: make(map[string]Message),
	}
}

func (c *Client) IsConnected() bool       { return true }
func (c *Client) IsConnectionOpen() bool  { return true }
func (c *Client) Connect() pahomqtt.Token { return doneToken{} }
func (c *Client) Disconnect(uint)         {}

func (c *Client) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	}
	msg := Message{Topic: topic, Payload: data, Retained: retained}

	c.mu.Lock()
	c.published = append(c.published, msg)
	if retained {
		c.retained[topic] = msg
	}
	hook := c.OnPublish
	c.mu.Unlock()

	c.Deliver(topic, data)
	if hook != nil {
		hook(c, msg)
	}
	return doneToken{}
}

func (c *Client) Subscribe(topic string, _ byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	c.subs[topic] = callback
	c.mu.Unlock()
	return doneToken{}
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	for topic, qos := range filters {
		c.Subscribe(topic, qos, callback)
	}
	return doneToken{}
}

func (c *Client) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	for _, t := range topics {
		delete(c.subs, t)
	}
	c.mu.Unlock()
	return doneToken{}
}

// Deliver routes a message to every matching subscription.
func (c *Client) Deliver(topic string, payload []byte) {
	c.mu.Lock()
	var handlers []pahomqtt.MessageHandler
	for filter, h := range c.subs {
		if Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(c, message{topic: topic, payload: payload})
	}
}

// Published returns the messages published on topics with the given prefix.
func (c *Client) Published(prefix string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.published {
		if strings.HasPrefix(m.Topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Retained returns the last retained message on topic.
func (c *Client) Retained(topic string) (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.retained[topic]
	return m, ok
}

// Subscribed reports whether a subscription with exactly this filter exists.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[filter]
	return ok
}

// Match reports whether topic matches an MQTT filter with + and # wildcards.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 1 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

type doneToken struct{}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (doneToken) Wait() bool                     { return true }
func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Done() <-chan struct{}          { return closedCh }
func (doneToken) Error() error                   { return nil }
