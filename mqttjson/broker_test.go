package mqttjson_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
)

// memoryBroker routes messages between memoryAdapters in process.
type memoryBroker struct {
	mu   sync.Mutex
	subs map[*memoryAdapter]map[string]mqttadapter.MessageCallback
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{subs: map[*memoryAdapter]map[string]mqttadapter.MessageCallback{}}
}

func topicMatch(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) || (part != "+" && part != t[i]) {
			return false
		}
	}
	return len(f) == len(t)
}

func (b *memoryBroker) publish(topic string, retained bool, data []byte) {
	type target struct {
		a  *memoryAdapter
		cb mqttadapter.MessageCallback
	}

	b.mu.Lock()
	var targets []target
	for a, filters := range b.subs {
		for filter, cb := range filters {
			if topicMatch(filter, topic) {
				targets = append(targets, target{a, cb})
			}
		}
	}
	b.mu.Unlock()

	for _, t := range targets {
		go t.cb(t.a, &memoryMessage{topic: topic, retained: retained, payload: data})
	}
}

type memoryMessage struct {
	topic    string
	retained bool
	payload  []byte
}

func (m *memoryMessage) Duplicate() bool   { return false }
func (m *memoryMessage) Qos() byte         { return 0 }
func (m *memoryMessage) Retained() bool    { return m.retained }
func (m *memoryMessage) Topic() string     { return m.topic }
func (m *memoryMessage) MessageID() uint16 { return 0 }
func (m *memoryMessage) Payload() []byte   { return m.payload }
func (m *memoryMessage) Ack()              {}

// memoryAdapter is an always connected MQTTClientAdapter on a memoryBroker.
type memoryAdapter struct {
	broker *memoryBroker

	mu        sync.Mutex
	callbacks map[int]mqttadapter.OnConnectCallback
	next      int
	closed    bool
}

func newMemoryAdapter(b *memoryBroker) *memoryAdapter {
	return &memoryAdapter{broker: b, callbacks: map[int]mqttadapter.OnConnectCallback{}}
}

func (a *memoryAdapter) GetMqttClient() mqtt.Client { return nil }

func (a *memoryAdapter) GetClientOptions() *mqtt.ClientOptions { return mqtt.NewClientOptions() }

func (a *memoryAdapter) OnConnect(cb mqttadapter.OnConnectCallback) int {
	cb()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.callbacks[a.next] = cb
	return a.next
}

func (a *memoryAdapter) OffConnect(idx int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.callbacks, idx)
}

func (a *memoryAdapter) OnConnectLost(cb mqttadapter.OnConnectLostCallback) int { return 0 }
func (a *memoryAdapter) OffConnectLost(idx int)                                {}
func (a *memoryAdapter) Connect(ctx context.Context) error                     { return nil }
func (a *memoryAdapter) EnsureConnected()                                      {}
func (a *memoryAdapter) ConnectAndWaitForSuccess()                             {}

func (a *memoryAdapter) Disconnect() {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	delete(a.broker.subs, a)

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

func (a *memoryAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

func (a *memoryAdapter) Subscribe(ctx context.Context, topic string, qos byte, onMsg mqttadapter.MessageCallback) {
	_ = a.SubscribeWait(ctx, topic, qos, onMsg)
}

func (a *memoryAdapter) SubscribeWait(ctx context.Context, topic string, qos byte, onMsg mqttadapter.MessageCallback) error {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	if a.broker.subs[a] == nil {
		a.broker.subs[a] = map[string]mqttadapter.MessageCallback{}
	}
	a.broker.subs[a][topic] = onMsg
	return nil
}

func (a *memoryAdapter) Unsubscribe(ctx context.Context, topic string) {
	a.broker.mu.Lock()
	defer a.broker.mu.Unlock()
	delete(a.broker.subs[a], topic)
}

func (a *memoryAdapter) PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte) {
	a.broker.publish(topic, retained, data)
}

func (a *memoryAdapter) PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error {
	a.broker.publish(topic, retained, data)
	return nil
}

func (a *memoryAdapter) PublishObject(ctx context.Context, topic string, qos byte, retained bool, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	a.broker.publish(topic, retained, data)
	return nil
}

func (a *memoryAdapter) PublishObjectWait(ctx context.Context, topic string, qos byte, retained bool, payload any) error {
	if !a.IsConnected() {
		return mqtt.ErrNotConnected
	}
	return a.PublishObject(ctx, topic, qos, retained, payload)
}
