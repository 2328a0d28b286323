package mqttadapter

//go:generate mockgen -source=interface.go -destination=mock/mock_mqttadapter.go
//go:generate mockgen -package mock_mqtt -destination=mock/mqtt/mock_mqtt_client.go github.com/eclipse/paho.mqtt.golang Client,Token,Message

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is a message received from the broker.
type Message = mqtt.Message

// MessageCallback handles a message received on a subscribed topic.
type MessageCallback func(MQTTClientAdapter, Message)

// OnConnectCallback is called when a connection is established.
type OnConnectCallback func()

// OnConnectLostCallback is called with the reason of a lost connection.
type OnConnectLostCallback func(err error)

// MQTTClientAdapter wraps a paho client with connect callbacks and
// context aware subscribe and publish.
type MQTTClientAdapter interface {
	// GetMqttClient returns the underlying paho client.
	GetMqttClient() mqtt.Client

	GetClientOptions() *mqtt.ClientOptions

	// OnConnect registers cb for every (re)connection and calls it at once
	// when already connected. The returned index is used with OffConnect.
	OnConnect(cb OnConnectCallback) int
	OffConnect(idx int)

	// OnConnectLost registers cb for every lost connection.
	OnConnectLost(cb OnConnectLostCallback) int
	OffConnectLost(idx int)

	// Connect makes a single connection attempt.
	Connect(ctx context.Context) error

	// EnsureConnected connects in the background, retrying until success or Disconnect.
	EnsureConnected()

	// ConnectAndWaitForSuccess connects, retrying until success or Disconnect.
	ConnectAndWaitForSuccess()

	Disconnect()
	IsConnected() bool

	Subscribe(ctx context.Context, topic string, qos byte, onMsg MessageCallback)
	SubscribeWait(ctx context.Context, topic string, qos byte, onMsg MessageCallback) error
	Unsubscribe(ctx context.Context, topic string)

	PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte)
	PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error

	// PublishObject publishes payload encoded as JSON.
	PublishObject(ctx context.Context, topic string, qos byte, retained bool, payload any) error

	// PublishObjectWait is PublishObject waiting for the publish to complete.
	PublishObjectWait(ctx context.Context, topic string, qos byte, retained bool, payload any) error
}
