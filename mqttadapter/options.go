package mqttadapter

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClientOptions extends the paho options with adapter settings.
type ClientOptions struct {
	*mqtt.ClientOptions
	enableStatus  bool
	enableDebug   bool
	onlineTopic   string
	onlinePayload []byte
	retryInterval time.Duration
}

type Option func(o *ClientOptions)

// WithDebug routes the paho loggers to stderr.
func WithDebug(debug bool) Option {
	return func(o *ClientOptions) {
		o.enableDebug = debug
	}
}

func WithUserPass(user, pass string) Option {
	return func(o *ClientOptions) {
		o.SetUsername(user)
		o.SetPassword(pass)
	}
}

func WithKeepAlive(keepalive time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetKeepAlive(keepalive)
	}
}

// WithRetryInterval sets the pause between failed attempts of ConnectAndWaitForSuccess.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *ClientOptions) {
		o.retryInterval = interval
	}
}

func WithMaxReconnectInterval(interval time.Duration) Option {
	return func(o *ClientOptions) {
		o.SetMaxReconnectInterval(interval)
	}
}

func WithStore(store mqtt.Store) Option {
	return func(o *ClientOptions) {
		o.SetStore(store)
	}
}

// WithStatus publishes a retained online payload on connect and leaves a
// retained offline payload as will.
func WithStatus(
	onlineTopic string, onlinePayload []byte,
	offlineTopic string, offlinePayload []byte,
) Option {
	return func(o *ClientOptions) {
		o.enableStatus = true
		o.onlineTopic = onlineTopic
		o.onlinePayload = onlinePayload
		o.SetBinaryWill(offlineTopic, offlinePayload, 1, true)
	}
}
