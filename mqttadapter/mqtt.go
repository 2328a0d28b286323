package mqttadapter

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// MQTTClientAdapterImpl is the paho backed MQTTClientAdapter.
type MQTTClientAdapterImpl struct {
	client        mqtt.Client
	clientOptions *ClientOptions

	subscribeMap sync.Map

	callbackMu            sync.Mutex
	onConnectCount        int
	onConnectCallbacks    map[int]OnConnectCallback
	onConnectLostCount    int
	onConnectLostCallbaks map[int]OnConnectLostCallback

	stopRetryConnect *atomic.Bool
	printableURL     string

	log *zap.SugaredLogger
}

// New creates an adapter for the broker at uri ("tcp://host:port").
// Credentials in uri are used for the connection but never logged.
func New(uri, clientID string, options ...Option) (MQTTClientAdapter, error) {
	server, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse broker url")
	}

	log := zap.S().With("module", "calc.mqtt")

	printable := *server
	printable.User = nil
	client := &MQTTClientAdapterImpl{
		log:                   log,
		printableURL:          printable.String(),
		stopRetryConnect:      atomic.NewBool(false),
		onConnectCallbacks:    make(map[int]OnConnectCallback),
		onConnectLostCallbaks: make(map[int]OnConnectLostCallback),
	}

	mqttClientOptions := mqtt.NewClientOptions().
		AddBroker(uri).
		SetClientID(clientID).
		SetKeepAlive(60 * time.Second).
		SetDefaultPublishHandler(func(c mqtt.Client, m mqtt.Message) {
			log.Infof("DefaultPublishHandler %s %s", m.Topic(), string(m.Payload()))
		}).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infof("Connected %s", client.printableURL)
			for _, cb := range client.connectCallbacks() {
				go cb()
			}
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Infof("Connection lost %s %v", client.printableURL, err)
			for _, cb := range client.connectLostCallbacks() {
				go cb(err)
			}
		})

	clientOptions := &ClientOptions{
		ClientOptions: mqttClientOptions,
		retryInterval: 10 * time.Second,
	}
	for _, o := range options {
		o(clientOptions)
	}

	client.client = mqtt.NewClient(clientOptions.ClientOptions)

	if clientOptions.enableStatus {
		client.OnConnect(func() {
			client.PublishBytes(context.Background(), clientOptions.onlineTopic, 1, true, clientOptions.onlinePayload)
		})
	}

	if clientOptions.enableDebug {
		mqtt.DEBUG = stdlog.New(os.Stderr, "DEBUG - ", stdlog.LstdFlags)
		mqtt.CRITICAL = stdlog.New(os.Stderr, "CRITICAL - ", stdlog.LstdFlags)
		mqtt.WARN = stdlog.New(os.Stderr, "WARN - ", stdlog.LstdFlags)
		mqtt.ERROR = stdlog.New(os.Stderr, "ERROR - ", stdlog.LstdFlags)
	}

	client.clientOptions = clientOptions

	return client, nil
}

func (s *MQTTClientAdapterImpl) connectCallbacks() []OnConnectCallback {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	cbs := make([]OnConnectCallback, 0, len(s.onConnectCallbacks))
	for _, cb := range s.onConnectCallbacks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (s *MQTTClientAdapterImpl) connectLostCallbacks() []OnConnectLostCallback {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	cbs := make([]OnConnectLostCallback, 0, len(s.onConnectLostCallbaks))
	for _, cb := range s.onConnectLostCallbaks {
		cbs = append(cbs, cb)
	}
	return cbs
}

func (s *MQTTClientAdapterImpl) GetMqttClient() mqtt.Client {
	return s.client
}

func (s *MQTTClientAdapterImpl) GetClientOptions() *mqtt.ClientOptions {
	return s.clientOptions.ClientOptions
}

// OnConnect registers cb and runs it immediately when already connected.
func (s *MQTTClientAdapterImpl) OnConnect(cb OnConnectCallback) int {
	if s.client.IsConnected() {
		cb()
	}

	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	idx := s.onConnectCount
	s.onConnectCount++
	s.onConnectCallbacks[idx] = cb
	return idx
}

func (s *MQTTClientAdapterImpl) OffConnect(idx int) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	delete(s.onConnectCallbacks, idx)
}

func (s *MQTTClientAdapterImpl) OnConnectLost(cb OnConnectLostCallback) int {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	idx := s.onConnectLostCount
	s.onConnectLostCount++
	s.onConnectLostCallbaks[idx] = cb
	return idx
}

func (s *MQTTClientAdapterImpl) OffConnectLost(idx int) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	delete(s.onConnectLostCallbaks, idx)
}

func (s *MQTTClientAdapterImpl) Connect(ctx context.Context) error {
	return waitToken(ctx, s.client.Connect())
}

func (s *MQTTClientAdapterImpl) EnsureConnected() {
	go s.ConnectAndWaitForSuccess()
}

// ConnectAndWaitForSuccess returns once connected. Failed attempts are
// retried after the retry interval until Disconnect is called.
func (s *MQTTClientAdapterImpl) ConnectAndWaitForSuccess() {
	ctx := context.Background()
	for !s.stopRetryConnect.Load() {
		if s.IsConnected() {
			s.log.Infof("mqtt is connected %s", s.printableURL)
			return
		}
		if err := s.Connect(ctx); err != nil {
			s.log.Errorf("Connect failed %s %v", s.printableURL, err)
			time.Sleep(s.clientOptions.retryInterval)
			s.log.Infof("Try reconnect %s", s.printableURL)
			continue
		}
		return
	}
	s.log.Infof("Stop retry connect %s", s.printableURL)
}

func (s *MQTTClientAdapterImpl) Disconnect() {
	s.stopRetryConnect.Store(true)
	s.client.Disconnect(1000)
}

func (s *MQTTClientAdapterImpl) IsConnected() bool {
	return s.client.IsConnectionOpen()
}

func (s *MQTTClientAdapterImpl) subscribe(topic string, qos byte, onMsg MessageCallback) mqtt.Token {
	s.log.Debugf("Subscribe topic=%s qos=%d", topic, qos)
	defer s.subscribeMap.Store(topic, true)

	return s.client.Subscribe(topic, qos, func(c mqtt.Client, m mqtt.Message) {
		onMsg(s, m)
	})
}

func (s *MQTTClientAdapterImpl) Subscribe(ctx context.Context, topic string, qos byte, onMsg MessageCallback) {
	s.subscribe(topic, qos, onMsg)
}

// SubscribeWait waits until the broker acknowledged the subscription.
func (s *MQTTClientAdapterImpl) SubscribeWait(ctx context.Context, topic string, qos byte, onMsg MessageCallback) error {
	return waitToken(ctx, s.subscribe(topic, qos, onMsg))
}

func (s *MQTTClientAdapterImpl) Unsubscribe(ctx context.Context, topic string) {
	s.log.Debugf("Unsubscribe topic=%s", topic)
	defer s.subscribeMap.Delete(topic)

	s.client.Unsubscribe(topic)
}

func (s *MQTTClientAdapterImpl) PublishBytes(ctx context.Context, topic string, qos byte, retained bool, data []byte) {
	s.client.Publish(topic, qos, retained, data)
}

func (s *MQTTClientAdapterImpl) PublishBytesWait(ctx context.Context, topic string, qos byte, retained bool, data []byte) error {
	return waitToken(ctx, s.client.Publish(topic, qos, retained, data))
}

func (s *MQTTClientAdapterImpl) publishObject(topic string, qos byte, retained bool, payload any) (mqtt.Token, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode payload for %s", topic)
	}
	return s.client.Publish(topic, qos, retained, data), nil
}

func (s *MQTTClientAdapterImpl) PublishObject(ctx context.Context, topic string, qos byte, retained bool, payload any) error {
	_, err := s.publishObject(topic, qos, retained, payload)
	return err
}

func (s *MQTTClientAdapterImpl) PublishObjectWait(ctx context.Context, topic string, qos byte, retained bool, payload any) error {
	token, err := s.publishObject(topic, qos, retained, payload)
	if err != nil {
		return err
	}
	return waitToken(ctx, token)
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}
