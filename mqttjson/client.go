package mqttjson

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	// ErrClientClosed is returned for calls made after Close.
	ErrClientClosed = errors.New("[CALC] client is closed")
)

const connectPollInterval = 50 * time.Millisecond

type clientOptions struct {
	clientID  string
	timeout   time.Duration
	telemetry telemetry.Telemetry
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithClientID fixes the client id used in topics, a random uuid by default.
func WithClientID(id string) ClientOption {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithTimeout bounds calls whose context has no deadline.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithTelemetry sets the telemetry used for client spans.
func WithTelemetry(tel telemetry.Telemetry) ClientOption {
	return func(o *clientOptions) {
		o.telemetry = tel
	}
}

// Client calls a calculator server over MQTT. Requests go to
// <prefix>/<serverID>/request/<clientID>, responses are read from the
// matching response topic and matched by request ID.
type Client struct {
	mqttClient    mqttadapter.MQTTClientAdapter
	requestTopic  string
	responseTopic string
	qos           byte
	timeout       time.Duration
	onConnectIdx  int

	seq       *atomic.Uint64
	closed    *atomic.Bool
	pendingMu sync.Mutex
	pending   map[uint64]chan *Response

	telemetry telemetry.Telemetry
	log       *zap.SugaredLogger
}

// NewClient creates a client of the server serverID. The response topic is
// subscribed on every (re)connection of client.
func NewClient(client mqttadapter.MQTTClientAdapter, topicPrefix, serverID string, options ...ClientOption) *Client {
	o := clientOptions{
		clientID: uuid.NewString(),
		timeout:  10 * time.Second,
	}
	for _, opt := range options {
		opt(&o)
	}
	if o.telemetry == nil {
		o.telemetry, _ = telemetry.NewNoop()
	}

	c := &Client{
		mqttClient:    client,
		requestTopic:  RequestTopic(topicPrefix, serverID, o.clientID),
		responseTopic: ResponseTopic(topicPrefix, serverID, o.clientID),
		qos:           calculator.DefaultQoS,
		timeout:       o.timeout,
		seq:           atomic.NewUint64(0),
		closed:        atomic.NewBool(false),
		pending:       make(map[uint64]chan *Response),
		telemetry:     o.telemetry,
		log:           zap.S().With("module", "calc.mqttjsonclient"),
	}

	client.EnsureConnected()

	c.onConnectIdx = client.OnConnect(func() {
		c.mqttClient.Subscribe(context.TODO(), c.responseTopic, c.qos, c.onResponse)
	})
	return c
}

// Connect waits until the broker connection is up and the response topic
// is subscribed.
func (c *Client) Connect(ctx context.Context) error {
	ticker := time.NewTicker(connectPollInterval)
	defer ticker.Stop()

	for !c.mqttClient.IsConnected() {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for broker")
		case <-ticker.C:
		}
	}
	if err := c.mqttClient.SubscribeWait(ctx, c.responseTopic, c.qos, c.onResponse); err != nil {
		return errors.Wrapf(err, "subscribe %s", c.responseTopic)
	}
	return nil
}

func (c *Client) onResponse(_ mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
	var res Response
	if err := json.Unmarshal(m.Payload(), &res); err != nil {
		c.log.Errorf("Parse response from %s: %v", m.Topic(), err)
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[res.ID]
	delete(c.pending, res.ID)
	c.pendingMu.Unlock()

	if !ok {
		c.log.Warnf("Drop response %d of %s, no pending call", res.ID, res.Method)
		return
	}
	ch <- &res
}

func (c *Client) call(ctx context.Context, op calculator.Operation, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	ctx, span := c.telemetry.StartSpan(ctx, "Calculator.MQTTClient "+op.Method(), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res, err := c.roundTrip(ctx, op, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}
	return res, nil
}

func (c *Client) roundTrip(ctx context.Context, op calculator.Operation, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode params")
	}

	envelope := Request{
		ID:       c.seq.Inc(),
		Method:   op.Method(),
		Metadata: map[string]string{},
		Params:   params,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(envelope.Metadata))

	ch := make(chan *Response, 1)
	c.pendingMu.Lock()
	c.pending[envelope.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, envelope.ID)
		c.pendingMu.Unlock()
	}()

	c.log.Debugf("Send %s #%d to %s", envelope.Method, envelope.ID, c.requestTopic)
	if err := c.mqttClient.PublishObjectWait(ctx, c.requestTopic, c.qos, false, &envelope); err != nil {
		return nil, errors.Wrapf(err, "publish %s", envelope.Method)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return decodeResult(res)
	}
}

func decodeResult(res *Response) (*calculator.CalculationResponse, error) {
	if res.Status != calculator.StatusOK {
		var data errorData
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return nil, calculator.NewStatusError(res.Status, errors.Wrap(err, "decode error reply"))
		}
		return nil, calculator.ErrorFromStatus(res.Status, data.Message)
	}

	var out calculator.CalculationResponse
	if err := json.Unmarshal(res.Data, &out); err != nil {
		return nil, errors.Wrap(err, "decode result")
	}
	return &out, nil
}

// Add calls Add on the server.
func (c *Client) Add(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpAdd, req)
}

// Subtract calls Subtract on the server.
func (c *Client) Subtract(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpSubtract, req)
}

// Multiply calls Multiply on the server.
func (c *Client) Multiply(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpMultiply, req)
}

// Divide calls Divide on the server.
func (c *Client) Divide(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpDivide, req)
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.mqttClient.IsConnected()
}

// Close unsubscribes and disconnects from the broker.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mqttClient.OffConnect(c.onConnectIdx)
	c.mqttClient.Unsubscribe(context.Background(), c.responseTopic)
	c.mqttClient.Disconnect()
	return nil
}
