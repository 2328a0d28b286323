package mqttjson

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/mqttadapter"
	"go.uber.org/zap"
)

var (
	// ErrRetainedMessage is the rejection of a retained request.
	ErrRetainedMessage = errors.New("[CALC] retained message is not allowed, please set retained=false")
)

// RequestTopic returns the topic a client publishes its requests on.
func RequestTopic(topicPrefix, serverID, clientID string) string {
	return path.Join(topicPrefix, serverID, "request", clientID)
}

// ResponseTopic returns the topic a client receives its responses on.
func ResponseTopic(topicPrefix, serverID, clientID string) string {
	return path.Join(topicPrefix, serverID, "response", clientID)
}

// replyTopic maps <prefix>/<server>/request/<client> to <prefix>/<server>/response/<client>.
func replyTopic(requestTopic string) string {
	parts := strings.Split(requestTopic, "/")
	if len(parts) >= 2 && parts[len(parts)-2] == "request" {
		parts[len(parts)-2] = "response"
	}
	return strings.Join(parts, "/")
}

// Server serves calculator calls received as JSON over MQTT.
type Server struct {
	*calculator.Server
	iotClient mqttadapter.MQTTClientAdapter
	log       *zap.SugaredLogger
	validator *validator.Validate

	subscribeTopic string
	qos            byte
}

// NewServer creates a server answering requests published on
// <topicPrefix>/<serverID>/request/+. The subscription is renewed on every
// (re)connection of client.
func NewServer(client mqttadapter.MQTTClientAdapter, topicPrefix, serverID string, validator *validator.Validate, options ...calculator.ServerOption) *Server {
	s := &Server{
		Server:         calculator.NewServer(options...),
		iotClient:      client,
		subscribeTopic: path.Join(topicPrefix, serverID, "request", "+"),
		qos:            calculator.DefaultQoS,
		log:            zap.S().With("module", "calc.mqttjsonserver"),
		validator:      validator,
	}

	client.EnsureConnected()

	client.OnConnect(func() {
		s.initReceive()
	})
	return s
}

// Close disconnects from the broker and stops the workers.
func (s *Server) Close() error {
	s.iotClient.Disconnect()
	s.Server.Close()
	return nil
}

type request struct {
	Topic string
	Request
}

func (r *request) ReplyTopic() string {
	return replyTopic(r.Topic)
}

func (r *request) response(status int) *response {
	return &response{
		Topic: r.ReplyTopic(),
		Response: Response{
			ID:     r.ID,
			Method: r.Method,
			Status: status,
		},
	}
}

func (r *request) MakeOKResponse(x interface{}) (*response, error) {
	data, err := json.Marshal(x)
	if err != nil {
		return nil, errors.Wrap(err, "encode result")
	}
	res := r.response(calculator.StatusOK)
	res.Data = data
	return res, nil
}

func (r *request) MakeErrResponse(status int, err error) *response {
	res := r.response(status)
	res.Data, _ = json.Marshal(errorData{Message: err.Error()})
	return res
}

type response struct {
	Topic string
	Response
}

func (s *Server) reply(res *response) error {
	data, err := json.Marshal(res.Response)
	if err != nil {
		return err
	}
	s.log.Debugf("Response to topic %s, method %s size %d", res.Topic, res.Method, len(data))
	s.iotClient.PublishBytes(context.TODO(), res.Topic, s.qos, false, data)
	return nil
}

func (s *Server) initReceive() {
	s.iotClient.Subscribe(context.TODO(), s.subscribeTopic, s.qos, s.onMessage)
}

func (s *Server) onMessage(client mqttadapter.MQTTClientAdapter, m mqttadapter.Message) {
	req := request{
		Topic: m.Topic(),
	}

	if m.Retained() {
		s.log.Errorf("Retained message on %s, ignore", m.Topic())
		_ = s.reply(req.MakeErrResponse(calculator.StatusClientError, ErrRetainedMessage))
		return
	}

	if err := json.Unmarshal(m.Payload(), &req.Request); err != nil {
		s.log.Errorf("Parse json %v", err)
		_ = s.reply(req.MakeErrResponse(calculator.StatusClientError, err))
		return
	}

	if err := s.validator.Struct(&req.Request); err != nil {
		_ = s.reply(req.MakeErrResponse(calculator.StatusClientError, err))
		return
	}

	s.log.Debugf("Request from topic %s, method %s", m.Topic(), req.Method)

	mqttCtx := NewMQTTContext(&req, s, s.validator)
	s.Server.Call(calculator.NewRequestContext(mqttCtx.Ctx(), mqttCtx))
}

// IsConnected reports whether the broker connection is up.
func (s *Server) IsConnected() bool {
	return s.iotClient.IsConnected()
}
