package mqttjson

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MQTTContext represents the transport side of a request received over MQTT.
type MQTTContext struct {
	req       *request
	service   *Server
	validator *validator.Validate
	ctx       context.Context
}

// NewMQTTContext creates an MQTTContext, continuing the trace carried in the
// request metadata if any.
func NewMQTTContext(req *request, service *Server, validator *validator.Validate) *MQTTContext {
	ctx := context.Background()
	if req.Metadata != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(req.Metadata))
	}
	return &MQTTContext{
		req:       req,
		service:   service,
		validator: validator,
		ctx:       ctx,
	}
}

func (c *MQTTContext) ID() *calculator.ID {
	return &calculator.ID{Num: c.req.ID}
}

func (c *MQTTContext) ReplyDesc() string {
	return c.req.ReplyTopic()
}

func (c *MQTTContext) Method() string {
	return c.req.Method
}

func (c *MQTTContext) Ctx() context.Context {
	return c.ctx
}

// Bind decodes the request params into request and validates it.
func (c *MQTTContext) Bind(request interface{}) error {
	if err := json.Unmarshal(c.req.Params, request); err != nil {
		return err
	}
	return c.validator.Struct(request)
}

// Reply publishes res on the reply topic.
func (c *MQTTContext) Reply(res *calculator.Response) bool {
	if res.Error != nil {
		_ = c.service.reply(c.req.MakeErrResponse(res.Status, res.Error))
		return true
	}

	ok, err := c.req.MakeOKResponse(res.Result)
	if err != nil {
		_ = c.service.reply(c.req.MakeErrResponse(calculator.StatusServerError, err))
		return true
	}
	_ = c.service.reply(ok)
	return true
}
