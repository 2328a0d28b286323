package calculator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// ID represents an identifier with a numeric value and a string value.
type ID struct {
	Num uint64
	Str string
}

// String returns Str when set, the decimal form of Num otherwise.
func (id *ID) String() string {
	if id.Str != "" {
		return id.Str
	}
	return strconv.FormatUint(id.Num, 10)
}

// Response represents a reply to a call.
// Result holds a *CalculationResponse (or any other handler result) on success.
type Response struct {
	Result interface{}
	Error  error
	Status int
}

// TransportContext is what a transport provides for a single incoming call.
type TransportContext interface {
	// ID returns the identifier of the call.
	ID() *ID

	// Method returns the name of the called method, e.g. "Add".
	Method() string

	// Ctx returns the context of the call.
	Ctx() context.Context

	// ReplyDesc describes where the reply goes, used for logging.
	ReplyDesc() string

	// Bind decodes the call parameters into request.
	Bind(request interface{}) error

	// Reply delivers res to the caller.
	Reply(res *Response) bool
}

// Context is the per call context seen by handlers.
type Context interface {
	TransportContext

	// ReplyOK replies with a result.
	// It returns false if a reply was already sent.
	ReplyOK(data interface{}) bool

	// ReplyError replies with a status and an error.
	// It returns false if a reply was already sent.
	ReplyError(status int, err error) bool

	// GetResponse returns the reply, nil before one was sent.
	GetResponse() *Response

	// PrometheusLabels returns the labels describing the call.
	PrometheusLabels() prometheus.Labels
}

// RequestContext wraps a TransportContext and guarantees a single reply.
type RequestContext struct {
	transport TransportContext
	ctx       context.Context

	res     *Response
	resMu   sync.Mutex
	replied atomic.Bool
}

// NewRequestContext creates the handler context of a call.
// ctx overrides the transport context when not nil.
func NewRequestContext(ctx context.Context, transport TransportContext) *RequestContext {
	if ctx == nil {
		ctx = transport.Ctx()
	}
	return &RequestContext{
		transport: transport,
		ctx:       ctx,
	}
}

func (c *RequestContext) ID() *ID {
	return c.transport.ID()
}

func (c *RequestContext) Method() string {
	return c.transport.Method()
}

func (c *RequestContext) Ctx() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *RequestContext) ReplyDesc() string {
	return c.transport.ReplyDesc()
}

func (c *RequestContext) Bind(request interface{}) error {
	return c.transport.Bind(request)
}

// Reply sends res through the transport, only the first reply is delivered.
func (c *RequestContext) Reply(res *Response) bool {
	if !c.replied.CompareAndSwap(false, true) {
		return false
	}

	c.resMu.Lock()
	c.res = res
	c.resMu.Unlock()

	c.transport.Reply(res)
	return true
}

func (c *RequestContext) ReplyOK(data interface{}) bool {
	return c.Reply(&Response{
		Status: StatusOK,
		Result: data,
	})
}

func (c *RequestContext) ReplyError(status int, err error) bool {
	return c.Reply(&Response{
		Status: status,
		Error:  err,
	})
}

func (c *RequestContext) GetResponse() *Response {
	c.resMu.Lock()
	defer c.resMu.Unlock()
	return c.res
}

func (c *RequestContext) PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{
		"method": c.Method(),
	}
}

// Handler represents a method handler.
// Timeout bounds the time the method may spend on a worker.
type Handler struct {
	Method  func(c Context)
	Timeout time.Duration
}
