package grpcpb

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrCannotBind is returned by Bind for unsupported target types.
var ErrCannotBind = errors.New("[CALC] can not bind request")

// GRPCContext represents the transport side of a unary gRPC call.
type GRPCContext struct {
	id  string
	op  calculator.Operation
	in  *dynamicpb.Message
	ctx context.Context
}

// NewGRPCContext creates a GRPCContext for op with the decoded request in.
func NewGRPCContext(ctx context.Context, op calculator.Operation, in *dynamicpb.Message) *GRPCContext {
	return &GRPCContext{
		id:  uuid.NewString(),
		op:  op,
		in:  in,
		ctx: ctx,
	}
}

// ID returns the ID of the call.
func (c *GRPCContext) ID() *calculator.ID {
	return &calculator.ID{Str: c.id}
}

// Method returns the RPC method name, e.g. "Divide".
func (c *GRPCContext) Method() string {
	return c.op.Method()
}

// Ctx returns the context of the call.
func (c *GRPCContext) Ctx() context.Context {
	return c.ctx
}

// ReplyDesc returns the peer address and the full method.
func (c *GRPCContext) ReplyDesc() string {
	addr := "unknown"
	if p, ok := peer.FromContext(c.ctx); ok && p.Addr != nil {
		addr = p.Addr.String()
	}
	return addr + " " + FullMethod(c.op)
}

// Bind copies the request into a *calculator.CalculationRequest or into any
// protobuf message with a compatible layout.
func (c *GRPCContext) Bind(request interface{}) error {
	switch r := request.(type) {
	case *calculator.CalculationRequest:
		*r = *decodeRequest(c.in)
		return nil
	case proto.Message:
		b, err := proto.Marshal(c.in)
		if err != nil {
			return err
		}
		return proto.Unmarshal(b, r)
	}
	return errors.Wrapf(ErrCannotBind, "%T", request)
}

// Reply is a no-op, the gRPC handler returns the stored response.
func (c *GRPCContext) Reply(res *calculator.Response) bool {
	return true
}

// metadataCarrier adapts gRPC metadata to an OpenTelemetry TextMapCarrier.
type metadataCarrier metadata.MD

func (m metadataCarrier) Get(key string) string {
	values := metadata.MD(m).Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (m metadataCarrier) Set(key, value string) {
	metadata.MD(m).Set(strings.ToLower(key), value)
}

func (m metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
