package grpcpb

import (
	"context"

	"github.com/cockroachdb/errors"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/compressor"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client is a calculator client over a single gRPC connection.
type Client struct {
	conn      *grpc.ClientConn
	callOpts  []grpc.CallOption
	telemetry telemetry.Telemetry
	log       *zap.SugaredLogger
}

type clientOptions struct {
	dialOptions []grpc.DialOption
	callOptions []grpc.CallOption
	telemetry   telemetry.Telemetry
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithCompression compresses requests with the given encoding.
func WithCompression(encoding compressor.ContentEncoding) ClientOption {
	return func(o *clientOptions) {
		if encoding.IsPlain() {
			return
		}
		o.callOptions = append(o.callOptions, grpc.UseCompressor(encoding.Name()))
	}
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(o *clientOptions) {
		o.dialOptions = append(o.dialOptions, opts...)
	}
}

// WithTelemetry sets the telemetry used for client spans.
func WithTelemetry(tel telemetry.Telemetry) ClientOption {
	return func(o *clientOptions) {
		o.telemetry = tel
	}
}

// Dial opens the connection to target. Calls made through the returned
// Client share this connection until Close.
func Dial(target string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		dialOptions: []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.telemetry == nil {
		tel, err := telemetry.NewNoop()
		if err != nil {
			return nil, err
		}
		o.telemetry = tel
	}

	conn, err := grpc.NewClient(target, o.dialOptions...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", target)
	}
	conn.Connect()

	return &Client{
		conn:      conn,
		callOpts:  o.callOptions,
		telemetry: o.telemetry,
		log:       zap.S().With("module", "calc.grpcclient"),
	}, nil
}

func (c *Client) call(ctx context.Context, op calculator.Operation, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	method := FullMethod(op)

	ctx, span := c.telemetry.StartSpan(ctx, "Calculator.Client "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	otel.GetTextMapPropagator().Inject(ctx, metadataCarrier(md))
	ctx = metadata.NewOutgoingContext(ctx, md)

	out := newResponseMessage()
	if err := c.conn.Invoke(ctx, method, encodeRequest(req), out, c.callOpts...); err != nil {
		c.log.Debugf("Call %s failed: %v", method, err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fromRPCError(err)
	}

	return decodeResponse(out), nil
}

// Add calls Calculator.Add.
func (c *Client) Add(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpAdd, req)
}

// Subtract calls Calculator.Subtract.
func (c *Client) Subtract(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpSubtract, req)
}

// Multiply calls Calculator.Multiply.
func (c *Client) Multiply(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpMultiply, req)
}

// Divide calls Calculator.Divide.
func (c *Client) Divide(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return c.call(ctx, calculator.OpDivide, req)
}

// Target returns the target the client was dialed with.
func (c *Client) Target() string {
	return c.conn.Target()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
