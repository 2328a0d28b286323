package grpcpb

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/arith"
	"github.com/xizhibei/go-calculator-rpc/compressor"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const bufSize = 1024 * 1024

type GRPCTestSuite struct {
	suite.Suite

	lis    *bufconn.Listener
	server *Server
	dials  *atomic.Int32
}

func TestGRPCTestSuite(t *testing.T) {
	suite.Run(t, new(GRPCTestSuite))
}

func (suite *GRPCTestSuite) SetupSuite() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(log)
}

func (suite *GRPCTestSuite) SetupTest() {
	suite.dials = atomic.NewInt32(0)
	suite.lis = bufconn.Listen(bufSize)
	suite.server = NewServer(nil,
		calculator.WithServerName("grpc-test"),
		calculator.WithWorkerNum(2),
	)
	suite.server.RegisterCalculator(arith.New(), time.Second)

	go func() {
		_ = suite.server.Serve(suite.lis)
	}()
}

func (suite *GRPCTestSuite) TearDownTest() {
	_ = suite.server.Close()
}

func (suite *GRPCTestSuite) dial(opts ...ClientOption) *Client {
	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		suite.dials.Inc()
		return suite.lis.DialContext(ctx)
	}
	opts = append(opts, WithDialOptions(grpc.WithContextDialer(dialer)))

	client, err := Dial("passthrough:///bufnet", opts...)
	suite.Require().NoError(err)
	return client
}

func (suite *GRPCTestSuite) TestOperations() {
	client := suite.dial()
	defer client.Close()

	ctx := context.Background()
	req := &calculator.CalculationRequest{A: 10.5, B: 5.2}

	res, err := client.Add(ctx, req)
	suite.Require().NoError(err)
	suite.InDelta(15.7, res.Result, 1e-9)
	suite.Equal("addition", res.Operation)
	suite.Equal("10.50 + 5.20 = 15.70", res.Message)

	res, err = client.Subtract(ctx, &calculator.CalculationRequest{A: 15.8, B: 3.3})
	suite.Require().NoError(err)
	suite.InDelta(12.5, res.Result, 1e-9)

	res, err = client.Multiply(ctx, &calculator.CalculationRequest{A: 7.5, B: 4})
	suite.Require().NoError(err)
	suite.Equal(30.0, res.Result)

	res, err = client.Divide(ctx, &calculator.CalculationRequest{A: 20, B: 4})
	suite.Require().NoError(err)
	suite.Equal(5.0, res.Result)
	suite.Equal("division", res.Operation)
}

func (suite *GRPCTestSuite) TestDivisionByZero() {
	client := suite.dial()
	defer client.Close()

	res, err := client.Divide(context.Background(), &calculator.CalculationRequest{A: 10, B: 0})
	suite.Nil(res)
	suite.Require().Error(err)
	suite.True(errors.Is(err, calculator.ErrDivisionByZero))
	suite.Equal(calculator.StatusClientError, calculator.StatusOf(err))

	// The raw status code on the wire.
	out := newResponseMessage()
	err = client.conn.Invoke(context.Background(), FullMethod(calculator.OpDivide),
		encodeRequest(&calculator.CalculationRequest{A: 1, B: 0}), out)
	st, ok := status.FromError(err)
	suite.Require().True(ok)
	suite.Equal(codes.InvalidArgument, st.Code())
	suite.Equal("division by zero", st.Message())
}

func (suite *GRPCTestSuite) TestSingleConnection() {
	client := suite.dial()
	defer client.Close()

	for _, op := range calculator.Operations() {
		for i := 0; i < 3; i++ {
			_, err := op.Call(context.Background(), client, &calculator.CalculationRequest{A: 8, B: 2})
			suite.Require().NoError(err)
		}
	}
	suite.Equal(int32(1), suite.dials.Load())
}

func (suite *GRPCTestSuite) TestCompression() {
	for _, name := range []string{"identity", "gzip", "deflate", "br"} {
		suite.Run(name, func() {
			encoding, err := compressor.ParseContentEncoding(name)
			suite.Require().NoError(err)

			client := suite.dial(WithCompression(encoding))
			defer client.Close()

			res, err := client.Multiply(context.Background(), &calculator.CalculationRequest{A: 2.5, B: 4})
			suite.Require().NoError(err)
			suite.Equal(10.0, res.Result)
			suite.Equal("2.50 * 4.00 = 10.00", res.Message)
		})
	}
}

func (suite *GRPCTestSuite) TestUnknownMethod() {
	client := suite.dial()
	defer client.Close()

	out := newResponseMessage()
	err := client.conn.Invoke(context.Background(), "/"+ServiceName+"/Modulo",
		encodeRequest(&calculator.CalculationRequest{A: 1, B: 2}), out)
	suite.Equal(codes.Unimplemented, status.Code(err))
}

func (suite *GRPCTestSuite) TestUnregisteredOperation() {
	lis := bufconn.Listen(bufSize)
	server := NewServer(nil, calculator.WithServerName("empty"))
	go func() {
		_ = server.Serve(lis)
	}()
	defer server.Close()

	client, err := Dial("passthrough:///bufnet", WithDialOptions(grpc.WithContextDialer(
		func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		},
	)))
	suite.Require().NoError(err)
	defer client.Close()

	_, err = client.Add(context.Background(), &calculator.CalculationRequest{A: 1, B: 2})
	suite.Require().Error(err)
	suite.Equal(calculator.StatusNotFound, calculator.StatusOf(err))
	suite.Contains(err.Error(), "unhandled method: Add")
}

func (suite *GRPCTestSuite) TestTracePropagation() {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tel := telemetry.NewTestTelemetry(suite.T())
	defer tel.Shutdown(context.Background())

	suite.server.SetTelemetry(tel)

	client := suite.dial(WithTelemetry(tel))
	defer client.Close()

	_, err := client.Add(context.Background(), &calculator.CalculationRequest{A: 1, B: 2})
	suite.Require().NoError(err)

	var clientSpan, serverSpan string
	var parent string
	for _, span := range tel.Spans() {
		switch span.Name() {
		case "Calculator.Client /calculator.Calculator/Add":
			clientSpan = span.SpanContext().SpanID().String()
		case "Calculator.Server /calculator.Calculator/Add":
			serverSpan = span.SpanContext().SpanID().String()
			parent = span.Parent().SpanID().String()
		}
	}
	suite.NotEmpty(clientSpan)
	suite.NotEmpty(serverSpan)
	suite.Equal(clientSpan, parent)
}

func TestWireFormat(t *testing.T) {
	b, err := proto.Marshal(encodeRequest(&calculator.CalculationRequest{A: 10.5, B: -2}))
	require.NoError(t, err)

	fields := map[protowire.Number]float64{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		require.Greater(t, n, 0)
		require.Equal(t, protowire.Fixed64Type, typ)
		b = b[n:]

		v, n := protowire.ConsumeFixed64(b)
		require.Greater(t, n, 0)
		b = b[n:]
		fields[num] = math.Float64frombits(v)
	}
	assert.Equal(t, map[protowire.Number]float64{1: 10.5, 2: -2}, fields)

	var raw []byte
	raw = protowire.AppendTag(raw, 1, protowire.Fixed64Type)
	raw = protowire.AppendFixed64(raw, math.Float64bits(2.5))
	raw = protowire.AppendTag(raw, 2, protowire.BytesType)
	raw = protowire.AppendString(raw, "division")
	raw = protowire.AppendTag(raw, 3, protowire.BytesType)
	raw = protowire.AppendString(raw, "10.00 / 4.00 = 2.50")

	m := newResponseMessage()
	require.NoError(t, proto.Unmarshal(raw, m))
	assert.Equal(t, &calculator.CalculationResponse{
		Result:    2.5,
		Operation: "division",
		Message:   "10.00 / 4.00 = 2.50",
	}, decodeResponse(m))
}

func TestStatusMapping(t *testing.T) {
	for _, s := range []int{
		calculator.StatusOK,
		calculator.StatusClientError,
		calculator.StatusNotFound,
		calculator.StatusGatewayTimeout,
		calculator.StatusTooManyRequests,
		calculator.StatusServerError,
		calculator.StatusUnavailable,
	} {
		assert.Equal(t, s, StatusFromCode(CodeFromStatus(s)), "status %d", s)
	}
	assert.Equal(t, codes.DeadlineExceeded, CodeFromStatus(calculator.StatusRequestTimeout))

	err := fromRPCError(context.Canceled)
	assert.True(t, errors.Is(err, context.Canceled))

	err = fromRPCError(status.Error(codes.ResourceExhausted, calculator.ErrTooFrequently.Error()))
	assert.True(t, errors.Is(err, calculator.ErrTooFrequently))
	assert.Equal(t, calculator.StatusTooManyRequests, calculator.StatusOf(err))
}

func TestServiceDescriptor(t *testing.T) {
	sd := FileDescriptor().Services().ByName("Calculator")
	require.NotNil(t, sd)
	assert.Equal(t, ServiceName, string(sd.FullName()))
	for _, op := range calculator.Operations() {
		md := sd.Methods().ByName(protoreflect.Name(op.Method()))
		require.NotNil(t, md, op.Method())
		assert.Equal(t, "calculator.CalculationRequest", string(md.Input().FullName()))
		assert.Equal(t, "calculator.CalculationResponse", string(md.Output().FullName()))
	}
}
