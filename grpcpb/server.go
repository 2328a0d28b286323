package grpcpb

import (
	"context"
	"net"

	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.opentelemetry.io/otel"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	// Registers the deflate and brotli compressors.
	_ "github.com/xizhibei/go-calculator-rpc/compressor"
)

// calculatorHandler is the handler type of the calculator service descriptor.
type calculatorHandler interface {
	handle(ctx context.Context, op calculator.Operation, in *dynamicpb.Message) (*dynamicpb.Message, error)
}

// Server serves calculator.proto over gRPC on top of a calculator.Server.
type Server struct {
	*calculator.Server
	grpcServer *grpc.Server
	telemetry  telemetry.Telemetry
	log        *zap.SugaredLogger
}

// NewServer creates a gRPC calculator server. Handlers are registered on the
// embedded calculator.Server, e.g. with RegisterCalculator.
func NewServer(grpcOptions []grpc.ServerOption, options ...calculator.ServerOption) *Server {
	tel, _ := telemetry.NewNoop()

	s := &Server{
		Server:    calculator.NewServer(options...),
		telemetry: tel,
		log:       zap.S().With("module", "calc.grpcserver"),
	}

	grpcOptions = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.unaryInterceptor)}, grpcOptions...)
	s.grpcServer = grpc.NewServer(grpcOptions...)
	s.grpcServer.RegisterService(serviceDesc(), s)

	return s
}

func serviceDesc() *grpc.ServiceDesc {
	methods := make([]grpc.MethodDesc, 0, len(calculator.Operations()))
	for _, op := range calculator.Operations() {
		methods = append(methods, grpc.MethodDesc{
			MethodName: op.Method(),
			Handler:    methodHandler(op),
		})
	}

	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*calculatorHandler)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    protoFileName,
	}
}

func methodHandler(op calculator.Operation) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := newRequestMessage()
		if err := dec(in); err != nil {
			return nil, err
		}

		h := srv.(calculatorHandler)
		if interceptor == nil {
			return h.handle(ctx, op, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(op),
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return h.handle(ctx, op, req.(*dynamicpb.Message))
		})
	}
}

func (s *Server) handle(ctx context.Context, op calculator.Operation, in *dynamicpb.Message) (*dynamicpb.Message, error) {
	c := calculator.NewRequestContext(ctx, NewGRPCContext(ctx, op, in))
	s.Server.Call(c)

	res := c.GetResponse()
	if res == nil {
		return nil, status.Error(codes.Internal, calculator.ErrNoReply.Error())
	}
	if res.Error != nil {
		return nil, toRPCError(res)
	}

	out, ok := res.Result.(*calculator.CalculationResponse)
	if !ok {
		return nil, status.Errorf(codes.Internal, "unexpected result %T", res.Result)
	}
	return encodeResponse(out), nil
}

func (s *Server) unaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))
	}

	ctx, span := s.telemetry.StartSpan(ctx, "Calculator.Server "+info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	res, err := handler(ctx, req)
	if err != nil {
		s.log.Debugf("Call %s failed: %v", info.FullMethod, err)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return res, err
}

// SetTelemetry sets the telemetry for server spans and request metrics.
func (s *Server) SetTelemetry(tel telemetry.Telemetry) {
	s.telemetry = tel
	s.Server.SetTelemetry(tel)
}

// GRPCServer returns the underlying gRPC server.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// Serve accepts connections on lis until Close is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Infof("Calculator server listening at %v", lis.Addr())
	return s.grpcServer.Serve(lis)
}

// Close stops accepting calls, waits for pending ones and stops the workers.
func (s *Server) Close() error {
	s.grpcServer.GracefulStop()
	s.Server.Close()
	return nil
}
