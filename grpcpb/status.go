package grpcpb

import (
	"context"

	"github.com/cockroachdb/errors"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CodeFromStatus maps a calculator status to a gRPC code.
func CodeFromStatus(s int) codes.Code {
	switch s {
	case calculator.StatusOK:
		return codes.OK
	case calculator.StatusClientError:
		return codes.InvalidArgument
	case calculator.StatusNotFound:
		return codes.Unimplemented
	case calculator.StatusRequestTimeout, calculator.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case calculator.StatusTooManyRequests:
		return codes.ResourceExhausted
	case calculator.StatusUnavailable:
		return codes.Unavailable
	}
	return codes.Internal
}

// StatusFromCode maps a gRPC code to a calculator status.
func StatusFromCode(c codes.Code) int {
	switch c {
	case codes.OK:
		return calculator.StatusOK
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition:
		return calculator.StatusClientError
	case codes.Unimplemented, codes.NotFound:
		return calculator.StatusNotFound
	case codes.DeadlineExceeded:
		return calculator.StatusGatewayTimeout
	case codes.ResourceExhausted:
		return calculator.StatusTooManyRequests
	case codes.Unavailable, codes.Canceled:
		return calculator.StatusUnavailable
	}
	return calculator.StatusServerError
}

// toRPCError converts a failed reply into a gRPC status error.
func toRPCError(res *calculator.Response) error {
	return status.Error(CodeFromStatus(res.Status), res.Error.Error())
}

// fromRPCError converts an error returned by a gRPC call into a
// calculator.StatusError, keeping context errors as they are.
func fromRPCError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	return calculator.ErrorFromStatus(StatusFromCode(st.Code()), st.Message())
}
