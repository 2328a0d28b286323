// Package arith is the server side implementation of the calculator contract.
package arith

import (
	"context"
	"fmt"

	calculator "github.com/xizhibei/go-calculator-rpc"
	"go.uber.org/zap"
)

// Service performs the arithmetic of the four operations.
type Service struct {
	log *zap.SugaredLogger
}

var _ calculator.Calculator = (*Service)(nil)

// New creates a Service.
func New() *Service {
	return &Service{
		log: zap.S().With("module", "calc.arith"),
	}
}

func (s *Service) respond(op calculator.Operation, req *calculator.CalculationRequest, result float64) *calculator.CalculationResponse {
	s.log.Debugf("%s operation: %v %s %v = %v", op.Method(), req.A, op.Symbol(), req.B, result)
	return &calculator.CalculationResponse{
		Result:    result,
		Operation: op.Noun(),
		Message:   FormatMessage(op, req.A, req.B, result),
	}
}

// FormatMessage renders the summary of a calculation, e.g. "10.50 + 5.20 = 15.70".
func FormatMessage(op calculator.Operation, a, b, result float64) string {
	return fmt.Sprintf("%.2f %s %.2f = %.2f", a, op.Symbol(), b, result)
}

func (s *Service) Add(_ context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return s.respond(calculator.OpAdd, req, req.A+req.B), nil
}

func (s *Service) Subtract(_ context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return s.respond(calculator.OpSubtract, req, req.A-req.B), nil
}

func (s *Service) Multiply(_ context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return s.respond(calculator.OpMultiply, req, req.A*req.B), nil
}

// Divide rejects a zero divisor with calculator.ErrDivisionByZero.
func (s *Service) Divide(_ context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	if req.B == 0 {
		s.log.Infof("Division by zero attempted: %v / %v", req.A, req.B)
		return nil, calculator.NewStatusError(calculator.StatusClientError, calculator.ErrDivisionByZero)
	}
	return s.respond(calculator.OpDivide, req, req.A/req.B), nil
}
