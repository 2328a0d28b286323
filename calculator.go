package calculator

import "context"

//go:generate mockgen -source=calculator.go -destination=mock/mock_calculator.go

// CalculationRequest holds the two operands of a calculation.
type CalculationRequest struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// CalculationResponse is the outcome of a calculation.
// Operation is the noun of the executed operation, e.g. "addition".
// Message is a human readable summary such as "10.50 + 5.20 = 15.70".
type CalculationResponse struct {
	Result    float64 `json:"result"`
	Operation string  `json:"operation"`
	Message   string  `json:"message"`
}

// Calculator is the four-operation calculator contract.
// Both the server side implementation and the transport clients satisfy it.
type Calculator interface {
	Add(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error)
	Subtract(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error)
	Multiply(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error)
	// Divide fails with ErrDivisionByZero when B is zero.
	Divide(ctx context.Context, req *CalculationRequest) (*CalculationResponse, error)
}
