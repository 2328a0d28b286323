package calculator

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownOperation is returned when an operation name can not be parsed.
var ErrUnknownOperation = errors.New("[CALC] unknown operation")

// Operation is one of the four calculator operations.
type Operation int

const (
	OpAdd Operation = iota + 1
	OpSubtract
	OpMultiply
	OpDivide
)

type operationInfo struct {
	method  string
	command string
	noun    string
	symbol  string
	call    func(c Calculator) func(context.Context, *CalculationRequest) (*CalculationResponse, error)
}

var operations = map[Operation]operationInfo{
	OpAdd: {
		method: "Add", command: "add", noun: "addition", symbol: "+",
		call: func(c Calculator) func(context.Context, *CalculationRequest) (*CalculationResponse, error) {
			return c.Add
		},
	},
	OpSubtract: {
		method: "Subtract", command: "subtract", noun: "subtraction", symbol: "-",
		call: func(c Calculator) func(context.Context, *CalculationRequest) (*CalculationResponse, error) {
			return c.Subtract
		},
	},
	OpMultiply: {
		method: "Multiply", command: "multiply", noun: "multiplication", symbol: "*",
		call: func(c Calculator) func(context.Context, *CalculationRequest) (*CalculationResponse, error) {
			return c.Multiply
		},
	},
	OpDivide: {
		method: "Divide", command: "divide", noun: "division", symbol: "/",
		call: func(c Calculator) func(context.Context, *CalculationRequest) (*CalculationResponse, error) {
			return c.Divide
		},
	},
}

// Operations returns every operation in declaration order.
func Operations() []Operation {
	return []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide}
}

// ParseOperation resolves a command name ("add") or a noun ("addition"),
// ignoring case and surrounding spaces.
func ParseOperation(name string) (Operation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, op := range Operations() {
		info := operations[op]
		if name == info.command || name == info.noun {
			return op, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownOperation, "%q", name)
}

// ParseCommand resolves a command name ("add") only, ignoring case and
// surrounding spaces.
func ParseCommand(name string) (Operation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, op := range Operations() {
		if name == operations[op].command {
			return op, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownOperation, "%q", name)
}

// OperationFromMethod resolves an RPC method name such as "Add".
func OperationFromMethod(method string) (Operation, bool) {
	for _, op := range Operations() {
		if operations[op].method == method {
			return op, true
		}
	}
	return 0, false
}

// Valid reports whether op is one of the declared operations.
func (op Operation) Valid() bool {
	_, ok := operations[op]
	return ok
}

// Method returns the RPC method name, e.g. "Add".
func (op Operation) Method() string { return operations[op].method }

// Command returns the short command name, e.g. "add".
func (op Operation) Command() string { return operations[op].command }

// Noun returns the operation noun, e.g. "addition".
func (op Operation) Noun() string { return operations[op].noun }

// Symbol returns the infix operator symbol, e.g. "+".
func (op Operation) Symbol() string { return operations[op].symbol }

func (op Operation) String() string {
	if !op.Valid() {
		return "unknown"
	}
	return op.Command()
}

// Call invokes the method of c that matches op.
func (op Operation) Call(ctx context.Context, c Calculator, req *CalculationRequest) (*CalculationResponse, error) {
	info, ok := operations[op]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownOperation, "%d", int(op))
	}
	return info.call(c)(ctx, req)
}
