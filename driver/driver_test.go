package driver_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/arith"
	"github.com/xizhibei/go-calculator-rpc/driver"
	mock_calculator "github.com/xizhibei/go-calculator-rpc/mock"
	"go.uber.org/mock/gomock"
)

func TestRunBatch(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, driver.RunBatch(context.Background(), arith.New(), driver.BatchCases, &out))

	s := out.String()
	assert.Contains(t, s, "\nADDITION:\nRequest: a=10.5, b=5.2\nResponse: 10.50 + 5.20 = 15.70\nResult: 15.7")
	assert.Contains(t, s, "\nSUBTRACTION:\n")
	assert.Contains(t, s, "\nMULTIPLICATION:\nRequest: a=7.5, b=4\nResponse: 7.50 * 4.00 = 30.00\nResult: 30\n")
	assert.Contains(t, s, "\nDIVISION:\nRequest: a=20, b=4\nResponse: 20.00 / 4.00 = 5.00\nResult: 5\n")
	assert.True(t, strings.HasSuffix(s, "RPC failed for division: invalid argument: division by zero\n"))
}

func TestRunBatchContinuesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	gomock.InOrder(
		calc.EXPECT().Add(gomock.Any(), gomock.Any()).
			Return(nil, calculator.NewStatusError(calculator.StatusUnavailable, errors.New("connection refused"))),
		calc.EXPECT().Divide(gomock.Any(), &calculator.CalculationRequest{A: 1, B: 1}).
			Return(&calculator.CalculationResponse{Result: 1, Message: "1.00 / 1.00 = 1.00"}, nil),
	)

	var out bytes.Buffer
	err := driver.RunBatch(context.Background(), calc, []driver.Case{
		{A: 1, B: 2, Op: calculator.OpAdd},
		{A: 1, B: 1, Op: calculator.OpDivide},
	}, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "RPC failed for addition: unavailable: connection refused\n")
	assert.Contains(t, out.String(), "Response: 1.00 / 1.00 = 1.00\n")
}

func TestRunBatchCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := driver.RunBatch(ctx, calc, driver.BatchCases, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func runInteractive(t *testing.T, calc calculator.Calculator, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, driver.RunInteractive(context.Background(), calc, strings.NewReader(input), &out))
	return out.String()
}

func TestInteractiveInvalidOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	out := runInteractive(t, calc, "bogus\naddition\nquit\n")
	assert.Equal(t, 2, strings.Count(out, "Invalid operation. Use: add, subtract, multiply, divide, quit\n"))
	assert.Equal(t, 3, strings.Count(out, "Enter operation (or 'quit'): "))
	assert.NotContains(t, out, "Enter first number: ")
}

func TestInteractiveInvalidNumber(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	out := runInteractive(t, calc, "add\nx\nadd\n1\ny\nquit\n")
	assert.Equal(t, 2, strings.Count(out, "Please enter valid numbers\n"))
	assert.Equal(t, 1, strings.Count(out, "Enter second number: "))
}

func TestInteractiveQuit(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	out := runInteractive(t, calc, "QUIT\nadd\n1\n2\n")
	assert.Equal(t, 1, strings.Count(out, "Enter operation (or 'quit'): "))
	assert.True(t, strings.HasSuffix(out, "Enter operation (or 'quit'): "))
}

func TestInteractiveCalls(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	calc.EXPECT().Multiply(gomock.Any(), &calculator.CalculationRequest{A: 2.5, B: 4}).
		Return(&calculator.CalculationResponse{Result: 10, Message: "2.50 * 4.00 = 10.00"}, nil)
	calc.EXPECT().Divide(gomock.Any(), &calculator.CalculationRequest{A: 1, B: 0}).
		Return(nil, calculator.NewStatusError(calculator.StatusClientError, calculator.ErrDivisionByZero))

	out := runInteractive(t, calc, " Multiply \n2.5\n4\ndivide\n1\n0\nquit\n")
	assert.Contains(t, out, "Result: 2.50 * 4.00 = 10.00\n")
	assert.Contains(t, out, "RPC failed: invalid argument: division by zero\n")
}

func TestInteractiveEOF(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	out := runInteractive(t, calc, "add\n1\n")
	assert.True(t, strings.HasSuffix(out, "Enter second number: \n"))
}

func TestFormatError(t *testing.T) {
	assert.Equal(t, "deadline exceeded: [CALC] timeout",
		driver.FormatError(calculator.NewStatusError(calculator.StatusGatewayTimeout, calculator.ErrTimeout)))
	assert.Equal(t, "boom", driver.FormatError(errors.New("boom")))
	assert.Equal(t, "invalid argument: call: division by zero",
		driver.FormatError(errors.Wrap(calculator.NewStatusError(400, calculator.ErrDivisionByZero), "call")))
}

func TestWithTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	calc := mock_calculator.NewMockCalculator(ctrl)

	assert.Same(t, calc, driver.WithTimeout(calc, 0))

	calc.EXPECT().Subtract(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
			return &calculator.CalculationResponse{Result: req.A - req.B}, nil
		})

	res, err := driver.WithTimeout(calc, time.Minute).Subtract(context.Background(), &calculator.CalculationRequest{A: 3, B: 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Result)
}
