// Package driver runs the batch demo and the interactive prompt against a
// calculator.Calculator.
package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"go.uber.org/zap"
)

// Case is one call of the batch demo.
type Case struct {
	A, B float64
	Op   calculator.Operation
}

// BatchCases exercises every operation once plus a division by zero.
var BatchCases = []Case{
	{A: 10.5, B: 5.2, Op: calculator.OpAdd},
	{A: 15.8, B: 3.3, Op: calculator.OpSubtract},
	{A: 7.5, B: 4.0, Op: calculator.OpMultiply},
	{A: 20.0, B: 4.0, Op: calculator.OpDivide},
	{A: 10.0, B: 0.0, Op: calculator.OpDivide},
}

const (
	quitCommand = "quit"

	promptOperation = "Enter operation (or 'quit'): "
	promptFirst     = "Enter first number: "
	promptSecond    = "Enter second number: "

	msgInvalidOperation = "Invalid operation. Use: add, subtract, multiply, divide, quit"
	msgInvalidNumbers   = "Please enter valid numbers"
)

// FormatError renders a failed call with its status class,
// e.g. "invalid argument: division by zero".
func FormatError(err error) string {
	var se *calculator.StatusError
	if errors.As(err, &se) {
		return calculator.StatusText(se.Status) + ": " + err.Error()
	}
	return err.Error()
}

// RunBatch runs cases in order. A failed call is reported and the run goes on.
func RunBatch(ctx context.Context, calc calculator.Calculator, cases []Case, w io.Writer) error {
	log := zap.S().With("module", "calc.driver")

	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return err
		}

		req := &calculator.CalculationRequest{A: c.A, B: c.B}
		res, err := c.Op.Call(ctx, calc, req)
		if err != nil {
			log.Debugf("Call %s failed: %v", c.Op, err)
			fmt.Fprintf(w, "RPC failed for %s: %s\n", c.Op.Noun(), FormatError(err))
			continue
		}

		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(c.Op.Noun()))
		fmt.Fprintf(w, "Request: a=%v, b=%v\n", c.A, c.B)
		fmt.Fprintf(w, "Response: %s\n", res.Message)
		fmt.Fprintf(w, "Result: %v\n", res.Result)
	}
	return nil
}

// RunInteractive prompts for operations and operands on r until "quit" or
// the end of input. Unknown operations and operands that are not numbers
// are reported locally without calling calc.
func RunInteractive(ctx context.Context, calc calculator.Calculator, r io.Reader, w io.Writer) error {
	log := zap.S().With("module", "calc.driver")
	scanner := bufio.NewScanner(r)

	readLine := func(prompt string) (string, bool) {
		fmt.Fprint(w, prompt)
		if !scanner.Scan() {
			return "", false
		}
		return strings.TrimSpace(scanner.Text()), true
	}
	readNumber := func(prompt string) (float64, bool, error) {
		line, ok := readLine(prompt)
		if !ok {
			return 0, false, nil
		}
		v, err := strconv.ParseFloat(line, 64)
		return v, true, err
	}

	fmt.Fprintln(w, "\n=== Interactive Calculator Mode ===")
	fmt.Fprintln(w, "Commands: add, subtract, multiply, divide, quit")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(w)
		line, ok := readLine(promptOperation)
		if !ok {
			break
		}
		if strings.EqualFold(line, quitCommand) {
			return nil
		}

		op, err := calculator.ParseCommand(line)
		if err != nil {
			fmt.Fprintln(w, msgInvalidOperation)
			continue
		}

		a, ok, err := readNumber(promptFirst)
		if !ok {
			break
		}
		if err != nil {
			fmt.Fprintln(w, msgInvalidNumbers)
			continue
		}
		b, ok, err := readNumber(promptSecond)
		if !ok {
			break
		}
		if err != nil {
			fmt.Fprintln(w, msgInvalidNumbers)
			continue
		}

		res, err := op.Call(ctx, calc, &calculator.CalculationRequest{A: a, B: b})
		if err != nil {
			log.Debugf("Call %s failed: %v", op, err)
			fmt.Fprintf(w, "RPC failed: %s\n", FormatError(err))
			continue
		}
		fmt.Fprintf(w, "Result: %s\n", res.Message)
	}

	// End of input ends the session like quit.
	fmt.Fprintln(w)
	return scanner.Err()
}

type timeoutCalculator struct {
	calc    calculator.Calculator
	timeout time.Duration
}

// WithTimeout bounds every call made through calc by timeout.
// A zero timeout returns calc unchanged.
func WithTimeout(calc calculator.Calculator, timeout time.Duration) calculator.Calculator {
	if timeout <= 0 {
		return calc
	}
	return &timeoutCalculator{calc: calc, timeout: timeout}
}

func (t *timeoutCalculator) call(ctx context.Context, op calculator.Operation, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return op.Call(ctx, t.calc, req)
}

func (t *timeoutCalculator) Add(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return t.call(ctx, calculator.OpAdd, req)
}

func (t *timeoutCalculator) Subtract(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return t.call(ctx, calculator.OpSubtract, req)
}

func (t *timeoutCalculator) Multiply(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return t.call(ctx, calculator.OpMultiply, req)
}

func (t *timeoutCalculator) Divide(ctx context.Context, req *calculator.CalculationRequest) (*calculator.CalculationResponse, error) {
	return t.call(ctx, calculator.OpDivide, req)
}
