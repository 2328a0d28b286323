package calculator_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	calculator "github.com/xizhibei/go-calculator-rpc"
	"github.com/xizhibei/go-calculator-rpc/arith"
	"go.uber.org/zap"
)

type fakeTransport struct {
	method  string
	req     *calculator.CalculationRequest
	bindErr error
	replies chan *calculator.Response
}

func newFakeTransport(method string, req *calculator.CalculationRequest) *fakeTransport {
	return &fakeTransport{
		method:  method,
		req:     req,
		replies: make(chan *calculator.Response, 2),
	}
}

func (f *fakeTransport) ID() *calculator.ID   { return &calculator.ID{Num: 1} }
func (f *fakeTransport) Method() string       { return f.method }
func (f *fakeTransport) Ctx() context.Context { return context.Background() }
func (f *fakeTransport) ReplyDesc() string    { return "fake/" + f.method }
func (f *fakeTransport) Reply(res *calculator.Response) bool {
	f.replies <- res
	return true
}

func (f *fakeTransport) Bind(request interface{}) error {
	if f.bindErr != nil {
		return f.bindErr
	}
	*request.(*calculator.CalculationRequest) = *f.req
	return nil
}

type ServerTestSuite struct {
	suite.Suite
	server *calculator.Server
}

func (suite *ServerTestSuite) SetupSuite() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(log)
}

func (suite *ServerTestSuite) SetupTest() {
	suite.server = calculator.NewServer(
		calculator.WithServerName("test"),
		calculator.WithWorkerNum(2),
		calculator.WithLogResponse(true),
	)
	suite.server.RegisterCalculator(arith.New(), time.Second)
}

func (suite *ServerTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *ServerTestSuite) call(t *fakeTransport) *calculator.Response {
	c := calculator.NewRequestContext(nil, t)
	suite.server.Call(c)

	select {
	case res := <-t.replies:
		suite.Len(t.replies, 0, "only one reply expected")
		return res
	case <-time.After(time.Second):
		suite.FailNow("no reply")
	}
	return nil
}

func (suite *ServerTestSuite) TestCalculatorOperations() {
	req := &calculator.CalculationRequest{A: 10.5, B: 5.2}

	res := suite.call(newFakeTransport("Add", req))
	suite.Equal(calculator.StatusOK, res.Status)
	suite.NoError(res.Error)
	out := res.Result.(*calculator.CalculationResponse)
	suite.InDelta(15.7, out.Result, 1e-9)
	suite.Equal("10.50 + 5.20 = 15.70", out.Message)

	res = suite.call(newFakeTransport("Multiply", req))
	suite.Equal(calculator.StatusOK, res.Status)
	suite.InDelta(54.6, res.Result.(*calculator.CalculationResponse).Result, 1e-9)
}

func (suite *ServerTestSuite) TestDivideByZero() {
	res := suite.call(newFakeTransport("Divide", &calculator.CalculationRequest{A: 10, B: 0}))
	suite.Equal(calculator.StatusClientError, res.Status)
	suite.True(errors.Is(res.Error, calculator.ErrDivisionByZero))
	suite.Nil(res.Result)
}

func (suite *ServerTestSuite) TestBindError() {
	t := newFakeTransport("Add", nil)
	t.bindErr = errors.New("bad payload")

	res := suite.call(t)
	suite.Equal(calculator.StatusClientError, res.Status)
	suite.Contains(res.Error.Error(), "bad payload")
}

func (suite *ServerTestSuite) TestUnhandledMethod() {
	res := suite.call(newFakeTransport("Modulo", &calculator.CalculationRequest{}))
	suite.Equal(calculator.StatusNotFound, res.Status)
	suite.Contains(res.Error.Error(), "Modulo")
}

func (suite *ServerTestSuite) TestNoReply() {
	suite.server.Register("Silent", &calculator.Handler{
		Timeout: time.Second,
		Method:  func(c calculator.Context) {},
	})

	res := suite.call(newFakeTransport("Silent", nil))
	suite.Equal(calculator.StatusServerError, res.Status)
	suite.True(errors.Is(res.Error, calculator.ErrNoReply))
}

func (suite *ServerTestSuite) TestPanic() {
	suite.server.Register("Panic", &calculator.Handler{
		Timeout: time.Second,
		Method: func(c calculator.Context) {
			panic("boom")
		},
	})

	res := suite.call(newFakeTransport("Panic", nil))
	suite.Equal(calculator.StatusServerError, res.Status)
	suite.Contains(res.Error.Error(), "boom")
}

func (suite *ServerTestSuite) TestTimeout() {
	release := make(chan struct{})
	defer close(release)

	suite.server.Register("Slow", &calculator.Handler{
		Timeout: 20 * time.Millisecond,
		Method: func(c calculator.Context) {
			<-release
			c.ReplyOK(nil)
		},
	})

	res := suite.call(newFakeTransport("Slow", nil))
	suite.Equal(calculator.StatusGatewayTimeout, res.Status)
	suite.True(errors.Is(res.Error, calculator.ErrTimeout))
}

func (suite *ServerTestSuite) TestLimiterReject() {
	server := calculator.NewServer(
		calculator.WithLimiter(time.Hour, 1),
		calculator.WithLimiterReject(),
	)
	defer server.Close()
	server.RegisterCalculator(arith.New(), time.Second)

	first := newFakeTransport("Add", &calculator.CalculationRequest{A: 1, B: 1})
	server.Call(calculator.NewRequestContext(nil, first))
	suite.Equal(calculator.StatusOK, (<-first.replies).Status)

	second := newFakeTransport("Add", &calculator.CalculationRequest{A: 1, B: 1})
	server.Call(calculator.NewRequestContext(nil, second))
	res := <-second.replies
	suite.Equal(calculator.StatusTooManyRequests, res.Status)
	suite.True(errors.Is(res.Error, calculator.ErrTooFrequently))
}

func (suite *ServerTestSuite) TestLimiterWaitDeadline() {
	server := calculator.NewServer(
		calculator.WithLimiter(time.Hour, 1),
		calculator.WithLimiterWait(),
	)
	defer server.Close()
	server.RegisterCalculator(arith.New(), time.Second)

	first := newFakeTransport("Add", &calculator.CalculationRequest{A: 1, B: 1})
	server.Call(calculator.NewRequestContext(nil, first))
	suite.Equal(calculator.StatusOK, (<-first.replies).Status)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	second := newFakeTransport("Add", &calculator.CalculationRequest{A: 1, B: 1})
	server.Call(calculator.NewRequestContext(ctx, second))
	suite.Equal(calculator.StatusRequestTimeout, (<-second.replies).Status)
}

func (suite *ServerTestSuite) TestMetrics() {
	responseTime, errorCount := calculator.NewMetrics("calc_test")
	suite.server.RegisterMetrics(responseTime, errorCount)

	var events int
	suite.server.OnAfterResponse(func(e *calculator.AfterResponseEvent) {
		events++
		suite.Equal(prometheus.Labels{"method": e.Labels["method"]}, e.Labels)
	})

	suite.call(newFakeTransport("Add", &calculator.CalculationRequest{A: 1, B: 2}))
	suite.call(newFakeTransport("Divide", &calculator.CalculationRequest{A: 1, B: 0}))

	suite.Equal(2, events)
	suite.Equal(2, testutil.CollectAndCount(responseTime))
	suite.Equal(1, testutil.CollectAndCount(errorCount))
	suite.Equal(float64(1), testutil.ToFloat64(errorCount.With(prometheus.Labels{
		"name":    "test",
		"method":  "Divide",
		"status":  "400",
		"message": "division by zero",
	})))
}

func TestServer(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
