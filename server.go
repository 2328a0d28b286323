package calculator

import (
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xizhibei/go-calculator-rpc/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
)

// Server dispatches calls coming from any transport to registered handlers.
type Server struct {
	log        *zap.SugaredLogger
	handlerMap map[string]*Handler
	handlerMu  sync.RWMutex

	cbList       []OnAfterResponseCallback
	afterResPool sync.Pool

	options    *serverOptions
	workerPool *tunny.Pool
	limiter    *rate.Limiter
	telemetry  telemetry.Telemetry
}

// NewServer creates a Server, unset options fall back to defaults.
func NewServer(options ...ServerOption) *Server {
	o := serverOptions{
		name:            uuid.New().String(),
		logResponse:     false,
		workerNum:       runtime.NumCPU(),
		limiterDuration: time.Millisecond,
		limiterCount:    100,
		limiterReject:   true,
		handlerTimeout:  10 * time.Second,
	}

	for _, option := range options {
		option(&o)
	}

	tel, _ := telemetry.NewNoop()

	return &Server{
		log:        zap.S().With("module", "calc.server"),
		handlerMap: make(map[string]*Handler),
		options:    &o,
		afterResPool: sync.Pool{
			New: func() interface{} {
				return new(AfterResponseEvent)
			},
		},
		workerPool: tunny.NewCallback(o.workerNum),
		limiter:    rate.NewLimiter(rate.Every(o.limiterDuration), o.limiterCount),
		telemetry:  tel,
	}
}

// Name returns the server name used in metrics labels.
func (s *Server) Name() string {
	return s.options.name
}

// SetTelemetry sets the telemetry receiving request durations and errors.
func (s *Server) SetTelemetry(tel telemetry.Telemetry) {
	s.telemetry = tel
}

// Register registers a handler for method, overriding any previous one.
func (s *Server) Register(method string, hdl *Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()

	if _, ok := s.handlerMap[method]; ok {
		s.log.Warnf("Method %s already registered, will override", method)
	}

	s.handlerMap[method] = hdl
	s.log.Debugf("Method %s registered", method)
}

// RegisterCalculator registers the four operations of calc under their RPC
// method names.
func (s *Server) RegisterCalculator(calc Calculator, timeout time.Duration) {
	for _, op := range Operations() {
		op := op
		s.Register(op.Method(), &Handler{
			Timeout: timeout,
			Method: func(c Context) {
				var req CalculationRequest
				if err := c.Bind(&req); err != nil {
					c.ReplyError(StatusClientError, errors.Wrap(err, "invalid request"))
					return
				}

				res, err := op.Call(c.Ctx(), calc, &req)
				if err != nil {
					c.ReplyError(StatusOf(err), err)
					return
				}
				c.ReplyOK(res)
			},
		})
	}
}

func (s *Server) handler(method string) (*Handler, bool) {
	s.handlerMu.RLock()
	defer s.handlerMu.RUnlock()
	hdl, ok := s.handlerMap[method]
	return hdl, ok
}

func (s *Server) allow(c Context) bool {
	if s.options.limiterReject {
		if !s.limiter.Allow() {
			c.ReplyError(StatusTooManyRequests, ErrTooFrequently)
			return false
		}
		return true
	}

	if err := s.limiter.Wait(c.Ctx()); err != nil {
		c.ReplyError(StatusRequestTimeout, ErrTimeout)
		return false
	}
	return true
}

// Call runs the handler of c.Method() on the worker pool and makes sure the
// caller always gets exactly one reply.
func (s *Server) Call(c Context) {
	start := time.Now()
	defer func() {
		duration := time.Since(start)

		evt := s.afterResPool.Get().(*AfterResponseEvent)
		evt.Labels = c.PrometheusLabels()
		evt.Duration = duration
		evt.Res = c.GetResponse()

		status := 0
		var resErr error
		if evt.Res != nil {
			status = evt.Res.Status
			resErr = evt.Res.Error
		}

		if s.options.logResponse {
			s.log.Infof("Response to %s [%d] (%v)", c.ReplyDesc(), status, duration.Round(time.Microsecond))
		}

		s.telemetry.RecordRequest(c.Ctx(), duration, c.Method(), strconv.Itoa(status), resErr)
		s.emitAfterResponse(evt)
	}()

	if !s.allow(c) {
		return
	}

	hdl, ok := s.handler(c.Method())
	if !ok {
		c.ReplyError(StatusNotFound, errors.Newf("[CALC] unhandled method: %s", c.Method()))
		return
	}

	timeout := hdl.Timeout
	if timeout <= 0 {
		timeout = s.options.handlerTimeout
	}

	_, err := s.workerPool.ProcessTimed(func() {
		defer func() {
			if i := recover(); i != nil {
				err := errors.Newf("panic in method %s %v", c.Method(), i)
				s.log.Desugar().WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)).Sugar().Error(err)
				c.ReplyError(StatusServerError, err)
			}
		}()

		hdl.Method(c)

		// Succeeds only when the method returned without replying.
		if c.ReplyError(StatusServerError, ErrNoReply) {
			s.log.Warnf("Method %s no reply", c.Method())
		}
	}, timeout)

	if err != nil {
		if errors.Is(err, tunny.ErrJobTimedOut) {
			c.ReplyError(StatusGatewayTimeout, ErrTimeout)
			return
		}
		c.ReplyError(StatusServerError, err)
	}
}

// Close stops the worker pool.
func (s *Server) Close() {
	s.workerPool.Close()
}

// AfterResponseEvent describes a finished call.
type AfterResponseEvent struct {
	Labels   prometheus.Labels
	Duration time.Duration
	Res      *Response
}

// OnAfterResponseCallback is called after every reply.
type OnAfterResponseCallback func(e *AfterResponseEvent)

// OnAfterResponse registers a callback executed after each reply.
// Callbacks must not keep e, it is reused.
func (s *Server) OnAfterResponse(cb OnAfterResponseCallback) {
	s.cbList = append(s.cbList, cb)
}

func (s *Server) emitAfterResponse(e *AfterResponseEvent) {
	for _, cb := range s.cbList {
		cb(e)
	}
	e.Labels = nil
	e.Res = nil
	s.afterResPool.Put(e)
}

// NewMetrics creates the response time histogram and error counter expected
// by RegisterMetrics.
func NewMetrics(namespace string) (*prometheus.HistogramVec, *prometheus.CounterVec) {
	responseTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "response_time_seconds",
		Help:      "Calculator call response time.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"name", "method", "status"})

	errorCount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Failed calculator calls.",
	}, []string{"name", "method", "status", "message"})

	return responseTime, errorCount
}

// RegisterMetrics observes the duration of every call in responseTime and
// counts failed calls in errorCount. Either may be nil.
func (s *Server) RegisterMetrics(responseTime *prometheus.HistogramVec, errorCount *prometheus.CounterVec) {
	s.OnAfterResponse(func(e *AfterResponseEvent) {
		status := "0"
		if e.Res != nil {
			status = strconv.Itoa(e.Res.Status)
		}

		labels := prometheus.Labels{
			"name":   s.options.name,
			"method": e.Labels["method"],
			"status": status,
		}

		if responseTime != nil {
			responseTime.
				With(labels).
				Observe(e.Duration.Seconds())
		}

		if e.Res != nil && e.Res.Error != nil && errorCount != nil {
			labels["message"] = e.Res.Error.Error()
			errorCount.
				With(labels).
				Inc()
		}
	})
}
