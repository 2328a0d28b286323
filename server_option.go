package calculator

import "time"

type serverOptions struct {
	logResponse     bool
	name            string
	workerNum       int
	limiterDuration time.Duration
	limiterCount    int
	limiterReject   bool
	handlerTimeout  time.Duration
}

// ServerOption is a functional option for configuring the server.
type ServerOption func(o *serverOptions)

// WithServerName sets the name reported in metrics labels.
func WithServerName(name string) ServerOption {
	return func(o *serverOptions) {
		o.name = name
	}
}

// WithLogResponse enables an info log line for every reply.
func WithLogResponse(logResponse bool) ServerOption {
	return func(o *serverOptions) {
		o.logResponse = logResponse
	}
}

// WithLimiter lets one request through every d, with bursts of up to count.
// Default values are 1 millisecond and 100 requests.
func WithLimiter(d time.Duration, count int) ServerOption {
	return func(o *serverOptions) {
		o.limiterDuration = d
		o.limiterCount = count
	}
}

// WithLimiterReject rejects requests with StatusTooManyRequests when the limiter is exhausted. This is default behavior.
func WithLimiterReject() ServerOption {
	return func(o *serverOptions) {
		o.limiterReject = true
	}
}

// WithLimiterWait makes requests wait for the limiter until their context is done.
func WithLimiterWait() ServerOption {
	return func(o *serverOptions) {
		o.limiterReject = false
	}
}

// WithWorkerNum sets the size of the worker pool.
func WithWorkerNum(count int) ServerOption {
	return func(o *serverOptions) {
		o.workerNum = count
	}
}

// WithHandlerTimeout sets the timeout applied to handlers registered without one.
func WithHandlerTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.handlerTimeout = d
	}
}
