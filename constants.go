package calculator

const (
	StatusOK              = 200
	StatusClientError     = 400
	StatusNotFound        = 404
	StatusRequestTimeout  = 408
	StatusTooManyRequests = 429
	StatusServerError     = 500
	StatusUnavailable     = 503
	StatusGatewayTimeout  = 504

	DefaultQoS = 0

	// DefaultServerAddress is used by clients when no address is configured.
	DefaultServerAddress = "localhost:50051"
)
