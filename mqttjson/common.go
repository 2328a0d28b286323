package mqttjson

import "encoding/json"

// Request is the JSON envelope published on a request topic.
type Request struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Params   json.RawMessage   `json:"params" validate:"required"`
}

// Response is the JSON envelope published on the matching response topic.
// Data holds the result on status 200 and {"message": "..."} otherwise.
type Response struct {
	ID       uint64            `json:"id"`
	Method   string            `json:"method"`
	Status   int               `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Data     json.RawMessage   `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}
