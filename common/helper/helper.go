package helper

import (
	"github.com/often-ai/gateway/common/random"
)

// RequestIdKey doubles as the response header name carrying the request id.
const RequestIdKey = "X-Often-Request-Id"

// GenRequestID returns a sortable request identifier: a wall-clock prefix
// plus random suffix so ids from one process sort roughly by arrival time.
func GenRequestID() string {
	return GetTimeString() + random.GetRandomNumberString(8)
}

// MessageWithRequestId appends the request id so clients can quote it when
// reporting a failure.
func MessageWithRequestId(message string, id string) string {
	if id == "" {
		return message
	}
	return message + " (request id: " + id + ")"
}
