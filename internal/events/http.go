package events

import "time"

// HTTPStart is emitted when a one-shot exchange is received.
// Context carries the request id.
type HTTPStart struct {
	Method string
	Path   string
}

// HTTPFinish is emitted after the exchange has been written.
type HTTPFinish struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}
