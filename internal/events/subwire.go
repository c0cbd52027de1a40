package events

import "time"

// ConnOpen is emitted when a persistent connection is accepted.
type ConnOpen struct {
	ConnID string
}

// ConnClose is emitted when a persistent connection ends; Operations is
// the number of operations still in flight at teardown.
type ConnClose struct {
	ConnID     string
	Operations int
	Duration   time.Duration
}

// OperationStart is emitted when a start-operation frame passes
// validation and begins executing or subscribing.
type OperationStart struct {
	ConnID        string
	OperationID   string
	OperationName string
	OperationType string
}

// OperationFinish is emitted when an operation reaches a terminal state.
type OperationFinish struct {
	ConnID      string
	OperationID string
	Errors      []error
	Duration    time.Duration
}
