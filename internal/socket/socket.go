// Package socket defines the narrow contracts this bridge consumes from
// the underlying connection layer: request introspection, chunked body
// delivery via callbacks, abort notification, and a response sink.
package socket

import (
	"errors"
	"net/url"
)

// Request is the socket layer's view of one inbound exchange.
//
// VisitHeaders is only valid during adapter construction; implementations
// may invalidate the iterator once control returns to the event loop, so
// callers must copy eagerly. OnData and OnAbort register callbacks driven
// by the socket layer; each may be called at most once per Request.
type Request interface {
	Method() string
	URL() *url.URL
	VisitHeaders(fn func(key, value string))

	// OnData registers the body chunk callback. The callback receives
	// each raw chunk in arrival order and last=true on the final one.
	OnData(fn func(chunk []byte, last bool))

	// OnAbort registers a callback fired at most once if the transport
	// closes before the exchange completes.
	OnAbort(fn func())
}

// ResponseSink receives one computed response. WriteStatus must be called
// first, then any headers, then body chunks, then End exactly once. After
// the transport aborts, the sink discards trailing writes itself; callers
// are not expected to track abort state.
type ResponseSink interface {
	WriteStatus(code int, text string) error
	WriteHeader(key, value string) error
	WriteChunk(p []byte) error
	End() error

	// Send transmits one raw protocol frame on a persistent connection.
	// Sinks backing one-shot exchanges return ErrNoRawSend.
	Send(p []byte) error
}

// ErrNoRawSend is returned by sinks that do not carry a persistent
// bidirectional protocol.
var ErrNoRawSend = errors.New("socket: raw send not supported on this sink")
