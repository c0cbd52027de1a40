// Package httpbridge converts between the socket layer's callback-driven
// exchange and a fetch-style request/response pair: one consumable request
// object with a lazily-readable body, and a computed response drained back
// onto the sink as chunked writes plus a single termination.
package httpbridge

import (
	"net/http"
	"net/url"
	"strings"

	chunkstream "github.com/gqlgate/gqlgate/internal/chunkstream"
	socket "github.com/gqlgate/gqlgate/internal/socket"
)

// Request is the adapted form of one inbound socket exchange. Header keys
// are lower-cased; duplicates resolve last-write-wins. Body is nil for the
// bodyless verbs and otherwise a single-consumer stream that must be
// drained or closed exactly once.
type Request struct {
	Method string
	URL    *url.URL
	Header map[string]string
	Body   *chunkstream.Stream
}

// AdaptRequest builds a Request from the socket-level exchange. Headers
// are copied eagerly because the socket header iterator is only valid
// during construction. GET and HEAD never receive a body stream.
func AdaptRequest(sr socket.Request) *Request {
	req := &Request{
		Method: sr.Method(),
		URL:    sr.URL(),
		Header: map[string]string{},
	}
	sr.VisitHeaders(func(k, v string) {
		req.Header[strings.ToLower(k)] = v
	})
	switch req.Method {
	case http.MethodGet, http.MethodHead:
	default:
		body := chunkstream.New()
		sr.OnData(body.Push)
		sr.OnAbort(body.Abort)
		req.Body = body
	}
	return req
}

// Header is one response header pair. Order is preserved on the wire.
type Header struct {
	Key   string
	Value string
}

// Response is a computed response ready to be written to a sink. Body and
// Chunks are mutually exclusive; when both are nil the response has no
// body. Chunks is a single-pass sequence written in production order.
type Response struct {
	Status     int
	StatusText string
	Header     []Header
	Body       []byte
	Chunks     <-chan []byte
}

// NewResponse returns a bodiless response with the standard reason phrase
// for code.
func NewResponse(code int) *Response {
	return &Response{Status: code, StatusText: http.StatusText(code)}
}

// AddHeader appends a header pair, preserving write order.
func (r *Response) AddHeader(key, value string) {
	r.Header = append(r.Header, Header{Key: key, Value: value})
}

// WriteResponse drains res onto sink: status line first, then each header
// once in order, then the body, then exactly one End. The content-length
// header is never forwarded; the socket layer computes its own framing and
// a stale length corrupts streamed bodies. Write errors after the status
// line are absorbed: the sink discards trailing writes once the transport
// is gone, and the already-sent status cannot be corrected.
func WriteResponse(sink socket.ResponseSink, res *Response) {
	_ = sink.WriteStatus(res.Status, res.StatusText)
	for _, h := range res.Header {
		if strings.EqualFold(h.Key, "Content-Length") {
			continue
		}
		_ = sink.WriteHeader(h.Key, h.Value)
	}

	ended := false
	end := func() {
		if !ended {
			ended = true
			_ = sink.End()
		}
	}

	switch {
	case res.Chunks != nil:
		failed := false
		for chunk := range res.Chunks {
			if failed {
				// Keep draining so the producer can finish and release
				// its resources.
				continue
			}
			if err := sink.WriteChunk(chunk); err != nil {
				failed = true
			}
		}
		end()
	case res.Body != nil:
		_ = sink.WriteChunk(res.Body)
		end()
	default:
		end()
	}
}
