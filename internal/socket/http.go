package socket

import (
	"net/http"
	"net/url"
	"sync"
)

const readChunkSize = 32 * 1024

// HTTPRequest adapts a net/http request to the callback-driven Request
// contract. Registering OnData starts a goroutine that reads the body in
// chunks and replays them through the callback; the request context feeds
// OnAbort.
type HTTPRequest struct {
	r *http.Request
}

// NewHTTPRequest wraps r. The wrapper takes over r.Body once OnData is
// registered.
func NewHTTPRequest(r *http.Request) *HTTPRequest {
	return &HTTPRequest{r: r}
}

func (hr *HTTPRequest) Method() string { return hr.r.Method }

func (hr *HTTPRequest) URL() *url.URL { return hr.r.URL }

func (hr *HTTPRequest) VisitHeaders(fn func(key, value string)) {
	for k, vs := range hr.r.Header {
		for _, v := range vs {
			fn(k, v)
		}
	}
}

func (hr *HTTPRequest) OnData(fn func(chunk []byte, last bool)) {
	body := hr.r.Body
	if body == nil {
		fn(nil, true)
		return
	}
	go func() {
		defer body.Close()
		buf := make([]byte, readChunkSize)
		for {
			n, err := body.Read(buf)
			if err != nil {
				// Any read error ends the stream, EOF or not. A cut body
				// must still deliver the last flag or the consumer would
				// block on a stream that can never finish.
				fn(buf[:n], true)
				return
			}
			fn(buf[:n], false)
		}
	}()
}

func (hr *HTTPRequest) OnAbort(fn func()) {
	ctx := hr.r.Context()
	go func() {
		<-ctx.Done()
		fn()
	}()
}

// HTTPSink adapts an http.ResponseWriter to the ResponseSink contract.
// net/http wants headers set before the status is written, so the status
// code is held back until the first chunk or End.
type HTTPSink struct {
	w http.ResponseWriter

	mu     sync.Mutex
	status int
	wrote  bool
	ended  bool
}

func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w, status: http.StatusOK}
}

func (s *HTTPSink) WriteStatus(code int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// net/http derives the reason phrase from the code; text is dropped.
	s.status = code
	return nil
}

func (s *HTTPSink) WriteHeader(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wrote {
		return nil
	}
	s.w.Header().Add(key, value)
	return nil
}

func (s *HTTPSink) WriteChunk(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.flushStatusLocked()
	if _, err := s.w.Write(p); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (s *HTTPSink) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil
	}
	s.flushStatusLocked()
	s.ended = true
	return nil
}

func (s *HTTPSink) Send(p []byte) error { return ErrNoRawSend }

func (s *HTTPSink) flushStatusLocked() {
	if s.wrote {
		return
	}
	s.wrote = true
	s.w.WriteHeader(s.status)
}
