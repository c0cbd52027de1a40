package chunkstream

import (
	"io"
	"sync"
)

// Stream bridges a callback-driven chunk producer to a pull-based byte
// stream. The socket layer pushes chunks (with an is-last flag) and may
// fire an abort; a single consumer pulls chunks or reads bytes.
//
// An abort is an unsignaled truncation: the consumer observes a clean
// end-of-stream, never an error. Chunks pushed after the last flag or
// after an abort are dropped.
type Stream struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  [][]byte
	done   bool
	rest   []byte // partially consumed chunk carried across Read calls
	closed bool
}

// New returns an empty stream ready to accept pushes.
func New() *Stream {
	s := &Stream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Push appends chunk in arrival order. When last is true the stream
// completes after this chunk. The chunk is copied; the caller may reuse
// its buffer. Pushes after completion are dropped.
func (s *Stream) Push(chunk []byte, last bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if len(chunk) > 0 {
		c := make([]byte, len(chunk))
		copy(c, chunk)
		s.queue = append(s.queue, c)
	}
	if last {
		s.done = true
	}
	s.cond.Broadcast()
}

// Abort completes the stream immediately, discarding queued chunks.
// Consumers see end-of-stream, not an error.
func (s *Stream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.queue = nil
	s.done = true
	s.cond.Broadcast()
}

// Next blocks until a chunk is available and returns it, or io.EOF once
// the stream has completed and the queue is drained.
func (s *Stream) Next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return nil, io.EOF
		}
		if len(s.queue) > 0 {
			c := s.queue[0]
			s.queue = s.queue[1:]
			return c, nil
		}
		if s.done {
			return nil, io.EOF
		}
		s.cond.Wait()
	}
}

// Read implements io.Reader over the chunk queue.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.rest) == 0 {
		c, err := s.Next()
		if err != nil {
			return 0, err
		}
		s.rest = c
	}
	n := copy(p, s.rest)
	s.rest = s.rest[n:]
	return n, nil
}

// Close discards the stream from the consumer side. Subsequent pushes
// are dropped and pending or future pulls return io.EOF.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.done = true
	s.queue = nil
	s.rest = nil
	s.cond.Broadcast()
	return nil
}
