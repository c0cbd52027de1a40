package httpbridge

import (
	"io"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	socket "github.com/gqlgate/gqlgate/internal/socket"
	"github.com/stretchr/testify/require"
)

type fakeRequest struct {
	method  string
	rawURL  string
	headers [][2]string
	onData  func(chunk []byte, last bool)
	onAbort func()
}

func (f *fakeRequest) Method() string { return f.method }

func (f *fakeRequest) URL() *url.URL {
	u, _ := url.Parse(f.rawURL)
	return u
}

func (f *fakeRequest) VisitHeaders(fn func(key, value string)) {
	for _, h := range f.headers {
		fn(h[0], h[1])
	}
}

func (f *fakeRequest) OnData(fn func(chunk []byte, last bool)) { f.onData = fn }

func (f *fakeRequest) OnAbort(fn func()) { f.onAbort = fn }

type recordSink struct {
	status     int
	statusText string
	headers    [][2]string
	chunks     []string
	ends       int
	writeErr   error
}

func (s *recordSink) WriteStatus(code int, text string) error {
	s.status = code
	s.statusText = text
	return nil
}

func (s *recordSink) WriteHeader(key, value string) error {
	s.headers = append(s.headers, [2]string{key, value})
	return nil
}

func (s *recordSink) WriteChunk(p []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.chunks = append(s.chunks, string(p))
	return nil
}

func (s *recordSink) End() error {
	s.ends++
	return nil
}

func (s *recordSink) Send(p []byte) error { return socket.ErrNoRawSend }

func TestAdaptBodylessVerbsGetNoStream(t *testing.T) {
	for _, method := range []string{"GET", "HEAD"} {
		sr := &fakeRequest{method: method, rawURL: "/graphql?query={x}"}
		req := AdaptRequest(sr)
		require.Nil(t, req.Body, method)
		require.Nil(t, sr.onData, method)
	}
}

func TestAdaptPostStreamsBody(t *testing.T) {
	sr := &fakeRequest{method: "POST", rawURL: "/graphql"}
	req := AdaptRequest(sr)
	require.NotNil(t, req.Body)
	require.NotNil(t, sr.onData)

	sr.onData([]byte(`{"query":`), false)
	sr.onData([]byte(`"{ x }"}`), true)

	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Equal(t, `{"query":"{ x }"}`, string(b))
}

func TestAdaptHeadersCopiedEagerlyLowercased(t *testing.T) {
	sr := &fakeRequest{
		method: "POST",
		rawURL: "/graphql",
		headers: [][2]string{
			{"Content-Type", "application/json"},
			{"X-Trace", "first"},
			{"x-trace", "second"},
		},
	}
	req := AdaptRequest(sr)
	want := map[string]string{
		"content-type": "application/json",
		"x-trace":      "second",
	}
	if diff := cmp.Diff(want, req.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
}

func TestAdaptAbortEndsBodyCleanly(t *testing.T) {
	sr := &fakeRequest{method: "POST", rawURL: "/graphql"}
	req := AdaptRequest(sr)
	require.NotNil(t, sr.onAbort)

	sr.onData([]byte("partial"), false)
	sr.onAbort()
	sr.onData([]byte("late"), false)

	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Empty(t, b)
}

func TestWriteResponseBufferBody(t *testing.T) {
	sink := &recordSink{}
	res := NewResponse(200)
	res.AddHeader("Content-Type", "application/json")
	res.Body = []byte(`{"data":null}`)

	WriteResponse(sink, res)

	require.Equal(t, 200, sink.status)
	require.Equal(t, "OK", sink.statusText)
	require.Equal(t, []string{`{"data":null}`}, sink.chunks)
	require.Equal(t, 1, sink.ends)
}

func TestWriteResponseChunkedBody(t *testing.T) {
	ch := make(chan []byte, 3)
	ch <- []byte("one")
	ch <- []byte("two")
	ch <- []byte("three")
	close(ch)

	sink := &recordSink{}
	res := NewResponse(200)
	res.Chunks = ch

	WriteResponse(sink, res)

	require.Equal(t, []string{"one", "two", "three"}, sink.chunks)
	require.Equal(t, 1, sink.ends)
}

func TestWriteResponseNoBody(t *testing.T) {
	sink := &recordSink{}
	WriteResponse(sink, NewResponse(204))

	require.Equal(t, 204, sink.status)
	require.Empty(t, sink.chunks)
	require.Equal(t, 1, sink.ends)
}

func TestWriteResponseSuppressesContentLength(t *testing.T) {
	sink := &recordSink{}
	res := NewResponse(200)
	res.AddHeader("X-First", "1")
	res.AddHeader("Content-Length", "9999")
	res.AddHeader("content-length", "1")
	res.AddHeader("X-Last", "2")
	res.Body = []byte("body")

	WriteResponse(sink, res)

	want := [][2]string{{"X-First", "1"}, {"X-Last", "2"}}
	if diff := cmp.Diff(want, sink.headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteResponseChunkErrorStillEndsOnce(t *testing.T) {
	ch := make(chan []byte, 2)
	ch <- []byte("a")
	ch <- []byte("b")
	close(ch)

	sink := &recordSink{writeErr: io.ErrClosedPipe}
	res := NewResponse(200)
	res.Chunks = ch

	WriteResponse(sink, res)

	require.Empty(t, sink.chunks)
	require.Equal(t, 1, sink.ends)
}
