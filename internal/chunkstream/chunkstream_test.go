package chunkstream

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunksArriveInOrderThenEOF(t *testing.T) {
	s := New()
	s.Push([]byte("ab"), false)
	s.Push([]byte("cd"), false)
	s.Push([]byte("ef"), true)

	for _, want := range []string{"ab", "cd", "ef"} {
		c, err := s.Next()
		require.NoError(t, err)
		require.Equal(t, want, string(c))
	}
	_, err := s.Next()
	require.Equal(t, io.EOF, err)
	// Completion is stable, not one-shot-then-panic.
	_, err = s.Next()
	require.Equal(t, io.EOF, err)
}

func TestReadDrainsAcrossChunkBoundaries(t *testing.T) {
	s := New()
	s.Push([]byte("hello "), false)
	s.Push([]byte("world"), true)

	b, err := io.ReadAll(s)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(b))
}

func TestPushCopiesCallerBuffer(t *testing.T) {
	s := New()
	buf := []byte("aa")
	s.Push(buf, false)
	buf[0] = 'z'
	s.Push(buf, true)

	c, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "aa", string(c))
}

func TestConsumerBlocksUntilProducerPushes(t *testing.T) {
	s := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Push([]byte("late"), true)
	}()
	c, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "late", string(c))
}

func TestAbortCompletesWithoutError(t *testing.T) {
	s := New()
	s.Push([]byte("partial"), false)
	s.Abort()
	s.Push([]byte("after"), false)

	_, err := s.Next()
	require.Equal(t, io.EOF, err)
}

func TestAbortUnblocksPendingRead(t *testing.T) {
	s := New()
	done := make(chan error, 1)
	go func() {
		_, err := s.Next()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	s.Abort()
	select {
	case err := <-done:
		require.Equal(t, io.EOF, err)
	case <-time.After(time.Second):
		t.Fatal("read did not observe abort")
	}
}

func TestAbortAfterCleanCompletionIsIgnored(t *testing.T) {
	s := New()
	s.Push([]byte("body"), true)
	s.Abort()

	c, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "body", string(c))
}

func TestPushAfterLastFlagDropped(t *testing.T) {
	s := New()
	s.Push([]byte("end"), true)
	s.Push([]byte("extra"), false)

	c, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "end", string(c))
	_, err = s.Next()
	require.Equal(t, io.EOF, err)
}

func TestCloseDiscards(t *testing.T) {
	s := New()
	s.Push([]byte("queued"), false)
	require.NoError(t, s.Close())
	_, err := s.Next()
	require.Equal(t, io.EOF, err)
	s.Push([]byte("later"), true)
	_, err = s.Next()
	require.Equal(t, io.EOF, err)
}
