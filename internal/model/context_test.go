package model

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFireOnceExactlyOneWinner(t *testing.T) {
	rc := NewRequestContext("trace-1", 0)

	const attempts = 100
	var wins int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if rc.FireOnce() {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(1), wins)
	require.False(t, rc.FireOnce())
}

func TestAppendResponseRespectsLimit(t *testing.T) {
	rc := NewRequestContext("trace-2", 10)
	rc.AppendResponse([]byte("12345678"))
	rc.AppendResponse([]byte("87654321"))
	require.Equal(t, "1234567887", rc.ResponseBody())

	rc.AppendResponse([]byte("ignored"))
	require.Len(t, rc.ResponseBody(), 10)
}

func TestAppendResponseUnlimited(t *testing.T) {
	rc := NewRequestContext("trace-3", 0)
	rc.AppendResponse([]byte("hello "))
	rc.AppendResponse([]byte("world"))
	require.Equal(t, "hello world", rc.ResponseBody())
}

func TestAppendResponseCopiesChunk(t *testing.T) {
	rc := NewRequestContext("trace-4", 0)
	chunk := []byte("abc")
	rc.AppendResponse(chunk)
	chunk[0] = 'x'
	require.Equal(t, "abc", rc.ResponseBody())
}
