package model

import (
	"sync"
	"sync/atomic"
	"time"
)

// RequestContext is the per-request state threaded through the pipeline:
// everything the audit record needs, snapshotted up front because late
// completion callbacks may run after the transport context is recycled.
// It is private to one request and discarded at request exit.
type RequestContext struct {
	TraceID     string
	StartedAt   time.Time
	ApiID       string
	Method      string
	Path        string
	QueryString string
	Headers     map[string]string
	UserAgent   string
	ContentType string
	ClientIP    string

	// Filled in as pipeline stages resolve.
	RequestBody string
	Route       *ApiRoute
	UserID      string
	StatusCode  int

	// Streaming is set once a response body stream is installed; from
	// that point the stream completion owns the audit fire.
	Streaming bool

	logged    atomic.Bool
	respMu    sync.Mutex
	respBody  []byte
	respLimit int
}

// NewRequestContext creates the context at request entry. respLimit caps
// the response accumulation buffer.
func NewRequestContext(traceID string, respLimit int) *RequestContext {
	return &RequestContext{
		TraceID:   traceID,
		StartedAt: time.Now(),
		respLimit: respLimit,
	}
}

// FireOnce is the completion gate: it reports true for exactly one caller
// over the context's lifetime, no matter how many completion paths race.
func (rc *RequestContext) FireOnce() bool {
	return rc.logged.CompareAndSwap(false, true)
}

// AppendResponse copies a forwarded chunk into the accumulation buffer,
// up to the configured limit. The forwarded stream itself is never
// touched.
func (rc *RequestContext) AppendResponse(chunk []byte) {
	rc.respMu.Lock()
	defer rc.respMu.Unlock()
	if rc.respLimit > 0 && len(rc.respBody) >= rc.respLimit {
		return
	}
	remain := len(chunk)
	if rc.respLimit > 0 {
		if room := rc.respLimit - len(rc.respBody); remain > room {
			remain = room
		}
	}
	rc.respBody = append(rc.respBody, chunk[:remain]...)
}

// ResponseBody returns the accumulated (possibly capped) response text.
func (rc *RequestContext) ResponseBody() string {
	rc.respMu.Lock()
	defer rc.respMu.Unlock()
	return string(rc.respBody)
}
