package proxy

import (
	"io"

	"github.com/tuncerburak97/bekci/internal/model"
)

// teeBody forwards a downstream response body to the client while copying
// every chunk into the request context's accumulation buffer. Forwarded
// bytes are untouched: same content, same order, chunk granularity.
//
// Completion fires through onDone exactly once, on whichever event comes
// first: EOF, a read error, or Close (the server closes the stream when
// the client disconnects mid-transfer).
type teeBody struct {
	src    io.ReadCloser
	rc     *model.RequestContext
	onDone func(err error)
	done   bool
}

func newTeeBody(src io.ReadCloser, rc *model.RequestContext, onDone func(err error)) *teeBody {
	return &teeBody{src: src, rc: rc, onDone: onDone}
}

func (t *teeBody) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.rc.AppendResponse(p[:n])
	}
	if err != nil {
		if err == io.EOF {
			t.finish(nil)
		} else {
			t.finish(err)
		}
	}
	return n, err
}

func (t *teeBody) Close() error {
	err := t.src.Close()
	t.finish(nil)
	return err
}

// finish is single-goroutine (fasthttp drives Read/Close sequentially);
// the flag just stops Close from re-firing after EOF. Cross-path races
// are the completion gate's job, not ours.
func (t *teeBody) finish(err error) {
	if t.done {
		return
	}
	t.done = true
	t.onDone(err)
}
