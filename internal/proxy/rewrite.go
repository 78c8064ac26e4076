package proxy

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/tuncerburak97/bekci/internal/model"
)

// Headers that must not travel to the downstream target: hop-by-hop
// headers plus anything that contradicts the replayed body.
var strippedRequestHeaders = []string{
	"Transfer-Encoding",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Upgrade",
	"Content-Length",
}

// buildUpstreamRequest rewrites the inbound request against the resolved
// route: new target URI, the captured body replayed from memory, exact
// Content-Length, Transfer-Encoding dropped. A *bytes.Reader body keeps
// the request replayable.
func buildUpstreamRequest(rc *model.RequestContext, body []byte) (*http.Request, error) {
	req, err := http.NewRequest(rc.Method, rc.Route.Path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, v := range rc.Headers {
		req.Header.Set(k, v)
	}
	for _, h := range strippedRequestHeaders {
		req.Header.Del(h)
	}

	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	req.Header.Set("X-Request-Id", rc.TraceID)

	return req, nil
}
