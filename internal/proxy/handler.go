package proxy

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/bekci/internal/apierr"
	"github.com/tuncerburak97/bekci/internal/auth"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/masking"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/repository"
	"github.com/tuncerburak97/bekci/internal/service"
	"github.com/tuncerburak97/bekci/internal/worker"
)

const localsRequestContext = "bekci_request_context"

// Response headers never copied from downstream. Content-Length goes
// because the body is re-streamed chunked; the rest are hop-by-hop.
var strippedResponseHeaders = map[string]struct{}{
	"Content-Length":    {},
	"Transfer-Encoding": {},
	"Connection":        {},
	"Keep-Alive":        {},
	"Trailer":           {},
	"Upgrade":           {},
}

// ProxyHandler is the pipeline orchestrator: route resolution, auth,
// request rewrite, downstream invocation, response interception and the
// exactly-once audit fire, in that order.
type ProxyHandler struct {
	transport      http.RoundTripper
	logger         *zerolog.Logger
	metrics        *metrics.MetricsCollector
	routes         repository.LookupRepository
	authSvc        *auth.Service
	auditSvc       *service.AuditService
	pool           *worker.Pool
	trustedProxies int
}

func NewProxyHandler(
	cfg *config.Config,
	logger *zerolog.Logger,
	repo repository.LookupRepository,
	authSvc *auth.Service,
	auditSvc *service.AuditService,
	pool *worker.Pool,
	m *metrics.MetricsCollector,
) *ProxyHandler {
	transport := &http.Transport{
		MaxIdleConns:          cfg.Proxy.MaxIdleConns,
		IdleConnTimeout:       cfg.Proxy.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.Proxy.TLSTimeout,
		ResponseHeaderTimeout: cfg.Proxy.ResponseHeaderTimeout,
		ExpectContinueTimeout: cfg.Proxy.ExpectContinueTimeout,
		MaxConnsPerHost:       cfg.Proxy.MaxConnsPerHost,
	}

	return &ProxyHandler{
		transport:      transport,
		logger:         logger,
		metrics:        m,
		routes:         repo,
		authSvc:        authSvc,
		auditSvc:       auditSvc,
		pool:           pool,
		trustedProxies: cfg.Auth.TrustedProxies,
	}
}

// convertHeaders converts map[string][]string to map[string]string.
// Keys and values are copied: fiber hands out strings aliasing pooled
// fasthttp buffers, and these outlive the request.
func convertHeaders(headers map[string][]string) map[string]string {
	result := make(map[string]string)
	for k, v := range headers {
		if len(v) > 0 {
			result[utils.CopyString(k)] = utils.CopyString(v[0])
		}
	}
	return result
}

// snapshotContext builds the request context at entry. Everything the
// audit record needs is copied out now; completion callbacks must not
// touch the fiber context after the handler returns. Every string read
// off the fiber ctx goes through utils.CopyString, since the record can
// sit in the audit queue long after fasthttp recycles the buffers these
// strings would otherwise alias.
func snapshotContext(c *fiber.Ctx, trustedProxies int) *model.RequestContext {
	traceID := utils.CopyString(c.Get("X-Request-Id"))
	if traceID == "" {
		traceID = uuid.New().String()
	}

	rc := model.NewRequestContext(traceID, masking.MaxResponseLen)
	rc.Method = utils.CopyString(c.Method())
	rc.Path = utils.CopyString(c.Path())
	rc.ApiID = strings.TrimPrefix(rc.Path, "/")
	rc.QueryString = string(c.Request().URI().QueryString())
	rc.Headers = convertHeaders(c.GetReqHeaders())
	rc.UserAgent = utils.CopyString(c.Get("User-Agent"))
	rc.ContentType = utils.CopyString(c.Get("Content-Type"))
	rc.ClientIP = ResolveClientIP(rc.Headers, c.Context().RemoteAddr().String(), trustedProxies)
	return rc
}

func (h *ProxyHandler) Handle(c *fiber.Ctx) error {
	h.metrics.IncActiveRequests()
	defer h.metrics.DecActiveRequests()

	rc := snapshotContext(c, h.trustedProxies)
	c.Locals(localsRequestContext, rc)
	c.Set("X-Request-Id", rc.TraceID)

	if err := h.process(c, rc); err != nil {
		return err
	}

	// Safety net: if no response stream was installed, no narrower
	// completion hook will ever fire for this request.
	if !rc.Streaming {
		h.auditSvc.LogOnce(rc, rc.StatusCode, nil)
	}
	return nil
}

func (h *ProxyHandler) process(c *fiber.Ctx, rc *model.RequestContext) error {
	h.logger.Info().
		Str("api_id", rc.ApiID).
		Str("method", rc.Method).
		Str("trace_id", rc.TraceID).
		Msg("Request received")

	// Route lookup may block on the store; never run it inline.
	route, err := worker.Do(c.Context(), h.pool, func(ctx context.Context) (*model.ApiRoute, error) {
		return h.routes.FindRoute(ctx, rc.ApiID)
	})
	if err != nil {
		return apierr.Internal(err)
	}
	if !route.Enabled() {
		return apierr.RouteNotFound(rc.ApiID)
	}
	if !strings.EqualFold(route.Method, rc.Method) {
		return apierr.MethodNotAllowed(rc.Method)
	}
	rc.Route = route

	userID, err := h.authSvc.VerifyAndGetUserID(c.Context(), c.Get(fiber.HeaderAuthorization), rc.ApiID)
	if err != nil {
		return err
	}
	rc.UserID = userID

	// Capture the single-pass inbound body, then replay it upstream.
	body := append([]byte(nil), c.Body()...)
	rc.RequestBody = string(body)

	req, err := buildUpstreamRequest(rc, body)
	if err != nil {
		return apierr.Internal(err)
	}

	h.logger.Info().
		Str("trace_id", rc.TraceID).
		Str("target_url", route.Path).
		Msg("Rewriting request to downstream target")

	resp, err := h.transport.RoundTrip(req)
	if err != nil {
		return apierr.Downstream(err)
	}

	return h.streamResponse(c, rc, resp)
}

// streamResponse forwards the downstream response to the client chunk by
// chunk while teeing each chunk into the audit buffer. The downstream
// Content-Length is dropped and the body re-sent chunked, since the
// transfer now goes through an interception stage.
func (h *ProxyHandler) streamResponse(c *fiber.Ctx, rc *model.RequestContext, resp *http.Response) error {
	for k, vals := range resp.Header {
		if _, skip := strippedResponseHeaders[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		// Add keeps repeated headers (Set-Cookie) intact.
		for _, v := range vals {
			c.Response().Header.Add(k, v)
		}
	}
	c.Set("X-Request-Id", rc.TraceID)
	c.Status(resp.StatusCode)
	rc.StatusCode = resp.StatusCode

	method, apiID, status := rc.Method, rc.ApiID, resp.StatusCode
	startedAt := rc.StartedAt
	tee := newTeeBody(resp.Body, rc, func(streamErr error) {
		if streamErr != nil {
			streamErr = apierr.Downstream(streamErr)
		}
		h.auditSvc.LogOnce(rc, status, streamErr)
		h.metrics.IncRequestCounter(method, apiID, strconv.Itoa(status))
		h.metrics.ObserveRequestDuration(method, apiID, strconv.Itoa(status), time.Since(startedAt))
	})

	rc.Streaming = true
	return c.SendStream(tee)
}
