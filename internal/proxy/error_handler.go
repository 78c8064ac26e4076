package proxy

import (
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/tuncerburak97/bekci/internal/apierr"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/service"
)

const maxStackLen = 4096

// errorBody is the JSON contract for every failed request.
type errorBody struct {
	Timestamp  string `json:"timestamp"`
	Status     int    `json:"status"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	Exception  string `json:"exception"`
	Cause      string `json:"cause,omitempty"`
	Path       string `json:"path"`
	Method     string `json:"method"`
	TraceID    string `json:"traceId"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// NewErrorHandler builds the catch-all boundary: it renders the error
// contract for anything the pipeline returned and guarantees the audit
// attempt for requests that failed before (or instead of) streaming.
func NewErrorHandler(cfg *config.Config, auditSvc *service.AuditService, m *metrics.MetricsCollector, logger *zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		rc, _ := c.Locals(localsRequestContext).(*model.RequestContext)
		if rc == nil {
			// Failure before pipeline setup; the error path owns
			// context creation so the audit attempt still happens.
			rc = snapshotContext(c, cfg.Auth.TrustedProxies)
		}

		apiErr := normalize(err)
		rc.StatusCode = apiErr.Status

		body := errorBody{
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Status:    apiErr.Status,
			Error:     http.StatusText(apiErr.Status),
			Message:   apiErr.Message,
			Exception: apiErr.Code,
			Cause:     rootCauseMessage(apiErr),
			Path:      rc.Path,
			Method:    rc.Method,
			TraceID:   rc.TraceID,
		}
		if includeStack(c, cfg) {
			stack := debug.Stack()
			if len(stack) > maxStackLen {
				stack = stack[:maxStackLen]
			}
			body.StackTrace = string(stack)
		}

		logger.Warn().
			Err(err).
			Int("status", apiErr.Status).
			Str("trace_id", rc.TraceID).
			Str("api_id", rc.ApiID).
			Msg("Request failed")

		c.Set("X-Request-Id", rc.TraceID)
		sendErr := c.Status(apiErr.Status).JSON(body)

		// The rendered error body is the response the caller saw;
		// audit it as such.
		rc.AppendResponse(c.Response().Body())
		auditSvc.LogOnce(rc, apiErr.Status, apiErr)
		m.IncRequestCounter(rc.Method, rc.ApiID, strconv.Itoa(apiErr.Status))
		m.ObserveRequestDuration(rc.Method, rc.ApiID, strconv.Itoa(apiErr.Status), time.Since(rc.StartedAt))

		return sendErr
	}
}

// normalize keeps fiber's own errors (body limits, timeouts) meaningful
// instead of flattening everything to 500.
func normalize(err error) *apierr.Error {
	var fiberErr *fiber.Error
	var apiErr *apierr.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &fiberErr):
		return &apierr.Error{
			Status:  fiberErr.Code,
			Code:    apierr.CodeInternalFailure,
			Message: fiberErr.Message,
			Cause:   err,
		}
	default:
		return apierr.Internal(err)
	}
}

func rootCauseMessage(err *apierr.Error) string {
	cause := err.Cause
	if cause == nil {
		return err.Message
	}
	for {
		next := errors.Unwrap(cause)
		if next == nil {
			break
		}
		cause = next
	}
	if msg := cause.Error(); msg != "" {
		return msg
	}
	return err.Code
}

func includeStack(c *fiber.Ctx, cfg *config.Config) bool {
	if c.Get("X-Debug") == "true" {
		return true
	}
	return cfg.IsDev()
}
