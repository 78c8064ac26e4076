package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   string
	}{
		{RouteNotFound("orders"), http.StatusNotFound, CodeRouteNotFound},
		{MethodNotAllowed("DELETE"), http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{Unauthenticated("missing key"), http.StatusUnauthorized, CodeUnauthenticated},
		{Forbidden("disabled"), http.StatusForbidden, CodeForbidden},
		{Downstream(errors.New("dial failed")), http.StatusBadGateway, CodeDownstreamFailure},
		{Internal(errors.New("boom")), http.StatusInternalServerError, CodeInternalFailure},
	}
	for _, tt := range tests {
		require.Equal(t, tt.status, tt.err.Status)
		require.Equal(t, tt.code, tt.err.Code)
	}
}

func TestFromPassesThroughPipelineErrors(t *testing.T) {
	orig := Forbidden("no access")
	wrapped := fmt.Errorf("stage failed: %w", orig)
	require.Same(t, orig, From(wrapped))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	e := From(errors.New("surprise"))
	require.Equal(t, http.StatusInternalServerError, e.Status)
	require.Equal(t, CodeInternalFailure, e.Code)
}

func TestSynthesizeUsesMessage(t *testing.T) {
	msg := Synthesize(RouteNotFound("orders"))
	require.Equal(t, "RouteNotFound: api not found or disabled: orders", msg)
}

func TestSynthesizeUsesRootCause(t *testing.T) {
	inner := errors.New("connection refused")
	msg := Synthesize(Downstream(fmt.Errorf("round trip: %w", inner)))
	require.Equal(t, "DownstreamFailure: connection refused", msg)
}

func TestSynthesizeBareCategory(t *testing.T) {
	msg := Synthesize(&Error{Status: 500, Code: CodeInternalFailure})
	require.Equal(t, CodeInternalFailure, msg)
}

func TestErrorString(t *testing.T) {
	require.Equal(t, "Forbidden: no access to this API", Forbidden("no access to this API").Error())
	require.Equal(t, CodeForbidden, (&Error{Code: CodeForbidden}).Error())
}
