package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/bekci/internal/apierr"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/masking"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/model"
)

type fakeLogStore struct {
	mu      sync.Mutex
	saved   []*model.GatewayLog
	saveErr error
}

func (f *fakeLogStore) SaveLog(ctx context.Context, log *model.GatewayLog) error {
	return f.SaveLogs(ctx, []*model.GatewayLog{log})
}

func (f *fakeLogStore) SaveLogs(ctx context.Context, logs []*model.GatewayLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	// The caller reuses its batch slice after this returns.
	f.saved = append(f.saved, append([]*model.GatewayLog(nil), logs...)...)
	return nil
}

func (f *fakeLogStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeLogStore) Close() error                      { return nil }

func (f *fakeLogStore) records() []*model.GatewayLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.GatewayLog(nil), f.saved...)
}

func newTestAuditService(store *fakeLogStore) *AuditService {
	logger := zerolog.Nop()
	cfg := config.AuditConfig{
		Workers:       1,
		BufferSize:    16,
		BatchSize:     1,
		FlushInterval: 10 * time.Millisecond,
	}
	m := metrics.GetMetricsCollector("bekci", "bekci_gateway")
	return NewAuditService(store, m, cfg, &logger)
}

func newTestContext() *model.RequestContext {
	rc := model.NewRequestContext("trace-1", masking.MaxResponseLen)
	rc.StartedAt = time.Now().Add(-25 * time.Millisecond)
	rc.ApiID = "orders"
	rc.Method = "POST"
	rc.QueryString = "page=1"
	rc.Headers = map[string]string{
		"Authorization": "key-1",
		"Content-Type":  "application/json",
	}
	rc.UserAgent = "curl/8.0"
	rc.ContentType = "application/json"
	rc.ClientIP = "203.0.113.5"
	rc.RequestBody = `{"name":"x","password":"hunter2"}`
	rc.Route = &model.ApiRoute{ApiID: "orders", Path: "http://orders.internal/v1", Method: "POST", UseYn: "Y"}
	rc.UserID = "u1"
	return rc
}

func TestLogOnceSavesRecord(t *testing.T) {
	store := &fakeLogStore{}
	svc := newTestAuditService(store)

	rc := newTestContext()
	rc.AppendResponse([]byte(`{"ok":true}`))
	svc.LogOnce(rc, 200, nil)
	svc.Shutdown()

	records := store.records()
	require.Len(t, records, 1)
	rec := records[0]

	require.NotEmpty(t, rec.LogID)
	require.Equal(t, "trace-1", rec.TraceID)
	require.Equal(t, "u1", rec.UserID)
	require.Equal(t, "orders", rec.ApiID)
	require.Equal(t, "POST", rec.Method)
	require.Equal(t, "http://orders.internal/v1", rec.Path)
	require.Equal(t, "page=1", rec.QueryParam)
	require.Equal(t, 200, rec.StatusCode)
	require.Equal(t, `{"ok":true}`, rec.Response)
	require.Equal(t, model.SuccessYes, rec.IsSuccess)
	require.Empty(t, rec.ErrorMessage)
	require.Equal(t, "203.0.113.5", rec.ClientIP)
	require.Equal(t, "curl/8.0", rec.UserAgent)

	require.GreaterOrEqual(t, rec.LatencyMs, int64(0))
	require.False(t, rec.RequestedAt.After(rec.RespondedAt))
}

func TestLogOnceMasksSensitiveData(t *testing.T) {
	store := &fakeLogStore{}
	svc := newTestAuditService(store)

	svc.LogOnce(newTestContext(), 200, nil)
	svc.Shutdown()

	records := store.records()
	require.Len(t, records, 1)
	rec := records[0]

	require.NotContains(t, rec.Headers, "key-1")
	require.Contains(t, rec.Headers, masking.Marker)
	require.NotContains(t, rec.Body, "hunter2")
	require.Contains(t, rec.Body, masking.Marker)
}

func TestLogOnceFiresExactlyOnce(t *testing.T) {
	store := &fakeLogStore{}
	svc := newTestAuditService(store)

	rc := newTestContext()
	svc.LogOnce(rc, 200, nil)
	svc.LogOnce(rc, 500, errors.New("late duplicate"))
	svc.Shutdown()

	records := store.records()
	require.Len(t, records, 1)
	require.Equal(t, 200, records[0].StatusCode)
}

func TestLogOnceErrorRecord(t *testing.T) {
	store := &fakeLogStore{}
	svc := newTestAuditService(store)

	rc := newTestContext()
	rc.Route = nil
	svc.LogOnce(rc, 404, apierr.RouteNotFound("orders"))
	svc.Shutdown()

	records := store.records()
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, model.SuccessNo, rec.IsSuccess)
	require.Equal(t, "unknown", rec.Path)
	require.Equal(t, 404, rec.StatusCode)
	require.Contains(t, rec.ErrorMessage, apierr.CodeRouteNotFound)
}

func TestLogOnceNilContextIsNoop(t *testing.T) {
	store := &fakeLogStore{}
	svc := newTestAuditService(store)

	svc.LogOnce(nil, 200, nil)
	svc.Shutdown()
	require.Empty(t, store.records())
}

func TestStoreFailureNeverPropagates(t *testing.T) {
	store := &fakeLogStore{saveErr: errors.New("db down")}
	svc := newTestAuditService(store)

	require.NotPanics(t, func() {
		svc.LogOnce(newTestContext(), 200, nil)
		svc.Shutdown()
	})
	require.Empty(t, store.records())
}

func TestBatchFlushByTicker(t *testing.T) {
	store := &fakeLogStore{}
	logger := zerolog.Nop()
	cfg := config.AuditConfig{
		Workers:       1,
		BufferSize:    16,
		BatchSize:     100, // never reached; ticker must flush
		FlushInterval: 10 * time.Millisecond,
	}
	m := metrics.GetMetricsCollector("bekci", "bekci_gateway")
	svc := NewAuditService(store, m, cfg, &logger)
	defer svc.Shutdown()

	svc.LogOnce(newTestContext(), 200, nil)

	require.Eventually(t, func() bool {
		return len(store.records()) == 1
	}, time.Second, 5*time.Millisecond)
}
