package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tuncerburak97/bekci/internal/auth"
	"github.com/tuncerburak97/bekci/internal/config"
	"github.com/tuncerburak97/bekci/internal/masking"
	"github.com/tuncerburak97/bekci/internal/metrics"
	"github.com/tuncerburak97/bekci/internal/model"
	"github.com/tuncerburak97/bekci/internal/service"
	"github.com/tuncerburak97/bekci/internal/worker"
)

const testSalt = "pepper"

type fakeGatewayStore struct {
	mu         sync.Mutex
	routes     map[string]*model.ApiRoute
	keys       map[string]*model.ApiKey
	users      map[string]*model.User
	grants     map[string]bool
	routeCalls int
	saved      []*model.GatewayLog
}

func (f *fakeGatewayStore) FindRoute(ctx context.Context, apiID string) (*model.ApiRoute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routeCalls++
	return f.routes[apiID], nil
}

func (f *fakeGatewayStore) FindKeyByHash(ctx context.Context, hashedKey string) (*model.ApiKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[hashedKey], nil
}

func (f *fakeGatewayStore) FindUser(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[userID], nil
}

func (f *fakeGatewayStore) HasPermission(ctx context.Context, userID, apiID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[userID+"/"+apiID], nil
}

func (f *fakeGatewayStore) SaveLog(ctx context.Context, log *model.GatewayLog) error {
	return f.SaveLogs(ctx, []*model.GatewayLog{log})
}

func (f *fakeGatewayStore) SaveLogs(ctx context.Context, logs []*model.GatewayLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, append([]*model.GatewayLog(nil), logs...)...)
	return nil
}

func (f *fakeGatewayStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeGatewayStore) Close() error                      { return nil }

func (f *fakeGatewayStore) records() []*model.GatewayLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.GatewayLog(nil), f.saved...)
}

func (f *fakeGatewayStore) routeLookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routeCalls
}

type gatewayFixture struct {
	app   *fiber.App
	store *fakeGatewayStore
}

// newGatewayFixture wires a full in-process gateway around a fake store:
// one enabled POST route "orders" pointing at target, one enabled user
// "u1" holding key "key-1" with a grant on "orders".
func newGatewayFixture(t *testing.T, target string) *gatewayFixture {
	return newGatewayFixtureAudit(t, target, config.AuditConfig{
		Workers:       1,
		BufferSize:    16,
		BatchSize:     1,
		FlushInterval: 5 * time.Millisecond,
	})
}

func newGatewayFixtureAudit(t *testing.T, target string, audit config.AuditConfig) *gatewayFixture {
	t.Helper()

	hash := auth.HashKey(testSalt, "key-1")
	store := &fakeGatewayStore{
		routes: map[string]*model.ApiRoute{
			"orders": {ApiID: "orders", ApiName: "Orders", Path: target, Method: "POST", UseYn: "Y"},
		},
		keys:   map[string]*model.ApiKey{hash: {UserID: "u1", ApiKey: hash}},
		users:  map[string]*model.User{"u1": {UserID: "u1", UseYn: "Y"}},
		grants: map[string]bool{"u1/orders": true},
	}

	cfg := &config.Config{}
	cfg.Auth.Salt = testSalt
	cfg.ApplyDefaults()
	cfg.Audit = audit

	logger := zerolog.Nop()
	m := metrics.GetMetricsCollector("bekci", "bekci_gateway")
	pool := worker.NewPool(4)
	t.Cleanup(pool.Close)

	authSvc := auth.NewService(cfg.Auth.Salt, store, pool, &logger)
	auditSvc := service.NewAuditService(store, m, cfg.Audit, &logger)
	t.Cleanup(auditSvc.Shutdown)

	handler := NewProxyHandler(cfg, &logger, store, authSvc, auditSvc, pool, m)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          NewErrorHandler(cfg, auditSvc, m, &logger),
	})
	app.All("/*", handler.Handle)

	return &gatewayFixture{app: app, store: store}
}

func (fx *gatewayFixture) waitForRecords(t *testing.T, n int) []*model.GatewayLog {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(fx.store.records()) >= n
	}, 5*time.Second, 5*time.Millisecond)
	return fx.store.records()
}

func TestGatewayForwardsAndAudits(t *testing.T) {
	var gotBody []byte
	var gotAuth string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-Downstream", "yes")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer downstream.Close()

	fx := newGatewayFixture(t, downstream.URL)

	reqBody := `{"name":"x","password":"hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/orders?page=1", strings.NewReader(reqBody))
	req.Header.Set("Authorization", "key-1")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", "trace-abc")

	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(body))
	require.Equal(t, "yes", resp.Header.Get("X-Downstream"))
	require.Equal(t, "trace-abc", resp.Header.Get("X-Request-Id"))

	// The inbound body is replayed upstream byte for byte.
	require.Equal(t, reqBody, string(gotBody))
	require.Equal(t, "key-1", gotAuth)

	records := fx.waitForRecords(t, 1)
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "trace-abc", rec.TraceID)
	require.Equal(t, "u1", rec.UserID)
	require.Equal(t, "orders", rec.ApiID)
	require.Equal(t, http.StatusOK, rec.StatusCode)
	require.Equal(t, model.SuccessYes, rec.IsSuccess)
	require.Equal(t, `{"ok":true}`, rec.Response)
	require.Equal(t, "page=1", rec.QueryParam)

	// The stored headers never carry the raw key.
	require.NotContains(t, rec.Headers, "key-1")
	require.Contains(t, rec.Headers, masking.Marker)
	require.NotContains(t, rec.Body, "hunter2")

	// Late completion paths must not produce a second row.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, fx.store.records(), 1)
}

func TestGatewayUnknownRoute(t *testing.T) {
	var downstreamHits int
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downstreamHits++
	}))
	defer downstream.Close()

	fx := newGatewayFixture(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Zero(t, downstreamHits)
	require.Equal(t, 1, fx.store.routeLookups())

	var body struct {
		Status    int    `json:"status"`
		Exception string `json:"exception"`
		TraceID   string `json:"traceId"`
		Method    string `json:"method"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, http.StatusNotFound, body.Status)
	require.Equal(t, "RouteNotFound", body.Exception)
	require.Equal(t, "POST", body.Method)
	require.NotEmpty(t, body.TraceID)

	records := fx.waitForRecords(t, 1)
	require.Len(t, records, 1)
	require.Equal(t, model.SuccessNo, records[0].IsSuccess)
	require.Equal(t, http.StatusNotFound, records[0].StatusCode)
	require.Equal(t, "unknown", records[0].Path)
}

func TestGatewayDisabledRoute(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")
	fx.store.routes["orders"].UseYn = "N"

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatewayMethodMismatch(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	records := fx.waitForRecords(t, 1)
	require.Equal(t, model.SuccessNo, records[0].IsSuccess)
}

func TestGatewayMissingKey(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayNoGrant(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")
	delete(fx.store.grants, "u1/orders")

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	records := fx.waitForRecords(t, 1)
	require.Equal(t, model.SuccessNo, records[0].IsSuccess)
	require.Equal(t, http.StatusForbidden, records[0].StatusCode)
}

// Queued records must hold copies of the request data: fasthttp recycles
// its buffers between requests, and a record can wait a full flush
// interval before persistence.
func TestQueuedAuditRecordsKeepTheirRequestData(t *testing.T) {
	fx := newGatewayFixtureAudit(t, "http://unused.invalid", config.AuditConfig{
		Workers:       1,
		BufferSize:    1000,
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
	})

	firstTrace := "trace-" + strings.Repeat("A", 20)
	firstAgent := "AGENT-" + strings.Repeat("A", 20)

	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	req.Header.Set("X-Request-Id", firstTrace)
	req.Header.Set("User-Agent", firstAgent)
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	resp.Body.Close()

	// Churn the connection pool so recycled buffers get rewritten while
	// the first record is still queued.
	for i := 0; i < 200; i++ {
		churn := httptest.NewRequest(http.MethodPost, "/nope", nil)
		churn.Header.Set("X-Request-Id", "trace-"+strings.Repeat("B", 20))
		churn.Header.Set("User-Agent", "AGENT-"+strings.Repeat("B", 20))
		resp, err := fx.app.Test(churn, 5000)
		require.NoError(t, err)
		resp.Body.Close()
	}

	records := fx.waitForRecords(t, 201)
	first := records[0]
	require.Equal(t, firstTrace, first.TraceID)
	require.Equal(t, firstAgent, first.UserAgent)
	require.Contains(t, first.Headers, firstAgent)
}

func TestErrorBodyStackTrace(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	req.Header.Set("X-Debug", "true")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		StackTrace string `json:"stackTrace"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.StackTrace)
	require.LessOrEqual(t, len(body.StackTrace), maxStackLen)
	require.Contains(t, body.StackTrace, "goroutine")
}

func TestErrorBodyNoStackByDefault(t *testing.T) {
	fx := newGatewayFixture(t, "http://unused.invalid")

	req := httptest.NewRequest(http.MethodPost, "/nope", nil)
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		StackTrace string `json:"stackTrace"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Empty(t, body.StackTrace)
}

func TestGatewayForwardsRepeatedResponseHeaders(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "session=abc; Path=/")
		w.Header().Add("Set-Cookie", "theme=dark; Path=/")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer downstream.Close()

	fx := newGatewayFixture(t, downstream.URL)

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Header.Values("Set-Cookie")
	require.Len(t, cookies, 2)
	require.Contains(t, cookies[0]+cookies[1], "session=abc")
	require.Contains(t, cookies[0]+cookies[1], "theme=dark")
}

func TestGatewayDownstreamUnreachable(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := downstream.URL
	downstream.Close()

	fx := newGatewayFixture(t, target)

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "key-1")
	resp, err := fx.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body struct {
		Exception string `json:"exception"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "DownstreamFailure", body.Exception)

	records := fx.waitForRecords(t, 1)
	require.Equal(t, model.SuccessNo, records[0].IsSuccess)
	require.Equal(t, http.StatusBadGateway, records[0].StatusCode)

	time.Sleep(50 * time.Millisecond)
	require.Len(t, fx.store.records(), 1)
}
