package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/api/handlers"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "kp_0123456789abcdef"

type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, industry string, opts service.RankOptions) ([]*domain.RankedEntry, error) {
	args := m.Called(ctx, industry, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankedEntry), args.Error(1)
}

func (m *MockRanker) Hierarchy(ctx context.Context, industry string) (service.Hierarchy, error) {
	args := m.Called(ctx, industry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(service.Hierarchy), args.Error(1)
}

type MockContextBuilder struct {
	mock.Mock
}

func (m *MockContextBuilder) BuildContext(ctx context.Context, industry string, opts service.ContextOptions) string {
	return m.Called(ctx, industry, opts).String(0)
}

type MockAccumulator struct {
	mock.Mock
}

func (m *MockAccumulator) Accumulate(ctx context.Context, input service.AccumulateInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, input service.AccumulateInput) (*domain.AccumulationJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccumulationJob), args.Error(1)
}

func (m *MockQueue) Get(ctx context.Context, id string) (*domain.AccumulationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccumulationJob), args.Error(1)
}

type MockSnapshotter struct {
	mock.Mock
}

func (m *MockSnapshotter) Export(ctx context.Context, industry string) (*service.SnapshotResult, error) {
	args := m.Called(ctx, industry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SnapshotResult), args.Error(1)
}

func (m *MockSnapshotter) Import(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

type mocks struct {
	ranker    *MockRanker
	builder   *MockContextBuilder
	acc       *MockAccumulator
	queue     *MockQueue
	snapshots *MockSnapshotter
}

func setupRouter(keys []string) (http.Handler, *mocks) {
	m := &mocks{
		ranker:    new(MockRanker),
		builder:   new(MockContextBuilder),
		acc:       new(MockAccumulator),
		queue:     new(MockQueue),
		snapshots: new(MockSnapshotter),
	}

	router := NewRouter(RouterConfig{
		APIKeys:          keys,
		KnowledgeHandler: handlers.NewKnowledgeHandler(m.ranker),
		ContextHandler:   handlers.NewContextHandler(m.builder),
		SessionHandler:   handlers.NewSessionHandler(m.acc, m.queue),
		SnapshotHandler:  handlers.NewSnapshotHandler(m.snapshots),
	})
	return router, m
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := setupRouter([]string{testKey})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router, _ := setupRouter([]string{testKey})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_AuthenticatedRoutes_RequireAuth(t *testing.T) {
	router, _ := setupRouter([]string{testKey})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/knowledge/fintech"},
		{http.MethodGet, "/knowledge/fintech/hierarchy"},
		{http.MethodPost, "/classify"},
		{http.MethodGet, "/context/fintech"},
		{http.MethodPost, "/context/fintech/patterns"},
		{http.MethodPost, "/accumulate"},
		{http.MethodPost, "/sessions"},
		{http.MethodGet, "/sessions/job-1"},
		{http.MethodPost, "/snapshots/fintech"},
		{http.MethodPost, "/snapshots/import"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRouter_RankWithValidAuth(t *testing.T) {
	router, m := setupRouter([]string{testKey})

	entry := domain.NewKnowledgeEntry("fintech", domain.KnowledgeTypeTrend, "Embedded finance", "growing", 0.6, time.Now().UTC())
	entry.ID = "k-1"
	m.ranker.On("Rank", mock.Anything, "fintech", service.RankOptions{}).
		Return([]*domain.RankedEntry{{KnowledgeEntry: entry, FreshnessScore: 1, EffectiveConfidence: 0.6}}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/knowledge/fintech", nil)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"k-1"`)
	m.ranker.AssertExpectations(t)
}

func TestRouter_ContextIsPlainText(t *testing.T) {
	router, m := setupRouter([]string{testKey})

	m.builder.On("BuildContext", mock.Anything, "fintech", service.ContextOptions{}).Return("## Domain Knowledge: fintech")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/context/fintech", nil)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "## Domain Knowledge: fintech", w.Body.String())
}

func TestRouter_SnapshotImportIsNotAnIndustry(t *testing.T) {
	router, m := setupRouter([]string{testKey})

	m.snapshots.On("Import", mock.Anything, "snapshots/fintech/a.json").Return(3, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/snapshots/import", strings.NewReader(`{"key":"snapshots/fintech/a.json"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	m.snapshots.AssertExpectations(t)
	m.snapshots.AssertNotCalled(t, "Export", mock.Anything, mock.Anything)
}

func TestRouter_AuthDisabledWithoutKeys(t *testing.T) {
	router, m := setupRouter(nil)

	m.queue.On("Get", mock.Anything, "job-1").Return(nil, domain.ErrAccumulationJobNotFound)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/job-1", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
