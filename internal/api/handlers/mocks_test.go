package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockKnowledgeRanker struct {
	mock.Mock
}

func (m *MockKnowledgeRanker) Rank(ctx context.Context, industry string, opts service.RankOptions) ([]*domain.RankedEntry, error) {
	args := m.Called(ctx, industry, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankedEntry), args.Error(1)
}

func (m *MockKnowledgeRanker) Hierarchy(ctx context.Context, industry string) (service.Hierarchy, error) {
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
	args := m.Called(ctx, industry, opts)
	return args.String(0)
}

type MockSessionAccumulator struct {
	mock.Mock
}

func (m *MockSessionAccumulator) Accumulate(ctx context.Context, input service.AccumulateInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

type MockSessionQueue struct {
	mock.Mock
}

func (m *MockSessionQueue) Enqueue(ctx context.Context, input service.AccumulateInput) (*domain.AccumulationJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccumulationJob), args.Error(1)
}

func (m *MockSessionQueue) Get(ctx context.Context, id string) (*domain.AccumulationJob, error) {
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

// newRequest builds a request with chi URL params set, as the router would.
func newRequest(method, target string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	return req
}
