package service

import (
	"context"
	"sort"
	"sync"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockKnowledgeStore is a mock implementation of KnowledgeStore
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) Scan(ctx context.Context, filter ScanFilter) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) FindByKey(ctx context.Context, key domain.KnowledgeKey) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) Insert(ctx context.Context, entry *domain.KnowledgeEntry) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) Update(ctx context.Context, id string, patch domain.KnowledgePatch) (*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeEntry), args.Error(1)
}

func (m *MockKnowledgeStore) FindByPatterns(ctx context.Context, filter PatternFilter) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

// MockAccumulationJobRepository is a mock implementation of AccumulationJobRepository
type MockAccumulationJobRepository struct {
	mock.Mock
}

func (m *MockAccumulationJobRepository) Create(ctx context.Context, job *domain.AccumulationJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockAccumulationJobRepository) GetByID(ctx context.Context, id string) (*domain.AccumulationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccumulationJob), args.Error(1)
}

// MockRanker is a mock implementation of Ranker
type MockRanker struct {
	mock.Mock
}

func (m *MockRanker) Rank(ctx context.Context, industry string, opts RankOptions) ([]*domain.RankedEntry, error) {
	args := m.Called(ctx, industry, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankedEntry), args.Error(1)
}

func (m *MockRanker) RankPatterns(ctx context.Context, q PatternQuery) ([]*domain.RankedEntry, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RankedEntry), args.Error(1)
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockObjectStorage) GetObject(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockObjectStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockUUIDGenerator returns preset IDs in order
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// memStore is an in-memory KnowledgeStore that enforces the dedup key.
type memStore struct {
	mu      sync.Mutex
	entries map[domain.KnowledgeKey]*domain.KnowledgeEntry
}

func newMemStore() *memStore {
	return &memStore{entries: map[domain.KnowledgeKey]*domain.KnowledgeEntry{}}
}

func (s *memStore) Scan(_ context.Context, filter ScanFilter) ([]*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.KnowledgeEntry
	for _, e := range s.entries {
		if e.Industry != filter.Industry {
			continue
		}
		if filter.Segment != "" && e.Segment != filter.Segment {
			continue
		}
		if filter.KnowledgeType != "" && e.KnowledgeType != filter.KnowledgeType {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	sortScan(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) FindByKey(_ context.Context, key domain.KnowledgeKey) (*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrKnowledgeNotFound
	}
	c := *e
	return &c, nil
}

func (s *memStore) Insert(_ context.Context, entry *domain.KnowledgeEntry) (*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[entry.Key()]; ok {
		return nil, domain.ErrKnowledgeAlreadyExists
	}
	c := *entry
	s.entries[entry.Key()] = &c
	return &c, nil
}

func (s *memStore) Update(_ context.Context, id string, patch domain.KnowledgePatch) (*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID != id {
			continue
		}
		e.Confidence = e.Confidence + patch.ConfidenceStep
		if e.Confidence > 1 {
			e.Confidence = 1
		}
		e.ExtractionCount++
		e.Content = patch.Content
		e.Tags = patch.Tags
		e.LastVerifiedAt = patch.VerifiedAt
		e.UpdatedAt = patch.VerifiedAt
		c := *e
		return &c, nil
	}
	return nil, domain.ErrKnowledgeNotFound
}

func (s *memStore) FindByPatterns(_ context.Context, filter PatternFilter) ([]*domain.KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.KnowledgeEntry
	for _, e := range s.entries {
		if overlaps(e.Tags, filter.Tags) || contains(filter.ProblemAreas, e.ProblemArea) {
			c := *e
			out = append(out, &c)
		}
	}
	sortScan(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memStore) put(e *domain.KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	s.entries[e.Key()] = &c
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func sortScan(entries []*domain.KnowledgeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].LastVerifiedAt.Equal(entries[j].LastVerifiedAt) {
			return entries[i].LastVerifiedAt.After(entries[j].LastVerifiedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
