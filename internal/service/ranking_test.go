package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var rankNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRanking(store KnowledgeStore) *RankingService {
	s := NewRankingService(store)
	s.now = func() time.Time { return rankNow }
	return s
}

func entry(id string, kt domain.KnowledgeType, confidence float64, ageDays float64) *domain.KnowledgeEntry {
	verified := rankNow.Add(-time.Duration(ageDays * 24 * float64(time.Hour)))
	return &domain.KnowledgeEntry{
		ID:              id,
		Industry:        "fintech",
		KnowledgeType:   kt,
		Title:           "title " + id,
		Content:         "content " + id,
		Confidence:      confidence,
		LastVerifiedAt:  verified,
		ExtractionCount: 1,
	}
}

func TestRankingService_Rank(t *testing.T) {
	ctx := context.Background()

	t.Run("decays confidence by knowledge type", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		acme := entry("acme", domain.KnowledgeTypeCompetitor, 0.7, 30)
		acme.Title = "Acme raised $50M"
		store.On("Scan", mock.Anything, ScanFilter{Industry: "fintech", Limit: 50}).
			Return([]*domain.KnowledgeEntry{acme}, nil)

		ranked, err := svc.Rank(ctx, "fintech", RankOptions{})

		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.InDelta(t, 0.5, ranked[0].FreshnessScore, 1e-9)
		assert.InDelta(t, 0.35, ranked[0].EffectiveConfidence, 1e-9)
		assert.Equal(t, "Acme raised $50M", ranked[0].Title)
		store.AssertExpectations(t)
	})

	t.Run("sorts by effective confidence and keeps scan order on ties", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		entries := []*domain.KnowledgeEntry{
			entry("a", domain.KnowledgeTypePainPoint, 0.4, 0),
			entry("b", domain.KnowledgeTypePainPoint, 0.9, 0),
			entry("c", domain.KnowledgeTypeRegulation, 0.4, 0),
			entry("d", domain.KnowledgeTypeTrend, 0.6, 0),
		}
		store.On("Scan", mock.Anything, mock.Anything).Return(entries, nil)

		ranked, err := svc.Rank(ctx, "fintech", RankOptions{})

		require.NoError(t, err)
		require.Len(t, ranked, 4)
		ids := []string{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID}
		assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
		for i := 1; i < len(ranked); i++ {
			assert.GreaterOrEqual(t, ranked[i-1].EffectiveConfidence, ranked[i].EffectiveConfidence)
		}
	})

	t.Run("drops entries below the staleness floor", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		fresh := entry("fresh", domain.KnowledgeTypeMarketData, 0.8, 0)
		stale := entry("stale", domain.KnowledgeTypeMarketData, 0.8, 89)    // 0.8 * 1/90
		expired := entry("expired", domain.KnowledgeTypeMarketData, 1, 400) // 0
		store.On("Scan", mock.Anything, mock.Anything).
			Return([]*domain.KnowledgeEntry{fresh, stale, expired}, nil)

		ranked, err := svc.Rank(ctx, "fintech", RankOptions{})

		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Equal(t, "fresh", ranked[0].ID)
		for _, r := range ranked {
			assert.GreaterOrEqual(t, r.EffectiveConfidence, 0.1)
		}
	})

	t.Run("explicit floor overrides the default", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		stale := entry("stale", domain.KnowledgeTypeMarketData, 0.8, 89)
		store.On("Scan", mock.Anything, mock.Anything).Return([]*domain.KnowledgeEntry{stale}, nil)

		zero := 0.0
		ranked, err := svc.Rank(ctx, "fintech", RankOptions{MinEffectiveConfidence: &zero})

		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.InDelta(t, 0.8/90, ranked[0].EffectiveConfidence, 1e-9)
	})

	t.Run("passes filters and limit to the store", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		store.On("Scan", mock.Anything, ScanFilter{
			Industry:      "fintech",
			Segment:       "payments",
			KnowledgeType: domain.KnowledgeTypeTrend,
			Limit:         5,
		}).Return([]*domain.KnowledgeEntry{}, nil)

		ranked, err := svc.Rank(ctx, "fintech", RankOptions{
			Segment:       "payments",
			KnowledgeType: domain.KnowledgeTypeTrend,
			Limit:         5,
		})

		require.NoError(t, err)
		assert.Empty(t, ranked)
		store.AssertExpectations(t)
	})

	t.Run("blank industry returns empty without touching the store", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		ranked, err := svc.Rank(ctx, "  ", RankOptions{})

		require.NoError(t, err)
		assert.NotNil(t, ranked)
		assert.Empty(t, ranked)
		store.AssertNotCalled(t, "Scan", mock.Anything, mock.Anything)
	})

	t.Run("store failure yields empty result and a store error", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		store.On("Scan", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		ranked, err := svc.Rank(ctx, "fintech", RankOptions{})

		require.Error(t, err)
		var storeErr *domain.StoreError
		assert.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "scan", storeErr.Op)
		assert.NotNil(t, ranked)
		assert.Empty(t, ranked)
	})
}

func TestRankingService_RankPatterns(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query matches nothing", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		ranked, err := svc.RankPatterns(ctx, PatternQuery{Tags: []string{" "}})

		require.NoError(t, err)
		assert.Empty(t, ranked)
		store.AssertNotCalled(t, "FindByPatterns", mock.Anything, mock.Anything)
	})

	t.Run("trims blanks and applies the pattern limit", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		hit := entry("p1", domain.KnowledgeTypePainPoint, 0.6, 10)
		store.On("FindByPatterns", mock.Anything, PatternFilter{
			Tags:         []string{"b2b"},
			ProblemAreas: []string{"onboarding"},
			Limit:        10,
		}).Return([]*domain.KnowledgeEntry{hit}, nil)

		ranked, err := svc.RankPatterns(ctx, PatternQuery{
			Tags:         []string{"b2b", ""},
			ProblemAreas: []string{" onboarding "},
		})

		require.NoError(t, err)
		require.Len(t, ranked, 1)
		assert.Equal(t, "p1", ranked[0].ID)
		store.AssertExpectations(t)
	})

	t.Run("wraps store errors", func(t *testing.T) {
		store := new(MockKnowledgeStore)
		svc := newTestRanking(store)

		store.On("FindByPatterns", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

		ranked, err := svc.RankPatterns(ctx, PatternQuery{Tags: []string{"b2b"}})

		var storeErr *domain.StoreError
		require.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "find_by_patterns", storeErr.Op)
		assert.Empty(t, ranked)
	})
}

func TestRankingService_Hierarchy(t *testing.T) {
	ctx := context.Background()
	store := new(MockKnowledgeStore)
	svc := newTestRanking(store)

	a := entry("a", domain.KnowledgeTypePainPoint, 0.9, 0)
	a.Segment = "payments"
	a.ProblemArea = "fraud"
	b := entry("b", domain.KnowledgeTypePainPoint, 0.8, 0)
	b.Segment = "payments"
	c := entry("c", domain.KnowledgeTypePainPoint, 0.7, 0)
	c.Segment = "payments"
	c.ProblemArea = "fraud"
	d := entry("d", domain.KnowledgeTypePainPoint, 0.6, 0)

	store.On("Scan", mock.Anything, ScanFilter{Industry: "fintech", Limit: 200}).
		Return([]*domain.KnowledgeEntry{a, b, c, d}, nil)

	h, err := svc.Hierarchy(ctx, "fintech")

	require.NoError(t, err)
	require.Len(t, h, 2)
	require.Len(t, h["payments"]["fraud"], 2)
	assert.Equal(t, "a", h["payments"]["fraud"][0].ID)
	assert.Equal(t, "c", h["payments"]["fraud"][1].ID)
	assert.Equal(t, "b", h["payments"][domain.GeneralBucket][0].ID)
	assert.Equal(t, "d", h[domain.GeneralBucket][domain.GeneralBucket][0].ID)
	store.AssertExpectations(t)
}

func TestNewRankingServiceWithConfig_FillsDefaults(t *testing.T) {
	svc := NewRankingServiceWithConfig(nil, RankingConfig{StalenessFloor: 0.2})

	assert.Equal(t, 50, svc.cfg.DefaultLimit)
	assert.Equal(t, 200, svc.cfg.HierarchyLimit)
	assert.Equal(t, 10, svc.cfg.PatternLimit)
	assert.Equal(t, 0.2, svc.cfg.StalenessFloor)
	assert.Equal(t, 90.0, svc.cfg.Policy.ExpiryDays(domain.KnowledgeTypeMarketData))
}
