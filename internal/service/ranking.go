package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
)

// RankingConfig controls retrieval limits and the staleness floor.
type RankingConfig struct {
	DefaultLimit   int
	HierarchyLimit int
	PatternLimit   int
	StalenessFloor float64
	Policy         domain.DecayPolicy
}

// DefaultRankingConfig returns the default retrieval configuration.
func DefaultRankingConfig() RankingConfig {
	return RankingConfig{
		DefaultLimit:   50,
		HierarchyLimit: 200,
		PatternLimit:   10,
		StalenessFloor: 0.1,
		Policy:         domain.DefaultDecayPolicy(),
	}
}

// RankOptions narrows a ranking call. A nil floor uses the configured floor.
type RankOptions struct {
	Segment                string
	KnowledgeType          domain.KnowledgeType
	Limit                  int
	MinEffectiveConfidence *float64
}

// PatternQuery is a cross-industry search by tags and problem areas.
type PatternQuery struct {
	Tags                   []string
	ProblemAreas           []string
	Limit                  int
	MinEffectiveConfidence *float64
}

// IsEmpty reports whether the query has nothing to match on.
func (q PatternQuery) IsEmpty() bool {
	return len(nonBlank(q.Tags)) == 0 && len(nonBlank(q.ProblemAreas)) == 0
}

// Hierarchy groups ranked entries by segment then problem area.
type Hierarchy map[string]map[string][]*domain.RankedEntry

// RankingService scores entries by freshness-decayed confidence.
type RankingService struct {
	store KnowledgeStore
	cfg   RankingConfig
	now   func() time.Time
}

// NewRankingService creates a RankingService with the default configuration
func NewRankingService(store KnowledgeStore) *RankingService {
	return NewRankingServiceWithConfig(store, DefaultRankingConfig())
}

// NewRankingServiceWithConfig creates a RankingService with explicit configuration.
func NewRankingServiceWithConfig(store KnowledgeStore, cfg RankingConfig) *RankingService {
	def := DefaultRankingConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.HierarchyLimit <= 0 {
		cfg.HierarchyLimit = def.HierarchyLimit
	}
	if cfg.PatternLimit <= 0 {
		cfg.PatternLimit = def.PatternLimit
	}
	if cfg.Policy.Windows == nil {
		cfg.Policy = def.Policy
	}
	return &RankingService{store: store, cfg: cfg, now: time.Now}
}

// Rank returns entries of one industry ordered by effective confidence.
// On store failure it returns an empty slice and a *domain.StoreError.
func (s *RankingService) Rank(ctx context.Context, industry string, opts RankOptions) ([]*domain.RankedEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "RankingService.Rank", telemetry.SpanAttributes{
		Industry:      industry,
		Segment:       opts.Segment,
		KnowledgeType: string(opts.KnowledgeType),
		Operation:     "rank",
	})
	defer span.End()

	if strings.TrimSpace(industry) == "" || s.store == nil {
		return []*domain.RankedEntry{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	start := time.Now()
	defer func() { telemetry.ObserveRank("industry", time.Since(start)) }()

	entries, err := s.store.Scan(ctx, ScanFilter{
		Industry:      industry,
		Segment:       opts.Segment,
		KnowledgeType: opts.KnowledgeType,
		Limit:         limit,
	})
	if err != nil {
		span.SetError(err)
		return []*domain.RankedEntry{}, domain.NewStoreError("scan", err)
	}

	return s.score(entries, s.floor(opts.MinEffectiveConfidence)), nil
}

// RankPatterns ranks a cross-industry search. Empty queries match nothing.
func (s *RankingService) RankPatterns(ctx context.Context, q PatternQuery) ([]*domain.RankedEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "RankingService.RankPatterns", telemetry.SpanAttributes{
		Operation: "rank_patterns",
	})
	defer span.End()

	if q.IsEmpty() || s.store == nil {
		return []*domain.RankedEntry{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.cfg.PatternLimit
	}

	start := time.Now()
	defer func() { telemetry.ObserveRank("patterns", time.Since(start)) }()

	entries, err := s.store.FindByPatterns(ctx, PatternFilter{
		Tags:         nonBlank(q.Tags),
		ProblemAreas: nonBlank(q.ProblemAreas),
		Limit:        limit,
	})
	if err != nil {
		span.SetError(err)
		return []*domain.RankedEntry{}, domain.NewStoreError("find_by_patterns", err)
	}

	return s.score(entries, s.floor(q.MinEffectiveConfidence)), nil
}

// Hierarchy groups the ranked output of an industry by segment and problem area.
// Missing values land in the "general" bucket.
func (s *RankingService) Hierarchy(ctx context.Context, industry string) (Hierarchy, error) {
	ranked, err := s.Rank(ctx, industry, RankOptions{Limit: s.cfg.HierarchyLimit})
	if err != nil {
		return Hierarchy{}, err
	}

	h := Hierarchy{}
	for _, r := range ranked {
		segment := bucket(r.Segment)
		problemArea := bucket(r.ProblemArea)
		if h[segment] == nil {
			h[segment] = map[string][]*domain.RankedEntry{}
		}
		h[segment][problemArea] = append(h[segment][problemArea], r)
	}
	return h, nil
}

// score computes effective confidence against a single instant, drops entries
// below the floor and sorts the rest. Ties keep scan order.
func (s *RankingService) score(entries []*domain.KnowledgeEntry, floor float64) []*domain.RankedEntry {
	now := s.now()

	ranked := make([]*domain.RankedEntry, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		freshness, effective := s.cfg.Policy.EffectiveConfidence(e, now)
		if effective < floor {
			continue
		}
		ranked = append(ranked, &domain.RankedEntry{
			KnowledgeEntry:      e,
			FreshnessScore:      freshness,
			EffectiveConfidence: effective,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].EffectiveConfidence > ranked[j].EffectiveConfidence
	})
	return ranked
}

func (s *RankingService) floor(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.cfg.StalenessFloor
}

func bucket(v string) string {
	if strings.TrimSpace(v) == "" {
		return domain.GeneralBucket
	}
	return v
}

func nonBlank(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
