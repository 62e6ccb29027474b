package service

import (
	"context"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/google/uuid"
)

// ScanFilter narrows a store scan to one industry.
type ScanFilter struct {
	Industry      string
	Segment       string
	KnowledgeType domain.KnowledgeType
	Limit         int
}

// PatternFilter selects entries across all industries by tag or problem area overlap.
type PatternFilter struct {
	Tags         []string
	ProblemAreas []string
	Limit        int
}

// KnowledgeStore defines the persistence contract for knowledge entries.
// Insert must return domain.ErrKnowledgeAlreadyExists when the dedup key is taken
// and Update must apply the confidence step and count increment atomically.
type KnowledgeStore interface {
	Scan(ctx context.Context, filter ScanFilter) ([]*domain.KnowledgeEntry, error)
	FindByKey(ctx context.Context, key domain.KnowledgeKey) (*domain.KnowledgeEntry, error)
	Insert(ctx context.Context, entry *domain.KnowledgeEntry) (*domain.KnowledgeEntry, error)
	Update(ctx context.Context, id string, patch domain.KnowledgePatch) (*domain.KnowledgeEntry, error)
	FindByPatterns(ctx context.Context, filter PatternFilter) ([]*domain.KnowledgeEntry, error)
}

// AccumulationJobRepository defines persistence for queued sessions.
type AccumulationJobRepository interface {
	Create(ctx context.Context, job *domain.AccumulationJob) error
	GetByID(ctx context.Context, id string) (*domain.AccumulationJob, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
