package domain

import (
	"fmt"
	"strings"
	"time"
)

// KnowledgeType represents the category of a knowledge entry. It drives decay.
type KnowledgeType string

const (
	KnowledgeTypeMarketData KnowledgeType = "market_data"
	KnowledgeTypeCompetitor KnowledgeType = "competitor"
	KnowledgeTypePainPoint  KnowledgeType = "pain_point"
	KnowledgeTypeTrend      KnowledgeType = "trend"
	KnowledgeTypeRegulation KnowledgeType = "regulation"
	KnowledgeTypeTechnology KnowledgeType = "technology"
)

// KnowledgeTypes lists every known category.
var KnowledgeTypes = []KnowledgeType{
	KnowledgeTypeMarketData,
	KnowledgeTypeCompetitor,
	KnowledgeTypePainPoint,
	KnowledgeTypeTrend,
	KnowledgeTypeRegulation,
	KnowledgeTypeTechnology,
}

const (
	// MaxTitleLength bounds titles produced from session topics.
	MaxTitleLength = 200
	// DefaultConfidence is used when a candidate carries no confidence of its own.
	DefaultConfidence = 0.5
	// ReinforcementStep is added to confidence on every merge.
	ReinforcementStep = 0.05
	// GeneralBucket groups entries with no segment or problem area.
	GeneralBucket = "general"
)

// KnowledgeEntry is a single fact in the shared pool.
// (Industry, KnowledgeType, Title) identifies the same fact across observations.
type KnowledgeEntry struct {
	ID              string
	Industry        string
	Segment         string
	ProblemArea     string
	KnowledgeType   KnowledgeType
	Title           string
	Content         string
	Confidence      float64
	LastVerifiedAt  time.Time
	ExtractionCount int
	Tags            []string
	SourceSessionID string
	SourceVentureID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KnowledgeKey is the natural dedup key of an entry.
type KnowledgeKey struct {
	Industry      string
	KnowledgeType KnowledgeType
	Title         string
}

// Key returns the dedup key of the entry.
func (e *KnowledgeEntry) Key() KnowledgeKey {
	return KnowledgeKey{Industry: e.Industry, KnowledgeType: e.KnowledgeType, Title: e.Title}
}

// KnowledgePatch describes a merge applied to an existing entry.
// Stores apply the confidence step and the count increment atomically.
type KnowledgePatch struct {
	Content         string
	Tags            []string
	ConfidenceStep  float64
	VerifiedAt      time.Time
	SourceSessionID string
	SourceVentureID string
}

// RankedEntry is a knowledge entry enriched with its read-time scores.
type RankedEntry struct {
	*KnowledgeEntry
	FreshnessScore      float64
	EffectiveConfidence float64
}

// NewKnowledgeEntry creates an entry for a first observation.
func NewKnowledgeEntry(
	industry string,
	knowledgeType KnowledgeType,
	title, content string,
	confidence float64,
	verifiedAt time.Time,
) *KnowledgeEntry {
	return &KnowledgeEntry{
		Industry:        industry,
		KnowledgeType:   knowledgeType,
		Title:           title,
		Content:         content,
		Confidence:      Clamp01(confidence),
		LastVerifiedAt:  verifiedAt,
		ExtractionCount: 1,
		CreatedAt:       verifiedAt,
		UpdatedAt:       verifiedAt,
	}
}

// ValidateKnowledgeEntry validates an entry before it is written.
func ValidateKnowledgeEntry(e *KnowledgeEntry) error {
	if e == nil {
		return fmt.Errorf("knowledge entry cannot be nil")
	}

	if strings.TrimSpace(e.Industry) == "" {
		return fmt.Errorf("knowledge entry Industry is required")
	}

	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("knowledge entry Title is required")
	}

	if !IsValidKnowledgeType(e.KnowledgeType) {
		return fmt.Errorf("knowledge entry KnowledgeType is invalid: %s", e.KnowledgeType)
	}

	if e.ExtractionCount < 1 {
		return fmt.Errorf("knowledge entry ExtractionCount must be at least 1")
	}

	return nil
}

// IsValidKnowledgeType reports whether t is one of the known categories.
func IsValidKnowledgeType(t KnowledgeType) bool {
	switch t {
	case KnowledgeTypeMarketData, KnowledgeTypeCompetitor, KnowledgeTypePainPoint,
		KnowledgeTypeTrend, KnowledgeTypeRegulation, KnowledgeTypeTechnology:
		return true
	}
	return false
}

// TruncateTitle cuts s to MaxTitleLength runes.
func TruncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= MaxTitleLength {
		return s
	}
	return string(r[:MaxTitleLength])
}
