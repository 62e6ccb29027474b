package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
)

const (
	snapshotContentType = "application/json"
	snapshotPrefix      = "snapshots/"
	defaultExportLimit  = 5000
)

// ObjectStorage is the blob storage used for snapshots.
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

// Snapshot is the exported form of one industry's pool.
type Snapshot struct {
	Industry   string          `json:"industry"`
	ExportedAt time.Time       `json:"exportedAt"`
	Entries    []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one exported knowledge entry.
type SnapshotEntry struct {
	Industry        string               `json:"industry"`
	Segment         string               `json:"segment,omitempty"`
	ProblemArea     string               `json:"problemArea,omitempty"`
	KnowledgeType   domain.KnowledgeType `json:"knowledgeType"`
	Title           string               `json:"title"`
	Content         string               `json:"content"`
	Confidence      float64              `json:"confidence"`
	LastVerifiedAt  time.Time            `json:"lastVerifiedAt"`
	ExtractionCount int                  `json:"extractionCount"`
	Tags            []string             `json:"tags,omitempty"`
	SourceSessionID string               `json:"sourceSessionId,omitempty"`
	SourceVentureID string               `json:"sourceVentureId,omitempty"`
}

// SnapshotResult describes a written snapshot.
type SnapshotResult struct {
	Key         string
	DownloadURL string
	Entries     int
}

// SnapshotService exports pools to object storage and seeds pools from them.
type SnapshotService struct {
	store       KnowledgeStore
	storage     ObjectStorage
	accumulator *Accumulator
	exportLimit int
	now         func() time.Time
}

// NewSnapshotService creates a new SnapshotService instance
func NewSnapshotService(store KnowledgeStore, storage ObjectStorage, accumulator *Accumulator) *SnapshotService {
	return &SnapshotService{
		store:       store,
		storage:     storage,
		accumulator: accumulator,
		exportLimit: defaultExportLimit,
		now:         time.Now,
	}
}

// Export writes every stored entry of an industry, stale ones included.
func (s *SnapshotService) Export(ctx context.Context, industry string) (*SnapshotResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SnapshotService.Export", telemetry.SpanAttributes{
		Industry:  industry,
		Operation: "snapshot_export",
	})
	defer span.End()

	if strings.TrimSpace(industry) == "" {
		return nil, domain.ErrMissingRequiredField
	}
	if s.storage == nil {
		return nil, domain.ErrStorageNotConfigured
	}

	entries, err := s.store.Scan(ctx, ScanFilter{Industry: industry, Limit: s.exportLimit})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStoreError("scan", err)
	}

	now := s.now().UTC()
	snap := Snapshot{Industry: industry, ExportedAt: now, Entries: make([]SnapshotEntry, 0, len(entries))}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, toSnapshotEntry(e))
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := SnapshotKey(industry, now)
	if err := s.storage.PutObject(ctx, key, body, snapshotContentType); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}

	url, err := s.storage.GenerateDownloadURL(ctx, key)
	if err != nil {
		log.Printf("snapshot: no download url for %s: %v", key, err)
	}

	return &SnapshotResult{Key: key, DownloadURL: url, Entries: len(snap.Entries)}, nil
}

// Import replays a snapshot through the merge policy and returns the number
// of entries written.
func (s *SnapshotService) Import(ctx context.Context, key string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "SnapshotService.Import", telemetry.SpanAttributes{
		Operation: "snapshot_import",
	})
	defer span.End()

	if s.storage == nil {
		return 0, domain.ErrStorageNotConfigured
	}

	body, err := s.storage.GetObject(ctx, key)
	if err != nil {
		span.SetError(err)
		return 0, err
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid snapshot", err)
	}

	written := 0
	for _, se := range snap.Entries {
		entry := fromSnapshotEntry(se)
		if err := s.accumulator.Upsert(ctx, entry); err != nil {
			log.Printf("snapshot: entry %q (%s) skipped: %v", se.Title, se.KnowledgeType, err)
			continue
		}
		written++
	}
	return written, nil
}

// SnapshotKey builds the object key for an industry snapshot.
func SnapshotKey(industry string, at time.Time) string {
	slug := strings.ToLower(strings.Join(strings.Fields(industry), "-"))
	return fmt.Sprintf("%s%s/%s.json", snapshotPrefix, slug, at.UTC().Format("20060102T150405Z"))
}

func toSnapshotEntry(e *domain.KnowledgeEntry) SnapshotEntry {
	return SnapshotEntry{
		Industry:        e.Industry,
		Segment:         e.Segment,
		ProblemArea:     e.ProblemArea,
		KnowledgeType:   e.KnowledgeType,
		Title:           e.Title,
		Content:         e.Content,
		Confidence:      e.Confidence,
		LastVerifiedAt:  e.LastVerifiedAt,
		ExtractionCount: e.ExtractionCount,
		Tags:            e.Tags,
		SourceSessionID: e.SourceSessionID,
		SourceVentureID: e.SourceVentureID,
	}
}

func fromSnapshotEntry(se SnapshotEntry) *domain.KnowledgeEntry {
	return &domain.KnowledgeEntry{
		Industry:        se.Industry,
		Segment:         se.Segment,
		ProblemArea:     se.ProblemArea,
		KnowledgeType:   se.KnowledgeType,
		Title:           se.Title,
		Content:         se.Content,
		Confidence:      se.Confidence,
		LastVerifiedAt:  se.LastVerifiedAt,
		ExtractionCount: se.ExtractionCount,
		Tags:            se.Tags,
		SourceSessionID: se.SourceSessionID,
		SourceVentureID: se.SourceVentureID,
	}
}
