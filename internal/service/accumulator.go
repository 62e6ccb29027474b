package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
)

// AccumulatorConfig controls the insert-or-merge policy.
type AccumulatorConfig struct {
	DefaultConfidence float64
	ReinforcementStep float64
}

// DefaultAccumulatorConfig returns the default merge policy.
func DefaultAccumulatorConfig() AccumulatorConfig {
	return AccumulatorConfig{
		DefaultConfidence: domain.DefaultConfidence,
		ReinforcementStep: domain.ReinforcementStep,
	}
}

// AccumulateInput is a finished session and the venture it analysed.
type AccumulateInput struct {
	Session *domain.Session
	Subject *domain.SubjectEntity
}

// Accumulator folds facts extracted from finished sessions into the store.
type Accumulator struct {
	store   KnowledgeStore
	cfg     AccumulatorConfig
	uuidGen UUIDGenerator
	now     func() time.Time
}

// NewAccumulator creates an Accumulator with the default merge policy
func NewAccumulator(store KnowledgeStore) *Accumulator {
	return NewAccumulatorWithConfig(store, DefaultAccumulatorConfig(), &DefaultUUIDGenerator{})
}

// NewAccumulatorWithConfig creates an Accumulator with explicit configuration.
func NewAccumulatorWithConfig(store KnowledgeStore, cfg AccumulatorConfig, uuidGen UUIDGenerator) *Accumulator {
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = domain.DefaultConfidence
	}
	if cfg.ReinforcementStep <= 0 {
		cfg.ReinforcementStep = domain.ReinforcementStep
	}
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}
	return &Accumulator{store: store, cfg: cfg, uuidGen: uuidGen, now: time.Now}
}

// Accumulate extracts candidate facts from the session and upserts each one.
// It returns the number of candidates written. A failing candidate is logged and
// skipped; the error is non-nil only when every candidate failed.
func (a *Accumulator) Accumulate(ctx context.Context, input AccumulateInput) (int, error) {
	if input.Session == nil || input.Subject == nil || strings.TrimSpace(input.Subject.Industry) == "" || a.store == nil {
		return 0, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "Accumulator.Accumulate", telemetry.SpanAttributes{
		Industry:  input.Subject.Industry,
		Segment:   input.Subject.Segment,
		Operation: "accumulate",
	})
	defer span.End()

	candidates := a.extract(input.Session, input.Subject)

	written := 0
	var failures []error
	for _, c := range candidates {
		if err := a.upsert(ctx, c); err != nil {
			telemetry.RecordCandidate("failed")
			log.Printf("accumulate: candidate %q (%s) for %s failed: %v", c.Title, c.KnowledgeType, c.Industry, err)
			failures = append(failures, err)
			continue
		}
		telemetry.RecordCandidate("written")
		written++
	}

	if written == 0 && len(failures) > 0 {
		err := domain.NewStoreError("accumulate", errors.Join(failures...))
		span.SetError(err)
		return 0, err
	}
	return written, nil
}

// Upsert applies the merge policy to a single entry, as Accumulate does for
// each extracted candidate. Snapshot imports reuse it: a non-zero
// LastVerifiedAt is kept as the observation time and an ExtractionCount above
// one survives a first insert.
func (a *Accumulator) Upsert(ctx context.Context, entry *domain.KnowledgeEntry) error {
	if a.store == nil || entry == nil {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "Accumulator.Upsert", telemetry.SpanAttributes{
		Industry:      entry.Industry,
		KnowledgeType: string(entry.KnowledgeType),
		Operation:     "upsert",
	})
	defer span.End()

	c := *entry
	c.ID = ""
	if err := a.upsert(ctx, &c); err != nil {
		span.SetError(err)
		return err
	}
	return nil
}

// upsert inserts a first observation or reinforces the existing row. An insert
// that loses a race on the dedup key is retried as a merge.
func (a *Accumulator) upsert(ctx context.Context, c *domain.KnowledgeEntry) error {
	now := a.now().UTC()
	observedAt := now
	if !c.LastVerifiedAt.IsZero() {
		observedAt = c.LastVerifiedAt.UTC()
	}
	key := c.Key()

	existing, err := a.store.FindByKey(ctx, key)
	switch {
	case err == nil:
		return a.merge(ctx, existing, c, observedAt)
	case !errors.Is(err, domain.ErrKnowledgeNotFound):
		return fmt.Errorf("find by key: %w", err)
	}

	entry := domain.NewKnowledgeEntry(c.Industry, c.KnowledgeType, c.Title, c.Content, c.Confidence, now)
	entry.ID = a.uuidGen.NewString()
	entry.LastVerifiedAt = observedAt
	if c.ExtractionCount > 1 {
		entry.ExtractionCount = c.ExtractionCount
	}
	entry.Segment = c.Segment
	entry.ProblemArea = c.ProblemArea
	entry.Tags = c.Tags
	entry.SourceSessionID = c.SourceSessionID
	entry.SourceVentureID = c.SourceVentureID
	if err := domain.ValidateKnowledgeEntry(entry); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid candidate", err)
	}

	_, err = a.store.Insert(ctx, entry)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrKnowledgeAlreadyExists) {
		return fmt.Errorf("insert: %w", err)
	}

	existing, err = a.store.FindByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("find by key after conflict: %w", err)
	}
	return a.merge(ctx, existing, c, observedAt)
}

// merge reinforces existing. The verification time never moves backwards.
func (a *Accumulator) merge(ctx context.Context, existing, c *domain.KnowledgeEntry, observedAt time.Time) error {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	verifiedAt := observedAt
	if existing.LastVerifiedAt.After(verifiedAt) {
		verifiedAt = existing.LastVerifiedAt
	}
	id := existing.ID
	_, err := a.store.Update(ctx, id, domain.KnowledgePatch{
		Content:         c.Content,
		Tags:            tags,
		ConfidenceStep:  a.cfg.ReinforcementStep,
		VerifiedAt:      verifiedAt,
		SourceSessionID: c.SourceSessionID,
		SourceVentureID: c.SourceVentureID,
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	return nil
}

// extract turns a session into candidate entries: one from the topic and
// conclusion, plus one per usable key insight.
func (a *Accumulator) extract(session *domain.Session, subject *domain.SubjectEntity) []*domain.KnowledgeEntry {
	confidence := a.cfg.DefaultConfidence
	if session.Confidence != nil {
		confidence = *session.Confidence
	}

	newCandidate := func(kt domain.KnowledgeType, title, content string, conf float64) *domain.KnowledgeEntry {
		return &domain.KnowledgeEntry{
			Industry:        subject.Industry,
			Segment:         subject.Segment,
			ProblemArea:     subject.ProblemArea,
			KnowledgeType:   kt,
			Title:           domain.TruncateTitle(strings.TrimSpace(title)),
			Content:         strings.TrimSpace(content),
			Confidence:      conf,
			Tags:            subject.Tags,
			SourceSessionID: session.ID,
			SourceVentureID: subject.ID,
		}
	}

	var candidates []*domain.KnowledgeEntry

	topic := strings.TrimSpace(session.Topic)
	conclusion := strings.TrimSpace(session.Conclusion)
	title := topic
	if title == "" {
		title = conclusion
	}
	if title != "" {
		content := conclusion
		if content == "" {
			content = topic
		}
		candidates = append(candidates, newCandidate(domain.Classify(topic+" "+conclusion), title, content, confidence))
	}

	for _, insight := range session.Metadata.KeyInsights {
		if !insight.IsStructured() {
			text := strings.TrimSpace(insight.Text)
			if text == "" {
				continue
			}
			candidates = append(candidates, newCandidate(domain.Classify(text), text, text, confidence))
			continue
		}

		title := strings.TrimSpace(insight.Title)
		content := strings.TrimSpace(insight.Content)
		if title == "" {
			title = content
		}
		if content == "" {
			content = title
		}
		if title == "" {
			continue
		}

		kt := insight.KnowledgeType
		if !domain.IsValidKnowledgeType(kt) {
			kt = domain.Classify(content)
		}
		conf := confidence
		if insight.Confidence != nil {
			conf = *insight.Confidence
		}
		candidates = append(candidates, newCandidate(kt, title, content, conf))
	}

	return candidates
}
