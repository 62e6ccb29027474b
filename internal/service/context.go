package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	patternSectionHeader = "## Cross-Venture Patterns"
)

// Ranker is the retrieval dependency of the context assembler.
type Ranker interface {
	Rank(ctx context.Context, industry string, opts RankOptions) ([]*domain.RankedEntry, error)
	RankPatterns(ctx context.Context, q PatternQuery) ([]*domain.RankedEntry, error)
}

// ContextServiceConfig controls context assembly.
type ContextServiceConfig struct {
	MaxChars     int
	PrimaryLimit int
	PatternLimit int
}

// DefaultContextServiceConfig returns the default service configuration.
func DefaultContextServiceConfig() ContextServiceConfig {
	return ContextServiceConfig{
		MaxChars:     2000,
		PrimaryLimit: 30,
		PatternLimit: 10,
	}
}

// PatternRequest asks for a cross-venture section.
type PatternRequest struct {
	Tags         []string
	ProblemAreas []string
}

// ContextOptions controls a single BuildContext call.
type ContextOptions struct {
	Segment  string
	MaxChars int
	Patterns *PatternRequest
}

// PatternContextOptions is the input of BuildContextWithPatterns.
type PatternContextOptions struct {
	Tags         []string
	ProblemAreas []string
	MaxChars     int
}

// ContextService assembles bounded knowledge digests for analysis prompts.
type ContextService struct {
	ranker Ranker
	cfg    ContextServiceConfig
}

// NewContextService creates a new ContextService instance
func NewContextService(ranker Ranker) *ContextService {
	return NewContextServiceWithConfig(ranker, DefaultContextServiceConfig())
}

// NewContextServiceWithConfig creates a new ContextService with explicit configuration.
func NewContextServiceWithConfig(ranker Ranker, cfg ContextServiceConfig) *ContextService {
	def := DefaultContextServiceConfig()
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.PrimaryLimit <= 0 {
		cfg.PrimaryLimit = def.PrimaryLimit
	}
	if cfg.PatternLimit <= 0 {
		cfg.PatternLimit = def.PatternLimit
	}
	return &ContextService{ranker: ranker, cfg: cfg}
}

// BuildContext renders the highest ranked entries of an industry as text no
// longer than the character budget. An optional pattern section follows the
// primary one and shares its budget. It returns "" when nothing qualifies or
// the primary ranking fails.
func (s *ContextService) BuildContext(ctx context.Context, industry string, opts ContextOptions) string {
	ctx, span := telemetry.StartSpan(ctx, "ContextService.BuildContext", telemetry.SpanAttributes{
		Industry:  industry,
		Segment:   opts.Segment,
		Operation: "build_context",
	})
	defer span.End()

	if strings.TrimSpace(industry) == "" || s.ranker == nil {
		return ""
	}

	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = s.cfg.MaxChars
	}

	var primary, patterns []*domain.RankedEntry
	var primaryErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary, primaryErr = s.ranker.Rank(gctx, industry, RankOptions{
			Segment: opts.Segment,
			Limit:   s.cfg.PrimaryLimit,
		})
		return nil
	})
	if opts.Patterns != nil {
		g.Go(func() error {
			var err error
			patterns, err = s.ranker.RankPatterns(gctx, PatternQuery{
				Tags:         opts.Patterns.Tags,
				ProblemAreas: opts.Patterns.ProblemAreas,
				Limit:        s.cfg.PatternLimit,
			})
			if err != nil {
				log.Printf("context: pattern search for %s failed: %v", industry, err)
				telemetry.CaptureError(ctx, err)
				patterns = nil
			}
			return nil
		})
	}
	_ = g.Wait()

	if primaryErr != nil {
		log.Printf("context: ranking %s failed: %v", industry, primaryErr)
		span.SetError(primaryErr)
		return ""
	}
	if len(primary) == 0 {
		return ""
	}

	header := "## Domain Knowledge: " + industry
	if opts.Segment != "" {
		header += " / " + opts.Segment
	}

	d := &digest{budget: maxChars}
	shown := d.fillSection(header, primary, nil)
	if shown == 0 {
		return ""
	}
	if len(patterns) > 0 {
		d.fillSection(patternSectionHeader, patterns, d.ids)
	}

	out := strings.TrimRight(d.b.String(), " \t\r\n")
	telemetry.ObserveContextChars(utf8.RuneCountInString(out))
	return out
}

// BuildContextWithPatterns is BuildContext with a cross-venture section.
func (s *ContextService) BuildContextWithPatterns(ctx context.Context, industry string, opts PatternContextOptions) string {
	return s.BuildContext(ctx, industry, ContextOptions{
		MaxChars: opts.MaxChars,
		Patterns: &PatternRequest{
			Tags:         opts.Tags,
			ProblemAreas: opts.ProblemAreas,
		},
	})
}

// digest accumulates sections against one running character count.
type digest struct {
	b      strings.Builder
	used   int
	budget int
	ids    map[string]struct{}
}

// fillSection appends a header and entry lines in ranked order, stopping at the
// first line that would overflow. The header is written only with its first
// line. Entries already in skip are not repeated. It returns the lines written.
func (d *digest) fillSection(header string, entries []*domain.RankedEntry, skip map[string]struct{}) int {
	if d.ids == nil {
		d.ids = map[string]struct{}{}
	}

	written := 0
	for _, e := range entries {
		if _, dup := skip[e.ID]; dup && e.ID != "" {
			continue
		}
		line := FormatEntryLine(e)

		var chunk string
		if written == 0 {
			chunk = header + "\n" + line
			if d.used > 0 {
				chunk = "\n\n" + chunk
			}
		} else {
			chunk = "\n" + line
		}

		n := utf8.RuneCountInString(chunk)
		if d.used+n > d.budget {
			break
		}
		d.b.WriteString(chunk)
		d.used += n
		d.ids[e.ID] = struct{}{}
		written++
	}
	return written
}

// FormatEntryLine renders one entry as "[category] title (NN%): content".
func FormatEntryLine(e *domain.RankedEntry) string {
	pct := int(math.Round(e.EffectiveConfidence * 100))
	content := strings.Join(strings.Fields(e.Content), " ")
	title := strings.Join(strings.Fields(e.Title), " ")
	return fmt.Sprintf("[%s] %s (%d%%): %s", e.KnowledgeType, title, pct, content)
}
