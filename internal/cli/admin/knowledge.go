package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/spf13/cobra"
)

func RankCmd() *cobra.Command {
	var (
		segment string
		kind    string
		limit   int
		minConf float64
		output  string
	)

	cmd := &cobra.Command{
		Use:   "rank <industry>",
		Short: "List ranked knowledge for an industry",
		Long:  "List knowledge entries of an industry ordered by effective confidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.RankOptions{Segment: segment, Limit: limit}
			if kind != "" {
				if !domain.IsValidKnowledgeType(domain.KnowledgeType(kind)) {
					return fmt.Errorf("unknown knowledge type %q", kind)
				}
				opts.KnowledgeType = domain.KnowledgeType(kind)
			}
			if cmd.Flags().Changed("min-confidence") {
				opts.MinEffectiveConfidence = &minConf
			}

			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.Ranking.Rank(ctx, args[0], opts)
			if err != nil {
				return fmt.Errorf("failed to rank knowledge: %w", err)
			}
			return printRanked(cmd.OutOrStdout(), output, entries)
		},
	}

	cmd.Flags().StringVarP(&segment, "segment", "s", "", "Filter by segment")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "Filter by knowledge type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().Float64Var(&minConf, "min-confidence", 0, "Minimum effective confidence (defaults to the staleness floor)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")

	return cmd
}

func HierarchyCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "hierarchy <industry>",
		Short: "Show ranked knowledge grouped by segment and problem area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			tree, err := rt.Ranking.Hierarchy(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to build hierarchy: %w", err)
			}
			return printHierarchy(cmd.OutOrStdout(), output, tree)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")

	return cmd
}

func ContextCmd() *cobra.Command {
	var (
		segment      string
		maxChars     int
		tags         []string
		problemAreas []string
	)

	cmd := &cobra.Command{
		Use:   "context <industry>",
		Short: "Print the knowledge digest for an industry",
		Long:  "Print the bounded text digest that is injected into analysis prompts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := service.ContextOptions{Segment: segment, MaxChars: maxChars}
			if len(tags) > 0 || len(problemAreas) > 0 {
				opts.Patterns = &service.PatternRequest{Tags: tags, ProblemAreas: problemAreas}
			}

			out := rt.Context.BuildContext(ctx, args[0], opts)
			if out == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "no knowledge available")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&segment, "segment", "s", "", "Segment to focus on")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "Character budget (defaults to KNOWPOOL_CONTEXT_MAX_CHARS)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Tags for the cross-venture pattern section")
	cmd.Flags().StringSliceVar(&problemAreas, "problem-areas", nil, "Problem areas for the cross-venture pattern section")

	return cmd
}

func ClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Show the knowledge type assigned to a piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kt := domain.Classify(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s (expires after %.0f days)\n", kt, domain.ExpiryDays(kt))
			return nil
		},
	}
}

// accumulateFile is the JSON document accepted by the accumulate command.
type accumulateFile struct {
	Session domain.Session       `json:"session"`
	Subject domain.SubjectEntity `json:"subject"`
}

func AccumulateCmd() *cobra.Command {
	var (
		file  string
		queue bool
	)

	cmd := &cobra.Command{
		Use:   "accumulate",
		Short: "Fold a finished session into the knowledge pool",
		Long:  "Read a {\"session\": ..., \"subject\": ...} document from a file or stdin and accumulate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readAccumulateInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			ctx := context.Background()
			_, rt, err := loadRuntime(ctx, runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if queue {
				job, err := rt.Queue.Enqueue(ctx, input)
				if err != nil {
					return fmt.Errorf("failed to enqueue session: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session queued as job %s\n", job.ID)
				return nil
			}

			written, err := rt.Accumulator.Accumulate(ctx, input)
			if err != nil {
				return fmt.Errorf("failed to accumulate session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accumulated %d entries into %s\n", written, input.Subject.Industry)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Session document path, - for stdin")
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the session for the background worker instead")

	return cmd
}

func readAccumulateInput(stdin io.Reader, path string) (service.AccumulateInput, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return service.AccumulateInput{}, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var doc accumulateFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return service.AccumulateInput{}, fmt.Errorf("failed to parse session document: %w", err)
	}
	if strings.TrimSpace(doc.Subject.Industry) == "" {
		return service.AccumulateInput{}, fmt.Errorf("subject.industry is required")
	}
	return service.AccumulateInput{Session: &doc.Session, Subject: &doc.Subject}, nil
}

type rankedJSON struct {
	ID                  string   `json:"id"`
	KnowledgeType       string   `json:"knowledge_type"`
	Title               string   `json:"title"`
	Content             string   `json:"content"`
	Segment             string   `json:"segment,omitempty"`
	ProblemArea         string   `json:"problem_area,omitempty"`
	Confidence          float64  `json:"confidence"`
	FreshnessScore      float64  `json:"freshness_score"`
	EffectiveConfidence float64  `json:"effective_confidence"`
	ExtractionCount     int      `json:"extraction_count"`
	Tags                []string `json:"tags,omitempty"`
	LastVerifiedAt      string   `json:"last_verified_at"`
}

func toRankedJSON(entries []*domain.RankedEntry) []rankedJSON {
	out := make([]rankedJSON, len(entries))
	for i, e := range entries {
		out[i] = rankedJSON{
			ID:                  e.ID,
			KnowledgeType:       string(e.KnowledgeType),
			Title:               e.Title,
			Content:             e.Content,
			Segment:             e.Segment,
			ProblemArea:         e.ProblemArea,
			Confidence:          e.Confidence,
			FreshnessScore:      e.FreshnessScore,
			EffectiveConfidence: e.EffectiveConfidence,
			ExtractionCount:     e.ExtractionCount,
			Tags:                e.Tags,
			LastVerifiedAt:      e.LastVerifiedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return out
}

func printRanked(w io.Writer, format string, entries []*domain.RankedEntry) error {
	if format == "json" {
		return writeJSON(w, toRankedJSON(entries))
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}
	fmt.Fprintf(w, "%-12s %-5s %-5s %s\n", "TYPE", "EFF", "CONF", "TITLE")
	for _, e := range entries {
		fmt.Fprintf(w, "%-12s %.2f  %.2f  %s\n", e.KnowledgeType, e.EffectiveConfidence, e.Confidence, e.Title)
	}
	return nil
}

func printHierarchy(w io.Writer, format string, tree service.Hierarchy) error {
	if format == "json" {
		out := make(map[string]map[string][]rankedJSON, len(tree))
		for segment, areas := range tree {
			out[segment] = make(map[string][]rankedJSON, len(areas))
			for area, entries := range areas {
				out[segment][area] = toRankedJSON(entries)
			}
		}
		return writeJSON(w, out)
	}

	if len(tree) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return nil
	}
	for _, segment := range sortedKeys(tree) {
		fmt.Fprintf(w, "%s\n", segment)
		areas := tree[segment]
		for _, area := range sortedKeys(areas) {
			fmt.Fprintf(w, "  %s\n", area)
			for _, e := range areas[area] {
				fmt.Fprintf(w, "    [%s] %s (%.2f)\n", e.KnowledgeType, e.Title, e.EffectiveConfidence)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
