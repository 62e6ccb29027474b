package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/api"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeRanker interface {
	Rank(ctx context.Context, industry string, opts service.RankOptions) ([]*domain.RankedEntry, error)
	Hierarchy(ctx context.Context, industry string) (service.Hierarchy, error)
}

type KnowledgeHandler struct {
	ranker KnowledgeRanker
}

func NewKnowledgeHandler(ranker KnowledgeRanker) *KnowledgeHandler {
	return &KnowledgeHandler{ranker: ranker}
}

type RankedEntryResponse struct {
	ID                  string   `json:"id"`
	Industry            string   `json:"industry"`
	Segment             string   `json:"segment,omitempty"`
	ProblemArea         string   `json:"problemArea,omitempty"`
	KnowledgeType       string   `json:"knowledgeType"`
	Title               string   `json:"title"`
	Content             string   `json:"content"`
	Confidence          float64  `json:"confidence"`
	FreshnessScore      float64  `json:"freshnessScore"`
	EffectiveConfidence float64  `json:"effectiveConfidence"`
	ExtractionCount     int      `json:"extractionCount"`
	Tags                []string `json:"tags"`
	LastVerifiedAt      string   `json:"lastVerifiedAt"`
}

type RankResponse struct {
	Industry string                 `json:"industry"`
	Entries  []*RankedEntryResponse `json:"entries"`
}

type HierarchyResponse struct {
	Industry string                                       `json:"industry"`
	Segments map[string]map[string][]*RankedEntryResponse `json:"segments"`
}

type ClassifyRequest struct {
	Text string `json:"text" validate:"max=10000"`
}

type ClassifyResponse struct {
	KnowledgeType string  `json:"knowledgeType"`
	ExpiryDays    float64 `json:"expiryDays"`
}

func rankedToResponse(e *domain.RankedEntry) *RankedEntryResponse {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return &RankedEntryResponse{
		ID:                  e.ID,
		Industry:            e.Industry,
		Segment:             e.Segment,
		ProblemArea:         e.ProblemArea,
		KnowledgeType:       string(e.KnowledgeType),
		Title:               e.Title,
		Content:             e.Content,
		Confidence:          e.Confidence,
		FreshnessScore:      e.FreshnessScore,
		EffectiveConfidence: e.EffectiveConfidence,
		ExtractionCount:     e.ExtractionCount,
		Tags:                tags,
		LastVerifiedAt:      e.LastVerifiedAt.UTC().Format(time.RFC3339),
	}
}

func rankedListToResponse(entries []*domain.RankedEntry) []*RankedEntryResponse {
	out := make([]*RankedEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = rankedToResponse(e)
	}
	return out
}

// Rank handles GET /knowledge/{industry}.
func (h *KnowledgeHandler) Rank(w http.ResponseWriter, r *http.Request) {
	industry := strings.TrimSpace(chi.URLParam(r, "industry"))
	if industry == "" {
		api.Error(w, http.StatusBadRequest, "industry is required")
		return
	}

	q := r.URL.Query()
	opts := service.RankOptions{Segment: q.Get("segment")}

	if t := q.Get("type"); t != "" {
		kt := domain.KnowledgeType(t)
		if !domain.IsValidKnowledgeType(kt) {
			api.HandleError(w, domain.ErrInvalidKnowledgeType)
			return
		}
		opts.KnowledgeType = kt
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	if v := q.Get("min_confidence"); v != "" {
		floor, err := strconv.ParseFloat(v, 64)
		if err != nil || floor < 0 || floor > 1 {
			api.Error(w, http.StatusBadRequest, "min_confidence must be within [0,1]")
			return
		}
		opts.MinEffectiveConfidence = &floor
	}

	entries, err := h.ranker.Rank(r.Context(), industry, opts)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RankResponse{Industry: industry, Entries: rankedListToResponse(entries)})
}

// Hierarchy handles GET /knowledge/{industry}/hierarchy.
func (h *KnowledgeHandler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	industry := strings.TrimSpace(chi.URLParam(r, "industry"))
	if industry == "" {
		api.Error(w, http.StatusBadRequest, "industry is required")
		return
	}

	tree, err := h.ranker.Hierarchy(r.Context(), industry)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	segments := make(map[string]map[string][]*RankedEntryResponse, len(tree))
	for segment, areas := range tree {
		segments[segment] = make(map[string][]*RankedEntryResponse, len(areas))
		for area, entries := range areas {
			segments[segment][area] = rankedListToResponse(entries)
		}
	}

	api.Success(w, http.StatusOK, HierarchyResponse{Industry: industry, Segments: segments})
}

// Classify handles POST /classify.
func (h *KnowledgeHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	kt := domain.Classify(req.Text)
	api.Success(w, http.StatusOK, ClassifyResponse{KnowledgeType: string(kt), ExpiryDays: domain.ExpiryDays(kt)})
}
