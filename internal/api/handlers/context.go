package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/knowpool/internal/api"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/go-chi/chi/v5"
)

// maxContextChars bounds the budget a caller may ask for.
const maxContextChars = 100000

type ContextBuilder interface {
	BuildContext(ctx context.Context, industry string, opts service.ContextOptions) string
}

type ContextHandler struct {
	builder ContextBuilder
}

func NewContextHandler(builder ContextBuilder) *ContextHandler {
	return &ContextHandler{builder: builder}
}

type PatternContextRequest struct {
	Segment      string   `json:"segment" validate:"max=100"`
	Tags         []string `json:"tags" validate:"max=50,dive,max=64"`
	ProblemAreas []string `json:"problemAreas" validate:"max=50,dive,max=100"`
	MaxChars     int      `json:"maxChars" validate:"gte=0,lte=100000"`
}

type ContextResponse struct {
	Industry string `json:"industry"`
	Context  string `json:"context"`
	Chars    int    `json:"chars"`
}

// Get handles GET /context/{industry}. The digest is plain text unless the
// client asks for JSON.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	industry := strings.TrimSpace(chi.URLParam(r, "industry"))
	if industry == "" {
		api.Error(w, http.StatusBadRequest, "industry is required")
		return
	}

	q := r.URL.Query()
	opts := service.ContextOptions{Segment: q.Get("segment")}

	if v := q.Get("max_chars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxContextChars {
			api.Error(w, http.StatusBadRequest, "max_chars must be a positive integer up to 100000")
			return
		}
		opts.MaxChars = n
	}

	tags := splitList(q.Get("tags"))
	areas := splitList(q.Get("problem_areas"))
	if len(tags) > 0 || len(areas) > 0 {
		opts.Patterns = &service.PatternRequest{Tags: tags, ProblemAreas: areas}
	}

	h.write(w, r, industry, h.builder.BuildContext(r.Context(), industry, opts))
}

// Patterns handles POST /context/{industry}/patterns.
func (h *ContextHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	industry := strings.TrimSpace(chi.URLParam(r, "industry"))
	if industry == "" {
		api.Error(w, http.StatusBadRequest, "industry is required")
		return
	}

	var req PatternContextRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	out := h.builder.BuildContext(r.Context(), industry, service.ContextOptions{
		Segment:  req.Segment,
		MaxChars: req.MaxChars,
		Patterns: &service.PatternRequest{Tags: req.Tags, ProblemAreas: req.ProblemAreas},
	})
	h.write(w, r, industry, out)
}

func (h *ContextHandler) write(w http.ResponseWriter, r *http.Request, industry, out string) {
	if wantsJSON(r) {
		api.Success(w, http.StatusOK, ContextResponse{
			Industry: industry,
			Context:  out,
			Chars:    utf8.RuneCountInString(out),
		})
		return
	}
	api.Text(w, http.StatusOK, out)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") || r.URL.Query().Get("format") == "json"
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
