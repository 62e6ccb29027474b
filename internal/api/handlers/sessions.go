package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/knowpool/internal/api"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/go-chi/chi/v5"
)

type SessionAccumulator interface {
	Accumulate(ctx context.Context, input service.AccumulateInput) (int, error)
}

type SessionQueue interface {
	Enqueue(ctx context.Context, input service.AccumulateInput) (*domain.AccumulationJob, error)
	Get(ctx context.Context, id string) (*domain.AccumulationJob, error)
}

type SessionHandler struct {
	accumulator SessionAccumulator
	queue       SessionQueue
}

func NewSessionHandler(accumulator SessionAccumulator, queue SessionQueue) *SessionHandler {
	return &SessionHandler{accumulator: accumulator, queue: queue}
}

type SessionPayload struct {
	ID         string                 `json:"id" validate:"max=200"`
	Topic      string                 `json:"topic" validate:"required_without=Conclusion,max=2000"`
	Conclusion string                 `json:"conclusion" validate:"max=20000"`
	Confidence *float64               `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	Metadata   domain.SessionMetadata `json:"metadata"`
}

type SubjectPayload struct {
	ID          string   `json:"id" validate:"max=200"`
	Industry    string   `json:"industry" validate:"notblank,max=100"`
	Segment     string   `json:"segment" validate:"max=100"`
	ProblemArea string   `json:"problemArea" validate:"max=100"`
	Tags        []string `json:"tags" validate:"max=50,dive,max=64"`
}

type AccumulateRequest struct {
	Session SessionPayload `json:"session"`
	Subject SubjectPayload `json:"subject"`
}

type AccumulateResponse struct {
	Written int `json:"written"`
}

type JobResponse struct {
	ID           string  `json:"id"`
	Status       string  `json:"status"`
	Industry     string  `json:"industry"`
	Retries      int32   `json:"retries"`
	EntriesSaved int     `json:"entriesSaved"`
	Error        string  `json:"error,omitempty"`
	CreatedAt    string  `json:"createdAt"`
	ProcessedAt  *string `json:"processedAt,omitempty"`
}

func (req AccumulateRequest) toInput() service.AccumulateInput {
	return service.AccumulateInput{
		Session: &domain.Session{
			ID:         req.Session.ID,
			Topic:      req.Session.Topic,
			Conclusion: req.Session.Conclusion,
			Confidence: req.Session.Confidence,
			Metadata:   req.Session.Metadata,
		},
		Subject: &domain.SubjectEntity{
			ID:          req.Subject.ID,
			Industry:    strings.TrimSpace(req.Subject.Industry),
			Segment:     req.Subject.Segment,
			ProblemArea: req.Subject.ProblemArea,
			Tags:        req.Subject.Tags,
		},
	}
}

func jobToResponse(j *domain.AccumulationJob) *JobResponse {
	resp := &JobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Industry:     j.Subject.Industry,
		Retries:      j.Retries,
		EntriesSaved: j.EntriesSaved,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if j.ProcessedAt != nil {
		s := j.ProcessedAt.UTC().Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

// Accumulate handles POST /accumulate and folds the session in synchronously.
func (h *SessionHandler) Accumulate(w http.ResponseWriter, r *http.Request) {
	var req AccumulateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	written, err := h.accumulator.Accumulate(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AccumulateResponse{Written: written})
}

// Enqueue handles POST /sessions and leaves the work to the background worker.
func (h *SessionHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req AccumulateRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.toInput())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

// GetJob handles GET /sessions/{id}.
func (h *SessionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.queue.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}
