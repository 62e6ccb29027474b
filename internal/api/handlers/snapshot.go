package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/api"
	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/cloo-solutions/knowpool/internal/service"
	"github.com/go-chi/chi/v5"
)

type Snapshotter interface {
	Export(ctx context.Context, industry string) (*service.SnapshotResult, error)
	Import(ctx context.Context, key string) (int, error)
}

type SnapshotHandler struct {
	svc Snapshotter
}

// NewSnapshotHandler creates a SnapshotHandler. A nil service answers 503.
func NewSnapshotHandler(svc Snapshotter) *SnapshotHandler {
	return &SnapshotHandler{svc: svc}
}

type ImportSnapshotRequest struct {
	Key string `json:"key" validate:"notblank,max=1024"`
}

type SnapshotResponse struct {
	Key         string `json:"key"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Entries     int    `json:"entries"`
}

type ImportSnapshotResponse struct {
	Key      string `json:"key"`
	Imported int    `json:"imported"`
}

// Export handles POST /snapshots/{industry}.
func (h *SnapshotHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		api.HandleError(w, domain.ErrStorageNotConfigured)
		return
	}

	industry := strings.TrimSpace(chi.URLParam(r, "industry"))
	if industry == "" {
		api.Error(w, http.StatusBadRequest, "industry is required")
		return
	}

	result, err := h.svc.Export(r.Context(), industry)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, SnapshotResponse{
		Key:         result.Key,
		DownloadURL: result.DownloadURL,
		Entries:     result.Entries,
	})
}

// Import handles POST /snapshots/import.
func (h *SnapshotHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		api.HandleError(w, domain.ErrStorageNotConfigured)
		return
	}

	var req ImportSnapshotRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.HandleError(w, err)
		return
	}

	n, err := h.svc.Import(r.Context(), req.Key)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ImportSnapshotResponse{Key: req.Key, Imported: n})
}
