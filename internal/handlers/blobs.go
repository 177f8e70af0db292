package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"visionqa-gateway/internal/blob"
	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/pkg/logging/logging"
)

type BlobInfoResponse struct {
	blob.Info
	Cached bool `json:"cached"`
}

type BlobHandler struct {
	Fetcher *cache.Fetcher
	Blobs   blob.Store
}

func NewBlobHandler(f *cache.Fetcher, blobs blob.Store) *BlobHandler {
	return &BlobHandler{Fetcher: f, Blobs: blobs}
}

// Info handles GET /blobs/*. Properties are cached under the blob category.
func (h *BlobHandler) Info(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	name := chi.URLParam(r, "*")
	if name == "" {
		writeError(w, http.StatusBadRequest, "blob name is required")
		return
	}

	info, cached, err := cache.Fetch(ctx, h.Fetcher, cache.BlobInfo, cache.BlobInfo.Key(name), func(ctx context.Context) (blob.Info, error) {
		p, err := h.Blobs.Properties(ctx, name)
		if err != nil {
			if !errors.Is(err, blob.ErrNotFound) {
				metrics.ObserveOrigin("blob", err)
			}
			return blob.Info{}, err
		}
		metrics.ObserveOrigin("blob", nil)
		return *p, nil
	})
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "blob not found")
			return
		}
		logger.Error("blob properties failed", zap.String("blob_name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BlobInfoResponse{Info: info, Cached: cached})
}
