package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"go.uber.org/zap"

	"visionqa-gateway/internal/blob"
	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/ingest"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/pkg/logging/logging"
)

const unsupportedFormatMessage = "Kindly upload files in image format (e.g., jpg, png, bmp, gif, tiff)."

// Pipeline processes an uploaded blob into a search document.
type Pipeline interface {
	Process(ctx context.Context, blobName string) (*ingest.Result, error)
}

// UploadResult is returned by POST /upload_file/ and cached as upload metadata.
type UploadResult struct {
	Message    string `json:"message"`
	BlobName   string `json:"blob_name"`
	Container  string `json:"container"`
	FileHash   string `json:"file_hash"`
	DocumentID string `json:"document_id"`
	Cached     bool   `json:"cached"`
}

// UploadHandler holds dependencies for the /upload_file/ endpoint.
type UploadHandler struct {
	Fetcher  *cache.Fetcher
	Blobs    blob.Store
	Pipeline Pipeline
}

func NewUploadHandler(f *cache.Fetcher, blobs blob.Store, p Pipeline) *UploadHandler {
	return &UploadHandler{Fetcher: f, Blobs: blobs, Pipeline: p}
}

// Upload handles POST /upload_file/ with a multipart "file" field.
// The same file name and content uploaded again is answered from the cache
// without touching blob storage or the pipeline.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("invalid upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Warn("read upload", zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	name := path.Base(header.Filename)
	if !ingest.IsImage(name) {
		writeError(w, http.StatusBadRequest, unsupportedFormatMessage)
		return
	}

	fileHash := cache.ContentHash(data)
	key := cache.UploadMetadata.Key(name + "_" + fileHash)

	res, cached, err := cache.Fetch(ctx, h.Fetcher, cache.UploadMetadata, key, func(ctx context.Context) (UploadResult, error) {
		return h.store(ctx, name, data, fileHash)
	})
	if err != nil {
		logger.Error("upload failed", zap.String("file_name", name), zap.Error(err))
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, unsupportedFormatMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res.Cached = cached

	logger.Info("upload_decision",
		zap.String("file_name", name),
		zap.String("file_hash", fileHash),
		zap.Bool("cache_hit", cached),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, res)
}

func (h *UploadHandler) store(ctx context.Context, name string, data []byte, fileHash string) (UploadResult, error) {
	err := h.Blobs.Upload(ctx, name, data)
	metrics.ObserveOrigin("blob", err)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload blob: %w", err)
	}

	processed, err := h.Pipeline.Process(ctx, name)
	if err != nil {
		return UploadResult{}, err
	}

	return UploadResult{
		Message:    fmt.Sprintf("File '%s' uploaded successfully!", name),
		BlobName:   name,
		Container:  h.Blobs.Container(),
		FileHash:   fileHash,
		DocumentID: processed.SearchResult.DocumentID,
	}, nil
}
