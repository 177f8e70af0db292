// Package ingest turns an uploaded image into an indexed search document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"visionqa-gateway/internal/blob"
	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/document"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/internal/search"
	"visionqa-gateway/internal/vision"
)

var (
	// ErrUnsupportedFormat rejects blobs whose extension is not an image type.
	ErrUnsupportedFormat = errors.New("ingest: unsupported file format")
	ErrAnalysis          = errors.New("ingest: vision analysis failed")
	ErrIndexing          = errors.New("ingest: search indexing failed")
)

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "tiff": {},
}

// IsImage reports whether name has a supported image extension.
func IsImage(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	_, ok := imageExtensions[ext]
	return ok
}

// IndexResult reports the stored search document.
type IndexResult struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	BlobName   string `json:"blob_name"`
}

type Result struct {
	SearchResult  IndexResult      `json:"search_result"`
	VisionContent document.Content `json:"vision_content"`
	// VisionCached is true when the analysis was served from the cache.
	VisionCached bool `json:"vision_cached"`
	Processed    bool `json:"processed"`
}

type Processor struct {
	Blobs   blob.Store
	Vision  vision.Analyzer
	Index   search.Index
	Fetcher *cache.Fetcher
	Logger  *zap.Logger
}

// Process downloads blobName, analyzes it and indexes the flattened
// document. The analysis is cached by image content, so re-uploads of the
// same bytes under any name skip the vision call.
func (p *Processor) Process(ctx context.Context, blobName string) (*Result, error) {
	logger := p.logger()

	if !IsImage(blobName) {
		return nil, ErrUnsupportedFormat
	}

	data, err := p.Blobs.Download(ctx, blobName)
	if err != nil {
		return nil, fmt.Errorf("download blob: %w", err)
	}

	key := cache.VisionAnalysis.Key(cache.ContentHash(data))
	analysis, cached, err := cache.Fetch(ctx, p.Fetcher, cache.VisionAnalysis, key, func(ctx context.Context) (vision.Analysis, error) {
		a, err := p.Vision.Analyze(ctx, data)
		metrics.ObserveOrigin("vision", err)
		if err != nil {
			return vision.Analysis{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	content := document.NewImageContent(blobName, analysis)
	doc := document.Flatten(blobName, content)

	err = p.Index.UploadDocuments(ctx, []document.Document{doc})
	metrics.ObserveOrigin("search_index", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexing, err)
	}

	logger.Info("image processed",
		zap.String("blob_name", blobName),
		zap.String("document_id", doc.ID),
		zap.Bool("vision_cached", cached),
	)

	return &Result{
		SearchResult: IndexResult{
			Status:     "success",
			DocumentID: doc.ID,
			BlobName:   blobName,
		},
		VisionContent: content,
		VisionCached:  cached,
		Processed:     true,
	}, nil
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}
