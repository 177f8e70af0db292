// Package search reads and writes documents in an Azure AI Search index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"visionqa-gateway/internal/document"
	"visionqa-gateway/internal/httpx"
)

const DefaultAPIVersion = "2023-11-01"

// ErrNotFound is returned by GetDocument for unknown keys.
var ErrNotFound = errors.New("search: document not found")

type Index interface {
	UploadDocuments(ctx context.Context, docs []document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
}

type Config struct {
	Endpoint   string
	Key        string
	Index      string
	APIVersion string
	HTTP       httpx.Config
}

type Client struct {
	cfg    Config
	http   *httpx.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	switch {
	case cfg.Endpoint == "":
		return nil, errors.New("search: endpoint is required")
	case cfg.Key == "":
		return nil, errors.New("search: key is required")
	case cfg.Index == "":
		return nil, errors.New("search: index is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("search")

	return &Client{cfg: cfg, http: httpx.New(cfg.HTTP, logger), logger: logger}, nil
}

// Close releases idle upstream connections.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) url(path string) string {
	return c.cfg.Endpoint + "/indexes/" + url.PathEscape(c.cfg.Index) + path +
		"?api-version=" + url.QueryEscape(c.cfg.APIVersion)
}

type indexAction struct {
	Action string `json:"@search.action"`
	document.Document
}

type indexResponse struct {
	Value []struct {
		Key          string `json:"key"`
		Status       bool   `json:"status"`
		ErrorMessage string `json:"errorMessage"`
		StatusCode   int    `json:"statusCode"`
	} `json:"value"`
}

// UploadDocuments merges or inserts docs in one batch. A per-document
// rejection is reported as an error naming the first failing key.
func (c *Client) UploadDocuments(ctx context.Context, docs []document.Document) error {
	if len(docs) == 0 {
		return nil
	}

	batch := struct {
		Value []indexAction `json:"value"`
	}{Value: make([]indexAction, len(docs))}
	for i, d := range docs {
		batch.Value[i] = indexAction{Action: "mergeOrUpload", Document: d}
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("search: marshal batch: %w", err)
	}

	target := c.url("/docs/index")
	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("api-key", c.cfg.Key)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("search: upload: %w", err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		return fmt.Errorf("search: upload: %w", err)
	}

	var out indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("search: decode upload response: %w", err)
	}
	for _, r := range out.Value {
		if !r.Status {
			return fmt.Errorf("search: document %q rejected (%d): %s", r.Key, r.StatusCode, r.ErrorMessage)
		}
	}

	c.logger.Info("documents indexed", zap.Int("count", len(docs)))
	return nil
}

// GetDocument looks a document up by key.
func (c *Client) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	target := c.url("/docs/" + url.PathEscape(id))
	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("api-key", c.cfg.Key)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search: get %q: %w", id, err)
	}
	defer resp.Body.Close()

	if err := httpx.CheckStatus(resp); err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, fmt.Errorf("search: get %q: %w", id, err)
	}

	var doc document.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("search: decode document: %w", err)
	}
	return &doc, nil
}
