package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/document"
	"visionqa-gateway/internal/llm"
	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/internal/search"
	"visionqa-gateway/pkg/logging/logging"
)

const documentPrompt = `You are an AI assistant analyzing visual content.

Caption: %s
Tags: %s
Extracted Text:
%s

User Query: %s

Please summarize what this image or document is about answer the query and suggest its potential purpose or category.
Provide it over bullet list format using bold when appropriate.
Provide elaborate and detailed response only when asked for it.
`

const contentFilteredMessage = "The request was blocked by the content filter."

const generalPrompt = `You are an AI assistant replying to query

user Query: %s

Give a relevant answer to the user query and lead them if they wanted any more assistance with.
`

type QueryRequest struct {
	DocID string `json:"doc_id"`
	Query string `json:"query"`
}

// QueryResponse is returned by POST /openai/ and cached per document and query.
type QueryResponse struct {
	Query          string `json:"query"`
	Caption        string `json:"caption"`
	Tags           string `json:"tags"`
	OCRText        string `json:"ocr_text"`
	OpenAIResponse string `json:"openai_response"`
	Cached         bool   `json:"cached"`
	DocumentID     string `json:"document_id"`
}

type GeneralChatResponse struct {
	Query          string `json:"query"`
	OpenAIResponse string `json:"openai_response"`
}

// QueryHandler answers questions about indexed documents.
type QueryHandler struct {
	Fetcher *cache.Fetcher
	Index   search.Index
	LLM     llm.Client
}

func NewQueryHandler(f *cache.Fetcher, index search.Index, client llm.Client) *QueryHandler {
	return &QueryHandler{Fetcher: f, Index: index, LLM: client}
}

// Query handles POST /openai/.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.DocID == "" {
		writeError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	key := cache.OpenAIResponses.Key(req.DocID + "_" + req.Query)
	resp, cached, err := cache.Fetch(ctx, h.Fetcher, cache.OpenAIResponses, key, func(ctx context.Context) (QueryResponse, error) {
		return h.answer(ctx, req)
	})
	if err != nil {
		logger.Error("query failed", zap.String("document_id", req.DocID), zap.Error(err))
		switch {
		case errors.Is(err, search.ErrNotFound):
			writeError(w, http.StatusNotFound, fmt.Sprintf("document %q not found", req.DocID))
		case errors.Is(err, llm.ErrContentFiltered):
			writeError(w, http.StatusUnprocessableEntity, contentFilteredMessage)
		default:
			writeError(w, http.StatusInternalServerError, "OpenAI processing failed: "+err.Error())
		}
		return
	}
	resp.Cached = cached

	logger.Info("cache_decision",
		zap.String("cache_tier", cache.OpenAIResponses.String()),
		zap.String("document_id", req.DocID),
		zap.Bool("cache_hit", cached),
		zap.Duration("total_latency", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, resp)
}

func (h *QueryHandler) answer(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	doc, err := h.lookupDocument(ctx, req.DocID)
	if err != nil {
		return QueryResponse{}, err
	}

	caption := strings.Join(doc.Metadata.Captions, "|")
	tags := strings.Join(doc.Metadata.Tags, ", ")
	text := strings.Join(doc.Metadata.OCRText, "\n")

	out, err := h.complete(ctx, fmt.Sprintf(documentPrompt, caption, tags, text, req.Query))
	if err != nil {
		return QueryResponse{}, err
	}

	return QueryResponse{
		Query:          req.Query,
		Caption:        caption,
		Tags:           tags,
		OCRText:        text,
		OpenAIResponse: out,
		DocumentID:     req.DocID,
	}, nil
}

// lookupDocument loads a search document, caching it under the search category.
func (h *QueryHandler) lookupDocument(ctx context.Context, id string) (document.Document, error) {
	doc, _, err := cache.Fetch(ctx, h.Fetcher, cache.SearchResults, cache.SearchResults.Key(id), func(ctx context.Context) (document.Document, error) {
		d, err := h.Index.GetDocument(ctx, id)
		if errors.Is(err, search.ErrNotFound) {
			metrics.ObserveOrigin("search_index", nil)
			return document.Document{}, err
		}
		metrics.ObserveOrigin("search_index", err)
		if err != nil {
			return document.Document{}, fmt.Errorf("get document: %w", err)
		}
		return *d, nil
	})
	return doc, err
}

func (h *QueryHandler) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := h.LLM.ChatCompletion(ctx, llm.UserPrompt(prompt))
	metrics.ObserveOrigin("openai", err)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return resp.Text(), nil
}

// GeneralChat handles POST /general_chat/. Answers are never cached.
func (h *QueryHandler) GeneralChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.complete(ctx, fmt.Sprintf(generalPrompt, req.Query))
	if err != nil {
		logger.Error("general chat failed", zap.Error(err))
		if errors.Is(err, llm.ErrContentFiltered) {
			writeError(w, http.StatusUnprocessableEntity, contentFilteredMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, "OpenAI processing failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GeneralChatResponse{Query: req.Query, OpenAIResponse: out})
}
