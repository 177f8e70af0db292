package handlers

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"visionqa-gateway/internal/cache"
	"visionqa-gateway/pkg/logging/logging"
)

// AdminTokenHeader carries the token for cache administration.
const AdminTokenHeader = "X-Admin-Token"

type ClearResponse struct {
	Pattern string `json:"pattern"`
	Removed int    `json:"removed"`
}

// CacheAdminHandler exposes cache maintenance. An empty Token leaves the
// endpoint open.
type CacheAdminHandler struct {
	Cache *cache.ResponseCache
	Token string
}

func NewCacheAdminHandler(c *cache.ResponseCache, token string) *CacheAdminHandler {
	return &CacheAdminHandler{Cache: c, Token: token}
}

// Clear handles DELETE /admin/cache?pattern=search:*.
func (h *CacheAdminHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	if h.Token != "" {
		got := r.Header.Get(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		writeError(w, http.StatusBadRequest, "pattern is required")
		return
	}

	res := h.Cache.ClearPattern(ctx, pattern)
	if !res.OK() {
		logger.Warn("cache clear failed", zap.String("pattern", pattern), zap.Error(res.Err))
		writeError(w, http.StatusServiceUnavailable, "cache unavailable")
		return
	}

	logger.Info("cache cleared", zap.String("pattern", pattern), zap.Int("removed", res.Count))
	writeJSON(w, http.StatusOK, ClearResponse{Pattern: pattern, Removed: res.Count})
}
