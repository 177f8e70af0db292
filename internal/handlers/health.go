package handlers

import (
	"net/http"

	"visionqa-gateway/internal/cache"
)

type HealthResponse struct {
	Status         string `json:"status"`
	CacheConnected bool   `json:"cache_connected"`
}

// Health reports liveness. A disconnected cache does not make the gateway
// unhealthy.
func Health(c *cache.ResponseCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:         "healthy",
			CacheConnected: c.Connected(),
		})
	}
}
