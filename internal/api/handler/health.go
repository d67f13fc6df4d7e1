package handler

import (
	"context"
	"net/http"

	"github.com/Rrens/text-to-dashboard/internal/api/response"
	"github.com/Rrens/text-to-dashboard/internal/llm"
)

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheFlusher clears cached SQL
type CacheFlusher interface {
	FlushAll(ctx context.Context) (int64, error)
}

// HealthCheck returns a simple health check response
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "ok",
	})
}

// ReadyCheck returns readiness status including the connectivity of deps
func ReadyCheck(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				response.ServiceUnavailable(w, name+" not ready")
				return
			}
		}

		response.OK(w, map[string]string{
			"status": "ready",
		})
	}
}

// ListLLMProviders returns registered LLM providers
func ListLLMProviders(router *llm.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"providers":        router.GetProvidersInfo(),
			"default_provider": router.DefaultProvider(),
		})
	}
}

// FlushCache clears all cached SQL from Redis
func FlushCache(cache CacheFlusher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := cache.FlushAll(r.Context())
		if err != nil {
			response.InternalError(w, "failed to flush cache: "+err.Error())
			return
		}

		response.OK(w, map[string]any{
			"message":      "cache flushed successfully",
			"keys_deleted": deleted,
		})
	}
}
