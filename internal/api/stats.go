package api

import (
	"encoding/json"
	"net/http"

	"wanderpod/pkg/tracker"
)

// StatsHandler serves provider usage statistics.
type StatsHandler struct {
	tracker     *tracker.Tracker
	llmFallback []string
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker, fallback []string) *StatsHandler {
	return &StatsHandler{tracker: t, llmFallback: fallback}
}

type ProviderStatsDTO struct {
	CacheHits        int64   `json:"cache_hits"`
	CacheMisses      int64   `json:"cache_misses"`
	APISuccess       int64   `json:"api_success"`
	APIFailures      int64   `json:"api_errors"`
	CharsSynthesized int64   `json:"chars_synthesized"`
	SpendUSD         float64 `json:"spend_usd"`
	HitRate          int64   `json:"hit_rate"`
}

type StatsResponse struct {
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	LLMFallback []string                    `json:"llm_fallback"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Providers:   make(map[string]ProviderStatsDTO),
		LLMFallback: h.llmFallback,
	}

	for provider, stats := range snapshot {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:        stats.CacheHits,
			CacheMisses:      stats.CacheMisses,
			APISuccess:       stats.APISuccess,
			APIFailures:      stats.APIFailures,
			CharsSynthesized: stats.CharsSynthesized,
			SpendUSD:         stats.SpendUSD(),
			HitRate:          hitRate,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
