package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per external provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Counter fields are accessed atomically; SpendMicroUSD stores the
// accumulated spend in millionths of a dollar so it fits an int64.
type ProviderStats struct {
	CacheHits        int64
	CacheMisses      int64
	APISuccess       int64
	APIFailures      int64
	CharsSynthesized int64
	SpendMicroUSD    int64
}

// SpendUSD returns the accumulated spend in dollars.
func (s *ProviderStats) SpendUSD() float64 {
	return float64(atomic.LoadInt64(&s.SpendMicroUSD)) / 1e6
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheHits, 1)
}

func (t *Tracker) TrackCacheMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheMisses, 1)
}

func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackSynthesis records a completed synthesis call: character volume
// and the spend it implies at the provider's per-character rate.
func (t *Tracker) TrackSynthesis(provider string, chars int, costPerChar float64) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.CharsSynthesized, int64(chars))
	atomic.AddInt64(&s.SpendMicroUSD, int64(float64(chars)*costPerChar*1e6))
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:        atomic.LoadInt64(&v.CacheHits),
			CacheMisses:      atomic.LoadInt64(&v.CacheMisses),
			APISuccess:       atomic.LoadInt64(&v.APISuccess),
			APIFailures:      atomic.LoadInt64(&v.APIFailures),
			CharsSynthesized: atomic.LoadInt64(&v.CharsSynthesized),
			SpendMicroUSD:    atomic.LoadInt64(&v.SpendMicroUSD),
		}
	}
	return result
}
