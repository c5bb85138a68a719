package store

import (
	"context"
	"time"

	"wanderpod/pkg/model"
)

// EpisodeSummary is the listing row for a stored episode. The full
// record is loaded separately via GetEpisode.
type EpisodeSummary struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	Template     string    `json:"template"`
	Title        string    `json:"title"`
	QualityScore float64   `json:"quality_score"`
	Verdict      string    `json:"verdict"`
	ProviderID   string    `json:"provider_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// EpisodeStore handles episode persistence.
type EpisodeStore interface {
	GetEpisode(ctx context.Context, id string) (*model.Episode, error)
	SaveEpisode(ctx context.Context, ep *model.Episode) error
	ListEpisodes(ctx context.Context, location string, limit int) ([]EpisodeSummary, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
