package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wanderpod/pkg/db"
	"wanderpod/pkg/model"
)

// Store composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	EpisodeStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Episodes ---

func (s *SQLiteStore) SaveEpisode(ctx context.Context, ep *model.Episode) error {
	payload, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("failed to marshal episode: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO episodes (id, location, template, title, payload, quality_score, verdict, provider_id, estimated_cost, audio_format, audio_duration_ms, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, quality_score = excluded.quality_score, verdict = excluded.verdict`,
		ep.ID, ep.Location, string(ep.Script.Template), ep.Script.Title, string(payload),
		ep.Report.OverallScore, string(ep.Report.Verdict),
		ep.Selection.Provider.ID, ep.Selection.EstimatedCost,
		ep.Audio.Format, ep.Audio.Duration.Milliseconds(),
		strings.Join(ep.Audio.Metrics.Degraded, ","),
		ep.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save episode %s: %w", ep.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM episodes WHERE id = ?", id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}

	var ep model.Episode
	if err := json.Unmarshal([]byte(payload), &ep); err != nil {
		return nil, fmt.Errorf("corrupt episode %s: %w", id, err)
	}
	return &ep, nil
}

func (s *SQLiteStore) ListEpisodes(ctx context.Context, location string, limit int) ([]EpisodeSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, location, template, title, quality_score, verdict, provider_id, created_at
		FROM episodes`
	args := []any{}
	if location != "" {
		query += " WHERE location = ?"
		args = append(args, location)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EpisodeSummary
	for rows.Next() {
		var e EpisodeSummary
		if err := rows.Scan(&e.ID, &e.Location, &e.Template, &e.Title, &e.QualityScore, &e.Verdict, &e.ProviderID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- State ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM persistent_state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO persistent_state (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, val)
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM persistent_state WHERE key = ?", key)
	return err
}
