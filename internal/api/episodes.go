package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"wanderpod/pkg/facts"
	"wanderpod/pkg/model"
	"wanderpod/pkg/narrative"
	"wanderpod/pkg/podcast"
	"wanderpod/pkg/store"
	"wanderpod/pkg/synth"
)

// Generator runs the episode pipeline for one request.
type Generator interface {
	Generate(ctx context.Context, req podcast.Request) (*model.Episode, error)
}

// EpisodeHandler handles episode generation and retrieval endpoints.
type EpisodeHandler struct {
	generator Generator
	episodes  store.EpisodeStore
}

// NewEpisodeHandler creates a new EpisodeHandler.
func NewEpisodeHandler(g Generator, episodes store.EpisodeStore) *EpisodeHandler {
	return &EpisodeHandler{generator: g, episodes: episodes}
}

// HandleGenerate handles POST /api/episodes.
func (h *EpisodeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req podcast.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	episode, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.writeGenerateError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(episode)
}

// writeGenerateError maps pipeline failures to HTTP statuses.
func (h *EpisodeHandler) writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Episode generation failed", "error", err)

	var unknownTemplate *narrative.ErrUnknownTemplate
	switch {
	case errors.As(err, &unknownTemplate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, facts.ErrContentUnavailable):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, synth.ErrNoEligibleProvider):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, podcast.ErrScriptRejected):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled):
		// Client went away; status code is moot
		http.Error(w, err.Error(), http.StatusRequestTimeout)
	default:
		http.Error(w, "episode generation failed", http.StatusInternalServerError)
	}
}

// HandleGet handles GET /api/episodes/{id}.
func (h *EpisodeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	episode, err := h.episodes.GetEpisode(r.Context(), id)
	if err != nil {
		slog.Error("Episode lookup failed", "id", id, "error", err)
		http.Error(w, "episode lookup failed", http.StatusInternalServerError)
		return
	}
	if episode == nil {
		http.Error(w, "episode not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(episode)
}

// HandleList handles GET /api/episodes?location=...&limit=N.
func (h *EpisodeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	summaries, err := h.episodes.ListEpisodes(r.Context(), location, limit)
	if err != nil {
		slog.Error("Episode listing failed", "error", err)
		http.Error(w, "episode listing failed", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []store.EpisodeSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaries)
}
