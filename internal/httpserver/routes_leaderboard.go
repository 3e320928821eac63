// internal/httpserver/routes_leaderboard.go
//
// Leaderboard routes.
//   - GET  /leaderboard → top 50 {name, score}
//   - POST /leaderboard → record {score} for the caller (gated)

package httpserver

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/mindmaster/internal/metrics"
	"github.com/robalobadob/mindmaster/internal/scores"
)

func (s *Server) mountLeaderboard() {
	s.r.Get("/leaderboard", s.handleLeaderboard)
	s.r.Group(func(r chi.Router) {
		r.Use(s.requireAuth())
		r.Post("/leaderboard", s.handleSubmitScore)
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	top, err := s.deps.Scores.Top(r.Context(), scores.DefaultLimit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		writeErr(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// handleSubmitScore accepts a non-negative whole-number score.
func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r.Context())
	var body struct {
		Score json.RawMessage `json:"score"`
	}
	if err := decode(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json")
		return
	}
	var f float64
	if !isJSONNumber(body.Score) || json.Unmarshal(body.Score, &f) != nil ||
		f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		writeErr(w, http.StatusBadRequest, "Score must be a number")
		return
	}
	if err := s.deps.Scores.Add(r.Context(), me.ID, int(f)); err != nil {
		log.Error().Err(err).Str("user", me.ID).Msg("submit score")
		writeErr(w, http.StatusInternalServerError, "Failed to save score")
		return
	}
	metrics.ScoresRecorded.Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func isJSONNumber(raw json.RawMessage) bool {
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}
