// internal/httpserver/routes_session.go
//
// Puzzle and play-session routes, mounted under /api with optional auth.
//   - GET  /api/puzzle                → one generated puzzle (stateless)
//   - POST /api/session               → start a run and load its first puzzle
//   - GET  /api/session/{id}          → current state, after applying elapsed time
//   - POST /api/session/{id}/next     → (re)load a puzzle between rounds
//   - POST /api/session/{id}/answer   → submit {answer} or {choice}
//   - POST /api/session/{id}/quit     → end the run
//
// The round timer runs on wall-clock time: every request first catches the
// session up on whole seconds elapsed since its last tick.
// A run started with a valid token reports its final score to the
// leaderboard exactly once, on game over or quit. Guest runs never do.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/mindmaster/internal/game"
	"github.com/robalobadob/mindmaster/internal/metrics"
	"github.com/robalobadob/mindmaster/internal/puzzle"
	"github.com/robalobadob/mindmaster/internal/store"
)

const msgPuzzleFailed = "⚠️ Failed to load puzzle."

// puzzleView is the client-facing round; the solution stays on the server.
type puzzleView struct {
	Mode       puzzle.Mode `json:"mode"`
	Question   string      `json:"question"`
	ImageURL   string      `json:"imageUrl,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	Hint       string      `json:"hint"`
	XPReward   int         `json:"xpReward"`
	GoldReward int         `json:"goldReward"`
	Choices    []string    `json:"choices,omitempty"`
}

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID string `json:"id"`
	game.Stats
	State          game.State  `json:"state"`
	Rounds         int         `json:"rounds"`
	Message        string      `json:"message"`
	AwaitingPuzzle bool        `json:"awaitingPuzzle"`
	Puzzle         *puzzleView `json:"puzzle,omitempty"`
	Ranked         bool        `json:"ranked"`
}

func viewOf(s game.Session) sessionView {
	v := sessionView{
		ID:             s.ID,
		Stats:          s.Stats,
		State:          s.State,
		Rounds:         s.Rounds,
		Message:        s.Message,
		AwaitingPuzzle: s.AwaitingPuzzle(),
		Ranked:         s.UserID != "",
	}
	if p := s.Puzzle; p != nil {
		v.Puzzle = &puzzleView{
			Mode:       p.Mode,
			Question:   p.Question,
			ImageURL:   puzzle.ImageURL(p.Question),
			Caption:    puzzle.Caption(p.Question),
			Hint:       p.Hint,
			XPReward:   p.XPReward,
			GoldReward: p.GoldReward,
			Choices:    p.Choices,
		}
	}
	return v
}

type answerReq struct {
	Answer *string `json:"answer"`
	Choice *int    `json:"choice"`
}

type answerRes struct {
	Result  game.Result `json:"result"`
	Session sessionView `json:"session"`
}

type quitRes struct {
	Score    int  `json:"score"`
	Recorded bool `json:"recorded"`
}

// mountPuzzleRoutes registers /api/puzzle and /api/session/*.
func (s *Server) mountPuzzleRoutes(r chi.Router) {
	r.Get("/puzzle", s.handlePuzzle)
	r.Route("/session", func(r chi.Router) {
		r.Post("/", s.handleStart)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/next", s.handleNext)
		r.Post("/{id}/answer", s.handleAnswer)
		r.Post("/{id}/quit", s.handleQuit)
	})
}

// handlePuzzle returns a freshly generated puzzle, solution included.
func (s *Server) handlePuzzle(w http.ResponseWriter, r *http.Request) {
	p, err := s.nextPuzzle(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to fetch puzzle")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess := game.New(uuid.NewString(), s.deps.Now())
	if me := currentUser(r.Context()); me != nil {
		sess.UserID = me.ID
	}
	if err := s.deps.Sessions.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save session")
		writeErr(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	metrics.SessionsStarted.Inc()

	// A failed first fetch still yields a session; the client retries via /next.
	_ = s.loadPuzzle(r.Context(), sess.ID)

	out, err := s.deps.Sessions.Get(r.Context(), sess.ID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(out))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		snap          game.Session
		ended, report bool
	)
	err := s.deps.Sessions.Update(r.Context(), id, func(sess *game.Session) error {
		wasOver := sess.Finished()
		sess.Advance(s.deps.Now())
		ended = !wasOver && sess.Finished()
		report = ended && claimReport(sess)
		snap = *sess
		return nil
	})
	if s.sessionErr(w, err) {
		return
	}
	if ended {
		s.finish(r.Context(), snap, report, "gameover")
	}
	writeJSON(w, http.StatusOK, viewOf(snap))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var snap game.Session
	err := s.deps.Sessions.Update(r.Context(), id, func(sess *game.Session) error {
		sess.Advance(s.deps.Now())
		snap = *sess
		return nil
	})
	if s.sessionErr(w, err) {
		return
	}
	if snap.Finished() {
		writeErr(w, http.StatusConflict, game.ErrGameOver.Error())
		return
	}
	if snap.AwaitingPuzzle() {
		if err := s.loadPuzzle(r.Context(), id); err != nil {
			writeErr(w, http.StatusBadGateway, "Failed to fetch puzzle")
			return
		}
	}
	out, err := s.deps.Sessions.Get(r.Context(), id)
	if s.sessionErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(out))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body answerReq
	if err := decode(r, &body); err != nil || (body.Answer == nil && body.Choice == nil) {
		writeErr(w, http.StatusBadRequest, "answer or choice required")
		return
	}

	var (
		res           game.Result
		snap          game.Session
		mode          puzzle.Mode
		ended, report bool
	)
	err := s.deps.Sessions.Update(r.Context(), id, func(sess *game.Session) error {
		wasOver := sess.Finished()
		// A timeout that lands before the answer still ends the run here.
		defer func() {
			ended = !wasOver && sess.Finished()
			report = ended && claimReport(sess)
			snap = *sess
		}()
		sess.Advance(s.deps.Now())
		if sess.Puzzle != nil {
			mode = sess.Puzzle.Mode
		}
		var err error
		if body.Choice != nil {
			res, err = sess.SubmitChoice(*body.Choice)
		} else {
			res, err = sess.Submit(*body.Answer)
		}
		return err
	})
	if ended {
		s.finish(r.Context(), snap, report, "gameover")
	}

	var malformed *game.MalformedInputError
	switch {
	case errors.As(err, &malformed):
		metrics.Answers.WithLabelValues(string(mode), "invalid").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "Invalid input!",
			"result":  res,
			"session": viewOf(snap),
		})
		return
	case errors.Is(err, game.ErrBadChoice):
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, game.ErrGameOver), errors.Is(err, game.ErrNoPuzzle):
		writeErr(w, http.StatusConflict, err.Error())
		return
	case s.sessionErr(w, err):
		return
	}
	metrics.Answers.WithLabelValues(string(mode), string(res.Outcome)).Inc()

	if res.Outcome == game.OutcomeCorrect {
		_ = s.loadPuzzle(r.Context(), id)
		if out, err := s.deps.Sessions.Get(r.Context(), id); err == nil {
			snap = out
		}
	}
	writeJSON(w, http.StatusOK, answerRes{Result: res, Session: viewOf(snap)})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var (
		snap            game.Session
		score           int
		wasOver, report bool
	)
	err := s.deps.Sessions.Update(r.Context(), id, func(sess *game.Session) error {
		wasOver = sess.Finished()
		score = sess.Quit()
		report = claimReport(sess)
		snap = *sess
		return nil
	})
	if s.sessionErr(w, err) {
		return
	}
	reason := "quit"
	if wasOver {
		reason = ""
	}
	recorded := s.finish(r.Context(), snap, report, reason)
	_ = s.deps.Sessions.Delete(r.Context(), id)
	writeJSON(w, http.StatusOK, quitRes{Score: score, Recorded: recorded})
}

// SweepIdle evicts sessions untouched for idle and settles each one: the
// timer is caught up to now, an unfinished run is ended, and a ranked run
// that never reported writes its score. It returns how many were evicted.
func (s *Server) SweepIdle(ctx context.Context, idle time.Duration) int {
	now := s.deps.Now()
	swept := s.deps.Sessions.Sweep(ctx, now.Add(-idle))
	for i := range swept {
		sess := &swept[i]
		wasOver := sess.Finished()
		sess.Advance(now)
		if !sess.Finished() {
			sess.Quit()
		}
		reason := "expired"
		if wasOver {
			reason = ""
		}
		s.finish(ctx, *sess, claimReport(sess), reason)
	}
	return len(swept)
}

// ------------------------------ helpers ------------------------------------

// claimReport marks a finished ranked session as reported and says whether
// the caller must write the score.
func claimReport(sess *game.Session) bool {
	if sess.UserID == "" || sess.Reported {
		return false
	}
	sess.Reported = true
	return true
}

// finish counts a session ending (reason is empty when it was already
// counted) and writes the score when the caller claimed the report.
func (s *Server) finish(ctx context.Context, snap game.Session, report bool, reason string) bool {
	if reason != "" {
		metrics.SessionsFinished.WithLabelValues(reason).Inc()
		metrics.FinalScores.Observe(float64(snap.Stats.Score))
	}
	if !report {
		return false
	}
	if err := s.deps.Scores.Add(ctx, snap.UserID, snap.Stats.Score); err != nil {
		log.Error().Err(err).Str("session", snap.ID).Str("user", snap.UserID).Msg("record score")
		return false
	}
	metrics.ScoresRecorded.Inc()
	log.Info().Str("session", snap.ID).Int("score", snap.Stats.Score).Msg("score recorded")
	return true
}

// nextPuzzle generates a puzzle and records metrics.
func (s *Server) nextPuzzle(ctx context.Context) (*puzzle.Payload, error) {
	p, err := s.deps.Puzzles.Next(ctx)
	if err != nil {
		provider := "generator"
		var ue *puzzle.UpstreamError
		if errors.As(err, &ue) {
			provider = ue.Provider
		}
		metrics.UpstreamFailures.WithLabelValues(provider).Inc()
		log.Warn().Err(err).Str("provider", provider).Msg("puzzle generation failed")
		return nil, err
	}
	metrics.PuzzlesGenerated.WithLabelValues(string(p.Mode)).Inc()
	return p, nil
}

// loadPuzzle fetches a puzzle outside the store lock and installs it.
// On failure the session keeps its state and shows a retry message.
func (s *Server) loadPuzzle(ctx context.Context, id string) error {
	p, err := s.nextPuzzle(ctx)
	return s.deps.Sessions.Update(ctx, id, func(sess *game.Session) error {
		if err != nil {
			if !sess.Finished() {
				sess.Message = msgPuzzleFailed
			}
			return err
		}
		if !sess.AwaitingPuzzle() {
			return nil
		}
		return sess.SetPuzzle(p, s.deps.Now())
	})
}

// sessionErr writes the response for a store error and reports whether it did.
func (s *Server) sessionErr(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		writeErr(w, http.StatusNotFound, "session not found")
	default:
		log.Error().Err(err).Msg("session update")
		writeErr(w, http.StatusInternalServerError, "session error")
	}
	return true
}
