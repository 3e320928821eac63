package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/mindmaster/internal/auth"
	"github.com/robalobadob/mindmaster/internal/metrics"
	"github.com/robalobadob/mindmaster/internal/puzzle"
	"github.com/robalobadob/mindmaster/internal/scores"
	"github.com/robalobadob/mindmaster/internal/store"
	"github.com/robalobadob/mindmaster/internal/users"
)

// ------------------------------- fakes -------------------------------------

type fakePuzzles struct {
	mu   sync.Mutex
	next func() (*puzzle.Payload, error)
}

func (f *fakePuzzles) Next(context.Context) (*puzzle.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next()
}

func (f *fakePuzzles) set(fn func() (*puzzle.Payload, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = fn
}

func riddle() (*puzzle.Payload, error) {
	return &puzzle.Payload{
		Mode:       puzzle.ModeRiddle,
		Question:   "🧠 Riddle: What has keys but can't open locks?",
		Solution:   puzzle.Text("piano"),
		Hint:       "Think outside the box!",
		XPReward:   20,
		GoldReward: 5,
	}, nil
}

func addBoost() (*puzzle.Payload, error) {
	return &puzzle.Payload{
		Mode:       puzzle.ModeAddBoost,
		Question:   "https://example.test/heart.png + 5",
		Solution:   puzzle.Number(12),
		XPReward:   10,
		GoldReward: 5,
	}, nil
}

func trivia() (*puzzle.Payload, error) {
	return &puzzle.Payload{
		Mode:       puzzle.ModeTriviaChallenge,
		Question:   "❓ Capital of France?",
		Solution:   puzzle.Text("Paris"),
		Choices:    []string{"Rome", "Paris", "Berlin", "Madrid"},
		XPReward:   15,
		GoldReward: 5,
	}, nil
}

func upstreamDown() (*puzzle.Payload, error) {
	return nil, &puzzle.UpstreamError{Provider: "heart", Err: errors.New("connection refused")}
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]*users.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*users.User{}} }

func (f *fakeUsers) Create(_ context.Context, email, hash string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			return nil, users.ErrEmailTaken
		}
	}
	u := &users.User{ID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) UpdateEmail(_ context.Context, id, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email && u.ID != id {
			return users.ErrEmailTaken
		}
	}
	u, ok := f.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Email = email
	return nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

type added struct {
	UserID string
	Score  int
}

type fakeBoard struct {
	mu   sync.Mutex
	adds []added
}

func (f *fakeBoard) Add(_ context.Context, userID string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds = append(f.adds, added{userID, score})
	return nil
}

func (f *fakeBoard) Top(context.Context, int) ([]scores.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []scores.Entry{}
	for _, a := range f.adds {
		out = append(out, scores.Entry{Name: a.UserID, Score: a.Score})
	}
	return out, nil
}

func (f *fakeBoard) all() []added {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]added(nil), f.adds...)
}

// ------------------------------ harness ------------------------------------

type harness struct {
	t       *testing.T
	srv     *Server
	puzzles *fakePuzzles
	users   *fakeUsers
	board   *fakeBoard
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		puzzles: &fakePuzzles{next: riddle},
		users:   newFakeUsers(),
		board:   &fakeBoard{},
		// The memory store stamps activity with the wall clock; start there.
		now: time.Now().UTC().Truncate(time.Second),
	}
	h.srv = New(Deps{
		Puzzles:        h.puzzles,
		Sessions:       store.NewMemoryStore(),
		Users:          h.users,
		Scores:         h.board,
		Tokens:         auth.NewTokens("test-secret", time.Hour),
		AllowedOrigins: []string{"http://localhost:5173"},
		Now:            func() time.Time { return h.now },
	})
	return h
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) register(email string) string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/auth/register", map[string]string{"email": email, "password": "secret1"}, "")
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[tokenRes](h.t, rec).Token
}

func (h *harness) start(token string) sessionView {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/api/session", nil, token)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[sessionView](h.t, rec)
}

func (h *harness) answer(id string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(http.MethodPost, "/api/session/"+id+"/answer", body, "")
}

// ------------------------------- tests -------------------------------------

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPuzzleEndpoint(t *testing.T) {
	h := newHarness(t)
	h.puzzles.set(addBoost)

	rec := h.do(http.MethodGet, "/api/puzzle", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "addBoost", p["mode"])
	assert.EqualValues(t, 12, p["solution"])

	h.puzzles.set(upstreamDown)
	rec = h.do(http.MethodGet, "/api/puzzle", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch puzzle"}`, rec.Body.String())
}

func TestRegisterLoginMe(t *testing.T) {
	h := newHarness(t)
	tok := h.register("Ada@Example.com")

	rec := h.do(http.MethodPost, "/auth/register", map[string]string{"email": "ada@example.com", "password": "secret1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email already registered"}`, rec.Body.String())

	rec = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "wrong!!"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, rec.Body.String())

	rec = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "ada@example.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decodeBody[tokenRes](t, rec).Email)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = h.do(http.MethodGet, "/auth/me", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", decodeBody[authUser](t, rec).Email)

	rec = h.do(http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = h.do(http.MethodGet, "/auth/me", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		email, password, want string
	}{
		{"", "", "Email and password required"},
		{"not-an-email", "secret1", "Invalid email address"},
		{"ada@example.com", "abc", "Password must be at least 6 characters"},
	}
	for _, tc := range cases {
		rec := h.do(http.MethodPost, "/auth/register", map[string]string{"email": tc.email, "password": tc.password}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"`+tc.want+`"}`, rec.Body.String())
	}

	tok := h.register("ada@example.com")
	rec := h.do(http.MethodPut, "/auth/update-password", map[string]string{"newPassword": ""}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"New password is required"}`, rec.Body.String())
}

func TestUpdateEmailAndPassword(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ada@example.com")
	h.register("bob@example.com")

	rec := h.do(http.MethodPut, "/auth/update-email", map[string]string{"newEmail": "bob@example.com"}, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email already in use"}`, rec.Body.String())

	rec = h.do(http.MethodPut, "/auth/update-email", map[string]string{"newEmail": ""}, tok)
	assert.JSONEq(t, `{"error":"New email is required"}`, rec.Body.String())

	rec = h.do(http.MethodPut, "/auth/update-email", map[string]string{"newEmail": "lovelace@example.com"}, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "lovelace@example.com", body["email"])

	rec = h.do(http.MethodPut, "/auth/update-password", map[string]string{"newPassword": "brandnew"}, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/auth/login", map[string]string{"email": "lovelace@example.com", "password": "brandnew"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLeaderboardSubmit(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/leaderboard", map[string]any{"score": 10}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := h.register("ada@example.com")
	for _, bad := range []any{"10", nil, -1, 2.5} {
		rec = h.do(http.MethodPost, "/leaderboard", map[string]any{"score": bad}, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "score %v", bad)
	}

	rec = h.do(http.MethodPost, "/leaderboard", map[string]any{"score": 40}, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/leaderboard", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	top := decodeBody[[]scores.Entry](t, rec)
	require.Len(t, top, 1)
	assert.Equal(t, 40, top[0].Score)
}

func TestSessionStartHidesSolution(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/session", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "piano")

	v := decodeBody[sessionView](t, rec)
	assert.Equal(t, 3, v.Lives)
	assert.Equal(t, 1, v.Level)
	assert.Equal(t, 30, v.Timer)
	assert.Equal(t, 1, v.Rounds)
	assert.False(t, v.Ranked)
	require.NotNil(t, v.Puzzle)
	assert.Equal(t, puzzle.ModeRiddle, v.Puzzle.Mode)
}

func TestSessionCorrectAnswerLoadsNextRound(t *testing.T) {
	h := newHarness(t)
	v := h.start("")
	h.puzzles.set(addBoost)

	rec := h.answer(v.ID, map[string]string{"answer": "  PIANO "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[answerRes](t, rec)
	assert.Equal(t, "correct", string(res.Result.Outcome))
	assert.Equal(t, 10, res.Session.Score)
	assert.Equal(t, 20, res.Session.XP)
	assert.Equal(t, 5, res.Session.Gold)
	assert.Equal(t, 1, res.Session.Combo)
	assert.Equal(t, 2, res.Session.Rounds)
	require.NotNil(t, res.Session.Puzzle)
	assert.Equal(t, puzzle.ModeAddBoost, res.Session.Puzzle.Mode)
	assert.Equal(t, "https://example.test/heart.png", res.Session.Puzzle.ImageURL)

	// Arithmetic answers are evaluated.
	rec = h.answer(v.ID, map[string]string{"answer": "7+5"})
	require.Equal(t, http.StatusOK, rec.Code)
	res = decodeBody[answerRes](t, rec)
	assert.Equal(t, "correct", string(res.Result.Outcome))
	assert.Equal(t, 2, res.Session.Combo)
}

func TestSessionMalformedAnswerCostsNothing(t *testing.T) {
	h := newHarness(t)
	h.puzzles.set(addBoost)
	v := h.start("")

	rec := h.answer(v.ID, map[string]string{"answer": "12)"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody[map[string]json.RawMessage](t, rec)
	var sv sessionView
	require.NoError(t, json.Unmarshal(body["session"], &sv))
	assert.Equal(t, 3, sv.Lives)
	assert.Equal(t, "Invalid input!", sv.Message)
}

func TestSessionGameOverReportsOnce(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ada@example.com")
	v := h.start(tok)
	assert.True(t, v.Ranked)

	var res answerRes
	for i := 0; i < 3; i++ {
		rec := h.answer(v.ID, map[string]string{"answer": "guitar"})
		require.Equal(t, http.StatusOK, rec.Code)
		res = decodeBody[answerRes](t, rec)
		assert.Equal(t, "wrong", string(res.Result.Outcome))
	}
	assert.Equal(t, "gameOver", string(res.Session.State))
	assert.Nil(t, res.Session.Puzzle)
	require.Len(t, h.board.all(), 1)
	assert.Equal(t, 0, h.board.all()[0].Score)

	rec := h.answer(v.ID, map[string]string{"answer": "piano"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/session/"+v.ID+"/quit", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[quitRes](t, rec).Recorded)
	assert.Len(t, h.board.all(), 1)

	rec = h.do(http.MethodGet, "/api/session/"+v.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionQuitRecordsRankedScore(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ada@example.com")
	v := h.start(tok)
	require.Equal(t, http.StatusOK, h.answer(v.ID, map[string]string{"answer": "piano"}).Code)

	rec := h.do(http.MethodPost, "/api/session/"+v.ID+"/quit", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decodeBody[quitRes](t, rec)
	assert.Equal(t, 10, q.Score)
	assert.True(t, q.Recorded)
	require.Len(t, h.board.all(), 1)
	assert.Equal(t, 10, h.board.all()[0].Score)
}

func TestGuestQuitIsNotRecorded(t *testing.T) {
	h := newHarness(t)
	v := h.start("")
	rec := h.do(http.MethodPost, "/api/session/"+v.ID+"/quit", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[quitRes](t, rec).Recorded)
	assert.Empty(t, h.board.all())
}

func TestSessionTimerRunsOnWallClock(t *testing.T) {
	h := newHarness(t)
	v := h.start("")

	h.now = h.now.Add(31 * time.Second)
	rec := h.do(http.MethodGet, "/api/session/"+v.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[sessionView](t, rec)
	assert.Equal(t, 2, got.Lives)
	assert.Equal(t, 29, got.Timer)
	assert.NotNil(t, got.Puzzle, "a timeout keeps the same puzzle")

	h.now = h.now.Add(2 * time.Minute)
	rec = h.do(http.MethodGet, "/api/session/"+v.ID, nil, "")
	got = decodeBody[sessionView](t, rec)
	assert.Equal(t, "gameOver", string(got.State))
	assert.Equal(t, 0, got.Lives)
}

func TestTimeoutBeforeAnswerEndsRankedRun(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ada@example.com")
	v := h.start(tok)

	h.now = h.now.Add(5 * time.Minute)
	rec := h.answer(v.ID, map[string]string{"answer": "piano"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, h.board.all(), 1)
}

func TestTriviaChoice(t *testing.T) {
	h := newHarness(t)
	h.puzzles.set(trivia)
	v := h.start("")
	require.NotNil(t, v.Puzzle)
	assert.Equal(t, []string{"Rome", "Paris", "Berlin", "Madrid"}, v.Puzzle.Choices)

	rec := h.answer(v.ID, map[string]int{"choice": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.answer(v.ID, map[string]int{"choice": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "correct", string(decodeBody[answerRes](t, rec).Result.Outcome))
}

func TestSessionSurvivesUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.puzzles.set(upstreamDown)

	v := h.start("")
	assert.True(t, v.AwaitingPuzzle)
	assert.Nil(t, v.Puzzle)
	assert.Equal(t, msgPuzzleFailed, v.Message)
	assert.Equal(t, 3, v.Lives)

	rec := h.answer(v.ID, map[string]string{"answer": "anything"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/session/"+v.ID+"/next", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h.puzzles.set(riddle)
	rec = h.do(http.MethodPost, "/api/session/"+v.ID+"/next", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[sessionView](t, rec)
	assert.False(t, got.AwaitingPuzzle)
	assert.NotNil(t, got.Puzzle)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t)
	rec := h.answer("missing", map[string]string{"answer": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.answer("missing", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSweepSettlesAbandonedRankedRun(t *testing.T) {
	h := newHarness(t)
	tok := h.register("ada@example.com")
	v := h.start(tok)
	require.Equal(t, http.StatusOK, h.answer(v.ID, map[string]string{"answer": "piano"}).Code)
	h.start("")

	h.now = h.now.Add(31 * time.Minute)
	assert.Equal(t, 2, h.srv.SweepIdle(context.Background(), 30*time.Minute))

	adds := h.board.all()
	require.Len(t, adds, 1)
	assert.Equal(t, 10, adds[0].Score)

	rec := h.do(http.MethodGet, "/api/session/"+v.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepDoesNotRecountFinishedRuns(t *testing.T) {
	h := newHarness(t)
	expired := metrics.SessionsFinished.WithLabelValues("expired")

	over := h.start("")
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, h.answer(over.ID, map[string]string{"answer": "guitar"}).Code)
	}
	h.start("")

	before := testutil.ToFloat64(expired)
	h.now = h.now.Add(31 * time.Minute)
	assert.Equal(t, 2, h.srv.SweepIdle(context.Background(), 30*time.Minute))
	assert.Equal(t, before+1, testutil.ToFloat64(expired))
	assert.Empty(t, h.board.all())
}

func TestSweepKeepsActiveSessions(t *testing.T) {
	h := newHarness(t)
	v := h.start("")
	assert.Zero(t, h.srv.SweepIdle(context.Background(), 30*time.Minute))

	rec := h.do(http.MethodGet, "/api/session/"+v.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
