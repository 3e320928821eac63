// internal/game/engine.go
//
// Session state machine for one player.
// Responsibilities:
//   - Pure Stats transitions: correct answer, wrong answer, timeout,
//     level-up and game-over checks.
//   - Evaluate answers per puzzle mode (text, choice or arithmetic).
//   - Run the 30-second round timer, either tick by tick or by catching up
//     on wall-clock time.
//
// A Session is not safe for concurrent use; callers serialise access.

package game

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robalobadob/mindmaster/internal/expr"
	"github.com/robalobadob/mindmaster/internal/puzzle"
)

// NewStats returns the counters of a fresh session.
func NewStats() Stats {
	return Stats{Lives: StartLives, Level: StartLevel, Timer: RoundSeconds}
}

// ApplyCorrectAnswer credits a solved round. The combo bonus uses the combo
// value from before this answer.
func ApplyCorrectAnswer(s Stats, xpReward, goldReward int) Stats {
	s.Score += PointsPerCorrect
	s.XP += xpReward + s.Combo*ComboXPBonus
	s.Gold += goldReward
	s.Combo++
	return s
}

// ApplyWrongAnswer costs a life and breaks the combo.
func ApplyWrongAnswer(s Stats) Stats {
	s.Lives--
	s.Combo = 0
	return s
}

// ApplyTimeout costs a life and restarts the timer. The combo survives.
func ApplyTimeout(s Stats) Stats {
	s.Lives--
	s.Timer = RoundSeconds
	return s
}

// CheckLevelUp promotes once if xp reached XPPerLevel. Leftover xp is dropped.
func CheckLevelUp(s Stats) (Stats, bool) {
	if s.XP < XPPerLevel {
		return s, false
	}
	s.Level++
	s.XP = 0
	s.Lives++
	return s, true
}

// CheckGameOver reports whether the session has run out of lives.
func CheckGameOver(s Stats) bool {
	return s.Lives <= 0
}

// Session is one run of play, from first puzzle to game over.
type Session struct {
	ID       string          `json:"id"`
	UserID   string          `json:"-"`
	Stats    Stats           `json:"stats"`
	State    State           `json:"state"`
	Puzzle   *puzzle.Payload `json:"-"`
	Rounds   int             `json:"rounds"`
	Message  string          `json:"message"`
	Started  time.Time       `json:"startedAt"`
	LastTick time.Time       `json:"-"`
	Reported bool            `json:"-"`
}

// New starts a session at now with no puzzle loaded.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:       id,
		Stats:    NewStats(),
		State:    StatePlaying,
		Started:  now,
		LastTick: now,
	}
}

// Finished reports whether the session is terminal.
func (s *Session) Finished() bool { return s.State == StateGameOver }

// SetPuzzle loads the next round and restarts the timer.
func (s *Session) SetPuzzle(p *puzzle.Payload, now time.Time) error {
	if s.Finished() {
		return ErrGameOver
	}
	s.Puzzle = p
	s.Stats.Timer = RoundSeconds
	s.LastTick = now
	s.Rounds++
	return nil
}

// AwaitingPuzzle reports whether the last round ended and no new one is loaded.
func (s *Session) AwaitingPuzzle() bool {
	return !s.Finished() && s.Puzzle == nil
}

// Submit evaluates an answer against the current puzzle.
//
// Correct answers end the round (Puzzle becomes nil until SetPuzzle).
// Wrong answers keep the same puzzle for another try.
// Malformed arithmetic input returns *MalformedInputError and changes nothing.
func (s *Session) Submit(answer string) (Result, error) {
	if s.Finished() {
		return s.result("", nil), ErrGameOver
	}
	if s.Puzzle == nil {
		return s.result("", nil), ErrNoPuzzle
	}

	ok, err := Check(s.Puzzle, answer)
	if err != nil {
		ev := Event{Kind: EventInvalid, Emoji: "❌", Text: "Invalid input!"}
		s.Message = ev.Text
		return s.result("", []Event{ev}), err
	}
	if ok {
		return s.correct(), nil
	}
	return s.wrong(), nil
}

// SubmitChoice answers by option index; only trivia rounds have options.
func (s *Session) SubmitChoice(i int) (Result, error) {
	if s.Finished() {
		return s.result("", nil), ErrGameOver
	}
	if s.Puzzle == nil {
		return s.result("", nil), ErrNoPuzzle
	}
	if i < 0 || i >= len(s.Puzzle.Choices) {
		return s.result("", nil), ErrBadChoice
	}
	return s.Submit(s.Puzzle.Choices[i])
}

func (s *Session) correct() Result {
	p := s.Puzzle
	s.Stats = ApplyCorrectAnswer(s.Stats, p.XPReward, p.GoldReward)
	s.Puzzle = nil
	s.Message = fmt.Sprintf("✅ Correct! +%d XP, +%d Gold", p.XPReward, p.GoldReward)
	events := []Event{{Kind: EventCorrect, Emoji: "🌟", Text: s.Message}}

	var leveled bool
	s.Stats, leveled = CheckLevelUp(s.Stats)
	if leveled {
		events = append(events, Event{
			Kind:  EventLevelUp,
			Emoji: "🎉",
			Text:  fmt.Sprintf("Level Up! Welcome to Level %d! +1 ❤️", s.Stats.Level),
		})
	}
	r := s.result(OutcomeCorrect, events)
	r.LeveledUp = leveled
	if leveled {
		r.State = StateLevelingUp
	}
	return r
}

func (s *Session) wrong() Result {
	s.Stats = ApplyWrongAnswer(s.Stats)
	s.Message = "❌ Wrong! Try again!"
	events := []Event{{Kind: EventWrong, Emoji: "💔", Text: "Wrong answer!"}}
	events = s.checkGameOver(events)
	return s.result(OutcomeWrong, events)
}

// Tick advances the round timer by one second. Reaching zero costs a life
// and restarts the timer; the puzzle stays the same.
func (s *Session) Tick() Result {
	if s.Finished() {
		return s.result("", nil)
	}
	s.Stats.Timer--
	if s.Stats.Timer > 0 {
		return s.result("", nil)
	}
	s.Stats = ApplyTimeout(s.Stats)
	s.Message = "⏰ Time's up! Lost a life!"
	events := []Event{{Kind: EventTimeout, Emoji: "⏰", Text: "Time's up! Lost a life!"}}
	events = s.checkGameOver(events)
	return s.result(OutcomeTimeout, events)
}

// Advance applies one Tick per whole second elapsed since the last tick,
// stopping early at game over. It returns the events produced.
func (s *Session) Advance(now time.Time) []Event {
	var events []Event
	for !s.Finished() && now.Sub(s.LastTick) >= time.Second {
		s.LastTick = s.LastTick.Add(time.Second)
		events = append(events, s.Tick().Events...)
	}
	if s.Finished() {
		s.LastTick = now
	}
	return events
}

// Quit ends the session and returns the final score.
func (s *Session) Quit() int {
	s.State = StateGameOver
	s.Puzzle = nil
	return s.Stats.Score
}

func (s *Session) checkGameOver(events []Event) []Event {
	if !CheckGameOver(s.Stats) {
		return events
	}
	s.State = StateGameOver
	s.Puzzle = nil
	s.Message = fmt.Sprintf("💀 Game Over! Final score: %d", s.Stats.Score)
	return append(events, Event{Kind: EventGameOver, Emoji: "💀", Text: "Game Over"})
}

func (s *Session) result(o Outcome, events []Event) Result {
	if events == nil {
		events = []Event{}
	}
	return Result{Outcome: o, State: s.State, Stats: s.Stats, Events: events}
}

// Check reports whether answer solves p.
//
//   - riddleMode, wordScramble: trimmed, case-insensitive text match.
//   - triviaChallenge: the chosen option must equal the solution exactly.
//   - arithmetic modes: answer is evaluated with expr and compared exactly;
//     unparsable input is a *MalformedInputError.
func Check(p *puzzle.Payload, answer string) (bool, error) {
	switch {
	case p.Mode == puzzle.ModeTriviaChallenge:
		return answer == p.Solution.String(), nil
	case p.Mode.Numeric():
		want, ok := p.Solution.Rat()
		if !ok {
			return false, fmt.Errorf("puzzle %s has non-numeric solution %q", p.Mode, p.Solution.String())
		}
		eq, err := expr.Equals(answer, want)
		if errors.Is(err, expr.ErrMalformed) {
			return false, &MalformedInputError{Input: answer, Err: err}
		}
		return eq, err
	default:
		return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(p.Solution.String())), nil
	}
}
