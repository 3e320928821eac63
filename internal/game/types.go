// internal/game/types.go
//
// Core type definitions for a MindMaster play session.
// Defines:
//   - State: playing / levelingUp / gameOver.
//   - Stats: the scoring counters (score, lives, timer, xp, gold, level, combo).
//   - Event: one line of player feedback emitted by a transition.
//   - Result: what a submission or tick did.

package game

import (
	"errors"
	"fmt"
)

// State is the coarse session state.
// levelingUp is transient: it is reported in a Result but a stored session
// is only ever playing or gameOver.
type State string

const (
	StatePlaying    State = "playing"
	StateLevelingUp State = "levelingUp"
	StateGameOver   State = "gameOver"
)

// Session tuning.
const (
	StartLives       = 3
	StartLevel       = 1
	RoundSeconds     = 30
	PointsPerCorrect = 10
	XPPerLevel       = 100
	ComboXPBonus     = 2
)

// Stats holds the counters shown to the player.
// Lives may dip to zero or below only at the moment the game ends.
type Stats struct {
	Score int `json:"score"`
	Lives int `json:"lives"`
	Timer int `json:"timerSeconds"`
	XP    int `json:"xp"`
	Gold  int `json:"gold"`
	Level int `json:"level"`
	Combo int `json:"combo"`
}

// Outcome classifies a resolved submission.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeTimeout Outcome = "timeout"
)

// EventKind tags feedback events.
type EventKind string

const (
	EventCorrect  EventKind = "correct"
	EventWrong    EventKind = "wrong"
	EventTimeout  EventKind = "timeout"
	EventLevelUp  EventKind = "levelUp"
	EventGameOver EventKind = "gameOver"
	EventInvalid  EventKind = "invalid"
)

// Event is presentation feedback for one transition.
type Event struct {
	Kind  EventKind `json:"kind"`
	Emoji string    `json:"emoji"`
	Text  string    `json:"text"`
}

// Result reports what a single Submit or Tick did.
type Result struct {
	Outcome   Outcome `json:"outcome,omitempty"`
	State     State   `json:"state"`
	LeveledUp bool    `json:"leveledUp"`
	Stats     Stats   `json:"stats"`
	Events    []Event `json:"events"`
}

var (
	// ErrGameOver is returned for any scoring action on a finished session.
	ErrGameOver = errors.New("game over")
	// ErrNoPuzzle is returned when an answer arrives between rounds.
	ErrNoPuzzle = errors.New("no active puzzle")
	// ErrBadChoice is a choice index outside the current options.
	ErrBadChoice = errors.New("choice out of range")
)

// MalformedInputError is an answer that could not be evaluated at all.
// It never costs a life.
type MalformedInputError struct {
	Input string
	Err   error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %v", e.Input, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
