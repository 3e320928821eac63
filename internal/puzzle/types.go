// internal/puzzle/types.go
//
// Core type definitions for puzzle generation.
// Defines:
//   - Mode: the six presentation modes a base puzzle can be turned into.
//   - Solution: a text-or-number answer with JSON that mirrors its kind.
//   - Base: what the upstream puzzle provider returns.
//   - Payload: what the generator hands to clients and sessions.

package puzzle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Mode names a puzzle presentation.
type Mode string

const (
	ModeAddBoost        Mode = "addBoost"
	ModeHeartCount      Mode = "heartCount"
	ModeMultiplyMadness Mode = "multiplyMadness"
	ModeTriviaChallenge Mode = "triviaChallenge"
	ModeRiddle          Mode = "riddleMode"
	ModeWordScramble    Mode = "wordScramble"
)

// Modes lists every mode in selection order.
var Modes = []Mode{
	ModeAddBoost,
	ModeHeartCount,
	ModeMultiplyMadness,
	ModeTriviaChallenge,
	ModeRiddle,
	ModeWordScramble,
}

// Numeric reports whether answers for m are compared as numbers.
func (m Mode) Numeric() bool {
	switch m {
	case ModeAddBoost, ModeHeartCount, ModeMultiplyMadness:
		return true
	}
	return false
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	for _, x := range Modes {
		if x == m {
			return true
		}
	}
	return false
}

// Solution is either an integer or a piece of text.
// Numbers marshal as JSON numbers and text as JSON strings.
type Solution struct {
	text    string
	num     int64
	numeric bool
}

// Number returns a numeric solution.
func Number(n int64) Solution { return Solution{num: n, numeric: true} }

// Text returns a text solution.
func Text(s string) Solution { return Solution{text: s} }

// IsNumeric reports whether the solution holds a number.
func (s Solution) IsNumeric() bool { return s.numeric }

// Int returns the numeric value. Text solutions that spell an integer are
// converted; anything else reports false.
func (s Solution) Int() (int64, bool) {
	if s.numeric {
		return s.num, true
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s.text), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Rat returns the numeric value as an exact rational.
func (s Solution) Rat() (*big.Rat, bool) {
	n, ok := s.Int()
	if !ok {
		return nil, false
	}
	return new(big.Rat).SetInt64(n), true
}

// String renders the solution as text.
func (s Solution) String() string {
	if s.numeric {
		return strconv.FormatInt(s.num, 10)
	}
	return s.text
}

// IsZero reports whether the solution is empty.
func (s Solution) IsZero() bool { return !s.numeric && s.text == "" }

func (s Solution) MarshalJSON() ([]byte, error) {
	if s.numeric {
		return []byte(strconv.FormatInt(s.num, 10)), nil
	}
	return json.Marshal(s.text)
}

func (s *Solution) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = Solution{}
		return nil
	}
	if b[0] == '"' {
		var t string
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		*s = Text(t)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("solution: %w", err)
	}
	i, err := n.Int64()
	if err != nil {
		// Non-integral numbers are kept verbatim as text.
		*s = Text(n.String())
		return nil
	}
	*s = Number(i)
	return nil
}

// Base is a puzzle as returned by the upstream provider.
type Base struct {
	Question string   `json:"question"`
	Solution Solution `json:"solution"`
	Carrots  int      `json:"carrots"`
}

// validate checks the fields every mode relies on.
func (b Base) validate() error {
	if strings.TrimSpace(b.Question) == "" {
		return errors.New("missing question")
	}
	if b.Solution.IsZero() {
		return errors.New("missing solution")
	}
	return nil
}

// Payload is one round of play.
// Choices is only populated for ModeTriviaChallenge.
type Payload struct {
	Mode       Mode     `json:"mode"`
	Question   string   `json:"question"`
	Solution   Solution `json:"solution"`
	Hint       string   `json:"hint"`
	XPReward   int      `json:"xpReward"`
	GoldReward int      `json:"goldReward"`
	Carrots    int      `json:"carrots"`
	Choices    []string `json:"choices,omitempty"`
}

var imageURLRe = regexp.MustCompile(`(?i)https?://\S+\.(png|jpe?g|gif)`)

// ImageURL returns the first image URL embedded in a question, or "".
func ImageURL(question string) string {
	return imageURLRe.FindString(question)
}

// Caption returns the question text with embedded image URLs removed.
func Caption(question string) string {
	return strings.TrimSpace(imageURLRe.ReplaceAllString(question, ""))
}
