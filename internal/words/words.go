// internal/words/words.go
//
// Content banks for the text puzzle modes.
//
// Responsibilities:
//   - Load the scramble word list and the riddle list from files named by the
//     caller, or fall back to the defaults embedded in the assets package.
//   - Normalize entries (scramble words are lowercase a–z, riddles are
//     "question|answer" pairs with both halves non-empty).
//
// Minimums: a usable bank has at least one word and at least MinRiddles riddles.

package words

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/mindmaster/assets"
)

// MinRiddles is the smallest riddle bank accepted.
const MinRiddles = 14

// Riddle is one question/answer pair.
type Riddle struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Bank holds the loaded word and riddle lists. It is read-only after Load.
type Bank struct {
	Words   []string
	Riddles []Riddle
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
	defaultErr  error
)

// Default returns the bank built from the embedded assets.
func Default() (*Bank, error) {
	defaultOnce.Do(func() {
		defaultBank, defaultErr = Load("", "")
	})
	return defaultBank, defaultErr
}

// Load builds a bank. Empty paths use the embedded defaults for that list.
func Load(wordsFile, riddlesFile string) (*Bank, error) {
	var (
		wordLines, riddleLines []string
		err                    error
	)
	if wordsFile != "" {
		wordLines, err = readFile(wordsFile)
	} else {
		wordLines, err = assets.WordsList()
	}
	if err != nil {
		return nil, fmt.Errorf("words: %w", err)
	}
	if riddlesFile != "" {
		riddleLines, err = readFile(riddlesFile)
	} else {
		riddleLines, err = assets.RiddlesList()
	}
	if err != nil {
		return nil, fmt.Errorf("riddles: %w", err)
	}

	b := &Bank{Words: normalizeWords(wordLines)}
	for _, line := range riddleLines {
		if r, ok := parseRiddle(line); ok {
			b.Riddles = append(b.Riddles, r)
		}
	}

	if len(b.Words) == 0 {
		return nil, errors.New("words: scramble list is empty")
	}
	if len(b.Riddles) < MinRiddles {
		return nil, fmt.Errorf("words: need at least %d riddles, have %d", MinRiddles, len(b.Riddles))
	}
	return b, nil
}

// readFile loads one entry per line, skipping blanks and # comments.
func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// normalizeWords lowercases and keeps alphabetic words of two or more letters.
func normalizeWords(lines []string) []string {
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		w := strings.ToLower(strings.TrimSpace(l))
		if len(w) < 2 || !isAlpha(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func parseRiddle(line string) (Riddle, bool) {
	q, a, ok := strings.Cut(line, "|")
	q, a = strings.TrimSpace(q), strings.TrimSpace(a)
	if !ok || q == "" || a == "" {
		return Riddle{}, false
	}
	return Riddle{Question: q, Answer: a}, true
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
