// internal/puzzle/generator.go
//
// Puzzle Mode Generator.
// Responsibilities:
//   - Fetch a base puzzle and pick one of the six modes uniformly at random.
//   - Derive the mode's question, solution, hint and (trivia only) choices.
//   - Draw xp/gold rewards once per payload.
//
// Notes:
//   - All randomness flows through one seeded *rand.Rand so tests can pin it.
//     *rand.Rand is not goroutine-safe, so draws are serialised by mu; the lock
//     is never held across an upstream call.
//   - Mode selection has no memory: the same mode may repeat.

package puzzle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/robalobadob/mindmaster/internal/words"
)

// HeartGlyph is the glyph counted by ModeHeartCount.
const HeartGlyph = "❤️"

// Reward and modifier ranges (inclusive).
const (
	minBoost, maxBoost = 1, 10
	minGain, maxGain   = 2, 6
	minMult, maxMult   = 2, 5
	minXP, maxXP       = 10, 49
	minGold, maxGold   = 5, 24
	triviaChoices      = 4
)

// Hints shown alongside each mode.
const (
	hintAddBoost = "💡 Add the boost value to the solution!"
	hintHearts   = "💡 Count carefully!"
	hintMultiply = "💡 Multiply the original solution by the factor!"
	hintTrivia   = "💡 Pick the right answer!"
	hintRiddle   = "💡 Think outside the box!"
	hintScramble = "💡 Rearrange the letters to form a word!"
)

// Generator turns base puzzles into playable payloads.
type Generator struct {
	base   BaseSource
	trivia TriviaSource
	bank   *words.Bank

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator wires a generator. src seeds every random draw.
func NewGenerator(src rand.Source, bank *words.Bank, base BaseSource, trivia TriviaSource) *Generator {
	return &Generator{
		base:   base,
		trivia: trivia,
		bank:   bank,
		rng:    rand.New(src),
	}
}

// Next fetches a base puzzle and transforms it with a random mode.
func (g *Generator) Next(ctx context.Context) (*Payload, error) {
	if g.base == nil {
		return nil, upstreamErr("puzzle", errors.New("no base source configured"))
	}
	b, err := g.base.FetchBase(ctx)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, err
		}
		return nil, upstreamErr("puzzle", err)
	}
	return g.Generate(ctx, b)
}

// Generate transforms b with a uniformly chosen mode.
func (g *Generator) Generate(ctx context.Context, b Base) (*Payload, error) {
	return g.GenerateMode(ctx, b, g.pickMode())
}

// GenerateMode transforms b with the given mode.
func (g *Generator) GenerateMode(ctx context.Context, b Base, mode Mode) (*Payload, error) {
	if err := b.validate(); err != nil {
		return nil, upstreamErr("puzzle", err)
	}

	p := &Payload{Mode: mode, Carrots: b.Carrots}
	var err error
	switch mode {
	case ModeAddBoost:
		err = g.addBoost(p, b)
	case ModeHeartCount:
		g.heartCount(p, b)
	case ModeMultiplyMadness:
		err = g.multiplyMadness(p, b)
	case ModeTriviaChallenge:
		err = g.triviaChallenge(ctx, p)
	case ModeRiddle:
		g.riddle(p)
	case ModeWordScramble:
		g.wordScramble(p)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return nil, err
	}

	p.XPReward = g.between(minXP, maxXP)
	p.GoldReward = g.between(minGold, maxGold)
	return p, nil
}

// ------------------------------- modes -------------------------------------

func (g *Generator) addBoost(p *Payload, b Base) error {
	s, ok := b.Solution.Int()
	if !ok {
		return upstreamErr("puzzle", fmt.Errorf("non-numeric solution %q", b.Solution.String()))
	}
	n := g.between(minBoost, maxBoost)
	p.Question = fmt.Sprintf("⚔️ Attack Mode! Original puzzle: %s. Add %d to its solution to strike harder!", b.Question, n)
	p.Solution = Number(s + int64(n))
	p.Hint = hintAddBoost
	return nil
}

func (g *Generator) heartCount(p *Payload, b Base) {
	hearts := strings.Count(b.Question, HeartGlyph)
	gain := g.between(minGain, maxGain)
	p.Question = fmt.Sprintf("💖 Healing Round! You found %d hearts. Combine them with %d magic hearts. Total hearts?", hearts, gain)
	p.Solution = Number(int64(hearts + gain))
	p.Hint = hintHearts
}

func (g *Generator) multiplyMadness(p *Payload, b Base) error {
	s, ok := b.Solution.Int()
	if !ok {
		return upstreamErr("puzzle", fmt.Errorf("non-numeric solution %q", b.Solution.String()))
	}
	m := g.between(minMult, maxMult)
	p.Question = fmt.Sprintf("🔥 Power Surge! Puzzle power: \"%s\". Multiply the solution by %d for your ultimate strike!", b.Question, m)
	p.Solution = Number(s * int64(m))
	p.Hint = hintMultiply
	return nil
}

func (g *Generator) triviaChallenge(ctx context.Context, p *Payload) error {
	if g.trivia == nil {
		return upstreamErr("trivia", errors.New("no trivia source configured"))
	}
	t, err := g.trivia.FetchTrivia(ctx)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			return err
		}
		return upstreamErr("trivia", err)
	}
	if err := t.validate(); err != nil {
		return upstreamErr("trivia", err)
	}

	choices := make([]string, 0, triviaChoices)
	choices = append(choices, t.Correct)
	choices = append(choices, t.Incorrect[:triviaChoices-1]...)
	g.shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

	p.Question = "🎮 Trivia Challenge! " + t.Question
	p.Solution = Text(t.Correct)
	p.Hint = hintTrivia
	p.Choices = choices
	return nil
}

func (g *Generator) riddle(p *Payload) {
	r := g.bank.Riddles[g.intn(len(g.bank.Riddles))]
	p.Question = "🧠 Riddle Time! " + r.Question
	p.Solution = Text(r.Answer)
	p.Hint = hintRiddle
}

func (g *Generator) wordScramble(p *Payload) {
	word := g.bank.Words[g.intn(len(g.bank.Words))]
	p.Question = fmt.Sprintf("🔤 Word Scramble! Unscramble this: **%s**", g.Scramble(word))
	p.Solution = Text(word)
	p.Hint = hintScramble
}

// Scramble returns an upper-cased random permutation of word's letters.
func (g *Generator) Scramble(word string) string {
	letters := []rune(strings.ToUpper(word))
	g.shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
	return string(letters)
}

// ------------------------------- random ------------------------------------

func (g *Generator) pickMode() Mode {
	return Modes[g.intn(len(Modes))]
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.intn(hi-lo+1)
}

func (g *Generator) shuffle(n int, swap func(i, j int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rng.Shuffle(n, swap)
}
