// internal/puzzle/provider.go
//
// HTTP clients for the two upstream puzzle providers.
//   - HeartClient: the heart-counting image puzzle API (base puzzles).
//   - TriviaClient: an Open Trivia DB style API (multiple-choice questions).
//
// Both calls are synchronous and bounded only by the http.Client timeout and
// the request context. No retries; callers may simply ask again.

package puzzle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
)

// BaseSource supplies base puzzles.
type BaseSource interface {
	FetchBase(ctx context.Context) (Base, error)
}

// TriviaSource supplies multiple-choice trivia questions.
type TriviaSource interface {
	FetchTrivia(ctx context.Context) (Trivia, error)
}

// Trivia is a single multiple-choice question.
type Trivia struct {
	Question  string
	Correct   string
	Incorrect []string
}

// UpstreamError reports an unreachable provider or a malformed provider response.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstreamErr(provider string, err error) error {
	return &UpstreamError{Provider: provider, Err: err}
}

// maxBody caps how much of an upstream response is read.
const maxBody = 1 << 20

// getJSON issues a GET and decodes a JSON body into v.
func getJSON(ctx context.Context, hc *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	// The heart API rejects requests without a browser-like agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBody))
		return fmt.Errorf("status %d", res.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// ------------------------------- heart API ---------------------------------

// HeartClient fetches base puzzles.
type HeartClient struct {
	URL  string
	HTTP *http.Client
}

// NewHeartClient returns a client for url using hc (http.DefaultClient if nil).
func NewHeartClient(url string, hc *http.Client) *HeartClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HeartClient{URL: url, HTTP: hc}
}

// FetchBase implements BaseSource.
func (c *HeartClient) FetchBase(ctx context.Context) (Base, error) {
	var b Base
	if err := getJSON(ctx, c.HTTP, c.URL, &b); err != nil {
		return Base{}, upstreamErr("puzzle", err)
	}
	if err := b.validate(); err != nil {
		return Base{}, upstreamErr("puzzle", err)
	}
	return b, nil
}

// ------------------------------- trivia API --------------------------------

// TriviaClient fetches one multiple-choice question per call.
type TriviaClient struct {
	URL  string
	HTTP *http.Client
}

// NewTriviaClient returns a client for url using hc (http.DefaultClient if nil).
func NewTriviaClient(url string, hc *http.Client) *TriviaClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &TriviaClient{URL: url, HTTP: hc}
}

type triviaResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// FetchTrivia implements TriviaSource. Text is HTML-unescaped.
func (c *TriviaClient) FetchTrivia(ctx context.Context) (Trivia, error) {
	var tr triviaResponse
	if err := getJSON(ctx, c.HTTP, c.URL, &tr); err != nil {
		return Trivia{}, upstreamErr("trivia", err)
	}
	if tr.ResponseCode != 0 {
		return Trivia{}, upstreamErr("trivia", fmt.Errorf("response code %d", tr.ResponseCode))
	}
	if len(tr.Results) == 0 {
		return Trivia{}, upstreamErr("trivia", errors.New("no results"))
	}
	r := tr.Results[0]
	t := Trivia{
		Question: strings.TrimSpace(html.UnescapeString(r.Question)),
		Correct:  strings.TrimSpace(html.UnescapeString(r.CorrectAnswer)),
	}
	for _, a := range r.IncorrectAnswers {
		t.Incorrect = append(t.Incorrect, strings.TrimSpace(html.UnescapeString(a)))
	}
	if err := t.validate(); err != nil {
		return Trivia{}, upstreamErr("trivia", err)
	}
	return t, nil
}

// validate requires a question, a correct answer and at least three distractors.
func (t Trivia) validate() error {
	if t.Question == "" {
		return errors.New("missing question")
	}
	if t.Correct == "" {
		return errors.New("missing correct answer")
	}
	if len(t.Incorrect) < 3 {
		return fmt.Errorf("need 4 options, have %d", len(t.Incorrect)+1)
	}
	for _, a := range t.Incorrect {
		if a == "" {
			return errors.New("empty option")
		}
	}
	return nil
}
