// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PuzzlesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmaster_puzzles_generated_total",
		Help: "Puzzles served, by mode.",
	}, []string{"mode"})

	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmaster_upstream_failures_total",
		Help: "Failed puzzle generations, by provider.",
	}, []string{"provider"})

	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmaster_answers_total",
		Help: "Evaluated answers, by mode and outcome (correct, wrong, invalid).",
	}, []string{"mode", "outcome"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindmaster_sessions_started_total",
		Help: "Play sessions started.",
	})

	SessionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mindmaster_sessions_finished_total",
		Help: "Play sessions ended, by reason (gameover, quit, expired).",
	}, []string{"reason"})

	ScoresRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mindmaster_scores_recorded_total",
		Help: "Scores written to the leaderboard.",
	})

	FinalScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mindmaster_final_score",
		Help:    "Distribution of final session scores.",
		Buckets: prometheus.LinearBuckets(0, 50, 10),
	})
)
