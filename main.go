// main.go
//
// Entrypoint for the MindMaster server.
// Responsibilities:
//   - Load configuration (.env in development, then the environment).
//   - Configure zerolog (level, console output outside production).
//   - Open SQLite and apply migrations.
//   - Wire the puzzle generator, session store, accounts, leaderboard
//     (optionally cached in Redis) and the HTTP server.
//   - Sweep idle sessions and shut down gracefully on SIGINT/SIGTERM.

package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/mindmaster/internal/auth"
	"github.com/robalobadob/mindmaster/internal/config"
	"github.com/robalobadob/mindmaster/internal/httpserver"
	"github.com/robalobadob/mindmaster/internal/puzzle"
	"github.com/robalobadob/mindmaster/internal/scores"
	"github.com/robalobadob/mindmaster/internal/store"
	"github.com/robalobadob/mindmaster/internal/users"
	"github.com/robalobadob/mindmaster/internal/words"
)

const (
	sessionIdle   = 30 * time.Minute
	sweepInterval = time.Minute
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	db, err := openDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := migrateUp(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	bank, err := words.Load(cfg.WordsFile, cfg.RiddlesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	hc := &http.Client{Timeout: cfg.UpstreamTimeout}
	gen := puzzle.NewGenerator(
		rand.NewSource(seed),
		bank,
		puzzle.NewHeartClient(cfg.PuzzleAPIURL, hc),
		puzzle.NewTriviaClient(cfg.TriviaAPIURL, hc),
	)

	var board scores.Board = scores.NewStore(db)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		board = scores.NewCached(board, rdb, cfg.LeaderboardCacheTTL)
		log.Info().Str("addr", opts.Addr).Msg("leaderboard cache enabled")
	}

	sessions := store.NewMemoryStore()
	srv := httpserver.New(httpserver.Deps{
		Puzzles:        gen,
		Sessions:       sessions,
		Users:          users.NewRepo(db),
		Scores:         board,
		Tokens:         auth.NewTokens(cfg.JWTSecret, cfg.JWTExpires),
		AllowedOrigins: cfg.AllowedOrigins(),
		SecureCookies:  cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go sweep(ctx, srv)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Int64("seed", seed).Msg("starting mindmaster")
		if err := srv.Start(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("server exited")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("bye")
}

// sweep settles and drops sessions nobody has touched for sessionIdle.
func sweep(ctx context.Context, srv *httpserver.Server) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := srv.SweepIdle(ctx, sessionIdle); n > 0 {
				log.Debug().Int("count", n).Msg("swept idle sessions")
			}
		}
	}
}
