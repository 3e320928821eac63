package scores

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// cacheKey is a hash of limit → JSON-encoded []Entry.
const cacheKey = "mindmaster:leaderboard:top"

// Cached fronts a Board with a Redis read-through cache.
// Writes drop the whole cache. Redis failures are logged and the
// underlying Board is used directly.
type Cached struct {
	next Board
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCached(next Board, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, rdb: rdb, ttl: ttl}
}

func (c *Cached) Add(ctx context.Context, userID string, score int) error {
	if err := c.next.Add(ctx, userID, score); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("leaderboard cache invalidate")
	}
	return nil
}

func (c *Cached) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	field := strconv.Itoa(limit)

	raw, err := c.rdb.HGet(ctx, cacheKey, field).Bytes()
	switch {
	case err == nil:
		var out []Entry
		if jerr := json.Unmarshal(raw, &out); jerr == nil {
			return out, nil
		}
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Msg("leaderboard cache read")
	}

	out, err := c.next.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	if b, jerr := json.Marshal(out); jerr == nil {
		_, perr := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, cacheKey, field, b)
			p.Expire(ctx, cacheKey, c.ttl)
			return nil
		})
		if perr != nil {
			log.Warn().Err(perr).Msg("leaderboard cache write")
		}
	}
	return out, nil
}
