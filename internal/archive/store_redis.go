package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/kapu/chesslink-companion/internal/session"
)

const (
	keyIndex      = "archive:index" // list of game ids, most recent first
	keyGamePrefix = "archive:game:"
)

// RedisStore keeps archived games as JSON values with an LPUSH'd id index.
// No TTL: the archive is unbounded by contract.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis archive store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Save(ctx context.Context, g session.ArchivedGame) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyGamePrefix+g.ID, raw, 0).Err(); err != nil {
		return err
	}
	return s.rdb.LPush(ctx, keyIndex, g.ID).Err()
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]session.ArchivedGame, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.rdb.LRange(ctx, keyIndex, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	out := make([]session.ArchivedGame, 0, len(ids))
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyGamePrefix+id).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var g session.ArchivedGame
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode archived game %s: %w", id, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
