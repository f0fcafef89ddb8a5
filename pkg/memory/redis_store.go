package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"docchat-be/internal/pkg/logger"
	"docchat-be/pkg/docstore"
)

const redisKeyPrefix = "docchat:"

// RedisStore keeps the memory record as a JSON string and the turn log as a
// list trimmed on every append.
type RedisStore struct {
	rdb    *redis.Client
	logger logger.ILogger
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, logger logger.ILogger) *RedisStore {
	return &RedisStore{rdb: rdb, logger: logger}
}

func memoryKey(user string) string {
	return redisKeyPrefix + "memory:" + docstore.SanitizeSession(user)
}

func historyKey(user string) string {
	return redisKeyPrefix + "history:" + docstore.SanitizeSession(user)
}

func (s *RedisStore) Load(ctx context.Context, user string) (*UserMemory, error) {
	data, err := s.rdb.Get(ctx, memoryKey(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get memory: %w", err)
	}
	return decodeMemory(data, user, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, user string, m *UserMemory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := s.rdb.Set(ctx, memoryKey(user), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set memory: %w", err)
	}
	return nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, user string, turn Turn, max int) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	key := historyKey(user)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if max > 0 {
			pipe.LTrim(ctx, key, int64(-max), -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, user string, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.LRange(ctx, historyKey(user), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read history: %w", err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.logger.Warn("MEMORY", "Skipping corrupt history entry", map[string]interface{}{
				"user":  user,
				"error": err.Error(),
			})
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Reset(ctx context.Context, user string) error {
	if err := s.rdb.Del(ctx, memoryKey(user), historyKey(user)).Err(); err != nil {
		return fmt.Errorf("redis reset memory: %w", err)
	}
	return nil
}
