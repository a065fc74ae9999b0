package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JewelryBoxAI/jewelrybox-mvp/engine/domain"
)

// RedisStore keeps session history in a Redis list per session, with a TTL so
// abandoned conversations expire on their own.
type RedisStore struct {
	rdb      *redis.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisStore creates a RedisStore. ttl <= 0 disables expiry.
func NewRedisStore(rdb *redis.Client, ttl time.Duration, maxTurns int) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, maxTurns: maxTurns}
}

func sessionKey(sessionID string) string {
	return "chat:history:" + sessionID
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg domain.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("sessions: marshal message: %w", err)
	}

	key := sessionKey(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sessions: append %s: %w", sessionID, err)
	}
	return nil
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]domain.Message, error) {
	raw, err := s.rdb.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("sessions: history %s: %w", sessionID, err)
	}
	msgs := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			continue // skip corrupt entries rather than losing the session
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessions: clear %s: %w", sessionID, err)
	}
	return nil
}
