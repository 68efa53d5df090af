package conversations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SpitiusK/SurveyBot-sub016/src/models"
)

// ConversationKeyPrefix namespaces conversation state in Redis. The janitor
// job scans this prefix when reclaiming long-idle states.
const ConversationKeyPrefix = "conversation:"

// RedisStore persists one JSON blob per user. A TTL of twice the session
// timeout acts as a storage-level backstop; the manager's lazy expiry check
// stays authoritative for correctness.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an initialized Redis client. sessionTimeout is the
// manager's inactivity timeout.
func NewRedisStore(client *redis.Client, sessionTimeout time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: 2 * sessionTimeout}
}

func conversationKey(userID string) string {
	return ConversationKeyPrefix + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	data, err := s.client.Get(ctx, conversationKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("redis get conversation state: %w", err)
	}
	var state models.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) Set(ctx context.Context, userID string, state *models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := s.client.Set(ctx, conversationKey(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set conversation state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, conversationKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete conversation state: %w", err)
	}
	return nil
}
