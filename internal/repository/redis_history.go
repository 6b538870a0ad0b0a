package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"purpuria-agent/internal/domain"
)

// redisListAPI is the subset of *redis.Client used for chat history.
type redisListAPI interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// storedTurn is the JSON element kept in the Redis list. The "conteudo" field
// name is shared with data written by earlier deployments.
type storedTurn struct {
	Role    string `json:"role"`
	Content string `json:"conteudo"`
}

// RedisHistory keeps each conversation as an append-only Redis list.
type RedisHistory struct {
	api redisListAPI
}

// NewRedisHistory creates a history store on top of a Redis client.
func NewRedisHistory(api redisListAPI) (*RedisHistory, error) {
	if api == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisHistory{api: api}, nil
}

func chatKey(key domain.ConversationKey) string {
	return fmt.Sprintf("chat:%s:%s", key.UserID, key.ConversationID)
}

// Load returns every turn of the conversation in insertion order.
func (h *RedisHistory) Load(ctx context.Context, key domain.ConversationKey) ([]domain.Turn, error) {
	raw, err := h.api.LRange(ctx, chatKey(key), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: redis history load: %w", err)
	}

	turns := make([]domain.Turn, 0, len(raw))
	for i, item := range raw {
		var st storedTurn
		if err := json.Unmarshal([]byte(item), &st); err != nil {
			return nil, fmt.Errorf("repository: redis history decode item %d: %w", i, err)
		}
		turns = append(turns, domain.Turn{Role: domain.Role(st.Role), Content: st.Content})
	}
	return turns, nil
}

// Append pushes all turns with a single RPUSH so they stay contiguous when
// other requests write to the same conversation.
func (h *RedisHistory) Append(ctx context.Context, key domain.ConversationKey, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		buf, err := json.Marshal(storedTurn{Role: string(t.Role), Content: t.Content})
		if err != nil {
			return fmt.Errorf("repository: redis history encode: %w", err)
		}
		values = append(values, string(buf))
	}
	if err := h.api.RPush(ctx, chatKey(key), values...).Err(); err != nil {
		return fmt.Errorf("repository: redis history append: %w", err)
	}
	return nil
}
