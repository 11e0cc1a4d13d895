package memoryinfra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verso-labs/companion/pkg/memory"
)

// RedisHistoryStore keeps each conversation's log in a sorted set, the
// entry's ordering token as its score. Live turns use wall-clock
// milliseconds; seed lines use small sequential integers so they always
// sort before real turns.
type RedisHistoryStore struct {
	client *redis.Client
}

// NewRedisHistoryStore creates a Redis-backed history store
func NewRedisHistoryStore(client *redis.Client) memory.HistoryStore {
	return &RedisHistoryStore{
		client: client,
	}
}

// Append stores one turn with a millisecond timestamp token. A score
// collision updates the existing member, which callers accept as
// last-write-wins.
func (s *RedisHistoryStore) Append(ctx context.Context, key memory.ConversationKey, text string) (int64, error) {
	token := time.Now().UnixMilli()

	err := s.client.ZAdd(ctx, key.PartitionKey(), redis.Z{
		Score:  float64(token),
		Member: text,
	}).Err()
	if err != nil {
		return 0, memory.ErrStoreFailed(err).WithDetail("key", key.PartitionKey())
	}

	return token, nil
}

// AppendSeed stores one seed line with a synthetic sequence token
func (s *RedisHistoryStore) AppendSeed(ctx context.Context, key memory.ConversationKey, seq int64, text string) error {
	err := s.client.ZAdd(ctx, key.PartitionKey(), redis.Z{
		Score:  float64(seq),
		Member: text,
	}).Err()
	if err != nil {
		return memory.ErrStoreFailed(err).WithDetail("key", key.PartitionKey())
	}

	return nil
}

// ReadRecent returns the last limit entries ordered ascending by token
func (s *RedisHistoryStore) ReadRecent(ctx context.Context, key memory.ConversationKey, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	// Negative range indexes count from the tail, so this is the limit
	// highest-scored members already in chronological order.
	entries, err := s.client.ZRange(ctx, key.PartitionKey(), int64(-limit), -1).Result()
	if err != nil {
		return nil, memory.ErrStoreFailed(err).WithDetail("key", key.PartitionKey())
	}

	return entries, nil
}

// Exists reports whether the conversation has ever been written to
func (s *RedisHistoryStore) Exists(ctx context.Context, key memory.ConversationKey) (bool, error) {
	n, err := s.client.Exists(ctx, key.PartitionKey()).Result()
	if err != nil {
		return false, memory.ErrStoreFailed(err).WithDetail("key", key.PartitionKey())
	}

	return n > 0, nil
}
