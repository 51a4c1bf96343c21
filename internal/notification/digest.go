package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/pkg/logger"
)

const (
	digestKeyPrefix = "notify:digest:"
	// digestTTL bounds how long an unflushed list survives; longer than the
	// weekly flush interval.
	digestTTL = 8 * 24 * time.Hour
)

// RedisDigestBuffer keeps one Redis list per (frequency, user).
type RedisDigestBuffer struct {
	client *redis.Client
}

func NewRedisDigestBuffer(client *redis.Client) *RedisDigestBuffer {
	return &RedisDigestBuffer{client: client}
}

func digestKey(userID string, freq domain.Frequency) string {
	return digestKeyPrefix + string(freq) + ":" + userID
}

func (b *RedisDigestBuffer) Push(ctx context.Context, userID string, freq domain.Frequency, n domain.PendingNotification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode pending notification: %w", err)
	}
	key := digestKey(userID, freq)
	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, data)
		p.Expire(ctx, key, digestTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("push digest entry: %w", err)
	}
	return nil
}

// Drain reads and deletes the list in one MULTI so entries pushed
// concurrently land in the next digest rather than being lost.
func (b *RedisDigestBuffer) Drain(ctx context.Context, userID string, freq domain.Frequency) ([]domain.PendingNotification, error) {
	key := digestKey(userID, freq)
	var lr *redis.StringSliceCmd
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		lr = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("drain digest: %w", err)
	}

	raw := lr.Val()
	out := make([]domain.PendingNotification, 0, len(raw))
	for i, s := range raw {
		var n domain.PendingNotification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			logger.Warn("dropping undecodable digest entry", "user_id", userID, "frequency", string(freq), "index", i, "error", err.Error())
			continue
		}
		out = append(out, n)
	}
	return out, nil
}
