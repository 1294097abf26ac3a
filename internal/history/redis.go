package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisHistoryStore implements Store on top of Redis sorted sets, one set
// per (tenant, signature) pair. The score is the event's Unix second
// (coarse, for range queries); the member string embeds the exact
// timestamp plus a random suffix so same-second events never collide.
type RedisHistoryStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisHistoryStore wraps an existing Redis client. ttl <= 0 defaults
// to DefaultTTL (48 hours).
func NewRedisHistoryStore(client *redis.Client, ttl time.Duration) *RedisHistoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisHistoryStore{client: client, ttl: ttl}
}

func (s *RedisHistoryStore) key(tenantID, signature string) string {
	return "history:" + tenantID + ":" + signature
}

func (s *RedisHistoryStore) GetRecent(ctx context.Context, tenantID string, signatures []string, limitPerSig int) (map[string][]time.Time, error) {
	if limitPerSig <= 0 {
		limitPerSig = DefaultLimitPerSignature
	}
	if len(signatures) == 0 {
		return map[string][]time.Time{}, nil
	}

	cutoff := time.Now().Add(-s.ttl)
	cutoffScore := strconv.FormatInt(cutoff.Unix(), 10)

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.StringSliceCmd, len(signatures))
	for _, sig := range signatures {
		cmds[sig] = pipe.ZRevRangeByScore(ctx, s.key(tenantID, sig), &redis.ZRangeBy{
			Min:   cutoffScore,
			Max:   "+inf",
			Count: int64(limitPerSig),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	result := make(map[string][]time.Time, len(signatures))
	for sig, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil && err != redis.Nil {
			continue
		}
		if len(members) == 0 {
			continue
		}
		timestamps := make([]time.Time, 0, len(members))
		for _, m := range members {
			if t, ok := decodeMember(m); ok {
				timestamps = append(timestamps, t)
			}
		}
		sortAscending(timestamps)
		result[sig] = timestamps
	}
	return result, nil
}

func (s *RedisHistoryStore) AppendBatch(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	cutoff := float64(time.Now().Add(-s.ttl).Unix())

	touched := make(map[string]bool)
	for _, item := range items {
		key := s.key(item.TenantID, item.Signature)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(item.Timestamp.Unix()),
			Member: encodeMember(item.Timestamp),
		})
		if !touched[key] {
			pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%f", cutoff))
			pipe.Expire(ctx, key, s.ttl)
			touched[key] = true
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

func encodeMember(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano) + "|" + uuid.NewString()
}

func decodeMember(member string) (time.Time, bool) {
	parts := strings.SplitN(member, "|", 2)
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func sortAscending(ts []time.Time) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].Before(ts[j-1]); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}
