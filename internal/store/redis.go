package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markerKeyPrefix  = "notif:lastseen:"
	chargedKeyPrefix = "notif:charged:"
)

// MarkerPrecision is the resolution markers are stored at. It matches
// Postgres timestamptz and stays exact in the Lua number type.
const MarkerPrecision = time.Microsecond

// advanceMarker stores ARGV[1] only when it is newer than the current value.
var advanceMarker = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

type RedisMarkerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMarkerStore(client *redis.Client, ttl time.Duration) *RedisMarkerStore {
	return &RedisMarkerStore{client: client, ttl: ttl}
}

func MarkerKey(baseID string) string {
	return markerKeyPrefix + baseID
}

func (s *RedisMarkerStore) LastSeen(ctx context.Context, baseID string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, MarkerKey(baseID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get marker %s: %w", baseID, err)
	}

	us, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse marker %s: %w", baseID, err)
	}
	return time.UnixMicro(us), true, nil
}

func (s *RedisMarkerStore) MarkSeen(ctx context.Context, baseID string, at time.Time) error {
	err := advanceMarker.Run(ctx, s.client,
		[]string{MarkerKey(baseID)},
		at.UnixMicro(), s.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("set marker %s: %w", baseID, err)
	}
	return nil
}

type RedisChargedSet struct {
	client *redis.Client
}

func NewRedisChargedSet(client *redis.Client) *RedisChargedSet {
	return &RedisChargedSet{client: client}
}

func ChargedKey(userID string) string {
	return chargedKeyPrefix + userID
}

func (s *RedisChargedSet) IsCharged(ctx context.Context, userID, eventID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, ChargedKey(userID), eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check charged %s: %w", eventID, err)
	}
	return ok, nil
}

func (s *RedisChargedSet) MarkCharged(ctx context.Context, userID, eventID string) error {
	if err := s.client.SAdd(ctx, ChargedKey(userID), eventID).Err(); err != nil {
		return fmt.Errorf("mark charged %s: %w", eventID, err)
	}
	return nil
}
