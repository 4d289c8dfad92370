package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares generations between processes and across restarts. With a
// TTL, counters that expire read as 0 and their records self-heal.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis stores counters under "gen:<namespace>:". ttl <= 0 never expires
// them.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Redis) Snapshot(ctx context.Context, key string) (uint64, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseGen(key, v)
}

func (s *Redis) SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	rk := make([]string, len(keys))
	for i, k := range keys {
		rk[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, rk...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			out[keys[i]] = 0
			continue
		}
		g, err := parseGen(keys[i], v)
		if err != nil {
			return nil, err
		}
		out[keys[i]] = g
	}
	return out, nil
}

// Bump pipelines INCR with EXPIRE when a TTL is set.
func (s *Redis) Bump(ctx context.Context, key string) (uint64, error) {
	k := s.key(key)
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		return uint64(v), err
	}
	var incr *redis.IntCmd
	if _, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, s.ttl)
		return nil
	}); err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires counters itself.
func (s *Redis) Cleanup(time.Duration) {}

// Close leaves the client open; it is owned by the caller.
func (s *Redis) Close(context.Context) error { return nil }

func parseGen(key string, v any) (uint64, error) {
	var str string
	switch vv := v.(type) {
	case string:
		str = vv
	case []byte:
		str = string(vv)
	default:
		str = fmt.Sprint(vv)
	}
	g, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: parse generation of %s: %w", key, err)
	}
	return g, nil
}
