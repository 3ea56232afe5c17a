package likes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// toggleScript flips membership of ARGV[1] in the set at KEYS[1]. A missing
// member is only added when ARGV[2] is "1". Returns 1 when the member is
// present afterwards.
var toggleScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	redis.call('SREM', KEYS[1], ARGV[1])
	return 0
end
if ARGV[2] == '1' then
	redis.call('SADD', KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisStore keeps one set of liked post ids per user
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

// NewRedisClient connects to the Redis server at url and checks it responds
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewRedisStore creates a Redis-backed ledger. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{client: client, prefix: prefix, log: log.Named("likes")}
}

// likes:user:<id>
func (s *RedisStore) userKey(userID int64) string {
	return fmt.Sprintf("%slikes:user:%d", s.prefix, userID)
}

func (s *RedisStore) ReadAll(ctx context.Context) []Record {
	records := []Record{}
	pattern := s.prefix + "likes:user:*"

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		userID, err := strconv.ParseInt(strings.TrimPrefix(key, s.prefix+"likes:user:"), 10, 64)
		if err != nil {
			continue
		}
		for _, postID := range s.members(ctx, key) {
			records = append(records, Record{UserID: userID, PostID: postID, Liked: true, Typed: true})
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Warn("scanning likes", zap.Error(err))
		return []Record{}
	}
	return records
}

func (s *RedisStore) WriteAll(ctx context.Context, records []Record) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"likes:user:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning likes: %w", err)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		for _, r := range records {
			if r.Valid() {
				pipe.SAdd(ctx, s.userKey(r.UserID), r.PostID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing likes: %w", err)
	}
	return nil
}

func (s *RedisStore) LikedPostIDs(ctx context.Context, userID int64) []int64 {
	return s.members(ctx, s.userKey(userID))
}

func (s *RedisStore) Toggle(ctx context.Context, userID, postID int64, liked bool) (bool, error) {
	arg := "0"
	if liked {
		arg = "1"
	}
	n, err := toggleScript.Run(ctx, s.client, []string{s.userKey(userID)}, postID, arg).Int()
	if err != nil {
		return false, fmt.Errorf("toggling like: %w", err)
	}
	return n == 1, nil
}

// members returns the sorted post ids in a user's set
func (s *RedisStore) members(ctx context.Context, key string) []int64 {
	vals, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		s.log.Warn("reading liked posts", zap.String("key", key), zap.Error(err))
		return []int64{}
	}
	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
