package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	redisv8 "github.com/go-redis/redis/v8"

	errs "xscraper/pkg/errors"
)

// DefaultRedisPrefix namespaces snapshot keys
const DefaultRedisPrefix = "xscraper:snapshot:"

// RedisOptions configures a RedisStore
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Keep > 0 trims each subject list to that many generations
	Keep int
}

// RedisStore keeps each subject as a list of JSON snapshots, newest at the head
type RedisStore struct {
	client *redisv8.Client
	prefix string
	keep   int
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	c := redisv8.NewClient(&redisv8.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, errs.Persistence(fmt.Sprintf("connect to redis at %s", opts.Addr), err)
	}
	return NewRedisStoreFromClient(c, opts.Prefix, opts.Keep), nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(c *redisv8.Client, prefix string, keep int) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: c, prefix: prefix, keep: keep}
}

func (s *RedisStore) key(subject string) string {
	return s.prefix + NormalizeSubject(subject)
}

// Get returns the newest snapshot for subject
func (s *RedisStore) Get(ctx context.Context, subject string) (*Snapshot, error) {
	b, err := s.client.LIndex(ctx, s.key(subject), 0).Bytes()
	if err == redisv8.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Persistence("read snapshot", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, errs.Persistence("decode snapshot", err)
	}
	return &snap, nil
}

// Put pushes a new generation to the head of the subject list
func (s *RedisStore) Put(ctx context.Context, subject string, snap *Snapshot) error {
	if snap == nil {
		return errs.Persistence("write snapshot", fmt.Errorf("nil snapshot"))
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return errs.Persistence("encode snapshot", err)
	}

	key := s.key(subject)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, b)
	if s.keep > 0 {
		pipe.LTrim(ctx, key, 0, int64(s.keep-1))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errs.Persistence("write snapshot", err)
	}
	return nil
}

// History returns generations newest first
func (s *RedisStore) History(ctx context.Context, subject string, limit int) ([]*Snapshot, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	items, err := s.client.LRange(ctx, s.key(subject), 0, stop).Result()
	if err != nil {
		return nil, errs.Persistence("read history", err)
	}

	out := make([]*Snapshot, 0, len(items))
	for _, item := range items {
		var snap Snapshot
		if err := json.Unmarshal([]byte(item), &snap); err != nil {
			return nil, errs.Persistence("decode snapshot", err)
		}
		out = append(out, &snap)
	}
	return out, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
