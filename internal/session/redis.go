package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "meetresume"
	maxTxAttempts      = 16
)

// RedisStore keeps sessions as JSON documents in Redis. Updates use
// optimistic WATCH/MULTI transactions so concurrent writers on several
// server instances never lose each other's chunks.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithTTL sets a key expiry refreshed on every write. It is a safety net
// above the reaper's idle timeout; zero disables expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "meetresume".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: defaultRedisPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Chunks == nil {
		sess.Chunks = make(map[int]Chunk)
	}
	return &sess, nil
}

func readSession(ctx context.Context, c redis.Cmdable, key string) (*Session, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return decode(data)
}

// Get returns the session stored under id
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return readSession(ctx, s.client, s.key(id))
}

// Update applies fn inside an optimistic transaction, retrying on conflicts
func (s *RedisStore) Update(ctx context.Context, id string, create bool, fn UpdateFunc) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	key := s.key(id)
	var result *Session

	txf := func(tx *redis.Tx) error {
		sess, err := readSession(ctx, tx, key)
		if errors.Is(err, ErrNotFound) && create {
			sess, err = newSession(id), nil
		}
		if err != nil {
			return err
		}

		if err := fn(sess); err != nil {
			return err
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			result = sess
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("redis update of %s: too much contention", id)
}

// Delete removes the session and returns its last state
func (s *RedisStore) Delete(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return s.remove(ctx, s.key(id), nil)
}

// remove deletes key when keep is nil or keep(session) reports true
func (s *RedisStore) remove(ctx context.Context, key string, keep func(*Session) bool) (*Session, error) {
	var removed *Session

	txf := func(tx *redis.Tx) error {
		sess, err := readSession(ctx, tx, key)
		if err != nil {
			return err
		}
		if keep != nil && !keep(sess) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err == nil {
			removed = sess
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return removed, nil
	}

	return nil, fmt.Errorf("redis delete of %s: too much contention", key)
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+":session:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return keys, nil
}

// Sweep removes active sessions idle since before cutoff
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	var swept []*Session
	for _, key := range keys {
		sess, err := s.remove(ctx, key, func(sess *Session) bool { return expired(sess, cutoff) })
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return swept, err
		}
		if sess != nil {
			swept = append(swept, sess)
		}
	}
	return swept, nil
}

// List returns all stored sessions
func (s *RedisStore) List(ctx context.Context) ([]*Session, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Session, 0, len(keys))
	for _, key := range keys {
		sess, err := readSession(ctx, s.client, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
