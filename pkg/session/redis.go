package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. It is suitable when sessions
// should survive a process restart. Idle eviction is delegated to Redis
// key expiry; each mutation refreshes the TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	locks  map[string]*keyLock
	closed bool
}

// keyLock is a per-identity mutex with a holder count, so the locks map
// shrinks back to empty once no operation is in flight for the key.
type keyLock struct {
	sync.Mutex
	refs int
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all session keys (default: "voxgo:session:").
	Prefix string
	// TTL is the idle expiry applied to every session key.
	TTL time.Duration
}

// NewRedisStore creates a new Redis session store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisStore(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisStoreFromClient creates a Redis store from an existing client.
// This is useful for testing with miniredis.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return newRedisStore(client, prefix, ttl)
}

func newRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "voxgo:session:"
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		locks:  make(map[string]*keyLock),
	}
}

func (r *RedisStore) key(channel, identity string) string {
	return r.prefix + Key(channel, identity)
}

// acquire returns the per-identity lock, creating it on first use and
// counting the holder so release can prune the entry.
func (r *RedisStore) acquire(key string) (*keyLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrStoreClosed
	}
	l, ok := r.locks[key]
	if !ok {
		l = &keyLock{}
		r.locks[key] = l
	}
	l.refs++
	return l, nil
}

// release drops one holder and deletes the map entry at zero.
func (r *RedisStore) release(key string, l *keyLock) {
	l.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, key)
	}
}

// GetOrCreate returns a snapshot of the session for the pair, creating
// it on first call.
func (r *RedisStore) GetOrCreate(ctx context.Context, channel, identity string) (*Session, error) {
	key := r.key(channel, identity)
	l, err := r.acquire(key)
	if err != nil {
		return nil, err
	}
	l.Lock()
	defer r.release(key, l)

	sess, err := r.load(ctx, key)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}

	sess = &Session{
		Channel:    channel,
		Identity:   identity,
		Step:       StepStart,
		Data:       make(map[string]string),
		LastActive: time.Now().UTC(),
	}
	if err := r.save(ctx, key, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns a snapshot of an existing session.
func (r *RedisStore) Get(ctx context.Context, channel, identity string) (*Session, error) {
	key := r.key(channel, identity)
	l, err := r.acquire(key)
	if err != nil {
		return nil, err
	}
	l.Lock()
	defer r.release(key, l)

	return r.load(ctx, key)
}

// Touch updates the session's last-activity timestamp and refreshes the TTL.
func (r *RedisStore) Touch(ctx context.Context, channel, identity string) error {
	return r.mutate(ctx, channel, identity, func(s *Session) {})
}

// SetStep updates the session's step label.
func (r *RedisStore) SetStep(ctx context.Context, channel, identity, step string) error {
	return r.mutate(ctx, channel, identity, func(s *Session) {
		s.Step = step
	})
}

// SetData sets one collected key/value fact.
func (r *RedisStore) SetData(ctx context.Context, channel, identity, key, value string) error {
	return r.mutate(ctx, channel, identity, func(s *Session) {
		s.Data[key] = value
	})
}

// Append adds a turn to the session transcript.
func (r *RedisStore) Append(ctx context.Context, channel, identity string, turn Turn) error {
	return r.mutate(ctx, channel, identity, func(s *Session) {
		s.Transcript = append(s.Transcript, turn)
	})
}

// Sweep is a no-op for Redis; idle sessions expire server-side via key
// TTL. It always returns 0.
func (r *RedisStore) Sweep(_ context.Context, _ time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrStoreClosed
	}
	return 0, nil
}

// Close releases the Redis client.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

func (r *RedisStore) mutate(ctx context.Context, channel, identity string, fn func(*Session)) error {
	key := r.key(channel, identity)
	l, err := r.acquire(key)
	if err != nil {
		return err
	}
	l.Lock()
	defer r.release(key, l)

	sess, err := r.load(ctx, key)
	if err != nil {
		return err
	}
	fn(sess)
	sess.LastActive = time.Now().UTC()
	return r.save(ctx, key, sess)
}

func (r *RedisStore) load(ctx context.Context, key string) (*Session, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Data == nil {
		sess.Data = make(map[string]string)
	}
	return &sess, nil
}

func (r *RedisStore) save(ctx context.Context, key string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
