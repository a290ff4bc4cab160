package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasguess/atlasguess/internal/model"
)

const keyPrefix = "atlasguess"

// snapshotKey stores the single server-state snapshot
func snapshotKey() string {
	return fmt.Sprintf("%s:snapshot", keyPrefix)
}

// Config holds Redis behavior settings for the snapshot store
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int

	// TTL bounds how long an unconsumed snapshot lingers in Redis. It
	// only needs to outlive MaxAge.
	TTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     5,
		MinIdleConns: 1,
		TTL:          5 * time.Minute,
	}
}

// RedisStore is the Redis-backed snapshot store
type RedisStore struct {
	client *redis.Client
	config Config
	logger *slog.Logger
}

// New creates a RedisStore and verifies connectivity
func New(ctx context.Context, config Config, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.PoolSize = config.PoolSize
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return NewWithClient(client, config, logger), nil
}

// NewWithClient creates a RedisStore around an existing client
func NewWithClient(client *redis.Client, config Config, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		config: config,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

// Close releases the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Save writes the snapshot, replacing any previous one
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	if err := s.client.Set(ctx, snapshotKey(), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	s.logger.Info("snapshot saved",
		slog.Int("sessions", len(snap.Sessions)),
		slog.Int("connections", len(snap.Connections)),
	)
	return nil
}

// Load reads the stored snapshot
func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	return &snap, nil
}

// Clear deletes the stored snapshot
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, snapshotKey()).Err(); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}
