package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlasguess/atlasguess/internal/model"
)

const keyPrefix = "atlasguess"

// ratingKey is the account's current rating
func ratingKey(id model.AccountID) string {
	return fmt.Sprintf("%s:rating:%s", keyPrefix, id)
}

// ratingLogKey is the append-only list of rating changes for an account
func ratingLogKey(id model.AccountID) string {
	return fmt.Sprintf("%s:rating_log:%s", keyPrefix, id)
}

// summaryKey stores one completed session summary
func summaryKey(id model.SessionID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// recentGamesKey is the global list of recent completed sessions
func recentGamesKey() string {
	return fmt.Sprintf("%s:games:recent", keyPrefix)
}

// Config holds Redis behavior settings for the history store
type Config struct {
	URL          string
	PoolSize     int
	MinIdleConns int

	SummaryTTL time.Duration
	RecentMax  int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		SummaryTTL:   30 * 24 * time.Hour,
		RecentMax:    1000,
	}
}

// RedisStore is the Redis-backed Recorder implementation
type RedisStore struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New connects to Redis and verifies the connection
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a store with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "history")),
	}
}

var _ Recorder = (*RedisStore)(nil)

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// ApplyRatingChange writes an account's new rating and appends to its log
func (s *RedisStore) ApplyRatingChange(ctx context.Context, accountID model.AccountID, newRating int, meta RatingMeta) error {
	entry, err := json.Marshal(struct {
		Rating int        `json:"rating"`
		Meta   RatingMeta `json:"meta"`
		At     int64      `json:"at"`
	}{newRating, meta, time.Now().UnixMilli()})
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, ratingKey(accountID), newRating, 0)
	pipe.RPush(ctx, ratingLogKey(accountID), entry)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRating reads an account's stored rating. Accounts with no recorded
// rating yet read as zero.
func (s *RedisStore) GetRating(ctx context.Context, accountID model.AccountID) (int, error) {
	n, err := s.client.Get(ctx, ratingKey(accountID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// RecordCompletedSession writes a session summary and indexes it as recent
func (s *RedisStore) RecordCompletedSession(ctx context.Context, summary SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, summaryKey(summary.SessionID), data, s.cfg.SummaryTTL)
	pipe.LPush(ctx, recentGamesKey(), string(summary.SessionID))
	pipe.LTrim(ctx, recentGamesKey(), 0, s.cfg.RecentMax-1)
	_, err = pipe.Exec(ctx)
	return err
}

// GetSummary reads back a completed session summary
func (s *RedisStore) GetSummary(ctx context.Context, id model.SessionID) (*SessionSummary, error) {
	data, err := s.client.Get(ctx, summaryKey(id)).Bytes()
	if err == redis.Nil {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var summary SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// NopRecorder discards everything; used when no store is configured
type NopRecorder struct{}

// ApplyRatingChange discards the change
func (NopRecorder) ApplyRatingChange(context.Context, model.AccountID, int, RatingMeta) error {
	return nil
}

// RecordCompletedSession discards the summary
func (NopRecorder) RecordCompletedSession(context.Context, SessionSummary) error {
	return nil
}
