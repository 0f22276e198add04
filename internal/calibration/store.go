package calibration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheKey is the single Redis key this device's calibration lives under;
// there is one calibration per physical device, never per session.
const cacheKey = "orb:calibration:mirror"

// cacheTTL bounds how long a cached calibration is trusted before Load
// falls back to Postgres, so a calibration change written by another
// process (e.g. a factory recalibration tool) is eventually observed.
const cacheTTL = 10 * time.Minute

// Store is the durable calibration store: Redis as a read-through cache
// in front of a Postgres row holding the authoritative value, so the
// hot path (Load at session start) rarely pays a database round trip.
type Store struct {
	redis *redis.Client
	db    *sql.DB
}

// NewStore wires a Store to an already-connected Redis client and
// Postgres handle. Both connections are owned by the caller.
func NewStore(redisClient *redis.Client, db *sql.DB) *Store {
	return &Store{redis: redisClient, db: db}
}

// EnsureSchema creates the calibration table if it does not already
// exist. Safe to call on every process start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS orb_calibration (
			id SERIAL PRIMARY KEY,
			horizontal_offset DOUBLE PRECISION NOT NULL,
			vertical_offset DOUBLE PRECISION NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("calibration: ensure schema: %w", err)
	}
	return nil
}

// Load returns the current calibration, preferring the Redis cache and
// falling back to Postgres on a cache miss or a Redis error.
func (s *Store) Load(ctx context.Context) (Calibration, error) {
	if cal, ok := s.loadFromCache(ctx); ok {
		return cal, nil
	}

	var cal Calibration
	row := s.db.QueryRowContext(ctx, `
		SELECT horizontal_offset, vertical_offset FROM orb_calibration
		ORDER BY id DESC LIMIT 1
	`)
	if err := row.Scan(&cal.Mirror.HorizontalOffset, &cal.Mirror.VerticalOffset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Calibration{}, nil
		}
		return Calibration{}, fmt.Errorf("calibration: load from postgres: %w", err)
	}

	s.warmCache(ctx, cal)
	return cal, nil
}

// Store persists cal to Postgres and refreshes the Redis cache.
func (s *Store) Store(ctx context.Context, cal Calibration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orb_calibration (horizontal_offset, vertical_offset) VALUES ($1, $2)
	`, cal.Mirror.HorizontalOffset, cal.Mirror.VerticalOffset)
	if err != nil {
		return fmt.Errorf("calibration: store to postgres: %w", err)
	}
	s.warmCache(ctx, cal)
	return nil
}

func (s *Store) loadFromCache(ctx context.Context) (Calibration, bool) {
	raw, err := s.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("calibration cache read failed, falling back to postgres", "error", err)
		}
		return Calibration{}, false
	}
	var cal Calibration
	if err := json.Unmarshal(raw, &cal); err != nil {
		slog.Warn("calibration cache value corrupt, falling back to postgres", "error", err)
		return Calibration{}, false
	}
	return cal, true
}

func (s *Store) warmCache(ctx context.Context, cal Calibration) {
	raw, err := json.Marshal(cal)
	if err != nil {
		slog.Warn("calibration cache encode failed", "error", err)
		return
	}
	if err := s.redis.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
		slog.Warn("calibration cache write failed", "error", err)
	}
}
