// Package cache хранит календарные сводки в Redis.
// Инвалидация через версию бизнеса: любое событие бизнеса увеличивает версию,
// и старые ключи просто перестают читаться, пока не истечёт TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/calendar-core/internal/availability"
	"github.com/Leganyst/calendar-core/internal/config"
	"github.com/Leganyst/calendar-core/internal/model"
)

const keyPrefix = "calendar:summary"

// Подмножество redis.Cmdable, которое нужно кэшу.
type commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

type SummaryCache struct {
	rdb commands
	ttl time.Duration
	log *slog.Logger
}

func NewSummaryCache(rdb commands, ttl time.Duration, log *slog.Logger) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &SummaryCache{rdb: rdb, ttl: ttl, log: log}
}

// NewClient открывает подключение к Redis и проверяет его.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

func versionKey(businessID uuid.UUID) string {
	return fmt.Sprintf("%s:ver:%s", keyPrefix, businessID)
}

func (c *SummaryCache) summaryKey(ctx context.Context, businessID uuid.UUID, from, to time.Time) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(businessID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%s:%s", keyPrefix, businessID, ver,
		from.Format(time.DateOnly), to.Format(time.DateOnly)), nil
}

// GetSummary читает версию бизнеса один раз. При промахе возвращает ключ этой версии:
// расчёт, сохранённый под ним, не переживёт событие, пришедшее во время расчёта.
func (c *SummaryCache) GetSummary(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]availability.DaySummary, string, bool) {
	key, err := c.summaryKey(ctx, businessID, from, to)
	if err != nil {
		c.log.WarnContext(ctx, "summary cache version", slog.Any("err", err))
		return nil, "", false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "summary cache get", slog.Any("err", err))
		}
		return nil, key, false
	}
	var rows []availability.DaySummary
	if err := json.Unmarshal(raw, &rows); err != nil {
		c.log.WarnContext(ctx, "summary cache decode", slog.String("key", key), slog.Any("err", err))
		return nil, key, false
	}
	return rows, key, true
}

// SetSummary сохраняет строки под ключом из GetSummary. Пустой ключ пропускается.
func (c *SummaryCache) SetSummary(ctx context.Context, key string, rows []availability.DaySummary) {
	if key == "" {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "summary cache set", slog.Any("err", err))
	}
}

// Publish сбрасывает сводки бизнесов, к которым относятся события.
func (c *SummaryCache) Publish(ctx context.Context, events ...model.Event) error {
	seen := make(map[uuid.UUID]bool)
	for _, e := range events {
		if seen[e.BusinessID] {
			continue
		}
		seen[e.BusinessID] = true
		if err := c.rdb.Incr(ctx, versionKey(e.BusinessID)).Err(); err != nil {
			return fmt.Errorf("invalidate summaries of %s: %w", e.BusinessID, err)
		}
	}
	return nil
}
