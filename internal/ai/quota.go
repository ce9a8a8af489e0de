package ai

import (
	"context"
	"time"

	"github.com/Git-Robbed/smells-phishy/internal/domain/models"
	"github.com/Git-Robbed/smells-phishy/internal/infrastructure/cache"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// QuotaGate meters LLM invocations against a daily Redis counter. Counting
// happens before the provider call so failed calls still consume quota, which
// keeps a broken provider from hammering the API all day.
type QuotaGate struct {
	cache      *cache.RedisCache
	dailyQuota int64
	logger     *logger.Logger
}

// NewQuotaGate creates a quota gate backed by the shared Redis cache
func NewQuotaGate(c *cache.RedisCache, dailyQuota int64, log *logger.Logger) *QuotaGate {
	return &QuotaGate{
		cache:      c,
		dailyQuota: dailyQuota,
		logger:     log.WithComponent("ai-quota"),
	}
}

// Consume takes one unit of quota. Fails open when Redis is unavailable.
func (q *QuotaGate) Consume(ctx context.Context) (allowed bool, remaining int64) {
	if q.cache == nil {
		return true, q.dailyQuota
	}

	allowed, remaining, err := q.cache.ConsumeDailyQuota(ctx, q.dailyQuota)
	if err != nil {
		q.logger.Warn().Err(err).Msg("quota check failed, allowing request")
		return true, q.dailyQuota
	}

	if !allowed {
		q.logger.Warn().Int64("daily_quota", q.dailyQuota).Msg("daily AI quota exhausted")
	}

	return allowed, remaining
}

// Status reports current quota usage for the quota endpoint
func (q *QuotaGate) Status(ctx context.Context) models.QuotaStatus {
	var used int64
	if q.cache != nil {
		n, err := q.cache.DailyQuotaUsed(ctx)
		if err != nil {
			q.logger.Warn().Err(err).Msg("failed to read quota usage")
		} else {
			used = n
		}
	}

	remaining := q.dailyQuota - used
	if remaining < 0 {
		remaining = 0
	}

	now := time.Now().UTC()
	resetsAt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)

	return models.QuotaStatus{
		DailyQuota: q.dailyQuota,
		Used:       used,
		Remaining:  remaining,
		ResetsAt:   resetsAt.Format(time.RFC3339),
	}
}
