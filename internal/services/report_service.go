package services

import (
	"context"
	"strconv"
	"time"

	"storefront/internal/apperror"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/redis"
	"storefront/internal/repository"
)

const (
	defaultReportCacheTTL = 10 * time.Minute
	defaultReportMaxDays  = 366
)

// ReportService собирает отчёт по переходам заказов и применению купонов и кеширует его.
type ReportService struct {
	store    repository.ReportGateway
	cache    Cache
	log      *logger.Logger
	cacheTTL time.Duration
	maxRange time.Duration
	now      func() time.Time
}

// NewReportService создает сервис отчётов. cache может быть nil.
func NewReportService(store repository.ReportGateway, cache Cache, log *logger.Logger, cfg *config.ReportConfig) *ReportService {
	cacheTTL := defaultReportCacheTTL
	maxDays := defaultReportMaxDays
	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.MaxRangeDays > 0 {
			maxDays = cfg.MaxRangeDays
		}
	}

	return &ReportService{
		store:    store,
		cache:    cache,
		log:      log,
		cacheTTL: cacheTTL,
		maxRange: time.Duration(maxDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// GetLifecycleReport возвращает отчёт за интервал [From, To].
func (s *ReportService) GetLifecycleReport(ctx context.Context, filter *models.ReportFilter) (*models.LifecycleReport, error) {
	if filter == nil || filter.From.IsZero() || filter.To.IsZero() {
		return nil, missingField("report range is required")
	}
	if filter.From.After(filter.To) {
		return nil, malformed("'from' must not be after 'to'")
	}
	if filter.To.Sub(filter.From) > s.maxRange {
		return nil, malformed("report range is too wide")
	}

	key := s.cacheKey(filter)
	if s.cache != nil {
		var cached models.LifecycleReport
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.store.StatusCounts(ctx, filter.From, filter.To)
	if err != nil {
		return nil, apperror.Persistence("failed to build lifecycle report", err)
	}
	refunded, err := s.store.RefundedAmount(ctx, filter.From, filter.To)
	if err != nil {
		return nil, apperror.Persistence("failed to build lifecycle report", err)
	}
	usage, err := s.store.CouponUsage(ctx, filter.From, filter.To)
	if err != nil {
		return nil, apperror.Persistence("failed to build lifecycle report", err)
	}

	report := &models.LifecycleReport{
		From:           filter.From,
		To:             filter.To,
		StatusCounts:   counts,
		RefundedAmount: refunded,
		Coupons:        usage,
		GeneratedAt:    s.now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, report, s.cacheTTL); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("Failed to cache lifecycle report")
		}
	}
	return report, nil
}

func (s *ReportService) cacheKey(filter *models.ReportFilter) string {
	return redis.GenerateKey(redis.KeyPrefixReport,
		strconv.FormatInt(filter.From.Unix(), 10),
		strconv.FormatInt(filter.To.Unix(), 10),
	)
}

// invalidateReports сбрасывает все закешированные отчёты: их исходные данные изменились.
func invalidateReports(ctx context.Context, cache Cache, log *logger.Logger) {
	if cache == nil {
		return
	}
	if err := cache.DeleteByPrefix(ctx, redis.KeyPrefixReport); err != nil {
		log.WithError(err).Warn("Failed to invalidate lifecycle report cache")
	}
}
