package services

import (
	"context"
	"time"

	"storefront/internal/models"
)

// EventPublisher публикует доменные события. Реализуется kafka.Producer.
type EventPublisher interface {
	PublishOrderStatusChanged(data models.OrderStatusChangedData) error
	PublishCouponRedeemed(data models.CouponRedeemedData) error
}

// Cache описывает используемое сервисами подмножество redis.Client.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
