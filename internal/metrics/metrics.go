package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_transitions_total",
		Help: "Total number of applied order status transitions.",
	},
		[]string{"status"},
	)

	HistoryAppendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_history_append_failures_total",
		Help: "Status updates persisted without their history row.",
	})

	HistoryBackfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_history_backfilled_total",
		Help: "History rows written by the reconciler.",
	})

	CouponValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_coupon_validations_total",
		Help: "Coupon validation attempts by result.",
	},
		[]string{"result"},
	)

	CouponRedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_coupon_redemptions_total",
		Help: "Coupon redemptions recorded (duplicates excluded).",
	})

	EventPublishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_event_publish_failures_total",
		Help: "Domain events that could not be published to Kafka.",
	},
		[]string{"event_type"},
	)

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_notifications_total",
		Help: "Customer notifications by order status and delivery result.",
	},
		[]string{"status", "result"},
	)

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)
)

// Результаты проверки купона
const (
	ResultApplied  = "applied"
	ResultMissing  = "missing_code"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Результаты отправки уведомления
const (
	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)
