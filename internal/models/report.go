package models

import "time"

// ReportFilter задает временной интервал отчёта.
type ReportFilter struct {
	From time.Time
	To   time.Time
}

// LifecycleReport агрегирует переходы заказов и применения купонов за период.
type LifecycleReport struct {
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	StatusCounts   map[string]int      `json:"status_counts"`
	RefundedAmount float64             `json:"refunded_amount"`
	Coupons        []CouponUsageReport `json:"coupons"`
	GeneratedAt    time.Time           `json:"generated_at"`
}

// CouponUsageReport описывает использование одного купона.
type CouponUsageReport struct {
	Code          string  `json:"code"`
	Redemptions   int     `json:"redemptions"`
	TotalDiscount float64 `json:"total_discount"`
}
