// Package coupon содержит чистый расчёт скидки по купону.
package coupon

import (
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode приводит код купона к виду, в котором он хранится.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate рассчитывает скидку купона для подытога.
// Результат округляется до копеек и всегда лежит в [0, subtotal].
// Активность купона проверяет вызывающий код.
func Evaluate(c *models.Coupon, subtotal float64) float64 {
	return EvaluateDecimal(c, decimal.NewFromFloat(subtotal)).InexactFloat64()
}

// EvaluateDecimal работает как Evaluate, но без потерь на float64.
func EvaluateDecimal(c *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if c == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}

	value := decimal.NewFromFloat(c.Value)
	if value.IsNegative() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch c.Type {
	case models.CouponTypePercent:
		discount = subtotal.Mul(value).Div(hundred)
	case models.CouponTypeFlat:
		discount = value
	default:
		return decimal.Zero
	}

	discount = discount.Round(2)
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// Message возвращает человекочитаемое описание применённой скидки.
func Message(c *models.Coupon) string {
	value := decimal.NewFromFloat(c.Value).String()
	switch c.Type {
	case models.CouponTypePercent:
		return fmt.Sprintf("Applied %s%% OFF", value)
	case models.CouponTypeFlat:
		return fmt.Sprintf("Applied %s OFF", value)
	default:
		return "Coupon applied"
	}
}
