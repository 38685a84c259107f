package analytics

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two places, so 0.125 becomes 0.13 and
// -0.125 becomes -0.13. Every derived ratio and average goes through here.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ConversionRate is the share of confirmed sales among pending plus confirmed.
func ConversionRate(pending, confirmed int64) decimal.Decimal {
	if pending < 0 || confirmed < 0 {
		return decimal.Zero
	}
	return Percentage(confirmed, pending+confirmed)
}

// MonthlyGrowth compares current against previous. A missing or non-positive
// baseline yields zero.
func MonthlyGrowth(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return Round2(current.Sub(previous).Div(previous).Mul(hundred))
}

// TotalActiveSales counts sales still in play.
func TotalActiveSales(pending, confirmed, partiallyPaid int64) int64 {
	return pending + confirmed + partiallyPaid
}

// Percentage returns part/total*100 rounded, or zero for an empty total.
func Percentage(part, total int64) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return Round2(decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total)))
}

// Ratios are computed once and transmitted as plain values.
type Ratios struct {
	ConversionRate   decimal.Decimal `json:"conversion_rate"`
	MonthlyGrowth    decimal.Decimal `json:"monthly_growth"`
	TotalActiveSales int64           `json:"total_active_sales"`
}
