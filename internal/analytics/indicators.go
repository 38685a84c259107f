package analytics

import (
	"strings"

	"github.com/shopspring/decimal"
)

// WindowFigures pairs the sale count with confirmed revenue for one window.
type WindowFigures struct {
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// StatusCount is one row of the status breakdown.
type StatusCount struct {
	Status SaleStatus `json:"status"`
	Label  string     `json:"label"`
	Count  int64      `json:"count"`
}

// Indicators is the sales KPI card set. Figures are final values; nothing is
// recomputed downstream.
type Indicators struct {
	ReferenceDate      string                          `json:"reference_date"`
	ThisMonth          WindowFigures                   `json:"this_month"`
	ThisYear           WindowFigures                   `json:"this_year"`
	Last30Days         WindowFigures                   `json:"last_30_days"`
	Last7Days          WindowFigures                   `json:"last_7_days"`
	PreviousMonth      WindowFigures                   `json:"previous_month"`
	StatusBreakdown    []StatusCount                   `json:"status_breakdown"`
	TotalSales         int64                           `json:"total_sales"`
	AverageTicket      decimal.Decimal                 `json:"average_ticket"`
	UniqueCustomers    int64                           `json:"unique_customers"`
	OutstandingBalance decimal.Decimal                 `json:"outstanding_balance"`
	MonthLabels        []string                        `json:"month_labels"`
	SalesByMonth       [trailingMonths]int64           `json:"sales_by_month"`
	RevenueByMonth     [trailingMonths]decimal.Decimal `json:"revenue_by_month"`
	Ratios             Ratios                          `json:"ratios"`
}

// ComputeSalesIndicators aggregates sales into the KPI set in a single pass.
// Only Confirmed sales contribute revenue; every sale contributes to counts.
func ComputeSalesIndicators(sales []Sale, w Windows) (Indicators, error) {
	out := Indicators{
		ReferenceDate:      w.Now.Format("2006-01-02"),
		ThisMonth:          WindowFigures{Revenue: decimal.Zero},
		ThisYear:           WindowFigures{Revenue: decimal.Zero},
		Last30Days:         WindowFigures{Revenue: decimal.Zero},
		Last7Days:          WindowFigures{Revenue: decimal.Zero},
		PreviousMonth:      WindowFigures{Revenue: decimal.Zero},
		AverageTicket:      decimal.Zero,
		OutstandingBalance: decimal.Zero,
		MonthLabels:        w.MonthLabels(),
	}
	for i := range out.RevenueByMonth {
		out.RevenueByMonth[i] = decimal.Zero
	}

	statusCounts := make(map[SaleStatus]int64, len(saleStatusTable))
	customers := make(map[string]struct{})
	ticketSum := decimal.Zero
	var ticketCount int64

	for _, sale := range sales {
		if !sale.Status.Valid() {
			return Indicators{}, invalidEnum("status", ErrUnknownEnum)
		}
		statusCounts[sale.Status]++
		confirmed := sale.Status == SaleStatusConfirmed

		accumulate(&out.ThisMonth, sale, !sale.Date.Before(w.CurrentMonthStart))
		accumulate(&out.ThisYear, sale, !sale.Date.Before(w.YearStart))
		accumulate(&out.Last30Days, sale, !sale.Date.Before(w.Last30DaysStart))
		accumulate(&out.Last7Days, sale, !sale.Date.Before(w.Last7DaysStart))
		accumulate(&out.PreviousMonth, sale, !sale.Date.Before(w.PreviousMonthStart) && sale.Date.Before(w.CurrentMonthStart))

		if idx, ok := w.MonthIndex(sale.Date); ok {
			out.SalesByMonth[idx]++
			if confirmed {
				out.RevenueByMonth[idx] = out.RevenueByMonth[idx].Add(sale.TotalNet)
			}
		}

		if confirmed && sale.TotalNet.IsPositive() {
			ticketSum = ticketSum.Add(sale.TotalNet)
			ticketCount++
		}
		if name := strings.TrimSpace(sale.CustomerName); name != "" {
			customers[name] = struct{}{}
		}
		if sale.Status == SaleStatusPending || sale.Status == SaleStatusPartiallyPaid {
			out.OutstandingBalance = out.OutstandingBalance.Add(sale.RemainingBalance())
		}
	}

	out.TotalSales = int64(len(sales))
	out.UniqueCustomers = int64(len(customers))
	if ticketCount > 0 {
		out.AverageTicket = Round2(ticketSum.Div(decimal.NewFromInt(ticketCount)))
	}
	out.StatusBreakdown = make([]StatusCount, 0, len(saleStatusTable))
	for _, status := range SaleStatuses() {
		out.StatusBreakdown = append(out.StatusBreakdown, StatusCount{
			Status: status,
			Label:  status.Label(),
			Count:  statusCounts[status],
		})
	}

	pending := statusCounts[SaleStatusPending]
	confirmed := statusCounts[SaleStatusConfirmed]
	out.Ratios = Ratios{
		ConversionRate:   ConversionRate(pending, confirmed),
		MonthlyGrowth:    MonthlyGrowth(out.ThisMonth.Revenue, out.PreviousMonth.Revenue),
		TotalActiveSales: TotalActiveSales(pending, confirmed, statusCounts[SaleStatusPartiallyPaid]),
	}
	return out, nil
}

func accumulate(f *WindowFigures, sale Sale, inWindow bool) {
	if !inWindow {
		return
	}
	f.Count++
	if sale.Status == SaleStatusConfirmed {
		f.Revenue = f.Revenue.Add(sale.TotalNet)
	}
}
