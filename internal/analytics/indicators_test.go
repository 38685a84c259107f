package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sale(id int64, status SaleStatus, total string, date time.Time) Sale {
	return Sale{ID: id, Status: status, TotalNet: dec(total), Date: date}
}

func TestComputeSalesIndicatorsScenario(t *testing.T) {
	sales := []Sale{
		sale(1, SaleStatusConfirmed, "100", day(2024, time.March, 1)),
		sale(2, SaleStatusConfirmed, "200", day(2024, time.March, 5)),
		sale(3, SaleStatusConfirmed, "300", day(2024, time.March, 14)),
		sale(4, SaleStatusPending, "50", day(2024, time.March, 12)),
	}

	out, err := ComputeSalesIndicators(sales, Resolve(refNow))
	require.NoError(t, err)

	assert.Equal(t, int64(4), out.ThisMonth.Count)
	assert.True(t, out.ThisMonth.Revenue.Equal(dec("600")))
	assert.Equal(t, "200", out.AverageTicket.String())
	assert.Equal(t, int64(4), out.TotalSales)
	assert.Equal(t, "2024-03-15", out.ReferenceDate)
	assert.Equal(t, "75", out.Ratios.ConversionRate.String())
	assert.Equal(t, int64(4), out.Ratios.TotalActiveSales)
	assert.True(t, out.OutstandingBalance.Equal(dec("50")))
}

func TestComputeSalesIndicatorsWindows(t *testing.T) {
	pending := sale(6, SaleStatusPartiallyPaid, "500", day(2024, time.March, 10))
	pending.Payments = []Payment{{Method: PaymentMethodPix, Amount: dec("120")}}
	pending.CustomerName = "Ana"

	sales := []Sale{
		{ID: 1, Status: SaleStatusConfirmed, TotalNet: dec("400"), Date: day(2024, time.February, 20), CustomerName: "Ana"},
		{ID: 2, Status: SaleStatusConfirmed, TotalNet: dec("600"), Date: day(2024, time.March, 9), CustomerName: " Ana "},
		{ID: 3, Status: SaleStatusCancelled, TotalNet: dec("900"), Date: day(2024, time.March, 11), CustomerName: "Bruno"},
		{ID: 4, Status: SaleStatusConfirmed, TotalNet: dec("250"), Date: day(2023, time.December, 3), CustomerName: "Carla"},
		{ID: 5, Status: SaleStatusConfirmed, TotalNet: dec("1000"), Date: day(2022, time.June, 1)},
		pending,
	}

	out, err := ComputeSalesIndicators(sales, Resolve(refNow))
	require.NoError(t, err)

	assert.Equal(t, int64(3), out.ThisMonth.Count)
	assert.True(t, out.ThisMonth.Revenue.Equal(dec("600")))
	assert.Equal(t, int64(1), out.PreviousMonth.Count)
	assert.True(t, out.PreviousMonth.Revenue.Equal(dec("400")))
	assert.Equal(t, int64(4), out.ThisYear.Count)
	assert.True(t, out.ThisYear.Revenue.Equal(dec("1000")))
	assert.Equal(t, int64(4), out.Last30Days.Count)
	assert.Equal(t, int64(3), out.Last7Days.Count)
	assert.Equal(t, "50", out.Ratios.MonthlyGrowth.String())
	assert.Equal(t, int64(3), out.UniqueCustomers)
	assert.True(t, out.OutstandingBalance.Equal(dec("380")))
	assert.Equal(t, "562.5", out.AverageTicket.String())

	// Revenue by month covers the trailing year only and matches confirmed revenue inside it.
	sum := decimal.Zero
	for _, v := range out.RevenueByMonth {
		sum = sum.Add(v)
	}
	assert.True(t, sum.Equal(dec("1250")), "got %s", sum)
	assert.Equal(t, int64(1), out.SalesByMonth[8])
	assert.Equal(t, int64(1), out.SalesByMonth[10])
	assert.Equal(t, int64(3), out.SalesByMonth[11])
}

func TestStatusBreakdownListsEveryStatus(t *testing.T) {
	out, err := ComputeSalesIndicators([]Sale{
		sale(1, SaleStatusDonation, "0", day(2024, time.March, 2)),
		sale(2, SaleStatusDonation, "0", day(2024, time.March, 3)),
	}, Resolve(refNow))
	require.NoError(t, err)

	require.Len(t, out.StatusBreakdown, len(SaleStatuses()))
	var total int64
	for i, row := range out.StatusBreakdown {
		assert.Equal(t, SaleStatuses()[i], row.Status)
		assert.NotEmpty(t, row.Label)
		total += row.Count
	}
	assert.Equal(t, out.TotalSales, total)
	assert.Equal(t, int64(2), out.StatusBreakdown[4].Count)
}

func TestComputeSalesIndicatorsEmpty(t *testing.T) {
	out, err := ComputeSalesIndicators(nil, Resolve(refNow))
	require.NoError(t, err)

	assert.Zero(t, out.TotalSales)
	assert.True(t, out.AverageTicket.IsZero())
	assert.True(t, out.ThisMonth.Revenue.IsZero())
	assert.True(t, out.Ratios.ConversionRate.IsZero())
	assert.True(t, out.Ratios.MonthlyGrowth.IsZero())
	assert.Len(t, out.MonthLabels, 12)
	for _, v := range out.RevenueByMonth {
		assert.True(t, v.IsZero())
	}
}

func TestComputeSalesIndicatorsRejectsUnknownStatus(t *testing.T) {
	_, err := ComputeSalesIndicators([]Sale{sale(1, SaleStatus(42), "10", refNow)}, Resolve(refNow))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrUnknownEnum))
}

func TestComputeSalesIndicatorsIsDeterministic(t *testing.T) {
	sales := []Sale{
		sale(1, SaleStatusConfirmed, "10.10", day(2024, time.March, 1)),
		sale(2, SaleStatusPending, "20.20", day(2024, time.March, 2)),
	}
	a, err := ComputeSalesIndicators(sales, Resolve(refNow))
	require.NoError(t, err)
	b, err := ComputeSalesIndicators(sales, Resolve(refNow))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRemainingBalance(t *testing.T) {
	s := sale(1, SaleStatusPartiallyPaid, "300", refNow)
	s.Payments = []Payment{
		{Method: PaymentMethodPix, Amount: dec("100")},
		{Method: PaymentMethodCash, Amount: dec("50.5")},
	}
	assert.True(t, s.Paid().Equal(dec("150.5")))
	assert.True(t, s.RemainingBalance().Equal(dec("149.5")))
	assert.True(t, sale(2, SaleStatusPending, "80", refNow).RemainingBalance().Equal(dec("80")))
}
