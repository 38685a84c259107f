package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = DateRange{
	Start: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC),
}

func itemSale(id int64, status SaleStatus, date time.Time, items ...SaleItem) Sale {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal)
	}
	return Sale{ID: id, Status: status, Date: date, TotalNet: total, Items: items}
}

func item(p ProductType, qty, subtotal string) SaleItem {
	return SaleItem{Product: p, Quantity: dec(qty), Subtotal: dec(subtotal)}
}

func TestTopProductsOrdersByQuantity(t *testing.T) {
	sales := []Sale{
		itemSale(1, SaleStatusConfirmed, day(2024, time.March, 2),
			item(ProductColonialTile, "3", "1500"),
			item(ProductBrick8Holes, "5", "2000"),
		),
		itemSale(2, SaleStatusPartiallyPaid, day(2024, time.March, 3),
			item(ProductColonialTile, "4", "2000"),
			item(ProductCobogo, "5", "900"),
		),
		itemSale(3, SaleStatusPending, day(2024, time.March, 4), item(ProductCobogo, "50", "9000")),
		itemSale(4, SaleStatusConfirmed, day(2024, time.February, 4), item(ProductCobogo, "50", "9000")),
	}

	rows, err := TopProducts(sales, march, 0)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, ProductColonialTile, rows[0].Product)
	assert.True(t, rows[0].TotalQuantity.Equal(dec("7")))
	assert.True(t, rows[0].TotalAmount.Equal(dec("3500")))
	assert.Equal(t, int64(2), rows[0].SalesCount)
	assert.Equal(t, 1, rows[0].Rank)

	// Equal quantities fall back to catalogue order.
	assert.Equal(t, ProductBrick8Holes, rows[1].Product)
	assert.Equal(t, ProductCobogo, rows[2].Product)
	assert.Equal(t, 3, rows[2].Rank)
	assert.Equal(t, ProductCobogo.Label(), rows[2].Label)
}

func TestTopProductsLimit(t *testing.T) {
	var items []SaleItem
	for i, p := range ProductTypes() {
		items = append(items, item(p, decimal.NewFromInt(int64(i+1)).String(), "10"))
	}
	sales := []Sale{itemSale(1, SaleStatusConfirmed, day(2024, time.March, 5), items...)}

	rows, err := TopProducts(sales, march, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ProductBreakageLot, rows[0].Product)

	rows, err = TopProducts(sales, march, 0)
	require.NoError(t, err)
	assert.Len(t, rows, DefaultRankingLimit)

	for i := 1; i < len(rows); i++ {
		assert.True(t, rows[i-1].TotalQuantity.GreaterThanOrEqual(rows[i].TotalQuantity))
	}

	_, err = TopProducts(sales, march, -1)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTopProductsRejectsInvertedRange(t *testing.T) {
	_, err := TopProducts(nil, DateRange{Start: march.End, End: march.Start}, 5)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTopProductsEmpty(t *testing.T) {
	rows, err := TopProducts(nil, march, 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPaymentMethodBreakdown(t *testing.T) {
	s1 := sale(1, SaleStatusConfirmed, "300", day(2024, time.March, 2))
	s1.Payments = []Payment{
		{Method: PaymentMethodPix, Amount: dec("100")},
		{Method: PaymentMethodCash, Amount: dec("200")},
	}
	s2 := sale(2, SaleStatusPartiallyPaid, "500", day(2024, time.March, 6))
	s2.Payments = []Payment{{Method: PaymentMethodPix, Amount: dec("50")}}
	s3 := sale(3, SaleStatusCancelled, "80", day(2024, time.March, 7))
	s3.Payments = []Payment{{Method: PaymentMethodBoleto, Amount: dec("80")}}

	out, err := PaymentMethodBreakdown([]Sale{s1, s2, s3}, march)
	require.NoError(t, err)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, PaymentMethodPix, out.Rows[0].Method)
	assert.Equal(t, int64(2), out.Rows[0].Count)
	assert.Equal(t, "66.67", out.Rows[0].Percentage.String())
	assert.Equal(t, PaymentMethodCash, out.Rows[1].Method)
	assert.Equal(t, "33.33", out.Rows[1].Percentage.String())
	assert.Equal(t, int64(3), out.TotalCount)
	assert.True(t, out.TotalAmount.Equal(dec("350")))

	sum := decimal.Zero
	for _, row := range out.Rows {
		sum = sum.Add(row.Percentage)
	}
	assert.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(dec("0.01")))
}

func TestPaymentMethodBreakdownEmptyTotals(t *testing.T) {
	out, err := PaymentMethodBreakdown([]Sale{sale(1, SaleStatusConfirmed, "10", day(2024, time.March, 2))}, march)
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Zero(t, out.TotalCount)
	assert.True(t, out.TotalAmount.IsZero())
}

func TestPaymentMethodBreakdownRejectsUnknownMethod(t *testing.T) {
	s := sale(1, SaleStatusConfirmed, "10", day(2024, time.March, 2))
	s.Payments = []Payment{{Method: PaymentMethod(99), Amount: dec("10")}}
	_, err := PaymentMethodBreakdown([]Sale{s}, march)
	assert.True(t, errors.Is(err, ErrUnknownEnum))
}

func TestTopCities(t *testing.T) {
	city := func(id int64, name, state, total string) Sale {
		s := sale(id, SaleStatusConfirmed, total, day(2024, time.March, 10))
		s.City, s.State = name, state
		return s
	}
	sales := []Sale{
		city(1, "Russas", "ce", "100"),
		city(2, " Russas ", "CE", "200"),
		city(3, "Limoeiro do Norte", "CE", "900"),
		city(4, "Aracati", "CE", "150"),
		city(5, "Aracati", "CE", "150"),
		city(6, "", "CE", "999"),
		city(7, "Jaguaruana", "CE", "900"),
	}

	rows, err := TopCities(sales, march, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Aracati", rows[0].City)
	assert.Equal(t, "Russas", rows[1].City)
	assert.Equal(t, "CE", rows[1].State)
	assert.Equal(t, int64(2), rows[1].Count)
	assert.True(t, rows[1].Revenue.Equal(dec("300")))
	// Same count and revenue: alphabetical.
	assert.Equal(t, "Jaguaruana", rows[2].City)
	assert.Equal(t, 3, rows[2].Rank)
}
