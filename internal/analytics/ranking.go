package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRankingLimit applies when callers pass a zero limit.
const DefaultRankingLimit = 10

// ProductRanking is one row of the top products list.
type ProductRanking struct {
	Rank          int             `json:"rank"`
	Product       ProductType     `json:"product"`
	Label         string          `json:"label"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	SalesCount    int64           `json:"sales_count"`
}

// PaymentMethodShare is one row of the payment method breakdown.
type PaymentMethodShare struct {
	Method     PaymentMethod   `json:"method"`
	Label      string          `json:"label"`
	Count      int64           `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// PaymentBreakdown carries the rows together with the totals they sum to.
type PaymentBreakdown struct {
	Rows        []PaymentMethodShare `json:"rows"`
	TotalCount  int64                `json:"total_count"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
}

// CityRanking is one row of the top cities list.
type CityRanking struct {
	Rank    int             `json:"rank"`
	City    string          `json:"city"`
	State   string          `json:"state"`
	Count   int64           `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

func rankable(sale Sale, r DateRange) bool {
	if sale.Status != SaleStatusConfirmed && sale.Status != SaleStatusPartiallyPaid {
		return false
	}
	return r.Contains(sale.Date)
}

func resolveLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, invalid("limit", "must not be negative")
	}
	if limit == 0 {
		return DefaultRankingLimit, nil
	}
	return limit, nil
}

func checkRankingInput(sales []Sale, r DateRange) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, sale := range sales {
		if !sale.Status.Valid() {
			return invalidEnum("status", ErrUnknownEnum)
		}
	}
	return nil
}

// TopProducts ranks products by quantity sold. Ties keep catalogue order.
func TopProducts(sales []Sale, r DateRange, limit int) ([]ProductRanking, error) {
	limit, err := resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	if err := checkRankingInput(sales, r); err != nil {
		return nil, err
	}

	type acc struct {
		quantity decimal.Decimal
		amount   decimal.Decimal
		sales    map[int64]struct{}
	}
	groups := make(map[ProductType]*acc)
	for _, sale := range sales {
		if !rankable(sale, r) {
			continue
		}
		for _, item := range sale.Items {
			if !item.Product.Valid() {
				return nil, invalidEnum("product", ErrUnknownEnum)
			}
			g := groups[item.Product]
			if g == nil {
				g = &acc{quantity: decimal.Zero, amount: decimal.Zero, sales: make(map[int64]struct{})}
				groups[item.Product] = g
			}
			g.quantity = g.quantity.Add(item.Quantity)
			g.amount = g.amount.Add(item.Subtotal)
			g.sales[sale.ID] = struct{}{}
		}
	}

	rows := make([]ProductRanking, 0, len(groups))
	for product, g := range groups {
		rows = append(rows, ProductRanking{
			Product:       product,
			Label:         product.Label(),
			TotalQuantity: g.quantity,
			TotalAmount:   g.amount,
			SalesCount:    int64(len(g.sales)),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].TotalQuantity.Cmp(rows[j].TotalQuantity); c != 0 {
			return c > 0
		}
		return rows[i].Product < rows[j].Product
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}

// PaymentMethodBreakdown groups the payments of qualifying sales by method.
func PaymentMethodBreakdown(sales []Sale, r DateRange) (PaymentBreakdown, error) {
	if err := checkRankingInput(sales, r); err != nil {
		return PaymentBreakdown{}, err
	}

	type acc struct {
		count  int64
		amount decimal.Decimal
	}
	groups := make(map[PaymentMethod]*acc)
	out := PaymentBreakdown{TotalAmount: decimal.Zero}
	for _, sale := range sales {
		if !rankable(sale, r) {
			continue
		}
		for _, p := range sale.Payments {
			if !p.Method.Valid() {
				return PaymentBreakdown{}, invalidEnum("method", ErrUnknownEnum)
			}
			g := groups[p.Method]
			if g == nil {
				g = &acc{amount: decimal.Zero}
				groups[p.Method] = g
			}
			g.count++
			g.amount = g.amount.Add(p.Amount)
			out.TotalCount++
			out.TotalAmount = out.TotalAmount.Add(p.Amount)
		}
	}

	out.Rows = make([]PaymentMethodShare, 0, len(groups))
	for method, g := range groups {
		out.Rows = append(out.Rows, PaymentMethodShare{
			Method:     method,
			Label:      method.Label(),
			Count:      g.count,
			Amount:     g.amount,
			Percentage: Percentage(g.count, out.TotalCount),
		})
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].Count != out.Rows[j].Count {
			return out.Rows[i].Count > out.Rows[j].Count
		}
		return out.Rows[i].Method < out.Rows[j].Method
	})
	return out, nil
}

// TopCities ranks (city, state) pairs by number of sales. Sales without a city
// are left out.
func TopCities(sales []Sale, r DateRange, limit int) ([]CityRanking, error) {
	limit, err := resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	if err := checkRankingInput(sales, r); err != nil {
		return nil, err
	}

	type key struct{ city, state string }
	groups := make(map[key]*CityRanking)
	for _, sale := range sales {
		if !rankable(sale, r) {
			continue
		}
		city := strings.TrimSpace(sale.City)
		if city == "" {
			continue
		}
		k := key{city: city, state: strings.ToUpper(strings.TrimSpace(sale.State))}
		g := groups[k]
		if g == nil {
			g = &CityRanking{City: k.city, State: k.state, Revenue: decimal.Zero}
			groups[k] = g
		}
		g.Count++
		g.Revenue = g.Revenue.Add(sale.TotalNet)
	}

	rows := make([]CityRanking, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, *g)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.State < b.State
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
