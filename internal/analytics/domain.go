package analytics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is a read snapshot of a registered sale including its items and payments.
type Sale struct {
	ID           int64
	Date         time.Time
	Status       SaleStatus
	TotalNet     decimal.Decimal
	Discount     decimal.Decimal
	CustomerName string
	City         string
	State        string
	Items        []SaleItem
	Payments     []Payment
}

// Paid sums the payments registered against the sale.
func (s Sale) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// RemainingBalance is what the customer still owes.
func (s Sale) RemainingBalance() decimal.Decimal {
	return s.TotalNet.Sub(s.Paid())
}

// SaleItem is a product line. Quantity is expressed in the product's selling
// unit, usually milheiros for bricks and tiles.
type SaleItem struct {
	Product   ProductType
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Payment records money received for a sale.
type Payment struct {
	SaleID int64
	Method PaymentMethod
	Amount decimal.Decimal
	Date   time.Time
}

// FinancialLaunch is a ledger entry distinct from a sale. Amount is never
// negative; Type carries the sign.
type FinancialLaunch struct {
	ID          int64
	Type        LaunchType
	Amount      decimal.Decimal
	Date        time.Time
	DueDate     time.Time
	Status      LaunchStatus
	CategoryID  *int64
	Method      PaymentMethod
	Description string
}

// Category classifies expense launches.
type Category struct {
	ID      int64
	Name    string
	GroupID *int64
}

// CategoryGroup is the rollup bucket categories belong to.
type CategoryGroup struct {
	ID   int64
	Name string
}

// BankExtract is a manually entered bank statement line. Value is signed.
type BankExtract struct {
	ID            int64
	AccountMethod PaymentMethod
	Date          time.Time
	Value         decimal.Decimal
	Observation   string
}
