package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SaleStatus is the lifecycle state of a sale.
type SaleStatus uint8

const (
	SaleStatusPending SaleStatus = iota + 1
	SaleStatusPartiallyPaid
	SaleStatusConfirmed
	SaleStatusCancelled
	SaleStatusDonation
)

type enumEntry struct {
	code  string
	label string
}

var saleStatusTable = map[SaleStatus]enumEntry{
	SaleStatusPending:       {"PENDING", "Pendente"},
	SaleStatusPartiallyPaid: {"PARTIALLY_PAID", "Parcialmente pago"},
	SaleStatusConfirmed:     {"CONFIRMED", "Confirmada"},
	SaleStatusCancelled:     {"CANCELLED", "Cancelada"},
	SaleStatusDonation:      {"DONATION", "Doação"},
}

// SaleStatuses lists every status in display order.
func SaleStatuses() []SaleStatus {
	return []SaleStatus{
		SaleStatusPending,
		SaleStatusPartiallyPaid,
		SaleStatusConfirmed,
		SaleStatusCancelled,
		SaleStatusDonation,
	}
}

// Valid reports whether s belongs to the closed set.
func (s SaleStatus) Valid() bool {
	_, ok := saleStatusTable[s]
	return ok
}

func (s SaleStatus) String() string {
	if e, ok := saleStatusTable[s]; ok {
		return e.code
	}
	return fmt.Sprintf("SaleStatus(%d)", uint8(s))
}

// Label returns the display string shown on dashboards and reports.
func (s SaleStatus) Label() string {
	return saleStatusTable[s].label
}

// ParseSaleStatus resolves a stored status code.
func ParseSaleStatus(code string) (SaleStatus, error) {
	for _, s := range SaleStatuses() {
		if strings.EqualFold(saleStatusTable[s].code, strings.TrimSpace(code)) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: sale status %q", ErrUnknownEnum, code)
}

func (s SaleStatus) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: sale status %d", ErrUnknownEnum, uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *SaleStatus) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParseSaleStatus(code)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PaymentMethod identifies how money moved; it doubles as the bank/cash account
// key in the trial balance.
type PaymentMethod uint8

const (
	PaymentMethodCash PaymentMethod = iota + 1
	PaymentMethodPix
	PaymentMethodDebitCard
	PaymentMethodCreditCard
	PaymentMethodBankTransfer
	PaymentMethodBoleto
	PaymentMethodCheck
	PaymentMethodStoreCredit
)

var paymentMethodTable = map[PaymentMethod]enumEntry{
	PaymentMethodCash:         {"CASH", "Dinheiro"},
	PaymentMethodPix:          {"PIX", "Pix"},
	PaymentMethodDebitCard:    {"DEBIT_CARD", "Cartão de débito"},
	PaymentMethodCreditCard:   {"CREDIT_CARD", "Cartão de crédito"},
	PaymentMethodBankTransfer: {"BANK_TRANSFER", "Transferência bancária"},
	PaymentMethodBoleto:       {"BOLETO", "Boleto"},
	PaymentMethodCheck:        {"CHECK", "Cheque"},
	PaymentMethodStoreCredit:  {"STORE_CREDIT", "Crédito em loja"},
}

// PaymentMethods lists every method in display order.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodPix,
		PaymentMethodDebitCard,
		PaymentMethodCreditCard,
		PaymentMethodBankTransfer,
		PaymentMethodBoleto,
		PaymentMethodCheck,
		PaymentMethodStoreCredit,
	}
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodTable[m]
	return ok
}

func (m PaymentMethod) String() string {
	if e, ok := paymentMethodTable[m]; ok {
		return e.code
	}
	return fmt.Sprintf("PaymentMethod(%d)", uint8(m))
}

func (m PaymentMethod) Label() string {
	return paymentMethodTable[m].label
}

// ParsePaymentMethod resolves a stored method code.
func ParsePaymentMethod(code string) (PaymentMethod, error) {
	for _, m := range PaymentMethods() {
		if strings.EqualFold(paymentMethodTable[m].code, strings.TrimSpace(code)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: payment method %q", ErrUnknownEnum, code)
}

func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: payment method %d", ErrUnknownEnum, uint8(m))
	}
	return json.Marshal(m.String())
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParsePaymentMethod(code)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ProductType enumerates the ceramic products the factory sells. Bricks and
// tiles are priced per milheiro (one thousand pieces).
type ProductType uint8

const (
	ProductBrick6Holes ProductType = iota + 1
	ProductBrick8Holes
	ProductBrick9Holes
	ProductStructuralBlock14
	ProductStructuralBlock19
	ProductSolidBrick
	ProductSplitBrick
	ProductColonialTile
	ProductPortugueseTile
	ProductRomanTile
	ProductPlanTile
	ProductRidgeTile
	ProductCobogo
	ProductSlabBlock
	ProductFloorTile
	ProductDecorativeBrick
	ProductChannelBlock
	ProductBreakageLot
)

var productTypeTable = map[ProductType]enumEntry{
	ProductBrick6Holes:       {"BRICK_6_HOLES", "Tijolo 6 furos"},
	ProductBrick8Holes:       {"BRICK_8_HOLES", "Tijolo 8 furos"},
	ProductBrick9Holes:       {"BRICK_9_HOLES", "Tijolo 9 furos"},
	ProductStructuralBlock14: {"STRUCTURAL_BLOCK_14", "Bloco estrutural 14"},
	ProductStructuralBlock19: {"STRUCTURAL_BLOCK_19", "Bloco estrutural 19"},
	ProductSolidBrick:        {"SOLID_BRICK", "Tijolo maciço"},
	ProductSplitBrick:        {"SPLIT_BRICK", "Tijolo meio"},
	ProductColonialTile:      {"COLONIAL_TILE", "Telha colonial"},
	ProductPortugueseTile:    {"PORTUGUESE_TILE", "Telha portuguesa"},
	ProductRomanTile:         {"ROMAN_TILE", "Telha romana"},
	ProductPlanTile:          {"PLAN_TILE", "Telha plan"},
	ProductRidgeTile:         {"RIDGE_TILE", "Cumeeira"},
	ProductCobogo:            {"COBOGO", "Cobogó"},
	ProductSlabBlock:         {"SLAB_BLOCK", "Lajota para laje"},
	ProductFloorTile:         {"FLOOR_TILE", "Piso cerâmico"},
	ProductDecorativeBrick:   {"DECORATIVE_BRICK", "Tijolo aparente"},
	ProductChannelBlock:      {"CHANNEL_BLOCK", "Canaleta"},
	ProductBreakageLot:       {"BREAKAGE_LOT", "Lote de quebra"},
}

// ProductTypes lists every product in catalogue order.
func ProductTypes() []ProductType {
	out := make([]ProductType, 0, len(productTypeTable))
	for p := ProductBrick6Holes; p <= ProductBreakageLot; p++ {
		out = append(out, p)
	}
	return out
}

func (p ProductType) Valid() bool {
	_, ok := productTypeTable[p]
	return ok
}

func (p ProductType) String() string {
	if e, ok := productTypeTable[p]; ok {
		return e.code
	}
	return fmt.Sprintf("ProductType(%d)", uint8(p))
}

func (p ProductType) Label() string {
	return productTypeTable[p].label
}

// ParseProductType resolves a stored product code.
func ParseProductType(code string) (ProductType, error) {
	for _, p := range ProductTypes() {
		if strings.EqualFold(productTypeTable[p].code, strings.TrimSpace(code)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: product type %q", ErrUnknownEnum, code)
}

func (p ProductType) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: product type %d", ErrUnknownEnum, uint8(p))
	}
	return json.Marshal(p.String())
}

func (p *ProductType) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParseProductType(code)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// LaunchType separates income from expense ledger entries.
type LaunchType uint8

const (
	LaunchIncome LaunchType = iota + 1
	LaunchExpense
)

func (t LaunchType) Valid() bool {
	return t == LaunchIncome || t == LaunchExpense
}

func (t LaunchType) String() string {
	switch t {
	case LaunchIncome:
		return "INCOME"
	case LaunchExpense:
		return "EXPENSE"
	}
	return fmt.Sprintf("LaunchType(%d)", uint8(t))
}

// ParseLaunchType resolves a stored launch type code.
func ParseLaunchType(code string) (LaunchType, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "INCOME":
		return LaunchIncome, nil
	case "EXPENSE":
		return LaunchExpense, nil
	}
	return 0, fmt.Errorf("%w: launch type %q", ErrUnknownEnum, code)
}

// LaunchStatus tracks whether a launch has settled.
type LaunchStatus uint8

const (
	LaunchPending LaunchStatus = iota + 1
	LaunchPaid
)

func (s LaunchStatus) Valid() bool {
	return s == LaunchPending || s == LaunchPaid
}

func (s LaunchStatus) String() string {
	switch s {
	case LaunchPending:
		return "PENDING"
	case LaunchPaid:
		return "PAID"
	}
	return fmt.Sprintf("LaunchStatus(%d)", uint8(s))
}

// ParseLaunchStatus resolves a stored launch status code.
func ParseLaunchStatus(code string) (LaunchStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "PENDING":
		return LaunchPending, nil
	case "PAID":
		return LaunchPaid, nil
	}
	return 0, fmt.Errorf("%w: launch status %q", ErrUnknownEnum, code)
}
