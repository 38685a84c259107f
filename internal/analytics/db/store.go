// Package db reads the analytics snapshot from PostgreSQL.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/olaria-erp/olaria/internal/analytics"
	platformdb "github.com/olaria-erp/olaria/internal/platform/db"
)

// Schema is the DDL of the tables the store reads.
//
//go:embed schema.sql
var Schema string

// Querier is the subset of pgx.Tx the reader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements analytics.Repository on a pgx pool.
type Store struct {
	pool platformdb.Beginner
}

var _ analytics.Repository = (*Store)(nil)

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		return &Store{}
	}
	return &Store{pool: pool}
}

// ApplySchema creates the read model tables when missing.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("analytics/db: apply schema: %w", err)
	}
	return nil
}

// WithSnapshot opens a read-only repeatable-read transaction and hands fn a
// Reader bound to it.
func (s *Store) WithSnapshot(ctx context.Context, fn func(ctx context.Context, r analytics.Reader) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("analytics/db: store not initialised")
	}
	return platformdb.WithSnapshot(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewReader(tx))
	})
}

// Reader runs the snapshot queries.
type Reader struct {
	q Querier
}

var _ analytics.Reader = (*Reader)(nil)

// NewReader binds a Reader to q.
func NewReader(q Querier) *Reader {
	return &Reader{q: q}
}

// where accumulates positional predicates.
type where struct {
	conds []string
	args  []any
}

// add appends a predicate; each "?" in expr becomes the next placeholder.
func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.ReplaceAll(expr, "?", fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) between(column string, r analytics.DateRange) {
	w.add(column+" >= ?", r.Start)
	w.add(column+" <= ?", r.End)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func salesWhere(filter analytics.SalesFilter) *where {
	w := &where{}
	if filter.Range != nil {
		w.between("s.sale_date", *filter.Range)
	}
	if len(filter.Statuses) > 0 {
		codes := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			codes = append(codes, st.String())
		}
		w.add("s.status = ANY(?)", codes)
	}
	return w
}

// ListSales loads the matching sales with their items and payments.
func (r *Reader) ListSales(ctx context.Context, filter analytics.SalesFilter) ([]analytics.Sale, error) {
	w := salesWhere(filter)
	rows, err := r.q.Query(ctx, `
		SELECT s.id, s.sale_date, s.status, s.total_net::text, s.discount::text,
		       s.customer_name, s.city, s.state
		FROM sales s`+w.clause()+`
		ORDER BY s.sale_date, s.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []analytics.Sale
	index := make(map[int64]int)
	for rows.Next() {
		var (
			sale            analytics.Sale
			status          string
			total, discount string
		)
		if err := rows.Scan(&sale.ID, &sale.Date, &status, &total, &discount, &sale.CustomerName, &sale.City, &sale.State); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if sale.Status, err = analytics.ParseSaleStatus(status); err != nil {
			return nil, fmt.Errorf("sale %d: %w", sale.ID, err)
		}
		if sale.TotalNet, err = parseDecimal(total); err != nil {
			return nil, fmt.Errorf("sale %d total: %w", sale.ID, err)
		}
		if sale.Discount, err = parseDecimal(discount); err != nil {
			return nil, fmt.Errorf("sale %d discount: %w", sale.ID, err)
		}
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return sales, nil
	}

	if err := r.attachItems(ctx, w, sales, index); err != nil {
		return nil, err
	}
	if err := r.attachPayments(ctx, w, sales, index); err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *Reader) attachItems(ctx context.Context, w *where, sales []analytics.Sale, index map[int64]int) error {
	rows, err := r.q.Query(ctx, `
		SELECT i.sale_id, i.product, i.quantity::text, i.unit_price::text, i.subtotal::text
		FROM sale_items i
		WHERE i.sale_id IN (SELECT s.id FROM sales s`+w.clause()+`)
		ORDER BY i.sale_id, i.id`, w.args...)
	if err != nil {
		return fmt.Errorf("query sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID                    int64
			product                   string
			quantity, price, subtotal string
			item                      analytics.SaleItem
		)
		if err := rows.Scan(&saleID, &product, &quantity, &price, &subtotal); err != nil {
			return fmt.Errorf("scan sale item: %w", err)
		}
		if item.Product, err = analytics.ParseProductType(product); err != nil {
			return fmt.Errorf("sale %d item: %w", saleID, err)
		}
		if item.Quantity, err = parseDecimal(quantity); err != nil {
			return fmt.Errorf("sale %d quantity: %w", saleID, err)
		}
		if item.UnitPrice, err = parseDecimal(price); err != nil {
			return fmt.Errorf("sale %d unit price: %w", saleID, err)
		}
		if item.Subtotal, err = parseDecimal(subtotal); err != nil {
			return fmt.Errorf("sale %d subtotal: %w", saleID, err)
		}
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	return rows.Err()
}

func (r *Reader) attachPayments(ctx context.Context, w *where, sales []analytics.Sale, index map[int64]int) error {
	rows, err := r.q.Query(ctx, `
		SELECT p.sale_id, p.method, p.amount::text, p.paid_at
		FROM sale_payments p
		WHERE p.sale_id IN (SELECT s.id FROM sales s`+w.clause()+`)
		ORDER BY p.sale_id, p.id`, w.args...)
	if err != nil {
		return fmt.Errorf("query sale payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return err
		}
		if i, ok := index[p.SaleID]; ok {
			sales[i].Payments = append(sales[i].Payments, p)
		}
	}
	return rows.Err()
}

// ListPayments loads payments by payment date.
func (r *Reader) ListPayments(ctx context.Context, filter analytics.PaymentFilter) ([]analytics.Payment, error) {
	w := &where{}
	w.between("p.paid_at", filter.Range)
	if filter.Method != nil {
		w.add("p.method = ?", filter.Method.String())
	}
	rows, err := r.q.Query(ctx, `
		SELECT p.sale_id, p.method, p.amount::text, p.paid_at
		FROM sale_payments p`+w.clause()+`
		ORDER BY p.paid_at, p.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []analytics.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(rows pgx.Rows) (analytics.Payment, error) {
	var (
		p              analytics.Payment
		method, amount string
	)
	if err := rows.Scan(&p.SaleID, &method, &amount, &p.Date); err != nil {
		return analytics.Payment{}, fmt.Errorf("scan payment: %w", err)
	}
	var err error
	if p.Method, err = analytics.ParsePaymentMethod(method); err != nil {
		return analytics.Payment{}, fmt.Errorf("payment of sale %d: %w", p.SaleID, err)
	}
	if p.Amount, err = parseDecimal(amount); err != nil {
		return analytics.Payment{}, fmt.Errorf("payment of sale %d amount: %w", p.SaleID, err)
	}
	return p, nil
}

// ListFinancialLaunches loads launches dated inside the filter range.
func (r *Reader) ListFinancialLaunches(ctx context.Context, filter analytics.LaunchFilter) ([]analytics.FinancialLaunch, error) {
	w := &where{}
	w.between("l.launch_date", filter.Range)
	if filter.Type != nil {
		w.add("l.type = ?", filter.Type.String())
	}
	if filter.Status != nil {
		w.add("l.status = ?", filter.Status.String())
	}
	if filter.CategoryID != nil {
		w.add("l.category_id = ?", *filter.CategoryID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT l.id, l.type, l.amount::text, l.launch_date, l.due_date, l.status,
		       l.category_id, l.method, l.description
		FROM financial_launches l`+w.clause()+`
		ORDER BY l.launch_date, l.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var out []analytics.FinancialLaunch
	for rows.Next() {
		var (
			l                    analytics.FinancialLaunch
			kind, status, amount string
			due                  *time.Time
			method               *string
		)
		if err := rows.Scan(&l.ID, &kind, &amount, &l.Date, &due, &status, &l.CategoryID, &method, &l.Description); err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		if l.Type, err = analytics.ParseLaunchType(kind); err != nil {
			return nil, fmt.Errorf("launch %d: %w", l.ID, err)
		}
		if l.Status, err = analytics.ParseLaunchStatus(status); err != nil {
			return nil, fmt.Errorf("launch %d: %w", l.ID, err)
		}
		if l.Amount, err = parseDecimal(amount); err != nil {
			return nil, fmt.Errorf("launch %d amount: %w", l.ID, err)
		}
		if due != nil {
			l.DueDate = *due
		}
		if method != nil && *method != "" {
			if l.Method, err = analytics.ParsePaymentMethod(*method); err != nil {
				return nil, fmt.Errorf("launch %d: %w", l.ID, err)
			}
		} else if l.Type == analytics.LaunchIncome {
			return nil, fmt.Errorf("launch %d: income without account: %w", l.ID, analytics.ErrInconsistentData)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListBankExtracts loads extract lines dated inside the filter range.
func (r *Reader) ListBankExtracts(ctx context.Context, filter analytics.ExtractFilter) ([]analytics.BankExtract, error) {
	w := &where{}
	w.between("e.extract_date", filter.Range)
	if filter.AccountMethod != nil {
		w.add("e.account_method = ?", filter.AccountMethod.String())
	}
	rows, err := r.q.Query(ctx, `
		SELECT e.id, e.account_method, e.extract_date, e.value::text, e.observation
		FROM bank_extracts e`+w.clause()+`
		ORDER BY e.extract_date, e.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query extracts: %w", err)
	}
	defer rows.Close()

	var out []analytics.BankExtract
	for rows.Next() {
		var (
			e             analytics.BankExtract
			method, value string
		)
		if err := rows.Scan(&e.ID, &method, &e.Date, &value, &e.Observation); err != nil {
			return nil, fmt.Errorf("scan extract: %w", err)
		}
		if e.AccountMethod, err = analytics.ParsePaymentMethod(method); err != nil {
			return nil, fmt.Errorf("extract %d: %w", e.ID, err)
		}
		if e.Value, err = parseDecimal(value); err != nil {
			return nil, fmt.Errorf("extract %d value: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListCategories loads every expense category.
func (r *Reader) ListCategories(ctx context.Context) ([]analytics.Category, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, group_id FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.Category, error) {
		var c analytics.Category
		err := row.Scan(&c.ID, &c.Name, &c.GroupID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return out, nil
}

// ListCategoryGroups loads every category group.
func (r *Reader) ListCategoryGroups(ctx context.Context) ([]analytics.CategoryGroup, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name FROM category_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query category groups: %w", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByPos[analytics.CategoryGroup])
	if err != nil {
		return nil, fmt.Errorf("scan category groups: %w", err)
	}
	return out, nil
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}
