package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SalesFilter scopes a sales read. A nil Range reads every active sale.
type SalesFilter struct {
	Range    *DateRange
	Statuses []SaleStatus
}

// PaymentFilter scopes a payment read by payment date.
type PaymentFilter struct {
	Range  DateRange
	Method *PaymentMethod
}

// LaunchFilter scopes a financial launch read.
type LaunchFilter struct {
	Range      DateRange
	Type       *LaunchType
	CategoryID *int64
	Status     *LaunchStatus
}

// ExtractFilter scopes a bank extract read.
type ExtractFilter struct {
	Range         DateRange
	AccountMethod *PaymentMethod
}

// Reader exposes the reads a report needs. Every call made through one Reader
// observes the same snapshot.
type Reader interface {
	ListSales(ctx context.Context, filter SalesFilter) ([]Sale, error)
	ListPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error)
	ListFinancialLaunches(ctx context.Context, filter LaunchFilter) ([]FinancialLaunch, error)
	ListBankExtracts(ctx context.Context, filter ExtractFilter) ([]BankExtract, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListCategoryGroups(ctx context.Context) ([]CategoryGroup, error)
}

// Repository opens consistent read snapshots.
type Repository interface {
	WithSnapshot(ctx context.Context, fn func(ctx context.Context, r Reader) error) error
}

// RankingQuery selects the window and size of a ranking. A nil Range means
// the last 30 days.
type RankingQuery struct {
	Range *DateRange
	Limit int
}

// TrialBalanceQuery selects the reconciliation window.
type TrialBalanceQuery struct {
	Range   DateRange
	Filters TrialBalanceFilters
}

// Service answers report queries. It holds no mutable state of its own, so a
// single instance serves concurrent requests.
type Service struct {
	repo         Repository
	cache        *Cache
	clock        Clock
	logger       *slog.Logger
	metrics      *Metrics
	rankingLimit int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the reference clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithRankingLimit changes the limit used when a query passes zero.
func WithRankingLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.rankingLimit = limit
		}
	}
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache, opts ...ServiceOption) *Service {
	s := &Service{
		repo:         repo,
		cache:        cache,
		clock:        SystemClock{},
		logger:       slog.Default(),
		rankingLimit: DefaultRankingLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Windows resolves the reporting windows for the service clock.
func (s *Service) Windows() Windows {
	return Resolve(s.clock.Now())
}

// Cache exposes the cache so write-side hooks and jobs can bump it.
func (s *Service) Cache() *Cache {
	return s.cache
}

// GetSalesIndicators computes the KPI card set for the implicit "now".
func (s *Service) GetSalesIndicators(ctx context.Context) (out Indicators, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("indicators", start, err) }(time.Now())
	w := s.Windows()
	err = s.cached(ctx, keyIndicators(w.Now.Format("2006-01-02")), &out, func(ctx context.Context) (interface{}, error) {
		sales, err := s.loadSales(ctx, SalesFilter{})
		if err != nil {
			return nil, err
		}
		return ComputeSalesIndicators(sales, w)
	})
	if err != nil {
		return Indicators{}, err
	}
	return out, nil
}

// GetTopProducts ranks products sold in the query window.
func (s *Service) GetTopProducts(ctx context.Context, q RankingQuery) (out []ProductRanking, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("top_products", start, err) }(time.Now())
	r, limit, err := s.rankingScope(q)
	if err != nil {
		return nil, err
	}
	err = s.cached(ctx, keyRanking("top_products", r, limit), &out, func(ctx context.Context) (interface{}, error) {
		sales, err := s.loadSales(ctx, rankingFilter(r))
		if err != nil {
			return nil, err
		}
		return TopProducts(sales, r, limit)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetTopCities ranks the cities buying in the query window.
func (s *Service) GetTopCities(ctx context.Context, q RankingQuery) (out []CityRanking, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("top_cities", start, err) }(time.Now())
	r, limit, err := s.rankingScope(q)
	if err != nil {
		return nil, err
	}
	err = s.cached(ctx, keyRanking("top_cities", r, limit), &out, func(ctx context.Context) (interface{}, error) {
		sales, err := s.loadSales(ctx, rankingFilter(r))
		if err != nil {
			return nil, err
		}
		return TopCities(sales, r, limit)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetPaymentBreakdown groups payments of the query window by method. The
// limit is ignored since every method is reported.
func (s *Service) GetPaymentBreakdown(ctx context.Context, q RankingQuery) (out PaymentBreakdown, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("payment_methods", start, err) }(time.Now())
	r, _, err := s.rankingScope(q)
	if err != nil {
		return PaymentBreakdown{}, err
	}
	err = s.cached(ctx, keyRanking("payment_methods", r, 0), &out, func(ctx context.Context) (interface{}, error) {
		sales, err := s.loadSales(ctx, rankingFilter(r))
		if err != nil {
			return nil, err
		}
		return PaymentMethodBreakdown(sales, r)
	})
	if err != nil {
		return PaymentBreakdown{}, err
	}
	return out, nil
}

// GetDashboard assembles indicators and rankings from a single snapshot.
func (s *Service) GetDashboard(ctx context.Context, q RankingQuery) (out Dashboard, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("dashboard", start, err) }(time.Now())
	w := s.Windows()
	r, limit, err := s.rankingScope(q)
	if err != nil {
		return Dashboard{}, err
	}
	err = s.cached(ctx, keyDashboard(w.Now.Format("2006-01-02"), r, limit), &out, func(ctx context.Context) (interface{}, error) {
		sales, err := s.loadSales(ctx, SalesFilter{})
		if err != nil {
			return nil, err
		}
		return AssembleDashboard(sales, w, r, limit)
	})
	if err != nil {
		return Dashboard{}, err
	}
	return out, nil
}

// GetTrialBalance reconciles income, expenses and extracts for the window.
func (s *Service) GetTrialBalance(ctx context.Context, q TrialBalanceQuery) (out TrialBalance, err error) {
	defer func(start time.Time) { err = s.metrics.Observe("trial_balance", start, err) }(time.Now())
	if err := q.Range.Validate(); err != nil {
		return TrialBalance{}, err
	}
	if q.Filters.Account != nil && !q.Filters.Account.Valid() {
		return TrialBalance{}, invalidEnum("account", ErrUnknownEnum)
	}
	err = s.cached(ctx, keyTrialBalance(q.Range, q.Filters), &out, func(ctx context.Context) (interface{}, error) {
		in, err := s.loadTrialBalanceInput(ctx, q)
		if err != nil {
			return nil, err
		}
		return ComputeTrialBalance(in)
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return out, nil
}

// GetFinancialReport packages a trial balance for printing.
func (s *Service) GetFinancialReport(ctx context.Context, company CompanyProfile, q TrialBalanceQuery) (FinancialReport, error) {
	tb, err := s.GetTrialBalance(ctx, q)
	if err != nil {
		return FinancialReport{}, err
	}
	return AssembleFinancialReport(company, tb, s.clock.Now()), nil
}

func (s *Service) rankingScope(q RankingQuery) (DateRange, int, error) {
	if q.Limit < 0 {
		return DateRange{}, 0, invalid("limit", "must not be negative")
	}
	limit := q.Limit
	if limit == 0 {
		limit = s.rankingLimit
	}
	r := s.Windows().Last30Days()
	if q.Range != nil {
		r = *q.Range
	}
	if err := r.Validate(); err != nil {
		return DateRange{}, 0, err
	}
	return r, limit, nil
}

func rankingFilter(r DateRange) SalesFilter {
	return SalesFilter{
		Range:    &r,
		Statuses: []SaleStatus{SaleStatusConfirmed, SaleStatusPartiallyPaid},
	}
}

func (s *Service) loadSales(ctx context.Context, filter SalesFilter) ([]Sale, error) {
	if s.repo == nil {
		return nil, errors.New("analytics: repository not configured")
	}
	var sales []Sale
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		sales, err = r.ListSales(ctx, filter)
		return err
	})
	if err != nil {
		return nil, transient("list sales", err)
	}
	return sales, nil
}

func (s *Service) loadTrialBalanceInput(ctx context.Context, q TrialBalanceQuery) (TrialBalanceInput, error) {
	if s.repo == nil {
		return TrialBalanceInput{}, errors.New("analytics: repository not configured")
	}
	in := TrialBalanceInput{Window: q.Range, Filters: q.Filters}
	err := s.repo.WithSnapshot(ctx, func(ctx context.Context, r Reader) error {
		var err error
		if in.Payments, err = r.ListPayments(ctx, PaymentFilter{Range: q.Range, Method: q.Filters.Account}); err != nil {
			return transient("list payments", err)
		}
		if in.Launches, err = r.ListFinancialLaunches(ctx, LaunchFilter{Range: q.Range}); err != nil {
			return transient("list launches", err)
		}
		if in.Extracts, err = r.ListBankExtracts(ctx, ExtractFilter{Range: q.Range, AccountMethod: q.Filters.Account}); err != nil {
			return transient("list extracts", err)
		}
		if in.Categories, err = r.ListCategories(ctx); err != nil {
			return transient("list categories", err)
		}
		if in.Groups, err = r.ListCategoryGroups(ctx); err != nil {
			return transient("list category groups", err)
		}
		return nil
	})
	if err != nil {
		return TrialBalanceInput{}, transient("snapshot", err)
	}
	return in, nil
}

type loadFailure struct{ err error }

func (l loadFailure) Error() string { return l.err.Error() }
func (l loadFailure) Unwrap() error { return l.err }

// cached resolves dest through the cache. A broken cache degrades to a direct
// load; loader failures and cancellation are returned as-is.
func (s *Service) cached(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	guarded := func(ctx context.Context) (interface{}, error) {
		value, err := loader(ctx)
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return nil, loadFailure{err: err}
		}
		return value, nil
	}

	var err error
	if s.cache == nil {
		err = (*Cache)(nil).FetchJSON(ctx, key, dest, guarded)
	} else {
		var fullKey string
		fullKey, err = s.cache.BuildKey(ctx, key)
		if err == nil {
			err = s.cache.FetchJSON(ctx, fullKey, dest, guarded)
		}
		if err != nil && ctx.Err() == nil && !isLoadFailure(err) {
			s.logger.Warn("analytics cache unavailable", slog.String("key", key), slog.Any("error", err))
			err = (*Cache)(nil).FetchJSON(ctx, key, dest, guarded)
		}
	}
	if err != nil {
		var lf loadFailure
		if errors.As(err, &lf) {
			return lf.err
		}
		return err
	}
	return ctx.Err()
}

func isLoadFailure(err error) bool {
	var lf loadFailure
	return errors.As(err, &lf)
}
