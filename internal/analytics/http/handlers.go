package analytichttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/olaria-erp/olaria/internal/analytics"
	"github.com/olaria-erp/olaria/internal/analytics/export"
	"github.com/olaria-erp/olaria/internal/platform/httpx"
)

const (
	dateLayout            = "2006-01-02"
	defaultRequestTimeout = 5 * time.Second
)

// AnalyticsService is the report contract the handler serves.
type AnalyticsService interface {
	GetSalesIndicators(ctx context.Context) (analytics.Indicators, error)
	GetTopProducts(ctx context.Context, q analytics.RankingQuery) ([]analytics.ProductRanking, error)
	GetTopCities(ctx context.Context, q analytics.RankingQuery) ([]analytics.CityRanking, error)
	GetPaymentBreakdown(ctx context.Context, q analytics.RankingQuery) (analytics.PaymentBreakdown, error)
	GetDashboard(ctx context.Context, q analytics.RankingQuery) (analytics.Dashboard, error)
	GetTrialBalance(ctx context.Context, q analytics.TrialBalanceQuery) (analytics.TrialBalance, error)
	GetFinancialReport(ctx context.Context, company analytics.CompanyProfile, q analytics.TrialBalanceQuery) (analytics.FinancialReport, error)
}

// PDFService renders report DTOs to PDF bytes.
type PDFService interface {
	RenderTrialBalance(ctx context.Context, fr analytics.FinancialReport) ([]byte, error)
	RenderDashboard(ctx context.Context, company analytics.CompanyProfile, d analytics.Dashboard) ([]byte, error)
}

// Options configures the handler.
type Options struct {
	Company  analytics.CompanyProfile
	Location *time.Location
	Timeout  time.Duration
	Now      func() time.Time
}

// Handler coordinates HTTP requests for the sales and finance reports.
type Handler struct {
	logger    *slog.Logger
	service   AnalyticsService
	pdf       PDFService
	validator *validator.Validate
	company   analytics.CompanyProfile
	location  *time.Location
	timeout   time.Duration
	now       func() time.Time
	csvPool   sync.Pool
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService, pdf PDFService, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		service:   service,
		pdf:       pdf,
		validator: validator.New(),
		company:   opts.Company,
		location:  opts.Location,
		timeout:   opts.Timeout,
		now:       opts.Now,
	}
	if h.location == nil {
		h.location = time.UTC
	}
	if h.timeout <= 0 {
		h.timeout = defaultRequestTimeout
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

type rankingForm struct {
	From  string `validate:"omitempty,datetime=2006-01-02,required_with=To"`
	To    string `validate:"omitempty,datetime=2006-01-02,required_with=From"`
	Limit string `validate:"omitempty,numeric"`
}

type trialBalanceForm struct {
	Period     string `validate:"omitempty,datetime=2006-01,excluded_with=From"`
	From       string `validate:"omitempty,datetime=2006-01-02,required_with=To"`
	To         string `validate:"omitempty,datetime=2006-01-02,required_with=From"`
	Account    string `validate:"omitempty,max=32"`
	CategoryID string `validate:"omitempty,numeric"`
}

func (h *Handler) validate(form any) error {
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return httpx.Invalid(fmt.Errorf("invalid %s: failed %q", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return httpx.Invalid(err)
	}
	return nil
}

func (h *Handler) parseRanking(r *http.Request) (analytics.RankingQuery, error) {
	q := r.URL.Query()
	form := rankingForm{
		From:  strings.TrimSpace(q.Get("from")),
		To:    strings.TrimSpace(q.Get("to")),
		Limit: strings.TrimSpace(q.Get("limit")),
	}
	if err := h.validate(form); err != nil {
		return analytics.RankingQuery{}, err
	}

	var out analytics.RankingQuery
	if form.Limit != "" {
		limit, err := strconv.Atoi(form.Limit)
		if err != nil {
			return analytics.RankingQuery{}, httpx.Invalid(fmt.Errorf("invalid limit: %w", err))
		}
		out.Limit = limit
	}
	if form.From != "" {
		rng, err := h.dayRange(form.From, form.To)
		if err != nil {
			return analytics.RankingQuery{}, err
		}
		out.Range = &rng
	}
	return out, nil
}

func (h *Handler) parseTrialBalance(r *http.Request) (analytics.TrialBalanceQuery, error) {
	q := r.URL.Query()
	form := trialBalanceForm{
		Period:     strings.TrimSpace(q.Get("period")),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
		Account:    strings.TrimSpace(q.Get("account")),
		CategoryID: strings.TrimSpace(q.Get("category_id")),
	}
	if err := h.validate(form); err != nil {
		return analytics.TrialBalanceQuery{}, err
	}

	var out analytics.TrialBalanceQuery
	switch {
	case form.From != "":
		rng, err := h.dayRange(form.From, form.To)
		if err != nil {
			return analytics.TrialBalanceQuery{}, err
		}
		out.Range = rng
	default:
		period := form.Period
		if period == "" {
			period = h.now().In(h.location).Format("2006-01")
		}
		rng, err := analytics.MonthRange(period, h.location)
		if err != nil {
			return analytics.TrialBalanceQuery{}, httpx.Invalid(err)
		}
		out.Range = rng
	}
	if form.Account != "" {
		method, err := analytics.ParsePaymentMethod(form.Account)
		if err != nil {
			return analytics.TrialBalanceQuery{}, httpx.Invalid(err)
		}
		out.Filters.Account = &method
	}
	if form.CategoryID != "" {
		id, err := strconv.ParseInt(form.CategoryID, 10, 64)
		if err != nil || id < 0 {
			return analytics.TrialBalanceQuery{}, httpx.Invalid(fmt.Errorf("invalid category_id %q", form.CategoryID))
		}
		out.Filters.CategoryID = &id
	}
	return out, nil
}

// dayRange expands two calendar dates into an inclusive instant range.
func (h *Handler) dayRange(from, to string) (analytics.DateRange, error) {
	start, err := time.ParseInLocation(dateLayout, from, h.location)
	if err != nil {
		return analytics.DateRange{}, httpx.Invalid(fmt.Errorf("invalid from: %w", err))
	}
	end, err := time.ParseInLocation(dateLayout, to, h.location)
	if err != nil {
		return analytics.DateRange{}, httpx.Invalid(fmt.Errorf("invalid to: %w", err))
	}
	rng := analytics.DateRange{Start: start, End: end.AddDate(0, 0, 1).Add(-time.Nanosecond)}
	if err := rng.Validate(); err != nil {
		return analytics.DateRange{}, httpx.Invalid(err)
	}
	return rng, nil
}

func (h *Handler) handleIndicators(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetSalesIndicators(ctx)
	if err != nil {
		h.respondError(w, "load indicators", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleTopProducts(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.service.GetTopProducts(ctx, q)
	if err != nil {
		h.respondError(w, "load top products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleTopCities(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.service.GetTopCities(ctx, q)
	if err != nil {
		h.respondError(w, "load top cities", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetPaymentBreakdown(ctx, q)
	if err != nil {
		h.respondError(w, "load payment methods", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetDashboard(ctx, q)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleTrialBalance(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseTrialBalance(r)
	if err != nil {
		h.respondError(w, "parse trial balance", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.service.GetTrialBalance(ctx, q)
	if err != nil {
		h.respondError(w, "load trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// Overview pairs the sales dashboard with the trial balance of the current month.
type Overview struct {
	Dashboard    analytics.Dashboard    `json:"dashboard"`
	TrialBalance analytics.TrialBalance `json:"trial_balance"`
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	balance, err := h.parseTrialBalance(r)
	if err != nil {
		h.respondError(w, "parse trial balance", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := h.service.GetDashboard(gctx, ranking)
		if err != nil {
			return err
		}
		out.Dashboard = d
		return nil
	})
	g.Go(func() error {
		tb, err := h.service.GetTrialBalance(gctx, balance)
		if err != nil {
			return err
		}
		out.TrialBalance = tb
		return nil
	})
	if err := g.Wait(); err != nil {
		h.respondError(w, "load overview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleDashboardCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	d, err := h.service.GetDashboard(ctx, q)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	h.streamCSV(w, "painel-"+d.Indicators.ReferenceDate+".csv", func(buf io.Writer) error {
		return export.WriteDashboardCSV(buf, d)
	})
}

func (h *Handler) handleTrialBalanceCSV(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseTrialBalance(r)
	if err != nil {
		h.respondError(w, "parse trial balance", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tb, err := h.service.GetTrialBalance(ctx, q)
	if err != nil {
		h.respondError(w, "load trial balance", err)
		return
	}
	filename := fmt.Sprintf("balancete-%s-%s.csv", tb.PeriodStart, tb.PeriodEnd)
	h.streamCSV(w, filename, func(buf io.Writer) error {
		return export.WriteTrialBalanceCSV(buf, tb)
	})
}

func (h *Handler) handleTrialBalancePDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.respondError(w, "pdf exporter", httpx.Unavailable(errors.New("pdf exporter not configured")))
		return
	}
	q, err := h.parseTrialBalance(r)
	if err != nil {
		h.respondError(w, "parse trial balance", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	fr, err := h.service.GetFinancialReport(ctx, h.company, q)
	if err != nil {
		h.respondError(w, "load financial report", err)
		return
	}
	pdf, err := h.pdf.RenderTrialBalance(ctx, fr)
	if err != nil {
		h.respondError(w, "render pdf", httpx.Unavailable(err))
		return
	}
	filename := fmt.Sprintf("balancete-%s-%s.pdf", fr.Balance.PeriodStart, fr.Balance.PeriodEnd)
	if err := httpx.Attachment(w, "", filename, pdf); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) handleDashboardPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		h.respondError(w, "pdf exporter", httpx.Unavailable(errors.New("pdf exporter not configured")))
		return
	}
	q, err := h.parseRanking(r)
	if err != nil {
		h.respondError(w, "parse ranking", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	d, err := h.service.GetDashboard(ctx, q)
	if err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	pdf, err := h.pdf.RenderDashboard(ctx, h.company, d)
	if err != nil {
		h.respondError(w, "render pdf", httpx.Unavailable(err))
		return
	}
	if err := httpx.Attachment(w, "", "painel-"+d.Indicators.ReferenceDate+".pdf", pdf); err != nil {
		h.logError("stream pdf", err)
	}
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()
	if err := write(buf); err != nil {
		h.respondError(w, "write csv", err)
		return
	}
	if err := httpx.Attachment(w, "", filename, buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

// respondError maps domain errors onto problem responses. Domain validation
// failures become 400s; everything unexpected is logged and hidden.
func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, analytics.ErrValidation):
		err = httpx.Invalid(err)
	case errors.Is(err, httpx.ErrValidation):
	default:
		h.logError(op, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(op string, err error) {
	h.logger.Error("analytics handler error", slog.String("op", op), slog.Any("error", err))
}
