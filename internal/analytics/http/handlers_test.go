package analytichttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaria-erp/olaria/internal/analytics"
)

var refNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

type stubService struct {
	mu           sync.Mutex
	rankings     []analytics.RankingQuery
	balances     []analytics.TrialBalanceQuery
	company      analytics.CompanyProfile
	dashboardErr error
	balanceErr   error
}

func (s *stubService) recordRanking(q analytics.RankingQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankings = append(s.rankings, q)
}

func (s *stubService) recordBalance(q analytics.TrialBalanceQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append(s.balances, q)
}

func (s *stubService) GetSalesIndicators(ctx context.Context) (analytics.Indicators, error) {
	return analytics.Indicators{ReferenceDate: "2024-03-15", TotalSales: 4, AverageTicket: decimal.NewFromInt(200)}, nil
}

func (s *stubService) GetTopProducts(ctx context.Context, q analytics.RankingQuery) ([]analytics.ProductRanking, error) {
	s.recordRanking(q)
	return []analytics.ProductRanking{{Product: analytics.ProductColonialTile, Label: analytics.ProductColonialTile.Label()}}, nil
}

func (s *stubService) GetTopCities(ctx context.Context, q analytics.RankingQuery) ([]analytics.CityRanking, error) {
	s.recordRanking(q)
	return []analytics.CityRanking{{City: "Russas", State: "CE"}}, nil
}

func (s *stubService) GetPaymentBreakdown(ctx context.Context, q analytics.RankingQuery) (analytics.PaymentBreakdown, error) {
	s.recordRanking(q)
	return analytics.PaymentBreakdown{}, nil
}

func (s *stubService) GetDashboard(ctx context.Context, q analytics.RankingQuery) (analytics.Dashboard, error) {
	s.recordRanking(q)
	if s.dashboardErr != nil {
		return analytics.Dashboard{}, s.dashboardErr
	}
	return analytics.Dashboard{
		Indicators:   analytics.Indicators{ReferenceDate: "2024-03-15", TotalSales: 4},
		RankingStart: "2024-02-15",
		RankingEnd:   "2024-03-15",
		TopCities:    []analytics.CityRanking{{City: "Russas", State: "CE", Count: 1, Revenue: decimal.NewFromInt(600)}},
	}, nil
}

func (s *stubService) GetTrialBalance(ctx context.Context, q analytics.TrialBalanceQuery) (analytics.TrialBalance, error) {
	s.recordBalance(q)
	if s.balanceErr != nil {
		return analytics.TrialBalance{}, s.balanceErr
	}
	return analytics.TrialBalance{
		PeriodStart: q.Range.Start.Format("2006-01-02"),
		PeriodEnd:   q.Range.End.Format("2006-01-02"),
		NetBalance:  decimal.NewFromInt(90),
	}, nil
}

func (s *stubService) GetFinancialReport(ctx context.Context, company analytics.CompanyProfile, q analytics.TrialBalanceQuery) (analytics.FinancialReport, error) {
	s.mu.Lock()
	s.company = company
	s.mu.Unlock()
	tb, err := s.GetTrialBalance(ctx, q)
	if err != nil {
		return analytics.FinancialReport{}, err
	}
	return analytics.AssembleFinancialReport(company, tb, refNow), nil
}

type stubPDF struct {
	data   []byte
	err    error
	report analytics.FinancialReport
}

func (s *stubPDF) RenderTrialBalance(ctx context.Context, fr analytics.FinancialReport) ([]byte, error) {
	s.report = fr
	return s.bytes()
}

func (s *stubPDF) RenderDashboard(ctx context.Context, company analytics.CompanyProfile, d analytics.Dashboard) ([]byte, error) {
	return s.bytes()
}

func (s *stubPDF) bytes() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.data == nil {
		s.data = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("PDF"), 400)...)
	}
	return s.data, nil
}

func newTestHandler(t *testing.T, svc *stubService, pdf PDFService) (*Handler, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, svc, pdf, Options{
		Company: analytics.CompanyProfile{Name: "Cerâmica São José"},
		Now:     func() time.Time { return refNow },
	})
	r := chi.NewRouter()
	h.MountRoutes(r)
	return h, r
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestIndicatorsEndpoint(t *testing.T) {
	_, router := newTestHandler(t, &stubService{}, nil)

	rr := get(t, router, "/reports/indicators")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "2024-03-15", body["reference_date"])
	assert.Equal(t, "200", body["average_ticket"])
}

func TestRankingQueryParsing(t *testing.T) {
	svc := &stubService{}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/top-products?from=2024-03-01&to=2024-03-31&limit=3")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, svc.rankings, 1)
	q := svc.rankings[0]
	assert.Equal(t, 3, q.Limit)
	require.NotNil(t, q.Range)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), q.Range.Start)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), q.Range.End)

	rr = get(t, router, "/reports/top-cities")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, svc.rankings[1].Range)
	assert.Zero(t, svc.rankings[1].Limit)
}

func TestInvalidQueriesReturnBadRequest(t *testing.T) {
	cases := []string{
		"/reports/top-products?limit=abc",
		"/reports/top-products?from=2024-03-01",
		"/reports/top-cities?from=2024-03-31&to=2024-03-01",
		"/reports/payment-methods?from=01/03/2024&to=2024-03-31",
		"/reports/trial-balance?period=2024-13",
		"/reports/trial-balance?period=2024-03&from=2024-03-01&to=2024-03-02",
		"/reports/trial-balance?account=CHEQUE",
		"/reports/trial-balance?category_id=-1",
	}
	for _, target := range cases {
		t.Run(target, func(t *testing.T) {
			svc := &stubService{}
			_, router := newTestHandler(t, svc, nil)
			rr := get(t, router, target)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			assert.Empty(t, svc.rankings)
			assert.Empty(t, svc.balances)
		})
	}
}

func TestServiceValidationErrorMapsToBadRequest(t *testing.T) {
	svc := &stubService{dashboardErr: &analytics.ValidationError{Field: "limit", Reason: "must not be negative"}}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/dashboard")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransientErrorIsHidden(t *testing.T) {
	svc := &stubService{dashboardErr: &analytics.TransientError{Op: "list sales", Err: errors.New("dial tcp: refused")}}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/dashboard")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "refused")
}

func TestTrialBalanceDefaultsToCurrentMonth(t *testing.T) {
	svc := &stubService{}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/trial-balance?account=PIX&category_id=12")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, svc.balances, 1)
	q := svc.balances[0]
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), q.Range.Start)
	require.NotNil(t, q.Filters.Account)
	assert.Equal(t, analytics.PaymentMethodPix, *q.Filters.Account)
	require.NotNil(t, q.Filters.CategoryID)
	assert.Equal(t, int64(12), *q.Filters.CategoryID)
	assert.Contains(t, rr.Body.String(), `"net_balance":"90"`)
}

func TestOverviewLoadsBothReports(t *testing.T) {
	svc := &stubService{}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/overview?period=2024-02")
	require.Equal(t, http.StatusOK, rr.Code)

	var body Overview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(4), body.Dashboard.Indicators.TotalSales)
	assert.Equal(t, "2024-02-01", body.TrialBalance.PeriodStart)
	assert.Equal(t, "2024-02-29", body.TrialBalance.PeriodEnd)
}

func TestOverviewFailsWhenEitherReportFails(t *testing.T) {
	svc := &stubService{balanceErr: &analytics.TransientError{Op: "snapshot", Err: errors.New("boom")}}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/overview")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestTrialBalanceCSVExport(t *testing.T) {
	_, router := newTestHandler(t, &stubService{}, nil)

	rr := get(t, router, "/reports/trial-balance.csv?period=2024-03")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "balancete-2024-03-01-2024-03-31.csv")
	assert.Contains(t, rr.Body.String(), "Net Balance,2024-03-01,2024-03-31,,90.00")
}

func TestDashboardCSVExport(t *testing.T) {
	_, router := newTestHandler(t, &stubService{}, nil)

	rr := get(t, router, "/reports/dashboard.csv")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "painel-2024-03-15.csv")
	assert.Contains(t, rr.Body.String(), "Metric,Value")
	assert.Contains(t, rr.Body.String(), "Russas")
}

func TestTrialBalancePDFExport(t *testing.T) {
	svc := &stubService{}
	pdf := &stubPDF{}
	_, router := newTestHandler(t, svc, pdf)

	rr := get(t, router, "/reports/trial-balance.pdf?from=2024-03-01&to=2024-03-15")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Greater(t, rr.Body.Len(), 1024)
	assert.Equal(t, "Cerâmica São José", svc.company.Name)
	assert.Equal(t, "2024-03-15", pdf.report.Balance.PeriodEnd)
}

func TestPDFExportErrors(t *testing.T) {
	_, router := newTestHandler(t, &stubService{}, nil)
	rr := get(t, router, "/reports/dashboard.pdf")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	_, router = newTestHandler(t, &stubService{}, &stubPDF{err: errors.New("gotenberg: status 502")})
	rr = get(t, router, "/reports/trial-balance.pdf")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotContains(t, rr.Body.String(), "gotenberg")
}

func TestExportsAreRateLimited(t *testing.T) {
	_, router := newTestHandler(t, &stubService{}, &stubPDF{})

	for i := 0; i < ExportRateLimit; i++ {
		rr := get(t, router, "/reports/dashboard.csv")
		require.Equal(t, http.StatusOK, rr.Code, fmt.Sprintf("request %d", i))
	}
	rr := get(t, router, "/reports/dashboard.pdf")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = get(t, router, "/reports/dashboard")
	assert.Equal(t, http.StatusOK, rr.Code, "json endpoints are not limited")
}

func TestInconsistentStoredDataIsServerError(t *testing.T) {
	cause := fmt.Errorf("%w: income launch 7 has no account", analytics.ErrInconsistentData)
	svc := &stubService{balanceErr: cause}
	_, router := newTestHandler(t, svc, nil)

	rr := get(t, router, "/reports/trial-balance?period=2024-03")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "launch 7")
}
