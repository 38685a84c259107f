package analytics

import (
	"time"
)

// CompanyProfile identifies the issuer on printed reports.
type CompanyProfile struct {
	Name     string `json:"name"`
	Document string `json:"document"`
	City     string `json:"city"`
}

// Dashboard bundles the sales indicators with the three rankings, all computed
// from one snapshot.
type Dashboard struct {
	Indicators     Indicators       `json:"indicators"`
	RankingStart   string           `json:"ranking_start"`
	RankingEnd     string           `json:"ranking_end"`
	TopProducts    []ProductRanking `json:"top_products"`
	TopCities      []CityRanking    `json:"top_cities"`
	PaymentMethods PaymentBreakdown `json:"payment_methods"`
}

// FinancialReport is the printable trial balance.
type FinancialReport struct {
	Company     CompanyProfile `json:"company"`
	PeriodLabel string         `json:"period_label"`
	GeneratedAt string         `json:"generated_at"`
	Balance     TrialBalance   `json:"balance"`
}

// AssembleDashboard runs the aggregation and ranking engines over one set of
// sales. Any failure discards the whole result.
func AssembleDashboard(sales []Sale, w Windows, r DateRange, limit int) (Dashboard, error) {
	indicators, err := ComputeSalesIndicators(sales, w)
	if err != nil {
		return Dashboard{}, err
	}
	products, err := TopProducts(sales, r, limit)
	if err != nil {
		return Dashboard{}, err
	}
	cities, err := TopCities(sales, r, limit)
	if err != nil {
		return Dashboard{}, err
	}
	payments, err := PaymentMethodBreakdown(sales, r)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Indicators:     indicators,
		RankingStart:   r.Start.Format(time.RFC3339),
		RankingEnd:     r.End.Format(time.RFC3339),
		TopProducts:    products,
		TopCities:      cities,
		PaymentMethods: payments,
	}, nil
}

// AssembleFinancialReport wraps a trial balance with the data a printed
// report needs.
func AssembleFinancialReport(company CompanyProfile, tb TrialBalance, generatedAt time.Time) FinancialReport {
	label := tb.PeriodStart
	if tb.PeriodEnd != tb.PeriodStart {
		label = tb.PeriodStart + " a " + tb.PeriodEnd
	}
	return FinancialReport{
		Company:     company,
		PeriodLabel: label,
		GeneratedAt: generatedAt.Format(time.RFC3339),
		Balance:     tb,
	}
}
