package export

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olaria-erp/olaria/internal/analytics"
	"github.com/olaria-erp/olaria/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer converts HTML documents to PDF.
type Renderer interface {
	RenderHTML(ctx context.Context, doc report.Document) ([]byte, error)
}

// PDFExporter renders report DTOs through Gotenberg.
type PDFExporter struct {
	renderer  Renderer
	templates *template.Template
	newID     func() string
}

// NewPDFExporter parses the embedded templates.
func NewPDFExporter(renderer Renderer) (*PDFExporter, error) {
	funcMap := template.FuncMap{
		"brl":     brl,
		"percent": percent,
		"dateBR":  dateBR,
		"qty": func(d decimal.Decimal) string {
			return grouped(d, 3)
		},
		"periodBR": func(start, end string) string {
			if start == end {
				return dateBR(start)
			}
			return dateBR(start) + " a " + dateBR(end)
		},
	}
	tmpl, err := template.New("export").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("export: parse templates: %w", err)
	}
	return &PDFExporter{renderer: renderer, templates: tmpl, newID: uuid.NewString}, nil
}

type trialBalanceView struct {
	Report     analytics.FinancialReport
	DocumentID string
}

type dashboardView struct {
	Company    analytics.CompanyProfile
	Dashboard  analytics.Dashboard
	DocumentID string
}

// TrialBalanceHTML renders the printable trial balance page.
func (p *PDFExporter) TrialBalanceHTML(fr analytics.FinancialReport) (string, error) {
	return p.execute("trial_balance.html", trialBalanceView{Report: fr, DocumentID: p.newID()})
}

// DashboardHTML renders the printable dashboard page.
func (p *PDFExporter) DashboardHTML(company analytics.CompanyProfile, d analytics.Dashboard) (string, error) {
	return p.execute("dashboard.html", dashboardView{Company: company, Dashboard: d, DocumentID: p.newID()})
}

// RenderTrialBalance produces the trial balance PDF.
func (p *PDFExporter) RenderTrialBalance(ctx context.Context, fr analytics.FinancialReport) ([]byte, error) {
	html, err := p.TrialBalanceHTML(fr)
	if err != nil {
		return nil, err
	}
	return p.render(ctx, report.Document{
		Filename: fmt.Sprintf("balancete-%s-%s", fr.Balance.PeriodStart, fr.Balance.PeriodEnd),
		HTML:     html,
	})
}

// RenderDashboard produces the dashboard PDF in landscape.
func (p *PDFExporter) RenderDashboard(ctx context.Context, company analytics.CompanyProfile, d analytics.Dashboard) ([]byte, error) {
	html, err := p.DashboardHTML(company, d)
	if err != nil {
		return nil, err
	}
	return p.render(ctx, report.Document{
		Filename:  "painel-" + d.Indicators.ReferenceDate,
		HTML:      html,
		Landscape: true,
	})
}

func (p *PDFExporter) execute(name string, data any) (string, error) {
	if p == nil || p.templates == nil {
		return "", fmt.Errorf("export: pdf exporter not initialised")
	}
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("export: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (p *PDFExporter) render(ctx context.Context, doc report.Document) ([]byte, error) {
	if p.renderer == nil {
		return nil, fmt.Errorf("export: pdf renderer not configured")
	}
	pdf, err := p.renderer.RenderHTML(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("export: render pdf: %w", err)
	}
	return pdf, nil
}
