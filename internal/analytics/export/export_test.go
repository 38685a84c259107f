package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaria-erp/olaria/internal/analytics"
	"github.com/olaria-erp/olaria/report"
)

var march = analytics.DateRange{
	Start: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC),
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleTrialBalance(t *testing.T) analytics.TrialBalance {
	t.Helper()
	group := int64(1)
	category := int64(10)
	tb, err := analytics.ComputeTrialBalance(analytics.TrialBalanceInput{
		Window: march,
		Payments: []analytics.Payment{
			{Method: analytics.PaymentMethodCash, Amount: dec("1234.5"), Date: march.Start},
		},
		Launches: []analytics.FinancialLaunch{
			{ID: 1, Type: analytics.LaunchExpense, Status: analytics.LaunchPaid, Amount: dec("30"), Date: march.Start, CategoryID: &category},
		},
		Categories: []analytics.Category{{ID: 10, Name: "Lenha", GroupID: &group}},
		Groups:     []analytics.CategoryGroup{{ID: 1, Name: "Insumos <forno>"}},
		Extracts: []analytics.BankExtract{
			{AccountMethod: analytics.PaymentMethodPix, Date: march.Start, Value: dec("-10")},
		},
	})
	require.NoError(t, err)
	return tb
}

func sampleDashboard(t *testing.T) analytics.Dashboard {
	t.Helper()
	sale := analytics.Sale{
		ID:       1,
		Status:   analytics.SaleStatusConfirmed,
		Date:     time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC),
		TotalNet: dec("1500"),
		City:     "Russas",
		State:    "CE",
		Items:    []analytics.SaleItem{{Product: analytics.ProductColonialTile, Quantity: dec("1.5"), Subtotal: dec("1500")}},
		Payments: []analytics.Payment{{Method: analytics.PaymentMethodPix, Amount: dec("1500")}},
	}
	d, err := analytics.AssembleDashboard([]analytics.Sale{sale}, analytics.Resolve(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)), march, 5)
	require.NoError(t, err)
	return d
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	reader := csv.NewReader(bytes.NewReader(buf.Bytes()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteIndicatorsCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteIndicatorsCSV(buf, sampleDashboard(t).Indicators))

	records := readCSV(t, buf)
	assert.Equal(t, []string{"Metric", "Value"}, records[0])
	assert.Contains(t, records, []string{"Revenue This Month", "1500.00"})
	assert.Contains(t, records, []string{"Status CONFIRMED", "1"})
	assert.Contains(t, records, []string{"2024-03", "1", "1500.00"})
}

func TestWriteDashboardCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteDashboardCSV(buf, sampleDashboard(t)))

	records := readCSV(t, buf)
	assert.Contains(t, records, []string{"1", "COLONIAL_TILE", analytics.ProductColonialTile.Label(), "1.5", "1500.00", "1"})
	assert.Contains(t, records, []string{"1", "Russas", "CE", "1", "1500.00"})
	assert.Contains(t, records, []string{"PIX", "Pix", "1", "1500.00", "100.00"})
}

func TestWriteTrialBalanceCSV(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteTrialBalanceCSV(buf, sampleTrialBalance(t)))

	records := readCSV(t, buf)
	assert.Equal(t, []string{"Section", "Group", "Item", "Entries", "Amount"}, records[0])
	assert.Contains(t, records, []string{"Income", "", "CASH", "1", "1234.50"})
	assert.Contains(t, records, []string{"Expense", "Insumos <forno>", "Lenha", "1", "30.00"})
	assert.Contains(t, records, []string{"Expense Group", analytics.UncategorizedName, "", "", "0.00"})
	assert.Equal(t, []string{"Net Balance", "2024-03-01", "2024-03-31", "", "1194.50"}, records[len(records)-1])
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "R$ 1.234,50", brl(dec("1234.5")))
	assert.Equal(t, "R$ -10,00", brl(dec("-10")))
	assert.Equal(t, "66,67%", percent(dec("66.67")))
	assert.Equal(t, "31/03/2024", dateBR("2024-03-31"))
	assert.Equal(t, "1500.00", plain(dec("1500")))
}

func TestFormattingKeepsLargeAmountsExact(t *testing.T) {
	assert.Equal(t, "R$ 12.345.678.901.234.567,89", brl(dec("12345678901234567.89")))
	assert.Equal(t, "R$ -9.007.199.254.740.993,01", brl(dec("-9007199254740993.005")))
	assert.Equal(t, "R$ 999,00", brl(dec("999")))
	assert.Equal(t, "R$ 0,00", brl(dec("0.004")))
	assert.Equal(t, "1.000,125", grouped(dec("1000.125"), 3))
}

type stubRenderer struct {
	doc report.Document
	err error
}

func (s *stubRenderer) RenderHTML(ctx context.Context, doc report.Document) ([]byte, error) {
	s.doc = doc
	if s.err != nil {
		return nil, s.err
	}
	return []byte("%PDF"), nil
}

func newTestExporter(t *testing.T, r Renderer) *PDFExporter {
	t.Helper()
	p, err := NewPDFExporter(r)
	require.NoError(t, err)
	p.newID = func() string { return "doc-1" }
	return p
}

func TestRenderTrialBalance(t *testing.T) {
	stub := &stubRenderer{}
	p := newTestExporter(t, stub)
	fr := analytics.AssembleFinancialReport(
		analytics.CompanyProfile{Name: "Cerâmica São José", Document: "12.345.678/0001-90"},
		sampleTrialBalance(t),
		time.Date(2024, time.April, 1, 8, 0, 0, 0, time.UTC),
	)

	pdf, err := p.RenderTrialBalance(context.Background(), fr)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.Equal(t, "balancete-2024-03-01-2024-03-31", stub.doc.Filename)
	assert.False(t, stub.doc.Landscape)

	html := stub.doc.HTML
	assert.Contains(t, html, "Cerâmica São José")
	assert.Contains(t, html, "01/03/2024 a 31/03/2024")
	assert.Contains(t, html, "R$ 1.234,50")
	assert.Contains(t, html, "Insumos &lt;forno&gt;")
	assert.Contains(t, html, analytics.UncategorizedName)
	assert.Contains(t, html, "Documento doc-1")
	assert.Contains(t, html, `class="negative"`)
}

func TestRenderDashboard(t *testing.T) {
	stub := &stubRenderer{}
	p := newTestExporter(t, stub)

	_, err := p.RenderDashboard(context.Background(), analytics.CompanyProfile{Name: "Olaria"}, sampleDashboard(t))
	require.NoError(t, err)
	assert.True(t, stub.doc.Landscape)
	assert.Equal(t, "painel-2024-03-15", stub.doc.Filename)
	assert.Contains(t, stub.doc.HTML, analytics.ProductColonialTile.Label())
	assert.Contains(t, stub.doc.HTML, "Russas/CE")
	assert.Contains(t, stub.doc.HTML, "100,00%")
}

func TestRenderPropagatesRendererErrors(t *testing.T) {
	cause := errors.New("gotenberg down")
	p := newTestExporter(t, &stubRenderer{err: cause})
	_, err := p.RenderTrialBalance(context.Background(), analytics.FinancialReport{Balance: sampleTrialBalance(t)})
	assert.ErrorIs(t, err, cause)

	_, err = newTestExporter(t, nil).RenderDashboard(context.Background(), analytics.CompanyProfile{}, sampleDashboard(t))
	assert.Error(t, err)
}
