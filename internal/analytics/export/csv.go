package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/olaria-erp/olaria/internal/analytics"
)

// WriteIndicatorsCSV serialises the KPI set as metric/value pairs followed by
// the trailing twelve month series.
func WriteIndicatorsCSV(w io.Writer, ind analytics.Indicators) error {
	writer := csv.NewWriter(w)
	records := [][]string{
		{"Metric", "Value"},
		{"Reference Date", ind.ReferenceDate},
		{"Sales This Month", strconv.FormatInt(ind.ThisMonth.Count, 10)},
		{"Revenue This Month", plain(ind.ThisMonth.Revenue)},
		{"Sales Previous Month", strconv.FormatInt(ind.PreviousMonth.Count, 10)},
		{"Revenue Previous Month", plain(ind.PreviousMonth.Revenue)},
		{"Sales This Year", strconv.FormatInt(ind.ThisYear.Count, 10)},
		{"Revenue This Year", plain(ind.ThisYear.Revenue)},
		{"Sales Last 30 Days", strconv.FormatInt(ind.Last30Days.Count, 10)},
		{"Sales Last 7 Days", strconv.FormatInt(ind.Last7Days.Count, 10)},
		{"Total Sales", strconv.FormatInt(ind.TotalSales, 10)},
		{"Average Ticket", plain(ind.AverageTicket)},
		{"Unique Customers", strconv.FormatInt(ind.UniqueCustomers, 10)},
		{"Outstanding Balance", plain(ind.OutstandingBalance)},
		{"Conversion Rate", plain(ind.Ratios.ConversionRate)},
		{"Monthly Growth", plain(ind.Ratios.MonthlyGrowth)},
		{"Active Sales", strconv.FormatInt(ind.Ratios.TotalActiveSales, 10)},
	}
	for _, row := range ind.StatusBreakdown {
		records = append(records, []string{"Status " + row.Status.String(), strconv.FormatInt(row.Count, 10)})
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"Month", "Sales", "Revenue"}); err != nil {
		return err
	}
	for i, label := range ind.MonthLabels {
		if i >= len(ind.SalesByMonth) {
			break
		}
		if err := writer.Write([]string{label, strconv.FormatInt(ind.SalesByMonth[i], 10), plain(ind.RevenueByMonth[i])}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDashboardCSV emits the indicators followed by each ranking section.
func WriteDashboardCSV(w io.Writer, d analytics.Dashboard) error {
	if err := WriteIndicatorsCSV(w, d.Indicators); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	defer writer.Flush()

	sections := [][]string{
		nil,
		{"Top Products", d.RankingStart, d.RankingEnd},
		{"Rank", "Product", "Label", "Quantity", "Amount", "Sales"},
	}
	for _, row := range d.TopProducts {
		sections = append(sections, []string{
			strconv.Itoa(row.Rank),
			row.Product.String(),
			row.Label,
			row.TotalQuantity.String(),
			plain(row.TotalAmount),
			strconv.FormatInt(row.SalesCount, 10),
		})
	}
	sections = append(sections, nil, []string{"Rank", "City", "State", "Sales", "Revenue"})
	for _, row := range d.TopCities {
		sections = append(sections, []string{
			strconv.Itoa(row.Rank),
			row.City,
			row.State,
			strconv.FormatInt(row.Count, 10),
			plain(row.Revenue),
		})
	}
	sections = append(sections, nil, []string{"Method", "Label", "Payments", "Amount", "Percentage"})
	for _, row := range d.PaymentMethods.Rows {
		sections = append(sections, []string{
			row.Method.String(),
			row.Label,
			strconv.FormatInt(row.Count, 10),
			plain(row.Amount),
			plain(row.Percentage),
		})
	}
	return writer.WriteAll(sections)
}

// WriteTrialBalanceCSV prints the trial balance with one row per account,
// category and extract account, then the totals.
func WriteTrialBalanceCSV(w io.Writer, tb analytics.TrialBalance) error {
	writer := csv.NewWriter(w)
	records := [][]string{
		{"Section", "Group", "Item", "Entries", "Amount"},
	}
	for _, row := range tb.IncomeByAccount {
		records = append(records, []string{"Income", "", row.Account.String(), strconv.FormatInt(row.Entries, 10), plain(row.TotalIncome)})
	}
	for _, group := range tb.ExpenseByGroup {
		for _, cat := range group.Categories {
			records = append(records, []string{"Expense", group.Name, cat.Name, strconv.FormatInt(cat.Entries, 10), plain(cat.Total)})
		}
		records = append(records, []string{"Expense Group", group.Name, "", "", plain(group.GroupExpense)})
	}
	for _, row := range tb.ExtractByAccount {
		records = append(records, []string{"Extract", "", row.Account.String(), strconv.FormatInt(row.Entries, 10), plain(row.Total)})
	}
	records = append(records,
		[]string{"Total Income", "", "", "", plain(tb.TotalIncomeOverall)},
		[]string{"Total Expense", "", "", "", plain(tb.TotalExpenseOverall)},
		[]string{"Total Extract", "", "", "", plain(tb.TotalExtractOverall)},
		[]string{"Net Balance", tb.PeriodStart, tb.PeriodEnd, "", plain(tb.NetBalance)},
	)
	return writer.WriteAll(records)
}
