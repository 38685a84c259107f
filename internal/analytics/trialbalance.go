package analytics

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// UncategorizedGroupID identifies the synthetic bucket for expenses with no
// group. It is always present in a trial balance.
const UncategorizedGroupID int64 = 0

// UncategorizedName labels the synthetic group and category.
const UncategorizedName = "Sem categoria"

// TrialBalanceFilters narrows a trial balance. Account applies to income and
// extracts, CategoryID to expenses.
type TrialBalanceFilters struct {
	Account    *PaymentMethod
	CategoryID *int64
}

// TrialBalanceInput is the consistent snapshot the reconciliation runs over.
type TrialBalanceInput struct {
	Window     DateRange
	Filters    TrialBalanceFilters
	Payments   []Payment
	Launches   []FinancialLaunch
	Categories []Category
	Groups     []CategoryGroup
	Extracts   []BankExtract
}

// AccountIncome is the income received through one account.
type AccountIncome struct {
	Account     PaymentMethod   `json:"account"`
	Label       string          `json:"label"`
	TotalIncome decimal.Decimal `json:"total_income"`
	Entries     int64           `json:"entries"`
}

// CategoryExpense is the expense booked under one category.
type CategoryExpense struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Total      decimal.Decimal `json:"total"`
	Entries    int64           `json:"entries"`
}

// GroupExpense rolls categories into their group.
type GroupExpense struct {
	GroupID      int64             `json:"group_id"`
	Name         string            `json:"name"`
	Categories   []CategoryExpense `json:"categories"`
	GroupExpense decimal.Decimal   `json:"group_expense"`
}

// AccountExtract sums bank extract lines per account.
type AccountExtract struct {
	Account PaymentMethod   `json:"account"`
	Label   string          `json:"label"`
	Total   decimal.Decimal `json:"total"`
	Entries int64           `json:"entries"`
}

// TrialBalance reconciles income, expenses and bank extracts for a window.
type TrialBalance struct {
	PeriodStart         string           `json:"period_start"`
	PeriodEnd           string           `json:"period_end"`
	IncomeByAccount     []AccountIncome  `json:"income_by_account"`
	TotalIncomeOverall  decimal.Decimal  `json:"total_income_overall"`
	ExpenseByGroup      []GroupExpense   `json:"expense_by_group"`
	TotalExpenseOverall decimal.Decimal  `json:"total_expense_overall"`
	ExtractByAccount    []AccountExtract `json:"extract_by_account"`
	TotalExtractOverall decimal.Decimal  `json:"total_extract_overall"`
	NetBalance          decimal.Decimal  `json:"net_balance"`
}

// ComputeTrialBalance reconciles the three sources. Grand totals are summed
// straight from the raw rows, never from the breakdowns.
func ComputeTrialBalance(in TrialBalanceInput) (TrialBalance, error) {
	if err := in.Window.Validate(); err != nil {
		return TrialBalance{}, err
	}
	if in.Filters.Account != nil && !in.Filters.Account.Valid() {
		return TrialBalance{}, invalidEnum("account", ErrUnknownEnum)
	}

	out := TrialBalance{
		PeriodStart:         in.Window.Start.Format("2006-01-02"),
		PeriodEnd:           in.Window.End.Format("2006-01-02"),
		TotalIncomeOverall:  decimal.Zero,
		TotalExpenseOverall: decimal.Zero,
		TotalExtractOverall: decimal.Zero,
	}

	income, err := incomeByAccount(in, &out.TotalIncomeOverall)
	if err != nil {
		return TrialBalance{}, err
	}
	out.IncomeByAccount = income

	groups, err := expenseByGroup(in, &out.TotalExpenseOverall)
	if err != nil {
		return TrialBalance{}, err
	}
	out.ExpenseByGroup = groups

	extracts, err := extractByAccount(in, &out.TotalExtractOverall)
	if err != nil {
		return TrialBalance{}, err
	}
	out.ExtractByAccount = extracts

	out.NetBalance = out.TotalIncomeOverall.Sub(out.TotalExpenseOverall).Add(out.TotalExtractOverall)
	return out, nil
}

func accountSelected(f TrialBalanceFilters, m PaymentMethod) bool {
	return f.Account == nil || *f.Account == m
}

func incomeByAccount(in TrialBalanceInput, total *decimal.Decimal) ([]AccountIncome, error) {
	sums := make(map[PaymentMethod]*AccountIncome)
	add := func(m PaymentMethod, amount decimal.Decimal) {
		row := sums[m]
		if row == nil {
			row = &AccountIncome{Account: m, Label: m.Label(), TotalIncome: decimal.Zero}
			sums[m] = row
		}
		row.TotalIncome = row.TotalIncome.Add(amount)
		row.Entries++
		*total = total.Add(amount)
	}

	for _, p := range in.Payments {
		if !p.Method.Valid() {
			return nil, invalidEnum("payment method", ErrUnknownEnum)
		}
		if !in.Window.Contains(p.Date) || !accountSelected(in.Filters, p.Method) {
			continue
		}
		add(p.Method, p.Amount)
	}
	for _, l := range in.Launches {
		if !l.Type.Valid() || !l.Status.Valid() {
			return nil, invalidEnum("launch", ErrUnknownEnum)
		}
		if l.Type != LaunchIncome || l.Status != LaunchPaid || !in.Window.Contains(l.Date) {
			continue
		}
		if l.Method == 0 {
			return nil, fmt.Errorf("%w: income launch %d has no account", ErrInconsistentData, l.ID)
		}
		if !l.Method.Valid() {
			return nil, invalidEnum("launch method", ErrUnknownEnum)
		}
		if !accountSelected(in.Filters, l.Method) {
			continue
		}
		add(l.Method, l.Amount)
	}

	rows := make([]AccountIncome, 0, len(sums))
	for _, m := range PaymentMethods() {
		if row, ok := sums[m]; ok {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func expenseByGroup(in TrialBalanceInput, total *decimal.Decimal) ([]GroupExpense, error) {
	groupIndex := make(map[int64]*GroupExpense, len(in.Groups)+1)
	groupOrder := make([]int64, 0, len(in.Groups))
	for _, g := range in.Groups {
		if g.ID == UncategorizedGroupID {
			return nil, invalid("group", "id 0 is reserved")
		}
		if _, dup := groupIndex[g.ID]; dup {
			continue
		}
		groupIndex[g.ID] = &GroupExpense{GroupID: g.ID, Name: g.Name, GroupExpense: decimal.Zero}
		groupOrder = append(groupOrder, g.ID)
	}
	uncategorized := &GroupExpense{GroupID: UncategorizedGroupID, Name: UncategorizedName, GroupExpense: decimal.Zero}

	type catRef struct {
		row   *CategoryExpense
		group *GroupExpense
	}
	categories := make(map[int64]catRef, len(in.Categories))
	catOrder := make(map[*GroupExpense][]int64)
	for _, c := range in.Categories {
		group := uncategorized
		if c.GroupID != nil {
			g, ok := groupIndex[*c.GroupID]
			if !ok {
				return nil, invalid("category", fmt.Sprintf("category %d references unknown group %d", c.ID, *c.GroupID))
			}
			group = g
		}
		if _, dup := categories[c.ID]; dup {
			continue
		}
		categories[c.ID] = catRef{row: &CategoryExpense{CategoryID: c.ID, Name: c.Name, Total: decimal.Zero}, group: group}
		catOrder[group] = append(catOrder[group], c.ID)
	}
	var noCategory *CategoryExpense

	for _, l := range in.Launches {
		if !l.Type.Valid() || !l.Status.Valid() {
			return nil, invalidEnum("launch", ErrUnknownEnum)
		}
		if l.Type != LaunchExpense || !in.Window.Contains(l.Date) {
			continue
		}
		if in.Filters.CategoryID != nil && (l.CategoryID == nil || *l.CategoryID != *in.Filters.CategoryID) {
			continue
		}
		var row *CategoryExpense
		var group *GroupExpense
		if l.CategoryID == nil {
			if noCategory == nil {
				noCategory = &CategoryExpense{CategoryID: 0, Name: UncategorizedName, Total: decimal.Zero}
			}
			row, group = noCategory, uncategorized
		} else {
			ref, ok := categories[*l.CategoryID]
			if !ok {
				return nil, invalid("launch", fmt.Sprintf("launch %d references unknown category %d", l.ID, *l.CategoryID))
			}
			row, group = ref.row, ref.group
		}
		row.Total = row.Total.Add(l.Amount)
		row.Entries++
		group.GroupExpense = group.GroupExpense.Add(l.Amount)
		*total = total.Add(l.Amount)
	}

	collect := func(g *GroupExpense) GroupExpense {
		ids := catOrder[g]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := *g
		out.Categories = make([]CategoryExpense, 0, len(ids)+1)
		if g == uncategorized && noCategory != nil {
			out.Categories = append(out.Categories, *noCategory)
		}
		for _, id := range ids {
			out.Categories = append(out.Categories, *categories[id].row)
		}
		return out
	}

	sort.Slice(groupOrder, func(i, j int) bool { return groupOrder[i] < groupOrder[j] })
	rows := make([]GroupExpense, 0, len(groupOrder)+1)
	for _, id := range groupOrder {
		rows = append(rows, collect(groupIndex[id]))
	}
	rows = append(rows, collect(uncategorized))
	return rows, nil
}

func extractByAccount(in TrialBalanceInput, total *decimal.Decimal) ([]AccountExtract, error) {
	sums := make(map[PaymentMethod]*AccountExtract)
	for _, e := range in.Extracts {
		if !e.AccountMethod.Valid() {
			return nil, invalidEnum("extract account", ErrUnknownEnum)
		}
		if !in.Window.Contains(e.Date) || !accountSelected(in.Filters, e.AccountMethod) {
			continue
		}
		row := sums[e.AccountMethod]
		if row == nil {
			row = &AccountExtract{Account: e.AccountMethod, Label: e.AccountMethod.Label(), Total: decimal.Zero}
			sums[e.AccountMethod] = row
		}
		row.Total = row.Total.Add(e.Value)
		row.Entries++
		*total = total.Add(e.Value)
	}
	rows := make([]AccountExtract, 0, len(sums))
	for _, m := range PaymentMethods() {
		if row, ok := sums[m]; ok {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}
