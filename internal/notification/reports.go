package notification

import (
	"fmt"
	"sort"
	"time"

	"github.com/extrace/notify/internal/domain"
)

const topWeeklyCategories = 5

// rankCategories sorts totals by amount descending, then name for stable output.
func rankCategories(byName map[string]*domain.CategoryTotal) []domain.CategoryTotal {
	out := make([]domain.CategoryTotal, 0, len(byName))
	for _, c := range byName {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func addTo(byName map[string]*domain.CategoryTotal, tx domain.Transaction) {
	c, ok := byName[tx.Category]
	if !ok {
		c = &domain.CategoryTotal{Name: tx.Category}
		byName[tx.Category] = c
	}
	c.Amount += tx.Amount
	c.Count++
}

// BuildWeeklyReport summarises the expenses in txs for the given window.
// Income is ignored.
func BuildWeeklyReport(txs []domain.Transaction, start, end time.Time) domain.WeeklyReport {
	r := domain.WeeklyReport{WeekStart: start, WeekEnd: end}
	byName := make(map[string]*domain.CategoryTotal)
	for _, tx := range txs {
		if !tx.IsExpense() {
			continue
		}
		r.TotalExpenses += tx.Amount
		r.TransactionCount++
		addTo(byName, tx)
	}
	r.TopCategories = rankCategories(byName)
	if len(r.TopCategories) > topWeeklyCategories {
		r.TopCategories = r.TopCategories[:topWeeklyCategories]
	}
	r.DailyAverage = r.TotalExpenses / 7
	return r
}

// BuildMonthlyReport summarises every transaction in txs. Category totals
// mix income and expense; the top expense category only counts expenses.
func BuildMonthlyReport(txs []domain.Transaction, year int, month time.Month) domain.MonthlyReport {
	r := domain.MonthlyReport{Month: month, Year: year, TransactionCount: len(txs)}
	all := make(map[string]*domain.CategoryTotal)
	expenses := make(map[string]*domain.CategoryTotal)
	for _, tx := range txs {
		if tx.IsExpense() {
			r.TotalExpenses += tx.Amount
			addTo(expenses, tx)
		} else {
			r.TotalIncome += tx.Amount
		}
		addTo(all, tx)
	}
	r.NetIncome = r.TotalIncome - r.TotalExpenses
	r.Categories = rankCategories(all)
	if ranked := rankCategories(expenses); len(ranked) > 0 && ranked[0].Amount > 0 {
		top := ranked[0]
		r.TopExpenseCategory = &top
	}
	return r
}

// BuildTips derives advice from the previous month's transactions.
func BuildTips(txs []domain.Transaction, links Links) []domain.Tip {
	if len(txs) == 0 {
		return []domain.Tip{{
			Title:   "Start Tracking",
			Content: "You did not record any transactions last month. Logging even small purchases makes your reports far more useful.",
			Link:    links.Dashboard,
		}}
	}
	tips := []domain.Tip{{
		Title:   "Track Your Progress",
		Content: fmt.Sprintf("You made %d transactions last month. Keep up the good tracking habit!", len(txs)),
	}}

	var income, expense float64
	expenses := make(map[string]*domain.CategoryTotal)
	for _, tx := range txs {
		if tx.IsExpense() {
			expense += tx.Amount
			addTo(expenses, tx)
		} else {
			income += tx.Amount
		}
	}
	if ranked := rankCategories(expenses); len(ranked) > 0 && expense > 0 {
		top := ranked[0]
		tips = append(tips, domain.Tip{
			Title: "Biggest Spending Category",
			Content: fmt.Sprintf("%s took %.0f%% of your spending last month ($%.2f). A category budget can help keep it in check.",
				top.Name, top.Amount/expense*100, top.Amount),
			Link: links.Budgets,
		})
	}
	switch {
	case income > 0 && expense > income:
		tips = append(tips, domain.Tip{
			Title:   "Spending Above Income",
			Content: fmt.Sprintf("You spent $%.2f more than you earned last month. Review recurring costs first.", expense-income),
			Link:    links.Reports,
		})
	case income > 0:
		tips = append(tips, domain.Tip{
			Title:   "Nice Savings",
			Content: fmt.Sprintf("You kept %.0f%% of your income last month. Consider moving part of it to savings right away.", (income-expense)/income*100),
		})
	}
	return tips
}

func categoriesData(cs []domain.CategoryTotal) []map[string]any {
	out := make([]map[string]any, 0, len(cs))
	for _, c := range cs {
		out = append(out, map[string]any{"name": c.Name, "amount": c.Amount, "count": c.Count})
	}
	return out
}

func weeklyData(r domain.WeeklyReport) map[string]any {
	return map[string]any{
		"weekStart":        r.WeekStart,
		"weekEnd":          r.WeekEnd,
		"totalExpenses":    r.TotalExpenses,
		"transactionCount": r.TransactionCount,
		"topCategories":    categoriesData(r.TopCategories),
		"dailyAverage":     r.DailyAverage,
	}
}

func monthlyData(r domain.MonthlyReport) map[string]any {
	m := map[string]any{
		"month":            r.Month.String(),
		"year":             r.Year,
		"totalExpenses":    r.TotalExpenses,
		"totalIncome":      r.TotalIncome,
		"netIncome":        r.NetIncome,
		"transactionCount": r.TransactionCount,
		"categories":       categoriesData(r.Categories),
	}
	if r.TopExpenseCategory != nil {
		m["topExpenseCategory"] = map[string]any{
			"name":   r.TopExpenseCategory.Name,
			"amount": r.TopExpenseCategory.Amount,
		}
	}
	return m
}

func tipsData(tips []domain.Tip) []map[string]any {
	out := make([]map[string]any, 0, len(tips))
	for _, t := range tips {
		out = append(out, map[string]any{"title": t.Title, "content": t.Content, "link": t.Link})
	}
	return out
}
