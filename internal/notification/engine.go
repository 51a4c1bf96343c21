// Package notification turns domain events and scheduled ticks into email.
//
// Every entry point loads the user and their preferences, applies the
// relevant gate, computes the payload from transaction history, and hands
// the result to the delivery gateway. The outcome of each attempted send is
// written back to the preference store. A blacklisted user is skipped on
// every path.
//
// Entry points return an error only for data and infrastructure failures
// (missing user, database down). A failed send is not an error: it is
// recorded against the user's delivery status. Callers decide how errors
// are handled: event hooks go through a Dispatcher and the scheduler logs
// them per user.
package notification

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/mailing"
	"github.com/extrace/notify/internal/pkg/logger"
	"github.com/extrace/notify/internal/service/preferences"
)

const appName = "EXTrace"

// Deps are the collaborators of an Engine. Digest and Feed are optional.
type Deps struct {
	Preferences  PreferenceStore
	Transactions TransactionReader
	Categories   CategoryReader
	Users        UserReader
	Sender       mailing.Sender
	Digest       DigestBuffer
	Feed         FeedSource
}

// Config tunes the engine.
type Config struct {
	FrontendURL      string
	MaxProductUpdate int
}

// Engine evaluates preferences and sends notification email.
type Engine struct {
	deps  Deps
	links Links
	cfg   Config
	now   func() time.Time
	log   *logger.Logger
}

func NewEngine(deps Deps, cfg Config) *Engine {
	if cfg.MaxProductUpdate <= 0 {
		cfg.MaxProductUpdate = 3
	}
	return &Engine{
		deps:  deps,
		links: NewLinks(cfg.FrontendURL),
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		log:   logger.Default().With("component", "notification"),
	}
}

// SetClock overrides the engine's time source.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// recipient is a user together with their preferences.
type recipient struct {
	user  *domain.User
	prefs *domain.Preferences
}

func (e *Engine) load(ctx context.Context, userID string) (*recipient, error) {
	user, err := e.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	prefs, err := e.deps.Preferences.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences %s: %w", userID, err)
	}
	return &recipient{user: user, prefs: prefs}, nil
}

func (e *Engine) baseData(r *recipient) map[string]any {
	return map[string]any{
		"appName":        appName,
		"userName":       r.user.Name,
		"dashboardUrl":   e.links.Dashboard,
		"preferencesUrl": e.links.Preferences,
		"unsubscribeUrl": e.links.Unsubscribe(r.prefs.UnsubscribeToken),
	}
}

// deliver is the single send path. It enforces the blacklist, sends, and
// records the outcome.
func (e *Engine) deliver(ctx context.Context, r *recipient, t domain.EmailType, subject string, data map[string]any) {
	if r.prefs.DeliveryStatus.IsBlacklisted {
		e.log.Info("skipping blacklisted user", "user_id", r.user.ID, "email_type", string(t))
		return
	}
	res := e.deps.Sender.Send(ctx, mailing.Request{
		To:       r.user.Email,
		Subject:  subject,
		Template: t,
		Data:     data,
		Format:   r.prefs.EmailFormat,
		Tags:     map[string]string{"email_type": string(t)},
	})
	e.LogEmailDelivery(ctx, r.user.ID, t, res)
}

// LogEmailDelivery writes a send outcome to the user's delivery status.
// Configuration failures are not the recipient's fault and are not counted.
func (e *Engine) LogEmailDelivery(ctx context.Context, userID string, t domain.EmailType, res domain.SendResult) {
	if !res.Success && res.Kind == domain.FailureConfig {
		e.log.Warn("send failed on configuration, not counted", "user_id", userID, "email_type", string(t), "error", res.Error)
		return
	}
	if err := e.deps.Preferences.RecordDeliveryOutcome(ctx, userID, res.Success); err != nil {
		e.log.Error("failed to record delivery outcome", "user_id", userID, "email_type", string(t), "error", err.Error())
	}
}

// OnTransactionCreated notifies the owner of a new transaction, now or via
// the digest buffer depending on their frequency.
func (e *Engine) OnTransactionCreated(ctx context.Context, transactionID string) error {
	tx, err := e.deps.Transactions.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", transactionID, err)
	}
	r, err := e.load(ctx, tx.UserID)
	if err != nil {
		return err
	}
	if r.prefs.DeliveryStatus.IsBlacklisted {
		e.log.Info("skipping blacklisted user", "user_id", r.user.ID, "email_type", string(domain.EmailTransactionNotification))
		return nil
	}
	if !preferences.ShouldSendTransactionNotification(r.prefs, tx) {
		return nil
	}

	switch freq := r.prefs.TransactionNotifications.Frequency; freq {
	case domain.FrequencyImmediate:
		data := e.baseData(r)
		data["transaction"] = map[string]any{
			"type":     string(tx.Type),
			"amount":   tx.Amount,
			"category": tx.Category,
			"date":     tx.Date,
			"notes":    tx.Notes,
		}
		subject := fmt.Sprintf("Transaction %s: %s", tx.Type, tx.Category)
		e.deliver(ctx, r, domain.EmailTransactionNotification, subject, data)
	case domain.FrequencyDaily, domain.FrequencyWeekly:
		if e.deps.Digest == nil {
			e.log.Warn("digest buffer not configured, dropping transaction", "user_id", r.user.ID, "frequency", string(freq))
			return nil
		}
		err := e.deps.Digest.Push(ctx, r.user.ID, freq, domain.PendingNotification{
			TransactionID: tx.ID,
			Type:          tx.Type,
			Amount:        tx.Amount,
			Category:      tx.Category,
			Date:          tx.Date,
			Notes:         tx.Notes,
			QueuedAt:      e.now(),
		})
		if err != nil {
			return fmt.Errorf("queue digest entry: %w", err)
		}
	}
	return nil
}

// FlushDigest sends the pending entries for freq as one digest email and
// empties the buffer. An empty buffer sends nothing.
func (e *Engine) FlushDigest(ctx context.Context, userID string, freq domain.Frequency) error {
	if e.deps.Digest == nil {
		return nil
	}
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if r.prefs.DeliveryStatus.IsBlacklisted {
		e.log.Info("skipping blacklisted user", "user_id", userID, "email_type", string(domain.EmailTransactionDigest))
		return nil
	}
	pending, err := e.deps.Digest.Drain(ctx, userID, freq)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var expenses, income float64
	items := make([]map[string]any, 0, len(pending))
	for _, n := range pending {
		if n.Type == domain.TransactionExpense {
			expenses += n.Amount
		} else {
			income += n.Amount
		}
		items = append(items, map[string]any{
			"type":     string(n.Type),
			"amount":   n.Amount,
			"category": n.Category,
			"date":     n.Date,
			"notes":    n.Notes,
		})
	}
	data := e.baseData(r)
	data["frequency"] = string(freq)
	data["transactions"] = items
	data["count"] = len(pending)
	data["totalExpenses"] = expenses
	data["totalIncome"] = income

	subject := fmt.Sprintf("Your %s transaction digest (%d)", freq, len(pending))
	e.deliver(ctx, r, domain.EmailTransactionDigest, subject, data)
	return nil
}

// CheckBudgetAlert compares month-to-date spend in a category with its
// budget and sends at most one alert of the matching severity.
func (e *Engine) CheckBudgetAlert(ctx context.Context, userID, categoryName string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.BudgetAlerts.Enabled || r.prefs.DeliveryStatus.IsBlacklisted {
		return nil
	}
	cat, err := e.deps.Categories.GetCategoryByName(ctx, userID, categoryName)
	if err != nil {
		return fmt.Errorf("load category %q: %w", categoryName, err)
	}
	if !cat.HasBudget() {
		return nil
	}

	now := e.now()
	start, end := MonthWindow(now.Year(), now.Month())
	txs, err := e.deps.Transactions.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	var spent float64
	for _, tx := range txs {
		if tx.IsExpense() && tx.Category == categoryName {
			spent += tx.Amount
		}
	}

	pct := spent / cat.BudgetLimit * 100
	decision := preferences.ShouldSendBudgetAlert(r.prefs, pct)
	if !decision.Send {
		return nil
	}
	status := domain.BudgetStatus{
		Category:   categoryName,
		Limit:      cat.BudgetLimit,
		Spent:      spent,
		Remaining:  math.Max(0, cat.BudgetLimit-spent),
		Overspent:  math.Max(0, spent-cat.BudgetLimit),
		Percentage: pct,
		AlertType:  decision.Kind,
	}
	data := e.baseData(r)
	data["dashboardUrl"] = e.links.Budgets
	data["budgetsUrl"] = e.links.Budgets
	data["alertType"] = string(status.AlertType)
	data["budget"] = map[string]any{
		"category":   status.Category,
		"limit":      status.Limit,
		"spent":      status.Spent,
		"remaining":  status.Remaining,
		"overspent":  status.Overspent,
		"percentage": status.Percentage,
	}
	subject := fmt.Sprintf("Budget Alert: %s (%.0f%% used)", categoryName, pct)
	e.deliver(ctx, r, domain.EmailBudgetAlert, subject, data)
	return nil
}

// GenerateWeeklyReport sends the expense summary for the ISO week
// containing now.
func (e *Engine) GenerateWeeklyReport(ctx context.Context, userID string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.Reports.Weekly.Enabled || r.prefs.DeliveryStatus.IsBlacklisted {
		return nil
	}
	start, end := WeekWindow(e.now())
	txs, err := e.deps.Transactions.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	report := BuildWeeklyReport(txs, start, end)

	data := e.baseData(r)
	data["dashboardUrl"] = e.links.Reports
	data["reportsUrl"] = e.links.Reports
	data["report"] = weeklyData(report)
	subject := fmt.Sprintf("Your Weekly Expense Summary - %s to %s",
		start.Format("Jan 02"), end.Format("Jan 02, 2006"))
	e.deliver(ctx, r, domain.EmailWeeklyReport, subject, data)
	return nil
}

// GenerateMonthlyReport sends the summary for the given calendar month.
func (e *Engine) GenerateMonthlyReport(ctx context.Context, userID string, month time.Month, year int) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("invalid month %d", month)
	}
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.Reports.Monthly.Enabled || r.prefs.DeliveryStatus.IsBlacklisted {
		return nil
	}
	start, end := MonthWindow(year, month)
	txs, err := e.deps.Transactions.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	report := BuildMonthlyReport(txs, year, month)

	data := e.baseData(r)
	data["dashboardUrl"] = e.links.Reports
	data["reportsUrl"] = e.links.Reports
	data["report"] = monthlyData(report)
	subject := fmt.Sprintf("Your Monthly Expense Report - %s %d", month, year)
	e.deliver(ctx, r, domain.EmailMonthlyReport, subject, data)
	return nil
}

// SendPersonalizedTips sends the newsletter built from the previous
// calendar month, plus product updates when the user wants them.
func (e *Engine) SendPersonalizedTips(ctx context.Context, userID string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.Marketing.PersonalizedInsights || r.prefs.DeliveryStatus.IsBlacklisted {
		return nil
	}
	year, month := PreviousMonth(e.now())
	start, end := MonthWindow(year, month)
	txs, err := e.deps.Transactions.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	var updates []map[string]any
	if r.prefs.Marketing.ProductUpdates && e.deps.Feed != nil {
		headlines, err := e.deps.Feed.Headlines(ctx, e.cfg.MaxProductUpdate)
		if err != nil {
			e.log.Warn("product update feed unavailable", "error", err.Error())
		}
		for _, h := range headlines {
			updates = append(updates, map[string]any{"title": h.Title, "link": h.Link})
		}
	}

	data := e.baseData(r)
	data["tips"] = tipsData(BuildTips(txs, e.links))
	data["productUpdates"] = updates
	e.deliver(ctx, r, domain.EmailNewsletter, "Your Personalized Financial Tips", data)
	return nil
}

// SendWelcomeEmail greets a new user.
func (e *Engine) SendWelcomeEmail(ctx context.Context, userID string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.AccountEmails.Welcome {
		return nil
	}
	e.deliver(ctx, r, domain.EmailWelcome, "Welcome to EXTrace - Your Financial Journey Begins!", e.baseData(r))
	return nil
}

// SendPasswordResetEmail sends a reset link carrying token.
func (e *Engine) SendPasswordResetEmail(ctx context.Context, userID, token string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.AccountEmails.PasswordReset {
		return nil
	}
	data := e.baseData(r)
	data["resetUrl"] = e.links.ResetPassword(token)
	e.deliver(ctx, r, domain.EmailPasswordReset, "Reset Your EXTrace Password", data)
	return nil
}

// SendEmailVerification sends an address confirmation link carrying token.
func (e *Engine) SendEmailVerification(ctx context.Context, userID, token string) error {
	r, err := e.load(ctx, userID)
	if err != nil {
		return err
	}
	if !r.prefs.AccountEmails.EmailVerification {
		return nil
	}
	data := e.baseData(r)
	data["verifyUrl"] = e.links.VerifyEmail(token)
	e.deliver(ctx, r, domain.EmailVerification, "Verify Your EXTrace Account", data)
	return nil
}
