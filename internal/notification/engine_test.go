package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extrace/notify/internal/domain"
	"github.com/extrace/notify/internal/mailing"
)

// fakeStore is an in-memory PreferenceStore that records outcomes.
type fakeStore struct {
	mu       sync.Mutex
	prefs    map[string]*domain.Preferences
	outcomes []bool
}

func newFakeStore() *fakeStore { return &fakeStore{prefs: map[string]*domain.Preferences{}} }

func (s *fakeStore) GetOrCreate(_ context.Context, userID string) (*domain.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		p = domain.DefaultPreferences(userID)
		p.UnsubscribeToken = "tok-" + userID
		s.prefs[userID] = p
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) RecordDeliveryOutcome(_ context.Context, userID string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, success)
	p := s.prefs[userID]
	if success {
		p.DeliveryStatus.RecordSuccess(time.Now())
	} else {
		p.DeliveryStatus.RecordFailure(time.Now())
	}
	return nil
}

func (s *fakeStore) set(userID string, fn func(p *domain.Preferences)) {
	p, _ := s.GetOrCreate(context.Background(), userID)
	fn(p)
	s.mu.Lock()
	s.prefs[userID] = p
	s.mu.Unlock()
}

// fakeFinance serves users, categories, and transactions from memory.
type fakeFinance struct {
	users      map[string]*domain.User
	categories map[string]*domain.Category // keyed by name
	txs        []domain.Transaction
	lastFrom   time.Time
	lastTo     time.Time
}

func (f *fakeFinance) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	for _, tx := range f.txs {
		if tx.ID == id {
			cp := tx
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeFinance) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	f.lastFrom, f.lastTo = from, to
	var out []domain.Transaction
	for _, tx := range f.txs {
		if tx.UserID == userID && !tx.Date.Before(from) && !tx.Date.After(to) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeFinance) GetCategoryByName(_ context.Context, _ string, name string) (*domain.Category, error) {
	c, ok := f.categories[name]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (f *fakeFinance) ListBudgetedCategories(context.Context, string) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.categories {
		if c.HasBudget() {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeFinance) GetUser(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeFinance) ListActiveUsers(context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []mailing.Request
	result domain.SendResult
}

func (s *fakeSender) Send(_ context.Context, req mailing.Request) domain.SendResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, req)
	if s.result == (domain.SendResult{}) {
		return domain.SendResult{Success: true, MessageID: "m"}
	}
	return s.result
}

type memDigest struct {
	lists map[string][]domain.PendingNotification
}

func (m *memDigest) Push(_ context.Context, userID string, freq domain.Frequency, n domain.PendingNotification) error {
	k := string(freq) + userID
	m.lists[k] = append(m.lists[k], n)
	return nil
}

func (m *memDigest) Drain(_ context.Context, userID string, freq domain.Frequency) ([]domain.PendingNotification, error) {
	k := string(freq) + userID
	out := m.lists[k]
	delete(m.lists, k)
	return out, nil
}

type fakeFeed struct{ calls int }

func (f *fakeFeed) Headlines(context.Context, int) ([]Headline, error) {
	f.calls++
	return []Headline{{Title: "Dark mode", Link: "https://blog.test/dark"}}, nil
}

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type harness struct {
	engine  *Engine
	store   *fakeStore
	finance *fakeFinance
	sender  *fakeSender
	digest  *memDigest
	feed    *fakeFeed
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		finance: &fakeFinance{
			users:      map[string]*domain.User{"u1": {ID: "u1", Name: "Ana", Email: "ana@example.com", IsActive: true}},
			categories: map[string]*domain.Category{"Food": {ID: "c1", UserID: "u1", Name: "Food", BudgetLimit: 100}},
		},
		sender: &fakeSender{},
		digest: &memDigest{lists: map[string][]domain.PendingNotification{}},
		feed:   &fakeFeed{},
	}
	h.engine = NewEngine(Deps{
		Preferences:  h.store,
		Transactions: h.finance,
		Categories:   h.finance,
		Users:        h.finance,
		Sender:       h.sender,
		Digest:       h.digest,
		Feed:         h.feed,
	}, Config{FrontendURL: "https://app.test/"})
	h.engine.SetClock(func() time.Time { return testNow })
	return h
}

func (h *harness) addTx(id string, typ domain.TransactionType, cat string, amount float64, at time.Time) {
	h.finance.txs = append(h.finance.txs, domain.Transaction{
		ID: id, UserID: "u1", Type: typ, Category: cat, Amount: amount, Date: at,
	})
}

func TestOnTransactionCreated_Immediate(t *testing.T) {
	h := newHarness(t)
	h.addTx("tx1", domain.TransactionExpense, "Food", 42, testNow)

	require.NoError(t, h.engine.OnTransactionCreated(context.Background(), "tx1"))
	require.Len(t, h.sender.sent, 1)
	req := h.sender.sent[0]
	assert.Equal(t, domain.EmailTransactionNotification, req.Template)
	assert.Equal(t, "Transaction expense: Food", req.Subject)
	assert.Equal(t, "ana@example.com", req.To)
	assert.Equal(t, "https://app.test/unsubscribe?token=tok-u1", req.Data["unsubscribeUrl"])
	assert.Equal(t, []bool{true}, h.store.outcomes)
}

func TestOnTransactionCreated_BelowMinAmount(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) { p.TransactionNotifications.MinAmount = 50 })
	h.addTx("tx1", domain.TransactionExpense, "Food", 42, testNow)

	require.NoError(t, h.engine.OnTransactionCreated(context.Background(), "tx1"))
	assert.Empty(t, h.sender.sent)
	assert.Empty(t, h.store.outcomes)
}

func TestOnTransactionCreated_DigestThenFlush(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) { p.TransactionNotifications.Frequency = domain.FrequencyDaily })
	h.addTx("tx1", domain.TransactionExpense, "Food", 10, testNow)
	h.addTx("tx2", domain.TransactionIncome, "Salary", 100, testNow)
	ctx := context.Background()

	require.NoError(t, h.engine.OnTransactionCreated(ctx, "tx1"))
	require.NoError(t, h.engine.OnTransactionCreated(ctx, "tx2"))
	assert.Empty(t, h.sender.sent, "daily frequency queues instead of sending")

	require.NoError(t, h.engine.FlushDigest(ctx, "u1", domain.FrequencyDaily))
	require.Len(t, h.sender.sent, 1)
	req := h.sender.sent[0]
	assert.Equal(t, domain.EmailTransactionDigest, req.Template)
	assert.Equal(t, 2, req.Data["count"])
	assert.Equal(t, 10.0, req.Data["totalExpenses"])
	assert.Equal(t, 100.0, req.Data["totalIncome"])

	require.NoError(t, h.engine.FlushDigest(ctx, "u1", domain.FrequencyDaily))
	assert.Len(t, h.sender.sent, 1, "empty buffer sends nothing")
}

func TestOnTransactionCreated_NeverFrequency(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) { p.TransactionNotifications.Frequency = domain.FrequencyNever })
	h.addTx("tx1", domain.TransactionExpense, "Food", 10, testNow)

	require.NoError(t, h.engine.OnTransactionCreated(context.Background(), "tx1"))
	assert.Empty(t, h.sender.sent)
	assert.Empty(t, h.digest.lists)
}

func TestOnTransactionCreated_MissingTransaction(t *testing.T) {
	h := newHarness(t)
	err := h.engine.OnTransactionCreated(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Empty(t, h.sender.sent)
}

func TestCheckBudgetAlert(t *testing.T) {
	tests := []struct {
		name     string
		spent    float64
		exceeded bool
		want     string
	}{
		{"below warning", 74, true, ""},
		{"warning", 75, true, "warning"},
		{"critical", 90, true, "critical"},
		{"exceeded", 100, true, "exceeded"},
		{"exceeded disabled", 100, false, "critical"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.store.set("u1", func(p *domain.Preferences) { p.BudgetAlerts.Thresholds.Exceeded = tt.exceeded })
			h.addTx("tx1", domain.TransactionExpense, "Food", tt.spent, testNow)
			h.addTx("old", domain.TransactionExpense, "Food", 500, testNow.AddDate(0, -1, 0))
			h.addTx("inc", domain.TransactionIncome, "Food", 500, testNow)

			require.NoError(t, h.engine.CheckBudgetAlert(context.Background(), "u1", "Food"))
			if tt.want == "" {
				assert.Empty(t, h.sender.sent)
				return
			}
			require.Len(t, h.sender.sent, 1)
			assert.Equal(t, tt.want, h.sender.sent[0].Data["alertType"])
			budget := h.sender.sent[0].Data["budget"].(map[string]any)
			assert.Equal(t, tt.spent, budget["spent"])
			assert.Equal(t, 100-tt.spent, budget["remaining"])
		})
	}
}

func TestCheckBudgetAlert_OverspentAndNoBudget(t *testing.T) {
	h := newHarness(t)
	h.addTx("tx1", domain.TransactionExpense, "Food", 130, testNow)
	require.NoError(t, h.engine.CheckBudgetAlert(context.Background(), "u1", "Food"))
	require.Len(t, h.sender.sent, 1)
	budget := h.sender.sent[0].Data["budget"].(map[string]any)
	assert.Equal(t, 0.0, budget["remaining"])
	assert.Equal(t, 30.0, budget["overspent"])
	assert.Equal(t, "Budget Alert: Food (130% used)", h.sender.sent[0].Subject)

	h2 := newHarness(t)
	h2.finance.categories["Fun"] = &domain.Category{Name: "Fun"}
	h2.addTx("tx1", domain.TransactionExpense, "Fun", 130, testNow)
	require.NoError(t, h2.engine.CheckBudgetAlert(context.Background(), "u1", "Fun"))
	assert.Empty(t, h2.sender.sent)
}

func TestBlacklistedUserReceivesNothing(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) { p.DeliveryStatus.IsBlacklisted = true })
	h.addTx("tx1", domain.TransactionExpense, "Food", 120, testNow)
	ctx := context.Background()

	require.NoError(t, h.engine.OnTransactionCreated(ctx, "tx1"))
	require.NoError(t, h.engine.CheckBudgetAlert(ctx, "u1", "Food"))
	require.NoError(t, h.engine.GenerateWeeklyReport(ctx, "u1"))
	require.NoError(t, h.engine.GenerateMonthlyReport(ctx, "u1", time.March, 2024))
	require.NoError(t, h.engine.SendPersonalizedTips(ctx, "u1"))
	require.NoError(t, h.engine.SendWelcomeEmail(ctx, "u1"))
	require.NoError(t, h.engine.SendPasswordResetEmail(ctx, "u1", "t"))
	require.NoError(t, h.engine.SendEmailVerification(ctx, "u1", "t"))
	assert.Empty(t, h.sender.sent)
}

func TestGenerateWeeklyReport(t *testing.T) {
	h := newHarness(t)
	h.addTx("a", domain.TransactionExpense, "Food", 70, testNow)
	h.addTx("b", domain.TransactionExpense, "Food", 500, testNow.AddDate(0, 0, -14))

	require.NoError(t, h.engine.GenerateWeeklyReport(context.Background(), "u1"))
	require.Len(t, h.sender.sent, 1)
	req := h.sender.sent[0]
	assert.Equal(t, "Your Weekly Expense Summary - Mar 11 to Mar 17, 2024", req.Subject)
	report := req.Data["report"].(map[string]any)
	assert.Equal(t, 70.0, report["totalExpenses"])
	assert.Equal(t, 10.0, report["dailyAverage"])
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), h.finance.lastFrom)
}

func TestGenerateWeeklyReport_Disabled(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) { p.Reports.Weekly.Enabled = false })
	require.NoError(t, h.engine.GenerateWeeklyReport(context.Background(), "u1"))
	assert.Empty(t, h.sender.sent)
}

func TestGenerateMonthlyReport(t *testing.T) {
	h := newHarness(t)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	h.addTx("a", domain.TransactionExpense, "Food", 50, feb)
	h.addTx("b", domain.TransactionExpense, "Rent", 20, feb)
	h.addTx("c", domain.TransactionIncome, "Salary", 100, feb)
	h.addTx("d", domain.TransactionExpense, "Food", 999, testNow)

	require.NoError(t, h.engine.GenerateMonthlyReport(context.Background(), "u1", time.February, 2024))
	require.Len(t, h.sender.sent, 1)
	req := h.sender.sent[0]
	assert.Equal(t, "Your Monthly Expense Report - February 2024", req.Subject)
	report := req.Data["report"].(map[string]any)
	assert.Equal(t, 100.0, report["totalIncome"])
	assert.Equal(t, 70.0, report["totalExpenses"])
	assert.Equal(t, 30.0, report["netIncome"])
	top := report["topExpenseCategory"].(map[string]any)
	assert.Equal(t, "Food", top["name"])
}

func TestSendPersonalizedTips(t *testing.T) {
	h := newHarness(t)
	h.addTx("a", domain.TransactionExpense, "Food", 10, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))
	h.addTx("b", domain.TransactionExpense, "Food", 10, time.Date(2024, 2, 4, 0, 0, 0, 0, time.UTC))
	h.addTx("c", domain.TransactionExpense, "Food", 10, testNow)

	require.NoError(t, h.engine.SendPersonalizedTips(context.Background(), "u1"))
	require.Len(t, h.sender.sent, 1)
	req := h.sender.sent[0]
	assert.Equal(t, domain.EmailNewsletter, req.Template)
	assert.Equal(t, "Your Personalized Financial Tips", req.Subject)
	tips := req.Data["tips"].([]map[string]any)
	assert.Contains(t, tips[0]["content"], "You made 2 transactions last month")
	assert.Len(t, req.Data["productUpdates"], 1)
	assert.Equal(t, 1, h.feed.calls)
}

func TestSendPersonalizedTips_GatedOnInsights(t *testing.T) {
	h := newHarness(t)
	h.store.set("u1", func(p *domain.Preferences) {
		p.Marketing.PersonalizedInsights = false
	})
	require.NoError(t, h.engine.SendPersonalizedTips(context.Background(), "u1"))
	assert.Empty(t, h.sender.sent)
}

func TestAccountEmails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.engine.SendWelcomeEmail(ctx, "u1"))
	require.NoError(t, h.engine.SendPasswordResetEmail(ctx, "u1", "abc"))
	require.NoError(t, h.engine.SendEmailVerification(ctx, "u1", "xyz"))
	require.Len(t, h.sender.sent, 3)
	assert.Equal(t, "Welcome to EXTrace - Your Financial Journey Begins!", h.sender.sent[0].Subject)
	assert.Equal(t, "https://app.test/auth/reset-password?token=abc", h.sender.sent[1].Data["resetUrl"])
	assert.Equal(t, "https://app.test/auth/verify-email?token=xyz", h.sender.sent[2].Data["verifyUrl"])

	h.store.set("u1", func(p *domain.Preferences) { p.AccountEmails.Welcome = false })
	require.NoError(t, h.engine.SendWelcomeEmail(ctx, "u1"))
	assert.Len(t, h.sender.sent, 3)
}

func TestDeliveryOutcomes(t *testing.T) {
	h := newHarness(t)
	h.sender.result = domain.SendResult{Success: false, Error: "bounced", Kind: domain.FailureTransport}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.engine.SendWelcomeEmail(ctx, "u1"))
	}
	assert.Equal(t, []bool{false, false, false, false, false}, h.store.outcomes)
	p, _ := h.store.GetOrCreate(ctx, "u1")
	assert.True(t, p.DeliveryStatus.IsBlacklisted)

	require.NoError(t, h.engine.SendWelcomeEmail(ctx, "u1"))
	assert.Len(t, h.sender.sent, 5, "blacklisted after five failures")
}

func TestDeliveryOutcomes_ConfigFailureNotCounted(t *testing.T) {
	h := newHarness(t)
	h.sender.result = domain.SendResult{Success: false, Error: "unknown template", Kind: domain.FailureConfig}

	require.NoError(t, h.engine.SendWelcomeEmail(context.Background(), "u1"))
	assert.Len(t, h.sender.sent, 1)
	assert.Empty(t, h.store.outcomes)
}
