package mailing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/extrace/notify/internal/domain"
)

func newTestEngine(t *testing.T, src string) *TemplateEngine {
	t.Helper()
	te, err := NewTemplateEngine(map[domain.EmailType]string{domain.EmailWelcome: src})
	require.NoError(t, err)
	return te
}

func TestTemplateEngine_Filters(t *testing.T) {
	when := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		src  string
		data map[string]any
		want string
	}{
		{"currency", `{{ v | currency }}`, map[string]any{"v": 1234.5}, "$1,234.50"},
		{"currency negative", `{{ v | currency }}`, map[string]any{"v": -3.456}, "-$3.46"},
		{"percentage", `{{ v | percentage }}`, map[string]any{"v": 82.46}, "82.5%"},
		{"delimiter", `{{ v | number_with_delimiter }}`, map[string]any{"v": 1234567}, "1,234,567"},
		{"abs", `{{ v | abs | currency }}`, map[string]any{"v": -20.0}, "$20.00"},
		{"uppercase", `{{ v | uppercase }}`, map[string]any{"v": "food"}, "FOOD"},
		{"lowercase", `{{ v | lowercase }}`, map[string]any{"v": "FOOD"}, "food"},
		{"default missing", `{{ v | default: "there" }}`, map[string]any{}, "there"},
		{"default empty", `{{ v | default: "there" }}`, map[string]any{"v": ""}, "there"},
		{"default set", `{{ v | default: "there" }}`, map[string]any{"v": "Ana"}, "Ana"},
		{"format_date time", `{{ v | format_date: "Jan 2, 2006" }}`, map[string]any{"v": when}, "Mar 4, 2024"},
		{"format_date string", `{{ v | format_date: "2006-01-02" }}`, map[string]any{"v": "2024-03-04T15:00:00Z"}, "2024-03-04"},
		{"numeric conditional", `{% if v >= 100 %}over{% else %}under{% endif %}`, map[string]any{"v": 120.0}, "over"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, tt.src)
			got, err := te.Render(domain.EmailWelcome, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplateEngine_UnknownTemplate(t *testing.T) {
	te := newTestEngine(t, "hi")
	_, err := te.Render(domain.EmailType("invoice"), nil)
	assert.True(t, errors.Is(err, ErrUnknownTemplate))

	_, err = NewTemplateEngine(map[domain.EmailType]string{"invoice": "x"})
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestTemplateEngine_ParseErrorAtConstruction(t *testing.T) {
	_, err := NewTemplateEngine(map[domain.EmailType]string{domain.EmailWelcome: "{% if %}"})
	assert.Error(t, err)
}

func TestDefaultTemplates_AllRender(t *testing.T) {
	sources, err := DefaultTemplates()
	require.NoError(t, err)
	require.Len(t, sources, len(domain.AllEmailTypes))

	te, err := NewTemplateEngine(sources)
	require.NoError(t, err)

	data := map[string]any{
		"appName":        "EXTrace",
		"userName":       "Ana",
		"dashboardUrl":   "https://app.test/dashboard",
		"preferencesUrl": "https://app.test/settings",
		"unsubscribeUrl": "https://app.test/unsubscribe?token=t",
		"transaction": map[string]any{
			"type": "expense", "amount": 12.5, "category": "Food", "date": "2024-03-04T00:00:00Z", "notes": "",
		},
		"budget": map[string]any{
			"category": "Food", "limit": 100.0, "spent": 120.0, "remaining": 0.0, "overspent": 20.0, "percentage": 120.0,
		},
		"alertType": "exceeded",
		"report": map[string]any{
			"weekStart": "2024-03-04T00:00:00Z", "weekEnd": "2024-03-10T23:59:59Z",
			"month": "March", "year": 2024,
			"totalExpenses": 70.0, "totalIncome": 50.0, "netIncome": -20.0, "transactionCount": 3, "dailyAverage": 10.0,
			"topCategories": []map[string]any{{"name": "Food", "amount": 70.0, "count": 3}},
			"categories":    []map[string]any{{"name": "Food", "amount": 70.0, "count": 3}},
			"topExpenseCategory": map[string]any{"name": "Food", "amount": 70.0},
		},
		"transactions": []map[string]any{{"type": "expense", "amount": 5.0, "category": "Food", "date": "2024-03-04T00:00:00Z"}},
		"count":        1,
		"frequency":    "daily",
		"tips":         []map[string]any{{"title": "Track", "content": "Keep going", "link": ""}},
		"productUpdates": []map[string]any{{"title": "Dark mode", "link": "https://blog.test/dark"}},
		"resetUrl":     "https://app.test/auth/reset-password?token=x",
		"verifyUrl":    "https://app.test/auth/verify-email?token=x",
	}
	for _, name := range domain.AllEmailTypes {
		out, err := te.Render(name, data)
		require.NoError(t, err, name)
		assert.NotEmpty(t, out, name)
	}

	out, _ := te.Render(domain.EmailBudgetAlert, data)
	assert.Contains(t, out, "Budget exceeded: Food")
	assert.Contains(t, out, "$20.00")

	out, _ = te.Render(domain.EmailMonthlyReport, data)
	assert.Contains(t, out, "-$20.00")
	assert.Contains(t, out, "biggest expense category was <strong>Food</strong>")
}
