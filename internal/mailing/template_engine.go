package mailing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/osteele/liquid"

	"github.com/extrace/notify/internal/domain"
)

// defaultDateLayout is used by format_date when no layout is given.
const defaultDateLayout = "January 2, 2006"

// TemplateEngine renders the fixed set of named email templates. Every
// template is parsed once at construction; Render never parses.
type TemplateEngine struct {
	engine    *liquid.Engine
	templates map[domain.EmailType]*liquid.Template
}

// NewTemplateEngine parses sources, keyed by email type. Unknown keys are
// rejected so a typo in an override prefix fails loudly at startup.
func NewTemplateEngine(sources map[domain.EmailType]string) (*TemplateEngine, error) {
	te := &TemplateEngine{
		engine:    liquid.NewEngine(),
		templates: make(map[domain.EmailType]*liquid.Template, len(sources)),
	}
	te.registerCustomFilters()

	known := make(map[domain.EmailType]bool, len(domain.AllEmailTypes))
	for _, t := range domain.AllEmailTypes {
		known[t] = true
	}
	for name, src := range sources {
		if !known[name] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		tpl, err := te.engine.ParseString(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		te.templates[name] = tpl
	}
	return te, nil
}

// Has reports whether a template is loaded under name.
func (te *TemplateEngine) Has(name domain.EmailType) bool {
	_, ok := te.templates[name]
	return ok
}

// Render executes the named template against data.
func (te *TemplateEngine) Render(name domain.EmailType, data map[string]any) (string, error) {
	tpl, ok := te.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	out, err := tpl.RenderString(data)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// registerCustomFilters adds the report formatting filters.
func (te *TemplateEngine) registerCustomFilters() {
	// {{ first_name | default: "there" }}
	te.engine.RegisterFilter("default", func(value any, defaultVal string) any {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	te.engine.RegisterFilter("uppercase", strings.ToUpper)
	te.engine.RegisterFilter("lowercase", strings.ToLower)

	// {{ amount | currency }} -> $1,234.50
	te.engine.RegisterFilter("currency", func(value any) string {
		f, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		sign := ""
		if f < 0 {
			sign = "-"
			f = -f
		}
		cents := int64(math.Round(f * 100))
		return fmt.Sprintf("%s$%s.%02d", sign, delimit(cents/100), cents%100)
	})

	te.engine.RegisterFilter("number_with_delimiter", func(value any) string {
		f, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		n := int64(f)
		if n < 0 {
			return "-" + delimit(-n)
		}
		return delimit(n)
	})

	// {{ rate | percentage }} -> 82.5%
	te.engine.RegisterFilter("percentage", func(value any) string {
		f, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return fmt.Sprintf("%.1f%%", f)
	})

	te.engine.RegisterFilter("abs", func(value any) any {
		f, ok := toFloat(value)
		if !ok {
			return value
		}
		return math.Abs(f)
	})

	// {{ week_start | format_date: "Jan 2" }}
	te.engine.RegisterFilter("format_date", func(value any, layout string) string {
		t, ok := toTime(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		if layout == "" {
			layout = defaultDateLayout
		}
		return t.UTC().Format(layout)
	})
}

// delimit formats a non-negative integer with thousands separators.
func delimit(n int64) string {
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
