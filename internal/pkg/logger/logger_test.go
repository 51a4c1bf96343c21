package logger

import (
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]string
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_WithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, false).With("component", "scheduler")

	l.Info("job finished", "job", "weeklyReports", "users", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "job finished", lines[0]["msg"])
	assert.Equal(t, "scheduler", lines[0]["component"])
	assert.Equal(t, "weeklyReports", lines[0]["job"])
	assert.Equal(t, "3", lines[0]["users"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown")

	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestLogger_RedactsEmails(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, true)

	l.Info("sent", "recipient", "john.doe@example.com", "detail", "delivered to jane@example.org ok")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "jo***@example.com", lines[0]["recipient"])
	assert.Equal(t, "delivered to ja***@example.org ok", lines[0]["detail"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("Warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestSetLevel_WhileLogging(t *testing.T) {
	var buf bytes.Buffer
	saved := defaultLogger
	defaultLogger = New(&buf, INFO, true)
	t.Cleanup(func() { defaultLogger = saved })

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				Info("tick", "email", "jane@example.com")
			}
		}()
	}
	for j := 0; j < 50; j++ {
		SetLevel(ParseLevel("debug"))
		SetRedactPII(j%2 == 0)
	}
	wg.Wait()

	SetLevel(ERROR)
	SetRedactPII(true)
	buf.Reset()
	Warn("hidden")
	Error("shown", "email", "jane@example.com")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
	assert.NotEqual(t, "jane@example.com", lines[0]["email"])
}
