package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandlerGroupsAndLevel(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "pretty").WithGroup("scheduler")

	logger.Debug("hidden")
	logger.Info("reminder scheduled", slog.Int64("reminder_id", 42), slog.Int("alarms", 2))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO:")
	assert.Contains(t, out, "reminder scheduled")
	assert.Contains(t, out, `"scheduler.reminder_id": 42`)
	assert.Contains(t, out, `"scheduler.alarms": 2`)
}

func TestPrettyHandlerWithAttrs(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug, "pretty").With(Err(errors.New("boom")))

	logger.Warn("alarm registration rejected")

	assert.Contains(t, buf.String(), "WARN:")
	assert.Contains(t, buf.String(), `"error": "boom"`)
}

func TestPrettyHandlerWithAttrsEncodesErrorsAndGroups(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug, "pretty").With(
		slog.Any("cause", errors.New("disk full")),
		slog.Group("reminder", slog.Int64("id", 7), slog.Any("last_error", errors.New("timeout"))),
	)

	logger.Error("store write failed")

	out := buf.String()
	assert.Contains(t, out, `"cause": "disk full"`)
	assert.Contains(t, out, `"id": 7`)
	assert.Contains(t, out, `"last_error": "timeout"`)
	assert.NotContains(t, out, "{}")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json").WithGroup("delivery")

	logger.Info("reminder delivered", slog.Int64("reminder_id", 7))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "reminder delivered", entry["msg"])

	group, ok := entry["delivery"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 7, group["reminder_id"])
}

func TestSetupInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(&buf, slog.LevelInfo, "text")

	slog.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
