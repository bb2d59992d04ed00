package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/reminderd/internal/action"
	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/clock"
	"github.com/notexe/reminderd/internal/notify/notifytest"
	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
	"github.com/notexe/reminderd/internal/service"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	server   *Server
	notifier *notifytest.Recorder
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store, err := reminder.NewStore(filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFakeClock(now)
	timers := alarm.NewTimers(nil, alarm.WithClock(clk))
	t.Cleanup(timers.Close)

	sched := scheduler.New(timers, clk)
	rec := notifytest.NewRecorder()
	svc := service.New(store, sched, rec, rec)

	return &fixture{
		server:   NewServer(svc, action.NewHandler(store, sched, rec, 1)),
		notifier: rec,
	}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	return v
}

func TestAddAndGetReminder(t *testing.T) {
	f := setup(t)

	text, isErr := call(t, f.server.handleAddReminder, map[string]any{
		"title":       "Dentist",
		"description": "Bring x-rays",
		"dates":       "2025-06-01T13:00:00Z, 1748786400000",
	})
	require.False(t, isErr, text)

	added := decode[reminder.Reminder](t, text)
	assert.Equal(t, "Dentist", added.Title)
	require.Len(t, added.Triggers, 2)
	assert.NotEmpty(t, added.Triggers[0].Key)

	text, isErr = call(t, f.server.handlePendingAlarms, map[string]any{"id": float64(added.ID)})
	require.False(t, isErr, text)
	assert.Len(t, decode[[]alarm.Alarm](t, text), 2)

	text, isErr = call(t, f.server.handleGetReminder, map[string]any{"id": float64(added.ID)})
	require.False(t, isErr, text)
	assert.Equal(t, added.ID, decode[reminder.Reminder](t, text).ID)

	_, isErr = call(t, f.server.handleGetReminder, map[string]any{"id": float64(99)})
	assert.True(t, isErr)
}

func TestAddReminderRejectsBadInput(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing title", args: map[string]any{"dates": "1748786400000"}},
		{name: "bad date", args: map[string]any{"title": "x", "dates": "tomorrow"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, isErr := call(t, f.server.handleAddReminder, tt.args)
			assert.True(t, isErr)
		})
	}
}

func TestUpdateReminderKeepsOmittedFields(t *testing.T) {
	f := setup(t)

	text, _ := call(t, f.server.handleAddReminder, map[string]any{
		"title":       "Gym",
		"description": "Leg day",
		"dates":       "2025-06-01T13:00:00Z,2025-06-01T14:00:00Z,2025-06-01T15:00:00Z",
	})
	added := decode[reminder.Reminder](t, text)

	text, isErr := call(t, f.server.handleUpdateReminder, map[string]any{
		"id":    float64(added.ID),
		"dates": "2025-06-01T13:00:00Z",
	})
	require.False(t, isErr, text)

	updated := decode[reminder.Reminder](t, text)
	assert.Equal(t, "Gym", updated.Title)
	assert.Equal(t, "Leg day", updated.Description)
	require.Len(t, updated.Triggers, 1)
	assert.Equal(t, added.Triggers[0].Key, updated.Triggers[0].Key)

	text, _ = call(t, f.server.handlePendingAlarms, map[string]any{"id": float64(added.ID)})
	assert.Len(t, decode[[]alarm.Alarm](t, text), 1)
}

func TestCompletionTools(t *testing.T) {
	f := setup(t)

	text, _ := call(t, f.server.handleAddReminder, map[string]any{"title": "Taxes", "dates": "2025-06-02T09:00:00Z"})
	added := decode[reminder.Reminder](t, text)
	id := float64(added.ID)

	text, isErr := call(t, f.server.handleCompleteReminder, map[string]any{"id": id})
	require.False(t, isErr, text)
	assert.Contains(t, f.notifier.Cancelled(), added.ID)

	text, _ = call(t, f.server.handlePendingAlarms, map[string]any{"id": id})
	assert.Contains(t, text, "No pending alarms")

	text, _ = call(t, f.server.handleListReminders, map[string]any{"status": "pending"})
	assert.Equal(t, "No reminders found.", text)

	text, isErr = call(t, f.server.handleSetCompleted, map[string]any{"id": id, "completed": false})
	require.False(t, isErr, text)
	assert.False(t, decode[reminder.Reminder](t, text).Completed)

	text, _ = call(t, f.server.handleListReminders, map[string]any{"status": "pending"})
	assert.Len(t, decode[[]reminder.Reminder](t, text), 1)

	_, isErr = call(t, f.server.handleListReminders, map[string]any{"status": "overdue"})
	assert.True(t, isErr)
}

func TestOpenAndDelete(t *testing.T) {
	f := setup(t)

	text, _ := call(t, f.server.handleAddReminder, map[string]any{"title": "Call bank"})
	added := decode[reminder.Reminder](t, text)
	id := float64(added.ID)

	text, isErr := call(t, f.server.handleOpenReminder, map[string]any{"id": id})
	require.False(t, isErr, text)
	require.Len(t, f.notifier.Details(), 1)

	text, isErr = call(t, f.server.handleDeleteReminder, map[string]any{"id": id})
	require.False(t, isErr, text)

	_, isErr = call(t, f.server.handleOpenReminder, map[string]any{"id": id})
	assert.True(t, isErr)

	_, isErr = call(t, f.server.handleDeleteReminder, map[string]any{})
	assert.True(t, isErr)
}

func TestParseDates(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []time.Time
		wantErr bool
	}{
		{name: "empty", input: ""},
		{name: "rfc3339", input: "2025-06-01T13:00:00+02:00", want: []time.Time{time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)}},
		{name: "millis", input: "1748786400000", want: []time.Time{time.UnixMilli(1748786400000).UTC()}},
		{name: "mixed with blanks", input: "1748786400000, ,2025-06-01T13:00:00Z", want: []time.Time{
			time.UnixMilli(1748786400000).UTC(),
			time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		}},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDates(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
