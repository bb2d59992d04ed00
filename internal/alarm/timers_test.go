package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/notexe/reminderd/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type received struct {
	mu       sync.Mutex
	payloads []Payload
}

func (r *received) receive(_ context.Context, p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, p)
}

func (r *received) all() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.payloads...)
}

func newTestTimers(t *testing.T, opts ...Option) (*Timers, *clock.FakeClock, *received) {
	t.Helper()

	clk := clock.NewFakeClock(epoch)
	rec := &received{}
	timers := NewTimers(rec.receive, append([]Option{WithClock(clk)}, opts...)...)
	t.Cleanup(timers.Close)
	return timers, clk, rec
}

func TestTimersFireOnce(t *testing.T) {
	timers, clk, rec := newTestTimers(t)

	payload := Payload{ReminderID: 7, Title: "stand up"}
	require.NoError(t, timers.RegisterOneShot("7:a", epoch.Add(time.Hour), payload))
	require.Len(t, timers.PendingFor(7), 1)

	clk.Advance(59 * time.Minute)
	assert.Empty(t, rec.all())

	clk.Advance(time.Minute)
	assert.Equal(t, []Payload{payload}, rec.all())
	assert.Empty(t, timers.Pending())

	clk.Advance(time.Hour)
	assert.Len(t, rec.all(), 1)
}

func TestTimersReplaceSameKey(t *testing.T) {
	timers, clk, rec := newTestTimers(t)

	require.NoError(t, timers.RegisterOneShot("k", epoch.Add(time.Minute), Payload{ReminderID: 1, Title: "old"}))
	require.NoError(t, timers.RegisterOneShot("k", epoch.Add(2*time.Minute), Payload{ReminderID: 1, Title: "new"}))

	pending := timers.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Payload.Title)

	clk.Advance(3 * time.Minute)
	assert.Equal(t, []Payload{{ReminderID: 1, Title: "new"}}, rec.all())
}

func TestTimersCancel(t *testing.T) {
	timers, clk, rec := newTestTimers(t)

	require.NoError(t, timers.RegisterOneShot("a", epoch.Add(time.Minute), Payload{ReminderID: 1}))
	require.NoError(t, timers.RegisterOneShot("b", epoch.Add(time.Minute), Payload{ReminderID: 2}))

	timers.Cancel("a")
	timers.Cancel("missing")

	clk.Advance(time.Hour)
	assert.Equal(t, []Payload{{ReminderID: 2}}, rec.all())
	assert.Zero(t, clk.Waiting())
}

func TestTimersCancelReminder(t *testing.T) {
	timers, _, _ := newTestTimers(t)

	require.NoError(t, timers.RegisterOneShot("1:a", epoch.Add(time.Minute), Payload{ReminderID: 1}))
	require.NoError(t, timers.RegisterOneShot("1:b", epoch.Add(2*time.Minute), Payload{ReminderID: 1}))
	require.NoError(t, timers.RegisterOneShot("2:a", epoch.Add(time.Minute), Payload{ReminderID: 2}))

	timers.CancelReminder(1)

	assert.Empty(t, timers.PendingFor(1))
	assert.Len(t, timers.PendingFor(2), 1)
}

func TestTimersExactAlarmDenied(t *testing.T) {
	timers, _, _ := newTestTimers(t, WithExactAlarmCheck(func() bool { return false }))

	err := timers.RegisterOneShot("a", epoch.Add(time.Minute), Payload{ReminderID: 1})
	assert.ErrorIs(t, err, ErrExactAlarmDenied)
	assert.Empty(t, timers.Pending())
}

func TestTimersPendingOrdered(t *testing.T) {
	timers, _, _ := newTestTimers(t)

	require.NoError(t, timers.RegisterOneShot("late", epoch.Add(2*time.Hour), Payload{ReminderID: 1}))
	require.NoError(t, timers.RegisterOneShot("early", epoch.Add(time.Hour), Payload{ReminderID: 1}))

	pending := timers.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, Key("early"), pending[0].Key)
	assert.Equal(t, Key("late"), pending[1].Key)
}

func TestTimersCloseStopsEverything(t *testing.T) {
	timers, clk, rec := newTestTimers(t)

	require.NoError(t, timers.RegisterOneShot("a", epoch.Add(time.Minute), Payload{ReminderID: 1}))
	timers.Close()

	clk.Advance(time.Hour)
	assert.Empty(t, rec.all())
	assert.Empty(t, timers.Pending())
}
