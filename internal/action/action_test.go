package action

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/clock"
	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/notify/notifytest"
	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
)

type fixture struct {
	store    *reminder.Store
	timers   *alarm.Timers
	sched    *scheduler.Scheduler
	notifier *notifytest.Recorder
	handler  *Handler
	now      time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()

	store, err := reminder.NewStore(filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Now().UTC().Truncate(time.Millisecond)
	clk := clock.NewFakeClock(now)
	timers := alarm.NewTimers(nil, alarm.WithClock(clk))
	t.Cleanup(timers.Close)

	sched := scheduler.New(timers, clk)
	rec := notifytest.NewRecorder()

	return &fixture{
		store:    store,
		timers:   timers,
		sched:    sched,
		notifier: rec,
		handler:  NewHandler(store, sched, rec, 2),
		now:      now,
	}
}

// seed stores a reminder with two future triggers, schedules it and shows
// its notification, the state right after an alarm fired.
func (f *fixture) seed(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()

	r := &reminder.Reminder{
		ID:    id,
		Title: "Dentist",
		Triggers: []reminder.Trigger{
			{At: f.now.Add(time.Hour)},
			{At: f.now.Add(2 * time.Hour)},
		},
	}
	_, err := f.store.Insert(ctx, r)
	require.NoError(t, err)

	stored, err := f.store.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, f.sched.Schedule(ctx, *stored))

	require.NoError(t, f.notifier.Show(ctx, notify.Notification{ID: id, Title: "Dentist"}))
}

func TestCompleteMarksAndDismisses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seed(t, 42)

	require.NoError(t, f.handler.Complete(ctx, 42))

	got, err := f.store.GetByID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Completed)

	_, shown := f.notifier.Shown(42)
	assert.False(t, shown)
	assert.Equal(t, []int64{42}, f.notifier.Cancelled())

	assert.Empty(t, f.timers.PendingFor(42))
}

func TestCompleteMissingIDIsNoop(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seed(t, 42)

	require.NoError(t, f.handler.Complete(ctx, 0))

	got, err := f.store.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Empty(t, f.notifier.Cancelled())
	assert.Len(t, f.timers.PendingFor(42), 2)
}

func TestCompleteUnknownIDIsNoop(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.handler.Complete(context.Background(), 99))
	assert.Empty(t, f.notifier.Cancelled())
}

type failingStore struct {
	getErr error
	panics bool
}

func (s failingStore) GetByID(_ context.Context, id int64) (*reminder.Reminder, error) {
	if s.panics {
		panic("corrupt row")
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &reminder.Reminder{ID: id}, nil
}

func (s failingStore) Update(context.Context, *reminder.Reminder) error {
	return errors.New("disk full")
}

func (s failingStore) LockReminder(int64) func() { return func() {} }

func TestCompleteReleasesSlotOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		store failingStore
	}{
		{name: "lookup error", store: failingStore{getErr: errors.New("db locked")}},
		{name: "update error", store: failingStore{}},
		{name: "panic", store: failingStore{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			h := NewHandler(tt.store, f.sched, f.notifier, 1)

			err := h.Complete(context.Background(), 5)
			require.Error(t, err)

			// The only slot must be free again.
			require.True(t, h.slots.TryAcquire(h.maxSlots))
			h.slots.Release(h.maxSlots)

			assert.Empty(t, f.notifier.Cancelled())
		})
	}
}

func TestGoRunsInBackground(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seed(t, 7)
	f.seed(t, 8)

	require.NoError(t, f.handler.Go(ctx, 7))
	require.NoError(t, f.handler.Go(ctx, 8))
	require.NoError(t, f.handler.Go(ctx, 0))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Wait(waitCtx))

	for _, id := range []int64{7, 8} {
		got, err := f.store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Completed, "reminder %d", id)
		assert.Empty(t, f.timers.PendingFor(id))
	}
	assert.ElementsMatch(t, []int64{7, 8}, f.notifier.Cancelled())

	require.True(t, f.handler.slots.TryAcquire(f.handler.maxSlots))
}

func TestCompleteWaitsForReminderLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.seed(t, 42)

	unlock := f.store.LockReminder(42)
	require.NoError(t, f.handler.Go(ctx, 42))

	time.Sleep(50 * time.Millisecond)
	got, err := f.store.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.False(t, got.Completed, "completed while another writer held the reminder")
	assert.Empty(t, f.notifier.Cancelled())

	unlock()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Wait(waitCtx))

	got, err = f.store.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Empty(t, f.timers.PendingFor(42))
}

func TestGoRespectsCancelledContext(t *testing.T) {
	f := setup(t)
	h := NewHandler(f.store, f.sched, f.notifier, 1)
	require.True(t, h.slots.TryAcquire(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, h.Go(ctx, 1), context.Canceled)
}
