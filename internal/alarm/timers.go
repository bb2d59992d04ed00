package alarm

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/notexe/reminderd/internal/clock"
)

// Timers is an in-process Manager backed by one-shot timers.
// Registrations do not survive a restart; callers re-register on boot.
type Timers struct {
	clock    clock.Clock
	receiver Receiver
	permit   func() bool
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	live map[Key]*entry
}

type entry struct {
	alarm Alarm
	timer clock.Timer
}

type Option func(*Timers)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(t *Timers) { t.clock = c }
}

// WithExactAlarmCheck installs the permission check consulted on every registration.
func WithExactAlarmCheck(permit func() bool) Option {
	return func(t *Timers) { t.permit = permit }
}

// NewTimers creates a Manager that calls receiver when an alarm fires.
func NewTimers(receiver Receiver, opts ...Option) *Timers {
	ctx, cancel := context.WithCancel(context.Background())

	t := &Timers{
		clock:    clock.RealClock{},
		receiver: receiver,
		permit:   func() bool { return true },
		logger:   slog.Default().WithGroup("alarm"),
		ctx:      ctx,
		cancel:   cancel,
		live:     make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterOneShot arms a callback at the given instant. An existing
// registration under the same key is replaced.
func (t *Timers) RegisterOneShot(key Key, at time.Time, payload Payload) error {
	if !t.permit() {
		return ErrExactAlarmDenied
	}

	d := at.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}

	e := &entry{alarm: Alarm{Key: key, At: at, Payload: payload}}

	t.mu.Lock()
	if prev, ok := t.live[key]; ok {
		prev.timer.Stop()
	}
	t.live[key] = e
	e.timer = t.clock.AfterFunc(d, func() { t.fire(e) })
	t.mu.Unlock()

	t.logger.Debug("alarm registered",
		slog.String("key", string(key)),
		slog.Int64("reminder_id", payload.ReminderID),
		slog.Time("at", at),
	)
	return nil
}

func (t *Timers) fire(e *entry) {
	t.mu.Lock()
	current, ok := t.live[e.alarm.Key]
	if !ok || current != e {
		t.mu.Unlock()
		return
	}
	delete(t.live, e.alarm.Key)
	t.mu.Unlock()

	if t.ctx.Err() != nil {
		return
	}

	t.logger.Debug("alarm fired",
		slog.String("key", string(e.alarm.Key)),
		slog.Int64("reminder_id", e.alarm.Payload.ReminderID),
	)
	if t.receiver != nil {
		t.receiver(t.ctx, e.alarm.Payload)
	}
}

// Cancel deregisters key. Unknown keys are ignored.
func (t *Timers) Cancel(key Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.live[key]; ok {
		e.timer.Stop()
		delete(t.live, key)
	}
}

// CancelReminder deregisters every alarm whose payload names reminderID.
func (t *Timers) CancelReminder(reminderID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, e := range t.live {
		if e.alarm.Payload.ReminderID == reminderID {
			e.timer.Stop()
			delete(t.live, key)
		}
	}
}

// Pending returns every live alarm ordered by trigger time.
func (t *Timers) Pending() []Alarm {
	return t.collect(func(Alarm) bool { return true })
}

// PendingFor returns the live alarms for reminderID ordered by trigger time.
func (t *Timers) PendingFor(reminderID int64) []Alarm {
	return t.collect(func(a Alarm) bool { return a.Payload.ReminderID == reminderID })
}

func (t *Timers) collect(keep func(Alarm) bool) []Alarm {
	t.mu.Lock()
	out := make([]Alarm, 0, len(t.live))
	for _, e := range t.live {
		if keep(e.alarm) {
			out = append(out, e.alarm)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Key < out[j].Key
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

// Close stops every timer. Alarms that are firing concurrently see a
// cancelled context.
func (t *Timers) Close() {
	t.cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.live {
		e.timer.Stop()
		delete(t.live, key)
	}
}
