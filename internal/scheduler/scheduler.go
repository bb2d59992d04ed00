package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/clock"
	"github.com/notexe/reminderd/internal/reminder"
)

// legacyStride spaces request codes of consecutive reminders in the
// position-keyed scheme: code = id*legacyStride + index.
const legacyStride = 1000

// Scheduler keeps alarm registrations in step with reminder records.
type Scheduler struct {
	alarms alarm.Manager
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Scheduler on top of an alarm manager.
func New(alarms alarm.Manager, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Scheduler{
		alarms: alarms,
		clock:  clk,
		logger: slog.Default().WithGroup("scheduler"),
	}
}

// KeyFor derives the alarm key of the trigger at index for a reminder.
// Triggers carrying a stable key are addressed by it; keyless triggers
// fall back to the position-keyed request code, or to a position key
// scoped by the reminder ID once the code range is exhausted.
func KeyFor(reminderID int64, t reminder.Trigger, index int) alarm.Key {
	if t.Key != "" {
		return alarm.Key(fmt.Sprintf("%d:%s", reminderID, t.Key))
	}
	if key, ok := LegacyKey(reminderID, index); ok {
		return key
	}
	return alarm.Key(fmt.Sprintf("%d:#%d", reminderID, index))
}

// LegacyKey is the position-derived request code used for keyless triggers.
// ok is false for positions outside the reminder's code range, which would
// otherwise address a neighbouring reminder.
func LegacyKey(reminderID int64, index int) (key alarm.Key, ok bool) {
	if index < 0 || index >= legacyStride {
		return "", false
	}
	return alarm.Key(strconv.FormatInt(reminderID*legacyStride+int64(index), 10)), true
}

// Schedule registers one alarm for every trigger strictly in the future.
// Past triggers are skipped. Registration failures are logged and swallowed:
// the reminder stays stored and may simply not fire.
func (s *Scheduler) Schedule(ctx context.Context, r reminder.Reminder) int {
	if r.ID == 0 || r.Completed {
		return 0
	}

	now := s.clock.Now()
	registered := 0

	for i, t := range r.Triggers {
		if !t.At.After(now) {
			s.logger.DebugContext(ctx, "skipping elapsed trigger",
				slog.Int64("reminder_id", r.ID),
				slog.Time("at", t.At),
			)
			continue
		}

		key := KeyFor(r.ID, t, i)
		err := s.alarms.RegisterOneShot(key, t.At, alarm.Payload{ReminderID: r.ID, Title: r.Title})
		if err != nil {
			s.logger.WarnContext(ctx, "alarm registration rejected",
				slog.Int64("reminder_id", r.ID),
				slog.String("key", string(key)),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, alarm.ErrExactAlarmDenied) {
				return registered
			}
			continue
		}
		registered++
	}

	s.logger.InfoContext(ctx, "reminder scheduled",
		slog.Int64("reminder_id", r.ID),
		slog.Int("alarms", registered),
	)
	return registered
}

// Cancel deregisters every alarm implied by the reminder's trigger list,
// then sweeps whatever is still registered for its ID so a stale list
// cannot leak alarms.
func (s *Scheduler) Cancel(ctx context.Context, r reminder.Reminder) {
	if r.ID == 0 {
		return
	}

	for i, t := range r.Triggers {
		s.alarms.Cancel(KeyFor(r.ID, t, i))
		if key, ok := LegacyKey(r.ID, i); ok {
			s.alarms.Cancel(key)
		}
	}
	s.alarms.CancelReminder(r.ID)

	s.logger.DebugContext(ctx, "reminder alarms cancelled", slog.Int64("reminder_id", r.ID))
}

// Reschedule cancels the alarms of the previous version, then schedules
// the current one. previous may be nil for a reminder that was just created.
func (s *Scheduler) Reschedule(ctx context.Context, previous *reminder.Reminder, current reminder.Reminder) int {
	if previous != nil {
		s.Cancel(ctx, *previous)
	}
	s.Cancel(ctx, current)
	return s.Schedule(ctx, current)
}

// Restore schedules every open reminder. In-process alarms are lost on
// restart, so this runs once at startup.
func (s *Scheduler) Restore(ctx context.Context, reminders []reminder.Reminder) int {
	total := 0
	for _, r := range reminders {
		if r.Completed {
			continue
		}
		total += s.Schedule(ctx, r)
	}

	s.logger.InfoContext(ctx, "alarms restored",
		slog.Int("reminders", len(reminders)),
		slog.Int("alarms", total),
	)
	return total
}

// Pending returns the live alarms for a reminder.
func (s *Scheduler) Pending(reminderID int64) []alarm.Alarm {
	return s.alarms.PendingFor(reminderID)
}
