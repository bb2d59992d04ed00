// Package service implements the reminder use cases and keeps alarms and
// notifications in step with every change.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
	"github.com/notexe/reminderd/internal/scheduler"
)

// Draft is the user-editable part of a reminder.
type Draft struct {
	Title       string
	Description string
	Dates       []time.Time
	Completed   bool
}

// Service coordinates the store, the scheduler and the notifier.
type Service struct {
	store     *reminder.Store
	scheduler *scheduler.Scheduler
	notifier  notify.Notifier
	detail    notify.DetailView
	logger    *slog.Logger
}

// New creates a Service. detail may be nil when nothing renders opened reminders.
func New(store *reminder.Store, sched *scheduler.Scheduler, notifier notify.Notifier, detail notify.DetailView) *Service {
	return &Service{
		store:     store,
		scheduler: sched,
		notifier:  notifier,
		detail:    detail,
		logger:    slog.Default().WithGroup("service"),
	}
}

// Create stores a new reminder and schedules its future triggers.
func (s *Service) Create(ctx context.Context, d Draft) (*reminder.Reminder, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	r := &reminder.Reminder{
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Triggers:    triggersFor(d.Dates, nil),
		Completed:   d.Completed,
	}
	if _, err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	alarms := s.scheduler.Reschedule(ctx, nil, *r)
	s.logger.InfoContext(ctx, "reminder created",
		slog.Int64("reminder_id", r.ID),
		slog.Int("alarms", alarms),
	)
	return r, nil
}

// Edit replaces the reminder's fields with d. Alarms of the previous version
// are cancelled before the current ones are registered. Triggers whose
// instant is unchanged keep their key.
func (s *Service) Edit(ctx context.Context, id int64, d Draft) (*reminder.Reminder, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	unlock := s.store.LockReminder(id)
	defer unlock()

	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous == nil {
		return nil, fmt.Errorf("%w: %d", ErrReminderNotFound, id)
	}

	current := previous.Clone()
	current.Title = strings.TrimSpace(d.Title)
	current.Description = d.Description
	current.Triggers = triggersFor(d.Dates, previous.Triggers)
	current.Completed = d.Completed

	if err := s.store.Update(ctx, &current); err != nil {
		return nil, err
	}

	alarms := s.scheduler.Reschedule(ctx, previous, current)
	if current.Completed {
		s.dismiss(ctx, id)
	}

	s.logger.InfoContext(ctx, "reminder edited",
		slog.Int64("reminder_id", id),
		slog.Int("alarms", alarms),
	)
	return &current, nil
}

// SetCompleted toggles completion. Completing cancels every alarm and the
// shown notification; reopening schedules the triggers still ahead.
// Writes to the same reminder, including notification actions, are
// serialised so the stored flag and the live alarms agree.
func (s *Service) SetCompleted(ctx context.Context, id int64, completed bool) (*reminder.Reminder, error) {
	unlock := s.store.LockReminder(id)
	defer unlock()

	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %d", ErrReminderNotFound, id)
	}

	r.Completed = completed
	if err := s.store.Update(ctx, r); err != nil {
		return nil, err
	}

	if completed {
		s.scheduler.Cancel(ctx, *r)
		s.dismiss(ctx, id)
	} else {
		s.scheduler.Reschedule(ctx, nil, *r)
	}
	return r, nil
}

// Delete removes the reminder, its alarms and its notification.
// Deleting an unknown ID is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	unlock := s.store.LockReminder(id)
	defer unlock()

	previous, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if previous != nil {
		s.scheduler.Cancel(ctx, *previous)
	} else {
		s.scheduler.Cancel(ctx, reminder.Reminder{ID: id})
	}
	s.dismiss(ctx, id)

	s.logger.InfoContext(ctx, "reminder deleted", slog.Int64("reminder_id", id))
	return nil
}

// Open resolves a deep link to the reminder it names.
func (s *Service) Open(ctx context.Context, id int64) (*reminder.Reminder, error) {
	if id == 0 {
		return nil, fmt.Errorf("%w: missing id", ErrReminderNotFound)
	}

	r, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %d", ErrReminderNotFound, id)
	}
	return r, nil
}

// ShowDetail opens the reminder and hands it to the detail view.
// An unknown ID is logged and ignored.
func (s *Service) ShowDetail(ctx context.Context, id int64) error {
	r, err := s.Open(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReminderNotFound) {
			s.logger.DebugContext(ctx, "deep link to unknown reminder", slog.Int64("reminder_id", id))
			return nil
		}
		return err
	}

	if s.detail == nil {
		return nil
	}
	return s.detail.ShowDetail(ctx, *r)
}

// Get returns the reminder or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*reminder.Reminder, error) {
	return s.store.GetByID(ctx, id)
}

// List returns every reminder ordered by ID.
func (s *Service) List(ctx context.Context) ([]reminder.Reminder, error) {
	return s.store.GetAll(ctx)
}

// Watch streams reminder snapshots until ctx ends.
func (s *Service) Watch(ctx context.Context) <-chan []reminder.Reminder {
	return s.store.Subscribe(ctx)
}

// Pending returns the live alarms of a reminder.
func (s *Service) Pending(id int64) []alarm.Alarm {
	return s.scheduler.Pending(id)
}

func (s *Service) dismiss(ctx context.Context, id int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Cancel(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to dismiss notification",
			slog.Int64("reminder_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (d Draft) validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

// triggersFor builds triggers for dates, reusing the key of a previous
// trigger at the same instant. Each previous key is reused at most once.
func triggersFor(dates []time.Time, previous []reminder.Trigger) []reminder.Trigger {
	unused := make(map[int64][]string, len(previous))
	for _, t := range previous {
		ms := t.At.UnixMilli()
		unused[ms] = append(unused[ms], t.Key)
	}

	out := make([]reminder.Trigger, 0, len(dates))
	for _, d := range dates {
		ms := d.UnixMilli()
		t := reminder.Trigger{At: time.UnixMilli(ms).UTC()}
		if keys := unused[ms]; len(keys) > 0 {
			t.Key = keys[0]
			unused[ms] = keys[1:]
		}
		out = append(out, t)
	}
	return out
}
