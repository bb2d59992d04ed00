// Package action handles the user acting on a shown notification.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
)

const DefaultMaxInFlight = 4

// Store is the part of the reminder store the handler mutates.
type Store interface {
	GetByID(ctx context.Context, id int64) (*reminder.Reminder, error)
	Update(ctx context.Context, r *reminder.Reminder) error
	LockReminder(id int64) (unlock func())
}

// AlarmCanceller removes every alarm registered for a reminder.
type AlarmCanceller interface {
	Cancel(ctx context.Context, r reminder.Reminder)
}

// Handler marks reminders complete from notification buttons. Each unit of
// work holds one slot of a bounded pool for its whole lifetime.
type Handler struct {
	store    Store
	alarms   AlarmCanceller
	notifier notify.Notifier
	logger   *slog.Logger

	slots    *semaphore.Weighted
	maxSlots int64
	wg       sync.WaitGroup
}

// NewHandler creates a Handler running at most maxInFlight units at once.
func NewHandler(store Store, alarms AlarmCanceller, notifier notify.Notifier, maxInFlight int) *Handler {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Handler{
		store:    store,
		alarms:   alarms,
		notifier: notifier,
		logger:   slog.Default().WithGroup("action"),
		slots:    semaphore.NewWeighted(int64(maxInFlight)),
		maxSlots: int64(maxInFlight),
	}
}

// Complete marks the reminder complete, cancels its alarms and dismisses its
// notification. A zero or unknown id is a no-op.
func (h *Handler) Complete(ctx context.Context, reminderID int64) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire action slot: %w", err)
	}
	defer h.slots.Release(1)

	return h.complete(ctx, reminderID)
}

// Go runs Complete in the background and returns once a slot is held.
// Failures are logged.
func (h *Handler) Go(ctx context.Context, reminderID int64) error {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire action slot: %w", err)
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.slots.Release(1)

		workCtx := context.WithoutCancel(ctx)
		if err := h.complete(workCtx, reminderID); err != nil {
			h.logger.ErrorContext(workCtx, "complete action failed",
				slog.Int64("reminder_id", reminderID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

// Wait blocks until every background unit released its slot or ctx ends.
func (h *Handler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) complete(ctx context.Context, reminderID int64) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("complete action panicked: %v", p)
		}
	}()

	if reminderID == 0 {
		h.logger.DebugContext(ctx, "complete action without reminder id")
		return nil
	}

	unlock := h.store.LockReminder(reminderID)
	defer unlock()

	r, err := h.store.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if r == nil {
		h.logger.DebugContext(ctx, "complete action for unknown reminder", slog.Int64("reminder_id", reminderID))
		return nil
	}

	r.Completed = true
	if err := h.store.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to complete reminder %d: %w", reminderID, err)
	}

	h.alarms.Cancel(ctx, *r)

	if err := h.notifier.Cancel(ctx, reminderID); err != nil {
		return fmt.Errorf("failed to dismiss notification %d: %w", reminderID, err)
	}

	h.logger.InfoContext(ctx, "reminder completed from notification", slog.Int64("reminder_id", reminderID))
	return nil
}
