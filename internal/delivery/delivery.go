// Package delivery turns fired alarms into user-visible notifications.
package delivery

import (
	"context"
	"log/slog"

	"github.com/notexe/reminderd/internal/alarm"
	"github.com/notexe/reminderd/internal/notify"
)

const (
	DefaultTitle         = "Reminder"
	DefaultBody          = "Time for your reminder!"
	DefaultOpenLabel     = "Open"
	DefaultCompleteLabel = "Mark complete"
)

// Texts holds the user-facing strings of a notification.
type Texts struct {
	TitleFallback string
	Body          string
	OpenLabel     string
	CompleteLabel string
}

func (t Texts) withDefaults() Texts {
	if t.TitleFallback == "" {
		t.TitleFallback = DefaultTitle
	}
	if t.Body == "" {
		t.Body = DefaultBody
	}
	if t.OpenLabel == "" {
		t.OpenLabel = DefaultOpenLabel
	}
	if t.CompleteLabel == "" {
		t.CompleteLabel = DefaultCompleteLabel
	}
	return t
}

// Handler receives fired alarms.
type Handler struct {
	notifier notify.Notifier
	texts    Texts
	logger   *slog.Logger
}

// NewHandler creates a Handler. Empty texts fall back to the defaults.
func NewHandler(notifier notify.Notifier, texts Texts) *Handler {
	return &Handler{
		notifier: notifier,
		texts:    texts.withDefaults(),
		logger:   slog.Default().WithGroup("delivery"),
	}
}

// Build returns the notification for a fired alarm.
func (h *Handler) Build(p alarm.Payload) notify.Notification {
	title := p.Title
	if title == "" {
		title = h.texts.TitleFallback
	}

	return notify.Notification{
		ID:    p.ReminderID,
		Title: title,
		Body:  h.texts.Body,
		Tap: notify.Action{
			Kind:       notify.ActionOpen,
			Label:      h.texts.OpenLabel,
			ReminderID: p.ReminderID,
		},
		Actions: []notify.Action{{
			Kind:       notify.ActionComplete,
			Label:      h.texts.CompleteLabel,
			ReminderID: p.ReminderID,
		}},
	}
}

// Deliver shows the notification for a fired alarm. It has the shape of an
// alarm.Receiver; failures are logged because nobody waits on the result.
func (h *Handler) Deliver(ctx context.Context, p alarm.Payload) {
	if p.ReminderID == 0 {
		h.logger.WarnContext(ctx, "alarm fired without reminder id")
		return
	}

	if err := h.notifier.Show(ctx, h.Build(p)); err != nil {
		h.logger.ErrorContext(ctx, "failed to show notification",
			slog.Int64("reminder_id", p.ReminderID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.InfoContext(ctx, "reminder delivered", slog.Int64("reminder_id", p.ReminderID))
}
