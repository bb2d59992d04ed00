package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
)

// MessageLog remembers which chat message currently shows a reminder.
type MessageLog interface {
	SaveNotification(ctx context.Context, reminderID int64, messageID string) error
	LookupNotification(ctx context.Context, reminderID int64) (string, bool, error)
	DeleteNotification(ctx context.Context, reminderID int64) error
}

// Notifier shows reminder notifications as chat messages with inline buttons.
type Notifier struct {
	client *Client
	log    MessageLog
	logger *slog.Logger
}

// NewNotifier creates a Notifier that records shown messages in log.
func NewNotifier(client *Client, log MessageLog) *Notifier {
	return &Notifier{
		client: client,
		log:    log,
		logger: slog.Default().WithGroup("telegram"),
	}
}

// Show sends the notification, replacing one already shown for the same ID.
// If the previous message cannot be removed, nothing new is sent and its
// record is kept so a later Show or Cancel can retry.
func (n *Notifier) Show(ctx context.Context, note notify.Notification) error {
	if err := n.Cancel(ctx, note.ID); err != nil {
		return fmt.Errorf("failed to replace notification %d: %w", note.ID, err)
	}

	row := []InlineButton{{Text: note.Tap.Label, CallbackData: note.Tap.Data()}}
	for _, a := range note.Actions {
		row = append(row, InlineButton{Text: a.Label, CallbackData: a.Data()})
	}

	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(note.Title), html.EscapeString(note.Body))

	messageID, err := n.client.SendMessage(ctx, text, [][]InlineButton{row})
	if err != nil {
		return fmt.Errorf("failed to show notification %d: %w", note.ID, err)
	}

	if err := n.log.SaveNotification(ctx, note.ID, strconv.FormatInt(messageID, 10)); err != nil {
		// Unrecorded messages are withdrawn.
		if delErr := n.client.DeleteMessage(ctx, messageID); delErr != nil {
			n.logger.WarnContext(ctx, "failed to withdraw unrecorded notification",
				slog.Int64("reminder_id", note.ID),
				slog.Int64("message_id", messageID),
				slog.String("error", delErr.Error()),
			)
		}
		return err
	}

	n.logger.InfoContext(ctx, "notification shown",
		slog.Int64("reminder_id", note.ID),
		slog.Int64("message_id", messageID),
	)
	return nil
}

// Cancel deletes the message shown for id, if any. The record is dropped
// only once the chat no longer holds the message.
func (n *Notifier) Cancel(ctx context.Context, id int64) error {
	raw, ok, err := n.log.LookupNotification(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	messageID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if delErr := n.log.DeleteNotification(ctx, id); delErr != nil {
			return delErr
		}
		return fmt.Errorf("invalid stored message id %q: %w", raw, err)
	}

	if err := n.client.DeleteMessage(ctx, messageID); err != nil && !isMessageGone(err) {
		return fmt.Errorf("failed to dismiss notification %d: %w", id, err)
	}

	if err := n.log.DeleteNotification(ctx, id); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "notification dismissed",
		slog.Int64("reminder_id", id),
		slog.Int64("message_id", messageID),
	)
	return nil
}

// ShowDetail sends the reminder's details as a plain message.
func (n *Notifier) ShowDetail(ctx context.Context, r reminder.Reminder) error {
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(r.Title))
	if r.Description != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(r.Description))
	}
	if r.Completed {
		b.WriteString("Status: completed\n")
	} else {
		b.WriteString("Status: pending\n")
	}
	for _, t := range r.Triggers {
		fmt.Fprintf(&b, "• %s\n", t.At.Local().Format(time.RFC1123))
	}

	_, err := n.client.SendMessage(ctx, b.String(), nil)
	return err
}
