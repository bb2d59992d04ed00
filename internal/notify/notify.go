// Package notify defines how reminder notifications are shown and dismissed.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

// ActionKind names what a notification button does.
type ActionKind string

const (
	ActionOpen     ActionKind = "open"
	ActionComplete ActionKind = "complete"
)

// Action is one button on a notification.
type Action struct {
	Kind       ActionKind
	Label      string
	ReminderID int64
}

// Data encodes the action as a callback payload such as "complete:42".
func (a Action) Data() string {
	return EncodeAction(a.Kind, a.ReminderID)
}

// Notification is a user-visible alert keyed by reminder ID.
// Tap is the default action; Actions are secondary buttons.
type Notification struct {
	ID      int64
	Title   string
	Body    string
	Tap     Action
	Actions []Action
}

// Notifier shows and dismisses notifications. Showing a notification for an
// ID that is already shown replaces it; cancelling an ID with nothing shown
// is a no-op.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
	Cancel(ctx context.Context, id int64) error
}

// DetailView presents a reminder opened from a notification.
type DetailView interface {
	ShowDetail(ctx context.Context, r reminder.Reminder) error
}

// EncodeAction builds the callback payload for kind and reminder ID.
func EncodeAction(kind ActionKind, reminderID int64) string {
	return string(kind) + ":" + strconv.FormatInt(reminderID, 10)
}

// ParseAction decodes a callback payload. Malformed payloads and
// non-positive IDs yield an ID of 0, which every handler treats as missing.
func ParseAction(data string) (ActionKind, int64) {
	kind, rawID, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok {
		return ActionKind(kind), 0
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id < 0 {
		return ActionKind(kind), 0
	}
	return ActionKind(kind), id
}

// DetailMarkdown renders a reminder as markdown for detail views.
func DetailMarkdown(r reminder.Reminder, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}

	status := "pending"
	if r.Completed {
		status = "completed"
	}
	fmt.Fprintf(&b, "**Status:** %s\n\n", status)

	if len(r.Triggers) == 0 {
		b.WriteString("_No dates set._\n")
		return b.String()
	}

	b.WriteString("**Dates:**\n\n")
	for _, t := range r.Triggers {
		mark := "upcoming"
		if !t.At.After(now) {
			mark = "elapsed"
		}
		fmt.Fprintf(&b, "- %s (%s)\n", t.At.Local().Format("Mon 02 Jan 2006 15:04"), mark)
	}
	return b.String()
}
