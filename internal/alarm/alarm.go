package alarm

import (
	"context"
	"errors"
	"time"
)

var ErrExactAlarmDenied = errors.New("exact alarm permission denied")

// Key identifies one registered alarm.
type Key string

// Payload is handed to the receiver when an alarm fires.
type Payload struct {
	ReminderID int64  `json:"reminder_id"`
	Title      string `json:"title"`
}

// Alarm is a live one-shot registration.
type Alarm struct {
	Key     Key       `json:"key"`
	At      time.Time `json:"at"`
	Payload Payload   `json:"payload"`
}

// Receiver is invoked when an alarm fires.
type Receiver func(ctx context.Context, p Payload)

// Manager registers and cancels one-shot wake-up callbacks.
type Manager interface {
	RegisterOneShot(key Key, at time.Time, payload Payload) error
	Cancel(key Key)
	CancelReminder(reminderID int64)
	PendingFor(reminderID int64) []Alarm
}
