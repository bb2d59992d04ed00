package reminder

import "errors"

var (
	ErrInvalidMillis      = errors.New("invalid epoch millis in reminder_dates")
	ErrTriggerKeyMismatch = errors.New("trigger_keys does not match reminder_dates")
)
