package reminder

import "time"

// Trigger is one instant at which a reminder fires.
// Key is assigned by the store and stays with the trigger across edits,
// so alarms registered for it can be cancelled no matter how the list changes.
type Trigger struct {
	Key string    `json:"key"`
	At  time.Time `json:"at"`
}

// Reminder represents a user reminder with one or more trigger instants.
type Reminder struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Triggers    []Trigger `json:"triggers"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TriggerTimestamps returns the trigger instants as epoch milliseconds, in list order.
func (r Reminder) TriggerTimestamps() []int64 {
	out := make([]int64, 0, len(r.Triggers))
	for _, t := range r.Triggers {
		out = append(out, t.At.UnixMilli())
	}
	return out
}

// FutureTriggers returns the triggers strictly after now.
func (r Reminder) FutureTriggers(now time.Time) []Trigger {
	var out []Trigger
	for _, t := range r.Triggers {
		if t.At.After(now) {
			out = append(out, t)
		}
	}
	return out
}

// HasFutureTrigger reports whether any trigger is strictly after now.
func (r Reminder) HasFutureTrigger(now time.Time) bool {
	return len(r.FutureTriggers(now)) > 0
}

// Clone returns a copy that shares no slice memory with r.
func (r Reminder) Clone() Reminder {
	c := r
	if r.Triggers != nil {
		c.Triggers = append([]Trigger(nil), r.Triggers...)
	}
	return c
}

// TriggersAt builds triggers without keys from epoch milliseconds.
// Keys are filled in by the store on insert or update.
func TriggersAt(millis ...int64) []Trigger {
	out := make([]Trigger, 0, len(millis))
	for _, ms := range millis {
		out = append(out, Trigger{At: time.UnixMilli(ms).UTC()})
	}
	return out
}
