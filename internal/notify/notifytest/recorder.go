// Package notifytest provides an in-memory Notifier for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/notexe/reminderd/internal/notify"
	"github.com/notexe/reminderd/internal/reminder"
)

// Recorder records every call and keeps the set of shown notifications.
type Recorder struct {
	mu        sync.Mutex
	shown     map[int64]notify.Notification
	shows     []notify.Notification
	cancelled []int64
	details   []reminder.Reminder

	ShowErr   error
	CancelErr error
}

func NewRecorder() *Recorder {
	return &Recorder{shown: make(map[int64]notify.Notification)}
}

func (r *Recorder) Show(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ShowErr != nil {
		return r.ShowErr
	}
	r.shows = append(r.shows, n)
	r.shown[n.ID] = n
	return nil
}

func (r *Recorder) Cancel(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CancelErr != nil {
		return r.CancelErr
	}
	r.cancelled = append(r.cancelled, id)
	delete(r.shown, id)
	return nil
}

func (r *Recorder) ShowDetail(_ context.Context, rem reminder.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.details = append(r.details, rem)
	return nil
}

// Shown reports the notification currently displayed for id.
func (r *Recorder) Shown(id int64) (notify.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.shown[id]
	return n, ok
}

func (r *Recorder) Shows() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notification(nil), r.shows...)
}

func (r *Recorder) Cancelled() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.cancelled...)
}

func (r *Recorder) Details() []reminder.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reminder.Reminder(nil), r.details...)
}
