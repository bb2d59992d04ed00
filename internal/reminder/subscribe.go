package reminder

import (
	"context"
	"log/slog"
	"sync"
)

type subscriber struct {
	mu     sync.Mutex
	ch     chan []Reminder
	closed bool
}

// offer delivers snap, replacing any snapshot the subscriber has not read yet.
func (s *subscriber) offer(snap []Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Subscribe returns a feed of reminder snapshots. The current snapshot is
// delivered first, then one after every committed write. A slow reader only
// ever sees the latest snapshot. The channel is closed when ctx is done or
// the store is closed.
func (s *Store) Subscribe(ctx context.Context) <-chan []Reminder {
	sub := &subscriber{ch: make(chan []Reminder, 1)}

	s.pubMu.Lock()
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	if snap, err := s.GetAll(ctx); err == nil {
		sub.offer(snap)
	} else {
		slog.Default().WithGroup("store").Warn("initial snapshot failed", slog.String("error", err.Error()))
	}
	s.pubMu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		sub.close()
	}()

	return sub.ch
}

func (s *Store) publish(ctx context.Context) {
	// Serialised so snapshots reach subscribers in commit order.
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	n := len(s.subs)
	s.mu.Unlock()
	if n == 0 {
		return
	}

	// The write has already committed; a cancelled caller must not hide it.
	snap, err := s.GetAll(context.WithoutCancel(ctx))
	if err != nil {
		slog.Default().WithGroup("store").Warn("snapshot after write failed", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.offer(cloneAll(snap))
	}
}

func cloneAll(in []Reminder) []Reminder {
	out := make([]Reminder, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
