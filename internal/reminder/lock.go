package reminder

import "sync"

type idLock struct {
	mu   sync.Mutex
	refs int
}

// idLocks hands out one mutex per reminder ID and drops it once unused.
type idLocks struct {
	mu sync.Mutex
	m  map[int64]*idLock
}

func (l *idLocks) lock(id int64) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*idLock)
	}
	entry, ok := l.m[id]
	if !ok {
		entry = &idLock{}
		l.m[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.m, id)
			}
			l.mu.Unlock()
		})
	}
}

// LockReminder serialises read-modify-write sequences on one reminder across
// callers sharing this Store. It blocks until the lock is free and returns
// the function that releases it.
func (s *Store) LockReminder(id int64) (unlock func()) {
	return s.locks.lock(id)
}
