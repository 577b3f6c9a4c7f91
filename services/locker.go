package services

import "sync"

// UserLocker serializes work per user inside this process. Entries are
// reference counted and dropped when no goroutine holds or waits on them.
type UserLocker struct {
	mu    sync.Mutex
	locks map[uint]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewUserLocker() *UserLocker {
	return &UserLocker{locks: make(map[uint]*userLock)}
}

// Lock blocks until userID is free and returns the matching unlock.
func (l *UserLocker) Lock(userID uint) (unlock func()) {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *UserLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
