package noteservice

import "sync"

// pathLocks hands out one mutex per canonical path. Entries are dropped
// once no goroutine holds or waits for them.
type pathLocks struct {
	mu sync.Mutex
	m  map[string]*pathLock
}

type pathLock struct {
	sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{m: make(map[string]*pathLock)}
}

func (l *pathLocks) lock(key string) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.m[key]
	if !ok {
		pl = &pathLock{}
		l.m[key] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		if pl.refs--; pl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
