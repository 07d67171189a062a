package ledger

import "sync"

// KeyedLocker hands out one mutex per key. Goroutines locking the same key
// are serialized; different keys never contend beyond the map lookup.
// Entries are dropped once nobody holds or waits on them.
type KeyedLocker[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker[K comparable]() *KeyedLocker[K] {
	return &KeyedLocker[K]{locks: make(map[K]*keyedEntry)}
}

// Lock blocks until key is free and returns the function releasing it.
func (l *KeyedLocker[K]) Lock(key K) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &keyedEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.locks, key)
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of keys currently held or waited on.
func (l *KeyedLocker[K]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
