package service

import "sync"

// keyLock is a set of mutexes keyed by string. Entries are reference
// counted and dropped when no holder or waiter remains.
type keyLock struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLock() *keyLock {
	return &keyLock{locks: make(map[string]*keyLockEntry)}
}

// Lock blocks until key is held and returns its unlock function.
func (k *keyLock) Lock(key string) func() {
	e := k.ref(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.unref(key, e)
	}
}

// TryLock acquires key without blocking. ok is false if it is already held.
func (k *keyLock) TryLock(key string) (unlock func(), ok bool) {
	e := k.ref(key)
	if !e.mu.TryLock() {
		k.unref(key, e)
		return nil, false
	}
	return func() {
		e.mu.Unlock()
		k.unref(key, e)
	}, true
}

func (k *keyLock) ref(key string) *keyLockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyLockEntry{}
		k.locks[key] = e
	}
	e.refs++
	return e
}

func (k *keyLock) unref(key string, e *keyLockEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
