package pipeline

import (
	"context"
	"sync"
)

// Locker serializes pipeline runs that share a key. unlock reports when
// exclusion was lost before release (for example an expired lease).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func() error, err error)
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds
// or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func() error, error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.drop(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-e.sem
			k.drop(key, e)
		})
		return nil
	}, nil
}

func (k *KeyedMutex) drop(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
