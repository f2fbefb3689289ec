package lock

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var ErrBusy = errors.New("resource busy, please try again later")

// Locker serializes work per key. Lock acquires every key or none; the
// returned unlock releases them all.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

func ProductKey(productID string) string {
	return "lock:inventory:product:" + productID
}

func OrderKey(orderID string) string {
	return "lock:inventory:order:" + orderID
}

// sortedKeys dedupes keys and sorts them so two callers locking overlapping
// sets always acquire in the same order.
func sortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.Sort(out)
	return slices.Compact(out)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is the in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

var _ Locker = (*KeyedMutex)(nil)

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: map[string]*entry{}}
}

func (m *KeyedMutex) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)
	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := m.acquire(ctx, key); err != nil {
			m.release(held)
			return nil, err
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() { once.Do(func() { m.release(held) }) }, nil
}

func (m *KeyedMutex) acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key, e)
		return ctx.Err()
	}
}

func (m *KeyedMutex) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		m.mu.Lock()
		e := m.locks[keys[i]]
		m.mu.Unlock()
		<-e.ch
		m.drop(keys[i], e)
	}
}

func (m *KeyedMutex) drop(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}
