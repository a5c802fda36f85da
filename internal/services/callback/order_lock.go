package callback

import (
	"context"
	"sync"

	"github.com/kevin07696/checkout-callback-service/internal/domain/ports"
)

// KeyedLocker is an in-process per-order mutex that honours context cancellation
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker creates an empty locker
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until orderNo is free or ctx is done
func (l *KeyedLocker) Lock(ctx context.Context, orderNo string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[orderNo]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[orderNo] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderNo, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(orderNo, kl)
		})
	}, nil
}

func (l *KeyedLocker) release(orderNo string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, orderNo)
	}
}

// ChainLocker acquires several lockers in order and releases them in reverse.
// Used to take the in-process lock before the distributed one.
type ChainLocker struct {
	lockers []ports.OrderLocker
}

// NewChainLocker combines lockers; nil entries are skipped
func NewChainLocker(lockers ...ports.OrderLocker) *ChainLocker {
	c := &ChainLocker{}
	for _, l := range lockers {
		if l != nil {
			c.lockers = append(c.lockers, l)
		}
	}
	return c
}

// Lock acquires every lock or none
func (c *ChainLocker) Lock(ctx context.Context, orderNo string) (func(), error) {
	unlocks := make([]func(), 0, len(c.lockers))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, l := range c.lockers {
		unlock, err := l.Lock(ctx, orderNo)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return releaseAll, nil
}
