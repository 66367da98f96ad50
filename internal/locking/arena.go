// Package locking provides keyed mutual exclusion with strict FIFO fairness.
//
// An Arena hands out one logical mutex per string key. Waiters for the same
// key are granted the lock in arrival order, so a steady stream of imports
// against one document cannot starve an earlier waiter. Keys that are not
// held or waited on cost nothing.
//
// The import pipeline runs two arenas: one keyed by vault document path and
// one keyed by document UID (guarding the snapshot). When an operation needs
// a lock from each domain it must acquire them through LockPair, which
// orders acquisition lexicographically to make cross-key deadlock impossible.
package locking

import (
	"context"
	"sync"
)

// Arena is a set of FIFO mutexes keyed by string.
// The zero value is not usable; construct with NewArena.
type Arena struct {
	mu sync.Mutex

	// queues holds, per key, the grant channels of the current holder
	// (index 0) and the waiters behind it, in arrival order. A key with no
	// holder and no waiters has no entry.
	queues map[string][]chan struct{}
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{queues: make(map[string][]chan struct{})}
}

// Lock acquires the mutex for key, blocking until it is granted or ctx is
// done. On success it returns a release function, which is safe to call more
// than once. On cancellation the waiter leaves the queue without disturbing
// the order of those behind it.
func (a *Arena) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan struct{})

	a.mu.Lock()
	q := append(a.queues[key], ch)
	a.queues[key] = q
	if len(q) == 1 {
		close(ch)
	}
	a.mu.Unlock()

	select {
	case <-ch:
		var once sync.Once
		release := func() {
			once.Do(func() { a.release(key) })
		}
		return release, nil
	case <-ctx.Done():
		a.abandon(key, ch)
		return nil, ctx.Err()
	}
}

// release pops the current holder and grants the lock to the next waiter.
func (a *Arena) release(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	q := a.queues[key]
	if len(q) == 0 {
		return
	}
	q = q[1:]
	if len(q) == 0 {
		delete(a.queues, key)
		return
	}
	a.queues[key] = q
	close(q[0])
}

// abandon removes a cancelled waiter's channel from the queue. If the grant
// raced the cancellation and the waiter already holds the lock, the lock is
// passed straight to the next in line.
func (a *Arena) abandon(key string, ch chan struct{}) {
	a.mu.Lock()

	q := a.queues[key]
	for i, w := range q {
		if w != ch {
			continue
		}
		if i == 0 {
			// Granted between ctx.Done() firing and this cleanup.
			a.mu.Unlock()
			a.release(key)
			return
		}
		a.queues[key] = append(q[:i], q[i+1:]...)
		break
	}
	a.mu.Unlock()
}

// LockPair acquires the mutexes for two keys, ordering acquisition by
// lexicographic key comparison so concurrent pairs can never deadlock.
// Equal keys are locked once. The returned release function releases both.
func (a *Arena) LockPair(ctx context.Context, keyA, keyB string) (func(), error) {
	if keyA == keyB {
		return a.Lock(ctx, keyA)
	}

	first, second := keyA, keyB
	if second < first {
		first, second = second, first
	}

	releaseFirst, err := a.Lock(ctx, first)
	if err != nil {
		return nil, err
	}
	releaseSecond, err := a.Lock(ctx, second)
	if err != nil {
		releaseFirst()
		return nil, err
	}

	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}
