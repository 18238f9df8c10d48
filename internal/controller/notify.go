// Package controller holds the stateful controllers behind every view: the
// task collection, the creation form and the connection diagnostics.
//
// Each controller owns its state behind a mutex. Callers mutate it only
// through controller methods and observe it through immutable snapshots,
// either by polling State or by subscribing to changes.
package controller

import (
	"sync"
	"sync/atomic"
)

// notifier fans snapshots out to subscribers. Callbacks run outside any
// controller lock, one delivery at a time and in snapshot order: a snapshot
// older than one already delivered is skipped. A publish that arrives while
// another goroutine is delivering, including one made from inside a
// callback, is queued and delivered by that goroutine.
type notifier[S any] struct {
	seq atomic.Uint64

	mu         sync.Mutex
	next       int
	subs       map[int]func(S)
	pending    []stamped[S]
	delivering bool
	delivered  uint64
}

type stamped[S any] struct {
	seq   uint64
	state S
}

// stamp orders a snapshot. Call it while holding the lock the snapshot was
// taken under.
func (n *notifier[S]) stamp() uint64 {
	return n.seq.Add(1)
}

func (n *notifier[S]) subscribe(fn func(S)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(S))
	}
	id := n.next
	n.next++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

func (n *notifier[S]) publish(seq uint64, s S) {
	n.mu.Lock()
	n.pending = append(n.pending, stamped[S]{seq: seq, state: s})
	if n.delivering {
		n.mu.Unlock()
		return
	}
	n.delivering = true

	for len(n.pending) > 0 {
		item := n.pending[0]
		n.pending = n.pending[1:]
		if item.seq <= n.delivered {
			continue
		}
		n.delivered = item.seq
		fns := make([]func(S), 0, len(n.subs))
		for _, fn := range n.subs {
			fns = append(fns, fn)
		}
		n.mu.Unlock()

		for _, fn := range fns {
			fn(item.state)
		}
		n.mu.Lock()
	}
	n.pending = nil
	n.delivering = false
	n.mu.Unlock()
}
