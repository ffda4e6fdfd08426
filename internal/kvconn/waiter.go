package kvconn

import (
	"sync"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// Result is what a waiter eventually receives: either a decoded response or
// the error that completed it instead (transport failure, timeout,
// cancellation).
type Result struct {
	Response memd.Response
	Err      error
}

// waiterTable correlates in-flight requests to their completion channel by
// opaque, the same role xid plays for dittofs's backchannel replies.
type waiterTable struct {
	mu      sync.Mutex
	waiters map[uint32]chan Result
}

func newWaiterTable() *waiterTable {
	return &waiterTable{waiters: make(map[uint32]chan Result)}
}

// register creates and stores a one-shot completion channel for opaque. The
// caller must eventually consume from it or call forget to avoid a leak.
func (t *waiterTable) register(opaque uint32) chan Result {
	ch := make(chan Result, 1)
	t.mu.Lock()
	t.waiters[opaque] = ch
	t.mu.Unlock()
	return ch
}

// forget removes the waiter for opaque without delivering anything,
// used when a caller gives up (context cancelled/timed out) before a
// reply arrives.
func (t *waiterTable) forget(opaque uint32) {
	t.mu.Lock()
	delete(t.waiters, opaque)
	t.mu.Unlock()
}

// deliver completes the waiter for opaque, if one is still registered. It
// returns false if no waiter was found (late, duplicate, or already
// abandoned reply).
func (t *waiterTable) deliver(opaque uint32, res Result) bool {
	t.mu.Lock()
	ch, ok := t.waiters[opaque]
	if ok {
		delete(t.waiters, opaque)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- res
	return true
}

// failAll completes every pending waiter with err, draining the table. Used
// when the connection dies with requests still outstanding.
func (t *waiterTable) failAll(err error) {
	t.mu.Lock()
	pending := t.waiters
	t.waiters = make(map[uint32]chan Result)
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- Result{Err: err}
	}
}

// count returns the number of outstanding waiters, for diagnostics.
func (t *waiterTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}
