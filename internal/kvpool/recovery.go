package kvpool

import (
	"time"

	"github.com/cbkv-io/cbkv-go/internal/kvconn"
	"github.com/cbkv-io/cbkv-go/internal/logger"
)

// recoverySweepInterval bounds how long a node that stays down can keep
// the pool below MinSize with no new death event to re-trigger recovery:
// a death-less node (one that never finishes dialing, or whose last
// connection died before any trigger landed) still gets retried.
const recoverySweepInterval = 30 * time.Second

// recoveryLoop runs for the lifetime of the pool, coalescing connection
// death notifications into recovery passes. Multiple deaths in quick
// succession collapse into a single pass because requestRecovery only
// buffers one pending signal. A periodic sweep backstops the case where
// the pool is already below MinSize with nothing left alive to die again.
func (p *ConnectionPool) recoveryLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(recoverySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.recoverCh:
			p.recover()
		case <-ticker.C:
			if p.LiveCount() < p.cfg.MinSize {
				p.recover()
			}
		}
	}
}

// recover sweeps dead connections out of the pool and recreates connections
// up to MinSize, dialing all of them in parallel rather than one at a time
// (a dial can block for up to ConnectTimeout, and serializing that many
// dials while holding the live-connection lock would stall every other
// Submit/Freeze caller for the whole batch). Recreation failures are logged
// and left for the next recovery pass rather than retried in a busy loop.
func (p *ConnectionPool) recover() {
	p.recoverMu.Lock()
	defer p.recoverMu.Unlock()

	p.mu.Lock()
	live := p.conns[:0:0]
	for _, c := range p.conns {
		if c.IsDead() {
			continue
		}
		live = append(live, c)
	}
	p.conns = live
	need := p.cfg.MinSize - len(p.conns)
	p.mu.Unlock()

	if need <= 0 {
		return
	}

	type dialOutcome struct {
		conn *kvconn.Connection
		err  error
	}
	outcomes := make(chan dialOutcome, need)
	for i := 0; i < need; i++ {
		if p.metrics != nil {
			p.metrics.IncRecoveryAttempt(string(p.node))
		}
		go func() {
			conn, err := p.dial()
			outcomes <- dialOutcome{conn: conn, err: err}
		}()
	}

	failed := 0
	for i := 0; i < need; i++ {
		o := <-outcomes
		if o.err != nil {
			logger.Warn("kvpool: failed to establish connection", "node", p.addr, "error", o.err)
			failed++
			continue
		}
		p.mu.Lock()
		p.addConnLocked(o.conn)
		p.mu.Unlock()
	}

	if failed > 0 {
		if p.metrics != nil {
			for i := 0; i < failed; i++ {
				p.metrics.IncRecoveryFailure(string(p.node))
			}
		}
		logger.Warn("kvpool: recovery could not reach min size, will retry on next trigger",
			"pool", p.id, "node", p.addr, "live", p.LiveCount(), "min", p.cfg.MinSize)
	}
}
