package kvpool

import (
	"fmt"

	"github.com/cbkv-io/cbkv-go/internal/kvconn"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
)

// runWorker is the dedicated goroutine for one connection: it drains jobs
// from the pool's shared queue and serves each with conn, one at a time.
// A worker whose connection has died takes a job off the queue, reposts it
// for another worker to pick up, and then exits — the connection's own
// onDeath callback already triggered recovery.
func (p *ConnectionPool) runWorker(conn *kvconn.Connection) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.queue:
			if conn.IsDead() {
				p.repost(j)
				return
			}
			res, err := conn.Send(j.ctx, j.req)
			j.resultCh <- kvconn.Result{Response: res, Err: err}
			if conn.IsDead() {
				return
			}
		}
	}
}

// repost puts a job a dying worker couldn't serve back onto the shared
// queue for a sibling worker. If the queue has no room, the job fails
// outright rather than blocking the dying worker's shutdown.
func (p *ConnectionPool) repost(j job) {
	select {
	case p.queue <- j:
	default:
		err := kverrors.NewTransport(j.req.OpCode, j.req.Key, fmt.Errorf("pool for %s: no worker available to retry after connection loss", p.addr))
		j.resultCh <- kvconn.Result{Err: err}
	}
}
