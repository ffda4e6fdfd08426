// Package kvpool implements the per-node connection pool: a bounded queue
// of pending operations fanned out across a small set of long-lived
// kvconn.Connections, with self-healing recovery when a connection dies
// and graceful disposal when the pool is no longer needed.
package kvpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbkv-io/cbkv-go/internal/kvconn"
	"github.com/cbkv-io/cbkv-go/internal/logger"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// Config controls pool sizing and connection setup, mirroring the cluster
// options that bound num_kv_connections/max_kv_connections/send_queue_capacity.
type Config struct {
	MinSize          int
	MaxSize          int
	ConnectTimeout   time.Duration
	SendQueueCapacity int
}

// DefaultConfig matches the documented option defaults.
func DefaultConfig() Config {
	return Config{
		MinSize:           2,
		MaxSize:           5,
		ConnectTimeout:    10 * time.Second,
		SendQueueCapacity: 1024,
	}
}

type job struct {
	ctx      context.Context
	req      memd.Request
	resultCh chan kvconn.Result
}

// ConnectionPool multiplexes operations addressed to one cluster node
// across MinSize..MaxSize kvconn.Connections.
//
// Submission, connection setup, and recovery share a single mutex guarding
// the live connection set; workers do not take it. Freeze exposes that same mutex to external
// callers as a scoped guard: the pool never needs to be observed
// half-updated, so an ordinary lock/defer-unlock section is the whole of
// what "freezing" the pool means here.
type ConnectionPool struct {
	id          uuid.UUID
	node        vbucket.NodeID
	addr        string
	factory     kvconn.Factory
	initializer kvconn.Initializer
	cfg         Config

	mu    sync.Mutex
	conns []*kvconn.Connection

	queue chan job

	recoverCh chan struct{}
	recoverMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	disposeOnce sync.Once

	metrics PoolMetrics
}

// PoolMetrics receives pool lifecycle events. All methods must tolerate a
// nil receiver so metrics are optional.
type PoolMetrics interface {
	SetLiveConnections(node string, n int)
	IncRecoveryAttempt(node string)
	IncRecoveryFailure(node string)
	SetQueueDepth(node string, n int)
}

// New creates a pool for node at addr. It synchronously establishes
// MinSize connections before returning; a node that's down at startup
// yields a pool with zero live connections, which Submit treats as a
// recovery trigger; the request then waits in the queue until a recovered
// connection's worker takes it or its ctx ends.
func New(node vbucket.NodeID, addr string, factory kvconn.Factory, initializer kvconn.Initializer, cfg Config, metrics PoolMetrics) *ConnectionPool {
	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultConfig().MinSize
	}
	if cfg.MaxSize < cfg.MinSize {
		cfg.MaxSize = cfg.MinSize
	}
	if cfg.SendQueueCapacity <= 0 {
		cfg.SendQueueCapacity = DefaultConfig().SendQueueCapacity
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &ConnectionPool{
		id:          uuid.New(),
		node:        node,
		addr:        addr,
		factory:     factory,
		initializer: initializer,
		cfg:         cfg,
		queue:       make(chan job, cfg.SendQueueCapacity),
		recoverCh:   make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
		metrics:     metrics,
	}

	p.wg.Add(1)
	go p.recoveryLoop()

	p.mu.Lock()
	for i := 0; i < cfg.MinSize; i++ {
		p.addConnectionLocked()
	}
	p.mu.Unlock()

	return p
}

// Freeze atomically quiesces the pool for reconfiguration: it acquires the
// connection-set lock and returns a release function. While frozen,
// addConnectionLocked and recover both block on the same lock, so no
// connection is added or removed until the returned func is called — call
// it in a scope, release on scope exit.
func (p *ConnectionPool) Freeze() func() {
	p.mu.Lock()
	return p.mu.Unlock
}

// Node implements vbucket.PoolHandle.
func (p *ConnectionPool) Node() vbucket.NodeID { return p.node }

// ID returns the pool's log/metrics-correlation id, assigned at New time.
func (p *ConnectionPool) ID() uuid.UUID { return p.id }

// LiveCount returns the number of currently live connections.
func (p *ConnectionPool) LiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.conns {
		if !c.IsDead() {
			n++
		}
	}
	return n
}

// Submit dispatches req to one of the pool's connections and waits for its
// reply, honoring ctx. When exactly one connection is live, Submit calls it
// directly rather than routing through the shared queue and worker pool —
// the single-connection fast path, since fan-out has no value with one
// worker.
func (p *ConnectionPool) Submit(ctx context.Context, req memd.Request) (memd.Response, error) {
	if fast, ok := p.fastPathConn(); ok {
		return fast.Send(ctx, req)
	}
	if p.LiveCount() == 0 {
		p.requestRecovery()
	}

	j := job{ctx: ctx, req: req, resultCh: make(chan kvconn.Result, 1)}
	select {
	case p.queue <- j:
	case <-ctx.Done():
		return memd.Response{}, kverrors.FromContextErr(req.OpCode, req.Key, ctx.Err())
	case <-p.ctx.Done():
		return memd.Response{}, kverrors.NewTransport(req.OpCode, req.Key, fmt.Errorf("pool for %s disposed", p.addr))
	default:
		return memd.Response{}, kverrors.NewTransport(req.OpCode, req.Key, fmt.Errorf("pool for %s: send queue full (capacity %d)", p.addr, p.cfg.SendQueueCapacity))
	}

	if p.metrics != nil {
		p.metrics.SetQueueDepth(string(p.node), len(p.queue))
	}

	select {
	case res := <-j.resultCh:
		return res.Response, res.Err
	case <-ctx.Done():
		return memd.Response{}, kverrors.FromContextErr(req.OpCode, req.Key, ctx.Err())
	}
}

// fastPathConn returns the pool's sole live connection when exactly one
// exists, so Submit can skip the queue/worker machinery entirely.
func (p *ConnectionPool) fastPathConn() (*kvconn.Connection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var live *kvconn.Connection
	count := 0
	for _, c := range p.conns {
		if !c.IsDead() {
			count++
			live = c
		}
	}
	if count == 1 {
		return live, true
	}
	return nil, false
}

// dial establishes one new connection without touching the pool's
// connection set or starting its worker; callers are responsible for both,
// either serially under p.mu (addConnectionLocked) or in parallel across
// several dials at once (recover).
func (p *ConnectionPool) dial() (*kvconn.Connection, error) {
	dialCtx, cancel := context.WithTimeout(p.ctx, p.cfg.ConnectTimeout)
	defer cancel()
	return kvconn.Dial(dialCtx, p.addr, p.factory, p.initializer, p.onConnDeath)
}

// addConnLocked registers conn in the live set and starts its worker goroutine.
// Callers must hold p.mu.
func (p *ConnectionPool) addConnLocked(conn *kvconn.Connection) {
	p.conns = append(p.conns, conn)
	p.wg.Add(1)
	go p.runWorker(conn)

	if p.metrics != nil {
		p.metrics.SetLiveConnections(string(p.node), p.liveCountLocked())
	}
}

// addConnectionLocked dials and starts one new connection plus its worker
// goroutine. Callers must hold p.mu. Failures are logged and swallowed;
// nothing here retries, and the missing connection is re-dialed by the
// recovery loop.
func (p *ConnectionPool) addConnectionLocked() {
	conn, err := p.dial()
	if err != nil {
		logger.Warn("kvpool: failed to establish connection", "node", p.addr, "error", err)
		return
	}
	p.addConnLocked(conn)
}

func (p *ConnectionPool) liveCountLocked() int {
	n := 0
	for _, c := range p.conns {
		if !c.IsDead() {
			n++
		}
	}
	return n
}

// onConnDeath is the kvconn.Connection death callback: it requests a
// recovery pass without blocking the connection's own shutdown path.
func (p *ConnectionPool) onConnDeath(conn *kvconn.Connection, err error) {
	logger.Warn("kvpool: connection died", "pool", p.id, "node", p.addr, "error", err)
	if p.metrics != nil {
		p.metrics.SetLiveConnections(string(p.node), p.LiveCount())
	}
	p.requestRecovery()
}

func (p *ConnectionPool) requestRecovery() {
	select {
	case p.recoverCh <- struct{}{}:
	default:
		// A recovery pass is already pending; it will pick up this death too.
	}
}

// Close disposes the pool: it stops accepting new recovery/submission
// work, drains the send queue with a transport error, and closes every
// connection.
func (p *ConnectionPool) Close() {
	p.disposeOnce.Do(func() {
		p.cancel()

		drained := kverrors.NewTransport(0, "", fmt.Errorf("pool for %s disposed", p.addr))
		for {
			select {
			case j := <-p.queue:
				j.resultCh <- kvconn.Result{Err: drained}
			default:
				goto drainedQueue
			}
		}
	drainedQueue:

		p.mu.Lock()
		conns := p.conns
		p.conns = nil
		p.mu.Unlock()

		for _, c := range conns {
			_ = c.Close()
		}

		p.wg.Wait()
	})
}
