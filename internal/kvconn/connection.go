// Package kvconn implements a single multiplexed connection to one
// cluster node's KV service: framing requests onto the wire, demultiplexing
// responses back to their waiting caller by opaque, and tracking liveness
// so a dead socket fails its outstanding callers instead of hanging them.
package kvconn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cbkv-io/cbkv-go/internal/bufpool"
	"github.com/cbkv-io/cbkv-go/internal/logger"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// Factory dials a new transport-level connection to a node. Production
// code uses a net.Dialer; tests substitute an in-memory pipe factory.
type Factory interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// DialerFactory is the default Factory, backed by net.Dialer.
type DialerFactory struct {
	Dialer net.Dialer
}

// Dial implements Factory.
func (f *DialerFactory) Dial(ctx context.Context, addr string) (net.Conn, error) {
	return f.Dialer.DialContext(ctx, "tcp", addr)
}

// Initializer runs node-specific setup (SASL authentication, HELLO
// negotiation, bucket selection) on a freshly dialed Connection before it
// is handed to a pool for general use.
type Initializer interface {
	Initialize(ctx context.Context, conn *Connection) error
}

// NoopInitializer skips initialization, for nodes that need none (tests,
// unauthenticated clusters).
type NoopInitializer struct{}

// Initialize implements Initializer.
func (NoopInitializer) Initialize(ctx context.Context, conn *Connection) error { return nil }

// Connection multiplexes many in-flight KV operations over one TCP socket.
// Exactly one goroutine (the read loop) ever reads from the socket; any
// number of goroutines may call Send concurrently, serialized against each
// other only for the write.
type Connection struct {
	id   uuid.UUID
	addr string
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex

	opaqueSeq atomic.Uint32
	waiters   *waiterTable

	isDead    atomic.Bool
	deathOnce sync.Once
	deathErr  atomic.Value // error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	onDeath func(*Connection, error)
}

// Dial opens a new Connection to addr using factory, runs init against it,
// and starts its read loop. onDeath, if non-nil, is invoked exactly once
// when the connection transitions to dead (read error, write error, or
// explicit Close).
func Dial(ctx context.Context, addr string, factory Factory, init Initializer, onDeath func(*Connection, error)) (*Connection, error) {
	raw, err := factory.Dial(ctx, addr)
	if err != nil {
		return nil, kverrors.NewTransport(0, "", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New(),
		addr:    addr,
		conn:    raw,
		r:       bufio.NewReaderSize(raw, 16*1024),
		waiters: newWaiterTable(),
		ctx:     cctx,
		cancel:  cancel,
		onDeath: onDeath,
	}

	c.wg.Add(1)
	go c.readLoop()

	if init != nil {
		if err := init.Initialize(ctx, c); err != nil {
			c.Close()
			return nil, err
		}
	}

	logger.Debug("kvconn: connection established", "id", c.id, "addr", addr)
	return c, nil
}

// ID returns the connection's log-correlation id, assigned at Dial time.
func (c *Connection) ID() uuid.UUID { return c.id }

// Addr returns the remote node address this connection serves.
func (c *Connection) Addr() string { return c.addr }

// IsDead reports whether the connection has been marked unusable.
func (c *Connection) IsDead() bool { return c.isDead.Load() }

// PendingCount returns the number of requests awaiting a reply, for pool
// diagnostics.
func (c *Connection) PendingCount() int { return c.waiters.count() }

// nextOpaque returns a fresh, connection-scoped correlation id.
func (c *Connection) nextOpaque() uint32 { return c.opaqueSeq.Add(1) }

// Send writes req to the socket and waits for its matching reply, honoring
// ctx cancellation/timeout. The request's Opaque field is overwritten with
// a connection-scoped correlation id.
func (c *Connection) Send(ctx context.Context, req memd.Request) (memd.Response, error) {
	if c.IsDead() {
		return memd.Response{}, c.currentDeathError()
	}

	opaque := c.nextOpaque()
	req.Opaque = opaque

	frame, err := req.Encode()
	if err != nil {
		return memd.Response{}, kverrors.New(kverrors.KindClient, req.OpCode, req.Key, memd.StatusClientDecodeFailure, err)
	}

	ch := c.waiters.register(opaque)

	c.writeMu.Lock()
	_, writeErr := c.conn.Write(frame)
	c.writeMu.Unlock()
	if writeErr != nil {
		c.waiters.forget(opaque)
		c.markDead(writeErr)
		return memd.Response{}, c.currentDeathError()
	}

	select {
	case res := <-ch:
		return res.Response, res.Err
	case <-ctx.Done():
		c.waiters.forget(opaque)
		return memd.Response{}, kverrors.FromContextErr(req.OpCode, req.Key, ctx.Err())
	case <-c.ctx.Done():
		c.waiters.forget(opaque)
		return memd.Response{}, c.currentDeathError()
	}
}

// readLoop is the connection's single reader goroutine: it parses one
// frame at a time off the wire and delivers it to the waiter registered
// under that frame's opaque.
func (c *Connection) readLoop() {
	defer c.wg.Done()

	for {
		header, err := memd.ReadHeader(c.r)
		if err != nil {
			c.markDead(err)
			return
		}

		bodyLen := header.TotalBodyLen
		var body []byte
		if bodyLen > 0 {
			buf := bufpool.GetUint32(bodyLen)
			if _, err := io.ReadFull(c.r, buf); err != nil {
				bufpool.Put(buf)
				c.markDead(err)
				return
			}
			// The decoded Response aliases body, and the waiter reads it
			// after delivery, so hand it a private copy and recycle buf.
			body = append([]byte(nil), buf...)
			bufpool.Put(buf)
		}

		resp, decodeErr := memd.DecodeResponse(header, body)
		if decodeErr != nil {
			logger.Warn("kvconn: malformed response frame, dropping", "id", c.id, "addr", c.addr, "opaque", header.Opaque, "error", decodeErr)
			c.waiters.deliver(header.Opaque, Result{Err: kverrors.New(kverrors.KindClient, 0, "", memd.StatusClientDecodeFailure, decodeErr)})
			continue
		}

		if !c.waiters.deliver(header.Opaque, Result{Response: resp}) {
			logger.Debug("kvconn: reply for unknown opaque dropped", "id", c.id, "addr", c.addr, "opaque", header.Opaque)
		}
	}
}

// markDead transitions the connection to dead exactly once, failing every
// outstanding waiter with a transport error and invoking onDeath.
func (c *Connection) markDead(cause error) {
	c.deathOnce.Do(func() {
		c.isDead.Store(true)
		logger.Debug("kvconn: connection marked dead", "id", c.id, "addr", c.addr, "cause", cause)
		err := kverrors.NewTransport(0, "", fmt.Errorf("connection to %s: %w", c.addr, cause))
		c.deathErr.Store(err)
		c.cancel()
		c.waiters.failAll(err)
		_ = c.conn.Close()
		if c.onDeath != nil {
			c.onDeath(c, err)
		}
	})
}

func (c *Connection) currentDeathError() error {
	if v := c.deathErr.Load(); v != nil {
		return v.(error)
	}
	return kverrors.NewTransport(0, "", fmt.Errorf("connection to %s closed", c.addr))
}

// Close disposes of the connection: it is equivalent to the socket dying,
// except the cause is "closed by caller" rather than an I/O error. Close
// blocks until the read loop has exited.
func (c *Connection) Close() error {
	c.markDead(io.EOF)
	c.wg.Wait()
	return nil
}

// SetDeadline is a narrow escape hatch for Initializer implementations that
// need to bound their own handshake reads/writes.
func (c *Connection) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// Raw exposes the underlying net.Conn for Initializer implementations that
// must write outside the Send machinery. The read loop is already running
// when the Initializer is invoked, so replies on this socket are consumed
// by it.
func (c *Connection) Raw() net.Conn { return c.conn }

// RawReader exposes the buffered reader wrapping the socket. It is the same
// reader the read loop, which is already running when the Initializer is
// invoked, consumes frames from.
func (c *Connection) RawReader() *bufio.Reader { return c.r }
