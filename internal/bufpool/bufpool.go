// Package bufpool provides a tiered byte-slice pool for frame bodies read
// off the wire. Every connection's read loop pulls one buffer per incoming
// response, copies the body out of it for the waiter, and returns it to the
// pool before reading the next frame.
package bufpool

import "sync"

// Default size tiers, chosen around typical memcached-binary-protocol frame
// shapes: control responses (status-only, small extras) fit in Small;
// most document bodies fit in Medium; bulk sub-doc/whole-document payloads
// fit in Large. Anything bigger than Large is allocated directly rather
// than pooled, so one oversized transfer can't keep a huge buffer pinned
// in the pool indefinitely.
const (
	DefaultSmallSize  = 4 << 10  // 4KiB: headers, extras-only responses
	DefaultMediumSize = 64 << 10 // 64KiB: typical document bodies
	DefaultLargeSize  = 1 << 20  // 1MiB: bulk payloads, sub-doc envelopes
)

// Pool is a set of size-classed sync.Pools with fallback direct allocation
// for oversized requests.
type Pool struct {
	small, medium, large       sync.Pool
	smallSize, mediumSize, largeSize int
}

// Config overrides the default size tiers.
type Config struct {
	SmallSize, MediumSize, LargeSize int
}

// NewPool creates a Pool from cfg, applying defaults for any zero field.
// A nil cfg uses all defaults.
func NewPool(cfg *Config) *Pool {
	c := Config{SmallSize: DefaultSmallSize, MediumSize: DefaultMediumSize, LargeSize: DefaultLargeSize}
	if cfg != nil {
		if cfg.SmallSize > 0 {
			c.SmallSize = cfg.SmallSize
		}
		if cfg.MediumSize > 0 {
			c.MediumSize = cfg.MediumSize
		}
		if cfg.LargeSize > 0 {
			c.LargeSize = cfg.LargeSize
		}
	}

	p := &Pool{smallSize: c.SmallSize, mediumSize: c.MediumSize, largeSize: c.LargeSize}
	p.small.New = func() any { buf := make([]byte, p.smallSize); return &buf }
	p.medium.New = func() any { buf := make([]byte, p.mediumSize); return &buf }
	p.large.New = func() any { buf := make([]byte, p.largeSize); return &buf }
	return p
}

// Get returns a byte slice of exactly size bytes, backed by a pooled buffer
// when size fits a tier. The caller must Put it back once done.
func (p *Pool) Get(size int) []byte {
	var bufPtr *[]byte
	switch {
	case size <= p.smallSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= p.mediumSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= p.largeSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}
	return (*bufPtr)[:size]
}

// Put returns buf to the pool it was drawn from, identified by capacity.
// Buffers outside the known tiers (oversized, or not from Get) are dropped
// for ordinary GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	switch cap(buf) {
	case p.smallSize:
		full := buf[:cap(buf)]
		p.small.Put(&full)
	case p.mediumSize:
		full := buf[:cap(buf)]
		p.medium.Put(&full)
	case p.largeSize:
		full := buf[:cap(buf)]
		p.large.Put(&full)
	}
}

var global = NewPool(nil)

// Get draws size bytes from the global pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns buf to the global pool.
func Put(buf []byte) { global.Put(buf) }

// GetUint32 is a convenience wrapper for the wire's uint32 length fields.
func GetUint32(size uint32) []byte { return global.Get(int(size)) }
