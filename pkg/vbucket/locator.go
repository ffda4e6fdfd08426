package vbucket

// KeyMapper resolves a document key to the vbucket that shards it. The
// default implementation wraps VBucketForKey. The dispatcher calls
// VBucketForKey directly and does not take a KeyMapper.
type KeyMapper interface {
	VBucketForKey(key string) uint16
}

// CRC32KeyMapper is the protocol-mandated default KeyMapper.
type CRC32KeyMapper struct{}

// VBucketForKey implements KeyMapper.
func (CRC32KeyMapper) VBucketForKey(key string) uint16 { return VBucketForKey(key) }

// PoolHandle is the subset of internal/kvpool's ConnectionPool that
// NodeLocator needs to return, kept as an interface here so this package
// never imports kvpool (which would create an import cycle: kvpool needs
// node addressing, not the other way around).
type PoolHandle interface {
	Node() NodeID
}

// NodeLocator resolves a vbucket (and optional replica index) to the
// connection pool serving it.
type NodeLocator interface {
	// PoolFor returns the pool for vbucket's primary (replicaIndex == 0) or
	// a specific replica (replicaIndex >= 1). It returns false if that
	// replica does not exist.
	PoolFor(vbucket uint16, replicaIndex int) (PoolHandle, bool)
	// ReplicaCount returns how many replicas vbucket has.
	ReplicaCount(vbucket uint16) int
}

// MapLocator is a NodeLocator backed by an AtomicMap plus a caller-supplied
// lookup from NodeID to pool.
type MapLocator struct {
	atlas    *AtomicMap
	poolFor  func(NodeID) (PoolHandle, bool)
}

// NewMapLocator builds a MapLocator. poolLookup resolves a node address to
// its live connection pool.
func NewMapLocator(atlas *AtomicMap, poolLookup func(NodeID) (PoolHandle, bool)) *MapLocator {
	return &MapLocator{atlas: atlas, poolFor: poolLookup}
}

// PoolFor implements NodeLocator.
func (l *MapLocator) PoolFor(vbucket uint16, replicaIndex int) (PoolHandle, bool) {
	m := l.atlas.Load()
	a, err := m.Assignment(vbucket)
	if err != nil {
		return nil, false
	}
	if replicaIndex == 0 {
		return l.poolFor(a.Primary)
	}
	idx := replicaIndex - 1
	if idx < 0 || idx >= len(a.Replicas) {
		return nil, false
	}
	return l.poolFor(a.Replicas[idx])
}

// ReplicaCount implements NodeLocator.
func (l *MapLocator) ReplicaCount(vbucket uint16) int {
	m := l.atlas.Load()
	a, err := m.Assignment(vbucket)
	if err != nil {
		return 0
	}
	return len(a.Replicas)
}
