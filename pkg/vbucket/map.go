// Package vbucket implements the key-mapper collaborator: hashing document
// keys to vBucket indices and resolving the primary/replica nodes that own
// each vBucket, against an immutable, atomically-replaceable cluster map.
package vbucket

import (
	"fmt"
	"hash/crc32"
	"sync/atomic"
)

// NumVBuckets is the conventional Couchbase vBucket count.
const NumVBuckets = 1024

// NodeID identifies one cluster node/service endpoint by its KV address
// (host:port).
type NodeID string

// Assignment is the resolved owner set for one vBucket: the primary node
// and zero or more replicas.
type Assignment struct {
	VBucket  uint16
	Primary  NodeID
	Replicas []NodeID
}

// HasReplicas reports whether this vBucket has at least one replica.
func (a Assignment) HasReplicas() bool { return len(a.Replicas) > 0 }

// Map is one immutable revision of the cluster's vBucket table. A new
// configuration produces a new Map value; callers swap it in atomically via
// AtomicMap rather than mutating one in place.
type Map struct {
	revision    uint64
	assignments []Assignment // indexed by vbucket id
}

// NewMap builds a Map from a caller-provided assignment list, which must
// contain exactly NumVBuckets entries indexed by VBucket.
func NewMap(revision uint64, assignments []Assignment) (*Map, error) {
	if len(assignments) != NumVBuckets {
		return nil, fmt.Errorf("vbucket: expected %d assignments, got %d", NumVBuckets, len(assignments))
	}
	ordered := make([]Assignment, NumVBuckets)
	for _, a := range assignments {
		if int(a.VBucket) >= NumVBuckets {
			return nil, fmt.Errorf("vbucket: assignment vbucket %d out of range", a.VBucket)
		}
		ordered[a.VBucket] = a
	}
	return &Map{revision: revision, assignments: ordered}, nil
}

// Revision returns the configuration revision this Map was built from.
func (m *Map) Revision() uint64 { return m.revision }

// VBucketForKey hashes key (per the protocol's CRC32 sharding function) to
// a vBucket index.
func VBucketForKey(key string) uint16 {
	return uint16((crc32.ChecksumIEEE([]byte(key)) >> 16) % NumVBuckets)
}

// Assignment returns the owner set for vbucket.
func (m *Map) Assignment(vbucket uint16) (Assignment, error) {
	if int(vbucket) >= len(m.assignments) {
		return Assignment{}, fmt.Errorf("vbucket: index %d out of range", vbucket)
	}
	return m.assignments[vbucket], nil
}

// AssignmentForKey hashes key and returns its owner set in one step.
func (m *Map) AssignmentForKey(key string) Assignment {
	vb := VBucketForKey(key)
	a, _ := m.Assignment(vb) // vb is always in range by construction
	return a
}

// AtomicMap holds the current Map revision and supports lock-free,
// atomic swap-in of a new revision — the "pool freeze" style discipline
// applied to configuration rather than connections: readers never observe
// a partially-updated map.
type AtomicMap struct {
	v atomic.Pointer[Map]
}

// NewAtomicMap wraps an initial Map.
func NewAtomicMap(initial *Map) *AtomicMap {
	a := &AtomicMap{}
	a.v.Store(initial)
	return a
}

// Load returns the current Map revision.
func (a *AtomicMap) Load() *Map { return a.v.Load() }

// Replace atomically swaps in a new Map revision, returning the previous
// one.
func (a *AtomicMap) Replace(next *Map) *Map {
	return a.v.Swap(next)
}
