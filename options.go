package cbkv

import (
	"time"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// OpResult carries the protocol-level outcome metadata (CAS, datatype) of
// one completed call; document or response bytes are not part of it.
type OpResult struct {
	Cas      uint64
	Datatype uint8
}

// GetOptions configures a Get call.
type GetOptions struct {
	Timeout time.Duration
	// Project restricts the fetch to these document paths via sub-doc
	// lookup-in, falling back to a whole-document fetch when the
	// projection would need more paths than a single sub-doc request can
	// carry.
	Project []string
	// WithExpiry additionally fetches the document's expiry time,
	// counting as one more projected path against the sub-doc limit.
	WithExpiry bool
}

// projectedPathCount is len(Project) plus one if WithExpiry is set — the
// quantity compared against the sub-doc spec ceiling to decide whether a
// projection can still be served as a lookup-in versus needing a
// whole-document fetch.
func (o GetOptions) projectedPathCount() int {
	n := len(o.Project)
	if o.WithExpiry {
		n++
	}
	return n
}

// UpsertOptions configures an Upsert/Insert/Replace call.
type UpsertOptions struct {
	Timeout    time.Duration
	Expiry     time.Duration
	Durability memd.DurabilityLevel
	Cas        uint64
}

// RemoveOptions configures a Remove call.
type RemoveOptions struct {
	Timeout    time.Duration
	Durability memd.DurabilityLevel
	Cas        uint64
}

// CounterOptions configures Increment/Decrement calls.
type CounterOptions struct {
	Timeout time.Duration
	Delta   uint64
	Initial uint64
	Expiry  time.Duration
}

// GetAndLockOptions configures a GetAndLock call.
type GetAndLockOptions struct {
	Timeout  time.Duration
	LockTime time.Duration
}

// LookupInOptions configures a sub-document LookupIn call.
type LookupInOptions struct {
	Timeout time.Duration
}

// MutateInOptions configures a sub-document MutateIn call.
type MutateInOptions struct {
	Timeout    time.Duration
	Durability memd.DurabilityLevel
	Cas        uint64
	Expiry     time.Duration
}

// ReplicaOptions configures GetAnyReplica/GetAllReplicas.
type ReplicaOptions struct {
	Timeout time.Duration
}
