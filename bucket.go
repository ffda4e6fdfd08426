package cbkv

import (
	"context"
	"time"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

// Bucket is a named KV namespace within a Cluster. Operations go through a
// Collection; DefaultCollection gives callers immediate access to the
// bucket's default scope/collection without naming one explicitly.
type Bucket struct {
	cluster *Cluster
	name    string
}

// Name returns the bucket's name.
func (b *Bucket) Name() string { return b.name }

// Cluster returns the Cluster this bucket was opened from, for callers
// that need cluster-level diagnostics (e.g. PoolStats) alongside a bucket
// handle.
func (b *Bucket) Cluster() *Cluster { return b.cluster }

// Scope opens a named scope within the bucket.
func (b *Bucket) Scope(name string) *Scope {
	return &Scope{bucket: b, name: name}
}

// DefaultCollection opens the bucket's default scope's default collection.
func (b *Bucket) DefaultCollection() *Collection {
	return b.Scope("_default").Collection("_default")
}

// Send is the legacy low-level entry point predating the Collection API:
// it dispatches operation against the bucket's default collection, routed
// and cid-resolved the same way collection.<op> methods are, and reports
// the outcome to completion on its own goroutine rather than blocking the
// caller. New code should call a Collection method directly; Send remains
// for callers already holding a raw memd.Request.
func (b *Bucket) Send(ctx context.Context, operation memd.Request, key string, timeout time.Duration, completion func(memd.Response, error)) {
	go func() {
		resp, err := b.DefaultCollection().dispatch(ctx, operation, key, timeout)
		completion(resp, err)
	}()
}

// Scope is a named grouping of collections within a Bucket.
type Scope struct {
	bucket *Bucket
	name   string
}

// Name returns the scope's name.
func (s *Scope) Name() string { return s.name }

// Collection opens a named collection within the scope.
func (s *Scope) Collection(name string) *Collection {
	return &Collection{
		bucket:     s.bucket,
		scope:      s.name,
		collection: name,
	}
}
