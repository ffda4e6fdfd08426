package cbkv

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbkv-io/cbkv-go/internal/logger"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
	"github.com/cbkv-io/cbkv-go/pkg/transcoder"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// maxSubDocProjectPaths is the sub-document wire limit: a lookup-in or
// mutate-in envelope carries at most memd.MaxSubDocSpecs specs, so a
// projected Get asking for more paths than that (including the synthetic
// expiry spec) must fall back to a whole-document fetch instead.
const maxSubDocProjectPaths = memd.MaxSubDocSpecs

// submitter is the subset of kvpool.ConnectionPool that dispatch needs.
// Declared locally (rather than imported) so this package depends only on
// vbucket.PoolHandle's narrower interface at the type level.
type submitter interface {
	Submit(ctx context.Context, req memd.Request) (memd.Response, error)
}

// Collection is the unit operations are addressed to: a bucket/scope/
// collection triple, routed by document key via the cluster's vBucket map.
type Collection struct {
	bucket     *Bucket
	scope      string
	collection string

	// cid caches the resolved collection id. A nil *uint32 value means
	// "not yet resolved" (distinct from the default collection, which
	// short-circuits resolveCID entirely and never touches this field).
	// resolveMu serializes concurrent first-resolution/re-resolution so a
	// cache miss doesn't fan out into one GetCidByName per caller.
	cid       atomic.Pointer[uint32]
	resolveMu sync.Mutex

	// Transcoder overrides the default JSON transcoder used to encode and
	// decode document values. Nil means transcoder.JSONTranscoder{}.
	Transcoder transcoder.Transcoder
}

func (c *Collection) transcoderOrDefault() transcoder.Transcoder {
	if c.Transcoder != nil {
		return c.Transcoder
	}
	return transcoder.JSONTranscoder{}
}

func (c *Collection) isDefault() bool {
	return c.scope == "_default" && c.collection == "_default"
}

// resolveCID returns the collection id to frame requests with, issuing (and
// caching) a GetCidByName lookup on first use or after invalidateCID. The
// default collection never needs a cid prefix.
func (c *Collection) resolveCID(ctx context.Context) (*uint32, error) {
	if c.isDefault() {
		return nil, nil
	}

	if cid := c.cid.Load(); cid != nil {
		return cid, nil
	}

	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()
	if cid := c.cid.Load(); cid != nil {
		return cid, nil
	}

	name := c.scope + "." + c.collection
	req := memd.Request{OpCode: memd.OpGetCidByName, Key: name}

	resp, err := c.submit(ctx, req, name, 0)
	if err != nil {
		return nil, err
	}

	cid, err := resp.CollectionID()
	if err != nil {
		return nil, kverrors.NewClient(memd.OpGetCidByName, name, err)
	}
	c.cid.Store(&cid)
	return &cid, nil
}

// invalidateCID drops the cached collection id, forcing the next
// resolveCID call to reissue GetCidByName. Called from dispatch when a
// response indicates the cid mapping has gone stale.
func (c *Collection) invalidateCID() {
	c.cid.Store(nil)
}

// withTimeout applies override if positive, else the cluster's default
// operation timeout, unless ctx already carries its own deadline.
func (c *Collection) withTimeout(ctx context.Context, override time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return context.WithCancel(ctx)
	}
	d := c.bucket.cluster.cfg.DefaultOperationTimeout
	if override > 0 {
		d = override
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// submit routes req by key's vbucket and submits it to that node's pool,
// without cid resolution/prefixing or status translation. Used directly by
// resolveCID (which is itself resolving the cid) and wrapped by dispatch
// for everything else.
func (c *Collection) submit(ctx context.Context, req memd.Request, routingKey string, timeout time.Duration) (memd.Response, error) {
	ctx, cancel := c.withTimeout(ctx, timeout)
	defer cancel()

	vb := vbucket.VBucketForKey(routingKey)
	req.VBucket = vb

	cluster := c.bucket.cluster
	handle, ok := cluster.Locator().PoolFor(vb, 0)
	if !ok {
		return memd.Response{}, kverrors.NewTransport(req.OpCode, routingKey, fmt.Errorf("no connection pool for vbucket %d", vb))
	}
	pool, ok := handle.(submitter)
	if !ok {
		return memd.Response{}, kverrors.NewTransport(req.OpCode, routingKey, fmt.Errorf("pool handle for vbucket %d cannot submit", vb))
	}
	return pool.Submit(ctx, req)
}

// dispatch resolves the collection id, prefixes key, routes by vbucket,
// submits req, and translates a non-success status into a *kverrors.KVError.
// A stale-map or stale-cid status triggers the matching refresh hook and one
// transparent retry before surfacing to the caller.
func (c *Collection) dispatch(ctx context.Context, req memd.Request, key string, timeout time.Duration) (memd.Response, error) {
	return c.dispatchAttempt(ctx, req, key, timeout, true)
}

func (c *Collection) dispatchAttempt(ctx context.Context, req memd.Request, key string, timeout time.Duration, allowRetry bool) (memd.Response, error) {
	cid, err := c.resolveCID(ctx)
	if err != nil {
		return memd.Response{}, err
	}
	req.Cid = cid
	req.Key = key

	resp, err := c.submit(ctx, req, key, timeout)
	if err != nil {
		return memd.Response{}, err
	}
	if !resp.IsSuccess() {
		switch {
		case allowRetry && kverrors.RequiresConfigRefresh(resp.Status):
			logger.Warn("cbkv: operation observed NotMyVBucket, refreshing cluster map", "opcode", req.OpCode, "vbucket", vbucket.VBucketForKey(key))
			if rerr := c.bucket.cluster.refreshMap(ctx); rerr != nil {
				logger.Warn("cbkv: cluster map refresh failed", "error", rerr)
				return resp, kverrors.FromStatus(req.OpCode, key, resp.Status)
			}
			return c.dispatchAttempt(ctx, req, key, timeout, false)
		case allowRetry && kverrors.RequiresCidRefresh(resp.Status):
			logger.Warn("cbkv: operation observed stale collection id, re-resolving", "opcode", req.OpCode, "scope", c.scope, "collection", c.collection)
			c.invalidateCID()
			return c.dispatchAttempt(ctx, req, key, timeout, false)
		default:
			return resp, kverrors.FromStatus(req.OpCode, key, resp.Status)
		}
	}
	return resp, nil
}

// GetResult is the outcome of a successful Get.
type GetResult struct {
	Cas       uint64
	Flags     uint32
	raw       []byte
	projected map[string]any
	tc        transcoder.Transcoder
}

// Content decodes the fetched value into out.
func (r GetResult) Content(out any) error {
	if r.projected != nil {
		data, err := json.Marshal(r.projected)
		if err != nil {
			return fmt.Errorf("cbkv: marshal projected result: %w", err)
		}
		return json.Unmarshal(data, out)
	}
	return r.tc.Decode(r.raw, r.Flags, 0, out)
}

// Get fetches a document. When opts.Project names paths (with or without
// WithExpiry), Get issues a sub-document lookup-in instead of a
// whole-document fetch, unless the projection would need more sub-doc
// specs than the protocol allows, in which case it transparently falls
// back to a whole-document Get.
func (c *Collection) Get(ctx context.Context, key string, opts GetOptions) (GetResult, error) {
	if len(opts.Project) > 0 && opts.projectedPathCount() <= maxSubDocProjectPaths {
		return c.getProjected(ctx, key, opts)
	}

	resp, err := c.dispatch(ctx, memd.Request{OpCode: memd.OpGet}, key, opts.Timeout)
	if err != nil {
		return GetResult{}, err
	}
	value, err := resp.GetValue()
	if err != nil {
		return GetResult{}, kverrors.NewClient(memd.OpGet, key, err)
	}
	var flags uint32
	if len(resp.Extras) >= 4 {
		flags = binary.BigEndian.Uint32(resp.Extras[:4])
	}
	return GetResult{Cas: resp.Cas, Flags: flags, raw: value, tc: c.transcoderOrDefault()}, nil
}

func (c *Collection) getProjected(ctx context.Context, key string, opts GetOptions) (GetResult, error) {
	specs := make([]memd.OperationSpec, 0, len(opts.Project)+1)
	for _, path := range opts.Project {
		specs = append(specs, memd.OperationSpec{OpCode: memd.OpSubGet, Path: path})
	}
	if opts.WithExpiry {
		specs = append(specs, memd.DocumentExptimeSpec())
	}

	results, cas, err := c.lookupIn(ctx, key, specs, opts.Timeout)
	if err != nil {
		return GetResult{}, err
	}

	projected := make(map[string]any, len(opts.Project))
	for i, path := range opts.Project {
		if i >= len(results) || results[i].Status != memd.StatusSuccess {
			continue
		}
		var v any
		if err := json.Unmarshal(results[i].Value, &v); err != nil {
			projected[path] = string(results[i].Value)
			continue
		}
		projected[path] = v
	}
	return GetResult{Cas: cas, projected: projected, tc: c.transcoderOrDefault()}, nil
}

// LookupIn issues a sub-document multi-lookup and returns one result per
// spec, in order.
func (c *Collection) LookupIn(ctx context.Context, key string, specs []memd.OperationSpec, opts LookupInOptions) ([]memd.SpecResult, uint64, error) {
	return c.lookupIn(ctx, key, specs, opts.Timeout)
}

func (c *Collection) lookupIn(ctx context.Context, key string, specs []memd.OperationSpec, timeout time.Duration) ([]memd.SpecResult, uint64, error) {
	body, err := memd.EncodeSpecs(specs, false)
	if err != nil {
		return nil, 0, kverrors.NewClient(memd.OpSubMultiLoo, key, err)
	}

	resp, err := c.dispatch(ctx, memd.Request{OpCode: memd.OpSubMultiLoo, Value: body}, key, timeout)
	if err != nil {
		return nil, 0, err
	}

	results, err := memd.DecodeSpecResults(resp.Value)
	if err != nil {
		return nil, 0, kverrors.NewClient(memd.OpSubMultiLoo, key, err)
	}
	return results, resp.Cas, nil
}

// MutateIn issues a sub-document multi-mutation and returns one result per
// spec, in order.
func (c *Collection) MutateIn(ctx context.Context, key string, specs []memd.OperationSpec, opts MutateInOptions) ([]memd.SpecResult, uint64, error) {
	body, err := memd.EncodeSpecs(specs, true)
	if err != nil {
		return nil, 0, kverrors.NewClient(memd.OpSubMultiMut, key, err)
	}

	req := memd.Request{
		OpCode: memd.OpSubMultiMut,
		Value:  body,
		Cas:    opts.Cas,
	}
	if opts.Expiry > 0 {
		req.Extras = memd.TouchExtras(expirySeconds(opts.Expiry))
	}

	resp, err := c.dispatch(ctx, req, key, opts.Timeout)
	if err != nil {
		return nil, 0, err
	}

	results, err := memd.DecodeSpecResults(resp.Value)
	if err != nil {
		return nil, 0, kverrors.NewClient(memd.OpSubMultiMut, key, err)
	}
	return results, resp.Cas, nil
}

// Exists reports whether key exists, without fetching its value, via the
// Observe path rather than a full Get.
func (c *Collection) Exists(ctx context.Context, key string, timeout time.Duration) (bool, uint64, error) {
	return c.observeExists(ctx, key, timeout)
}

// Upsert stores a document unconditionally, creating it if absent.
func (c *Collection) Upsert(ctx context.Context, key string, value any, opts UpsertOptions) (OpResult, error) {
	return c.store(ctx, memd.OpSet, key, value, opts)
}

// Insert stores a document only if it does not already exist.
func (c *Collection) Insert(ctx context.Context, key string, value any, opts UpsertOptions) (OpResult, error) {
	return c.store(ctx, memd.OpAdd, key, value, opts)
}

// Replace stores a document only if it already exists, optionally CAS-guarded.
func (c *Collection) Replace(ctx context.Context, key string, value any, opts UpsertOptions) (OpResult, error) {
	return c.store(ctx, memd.OpReplace, key, value, opts)
}

func (c *Collection) store(ctx context.Context, op memd.OpCode, key string, value any, opts UpsertOptions) (OpResult, error) {
	encoded, flags, _, err := c.transcoderOrDefault().Encode(value)
	if err != nil {
		return OpResult{}, kverrors.NewClient(op, key, err)
	}

	req := memd.Request{
		OpCode: op,
		Value:  encoded,
		Cas:    opts.Cas,
		Extras: memd.SetExtras(flags, expirySeconds(opts.Expiry)),
	}

	resp, err := c.dispatch(ctx, req, key, opts.Timeout)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Cas: resp.Cas, Datatype: resp.DataType}, nil
}

// Remove deletes a document, optionally CAS-guarded.
func (c *Collection) Remove(ctx context.Context, key string, opts RemoveOptions) (OpResult, error) {
	req := memd.Request{OpCode: memd.OpDelete, Cas: opts.Cas}
	resp, err := c.dispatch(ctx, req, key, opts.Timeout)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Cas: resp.Cas}, nil
}

// Touch refreshes a document's expiry without fetching its value.
func (c *Collection) Touch(ctx context.Context, key string, expiry time.Duration, timeout time.Duration) (OpResult, error) {
	req := memd.Request{OpCode: memd.OpTouch, Extras: memd.TouchExtras(expirySeconds(expiry))}
	resp, err := c.dispatch(ctx, req, key, timeout)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Cas: resp.Cas}, nil
}

// GetAndTouch fetches a document and refreshes its expiry in one round trip.
func (c *Collection) GetAndTouch(ctx context.Context, key string, expiry time.Duration, timeout time.Duration) (GetResult, error) {
	req := memd.Request{OpCode: memd.OpGetAndTouch, Extras: memd.TouchExtras(expirySeconds(expiry))}
	resp, err := c.dispatch(ctx, req, key, timeout)
	if err != nil {
		return GetResult{}, err
	}
	value, err := resp.GetValue()
	if err != nil {
		return GetResult{}, kverrors.NewClient(memd.OpGetAndTouch, key, err)
	}
	return GetResult{Cas: resp.Cas, raw: value, tc: c.transcoderOrDefault()}, nil
}

// GetAndLock fetches a document while taking a pessimistic write lock on it.
func (c *Collection) GetAndLock(ctx context.Context, key string, opts GetAndLockOptions) (GetResult, error) {
	req := memd.Request{OpCode: memd.OpGetAndLock, Extras: memd.GetAndLockExtras(uint32(opts.LockTime.Seconds()))}
	resp, err := c.dispatch(ctx, req, key, opts.Timeout)
	if err != nil {
		return GetResult{}, err
	}
	value, err := resp.GetValue()
	if err != nil {
		return GetResult{}, kverrors.NewClient(memd.OpGetAndLock, key, err)
	}
	return GetResult{Cas: resp.Cas, raw: value, tc: c.transcoderOrDefault()}, nil
}

// Unlock releases a lock taken by GetAndLock.
func (c *Collection) Unlock(ctx context.Context, key string, cas uint64, timeout time.Duration) error {
	req := memd.Request{OpCode: memd.OpUnlock, Cas: cas}
	_, err := c.dispatch(ctx, req, key, timeout)
	return err
}

// Increment atomically increments a counter document, creating it with
// opts.Initial if absent.
func (c *Collection) Increment(ctx context.Context, key string, opts CounterOptions) (uint64, OpResult, error) {
	return c.counter(ctx, memd.OpIncrement, key, opts)
}

// Decrement atomically decrements a counter document, creating it with
// opts.Initial if absent.
func (c *Collection) Decrement(ctx context.Context, key string, opts CounterOptions) (uint64, OpResult, error) {
	return c.counter(ctx, memd.OpDecrement, key, opts)
}

func (c *Collection) counter(ctx context.Context, op memd.OpCode, key string, opts CounterOptions) (uint64, OpResult, error) {
	req := memd.Request{
		OpCode: op,
		Extras: memd.CounterExtras(opts.Delta, opts.Initial, expirySeconds(opts.Expiry)),
	}
	resp, err := c.dispatch(ctx, req, key, opts.Timeout)
	if err != nil {
		return 0, OpResult{}, err
	}
	v, err := resp.CounterValue()
	if err != nil {
		return 0, OpResult{}, kverrors.NewClient(op, key, err)
	}
	return v, OpResult{Cas: resp.Cas}, nil
}

// Append appends bytes to an existing document's value.
func (c *Collection) Append(ctx context.Context, key string, value []byte, timeout time.Duration) (OpResult, error) {
	req := memd.Request{OpCode: memd.OpAppend, Value: value}
	resp, err := c.dispatch(ctx, req, key, timeout)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Cas: resp.Cas}, nil
}

// Prepend prepends bytes to an existing document's value.
func (c *Collection) Prepend(ctx context.Context, key string, value []byte, timeout time.Duration) (OpResult, error) {
	req := memd.Request{OpCode: memd.OpPrepend, Value: value}
	resp, err := c.dispatch(ctx, req, key, timeout)
	if err != nil {
		return OpResult{}, err
	}
	return OpResult{Cas: resp.Cas}, nil
}

func expirySeconds(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d.Seconds())
}
