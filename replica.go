package cbkv

import (
	"context"
	"fmt"
	"time"

	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// ReplicaResult is one read of a document, tagged with which node served
// it (0 = primary, 1+ = replica index).
type ReplicaResult struct {
	ReplicaIndex int
	GetResult
}

// GetAnyReplica issues a Get against the primary and every replica of
// key's vbucket in parallel and returns whichever completes successfully
// first, cancelling the rest. With no replicas it races the primary
// against an empty replica set and simply returns as soon as the primary
// completes.
func (c *Collection) GetAnyReplica(ctx context.Context, key string, opts ReplicaOptions) (ReplicaResult, error) {
	cid, err := c.resolveCID(ctx)
	if err != nil {
		return ReplicaResult{}, err
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	vb := vbucket.VBucketForKey(key)
	replicaCount := c.bucket.cluster.Locator().ReplicaCount(vb)

	type outcome struct {
		res ReplicaResult
		err error
	}
	results := make(chan outcome, replicaCount+1)

	issue := func(replicaIndex int) {
		res, err := c.getFromReplica(raceCtx, key, cid, replicaIndex, opts.Timeout)
		results <- outcome{res: ReplicaResult{ReplicaIndex: replicaIndex, GetResult: res}, err: err}
	}

	go issue(0)
	for i := 1; i <= replicaCount; i++ {
		go issue(i)
	}

	var lastErr error
	for i := 0; i <= replicaCount; i++ {
		o := <-results
		if o.err == nil {
			return o.res, nil
		}
		lastErr = o.err
	}
	if lastErr == nil {
		lastErr = kverrors.NewTransport(memd.OpGet, key, fmt.Errorf("no replicas available"))
	}
	return ReplicaResult{}, lastErr
}

// GetAllReplicas issues a Get against the primary and every replica of
// key's vbucket and returns the successful reads; failed reads are dropped.
// If every read fails, it returns the first error received. A vbucket with
// zero replicas issues the primary read alone.
func (c *Collection) GetAllReplicas(ctx context.Context, key string, opts ReplicaOptions) ([]ReplicaResult, error) {
	cid, err := c.resolveCID(ctx)
	if err != nil {
		return nil, err
	}

	vb := vbucket.VBucketForKey(key)
	replicaCount := c.bucket.cluster.Locator().ReplicaCount(vb)

	type outcome struct {
		res ReplicaResult
		err error
	}
	results := make(chan outcome, replicaCount+1)

	issue := func(replicaIndex int) {
		res, err := c.getFromReplica(ctx, key, cid, replicaIndex, opts.Timeout)
		results <- outcome{res: ReplicaResult{ReplicaIndex: replicaIndex, GetResult: res}, err: err}
	}

	go issue(0)
	for i := 1; i <= replicaCount; i++ {
		go issue(i)
	}

	out := make([]ReplicaResult, 0, replicaCount+1)
	var firstErr error
	for i := 0; i <= replicaCount; i++ {
		o := <-results
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		out = append(out, o.res)
	}
	if len(out) == 0 {
		return nil, firstErr
	}
	return out, nil
}

func (c *Collection) getFromReplica(ctx context.Context, key string, cid *uint32, replicaIndex int, timeout time.Duration) (GetResult, error) {
	vb := vbucket.VBucketForKey(key)

	ctx, cancel := c.withTimeout(ctx, timeout)
	defer cancel()

	handle, ok := c.bucket.cluster.Locator().PoolFor(vb, replicaIndex)
	if !ok {
		return GetResult{}, kverrors.NewTransport(memd.OpGet, key, fmt.Errorf("no pool for vbucket %d replica %d", vb, replicaIndex))
	}
	pool, ok := handle.(submitter)
	if !ok {
		return GetResult{}, kverrors.NewTransport(memd.OpGet, key, fmt.Errorf("pool handle cannot submit"))
	}

	req := memd.Request{OpCode: memd.OpGet, Cid: cid, Key: key, VBucket: vb}
	resp, err := pool.Submit(ctx, req)
	if err != nil {
		return GetResult{}, err
	}
	if !resp.IsSuccess() {
		return GetResult{}, kverrors.FromStatus(memd.OpGet, key, resp.Status)
	}

	value, err := resp.GetValue()
	if err != nil {
		return GetResult{}, kverrors.NewClient(memd.OpGet, key, err)
	}
	return GetResult{Cas: resp.Cas, raw: value, tc: c.transcoderOrDefault()}, nil
}
