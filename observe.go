package cbkv

import (
	"context"
	"time"

	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// observeExists reports whether key exists using OpObserve rather than a
// full Get: statuses NotFound and LogicalDeleted are a plain negative
// result, not an error, and a KeyNotFound at the frame level (cid
// resolution failed to find the document's owning vbucket state) is
// likewise converted to a negative result rather than propagated.
func (c *Collection) observeExists(ctx context.Context, key string, timeout time.Duration) (bool, uint64, error) {
	cid, err := c.resolveCID(ctx)
	if err != nil {
		return false, 0, err
	}

	vb := vbucket.VBucketForKey(key)
	req := memd.Request{
		OpCode: memd.OpObserve,
		Cid:    cid,
		Value:  memd.ObserveValue(vb, key),
	}

	resp, err := c.submit(ctx, req, key, timeout)
	if err != nil {
		if kverrors.Kind(err) == kverrors.KindKeyNotFound {
			return false, 0, nil
		}
		return false, 0, err
	}
	if !resp.IsSuccess() {
		if resp.Status == memd.StatusKeyNotFound {
			return false, 0, nil
		}
		return false, 0, kverrors.FromStatus(memd.OpObserve, key, resp.Status)
	}

	results, err := memd.DecodeObserveResponse(resp.Value)
	if err != nil {
		return false, 0, kverrors.NewClient(memd.OpObserve, key, err)
	}
	if len(results) == 0 {
		return false, 0, nil
	}
	r := results[0]
	return r.Status.Exists(), r.Cas, nil
}
