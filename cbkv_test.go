package cbkv

import (
	"context"

	"github.com/cbkv-io/cbkv-go/pkg/config"
	"github.com/cbkv-io/cbkv-go/pkg/memd"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// fakePool is a submitter/vbucket.PoolHandle stand-in that answers requests
// from a caller-supplied handler instead of a real connection. It lets the
// dispatcher tests exercise cid resolution, routing, and status translation
// without a wire-level server.
type fakePool struct {
	node    vbucket.NodeID
	handler func(req memd.Request) (memd.Response, error)
}

func (p *fakePool) Node() vbucket.NodeID { return p.node }

func (p *fakePool) Submit(ctx context.Context, req memd.Request) (memd.Response, error) {
	return p.handler(req)
}

// constFakePool always returns resp, regardless of the request.
func constFakePool(node vbucket.NodeID, resp memd.Response) *fakePool {
	return &fakePool{node: node, handler: func(memd.Request) (memd.Response, error) {
		return resp, nil
	}}
}

// newTestLocator builds a single-revision vbucket map where every vbucket is
// owned by primary with the given replicas, and wires pools into a
// MapLocator via a plain node->pool table.
func newTestLocator(pools map[vbucket.NodeID]*fakePool, primary vbucket.NodeID, replicas []vbucket.NodeID) *vbucket.MapLocator {
	assignments := make([]vbucket.Assignment, vbucket.NumVBuckets)
	for i := range assignments {
		assignments[i] = vbucket.Assignment{
			VBucket:  uint16(i),
			Primary:  primary,
			Replicas: replicas,
		}
	}
	m, err := vbucket.NewMap(1, assignments)
	if err != nil {
		panic(err)
	}
	atlas := vbucket.NewAtomicMap(m)
	return vbucket.NewMapLocator(atlas, func(id vbucket.NodeID) (vbucket.PoolHandle, bool) {
		p, ok := pools[id]
		if !ok {
			return nil, false
		}
		return p, true
	})
}

// testCollection builds a Collection addressed at the default collection,
// backed by a Cluster whose locator routes every vbucket to a single fake
// pool driven by handler.
func testCollection(handler func(req memd.Request) (memd.Response, error)) *Collection {
	return testCollectionNamed("_default", "_default", handler)
}

func testCollectionNamed(scope, coll string, handler func(req memd.Request) (memd.Response, error)) *Collection {
	pool := &fakePool{node: "n0", handler: handler}
	locator := newTestLocator(map[vbucket.NodeID]*fakePool{"n0": pool}, "n0", nil)
	cluster := &Cluster{
		cfg:     config.ClusterConfig{DefaultOperationTimeout: 0},
		locator: locator,
	}
	bucket := &Bucket{cluster: cluster, name: "test"}
	return &Collection{bucket: bucket, scope: scope, collection: coll}
}

// testCollectionWithReplicas builds a Collection whose vbucket map has
// replicaCount replicas in addition to the primary, each backed by its own
// fake pool so tests can script primary/replica behavior independently.
// primaryHandler/replicaHandlers are indexed 0..replicaCount-1.
func testCollectionWithReplicas(primaryHandler func(req memd.Request) (memd.Response, error), replicaHandlers ...func(req memd.Request) (memd.Response, error)) *Collection {
	pools := map[vbucket.NodeID]*fakePool{
		"n0": {node: "n0", handler: primaryHandler},
	}
	replicas := make([]vbucket.NodeID, len(replicaHandlers))
	for i, h := range replicaHandlers {
		id := vbucket.NodeID("r" + string(rune('0'+i)))
		replicas[i] = id
		pools[id] = &fakePool{node: id, handler: h}
	}
	locator := newTestLocator(pools, "n0", replicas)
	cluster := &Cluster{
		cfg:     config.ClusterConfig{DefaultOperationTimeout: 0},
		locator: locator,
	}
	bucket := &Bucket{cluster: cluster, name: "test"}
	return &Collection{bucket: bucket, scope: "_default", collection: "_default"}
}

func successResponse(cas uint64, value []byte) memd.Response {
	return memd.Response{
		Header: memd.Header{Status: memd.StatusSuccess, Cas: cas},
		Value:  value,
	}
}

func statusResponse(status memd.StatusCode) memd.Response {
	return memd.Response{Header: memd.Header{Status: status}}
}
