package cbkv

import (
	"context"
	"fmt"

	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// StaticMapFetcher builds a single-revision vBucket map directly from the
// bootstrap node list, assigning vbuckets round-robin across nodes with an
// optional fixed replica count. It stands in for the real cluster-map
// collaborator (HTTP config streaming, explicitly out of scope here) so
// Connect has something to call when no smarter fetcher is wired in, e.g.
// from cbkvctl or a single-node test cluster.
type StaticMapFetcher struct {
	// ReplicaCount is how many of the nodes following a vbucket's primary
	// (in round-robin order) are assigned as its replicas, clamped to
	// len(bootstrapNodes)-1.
	ReplicaCount int
}

// NewStaticMapFetcher returns a StaticMapFetcher with no replicas.
func NewStaticMapFetcher() *StaticMapFetcher {
	return &StaticMapFetcher{}
}

// FetchMap implements ClusterMapFetcher.
func (f *StaticMapFetcher) FetchMap(ctx context.Context, bootstrapNodes []string) (*vbucket.Map, map[vbucket.NodeID]string, error) {
	if len(bootstrapNodes) == 0 {
		return nil, nil, fmt.Errorf("cbkv: no bootstrap nodes configured")
	}

	nodeAddrs := make(map[vbucket.NodeID]string, len(bootstrapNodes))
	nodes := make([]vbucket.NodeID, len(bootstrapNodes))
	for i, addr := range bootstrapNodes {
		id := vbucket.NodeID(addr)
		nodes[i] = id
		nodeAddrs[id] = addr
	}

	replicas := f.ReplicaCount
	if replicas > len(nodes)-1 {
		replicas = len(nodes) - 1
	}
	if replicas < 0 {
		replicas = 0
	}

	assignments := make([]vbucket.Assignment, vbucket.NumVBuckets)
	for vb := 0; vb < vbucket.NumVBuckets; vb++ {
		primary := nodes[vb%len(nodes)]
		var reps []vbucket.NodeID
		for r := 1; r <= replicas; r++ {
			reps = append(reps, nodes[(vb+r)%len(nodes)])
		}
		assignments[vb] = vbucket.Assignment{VBucket: uint16(vb), Primary: primary, Replicas: reps}
	}

	m, err := vbucket.NewMap(1, assignments)
	if err != nil {
		return nil, nil, err
	}
	return m, nodeAddrs, nil
}
