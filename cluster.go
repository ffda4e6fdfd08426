// Package cbkv is a client-side key/value engine for a Couchbase-style
// cluster: it multiplexes document operations over a pool of long-lived
// connections per node, routes each operation to the right node by
// vBucket, and translates wire status codes into a small typed error
// taxonomy.
package cbkv

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbkv-io/cbkv-go/internal/kvconn"
	"github.com/cbkv-io/cbkv-go/internal/kvpool"
	"github.com/cbkv-io/cbkv-go/internal/logger"
	"github.com/cbkv-io/cbkv-go/pkg/config"
	"github.com/cbkv-io/cbkv-go/pkg/vbucket"
)

// ClusterMapFetcher retrieves the current vBucket map from the cluster.
// Production code hits a node's config-streaming or REST endpoint; tests
// substitute a fixed map.
type ClusterMapFetcher interface {
	FetchMap(ctx context.Context, bootstrapNodes []string) (*vbucket.Map, map[vbucket.NodeID]string, error)
}

// Cluster owns one connection pool per cluster node and the current
// vBucket map, and is the entry point for opening Buckets.
type Cluster struct {
	cfg     config.ClusterConfig
	factory kvconn.Factory
	fetcher ClusterMapFetcher
	metrics kvpool.PoolMetrics

	mu       sync.RWMutex
	pools    map[vbucket.NodeID]*kvpool.ConnectionPool
	nodeAddr map[vbucket.NodeID]string
	atlas    *vbucket.AtomicMap
	locator  *vbucket.MapLocator
}

// Connect bootstraps a Cluster: it fetches the initial vBucket map via
// fetcher and establishes a connection pool to every node the map names.
func Connect(ctx context.Context, cfg config.ClusterConfig, factory kvconn.Factory, fetcher ClusterMapFetcher, metrics kvpool.PoolMetrics) (*Cluster, error) {
	if factory == nil {
		factory = &kvconn.DialerFactory{}
	}

	m, nodeAddrs, err := fetcher.FetchMap(ctx, cfg.Nodes)
	if err != nil {
		return nil, fmt.Errorf("cbkv: fetch cluster map: %w", err)
	}

	c := &Cluster{
		cfg:      cfg,
		factory:  factory,
		fetcher:  fetcher,
		metrics:  metrics,
		pools:    make(map[vbucket.NodeID]*kvpool.ConnectionPool),
		nodeAddr: nodeAddrs,
		atlas:    vbucket.NewAtomicMap(m),
	}
	c.locator = vbucket.NewMapLocator(c.atlas, c.poolHandleFor)

	for node, addr := range nodeAddrs {
		c.ensurePool(node, addr)
	}

	return c, nil
}

func (c *Cluster) poolHandleFor(node vbucket.NodeID) (vbucket.PoolHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[node]
	if !ok {
		return nil, false
	}
	return p, true
}

func (c *Cluster) ensurePool(node vbucket.NodeID, addr string) *kvpool.ConnectionPool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pools[node]; ok {
		return p
	}

	init := kvconn.ChainInitializer{
		kvconn.PlainAuthInitializer{Username: c.cfg.Username, Password: c.cfg.Password},
	}
	poolCfg := kvpool.Config{
		MinSize:           c.cfg.NumKVConnections,
		MaxSize:           c.cfg.MaxKVConnections,
		ConnectTimeout:    c.cfg.KVConnectTimeout,
		SendQueueCapacity: c.cfg.SendQueueCapacity,
	}
	p := kvpool.New(node, addr, c.factory, init, poolCfg, c.metrics)
	c.pools[node] = p
	logger.Info("cbkv: connection pool established", "node", addr)
	return p
}

// ReplaceMap atomically swaps in a newer vBucket map revision, e.g. after
// observing a NotMyVBucket response. Pools for nodes not yet seen are
// created; pools for nodes no longer present are left running (they will
// simply stop being addressed) rather than torn down mid-flight. Every
// existing pool is frozen for the duration of the swap so a racing
// recovery pass can't observe the connection set half-updated against the
// map that routes to it.
func (c *Cluster) ReplaceMap(m *vbucket.Map, nodeAddrs map[vbucket.NodeID]string) {
	c.mu.Lock()
	for node, addr := range nodeAddrs {
		if _, ok := c.nodeAddr[node]; !ok {
			c.nodeAddr[node] = addr
		}
	}
	c.mu.Unlock()

	for node, addr := range nodeAddrs {
		c.ensurePool(node, addr)
	}

	c.mu.RLock()
	releases := make([]func(), 0, len(c.pools))
	for _, p := range c.pools {
		releases = append(releases, p.Freeze())
	}
	c.mu.RUnlock()

	c.atlas.Replace(m)

	for _, release := range releases {
		release()
	}
}

// refreshMap re-fetches the cluster map from the bootstrap node list via
// the ClusterMapFetcher supplied at Connect time and swaps it in. Called by
// the dispatcher when a status indicates the current map is stale
// (StatusNotMyVBucket), before retrying the request once.
func (c *Cluster) refreshMap(ctx context.Context) error {
	m, nodeAddrs, err := c.fetcher.FetchMap(ctx, c.cfg.Nodes)
	if err != nil {
		return fmt.Errorf("cbkv: refresh cluster map: %w", err)
	}
	c.ReplaceMap(m, nodeAddrs)
	return nil
}

// FreezePool atomically quiesces node's connection pool for reconfiguration,
// per the pool.freeze() collaborator contract: the returned release func
// restores normal operation. Bucket/Collection callers reach this through
// Bucket.Cluster().
func (c *Cluster) FreezePool(node vbucket.NodeID) (func(), bool) {
	c.mu.RLock()
	p, ok := c.pools[node]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return p.Freeze(), true
}

// Locator exposes the cluster's NodeLocator for dispatch.
func (c *Cluster) Locator() vbucket.NodeLocator { return c.locator }

// NodeStats is a snapshot of one node's connection pool, for operator
// diagnostics (cbkvctl pool-stats).
type NodeStats struct {
	Node            vbucket.NodeID
	Addr            string
	LiveConnections int
}

// PoolStats returns a snapshot of every node pool's live connection count.
func (c *Cluster) PoolStats() []NodeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]NodeStats, 0, len(c.pools))
	for node, p := range c.pools {
		stats = append(stats, NodeStats{
			Node:            node,
			Addr:            c.nodeAddr[node],
			LiveConnections: p.LiveCount(),
		})
	}
	return stats
}

// Bucket opens a handle to name. cbkv does not model per-bucket
// authentication scoping beyond the cluster-wide credentials supplied at
// Connect time, matching how a single KV connection's SASL session
// already grants bucket access.
func (c *Cluster) Bucket(name string) *Bucket {
	return &Bucket{cluster: c, name: name}
}

// Close disposes every node connection pool.
func (c *Cluster) Close() {
	c.mu.Lock()
	pools := make([]*kvpool.ConnectionPool, 0, len(c.pools))
	for _, p := range c.pools {
		pools = append(pools, p)
	}
	c.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
