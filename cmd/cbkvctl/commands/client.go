package commands

import (
	"context"
	"fmt"

	cbkv "github.com/cbkv-io/cbkv-go"
	"github.com/cbkv-io/cbkv-go/internal/logger"
	"github.com/cbkv-io/cbkv-go/pkg/config"
)

// openBucket loads configuration (global flags override file/env/defaults),
// connects a Cluster against the bootstrap node list using a
// StaticMapFetcher, and returns the requested bucket plus a func to
// dispose the cluster's connection pools.
//
// A StaticMapFetcher stands in for the real cluster-map collaborator here:
// cbkvctl talks to a fixed bootstrap list rather than following node
// rebalances, which is enough for poking at a cluster by hand.
func openBucket(ctx context.Context) (*cbkv.Bucket, func(), error) {
	cfg, err := config.Load(Flags.ConfigPath, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if len(Flags.Nodes) > 0 {
		cfg.Cluster.Nodes = Flags.Nodes
	}
	if Flags.Username != "" {
		cfg.Cluster.Username = Flags.Username
	}
	if Flags.Password != "" {
		cfg.Cluster.Password = Flags.Password
	}
	if len(cfg.Cluster.Nodes) == 0 {
		return nil, nil, fmt.Errorf("no bootstrap nodes configured; pass --nodes or set cluster.nodes in a --config file")
	}

	if Flags.Verbose {
		logger.SetLevel("DEBUG")
	}

	cluster, err := cbkv.Connect(ctx, cfg.Cluster, nil, cbkv.NewStaticMapFetcher(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}

	bucket := cluster.Bucket(Flags.Bucket)
	return bucket, cluster.Close, nil
}
