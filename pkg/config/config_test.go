package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Cluster.NumKVConnections != 2 {
		t.Errorf("NumKVConnections = %d, want 2", cfg.Cluster.NumKVConnections)
	}
	if cfg.Cluster.MaxKVConnections != 5 {
		t.Errorf("MaxKVConnections = %d, want 5", cfg.Cluster.MaxKVConnections)
	}
	if cfg.Cluster.SendQueueCapacity != 1024 {
		t.Errorf("SendQueueCapacity = %d, want 1024", cfg.Cluster.SendQueueCapacity)
	}
	if cfg.Cluster.DefaultOperationTimeout != 2500*time.Millisecond {
		t.Errorf("DefaultOperationTimeout = %v, want 2.5s", cfg.Cluster.DefaultOperationTimeout)
	}
	if cfg.Cluster.DurabilityTimeout != 1500*time.Millisecond {
		t.Errorf("DurabilityTimeout = %v, want 1.5s", cfg.Cluster.DurabilityTimeout)
	}
}

func TestApplyDefaultsRaisesMaxToNumWhenLower(t *testing.T) {
	cfg := &Config{Cluster: ClusterConfig{NumKVConnections: 4, MaxKVConnections: 2}}
	ApplyDefaults(cfg)

	if cfg.Cluster.MaxKVConnections != 4 {
		t.Errorf("MaxKVConnections = %d, want raised to 4", cfg.Cluster.MaxKVConnections)
	}
}

func TestValidateRejectsMissingNodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Nodes = nil

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty node list")
	}
}

func TestValidateAcceptsDefaultConfigPlusNodes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Nodes = []string{"127.0.0.1:11210"}

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cbkv.yaml")
	contents := `
cluster:
  nodes:
    - "node1:11210"
  num_kv_connections: 3
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Cluster.Nodes) != 1 || cfg.Cluster.Nodes[0] != "node1:11210" {
		t.Errorf("Nodes = %v", cfg.Cluster.Nodes)
	}
	if cfg.Cluster.NumKVConnections != 3 {
		t.Errorf("NumKVConnections = %d, want 3", cfg.Cluster.NumKVConnections)
	}
	if cfg.Cluster.MaxKVConnections != 5 {
		t.Errorf("MaxKVConnections = %d, want default 5", cfg.Cluster.MaxKVConnections)
	}
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cluster.NumKVConnections != 2 {
		t.Errorf("NumKVConnections = %d, want default 2", cfg.Cluster.NumKVConnections)
	}
}
