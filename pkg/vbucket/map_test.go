package vbucket

import (
	"reflect"
	"testing"
)

func buildMap(t *testing.T, rev uint64, primary func(uint16) NodeID) *Map {
	t.Helper()
	assignments := make([]Assignment, NumVBuckets)
	for i := 0; i < NumVBuckets; i++ {
		vb := uint16(i)
		assignments[i] = Assignment{VBucket: vb, Primary: primary(vb)}
	}
	m, err := NewMap(rev, assignments)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	return m
}

func TestNewMapRejectsWrongLength(t *testing.T) {
	_, err := NewMap(1, []Assignment{{VBucket: 0, Primary: "a"}})
	if err == nil {
		t.Fatal("expected error for short assignment list")
	}
}

func TestVBucketForKeyIsDeterministic(t *testing.T) {
	a := VBucketForKey("document-1")
	b := VBucketForKey("document-1")
	if a != b {
		t.Errorf("hash not deterministic: %d != %d", a, b)
	}
	if a >= NumVBuckets {
		t.Errorf("vbucket %d out of range", a)
	}
}

func TestAssignmentForKeyMatchesDirectLookup(t *testing.T) {
	m := buildMap(t, 1, func(vb uint16) NodeID { return NodeID("node-a") })
	vb := VBucketForKey("k")
	want, err := m.Assignment(vb)
	if err != nil {
		t.Fatal(err)
	}
	got := m.AssignmentForKey("k")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AssignmentForKey = %+v, want %+v", got, want)
	}
}

func TestAtomicMapReplaceSwapsRevision(t *testing.T) {
	m1 := buildMap(t, 1, func(uint16) NodeID { return "a" })
	m2 := buildMap(t, 2, func(uint16) NodeID { return "b" })

	atlas := NewAtomicMap(m1)
	prev := atlas.Replace(m2)

	if prev.Revision() != 1 {
		t.Errorf("previous revision = %d, want 1", prev.Revision())
	}
	if atlas.Load().Revision() != 2 {
		t.Errorf("current revision = %d, want 2", atlas.Load().Revision())
	}
}

type stubPool struct{ node NodeID }

func (s stubPool) Node() NodeID { return s.node }

func TestMapLocatorResolvesPrimaryAndReplica(t *testing.T) {
	assignments := make([]Assignment, NumVBuckets)
	for i := range assignments {
		assignments[i] = Assignment{VBucket: uint16(i), Primary: "node-a", Replicas: []NodeID{"node-b"}}
	}
	m, err := NewMap(1, assignments)
	if err != nil {
		t.Fatal(err)
	}
	atlas := NewAtomicMap(m)

	pools := map[NodeID]PoolHandle{
		"node-a": stubPool{node: "node-a"},
		"node-b": stubPool{node: "node-b"},
	}
	locator := NewMapLocator(atlas, func(id NodeID) (PoolHandle, bool) {
		p, ok := pools[id]
		return p, ok
	})

	primary, ok := locator.PoolFor(0, 0)
	if !ok || primary.Node() != "node-a" {
		t.Errorf("primary = %+v, ok=%v", primary, ok)
	}
	replica, ok := locator.PoolFor(0, 1)
	if !ok || replica.Node() != "node-b" {
		t.Errorf("replica = %+v, ok=%v", replica, ok)
	}
	if _, ok := locator.PoolFor(0, 2); ok {
		t.Error("expected no second replica")
	}
	if locator.ReplicaCount(0) != 1 {
		t.Errorf("ReplicaCount = %d, want 1", locator.ReplicaCount(0))
	}
}
