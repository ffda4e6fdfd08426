package cbkv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbkv-io/cbkv-go/pkg/memd"
)

func TestGetAnyReplicaPrefersWhicheverSucceedsFirst(t *testing.T) {
	col := testCollectionWithReplicas(
		func(req memd.Request) (memd.Response, error) {
			return memd.Response{}, errors.New("primary down")
		},
		func(req memd.Request) (memd.Response, error) {
			return successResponse(5, []byte(`{"ok":true}`)), nil
		},
	)

	res, err := col.GetAnyReplica(context.Background(), "doc1", ReplicaOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, res.ReplicaIndex)
	require.Equal(t, uint64(5), res.Cas)
}

func TestGetAnyReplicaAllFail(t *testing.T) {
	col := testCollectionWithReplicas(
		func(req memd.Request) (memd.Response, error) {
			return memd.Response{}, errors.New("primary down")
		},
		func(req memd.Request) (memd.Response, error) {
			return memd.Response{}, errors.New("replica down")
		},
	)

	_, err := col.GetAnyReplica(context.Background(), "doc1", ReplicaOptions{})
	require.Error(t, err)
}

func TestGetAnyReplicaNoReplicas(t *testing.T) {
	col := testCollectionWithReplicas(func(req memd.Request) (memd.Response, error) {
		return successResponse(9, []byte(`{}`)), nil
	})

	res, err := col.GetAnyReplica(context.Background(), "doc1", ReplicaOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, res.ReplicaIndex)
	require.Equal(t, uint64(9), res.Cas)
}

func TestGetAllReplicasCollectsSuccessesAndFailures(t *testing.T) {
	col := testCollectionWithReplicas(
		func(req memd.Request) (memd.Response, error) {
			return successResponse(1, []byte(`{"from":"primary"}`)), nil
		},
		func(req memd.Request) (memd.Response, error) {
			return memd.Response{}, errors.New("replica unreachable")
		},
	)

	results, err := col.GetAllReplicas(context.Background(), "doc1", ReplicaOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 0, results[0].ReplicaIndex)
}

func TestGetAllReplicasAllFail(t *testing.T) {
	col := testCollectionWithReplicas(
		func(req memd.Request) (memd.Response, error) {
			return memd.Response{}, errors.New("primary down")
		},
	)

	results, err := col.GetAllReplicas(context.Background(), "doc1", ReplicaOptions{})
	require.Error(t, err)
	require.Nil(t, results)
}
