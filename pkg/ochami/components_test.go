package ochami

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/internal/testserver"
	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func int64Ptr(v int64) *int64 { return &v }

func TestListComponents(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "x1000c0s0b0n0", Type: "Node", NID: int64Ptr(1)})
	srv.SeedComponent(types.Component{ID: "x1000c0s0b0n1", Type: "Node", NID: int64Ptr(2)})
	srv.SeedComponent(types.Component{ID: "x1000c0s0b0", Type: "NodeBMC"})

	b := newTestBackend(t, srv)

	all, err := b.ListComponents(context.Background(), types.ComponentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	nodes, err := b.ListComponents(context.Background(), types.ComponentFilter{Type: "Node"})
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	byNID, err := b.ListComponents(context.Background(), types.ComponentFilter{NID: "2"})
	require.NoError(t, err)
	require.Len(t, byNID, 1)
	assert.Equal(t, "x1000c0s0b0n1", byNID[0].ID)
}

func TestGetComponent(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "x1000c0s0b0n0", Type: "Node", State: "Ready"})

	b := newTestBackend(t, srv)

	c, err := b.GetComponent(context.Background(), "x1000c0s0b0n0")
	require.NoError(t, err)
	assert.Equal(t, "Ready", c.State)

	_, err = b.GetComponent(context.Background(), "x9999c0s0b0n0")
	require.Error(t, err)
	assert.Equal(t, backend.KindClient, backend.KindOf(err))

	_, err = b.GetComponent(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
	assert.EqualValues(t, 2, srv.Requests()) // the empty xname never hit the wire
}

func TestCreateComponents(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)

	err := b.CreateComponents(context.Background(), types.ComponentPostArray{
		Components: []types.Component{
			{ID: "x1000c0s0b0n0", Type: "Node", State: "Ready"},
		},
	})
	require.NoError(t, err)

	c, err := b.GetComponent(context.Background(), "x1000c0s0b0n0")
	require.NoError(t, err)
	assert.Equal(t, "Node", c.Type)
}

func TestCreateComponentsValidation(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)

	err := b.CreateComponents(context.Background(), types.ComponentPostArray{})
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))

	err = b.CreateComponents(context.Background(), types.ComponentPostArray{
		Components: []types.Component{{Type: "Node"}},
	})
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))

	assert.Zero(t, srv.Requests())
}

func TestDeleteComponent(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "x1000c0s0b0n0", Type: "Node"})

	b := newTestBackend(t, srv)

	require.NoError(t, b.DeleteComponent(context.Background(), "x1000c0s0b0n0"))

	err := b.DeleteComponent(context.Background(), "x1000c0s0b0n0")
	require.Error(t, err)
	assert.Equal(t, backend.KindClient, backend.KindOf(err))
}
