package ochami

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/internal/testserver"
	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func TestHardwareInventory(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedHardware("x1000c0s0b0n0", json.RawMessage(`{"ID":"x1000c0s0b0n0","Type":"Node"}`))

	b := newTestBackend(t, srv)

	raw, err := b.HardwareInventory(context.Background(), "x1000c0s0b0n0")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "Node", decoded["Type"])

	all, err := b.HardwareInventory(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestHardwareInventoryQuery(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedHardware("x1000c0", json.RawMessage(`{"ID":"x1000c0","Type":"Chassis"}`))

	b := newTestBackend(t, srv)

	children := true
	raw, err := b.HardwareInventoryQuery(context.Background(), "x1000c0", types.HardwareInventoryQuery{
		Children: &children,
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Chassis")

	_, err = b.HardwareInventoryQuery(context.Background(), "", types.HardwareInventoryQuery{})
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
}

func TestRedfishEndpoints(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)
	ctx := context.Background()

	endpoint := types.RedfishEndpoint{
		ID:       "x1000c0s0b0",
		Type:     "NodeBMC",
		FQDN:     "x1000c0s0b0.cluster.local",
		MACAddr:  "02:00:00:00:00:10",
		User:     "root",
		Password: "initial",
	}
	require.NoError(t, b.AddRedfishEndpoint(ctx, endpoint))

	listed, err := b.ListRedfishEndpoints(ctx, types.RedfishEndpointFilter{FQDN: endpoint.FQDN})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "x1000c0s0b0", listed[0].ID)

	endpoint.User = "admin"
	require.NoError(t, b.UpdateRedfishEndpoint(ctx, endpoint))

	require.NoError(t, b.DeleteRedfishEndpoint(ctx, "x1000c0s0b0"))

	err = b.DeleteRedfishEndpoint(ctx, "x1000c0s0b0")
	require.Error(t, err)
	assert.Equal(t, backend.KindClient, backend.KindOf(err))
}

func TestAddRedfishEndpointRequiresID(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)

	err := b.AddRedfishEndpoint(context.Background(), types.RedfishEndpoint{FQDN: "bmc.local"})
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
	assert.Zero(t, srv.Requests())
}

func TestListEthernetInterfaces(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedEthernetInterface(types.EthernetInterface{
		ID:          "0200000000a1",
		MACAddress:  "02:00:00:00:00:a1",
		ComponentID: "x1000c0s0b0n0",
		IPAddresses: []types.IPAddressMapping{{IPAddress: "10.0.0.1", Network: "HMN"}},
	})
	srv.SeedEthernetInterface(types.EthernetInterface{
		ID:          "0200000000a2",
		MACAddress:  "02:00:00:00:00:a2",
		ComponentID: "x1000c0s0b0n1",
	})

	b := newTestBackend(t, srv)

	all, err := b.ListEthernetInterfaces(context.Background(), types.EthernetInterfaceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := b.ListEthernetInterfaces(context.Background(), types.EthernetInterfaceFilter{
		ComponentID: "x1000c0s0b0n0",
	})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "10.0.0.1", scoped[0].IPAddresses[0].IPAddress)
}
