package ochami

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/internal/testserver"
	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
	"git.cscs.ch/openchami/chamicore-connect/pkg/types"
)

func TestPowerStatus(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})
	srv.SeedComponent(types.Component{ID: "nid002", Type: "Node"})
	srv.SetPowerState("nid002", "off")

	b := newTestBackend(t, srv)

	results, err := b.PowerStatus(context.Background(), []string{"nid[001-002]"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.True(t, results.AllOK())
	assert.Equal(t, "nid001", results[0].Host)
	assert.Equal(t, "on", results[0].Value.PowerState)
	assert.Equal(t, "nid002", results[1].Host)
	assert.Equal(t, "off", results[1].Value.PowerState)
}

// One host succeeding, one unknown to the service and one with a severed
// connection must come back as three independent per-host outcomes, in
// selector order, with the error kind telling the failures apart.
func TestPowerStatusPartialFailure(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})
	srv.DropConnectionFor("nid003")

	b := newTestBackend(t, srv)

	results, err := b.PowerStatus(context.Background(), []string{"nid001", "nid002", "nid003"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "nid001", results[0].Host)
	require.True(t, results[0].OK())
	assert.Equal(t, "on", results[0].Value.PowerState)

	assert.Equal(t, "nid002", results[1].Host)
	require.False(t, results[1].OK())
	assert.Equal(t, backend.KindClient, backend.KindOf(results[1].Err))

	assert.Equal(t, "nid003", results[2].Host)
	require.False(t, results[2].OK())
	assert.Equal(t, backend.KindTransport, backend.KindOf(results[2].Err))

	failed := results.Failed()
	assert.Len(t, failed, 2)
	assert.False(t, results.AllOK())
}

func TestPowerStatusErrorCarriesOpAndHost(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)

	results, err := b.PowerStatus(context.Background(), []string{"nid009"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.False(t, results[0].OK())

	var dispatchErr *backend.Error
	require.ErrorAs(t, results[0].Err, &dispatchErr)
	assert.Equal(t, "power.status", dispatchErr.Op)
	assert.Equal(t, "nid009", dispatchErr.Host)
}

func TestPowerStatusOrderingUnderConcurrency(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	for i := 1; i <= 40; i++ {
		srv.SeedComponent(types.Component{ID: fmt.Sprintf("nid%03d", i), Type: "Node"})
	}

	b := newTestBackend(t, srv, func(cfg *Config) { cfg.MaxInFlight = 7 })

	results, err := b.PowerStatus(context.Background(), []string{"nid[001-040]"})
	require.NoError(t, err)
	require.Len(t, results, 40)
	require.True(t, results.AllOK())
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("nid%03d", i+1), r.Host)
	}
}

func TestPowerStatusEmptySelectorDoesNoIO(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()

	b := newTestBackend(t, srv)

	_, err := b.PowerStatus(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
	assert.Zero(t, srv.Requests())
}

func TestPowerOnBatches(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	for _, id := range []string{"nid001", "nid002", "nid003", "nid004", "nid005"} {
		srv.SeedComponent(types.Component{ID: id, Type: "Node"})
	}

	b := newTestBackend(t, srv, func(cfg *Config) { cfg.BulkMaxNodes = 2 })

	results, err := b.PowerOn(context.Background(), []string{"nid[001-005]"})
	require.NoError(t, err)
	require.Len(t, results, 5)
	require.True(t, results.AllOK())

	// 5 hosts at batch size 2 means 3 transitions; hosts in the same batch
	// share one transition ID, hosts in different batches do not.
	assert.Equal(t, results[0].Value.TransitionID, results[1].Value.TransitionID)
	assert.Equal(t, results[2].Value.TransitionID, results[3].Value.TransitionID)
	assert.NotEqual(t, results[1].Value.TransitionID, results[2].Value.TransitionID)
	assert.NotEqual(t, results[3].Value.TransitionID, results[4].Value.TransitionID)

	for _, r := range results {
		assert.Equal(t, types.PowerOpOn, r.Value.Operation)
	}
	assert.EqualValues(t, 3, srv.Requests())
}

func TestPowerOffForceSelectsOperation(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})

	b := newTestBackend(t, srv)

	soft, err := b.PowerOff(context.Background(), []string{"nid001"}, false)
	require.NoError(t, err)
	require.True(t, soft.AllOK())
	assert.Equal(t, types.PowerOpSoftOff, soft[0].Value.Operation)

	forced, err := b.PowerOff(context.Background(), []string{"nid001"}, true)
	require.NoError(t, err)
	require.True(t, forced.AllOK())
	assert.Equal(t, types.PowerOpForceOff, forced[0].Value.Operation)
}

func TestPowerResetForceSelectsOperation(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})

	b := newTestBackend(t, srv)

	soft, err := b.PowerReset(context.Background(), []string{"nid001"}, false)
	require.NoError(t, err)
	assert.Equal(t, types.PowerOpSoftRestart, soft[0].Value.Operation)

	hard, err := b.PowerReset(context.Background(), []string{"nid001"}, true)
	require.NoError(t, err)
	assert.Equal(t, types.PowerOpHardRestart, hard[0].Value.Operation)
}

func TestPowerOnBatchFailureIsIsolated(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})
	srv.SeedComponent(types.Component{ID: "nid002", Type: "Node"})
	// nid003 is unknown to PCS, so its batch is rejected.

	b := newTestBackend(t, srv, func(cfg *Config) { cfg.BulkMaxNodes = 2 })

	results, err := b.PowerOn(context.Background(), []string{"nid[001-003]"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	require.False(t, results[2].OK())
	assert.Equal(t, backend.KindClient, backend.KindOf(results[2].Err))
}

func TestGetTransition(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})

	b := newTestBackend(t, srv)

	started, err := b.PowerOn(context.Background(), []string{"nid001"})
	require.NoError(t, err)
	require.True(t, started.AllOK())

	transition, err := b.GetTransition(context.Background(), started[0].Value.TransitionID)
	require.NoError(t, err)
	assert.Equal(t, types.PowerOpOn, transition.Operation)
	require.Len(t, transition.Tasks, 1)
	assert.Equal(t, "nid001", transition.Tasks[0].Xname)

	_, err = b.GetTransition(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, backend.KindClient, backend.KindOf(err))
}

// A slow host must not delay or fail its siblings beyond the shared timeout:
// each host's timeout is its own.
func TestPowerStatusSlowHostDoesNotPoisonSiblings(t *testing.T) {
	t.Parallel()

	srv := testserver.New()
	defer srv.Close()
	srv.SeedComponent(types.Component{ID: "nid001", Type: "Node"})
	srv.SeedComponent(types.Component{ID: "nid002", Type: "Node"})
	srv.StallFor("nid002", 2*time.Second)

	b := newTestBackend(t, srv, func(cfg *Config) { cfg.Timeout = 200 * time.Millisecond })

	results, err := b.PowerStatus(context.Background(), []string{"nid001", "nid002"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.True(t, results[0].OK())
	require.False(t, results[1].OK())
	assert.Equal(t, backend.KindTimeout, backend.KindOf(results[1].Err))
}
