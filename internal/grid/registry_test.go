package grid

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gridbot/internal/managers"
)

func newTestRegistryEntry(t *testing.T) (*Registry, string, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	client.setQuote(decimal.NewFromInt(49990), decimal.NewFromInt(50010))

	cfg := testConfig()
	cfg.UpdateInterval = 20 * time.Millisecond
	mgrs := managers.NewTriplet(client, discardLogger())

	r := NewRegistry(discardLogger())
	id, err := r.CreateAndStart(context.Background(), "BTC-USD", cfg, mgrs, client)
	require.NoError(t, err)
	return r, id, client
}

func TestRegistryCreateAndStartRunsFirstTick(t *testing.T) {
	r, id, client := newTestRegistryEntry(t)
	defer r.Delete(context.Background(), id)

	open, err := client.GetOpenOrders(context.Background(), "BTC-USD", true)
	require.NoError(t, err)
	require.NotEmpty(t, open)

	status, err := r.Status(context.Background(), id)
	require.NoError(t, err)
	require.True(t, status.Running)
	require.Equal(t, "BTC-USD", status.Symbol)
}

func TestRegistryStopAndRestart(t *testing.T) {
	r, id, _ := newTestRegistryEntry(t)
	defer r.Delete(context.Background(), id)

	_, err := r.Stop(context.Background(), id)
	require.NoError(t, err)

	status, err := r.Status(context.Background(), id)
	require.NoError(t, err)
	require.False(t, status.Running)

	require.NoError(t, r.Restart(context.Background(), id))
	status, err = r.Status(context.Background(), id)
	require.NoError(t, err)
	require.True(t, status.Running)
}

func TestRegistryTickForcesReconciliation(t *testing.T) {
	r, id, _ := newTestRegistryEntry(t)
	defer r.Delete(context.Background(), id)

	require.NoError(t, r.Tick(context.Background(), id))
}

func TestRegistryDeleteStopsRunningInstance(t *testing.T) {
	r, id, client := newTestRegistryEntry(t)

	_, err := r.Delete(context.Background(), id)
	require.NoError(t, err)

	require.NotContains(t, r.List(), id)

	open, err := client.GetOpenOrders(context.Background(), "BTC-USD", true)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestRegistryUnknownStrategyIDErrors(t *testing.T) {
	r := NewRegistry(discardLogger())

	_, err := r.Status(context.Background(), "does-not-exist")
	require.Error(t, err)
}

func TestRegistryListSorted(t *testing.T) {
	r, id1, _ := newTestRegistryEntry(t)
	id2, err := r.CreateAndStart(context.Background(), "ETH-USD", testConfig(), mustTriplet(t), newFakeClientWithQuote())
	require.NoError(t, err)
	defer r.Delete(context.Background(), id1)
	defer r.Delete(context.Background(), id2)

	list := r.List()
	require.Len(t, list, 2)
	require.Contains(t, list, id1)
	require.Contains(t, list, id2)
	require.True(t, sort.StringsAreSorted(list))
}

func mustTriplet(t *testing.T) *managers.Triplet {
	t.Helper()
	return managers.NewTriplet(newFakeClientWithQuote(), discardLogger())
}

func newFakeClientWithQuote() *fakeClient {
	c := newFakeClient()
	c.setQuote(decimal.NewFromInt(2990), decimal.NewFromInt(3010))
	return c
}
