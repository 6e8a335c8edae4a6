package pool

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gridbot/internal/store"
	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T) (*Pool, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)

	key, err := s.SaveExchangeConfig("extended", types.Account{APIKey: "k", SecretKey: "s"})
	require.NoError(t, err)

	cfg := venue.Config{RESTBaseURL: "http://127.0.0.1:0", WSBookURL: "ws://127.0.0.1:0"}
	return New(cfg, s, testLogger()), key
}

func TestGetManagersConstructsOnce(t *testing.T) {
	p, key := newTestPool(t)
	defer p.Clear()

	t1, err := p.GetManagers(context.Background(), key)
	require.NoError(t, err)
	t2, err := p.GetManagers(context.Background(), key)
	require.NoError(t, err)

	require.Same(t, t1, t2)
}

func TestGetManagersConcurrentFirstAccessIsSingleInstance(t *testing.T) {
	p, key := newTestPool(t)
	defer p.Clear()

	const n = 20
	results := make([]*entry, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.GetManagers(context.Background(), key)
			require.NoError(t, err)

			p.mu.Lock()
			results[i] = p.entries[key]
			p.mu.Unlock()
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, results[0].adapter, results[i].adapter, "duplicate adapter constructed under concurrent first access")
	}
}

func TestRemoveAccountClearsEntry(t *testing.T) {
	p, key := newTestPool(t)

	_, err := p.GetManagers(context.Background(), key)
	require.NoError(t, err)
	require.Contains(t, p.ListAccounts(), key)

	p.RemoveAccount(key)
	require.NotContains(t, p.ListAccounts(), key)
}

func TestGetManagersUnknownAccount(t *testing.T) {
	p, _ := newTestPool(t)
	defer p.Clear()

	_, err := p.GetManagers(context.Background(), "does-not-exist")
	require.Error(t, err)
}
