// Package pool implements the Instance Pool (spec.md §4.2): a
// process-wide, mutex-guarded registry keyed by account_key, lazily
// constructing one Venue Adapter plus its Manager Triplet per account.
//
// Grounded on the teacher's internal/engine/engine.go `slots
// map[string]*marketSlot` + `slotsMu sync.RWMutex` pattern, adapted from
// engine-owns-strategies to pool-owns-adapters, and on
// original_source/core/exchange_pool.py's ExchangeInstancePool for the
// exact method set.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gridbot/internal/config"
	"gridbot/internal/managers"
	"gridbot/internal/store"
	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// entry holds the adapter+triplet pair for one account. The pool's
// invariant (spec.md §4.2) is that a key maps to either a complete entry
// or no entry at all.
type entry struct {
	adapter *venue.Adapter
	triplet *managers.Triplet
}

// Pool is the process-wide registry of live venue sessions.
type Pool struct {
	venueCfg venue.Config
	store    *store.Store
	logger   *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// New constructs an empty pool. venueCfg supplies the REST/WS endpoints
// used to build every adapter; cfgStore resolves account_key -> credentials.
func New(venueCfg venue.Config, cfgStore *store.Store, logger *slog.Logger) *Pool {
	return &Pool{
		venueCfg: venueCfg,
		store:    cfgStore,
		logger:   logger.With("component", "instance_pool"),
		entries:  make(map[string]*entry),
	}
}

// GetManagers returns the triplet for accountKey, constructing the
// adapter and triplet on first access. The lookup-construction sequence
// is atomic under a single lock, so concurrent first-access never
// produces duplicate adapters for the same account (spec.md §4.2,
// spec.md §8 pool-uniqueness invariant).
func (p *Pool) GetManagers(ctx context.Context, accountKey string) (*managers.Triplet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[accountKey]; ok {
		return e.triplet, nil
	}

	account, ok := p.store.GetAccountConfig(accountKey)
	if !ok {
		return nil, fmt.Errorf("no config for account_key %q", accountKey)
	}
	if account.APIKey == "" {
		return nil, fmt.Errorf("account %q is missing required credentials", accountKey)
	}

	adapter, err := p.newAdapter(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("construct adapter for %q: %w", accountKey, err)
	}

	triplet := managers.NewTriplet(adapter, p.logger)
	p.entries[accountKey] = &entry{adapter: adapter, triplet: triplet}
	return triplet, nil
}

func (p *Pool) newAdapter(ctx context.Context, account types.Account) (*venue.Adapter, error) {
	return venue.NewAdapter(ctx, p.venueCfg, account, p.logger)
}

// TestConnection builds an adapter for account off-pool, without
// registering it, so a connectivity check never pollutes the registry
// with a half-verified entry (spec.md §6 "POST /config/exchange/test").
// The caller is responsible for closing the returned client.
func (p *Pool) TestConnection(ctx context.Context, account types.Account) (venue.Client, error) {
	return p.newAdapter(ctx, account)
}

// GetExchange returns the venue client for accountKey, constructing via
// GetManagers if needed.
func (p *Pool) GetExchange(ctx context.Context, accountKey string) (venue.Client, error) {
	if _, err := p.GetManagers(ctx, accountKey); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[accountKey]
	if !ok {
		return nil, fmt.Errorf("account %q vanished during construction", accountKey)
	}
	return e.adapter, nil
}

// RemoveAccount removes both adapter and triplet from the registry, then
// closes the adapter. Close failures are logged, never returned (spec.md
// §4.2).
func (p *Pool) RemoveAccount(accountKey string) {
	p.mu.Lock()
	e, ok := p.entries[accountKey]
	if ok {
		delete(p.entries, accountKey)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	if err := e.adapter.Close(); err != nil {
		p.logger.Warn("close adapter failed", "account_key", accountKey, "error", err)
	}
}

// Clear performs an orderly shutdown of every entry, used at process exit.
func (p *Pool) Clear() {
	p.mu.Lock()
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	p.mu.Unlock()

	for _, k := range keys {
		p.RemoveAccount(k)
	}
}

// ListAccounts returns the account_keys of every live entry (diagnostic).
func (p *Pool) ListAccounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	return keys
}
