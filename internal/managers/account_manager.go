package managers

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"gridbot/internal/venue"
	"gridbot/pkg/types"
)

// AccountManager caches the most recent balance per currency.
type AccountManager struct {
	adapter venue.Client

	mu    sync.Mutex
	cache map[string]types.Balance
}

func NewAccountManager(adapter venue.Client) *AccountManager {
	return &AccountManager{adapter: adapter, cache: make(map[string]types.Balance)}
}

// GetBalance returns the cached balance for currency, refreshing from the
// venue first.
func (m *AccountManager) GetBalance(ctx context.Context, currency string) (types.Balance, error) {
	bal, err := m.adapter.GetBalance(ctx, currency)
	if err != nil {
		m.mu.Lock()
		cached, ok := m.cache[currency]
		m.mu.Unlock()
		if ok {
			return cached, nil
		}
		return types.Balance{}, err
	}

	m.mu.Lock()
	m.cache[currency] = bal
	m.mu.Unlock()
	return bal, nil
}

// GetAvailableBalance returns only the available portion of a currency's
// balance.
func (m *AccountManager) GetAvailableBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	bal, err := m.GetBalance(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Available, nil
}

// GetTotalBalance returns the total (available + frozen) portion of a
// currency's balance.
func (m *AccountManager) GetTotalBalance(ctx context.Context, currency string) (decimal.Decimal, error) {
	bal, err := m.GetBalance(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Total, nil
}

// HasSufficientBalance compares available balance against a required amount.
func (m *AccountManager) HasSufficientBalance(ctx context.Context, currency string, amount decimal.Decimal) (bool, error) {
	available, err := m.GetAvailableBalance(ctx, currency)
	if err != nil {
		return false, err
	}
	return available.GreaterThanOrEqual(amount), nil
}
