package managers

import (
	"context"
	"log/slog"
	"sync"

	"gridbot/internal/venue"
	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

// PositionManager queries the venue for a symbol's position and caches
// the result. On any query error it degrades to the last known position,
// or an empty one if none has ever been observed, and returns no error.
// The error is logged unless it is a timeout (so a stalled venue doesn't
// spam the tick loop) (spec.md §4.3).
//
// The original implementation detected timeouts by matching "timeout" /
// "超时" substrings in the error message; here venueerr.IsTimeout inspects
// the typed error's wrapped cause instead of matching strings.
type PositionManager struct {
	adapter venue.Client
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]types.Position
}

func NewPositionManager(adapter venue.Client, logger *slog.Logger) *PositionManager {
	return &PositionManager{
		adapter: adapter,
		logger:  logger.With("component", "position_manager"),
		cache:   make(map[string]types.Position),
	}
}

// GetPosition returns the current position for symbol.
func (m *PositionManager) GetPosition(ctx context.Context, symbol string) (types.Position, error) {
	pos, err := m.adapter.GetPosition(ctx, symbol)
	if err != nil {
		m.mu.Lock()
		cached, ok := m.cache[symbol]
		m.mu.Unlock()

		if !venueerr.IsTimeout(err) {
			m.logger.Warn("get position failed", "symbol", symbol, "error", err)
		}

		if ok {
			return cached, nil
		}
		return types.EmptyPosition(symbol), nil
	}

	m.mu.Lock()
	m.cache[symbol] = pos
	m.mu.Unlock()
	return pos, nil
}
