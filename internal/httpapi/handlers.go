package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"gridbot/internal/config"
	"gridbot/internal/grid"
	"gridbot/internal/pool"
	"gridbot/internal/store"
	"gridbot/internal/venue"
	"gridbot/internal/venueerr"
	"gridbot/pkg/types"
)

// Handlers holds every HTTP handler's dependencies: the Instance Pool,
// Config Store, and Strategy Registry (spec.md §6).
type Handlers struct {
	pool             *pool.Pool
	store            *store.Store
	registry         *grid.Registry
	strategyDefaults config.StrategyDefaults
	logger           *slog.Logger
}

func NewHandlers(p *pool.Pool, cfgStore *store.Store, registry *grid.Registry, strategyDefaults config.StrategyDefaults, logger *slog.Logger) *Handlers {
	return &Handlers{
		pool:             p,
		store:            cfgStore,
		registry:         registry,
		strategyDefaults: strategyDefaults,
		logger:           logger.With("component", "http_handlers"),
	}
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- config/exchange -------------------------------------------------

func (h *Handlers) HandleListExchanges(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.ListAccounts()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

type saveExchangeRequest struct {
	Venue     string `json:"name"`
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	Testnet   bool   `json:"testnet"`
	Vault     int64  `json:"vault,omitempty"`
	L1Address string `json:"l1_address,omitempty"`
}

func (h *Handlers) HandleSaveExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req saveExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, venueerr.Validation("save_exchange_config", "invalid request body"))
		return
	}
	if req.Venue == "" || req.APIKey == "" {
		writeError(w, venueerr.Validation("save_exchange_config", "name and api_key are required"))
		return
	}

	l1Address := req.L1Address
	if l1Address != "" {
		checksummed, err := venue.ValidateL1Address(l1Address)
		if err != nil {
			writeError(w, err)
			return
		}
		l1Address = checksummed
	}

	rec := types.Account{APIKey: req.APIKey, SecretKey: req.SecretKey, Testnet: req.Testnet, Vault: req.Vault, L1Address: l1Address}
	key, err := h.store.SaveExchangeConfig(req.Venue, rec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account_key": key})
}

func (h *Handlers) HandleExchangeByKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/v1/config/exchange/")
	if key == "" || key == "test" {
		http.NotFound(w, r)
		return
	}
	h.pool.RemoveAccount(key)
	ok, err := h.store.DeleteAccountConfig(key)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, venueerr.NotFound("delete_account_config", "unknown account: "+key))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": key})
}

// HandleTestExchange initializes an adapter off-pool and attempts a
// balance fetch, returning a classified diagnostic (spec.md §6
// "POST /config/exchange/test").
func (h *Handlers) HandleTestExchange(w http.ResponseWriter, r *http.Request) {
	var req saveExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, venueerr.Validation("test_exchange", "invalid request body"))
		return
	}

	client, err := h.pool.TestConnection(r.Context(), types.Account{APIKey: req.APIKey, SecretKey: req.SecretKey, Testnet: req.Testnet, Vault: req.Vault})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "kind": string(venueerr.ClassifyKind(err))})
		return
	}
	defer client.Close()

	if _, err := client.GetBalance(r.Context(), "USD"); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error(), "kind": string(venueerr.ClassifyKind(err))})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// --- exchange/balance, ticker -----------------------------------------

func (h *Handlers) HandleBalance(w http.ResponseWriter, r *http.Request) {
	accountKey := r.URL.Query().Get("exchange_name")
	currency := r.URL.Query().Get("currency")
	if accountKey == "" || currency == "" {
		writeError(w, venueerr.Validation("get_balance", "exchange_name and currency are required"))
		return
	}

	triplet, err := h.pool.GetManagers(r.Context(), accountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	balance, err := triplet.Account.GetBalance(r.Context(), currency)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// HandleBalances returns every account's balance; failures per account
// are isolated (spec.md §6 "GET /exchange/balances").
func (h *Handlers) HandleBalances(w http.ResponseWriter, r *http.Request) {
	currency := r.URL.Query().Get("currency")
	if currency == "" {
		currency = "USD"
	}

	accounts, err := h.store.ListAccounts()
	if err != nil {
		writeError(w, err)
		return
	}

	out := make(map[string]any, len(accounts))
	for key := range accounts {
		triplet, err := h.pool.GetManagers(r.Context(), key)
		if err != nil {
			out[key] = map[string]string{"error": err.Error()}
			continue
		}
		balance, err := triplet.Account.GetBalance(r.Context(), currency)
		if err != nil {
			out[key] = map[string]string{"error": err.Error()}
			continue
		}
		out[key] = balance
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) HandleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/api/v1/exchange/ticker/")
	accountKey := r.URL.Query().Get("exchange_name")
	if symbol == "" || accountKey == "" {
		writeError(w, venueerr.Validation("get_ticker", "symbol and exchange_name are required"))
		return
	}

	client, err := h.pool.GetExchange(r.Context(), accountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	ticker, err := client.GetTicker(r.Context(), symbol)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

// --- direct order ops ---------------------------------------------------

type placeOrderRequest struct {
	AccountKey string          `json:"exchange_name"`
	Symbol     string          `json:"symbol"`
	Side       types.Side      `json:"side"`
	Type       types.OrderType `json:"type"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	PostOnly   *bool           `json:"post_only,omitempty"`
	ReduceOnly bool            `json:"reduce_only,omitempty"`
}

func (h *Handlers) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, venueerr.Validation("place_order", "invalid request body"))
		return
	}
	if req.Type == types.OrderTypeLimit && req.Price.IsZero() {
		writeError(w, venueerr.Validation("place_order", "limit orders require a price"))
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, venueerr.Validation("place_order", "quantity must be positive"))
		return
	}

	triplet, err := h.pool.GetManagers(r.Context(), req.AccountKey)
	if err != nil {
		writeError(w, err)
		return
	}

	order, err := triplet.Orders.PlaceOrder(r.Context(), types.Order{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		ReduceOnly: req.ReduceOnly,
	}, req.PostOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/order/cancel/")
	symbol, orderID, ok := splitPair(rest)
	if !ok {
		http.NotFound(w, r)
		return
	}
	accountKey := r.URL.Query().Get("exchange_name")

	triplet, err := h.pool.GetManagers(r.Context(), accountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := triplet.Orders.CancelOrder(r.Context(), symbol, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/order/")
	symbol, orderID, ok := splitPair(rest)
	if !ok {
		http.NotFound(w, r)
		return
	}
	accountKey := r.URL.Query().Get("exchange_name")

	triplet, err := h.pool.GetManagers(r.Context(), accountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	order, err := triplet.Orders.GetOrder(r.Context(), symbol, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handlers) HandleOpenOrders(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimPrefix(r.URL.Path, "/api/v1/order/open/")
	accountKey := r.URL.Query().Get("exchange_name")

	triplet, err := h.pool.GetManagers(r.Context(), accountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	orders, err := triplet.Orders.GetOpenOrders(r.Context(), symbol, true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func splitPair(path string) (a, b string, ok bool) {
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// --- strategy lifecycle ---------------------------------------------------

type strategyStartRequest struct {
	AccountKey string          `json:"exchange_name"`
	Symbol     string          `json:"symbol"`
	OrderSize  decimal.Decimal `json:"order_size"`
}

func (h *Handlers) HandleStrategyStart(w http.ResponseWriter, r *http.Request) {
	var req strategyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, venueerr.Validation("strategy_start", "invalid request body"))
		return
	}
	if !req.OrderSize.IsPositive() {
		writeError(w, venueerr.Validation("strategy_start", "order_size must be positive"))
		return
	}
	if req.Symbol == "" || req.AccountKey == "" {
		writeError(w, venueerr.Validation("strategy_start", "exchange_name and symbol are required"))
		return
	}

	triplet, err := h.pool.GetManagers(r.Context(), req.AccountKey)
	if err != nil {
		writeError(w, err)
		return
	}
	client, err := h.pool.GetExchange(r.Context(), req.AccountKey)
	if err != nil {
		writeError(w, err)
		return
	}

	cfg := grid.FromDefaults(h.strategyDefaults, req.OrderSize)
	id, err := h.registry.CreateAndStart(r.Context(), req.Symbol, cfg, triplet, client)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"strategy_id": id})
}

// HandleStrategyLifecycle handles .../{id}/stop, .../{id}/start,
// .../{id}/update, and .../{id}/status (spec.md §6).
func (h *Handlers) HandleStrategyLifecycle(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/strategy/sliding-window-grid/")
	id, action, ok := splitPair(rest)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "stop":
		result, err := h.registry.Stop(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "start":
		if err := h.registry.Restart(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"strategy_id": id})
	case "update":
		if err := h.registry.Tick(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"strategy_id": id})
	case "status":
		status, err := h.registry.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handlers) HandleStrategyList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handlers) HandleStrategyTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{"sliding-window-grid"})
}

func (h *Handlers) HandleStrategyDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/strategy/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	result, err := h.registry.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleStrategyWebSocket sends one status snapshot then pushes one every
// 2s while the strategy remains registered, closing on removal (spec.md
// §6 "WS /ws/strategy/{id}").
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Handlers) HandleStrategyWebSocket(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/ws/strategy/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		status, err := h.registry.Status(r.Context(), id)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(status); err != nil {
			return
		}
		<-ticker.C
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, venueerr.HTTPStatus(err), map[string]string{"error": err.Error()})
}
