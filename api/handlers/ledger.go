package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emberlabs/kiln/api/metrics"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// BurnRequest funds a burn on one ledger. Beneficiary defaults to the
// caller.
type BurnRequest struct {
	Amount      string `json:"amount"`
	Beneficiary string `json:"beneficiary,omitempty"`
}

// BurnResponse reports the claim added to the beneficiary's balance
// due.
type BurnResponse struct {
	BalanceIncrease string `json:"balance_increase"`
}

// Burn handles POST /v1/ledgers/{ledger}/burn.
func (h *Handlers) Burn(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	ledger := chi.URLParam(r, "ledger")

	var req BurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := balance.FromDecimal(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	beneficiary := caller
	if req.Beneficiary != "" {
		beneficiary = engine.AccountID(req.Beneficiary)
	}

	start := time.Now()
	delta, err := h.Pool.Burn(r.Context(), caller, beneficiary, ledger, amount)
	metrics.RecordBurn(ledger, amount.Float64(), time.Since(start), err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BurnResponse{BalanceIncrease: delta.String()})
}

// WithdrawResponse reports the amount paid out.
type WithdrawResponse struct {
	Paid string `json:"paid"`
}

// Withdraw handles POST /v1/ledgers/{ledger}/withdraw.
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	ledger := chi.URLParam(r, "ledger")

	start := time.Now()
	paid, err := h.Pool.Withdraw(r.Context(), caller, ledger)
	metrics.RecordWithdrawal(ledger, paid.Float64(), time.Since(start), err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, WithdrawResponse{Paid: paid.String()})
}

// GetLedgerAccount handles GET /v1/ledgers/{ledger}/accounts/{account}.
func (h *Handlers) GetLedgerAccount(w http.ResponseWriter, r *http.Request) {
	ledger := chi.URLParam(r, "ledger")
	account := engine.AccountID(chi.URLParam(r, "account"))

	eng, ok := h.Engines[ledger]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger")
		return
	}
	acct, err := eng.GetAccount(r.Context(), account)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// LedgerStatsResponse exposes the decay curve position of one ledger.
type LedgerStatsResponse struct {
	TotalBurned     string `json:"total_burned"`
	DailyRateParts  uint64 `json:"daily_rate_parts_per_quintillion"`
	PoolTotalBurned string `json:"pool_total_burned"`
}

// GetLedgerStats handles GET /v1/ledgers/{ledger}/stats.
func (h *Handlers) GetLedgerStats(w http.ResponseWriter, r *http.Request) {
	ledger := chi.URLParam(r, "ledger")

	eng, ok := h.Engines[ledger]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger")
		return
	}
	total, err := eng.TotalBurned(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerStatsResponse{
		TotalBurned:     total.String(),
		DailyRateParts:  eng.DailyReturnRate(total).Parts(),
		PoolTotalBurned: h.Pool.TotalBurned().String(),
	})
}

// ListLedgers handles GET /v1/ledgers.
func (h *Handlers) ListLedgers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"ledgers": h.Pool.Ledgers()})
}

// GetPortfolio handles GET /v1/portfolios/{account}.
func (h *Handlers) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	account := engine.AccountID(chi.URLParam(r, "account"))
	pf := h.Pool.Portfolio(account)
	if pf == nil {
		writeError(w, http.StatusNotFound, "no portfolio found")
		return
	}
	writeJSON(w, http.StatusOK, pf)
}

// GetEvents handles GET /v1/events?account=&limit=&offset=.
func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	account := engine.AccountID(r.URL.Query().Get("account"))
	params := ParsePagination(r, DefaultLimit)

	events, err := h.Pool.RecentEvents(r.Context(), account, params.Limit, params.Offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetAncestors handles GET /v1/accounts/{account}/ancestors.
func (h *Handlers) GetAncestors(w http.ResponseWriter, r *http.Request) {
	if h.Directory == nil {
		writeError(w, http.StatusServiceUnavailable, "referral directory not configured")
		return
	}
	account := engine.AccountID(chi.URLParam(r, "account"))

	ancestors, err := h.Directory.Ancestors(r.Context(), account)
	if err != nil {
		h.Log.Warn("ancestor lookup failed", "account", account, "error", err)
		writeError(w, http.StatusBadGateway, "ancestor lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ancestors": ancestors})
}
