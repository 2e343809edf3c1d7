package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberlabs/kiln/dispatch"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// PauseRequest halts pool mutations with a reason.
type PauseRequest struct {
	Reason string `json:"reason"`
}

// Pause handles POST /v1/admin/pause.
func (h *Handlers) Pause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reason := dispatch.PauseReason(req.Reason)
	if reason == "" {
		reason = dispatch.PauseMaintenance
	}
	if err := h.Pool.Pause(h.Pool.AdminControl.Admin(), reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused", "reason": string(reason)})
}

// Unpause handles POST /v1/admin/unpause.
func (h *Handlers) Unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.Pool.Unpause(h.Pool.AdminControl.Admin()); err != nil {
		if err == dispatch.ErrNotPaused {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// ResetBurnDataRequest rewrites an account's burn record.
type ResetBurnDataRequest struct {
	Account      string `json:"account"`
	AmountBurned string `json:"amount_burned"`
}

// ResetBurnData handles POST /v1/admin/ledgers/{ledger}/reset-burn-data.
func (h *Handlers) ResetBurnData(w http.ResponseWriter, r *http.Request) {
	ledger := chi.URLParam(r, "ledger")
	eng, ok := h.Engines[ledger]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger")
		return
	}

	var req ResetBurnDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Account == "" {
		writeError(w, http.StatusBadRequest, "account is required")
		return
	}
	amount, err := balance.FromDecimal(req.AmountBurned)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount_burned")
		return
	}

	if err := eng.ResetBurnData(r.Context(), h.Controller, engine.AccountID(req.Account), amount); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// SetDayMillisecondsRequest overrides a ledger's accrual day length.
type SetDayMillisecondsRequest struct {
	DayMilliseconds int64 `json:"day_milliseconds"`
}

// SetDayMilliseconds handles POST /v1/admin/ledgers/{ledger}/day-milliseconds.
func (h *Handlers) SetDayMilliseconds(w http.ResponseWriter, r *http.Request) {
	ledger := chi.URLParam(r, "ledger")
	eng, ok := h.Engines[ledger]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown ledger")
		return
	}

	var req SetDayMillisecondsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DayMilliseconds <= 0 {
		writeError(w, http.StatusBadRequest, "day_milliseconds must be positive")
		return
	}

	if err := eng.SetDayMilliseconds(h.Controller, req.DayMilliseconds); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
