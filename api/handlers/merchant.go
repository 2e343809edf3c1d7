package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberlabs/kiln/api/metrics"
	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

// SubscribeRequest pays for subscription months.
type SubscribeRequest struct {
	Payment string `json:"payment"`
}

// SubscribeResponse reports the new expiry in Unix milliseconds.
type SubscribeResponse struct {
	Expiry int64 `json:"expiry"`
}

// Subscribe handles POST /v1/merchant/subscribe.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payment, err := balance.FromDecimal(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment")
		return
	}

	expiry, err := h.Merchant.Subscribe(r.Context(), caller, payment)
	metrics.RecordSubscription(err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SubscribeResponse{Expiry: int64(expiry)})
}

// GreenPointsRequest issues points for a customer payment.
type GreenPointsRequest struct {
	Customer string `json:"customer"`
	Payment  string `json:"payment"`
}

// GreenPointsResponse reports both shares of the issued points.
type GreenPointsResponse struct {
	CustomerPoints string `json:"customer_points"`
	MerchantPoints string `json:"merchant_points"`
}

// GiveGreenPoints handles POST /v1/merchant/green-points. The caller
// is the merchant.
func (h *Handlers) GiveGreenPoints(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req GreenPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Customer == "" {
		writeError(w, http.StatusBadRequest, "customer is required")
		return
	}
	payment, err := balance.FromDecimal(req.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payment")
		return
	}

	userShare, merchantShare, err := h.Merchant.GiveGreenPoints(r.Context(), caller, engine.AccountID(req.Customer), payment)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	metrics.GreenPointsIssuedTotal.Add(userShare.Float64() + merchantShare.Float64())
	writeJSON(w, http.StatusOK, GreenPointsResponse{
		CustomerPoints: userShare.String(),
		MerchantPoints: merchantShare.String(),
	})
}

// RedeemResponse reports the tokens paid out for accrued red points.
type RedeemResponse struct {
	Tokens string `json:"tokens"`
}

// Redeem handles POST /v1/merchant/redeem.
func (h *Handlers) Redeem(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	tokens, err := h.Merchant.Redeem(r.Context(), caller)
	metrics.RecordRedemption(err)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RedeemResponse{Tokens: tokens.String()})
}

// MerchantStatusResponse combines subscription and point state.
type MerchantStatusResponse struct {
	Expiry  *int64 `json:"expiry,omitempty"`
	Account any    `json:"account,omitempty"`
}

// GetMerchant handles GET /v1/merchant/{account}.
func (h *Handlers) GetMerchant(w http.ResponseWriter, r *http.Request) {
	account := engine.AccountID(chi.URLParam(r, "account"))

	var resp MerchantStatusResponse
	if expiry, err := h.Merchant.Expiry(account); err == nil {
		ms := int64(expiry)
		resp.Expiry = &ms
	}
	if acct, err := h.Merchant.GetAccount(account); err == nil {
		resp.Account = acct
	}
	if resp.Expiry == nil && resp.Account == nil {
		writeError(w, http.StatusNotFound, "no merchant record found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
