// Package handlers implements the HTTP endpoints of the Kiln API.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/emberlabs/kiln/dispatch"
	"github.com/emberlabs/kiln/ledger/engine"
	"github.com/emberlabs/kiln/merchant"
	"github.com/emberlabs/kiln/pool"
)

// AccountHeader carries the caller identity, set by the authenticating
// proxy in front of the API.
const AccountHeader = "X-Kiln-Account"

// Handlers holds the service dependencies of every endpoint.
type Handlers struct {
	Log      *slog.Logger
	Pool     *pool.Pool
	Merchant *merchant.Service

	// Engines gives read access to the ledgers behind the pool, by
	// ledger name.
	Engines map[string]*engine.Engine

	// Controller is the identity presented to the engines for
	// restricted admin operations.
	Controller engine.AccountID

	// Directory resolves referral ancestry for the ancestors
	// endpoint. Optional.
	Directory engine.Directory

	// AdminToken gates the admin endpoints. Empty disables them.
	AdminToken string
}

type callerContextKey struct{}

// CallerFromContext returns the authenticated account, if any.
func CallerFromContext(ctx context.Context) (engine.AccountID, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(engine.AccountID)
	return caller, ok
}

// RequireCaller rejects requests without the account header and stores
// the caller in the request context.
func (h *Handlers) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := strings.TrimSpace(r.Header.Get(AccountHeader))
		if account == "" {
			writeError(w, http.StatusUnauthorized, "missing "+AccountHeader+" header")
			return
		}
		ctx := context.WithValue(r.Context(), callerContextKey{}, engine.AccountID(account))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates a route on the configured bearer token.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetIPFromRequest extracts the client IP, honoring proxy headers.
func GetIPFromRequest(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps service sentinels to HTTP statuses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBurnAmountInsufficient),
		errors.Is(err, engine.ErrNotMultipleOfUnit),
		errors.Is(err, merchant.ErrInsufficientPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrNoAccountFound),
		errors.Is(err, merchant.ErrNoMerchantFound),
		errors.Is(err, pool.ErrUnknownLedger):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrWithdrawalNotAllowed),
		errors.Is(err, merchant.ErrNothingToRedeem),
		errors.Is(err, pool.ErrLedgerExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrRestrictedCaller),
		errors.Is(err, merchant.ErrSubscriptionExpired),
		errors.Is(err, dispatch.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, dispatch.ErrPaused):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrTransferFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		h.Log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
