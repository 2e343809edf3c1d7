package engine

import "errors"

var (
	// ErrBurnAmountInsufficient is returned when a burn is below the
	// ledger's configured minimum.
	ErrBurnAmountInsufficient = errors.New("burn amount insufficient")

	// ErrNotMultipleOfUnit is returned when a burn is not a whole
	// multiple of the burn unit.
	ErrNotMultipleOfUnit = errors.New("amount must be a multiple of the burn unit")

	// ErrNoAccountFound is returned when an operation targets an
	// account the ledger has never seen.
	ErrNoAccountFound = errors.New("no account found")

	// ErrRestrictedCaller is returned when a restricted operation is
	// attempted by anyone other than the configured controller.
	ErrRestrictedCaller = errors.New("caller is not permitted to execute this operation")

	// ErrWithdrawalNotAllowed is returned when no allowance has
	// accrued since the last interaction.
	ErrWithdrawalNotAllowed = errors.New("withdrawal not allowed")

	// ErrExceedsBalance is returned when a requested movement is
	// larger than the balance backing it.
	ErrExceedsBalance = errors.New("amount exceeds available balance")

	// ErrTransferFailed is returned when the treasury refuses or
	// fails a payout.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrCrossCallFailed is returned when a delegated ledger call
	// fails for a reason the caller cannot interpret.
	ErrCrossCallFailed = errors.New("cross-ledger call failed")
)
