package engine

import "github.com/emberlabs/kiln/ledger/balance"

// AccountID identifies a ledger participant. The ledger does not
// interpret it; upstream authentication decides what it means.
type AccountID string

// Timestamp is a Unix time in milliseconds.
type Timestamp int64

// ReferralCoefficients accumulate the pre-boost base extractions of an
// account's descendants between its own withdrawals. They reset to
// zero every time the account withdraws.
type ReferralCoefficients struct {
	Direct   balance.Balance `json:"direct"`
	Indirect balance.Balance `json:"indirect"`
}

// Account is a participant's burn ledger record.
//
// BalancePaid + BalanceDue always equals RewardMultiple × AmountBurned
// for accounts whose history never clamped at a saturation bound.
type Account struct {
	AmountBurned balance.Balance `json:"amount_burned"`
	BalanceDue   balance.Balance `json:"balance_due"`
	BalancePaid  balance.Balance `json:"balance_paid"`

	CreationTime    Timestamp  `json:"creation_time"`
	LastBurn        Timestamp  `json:"last_burn"`
	LastWithdrawal  *Timestamp `json:"last_withdrawal,omitempty"`
	LastInteraction Timestamp  `json:"last_interaction"`

	ReferralCoefficients ReferralCoefficients `json:"referral_boost_coefficients"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastWithdrawal != nil {
		ts := *a.LastWithdrawal
		c.LastWithdrawal = &ts
	}
	return &c
}
