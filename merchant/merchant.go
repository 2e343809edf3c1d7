// Package merchant implements the subscription-gated point mining
// variant: subscribed merchants issue green points on customer
// payments, green points convert into redeemable red points over time.
package merchant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/emberlabs/kiln/ledger/balance"
	"github.com/emberlabs/kiln/ledger/engine"
)

const (
	// MonthMilliseconds is one subscription month.
	MonthMilliseconds = 2_629_800_000

	// GreenPointsPerToken is the green points issued per token paid.
	GreenPointsPerToken = 100

	// Red point accrual of 5/100000 of green points per day.
	redRateNumerator   = 5
	redRateDenominator = 100_000

	// RedPointsPerToken converts accrued red points into tokens.
	RedPointsPerToken = 100

	// MaxSubscriptionMonths bounds a single payment's extension so the
	// expiry arithmetic stays within int64 milliseconds.
	MaxSubscriptionMonths = 1200

	// DefaultMerchantPercent and DefaultUserPercent split issued
	// green points between the merchant and the paying customer.
	DefaultMerchantPercent = 16
	DefaultUserPercent     = 84
)

var (
	// ErrInsufficientPayment is returned when a subscription payment
	// does not cover at least one month.
	ErrInsufficientPayment = errors.New("payment does not cover one subscription month")

	// ErrNoMerchantFound is returned for merchants that never
	// subscribed.
	ErrNoMerchantFound = errors.New("no merchant subscription found")

	// ErrSubscriptionExpired is returned when an expired merchant
	// tries to issue points.
	ErrSubscriptionExpired = errors.New("merchant subscription expired")

	// ErrNothingToRedeem is returned when no red points have accrued.
	ErrNothingToRedeem = errors.New("nothing to redeem")
)

// Account tracks a participant's points.
type Account struct {
	GreenPoints    balance.Balance  `json:"green_points"`
	RedeemedTokens balance.Balance  `json:"redeemed_tokens"`
	LastConversion engine.Timestamp `json:"last_conversion"`
	CreatedAt      engine.Timestamp `json:"created_at"`
}

func (a *Account) clone() *Account {
	c := *a
	return &c
}

// Config carries the service parameters.
type Config struct {
	// SubscriptionFee is the cost of one month.
	SubscriptionFee balance.Balance

	// MerchantPercent and UserPercent split issued green points.
	// They must sum to 100.
	MerchantPercent uint64
	UserPercent     uint64

	// DayMilliseconds is the red point accrual day length.
	DayMilliseconds int64

	Logger *slog.Logger
	Clock  clockwork.Clock
}

// Validate checks required fields and fills defaults.
func (c *Config) Validate() error {
	if c.SubscriptionFee.IsZero() {
		return errors.New("subscription fee is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.MerchantPercent == 0 && c.UserPercent == 0 {
		c.MerchantPercent = DefaultMerchantPercent
		c.UserPercent = DefaultUserPercent
	}
	if c.MerchantPercent+c.UserPercent != 100 {
		return errors.New("merchant and user percents must sum to 100")
	}
	if c.DayMilliseconds == 0 {
		c.DayMilliseconds = engine.DefaultDayMilliseconds
	}
	if c.DayMilliseconds < 0 {
		return errors.New("day milliseconds must be positive")
	}
	return nil
}

// Service runs merchant subscriptions and point accounting.
type Service struct {
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	expiries map[engine.AccountID]engine.Timestamp
	accounts map[engine.AccountID]*Account
}

// New validates the config and returns an empty service.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid merchant config: %w", err)
	}
	return &Service{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "merchant"),
		expiries: make(map[engine.AccountID]engine.Timestamp),
		accounts: make(map[engine.AccountID]*Account),
	}, nil
}

func (s *Service) now() engine.Timestamp {
	return engine.Timestamp(s.cfg.Clock.Now().UnixMilli())
}

// Subscribe extends the merchant's subscription by one month per whole
// subscription fee paid and returns the new expiry. A subscription
// expired more than a month ago restarts from now instead of
// back-filling the gap.
func (s *Service) Subscribe(_ context.Context, merchant engine.AccountID, payment balance.Balance) (engine.Timestamp, error) {
	months := payment.Div(s.cfg.SubscriptionFee).Uint64()
	if months == 0 {
		return 0, ErrInsufficientPayment
	}
	if months > MaxSubscriptionMonths {
		months = MaxSubscriptionMonths
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	current := now
	if expiry, ok := s.expiries[merchant]; ok && int64(expiry) >= int64(now)-MonthMilliseconds {
		current = expiry
	}

	newExpiry := engine.Timestamp(int64(current) + int64(months)*MonthMilliseconds)
	s.expiries[merchant] = newExpiry

	s.log.Info("subscription extended",
		"merchant", merchant,
		"months", months,
		"expiry", int64(newExpiry),
	)
	return newExpiry, nil
}

// Expiry returns the merchant's subscription expiry.
func (s *Service) Expiry(merchant engine.AccountID) (engine.Timestamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.expiries[merchant]
	if !ok {
		return 0, ErrNoMerchantFound
	}
	return expiry, nil
}

// GiveGreenPoints issues green points for a customer payment: the
// payment times GreenPointsPerToken, split between customer and
// merchant. The merchant must hold an unexpired subscription. Returns
// the customer's and the merchant's share.
func (s *Service) GiveGreenPoints(_ context.Context, merchant, customer engine.AccountID, payment balance.Balance) (balance.Balance, balance.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expiry, ok := s.expiries[merchant]
	if !ok {
		return balance.Zero(), balance.Zero(), ErrNoMerchantFound
	}
	if expiry < now {
		return balance.Zero(), balance.Zero(), ErrSubscriptionExpired
	}

	points := payment.MulUint64(GreenPointsPerToken)
	userShare := points.MulUint64(s.cfg.UserPercent).DivUint64(100)
	merchantShare := points.MulUint64(s.cfg.MerchantPercent).DivUint64(100)

	s.credit(customer, userShare, now)
	s.credit(merchant, merchantShare, now)

	s.log.Info("green points issued",
		"merchant", merchant,
		"customer", customer,
		"payment", payment.String(),
		"customer_points", userShare.String(),
		"merchant_points", merchantShare.String(),
	)
	return userShare, merchantShare, nil
}

// credit adds green points to an account, creating it if needed.
// Callers must hold s.mu.
func (s *Service) credit(id engine.AccountID, points balance.Balance, now engine.Timestamp) {
	acct, ok := s.accounts[id]
	if !ok {
		acct = &Account{CreatedAt: now, LastConversion: now}
		s.accounts[id] = acct
	}
	acct.GreenPoints = acct.GreenPoints.Add(points)
}

// RedPoints returns the red points accrued on the account since its
// last conversion: green points × 5/100000 per whole elapsed day.
func (s *Service) RedPoints(id engine.AccountID) (balance.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return balance.Zero(), engine.ErrNoAccountFound
	}
	return s.redPoints(acct), nil
}

// redPoints computes the accrual. Callers must hold s.mu.
func (s *Service) redPoints(acct *Account) balance.Balance {
	elapsed := int64(s.now()) - int64(acct.LastConversion)
	if elapsed < s.cfg.DayMilliseconds {
		return balance.Zero()
	}
	days := uint64(elapsed / s.cfg.DayMilliseconds)

	red := acct.GreenPoints.MulUint64(redRateNumerator).MulUint64(days).DivUint64(redRateDenominator)
	// Accrual never converts more green points than the account holds.
	return red.Min(acct.GreenPoints)
}

// Redeem converts the account's accrued red points into tokens: the
// red points leave the green balance and a hundredth of them pays out.
// Returns the redeemed token amount.
func (s *Service) Redeem(_ context.Context, id engine.AccountID) (balance.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return balance.Zero(), engine.ErrNoAccountFound
	}

	red := s.redPoints(acct)
	if red.IsZero() {
		return balance.Zero(), ErrNothingToRedeem
	}

	redeemable := red.DivUint64(RedPointsPerToken)
	acct.GreenPoints = acct.GreenPoints.Sub(red)
	acct.RedeemedTokens = acct.RedeemedTokens.Add(redeemable)
	acct.LastConversion = s.now()

	s.log.Info("points redeemed",
		"account", id,
		"red_points", red.String(),
		"tokens", redeemable.String(),
	)
	return redeemable, nil
}

// GetAccount returns a copy of the account's point balances.
func (s *Service) GetAccount(id engine.AccountID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[id]
	if !ok {
		return nil, engine.ErrNoAccountFound
	}
	return acct.clone(), nil
}
