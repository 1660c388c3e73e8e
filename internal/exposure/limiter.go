// Package exposure implements optional open-stake limits for bettors.
//
// Stakes on fixtures in the same league are correlated: a cup weekend can
// settle a dozen markets against the same bettor at once. The limiter caps
// a user's unresolved stake both per market and in aggregate per league.
// Limits of zero disable the corresponding check, which is the default.
package exposure

import (
	"errors"
	"fmt"
)

var (
	// ErrPerMarketLimit is returned when a bet would push the user's open
	// stake on one market beyond the per-market maximum.
	ErrPerMarketLimit = errors.New("exposure: per-market open stake limit exceeded")

	// ErrPerLeagueLimit is returned when a bet would push the user's
	// aggregate open stake across a league beyond the per-league maximum.
	ErrPerLeagueLimit = errors.New("exposure: per-league open stake limit exceeded")
)

// OpenStake is one unresolved stake held by a user.
type OpenStake struct {
	MarketID int64
	League   string
	Amount   int64
}

// Limiter enforces open-stake limits. Zero-valued limits are disabled.
type Limiter struct {
	// MaxPerMarket caps a user's total open stake on any single market.
	MaxPerMarket int64

	// MaxPerLeague caps a user's aggregate open stake across all open
	// markets in one league.
	MaxPerLeague int64
}

// NewLimiter creates a limiter with the given caps. Either cap may be zero
// to disable that check.
func NewLimiter(maxPerMarket, maxPerLeague int64) *Limiter {
	return &Limiter{MaxPerMarket: maxPerMarket, MaxPerLeague: maxPerLeague}
}

// Enabled reports whether any limit is active.
func (l *Limiter) Enabled() bool {
	return l != nil && (l.MaxPerMarket > 0 || l.MaxPerLeague > 0)
}

// Check validates whether staking amount on the given market respects the
// limits, given the user's existing open stakes.
func (l *Limiter) Check(marketID int64, league string, amount int64, open []OpenStake) error {
	if !l.Enabled() {
		return nil
	}

	inMarket := amount
	inLeague := amount
	for _, s := range open {
		if s.MarketID == marketID {
			inMarket += s.Amount
		}
		if s.League == league {
			inLeague += s.Amount
		}
	}

	if l.MaxPerMarket > 0 && inMarket > l.MaxPerMarket {
		return fmt.Errorf("%w: %d > %d on market %d", ErrPerMarketLimit, inMarket, l.MaxPerMarket, marketID)
	}
	if l.MaxPerLeague > 0 && inLeague > l.MaxPerLeague {
		return fmt.Errorf("%w: %d > %d in %s", ErrPerLeagueLimit, inLeague, l.MaxPerLeague, league)
	}
	return nil
}
