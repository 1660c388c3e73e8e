// Package odds implements decimal-odds arithmetic for fixed-odds markets.
//
// Odds travel through the system as decimal strings ("2.50") and are parsed
// with shopspring/decimal at use time — never float64 for money. Payouts are
// floored to whole play-money units, matching how bookmakers round in the
// house's favor, and the computation is exact so results are reproducible
// across platforms.
package odds

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrMalformed is returned when an odds string does not parse as a
	// decimal number greater than 1.
	ErrMalformed = errors.New("odds: malformed decimal odds")

	// ErrOutOfRange is returned when generated odds fall outside the
	// configured [min, max] window.
	ErrOutOfRange = errors.New("odds: outside allowed range")

	// ErrOverround is returned when the total implied probability of a
	// generated odds triple is outside the bookmaker margin window.
	ErrOverround = errors.New("odds: implied probability outside 100-110% margin")
)

// Bookmaker margin window for generated odds: Σ 1/odds must land in
// [1.00, 1.10].
var (
	minOverround = decimal.NewFromInt(1)
	maxOverround = decimal.NewFromFloat(1.10)
)

// Parse converts a decimal odds string into a decimal.Decimal.
// Decimal odds below 1 would pay out less than the stake, so they are
// rejected as malformed.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if d.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%w: %q below 1.00", ErrMalformed, s)
	}
	return d, nil
}

// Payout computes floor(amount × odds) in whole play-money units.
func Payout(amount int64, odds decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(odds).Floor().IntPart()
}

// Fee computes floor(payout × feeBps / 10000). Pure integer arithmetic;
// feeBps is expected in [0, 10000].
func Fee(payout, feeBps int64) int64 {
	return payout * feeBps / 10000
}

// Implied returns the implied probability 1/odds.
func Implied(odds decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Div(odds)
}

// ValidateGenerated checks an oracle-generated odds triple: each leg must
// parse, sit inside [min, max], and the triple's total implied probability
// must land in the bookmaker margin window [100%, 110%].
func ValidateGenerated(team1, draw, team2 string, min, max decimal.Decimal) error {
	total := decimal.Zero
	for _, s := range []string{team1, draw, team2} {
		d, err := Parse(s)
		if err != nil {
			return err
		}
		if d.LessThan(min) || d.GreaterThan(max) {
			return fmt.Errorf("%w: %s not in [%s, %s]", ErrOutOfRange, s, min, max)
		}
		total = total.Add(Implied(d))
	}
	if total.LessThan(minOverround) || total.GreaterThan(maxOverround) {
		return fmt.Errorf("%w: total implied %s", ErrOverround, total.Round(4))
	}
	return nil
}
