package model

import "errors"

// Sentinel errors for the engine's failure taxonomy. Every operation fails
// atomically: an error means no state changed.
var (
	ErrMarketNotFound    = errors.New("market does not exist")
	ErrInvalidPhase      = errors.New("operation not allowed in current market phase")
	ErrInvalidOutcome    = errors.New("invalid outcome")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrAlreadyDisputed   = errors.New("market already disputed")
	ErrNothingToClaim    = errors.New("no winnings to claim")
	ErrExposureLimit     = errors.New("open stake limit exceeded")

	// ErrOracle covers consensus failures and schema-invalid answers.
	ErrOracle = errors.New("oracle call failed")

	// ErrMatchNotPlayed is returned by resolve when the oracle reports the
	// fixture has not been played yet. Retryable: re-invoke resolve later.
	ErrMatchNotPlayed = errors.New("match has not been played yet")
)
