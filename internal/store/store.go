// Package store defines the persistence interface for the market engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"

	"github.com/matchbook/market-engine/internal/model"
)

// Store is the persistence interface. Compound mutations (AppendBet,
// SettleClaim, SettleDispute) must commit all of their writes atomically:
// the engine stages an operation's full effect in memory and hands it over
// in one call, so a crash can never leave the ledger half-updated.
type Store interface {
	// --- Markets ---

	// CreateMarket persists a new market with its ID already assigned.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by ID. Returns model.ErrMarketNotFound
	// when absent.
	GetMarket(ctx context.Context, id int64) (*model.Market, error)

	// ListMarkets returns all markets in ID order.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// MarketCount returns the number of markets ever created; doubles as
	// the next sequential market ID.
	MarketCount(ctx context.Context) (int64, error)

	// SetMarketOutcome updates a market's phase and winner.
	SetMarketOutcome(ctx context.Context, id int64, phase model.Phase, winner model.Winner) error

	// --- Balances ---

	// GetBalance returns a user's balance and whether the user has been
	// seen before. Unknown users report (0, false, nil); the engine's
	// lazy-initialization policy decides what that means.
	GetBalance(ctx context.Context, user string) (int64, bool, error)

	// SetBalance writes a user's balance, creating the entry if needed.
	SetBalance(ctx context.Context, user string, amount int64) error

	// --- Bets ---

	// AppendBet atomically appends a bet to its market's book, writes the
	// bettor's debited balance, and writes the market's new total pool.
	AppendBet(ctx context.Context, bet *model.Bet, bettorBalance, totalPool int64) error

	// MarketBets returns a market's bet book in placement order. An
	// unknown market yields an empty book, not an error.
	MarketBets(ctx context.Context, marketID int64) ([]model.Bet, error)

	// UserBets returns every bet a user placed, across all markets.
	UserBets(ctx context.Context, user string) ([]model.Bet, error)

	// SettleClaim atomically marks the given bets claimed and writes the
	// claimer's credited balance.
	SettleClaim(ctx context.Context, marketID int64, user string, claimedSeqs []int64, newBalance int64) error

	// --- Disputes ---

	// GetDispute returns the dispute for a market, or nil when the market
	// has never been disputed.
	GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error)

	// SettleDispute atomically records an adjudicated dispute, writes the
	// market's final phase and winner, and writes the disputer's balance.
	SettleDispute(ctx context.Context, d *model.Dispute, phase model.Phase, winner model.Winner, disputerBalance int64) error
}
