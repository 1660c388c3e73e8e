package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matchbook/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Balances are not cached:
// they change on nearly every operation and a stale balance would break the
// sufficiency checks.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	s.rdb.Del(ctx, marketCountKey)
	return nil
}

func (s *CachedStore) SetMarketOutcome(ctx context.Context, id int64, phase model.Phase, winner model.Winner) error {
	if err := s.primary.SetMarketOutcome(ctx, id, phase, winner); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(id))
	return nil
}

func (s *CachedStore) SetBalance(ctx context.Context, user string, amount int64) error {
	return s.primary.SetBalance(ctx, user, amount)
}

func (s *CachedStore) AppendBet(ctx context.Context, bet *model.Bet, bettorBalance, totalPool int64) error {
	if err := s.primary.AppendBet(ctx, bet, bettorBalance, totalPool); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(bet.MarketID), betsKey(bet.MarketID))
	return nil
}

func (s *CachedStore) SettleClaim(ctx context.Context, marketID int64, user string, claimedSeqs []int64, newBalance int64) error {
	if err := s.primary.SettleClaim(ctx, marketID, user, claimedSeqs, newBalance); err != nil {
		return err
	}
	s.rdb.Del(ctx, betsKey(marketID))
	return nil
}

func (s *CachedStore) SettleDispute(ctx context.Context, d *model.Dispute, phase model.Phase, winner model.Winner, disputerBalance int64) error {
	if err := s.primary.SettleDispute(ctx, d, phase, winner, disputerBalance); err != nil {
		return err
	}
	s.rdb.Del(ctx, marketKey(d.MarketID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) MarketBets(ctx context.Context, marketID int64) ([]model.Bet, error) {
	data, err := s.rdb.Get(ctx, betsKey(marketID)).Bytes()
	if err == nil {
		var bets []model.Bet
		if json.Unmarshal(data, &bets) == nil {
			return bets, nil
		}
	}

	bets, err := s.primary.MarketBets(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(bets); err == nil {
		s.rdb.Set(ctx, betsKey(marketID), data, s.ttl)
	}
	return bets, nil
}

func (s *CachedStore) MarketCount(ctx context.Context) (int64, error) {
	if n, err := s.rdb.Get(ctx, marketCountKey).Int64(); err == nil {
		return n, nil
	}

	n, err := s.primary.MarketCount(ctx)
	if err != nil {
		return 0, err
	}
	s.rdb.Set(ctx, marketCountKey, n, s.ttl)
	return n, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetBalance(ctx context.Context, user string) (int64, bool, error) {
	return s.primary.GetBalance(ctx, user)
}

func (s *CachedStore) UserBets(ctx context.Context, user string) ([]model.Bet, error) {
	return s.primary.UserBets(ctx, user)
}

func (s *CachedStore) GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error) {
	return s.primary.GetDispute(ctx, marketID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

const marketCountKey = "market:count"

func marketKey(id int64) string   { return fmt.Sprintf("market:%d", id) }
func betsKey(id int64) string     { return fmt.Sprintf("market:%d:bets", id) }
