package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/matchbook/market-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	markets  map[int64]*model.Market
	balances map[string]int64
	bets     map[int64][]model.Bet
	disputes map[int64]*model.Dispute
	nextID   int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markets:  make(map[int64]*model.Market),
		balances: make(map[string]int64),
		bets:     make(map[int64][]model.Bet),
		disputes: make(map[int64]*model.Dispute),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markets[m.ID]; exists {
		return fmt.Errorf("market %d already exists", m.ID)
	}

	// Store a copy to avoid external mutation.
	cp := *m
	s.markets[m.ID] = &cp
	if m.ID >= s.nextID {
		s.nextID = m.ID + 1
	}
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id int64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for id := int64(0); id < s.nextID; id++ {
		if m, ok := s.markets[id]; ok {
			markets = append(markets, *m)
		}
	}
	return markets, nil
}

func (s *MemoryStore) MarketCount(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID, nil
}

func (s *MemoryStore) SetMarketOutcome(_ context.Context, id int64, phase model.Phase, winner model.Winner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	m.Phase = phase
	m.Winner = winner
	return nil
}

func (s *MemoryStore) GetBalance(_ context.Context, user string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bal, ok := s.balances[user]
	return bal, ok, nil
}

func (s *MemoryStore) SetBalance(_ context.Context, user string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[user] = amount
	return nil
}

func (s *MemoryStore) AppendBet(_ context.Context, bet *model.Bet, bettorBalance, totalPool int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[bet.MarketID]
	if !ok {
		return fmt.Errorf("market %d: %w", bet.MarketID, model.ErrMarketNotFound)
	}

	s.bets[bet.MarketID] = append(s.bets[bet.MarketID], *bet)
	s.balances[bet.User] = bettorBalance
	m.TotalPool = totalPool
	return nil
}

func (s *MemoryStore) MarketBets(_ context.Context, marketID int64) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book := s.bets[marketID]
	out := make([]model.Bet, len(book))
	copy(out, book)
	return out, nil
}

func (s *MemoryStore) UserBets(_ context.Context, user string) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Bet
	for id := int64(0); id < s.nextID; id++ {
		for _, b := range s.bets[id] {
			if b.User == user {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) SettleClaim(_ context.Context, marketID int64, user string, claimedSeqs []int64, newBalance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.bets[marketID]
	for _, seq := range claimedSeqs {
		if seq < 0 || seq >= int64(len(book)) {
			return fmt.Errorf("bet %d/%d out of range", marketID, seq)
		}
		book[seq].Claimed = true
	}
	s.balances[user] = newBalance
	return nil
}

func (s *MemoryStore) GetDispute(_ context.Context, marketID int64) (*model.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[marketID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) SettleDispute(_ context.Context, d *model.Dispute, phase model.Phase, winner model.Winner, disputerBalance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[d.MarketID]
	if !ok {
		return fmt.Errorf("market %d: %w", d.MarketID, model.ErrMarketNotFound)
	}
	if _, exists := s.disputes[d.MarketID]; exists {
		return fmt.Errorf("market %d: %w", d.MarketID, model.ErrAlreadyDisputed)
	}

	cp := *d
	s.disputes[d.MarketID] = &cp
	m.Phase = phase
	m.Winner = winner
	s.balances[d.Disputer] = disputerBalance
	return nil
}
