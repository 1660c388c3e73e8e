// Package market implements the market lifecycle engine: market creation,
// bet placement, oracle-gated resolution, dispute adjudication, and
// fee-deducted claim settlement, plus the HTTP handlers exposing them.
//
// Every state-changing operation runs under a single mutex and commits its
// writes through grouped store calls, so each operation is atomic with
// respect to the ledger, the market store, the bet book, and the dispute
// record. The oracle call is the only point where an operation blocks, and
// its failure aborts the operation with no state change.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matchbook/market-engine/internal/exposure"
	"github.com/matchbook/market-engine/internal/fixture"
	"github.com/matchbook/market-engine/internal/metrics"
	"github.com/matchbook/market-engine/internal/model"
	"github.com/matchbook/market-engine/internal/odds"
	"github.com/matchbook/market-engine/internal/oracle"
	"github.com/matchbook/market-engine/internal/store"
)

// Default odds assigned when the caller opts out of oracle generation.
const (
	defaultOddsTeam1 = "2.00"
	defaultOddsDraw  = "3.00"
	defaultOddsTeam2 = "2.00"
)

// Config holds the engine's economic parameters.
type Config struct {
	// InitialBalance is granted to every identity on first interaction.
	InitialBalance int64

	// ProtocolFeeBps is the claim-time fee in basis points (0-10000).
	// Fees are deducted from payouts and credited nowhere.
	ProtocolFeeBps int64

	// MinOdds and MaxOdds bound oracle-generated odds. Zero values fall
	// back to 1.50 and 5.00.
	MinOdds decimal.Decimal
	MaxOdds decimal.Decimal
}

// Service orchestrates the market lifecycle. Uses a mutex for serialized
// operation execution (single-instance). For horizontal scaling, replace
// with distributed locking or database-level optimistic concurrency.
type Service struct {
	store   store.Store
	gateway oracle.Gateway        // nil → oracle-dependent operations fail
	render  oracle.SourceRenderer // nil → resolve/dispute fail
	limiter *exposure.Limiter     // nil or zero limits → no exposure checks
	hub     *EventHub             // optional WebSocket hub for broadcasts
	cfg     Config
	mu      sync.Mutex
}

// NewService creates a new market engine service. Pass nil for gateway,
// renderer, limiter, or hub to disable the corresponding feature.
func NewService(st store.Store, gw oracle.Gateway, renderer oracle.SourceRenderer,
	limiter *exposure.Limiter, hub *EventHub, cfg Config) *Service {
	if cfg.MinOdds.IsZero() {
		cfg.MinOdds = decimal.NewFromFloat(1.50)
	}
	if cfg.MaxOdds.IsZero() {
		cfg.MaxOdds = decimal.NewFromFloat(5.00)
	}
	return &Service{
		store:   st,
		gateway: gw,
		render:  renderer,
		limiter: limiter,
		hub:     hub,
		cfg:     cfg,
	}
}

// ensureBalance lazily grants the configured starting balance to identities
// the ledger has not seen, and returns the current balance either way.
func (s *Service) ensureBalance(ctx context.Context, user string) (int64, error) {
	bal, seen, err := s.store.GetBalance(ctx, user)
	if err != nil {
		return 0, err
	}
	if !seen {
		bal = s.cfg.InitialBalance
		if err := s.store.SetBalance(ctx, user, bal); err != nil {
			return 0, err
		}
	}
	return bal, nil
}

// CreateMarketParams are the caller-supplied inputs for CreateMarket.
type CreateMarketParams struct {
	Team1         string
	Team2         string
	League        string
	MatchDate     string
	ResolutionURL string
	GenerateOdds  bool
	FixtureID     string
}

// CreateMarket validates the fixture, optionally asks the oracle for odds,
// and stores a new open market with the next sequential ID. No balance
// moves; the creator's balance is initialized if this is their first call.
func (s *Service) CreateMarket(ctx context.Context, creator string, p CreateMarketParams) (*model.Market, error) {
	if err := fixture.Validate(p.Team1, p.Team2, p.MatchDate, p.ResolutionURL); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ensureBalance(ctx, creator); err != nil {
		return nil, err
	}

	oddsTeam1, oddsDraw, oddsTeam2 := defaultOddsTeam1, defaultOddsDraw, defaultOddsTeam2
	oddsSource := "default"

	if p.GenerateOdds {
		generated, err := s.generateOdds(ctx, p)
		if err != nil {
			return nil, err
		}
		oddsTeam1, oddsDraw, oddsTeam2 = generated.OddsTeam1, generated.OddsDraw, generated.OddsTeam2
		oddsSource = "generated"
	}

	id, err := s.store.MarketCount(ctx)
	if err != nil {
		return nil, err
	}

	m := &model.Market{
		ID:            id,
		Creator:       creator,
		Team1:         p.Team1,
		Team2:         p.Team2,
		League:        p.League,
		MatchDate:     p.MatchDate,
		ResolutionURL: p.ResolutionURL,
		OddsTeam1:     oddsTeam1,
		OddsDraw:      oddsDraw,
		OddsTeam2:     oddsTeam2,
		Phase:         model.PhaseOpen,
		Winner:        model.WinnerUnresolved,
		TotalPool:     0,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreateMarket(ctx, m); err != nil {
		return nil, err
	}

	metrics.MarketsCreated.WithLabelValues(oddsSource).Inc()
	metrics.OpenMarkets.Inc()

	slog.Info("market created",
		"id", m.ID,
		"fixture", p.Team1+" vs "+p.Team2,
		"league", p.League,
		"odds_source", oddsSource,
		"creator", creator,
	)

	s.broadcast(Event{Type: "market_created", MarketID: m.ID, User: creator, Phase: string(m.Phase)})
	return m, nil
}

// generateOdds asks the oracle for a bookmaker-style odds triple and
// rejects answers violating the acceptance criteria.
func (s *Service) generateOdds(ctx context.Context, p CreateMarketParams) (*oracle.OddsAnswer, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", model.ErrOracle)
	}

	start := time.Now()
	raw, err := s.gateway.Ask(ctx, oracle.OddsPrompt(p.Team1, p.Team2, p.League, p.MatchDate), oracle.OddsCriteria)
	metrics.ObserveOracleCall("odds", start, err)
	if err != nil {
		return nil, err
	}

	answer, err := oracle.DecodeOdds(raw)
	if err != nil {
		return nil, err
	}
	if err := odds.ValidateGenerated(answer.OddsTeam1, answer.OddsDraw, answer.OddsTeam2,
		s.cfg.MinOdds, s.cfg.MaxOdds); err != nil {
		return nil, fmt.Errorf("%w: generated odds rejected: %v", model.ErrOracle, err)
	}
	return answer, nil
}

// PlaceBet stakes amount on an outcome of an open market. The potential
// payout is fixed now, from the market's stored odds, and never recomputed.
// Preconditions fail in order: market exists, market open, outcome valid,
// amount positive, balance sufficient, exposure within limits.
func (s *Service) PlaceBet(ctx context.Context, bettor string, marketID int64, outcome model.Outcome, amount int64) (*model.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Phase != model.PhaseOpen {
		return nil, fmt.Errorf("market %d is %s: %w", marketID, m.Phase, model.ErrInvalidPhase)
	}
	if !outcome.Valid() {
		return nil, fmt.Errorf("outcome %d: %w", outcome, model.ErrInvalidOutcome)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("stake %d: %w", amount, model.ErrInvalidAmount)
	}

	bal, err := s.ensureBalance(ctx, bettor)
	if err != nil {
		return nil, err
	}
	if bal < amount {
		return nil, fmt.Errorf("balance %d, stake %d: %w", bal, amount, model.ErrInsufficientFunds)
	}

	if s.limiter.Enabled() {
		open, err := s.openStakes(ctx, bettor)
		if err != nil {
			return nil, err
		}
		if err := s.limiter.Check(marketID, m.League, amount, open); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrExposureLimit, err)
		}
	}

	o, err := odds.Parse(m.Odds(outcome))
	if err != nil {
		return nil, fmt.Errorf("market %d stored odds: %w", marketID, err)
	}

	book, err := s.store.MarketBets(ctx, marketID)
	if err != nil {
		return nil, err
	}

	bet := &model.Bet{
		User:            bettor,
		MarketID:        marketID,
		Seq:             int64(len(book)),
		Outcome:         outcome,
		Amount:          amount,
		PotentialPayout: odds.Payout(amount, o),
		Claimed:         false,
		PlacedAt:        time.Now().UTC(),
	}

	if err := s.store.AppendBet(ctx, bet, bal-amount, m.TotalPool+amount); err != nil {
		return nil, err
	}

	metrics.BetsTotal.WithLabelValues(outcome.String()).Inc()
	metrics.StakeVolume.Add(float64(amount))

	slog.Info("bet placed",
		"market", marketID,
		"user", bettor,
		"outcome", outcome.String(),
		"amount", amount,
		"potential_payout", bet.PotentialPayout,
	)

	s.broadcast(Event{Type: "bet_placed", MarketID: marketID, User: bettor,
		Outcome: outcome.String(), Amount: amount})
	return bet, nil
}

// openStakes collects the bettor's unresolved stakes for exposure checks.
func (s *Service) openStakes(ctx context.Context, user string) ([]exposure.OpenStake, error) {
	bets, err := s.store.UserBets(ctx, user)
	if err != nil {
		return nil, err
	}

	leagues := make(map[int64]string)
	phases := make(map[int64]model.Phase)
	var open []exposure.OpenStake
	for _, b := range bets {
		if _, ok := phases[b.MarketID]; !ok {
			m, err := s.store.GetMarket(ctx, b.MarketID)
			if err != nil {
				return nil, err
			}
			leagues[b.MarketID] = m.League
			phases[b.MarketID] = m.Phase
		}
		if phases[b.MarketID] != model.PhaseOpen {
			continue
		}
		open = append(open, exposure.OpenStake{
			MarketID: b.MarketID,
			League:   leagues[b.MarketID],
			Amount:   b.Amount,
		})
	}
	return open, nil
}

// Resolve asks the oracle for the fixture's result and moves the market
// from open to resolved. A "match not played" answer leaves the market
// untouched; callers retry by invoking Resolve again later. This is the
// only path from open to resolved.
func (s *Service) Resolve(ctx context.Context, marketID int64) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Phase != model.PhaseOpen {
		return nil, fmt.Errorf("market %d is %s: %w", marketID, m.Phase, model.ErrInvalidPhase)
	}

	answer, err := s.fetchResolution(ctx, m)
	if err != nil {
		return nil, err
	}
	if answer.Winner == model.WinnerUnresolved {
		return nil, fmt.Errorf("market %d: %w", marketID, model.ErrMatchNotPlayed)
	}

	if err := s.store.SetMarketOutcome(ctx, marketID, model.PhaseResolved, answer.Winner); err != nil {
		return nil, err
	}
	m.Phase = model.PhaseResolved
	m.Winner = answer.Winner

	metrics.OpenMarkets.Dec()

	slog.Info("market resolved",
		"market", marketID,
		"winner", answer.Winner.String(),
		"score", fmt.Sprintf("%d-%d", answer.ScoreTeam1, answer.ScoreTeam2),
	)

	s.broadcast(Event{Type: "market_resolved", MarketID: marketID,
		Winner: answer.Winner.String(), Phase: string(model.PhaseResolved)})
	return m, nil
}

// fetchResolution renders the resolution source and asks the oracle for
// the result.
func (s *Service) fetchResolution(ctx context.Context, m *model.Market) (*oracle.ResolutionAnswer, error) {
	if s.gateway == nil || s.render == nil {
		return nil, fmt.Errorf("%w: no gateway configured", model.ErrOracle)
	}

	content, err := s.render.Render(ctx, m.ResolutionURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := s.gateway.Ask(ctx,
		oracle.ResolutionPrompt(m.Team1, m.Team2, m.MatchDate, m.ResolutionURL, content),
		oracle.ResolutionCriteria)
	metrics.ObserveOracleCall("resolution", start, err)
	if err != nil {
		return nil, err
	}
	return oracle.DecodeResolution(raw)
}

// Dispute challenges a resolved market with a stake. The stake is debited,
// the dispute recorded, and the oracle re-adjudicates — all within this one
// operation. Upheld: the winner is corrected and the disputer is credited
// twice the stake. Rejected: the stake is forfeited. Either way the market
// returns to resolved and can never be disputed again. If the oracle fails
// nothing is persisted: no stake taken, no dispute recorded.
func (s *Service) Dispute(ctx context.Context, disputer string, marketID int64, claimedWinner model.Winner, stake int64) (*model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.Phase != model.PhaseResolved {
		return nil, fmt.Errorf("market %d is %s: %w", marketID, m.Phase, model.ErrInvalidPhase)
	}

	existing, err := s.store.GetDispute(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("market %d: %w", marketID, model.ErrAlreadyDisputed)
	}

	if !claimedWinner.Valid() {
		return nil, fmt.Errorf("claimed winner %d: %w", claimedWinner, model.ErrInvalidOutcome)
	}
	if stake <= 0 {
		return nil, fmt.Errorf("stake %d: %w", stake, model.ErrInvalidAmount)
	}

	bal, err := s.ensureBalance(ctx, disputer)
	if err != nil {
		return nil, err
	}
	if bal < stake {
		return nil, fmt.Errorf("balance %d, stake %d: %w", bal, stake, model.ErrInsufficientFunds)
	}

	d := &model.Dispute{
		Disputer:      disputer,
		MarketID:      marketID,
		Stake:         stake,
		ClaimedWinner: claimedWinner,
		Status:        model.DisputePending,
		CreatedAt:     time.Now().UTC(),
	}

	verdict, err := s.adjudicate(ctx, m, claimedWinner)
	if err != nil {
		return nil, err
	}

	// Verdict in hand: stage the full effect and commit it in one call.
	// Stake return plus equal reward on upheld; stake burned on rejected.
	winner := m.Winner
	newBal := bal - stake
	d.Reasoning = verdict.Reasoning
	if verdict.DisputeValid {
		d.Status = model.DisputeUpheld
		winner = verdict.CorrectWinner
		newBal += 2 * stake
	} else {
		d.Status = model.DisputeRejected
	}

	if err := s.store.SettleDispute(ctx, d, model.PhaseResolved, winner, newBal); err != nil {
		return nil, err
	}

	metrics.DisputesTotal.WithLabelValues(string(d.Status)).Inc()

	slog.Info("dispute adjudicated",
		"market", marketID,
		"disputer", disputer,
		"verdict", string(d.Status),
		"original_winner", m.Winner.String(),
		"final_winner", winner.String(),
		"stake", stake,
	)

	s.broadcast(Event{Type: "dispute_settled", MarketID: marketID, User: disputer,
		Verdict: string(d.Status), Winner: winner.String()})
	return d, nil
}

// adjudicate re-fetches the resolution source and asks the oracle to
// re-evaluate the disputed result.
func (s *Service) adjudicate(ctx context.Context, m *model.Market, claimed model.Winner) (*oracle.AdjudicationAnswer, error) {
	if s.gateway == nil || s.render == nil {
		return nil, fmt.Errorf("%w: no gateway configured", model.ErrOracle)
	}

	content, err := s.render.Render(ctx, m.ResolutionURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := s.gateway.Ask(ctx,
		oracle.AdjudicationPrompt(m.Team1, m.Team2, m.Winner, claimed, content),
		oracle.AdjudicationCriteria)
	metrics.ObserveOracleCall("adjudication", start, err)
	if err != nil {
		return nil, err
	}
	return oracle.DecodeAdjudication(raw)
}

// Claim pays out the claimer's unclaimed winning bets on a resolved market,
// net of the protocol fee, and marks them claimed. Fails with
// ErrNothingToClaim when no bet qualifies — which is also what stops
// double-claiming. Returns the net amount credited.
func (s *Service) Claim(ctx context.Context, claimer string, marketID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return 0, err
	}
	if m.Phase != model.PhaseResolved {
		return 0, fmt.Errorf("market %d is %s: %w", marketID, m.Phase, model.ErrInvalidPhase)
	}

	bal, err := s.ensureBalance(ctx, claimer)
	if err != nil {
		return 0, err
	}

	book, err := s.store.MarketBets(ctx, marketID)
	if err != nil {
		return 0, err
	}

	var total int64
	var seqs []int64
	for _, b := range book {
		if b.User != claimer || b.Claimed || model.Winner(b.Outcome) != m.Winner {
			continue
		}
		fee := odds.Fee(b.PotentialPayout, s.cfg.ProtocolFeeBps)
		total += b.PotentialPayout - fee
		seqs = append(seqs, b.Seq)
	}

	if total == 0 {
		return 0, fmt.Errorf("market %d, user %s: %w", marketID, claimer, model.ErrNothingToClaim)
	}

	if err := s.store.SettleClaim(ctx, marketID, claimer, seqs, bal+total); err != nil {
		return 0, err
	}

	metrics.ClaimsTotal.Inc()

	slog.Info("winnings claimed",
		"market", marketID,
		"user", claimer,
		"bets", len(seqs),
		"net", total,
	)
	return total, nil
}

// --- Read-only queries ---

// Market returns a market by ID.
func (s *Service) Market(ctx context.Context, id int64) (*model.Market, error) {
	return s.store.GetMarket(ctx, id)
}

// Markets returns all markets in creation order.
func (s *Service) Markets(ctx context.Context) ([]model.Market, error) {
	return s.store.ListMarkets(ctx)
}

// Balance returns a user's balance; identities the ledger has never seen
// report the configured initial balance, matching lazy initialization.
func (s *Service) Balance(ctx context.Context, user string) (int64, error) {
	bal, seen, err := s.store.GetBalance(ctx, user)
	if err != nil {
		return 0, err
	}
	if !seen {
		return s.cfg.InitialBalance, nil
	}
	return bal, nil
}

// MarketBets returns a market's bet book in placement order; unknown
// markets yield an empty book.
func (s *Service) MarketBets(ctx context.Context, marketID int64) ([]model.Bet, error) {
	return s.store.MarketBets(ctx, marketID)
}

// UserBets returns every bet a user has placed, across all markets.
func (s *Service) UserBets(ctx context.Context, user string) ([]model.Bet, error) {
	return s.store.UserBets(ctx, user)
}

// MarketCount returns the number of markets ever created.
func (s *Service) MarketCount(ctx context.Context) (int64, error) {
	return s.store.MarketCount(ctx)
}

// Dispute record for a market; nil when the market was never disputed.
func (s *Service) DisputeRecord(ctx context.Context, marketID int64) (*model.Dispute, error) {
	return s.store.GetDispute(ctx, marketID)
}

func (s *Service) broadcast(e Event) {
	if s.hub != nil {
		s.hub.Broadcast(e)
	}
}
