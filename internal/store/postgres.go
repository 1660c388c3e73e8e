package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matchbook/market-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
//
// Tables: markets (keyed by sequential id), balances (keyed by user_id),
// bets (keyed by market_id + seq), disputes (keyed by market_id; absence
// means never disputed). Compound mutations run in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO markets (id, creator, team1, team2, league, match_date, resolution_url,
		                      odds_team1, odds_draw, odds_team2, phase, winner, total_pool, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.Creator, m.Team1, m.Team2, m.League, m.MatchDate, m.ResolutionURL,
		m.OddsTeam1, m.OddsDraw, m.OddsTeam2, m.Phase, m.Winner, m.TotalPool, m.CreatedAt,
	)
	return err
}

const marketColumns = `id, creator, team1, team2, league, match_date, resolution_url,
	odds_team1, odds_draw, odds_team2, phase, winner, total_pool, created_at`

func scanMarket(row pgx.Row) (*model.Market, error) {
	var m model.Market
	err := row.Scan(&m.ID, &m.Creator, &m.Team1, &m.Team2, &m.League, &m.MatchDate,
		&m.ResolutionURL, &m.OddsTeam1, &m.OddsDraw, &m.OddsTeam2,
		&m.Phase, &m.Winner, &m.TotalPool, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) MarketCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n)
	return n, err
}

func (s *PostgresStore) SetMarketOutcome(ctx context.Context, id int64, phase model.Phase, winner model.Winner) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET phase = $2, winner = $3 WHERE id = $1`,
		id, phase, winner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	return nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, user string) (int64, bool, error) {
	var bal int64
	err := s.pool.QueryRow(ctx,
		`SELECT amount FROM balances WHERE user_id = $1`, user).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get balance %s: %w", user, err)
	}
	return bal, true, nil
}

func (s *PostgresStore) SetBalance(ctx context.Context, user string, amount int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO balances (user_id, amount) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET amount = EXCLUDED.amount`,
		user, amount)
	return err
}

func (s *PostgresStore) AppendBet(ctx context.Context, bet *model.Bet, bettorBalance, totalPool int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bets (market_id, seq, user_id, outcome, amount, potential_payout, claimed, placed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			bet.MarketID, bet.Seq, bet.User, bet.Outcome, bet.Amount,
			bet.PotentialPayout, bet.Claimed, bet.PlacedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO balances (user_id, amount) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO UPDATE SET amount = EXCLUDED.amount`,
			bet.User, bettorBalance); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE markets SET total_pool = $2 WHERE id = $1`,
			bet.MarketID, totalPool)
		return err
	})
}

const betColumns = `market_id, seq, user_id, outcome, amount, potential_payout, claimed, placed_at`

func scanBets(rows pgx.Rows) ([]model.Bet, error) {
	var bets []model.Bet
	for rows.Next() {
		var b model.Bet
		if err := rows.Scan(&b.MarketID, &b.Seq, &b.User, &b.Outcome, &b.Amount,
			&b.PotentialPayout, &b.Claimed, &b.PlacedAt); err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (s *PostgresStore) MarketBets(ctx context.Context, marketID int64) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE market_id = $1 ORDER BY seq`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

func (s *PostgresStore) UserBets(ctx context.Context, user string) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betColumns+` FROM bets WHERE user_id = $1 ORDER BY market_id, seq`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBets(rows)
}

func (s *PostgresStore) SettleClaim(ctx context.Context, marketID int64, user string, claimedSeqs []int64, newBalance int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE bets SET claimed = TRUE
			 WHERE market_id = $1 AND user_id = $2 AND seq = ANY($3) AND NOT claimed`,
			marketID, user, claimedSeqs)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != int64(len(claimedSeqs)) {
			return fmt.Errorf("claim on market %d: expected %d bets, updated %d",
				marketID, len(claimedSeqs), tag.RowsAffected())
		}
		_, err = tx.Exec(ctx,
			`UPDATE balances SET amount = $2 WHERE user_id = $1`, user, newBalance)
		return err
	})
}

func (s *PostgresStore) GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error) {
	var d model.Dispute
	err := s.pool.QueryRow(ctx,
		`SELECT disputer, market_id, stake, claimed_winner, status, reasoning, created_at
		 FROM disputes WHERE market_id = $1`, marketID).
		Scan(&d.Disputer, &d.MarketID, &d.Stake, &d.ClaimedWinner, &d.Status, &d.Reasoning, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute %d: %w", marketID, err)
	}
	return &d, nil
}

func (s *PostgresStore) SettleDispute(ctx context.Context, d *model.Dispute, phase model.Phase, winner model.Winner, disputerBalance int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		// Primary key on market_id enforces at-most-one-dispute even if
		// two engine instances race.
		if _, err := tx.Exec(ctx,
			`INSERT INTO disputes (disputer, market_id, stake, claimed_winner, status, reasoning, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			d.Disputer, d.MarketID, d.Stake, d.ClaimedWinner, d.Status, d.Reasoning, d.CreatedAt); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE markets SET phase = $2, winner = $3 WHERE id = $1`,
			d.MarketID, phase, winner); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`UPDATE balances SET amount = $2 WHERE user_id = $1`,
			d.Disputer, disputerBalance)
		return err
	})
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
