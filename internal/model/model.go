// Package model defines the core domain types shared across the market engine.
// Balances and stakes are integer units of play-money; odds are kept as
// decimal strings exactly as the oracle or the defaults produced them.
package model

import "time"

// Phase is the lifecycle state of a market.
//
// open --resolve--> resolved --dispute--> disputed --verdict--> resolved.
// No transition ever returns to open. The disputed phase exists only
// inside a single dispute operation and is never observed by other calls.
type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseResolved Phase = "resolved"
	PhaseDisputed Phase = "disputed"
)

// Outcome identifies one of the three bettable results of a fixture.
type Outcome int8

const (
	OutcomeDraw  Outcome = 0
	OutcomeTeam1 Outcome = 1
	OutcomeTeam2 Outcome = 2
)

// Valid reports whether o is a bettable outcome.
func (o Outcome) Valid() bool { return o >= OutcomeDraw && o <= OutcomeTeam2 }

func (o Outcome) String() string {
	switch o {
	case OutcomeDraw:
		return "draw"
	case OutcomeTeam1:
		return "team1"
	case OutcomeTeam2:
		return "team2"
	}
	return "invalid"
}

// Winner is the resolved result of a market. WinnerUnresolved (-1) doubles
// as the oracle's "match not played yet" answer.
type Winner int8

const (
	WinnerUnresolved Winner = -1
	WinnerDraw       Winner = 0
	WinnerTeam1      Winner = 1
	WinnerTeam2      Winner = 2
)

// Valid reports whether w is a value the oracle may legally return.
func (w Winner) Valid() bool { return w >= WinnerUnresolved && w <= WinnerTeam2 }

func (w Winner) String() string {
	switch w {
	case WinnerUnresolved:
		return "unresolved"
	case WinnerDraw:
		return "draw"
	case WinnerTeam1:
		return "team1"
	case WinnerTeam2:
		return "team2"
	}
	return "invalid"
}

// DisputeStatus is the terminal state of a dispute. A dispute is created
// and adjudicated within one operation, so "pending" is only ever seen
// inside that operation.
type DisputeStatus string

const (
	DisputePending  DisputeStatus = "pending"
	DisputeUpheld   DisputeStatus = "upheld"
	DisputeRejected DisputeStatus = "rejected"
)

// Market is one wagering instance tied to a single real-world fixture and
// one resolution source. IDs are assigned sequentially from zero.
// TotalPool always equals the sum of Amount over all bets on the market.
type Market struct {
	ID            int64     `json:"id" db:"id"`
	Creator       string    `json:"creator" db:"creator"`
	Team1         string    `json:"team1" db:"team1"`
	Team2         string    `json:"team2" db:"team2"`
	League        string    `json:"league" db:"league"`
	MatchDate     string    `json:"match_date" db:"match_date"`
	ResolutionURL string    `json:"resolution_url" db:"resolution_url"`
	OddsTeam1     string    `json:"odds_team1" db:"odds_team1"`
	OddsDraw      string    `json:"odds_draw" db:"odds_draw"`
	OddsTeam2     string    `json:"odds_team2" db:"odds_team2"`
	Phase         Phase     `json:"phase" db:"phase"`
	Winner        Winner    `json:"winner" db:"winner"`
	TotalPool     int64     `json:"total_pool" db:"total_pool"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Odds returns the decimal odds string stored for the given outcome.
func (m *Market) Odds(o Outcome) string {
	switch o {
	case OutcomeTeam1:
		return m.OddsTeam1
	case OutcomeTeam2:
		return m.OddsTeam2
	default:
		return m.OddsDraw
	}
}

// Bet is a single stake by one identity on one outcome of one market.
// Seq is the bet's position in the market's bet book. PotentialPayout is
// fixed at placement time and never recomputed; Claimed flips to true at
// most once, on a successful claim.
type Bet struct {
	User            string    `json:"user" db:"user_id"`
	MarketID        int64     `json:"market_id" db:"market_id"`
	Seq             int64     `json:"seq" db:"seq"`
	Outcome         Outcome   `json:"outcome" db:"outcome"`
	Amount          int64     `json:"amount" db:"amount"`
	PotentialPayout int64     `json:"potential_payout" db:"potential_payout"`
	Claimed         bool      `json:"claimed" db:"claimed"`
	PlacedAt        time.Time `json:"placed_at" db:"placed_at"`
}

// Dispute is a staked challenge to a resolved market's outcome. At most one
// exists per market, ever; its status is fixed by the oracle verdict in the
// same operation that created it.
type Dispute struct {
	Disputer      string        `json:"disputer" db:"disputer"`
	MarketID      int64         `json:"market_id" db:"market_id"`
	Stake         int64         `json:"stake" db:"stake"`
	ClaimedWinner Winner        `json:"claimed_winner" db:"claimed_winner"`
	Status        DisputeStatus `json:"status" db:"status"`
	Reasoning     string        `json:"reasoning" db:"reasoning"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
