package exposure_test

import (
	"errors"
	"testing"

	"github.com/matchbook/market-engine/internal/exposure"
)

func TestCheck_Disabled(t *testing.T) {
	l := exposure.NewLimiter(0, 0)
	if l.Enabled() {
		t.Fatal("zero limits should be disabled")
	}
	if err := l.Check(1, "Premier League", 1_000_000, nil); err != nil {
		t.Fatalf("disabled limiter should allow anything: %v", err)
	}
}

func TestCheck_PerMarket(t *testing.T) {
	l := exposure.NewLimiter(500, 0)

	open := []exposure.OpenStake{
		{MarketID: 1, League: "Premier League", Amount: 400},
		{MarketID: 2, League: "Premier League", Amount: 400},
	}

	// 400 + 100 = 500, exactly at the limit: allowed.
	if err := l.Check(1, "Premier League", 100, open); err != nil {
		t.Fatalf("stake at limit should pass: %v", err)
	}

	// One more unit exceeds.
	if err := l.Check(1, "Premier League", 101, open); !errors.Is(err, exposure.ErrPerMarketLimit) {
		t.Fatalf("got %v, want ErrPerMarketLimit", err)
	}

	// Other markets in the league don't count toward the per-market cap.
	if err := l.Check(3, "Premier League", 500, open); err != nil {
		t.Fatalf("fresh market should pass: %v", err)
	}
}

func TestCheck_PerLeague(t *testing.T) {
	l := exposure.NewLimiter(0, 1000)

	open := []exposure.OpenStake{
		{MarketID: 1, League: "Premier League", Amount: 600},
		{MarketID: 2, League: "Premier League", Amount: 300},
		{MarketID: 3, League: "Serie A", Amount: 900},
	}

	if err := l.Check(4, "Premier League", 100, open); err != nil {
		t.Fatalf("aggregate at limit should pass: %v", err)
	}
	if err := l.Check(4, "Premier League", 101, open); !errors.Is(err, exposure.ErrPerLeagueLimit) {
		t.Fatalf("got %v, want ErrPerLeagueLimit", err)
	}

	// A different league has its own budget.
	if err := l.Check(5, "Bundesliga", 1000, open); err != nil {
		t.Fatalf("other league should pass: %v", err)
	}
}
