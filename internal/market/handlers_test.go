package market_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/matchbook/market-engine/internal/market"
	"github.com/matchbook/market-engine/internal/model"
)

// newTestServer wires a Service and Handler into a chi router, the way
// cmd/server mounts them.
func newTestServer(t *testing.T, gw *fakeGateway, rd *fakeRenderer) (*market.Service, chi.Router) {
	t.Helper()
	svc, _ := newEngine(t, gw, rd)
	h := market.NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return svc, r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHTTP_CreateMarket(t *testing.T) {
	_, router := newTestServer(t, nil, nil)

	w := doJSON(t, router, "POST", "/api/v1/markets", market.CreateMarketRequest{
		UserID:        "alice",
		Team1:         "Arsenal",
		Team2:         "Chelsea",
		League:        "Premier League",
		MatchDate:     "2026-09-12",
		ResolutionURL: "https://example.com/results",
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var m model.Market
	json.Unmarshal(w.Body.Bytes(), &m)
	if m.Team1 != "Arsenal" || m.Phase != model.PhaseOpen {
		t.Errorf("unexpected market: %+v", m)
	}
}

func TestHTTP_CreateMarket_MissingUser(t *testing.T) {
	_, router := newTestServer(t, nil, nil)

	w := doJSON(t, router, "POST", "/api/v1/markets", market.CreateMarketRequest{
		Team1: "Arsenal", Team2: "Chelsea",
		MatchDate: "2026-09-12", ResolutionURL: "https://example.com/r",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", w.Code)
	}
}

func TestHTTP_CreateMarket_InvalidFixture(t *testing.T) {
	_, router := newTestServer(t, nil, nil)

	w := doJSON(t, router, "POST", "/api/v1/markets", market.CreateMarketRequest{
		UserID: "alice", Team1: "Arsenal",
		MatchDate: "2026-09-12", ResolutionURL: "https://example.com/r",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing team, got %d", w.Code)
	}
}

func TestHTTP_BetFlow(t *testing.T) {
	gw := &fakeGateway{}
	rd := &fakeRenderer{content: "Arsenal 2-0 Chelsea"}
	_, router := newTestServer(t, gw, rd)

	w := doJSON(t, router, "POST", "/api/v1/markets", market.CreateMarketRequest{
		UserID: "alice", Team1: "Arsenal", Team2: "Chelsea",
		MatchDate: "2026-09-12", ResolutionURL: "https://example.com/results",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create market: %d %s", w.Code, w.Body.String())
	}
	var m model.Market
	json.Unmarshal(w.Body.Bytes(), &m)

	// Bet 100 on team1 at the default 2.00.
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/bets", m.ID), market.PlaceBetRequest{
		UserID: "bob", Outcome: model.OutcomeTeam1, Amount: 100,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("place bet: %d %s", w.Code, w.Body.String())
	}
	var bet model.Bet
	json.Unmarshal(w.Body.Bytes(), &bet)
	if bet.PotentialPayout != 200 {
		t.Errorf("expected payout 200, got %d", bet.PotentialPayout)
	}

	// Resolve team1.
	gw.push(`{"winner": 1, "score_team1": 2, "score_team2": 0}`)
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/resolve", m.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", w.Code, w.Body.String())
	}

	// Claim: fee 250 bps of 200 = 5, net 195, balance 1095.
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/claim", m.ID), market.ClaimRequest{UserID: "bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("claim: %d %s", w.Code, w.Body.String())
	}
	var claim market.ClaimResponse
	json.Unmarshal(w.Body.Bytes(), &claim)
	if claim.Net != 195 {
		t.Errorf("expected net 195, got %d", claim.Net)
	}
	if claim.Balance != 1095 {
		t.Errorf("expected balance 1095, got %d", claim.Balance)
	}
}

func TestHTTP_ErrorStatuses(t *testing.T) {
	gw := &fakeGateway{}
	rd := &fakeRenderer{content: "Arsenal 2-0 Chelsea"}
	svc, router := newTestServer(t, gw, rd)
	m := createMarket(t, svc, "alice")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{
			name: "unknown market", method: "GET",
			path: "/api/v1/markets/42", want: http.StatusNotFound,
		},
		{
			name: "malformed market id", method: "GET",
			path: "/api/v1/markets/abc", want: http.StatusBadRequest,
		},
		{
			name: "insufficient funds", method: "POST",
			path: fmt.Sprintf("/api/v1/markets/%d/bets", m.ID),
			body: market.PlaceBetRequest{UserID: "bob", Outcome: model.OutcomeTeam1, Amount: 5000},
			want: http.StatusPaymentRequired,
		},
		{
			name: "invalid outcome", method: "POST",
			path: fmt.Sprintf("/api/v1/markets/%d/bets", m.ID),
			body: market.PlaceBetRequest{UserID: "bob", Outcome: model.Outcome(7), Amount: 10},
			want: http.StatusBadRequest,
		},
		{
			name: "zero amount", method: "POST",
			path: fmt.Sprintf("/api/v1/markets/%d/bets", m.ID),
			body: market.PlaceBetRequest{UserID: "bob", Outcome: model.OutcomeTeam1},
			want: http.StatusBadRequest,
		},
		{
			name: "claim on open market", method: "POST",
			path: fmt.Sprintf("/api/v1/markets/%d/claim", m.ID),
			body: market.ClaimRequest{UserID: "bob"},
			want: http.StatusConflict,
		},
		{
			name: "dispute on open market", method: "POST",
			path: fmt.Sprintf("/api/v1/markets/%d/dispute", m.ID),
			body: market.DisputeRequest{UserID: "carol", ClaimedWinner: model.WinnerTeam2, Stake: 50},
			want: http.StatusConflict,
		},
		{
			name: "no dispute recorded", method: "GET",
			path: fmt.Sprintf("/api/v1/markets/%d/dispute", m.ID),
			want: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, router, tc.method, tc.path, tc.body)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHTTP_MatchNotPlayed(t *testing.T) {
	gw := &fakeGateway{}
	rd := &fakeRenderer{content: "Match postponed"}
	svc, router := newTestServer(t, gw, rd)
	m := createMarket(t, svc, "alice")

	gw.push(`{"winner": -1, "score_team1": -1, "score_team2": -1}`)
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/resolve", m.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unplayed match, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHTTP_OracleFailure(t *testing.T) {
	gw := &fakeGateway{}
	rd := &fakeRenderer{content: "some page"}
	svc, router := newTestServer(t, gw, rd)
	m := createMarket(t, svc, "alice")

	gw.pushErr(fmt.Errorf("%w: consensus failed", model.ErrOracle))
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/resolve", m.ID), nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for oracle failure, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHTTP_ListMarkets(t *testing.T) {
	svc, router := newTestServer(t, nil, nil)
	createMarket(t, svc, "alice")
	createMarket(t, svc, "alice")

	w := doJSON(t, router, "GET", "/api/v1/markets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list markets: %d", w.Code)
	}

	var markets []model.Market
	json.Unmarshal(w.Body.Bytes(), &markets)
	if len(markets) != 2 {
		t.Errorf("expected 2 markets, got %d", len(markets))
	}
}

func TestHTTP_ListMarkets_LeagueFilter(t *testing.T) {
	svc, router := newTestServer(t, nil, nil)
	createMarket(t, svc, "alice") // Premier League

	w := doJSON(t, router, "GET", "/api/v1/markets?league=La+Liga", nil)
	var markets []model.Market
	json.Unmarshal(w.Body.Bytes(), &markets)
	if len(markets) != 0 {
		t.Errorf("expected no La Liga markets, got %d", len(markets))
	}
}

func TestHTTP_Balance(t *testing.T) {
	_, router := newTestServer(t, nil, nil)

	w := doJSON(t, router, "GET", "/api/v1/balances/nobody", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance: %d", w.Code)
	}

	var resp market.BalanceResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Balance != 1000 {
		t.Errorf("unknown user reports the initial balance, got %d", resp.Balance)
	}
}

func TestHTTP_UserBets(t *testing.T) {
	svc, router := newTestServer(t, nil, nil)
	m := createMarket(t, svc, "alice")

	doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/bets", m.ID), market.PlaceBetRequest{
		UserID: "bob", Outcome: model.OutcomeDraw, Amount: 25,
	})

	w := doJSON(t, router, "GET", "/api/v1/users/bob/bets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("user bets: %d", w.Code)
	}

	var bets []model.Bet
	json.Unmarshal(w.Body.Bytes(), &bets)
	if len(bets) != 1 || bets[0].Amount != 25 {
		t.Errorf("unexpected bets: %+v", bets)
	}
}

func TestHTTP_Fixtures_NoCatalog(t *testing.T) {
	_, router := newTestServer(t, nil, nil)

	w := doJSON(t, router, "GET", "/api/v1/fixtures", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("fixtures: %d", w.Code)
	}
	if body := bytes.TrimSpace(w.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty list without a catalog, got %s", body)
	}
}

func TestHTTP_DisputeFlow(t *testing.T) {
	gw := &fakeGateway{}
	rd := &fakeRenderer{content: "Correction: Chelsea won"}
	svc, router := newTestServer(t, gw, rd)
	m := createMarket(t, svc, "alice")
	resolveTeam1(t, svc, gw, m.ID)

	gw.push(`{"correct_winner": 2, "dispute_valid": true, "reasoning": "source shows Chelsea won"}`)
	w := doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/dispute", m.ID), market.DisputeRequest{
		UserID: "carol", ClaimedWinner: model.WinnerTeam2, Stake: 50,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("dispute: %d %s", w.Code, w.Body.String())
	}

	var d model.Dispute
	json.Unmarshal(w.Body.Bytes(), &d)
	if d.Status != model.DisputeUpheld {
		t.Errorf("expected upheld, got %s", d.Status)
	}

	// The record is now queryable.
	w = doJSON(t, router, "GET", fmt.Sprintf("/api/v1/markets/%d/dispute", m.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get dispute: %d", w.Code)
	}

	// A second dispute conflicts.
	w = doJSON(t, router, "POST", fmt.Sprintf("/api/v1/markets/%d/dispute", m.ID), market.DisputeRequest{
		UserID: "dave", ClaimedWinner: model.WinnerDraw, Stake: 10,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for second dispute, got %d", w.Code)
	}
}
