// Package market — HTTP handlers for the market engine API.
package market

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matchbook/market-engine/internal/fixture"
	"github.com/matchbook/market-engine/internal/model"
)

// Handler exposes the engine over HTTP. Routes are mounted under /api/v1
// by cmd/server.
type Handler struct {
	svc     *Service
	catalog *fixture.Catalog // optional; nil → /fixtures returns an empty list
}

// NewHandler creates the HTTP handler set for the given engine.
func NewHandler(svc *Service, catalog *fixture.Catalog) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

// Routes registers all API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/markets", h.ListMarkets)
	r.Post("/markets", h.CreateMarket)
	r.Get("/markets/{marketID}", h.GetMarket)
	r.Get("/markets/{marketID}/bets", h.GetMarketBets)
	r.Get("/markets/{marketID}/dispute", h.GetDispute)
	r.Post("/markets/{marketID}/bets", h.PlaceBet)
	r.Post("/markets/{marketID}/resolve", h.Resolve)
	r.Post("/markets/{marketID}/dispute", h.Dispute)
	r.Post("/markets/{marketID}/claim", h.Claim)
	r.Get("/balances/{userID}", h.GetBalance)
	r.Get("/users/{userID}/bets", h.GetUserBets)
	r.Get("/fixtures", h.ListFixtures)
}

// --- Request/Response types ---

// CreateMarketRequest is the JSON body for market creation.
type CreateMarketRequest struct {
	UserID        string `json:"user_id"`
	Team1         string `json:"team1"`
	Team2         string `json:"team2"`
	League        string `json:"league"`
	MatchDate     string `json:"match_date"`
	ResolutionURL string `json:"resolution_url"`
	GenerateOdds  bool   `json:"generate_odds"`
}

// PlaceBetRequest is the JSON body for bet placement.
type PlaceBetRequest struct {
	UserID  string        `json:"user_id"`
	Outcome model.Outcome `json:"outcome"`
	Amount  int64         `json:"amount"`
}

// DisputeRequest is the JSON body for disputing a resolved market.
type DisputeRequest struct {
	UserID        string       `json:"user_id"`
	ClaimedWinner model.Winner `json:"claimed_winner"`
	Stake         int64        `json:"stake"`
}

// ClaimRequest is the JSON body for claiming winnings.
type ClaimRequest struct {
	UserID string `json:"user_id"`
}

// ClaimResponse reports the net amount credited by a claim.
type ClaimResponse struct {
	MarketID int64  `json:"market_id"`
	UserID   string `json:"user_id"`
	Net      int64  `json:"net"`
	Balance  int64  `json:"balance"`
}

// BalanceResponse is the JSON body for GET /balances/{userID}.
type BalanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// --- HTTP Handlers ---

// CreateMarket handles POST /api/v1/markets
func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	m, err := h.svc.CreateMarket(r.Context(), req.UserID, CreateMarketParams{
		Team1:         req.Team1,
		Team2:         req.Team2,
		League:        req.League,
		MatchDate:     req.MatchDate,
		ResolutionURL: req.ResolutionURL,
		GenerateOdds:  req.GenerateOdds,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(m)
}

// GetMarket handles GET /api/v1/markets/{marketID}
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	m, err := h.svc.Market(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// ListMarkets handles GET /api/v1/markets
func (h *Handler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.svc.Markets(r.Context())
	if err != nil {
		writeError(w, "failed to list markets", http.StatusInternalServerError)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}

	// Optional filter by league query parameter.
	if league := r.URL.Query().Get("league"); league != "" {
		filtered := []model.Market{}
		for _, m := range markets {
			if m.League == league {
				filtered = append(filtered, m)
			}
		}
		markets = filtered
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(markets)
}

// PlaceBet handles POST /api/v1/markets/{marketID}/bets
func (h *Handler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	bet, err := h.svc.PlaceBet(r.Context(), req.UserID, id, req.Outcome, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(bet)
}

// Resolve handles POST /api/v1/markets/{marketID}/resolve
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	m, err := h.svc.Resolve(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m)
}

// Dispute handles POST /api/v1/markets/{marketID}/dispute
func (h *Handler) Dispute(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req DisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	d, err := h.svc.Dispute(r.Context(), req.UserID, id, req.ClaimedWinner, req.Stake)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(d)
}

// Claim handles POST /api/v1/markets/{marketID}/claim
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	net, err := h.svc.Claim(r.Context(), req.UserID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	bal, err := h.svc.Balance(r.Context(), req.UserID)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClaimResponse{
		MarketID: id,
		UserID:   req.UserID,
		Net:      net,
		Balance:  bal,
	})
}

// GetMarketBets handles GET /api/v1/markets/{marketID}/bets
func (h *Handler) GetMarketBets(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	bets, err := h.svc.MarketBets(r.Context(), id)
	if err != nil {
		writeError(w, "failed to load bets", http.StatusInternalServerError)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bets)
}

// GetDispute handles GET /api/v1/markets/{marketID}/dispute
func (h *Handler) GetDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}

	d, err := h.svc.DisputeRecord(r.Context(), id)
	if err != nil {
		writeError(w, "failed to load dispute", http.StatusInternalServerError)
		return
	}
	if d == nil {
		writeError(w, "no dispute for market", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(d)
}

// GetBalance handles GET /api/v1/balances/{userID}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	bal, err := h.svc.Balance(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load balance", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BalanceResponse{UserID: userID, Balance: bal})
}

// GetUserBets handles GET /api/v1/users/{userID}/bets
func (h *Handler) GetUserBets(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	bets, err := h.svc.UserBets(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to load bets", http.StatusInternalServerError)
		return
	}
	if bets == nil {
		bets = []model.Bet{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(bets)
}

// ListFixtures handles GET /api/v1/fixtures
// Returns the fixture catalog, optionally filtered by ?league= and
// ?upcoming=true.
func (h *Handler) ListFixtures(w http.ResponseWriter, r *http.Request) {
	fixtures := []fixture.Fixture{}
	if h.catalog != nil {
		switch {
		case r.URL.Query().Get("league") != "":
			fixtures = h.catalog.ByLeague(r.URL.Query().Get("league"))
		case r.URL.Query().Get("upcoming") == "true":
			fixtures = h.catalog.Upcoming(time.Now().UTC())
		default:
			fixtures = h.catalog.All()
		}
		if fixtures == nil {
			fixtures = []fixture.Fixture{}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fixtures)
}

// marketID extracts and parses the {marketID} URL parameter, writing a 400
// on malformed input.
func marketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil || id < 0 {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeServiceError maps engine errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrMarketNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, model.ErrInvalidPhase),
		errors.Is(err, model.ErrAlreadyDisputed),
		errors.Is(err, model.ErrNothingToClaim),
		errors.Is(err, model.ErrExposureLimit),
		errors.Is(err, model.ErrMatchNotPlayed):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, model.ErrInsufficientFunds):
		writeError(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, model.ErrInvalidOutcome),
		errors.Is(err, model.ErrInvalidAmount),
		errors.Is(err, fixture.ErrInvalidTeams),
		errors.Is(err, fixture.ErrInvalidDate),
		errors.Is(err, fixture.ErrInvalidSource):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, model.ErrOracle):
		writeError(w, err.Error(), http.StatusBadGateway)
	default:
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
