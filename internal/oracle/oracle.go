// Package oracle is the engine's interface to external truth. A Gateway
// executes a fully-specified prompt against real-world data and returns an
// answer that independent executors already agreed on; this package builds
// the prompts, strips Markdown fences from raw answers, and validates the
// JSON schema each call site expects. Consensus itself is the gateway's
// problem — the engine only ever sees an agreed answer or a failure.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matchbook/market-engine/internal/model"
)

// Gateway submits a deterministic prompt plus acceptance criteria and
// blocks until the executors agree on an answer or the call fails.
type Gateway interface {
	Ask(ctx context.Context, prompt, criteria string) (string, error)
}

// SourceRenderer fetches a resolution source URL and reduces it to plain
// text suitable for embedding in a prompt.
type SourceRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Acceptance criteria sent alongside each prompt. The gateway's executors
// re-run a submission until it satisfies these.
const (
	OddsCriteria = `Output must be valid JSON with keys: odds_team1, odds_draw, odds_team2.
All odds must be decimal strings between 1.50 and 5.00.
Total implied probability should be 100-110% (bookmaker margin).
No markdown formatting or extra text.`

	ResolutionCriteria = `Output must be valid JSON with keys: winner, score_team1, score_team2.
winner must be -1, 0, 1, or 2.
Scores must be integers (-1 if not played).
No markdown formatting or extra text.`

	AdjudicationCriteria = `Output must be valid JSON with keys: correct_winner, dispute_valid, reasoning.
correct_winner must be -1, 0, 1, or 2.
dispute_valid must be boolean.
reasoning must be a brief explanation.
No markdown formatting or extra text.`
)

// OddsPrompt requests realistic decimal odds for an upcoming fixture.
func OddsPrompt(team1, team2, league, matchDate string) string {
	return fmt.Sprintf(`Generate betting odds for this match:
Team 1: %s
Team 2: %s
League: %s
Date: %s

Provide realistic decimal odds between 1.50 and 5.00.
Respond ONLY with JSON (no markdown):
{
  "odds_team1": "2.50",
  "odds_draw": "3.20",
  "odds_team2": "2.80"
}`, team1, team2, league, matchDate)
}

// ResolutionPrompt asks for the final result of a fixture, given the
// rendered text of its resolution source.
func ResolutionPrompt(team1, team2, matchDate, sourceURL, sourceText string) string {
	return fmt.Sprintf(`Extract the match result from this webpage.

Match: %s vs %s
Date: %s
URL: %s

Webpage content:
%s

Determine the winner. Respond ONLY with JSON (no markdown):
{
  "winner": -1,
  "score_team1": -1,
  "score_team2": -1
}

Where winner is: -1=not played, 0=draw, 1=team1, 2=team2`,
		team1, team2, matchDate, sourceURL, sourceText)
}

// AdjudicationPrompt asks for a re-evaluation of a disputed result against
// freshly fetched source content.
func AdjudicationPrompt(team1, team2 string, original, claimed model.Winner, sourceText string) string {
	return fmt.Sprintf(`Re-evaluate this match result due to a dispute.

Match: %s vs %s
Original Resolution: Winner = %d
Disputed Claim: Winner = %d

Fresh webpage content:
%s

Carefully analyze the content and determine:
1. What is the correct winner?
2. Was the original resolution incorrect?

Respond ONLY with JSON:
{
  "correct_winner": int,
  "dispute_valid": bool,
  "reasoning": "brief explanation"
}

Where correct_winner is: -1=not played, 0=draw, 1=team1, 2=team2`,
		team1, team2, original, claimed, sourceText)
}

// StripFences removes Markdown code-fence wrappers from a raw answer.
// Models wrap JSON in ```json fences no matter how firmly told not to.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// OddsAnswer is the decoded odds-generation answer.
type OddsAnswer struct {
	OddsTeam1 string `json:"odds_team1"`
	OddsDraw  string `json:"odds_draw"`
	OddsTeam2 string `json:"odds_team2"`
}

// ResolutionAnswer is the decoded resolution answer.
type ResolutionAnswer struct {
	Winner     model.Winner `json:"winner"`
	ScoreTeam1 int          `json:"score_team1"`
	ScoreTeam2 int          `json:"score_team2"`
}

// AdjudicationAnswer is the decoded dispute-adjudication answer.
type AdjudicationAnswer struct {
	CorrectWinner model.Winner `json:"correct_winner"`
	DisputeValid  bool         `json:"dispute_valid"`
	Reasoning     string       `json:"reasoning"`
}

// DecodeOdds parses a raw odds answer, requiring all three keys.
// Range and margin validation is the caller's policy (see the odds package).
func DecodeOdds(raw string) (*OddsAnswer, error) {
	var a OddsAnswer
	if err := decodeStrict(raw, &a, "odds_team1", "odds_draw", "odds_team2"); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecodeResolution parses a raw resolution answer and checks the winner
// value domain.
func DecodeResolution(raw string) (*ResolutionAnswer, error) {
	var a ResolutionAnswer
	if err := decodeStrict(raw, &a, "winner", "score_team1", "score_team2"); err != nil {
		return nil, err
	}
	if !a.Winner.Valid() {
		return nil, fmt.Errorf("%w: winner %d out of domain", model.ErrOracle, a.Winner)
	}
	return &a, nil
}

// DecodeAdjudication parses a raw adjudication answer and checks the
// corrected-winner value domain.
func DecodeAdjudication(raw string) (*AdjudicationAnswer, error) {
	var a AdjudicationAnswer
	if err := decodeStrict(raw, &a, "correct_winner", "dispute_valid", "reasoning"); err != nil {
		return nil, err
	}
	if !a.CorrectWinner.Valid() {
		return nil, fmt.Errorf("%w: correct_winner %d out of domain", model.ErrOracle, a.CorrectWinner)
	}
	return &a, nil
}

// decodeStrict unmarshals a fence-stripped answer into dst, failing if the
// answer is not a JSON object or any required key is absent.
func decodeStrict(raw string, dst any, required ...string) error {
	data := []byte(StripFences(raw))

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("%w: answer is not valid JSON: %v", model.ErrOracle, err)
	}
	for _, k := range required {
		if _, ok := keys[k]; !ok {
			return fmt.Errorf("%w: answer missing required key %q", model.ErrOracle, k)
		}
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: answer does not match expected schema: %v", model.ErrOracle, err)
	}
	return nil
}
