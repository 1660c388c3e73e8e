// Package fixture handles sporting fixture validation and the static
// fixture catalog markets are created from.
package fixture

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"time"
)

var (
	ErrInvalidTeams  = errors.New("fixture: both team names are required")
	ErrInvalidDate   = errors.New("fixture: invalid match date")
	ErrInvalidSource = errors.New("fixture: resolution source must be an http(s) URL")
)

// Fixture is one upcoming sporting event offered for market creation.
type Fixture struct {
	ID            string    `json:"id"`
	Sport         string    `json:"sport"`
	League        string    `json:"league"`
	Team1         string    `json:"team1"`
	Team2         string    `json:"team2"`
	Date          time.Time `json:"date"`
	ResolutionURL string    `json:"resolution_url"`
}

// dateFormats accepted for match dates, most specific first.
var dateFormats = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// ParseDate parses a match date string in any accepted format.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Validate checks market-creation inputs: two team names, a parseable
// match date, and an http(s) resolution source.
func Validate(team1, team2, matchDate, resolutionURL string) error {
	if team1 == "" || team2 == "" {
		return ErrInvalidTeams
	}
	if _, err := ParseDate(matchDate); err != nil {
		return err
	}
	u, err := url.Parse(resolutionURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidSource, resolutionURL)
	}
	return nil
}

// Catalog is a read-only list of fixtures loaded at startup.
type Catalog struct {
	fixtures []Fixture
}

// LoadCatalog reads a JSON fixture list from path. The file holds an array
// of Fixture objects.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: read catalog: %w", err)
	}
	var fixtures []Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("fixture: decode catalog: %w", err)
	}
	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].Date.Before(fixtures[j].Date)
	})
	return &Catalog{fixtures: fixtures}, nil
}

// All returns every fixture in date order.
func (c *Catalog) All() []Fixture {
	out := make([]Fixture, len(c.fixtures))
	copy(out, c.fixtures)
	return out
}

// Upcoming returns fixtures whose date is after now, in date order.
func (c *Catalog) Upcoming(now time.Time) []Fixture {
	out := make([]Fixture, 0, len(c.fixtures))
	for _, f := range c.fixtures {
		if f.Date.After(now) {
			out = append(out, f)
		}
	}
	return out
}

// ByLeague returns fixtures in the given league, in date order.
func (c *Catalog) ByLeague(league string) []Fixture {
	out := make([]Fixture, 0)
	for _, f := range c.fixtures {
		if f.League == league {
			out = append(out, f)
		}
	}
	return out
}
