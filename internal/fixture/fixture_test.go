package fixture_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matchbook/market-engine/internal/fixture"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name                 string
		team1, team2         string
		matchDate, sourceURL string
		wantErr              error
	}{
		{"valid rfc3339", "Arsenal", "Chelsea", "2026-09-12T15:00:00Z", "https://example.com/result", nil},
		{"valid date only", "Lyon", "Marseille", "2026-09-12", "http://example.com/r", nil},
		{"missing team1", "", "Chelsea", "2026-09-12", "https://example.com/r", fixture.ErrInvalidTeams},
		{"missing team2", "Arsenal", "", "2026-09-12", "https://example.com/r", fixture.ErrInvalidTeams},
		{"bad date", "Arsenal", "Chelsea", "next tuesday", "https://example.com/r", fixture.ErrInvalidDate},
		{"bad scheme", "Arsenal", "Chelsea", "2026-09-12", "ftp://example.com/r", fixture.ErrInvalidSource},
		{"no host", "Arsenal", "Chelsea", "2026-09-12", "https://", fixture.ErrInvalidSource},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := fixture.Validate(tc.team1, tc.team2, tc.matchDate, tc.sourceURL)
			if tc.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalog(t, `[
		{"id": "f2", "sport": "football", "league": "Premier League",
		 "team1": "Arsenal", "team2": "Chelsea",
		 "date": "2026-10-01T15:00:00Z", "resolution_url": "https://example.com/a"},
		{"id": "f1", "sport": "football", "league": "Ligue 1",
		 "team1": "Lyon", "team2": "Marseille",
		 "date": "2026-09-15T19:00:00Z", "resolution_url": "https://example.com/b"}
	]`)

	cat, err := fixture.LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	all := cat.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 fixtures, got %d", len(all))
	}
	if all[0].ID != "f1" {
		t.Errorf("fixtures should sort by date, first = %s", all[0].ID)
	}

	pl := cat.ByLeague("Premier League")
	if len(pl) != 1 || pl[0].Team1 != "Arsenal" {
		t.Errorf("ByLeague returned %v", pl)
	}

	now := time.Date(2026, 9, 20, 0, 0, 0, 0, time.UTC)
	up := cat.Upcoming(now)
	if len(up) != 1 || up[0].ID != "f2" {
		t.Errorf("Upcoming(%v) returned %v", now, up)
	}
}

func TestLoadCatalog_BadJSON(t *testing.T) {
	path := writeCatalog(t, `{"not": "an array"}`)
	if _, err := fixture.LoadCatalog(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadCatalog_Missing(t *testing.T) {
	if _, err := fixture.LoadCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected read error")
	}
}
