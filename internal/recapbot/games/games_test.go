package games

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/upstream"
)

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

const finderJSON = `{
  "resource": "leaguegamefinderresults",
  "resultSets": [{
    "name": "LeagueGameFinderResults",
    "headers": ["SEASON_ID","TEAM_ID","TEAM_ABBREVIATION","TEAM_NAME","GAME_ID","GAME_DATE","MATCHUP","WL","PTS"],
    "rowSet": [
      ["22023",1610612748,"MIA","Miami Heat","0022300571","2024-01-15","MIA @ BOS","L",104],
      ["22023",1610612738,"BOS","Boston Celtics","0022300571","2024-01-15","BOS vs. MIA","W",112],
      ["22023",1610612747,"LAL","Los Angeles Lakers","0022300572","2024-01-15","LAL vs. SAC","W",120],
      ["22023",1610612758,"SAC","Sacramento Kings","0022300572","2024-01-15","SAC @ LAL","L",115],
      ["22023",1610612743,"DEN","Denver Nuggets","0022300573","2024-01-15","DEN vs. PHX","",null]
    ]
  }]
}`

func TestGame_Score(t *testing.T) {
	g := NewGame("1", jan15, "Boston Celtics", "Miami Heat", 112, 104)
	if got := g.Score(); got != "Boston Celtics 112 - 104 Miami Heat" {
		t.Fatalf("unexpected score %q", got)
	}
	if g.Winner != "Boston Celtics" || g.Loser() != "Miami Heat" {
		t.Fatalf("unexpected winner/loser %q/%q", g.Winner, g.Loser())
	}
	if g.Date != "2024-01-15" {
		t.Fatalf("unexpected date %q", g.Date)
	}
	if g.Margin() != 8 {
		t.Fatalf("expected margin 8, got %d", g.Margin())
	}
}

func TestNewGame_AwayWin(t *testing.T) {
	g := NewGame("1", jan15, "Denver Nuggets", "Phoenix Suns", 99, 101)
	if g.Winner != "Phoenix Suns" {
		t.Fatalf("expected away winner, got %q", g.Winner)
	}
}

func TestStatsClient_FetchGames(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/leaguegamefinder" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Referer") == "" {
			t.Error("expected Referer header")
		}
		query = r.URL.RawQuery
		w.Write([]byte(finderJSON))
	}))
	defer srv.Close()

	c := NewStatsClient(StatsConfig{BaseURL: srv.URL, RequestsPerSecond: 100})
	games, err := c.FetchGames(context.Background(), jan15)
	if err != nil {
		t.Fatal(err)
	}

	if query != "DateFrom=01%2F15%2F2024&DateTo=01%2F15%2F2024&LeagueID=00&PlayerOrTeam=T" {
		t.Errorf("unexpected query %s", query)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 complete games, got %d: %+v", len(games), games)
	}
	// Sorted by home team.
	if games[0].HomeTeam != "Boston Celtics" || games[1].HomeTeam != "Los Angeles Lakers" {
		t.Fatalf("unexpected order %q, %q", games[0].HomeTeam, games[1].HomeTeam)
	}
	if games[0].AwayTeam != "Miami Heat" || games[0].HomeScore != 112 || games[0].AwayScore != 104 {
		t.Fatalf("unexpected first game %+v", games[0])
	}
	if games[1].Winner != "Los Angeles Lakers" {
		t.Fatalf("unexpected winner %q", games[1].Winner)
	}
}

func TestStatsClient_NoGames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resultSets":[{"name":"LeagueGameFinderResults","headers":["GAME_ID","TEAM_NAME","MATCHUP","PTS"],"rowSet":[]}]}`))
	}))
	defer srv.Close()

	games, err := NewStatsClient(StatsConfig{BaseURL: srv.URL, RequestsPerSecond: 100}).FetchGames(context.Background(), jan15)
	if err != nil {
		t.Fatal(err)
	}
	if games == nil || len(games) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", games)
	}
}

func TestStatsClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"forbidden", http.StatusForbidden, "denied", func(err error) bool {
			var se *upstream.StatusError
			return errors.As(err, &se) && se.Unauthorized()
		}},
		{"throttled", http.StatusTooManyRequests, "", func(err error) bool {
			var se *upstream.StatusError
			return errors.As(err, &se) && se.RateLimited()
		}},
		{"garbage", http.StatusOK, "<html>maintenance</html>", func(err error) bool {
			var de *upstream.DecodeError
			return errors.As(err, &de)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewStatsClient(StatsConfig{BaseURL: srv.URL, RequestsPerSecond: 100}).FetchGames(context.Background(), jan15)
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestJoinRows_MissingColumn(t *testing.T) {
	if _, err := JoinRows(jan15, []string{"GAME_ID", "PTS"}, nil); err == nil {
		t.Fatal("expected error for missing columns")
	}
}
