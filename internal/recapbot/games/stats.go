package games

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/upstream"
)

// DefaultStatsURL is the public NBA stats API.
const DefaultStatsURL = "https://stats.nba.com/stats"

const statsService = "nba stats"

// StatsConfig configures the stats.nba.com client.
type StatsConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url" env:"NBA_STATS_URL"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
}

// StatsClient implements Fetcher with the leaguegamefinder endpoint.
type StatsClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewStatsClient creates a client. The stats site is slow and drops
// connections from aggressive callers, so timeouts are generous and calls are paced.
func NewStatsClient(cfg StatsConfig) *StatsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultStatsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 0.5
	}
	return &StatsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}
}

type statsResponse struct {
	ResultSets []resultSet `json:"resultSets"`
}

type resultSet struct {
	Name    string   `json:"name"`
	Headers []string `json:"headers"`
	RowSet  [][]any  `json:"rowSet"`
}

// FetchGames returns the games played on date, sorted by home team.
func (c *StatsClient) FetchGames(ctx context.Context, date time.Time) ([]Game, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	day := date.Format("01/02/2006")
	q := url.Values{}
	q.Set("PlayerOrTeam", "T")
	q.Set("LeagueID", "00")
	q.Set("DateFrom", day)
	q.Set("DateTo", day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/leaguegamefinder?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// stats.nba.com rejects requests that do not look like they come from nba.com.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("Origin", "https://www.nba.com")
	req.Header.Set("x-nba-stats-origin", "stats")
	req.Header.Set("x-nba-stats-token", "true")

	c.logger.Debug("fetching games", "date", date.Format(DateLayout))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}
	defer resp.Body.Close()

	if err := upstream.Check(statsService, resp); err != nil {
		return nil, err
	}

	var body statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &upstream.DecodeError{Service: statsService, Err: err}
	}
	if len(body.ResultSets) == 0 {
		return nil, &upstream.DecodeError{Service: statsService, Err: fmt.Errorf("no result sets")}
	}

	games, err := JoinRows(date, body.ResultSets[0].Headers, body.ResultSets[0].RowSet)
	if err != nil {
		return nil, &upstream.DecodeError{Service: statsService, Err: err}
	}
	c.logger.Debug("stats rows joined", "date", date.Format(DateLayout), "rows", len(body.ResultSets[0].RowSet), "games", len(games))
	return games, nil
}

type teamRow struct {
	gameID string
	team   string
	points int
}

// JoinRows pairs the per-team rows of a leaguegamefinder table into games.
// Home rows have "vs." in MATCHUP and away rows have "@". Games missing either
// side are dropped.
func JoinRows(date time.Time, headers []string, rows [][]any) ([]Game, error) {
	col := make(map[string]int, len(headers))
	for i, h := range headers {
		col[h] = i
	}
	for _, need := range []string{"GAME_ID", "TEAM_NAME", "MATCHUP", "PTS"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %s", need)
		}
	}

	home := make(map[string]teamRow)
	away := make(map[string]teamRow)
	var order []string
	for _, row := range rows {
		if len(row) < len(headers) {
			continue
		}
		tr := teamRow{
			gameID: asString(row[col["GAME_ID"]]),
			team:   asString(row[col["TEAM_NAME"]]),
			points: asInt(row[col["PTS"]]),
		}
		matchup := asString(row[col["MATCHUP"]])
		switch {
		case strings.Contains(matchup, "vs."):
			if _, seen := home[tr.gameID]; !seen {
				order = append(order, tr.gameID)
			}
			home[tr.gameID] = tr
		case strings.Contains(matchup, "@"):
			away[tr.gameID] = tr
		}
	}

	games := make([]Game, 0, len(home))
	for _, id := range order {
		h := home[id]
		a, ok := away[id]
		if !ok {
			continue
		}
		games = append(games, NewGame(id, date, h.team, a.team, h.points, a.points))
	}
	sort.SliceStable(games, func(i, j int) bool { return games[i].HomeTeam < games[j].HomeTeam })
	return games, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}
