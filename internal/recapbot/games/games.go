// Package games retrieves final NBA scores for a calendar date.
package games

import (
	"context"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used throughout recapbot.
const DateLayout = "2006-01-02"

// Game is one completed game.
type Game struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
	Winner    string `json:"winner"`
}

// Score renders the final score as "<Home> <hp> - <ap> <Away>".
func (g Game) Score() string {
	return fmt.Sprintf("%s %d - %d %s", g.HomeTeam, g.HomeScore, g.AwayScore, g.AwayTeam)
}

// Loser returns the team that did not win.
func (g Game) Loser() string {
	if g.Winner == g.HomeTeam {
		return g.AwayTeam
	}
	return g.HomeTeam
}

// Margin returns the absolute point difference.
func (g Game) Margin() int {
	if d := g.HomeScore - g.AwayScore; d >= 0 {
		return d
	}
	return g.AwayScore - g.HomeScore
}

// NewGame builds a game and fills in the winner. Ties go to the away team,
// which only matters for data that is not final yet.
func NewGame(id string, date time.Time, home, away string, homePts, awayPts int) Game {
	winner := away
	if homePts > awayPts {
		winner = home
	}
	return Game{
		ID:        id,
		Date:      date.Format(DateLayout),
		HomeTeam:  home,
		AwayTeam:  away,
		HomeScore: homePts,
		AwayScore: awayPts,
		Winner:    winner,
	}
}

// Fetcher returns the completed games played on a date. No games is an empty
// slice and a nil error.
type Fetcher interface {
	FetchGames(ctx context.Context, date time.Time) ([]Game, error)
}
