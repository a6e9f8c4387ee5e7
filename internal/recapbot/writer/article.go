// Package writer turns games and their coverage into recap prose.
package writer

import (
	"strings"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
)

// ConclusionHeading introduces the closing paragraph.
const ConclusionHeading = "Wrapping Up"

// GameSummary is the generated section for one game.
type GameSummary struct {
	Game       games.Game     `json:"game"`
	Text       string         `json:"text"`
	News       []news.Article `json:"news"`
	TokensUsed int            `json:"tokens_used"`
	Cost       float64        `json:"cost"`
}

// Article is a complete daily recap.
type Article struct {
	Date         string        `json:"date"`
	Title        string        `json:"title"`
	Introduction string        `json:"introduction"`
	Sections     []GameSummary `json:"sections"`
	Conclusion   string        `json:"conclusion"`
	GeneratedAt  time.Time     `json:"generated_at"`
	RunID        string        `json:"run_id"`
	TokensUsed   int           `json:"tokens_used"`
	Cost         float64       `json:"cost"`
}

// Games returns the games covered, in section order.
func (a *Article) Games() []games.Game {
	out := make([]games.Game, 0, len(a.Sections))
	for _, s := range a.Sections {
		out = append(out, s.Game)
	}
	return out
}

// Markdown renders the article as a markdown document.
func (a *Article) Markdown() string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(a.Title)
	sb.WriteString("\n\n")
	if a.Introduction != "" {
		sb.WriteString(strings.TrimSpace(a.Introduction))
		sb.WriteString("\n\n")
	}
	for _, s := range a.Sections {
		sb.WriteString("## ")
		sb.WriteString(s.Game.Score())
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(s.Text))
		sb.WriteString("\n\n")
	}
	if c := strings.TrimSpace(a.Conclusion); c != "" {
		sb.WriteString("## ")
		sb.WriteString(ConclusionHeading)
		sb.WriteString("\n\n")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}
