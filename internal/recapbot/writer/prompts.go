package writer

import (
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
)

// SystemPrompt frames every request.
const SystemPrompt = "You are a professional sports journalist writing NBA game summaries."

// NoArticlesText replaces the article block when no coverage was found.
const NoArticlesText = "No detailed articles available for this game."

const (
	promptArticles  = 3
	promptBodyChars = 800
)

// FormatArticles renders up to three articles for the summary prompt.
func FormatArticles(articles []news.Article) string {
	if len(articles) == 0 {
		return NoArticlesText
	}
	var sb strings.Builder
	for i, a := range articles {
		if i >= promptArticles {
			break
		}
		source := a.Source
		if source == "" {
			source = "N/A"
		}
		fmt.Fprintf(&sb, "Article %d:\nTitle: %s\nSource: %s\nContent: %s...\n\n",
			i+1, a.Title, source, truncateRunes(a.Body, promptBodyChars))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func summaryPrompt(g games.Game, articlesText string) string {
	return fmt.Sprintf(`You are a sports journalist writing a concise summary of an NBA game.

Game Details:
- Teams: %s (Home) vs %s (Away)
- Final Score: %s
- Winner: %s

News Articles Available:
%s

Write a 2-3 paragraph summary of this game that includes:
1. The final score and winning team
2. Key highlights and standout performances mentioned in the articles
3. Any notable storylines or context

Keep it professional, engaging, and factual. Do not make up information not present in the articles.

Summary:`, g.HomeTeam, g.AwayTeam, g.Score(), g.Winner, articlesText)
}

func introPrompt(date string, sections string) string {
	return fmt.Sprintf(`You are a sports journalist writing a daily NBA recap article.

Date: %s

Individual Game Summaries:
%s

Write the opening of the article as JSON with two fields:
- "title": an engaging and professional headline. It MUST include the date %s, for example "NBA Recap %s: Title Text".
- "introduction": 2-3 paragraphs that open with the day's NBA action, highlight the most exciting or significant games, mention standout individual performances and note any trends or storylines.

Respond with only the JSON object: {"title": "...", "introduction": "..."}`, date, sections, date, date)
}

func conclusionPrompt(date string, sections string) string {
	return fmt.Sprintf(`You are a sports journalist finishing a daily NBA recap article for %s.

Individual Game Summaries:
%s

Write a brief closing paragraph for the article. Mention any games from the list that deserve a final word and look ahead to what these results mean. Do not add a heading.

Conclusion:`, date, sections)
}

// sectionsText joins game summaries the way they appear in the article body.
func sectionsText(summaries []GameSummary) string {
	parts := make([]string, 0, len(summaries))
	for _, s := range summaries {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", s.Game.Score(), s.Text))
	}
	return strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
