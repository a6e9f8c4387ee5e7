package writer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
)

// Options tunes generation requests. Zero values use the client defaults.
type Options struct {
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
}

// Summarizer writes the per-game section.
type Summarizer struct {
	client llm.Client
	opts   Options
	logger *slog.Logger
}

// NewSummarizer creates a summarizer backed by client.
func NewSummarizer(client llm.Client, opts Options) *Summarizer {
	return &Summarizer{client: client, opts: opts, logger: slog.Default()}
}

// Summarize writes a section for g from the given coverage. The returned text
// is never empty: a blank completion is replaced by a plain score line.
func (s *Summarizer) Summarize(ctx context.Context, g games.Game, articles []news.Article) (GameSummary, error) {
	req := llm.UserPrompt(SystemPrompt, summaryPrompt(g, FormatArticles(articles)))
	req.MaxTokens = s.opts.MaxTokens
	req.Temperature = s.opts.Temperature

	summary := GameSummary{Game: g, News: articles}
	resp, err := s.client.Generate(ctx, req)
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		return summary, fmt.Errorf("summarize %s: %w", g.Score(), err)
	}
	if resp != nil {
		summary.Text = strings.TrimSpace(resp.Content)
		summary.TokensUsed = resp.Tokens()
		summary.Cost = resp.Cost
	}
	if summary.Text == "" {
		s.logger.Warn("empty summary from provider, using score line", "game", g.Score())
		summary.Text = ScoreLine(g)
	}
	return summary, nil
}

// ScoreLine is the fallback narration for a game.
func ScoreLine(g games.Game) string {
	winPts, losePts := g.HomeScore, g.AwayScore
	if g.Winner != g.HomeTeam {
		winPts, losePts = g.AwayScore, g.HomeScore
	}
	where := "at home"
	if g.Winner != g.HomeTeam {
		where = "on the road"
	}
	return fmt.Sprintf("The %s beat the %s %d-%d %s.", g.Winner, g.Loser(), winPts, losePts, where)
}
