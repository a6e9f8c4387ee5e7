package writer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
)

// Composer assembles game sections into the daily article.
type Composer struct {
	client llm.Client
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// NewComposer creates a composer backed by client.
func NewComposer(client llm.Client, opts Options) *Composer {
	return &Composer{client: client, opts: opts, now: time.Now, logger: slog.Default()}
}

type opening struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
}

// Compose writes the title, introduction and conclusion around summaries,
// keeping sections in the order given. With no games it makes no provider calls.
func (c *Composer) Compose(ctx context.Context, date time.Time, summaries []GameSummary) (*Article, error) {
	day := date.Format(games.DateLayout)
	article := &Article{
		Date:        day,
		Sections:    summaries,
		GeneratedAt: c.now(),
	}
	if len(summaries) == 0 {
		article.Sections = []GameSummary{}
		article.Title = fmt.Sprintf("NBA Recap %s: No Games on the Schedule", day)
		article.Introduction = fmt.Sprintf("There were no NBA games played on %s.", day)
		return article, nil
	}
	for _, s := range summaries {
		article.TokensUsed += s.TokensUsed
		article.Cost += s.Cost
	}

	body := sectionsText(summaries)

	var open opening
	req := c.request(introPrompt(day, body))
	resp, err := c.client.GenerateJSON(ctx, req, &open)
	if err != nil && resp == nil {
		return nil, fmt.Errorf("compose introduction: %w", err)
	}
	c.account(article, resp)
	if err != nil {
		c.logger.Warn("introduction was not valid JSON, using raw text", "error", err)
		open = opening{Introduction: resp.Content}
	}
	article.Title = NormalizeTitle(open.Title, day)
	article.Introduction = strings.TrimSpace(open.Introduction)

	resp, err = c.client.Generate(ctx, c.request(conclusionPrompt(day, body)))
	if err != nil {
		return nil, fmt.Errorf("compose conclusion: %w", err)
	}
	c.account(article, resp)
	article.Conclusion = strings.TrimSpace(resp.Content)

	c.logger.Info("article composed", "date", day, "sections", len(summaries),
		"tokens", article.TokensUsed, "cost", fmt.Sprintf("$%.4f", article.Cost))
	return article, nil
}

func (c *Composer) request(prompt string) *llm.Request {
	req := llm.UserPrompt(SystemPrompt, prompt)
	req.MaxTokens = c.opts.MaxTokens
	req.Temperature = c.opts.Temperature
	return req
}

func (c *Composer) account(a *Article, resp *llm.Response) {
	if resp == nil {
		return
	}
	a.TokensUsed += resp.Tokens()
	a.Cost += resp.Cost
}

// NormalizeTitle strips markdown emphasis and heading marks and guarantees
// the date appears in the title.
func NormalizeTitle(title, day string) string {
	t := strings.TrimSpace(title)
	t = strings.TrimLeft(t, "# ")
	t = strings.ReplaceAll(t, "**", "")
	t = strings.Trim(t, `"`)
	t = strings.TrimSpace(t)
	switch {
	case t == "":
		return "NBA Recap " + day
	case !strings.Contains(t, day):
		return fmt.Sprintf("NBA Recap %s: %s", day, t)
	default:
		return t
	}
}
