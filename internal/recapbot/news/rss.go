package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/upstream"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/scraper"
)

// DefaultGoogleNewsURL is the Google News RSS search endpoint.
const DefaultGoogleNewsURL = "https://news.google.com/rss/search"

const googleNewsService = "google news rss"

// thinBody is the length below which an RSS description is treated as a teaser.
const thinBody = 200

// RSSConfig configures the keyless Google News searcher.
type RSSConfig struct {
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	MinRelevance int           `yaml:"min_relevance" json:"min_relevance"`
	EnrichBodies bool          `yaml:"enrich_bodies" json:"enrich_bodies" env:"NEWS_ENRICH_BODIES"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// GoogleNewsRSS searches Google News and scores items by how many of the two
// teams they mention.
type GoogleNewsRSS struct {
	cfg     RSSConfig
	parser  *gofeed.Parser
	fetcher scraper.Fetcher
	logger  *slog.Logger
}

// NewGoogleNewsRSS creates the searcher. fetcher may be nil when body enrichment is off.
func NewGoogleNewsRSS(cfg RSSConfig, fetcher scraper.Fetcher) *GoogleNewsRSS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleNewsURL
	}
	if cfg.MinRelevance == 0 {
		cfg.MinRelevance = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	fp := gofeed.NewParser()
	fp.UserAgent = scraper.DefaultFetchOptions().UserAgent
	fp.Client = &http.Client{Timeout: cfg.Timeout}
	return &GoogleNewsRSS{cfg: cfg, parser: fp, fetcher: fetcher, logger: slog.Default()}
}

func (g *GoogleNewsRSS) Name() string { return "rss" }

// Search queries the feed for both team names within a two day window.
func (g *GoogleNewsRSS) Search(ctx context.Context, q Query) ([]Article, error) {
	feed, err := g.parser.ParseURLWithContext(g.searchURL(q), ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &upstream.StatusError{Service: googleNewsService, Status: httpErr.StatusCode, Message: httpErr.Status}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, &upstream.DecodeError{Service: googleNewsService, Err: err}
		}
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	windowStart := q.Date.Add(-12 * time.Hour)
	windowEnd := q.Date.AddDate(0, 0, 2)

	articles := make([]Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
			if published.Before(windowStart) || !published.Before(windowEnd) {
				continue
			}
		}
		title, source := splitSource(item.Title)
		body := scraper.PlainText(item.Description)
		articles = append(articles, Article{
			Title:       title,
			Body:        body,
			URL:         item.Link,
			Source:      source,
			PublishedAt: published,
			Relevance:   mentionScore(title+" "+body, q.HomeTeam, q.AwayTeam),
		})
	}

	ranked := Rank(articles, g.cfg.MinRelevance, q.limit())
	if g.cfg.EnrichBodies && g.fetcher != nil {
		for i := range ranked {
			g.enrich(ctx, &ranked[i])
		}
	}
	g.logger.Debug("news search complete",
		"provider", g.Name(), "home", q.HomeTeam, "away", q.AwayTeam,
		"returned", len(feed.Items), "kept", len(ranked))
	return ranked, nil
}

func (g *GoogleNewsRSS) searchURL(q Query) string {
	terms := fmt.Sprintf(`"%s" "%s" after:%s before:%s`,
		canonicalTeam(q.HomeTeam), canonicalTeam(q.AwayTeam),
		q.Date.AddDate(0, 0, -1).Format("2006-01-02"),
		q.Date.AddDate(0, 0, 2).Format("2006-01-02"))
	v := url.Values{}
	v.Set("q", terms)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return g.cfg.BaseURL + "?" + v.Encode()
}

// enrich replaces a teaser body with the story text from the article page.
// Failures keep the teaser.
func (g *GoogleNewsRSS) enrich(ctx context.Context, a *Article) {
	if len(a.Body) >= thinBody || a.URL == "" {
		return
	}
	opts := scraper.DefaultFetchOptions()
	opts.RetryCount = 0
	res, err := g.fetcher.Fetch(ctx, a.URL, opts)
	if err != nil {
		g.logger.Debug("article enrichment failed", "url", a.URL, "error", err)
		return
	}
	if len(res.Body) > len(a.Body) {
		a.Body = res.Body
	}
}

// splitSource separates Google News' "Headline - Publisher" titles.
func splitSource(title string) (string, string) {
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return strings.TrimSpace(title), ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

// mentionScore gives 50 points per team named in text, by full name or nickname.
func mentionScore(text, home, away string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, team := range []string{home, away} {
		full := strings.ToLower(canonicalTeam(team))
		nick := strings.ToLower(nickname(team))
		if strings.Contains(lower, full) || (nick != "" && strings.Contains(lower, nick)) {
			score += 50
		}
	}
	return score
}
