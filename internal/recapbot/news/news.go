// Package news looks up press coverage for a single game.
package news

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Article is one piece of coverage returned by a Searcher.
type Article struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Relevance   int       `json:"relevance"`
}

// Query identifies the game to search coverage for.
type Query struct {
	HomeTeam string
	AwayTeam string
	Date     time.Time
	Limit    int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// DefaultLimit is the number of articles fed to the summary prompt.
const DefaultLimit = 3

// Searcher finds articles about a game. An empty result is not an error.
type Searcher interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Article, error)
}

// Rank drops articles below minRelevance, removes duplicates by title and URL,
// orders the rest by relevance and keeps at most limit of them.
func Rank(articles []Article, minRelevance, limit int) []Article {
	seenTitle := make(map[string]bool)
	seenURL := make(map[string]bool)
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.Relevance < minRelevance {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(a.Title))
		if title == "" || seenTitle[title] {
			continue
		}
		if a.URL != "" && seenURL[a.URL] {
			continue
		}
		seenTitle[title] = true
		if a.URL != "" {
			seenURL[a.URL] = true
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Fallback tries Primary first and uses Secondary when Primary fails.
type Fallback struct {
	Primary   Searcher
	Secondary Searcher
	logger    *slog.Logger
}

// WithFallback chains two searchers.
func WithFallback(primary, secondary Searcher) *Fallback {
	return &Fallback{Primary: primary, Secondary: secondary, logger: slog.Default()}
}

func (f *Fallback) Name() string { return f.Primary.Name() + "+" + f.Secondary.Name() }

func (f *Fallback) Search(ctx context.Context, q Query) ([]Article, error) {
	articles, err := f.Primary.Search(ctx, q)
	if err == nil {
		return articles, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("news search failed, trying fallback",
		"provider", f.Primary.Name(), "fallback", f.Secondary.Name(), "error", err)
	return f.Secondary.Search(ctx, q)
}

var teamAliases = map[string]string{
	"LA Clippers": "Los Angeles Clippers",
}

// canonicalTeam maps the short names some feeds use to the full franchise name.
func canonicalTeam(name string) string {
	if full, ok := teamAliases[name]; ok {
		return full
	}
	return name
}

// nickname returns the last word of a team name, e.g. "Celtics".
func nickname(team string) string {
	fields := strings.Fields(team)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
