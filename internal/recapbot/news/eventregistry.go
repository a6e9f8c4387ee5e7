package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/upstream"
)

// DefaultEventRegistryURL is the hosted EventRegistry API.
const DefaultEventRegistryURL = "https://eventregistry.org"

const eventRegistryService = "eventregistry"

// EventRegistryConfig configures the EventRegistry searcher.
type EventRegistryConfig struct {
	APIKey       string        `yaml:"api_key" json:"-" env:"EVENTREGISTRY_API_KEY"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	MinRelevance int           `yaml:"min_relevance" json:"min_relevance"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// EventRegistry searches news, press releases and blogs through EventRegistry's
// article endpoint, matching both teams as concepts.
type EventRegistry struct {
	cfg     EventRegistryConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEventRegistry creates the searcher. It fails without an API key.
func NewEventRegistry(cfg EventRegistryConfig) (*EventRegistry, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("eventregistry: %w: EVENTREGISTRY_API_KEY not set", upstream.ErrMissingCredentials)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEventRegistryURL
	}
	if cfg.MinRelevance == 0 {
		cfg.MinRelevance = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &EventRegistry{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  slog.Default(),
	}, nil
}

func (e *EventRegistry) Name() string { return eventRegistryService }

type erResponse struct {
	Error    string `json:"error"`
	Articles struct {
		Results []erArticle `json:"results"`
	} `json:"articles"`
}

type erArticle struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
	DateTimePub string `json:"dateTimePub"`
	DateTime    string `json:"dateTime"`
	Relevance   int    `json:"relevance"`
	Source      struct {
		Title string `json:"title"`
	} `json:"source"`
}

// Search returns up to q.Limit relevant articles for the game.
func (e *EventRegistry) Search(ctx context.Context, q Query) ([]Article, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(e.buildRequest(q))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/api/v1/article/getArticles"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer resp.Body.Close()

	if err := upstream.Check(eventRegistryService, resp); err != nil {
		return nil, err
	}

	var body erResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &upstream.DecodeError{Service: eventRegistryService, Err: err}
	}
	// Quota and key problems come back as 200 with an error field.
	if body.Error != "" {
		return nil, classifyBodyError(body.Error)
	}

	articles := make([]Article, 0, len(body.Articles.Results))
	for _, r := range body.Articles.Results {
		articles = append(articles, Article{
			Title:       strings.TrimSpace(r.Title),
			Body:        strings.TrimSpace(r.Body),
			URL:         r.URL,
			Source:      r.Source.Title,
			PublishedAt: parseERTime(r.DateTimePub, r.DateTime),
			Relevance:   r.Relevance,
		})
	}
	ranked := Rank(articles, e.cfg.MinRelevance, q.limit())
	e.logger.Debug("news search complete",
		"provider", e.Name(), "home", q.HomeTeam, "away", q.AwayTeam,
		"returned", len(articles), "kept", len(ranked))
	return ranked, nil
}

func (e *EventRegistry) buildRequest(q Query) map[string]any {
	start := q.Date.Format("2006-01-02")
	end := q.Date.AddDate(0, 0, 1).Format("2006-01-02")

	// Over-fetch so the relevance floor and de-duplication still leave enough.
	count := q.limit() * 3
	if count > 100 {
		count = 100
	}

	return map[string]any{
		"action": "getArticles",
		"apiKey": e.cfg.APIKey,
		"query": map[string]any{
			"$query": map[string]any{
				"$and": []map[string]any{
					{"conceptUri": conceptURI(q.HomeTeam)},
					{"conceptUri": conceptURI(q.AwayTeam)},
					{"categoryUri": "dmoz/Sports/Basketball"},
					{"locationUri": "http://en.wikipedia.org/wiki/United_States"},
					{"dateStart": start, "dateEnd": end, "lang": "eng"},
				},
			},
			"$filter": map[string]any{
				"dataType":    []string{"news", "pr", "blog"},
				"isDuplicate": "skipDuplicates",
			},
		},
		"resultType":         "articles",
		"articlesSortBy":     "rel",
		"articlesCount":      count,
		"articleBodyLen":     -1,
		"includeArticleBody": true,
	}
}

// conceptURI maps a team name to its Wikipedia concept.
func conceptURI(team string) string {
	return "http://en.wikipedia.org/wiki/" + strings.ReplaceAll(canonicalTeam(team), " ", "_")
}

func classifyBodyError(msg string) error {
	lower := strings.ToLower(msg)
	status := http.StatusBadGateway
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "not authorized"), strings.Contains(lower, "unauthorized"):
		status = http.StatusUnauthorized
	case strings.Contains(lower, "quota"), strings.Contains(lower, "limit"):
		status = http.StatusTooManyRequests
	}
	return &upstream.StatusError{Service: eventRegistryService, Status: status, Message: msg}
}

func parseERTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
