// Package scraper provides HTTP content fetching and HTML parsing utilities.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxBodyBytes = 4 << 20

// FetchOptions configures the behavior of a Fetch call.
type FetchOptions struct {
	UserAgent  string            `yaml:"user_agent"`
	Timeout    time.Duration     `yaml:"timeout"`
	RetryCount int               `yaml:"retry_count"`
	Headers    map[string]string `yaml:"headers"`
}

// DefaultFetchOptions returns sensible defaults for fetching.
func DefaultFetchOptions() *FetchOptions {
	return &FetchOptions{
		UserAgent:  "Mozilla/5.0 (compatible; RecapBot/1.0; +https://github.com/RobinCoderZhao/hoopsrecap)",
		Timeout:    15 * time.Second,
		RetryCount: 1,
	}
}

// FetchResult holds the result of fetching a URL.
type FetchResult struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	RawHTML    string        `json:"raw_html"`
	CleanText  string        `json:"clean_text"`
	Body       string        `json:"body"`
	Title      string        `json:"title"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration"`
}

// Fetcher defines the interface for fetching web content.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts *FetchOptions) (*FetchResult, error)
}

// HTTPFetcher implements Fetcher using standard HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a new HTTP-based fetcher.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

// Fetch retrieves a URL and extracts the page title, the readable text and the article body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, opts *FetchOptions) (*FetchResult, error) {
	if opts == nil {
		opts = DefaultFetchOptions()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= opts.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		result, err := f.fetchOnce(ctx, url, opts)
		if err == nil {
			result.Duration = time.Since(start)
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string, opts *FetchOptions) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}

	return &FetchResult{
		URL:        url,
		StatusCode: resp.StatusCode,
		RawHTML:    string(body),
		CleanText:  textOf(doc),
		Body:       articleOf(doc),
		Title:      findTitle(doc),
		FetchedAt:  time.Now(),
	}, nil
}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "noscript": true, "svg": true, "iframe": true,
	"aside": true, "form": true,
}

// ExtractText converts HTML to clean structured text, removing navigation/footer/scripts.
func ExtractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}
	return textOf(doc)
}

func textOf(doc *html.Node) string {
	var sb strings.Builder
	extractTextFromNode(doc, &sb)
	return strings.TrimSpace(sb.String())
}

func extractTextFromNode(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		switch n.Data {
		case "h1":
			sb.WriteString("\n# ")
		case "h2":
			sb.WriteString("\n## ")
		case "h3":
			sb.WriteString("\n### ")
		case "li":
			sb.WriteString("- ")
		case "br", "p", "div", "tr":
			sb.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTextFromNode(c, sb)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "p", "li", "tr":
			sb.WriteString("\n")
		}
	}
}

// minParagraph drops captions, bylines and share prompts from article bodies.
const minParagraph = 40

// ExtractArticle returns the paragraphs of a news page's main story, one per block.
// Paragraphs inside <article> are preferred; otherwise every long enough <p> is used.
func ExtractArticle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return articleOf(doc)
}

func articleOf(doc *html.Node) string {
	root := doc
	if article := findElement(doc, "article"); article != nil {
		root = article
	}
	var paragraphs []string
	collectParagraphs(root, &paragraphs)
	return strings.Join(paragraphs, "\n\n")
}

func collectParagraphs(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] {
			return
		}
		if n.Data == "p" {
			if text := StripTags(n); len(text) >= minParagraph {
				*out = append(*out, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectParagraphs(c, out)
	}
}

// StripTags returns the visible text below n with whitespace collapsed to single spaces.
func StripTags(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// PlainText parses an HTML fragment and returns its visible text on one line.
func PlainText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return StripTags(doc)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func extractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return findTitle(doc)
}

func findTitle(n *html.Node) string {
	if title := findElement(n, "title"); title != nil && title.FirstChild != nil {
		return strings.TrimSpace(title.FirstChild.Data)
	}
	return ""
}
