package publisher

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/RobinCoderZhao/hoopsrecap/pkg/scraper"
)

// ArticleCSS styles the rendered article on the blog.
const ArticleCSS = `<style>
.mr-article p { margin: 0 0 1rem; }
.mr-article h1 { margin: 1.5rem 0 1rem; font-weight: 700; font-size: 1.875rem; }
.mr-article h2 { margin: 1.25rem 0 .5rem; font-weight: 700; font-size: 1.5rem; }
.mr-article h3 { margin: 1rem 0 .5rem; font-weight: 600; font-size: 1.25rem; }
.mr-article ul { margin: .5rem 0 1rem; padding-left: 1.25rem; }
.mr-article ol { margin: .5rem 0 1rem; padding-left: 1.25rem; }
.mr-article li { margin: .35rem 0; }
.mr-article blockquote {
    margin: 1.25rem 0;
    padding: .75rem 1rem;
    border-left: 3px solid #e5e7eb;
    background: #fafafa;
    border-radius: .25rem;
    font-style: italic;
}
.mr-article hr { margin: 1.25rem 0; border: 0; border-top: 1px solid #eee; }
.mr-article img { max-width: 100%; height: auto; border-radius: .25rem; }
.mr-article strong { font-weight: 600; }
.mr-article em { font-style: italic; }
.mr-article code {
    background: #f3f4f6;
    padding: .125rem .25rem;
    border-radius: .25rem;
    font-family: monospace;
}
</style>`

// Renderer converts article markdown into the HTML the blog embeds.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer with GitHub flavored markdown and a UGC sanitizer.
func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Body renders markdown to sanitized HTML without any wrapper.
func (r *Renderer) Body(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String())), nil
}

// Content renders markdown into the styled fragment stored as content_html.
func (r *Renderer) Content(markdown string) (string, error) {
	body, err := r.Body(markdown)
	if err != nil {
		return "", err
	}
	return ArticleCSS + `<div class="mr-article">` + body + `</div>`, nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<meta name="description" content="{{.Excerpt}}">
<meta name="author" content="{{.Author}}">
{{if .Image}}<meta property="og:image" content="{{.Image}}">
{{end}}</head>
<body>
{{if .Image}}<img src="{{.Image}}" alt="{{.Title}}" style="max-width:100%;height:auto;">
{{end}}{{.Content}}
</body>
</html>
`))

// Page renders a standalone HTML document for an envelope.
func Page(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Envelope
		Content template.HTML
	}{env, template.HTML(env.ContentHTML)})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases title, drops punctuation and joins words with hyphens.
func Slugify(title string) string {
	s := slugStrip.ReplaceAllString(strings.ToLower(title), "")
	s = slugCollapse.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Excerpt builds a summary of at most limit characters from whole sentences of
// the rendered article text. The title heading is skipped. When the first
// sentence is already too long the text is cut and marked with "...".
func Excerpt(fragment string, limit int) string {
	text := visibleText(fragment)
	if text == "" {
		return ""
	}

	var sb strings.Builder
	for _, sentence := range strings.SplitAfter(text, ". ") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		next := sentence
		if sb.Len() > 0 {
			next = " " + sentence
		}
		if sb.Len()+len(next) > limit {
			break
		}
		sb.WriteString(next)
	}
	if sb.Len() > 0 {
		return sb.String()
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := limit - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

// visibleText returns the text of an HTML fragment, leaving out style blocks
// and the h1 title.
func visibleText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type: html.ElementNode, Data: "body", DataAtom: atom.Body,
	})
	if err != nil {
		return scraper.PlainText(fragment)
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "h1" || n.Data == "style") {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "p" || n.Data == "li") {
			if t := scraper.StripTags(n); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
