package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractText_Simple(t *testing.T) {
	html := `<html><body><h1>Title</h1><p>Hello world</p><ul><li>Item 1</li><li>Item 2</li></ul></body></html>`
	text := ExtractText(html)
	if !strings.Contains(text, "# Title") {
		t.Errorf("expected '# Title' in output, got: %s", text)
	}
	if !strings.Contains(text, "Hello world") {
		t.Errorf("expected 'Hello world' in output, got: %s", text)
	}
	if !strings.Contains(text, "- Item 1") {
		t.Errorf("expected '- Item 1' in output, got: %s", text)
	}
}

func TestExtractText_RemovesScripts(t *testing.T) {
	html := `<html><body><script>alert('xss')</script><p>Content</p><style>.foo{}</style></body></html>`
	text := ExtractText(html)
	if strings.Contains(text, "alert") {
		t.Errorf("expected script content to be removed, got: %s", text)
	}
	if strings.Contains(text, ".foo") {
		t.Errorf("expected style content to be removed, got: %s", text)
	}
	if !strings.Contains(text, "Content") {
		t.Errorf("expected 'Content' in output, got: %s", text)
	}
}

func TestExtractText_RemovesNav(t *testing.T) {
	html := `<html><body><nav><a href="/">Home</a></nav><main><p>Main content</p></main><footer>Footer</footer></body></html>`
	text := ExtractText(html)
	if strings.Contains(text, "Home") {
		t.Errorf("expected nav content to be removed, got: %s", text)
	}
	if strings.Contains(text, "Footer") {
		t.Errorf("expected footer content to be removed, got: %s", text)
	}
	if !strings.Contains(text, "Main content") {
		t.Errorf("expected 'Main content' in output, got: %s", text)
	}
}

func TestExtractTitle(t *testing.T) {
	html := `<html><head><title>My Page Title</title></head><body></body></html>`
	title := extractTitle(html)
	if title != "My Page Title" {
		t.Errorf("expected 'My Page Title', got '%s'", title)
	}
}

func TestExtractArticle_PrefersArticleElement(t *testing.T) {
	page := `<html><body>
<p>Sign up for our newsletter to get the latest scores every morning.</p>
<article>
  <h1>Celtics hold off Heat</h1>
  <p>Jayson Tatum scored 34 points as Boston beat Miami 112-104 on Monday night.</p>
  <p>Photo: AP</p>
  <p>Jimmy Butler had 28 for the Heat, who lost their third straight game at home.</p>
  <aside><p>Related: the ten best dunks of the season so far, ranked by our staff.</p></aside>
</article>
</body></html>`

	body := ExtractArticle(page)
	paragraphs := strings.Split(body, "\n\n")
	if len(paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %q", len(paragraphs), body)
	}
	if !strings.HasPrefix(paragraphs[0], "Jayson Tatum scored 34") {
		t.Errorf("unexpected first paragraph %q", paragraphs[0])
	}
	if strings.Contains(body, "newsletter") || strings.Contains(body, "Related") {
		t.Errorf("expected content outside the story to be dropped, got %q", body)
	}
}

func TestExtractArticle_FallsBackToParagraphs(t *testing.T) {
	page := `<html><body><div><p>The Nuggets rallied from 15 down to beat the Suns in overtime.</p><p>Short.</p></div></body></html>`
	body := ExtractArticle(page)
	if body != "The Nuggets rallied from 15 down to beat the Suns in overtime." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText("<h2>Lakers   vs Kings</h2>\n<p>A <strong>close</strong> game.</p>")
	if got != "Lakers vs Kings A close game." {
		t.Errorf("unexpected text %q", got)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("User-Agent"), "RecapBot") {
			t.Errorf("expected RecapBot user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`<html><head><title>Game Story</title></head><body><article><p>Stephen Curry hit nine threes in a win over the Blazers.</p></article></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	opts := DefaultFetchOptions()
	opts.RetryCount = 0

	res, err := f.Fetch(context.Background(), srv.URL+"/story", opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Title != "Game Story" {
		t.Errorf("expected title, got %q", res.Title)
	}
	if !strings.Contains(res.Body, "nine threes") {
		t.Errorf("expected article body, got %q", res.Body)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing", opts); err == nil {
		t.Fatal("expected error for 404")
	}
}
