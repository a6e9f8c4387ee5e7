package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/notify"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func sampleArticle() *writer.Article {
	return &writer.Article{
		Date:         "2024-01-15",
		Title:        "NBA Recap 2024-01-15: Celtics Roll, Lakers Survive!",
		Introduction: "Monday brought two tight finishes. Boston leaned on **Jayson Tatum** again. The Lakers held off a late Sacramento run.",
		Sections: []writer.GameSummary{
			{Game: games.NewGame("1", jan15, "Boston Celtics", "Miami Heat", 112, 104), Text: "Tatum scored 34."},
			{Game: games.NewGame("2", jan15, "Los Angeles Lakers", "Sacramento Kings", 120, 115), Text: "LeBron closed it out."},
		},
		Conclusion: "Both favorites held serve.",
	}
}

func newTestPublisher(t *testing.T, up transfer.Uploader, d *notify.Dispatcher) *Publisher {
	t.Helper()
	p := New(Config{PublicURL: "https://blog.example.com/blog/", Author: "Recap Desk", CoverImage: true}, up, d)
	p.now = func() time.Time { return time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC) }
	return p
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"NBA Recap 2024-01-15: Celtics Roll, Lakers Survive!": "nba-recap-2024-01-15-celtics-roll-lakers-survive",
		"  Spaces -- and   dashes  ":                         "spaces-and-dashes",
		"snake_case stays":                                    "snake_case-stays",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	r := NewRenderer()
	content, err := r.Content(sampleArticle().Markdown())
	if err != nil {
		t.Fatal(err)
	}
	got := Excerpt(content, 80)
	if got != "Monday brought two tight finishes. Boston leaned on Jayson Tatum again." {
		t.Fatalf("unexpected excerpt %q", got)
	}
	if strings.Contains(got, "NBA Recap") || strings.Contains(got, "mr-article") {
		t.Fatalf("expected title and css to be skipped, got %q", got)
	}
}

func TestExcerpt_LongSentence(t *testing.T) {
	got := Excerpt("<p>"+strings.Repeat("word ", 100)+"</p>", 50)
	if len(got) > 50 || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncated excerpt, got %q (%d)", got, len(got))
	}
}

func TestRenderer_Content(t *testing.T) {
	r := NewRenderer()
	got, err := r.Content("# Title\n\nHello **world**.\n\n<script>alert(1)</script>\n\n- one\n- two\n")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`<style>`, `<div class="mr-article">`, "<h1>Title</h1>", "<strong>world</strong>", "<li>one</li>"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "<script>") || strings.Contains(got, "alert(1)") {
		t.Errorf("expected script to be removed:\n%s", got)
	}
}

func TestPrepare(t *testing.T) {
	p := newTestPublisher(t, transfer.NewDirUploader(t.TempDir()), nil)
	prepared, err := p.Prepare(sampleArticle())
	if err != nil {
		t.Fatal(err)
	}

	env := prepared.Envelope
	slug := "nba-recap-2024-01-15-celtics-roll-lakers-survive"
	if env.ID != slug || env.Slug != slug {
		t.Fatalf("unexpected slug %q", env.Slug)
	}
	if env.URL != "https://blog.example.com/blog/"+slug {
		t.Fatalf("unexpected url %q", env.URL)
	}
	if env.Image != "https://blog.example.com/blog/images/"+slug+".png" {
		t.Fatalf("unexpected image %q", env.Image)
	}
	if env.PublishedAt != "2024-01-16T09:00:00Z" || env.Author != "Recap Desk" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if len(env.Games) != 2 || env.Games[0] != "Boston Celtics 112 - 104 Miami Heat" {
		t.Fatalf("unexpected games %v", env.Games)
	}

	var names []string
	for _, f := range prepared.Files {
		names = append(names, f.Name)
	}
	want := []string{"images/" + slug + ".png", "20240115-" + slug + ".html", "20240115-" + slug + ".json"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected files %v", names)
	}

	var decoded map[string]any
	if err := json.Unmarshal(prepared.Files[2].Data, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "slug", "title", "excerpt", "image", "author", "published_at", "url", "content_html", "date", "games"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("envelope missing %q", key)
		}
	}
	if !strings.Contains(string(prepared.Files[1].Data), "<title>NBA Recap 2024-01-15: Celtics Roll, Lakers Survive!</title>") {
		t.Error("expected page title in html document")
	}
}

func TestPublish_Twice(t *testing.T) {
	root := t.TempDir()
	p := newTestPublisher(t, transfer.NewDirUploader(root), nil)
	ctx := context.Background()

	first, err := p.Publish(ctx, sampleArticle())
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Publish(ctx, sampleArticle())
	if err != nil {
		t.Fatal(err)
	}
	if first.URL != second.URL {
		t.Fatalf("expected stable url, got %q and %q", first.URL, second.URL)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	slug := "nba-recap-2024-01-15-celtics-roll-lakers-survive"
	want := []string{"20240115-" + slug + ".html", "20240115-" + slug + ".json", "images"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("expected exactly one html and one json file, got %v", names)
	}
	if _, err := os.Stat(filepath.Join(root, "images", slug+".png")); err != nil {
		t.Fatalf("expected cover image: %v", err)
	}
}

type failingUploader struct{}

func (failingUploader) Target() string { return "sftp://down:22/blog" }
func (failingUploader) Upload(ctx context.Context, files []transfer.File) ([]string, error) {
	return nil, transfer.ErrAuth
}

type recordingNotifier struct{ msgs []notify.Message }

func (r *recordingNotifier) Channel() notify.Channel { return notify.ChannelWebhook }
func (r *recordingNotifier) Send(ctx context.Context, msg notify.Message) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestPublish_UploadError(t *testing.T) {
	rec := &recordingNotifier{}
	d := notify.NewDispatcher()
	d.Register(rec)

	p := newTestPublisher(t, failingUploader{}, d)
	_, err := p.Publish(context.Background(), sampleArticle())
	if !errors.Is(err, transfer.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if len(rec.msgs) != 0 {
		t.Fatal("expected no announcement after a failed upload")
	}
}

func TestPublish_Announces(t *testing.T) {
	rec := &recordingNotifier{}
	d := notify.NewDispatcher()
	d.Register(rec)

	p := newTestPublisher(t, transfer.NewDirUploader(t.TempDir()), d)
	receipt, err := p.Publish(context.Background(), sampleArticle())
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.msgs) != 1 || rec.msgs[0].URL != receipt.URL {
		t.Fatalf("expected one announcement with the article url, got %+v", rec.msgs)
	}
}
