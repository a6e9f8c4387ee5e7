package writer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
)

// scriptedClient answers each call with the next scripted reply.
type scriptedClient struct {
	replies []string
	err     error
	prompts []string
}

func (c *scriptedClient) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.prompts = append(c.prompts, req.Messages[len(req.Messages)-1].Content)
	if c.err != nil {
		return nil, c.err
	}
	reply := ""
	if len(c.replies) > 0 {
		reply, c.replies = c.replies[0], c.replies[1:]
	}
	return &llm.Response{Content: reply, TokensIn: 10, TokensOut: 5, Cost: 0.001}, nil
}

func (c *scriptedClient) GenerateJSON(ctx context.Context, req *llm.Request, out any) (*llm.Response, error) {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, json.Unmarshal([]byte(resp.Content), out)
}

func (c *scriptedClient) Provider() llm.Provider { return "scripted" }
func (c *scriptedClient) Close() error           { return nil }

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func twoGames() []games.Game {
	return []games.Game{
		games.NewGame("1", jan15, "Boston Celtics", "Miami Heat", 112, 104),
		games.NewGame("2", jan15, "Los Angeles Lakers", "Sacramento Kings", 120, 115),
	}
}

func TestFormatArticles(t *testing.T) {
	if got := FormatArticles(nil); got != NoArticlesText {
		t.Fatalf("expected placeholder, got %q", got)
	}

	long := strings.Repeat("a", 1000)
	arts := []news.Article{
		{Title: "One", Source: "ESPN", Body: long},
		{Title: "Two", Body: "short"},
		{Title: "Three", Source: "AP", Body: "x"},
		{Title: "Four", Source: "AP", Body: "y"},
	}
	got := FormatArticles(arts)
	if strings.Contains(got, "Four") {
		t.Error("expected at most three articles")
	}
	if !strings.Contains(got, "Source: N/A") {
		t.Error("expected N/A for missing source")
	}
	if strings.Contains(got, strings.Repeat("a", 801)) {
		t.Error("expected body truncated to 800 characters")
	}
	if !strings.HasPrefix(got, "Article 1:\nTitle: One\nSource: ESPN\n") {
		t.Errorf("unexpected format:\n%s", got)
	}
}

func TestSummarize(t *testing.T) {
	client := &scriptedClient{replies: []string{"  Boston pulled away late.  "}}
	s := NewSummarizer(client, Options{})

	g := twoGames()[0]
	sum, err := s.Summarize(context.Background(), g, []news.Article{{Title: "Tatum 34", Source: "ESPN", Body: "Tatum scored 34."}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Text != "Boston pulled away late." {
		t.Fatalf("unexpected text %q", sum.Text)
	}
	if sum.Game != g || sum.TokensUsed != 15 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	prompt := client.prompts[0]
	for _, want := range []string{
		"Boston Celtics (Home) vs Miami Heat (Away)",
		"Final Score: Boston Celtics 112 - 104 Miami Heat",
		"Winner: Boston Celtics",
		"Title: Tatum 34",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
}

func TestSummarize_EmptyNewsAndEmptyReply(t *testing.T) {
	client := &scriptedClient{replies: []string{""}}
	s := NewSummarizer(client, Options{})

	g := games.NewGame("3", jan15, "Denver Nuggets", "Phoenix Suns", 99, 101)
	sum, err := s.Summarize(context.Background(), g, nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Text != "The Phoenix Suns beat the Denver Nuggets 101-99 on the road." {
		t.Fatalf("unexpected fallback %q", sum.Text)
	}
	if !strings.Contains(client.prompts[0], NoArticlesText) {
		t.Error("expected placeholder text in prompt")
	}
}

func TestSummarize_EmptyResponseError(t *testing.T) {
	client := &scriptedClient{err: llm.ErrEmptyResponse}
	sum, err := NewSummarizer(client, Options{}).Summarize(context.Background(), twoGames()[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Text == "" {
		t.Fatal("expected fallback text")
	}
}

func TestSummarize_ProviderError(t *testing.T) {
	apiErr := &llm.APIError{Provider: llm.OpenAI, Status: 401, Message: "bad key"}
	client := &scriptedClient{err: apiErr}
	_, err := NewSummarizer(client, Options{}).Summarize(context.Background(), twoGames()[0], nil)
	var got *llm.APIError
	if !errors.As(err, &got) || !got.Unauthorized() {
		t.Fatalf("expected unauthorized APIError, got %v", err)
	}
}

func TestCompose_NoGames(t *testing.T) {
	client := &scriptedClient{}
	a, err := NewComposer(client, Options{}).Compose(context.Background(), jan15, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(client.prompts) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(client.prompts))
	}
	if a.Title != "NBA Recap 2024-01-15: No Games on the Schedule" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if a.Introduction != "There were no NBA games played on 2024-01-15." {
		t.Fatalf("unexpected intro %q", a.Introduction)
	}
	if len(a.Sections) != 0 || a.Conclusion != "" {
		t.Fatalf("expected empty body, got %+v", a)
	}
	if md := a.Markdown(); md != "# NBA Recap 2024-01-15: No Games on the Schedule\n\nThere were no NBA games played on 2024-01-15.\n" {
		t.Fatalf("unexpected markdown %q", md)
	}
}

func TestCompose_TwoGames(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"title": "**NBA Recap 2024-01-15: Celtics and Lakers Hold Serve**", "introduction": "A tidy Monday slate."}`,
		"Both favorites won.",
	}}
	c := NewComposer(client, Options{})
	fixed := time.Date(2024, 1, 16, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	var sums []GameSummary
	for _, g := range twoGames() {
		sums = append(sums, GameSummary{Game: g, Text: "Summary of " + g.HomeTeam + ".", TokensUsed: 7})
	}

	a, err := c.Compose(context.Background(), jan15, sums)
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "NBA Recap 2024-01-15: Celtics and Lakers Hold Serve" {
		t.Fatalf("unexpected title %q", a.Title)
	}
	if len(a.Sections) != 2 || a.Sections[0].Game.HomeTeam != "Boston Celtics" || a.Sections[1].Game.HomeTeam != "Los Angeles Lakers" {
		t.Fatalf("sections out of order: %+v", a.Sections)
	}
	if a.Conclusion != "Both favorites won." || !a.GeneratedAt.Equal(fixed) {
		t.Fatalf("unexpected article %+v", a)
	}
	if a.TokensUsed != 14+15+15 {
		t.Fatalf("expected token total 44, got %d", a.TokensUsed)
	}

	md := a.Markdown()
	want := `# NBA Recap 2024-01-15: Celtics and Lakers Hold Serve

A tidy Monday slate.

## Boston Celtics 112 - 104 Miami Heat

Summary of Boston Celtics.

## Los Angeles Lakers 120 - 115 Sacramento Kings

Summary of Los Angeles Lakers.

## Wrapping Up

Both favorites won.
`
	if md != want {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
	if !strings.Contains(client.prompts[0], "## Boston Celtics 112 - 104 Miami Heat\n\nSummary of Boston Celtics.") {
		t.Error("expected sections in the introduction prompt")
	}
}

func TestCompose_RawIntroFallback(t *testing.T) {
	client := &scriptedClient{replies: []string{"Not JSON at all.", "The end."}}
	sums := []GameSummary{{Game: twoGames()[0], Text: "x"}}

	a, err := NewComposer(client, Options{}).Compose(context.Background(), jan15, sums)
	if err != nil {
		t.Fatal(err)
	}
	if a.Title != "NBA Recap 2024-01-15" || a.Introduction != "Not JSON at all." {
		t.Fatalf("unexpected fallback %q / %q", a.Title, a.Introduction)
	}
}

func TestCompose_ProviderError(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection reset")}
	sums := []GameSummary{{Game: twoGames()[0], Text: "x"}}
	if _, err := NewComposer(client, Options{}).Compose(context.Background(), jan15, sums); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "NBA Recap 2024-01-15"},
		{"Celtics Roll", "NBA Recap 2024-01-15: Celtics Roll"},
		{"# **2024-01-15: Celtics Roll**", "2024-01-15: Celtics Roll"},
		{`"NBA Recap 2024-01-15: Quiet Night"`, "NBA Recap 2024-01-15: Quiet Night"},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in, "2024-01-15"); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
