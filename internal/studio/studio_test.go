package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/pipeline"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/store"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
)

var jan15 = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func sampleArticle() *writer.Article {
	return &writer.Article{
		Date:         "2024-01-15",
		Title:        "NBA Recap 2024-01-15: Celtics Roll",
		Introduction: "Boston won at home.",
		Sections: []writer.GameSummary{
			{Game: games.NewGame("1", jan15, "Boston Celtics", "Miami Heat", 112, 104), Text: "Tatum scored 34."},
		},
		Conclusion: "One game, one win.",
		TokensUsed: 420,
		Cost:       0.0123,
	}
}

type fakeRunner struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	started chan struct{}
	dates   []time.Time
}

func (f *fakeRunner) Run(ctx context.Context, date time.Time, publish bool) (*pipeline.Result, error) {
	f.mu.Lock()
	f.dates = append(f.dates, date)
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	a := sampleArticle()
	res := &pipeline.Result{Date: a.Date, Games: a.Games()}
	if f.err != nil {
		return res, f.err
	}
	res.Article = a
	return res, nil
}

func (f *fakeRunner) Republish(ctx context.Context, date time.Time) (*publisher.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &publisher.Receipt{Slug: "nba-recap-2024-01-15-celtics-roll", URL: "https://blog.example.com/nba-recap-2024-01-15-celtics-roll"}, nil
}

type fakeRecaps struct{}

func (fakeRecaps) GetRecap(ctx context.Context, date string) (*writer.Article, error) {
	if date != "2024-01-15" {
		return nil, store.ErrNotFound
	}
	return sampleArticle(), nil
}

func (fakeRecaps) History(ctx context.Context, limit int) ([]store.HistoryEntry, error) {
	return []store.HistoryEntry{{Date: "2024-01-15", Title: "NBA Recap 2024-01-15: Celtics Roll", Games: 1}}, nil
}

func newTestServer(t *testing.T, runner *fakeRunner, password string) *Server {
	t.Helper()
	cfg := Config{Username: "admin", JWTSecret: "test-secret"}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			t.Fatal(err)
		}
		cfg.PasswordHash = string(hash)
	}
	return NewServer(cfg, runner, fakeRecaps{})
}

func do(t *testing.T, h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, "").Routes()
	rec := do(t, h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "NBA Recap Studio") {
		t.Fatalf("unexpected index response %d", rec.Code)
	}
}

func TestGenerate(t *testing.T) {
	runner := &fakeRunner{}
	h := newTestServer(t, runner, "").Routes()

	rec := do(t, h, http.MethodPost, "/api/recaps/2024-01-15/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Preview
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Title != "NBA Recap 2024-01-15: Celtics Roll" || len(got.Games) != 1 {
		t.Fatalf("unexpected preview %+v", got)
	}
	if !strings.HasPrefix(got.Markdown, "# NBA Recap 2024-01-15") || !strings.Contains(got.HTML, `class="mr-article"`) {
		t.Fatalf("expected markdown and html, got %+v", got)
	}
	if len(runner.dates) != 1 || runner.dates[0].Format(games.DateLayout) != "2024-01-15" {
		t.Fatalf("unexpected run dates %v", runner.dates)
	}
}

func TestGenerate_BadDate(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, "").Routes()
	rec := do(t, h, http.MethodPost, "/api/recaps/15-01-2024/generate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerate_StageError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"missing key", &pipeline.StageError{Stage: pipeline.StageSummarize, Kind: pipeline.KindMissingCredentials, Err: llm.ErrMissingAPIKey}, http.StatusFailedDependency, "missing_credentials"},
		{"auth", &pipeline.StageError{Stage: pipeline.StageSummarize, Kind: pipeline.KindAuth, Err: &llm.APIError{Status: 401}}, http.StatusBadGateway, "auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeRunner{err: tt.err}, "").Routes()
			rec := do(t, h, http.MethodPost, "/api/recaps/2024-01-15/generate", nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			var got RunFailure
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Stage != "summarize" || got.Kind != tt.kind {
				t.Fatalf("unexpected failure %+v", got)
			}
			if len(got.Games) != 1 {
				t.Fatalf("expected games to be reported, got %+v", got.Games)
			}
		})
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{}), started: make(chan struct{})}
	h := newTestServer(t, runner, "").Routes()

	done := make(chan int, 1)
	go func() {
		done <- do(t, h, http.MethodPost, "/api/recaps/2024-01-15/generate", nil).Code
	}()
	<-runner.started

	rec := do(t, h, http.MethodPost, "/api/recaps/2024-01-15/generate", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a run is in progress, got %d", rec.Code)
	}
	close(runner.block)
	if code := <-done; code != http.StatusOK {
		t.Fatalf("expected first run to succeed, got %d", code)
	}
}

func TestPreviewAndHistory(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, "").Routes()

	if rec := do(t, h, http.MethodGet, "/api/recaps/2024-01-15", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/recaps/2024-01-16", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Celtics Roll") {
		t.Fatalf("unexpected history %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/api/history?limit=0", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestPublish(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, "").Routes()
	rec := do(t, h, http.MethodPost, "/api/recaps/2024-01-15/publish", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "blog.example.com") {
		t.Fatalf("unexpected publish response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	h := newTestServer(t, &fakeRunner{}, "s3cret").Routes()

	if rec := do(t, h, http.MethodGet, "/api/history", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/auth/login", LoginRequest{Username: "admin", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d", rec.Code)
	}
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			session = c
		}
	}
	if session == nil || !session.HttpOnly {
		t.Fatal("expected an HttpOnly session cookie")
	}

	if rec := do(t, h, http.MethodGet, "/api/history", nil, session); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rec.Code)
	}

	forged := &http.Cookie{Name: cookieName, Value: session.Value + "x"}
	if rec := do(t, h, http.MethodGet, "/api/history", nil, forged); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with tampered token, got %d", rec.Code)
	}
}

func TestAuth_Expired(t *testing.T) {
	s := newTestServer(t, &fakeRunner{}, "s3cret")
	h := s.Routes()

	token, err := s.generateToken("admin")
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return time.Now().Add(13 * time.Hour) }

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired token to be rejected, got %d", rec.Code)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")) != nil {
		t.Fatal("hash does not verify")
	}
}
