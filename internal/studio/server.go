// Package studio serves the operator web page for generating, previewing and
// publishing recaps.
package studio

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/pipeline"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/store"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
)

//go:embed index.html
var indexHTML []byte

// Runner runs the recap stages.
type Runner interface {
	Run(ctx context.Context, date time.Time, publish bool) (*pipeline.Result, error)
	Republish(ctx context.Context, date time.Time) (*publisher.Receipt, error)
}

// Recaps reads stored recaps.
type Recaps interface {
	GetRecap(ctx context.Context, date string) (*writer.Article, error)
	History(ctx context.Context, limit int) ([]store.HistoryEntry, error)
}

// Config holds the studio login settings. An empty PasswordHash disables login.
type Config struct {
	Username     string
	PasswordHash string
	JWTSecret    string
	SessionTTL   time.Duration
	Location     *time.Location
}

// Server holds the dependencies for the studio.
type Server struct {
	cfg      Config
	runner   Runner
	recaps   Recaps
	renderer *publisher.Renderer
	// run serializes pipeline runs so concurrent clicks do not interleave
	// provider calls.
	run       sync.Mutex
	jwtSecret []byte
	now       func() time.Time
	logger    *slog.Logger
}

// NewServer creates a studio server.
func NewServer(cfg Config, runner Runner, recaps Recaps) *Server {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Server{
		cfg:       cfg,
		runner:    runner,
		recaps:    recaps,
		renderer:  publisher.NewRenderer(),
		jwtSecret: []byte(cfg.JWTSecret),
		now:       time.Now,
		logger:    slog.Default(),
	}
}

// AuthEnabled reports whether requests need a session.
func (s *Server) AuthEnabled() bool { return s.cfg.PasswordHash != "" }

// Routes returns the configured http.Handler for the studio.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth (public)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin())
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout())

	// Recaps
	mux.Handle("GET /api/history", s.requireAuth(s.handleHistory()))
	mux.Handle("GET /api/recaps/{date}", s.requireAuth(s.handlePreview()))
	mux.Handle("POST /api/recaps/{date}/generate", s.requireAuth(s.handleGenerate()))
	mux.Handle("POST /api/recaps/{date}/publish", s.requireAuth(s.handlePublish()))

	return mux
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	}
}

// --- Helpers ---

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
