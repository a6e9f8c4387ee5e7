// Package store provides SQLite-based storage for collected games, generated
// recaps and their publications.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/storage"
)

// ErrNotFound is returned when nothing is stored for a date.
var ErrNotFound = errors.New("not found")

// Schema is the SQLite schema for recapbot.
const Schema = `
CREATE TABLE IF NOT EXISTS collections (
    date         TEXT PRIMARY KEY,
    collected_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
    id          TEXT NOT NULL,
    date        TEXT NOT NULL REFERENCES collections(date) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    home_team   TEXT NOT NULL,
    away_team   TEXT NOT NULL,
    home_score  INTEGER NOT NULL,
    away_score  INTEGER NOT NULL,
    winner      TEXT NOT NULL,
    PRIMARY KEY (date, id)
);

CREATE TABLE IF NOT EXISTS news (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    date         TEXT NOT NULL,
    game_id      TEXT NOT NULL,
    position     INTEGER NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT,
    source       TEXT,
    body         TEXT,
    published_at TIMESTAMP,
    relevance    INTEGER DEFAULT 0,
    FOREIGN KEY (date, game_id) REFERENCES games(date, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS recaps (
    date         TEXT PRIMARY KEY,
    run_id       TEXT NOT NULL,
    title        TEXT NOT NULL,
    article      TEXT NOT NULL,
    markdown     TEXT NOT NULL,
    games        INTEGER NOT NULL,
    tokens_used  INTEGER DEFAULT 0,
    cost         REAL DEFAULT 0,
    generated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS publications (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    date         TEXT NOT NULL,
    run_id       TEXT NOT NULL,
    slug         TEXT NOT NULL,
    url          TEXT,
    target       TEXT NOT NULL,
    files        TEXT NOT NULL,
    published_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_news_game ON news(date, game_id);
CREATE INDEX IF NOT EXISTS idx_publications_date ON publications(date);
`

// GameNews is a game together with the coverage found for it.
type GameNews struct {
	Game games.Game     `json:"game"`
	News []news.Article `json:"news"`
}

// Publication records one successful upload.
type Publication struct {
	Date        string    `json:"date"`
	RunID       string    `json:"run_id"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Target      string    `json:"target"`
	Files       []string  `json:"files"`
	PublishedAt time.Time `json:"published_at"`
}

// HistoryEntry summarizes a stored recap and its latest publication.
type HistoryEntry struct {
	Date        string     `json:"date"`
	Title       string     `json:"title"`
	Games       int        `json:"games"`
	TokensUsed  int        `json:"tokens_used"`
	Cost        float64    `json:"cost"`
	GeneratedAt time.Time  `json:"generated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// Store provides recapbot data persistence.
type Store struct {
	db *storage.DB
}

// New wraps db and initializes the schema.
func New(ctx context.Context, db *storage.DB) (*Store, error) {
	if err := db.Migrate(ctx, Schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Open opens the database at path and initializes the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := storage.Open(storage.Config{Path: path})
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SaveCollection replaces everything collected for date.
func (s *Store) SaveCollection(ctx context.Context, date string, items []GameNews) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"news", "games", "collections"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE date = ?`, date); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections (date, collected_at) VALUES (?, ?)`, date, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert collection: %w", err)
		}

		gameStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO games (id, date, position, home_team, away_team, home_score, away_score, winner)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer gameStmt.Close()

		newsStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO news (date, game_id, position, title, url, source, body, published_at, relevance)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer newsStmt.Close()

		for i, item := range items {
			g := item.Game
			if _, err := gameStmt.ExecContext(ctx, g.ID, date, i, g.HomeTeam, g.AwayTeam, g.HomeScore, g.AwayScore, g.Winner); err != nil {
				return fmt.Errorf("insert game %s: %w", g.ID, err)
			}
			for j, a := range item.News {
				if _, err := newsStmt.ExecContext(ctx, date, g.ID, j, a.Title, a.URL, a.Source, a.Body, nullTime(a.PublishedAt), a.Relevance); err != nil {
					return fmt.Errorf("insert news for game %s: %w", g.ID, err)
				}
			}
		}
		return nil
	})
}

// LoadCollection returns the games and news collected for date, in the order saved.
func (s *Store) LoadCollection(ctx context.Context, date string) ([]GameNews, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections WHERE date = ?`, date).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("collection for %s: %w", date, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, home_team, away_team, home_score, away_score, winner
		FROM games WHERE date = ? ORDER BY position
	`, date)
	if err != nil {
		return nil, err
	}
	var items []GameNews
	index := make(map[string]int)
	for rows.Next() {
		g := games.Game{Date: date}
		if err := rows.Scan(&g.ID, &g.HomeTeam, &g.AwayTeam, &g.HomeScore, &g.AwayScore, &g.Winner); err != nil {
			rows.Close()
			return nil, err
		}
		index[g.ID] = len(items)
		items = append(items, GameNews{Game: g, News: []news.Article{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT game_id, title, url, source, body, published_at, relevance
		FROM news WHERE date = ? ORDER BY game_id, position
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			gameID    string
			a         news.Article
			url       sql.NullString
			source    sql.NullString
			body      sql.NullString
			published sql.NullTime
		)
		if err := rows.Scan(&gameID, &a.Title, &url, &source, &body, &published, &a.Relevance); err != nil {
			return nil, err
		}
		a.URL, a.Source, a.Body = url.String, source.String, body.String
		if published.Valid {
			a.PublishedAt = published.Time
		}
		if i, ok := index[gameID]; ok {
			items[i].News = append(items[i].News, a)
		}
	}
	if items == nil {
		items = []GameNews{}
	}
	return items, rows.Err()
}

// SaveRecap stores a generated article, replacing any earlier recap for its date.
func (s *Store) SaveRecap(ctx context.Context, a *writer.Article) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO recaps (date, run_id, title, article, markdown, games, tokens_used, cost, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.Date, a.RunID, a.Title, string(data), a.Markdown(), len(a.Sections), a.TokensUsed, a.Cost, a.GeneratedAt.UTC())
	if err != nil {
		return fmt.Errorf("save recap: %w", err)
	}
	return nil
}

// GetRecap loads the recap generated for date.
func (s *Store) GetRecap(ctx context.Context, date string) (*writer.Article, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT article FROM recaps WHERE date = ?`, date).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recap for %s: %w", date, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var a writer.Article
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("decode recap: %w", err)
	}
	return &a, nil
}

// RecordPublication appends a publication record.
func (s *Store) RecordPublication(ctx context.Context, p Publication) error {
	files, _ := json.Marshal(p.Files)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO publications (date, run_id, slug, url, target, files, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.Date, p.RunID, p.Slug, p.URL, p.Target, string(files), p.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record publication: %w", err)
	}
	return nil
}

// Publications lists the uploads for date, newest first.
func (s *Store) Publications(ctx context.Context, date string) ([]Publication, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, run_id, slug, url, target, files, published_at
		FROM publications WHERE date = ? ORDER BY published_at DESC, id DESC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Publication
	for rows.Next() {
		var (
			p     Publication
			url   sql.NullString
			files string
		)
		if err := rows.Scan(&p.Date, &p.RunID, &p.Slug, &url, &p.Target, &files, &p.PublishedAt); err != nil {
			return nil, err
		}
		p.URL = url.String
		json.Unmarshal([]byte(files), &p.Files)
		out = append(out, p)
	}
	return out, rows.Err()
}

// History lists stored recaps, newest date first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.date, r.title, r.games, r.tokens_used, r.cost, r.generated_at,
		       (SELECT MAX(p.published_at) FROM publications p WHERE p.date = r.date),
		       (SELECT p.url FROM publications p WHERE p.date = r.date ORDER BY p.published_at DESC, p.id DESC LIMIT 1)
		FROM recaps r
		ORDER BY r.date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h         HistoryEntry
			published sql.NullString
			url       sql.NullString
		)
		if err := rows.Scan(&h.Date, &h.Title, &h.Games, &h.TokensUsed, &h.Cost, &h.GeneratedAt, &published, &url); err != nil {
			return nil, err
		}
		if published.Valid {
			if t, ok := parseTimestamp(published.String); ok {
				h.PublishedAt = &t
			}
		}
		h.URL = url.String
		out = append(out, h)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// parseTimestamp reads aggregate results, which the driver returns as text.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
