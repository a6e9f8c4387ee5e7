// Package pipeline runs the daily recap: fetch games, look up news, write the
// article and publish it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/store"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/notify"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

// Store persists collected games and generated recaps.
type Store interface {
	SaveCollection(ctx context.Context, date string, items []store.GameNews) error
	LoadCollection(ctx context.Context, date string) ([]store.GameNews, error)
	SaveRecap(ctx context.Context, a *writer.Article) error
	GetRecap(ctx context.Context, date string) (*writer.Article, error)
	RecordPublication(ctx context.Context, p store.Publication) error
}

// Publisher uploads a finished article.
type Publisher interface {
	Publish(ctx context.Context, a *writer.Article) (*publisher.Receipt, error)
}

// Deps are the collaborators of a pipeline. Only Games is required: a nil
// News skips coverage lookup, a nil LLM fails generation with missing
// credentials, a nil Publisher fails publishing the same way, and a nil Store
// disables persistence.
type Deps struct {
	Games     games.Fetcher
	News      news.Searcher
	LLM       llm.Client
	Publisher Publisher
	Store     Store
	Notifier  *notify.Dispatcher
	Writer    writer.Options
	NewsLimit int
}

// Result holds whatever a run produced, including partial output on failure.
type Result struct {
	RunID      string             `json:"run_id"`
	Date       string             `json:"date"`
	Games      []games.Game       `json:"games"`
	Collection []store.GameNews   `json:"-"`
	Article    *writer.Article    `json:"article,omitempty"`
	Receipt    *publisher.Receipt `json:"receipt,omitempty"`
}

// Pipeline wires the recap stages together. Games are processed one at a
// time in fetch order.
type Pipeline struct {
	deps       Deps
	summarizer *writer.Summarizer
	composer   *writer.Composer
	logger     *slog.Logger
}

// New creates a pipeline.
func New(deps Deps) *Pipeline {
	if deps.NewsLimit <= 0 {
		deps.NewsLimit = news.DefaultLimit
	}
	return &Pipeline{
		deps:       deps,
		summarizer: writer.NewSummarizer(deps.LLM, deps.Writer),
		composer:   writer.NewComposer(deps.LLM, deps.Writer),
		logger:     slog.Default(),
	}
}

// Collect fetches the games for date and the coverage for each game. A failed
// news lookup leaves that game without coverage. The collection is saved
// when a store is configured.
func (p *Pipeline) Collect(ctx context.Context, date time.Time) ([]store.GameNews, error) {
	day := date.Format(games.DateLayout)
	gs, err := p.deps.Games.FetchGames(ctx, date)
	if err != nil {
		return nil, newStageError(StageFetch, err)
	}
	p.logger.Info("games fetched", "date", day, "count", len(gs))

	items := make([]store.GameNews, 0, len(gs))
	for _, g := range gs {
		items = append(items, store.GameNews{Game: g, News: p.lookup(ctx, g, date)})
	}

	if p.deps.Store != nil {
		if err := p.deps.Store.SaveCollection(ctx, day, items); err != nil {
			return items, fmt.Errorf("save collection: %w", err)
		}
	}
	return items, nil
}

func (p *Pipeline) lookup(ctx context.Context, g games.Game, date time.Time) []news.Article {
	if p.deps.News == nil {
		return []news.Article{}
	}
	articles, err := p.deps.News.Search(ctx, news.Query{
		HomeTeam: g.HomeTeam,
		AwayTeam: g.AwayTeam,
		Date:     date,
		Limit:    p.deps.NewsLimit,
	})
	if err != nil {
		se := newStageError(StageNews, err)
		p.logger.Warn("news lookup failed, continuing without coverage",
			"game", g.Score(), "kind", se.Kind, "error", err)
		return []news.Article{}
	}
	if articles == nil {
		articles = []news.Article{}
	}
	p.logger.Debug("news found", "game", g.Score(), "articles", len(articles))
	return articles
}

// Generate writes the article for a collected date and saves it when a store
// is configured.
func (p *Pipeline) Generate(ctx context.Context, date time.Time, items []store.GameNews) (*writer.Article, error) {
	return p.generate(ctx, uuid.NewString(), date, items)
}

func (p *Pipeline) generate(ctx context.Context, runID string, date time.Time, items []store.GameNews) (*writer.Article, error) {
	if len(items) > 0 && p.deps.LLM == nil {
		return nil, newStageError(StageSummarize, llm.ErrMissingAPIKey)
	}

	summaries := make([]writer.GameSummary, 0, len(items))
	for i, item := range items {
		p.logger.Info("summarizing game", "game", item.Game.Score(), "index", i+1, "total", len(items))
		s, err := p.summarizer.Summarize(ctx, item.Game, item.News)
		if err != nil {
			return nil, newStageError(StageSummarize, err)
		}
		summaries = append(summaries, s)
	}

	article, err := p.composer.Compose(ctx, date, summaries)
	if err != nil {
		return nil, newStageError(StageCompose, err)
	}
	article.RunID = runID

	if p.deps.Store != nil {
		if err := p.deps.Store.SaveRecap(ctx, article); err != nil {
			return article, fmt.Errorf("save recap: %w", err)
		}
	}
	return article, nil
}

// GenerateStored writes the article from the saved collection for date,
// collecting first when nothing was saved.
func (p *Pipeline) GenerateStored(ctx context.Context, date time.Time) (*writer.Article, error) {
	if p.deps.Store == nil {
		items, err := p.Collect(ctx, date)
		if err != nil {
			return nil, err
		}
		return p.Generate(ctx, date, items)
	}
	items, err := p.deps.Store.LoadCollection(ctx, date.Format(games.DateLayout))
	if errors.Is(err, store.ErrNotFound) {
		items, err = p.Collect(ctx, date)
	}
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, date, items)
}

// Publish uploads article and records the publication.
func (p *Pipeline) Publish(ctx context.Context, article *writer.Article) (*publisher.Receipt, error) {
	if p.deps.Publisher == nil {
		return nil, newStageError(StagePublish, transfer.ErrMissingCredentials)
	}
	receipt, err := p.deps.Publisher.Publish(ctx, article)
	if err != nil {
		return nil, newStageError(StagePublish, err)
	}
	if p.deps.Store != nil {
		err := p.deps.Store.RecordPublication(ctx, store.Publication{
			Date:        article.Date,
			RunID:       article.RunID,
			Slug:        receipt.Slug,
			URL:         receipt.URL,
			Target:      receipt.Target,
			Files:       receipt.Files,
			PublishedAt: receipt.PublishedAt,
		})
		if err != nil {
			p.logger.Warn("failed to record publication", "date", article.Date, "error", err)
		}
	}
	return receipt, nil
}

// Republish uploads the stored article for date without regenerating it.
func (p *Pipeline) Republish(ctx context.Context, date time.Time) (*publisher.Receipt, error) {
	if p.deps.Store == nil {
		return nil, fmt.Errorf("republish: no store configured")
	}
	day := date.Format(games.DateLayout)
	article, err := p.deps.Store.GetRecap(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load recap %s: %w", day, err)
	}
	receipt, err := p.Publish(ctx, article)
	if err != nil {
		p.notifyFailure(ctx, day, err)
		return nil, err
	}
	return receipt, nil
}

// Run executes every stage for date. With publish false it stops after the
// article is written. On failure the result still carries the games and any
// article produced before the failing stage.
func (p *Pipeline) Run(ctx context.Context, date time.Time, publish bool) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), Date: date.Format(games.DateLayout), Games: []games.Game{}}
	p.logger.Info("recap run started", "date", res.Date, "run_id", res.RunID, "publish", publish)
	start := time.Now()

	items, err := p.Collect(ctx, date)
	res.Collection = items
	for _, item := range items {
		res.Games = append(res.Games, item.Game)
	}
	if err != nil {
		return res, p.fail(ctx, res, err)
	}

	res.Article, err = p.generate(ctx, res.RunID, date, items)
	if err != nil {
		return res, p.fail(ctx, res, err)
	}
	if !publish {
		p.logger.Info("recap run finished", "date", res.Date, "sections", len(res.Article.Sections), "duration", time.Since(start))
		return res, nil
	}

	res.Receipt, err = p.Publish(ctx, res.Article)
	if err != nil {
		return res, p.fail(ctx, res, err)
	}
	p.logger.Info("recap run finished", "date", res.Date, "url", res.Receipt.URL, "duration", time.Since(start))
	return res, nil
}

func (p *Pipeline) fail(ctx context.Context, res *Result, err error) error {
	p.logger.Error("recap run failed", "date", res.Date, "run_id", res.RunID, "stage", StageOf(err), "error", err)
	p.notifyFailure(ctx, res.Date, err)
	return err
}

func (p *Pipeline) notifyFailure(ctx context.Context, day string, err error) {
	if p.deps.Notifier == nil || p.deps.Notifier.Len() == 0 {
		return
	}
	stage := string(StageOf(err))
	if stage == "" {
		stage = "storage"
	}
	if nerr := p.deps.Notifier.SendAll(ctx, notify.FormatFailure(day, stage, err)); nerr != nil {
		p.logger.Warn("failure notification not delivered", "error", nerr)
	}
}
