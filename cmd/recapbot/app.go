package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/config"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/news"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/pipeline"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/scheduler"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/store"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/notify"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/scraper"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

// app holds the components every command shares.
type app struct {
	cfg        config.Config
	loc        *time.Location
	store      *store.Store
	llm        llm.Client
	dispatcher *notify.Dispatcher
	pipeline   *pipeline.Pipeline
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, loc: loc, store: st, dispatcher: notify.FromConfig(cfg.Notify)}
	deps := pipeline.Deps{
		Games:     games.NewStatsClient(cfg.Stats),
		Store:     st,
		Notifier:  a.dispatcher,
		Writer:    cfg.Writer,
		NewsLimit: cfg.News.Limit,
	}

	client, err := llm.NewClient(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		slog.Warn("LLM API key not set; generation will fail until LLM_API_KEY or OPENAI_API_KEY is set")
	case err != nil:
		st.Close()
		return nil, fmt.Errorf("create LLM client: %w", err)
	default:
		a.llm = client
		deps.LLM = client
	}

	searcher, err := newsSearcher(cfg.News)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.News = searcher

	uploader, err := newUploader(cfg)
	switch {
	case errors.Is(err, transfer.ErrMissingCredentials):
		slog.Warn("SFTP credentials not set; publishing is disabled", "host", cfg.SFTP.Host)
	case err != nil:
		a.Close()
		return nil, err
	default:
		deps.Publisher = publisher.New(cfg.Blog, uploader, a.dispatcher)
	}

	a.pipeline = pipeline.New(deps)
	return a, nil
}

func newsSearcher(cfg config.NewsConfig) (news.Searcher, error) {
	rss := news.NewGoogleNewsRSS(cfg.RSS, scraper.NewHTTPFetcher())
	switch cfg.Provider {
	case config.NewsRSS:
		return rss, nil
	case config.NewsEventRegistry:
		er, err := news.NewEventRegistry(cfg.EventRegistry)
		if err != nil {
			return nil, fmt.Errorf("news provider eventregistry: %w", err)
		}
		return er, nil
	default:
		er, err := news.NewEventRegistry(cfg.EventRegistry)
		if err != nil {
			slog.Info("EventRegistry key not set, using Google News RSS")
			return rss, nil
		}
		return news.WithFallback(er, rss), nil
	}
}

func newUploader(cfg config.Config) (transfer.Uploader, error) {
	if cfg.OutputDir != "" {
		return transfer.NewDirUploader(cfg.OutputDir), nil
	}
	return transfer.NewSFTPUploader(cfg.SFTP)
}

// gameDate parses --date, defaulting to yesterday in the league's timezone.
func (a *app) gameDate(raw string) (time.Time, error) {
	if raw == "" {
		return scheduler.GameDay(time.Now(), a.loc), nil
	}
	d, err := time.ParseInLocation(games.DateLayout, raw, a.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", raw)
	}
	return d, nil
}

func (a *app) Close() {
	if a.llm != nil {
		a.llm.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
