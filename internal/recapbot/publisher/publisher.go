// Package publisher renders a recap for the blog and uploads it.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/notify"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/scorecard"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

// ExcerptLength is the longest excerpt placed in the envelope.
const ExcerptLength = 200

// Config controls how articles appear on the blog.
type Config struct {
	PublicURL  string `yaml:"public_url" json:"public_url" env:"BLOG_PUBLIC_URL"`
	Author     string `yaml:"author" json:"author" env:"BLOG_AUTHOR"`
	CoverImage bool   `yaml:"cover_image" json:"cover_image" env:"BLOG_COVER_IMAGE"`
}

// Envelope is the JSON document the blog front end reads.
type Envelope struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Excerpt     string   `json:"excerpt"`
	Image       string   `json:"image"`
	Author      string   `json:"author"`
	PublishedAt string   `json:"published_at"`
	URL         string   `json:"url"`
	ContentHTML string   `json:"content_html"`
	Date        string   `json:"date"`
	Games       []string `json:"games"`
}

// Receipt describes a completed publication.
type Receipt struct {
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Image       string    `json:"image,omitempty"`
	Target      string    `json:"target"`
	Files       []string  `json:"files"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher uploads rendered recaps and announces them.
type Publisher struct {
	cfg        Config
	uploader   transfer.Uploader
	renderer   *Renderer
	cards      *scorecard.Renderer
	dispatcher *notify.Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a publisher. dispatcher may be nil.
func New(cfg Config, uploader transfer.Uploader, dispatcher *notify.Dispatcher) *Publisher {
	if cfg.Author == "" {
		cfg.Author = "NBA Recap Desk"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Publisher{
		cfg:        cfg,
		uploader:   uploader,
		renderer:   NewRenderer(),
		cards:      scorecard.NewRenderer(),
		dispatcher: dispatcher,
		now:        time.Now,
		logger:     slog.Default(),
	}
}

// Prepared is a rendered article ready for upload.
type Prepared struct {
	Envelope Envelope
	Files    []transfer.File
}

// Prepare renders the envelope, the standalone page and the optional cover
// image. File names derive from the game date and slug, so preparing the same
// article again yields the same names.
func (p *Publisher) Prepare(a *writer.Article) (*Prepared, error) {
	content, err := p.renderer.Content(a.Markdown())
	if err != nil {
		return nil, err
	}

	slug := Slugify(a.Title)
	if slug == "" {
		slug = "nba-recap-" + a.Date
	}
	env := Envelope{
		ID:          slug,
		Slug:        slug,
		Title:       a.Title,
		Excerpt:     Excerpt(content, ExcerptLength),
		Author:      p.cfg.Author,
		PublishedAt: p.now().UTC().Format(time.RFC3339),
		URL:         p.publicPath(slug),
		ContentHTML: content,
		Date:        a.Date,
		Games:       make([]string, 0, len(a.Sections)),
	}
	for _, s := range a.Sections {
		env.Games = append(env.Games, s.Game.Score())
	}

	var files []transfer.File
	if p.cfg.CoverImage {
		png, err := p.cards.RenderPNG(card(a))
		if err != nil {
			return nil, err
		}
		imageName := "images/" + slug + ".png"
		env.Image = p.publicPath(imageName)
		files = append(files, transfer.File{Name: imageName, Data: png})
	}

	page, err := Page(env)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	base := strings.ReplaceAll(a.Date, "-", "") + "-" + slug
	files = append(files,
		transfer.File{Name: base + ".html", Data: page},
		transfer.File{Name: base + ".json", Data: data},
	)
	return &Prepared{Envelope: env, Files: files}, nil
}

// Publish uploads the article. Announcement failures are logged and do not
// fail the publication.
func (p *Publisher) Publish(ctx context.Context, a *writer.Article) (*Receipt, error) {
	prepared, err := p.Prepare(a)
	if err != nil {
		return nil, err
	}

	p.logger.Info("publishing article", "date", a.Date, "slug", prepared.Envelope.Slug, "target", p.uploader.Target())
	written, err := p.uploader.Upload(ctx, prepared.Files)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", prepared.Envelope.Slug, err)
	}

	receipt := &Receipt{
		Slug:        prepared.Envelope.Slug,
		URL:         prepared.Envelope.URL,
		Image:       prepared.Envelope.Image,
		Target:      p.uploader.Target(),
		Files:       written,
		PublishedAt: p.now(),
	}
	p.logger.Info("article published", "date", a.Date, "url", receipt.URL, "files", len(written))

	p.announce(ctx, a, prepared.Envelope)
	return receipt, nil
}

func (p *Publisher) announce(ctx context.Context, a *writer.Article, env Envelope) {
	if p.dispatcher == nil || p.dispatcher.Len() == 0 {
		return
	}
	msg := notify.FormatRecap(notify.RecapAnnouncement{
		Title:   a.Title,
		Date:    a.Date,
		URL:     env.URL,
		Excerpt: env.Excerpt,
		Scores:  env.Games,
	})
	if err := p.dispatcher.SendAll(ctx, msg); err != nil {
		p.logger.Warn("announcement failed", "date", a.Date, "error", err)
	}
}

func (p *Publisher) publicPath(name string) string {
	if p.cfg.PublicURL == "" {
		return "/" + name
	}
	return p.cfg.PublicURL + "/" + name
}

func card(a *writer.Article) scorecard.Card {
	c := scorecard.Card{Title: a.Title, Date: a.Date, Footer: "Final scores · winners highlighted"}
	for _, s := range a.Sections {
		c.Rows = append(c.Rows, scorecard.Row{
			Home:      s.Game.HomeTeam,
			Away:      s.Game.AwayTeam,
			HomeScore: s.Game.HomeScore,
			AwayScore: s.Game.AwayScore,
		})
	}
	return c
}
