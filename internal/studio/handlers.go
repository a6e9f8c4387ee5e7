package studio

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/games"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/pipeline"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/publisher"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/store"
	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/writer"
)

// Preview is a recap as the studio shows it.
type Preview struct {
	Date       string             `json:"date"`
	Title      string             `json:"title"`
	Games      []games.Game       `json:"games"`
	Markdown   string             `json:"markdown"`
	HTML       string             `json:"html"`
	TokensUsed int                `json:"tokens_used"`
	Cost       float64            `json:"cost"`
	Receipt    *publisher.Receipt `json:"receipt,omitempty"`
}

// RunFailure reports a failed generation. Games fetched before the failure
// are still returned.
type RunFailure struct {
	Error string       `json:"error"`
	Stage string       `json:"stage,omitempty"`
	Kind  string       `json:"kind,omitempty"`
	Games []games.Game `json:"games"`
}

func (s *Server) handleGenerate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := s.parseDate(w, r)
		if !ok {
			return
		}
		publish := r.URL.Query().Get("publish") == "true"

		if !s.run.TryLock() {
			respondError(w, http.StatusConflict, "a recap run is already in progress")
			return
		}
		defer s.run.Unlock()

		res, err := s.runner.Run(r.Context(), date, publish)
		if err != nil {
			s.respondRunError(w, res, err)
			return
		}
		preview, err := s.preview(res.Article)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		preview.Games = res.Games
		preview.Receipt = res.Receipt
		respondJSON(w, http.StatusOK, preview)
	}
}

func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := s.parseDate(w, r)
		if !ok {
			return
		}
		article, err := s.recaps.GetRecap(r.Context(), date.Format(games.DateLayout))
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "no recap generated for this date")
			return
		}
		if err != nil {
			s.logger.Error("failed to load recap", "error", err)
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		preview, err := s.preview(article)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, preview)
	}
}

func (s *Server) handlePublish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := s.parseDate(w, r)
		if !ok {
			return
		}
		if !s.run.TryLock() {
			respondError(w, http.StatusConflict, "a recap run is already in progress")
			return
		}
		defer s.run.Unlock()

		receipt, err := s.runner.Republish(r.Context(), date)
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "generate the recap before publishing")
			return
		}
		if err != nil {
			s.respondRunError(w, nil, err)
			return
		}
		respondJSON(w, http.StatusOK, receipt)
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 30
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				respondError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		entries, err := s.recaps.History(r.Context(), limit)
		if err != nil {
			s.logger.Error("failed to load history", "error", err)
			respondError(w, http.StatusInternalServerError, "database error")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"recaps": entries})
	}
}

func (s *Server) parseDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.PathValue("date")
	date, err := time.ParseInLocation(games.DateLayout, raw, s.cfg.Location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func (s *Server) preview(a *writer.Article) (*Preview, error) {
	markdown := a.Markdown()
	html, err := s.renderer.Content(markdown)
	if err != nil {
		return nil, err
	}
	return &Preview{
		Date:       a.Date,
		Title:      a.Title,
		Games:      a.Games(),
		Markdown:   markdown,
		HTML:       html,
		TokensUsed: a.TokensUsed,
		Cost:       a.Cost,
	}, nil
}

func (s *Server) respondRunError(w http.ResponseWriter, res *pipeline.Result, err error) {
	failure := RunFailure{Error: err.Error(), Games: []games.Game{}}
	if res != nil && res.Games != nil {
		failure.Games = res.Games
	}

	status := http.StatusInternalServerError
	var se *pipeline.StageError
	if errors.As(err, &se) {
		failure.Stage = string(se.Stage)
		failure.Kind = string(se.Kind)
		switch se.Kind {
		case pipeline.KindMissingCredentials:
			status = http.StatusFailedDependency
		case pipeline.KindCanceled:
			status = http.StatusRequestTimeout
		default:
			status = http.StatusBadGateway
		}
	}
	s.logger.Error("recap run failed", "stage", failure.Stage, "kind", failure.Kind, "error", err)
	respondJSON(w, status, failure)
}
