package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/RobinCoderZhao/hoopsrecap/internal/recapbot/upstream"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/llm"
	"github.com/RobinCoderZhao/hoopsrecap/pkg/transfer"
)

// Stage names a pipeline step.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNews      Stage = "news"
	StageSummarize Stage = "summarize"
	StageCompose   Stage = "compose"
	StagePublish   Stage = "publish"
)

// Kind classifies the cause of a stage failure.
type Kind string

const (
	KindAuth               Kind = "auth"
	KindRateLimit          Kind = "rate_limit"
	KindNetwork            Kind = "network"
	KindUpstream           Kind = "upstream"
	KindDecode             Kind = "decode"
	KindMissingCredentials Kind = "missing_credentials"
	KindCanceled           Kind = "canceled"
	KindInternal           Kind = "internal"
)

// Stage sentinels for errors.Is.
var (
	ErrFetch     = errors.New("fetch games failed")
	ErrNews      = errors.New("news lookup failed")
	ErrSummarize = errors.New("game summary failed")
	ErrCompose   = errors.New("article composition failed")
	ErrPublish   = errors.New("publish failed")
)

var sentinels = map[Stage]error{
	StageFetch:     ErrFetch,
	StageNews:      ErrNews,
	StageSummarize: ErrSummarize,
	StageCompose:   ErrCompose,
	StagePublish:   ErrPublish,
}

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: Classify(err), Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches the sentinel of the failed stage.
func (e *StageError) Is(target error) bool {
	return target != nil && sentinels[e.Stage] == target
}

// StageOf returns the stage of err, or "" when err did not come from a stage.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Classify maps provider and transport errors to a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, upstream.ErrMissingCredentials),
		errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, transfer.ErrMissingCredentials):
		return KindMissingCredentials
	case errors.Is(err, transfer.ErrAuth):
		return KindAuth
	case errors.Is(err, transfer.ErrUnreachable):
		return KindNetwork
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}

	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Unauthorized():
			return KindAuth
		case statusErr.RateLimited():
			return KindRateLimit
		}
		return KindUpstream
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Unauthorized():
			return KindAuth
		case apiErr.RateLimited():
			return KindRateLimit
		}
		return KindUpstream
	}
	var decodeErr *upstream.DecodeError
	if errors.As(err, &decodeErr) {
		return KindDecode
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindInternal
}
