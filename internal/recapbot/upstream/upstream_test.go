package upstream

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheck(t *testing.T) {
	if err := Check("stats", response(204, "")); err != nil {
		t.Fatalf("expected nil for 2xx, got %v", err)
	}

	err := Check("stats", response(429, "  slow down \n"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if !se.RateLimited() || se.Unauthorized() {
		t.Fatalf("unexpected classification %+v", se)
	}
	if se.Error() != "stats: status 429: slow down" {
		t.Fatalf("unexpected message %q", se.Error())
	}

	err = Check("stats", response(403, strings.Repeat("x", 2000)))
	if !errors.As(err, &se) || !se.Unauthorized() {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(se.Message) != 512 {
		t.Fatalf("expected body excerpt capped at 512 bytes, got %d", len(se.Message))
	}
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := error(&DecodeError{Service: "eventregistry", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("expected DecodeError to unwrap")
	}
	if err.Error() != "eventregistry: decode response: unexpected EOF" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
