package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shpitdev/leadscraper/internal/fetch"
)

func TestFetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<p>contact@acme.test</p>"))
		case "/latin1":
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte("caf\xe9"))
		case "/empty":
			w.WriteHeader(http.StatusOK)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		case "/created":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("not ok enough"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := fetch.New(fetch.Config{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	t.Run("200 returns body with browser user agent", func(t *testing.T) {
		got, err := f.Fetch(ctx, srv.URL+"/ok")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "<p>contact@acme.test</p>" {
			t.Fatalf("unexpected body: %q", got)
		}
		if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
			t.Fatalf("unexpected user agent: %q", gotUA)
		}
	})

	t.Run("declared charset is decoded to utf-8", func(t *testing.T) {
		got, err := f.Fetch(ctx, srv.URL+"/latin1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "café" {
			t.Fatalf("unexpected body: %q", got)
		}
	})

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "404", path: "/missing", wantErr: fetch.ErrStatus},
		{name: "201 is not 200", path: "/created", wantErr: fetch.ErrStatus},
		{name: "empty body", path: "/empty", wantErr: fetch.ErrEmpty},
		{name: "timeout", path: "/slow", wantErr: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Fetch(ctx, srv.URL+tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got != "" {
				t.Fatalf("expected empty content, got %q", got)
			}
		})
	}

	t.Run("connection error", func(t *testing.T) {
		got, err := f.Fetch(ctx, "http://127.0.0.1:1/unreachable")
		if err == nil {
			t.Fatalf("expected error")
		}
		if got != "" {
			t.Fatalf("expected empty content, got %q", got)
		}
	})

	t.Run("malformed url", func(t *testing.T) {
		if _, err := f.Fetch(ctx, "://nope"); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestStatusError(t *testing.T) {
	err := error(&fetch.StatusError{URL: "https://acme.test", StatusCode: 503})
	var se *fetch.StatusError
	if !errors.As(err, &se) || se.StatusCode != 503 {
		t.Fatalf("expected StatusError, got %#v", err)
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
