package linkcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestExtractExternalLinks(t *testing.T) {
	html := `<p><a href="https://example.com/a">a</a>
<a href="/internal/">internal</a>
<a href="https://example.com/a">a again</a>
<a href="http://other.test/b#frag">b</a></p>`

	got := ExtractExternalLinks(html)
	want := []string{"https://example.com/a", "http://other.test/b#frag"}
	if len(got) != len(want) {
		t.Fatalf("ExtractExternalLinks() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCheckerStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/anchored":
			w.Write([]byte(`<html><body><h2 id="section-two">Two</h2></body></html>`))
		}
	}))
	defer srv.Close()

	c := NewChecker(2 * time.Second)
	ctx := context.Background()

	if err := c.Check(ctx, srv.URL+"/ok"); err != nil {
		t.Errorf("ok URL: unexpected error %v", err)
	}

	err := c.Check(ctx, srv.URL+"/missing")
	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Kind != ErrStatus || lerr.Status != 404 {
		t.Errorf("missing URL: got %v, want ErrStatus 404", err)
	}

	if err := c.Check(ctx, srv.URL+"/anchored#section-two"); err != nil {
		t.Errorf("present anchor: unexpected error %v", err)
	}

	err = c.Check(ctx, srv.URL+"/anchored#nope")
	if !errors.As(err, &lerr) || lerr.Kind != ErrAnchorNotFound {
		t.Errorf("absent anchor: got %v, want ErrAnchorNotFound", err)
	}
}

func TestCheckerCachesProbes(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewChecker(2 * time.Second)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := c.Check(ctx, srv.URL+"/cached"); err != nil {
			t.Fatalf("Check() error = %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (cache miss only on first probe)", hits.Load())
	}
}

func TestCheckPagesReportsEveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/good" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pages := map[string]string{
		"/a/": `<a href="` + srv.URL + `/good">g</a> <a href="` + srv.URL + `/bad1">b</a>`,
		"/b/": `<a href="` + srv.URL + `/bad2">b</a>`,
	}

	c := NewChecker(2 * time.Second)
	failures := c.CheckPages(context.Background(), pages, 4)
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2: %v", len(failures), failures)
	}
}
