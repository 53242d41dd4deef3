package build

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/kilnhq/kiln/internal/content"
)

func TestRenderParallelRunsEveryPage(t *testing.T) {
	pages := make([]*content.Page, 20)
	for i := range pages {
		pages[i] = &content.Page{SourcePath: "page.md"}
	}

	var count int64
	err := renderParallel(pages, 4, func(*content.Page) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != int64(len(pages)) {
		t.Errorf("expected %d invocations, got %d", len(pages), count)
	}
}

func TestRenderParallelPropagatesFirstError(t *testing.T) {
	pages := []*content.Page{
		{SourcePath: "a.md"},
		{SourcePath: "b.md"},
	}
	wantErr := errors.New("boom")

	err := renderParallel(pages, 2, func(p *content.Page) error {
		if p.SourcePath == "b.md" {
			return wantErr
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped %v, got %v", wantErr, err)
	}
}

func TestRenderParallelEmpty(t *testing.T) {
	if err := renderParallel(nil, 4, func(*content.Page) error {
		t.Fatal("fn should not be called for an empty page list")
		return nil
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
