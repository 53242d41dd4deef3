package build

import (
	"testing"
	"time"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/content"
)

func newTestLibrary(t *testing.T, pages ...*content.Page) *content.Library {
	t.Helper()
	lib := content.NewLibrary()
	lib.InsertSection(&content.Section{SourceDir: "", Render: true})
	for _, p := range pages {
		lib.InsertPage(p)
	}
	lib.PopulateSections()
	return lib
}

func TestGenerateTaxonomyPagesPaginates(t *testing.T) {
	pages := make([]*content.Page, 0, 12)
	for i := 0; i < 12; i++ {
		pages = append(pages, &content.Page{
			Title:  "Post",
			Type:   content.PageTypeSingle,
			Render: true,
			Tags:   []string{"go"},
		})
	}
	lib := newTestLibrary(t, pages...)

	cfg := config.Default()
	cfg.Pagination.PageSize = 5
	lib.PopulateTaxonomies(cfg)

	b := &Builder{config: cfg}
	out := b.generateTaxonomyPages(lib, "https://example.com")

	var listPages, termPages int
	for _, p := range out {
		switch p.Type {
		case content.PageTypeTaxonomyList:
			listPages++
		case content.PageTypeTaxonomy:
			termPages++
		}
	}
	if listPages != 2 {
		t.Errorf("expected 2 taxonomy list pages (tags, categories), got %d", listPages)
	}
	// 12 pages at 5/page = 3 pagers for the "go" term in "tags"; "categories"
	// has no terms at all, so only tags contributes term pages.
	if termPages != 3 {
		t.Errorf("expected 3 paginated term pages, got %d", termPages)
	}
}

func TestGenerateTaxonomyPagesNoTermPagesWithoutTaggedPages(t *testing.T) {
	lib := newTestLibrary(t)
	cfg := config.Default()
	lib.PopulateTaxonomies(cfg)

	b := &Builder{config: cfg}
	out := b.generateTaxonomyPages(lib, "https://example.com")

	// No tagged pages at all means no terms, so no term pages are emitted;
	// the list pages for the two default taxonomies (tags, categories) are
	// still generated, since generateTaxonomyPages emits a list page per
	// taxonomy regardless of term count.
	for _, p := range out {
		if p.Type == content.PageTypeTaxonomy {
			t.Errorf("expected no term pages when nothing is tagged, got %+v", p)
		}
	}
}

func TestGenerateSectionListPagesSkipsRoot(t *testing.T) {
	lib := content.NewLibrary()
	lib.InsertSection(&content.Section{SourceDir: "", Render: true})
	blog := &content.Section{SourceDir: "blog", Render: true, URL: "/blog/"}
	lib.InsertSection(blog)
	for i := 0; i < 3; i++ {
		lib.InsertPage(&content.Page{
			Type:      content.PageTypeSingle,
			Render:    true,
			SourceDir: "blog",
			Date:      time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
	}
	lib.PopulateSections()
	lib.SortSectionPages(nil)

	cfg := config.Default()
	b := &Builder{config: cfg}
	out := b.generateSectionListPages(lib, "https://example.com")

	if len(out) != 1 {
		t.Fatalf("expected exactly one section list page (blog), got %d", len(out))
	}
	if out[0].URL != "/blog/" {
		t.Errorf("expected /blog/ list page, got %q", out[0].URL)
	}
	if len(out[0].Pager.Pages) != 3 {
		t.Errorf("expected 3 pages in the blog section pager, got %d", len(out[0].Pager.Pages))
	}
}
