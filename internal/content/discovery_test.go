package content

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/kilnhq/kiln/internal/config"
)

// testdataDir returns the absolute path to the testdata/site fixture directory.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to determine test file path")
	}
	return filepath.Join(filepath.Dir(file), "testdata", "site")
}

// findPageByURL finds a page with the given URL in the pages slice.
// Returns nil if not found.
func findPageByURL(pages []*Page, url string) *Page {
	for _, p := range pages {
		if p.URL == url {
			return p
		}
	}
	return nil
}

// findPageByTitle finds a page with the given title in the pages slice.
// Returns nil if not found.
func findPageByTitle(pages []*Page, title string) *Page {
	for _, p := range pages {
		if p.Title == title {
			return p
		}
	}
	return nil
}

func findSectionByDir(sections []*Section, dir string) *Section {
	for _, s := range sections {
		if s.SourceDir == dir {
			return s
		}
	}
	return nil
}

func TestDiscover(t *testing.T) {
	contentDir := testdataDir(t)
	cfg := config.Default()

	lib, err := Discover(contentDir, cfg)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	pages := lib.AllPages()
	sections := lib.AllSections()

	// 5 pages: about.md, blog/first-post.md, blog/2025-01-15-second-post.md,
	// blog/bundled-post/index.md, projects/my-project.md.
	if len(pages) != 5 {
		t.Errorf("Discover() returned %d pages, want 5", len(pages))
		for _, p := range pages {
			t.Logf("  page: %q URL=%q Type=%s", p.Title, p.URL, p.Type)
		}
	}

	// 3 sections: root _index.md, blog/_index.md, projects/_index.md.
	if len(sections) != 3 {
		t.Errorf("Discover() returned %d sections, want 3", len(sections))
	}

	root := lib.Root()
	if root == nil {
		t.Fatal("root section not found")
	}
	if root.Title != "Home" {
		t.Errorf("root section Title = %q, want %q", root.Title, "Home")
	}
	if root.URL != "/" {
		t.Errorf("root section URL = %q, want %q", root.URL, "/")
	}

	blog := findSectionByDir(sections, "blog")
	if blog == nil {
		t.Fatal("blog section not found")
	}
	if blog.Title != "Blog" {
		t.Errorf("blog section Title = %q, want %q", blog.Title, "Blog")
	}
	if blog.URL != "/blog/" {
		t.Errorf("blog section URL = %q, want %q", blog.URL, "/blog/")
	}

	// Verify single post URLs
	firstPost := findPageByURL(pages, "/blog/first-post/")
	if firstPost == nil {
		t.Fatal("first post with URL \"/blog/first-post/\" not found")
	}
	if firstPost.Type != PageTypeSingle {
		t.Errorf("first post Type = %v, want PageTypeSingle", firstPost.Type)
	}
	if firstPost.Title != "First Post" {
		t.Errorf("first post Title = %q, want %q", firstPost.Title, "First Post")
	}
	if len(firstPost.Tags) != 2 || firstPost.Tags[0] != "go" || firstPost.Tags[1] != "testing" {
		t.Errorf("first post Tags = %v, want [go testing]", firstPost.Tags)
	}
	if firstPost.Canonical != "blog/first-post" {
		t.Errorf("first post Canonical = %q, want %q", firstPost.Canonical, "blog/first-post")
	}

	// Verify about page (root single page, no section)
	about := findPageByURL(pages, "/about/")
	if about == nil {
		t.Fatal("about page with URL \"/about/\" not found")
	}
	if about.Section != "" {
		t.Errorf("about page Section = %q, want empty string", about.Section)
	}

	myProject := findPageByURL(pages, "/projects/my-project/")
	if myProject == nil {
		t.Fatal("my-project page with URL \"/projects/my-project/\" not found")
	}
	if myProject.Section != "projects" {
		t.Errorf("my-project Section = %q, want %q", myProject.Section, "projects")
	}
}

func TestDiscoverPageBundle(t *testing.T) {
	contentDir := testdataDir(t)
	cfg := config.Default()

	lib, err := Discover(contentDir, cfg)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	pages := lib.AllPages()

	bundled := findPageByURL(pages, "/blog/bundled-post/")
	if bundled == nil {
		t.Fatal("bundled post with URL \"/blog/bundled-post/\" not found")
	}

	if !bundled.IsBundle {
		t.Error("bundled post IsBundle = false, want true")
	}

	if bundled.Type != PageTypeSingle {
		t.Errorf("bundled post Type = %v, want PageTypeSingle", bundled.Type)
	}

	// Verify BundleFiles contains diagram.png
	found := slices.Contains(bundled.BundleFiles, "diagram.png")
	if !found {
		t.Errorf("bundled post BundleFiles = %v, want to contain \"diagram.png\"", bundled.BundleFiles)
	}
}

func TestDiscoverDatePrefix(t *testing.T) {
	contentDir := testdataDir(t)
	cfg := config.Default()

	lib, err := Discover(contentDir, cfg)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	pages := lib.AllPages()

	secondPost := findPageByTitle(pages, "Second Post")
	if secondPost == nil {
		t.Fatal("second post not found by title")
	}

	// Slug should have the date prefix stripped.
	if secondPost.Slug != "second-post" {
		t.Errorf("second post Slug = %q, want %q", secondPost.Slug, "second-post")
	}

	// Draft should be true.
	if !secondPost.Draft {
		t.Error("second post Draft = false, want true")
	}

	// URL should use the slug without date prefix.
	if secondPost.URL != "/blog/second-post/" {
		t.Errorf("second post URL = %q, want %q", secondPost.URL, "/blog/second-post/")
	}
}

func TestDiscoverReadingTime(t *testing.T) {
	contentDir := testdataDir(t)
	cfg := config.Default()

	lib, err := Discover(contentDir, cfg)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	pages := lib.AllPages()

	firstPost := findPageByURL(pages, "/blog/first-post/")
	if firstPost == nil {
		t.Fatal("first post not found")
	}

	if firstPost.WordCount == 0 {
		t.Error("first post WordCount = 0, want > 0")
	}

	if firstPost.ReadingTime == 0 {
		t.Error("first post ReadingTime = 0, want >= 1")
	}

	// With fewer than 200 words, reading time should be 1 (minimum).
	if firstPost.ReadingTime != 1 {
		t.Errorf("first post ReadingTime = %d, want 1 (fewer than 200 words)", firstPost.ReadingTime)
	}

	// Verify about page also has word count
	about := findPageByURL(pages, "/about/")
	if about == nil {
		t.Fatal("about page not found")
	}
	if about.WordCount == 0 {
		t.Error("about page WordCount = 0, want > 0")
	}
}

// writeSite lays out a content tree from a map of relative path -> file body.
func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDiscoverLanguageSuffix(t *testing.T) {
	contentDir := writeSite(t, map[string]string{
		"_index.md":         "+++\ntitle = \"Home\"\n+++\n",
		"blog/_index.md":    "+++\ntitle = \"Blog\"\n+++\n",
		"blog/hello.md":     "+++\ntitle = \"Hello\"\n+++\nHi.\n",
		"blog/hello.fr.md":  "+++\ntitle = \"Bonjour\"\n+++\nSalut.\n",
		"blog/_index.fr.md": "+++\ntitle = \"Journal\"\n+++\n",
	})

	cfg := config.Default()
	cfg.Languages = []config.LanguageConfig{{Code: "fr"}}

	lib, err := Discover(contentDir, cfg)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	pages := lib.AllPages()

	en := findPageByTitle(pages, "Hello")
	if en == nil {
		t.Fatal("English page not found")
	}
	if en.Lang != "en" {
		t.Errorf("en.Lang = %q, want %q", en.Lang, "en")
	}
	if en.URL != "/blog/hello/" {
		t.Errorf("en.URL = %q, want %q", en.URL, "/blog/hello/")
	}

	fr := findPageByTitle(pages, "Bonjour")
	if fr == nil {
		t.Fatal("French page not found")
	}
	if fr.Lang != "fr" {
		t.Errorf("fr.Lang = %q, want %q", fr.Lang, "fr")
	}
	if fr.URL != "/fr/blog/hello/" {
		t.Errorf("fr.URL = %q, want %q", fr.URL, "/fr/blog/hello/")
	}

	// Same canonical identity groups the pair as translations.
	if en.Canonical != fr.Canonical {
		t.Errorf("Canonical mismatch: en=%q fr=%q", en.Canonical, fr.Canonical)
	}
	lib.PopulateSections()
	trans := lib.Translations(en.Key)
	if len(trans) != 1 || trans[0].Title != "Bonjour" {
		t.Errorf("en translations = %v, want [Bonjour]", titles(trans))
	}

	frSection := findSectionByDir(lib.AllSections(), "blog")
	if frSection == nil {
		t.Fatal("blog section not found")
	}
}

func TestDiscoverUnknownLanguageSuffix(t *testing.T) {
	contentDir := writeSite(t, map[string]string{
		"post.zz.md": "+++\ntitle = \"Mystery\"\n+++\n",
	})

	_, err := Discover(contentDir, config.Default())
	if err == nil {
		t.Fatal("expected error for unknown language suffix, got nil")
	}
}

func TestDiscoverExplicitPath(t *testing.T) {
	contentDir := writeSite(t, map[string]string{
		"misc/page.md": "+++\ntitle = \"Moved\"\npath = \"/about/company\"\n+++\n",
	})

	lib, err := Discover(contentDir, config.Default())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	p := findPageByTitle(lib.AllPages(), "Moved")
	if p == nil {
		t.Fatal("page not found")
	}
	if p.URL != "/about/company/" {
		t.Errorf("URL = %q, want %q", p.URL, "/about/company/")
	}
}

func TestDiscoverNestedSectionURL(t *testing.T) {
	contentDir := writeSite(t, map[string]string{
		"blog/_index.md":           "+++\ntitle = \"Blog\"\n+++\n",
		"blog/tutorials/_index.md": "+++\ntitle = \"Tutorials\"\n+++\n",
		"blog/tutorials/intro.md":  "+++\ntitle = \"Intro\"\n+++\n",
	})

	lib, err := Discover(contentDir, config.Default())
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	p := findPageByTitle(lib.AllPages(), "Intro")
	if p == nil {
		t.Fatal("page not found")
	}
	if p.URL != "/blog/tutorials/intro/" {
		t.Errorf("URL = %q, want %q", p.URL, "/blog/tutorials/intro/")
	}
}

func TestDeriveSlug(t *testing.T) {
	tests := []struct {
		sourcePath string
		isBundle   bool
		want       string
	}{
		{"blog/first-post.md", false, "first-post"},
		{"blog/2025-01-15-second-post.md", false, "second-post"},
		{"blog/bundled-post/index.md", true, "bundled-post"},
		{"blog/hello.fr.md", false, "hello"},
		{"about.md", false, "about"},
	}
	for _, tt := range tests {
		if got := DeriveSlug(tt.sourcePath, tt.isBundle); got != tt.want {
			t.Errorf("DeriveSlug(%q, %v) = %q, want %q", tt.sourcePath, tt.isBundle, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"My_Post_Title", "my-post-title"},
		{"UPPERCASE", "uppercase"},
		{"  spaces  ", "spaces"},
		{"special!@#$%chars", "specialchars"},
		{"multiple---hyphens", "multiple-hyphens"},
		{"file.name.ext", "file.name.ext"},
		{"---leading-trailing---", "leading-trailing"},
		{"Hello World!", "hello-world"},
		{"café", "caf"},
		{"a---b___c   d", "a-b-c-d"},
		{"", ""},
	}

	for _, tt := range tests {
		got := slugify(tt.input)
		if got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
