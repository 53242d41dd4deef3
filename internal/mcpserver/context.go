package mcpserver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/content"
	"github.com/kilnhq/kiln/internal/scaffold"
)

// SiteContext holds a lazily (re)loaded snapshot of a site's configuration
// and content Library, shared by every resource and tool handler. It is
// reloaded only when MarkDirty has been called since the last Load, so a
// burst of MCP requests between file changes reuses one Discover pass.
type SiteContext struct {
	mu       sync.RWMutex
	cfg      *config.Config
	lib      *content.Library
	siteDir  string
	loadedAt time.Time
	dirty    bool
}

// NewSiteContext creates a SiteContext rooted at siteDir. Nothing is loaded
// until the first call to Load.
func NewSiteContext(siteDir string) *SiteContext {
	return &SiteContext{siteDir: siteDir, dirty: true}
}

// Load returns the current site snapshot, reloading config and content from
// disk if the context has been marked dirty (or has never been loaded).
func (sc *SiteContext) Load() (*SiteContext, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.dirty && sc.lib != nil {
		return sc, nil
	}

	cfg, err := config.Load(filepath.Join(sc.siteDir, "kiln.yaml"))
	if err != nil {
		return nil, fmt.Errorf("mcpserver: loading config: %w", err)
	}

	lib, err := content.Discover(filepath.Join(sc.siteDir, "content"), cfg)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: discovering content: %w", err)
	}
	lib.PopulateSections()
	if err := lib.PopulateTaxonomies(cfg); err != nil {
		return nil, fmt.Errorf("mcpserver: populating taxonomies: %w", err)
	}

	sc.cfg = cfg
	sc.lib = lib
	sc.loadedAt = time.Now()
	sc.dirty = false

	return sc, nil
}

// MarkDirty flags the context for reload on the next Load call. Called by
// the file watcher whenever content, config, or layouts change.
func (sc *SiteContext) MarkDirty() {
	sc.mu.Lock()
	sc.dirty = true
	sc.mu.Unlock()
}

// pages returns every page in the Library. Callers must hold sc.mu.
func (sc *SiteContext) pages() []*content.Page {
	return sc.lib.AllPages()
}

// HasSection reports whether any page belongs to the named section.
func (sc *SiteContext) HasSection(name string) bool {
	for _, p := range sc.pages() {
		if p.Section == name {
			return true
		}
	}
	return false
}

// SectionNames returns every distinct section name, sorted.
func (sc *SiteContext) SectionNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range sc.pages() {
		if p.Section == "" || seen[p.Section] {
			continue
		}
		seen[p.Section] = true
		names = append(names, p.Section)
	}
	sort.Strings(names)
	return names
}

// AllTags returns every distinct tag assigned to any page, sorted.
func (sc *SiteContext) AllTags() []string {
	return sc.taxonomyTermNames("tags")
}

// AllCategories returns every distinct category assigned to any page,
// sorted.
func (sc *SiteContext) AllCategories() []string {
	return sc.taxonomyTermNames("categories")
}

// AllSeries returns every distinct non-empty series name, sorted.
func (sc *SiteContext) AllSeries() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range sc.pages() {
		if p.Series == "" || seen[p.Series] {
			continue
		}
		seen[p.Series] = true
		out = append(out, p.Series)
	}
	sort.Strings(out)
	return out
}

// taxonomyTermNames reads the Library's populated Taxonomies map for the
// given taxonomy, returning the display names of its terms rather than
// re-deriving them from each page's Tags/Categories slice directly.
func (sc *SiteContext) taxonomyTermNames(taxonomy string) []string {
	tax, ok := sc.lib.Taxonomies[taxonomy]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(tax.Terms))
	for _, term := range tax.Terms {
		names = append(names, term.Name)
	}
	sort.Strings(names)
	return names
}

// SlugifyTitle delegates to scaffold.Slugify so create_content produces the
// same slugs as the `kiln new` CLI command.
func (sc *SiteContext) SlugifyTitle(title string) string {
	return scaffold.Slugify(title)
}

// siteFileExists reports whether a path relative to the site root exists.
func (sc *SiteContext) siteFileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(sc.siteDir, rel))
	return err == nil
}
