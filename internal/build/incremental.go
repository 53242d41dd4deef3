package build

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/content"
)

// ChangeOp mirrors the three kinds of filesystem event the watcher reports.
type ChangeOp int

const (
	OpModified ChangeOp = iota
	OpCreated
	OpRemoved
)

// ChangeEvent is one debounced filesystem change handed to the incremental
// controller by the dev-server watcher.
type ChangeEvent struct {
	Path string
	Op   ChangeOp
}

// ChangeKind classifies a changed path into the pipeline area it affects.
type ChangeKind int

const (
	KindUnknown ChangeKind = iota
	KindMarkdownContent
	KindTemplate
	KindShortcode
	KindStatic
	KindSass
	KindConfig
)

// ClassifyPath determines which part of the pipeline a changed file under
// projectRoot belongs to.
func ClassifyPath(projectRoot, path string) ChangeKind {
	rel, err := filepath.Rel(projectRoot, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	base := filepath.Base(rel)
	switch base {
	case "kiln.yaml", "kiln.toml", "config.yaml", "config.toml":
		return KindConfig
	}

	switch {
	case hasPathComponent(rel, "shortcodes"):
		return KindShortcode
	case strings.HasPrefix(rel, "content/") || rel == "content":
		if strings.HasSuffix(rel, ".md") {
			return KindMarkdownContent
		}
		return KindStatic // page-bundle asset living alongside content
	case hasPathComponent(rel, "layouts"):
		if strings.HasSuffix(rel, ".html") {
			return KindTemplate
		}
		return KindUnknown
	case strings.HasSuffix(rel, ".scss") || strings.HasSuffix(rel, ".sass"):
		return KindSass
	case hasPathComponent(rel, "static"):
		return KindStatic
	default:
		return KindUnknown
	}
}

// hasPathComponent reports whether rel contains name as a whole path
// segment, e.g. hasPathComponent("themes/default/static/x.css", "static").
func hasPathComponent(rel, name string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if seg == name {
			return true
		}
	}
	return false
}

// SectionChange is a bitset of what changed about a Section's front matter
// between the previously-built version and a freshly-parsed one.
type SectionChange uint8

const (
	SectionSort SectionChange = 1 << iota
	SectionRenderWithPages
	SectionDelete
	SectionTransparent
)

func (c SectionChange) Has(flag SectionChange) bool { return c&flag != 0 }

// DiffSections computes the SectionChanges set between old and new
// revisions of the same _index.md. A nil new means the section
// was removed; a nil old means it is newly discovered and needs a full
// render.
func DiffSections(old, new *content.Section) SectionChange {
	if new == nil {
		return SectionDelete
	}
	if old == nil {
		return SectionRenderWithPages
	}

	var changes SectionChange
	if old.SortBy != new.SortBy {
		changes |= SectionSort
	}
	if old.Transparent != new.Transparent {
		changes |= SectionTransparent
	}
	if old.Render != new.Render ||
		old.PaginateBy != new.PaginateBy ||
		old.PaginatePath != new.PaginatePath ||
		old.PaginateReversed != new.PaginateReversed ||
		old.Weight != new.Weight ||
		old.Template != new.Template ||
		old.PageTemplate != new.PageTemplate ||
		old.RedirectTo != new.RedirectTo ||
		old.InsertAnchorLinks != new.InsertAnchorLinks ||
		old.InSearchIndex != new.InSearchIndex ||
		!slices.Equal(old.Aliases, new.Aliases) ||
		old.RawContent != new.RawContent {
		changes |= SectionRenderWithPages
	}
	return changes
}

// PageChange is a bitset of what changed about a Page's front matter
// between the previously-built version and a freshly-parsed one.
type PageChange uint8

const (
	PageTaxonomies PageChange = 1 << iota
	PageSort
	PageRender
)

func (c PageChange) Has(flag PageChange) bool { return c&flag != 0 }

// DiffPages computes the PageChanges set between old and new revisions of
// the same content file. A nil new means the page was removed
// (callers are expected to drop it outright rather than diff); a nil old
// means it is newly discovered.
func DiffPages(old, new *content.Page) PageChange {
	if old == nil || new == nil {
		return PageRender
	}

	var changes PageChange
	if !equalStrings(old.Tags, new.Tags) ||
		!equalStrings(old.Categories, new.Categories) ||
		!maps.EqualFunc(old.Taxonomies, new.Taxonomies, slices.Equal) {
		changes |= PageTaxonomies
	}
	if !old.Date.Equal(new.Date) || old.Weight != new.Weight {
		changes |= PageSort
	}
	if old.Render != new.Render ||
		old.RawContent != new.RawContent ||
		old.Title != new.Title ||
		old.Slug != new.Slug ||
		old.Path != new.Path ||
		old.Summary != new.Summary {
		changes |= PageRender
	}
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RebuildAction is the narrowest action the controller determined for a
// single change event.
type RebuildAction int

const (
	ActionFullRebuild RebuildAction = iota
	ActionCopyStatic
	ActionRemoveStatic
	ActionRebuildSass
	// ActionRebuildContent hands a changed Markdown file to the
	// front-matter diff (DiffPages/DiffSections) so only the affected
	// page, its ancestor listings, or the taxonomy pages are re-emitted.
	ActionRebuildContent
)

// RebuildPlan is the controller's classification of one change event.
type RebuildPlan struct {
	Action RebuildAction
	Reason string
}

// IncrementalController classifies filesystem change events from the dev
// server's watcher and applies the narrowest rebuild action available.
// Static asset changes are copied or removed without re-running content
// discovery or rendering at all. Stylesheet (Sass) changes are not
// compiled on their own: they trigger a full Builder.Build pass, which
// rebuilds the CSS along with everything else. A modified Markdown file is diffed
// against the Library snapshot of the last full build and only the
// entities its front-matter changes actually affect are re-rendered.
// Created/removed content, template, shortcode, and config changes fall
// back to a full Builder.Build pass.
type IncrementalController struct {
	builder     *Builder
	projectRoot string
	outputDir   string
}

// NewIncrementalController creates a controller bound to builder, watching
// projectRoot and writing into outputDir.
func NewIncrementalController(builder *Builder, projectRoot, outputDir string) *IncrementalController {
	return &IncrementalController{builder: builder, projectRoot: projectRoot, outputDir: outputDir}
}

// Plan classifies a single change event.
func (c *IncrementalController) Plan(event ChangeEvent) RebuildPlan {
	switch ClassifyPath(c.projectRoot, event.Path) {
	case KindStatic:
		if event.Op == OpRemoved {
			return RebuildPlan{Action: ActionRemoveStatic, Reason: "static file removed"}
		}
		return RebuildPlan{Action: ActionCopyStatic, Reason: "static file changed"}
	case KindSass:
		return RebuildPlan{Action: ActionRebuildSass, Reason: "stylesheet changed"}
	case KindTemplate:
		return RebuildPlan{Action: ActionFullRebuild, Reason: "template changed, reloading engine and re-rendering all pages"}
	case KindShortcode:
		return RebuildPlan{Action: ActionFullRebuild, Reason: "shortcode changed, re-rendering all markdown"}
	case KindConfig:
		return RebuildPlan{Action: ActionFullRebuild, Reason: "config changed"}
	case KindMarkdownContent:
		if event.Op != OpModified {
			// Added/removed content changes Library membership; discovery
			// re-runs as part of a full build.
			return RebuildPlan{Action: ActionFullRebuild, Reason: "content added or removed"}
		}
		return RebuildPlan{Action: ActionRebuildContent, Reason: "content modified"}
	default:
		return RebuildPlan{Action: ActionFullRebuild, Reason: "unclassified path"}
	}
}

// Apply runs the narrowest action for every event in a debounced batch,
// coalescing anything that still needs a full rebuild into a single
// Builder.Build call. It returns nil, nil when the whole batch was handled
// without re-rendering anything (static copies, or a no-op edit).
func (c *IncrementalController) Apply(events []ChangeEvent) (*BuildResult, error) {
	start := time.Now()
	needsFullRebuild := false
	var emitted []string

	for _, event := range events {
		plan := c.Plan(event)
		switch plan.Action {
		case ActionCopyStatic:
			handled, err := c.copyStaticFile(event.Path)
			if err != nil {
				return nil, err
			}
			if !handled {
				// Not under a static/ dir (e.g. a page-bundle asset whose
				// output location depends on its page's URL).
				needsFullRebuild = true
			}
		case ActionRemoveStatic:
			handled, err := c.removeStaticFile(event.Path)
			if err != nil {
				return nil, err
			}
			if !handled {
				needsFullRebuild = true
			}
		case ActionRebuildSass:
			// Tailwind/Sass compilation is produced as part of Build today;
			// there is no standalone entry point to re-run it in isolation.
			needsFullRebuild = true
		case ActionRebuildContent:
			urls, handled, err := c.applyContentChange(event)
			if err != nil {
				return nil, err
			}
			if !handled {
				needsFullRebuild = true
			}
			emitted = append(emitted, urls...)
		default:
			needsFullRebuild = true
		}
	}

	if needsFullRebuild {
		return c.builder.Build()
	}
	if len(emitted) == 0 {
		return nil, nil
	}
	return &BuildResult{
		PagesRendered: len(emitted),
		FilesWritten:  len(emitted),
		Pages:         emitted,
		Duration:      time.Since(start),
	}, nil
}

// applyContentChange re-parses a modified Markdown file, diffs its front
// matter against the entity from the last full build, and re-renders the
// smallest set of outputs the changes require. It returns the URLs it
// re-emitted and whether the change was handled; handled == false means
// the caller must fall back to a full rebuild.
func (c *IncrementalController) applyContentChange(event ChangeEvent) ([]string, bool, error) {
	st := c.builder.state
	if st == nil {
		return nil, false, nil
	}

	contentDir := filepath.Join(c.projectRoot, "content")
	rel, err := filepath.Rel(contentDir, event.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, false, nil
	}
	rel = filepath.ToSlash(rel)

	raw, err := os.ReadFile(event.Path)
	if err != nil {
		// Racing a delete; the remove event will trigger the full rebuild.
		return nil, false, nil
	}
	metadata, body, err := content.ParseFrontmatter(raw)
	if err != nil {
		// A malformed file must not take the site down mid-session: warn
		// and keep serving the last good output until it is fixed.
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", event.Path, err)
		return nil, true, nil
	}

	for _, s := range st.lib.AllSections() {
		if s.SourcePath == rel {
			return c.applySectionChange(s, metadata, body)
		}
	}
	for _, p := range st.lib.AllPages() {
		if p.SourcePath == rel {
			return c.applyPageChange(p, metadata, body)
		}
	}
	// Unknown to the Library (e.g. created while no watcher event for the
	// create was seen): treat as membership change.
	return nil, false, nil
}

// applyPageChange applies the PageChanges bitset for one modified page.
func (c *IncrementalController) applyPageChange(old *content.Page, metadata map[string]any, body []byte) ([]string, bool, error) {
	st := c.builder.state

	fresh := &content.Page{}
	if metadata != nil {
		if err := content.PopulatePage(fresh, metadata); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", old.SourcePath, err)
			return nil, true, nil
		}
	} else {
		fresh.Render = true
		fresh.InSearchIndex = true
	}
	fresh.RawContent = string(body)

	// A summary the build derived from the body is not front matter; only
	// diff it when the file declares one explicitly. Likewise the slug:
	// when undeclared it derives from the (unchanged) filename.
	explicitSummary := false
	if metadata != nil {
		_, explicitSummary = metadata["summary"]
	}
	if !explicitSummary {
		fresh.Summary = old.Summary
	}
	if fresh.Slug == "" {
		fresh.Slug = content.DeriveSlug(old.SourcePath, old.IsBundle)
	}

	changes := DiffPages(old, fresh)
	if changes == 0 {
		return nil, true, nil
	}
	// Changes that move the page's URL or its membership in listings and
	// the search index invalidate outputs this controller cannot
	// enumerate; hand those to a full rebuild.
	if old.Slug != fresh.Slug || old.Path != fresh.Path ||
		old.Render != fresh.Render || old.Draft != fresh.Draft {
		return nil, false, nil
	}

	graftPageFrontMatter(old, fresh)
	if !explicitSummary && changes.Has(PageRender) {
		// The body changed; clear the derived summary so the re-render
		// regenerates it from the new content.
		old.Summary = ""
	}

	var emitted []string

	if changes.Has(PageTaxonomies) {
		if err := st.lib.PopulateTaxonomies(c.builder.config); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", old.SourcePath, err)
			return nil, true, nil
		}
	}
	if changes.Has(PageSort) {
		st.lib.SortSectionPages(c.builder.sectionSortKey)
	}
	if changes.Has(PageRender) {
		if err := c.builder.renderPageMarkdown(old); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", old.SourcePath, err)
			return nil, true, nil
		}
	}

	// Re-derive template contexts after the mutation so listings see the
	// new title/summary/date.
	st.siteCtx = c.builder.buildSiteContext(st.lib, st.pages, st.baseURL, st.dataFiles)

	if changes.Has(PageTaxonomies) {
		urls, err := c.builder.rewriteTaxonomyPages()
		if err != nil {
			return nil, false, err
		}
		emitted = append(emitted, urls...)
	}
	if changes.Has(PageRender) {
		if err := c.builder.writeRenderedPage(old); err != nil {
			return nil, false, err
		}
		emitted = append(emitted, old.URL)
	}
	if changes.Has(PageSort) || changes.Has(PageRender) {
		urls, err := c.builder.rewriteAncestorListings(old)
		if err != nil {
			return nil, false, err
		}
		emitted = append(emitted, urls...)
	}
	return emitted, true, nil
}

// applySectionChange applies the SectionChanges bitset for one modified
// _index.md.
func (c *IncrementalController) applySectionChange(old *content.Section, metadata map[string]any, body []byte) ([]string, bool, error) {
	st := c.builder.state

	fresh := &content.Section{}
	if metadata != nil {
		if err := content.PopulateSection(fresh, metadata); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s: %v\n", old.SourcePath, err)
			return nil, true, nil
		}
	} else {
		fresh.Render = true
		fresh.InSearchIndex = true
	}
	fresh.RawContent = string(body)

	changes := DiffSections(old, fresh)
	if changes == 0 {
		return nil, true, nil
	}
	// Transparency re-parents pages, and a render or redirect flip
	// adds/removes whole outputs; both need the full pipeline.
	if changes.Has(SectionDelete) || changes.Has(SectionTransparent) ||
		old.Render != fresh.Render || old.RedirectTo != fresh.RedirectTo {
		return nil, false, nil
	}

	graftSectionFrontMatter(old, fresh)

	if changes.Has(SectionSort) {
		st.lib.SortSectionPages(c.builder.sectionSortKey)
	}
	if err := c.builder.renderSectionMarkdown(old); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", old.SourcePath, err)
		return nil, true, nil
	}

	st.siteCtx = c.builder.buildSiteContext(st.lib, st.pages, st.baseURL, st.dataFiles)

	urls, err := c.builder.rewriteSectionListings(old)
	if err != nil {
		return nil, false, err
	}
	return urls, true, nil
}

// graftPageFrontMatter copies the re-parsed front matter and body onto the
// Library's stored page. URL-determining fields (Slug, Path) were already
// verified unchanged by the caller.
func graftPageFrontMatter(old, fresh *content.Page) {
	old.Title = fresh.Title
	old.Description = fresh.Description
	old.Summary = fresh.Summary
	old.Date = fresh.Date
	old.Lastmod = fresh.Lastmod
	old.ExpiryDate = fresh.ExpiryDate
	old.Weight = fresh.Weight
	old.Tags = fresh.Tags
	old.Categories = fresh.Categories
	old.Taxonomies = fresh.Taxonomies
	old.Series = fresh.Series
	old.Layout = fresh.Layout
	old.Aliases = fresh.Aliases
	old.Cover = fresh.Cover
	old.Params = fresh.Params
	old.InSearchIndex = fresh.InSearchIndex
	old.RawContent = fresh.RawContent
}

// graftSectionFrontMatter is graftPageFrontMatter's counterpart for
// sections. Render/RedirectTo/Transparent flips were already routed to a
// full rebuild by the caller.
func graftSectionFrontMatter(old, fresh *content.Section) {
	old.Title = fresh.Title
	old.Description = fresh.Description
	old.SortBy = fresh.SortBy
	old.PaginateBy = fresh.PaginateBy
	old.PaginatePath = fresh.PaginatePath
	old.PaginateReversed = fresh.PaginateReversed
	old.Weight = fresh.Weight
	old.Template = fresh.Template
	old.PageTemplate = fresh.PageTemplate
	old.InsertAnchorLinks = fresh.InsertAnchorLinks
	old.InSearchIndex = fresh.InSearchIndex
	old.Aliases = fresh.Aliases
	old.Params = fresh.Params
	old.RawContent = fresh.RawContent
}

// staticRelPath returns the portion of rel after its "static/" path
// component, used to mirror a changed static source file to the same
// relative location under the output directory.
func staticRelPath(rel string) (string, bool) {
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		if seg == "static" {
			return strings.Join(segments[i+1:], "/"), true
		}
	}
	return "", false
}

func (c *IncrementalController) copyStaticFile(path string) (bool, error) {
	rel, err := filepath.Rel(c.projectRoot, path)
	if err != nil {
		return false, err
	}
	sub, ok := staticRelPath(filepath.ToSlash(rel))
	if !ok {
		return false, nil
	}
	return true, CopyFile(path, filepath.Join(c.outputDir, sub))
}

func (c *IncrementalController) removeStaticFile(path string) (bool, error) {
	rel, err := filepath.Rel(c.projectRoot, path)
	if err != nil {
		return false, err
	}
	sub, ok := staticRelPath(filepath.ToSlash(rel))
	if !ok {
		return false, nil
	}
	if err := os.Remove(filepath.Join(c.outputDir, sub)); err != nil && !os.IsNotExist(err) {
		return true, err
	}
	return true, nil
}
