package build

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kilnhq/kiln/internal/content"
)

// This file holds the single-entity render paths the incremental
// controller drives. Each mirrors the corresponding stage of Build for
// exactly one page or section, reusing the engine, renderer, shortcode
// registry, and Library snapshot Build left in Builder.state.

// renderPageMarkdown re-runs the Markdown pipeline for one page in place:
// markdown-kind shortcodes, goldmark, html-kind shortcodes, reading
// analytics.
func (b *Builder) renderPageMarkdown(p *content.Page) error {
	st := b.state
	src, err := content.ExpandShortcodes([]byte(p.RawContent), st.shortcodes, content.ShortcodeMarkdown)
	if err != nil {
		return fmt.Errorf("expanding markdown shortcodes for %s: %w", p.SourcePath, err)
	}
	rendered, err := st.mdRenderer.RenderDocument(src, content.RenderOptions{
		Resolve: st.lib.ResolvePermalink,
		Policy:  st.linkPolicy,
		Anchors: st.anchors,
	})
	if err != nil {
		return fmt.Errorf("rendering markdown for %s: %w", p.SourcePath, err)
	}
	finalHTML, err := content.ExpandShortcodes(rendered.HTML, st.shortcodes, content.ShortcodeHTML)
	if err != nil {
		return fmt.Errorf("expanding html shortcodes for %s: %w", p.SourcePath, err)
	}
	p.Content = string(finalHTML)
	p.TableOfContents = string(rendered.TOC)
	p.WordCount = rendered.WordCount
	p.ReadingTime = rendered.ReadingTime
	if p.Summary == "" {
		p.Summary = content.GenerateSummary(p.RawContent, p.Content, 300)
	}
	return nil
}

// renderSectionMarkdown re-renders one section's _index.md body, honoring
// the section's own anchor policy.
func (b *Builder) renderSectionMarkdown(s *content.Section) error {
	st := b.state
	src, err := content.ExpandShortcodes([]byte(s.RawContent), st.shortcodes, content.ShortcodeMarkdown)
	if err != nil {
		return fmt.Errorf("expanding markdown shortcodes for section %s: %w", s.SourcePath, err)
	}
	anchors := st.anchors
	if s.InsertAnchorLinks != "" {
		anchors = content.AnchorPolicy(s.InsertAnchorLinks)
	}
	rendered, err := st.mdRenderer.RenderDocument(src, content.RenderOptions{
		Resolve: st.lib.ResolvePermalink,
		Policy:  st.linkPolicy,
		Anchors: anchors,
	})
	if err != nil {
		return fmt.Errorf("rendering markdown for section %s: %w", s.SourcePath, err)
	}
	finalHTML, err := content.ExpandShortcodes(rendered.HTML, st.shortcodes, content.ShortcodeHTML)
	if err != nil {
		return fmt.Errorf("expanding html shortcodes for section %s: %w", s.SourcePath, err)
	}
	s.Content = string(finalHTML)
	s.TableOfContents = string(rendered.TOC)
	return nil
}

// writeRenderedPage takes one already-markdown-rendered page through
// template resolution and writes its <URL>/index.html. Redirect pages are
// skipped; their output comes from the alias generator during full builds.
func (b *Builder) writeRenderedPage(p *content.Page) error {
	st := b.state
	if p.RedirectTo != "" {
		return nil
	}

	ctx := pageToContext(p, st.siteCtx)

	layout := p.Layout
	if layout == "" && p.Type == content.PageTypeSingle {
		layout = st.pageTemplates[p.Section]
	}
	name := st.engine.Resolve(p.Type.String(), p.Section, layout)
	if name == "" {
		name = st.engine.Resolve("single", "_default", "")
	}
	if name == "" {
		return WriteFile(st.outputDir, p.URL, []byte(p.Content))
	}

	out, err := st.engine.Execute(name, ctx)
	if err != nil {
		return fmt.Errorf("executing template %s for %s: %w", name, p.URL, err)
	}
	return WriteFile(st.outputDir, p.URL, out)
}

// ancestorSections returns the page's parent section and every ancestor up
// to and including the root.
func (b *Builder) ancestorSections(p *content.Page) []*content.Section {
	st := b.state
	var out []*content.Section
	key := p.SectionKey
	for key.Valid() {
		s := st.lib.Section(key)
		if s == nil {
			break
		}
		out = append(out, s)
		key = s.ParentKey
	}
	return out
}

// rewriteAncestorListings regenerates and writes the listing pages of the
// page's parent section and every ancestor, so summaries and prev/next
// ordering shown in listings stay in step with the edited page.
func (b *Builder) rewriteAncestorListings(p *content.Page) ([]string, error) {
	var emitted []string
	for _, s := range b.ancestorSections(p) {
		urls, err := b.rewriteSectionListings(s)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, urls...)
	}
	return emitted, nil
}

// rewriteSectionListings regenerates one section's listing pages from the
// Library's current sort order and writes them. The root section's listing
// is the home page.
func (b *Builder) rewriteSectionListings(s *content.Section) ([]string, error) {
	st := b.state
	if root := st.lib.Root(); root != nil && s.Key == root.Key {
		return b.rewriteHomePage()
	}
	if !s.Render || s.Transparent || s.RedirectTo != "" {
		return nil, nil
	}

	var emitted []string
	for _, lp := range b.generateSectionListPages(st.lib, st.baseURL) {
		if !listingBelongsTo(lp.URL, s) {
			continue
		}
		if err := b.writeRenderedPage(lp); err != nil {
			return nil, err
		}
		emitted = append(emitted, lp.URL)
	}
	return emitted, nil
}

// rewriteHomePage re-writes the site's "/" page from the last build's page
// list.
func (b *Builder) rewriteHomePage() ([]string, error) {
	st := b.state
	for _, p := range st.pages {
		if p.URL == "/" {
			if err := b.writeRenderedPage(p); err != nil {
				return nil, err
			}
			return []string{"/"}, nil
		}
	}
	return nil, nil
}

// rewriteTaxonomyPages regenerates every taxonomy list and term page from
// the Library's re-populated taxonomies and writes them.
func (b *Builder) rewriteTaxonomyPages() ([]string, error) {
	st := b.state
	var emitted []string
	for _, tp := range b.generateTaxonomyPages(st.lib, st.baseURL) {
		if err := b.writeRenderedPage(tp); err != nil {
			return nil, err
		}
		emitted = append(emitted, tp.URL)
	}
	return emitted, nil
}

// listingBelongsTo reports whether a generated listing-page URL is one of
// s's own outputs: the first page at s.URL, or a pager page at
// s.URL + <paginate_path>/N/. A subsection's listings share s.URL as a
// prefix but never match the numeric-pager shape.
func listingBelongsTo(url string, s *content.Section) bool {
	if url == s.URL {
		return true
	}
	pp := s.PaginatePath
	if pp == "" {
		pp = content.DefaultPaginatePath
	}
	prefix := s.URL + pp + "/"
	if !strings.HasPrefix(url, prefix) {
		return false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(url, prefix), "/")
	_, err := strconv.Atoi(rest)
	return err == nil
}
