// Package build orchestrates the full static site generation pipeline.
// It coordinates content discovery, markdown rendering, template execution,
// and file output to produce a complete static site.
package build

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/content"
	"github.com/kilnhq/kiln/internal/feed"
	"github.com/kilnhq/kiln/internal/image"
	"github.com/kilnhq/kiln/internal/search"
	"github.com/kilnhq/kiln/internal/seo"
	tmpl "github.com/kilnhq/kiln/internal/template"
)

// BuildOptions controls the behaviour of the build pipeline.
type BuildOptions struct {
	IncludeDrafts  bool
	IncludeFuture  bool
	IncludeExpired bool
	OutputDir      string
	Verbose        bool
	Minify         bool
	BaseURL        string
	ProjectRoot    string
}

// BuildResult contains statistics about the completed build.
type BuildResult struct {
	PagesRendered  int
	FilesWritten   int
	FilesCopied    int
	StaticFiles    int
	Duration       time.Duration
	OutputSize     int64
	Pages          []string // URL paths of all rendered pages
}

// Builder coordinates the full static site generation pipeline.
type Builder struct {
	config  *config.SiteConfig
	options BuildOptions

	// state holds the artifacts of the last completed Build, kept so the
	// incremental controller can re-render a single page or section
	// without re-running discovery. Nil until the first Build succeeds.
	state *buildState
}

// buildState is the snapshot of one completed Build that incremental
// rebuilds mutate in place: the populated Library, the final page list
// (content pages plus generated listing/taxonomy pages), and the render
// machinery needed to take one page from Markdown to a written file.
type buildState struct {
	lib        *content.Library
	pages      []*content.Page
	engine     *tmpl.Engine
	siteCtx    *tmpl.SiteContext
	shortcodes *content.ShortcodeRegistry
	mdRenderer *content.MarkdownRenderer
	anchors    content.AnchorPolicy
	linkPolicy content.ExternalLinkPolicy

	pageTemplates map[string]string
	dataFiles     map[string]any
	baseURL       string
	outputDir     string
}

// NewBuilder creates a new Builder with the given site configuration and options.
func NewBuilder(cfg *config.SiteConfig, opts BuildOptions) *Builder {
	return &Builder{
		config:  cfg,
		options: opts,
	}
}

// Build executes the full build pipeline and returns a BuildResult summarizing
// what was generated. The pipeline steps are:
//  1. Clean or create the output directory
//  2. Discover content files
//  3. Filter pages (drafts, future, expired)
//  4. Render markdown in parallel
//  5. Build taxonomy maps
//  6. Sort pages and set navigation links
//  7. Create template engine
//  8-9. Render pages to HTML in parallel
//  10. Write HTML files and 404.html
//  11. Copy static files and build Tailwind CSS
//  12. Copy page bundle assets
//  13. Generate sitemap, robots.txt, feeds, search index, and alias pages
func (b *Builder) Build() (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{}

	projectRoot := b.options.ProjectRoot
	if projectRoot == "" {
		var err error
		projectRoot, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determining project root: %w", err)
		}
	}

	// Determine output directory.
	outputDir := b.options.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(projectRoot, "public")
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(projectRoot, outputDir)
	}

	// Determine content directory.
	contentDir := filepath.Join(projectRoot, "content")

	// Determine base URL.
	baseURL := b.options.BaseURL
	if baseURL == "" {
		baseURL = b.config.BaseURL
	}

	// Step 1: Clean output directory.
	if err := CleanDir(outputDir); err != nil {
		return nil, fmt.Errorf("cleaning output directory: %w", err)
	}

	// Step 2: Discover content.
	lib, err := content.Discover(contentDir, b.config)
	if err != nil {
		return nil, fmt.Errorf("discovering content: %w", err)
	}
	pages := lib.AllPages()

	// Set absolute permalinks.
	for _, p := range pages {
		p.Permalink = strings.TrimRight(baseURL, "/") + p.URL
	}

	// Load data files from data/ directory.
	dataDir := filepath.Join(projectRoot, "data")
	dataFiles, err := content.LoadDataFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading data files: %w", err)
	}

	// Step 3: Filter pages based on options. Pages dropped here are also
	// removed from the Library itself (not just this flat slice), so the
	// Section/Taxonomy population in step 5 never lists drafts/future/
	// expired content or links sibling navigation through them.
	before := pages
	if !b.options.IncludeDrafts {
		pages = content.FilterDrafts(pages)
	}
	if !b.options.IncludeFuture {
		pages = content.FilterFuture(pages)
	}
	if !b.options.IncludeExpired {
		pages = content.FilterExpired(pages)
	}
	if len(pages) != len(before) {
		kept := make(map[content.PageKey]bool, len(pages))
		for _, p := range pages {
			kept[p.Key] = true
		}
		for _, p := range before {
			if !kept[p.Key] {
				lib.RemovePage(p.Key)
			}
		}
	}

	// Inject a virtual home page if none was discovered (i.e., no content/_index.md).
	// This ensures public/index.html is always generated.
	if !hasHomePage(pages) {
		pages = append(pages, &content.Page{
			Type: content.PageTypeHome,
			URL:  "/",
		})
	}

	// Theme path is needed both for shortcode templates (this step) and for
	// the layout engine (step 7), so it's resolved once, up front.
	themeName := b.config.Theme
	if themeName == "" {
		themeName = "default"
	}
	themePath := filepath.Join(projectRoot, "themes", themeName)
	userLayoutPath := filepath.Join(projectRoot, "layouts")

	shortcodes, err := loadShortcodeRegistry(themePath, projectRoot)
	if err != nil {
		return nil, fmt.Errorf("loading shortcode templates: %w", err)
	}

	// Step 3b: Process images into responsive variants before any page that
	// might reference them is rendered, so the Markdown image renderer can
	// look up a source URL's generated <picture> variants by the time it
	// needs them.
	highlightOpts := content.HighlightOptions{
		Style:     b.config.Highlight.Style,
		InlineCSS: b.config.Highlight.InlineCSS,
		TabWidth:  b.config.Highlight.TabWidth,
	}
	var mdRenderer *content.MarkdownRenderer
	if b.config.Images.Enabled {
		imgProc := image.NewProcessor(b.config.Images, projectRoot)
		imagesDir := filepath.Join(projectRoot, "static", "images")
		if info, statErr := os.Stat(imagesDir); statErr == nil && info.IsDir() {
			processedDir := filepath.Join(outputDir, "processed_images")
			if err := imgProc.ProcessDir(imagesDir, processedDir, "/processed_images"); err != nil {
				// A single undecodable image should not take the whole
				// build down; pages fall back to the original <img> tag.
				fmt.Fprintf(os.Stderr, "warning: processing images: %v\n", err)
			}
			if err := imgProc.Prune(processedDir); err != nil {
				return nil, fmt.Errorf("pruning stale processed images: %w", err)
			}
		}
		mdRenderer = content.NewMarkdownRendererWithImages(highlightOpts, imgProc)
	} else {
		mdRenderer = content.NewMarkdownRendererWithHighlight(highlightOpts)
	}
	mdRenderer.SetFeatures(b.config.Markdown.SmartPunctuation, b.config.Markdown.Emoji)

	// Step 4: Render markdown in parallel.
	numWorkers := runtime.NumCPU()

	anchors := content.AnchorPolicy(b.config.Markdown.InsertAnchorLinks)
	linkPolicy := content.ExternalLinkPolicy{
		TargetBlank: b.config.Markdown.ExternalLinksBlank,
		NoFollow:    b.config.Markdown.ExternalLinksNoFollow,
		NoOpener:    b.config.Markdown.ExternalLinksNoOpener,
	}

	err = renderParallel(pages, numWorkers, func(p *content.Page) error {
		markdownSrc, err := content.ExpandShortcodes([]byte(p.RawContent), shortcodes, content.ShortcodeMarkdown)
		if err != nil {
			return fmt.Errorf("expanding markdown shortcodes for %s: %w", p.SourcePath, err)
		}

		rendered, err := mdRenderer.RenderDocument(markdownSrc, content.RenderOptions{
			Resolve: lib.ResolvePermalink,
			Policy:  linkPolicy,
			Anchors: anchors,
		})
		if err != nil {
			return fmt.Errorf("rendering markdown for %s: %w", p.SourcePath, err)
		}

		finalHTML, err := content.ExpandShortcodes(rendered.HTML, shortcodes, content.ShortcodeHTML)
		if err != nil {
			return fmt.Errorf("expanding html shortcodes for %s: %w", p.SourcePath, err)
		}

		p.Content = string(finalHTML)
		p.TableOfContents = string(rendered.TOC)
		p.WordCount = rendered.WordCount
		p.ReadingTime = rendered.ReadingTime
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	// Step 4b: Generate summaries. Word count and reading time were already
	// computed from the Markdown source during rendering (step 4).
	for _, p := range pages {
		if p.Summary == "" {
			p.Summary = content.GenerateSummary(p.RawContent, p.Content, 300)
		}
	}

	// Step 5: Populate the section graph and per-language taxonomies from
	// the Library, then sort each section's pages and resolve prev/next
	// sibling links through it.
	lib.PopulateSections()
	if err := lib.PopulateTaxonomies(b.config); err != nil {
		return nil, err
	}
	lib.SortSectionPages(b.sectionSortKey)

	// Step 5b: Render each section's own _index.md body through the same
	// markdown pipeline single pages already went through in step 4.
	for _, s := range lib.AllSections() {
		if s.RawContent == "" {
			continue
		}
		markdownSrc, err := content.ExpandShortcodes([]byte(s.RawContent), shortcodes, content.ShortcodeMarkdown)
		if err != nil {
			return nil, fmt.Errorf("expanding markdown shortcodes for section %s: %w", s.SourcePath, err)
		}
		sectionAnchors := anchors
		if s.InsertAnchorLinks != "" {
			sectionAnchors = content.AnchorPolicy(s.InsertAnchorLinks)
		}
		rendered, err := mdRenderer.RenderDocument(markdownSrc, content.RenderOptions{
			Resolve: lib.ResolvePermalink,
			Policy:  linkPolicy,
			Anchors: sectionAnchors,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering markdown for section %s: %w", s.SourcePath, err)
		}
		finalHTML, err := content.ExpandShortcodes(rendered.HTML, shortcodes, content.ShortcodeHTML)
		if err != nil {
			return nil, fmt.Errorf("expanding html shortcodes for section %s: %w", s.SourcePath, err)
		}
		s.Content = string(finalHTML)
		s.TableOfContents = string(rendered.TOC)
	}

	// Step 5c: Generate paginated section listing pages and taxonomy term/
	// list pages from the populated Library, via content.Paginate.
	pages = append(pages, b.generateSectionListPages(lib, baseURL)...)
	pages = append(pages, b.generateTaxonomyPages(lib, baseURL)...)

	// Step 6: Sort the flat page list by date (newest first) for sitemap,
	// feed, and search-index ordering. Section-local prev/next navigation
	// was already resolved against the Library above.
	content.SortByDate(pages, false)

	// Step 7: Create template engine (themePath/userLayoutPath resolved above).
	engine, err := tmpl.NewEngine(themePath, userLayoutPath)
	if err != nil {
		return nil, fmt.Errorf("creating template engine: %w", err)
	}

	// Build site context for templates.
	siteCtx := b.buildSiteContext(lib, pages, baseURL, dataFiles)

	// Build page contexts for all pages.
	pageContextMap := b.buildPageContexts(pages, siteCtx)

	// Sections can force a template onto their pages via page_template; a
	// page's own layout front matter still wins.
	pageTemplates := make(map[string]string)
	for _, s := range lib.AllSections() {
		if s.PageTemplate != "" {
			pageTemplates[topComponent(s.SourceDir)] = s.PageTemplate
		}
	}

	// Step 8 & 9: Render pages to HTML in parallel and collect results.
	type renderResult struct {
		url  string
		data []byte
	}
	var mu sync.Mutex
	var results []renderResult

	err = renderParallel(pages, numWorkers, func(p *content.Page) error {
		if p.RedirectTo != "" {
			// Redirect pages skip template rendering; their meta-refresh
			// index.html comes from the alias generator below.
			return nil
		}

		ctx := pageContextMap[p]
		if ctx == nil {
			return fmt.Errorf("no context for page %s", p.SourcePath)
		}

		// Resolve template.
		layout := p.Layout
		if layout == "" && p.Type == content.PageTypeSingle {
			layout = pageTemplates[p.Section]
		}
		templateName := engine.Resolve(p.Type.String(), p.Section, layout)
		if templateName == "" {
			// Use a fallback: wrap content in baseof if available, or output raw content.
			templateName = engine.Resolve("single", "_default", "")
			if templateName == "" {
				// No template found at all, use raw rendered content.
				mu.Lock()
				results = append(results, renderResult{url: p.URL, data: []byte(p.Content)})
				mu.Unlock()
				return nil
			}
		}

		rendered, err := engine.Execute(templateName, ctx)
		if err != nil {
			return fmt.Errorf("executing template %s for %s: %w", templateName, p.SourcePath, err)
		}

		mu.Lock()
		results = append(results, renderResult{url: p.URL, data: rendered})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rendering pages: %w", err)
	}

	// Step 10: Write HTML files.
	for _, r := range results {
		if err := WriteFile(outputDir, r.url, r.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", r.url, err)
		}
		result.FilesWritten++
		result.Pages = append(result.Pages, r.url)
	}
	result.PagesRendered = len(results)

	// Step 10b: Generate 404.html using theme template if available.
	notFoundTemplate := engine.Resolve("404", "", "")
	if notFoundTemplate != "" {
		notFoundCtx := &tmpl.PageContext{
			Title: "Page Not Found",
			Site:  siteCtx,
		}
		rendered404, err := engine.Execute(notFoundTemplate, notFoundCtx)
		if err != nil {
			return nil, fmt.Errorf("rendering 404 page: %w", err)
		}
		if err := WriteFile(outputDir, "/404.html", rendered404); err != nil {
			return nil, fmt.Errorf("writing 404.html: %w", err)
		}
		result.FilesWritten++
	}

	// Step 11: Copy static files from theme and site static directories.
	themeStaticDir := filepath.Join(themePath, "static")
	siteStaticDir := filepath.Join(projectRoot, "static")

	if info, err := os.Stat(themeStaticDir); err == nil && info.IsDir() {
		copied, err := copyDirCounting(themeStaticDir, outputDir)
		if err != nil {
			return nil, fmt.Errorf("copying theme static files: %w", err)
		}
		result.FilesCopied += copied
	}

	if info, err := os.Stat(siteStaticDir); err == nil && info.IsDir() {
		copied, err := copyDirCounting(siteStaticDir, outputDir)
		if err != nil {
			return nil, fmt.Errorf("copying site static files: %w", err)
		}
		result.FilesCopied += copied
	}

	// Step 11: Build Tailwind CSS.
	cssInput := filepath.Join(themePath, "static", "css", "globals.css")
	if _, err := os.Stat(cssInput); err == nil {
		cssOutput := filepath.Join(outputDir, "css", "style.css")
		contentPaths := []string{
			filepath.Join(themePath, "layouts", "**", "*.html"),
			filepath.Join(projectRoot, "layouts", "**", "*.html"),
			filepath.Join(contentDir, "**", "*.md"),
		}
		tb := &TailwindBuilder{}
		twConfig := filepath.Join(themePath, "tailwind.config.js")
		if _, err := os.Stat(twConfig); err == nil {
			tb.ConfigPath = twConfig
		}
		if _, binErr := tb.EnsureBinary(TailwindVersion); binErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not download Tailwind CSS binary: %v (skipping CSS compilation)\n", binErr)
		} else {
			if err := os.MkdirAll(filepath.Dir(cssOutput), 0o755); err != nil {
				return nil, fmt.Errorf("creating CSS output directory: %w", err)
			}
			if err := tb.Build(cssInput, cssOutput, contentPaths); err != nil {
				return nil, fmt.Errorf("building Tailwind CSS: %w", err)
			}
			result.StaticFiles++
		}
	}

	// Step 12: Copy page bundle assets.
	for _, p := range pages {
		if !p.IsBundle || len(p.BundleFiles) == 0 {
			continue
		}
		// Determine output directory for this page's assets.
		pageOutputDir := filepath.Join(outputDir, strings.TrimPrefix(p.URL, "/"))
		for _, assetName := range p.BundleFiles {
			src := filepath.Join(p.BundleDir, assetName)
			dst := filepath.Join(pageOutputDir, assetName)
			if err := CopyFile(src, dst); err != nil {
				return nil, fmt.Errorf("copying bundle asset %s: %w", src, err)
			}
			result.FilesCopied++
		}
	}

	// Step 13: Generate ancillary files (sitemap, robots, feeds, search index, aliases).

	// Collect non-draft pages for sitemap and search.
	var nonDraftPages []*content.Page
	for _, p := range pages {
		if !p.Draft {
			nonDraftPages = append(nonDraftPages, p)
		}
	}

	// Generate sitemap.xml.
	sitemapEntries := make([]seo.SitemapEntry, 0, len(nonDraftPages))
	for _, p := range nonDraftPages {
		sitemapEntries = append(sitemapEntries, seo.SitemapEntry{
			URL:     p.Permalink,
			Lastmod: p.Lastmod,
		})
	}
	sitemapFiles, err := seo.GenerateSitemapFiles(sitemapEntries, baseURL)
	if err != nil {
		return nil, fmt.Errorf("generating sitemap: %w", err)
	}
	for name, data := range sitemapFiles {
		if err := writeDirectFile(outputDir, name, data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
		result.StaticFiles++
	}

	// Generate robots.txt.
	sitemapURL := strings.TrimRight(baseURL, "/") + "/sitemap.xml"
	robotsData := seo.GenerateRobotsTxt(sitemapURL)
	if err := writeDirectFile(outputDir, "robots.txt", robotsData); err != nil {
		return nil, fmt.Errorf("writing robots.txt: %w", err)
	}
	result.StaticFiles++

	// Collect blog posts for feeds (non-draft, section == "blog" or configured sections, sorted by date desc).
	feedSections := b.config.Feeds.Sections
	if len(feedSections) == 0 {
		feedSections = []string{"blog"}
	}
	var feedPages []*content.Page
	for _, p := range nonDraftPages {
		if slices.Contains(feedSections, p.Section) {
			feedPages = append(feedPages, p)
		}
	}
	sort.SliceStable(feedPages, func(i, j int) bool {
		return feedPages[i].Date.After(feedPages[j].Date)
	})

	// Generate one feed per language that opted in (feed: true in
	// config.Languages, plus the default site language), and within each
	// language one feed per taxonomy term on top of the site-wide feed.
	feedLangs := []string{b.config.Language}
	for _, l := range b.config.Languages {
		if l.Feed {
			feedLangs = append(feedLangs, l.Code)
		}
	}

	type feedScope struct {
		lang       string
		taxonomy   string // "" for the site-wide feed
		term       string
		urlPrefix  string // e.g. "" or "/fr" or "/tags/go"
		titleExtra string
	}

	var scopes []feedScope
	for _, lang := range feedLangs {
		langPrefix := ""
		if lang != b.config.Language {
			langPrefix = "/" + lang
		}
		scopes = append(scopes, feedScope{lang: lang, urlPrefix: langPrefix})
	}

	// Term feeds are emitted when either the taxonomy's own feed flag or
	// its language's site-wide feed is on; a taxonomy is skipped only when
	// both are off.
	for _, tax := range lib.Taxonomies {
		taxLang := tax.Lang
		if taxLang == "" {
			taxLang = b.config.Language
		}
		if !tax.Feed && !slices.Contains(feedLangs, taxLang) {
			continue
		}
		langPrefix := ""
		if taxLang != b.config.Language {
			langPrefix = "/" + taxLang
		}
		for _, term := range tax.Terms {
			scopes = append(scopes, feedScope{
				lang:       taxLang,
				taxonomy:   tax.Name,
				term:       term.Name,
				urlPrefix:  langPrefix + "/" + tax.Name + "/" + term.Slug,
				titleExtra: fmt.Sprintf(" — %s: %s", tax.Name, term.Name),
			})
		}
	}

	for _, scope := range scopes {
		var scopedPages []*content.Page
		for _, p := range feedPages {
			pageLang := p.Lang
			if pageLang == "" {
				pageLang = b.config.Language
			}
			if pageLang != scope.lang {
				continue
			}
			if scope.taxonomy != "" {
				if !slices.Contains(content.TermsForTaxonomy(p, scope.taxonomy), scope.term) {
					continue
				}
			}
			scopedPages = append(scopedPages, p)
		}

		feedItems := make([]feed.FeedItem, 0, len(scopedPages))
		for _, p := range scopedPages {
			feedItems = append(feedItems, feed.FeedItem{
				Title:       p.Title,
				Link:        p.Permalink,
				Description: p.Summary,
				Content:     p.Content,
				Author:      p.Author,
				PubDate:     p.Date,
				GUID:        p.Permalink,
				Categories:  append(p.Tags, p.Categories...),
			})
		}

		feedOpts := feed.FeedOptions{
			Title:       b.config.Title + scope.titleExtra,
			Description: b.config.Description,
			Link:        strings.TrimRight(baseURL, "/") + scope.urlPrefix,
			Language:    scope.lang,
			Author:      b.config.Author.Name,
			MaxItems:    b.config.Feeds.Limit,
			FullContent: b.config.Feeds.FullContent,
		}

		outDir := filepath.Join(outputDir, strings.TrimPrefix(scope.urlPrefix, "/"))

		if b.config.Feeds.RSS {
			feedOpts.FeedLink = strings.TrimRight(baseURL, "/") + scope.urlPrefix + "/index.xml"
			rssData, err := feed.GenerateRSS(feedItems, feedOpts)
			if err != nil {
				return nil, fmt.Errorf("generating RSS feed for %s: %w", scope.urlPrefix, err)
			}
			if err := writeDirectFile(outDir, "index.xml", rssData); err != nil {
				return nil, fmt.Errorf("writing %s/index.xml: %w", outDir, err)
			}
			result.StaticFiles++
		}

		if b.config.Feeds.Atom {
			feedOpts.FeedLink = strings.TrimRight(baseURL, "/") + scope.urlPrefix + "/atom.xml"
			atomData, err := feed.GenerateAtom(feedItems, feedOpts)
			if err != nil {
				return nil, fmt.Errorf("generating Atom feed for %s: %w", scope.urlPrefix, err)
			}
			if err := writeDirectFile(outDir, "atom.xml", atomData); err != nil {
				return nil, fmt.Errorf("writing %s/atom.xml: %w", outDir, err)
			}
			result.StaticFiles++
		}
	}

	// Generate one inverted search index per searchable language
	// (search_index.<lang>.json).
	if b.config.Search.Enabled {
		maxContentLen := b.config.Search.ContentLength
		if maxContentLen <= 0 {
			maxContentLen = 5000
		}

		searchLangs := []string{b.config.Language}
		for _, l := range b.config.Languages {
			if l.Search {
				searchLangs = append(searchLangs, l.Code)
			}
		}

		// Pages inherit search exclusion from their owning section: a
		// section with in_search_index = false or a redirect_to target
		// keeps all of its pages out of the index.
		excludedSection := func(p *content.Page) bool {
			s := lib.Section(p.SectionKey)
			if s == nil {
				return false
			}
			return !s.InSearchIndex || s.RedirectTo != "" || !s.Render
		}

		for _, lang := range searchLangs {
			indexEntries := make([]search.IndexEntry, 0, len(nonDraftPages))
			for _, p := range nonDraftPages {
				if !p.InSearchIndex || p.RedirectTo != "" || excludedSection(p) {
					continue
				}
				if pageLang := p.Lang; pageLang != "" && pageLang != lang {
					continue
				} else if pageLang == "" && lang != b.config.Language {
					continue
				}
				indexEntries = append(indexEntries, search.IndexEntry{
					Title:      p.Title,
					URL:        p.URL,
					Tags:       p.Tags,
					Categories: p.Categories,
					Summary:    content.StripHTMLTags(p.Summary),
					Content:    search.StripHTML(p.Content),
					Date:       p.Date,
				})
			}
			searchData, err := search.GenerateIndex(indexEntries, maxContentLen)
			if err != nil {
				return nil, fmt.Errorf("generating search index for %s: %w", lang, err)
			}
			filename := fmt.Sprintf("search_index.%s.json", lang)
			if err := writeDirectFile(outputDir, filename, searchData); err != nil {
				return nil, fmt.Errorf("writing %s: %w", filename, err)
			}
			result.StaticFiles++
		}
	}

	// Generate alias redirect pages, plus the meta-refresh page for any
	// entity that declared redirect_to in place of its own content.
	var aliases []AliasPage
	for _, p := range pages {
		if p.RedirectTo != "" {
			target := p.RedirectTo
			absTarget := target
			if strings.HasPrefix(target, "/") {
				absTarget = strings.TrimRight(baseURL, "/") + target
			}
			aliases = append(aliases, AliasPage{
				AliasURL:           p.URL,
				CanonicalURL:       target,
				CanonicalPermalink: absTarget,
			})
		}
		for _, alias := range p.Aliases {
			aliases = append(aliases, AliasPage{
				AliasURL:           alias,
				CanonicalURL:       p.URL,
				CanonicalPermalink: p.Permalink,
			})
		}
	}
	if len(aliases) > 0 {
		aliasFiles := GenerateAliasPages(aliases)
		for filePath, htmlData := range aliasFiles {
			fullPath := filepath.Join(outputDir, filePath)
			dir := filepath.Dir(fullPath)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating alias directory %s: %w", dir, err)
			}
			if err := os.WriteFile(fullPath, htmlData, 0o644); err != nil {
				return nil, fmt.Errorf("writing alias file %s: %w", fullPath, err)
			}
			result.StaticFiles++
		}
	}

	// Calculate output size.
	size, err := DirSize(outputDir)
	if err != nil {
		return nil, fmt.Errorf("calculating output size: %w", err)
	}
	result.OutputSize = size
	result.Duration = time.Since(start)

	// Keep the build artifacts around for incremental rebuilds.
	b.state = &buildState{
		lib:           lib,
		pages:         pages,
		engine:        engine,
		siteCtx:       siteCtx,
		shortcodes:    shortcodes,
		mdRenderer:    mdRenderer,
		anchors:       anchors,
		linkPolicy:    linkPolicy,
		pageTemplates: pageTemplates,
		dataFiles:     dataFiles,
		baseURL:       baseURL,
		outputDir:     outputDir,
	}

	return result, nil
}

// sectionSortKey resolves a section's declared sort order, falling back to
// newest-first by date.
func (b *Builder) sectionSortKey(s *content.Section) content.SortKey {
	if s.SortBy != "" {
		return content.ParseSortKey(s.SortBy)
	}
	if raw, ok := s.Params["sort_by"].(string); ok {
		return content.ParseSortKey(raw)
	}
	return content.SortByDateKey
}

// writeDirectFile writes data to a named file directly in the output directory.
func writeDirectFile(outputDir, filename string, data []byte) error {
	filePath := filepath.Join(outputDir, filename)
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return os.WriteFile(filePath, data, 0o644)
}

// copyDirCounting copies a directory and returns the number of files copied.
func copyDirCounting(src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dstPath := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(dstPath, 0o755)
		}

		if err := CopyFile(path, dstPath); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// buildSiteContext creates a SiteContext for template rendering.
func (b *Builder) buildSiteContext(
	lib *content.Library,
	pages []*content.Page,
	baseURL string,
	dataFiles map[string]any,
) *tmpl.SiteContext {
	// Build menu items.
	menuItems := make([]tmpl.MenuItemContext, len(b.config.Menu.Main))
	for i, item := range b.config.Menu.Main {
		menuItems[i] = tmpl.MenuItemContext{
			Name:   item.Name,
			URL:    item.URL,
			Weight: item.Weight,
		}
	}

	// Build section map.
	sections := make(map[string][]*tmpl.PageContext)

	// Build page contexts for site.
	sitePages := make([]*tmpl.PageContext, 0, len(pages))
	for _, p := range pages {
		pc := pageToContext(p, nil) // site will be set after
		sitePages = append(sitePages, pc)
		if p.Section != "" {
			sections[p.Section] = append(sections[p.Section], pc)
		}
	}

	// Build taxonomy contexts from the Library's populated taxonomies
	// (every taxonomy cfg.Taxonomies declares, not just a hardcoded
	// tags/categories pair).
	taxonomies := make(map[string]map[string][]*tmpl.PageContext, len(lib.Taxonomies))
	for name, tax := range lib.Taxonomies {
		termMap := make(map[string][]*tmpl.PageContext, len(tax.Terms))
		for _, term := range tax.Terms {
			termPages := lib.Pages(term.Pages)
			pcs := make([]*tmpl.PageContext, 0, len(termPages))
			for _, tp := range termPages {
				pcs = append(pcs, pageToContext(tp, nil))
			}
			termMap[term.Name] = pcs
		}
		taxonomies[name] = termMap
	}

	return &tmpl.SiteContext{
		Title:       b.config.Title,
		Description: b.config.Description,
		BaseURL:     baseURL,
		Language:    b.config.Language,
		Author: tmpl.AuthorContext{
			Name:   b.config.Author.Name,
			Email:  b.config.Author.Email,
			Bio:    b.config.Author.Bio,
			Avatar: b.config.Author.Avatar,
			Social: tmpl.SocialContext{
				GitHub:   b.config.Author.Social.GitHub,
				LinkedIn: b.config.Author.Social.LinkedIn,
				Twitter:  b.config.Author.Social.Twitter,
				Mastodon: b.config.Author.Social.Mastodon,
				Email:    b.config.Author.Social.Email,
			},
		},
		Menu:       menuItems,
		Params:     b.config.Params,
		Data:       dataFiles,
		Pages:      sitePages,
		Sections:   sections,
		Taxonomies: taxonomies,
		BuildDate:  time.Now(),
	}
}

// buildPageContexts creates a map from Page to PageContext for all pages.
func (b *Builder) buildPageContexts(pages []*content.Page, siteCtx *tmpl.SiteContext) map[*content.Page]*tmpl.PageContext {
	m := make(map[*content.Page]*tmpl.PageContext, len(pages))
	for _, p := range pages {
		ctx := pageToContext(p, siteCtx)
		m[p] = ctx
	}

	// Wire up prev/next navigation on page contexts.
	for _, p := range pages {
		ctx := m[p]
		if p.PrevPage != nil {
			if prevCtx, ok := m[p.PrevPage]; ok {
				ctx.PrevPage = prevCtx
			}
		}
		if p.NextPage != nil {
			if nextCtx, ok := m[p.NextPage]; ok {
				ctx.NextPage = nextCtx
			}
		}
	}
	return m
}

// hasHomePage reports whether any page in the slice has PageTypeHome.
func hasHomePage(pages []*content.Page) bool {
	for _, p := range pages {
		if p.Type == content.PageTypeHome {
			return true
		}
	}
	return false
}

// pageToContext converts a content.Page to a template.PageContext.
func pageToContext(p *content.Page, siteCtx *tmpl.SiteContext) *tmpl.PageContext {
	ctx := &tmpl.PageContext{
		Title:           p.Title,
		Description:     p.Description,
		Content:         template.HTML(p.Content),
		Summary:         template.HTML(p.Summary),
		Date:            p.Date,
		Lastmod:         p.Lastmod,
		Draft:           p.Draft,
		Slug:            p.Slug,
		URL:             p.URL,
		Permalink:       p.Permalink,
		ReadingTime:     p.ReadingTime,
		WordCount:       p.WordCount,
		Tags:            p.Tags,
		Categories:      p.Categories,
		Series:          p.Series,
		Params:          p.Params,
		TableOfContents: template.HTML(p.TableOfContents),
		Section:         p.Section,
		Type:            p.Type.String(),
		Site:            siteCtx,
	}

	if p.Cover != nil {
		ctx.Cover = &tmpl.CoverImage{
			Image:   p.Cover.Image,
			Alt:     p.Cover.Alt,
			Caption: p.Cover.Caption,
		}
	}

	if p.Pager != nil {
		pagerPages := make([]*tmpl.PageContext, 0, len(p.Pager.Pages))
		for _, pp := range p.Pager.Pages {
			pagerPages = append(pagerPages, pageToContext(pp, siteCtx))
		}
		ctx.Pager = &tmpl.PagerContext{
			Pages:      pagerPages,
			PageNumber: p.Pager.PageNumber,
			TotalPages: p.Pager.TotalPages,
			HasPrev:    p.Pager.HasPrev,
			HasNext:    p.Pager.HasNext,
			PrevURL:    p.Pager.PrevURL,
			NextURL:    p.Pager.NextURL,
			First:      p.Pager.First,
			Last:       p.Pager.Last,
		}
	}

	return ctx
}
