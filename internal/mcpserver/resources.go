package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/content"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (ks *KilnServer) registerResources() {
	// Static resources
	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://config",
		Name:        "Site Configuration",
		Description: "Resolved site configuration from kiln.yaml",
		MIMEType:    "application/json",
	}, ks.handleConfigResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://content/pages",
		Name:        "Content Inventory",
		Description: "All content pages with metadata (no body)",
		MIMEType:    "application/json",
	}, ks.handlePagesResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://content/sections",
		Name:        "Sections",
		Description: "All content sections with page counts",
		MIMEType:    "application/json",
	}, ks.handleSectionsResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://taxonomies",
		Name:        "Taxonomies Overview",
		Description: "All taxonomies with their terms and counts",
		MIMEType:    "application/json",
	}, ks.handleTaxonomiesResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://templates",
		Name:        "Template Inventory",
		Description: "All available layouts and partials with file paths",
		MIMEType:    "application/json",
	}, ks.handleTemplatesResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://build/status",
		Name:        "Build Status",
		Description: "Last build result — timestamp, duration, errors, warnings",
		MIMEType:    "application/json",
	}, ks.handleBuildStatusResource)

	ks.server.AddResource(&mcp.Resource{
		URI:         "kiln://schema/frontmatter",
		Name:        "Frontmatter Schema",
		Description: "Valid frontmatter fields, types, defaults, and constraints",
		MIMEType:    "application/json",
	}, ks.handleFrontmatterSchemaResource)

	// Resource templates (parameterized URIs)
	ks.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "kiln://content/page/{path}",
		Name:        "Page Detail",
		Description: "Full detail for a single content page",
		MIMEType:    "application/json",
	}, ks.handlePageDetailResource)

	ks.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: "kiln://taxonomies/{name}",
		Name:        "Taxonomy Detail",
		Description: "Terms and pages for a specific taxonomy",
		MIMEType:    "application/json",
	}, ks.handleTaxonomyDetailResource)
}

func jsonResource(uri, data string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: data},
		},
	}
}

func marshalResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return jsonResource(uri, string(b)), nil
}

func (ks *KilnServer) handleConfigResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	cfg := sc.cfg
	sc.mu.RUnlock()
	return marshalResource(req.Params.URI, cfg)
}

func (ks *KilnServer) handlePagesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	briefs := make([]PageBrief, len(pages))
	for i, p := range pages {
		briefs[i] = toPageBrief(p)
	}
	result := map[string]any{
		"totalPages": len(briefs),
		"pages":      briefs,
	}
	return marshalResource(req.Params.URI, result)
}

func (ks *KilnServer) handleSectionsResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	sections := buildSections(pages)
	result := map[string]any{"sections": sections}
	return marshalResource(req.Params.URI, result)
}

func (ks *KilnServer) handleTaxonomiesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	lib := sc.lib
	sc.mu.RUnlock()

	overview := buildTaxonomyOverview(lib)
	return marshalResource(req.Params.URI, overview)
}

func (ks *KilnServer) handleTemplatesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	theme := sc.cfg.Theme
	sc.mu.RUnlock()

	inv := buildTemplateInventory(ks.siteDir, theme)
	return marshalResource(req.Params.URI, inv)
}

func (ks *KilnServer) handleBuildStatusResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	status := BuildStatus{LastBuild: ks.lastBuild}
	return marshalResource(req.Params.URI, status)
}

func (ks *KilnServer) handleFrontmatterSchemaResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	tags := sc.AllTags()
	cats := sc.AllCategories()
	series := sc.AllSeries()
	sc.mu.RUnlock()

	schema := buildFrontmatterSchema(tags, cats, series)
	return marshalResource(req.Params.URI, schema)
}

func (ks *KilnServer) handlePageDetailResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	// Extract {path} from URI: "kiln://content/page/{path}"
	uri := req.Params.URI
	prefix := "kiln://content/page/"
	if !strings.HasPrefix(uri, prefix) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	path := strings.TrimPrefix(uri, prefix)

	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	for _, p := range pages {
		if matchPagePath(p.SourcePath, path) {
			detail := toPageDetail(p)
			return marshalResource(uri, detail)
		}
	}
	return nil, mcp.ResourceNotFoundError(uri)
}

func (ks *KilnServer) handleTaxonomyDetailResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	// Extract {name} from URI: "kiln://taxonomies/{name}"
	uri := req.Params.URI
	prefix := "kiln://taxonomies/"
	if !strings.HasPrefix(uri, prefix) {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	name := strings.TrimPrefix(uri, prefix)

	sc, err := ks.ctx.Load()
	if err != nil {
		return nil, err
	}
	sc.mu.RLock()
	lib := sc.lib
	sc.mu.RUnlock()

	detail, ok := buildTaxonomyDetail(name, lib)
	if !ok {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return marshalResource(uri, detail)
}

// --- Helper functions ---

// matchPagePath checks if sourcePath (content-dir-relative, e.g. "blog/my-post.md")
// matches an API path (content-dir-relative, with or without a leading
// "content/" prefix carried over from a site-root-relative request).
func matchPagePath(sourcePath, apiPath string) bool {
	if sourcePath == apiPath {
		return true
	}
	contentRelative := strings.TrimPrefix(apiPath, "content/")
	if sourcePath == contentRelative {
		return true
	}
	return strings.HasSuffix(sourcePath, "/"+apiPath) || strings.HasSuffix(sourcePath, "/"+contentRelative)
}

func toPageBrief(p *content.Page) PageBrief {
	b := PageBrief{
		Path:        p.SourcePath,
		URL:         p.URL,
		Title:       p.Title,
		Date:        p.Date,
		Lastmod:     p.Lastmod,
		Draft:       p.Draft,
		Section:     p.Section,
		Tags:        p.Tags,
		Categories:  p.Categories,
		Series:      p.Series,
		Summary:     p.Summary,
		Description: p.Description,
		ReadingTime: p.ReadingTime,
		WordCount:   p.WordCount,
		HasCover:    p.Cover != nil,
		IsBundle:    p.IsBundle,
	}
	if b.Tags == nil {
		b.Tags = []string{}
	}
	if b.Categories == nil {
		b.Categories = []string{}
	}
	return b
}

func toPageDetail(p *content.Page) PageDetail {
	d := PageDetail{
		PageBrief:       toPageBrief(p),
		Slug:            p.Slug,
		Permalink:       p.Permalink,
		Weight:          p.Weight,
		Layout:          p.Layout,
		Aliases:         p.Aliases,
		Params:          p.Params,
		RawMarkdown:     p.RawContent,
		RenderedHTML:    p.Content,
		TableOfContents: p.TableOfContents,
		BundleAssets:    p.BundleFiles,
	}
	if p.Cover != nil {
		d.Cover = &CoverImageDetail{
			Image:   p.Cover.Image,
			Alt:     p.Cover.Alt,
			Caption: p.Cover.Caption,
		}
	}
	if p.PrevPage != nil {
		d.PrevPage = &PageRef{Title: p.PrevPage.Title, URL: p.PrevPage.URL}
	}
	if p.NextPage != nil {
		d.NextPage = &PageRef{Title: p.NextPage.Title, URL: p.NextPage.URL}
	}
	return d
}

func buildSections(pages []*content.Page) []SectionInfo {
	type sectionData struct {
		count      int
		draftCount int
		latest     time.Time
		oldest     time.Time
		hasIndex   bool
	}
	data := make(map[string]*sectionData)

	for _, p := range pages {
		if p.Section == "" {
			continue
		}
		d, ok := data[p.Section]
		if !ok {
			d = &sectionData{}
			data[p.Section] = d
		}
		d.count++
		if p.Draft {
			d.draftCount++
		}
		if !p.Date.IsZero() {
			if d.latest.IsZero() || p.Date.After(d.latest) {
				d.latest = p.Date
			}
			if d.oldest.IsZero() || p.Date.Before(d.oldest) {
				d.oldest = p.Date
			}
		}
		if strings.HasSuffix(p.SourcePath, "_index.md") {
			d.hasIndex = true
		}
	}

	sections := make([]SectionInfo, 0, len(data))
	for name, d := range data {
		sections = append(sections, SectionInfo{
			Name:       name,
			Path:       fmt.Sprintf("content/%s/", name),
			PageCount:  d.count,
			DraftCount: d.draftCount,
			HasIndex:   d.hasIndex,
			LatestDate: d.latest,
			OldestDate: d.oldest,
		})
	}
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].Name < sections[j].Name
	})
	return sections
}

// buildTaxonomyOverview reads the Library's already-populated Taxonomies
// map (built by content.Library.PopulateTaxonomies from the site's
// config.Taxonomies definitions) instead of re-deriving term counts from a
// hardcoded tags/categories pair, so any custom taxonomy declared in
// kiln.yaml shows up here too.
func buildTaxonomyOverview(lib *content.Library) TaxonomyOverview {
	names := make([]string, 0, len(lib.Taxonomies))
	for name := range lib.Taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)

	var taxos []TaxonomySummary
	for _, name := range names {
		tax := lib.Taxonomies[name]
		terms := make([]TermBrief, 0, len(tax.Terms))
		total := 0
		for _, t := range tax.Terms {
			terms = append(terms, TermBrief{Name: t.Name, Slug: t.Slug, Count: len(t.Pages)})
			total += len(t.Pages)
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i].Count > terms[j].Count })
		taxos = append(taxos, TaxonomySummary{
			Name:             name,
			URLBase:          "/" + name + "/",
			TermCount:        len(terms),
			TotalAssignments: total,
			Terms:            terms,
		})
	}
	return TaxonomyOverview{Taxonomies: taxos}
}

func buildTaxonomyDetail(name string, lib *content.Library) (TaxonomyDetail, bool) {
	tax, ok := lib.Taxonomies[strings.ToLower(name)]
	if !ok {
		return TaxonomyDetail{}, false
	}

	urlBase := "/" + strings.ToLower(name) + "/"
	terms := make([]TermDetail, 0, len(tax.Terms))
	for _, t := range tax.Terms {
		refs := make([]PageRef, 0, len(t.Pages))
		for _, p := range lib.Pages(t.Pages) {
			refs = append(refs, PageRef{Title: p.Title, URL: p.URL})
		}
		terms = append(terms, TermDetail{
			Name:  t.Name,
			Slug:  t.Slug,
			URL:   fmt.Sprintf("%s%s/", urlBase, t.Slug),
			Count: len(refs),
			Pages: refs,
		})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Count > terms[j].Count })

	return TaxonomyDetail{
		Name:    name,
		URLBase: urlBase,
		Terms:   terms,
	}, true
}

func buildTemplateInventory(siteDir, theme string) TemplateInventory {
	inv := TemplateInventory{}
	if theme == "" {
		theme = "default"
	}

	themePath := filepath.Join(siteDir, "themes", theme, "layouts")
	userPath := filepath.Join(siteDir, "layouts")

	walkTemplates := func(root, source string) {
		filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if !strings.HasSuffix(path, ".html") {
				return nil
			}
			rel, _ := filepath.Rel(root, path)
			entry := TemplateEntry{
				Path:   rel,
				Source: source,
			}
			if strings.Contains(rel, "partials") {
				inv.Partials = append(inv.Partials, entry)
			} else {
				if strings.HasSuffix(rel, "single.html") {
					entry.Type = "single"
				} else if strings.HasSuffix(rel, "list.html") {
					entry.Type = "list"
				} else if strings.HasSuffix(rel, "baseof.html") {
					entry.Type = "base"
				}
				parts := strings.SplitN(rel, string(filepath.Separator), 2)
				if len(parts) == 2 && parts[0] != "_default" {
					entry.Section = parts[0]
				}
				inv.Layouts = append(inv.Layouts, entry)
			}
			return nil
		})
	}

	walkTemplates(themePath, "theme")
	walkTemplates(userPath, "user")

	return inv
}

func buildFrontmatterSchema(tags, cats, series []string) FrontmatterSchema {
	return FrontmatterSchema{
		Required: []string{"title"},
		Fields: map[string]FieldSchema{
			"title": {
				Type:        "string",
				Description: "Page title (required)",
				Default:     nil,
			},
			"date": {
				Type:        "datetime",
				Description: "Publish date (ISO 8601)",
				Default:     "now",
			},
			"draft": {
				Type:        "boolean",
				Description: "Exclude from production builds",
				Default:     true,
			},
			"tags": {
				Type:           "[]string",
				Description:    "Tag taxonomy terms",
				Default:        []string{},
				ExistingValues: tags,
			},
			"categories": {
				Type:           "[]string",
				Description:    "Category taxonomy terms",
				Default:        []string{},
				ExistingValues: cats,
			},
			"series": {
				Type:           "string",
				Description:    "Group related posts into a named series",
				Default:        nil,
				ExistingValues: series,
			},
			"cover": {
				Type:        "object",
				Description: "Cover image configuration",
				Fields: map[string]any{
					"image":   map[string]string{"type": "string"},
					"alt":     map[string]string{"type": "string"},
					"caption": map[string]string{"type": "string"},
				},
			},
			"slug": {
				Type:        "string",
				Description: "URL slug override (default: derived from filename)",
			},
			"description": {
				Type:        "string",
				Description: "Meta description / OpenGraph description",
			},
			"summary": {
				Type:        "string",
				Description: "Explicit summary for listing pages",
			},
			"weight": {
				Type:        "integer",
				Description: "Sort order for non-date ordering",
				Default:     0,
			},
			"layout": {
				Type:        "string",
				Description: "Explicit layout override",
				ValidValues: []string{"single", "list"},
			},
			"in_search_index": {
				Type:        "boolean",
				Description: "Include this page in the generated search index",
				Default:     true,
			},
			"aliases": {
				Type:        "[]string",
				Description: "Redirect old URLs to this page",
			},
			"params": {
				Type:        "map[string]any",
				Description: "Arbitrary key-value pairs accessible in templates",
			},
		},
	}
}
