package mcpserver

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/build"
	"github.com/kilnhq/kiln/internal/content"
	"github.com/kilnhq/kiln/internal/render"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (ks *KilnServer) registerTools() {
	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "query_content",
		Description: "Filter and sort content pages by section, tags, date, draft status, and more",
	}, ks.handleQueryContent)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "get_page",
		Description: "Get full detail for a single page by path or URL",
	}, ks.handleGetPage)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "list_drafts",
		Description: "List all draft content across all sections",
	}, ks.handleListDrafts)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "validate_frontmatter",
		Description: "Validate a frontmatter TOML string against the Kiln schema",
	}, ks.handleValidateFrontmatter)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "get_template_context",
		Description: "Show what data a specific template receives at render time",
	}, ks.handleGetTemplateContext)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "resolve_layout",
		Description: "Show which layout file a given content page will use",
	}, ks.handleResolveLayout)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "create_content",
		Description: "Scaffold a new content file with valid frontmatter",
	}, ks.handleCreateContent)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "build_site",
		Description: "Trigger a full site build and return structured results",
	}, ks.handleBuildSite)

	mcp.AddTool(ks.server, &mcp.Tool{
		Name:        "deploy_site",
		Description: "Check that an S3 deploy bucket is configured; the deploy itself runs only through the 'kiln deploy' CLI command",
	}, ks.handleDeploySite)
}

func (ks *KilnServer) handleQueryContent(ctx context.Context, req *mcp.CallToolRequest, input QueryContentInput) (*mcp.CallToolResult, QueryContentOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, QueryContentOutput{}, nil
	}

	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	if input.Section != "" && !sc.HasSection(input.Section) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("Unknown section %q. Available sections: %s", input.Section, strings.Join(sc.SectionNames(), ", ")),
			}},
		}, QueryContentOutput{}, nil
	}

	filtered := filterPages(pages, input)

	sortBy := cmp.Or(input.SortBy, "date")
	sortOrder := cmp.Or(input.SortOrder, "desc")
	sortPages(filtered, sortBy, sortOrder)

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	total := len(filtered)
	filtered = paginatePages(filtered, input.Offset, limit)

	briefs := make([]PageBrief, len(filtered))
	for i, p := range filtered {
		briefs[i] = toPageBrief(p)
	}

	return nil, QueryContentOutput{
		TotalMatches: total,
		Offset:       input.Offset,
		Limit:        limit,
		Pages:        briefs,
	}, nil
}

func (ks *KilnServer) handleGetPage(ctx context.Context, req *mcp.CallToolRequest, input GetPageInput) (*mcp.CallToolResult, PageDetail, error) {
	if input.Path == "" && input.URL == "" {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "either path or url is required"}}}, PageDetail{}, nil
	}

	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, PageDetail{}, nil
	}

	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	for _, p := range pages {
		if (input.Path != "" && matchPagePath(p.SourcePath, input.Path)) ||
			(input.URL != "" && p.URL == input.URL) {
			return nil, toPageDetail(p), nil
		}
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("page not found: %s", cmp.Or(input.Path, input.URL))}},
	}, PageDetail{}, nil
}

func (ks *KilnServer) handleListDrafts(ctx context.Context, req *mcp.CallToolRequest, input ListDraftsInput) (*mcp.CallToolResult, ListDraftsOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, ListDraftsOutput{}, nil
	}

	sc.mu.RLock()
	pages := sc.pages()
	sc.mu.RUnlock()

	var drafts []PageBrief
	for _, p := range pages {
		if !p.Draft {
			continue
		}
		if input.Section != "" && p.Section != input.Section {
			continue
		}
		drafts = append(drafts, toPageBrief(p))
	}
	if drafts == nil {
		drafts = []PageBrief{}
	}
	return nil, ListDraftsOutput{TotalDrafts: len(drafts), Drafts: drafts}, nil
}

func (ks *KilnServer) handleValidateFrontmatter(ctx context.Context, req *mcp.CallToolRequest, input ValidateFrontmatterInput) (*mcp.CallToolResult, ValidateFrontmatterOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, ValidateFrontmatterOutput{}, nil
	}

	sc.mu.RLock()
	existingTags := sc.AllTags()
	existingCats := sc.AllCategories()
	sc.mu.RUnlock()

	result := validateFrontmatter(input.Frontmatter, existingTags, existingCats)
	return nil, result, nil
}

func (ks *KilnServer) handleGetTemplateContext(ctx context.Context, req *mcp.CallToolRequest, input GetTemplateContextInput) (*mcp.CallToolResult, GetTemplateContextOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, GetTemplateContextOutput{}, nil
	}

	sc.mu.RLock()
	pages := sc.pages()
	theme := sc.cfg.Theme
	cfg := sc.cfg
	sc.mu.RUnlock()

	var target *content.Page
	for _, p := range pages {
		if matchPagePath(p.SourcePath, input.PagePath) {
			target = p
			break
		}
	}
	if target == nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("page not found: %s", input.PagePath)}},
		}, GetTemplateContextOutput{}, nil
	}

	layoutInfo := resolveLayout(target, ks.siteDir, theme)

	// Build the same PageContext the template would actually execute
	// against, so the reported fields match real render behavior.
	pageCtx := render.NewRenderer(nil, nil, cfg).BuildPageContext(target, pages)

	out := GetTemplateContextOutput{
		ResolvedTemplate: layoutInfo.Resolved,
		BaseTemplate:     layoutInfo.BaseTemplate,
		Partials:         layoutInfo.Blocks,
		Context: map[string]any{
			"Title":       pageCtx.Title,
			"Date":        pageCtx.Date,
			"Draft":       pageCtx.Draft,
			"Tags":        pageCtx.Tags,
			"Categories":  pageCtx.Categories,
			"Series":      pageCtx.Series,
			"ReadingTime": pageCtx.ReadingTime,
			"WordCount":   pageCtx.WordCount,
			"URL":         pageCtx.URL,
			"Permalink":   pageCtx.Permalink,
			"Section":     pageCtx.Section,
			"Type":        pageCtx.Type,
		},
		AvailableFunctions: []string{
			"markdownify", "plainify", "truncate", "slugify", "highlight",
			"safeHTML", "where", "sort", "first", "last", "shuffle", "group",
			"dateFormat", "now", "readingTime", "relURL", "absURL", "ref",
		},
	}
	return nil, out, nil
}

func (ks *KilnServer) handleResolveLayout(ctx context.Context, req *mcp.CallToolRequest, input ResolveLayoutInput) (*mcp.CallToolResult, ResolveLayoutOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, ResolveLayoutOutput{}, nil
	}

	sc.mu.RLock()
	pages := sc.pages()
	theme := sc.cfg.Theme
	sc.mu.RUnlock()

	var target *content.Page
	for _, p := range pages {
		if matchPagePath(p.SourcePath, input.PagePath) {
			target = p
			break
		}
	}
	if target == nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("page not found: %s", input.PagePath)}},
		}, ResolveLayoutOutput{}, nil
	}

	return nil, resolveLayout(target, ks.siteDir, theme), nil
}

func (ks *KilnServer) handleCreateContent(ctx context.Context, req *mcp.CallToolRequest, input CreateContentInput) (*mcp.CallToolResult, CreateContentOutput, error) {
	if input.Title == "" {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "title is required"}}}, CreateContentOutput{}, nil
	}
	if input.Section == "" {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: "section is required"}}}, CreateContentOutput{}, nil
	}

	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, CreateContentOutput{}, nil
	}

	sc.mu.RLock()
	existingTags := sc.AllTags()
	existingCats := sc.AllCategories()
	sc.mu.RUnlock()

	slug := input.Slug
	if slug == "" {
		slug = sc.SlugifyTitle(input.Title)
	}

	isDraft := true
	if input.Draft != nil {
		isDraft = *input.Draft
	}

	now := time.Now()
	var relPath, url string
	if input.PageBundle {
		relPath = fmt.Sprintf("content/%s/%s/index.md", input.Section, slug)
	} else {
		relPath = fmt.Sprintf("content/%s/%s.md", input.Section, slug)
	}
	url = fmt.Sprintf("/%s/%s/", input.Section, slug)

	absPath := filepath.Join(ks.siteDir, relPath)

	if _, err := os.Stat(absPath); err == nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("file already exists: %s", relPath)}},
		}, CreateContentOutput{}, nil
	}

	var warnings []string
	for _, t := range input.Tags {
		similar := findSimilarTerms(t, existingTags, 2)
		for _, s := range similar {
			if s != t {
				warnings = append(warnings, fmt.Sprintf("Tag %q is similar to existing tag %q", t, s))
			}
		}
		if !containsStr(existingTags, t) {
			warnings = append(warnings, fmt.Sprintf("Tag %q is new and will create a new taxonomy term", t))
		}
	}
	for _, c := range input.Categories {
		similar := findSimilarTerms(c, existingCats, 2)
		for _, s := range similar {
			if s != c {
				warnings = append(warnings, fmt.Sprintf("Category %q is similar to existing category %q", c, s))
			}
		}
		if !containsStr(existingCats, c) {
			warnings = append(warnings, fmt.Sprintf("Category %q is new and will create a new taxonomy term", c))
		}
	}

	fm := buildFrontmatterTOML(input, slug, isDraft, now)

	body := input.Body
	if body == "" {
		body = "\n"
	}
	fileContent := "+++\n" + fm + "+++\n\n" + body

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, CreateContentOutput{}, fmt.Errorf("creating directories: %w", err)
	}

	if err := os.WriteFile(absPath, []byte(fileContent), 0644); err != nil {
		return nil, CreateContentOutput{}, fmt.Errorf("writing file: %w", err)
	}

	ks.ctx.MarkDirty()

	return nil, CreateContentOutput{
		Created:     true,
		FilePath:    relPath,
		URL:         url,
		Frontmatter: fm,
		Warnings:    warnings,
	}, nil
}

func (ks *KilnServer) handleBuildSite(ctx context.Context, req *mcp.CallToolRequest, input BuildSiteInput) (*mcp.CallToolResult, BuildSiteOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, BuildSiteOutput{}, nil
	}

	sc.mu.RLock()
	cfg := sc.cfg
	sc.mu.RUnlock()

	outputDir := input.OutputDir
	if outputDir == "" {
		outputDir = "public"
	}

	opts := build.BuildOptions{
		IncludeDrafts: input.Drafts,
		IncludeFuture: input.Future,
		OutputDir:     outputDir,
		Verbose:       input.Verbose,
		ProjectRoot:   ks.siteDir,
	}
	if input.BaseURL != "" {
		opts.BaseURL = input.BaseURL
	}

	builder := build.NewBuilder(cfg, opts)
	start := time.Now()
	result, buildErr := builder.Build()

	var out BuildSiteOutput
	if buildErr != nil {
		out = BuildSiteOutput{
			Success: false,
			Errors:  []BuildIssue{{Message: buildErr.Error()}},
		}
	} else {
		out = BuildSiteOutput{
			Success:           true,
			DurationMs:        time.Since(start).Milliseconds(),
			PagesRendered:     result.PagesRendered,
			StaticFilesCopied: result.StaticFiles,
			OutputDir:         outputDir + "/",
			OutputSizeBytes:   result.OutputSize,
			Errors:            []BuildIssue{},
			Warnings:          []BuildIssue{},
		}
	}

	ks.lastBuild = &BuildResultDetail{
		Timestamp:       time.Now(),
		DurationMs:      out.DurationMs,
		Success:         out.Success,
		PagesRendered:   out.PagesRendered,
		OutputDir:       out.OutputDir,
		OutputSizeBytes: out.OutputSizeBytes,
		Errors:          out.Errors,
		Warnings:        out.Warnings,
	}

	_ = ks.server.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{URI: "kiln://build/status"})

	return nil, out, nil
}

func (ks *KilnServer) handleDeploySite(ctx context.Context, req *mcp.CallToolRequest, input DeploySiteInput) (*mcp.CallToolResult, DeploySiteOutput, error) {
	sc, err := ks.ctx.Load()
	if err != nil {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}}, DeploySiteOutput{}, nil
	}

	sc.mu.RLock()
	cfg := sc.cfg
	sc.mu.RUnlock()

	if cfg.Deploy.S3.Bucket == "" {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "deploy.s3.bucket is not configured in kiln.yaml"}},
		}, DeploySiteOutput{}, nil
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "deploy_site requires AWS credentials; use 'kiln deploy' CLI command instead"}},
	}, DeploySiteOutput{
		DryRun: input.DryRun,
		Bucket: cfg.Deploy.S3.Bucket,
		Region: cfg.Deploy.S3.Region,
	}, nil
}

// --- Query filter helpers ---

func filterPages(pages []*content.Page, input QueryContentInput) []*content.Page {
	var result []*content.Page
	for _, p := range pages {
		if input.Section != "" && p.Section != input.Section {
			continue
		}
		if input.Draft != nil && p.Draft != *input.Draft {
			continue
		}
		if len(input.Tags) > 0 && !hasAllTags(p, input.Tags) {
			continue
		}
		if len(input.Categories) > 0 && !hasAnyCategory(p, input.Categories) {
			continue
		}
		if input.Series != "" && p.Series != input.Series {
			continue
		}
		if input.DateAfter != "" {
			t, err := time.Parse(time.RFC3339, input.DateAfter)
			if err == nil && !p.Date.After(t) {
				continue
			}
		}
		if input.DateBefore != "" {
			t, err := time.Parse(time.RFC3339, input.DateBefore)
			if err == nil && !p.Date.Before(t) {
				continue
			}
		}
		if input.Search != "" {
			q := strings.ToLower(input.Search)
			if !strings.Contains(strings.ToLower(p.Title), q) &&
				!strings.Contains(strings.ToLower(p.Summary), q) &&
				!strings.Contains(strings.ToLower(p.RawContent), q) {
				continue
			}
		}
		result = append(result, p)
	}
	return result
}

func hasAllTags(p *content.Page, tags []string) bool {
	for _, t := range tags {
		found := false
		for _, pt := range p.Tags {
			if strings.EqualFold(pt, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func hasAnyCategory(p *content.Page, cats []string) bool {
	for _, c := range cats {
		for _, pc := range p.Categories {
			if strings.EqualFold(pc, c) {
				return true
			}
		}
	}
	return false
}

func sortPages(pages []*content.Page, by, order string) {
	sort.Slice(pages, func(i, j int) bool {
		var less bool
		switch by {
		case "title":
			less = pages[i].Title < pages[j].Title
		case "weight":
			less = pages[i].Weight < pages[j].Weight
		case "readingTime":
			less = pages[i].ReadingTime < pages[j].ReadingTime
		case "wordCount":
			less = pages[i].WordCount < pages[j].WordCount
		default: // date
			less = pages[i].Date.Before(pages[j].Date)
		}
		if order == "asc" {
			return less
		}
		return !less
	})
}

func paginatePages(pages []*content.Page, offset, limit int) []*content.Page {
	if offset >= len(pages) {
		return []*content.Page{}
	}
	end := offset + limit
	if end > len(pages) {
		end = len(pages)
	}
	return pages[offset:end]
}

func resolveLayout(p *content.Page, siteDir, theme string) ResolveLayoutOutput {
	section := p.Section
	layout := p.Layout
	if layout == "" {
		layout = "single"
	}
	if theme == "" {
		theme = "default"
	}

	type candidate struct {
		path   string
		source string
	}

	themePath := filepath.Join(siteDir, "themes", theme, "layouts")
	userPath := filepath.Join(siteDir, "layouts")

	candidates := []candidate{}
	if section != "" {
		candidates = append(candidates,
			candidate{filepath.Join(userPath, section, layout+".html"), "user"},
			candidate{filepath.Join(themePath, section, layout+".html"), "theme"},
			candidate{filepath.Join(userPath, section, "single.html"), "user"},
			candidate{filepath.Join(themePath, section, "single.html"), "theme"},
		)
	}
	candidates = append(candidates,
		candidate{filepath.Join(userPath, "_default", layout+".html"), "user"},
		candidate{filepath.Join(themePath, "_default", layout+".html"), "theme"},
		candidate{filepath.Join(userPath, "_default", "single.html"), "user"},
		candidate{filepath.Join(themePath, "_default", "single.html"), "theme"},
	)

	var resolved, resolvedSource string
	lookupOrder := make([]LayoutLookup, 0, len(candidates))
	for _, c := range candidates {
		rel, _ := filepath.Rel(siteDir, c.path)
		_, err := os.Stat(c.path)
		exists := err == nil
		if exists && resolved == "" {
			resolved = rel
			resolvedSource = c.source
		}
		lookupOrder = append(lookupOrder, LayoutLookup{Path: rel, Exists: exists, Source: c.source})
	}

	baseof := filepath.Join(themePath, "_default", "baseof.html")
	baseofRel, _ := filepath.Rel(siteDir, baseof)
	if _, err := os.Stat(filepath.Join(userPath, "_default", "baseof.html")); err == nil {
		baseofRel, _ = filepath.Rel(siteDir, filepath.Join(userPath, "_default", "baseof.html"))
	}

	return ResolveLayoutOutput{
		Resolved:     resolved,
		Source:       resolvedSource,
		LookupOrder:  lookupOrder,
		BaseTemplate: baseofRel,
		Blocks:       []string{"head", "main", "scripts"},
	}
}

func buildFrontmatterTOML(input CreateContentInput, slug string, isDraft bool, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("title = %q\n", input.Title))
	sb.WriteString(fmt.Sprintf("date = %q\n", now.Format(time.RFC3339)))
	if isDraft {
		sb.WriteString("draft = true\n")
	}
	if len(input.Tags) > 0 {
		sb.WriteString("tags = [")
		for i, t := range input.Tags {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%q", t))
		}
		sb.WriteString("]\n")
	}
	if len(input.Categories) > 0 {
		sb.WriteString("categories = [")
		for i, c := range input.Categories {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%q", c))
		}
		sb.WriteString("]\n")
	}
	if input.Series != "" {
		sb.WriteString(fmt.Sprintf("series = %q\n", input.Series))
	}
	if input.Description != "" {
		sb.WriteString(fmt.Sprintf("description = %q\n", input.Description))
	}
	if input.Slug != "" && input.Slug != slug {
		sb.WriteString(fmt.Sprintf("slug = %q\n", input.Slug))
	}
	return sb.String()
}

func containsStr(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
