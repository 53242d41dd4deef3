package build

import (
	"fmt"
	"strings"

	"github.com/kilnhq/kiln/internal/content"
)

// generateSectionListPages builds one or more virtual list pages per Section
// from the Library's populated, sorted pages. Section bodies were already
// rendered into s.Content by the caller; a section whose page count exceeds
// its pagination size is split across multiple pages via content.Paginate,
// matching generateTaxonomyPages.
func (b *Builder) generateSectionListPages(lib *content.Library, baseURL string) []*content.Page {
	var out []*content.Page

	root := lib.Root()

	for _, s := range lib.AllSections() {
		if !s.Render || s.Transparent {
			continue
		}
		if root != nil && s.Key == root.Key {
			// The root section's listing is the home page, injected
			// separately (build.go's hasHomePage/virtual home-page step)
			// when content/_index.md doesn't already supply one.
			continue
		}

		if s.RedirectTo != "" {
			// A redirecting section emits a single meta-refresh page in
			// place of its listing; no pagination applies.
			out = append(out, &content.Page{
				Type:       content.PageTypeList,
				Title:      s.Title,
				Section:    topComponent(s.SourceDir),
				Lang:       s.Lang,
				URL:        s.URL,
				Permalink:  strings.TrimRight(baseURL, "/") + s.URL,
				Render:     true,
				RedirectTo: s.RedirectTo,
				Aliases:    s.Aliases,
			})
			continue
		}

		sectionPages := s.SortedPages
		if s.PaginateReversed {
			sectionPages = reversePages(sectionPages)
		}

		pageSize := s.PaginateBy
		if pageSize <= 0 {
			pageSize = b.config.Pagination.PageSize
		}
		paginatePath := s.PaginatePath
		if paginatePath == "" {
			paginatePath = content.DefaultPaginatePath
		}

		pagers := content.Paginate(sectionPages, pageSize, s.URL, paginatePath)
		for _, pager := range pagers {
			url := s.URL
			var aliases []string
			if pager.PageNumber > 1 {
				url = fmt.Sprintf("%s%s/%d/", s.URL, paginatePath, pager.PageNumber)
			} else {
				aliases = s.Aliases
			}
			out = append(out, &content.Page{
				Aliases:         aliases,
				Type:            content.PageTypeList,
				Title:           s.Title,
				Description:     s.Description,
				Content:         s.Content,
				TableOfContents: s.TableOfContents,
				Section:         topComponent(s.SourceDir),
				Lang:            s.Lang,
				Layout:          s.Template,
				Weight:          s.Weight,
				Params:          s.Params,
				URL:             url,
				Permalink:       strings.TrimRight(baseURL, "/") + url,
				Render:          true,
				Pager:           pager,
			})
		}
	}

	return out
}

// topComponent returns the first slash-separated component of a section's
// source directory, matching how discovery assigns Page.Section for single
// pages so list pages resolve the same per-section templates.
func topComponent(sourceDir string) string {
	if idx := strings.Index(sourceDir, "/"); idx >= 0 {
		return sourceDir[:idx]
	}
	return sourceDir
}

// reversePages returns a new slice with pages in reverse order, leaving the
// input slice untouched.
func reversePages(pages []*content.Page) []*content.Page {
	out := make([]*content.Page, len(pages))
	for i, p := range pages {
		out[len(pages)-1-i] = p
	}
	return out
}
