package build

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilnhq/kiln/internal/content"
)

// generateTaxonomyPages builds the virtual list and term pages for every
// taxonomy the Library populated (tags, categories, and any config-declared
// taxonomy), reading term membership from lib.Taxonomies instead of a
// hardcoded tags/categories map. A term whose page count exceeds its
// pagination size is split across multiple pages via content.Paginate;
// a term with no pages still renders one empty pager rather than
// disappearing.
func (b *Builder) generateTaxonomyPages(lib *content.Library, baseURL string) []*content.Page {
	var out []*content.Page

	names := make([]string, 0, len(lib.Taxonomies))
	for name := range lib.Taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tax := lib.Taxonomies[name]

		// Non-default-language taxonomies live under /<lang>/.
		langPrefix := ""
		if tax.Lang != "" && tax.Lang != b.config.Language {
			langPrefix = "/" + tax.Lang
		}

		listURL := langPrefix + "/" + tax.Name + "/"
		out = append(out, &content.Page{
			Type:      content.PageTypeTaxonomyList,
			Title:     tax.Name,
			Section:   tax.Name,
			Lang:      tax.Lang,
			URL:       listURL,
			Permalink: strings.TrimRight(baseURL, "/") + listURL,
			Render:    true,
		})

		for _, termName := range tax.SortedTermNames() {
			term := tax.Terms[termName]
			termPages := lib.Pages(term.Pages)
			baseTermURL := langPrefix + "/" + tax.Name + "/" + term.Slug + "/"

			pageSize := tax.PaginateBy
			if pageSize <= 0 {
				pageSize = b.config.Pagination.PageSize
			}
			paginatePath := tax.PaginatePath
			if paginatePath == "" {
				paginatePath = content.DefaultPaginatePath
			}

			pagers := content.Paginate(termPages, pageSize, baseTermURL, paginatePath)
			for _, pager := range pagers {
				url := baseTermURL
				if pager.PageNumber > 1 {
					url = fmt.Sprintf("%s%s/%d/", baseTermURL, paginatePath, pager.PageNumber)
				}
				out = append(out, &content.Page{
					Type:      content.PageTypeTaxonomy,
					Title:     term.Name,
					Slug:      term.Slug,
					Section:   tax.Name,
					Lang:      tax.Lang,
					URL:       url,
					Permalink: strings.TrimRight(baseURL, "/") + url,
					Render:    true,
					Pager:     pager,
				})
			}
		}
	}

	return out
}
