package content

import "fmt"

// Pager represents a single page of paginated results, for a Section listing
// or a taxonomy term.
type Pager struct {
	Pages      []*Page
	PageNumber int
	TotalPages int
	HasPrev    bool
	HasNext    bool
	PrevURL    string
	NextURL    string
	First      string // URL of first page
	Last       string // URL of last page
}

// DefaultPaginatePath is the path segment used to build paginated URLs
// (".../page/2/") when a Section or taxonomy does not override it.
const DefaultPaginatePath = "page"

// Paginate splits pages into groups of pageSize and returns a slice of
// Pagers, one of which is always returned even when pages is empty: an
// empty page list still yields a single pager of size 0, so a Section or
// taxonomy term with no content still renders once rather than disappearing.
//
// URL pattern: page 1 = baseURL, page 2 = baseURL + paginatePath + "/2/", etc.
// pageSize <= 0 is treated as 10. paginatePath defaults to DefaultPaginatePath
// when empty.
func Paginate(pages []*Page, pageSize int, baseURL string, paginatePath string) []*Pager {
	if pageSize <= 0 {
		pageSize = 10
	}
	if paginatePath == "" {
		paginatePath = DefaultPaginatePath
	}

	totalPages := (len(pages) + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	lastURL := baseURL
	if totalPages > 1 {
		lastURL = fmt.Sprintf("%s%s/%d/", baseURL, paginatePath, totalPages)
	}

	pagers := make([]*Pager, 0, totalPages)

	for i := 0; i < totalPages; i++ {
		start := i * pageSize
		end := start + pageSize
		if end > len(pages) {
			end = len(pages)
		}
		if start > len(pages) {
			start = len(pages)
		}

		pageNum := i + 1

		pager := &Pager{
			Pages:      pages[start:end],
			PageNumber: pageNum,
			TotalPages: totalPages,
			HasPrev:    pageNum > 1,
			HasNext:    pageNum < totalPages,
			First:      baseURL,
			Last:       lastURL,
		}

		if pager.HasPrev {
			if pageNum == 2 {
				pager.PrevURL = baseURL
			} else {
				pager.PrevURL = fmt.Sprintf("%s%s/%d/", baseURL, paginatePath, pageNum-1)
			}
		}

		if pager.HasNext {
			pager.NextURL = fmt.Sprintf("%s%s/%d/", baseURL, paginatePath, pageNum+1)
		}

		pagers = append(pagers, pager)
	}

	return pagers
}
