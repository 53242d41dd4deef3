package content

import "sort"

// SortKey determines how a Section orders its pages. It mirrors the
// `sort_by` front matter field accepted on an `_index.md`.
type SortKey int

const (
	// SortByDateKey orders pages newest first by Date (the default).
	SortByDateKey SortKey = iota
	// SortByUpdateDateKey orders pages newest first by Lastmod.
	SortByUpdateDateKey
	// SortByTitleKey orders pages alphabetically, case-insensitively.
	SortByTitleKey
	// SortByTitleBytesKey orders pages by raw byte comparison of Title.
	SortByTitleBytesKey
	// SortByWeightKey orders pages by ascending Weight.
	SortByWeightKey
	// SortBySlugKey orders pages alphabetically by Slug.
	SortBySlugKey
	// SortByNoneKey preserves discovery order and disables prev/next links.
	SortByNoneKey
)

// ParseSortKey maps a front matter `sort_by` string to a SortKey, defaulting
// to SortByDateKey for an empty or unrecognized value.
func ParseSortKey(s string) SortKey {
	switch s {
	case "update_date":
		return SortByUpdateDateKey
	case "title":
		return SortByTitleKey
	case "title_bytes":
		return SortByTitleBytesKey
	case "weight":
		return SortByWeightKey
	case "slug":
		return SortBySlugKey
	case "none":
		return SortByNoneKey
	default:
		return SortByDateKey
	}
}

// SortPages orders pages in place according to key, breaking ties by
// permalink so identical dates/weights/titles still produce a stable,
// build-independent order.
func SortPages(pages []*Page, key SortKey) {
	switch key {
	case SortByUpdateDateKey:
		sort.SliceStable(pages, func(i, j int) bool {
			if !pages[i].Lastmod.Equal(pages[j].Lastmod) {
				return pages[i].Lastmod.After(pages[j].Lastmod)
			}
			return pages[i].Permalink < pages[j].Permalink
		})
	case SortByTitleKey:
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Permalink < pages[j].Permalink })
		SortByTitle(pages)
	case SortByTitleBytesKey:
		sort.SliceStable(pages, func(i, j int) bool {
			if pages[i].Title != pages[j].Title {
				return pages[i].Title < pages[j].Title
			}
			return pages[i].Permalink < pages[j].Permalink
		})
	case SortByWeightKey:
		sort.SliceStable(pages, func(i, j int) bool { return pages[i].Permalink < pages[j].Permalink })
		SortByWeight(pages)
	case SortBySlugKey:
		sort.SliceStable(pages, func(i, j int) bool {
			if pages[i].Slug != pages[j].Slug {
				return pages[i].Slug < pages[j].Slug
			}
			return pages[i].Permalink < pages[j].Permalink
		})
	case SortByNoneKey:
		// Preserve discovery order.
	default:
		sort.SliceStable(pages, func(i, j int) bool {
			if !pages[i].Date.Equal(pages[j].Date) {
				return pages[i].Date.After(pages[j].Date)
			}
			return pages[i].Permalink < pages[j].Permalink
		})
	}
}

// HasSortKey reports whether a page carries the field key sorts on. Pages
// without it are unsortable for that key and are kept out of the sorted
// listing (and out of prev/next navigation).
func HasSortKey(p *Page, key SortKey) bool {
	switch key {
	case SortByDateKey:
		return !p.Date.IsZero()
	case SortByUpdateDateKey:
		return !p.Lastmod.IsZero() || !p.Date.IsZero()
	case SortByTitleKey, SortByTitleBytesKey:
		return p.Title != ""
	case SortByWeightKey:
		return p.Weight != 0
	case SortBySlugKey:
		return p.Slug != ""
	default:
		return true
	}
}
