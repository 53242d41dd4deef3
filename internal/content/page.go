package content

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// PageType represents the kind of page being rendered.
type PageType int

const (
	PageTypeSingle       PageType = iota // A regular content page
	PageTypeList                         // A section listing page
	PageTypeTaxonomy                     // A taxonomy term page (e.g., a specific tag)
	PageTypeTaxonomyList                 // A taxonomy listing page (e.g., all tags)
	PageTypeHome                         // The site home page
)

// String returns the human-readable name for a PageType.
func (pt PageType) String() string {
	switch pt {
	case PageTypeSingle:
		return "single"
	case PageTypeList:
		return "list"
	case PageTypeTaxonomy:
		return "taxonomy"
	case PageTypeTaxonomyList:
		return "taxonomylist"
	case PageTypeHome:
		return "home"
	default:
		return "unknown"
	}
}

// CoverImage holds metadata for a page's cover/hero image.
type CoverImage struct {
	Image   string
	Alt     string
	Caption string
}

// Page is the central content model in Kiln. It represents a single piece of
// content (typically a Markdown file) along with all its associated metadata,
// rendered output, and relationships to other pages. A Page's identity and
// its relationships to its Section and to sibling pages live in the Library
// that owns it; a Page never holds a pointer to another Page or Section
// directly.
type Page struct {
	Key        PageKey
	SectionKey SectionKey // the Section this page belongs to, if any

	// Core metadata
	Title       string
	Slug        string
	Path        string // Explicit URL path from front matter; overrides the section/slug URL when set
	URL         string // Relative permalink (e.g., "/blog/my-post/")
	Permalink   string // Absolute permalink (e.g., "https://example.com/blog/my-post/")
	Description string
	Summary     string

	// Language this page is written in (default site language unless the
	// source filename carried a language suffix, e.g. "page.fr.md").
	Lang string

	// Canonical groups translations of the same content: it is the source
	// directory plus the file stem with any language suffix removed, so
	// "blog/post.md" and "blog/post.fr.md" share one canonical identity.
	Canonical string

	// Translations holds the keys of this page's counterparts in other
	// languages (same Canonical, different Lang), set by PopulateSections.
	Translations []PageKey

	// Render controls whether this page produces an output file at all. A
	// page with Render == false is still linked into the Library (so
	// sections can count and reference it) but is skipped by the writer.
	Render bool

	// RedirectTo, when non-empty, marks this page as a pure redirect: it is
	// written as a minimal HTML/meta-refresh page pointing at the target.
	RedirectTo string

	// Dates
	Date       time.Time
	Lastmod    time.Time
	ExpiryDate time.Time

	// Content
	RawContent      string // Raw markdown
	Content         string // Rendered HTML
	TableOfContents string // Rendered TOC HTML
	WordCount       int
	ReadingTime     int // Minutes

	// Classification
	Draft   bool
	Type    PageType
	Section string // e.g., "blog", "projects"
	Layout  string // Explicit layout override
	Weight  int

	// InSearchIndex controls whether this page is emitted as a document in
	// the built search_index.<lang>.json. Defaults to true; set false via
	// in_search_index = false in front matter to exclude a page.
	InSearchIndex bool

	// Taxonomies. Tags and Categories are the dedicated built-in fields;
	// Taxonomies carries the front-matter taxonomies map verbatim, covering
	// any taxonomy the site config declares.
	Tags       []string
	Categories []string
	Taxonomies map[string][]string
	Series     string

	// Navigation. These are resolved by Library.SortSectionPages from
	// PageKey lookups, never assigned directly.
	PrevPage *Page
	NextPage *Page
	Aliases  []string

	// Pagination overrides for list-type pages (sections, taxonomy terms
	// rendered through this page). Zero PaginateBy means "use the site
	// default page size".
	PaginateBy   int
	PaginatePath string

	// Pager holds this page's resolved pagination window when Type is
	// PageTypeList or PageTypeTaxonomy; it is set for every pager Paginate
	// returns, including the only one when everything fits on a single page.
	// Nil for single/home/taxonomy-list pages.
	Pager *Pager

	// Media
	Cover *CoverImage

	// Author override
	Author string

	// Bundle info
	IsBundle    bool
	BundleDir   string   // Directory path for page bundles
	BundleFiles []string // Co-located asset file paths

	// Source info
	SourcePath string // Original file path relative to content dir
	SourceDir  string // Directory containing the source file

	// Arbitrary params
	Params map[string]any
}

// SortByDate sorts pages by their Date field. When ascending is true, older
// pages come first; when false, newer pages come first.
func SortByDate(pages []*Page, ascending bool) {
	sort.SliceStable(pages, func(i, j int) bool {
		if ascending {
			return pages[i].Date.Before(pages[j].Date)
		}
		return pages[i].Date.After(pages[j].Date)
	})
}

// SortByWeight sorts pages by Weight in ascending order. Pages with Weight == 0
// (unset) are placed at the end.
func SortByWeight(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		wi, wj := pages[i].Weight, pages[j].Weight
		// Both zero: maintain original order
		if wi == 0 && wj == 0 {
			return false
		}
		// Zero goes last
		if wi == 0 {
			return false
		}
		if wj == 0 {
			return true
		}
		return wi < wj
	})
}

// SortByTitle sorts pages alphabetically by Title using case-insensitive comparison.
func SortByTitle(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		return strings.ToLower(pages[i].Title) < strings.ToLower(pages[j].Title)
	})
}

// FilterDrafts returns a new slice with all draft pages removed.
func FilterDrafts(pages []*Page) []*Page {
	return slices.DeleteFunc(slices.Clone(pages), func(p *Page) bool {
		return p.Draft
	})
}

// FilterFuture returns a new slice with pages whose Date is in the future removed.
func FilterFuture(pages []*Page) []*Page {
	now := time.Now()
	return slices.DeleteFunc(slices.Clone(pages), func(p *Page) bool {
		return p.Date.After(now)
	})
}

// FilterExpired returns a new slice with pages whose ExpiryDate is non-zero and
// in the past removed.
func FilterExpired(pages []*Page) []*Page {
	now := time.Now()
	return slices.DeleteFunc(slices.Clone(pages), func(p *Page) bool {
		return !p.ExpiryDate.IsZero() && p.ExpiryDate.Before(now)
	})
}
