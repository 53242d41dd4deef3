package content

// Section represents a directory of content identified by an `_index.md`
// file: a blog listing, a projects index, or the site root. Like Page, a
// Section never holds direct pointers to other sections or pages; it refers
// to them by key through its owning Library.
type Section struct {
	Key SectionKey

	Title       string
	URL         string
	Permalink   string
	Description string

	SourcePath string // path to the _index.md, relative to the content root
	SourceDir  string // directory relative to the content root ("" for root)

	Lang string

	// RawContent/Content/TableOfContents mirror Page's: the _index.md body,
	// its rendered HTML, and its table of contents. A Section with no body
	// text (front matter only) renders with empty Content.
	RawContent      string
	Content         string
	TableOfContents string

	// Transparent sections splice their pages into the parent section
	// instead of forming their own listing (used for language/translation
	// grouping directories that should not appear as a section themselves).
	Transparent bool

	// Render mirrors Page.Render: false suppresses this section's own list
	// output (and permalink) while its pages still attach to it for
	// Children/Pages bookkeeping.
	Render bool

	// RedirectTo, when non-empty, replaces this section's listing with a
	// redirect page pointing at the target. Redirecting sections are also
	// excluded from the search index.
	RedirectTo string

	// InsertAnchorLinks is this section's heading-anchor policy for its own
	// body ("none", "left", "right", "heading"); empty defers to the site
	// default.
	InsertAnchorLinks string

	InSearchIndex bool
	Aliases       []string

	// PageTemplate, when set, overrides the template used for every page in
	// this section (the pages' own template front matter still wins).
	PageTemplate string

	// SortBy overrides the default newest-first ordering for this section's
	// pages ("date", "update_date", "title", "weight", "slug", "none").
	SortBy string

	PaginateBy       int
	PaginatePath     string
	PaginateReversed bool

	Template string
	Weight   int

	Params map[string]any

	ParentKey SectionKey // zero value means "no parent" (this is the root)
	Children  []SectionKey
	Pages     []PageKey // direct (non-transitive) pages, set by PopulateSections

	// IgnoredPages holds pages that lack this section's sort key (e.g. no
	// date under sort_by = "date"); they stay out of SortedPages and out of
	// prev/next navigation but remain attached to the section.
	IgnoredPages []PageKey

	// SortedPages mirrors Pages but holds resolved *Page pointers in the
	// Section's declared sort order, with PrevPage/NextPage populated. It is
	// filled in by Library.SortSectionPages.
	SortedPages []*Page
}
