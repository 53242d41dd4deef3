package content

import (
	"sort"
	"strings"
)

// Library is the single owner of every Page and Section in a site. Pages and
// sections reference each other only through PageKey/SectionKey, resolved by
// the Library that holds them; this avoids the ownership cycles a direct
// pointer graph (parent <-> children, prev <-> next) would otherwise require.
type Library struct {
	pages    map[PageKey]*Page
	sections map[SectionKey]*Section

	nextPageID    int
	nextSectionID int

	// rootKey is the SectionKey of the site root ("" source dir), set by the
	// first call to InsertSection with an empty SourceDir.
	rootKey SectionKey

	Taxonomies map[string]*Taxonomy
}

// NewLibrary returns an empty Library ready for InsertPage/InsertSection.
func NewLibrary() *Library {
	return &Library{
		pages:      make(map[PageKey]*Page),
		sections:   make(map[SectionKey]*Section),
		Taxonomies: make(map[string]*Taxonomy),
	}
}

// InsertPage adds p to the Library and assigns it a fresh PageKey.
func (l *Library) InsertPage(p *Page) PageKey {
	l.nextPageID++
	key := PageKey{id: l.nextPageID}
	p.Key = key
	l.pages[key] = p
	return key
}

// InsertSection adds s to the Library and assigns it a fresh SectionKey. The
// first section inserted with an empty SourceDir becomes the Library's root.
func (l *Library) InsertSection(s *Section) SectionKey {
	l.nextSectionID++
	key := SectionKey{id: l.nextSectionID}
	s.Key = key
	l.sections[key] = s
	if s.SourceDir == "" && !l.rootKey.Valid() {
		l.rootKey = key
	}
	return key
}

// Page resolves a PageKey to its Page, or nil if the key is unknown.
func (l *Library) Page(k PageKey) *Page { return l.pages[k] }

// Section resolves a SectionKey to its Section, or nil if the key is unknown.
func (l *Library) Section(k SectionKey) *Section { return l.sections[k] }

// Root returns the site's root section, or nil if none was inserted.
func (l *Library) Root() *Section { return l.sections[l.rootKey] }

// ResolvePermalink resolves an "@/" internal link target — a content file
// path relative to the content root, with or without its extension and
// leading slash — to the permalink of the page or section it names. It
// backs LinkResolver for the Markdown renderer's internal-link pass; the
// render phase only ever reads this (never mutates the Library), so
// parallel render tasks share it without locking.
func (l *Library) ResolvePermalink(path string) (string, bool) {
	target := strings.TrimPrefix(path, "/")

	for _, p := range l.pages {
		if matchesSourcePath(p.SourcePath, target) {
			return p.Permalink, true
		}
	}
	for _, s := range l.sections {
		if matchesSourcePath(s.SourcePath, target) {
			return s.Permalink, true
		}
	}
	return "", false
}

// matchesSourcePath reports whether a content file's path (relative to the
// content root, as recorded on Page/Section) matches an "@/" link target,
// which may omit the file extension.
func matchesSourcePath(sourcePath, target string) bool {
	if sourcePath == target {
		return true
	}
	if ext := strings.LastIndex(sourcePath, "."); ext >= 0 && sourcePath[:ext] == target {
		return true
	}
	return false
}

// RemovePage deletes p from the Library entirely, unlinking it from its
// parent section's Pages slice if PopulateSections has already run. Used to
// drop drafts/future/expired pages before Section/Taxonomy population runs
// over them.
func (l *Library) RemovePage(k PageKey) {
	p, ok := l.pages[k]
	if !ok {
		return
	}
	if p.SectionKey.Valid() {
		if s := l.sections[p.SectionKey]; s != nil {
			kept := s.Pages[:0]
			for _, pk := range s.Pages {
				if pk != k {
					kept = append(kept, pk)
				}
			}
			s.Pages = kept
		}
	}
	delete(l.pages, k)
}

// AllPages returns a snapshot slice of every page in the Library, in no
// particular order.
func (l *Library) AllPages() []*Page {
	out := make([]*Page, 0, len(l.pages))
	for _, p := range l.pages {
		out = append(out, p)
	}
	return out
}

// AllSections returns a snapshot slice of every section in the Library, in
// no particular order.
func (l *Library) AllSections() []*Section {
	out := make([]*Section, 0, len(l.sections))
	for _, s := range l.sections {
		out = append(out, s)
	}
	return out
}

// FindParentSection returns the key of the section that should own a
// content item living at sourceDir (slash-separated, relative to the
// content root), by walking up the directory tree looking for the nearest
// ancestor section that has already been inserted.
func (l *Library) FindParentSection(sourceDir string) (SectionKey, bool) {
	dir := sourceDir
	for {
		for key, s := range l.sections {
			if s.SourceDir == dir {
				return key, true
			}
		}
		if dir == "" {
			return SectionKey{}, false
		}
		if idx := strings.LastIndex(dir, "/"); idx >= 0 {
			dir = dir[:idx]
		} else {
			dir = ""
		}
	}
}

// PopulateSections links every page to its parent section (by SectionKey)
// and every section to its parent section, building the Children/Pages
// slices. It must be called once after all pages and sections have been
// inserted and before SortSectionPages or PopulateTaxonomies.
func (l *Library) PopulateSections() {
	for _, s := range l.sections {
		s.Children = s.Children[:0]
		s.Pages = s.Pages[:0]
		s.IgnoredPages = s.IgnoredPages[:0]
	}

	for key, s := range l.sections {
		if key == l.rootKey {
			continue
		}
		parentDir := parentOf(s.SourceDir)
		if parentKey, ok := l.findSectionByDir(parentDir); ok {
			s.ParentKey = parentKey
			parent := l.sections[parentKey]
			parent.Children = append(parent.Children, key)
		}
	}

	for _, s := range l.sections {
		sort.Slice(s.Children, func(i, j int) bool {
			a, b := l.sections[s.Children[i]], l.sections[s.Children[j]]
			if a.Weight != b.Weight {
				return a.Weight < b.Weight
			}
			return a.SourceDir < b.SourceDir
		})
	}

	for _, pk := range l.sortedPageKeys() {
		p := l.pages[pk]
		sectionKey, ok := l.FindParentSection(p.SourceDir)
		if !ok {
			continue
		}
		p.SectionKey = sectionKey
		section := l.sections[sectionKey]
		section.Pages = append(section.Pages, pk)
	}

	// Transparent sections forward their pages to the parent's listing while
	// the pages themselves stay owned by (and keyed to) the transparent
	// section, so their URLs are unchanged.
	for _, s := range l.sections {
		if !s.Transparent || !s.ParentKey.Valid() {
			continue
		}
		if parent := l.sections[s.ParentKey]; parent != nil {
			parent.Pages = append(parent.Pages, s.Pages...)
		}
	}

	l.populateTranslations()
}

// populateTranslations groups pages by canonical identity (source directory
// plus stem without its language suffix) and records, on every page, the
// keys of its translations in the other languages.
func (l *Library) populateTranslations() {
	byCanonical := make(map[string][]PageKey)
	for pk, p := range l.pages {
		if p.Canonical == "" {
			continue
		}
		byCanonical[p.Canonical] = append(byCanonical[p.Canonical], pk)
	}
	for _, keys := range byCanonical {
		sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
		for _, pk := range keys {
			p := l.pages[pk]
			p.Translations = p.Translations[:0]
			for _, other := range keys {
				if other != pk && l.pages[other].Lang != p.Lang {
					p.Translations = append(p.Translations, other)
				}
			}
		}
	}
}

// Translations resolves a page's translation keys to *Page values.
func (l *Library) Translations(k PageKey) []*Page {
	p := l.pages[k]
	if p == nil {
		return nil
	}
	return l.Pages(p.Translations)
}

func (l *Library) findSectionByDir(dir string) (SectionKey, bool) {
	for key, s := range l.sections {
		if s.SourceDir == dir {
			return key, true
		}
	}
	return SectionKey{}, false
}

func parentOf(dir string) string {
	if idx := strings.LastIndex(dir, "/"); idx >= 0 {
		return dir[:idx]
	}
	return ""
}

// SortSectionPages sorts each section's pages according to the given key
// resolver (typically reading each section's declared sort_by, defaulting
// to SortByDateKey) and resolves PrevPage/NextPage sibling links across the
// sorted, non-draft, render-eligible pages. Sections whose sort key is
// SortByNoneKey get no sibling links.
func (l *Library) SortSectionPages(sortKeyFor func(*Section) SortKey) {
	for _, s := range l.sections {
		key := SortByDateKey
		if sortKeyFor != nil {
			key = sortKeyFor(s)
		}

		// Pages missing the sort key are unsortable: they stay attached to
		// the section but drop out of the ordered listing entirely.
		pages := make([]*Page, 0, len(s.Pages))
		s.IgnoredPages = s.IgnoredPages[:0]
		for _, pk := range s.Pages {
			p := l.pages[pk]
			if p == nil {
				continue
			}
			if key != SortByNoneKey && !HasSortKey(p, key) {
				s.IgnoredPages = append(s.IgnoredPages, pk)
				continue
			}
			pages = append(pages, p)
		}

		SortPages(pages, key)

		if key != SortByNoneKey {
			eligible := make([]*Page, 0, len(pages))
			for _, p := range pages {
				if p.Render && !p.Draft {
					eligible = append(eligible, p)
				}
			}
			for i, p := range eligible {
				if i > 0 {
					p.PrevPage = eligible[i-1]
				}
				if i < len(eligible)-1 {
					p.NextPage = eligible[i+1]
				}
			}
		}

		s.SortedPages = pages
	}
}
