package content

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/kilnhq/kiln/internal/config"
)

// TaxonomyTerm holds every page tagged with one term (e.g. the "go" term of
// the "tags" taxonomy), sorted newest first.
type TaxonomyTerm struct {
	Name  string
	Slug  string
	Pages []PageKey
}

// Taxonomy holds every term discovered for one taxonomy definition (e.g.
// "tags") in one language.
type Taxonomy struct {
	Name         string // e.g. "tags"
	Lang         string
	PaginateBy   int
	PaginatePath string
	Feed         bool
	Terms        map[string]*TaxonomyTerm // keyed by normalized term slug
}

// taxonomyMapKey builds the Library.Taxonomies map key for one definition.
// Default-language taxonomies are keyed by bare name so template and MCP
// lookups stay simple; other languages get "name.lang".
func taxonomyMapKey(name, lang, defaultLang string) string {
	if lang == "" || lang == defaultLang {
		return name
	}
	return name + "." + lang
}

// PopulateTaxonomies scans every page in the Library for the taxonomies named
// by cfg.Taxonomies and builds l.Taxonomies, one Taxonomy per definition per
// language. A page whose front-matter taxonomies map names a taxonomy that is
// not defined for the page's language is a BuildError. It must run after
// PopulateSections.
func (l *Library) PopulateTaxonomies(cfg *config.Config) error {
	l.Taxonomies = make(map[string]*Taxonomy, len(cfg.Taxonomies))

	// Definitions indexed by language then name, for validating each page's
	// front-matter taxonomies map before any bucketing happens.
	defined := make(map[string]map[string]bool, len(cfg.Taxonomies))
	for _, def := range cfg.Taxonomies {
		lang := def.Language
		if lang == "" {
			lang = cfg.Language
		}
		if defined[lang] == nil {
			defined[lang] = make(map[string]bool)
		}
		defined[lang][def.Name] = true
	}

	keys := l.sortedPageKeys()

	for _, pk := range keys {
		p := l.pages[pk]
		lang := p.Lang
		if lang == "" {
			lang = cfg.Language
		}
		for name := range p.Taxonomies {
			if !defined[lang][name] {
				return &BuildError{
					Kind:   ErrUnknownTaxonomy,
					Detail: fmt.Sprintf("%s (%s, language %q)", name, p.SourcePath, lang),
				}
			}
		}
	}

	for _, def := range cfg.Taxonomies {
		defLang := def.Language
		if defLang == "" {
			defLang = cfg.Language
		}
		tax := &Taxonomy{
			Name:         def.Name,
			Lang:         defLang,
			PaginateBy:   def.PaginateBy,
			PaginatePath: def.PaginatePath,
			Feed:         def.Feed,
			Terms:        make(map[string]*TaxonomyTerm),
		}

		for _, pk := range keys {
			p := l.pages[pk]
			lang := p.Lang
			if lang == "" {
				lang = cfg.Language
			}
			if lang != defLang {
				continue
			}

			for _, term := range TermsForTaxonomy(p, def.Name) {
				normalized := strings.ToLower(strings.TrimSpace(term))
				if normalized == "" {
					continue
				}
				t, ok := tax.Terms[normalized]
				if !ok {
					t = &TaxonomyTerm{Name: term, Slug: slugify(normalized)}
					tax.Terms[normalized] = t
				}
				t.Pages = append(t.Pages, pk)
			}
		}

		for _, t := range tax.Terms {
			l.sortTermPages(t)
		}

		l.Taxonomies[taxonomyMapKey(def.Name, defLang, cfg.Language)] = tax
	}

	return nil
}

// sortedPageKeys returns every PageKey in insertion order, so taxonomy
// bucketing does not depend on map iteration order.
func (l *Library) sortedPageKeys() []PageKey {
	keys := make([]PageKey, 0, len(l.pages))
	for k := range l.pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].id < keys[j].id })
	return keys
}

// sortTermPages sorts a term's pages newest-first by Date, breaking date ties
// by permalink so the order is stable across builds.
func (l *Library) sortTermPages(t *TaxonomyTerm) {
	sort.SliceStable(t.Pages, func(i, j int) bool {
		a, b := l.pages[t.Pages[i]], l.pages[t.Pages[j]]
		if a == nil || b == nil {
			return false
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.Permalink < b.Permalink
	})
}

// Pages resolves a TaxonomyTerm's PageKeys to *Page via l.
func (l *Library) Pages(keys []PageKey) []*Page {
	out := make([]*Page, 0, len(keys))
	for _, k := range keys {
		if p := l.pages[k]; p != nil {
			out = append(out, p)
		}
	}
	return out
}

// TermsForTaxonomy returns the list of raw term strings a page declares for
// the named taxonomy: "tags" and "categories" read their dedicated fields,
// anything else is looked up in the page's Params map; terms from the
// front-matter taxonomies map are merged in for all three.
func TermsForTaxonomy(p *Page, name string) []string {
	var out []string
	switch name {
	case "tags":
		out = append(out, p.Tags...)
	case "categories":
		out = append(out, p.Categories...)
	default:
		if p.Params != nil {
			if v, ok := p.Params[name]; ok {
				if s, err := toStringSlice(v); err == nil {
					out = append(out, s...)
				}
			}
		}
	}
	for _, term := range p.Taxonomies[name] {
		if !slices.Contains(out, term) {
			out = append(out, term)
		}
	}
	return out
}

// SortedTermNames returns every term name in tax, sorted alphabetically.
func (tax *Taxonomy) SortedTermNames() []string {
	names := make([]string, 0, len(tax.Terms))
	for n := range tax.Terms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
