package content

import (
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/config"
)

// datePrefixRe matches a leading YYYY-MM-DD- date prefix in a filename.
var datePrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-`)

// slugifyRe removes characters that are not alphanumeric, hyphens, or periods.
var slugifyRe = regexp.MustCompile(`[^a-z0-9\-.]`)

// multiHyphenRe collapses multiple consecutive hyphens into one.
var multiHyphenRe = regexp.MustCompile(`-{2,}`)

// langSuffixRe matches a two-letter language suffix before the .md
// extension, e.g. "page.fr.md" captures "fr".
var langSuffixRe = regexp.MustCompile(`\.([a-zA-Z]{2})\.md$`)

// Discover walks the content directory and builds a Library of every Page
// and Section it finds. It parses front matter but does not render
// Markdown; PageKey/SectionKey assignment, parent linkage, sibling links,
// and taxonomy population all happen in later passes (PopulateSections,
// SortSectionPages, PopulateTaxonomies).
func Discover(contentDir string, cfg *config.Config) (*Library, error) {
	l := NewLibrary()

	bundleDirs := make(map[string]bool)
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Base(path) == "index.md" {
			bundleDirs[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning for page bundles: %w", err)
	}

	declaredLangs := map[string]bool{cfg.Language: true}
	for _, lang := range cfg.Languages {
		declaredLangs[lang.Code] = true
	}

	err = filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(contentDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		if cfg.IsIgnored(relPath) {
			return nil
		}

		dir := filepath.Dir(path)
		if bundleDirs[dir] && filepath.Base(path) != "index.md" {
			return nil
		}

		filename := filepath.Base(path)
		lang := cfg.Language
		if m := langSuffixRe.FindStringSubmatch(filename); m != nil {
			code := strings.ToLower(m[1])
			if !declaredLangs[code] {
				return &FileError{Kind: ErrUnknownLanguage, Path: relPath, Lang: code}
			}
			lang = code
			filename = strings.TrimSuffix(filename, "."+m[1]+".md") + ".md"
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		metadata, body, err := ParseFrontmatter(raw)
		if err != nil {
			return fmt.Errorf("parsing frontmatter in %s: %w", path, err)
		}

		sourceDir := filepath.ToSlash(filepath.Dir(relPath))
		if sourceDir == "." {
			sourceDir = ""
		}

		if filename == "_index.md" {
			section := &Section{
				SourcePath: relPath,
				SourceDir:  sourceDir,
				Lang:       lang,
				Params:     map[string]any{},
			}
			if metadata != nil {
				if err := PopulateSection(section, metadata); err != nil {
					return fmt.Errorf("populating section from %s: %w", path, err)
				}
			} else {
				section.Render = true
				section.InSearchIndex = true
			}
			section.RawContent = string(body)
			section.URL = buildSectionURL(sourceDir)
			if lang != cfg.Language {
				section.URL = "/" + lang + section.URL
			}
			l.InsertSection(section)
			return nil
		}

		page := &Page{}
		if metadata != nil {
			if err := PopulatePage(page, metadata); err != nil {
				return fmt.Errorf("populating page from %s: %w", path, err)
			}
		} else {
			page.Render = true
			page.InSearchIndex = true
		}

		page.RawContent = string(body)
		page.SourcePath = relPath
		page.SourceDir = sourceDir
		page.Lang = lang
		page.Canonical = sourceDir + "/" + strings.TrimSuffix(filename, ".md")

		isBundle := bundleDirs[dir]
		if isBundle {
			page.IsBundle = true
			page.BundleDir = filepath.ToSlash(dir)
			page.BundleFiles = collectBundleFiles(dir)
		}

		if page.Slug == "" {
			page.Slug = DeriveSlug(relPath, isBundle)
		}

		page.Type = PageTypeSingle
		page.Section = firstPathComponent(relPath)
		page.URL = buildPageURL(page)
		if lang != cfg.Language {
			page.URL = "/" + lang + page.URL
		}

		if page.Date.IsZero() && cfg.Build.InferDatesFromGit {
			page.Date = inferDate(path)
		}

		page.WordCount = CalculateWordCount(page.RawContent)
		page.ReadingTime = CalculateReadingTime(page.RawContent)

		l.InsertPage(page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking content directory: %w", err)
	}

	if l.Root() == nil {
		l.InsertSection(&Section{SourceDir: "", Params: map[string]any{}, Render: true, InSearchIndex: true})
	}

	return l, nil
}

// Slugify converts a name into a URL-safe slug, using the same rules applied
// to page and section slugs (lowercased, spaces/underscores to hyphens,
// non-alphanumeric characters stripped).
func Slugify(name string) string { return slugify(name) }

// DeriveSlug returns the slug a page gets when its front matter declares
// none: the language-stripped file stem (or the bundle directory's name for
// a colocated index.md), minus any YYYY-MM-DD- date prefix, slugified.
// sourcePath is slash-normalized and relative to the content root.
func DeriveSlug(sourcePath string, isBundle bool) string {
	name := sourcePath
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if m := langSuffixRe.FindStringSubmatch(name); m != nil {
		name = strings.TrimSuffix(name, "."+m[1]+".md") + ".md"
	}
	name = strings.TrimSuffix(name, ".md")
	if isBundle {
		dir := parentOf(strings.TrimSuffix(sourcePath, "/"))
		if idx := strings.LastIndex(dir, "/"); idx >= 0 {
			dir = dir[idx+1:]
		}
		name = dir
	}
	name = datePrefixRe.ReplaceAllString(name, "")
	return slugify(name)
}

// slugify converts a name into a URL-safe slug.
func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = slugifyRe.ReplaceAllString(s, "")
	s = multiHyphenRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return s
}

// firstPathComponent returns the first directory in a slash-separated path,
// or "" if the path has no directory component (i.e. a root-level file).
func firstPathComponent(relPath string) string {
	relPath = filepath.ToSlash(relPath)
	parts := strings.SplitN(relPath, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// buildPageURL generates the relative URL for a single page. An explicit
// front-matter path wins outright; otherwise the URL is the page's source
// directory (minus the bundle directory for colocated pages, whose slug
// already carries that segment) plus the slug.
func buildPageURL(p *Page) string {
	if p.Path != "" {
		u := "/" + strings.Trim(p.Path, "/")
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		return u
	}
	dir := p.SourceDir
	if p.IsBundle {
		dir = parentOf(dir)
	}
	if dir == "" {
		return "/" + p.Slug + "/"
	}
	return "/" + dir + "/" + p.Slug + "/"
}

// buildSectionURL generates the relative URL for a section given its
// source directory.
func buildSectionURL(sourceDir string) string {
	if sourceDir == "" {
		return "/"
	}
	return "/" + sourceDir + "/"
}

// inferDate resolves a date for a page with no front-matter date: the file's
// first-commit author time from git history, falling back to the file's
// modification time when the file is untracked or git is unavailable. The
// result depends on repository state, so a warning is printed whenever the
// inference is used.
func inferDate(path string) time.Time {
	out, err := exec.Command("git", "log", "--follow", "--diff-filter=A",
		"--format=%aI", "-1", "--", path).Output()
	if err == nil {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(out))); err == nil {
			fmt.Fprintf(os.Stderr, "warning: %s has no date; using git first-commit time %s\n",
				path, t.Format("2006-01-02"))
			return t
		}
	}
	if info, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "warning: %s has no date; using file modification time\n", path)
		return info.ModTime()
	}
	return time.Time{}
}

// collectBundleFiles returns the relative filenames of non-.md files
// co-located in a page bundle directory.
func collectBundleFiles(dir string) []string {
	var files []string
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".md" {
			continue
		}
		files = append(files, entry.Name())
	}
	return files
}
