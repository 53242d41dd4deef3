package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kilnhq/kiln/internal/content"
)

// loadShortcodeRegistry loads every shortcode template from the theme's and
// the site's shortcodes/ directories. Files named *.md register as
// markdown-kind shortcodes (expanded before the Markdown parser runs),
// *.html register as html-kind (expanded after, against the rendered page
// HTML). Site shortcodes override theme shortcodes of the same name, the
// same overlay rule template.NewEngine applies to layouts.
func loadShortcodeRegistry(themePath, projectRoot string) (*content.ShortcodeRegistry, error) {
	reg := content.NewShortcodeRegistry()

	dirs := []string{
		filepath.Join(themePath, "shortcodes"),
		filepath.Join(projectRoot, "shortcodes"),
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}

			var kind content.ShortcodeKind
			switch filepath.Ext(e.Name()) {
			case ".md":
				kind = content.ShortcodeMarkdown
			case ".html":
				kind = content.ShortcodeHTML
			default:
				continue
			}

			name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
			src, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, err
			}
			if err := reg.Register(name, kind, string(src)); err != nil {
				return nil, err
			}
		}
	}

	return reg, nil
}
