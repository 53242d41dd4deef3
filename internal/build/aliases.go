package build

import (
	"fmt"
	"html"
	"strings"
)

// AliasPage represents a redirect from an alias URL to a page's canonical
// location. CanonicalPermalink is the page's absolute URL (cfg.BaseURL +
// relative path) rather than a site-relative path, so the generated
// redirect's <link rel="canonical"> matches the convention seo.CanonicalURL
// uses elsewhere in the tree, and search engines crediting the alias see an
// unambiguous absolute target.
type AliasPage struct {
	AliasURL           string // e.g. "/old-post/"
	CanonicalURL       string // e.g. "/blog/new-post/" (site-relative)
	CanonicalPermalink string // e.g. "https://example.com/blog/new-post/" (absolute)
}

// aliasTemplate is the HTML template used for redirect pages. The refresh
// target and link rel="canonical" use the absolute permalink; the visible
// fallback link uses the relative URL since it's only ever followed from
// within the same site.
const aliasTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta http-equiv="refresh" content="0; url=%s">
  <link rel="canonical" href="%s">
  <title>Redirect</title>
</head>
<body>
  <p>This page has moved to <a href="%s">%s</a>.</p>
</body>
</html>
`

// GenerateAliasPages generates HTML redirect pages for the given aliases.
// Each redirect page uses a <meta http-equiv="refresh"> tag to redirect
// to the canonical permalink. Returns a map from output file path to HTML
// content. The output path is derived from AliasURL: "/old-post/" ->
// "old-post/index.html".
func GenerateAliasPages(aliases []AliasPage) map[string][]byte {
	result := make(map[string][]byte, len(aliases))

	for _, alias := range aliases {
		filePath := aliasURLToFilePath(alias.AliasURL)
		target := alias.CanonicalPermalink
		if target == "" {
			target = alias.CanonicalURL
		}
		escapedTarget := html.EscapeString(target)
		content := fmt.Sprintf(aliasTemplate,
			escapedTarget,
			escapedTarget,
			html.EscapeString(alias.CanonicalURL),
			html.EscapeString(alias.CanonicalURL),
		)
		result[filePath] = []byte(content)
	}

	return result
}

// aliasURLToFilePath converts an alias URL to an output file path.
// The leading slash is stripped and the path is normalized to end with /index.html.
//
// Examples:
//
//	"/old-post/"  -> "old-post/index.html"
//	"/old-post"   -> "old-post/index.html"
//	"/"           -> "index.html"
func aliasURLToFilePath(url string) string {
	// Strip leading slash.
	path := strings.TrimPrefix(url, "/")

	// Strip trailing slash.
	path = strings.TrimSuffix(path, "/")

	if path == "" {
		return "index.html"
	}

	return path + "/index.html"
}
