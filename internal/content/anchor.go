package content

import "regexp"

// AnchorPolicy controls whether and where a clickable "#" anchor is
// inserted next to a rendered heading.
type AnchorPolicy string

const (
	AnchorNone    AnchorPolicy = "none"
	AnchorLeft    AnchorPolicy = "left"
	AnchorRight   AnchorPolicy = "right"
	AnchorHeading AnchorPolicy = "heading" // wraps the whole heading in the link
)

// headingOpenRe matches an opening heading tag with an id attribute, e.g.
// `<h2 id="foo">` or `<h2 id="foo" class="bar">`.
var headingOpenRe = regexp.MustCompile(`(?s)<(h[1-6])((?:\s[^>]*)?\sid="([^"]+)"[^>]*)>(.*?)</h[1-6]>`)

// InsertAnchorLinks rewrites every rendered `<hN id="...">...</hN>` heading
// in html to carry an anchor link per policy. AnchorNone leaves html
// untouched.
func InsertAnchorLinks(html string, policy AnchorPolicy) string {
	if policy == "" || policy == AnchorNone {
		return html
	}

	return headingOpenRe.ReplaceAllStringFunc(html, func(match string) string {
		groups := headingOpenRe.FindStringSubmatch(match)
		tag, attrs, id, inner := groups[1], groups[2], groups[3], groups[4]
		link := `<a class="anchor" href="#` + id + `" aria-hidden="true">#</a>`

		switch policy {
		case AnchorLeft:
			return "<" + tag + attrs + ">" + link + inner + "</" + tag + ">"
		case AnchorRight:
			return "<" + tag + attrs + ">" + inner + link + "</" + tag + ">"
		case AnchorHeading:
			return `<a class="anchor-heading" href="#` + id + `"><` + tag + attrs + ">" + inner + "</" + tag + "></a>"
		default:
			return match
		}
	})
}
