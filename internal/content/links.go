package content

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// LinkResolver resolves an "@/"-prefixed internal link target (the path
// portion, without the "@/" prefix or any "#anchor") to the permalink of
// the Library entity it names. It is supplied per-render, since it closes
// over a read-only snapshot of the Library's permalink map: render tasks
// read an immutable snapshot and write only to their own entity.
type LinkResolver func(path string) (permalink string, ok bool)

// InternalLinkRef records one resolved "@/" link, in document order.
type InternalLinkRef struct {
	Target string // the "@/..." path as written
	Anchor string // optional "#fragment", without the "#"
}

// ExternalLinkPolicy controls how <a> tags pointing off-site are rewritten.
type ExternalLinkPolicy struct {
	TargetBlank bool
	NoFollow    bool
	NoOpener    bool
}

// relAttr builds the "rel" attribute value for an external link under p.
// target="_blank" always implies rel contains "noopener" even if NoOpener
// itself is off, to avoid the reverse-tabnabbing hole it otherwise opens.
func (p ExternalLinkPolicy) relAttr() string {
	var parts []string
	if p.NoFollow {
		parts = append(parts, "nofollow")
	}
	if p.NoOpener || p.TargetBlank {
		parts = append(parts, "noopener")
	}
	return strings.Join(parts, " ")
}

func (p ExternalLinkPolicy) active() bool {
	return p.TargetBlank || p.NoFollow || p.NoOpener
}

// linkAttrs is the computed target/rel pair for one external link node.
type linkAttrs struct {
	target string
	rel    string
}

// linkProcessor walks a parsed Markdown document once, single-threaded,
// before rendering: it rewrites "@/" internal link destinations to their
// resolved permalink (recording every reference and failing the render on
// an unresolved one), and records every external link plus the
// target/rel attributes the configured policy assigns it.
type linkProcessor struct {
	resolve  LinkResolver
	policy   ExternalLinkPolicy
	internal []InternalLinkRef
	external []string
	attrs    map[ast.Node]linkAttrs
}

func newLinkProcessor(resolve LinkResolver, policy ExternalLinkPolicy) *linkProcessor {
	return &linkProcessor{
		resolve: resolve,
		policy:  policy,
		attrs:   make(map[ast.Node]linkAttrs),
	}
}

// process walks doc, mutating internal link destinations in place and
// recording external links plus their rewritten attributes. It must run
// before the document is rendered.
func (lp *linkProcessor) process(doc ast.Node, source []byte) error {
	return ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			if auto, ok := n.(*ast.AutoLink); ok {
				lp.handleExternal(auto, string(auto.URL(source)))
			}
			return ast.WalkContinue, nil
		}

		dest := string(link.Destination)
		switch {
		case strings.HasPrefix(dest, "@/"):
			target, anchor, _ := strings.Cut(dest[2:], "#")
			permalink, ok := lp.resolve(target)
			if !ok {
				return ast.WalkStop, &RenderError{Kind: ErrUnresolvedInternalLink, Detail: dest}
			}
			lp.internal = append(lp.internal, InternalLinkRef{Target: target, Anchor: anchor})
			if anchor != "" {
				permalink = strings.TrimRight(permalink, "/") + "#" + anchor
			}
			link.Destination = []byte(permalink)
		case isExternal(dest):
			lp.handleExternal(link, dest)
		}

		return ast.WalkContinue, nil
	})
}

func (lp *linkProcessor) handleExternal(n ast.Node, url string) {
	lp.external = append(lp.external, url)
	if !lp.policy.active() {
		return
	}
	a := linkAttrs{rel: lp.policy.relAttr()}
	if lp.policy.TargetBlank {
		a.target = "_blank"
	}
	lp.attrs[n] = a
}

func isExternal(dest string) bool {
	return strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://")
}

// linkRenderer overrides goldmark's default Link/AutoLink rendering to
// splice in the target/rel attributes linkProcessor computed. It must
// share the same attrs map the processor populated during the walk on the
// same document, so it is constructed fresh per render call.
type linkRenderer struct {
	attrs map[ast.Node]linkAttrs
}

func (r *linkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindLink, r.renderLink)
	reg.Register(ast.KindAutoLink, r.renderAutoLink)
}

func (r *linkRenderer) renderLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	node := n.(*ast.Link)
	if entering {
		_, _ = w.WriteString("<a href=\"")
		_, _ = w.Write(util.EscapeHTML(util.URLEscape(node.Destination, true)))
		_, _ = w.WriteByte('"')
		if node.Title != nil {
			_, _ = w.WriteString(` title="`)
			_, _ = w.Write(util.EscapeHTML(node.Title))
			_, _ = w.WriteByte('"')
		}
		r.writeExtraAttrs(w, n)
		_, _ = w.WriteByte('>')
	} else {
		_, _ = w.WriteString("</a>")
	}
	return ast.WalkContinue, nil
}

func (r *linkRenderer) renderAutoLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	node := n.(*ast.AutoLink)
	url := node.URL(source)
	label := node.Label(source)

	_, _ = w.WriteString("<a href=\"")
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(url, false)))
	_, _ = w.WriteByte('"')
	r.writeExtraAttrs(w, n)
	_, _ = w.WriteByte('>')
	_, _ = w.Write(util.EscapeHTML(label))
	_, _ = w.WriteString("</a>")
	return ast.WalkSkipChildren, nil
}

func (r *linkRenderer) writeExtraAttrs(w util.BufWriter, n ast.Node) {
	a, ok := r.attrs[n]
	if !ok {
		return
	}
	if a.target != "" {
		fmt.Fprintf(w, ` target="%s"`, a.target)
	}
	if a.rel != "" {
		fmt.Fprintf(w, ` rel="%s"`, a.rel)
	}
}
