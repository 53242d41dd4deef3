package content

import (
	"bytes"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/kilnhq/kiln/internal/image"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"go.abhg.dev/goldmark/toc"
)

// MarkdownRenderer converts Markdown source into HTML using goldmark with a
// rich set of extensions (GFM, footnotes, typographer, auto heading IDs,
// and attribute blocks), plus two custom node renderers layered on top:
// fenced code blocks go through chroma directly (so this system's
// "lang,linenos,hl_lines=RANGES" info-string grammar is honored exactly,
// which the goldmark-highlighting wrapper's own `{hl_lines=[...]}` grammar
// cannot express), and links go through a renderer that can splice in the
// target/rel attributes an ExternalLinkPolicy computes and the resolved
// permalink an "@/" internal link needs.
type MarkdownRenderer struct {
	highlight HighlightOptions
	images    *image.Processor

	smartPunctuation bool
	emoji            bool
}

// SetFeatures toggles smart punctuation (typographer quotes/dashes) and
// ":emoji:" shortcode replacement. Both default to smart punctuation on,
// emoji off, matching the zero-config rendering the constructors set up.
func (r *MarkdownRenderer) SetFeatures(smartPunctuation, emoji bool) {
	r.smartPunctuation = smartPunctuation
	r.emoji = emoji
}

// NewMarkdownRenderer creates a MarkdownRenderer with default highlight
// settings (the "github" chroma style, class-based CSS). Use
// NewMarkdownRendererWithHighlight to match a site's configured theme. The
// returned value is immutable and safe to share across the parallel render
// phase; each Render call builds its own goldmark pipeline instance so that
// per-call state (the link processor's resolved-link map) never leaks
// across pages.
func NewMarkdownRenderer() *MarkdownRenderer {
	return NewMarkdownRendererWithHighlight(HighlightOptions{Style: "github"})
}

// NewMarkdownRendererWithHighlight creates a MarkdownRenderer using the
// given syntax-highlighting options (chroma style, inline vs class-based
// CSS).
func NewMarkdownRendererWithHighlight(opts HighlightOptions) *MarkdownRenderer {
	return &MarkdownRenderer{highlight: opts, smartPunctuation: true}
}

// NewMarkdownRendererWithImages is like NewMarkdownRendererWithHighlight but
// also renders <img> tags as responsive <picture> elements for any image proc
// has already processed (see image.Processor.Process/ProcessDir), which must
// run before the pages referencing those images are rendered.
func NewMarkdownRendererWithImages(opts HighlightOptions, proc *image.Processor) *MarkdownRenderer {
	return &MarkdownRenderer{highlight: opts, images: proc, smartPunctuation: true}
}

func (r *MarkdownRenderer) buildMarkdown(lp *linkProcessor) goldmark.Markdown {
	nodeRenderers := []util.PrioritizedValue{
		util.Prioritized(newCodeBlockRenderer(r.highlight), 100),
		util.Prioritized(&linkRenderer{attrs: lp.attrs}, 100),
	}
	if r.images != nil {
		nodeRenderers = append(nodeRenderers, util.Prioritized(image.NewResponsiveImageRenderer(r.images), 100))
	}

	extensions := []goldmark.Extender{
		extension.GFM,
		extension.Footnote,
	}
	if r.smartPunctuation {
		extensions = append(extensions, extension.Typographer)
	}
	if r.emoji {
		extensions = append(extensions, emoji.Emoji)
	}

	return goldmark.New(
		goldmark.WithExtensions(extensions...),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(nodeRenderers...),
		),
	)
}

// Render converts Markdown source bytes into HTML with no internal-link
// resolution (an "@/" link fails unresolved) and no external-link policy.
// Use RenderDocument for the full page-rendering pipeline.
func (r *MarkdownRenderer) Render(source []byte) ([]byte, error) {
	out, err := r.RenderDocument(source, RenderOptions{})
	if err != nil {
		return nil, err
	}
	return out.HTML, nil
}

// RenderWithTOC converts Markdown source bytes into HTML and also produces
// a table of contents as a nested HTML list.
func (r *MarkdownRenderer) RenderWithTOC(source []byte) (htmlOut []byte, tocOut []byte, err error) {
	out, err := r.RenderDocument(source, RenderOptions{})
	if err != nil {
		return nil, nil, err
	}
	return out.HTML, out.TOC, nil
}

// RenderOptions parameterizes one call to RenderDocument: the internal-link
// resolver (nil causes any "@/" link to fail unresolved), the
// external-link attribute policy, and the anchor-link insertion policy for
// headings.
type RenderOptions struct {
	Resolve LinkResolver
	Policy  ExternalLinkPolicy
	Anchors AnchorPolicy
}

// RenderedContent is the result of one Markdown render: the final HTML, its
// table of contents, every internal/external link discovered, and reading
// analytics.
type RenderedContent struct {
	HTML                    []byte
	TOC                     []byte
	InternalLinksWithAnchor []InternalLinkRef
	ExternalLinks           []string
	WordCount               int
	ReadingTime             int
}

// RenderDocument runs the full three-pass Markdown pipeline: parse, then (single-threaded within this one render task) walk the
// AST resolving "@/" internal links and classifying external links before
// any rendering happens, then render — during which fenced code blocks are
// highlighted and heading ids are disambiguated (goldmark's own
// parser.WithAutoHeadingID gives the "-1", "-2" suffixing in document
// order) — and finally post-process the HTML for anchor-link insertion and
// compute reading analytics.
func (r *MarkdownRenderer) RenderDocument(source []byte, opts RenderOptions) (*RenderedContent, error) {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func(string) (string, bool) { return "", false }
	}
	lp := newLinkProcessor(resolve, opts.Policy)

	md := r.buildMarkdown(lp)

	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	if err := lp.process(doc, source); err != nil {
		return nil, err
	}

	tocTree, err := toc.Inspect(doc, source)
	if err != nil {
		return nil, fmt.Errorf("toc inspect: %w", err)
	}
	var tocOut []byte
	if tocList := toc.RenderList(tocTree); tocList != nil {
		var tocBuf bytes.Buffer
		if err := md.Renderer().Render(&tocBuf, source, tocList); err != nil {
			return nil, fmt.Errorf("toc render: %w", err)
		}
		tocOut = tocBuf.Bytes()
	}

	var contentBuf bytes.Buffer
	if err := md.Renderer().Render(&contentBuf, source, doc); err != nil {
		return nil, fmt.Errorf("markdown render: %w", err)
	}

	finalHTML := InsertAnchorLinks(contentBuf.String(), opts.Anchors)

	return &RenderedContent{
		HTML:                    []byte(finalHTML),
		TOC:                     tocOut,
		InternalLinksWithAnchor: lp.internal,
		ExternalLinks:           lp.external,
		WordCount:               CalculateWordCount(string(source)),
		ReadingTime:             CalculateReadingTime(string(source)),
	}, nil
}

// GenerateChromaCSS produces CSS for syntax-highlighted code blocks.
// It returns separate CSS strings for light and dark themes. The dark CSS
// has all .chroma selectors prefixed with .dark so it can be scoped to a
// dark mode class on the document.
func GenerateChromaCSS(lightStyle, darkStyle string) (lightCSS string, darkCSS string, err error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	// Generate light CSS.
	lightSty := styles.Get(lightStyle)
	var lightBuf bytes.Buffer
	if err := formatter.WriteCSS(&lightBuf, lightSty); err != nil {
		return "", "", fmt.Errorf("generate light CSS: %w", err)
	}
	lightCSS = lightBuf.String()

	// Generate dark CSS.
	darkSty := styles.Get(darkStyle)
	var darkBuf bytes.Buffer
	if err := formatter.WriteCSS(&darkBuf, darkSty); err != nil {
		return "", "", fmt.Errorf("generate dark CSS: %w", err)
	}

	// Prefix every .chroma selector with .dark to scope it.
	darkCSS = strings.ReplaceAll(darkBuf.String(), ".chroma", ".dark .chroma")

	return lightCSS, darkCSS, nil
}
