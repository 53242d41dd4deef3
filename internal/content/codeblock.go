package content

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// CodeBlockInfo is a fenced code block's info string, parsed into its three
// recognized parts: the language, whether to show line numbers, and which
// lines to highlight.
type CodeBlockInfo struct {
	Lang    string
	LineNos bool
	HLLines [][2]int // inclusive, 1-indexed, sorted, non-overlapping
}

// ParseInfoString parses a fenced code block's info string of the form
// "lang[,linenos][,hl_lines=RANGES]". totalLines bounds hl_lines ranges so
// an open-ended range like "3-4294967295" clamps to the block's actual
// length rather than overflowing.
func ParseInfoString(info string, totalLines int) (CodeBlockInfo, error) {
	var out CodeBlockInfo

	parts := strings.Split(info, ",")
	if len(parts) > 0 {
		out.Lang = strings.TrimSpace(parts[0])
	}

	for _, raw := range parts[min(1, len(parts)):] {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		switch {
		case p == "linenos":
			out.LineNos = true
		case strings.HasPrefix(p, "hl_lines="):
			ranges, err := ParseHLLines(strings.TrimPrefix(p, "hl_lines="), totalLines)
			if err != nil {
				return out, &RenderError{Kind: ErrInvalidCodeInfo, Detail: info, Cause: err}
			}
			out.HLLines = ranges
		default:
			return out, &RenderError{Kind: ErrInvalidCodeInfo, Detail: info, Cause: fmt.Errorf("unrecognized directive %q", p)}
		}
	}

	return out, nil
}

// ParseHLLines parses a space- or comma-separated list of line numbers and
// "A-B" ranges into a sorted, de-duplicated, non-overlapping set of
// [start,end] ranges clamped to [1, totalLines]. Reversed ranges ("3-1")
// are normalized; an end beyond totalLines is clamped rather than rejected.
func ParseHLLines(spec string, totalLines int) ([][2]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" || totalLines <= 0 {
		return nil, nil
	}

	fields := strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	lines := make(map[int]bool)
	for _, f := range fields {
		if f == "" {
			continue
		}
		if a, b, ok := strings.Cut(f, "-"); ok {
			start, err := strconv.ParseUint(a, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q: %w", f, err)
			}
			end, err := strconv.ParseUint(b, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q: %w", f, err)
			}
			if start > end {
				start, end = end, start
			}
			if end > uint64(totalLines) {
				end = uint64(totalLines)
			}
			if start < 1 {
				start = 1
			}
			for i := start; i <= end; i++ {
				lines[int(i)] = true
			}
		} else {
			n, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid line number %q: %w", f, err)
			}
			if n >= 1 && n <= uint64(totalLines) {
				lines[int(n)] = true
			}
		}
	}

	return mergeLineSet(lines), nil
}

// mergeLineSet turns a set of individual line numbers into sorted,
// non-overlapping [start,end] ranges.
func mergeLineSet(lines map[int]bool) [][2]int {
	if len(lines) == 0 {
		return nil
	}
	nums := make([]int, 0, len(lines))
	for n := range lines {
		nums = append(nums, n)
	}
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}

	var ranges [][2]int
	start, prev := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		ranges = append(ranges, [2]int{start, prev})
		start, prev = n, n
	}
	ranges = append(ranges, [2]int{start, prev})
	return ranges
}

// HighlightOptions controls how the code-block renderer formats fenced
// blocks: the chroma style name(s) and whether output is inline-styled CSS
// (style="...") or class-based (class="chroma", with a separately emitted
// stylesheet).
type HighlightOptions struct {
	Style     string
	InlineCSS bool
	TabWidth  int
}

// codeBlockRenderer replaces goldmark's default fenced-code-block rendering
// with one driven directly by chroma, so the exact "lang,linenos,hl_lines="
// info-string grammar this system's content uses is honored. This
// supersedes goldmark-highlighting, whose own info-string grammar
// (`{hl_lines=[...]}` attribute blocks) cannot express that syntax.
type codeBlockRenderer struct {
	opts HighlightOptions
}

// newCodeBlockRenderer returns a node renderer for ast.KindFencedCodeBlock
// and ast.KindCodeBlock driven by opts.
func newCodeBlockRenderer(opts HighlightOptions) *codeBlockRenderer {
	if opts.Style == "" {
		opts.Style = "github"
	}
	return &codeBlockRenderer{opts: opts}
}

func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
}

func (r *codeBlockRenderer) renderCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	code := extractCode(n, source)
	return ast.WalkSkipChildren, r.highlight(w, code, CodeBlockInfo{})
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	node := n.(*ast.FencedCodeBlock)
	code := extractCode(n, source)

	var lang string
	if node.Info != nil {
		lang = string(node.Info.Text(source))
	}

	totalLines := strings.Count(code, "\n")
	if totalLines > 0 && !strings.HasSuffix(code, "\n") {
		totalLines++
	}
	info, err := ParseInfoString(lang, totalLines)
	if err != nil {
		return ast.WalkStop, err
	}

	return ast.WalkSkipChildren, r.highlight(w, code, info)
}

func extractCode(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func (r *codeBlockRenderer) highlight(w util.BufWriter, code string, info CodeBlockInfo) error {
	lexer := lexers.Get(info.Lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return fmt.Errorf("tokenising code block: %w", err)
	}

	style := styles.Get(r.opts.Style)
	if style == nil {
		style = styles.Fallback
	}

	var htmlOpts []chromahtml.Option
	if r.opts.InlineCSS {
		htmlOpts = append(htmlOpts, chromahtml.WithClasses(false))
	} else {
		htmlOpts = append(htmlOpts, chromahtml.WithClasses(true))
	}
	if info.LineNos {
		htmlOpts = append(htmlOpts, chromahtml.WithLineNumbers(true))
	}
	if len(info.HLLines) > 0 {
		htmlOpts = append(htmlOpts, chromahtml.HighlightLines(info.HLLines))
	}

	formatter := chromahtml.New(htmlOpts...)
	return formatter.Format(w, style, iterator)
}
