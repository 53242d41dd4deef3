package content

import (
	"bytes"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// tomlDelimiter is the only front matter fence Kiln recognizes: a leading
// "---" (YAML) block is a FrontMatterError, not a silent fallback.
var tomlDelimiter = []byte("+++")

// Date formats supported for parsing date fields in frontmatter.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05-07:00",
	time.RFC3339,
}

// ParseFrontmatter detects and parses a "+++"-delimited TOML front matter
// block from raw content bytes. It returns the parsed metadata as a map, the
// remaining body content, and any error encountered during parsing.
//
// If no frontmatter delimiters are found, it returns nil metadata, the full
// content as body, and no error. A leading "---" is rejected outright: YAML
// front matter is not supported.
func ParseFrontmatter(raw []byte) (metadata map[string]any, body []byte, err error) {
	trimmed := bytes.TrimLeft(raw, " \t\n\r")

	if bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, nil, &FrontMatterError{Kind: ErrYAMLNotSupported}
	}

	if !bytes.HasPrefix(trimmed, tomlDelimiter) {
		return nil, raw, nil
	}

	rest := trimmed[len(tomlDelimiter):]
	nlIdx := bytes.IndexByte(rest, '\n')
	if nlIdx == -1 {
		return nil, raw, nil
	}
	rest = rest[nlIdx+1:]

	before, after, ok := bytes.Cut(rest, tomlDelimiter)
	if !ok {
		return nil, nil, &FrontMatterError{Kind: ErrUnclosedDelimiter}
	}

	frontmatterContent := before
	afterClosing := after

	nlIdx = bytes.IndexByte(afterClosing, '\n')
	if nlIdx == -1 {
		body = nil
	} else {
		body = afterClosing[nlIdx+1:]
	}

	if len(bytes.TrimSpace(frontmatterContent)) == 0 {
		return make(map[string]any), body, nil
	}

	metadata = make(map[string]any)
	if err := toml.Unmarshal(frontmatterContent, &metadata); err != nil {
		return nil, nil, &FrontMatterError{Kind: ErrMalformedTOML, Cause: err}
	}

	return metadata, body, nil
}

// PopulatePage maps metadata fields from parsed frontmatter into the
// corresponding fields on a Page struct. It returns an error if the required
// "title" field is missing or empty. Render defaults to true unless the
// front matter explicitly sets render = false.
func PopulatePage(page *Page, metadata map[string]any) error {
	page.Render = true
	page.InSearchIndex = true

	titleVal, ok := metadata["title"]
	if !ok {
		return &FrontMatterError{Kind: ErrMissingTitle}
	}
	title, ok := titleVal.(string)
	if !ok || title == "" {
		return &FrontMatterError{Kind: ErrMissingTitle}
	}
	page.Title = title

	if v, ok := metadata["slug"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return &FrontMatterError{Kind: ErrEmptyField, Detail: "slug"}
		}
		page.Slug = s
	}
	if v, ok := metadata["path"]; ok {
		s, ok := v.(string)
		if !ok || s == "" {
			return &FrontMatterError{Kind: ErrEmptyField, Detail: "path"}
		}
		page.Path = s
	}
	if v, ok := metadata["lang"]; ok {
		if s, ok := v.(string); !ok || s == "" {
			return &FrontMatterError{Kind: ErrEmptyField, Detail: "lang"}
		}
	}
	if v, ok := metadata["description"]; ok {
		if s, ok := v.(string); ok {
			page.Description = s
		}
	}
	if v, ok := metadata["summary"]; ok {
		if s, ok := v.(string); ok {
			page.Summary = s
		}
	}
	if v, ok := metadata["layout"]; ok {
		if s, ok := v.(string); ok {
			page.Layout = s
		}
	}
	if v, ok := metadata["author"]; ok {
		if s, ok := v.(string); ok {
			page.Author = s
		}
	}
	if v, ok := metadata["series"]; ok {
		if s, ok := v.(string); ok {
			page.Series = s
		}
	}
	if v, ok := metadata["redirect_to"]; ok {
		if s, ok := v.(string); ok {
			page.RedirectTo = s
		}
	}
	if v, ok := metadata["paginate_path"]; ok {
		if s, ok := v.(string); ok {
			page.PaginatePath = s
		}
	}

	if v, ok := metadata["draft"]; ok {
		if b, ok := v.(bool); ok {
			page.Draft = b
		}
	}
	if v, ok := metadata["render"]; ok {
		if b, ok := v.(bool); ok {
			page.Render = b
		}
	}
	if v, ok := metadata["in_search_index"]; ok {
		if b, ok := v.(bool); ok {
			page.InSearchIndex = b
		}
	}

	if v, ok := metadata["date"]; ok {
		t, err := parseDate(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidDate, Detail: "date", Cause: err}
		}
		page.Date = t
	}
	for _, key := range []string{"lastmod", "updated"} {
		if v, ok := metadata[key]; ok {
			t, err := parseDate(v)
			if err != nil {
				return &FrontMatterError{Kind: ErrInvalidDate, Detail: key, Cause: err}
			}
			page.Lastmod = t
		}
	}
	if v, ok := metadata["expiryDate"]; ok {
		t, err := parseDate(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidDate, Detail: "expiryDate", Cause: err}
		}
		page.ExpiryDate = t
	}

	if v, ok := metadata["weight"]; ok {
		w, err := toInt(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "weight", Cause: err}
		}
		page.Weight = w
	}
	if v, ok := metadata["paginate_by"]; ok {
		w, err := toInt(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "paginate_by", Cause: err}
		}
		page.PaginateBy = w
	}

	if v, ok := metadata["tags"]; ok {
		s, err := toStringSlice(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "tags", Cause: err}
		}
		page.Tags = s
	}
	if v, ok := metadata["categories"]; ok {
		s, err := toStringSlice(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "categories", Cause: err}
		}
		page.Categories = s
	}
	if v, ok := metadata["taxonomies"]; ok {
		m, ok := v.(map[string]any)
		if !ok {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "taxonomies",
				Cause: fmt.Errorf("expected table of term lists, got %T", v)}
		}
		page.Taxonomies = make(map[string][]string, len(m))
		for name, terms := range m {
			s, err := toStringSlice(terms)
			if err != nil {
				return &FrontMatterError{Kind: ErrInvalidField, Detail: "taxonomies." + name, Cause: err}
			}
			page.Taxonomies[name] = s
		}
	}
	if v, ok := metadata["aliases"]; ok {
		s, err := toStringSlice(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "aliases", Cause: err}
		}
		page.Aliases = s
	}

	if v, ok := metadata["cover"]; ok {
		cover, err := parseCoverImage(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "cover", Cause: err}
		}
		page.Cover = cover
	}

	if v, ok := metadata["params"]; ok {
		if m, ok := v.(map[string]any); ok {
			page.Params = m
		}
	}

	return nil
}

// PopulateSection maps metadata fields from parsed `_index.md` frontmatter
// into a Section.
func PopulateSection(s *Section, metadata map[string]any) error {
	if v, ok := metadata["title"]; ok {
		if str, ok := v.(string); ok {
			s.Title = str
		}
	}
	if v, ok := metadata["description"]; ok {
		if str, ok := v.(string); ok {
			s.Description = str
		}
	}
	if v, ok := metadata["template"]; ok {
		if str, ok := v.(string); ok {
			s.Template = str
		}
	}
	if v, ok := metadata["transparent"]; ok {
		if b, ok := v.(bool); ok {
			s.Transparent = b
		}
	}
	if v, ok := metadata["paginate_path"]; ok {
		if str, ok := v.(string); ok {
			s.PaginatePath = str
		}
	}
	if v, ok := metadata["weight"]; ok {
		w, err := toInt(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "weight", Cause: err}
		}
		s.Weight = w
	}
	if v, ok := metadata["paginate_by"]; ok {
		w, err := toInt(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "paginate_by", Cause: err}
		}
		s.PaginateBy = w
	}
	if v, ok := metadata["paginate_reversed"]; ok {
		if b, ok := v.(bool); ok {
			s.PaginateReversed = b
		}
	}
	if v, ok := metadata["sort_by"]; ok {
		if str, ok := v.(string); ok {
			s.SortBy = str
		}
	}
	if v, ok := metadata["render"]; ok {
		if b, ok := v.(bool); ok {
			s.Render = b
		}
	} else {
		s.Render = true
	}
	if v, ok := metadata["in_search_index"]; ok {
		if b, ok := v.(bool); ok {
			s.InSearchIndex = b
		}
	} else {
		s.InSearchIndex = true
	}
	if v, ok := metadata["redirect_to"]; ok {
		if str, ok := v.(string); ok {
			s.RedirectTo = str
		}
	}
	if v, ok := metadata["insert_anchor_links"]; ok {
		if str, ok := v.(string); ok {
			s.InsertAnchorLinks = str
		}
	}
	if v, ok := metadata["page_template"]; ok {
		if str, ok := v.(string); ok {
			s.PageTemplate = str
		}
	}
	if v, ok := metadata["aliases"]; ok {
		a, err := toStringSlice(v)
		if err != nil {
			return &FrontMatterError{Kind: ErrInvalidField, Detail: "aliases", Cause: err}
		}
		s.Aliases = a
	}
	if v, ok := metadata["params"]; ok {
		if m, ok := v.(map[string]any); ok {
			s.Params = m
		}
	}
	return nil
}

// parseDate attempts to parse a date value that may be a string or a
// time.Time (the TOML parser auto-detects dates written without quotes).
func parseDate(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, format := range dateFormats {
			if t, err := time.Parse(format, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unable to parse date string %q", val)
	default:
		return time.Time{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// toStringSlice converts a value to a []string. It handles both []string
// (from some parsers) and []any (common from TOML parsers).
func toStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string in slice, got %T", item)
			}
			result = append(result, s)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("expected string slice, got %T", v)
	}
}

// toInt converts a numeric value to int. It handles int, int64, float64,
// and other common numeric types returned by the TOML parser.
func toInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	default:
		return 0, fmt.Errorf("expected numeric type, got %T", v)
	}
}

// parseCoverImage converts a map value into a CoverImage struct.
func parseCoverImage(v any) (*CoverImage, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", v)
	}

	cover := &CoverImage{}
	if img, ok := m["image"]; ok {
		if s, ok := img.(string); ok {
			cover.Image = s
		}
	}
	if alt, ok := m["alt"]; ok {
		if s, ok := alt.(string); ok {
			cover.Alt = s
		}
	}
	if caption, ok := m["caption"]; ok {
		if s, ok := caption.(string); ok {
			cover.Caption = s
		}
	}

	return cover, nil
}
