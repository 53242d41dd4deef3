package search

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode"
)

// IndexEntry represents a single document to be indexed.
type IndexEntry struct {
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Tags       []string  `json:"tags,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Content    string    `json:"content,omitempty"`
	Date       time.Time `json:"-"`
}

// Document is a single indexed document as stored in the output JSON, keyed
// by a position in Index.Documents that postings reference by ID.
type Document struct {
	ID          int    `json:"id"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Body        string `json:"body,omitempty"`
}

// Posting is one occurrence of a term within a document: the document it
// appears in and how many times.
type Posting struct {
	Doc int `json:"doc"`
	TF  int `json:"tf"`
}

// Index is a per-language inverted index: a term -> postings-list map plus
// the document table the postings reference.
type Index struct {
	Documents []Document           `json:"documents"`
	Postings  map[string][]Posting `json:"postings"`
}

// GenerateIndex builds a per-language inverted index from entries: title,
// summary, and content are tokenized and merged into a single term ->
// postings map, with term frequency recorded per document. If
// maxContentLen > 0, each document's stored Body is truncated to that many
// characters at a word boundary before being tokenized and stored, bounding
// both index size and the stored snippet shown alongside search results.
func GenerateIndex(entries []IndexEntry, maxContentLen int) ([]byte, error) {
	idx := Index{
		Documents: make([]Document, 0, len(entries)),
		Postings:  make(map[string][]Posting),
	}

	termFreq := make([]map[string]int, len(entries))

	for i, e := range entries {
		body := e.Content
		if maxContentLen > 0 {
			body = TruncateAtWord(body, maxContentLen)
		}

		doc := Document{
			ID:          i,
			Title:       e.Title,
			URL:         e.URL,
			Description: e.Summary,
			Body:        body,
		}
		if !e.Date.IsZero() {
			doc.Date = e.Date.Format("2006-01-02")
		}
		idx.Documents = append(idx.Documents, doc)

		freq := make(map[string]int)
		for _, tok := range tokenize(e.Title) {
			freq[tok]++
		}
		for _, tok := range tokenize(e.Summary) {
			freq[tok]++
		}
		for _, tok := range tokenize(body) {
			freq[tok]++
		}
		for _, tag := range e.Tags {
			for _, tok := range tokenize(tag) {
				freq[tok]++
			}
		}
		for _, cat := range e.Categories {
			for _, tok := range tokenize(cat) {
				freq[tok]++
			}
		}
		termFreq[i] = freq
	}

	for docID, freq := range termFreq {
		for term, tf := range freq {
			idx.Postings[term] = append(idx.Postings[term], Posting{Doc: docID, TF: tf})
		}
	}
	for term, postings := range idx.Postings {
		sort.Slice(postings, func(a, b int) bool { return postings[a].Doc < postings[b].Doc })
		idx.Postings[term] = postings
	}

	return json.MarshalIndent(idx, "", "  ")
}

// tokenize lowercases s and splits it into words on any non-letter,
// non-digit boundary, discarding single-character tokens as too common to
// be useful search terms.
func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			tokens = append(tokens, cur.String())
		}
		cur.Reset()
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// StripHTML removes HTML tags from a string, producing plain text. It uses a
// simple state-machine approach (no regexp): scanning character by character,
// tracking whether we are inside a tag. Common HTML entities are decoded, and
// runs of whitespace are collapsed to a single space.
func StripHTML(html string) string {
	var b strings.Builder
	b.Grow(len(html))

	inTag := false
	for i := 0; i < len(html); i++ {
		ch := html[i]
		switch {
		case ch == '<':
			inTag = true
		case ch == '>':
			inTag = false
		case !inTag:
			b.WriteByte(ch)
		}
	}

	result := b.String()

	// Decode common HTML entities.
	result = strings.ReplaceAll(result, "&amp;", "&")
	result = strings.ReplaceAll(result, "&lt;", "<")
	result = strings.ReplaceAll(result, "&gt;", ">")
	result = strings.ReplaceAll(result, "&quot;", "\"")
	result = strings.ReplaceAll(result, "&#39;", "'")

	// Collapse whitespace: replace any run of whitespace characters with a
	// single space, then trim leading/trailing whitespace.
	result = collapseWhitespace(result)

	return result
}

// collapseWhitespace replaces runs of whitespace (spaces, tabs, newlines) with
// a single space and trims leading/trailing whitespace.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inSpace := false
	for _, ch := range s {
		switch ch {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		default:
			b.WriteRune(ch)
			inSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// TruncateAtWord truncates s at the last space before maxLen characters. If s
// is shorter than or equal to maxLen it is returned as-is. If truncated, "..."
// is appended to indicate truncation.
func TruncateAtWord(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	// Find the last space at or before maxLen.
	truncated := s[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > 0 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}
