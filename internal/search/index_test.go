package search

import (
	"encoding/json"
	"testing"
)

func TestGenerateIndex_Basic(t *testing.T) {
	entries := []IndexEntry{
		{
			Title:      "First Post",
			URL:        "/posts/first/",
			Tags:       []string{"go", "testing"},
			Categories: []string{"programming"},
			Summary:    "A first post",
			Content:    "This is the content about gophers.",
		},
		{
			Title:      "Second Post",
			URL:        "/posts/second/",
			Tags:       []string{"rust"},
			Categories: []string{"programming"},
			Summary:    "A second post",
			Content:    "This is the content about crabs.",
		},
	}

	data, err := GenerateIndex(entries, 0)
	if err != nil {
		t.Fatalf("GenerateIndex returned error: %v", err)
	}

	var result Index
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}

	if len(result.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(result.Documents))
	}
	if result.Documents[0].Title != "First Post" {
		t.Errorf("expected title 'First Post', got %q", result.Documents[0].Title)
	}
	if result.Documents[1].URL != "/posts/second/" {
		t.Errorf("expected URL '/posts/second/', got %q", result.Documents[1].URL)
	}

	// "gophers" only appears in the first document's postings list.
	postings, ok := result.Postings["gophers"]
	if !ok {
		t.Fatal("expected a postings list for 'gophers'")
	}
	if len(postings) != 1 || postings[0].Doc != 0 {
		t.Errorf("expected gophers to post only to doc 0, got %+v", postings)
	}

	// "programming" (a shared category) appears in both documents.
	programming, ok := result.Postings["programming"]
	if !ok {
		t.Fatal("expected a postings list for 'programming'")
	}
	if len(programming) != 2 {
		t.Errorf("expected 'programming' to post to both documents, got %+v", programming)
	}
}

func TestGenerateIndex_MaxContentLen(t *testing.T) {
	entries := []IndexEntry{
		{
			Title:   "Long Post",
			URL:     "/posts/long/",
			Content: "The quick brown fox jumps over the lazy dog and runs away",
		},
	}

	data, err := GenerateIndex(entries, 30)
	if err != nil {
		t.Fatalf("GenerateIndex returned error: %v", err)
	}

	var result Index
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}

	if len(result.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(result.Documents))
	}

	body := result.Documents[0].Body
	if len(body) == 0 {
		t.Fatal("expected non-empty body after truncation")
	}
	if body[len(body)-3:] != "..." {
		t.Errorf("expected truncated body to end with '...', got %q", body)
	}
	expected := "The quick brown fox jumps..."
	if body != expected {
		t.Errorf("expected %q, got %q", expected, body)
	}

	// "away", past the truncation point, should not appear in the postings.
	if _, ok := result.Postings["away"]; ok {
		t.Error("did not expect 'away' to be indexed once content was truncated")
	}
	if _, ok := result.Postings["quick"]; !ok {
		t.Error("expected 'quick' to be indexed")
	}
}

func TestGenerateIndex_EmptyEntries(t *testing.T) {
	data, err := GenerateIndex(nil, 0)
	if err != nil {
		t.Fatalf("GenerateIndex returned error: %v", err)
	}

	var result Index
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}

	if len(result.Documents) != 0 {
		t.Errorf("expected 0 documents, got %d", len(result.Documents))
	}
	if len(result.Postings) != 0 {
		t.Errorf("expected 0 postings, got %d", len(result.Postings))
	}
}

func TestGenerateIndex_OmitEmpty(t *testing.T) {
	entries := []IndexEntry{
		{
			Title: "Minimal Post",
			URL:   "/posts/minimal/",
		},
	}

	data, err := GenerateIndex(entries, 0)
	if err != nil {
		t.Fatalf("GenerateIndex returned error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}

	docs, ok := raw["documents"].([]any)
	if !ok || len(docs) != 1 {
		t.Fatalf("expected 1 document, got %v", raw["documents"])
	}
	doc := docs[0].(map[string]any)
	for _, key := range []string{"description", "date", "body"} {
		if _, ok := doc[key]; ok {
			t.Errorf("expected key %q to be omitted, but it was present", key)
		}
	}
	if doc["title"] != "Minimal Post" {
		t.Errorf("expected title 'Minimal Post', got %v", doc["title"])
	}
	if doc["url"] != "/posts/minimal/" {
		t.Errorf("expected url '/posts/minimal/', got %v", doc["url"])
	}
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	got := tokenize("Hello, World! Gophers-are-great.")
	want := []string{"hello", "world", "gophers", "are", "great"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStripHTML_Basic(t *testing.T) {
	input := "<p>Hello <strong>world</strong></p>"
	expected := "Hello world"
	result := StripHTML(input)
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestStripHTML_Entities(t *testing.T) {
	input := "Tom &amp; Jerry &lt;friends&gt; said &quot;hello&#39;s&quot;"
	expected := "Tom & Jerry <friends> said \"hello's\""
	result := StripHTML(input)
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestStripHTML_Nested(t *testing.T) {
	input := "<div><p>Nested <em><strong>tags</strong></em> here</p></div>"
	expected := "Nested tags here"
	result := StripHTML(input)
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestStripHTML_Empty(t *testing.T) {
	result := StripHTML("")
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestTruncateAtWord_Short(t *testing.T) {
	input := "short text"
	result := TruncateAtWord(input, 100)
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestTruncateAtWord_Long(t *testing.T) {
	input := "The quick brown fox jumps over the lazy dog"
	result := TruncateAtWord(input, 20)
	// First 20 chars: "The quick brown fox "
	// Last space at or before 20 is position 19 (the space after "fox").
	// Actually: T(0)h(1)e(2) (3)q(4)u(5)i(6)c(7)k(8) (9)b(10)r(11)o(12)w(13)n(14) (15)f(16)o(17)x(18) (19)j(20)
	// s[:20] = "The quick brown fox " -> lastSpace = 19 -> "The quick brown fox" + "..."
	expected := "The quick brown fox..."
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}
