package mcpserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/agnivade/levenshtein"
)

// abbreviations maps common abbreviations to their full forms for taxonomy similarity.
var abbreviations = map[string]string{
	"k8s":    "kubernetes",
	"js":     "javascript",
	"ts":     "typescript",
	"tf":     "terraform",
	"py":     "python",
	"infra":  "infrastructure",
	"devops": "devops",
}

// findSimilarTerms finds existing terms similar to input using Levenshtein distance
// and abbreviation detection.
func findSimilarTerms(input string, existing []string, threshold int) []string {
	inputLower := strings.ToLower(input)
	seen := make(map[string]bool)
	var similar []string

	if expanded, ok := abbreviations[inputLower]; ok {
		for _, term := range existing {
			if strings.ToLower(term) == expanded && !seen[term] {
				seen[term] = true
				similar = append(similar, term)
			}
		}
	}

	for abbr, expanded := range abbreviations {
		if inputLower == expanded {
			for _, term := range existing {
				if strings.ToLower(term) == abbr && !seen[term] {
					seen[term] = true
					similar = append(similar, term)
				}
			}
		}
	}

	for _, term := range existing {
		termLower := strings.ToLower(term)
		if termLower == inputLower {
			continue // exact match
		}
		dist := levenshtein.ComputeDistance(inputLower, termLower)
		if dist <= threshold && !seen[term] {
			seen[term] = true
			similar = append(similar, term)
		}
	}

	return similar
}

// frontmatterData is a partial parse of TOML frontmatter.
type frontmatterData struct {
	Title       string   `toml:"title"`
	Date        string   `toml:"date"`
	Draft       *bool    `toml:"draft"`
	Tags        []string `toml:"tags"`
	Categories  []string `toml:"categories"`
	Series      string   `toml:"series"`
	Description string   `toml:"description"`
	Summary     string   `toml:"summary"`
	Slug        string   `toml:"slug"`
	Weight      int      `toml:"weight"`
	Layout      string   `toml:"layout"`
}

// validateFrontmatter validates a raw TOML frontmatter block (without its
// surrounding +++ fences) against the fields Kiln's frontmatter parser
// recognizes.
func validateFrontmatter(raw string, existingTags, existingCats []string) ValidateFrontmatterOutput {
	var data frontmatterData
	var errs []ValidationError
	var warns []ValidationWarning

	if _, err := toml.Decode(raw, &data); err != nil {
		errs = append(errs, ValidationError{
			Field:   "_toml",
			Message: fmt.Sprintf("invalid TOML: %s", err.Error()),
		})
		return ValidateFrontmatterOutput{Valid: false, Errors: errs, Warnings: warns}
	}

	if strings.TrimSpace(data.Title) == "" {
		errs = append(errs, ValidationError{
			Field:   "title",
			Message: "title is required",
		})
	}

	if data.Date != "" {
		validFormats := []string{
			time.RFC3339,
			"2006-01-02T15:04:05Z",
			"2006-01-02T15:04:05-07:00",
			"2006-01-02",
		}
		valid := false
		for _, f := range validFormats {
			if _, err := time.Parse(f, data.Date); err == nil {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, ValidationError{
				Field:   "date",
				Message: "Invalid date format: expected ISO 8601 (e.g. 2025-01-15 or 2025-01-15T10:00:00Z)",
				Value:   data.Date,
			})
		}
	}

	if data.Layout != "" {
		validLayouts := []string{"single", "list"}
		found := false
		for _, l := range validLayouts {
			if data.Layout == l {
				found = true
				break
			}
		}
		if !found {
			warns = append(warns, ValidationWarning{
				Field:   "layout",
				Message: fmt.Sprintf("Layout %q may not exist; valid values: single, list", data.Layout),
			})
		}
	}

	for _, tag := range data.Tags {
		similar := findSimilarTerms(tag, existingTags, 2)
		for _, s := range similar {
			if strings.ToLower(s) != strings.ToLower(tag) {
				warns = append(warns, ValidationWarning{
					Field:      "tags",
					Message:    fmt.Sprintf("Tag %q is similar to existing tag %q. Did you mean %q?", tag, s, s),
					Suggestion: s,
				})
			}
		}
	}

	for _, cat := range data.Categories {
		similar := findSimilarTerms(cat, existingCats, 2)
		for _, s := range similar {
			if strings.ToLower(s) != strings.ToLower(cat) {
				warns = append(warns, ValidationWarning{
					Field:      "categories",
					Message:    fmt.Sprintf("Category %q is similar to existing category %q. Did you mean %q?", cat, s, s),
					Suggestion: s,
				})
			}
		}
	}

	normalized := raw
	if len(errs) == 0 {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(&data); err == nil {
			normalized = sb.String()
		}
	}

	return ValidateFrontmatterOutput{
		Valid:                 len(errs) == 0,
		Errors:                errs,
		Warnings:              warns,
		NormalizedFrontmatter: normalized,
	}
}
