package config

import "fmt"

// ErrorKind identifies a category of configuration error.
type ErrorKind int

const (
	// ErrMissingBaseURL means base_url was empty.
	ErrMissingBaseURL ErrorKind = iota
	// ErrSentinelBaseURL means base_url was left at its scaffolded placeholder.
	ErrSentinelBaseURL
	// ErrUnknownHighlightTheme means a configured chroma style does not exist.
	ErrUnknownHighlightTheme
	// ErrUnknownTaxonomyLanguage means a taxonomy referenced an undeclared language.
	ErrUnknownTaxonomyLanguage
	// ErrMalformedGlob means an ignoredContent pattern failed to compile.
	ErrMalformedGlob
)

// Error is a typed configuration error. Detail carries the offending value
// (theme name, language code, glob pattern) when relevant.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrMissingBaseURL:
		return "base_url is required"
	case ErrSentinelBaseURL:
		return "base_url is still set to the placeholder value; replace it with your site's real URL"
	case ErrUnknownHighlightTheme:
		return fmt.Sprintf("unknown highlight theme %q", e.Detail)
	case ErrUnknownTaxonomyLanguage:
		return fmt.Sprintf("taxonomy references undeclared language %q", e.Detail)
	case ErrMalformedGlob:
		return fmt.Sprintf("malformed ignore pattern %q", e.Detail)
	default:
		return "invalid configuration"
	}
}
