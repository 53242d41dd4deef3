// Package config handles loading, validating, and managing site configuration
// for the Kiln static site generator.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/spf13/viper"
)

// defaultBaseURLSentinel is the placeholder base URL shipped in scaffolded
// sites. A config that still carries it is rejected at load time.
const defaultBaseURLSentinel = "http://replace-this-with-your-url.example.com"

// Config is the top-level, immutable-after-load configuration for a Kiln
// site. It is produced once by Load and handed, read-only, to every
// downstream component.
type Config struct {
	BaseURL      string           `mapstructure:"baseURL"`
	Title        string           `mapstructure:"title"`
	Description  string           `mapstructure:"description"`
	Language     string           `mapstructure:"language"` // default language code
	Languages    []LanguageConfig `mapstructure:"languages"`
	Theme        string           `mapstructure:"theme"`
	Author       AuthorConfig     `mapstructure:"author"`
	Menu         MenuConfig       `mapstructure:"menu"`
	Pagination   PaginationConfig `mapstructure:"pagination"`
	Taxonomies   []TaxonomyDef    `mapstructure:"taxonomies"`
	Markdown     MarkdownConfig   `mapstructure:"markdown"`
	Highlight    HighlightConfig  `mapstructure:"highlight"`
	Search       SearchConfig     `mapstructure:"search"`
	Feeds        FeedsConfig      `mapstructure:"feeds"`
	SEO          SEOConfig        `mapstructure:"seo"`
	Server       ServerConfig     `mapstructure:"server"`
	Build        BuildConfig      `mapstructure:"build"`
	Deploy       DeployConfig     `mapstructure:"deploy"`
	Images       ImageConfig      `mapstructure:"images"`
	Security     SecurityConfig   `mapstructure:"security"`
	IgnoredGlobs []string         `mapstructure:"ignoredContent"`
	Params       map[string]any   `mapstructure:"params"`

	// BuildTimestamp is stamped by Load (seconds since epoch) and is the one
	// piece of Config that is not read from the file.
	BuildTimestamp int64 `mapstructure:"-"`
}

// SiteConfig is an alias for Config, kept for the render/build/server
// packages that predate the Config rename.
type SiteConfig = Config

// LanguageConfig describes one additional (non-default) site language.
type LanguageConfig struct {
	Code   string `mapstructure:"code"`
	Name   string `mapstructure:"name"`
	Feed   bool   `mapstructure:"feed"`
	Search bool   `mapstructure:"search"`
}

// TaxonomyDef declares one taxonomy (e.g. "tags"): its plural name, the
// language it applies to (defaulted to the site language when empty), and
// its pagination/feed behavior.
type TaxonomyDef struct {
	Name         string `mapstructure:"name"`
	Language     string `mapstructure:"lang"`
	PaginateBy   int    `mapstructure:"paginateBy"`
	PaginatePath string `mapstructure:"paginatePath"`
	Feed         bool   `mapstructure:"feed"`
}

// MarkdownConfig controls Markdown rendering policy.
type MarkdownConfig struct {
	SmartPunctuation      bool   `mapstructure:"smartPunctuation"`
	Emoji                 bool   `mapstructure:"emoji"`
	ExternalLinksBlank    bool   `mapstructure:"externalLinksTargetBlank"`
	ExternalLinksNoFollow bool   `mapstructure:"externalLinksNoFollow"`
	ExternalLinksNoOpener bool   `mapstructure:"externalLinksNoOpener"`
	InsertAnchorLinks     string `mapstructure:"insertAnchorLinks"` // none|left|right|heading
	BottomFootnotes       bool   `mapstructure:"bottomFootnotes"`
}

// AuthorConfig holds information about the site author.
type AuthorConfig struct {
	Name   string       `mapstructure:"name"`
	Email  string       `mapstructure:"email"`
	Bio    string       `mapstructure:"bio"`
	Avatar string       `mapstructure:"avatar"`
	Social SocialConfig `mapstructure:"social"`
}

// SocialConfig holds social media handles for the author.
type SocialConfig struct {
	GitHub   string `mapstructure:"github"`
	LinkedIn string `mapstructure:"linkedin"`
	Twitter  string `mapstructure:"twitter"`
	Mastodon string `mapstructure:"mastodon"`
	Email    string `mapstructure:"email"`
}

// MenuItem represents a single navigation menu entry.
type MenuItem struct {
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// MenuConfig holds the navigation menus for the site.
type MenuConfig struct {
	Main []MenuItem `mapstructure:"main"`
}

// PaginationConfig controls the default page size used when a section or
// taxonomy term does not declare its own paginate_by.
type PaginationConfig struct {
	PageSize int `mapstructure:"pageSize"`
}

// HighlightConfig controls syntax highlighting behaviour.
type HighlightConfig struct {
	Style       string `mapstructure:"style"`
	DarkStyle   string `mapstructure:"darkStyle"`
	LineNumbers bool   `mapstructure:"lineNumbers"`
	TabWidth    int    `mapstructure:"tabWidth"`
	InlineCSS   bool   `mapstructure:"inlineCSS"`
}

// SearchConfig controls the client-side search index.
type SearchConfig struct {
	Enabled       bool        `mapstructure:"enabled"`
	ContentLength int         `mapstructure:"contentLength"`
	Keys          []SearchKey `mapstructure:"keys"`
}

// SearchKey defines a field and its relevance weight for search indexing.
type SearchKey struct {
	Name   string  `mapstructure:"name"`
	Weight float64 `mapstructure:"weight"`
}

// FeedsConfig controls RSS/Atom feed generation.
type FeedsConfig struct {
	RSS         bool     `mapstructure:"rss"`
	Atom        bool     `mapstructure:"atom"`
	Limit       int      `mapstructure:"limit"`
	FullContent bool     `mapstructure:"fullContent"`
	Sections    []string `mapstructure:"sections"`
}

// SEOConfig holds search-engine optimisation settings.
type SEOConfig struct {
	TitleTemplate string `mapstructure:"titleTemplate"`
	DefaultImage  string `mapstructure:"defaultImage"`
	TwitterHandle string `mapstructure:"twitterHandle"`
	JSONLD        bool   `mapstructure:"jsonLD"`
}

// ServerConfig controls the local development server.
type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	Host       string `mapstructure:"host"`
	LiveReload bool   `mapstructure:"livereload"`
}

// BuildConfig controls the site build process.
type BuildConfig struct {
	Minify            bool `mapstructure:"minify"`
	CleanURLs         bool `mapstructure:"cleanUrls"`
	CompileCSS        bool `mapstructure:"compileCSS"`
	InferDatesFromGit bool `mapstructure:"inferDatesFromGit"`
}

// DeployConfig holds deployment target configuration.
type DeployConfig struct {
	Endpoint   string           `mapstructure:"endpoint"`
	Profile    string           `mapstructure:"profile"`
	S3         S3Config         `mapstructure:"s3"`
	CloudFront CloudFrontConfig `mapstructure:"cloudfront"`
}

// S3Config holds AWS S3 deployment settings.
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
}

// CloudFrontConfig holds AWS CloudFront invalidation settings.
type CloudFrontConfig struct {
	DistributionID  string   `mapstructure:"distributionId"`
	InvalidatePaths []string `mapstructure:"invalidatePaths"`
	URLRewrite      bool     `mapstructure:"urlRewrite"`
	SecurityHeaders bool     `mapstructure:"securityHeaders"`
}

// ImageConfig controls responsive image generation and format conversion.
type ImageConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Quality int      `mapstructure:"quality"`
	Sizes   []int    `mapstructure:"sizes"`
	Formats []string `mapstructure:"formats"`
}

// SecurityConfig controls security header generation.
type SecurityConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	CSP     CSPConfig  `mapstructure:"csp"`
	HSTS    HSTSConfig `mapstructure:"hsts"`
}

// CSPConfig holds Content Security Policy directive sources.
type CSPConfig struct {
	ScriptSrc  []string `mapstructure:"scriptSrc"`
	StyleSrc   []string `mapstructure:"styleSrc"`
	ImgSrc     []string `mapstructure:"imgSrc"`
	ConnectSrc []string `mapstructure:"connectSrc"`
	FontSrc    []string `mapstructure:"fontSrc"`
}

// HSTSConfig holds HTTP Strict Transport Security settings.
type HSTSConfig struct {
	MaxAge            int  `mapstructure:"maxAge"`
	IncludeSubDomains bool `mapstructure:"includeSubDomains"`
	Preload           bool `mapstructure:"preload"`
}

// Default returns a Config populated with sensible default values.
func Default() *Config {
	return &Config{
		Language: "en",
		Theme:    "default",
		Pagination: PaginationConfig{
			PageSize: 10,
		},
		Taxonomies: []TaxonomyDef{
			{Name: "tags"},
			{Name: "categories"},
		},
		Markdown: MarkdownConfig{
			SmartPunctuation:      true,
			ExternalLinksNoOpener: true,
			InsertAnchorLinks:     "none",
		},
		Highlight: HighlightConfig{
			Style:     "github",
			DarkStyle: "github-dark",
			TabWidth:  4,
		},
		Search: SearchConfig{
			Enabled:       true,
			ContentLength: 5000,
			Keys: []SearchKey{
				{Name: "title", Weight: 2.0},
				{Name: "tags", Weight: 1.5},
				{Name: "summary", Weight: 1.0},
				{Name: "content", Weight: 0.5},
			},
		},
		Feeds: FeedsConfig{
			RSS:   true,
			Atom:  true,
			Limit: 20,
		},
		SEO: SEOConfig{
			JSONLD: true,
		},
		Server: ServerConfig{
			Port:       1313,
			Host:       "localhost",
			LiveReload: true,
		},
		Build: BuildConfig{},
		Images: ImageConfig{
			Enabled: true,
			Quality: 75,
			Sizes:   []int{320, 640, 960, 1280, 1920},
			Formats: []string{"webp", "original"},
		},
		Security: SecurityConfig{
			Enabled: false,
			HSTS: HSTSConfig{
				MaxAge:            31536000,
				IncludeSubDomains: true,
			},
		},
		Params: map[string]any{},
	}
}

// Load reads a configuration file from configPath (YAML or TOML) and returns
// a Config with defaults applied first and file values overlaid on top. On
// success it validates the result and stamps BuildTimestamp.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()

	ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
	switch ext {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	case "toml":
		v.SetConfigType("toml")
	default:
		v.SetConfigType("yaml")
	}

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing file: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// finalize fills in defaulted taxonomy languages, validates the
// configuration, and stamps BuildTimestamp on success.
func (c *Config) finalize() error {
	for i := range c.Taxonomies {
		if c.Taxonomies[i].Language == "" {
			c.Taxonomies[i].Language = c.Language
		}
	}

	for _, g := range c.IgnoredGlobs {
		if _, err := filepath.Match(g, "probe"); err != nil {
			return fmt.Errorf("config: validating: %w", &Error{Kind: ErrMalformedGlob, Detail: g})
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("config: validating: %w", err)
	}

	c.BuildTimestamp = time.Now().Unix()
	return nil
}

// Validate checks the Config for the invariants required before a build can
// proceed: a real base_url, a highlight theme that exists, and taxonomies
// that only reference declared languages.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &Error{Kind: ErrMissingBaseURL}
	}
	if c.BaseURL == defaultBaseURLSentinel {
		return &Error{Kind: ErrSentinelBaseURL}
	}

	if c.Highlight.Style != "" {
		if styles.Get(c.Highlight.Style) == styles.Fallback {
			return &Error{Kind: ErrUnknownHighlightTheme, Detail: c.Highlight.Style}
		}
	}
	if c.Highlight.DarkStyle != "" {
		if styles.Get(c.Highlight.DarkStyle) == styles.Fallback {
			return &Error{Kind: ErrUnknownHighlightTheme, Detail: c.Highlight.DarkStyle}
		}
	}

	for _, g := range c.IgnoredGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			return &Error{Kind: ErrMalformedGlob, Detail: g}
		}
	}

	declared := map[string]bool{c.Language: true}
	for _, l := range c.Languages {
		declared[l.Code] = true
	}
	for _, t := range c.Taxonomies {
		if t.Language != "" && !declared[t.Language] {
			return &Error{Kind: ErrUnknownTaxonomyLanguage, Detail: t.Language}
		}
	}

	return nil
}

// IsIgnored reports whether relPath (slash-normalized, relative to the
// content root) matches any of the configured ignore globs.
func (c *Config) IsIgnored(relPath string) bool {
	for _, g := range c.IgnoredGlobs {
		if ok, _ := filepath.Match(g, relPath); ok {
			return true
		}
	}
	return false
}

// MakePermalink builds an absolute URL from the site's base_url and a page
// path. Paths that already end in "/" or that name a file (a dotted final
// segment, e.g. "rss.xml") are joined as-is; everything else gets exactly
// one trailing slash, e.g. make_permalink("hello") -> ".../hello/".
func (c *Config) MakePermalink(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	p := path

	if p == "" || p == "/" {
		return base + "/"
	}

	p = strings.TrimPrefix(p, "/")

	if strings.HasSuffix(p, "/") {
		return base + "/" + p
	}

	if looksLikeFile(p) {
		return base + "/" + p
	}

	return base + "/" + p + "/"
}

// looksLikeFile reports whether the final path segment carries a dotted
// extension (e.g. "rss.xml"), in which case MakePermalink must not append a
// trailing slash.
func looksLikeFile(p string) bool {
	last := p
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		last = p[idx+1:]
	}
	return strings.Contains(last, ".")
}

// LanguageCodes returns the default language plus every declared additional
// language code.
func (c *Config) LanguageCodes() []string {
	codes := []string{c.Language}
	for _, l := range c.Languages {
		codes = append(codes, l.Code)
	}
	return codes
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is
// returned for convenient chaining.
func (c *Config) WithOverrides(overrides map[string]any) *Config {
	for key, val := range overrides {
		switch key {
		case "baseURL":
			if s, ok := val.(string); ok {
				c.BaseURL = s
			}
		case "title":
			if s, ok := val.(string); ok {
				c.Title = s
			}
		case "theme":
			if s, ok := val.(string); ok {
				c.Theme = s
			}
		case "language":
			if s, ok := val.(string); ok {
				c.Language = s
			}
		case "port":
			if n, ok := val.(int); ok {
				c.Server.Port = n
			}
		case "host":
			if s, ok := val.(string); ok {
				c.Server.Host = s
			}
		case "minify":
			if b, ok := val.(bool); ok {
				c.Build.Minify = b
			}
		case "cleanUrls":
			if b, ok := val.(bool); ok {
				c.Build.CleanURLs = b
			}
		case "livereload":
			if b, ok := val.(bool); ok {
				c.Server.LiveReload = b
			}
		}
	}
	return c
}
