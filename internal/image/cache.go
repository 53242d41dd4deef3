// Package image provides content-addressed image processing for Kiln: it
// reads source images, computes resize/format transformations queued by the
// Markdown renderer, and writes deduplicated, collision-safe output files.
package image

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// metadataCacheVersion is bumped when the manifest schema changes.
const metadataCacheVersion = "2"

// MetadataEntry records what a Processor has learned about one source image:
// its pixel dimensions, MIME type, and whether its format is lossy (and so
// loses its ICC profile on re-encode). Keyed by source path and validated
// against a SHA-256 content hash so a changed file is never served stale
// dimensions.
type MetadataEntry struct {
	ContentHash string `json:"contentHash"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Mime        string `json:"mime"`
	Lossy       bool   `json:"lossy"`
}

// metadataManifest is the top-level structure persisted as manifest.json.
type metadataManifest struct {
	Version string                    `json:"version"`
	Entries map[string]*MetadataEntry `json:"entries"`
}

// MetadataCache is the Processor's "source-path → dimensions, mime, lossy?"
// cache. It avoids re-decoding a source image on every
// incremental build just to learn its dimensions. Safe for concurrent use.
type MetadataCache struct {
	mu       sync.Mutex
	dir      string
	manifest metadataManifest
}

// NewMetadataCache creates a MetadataCache rooted at cacheDir, loading any
// existing manifest.json found there. A missing or corrupt manifest starts
// fresh rather than failing the build.
func NewMetadataCache(cacheDir string) (*MetadataCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image metadata cache directory: %w", err)
	}

	c := &MetadataCache{
		dir: cacheDir,
		manifest: metadataManifest{
			Version: metadataCacheVersion,
			Entries: make(map[string]*MetadataEntry),
		},
	}

	data, err := os.ReadFile(filepath.Join(cacheDir, "manifest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("reading image metadata manifest: %w", err)
	}

	var m metadataManifest
	if err := json.Unmarshal(data, &m); err != nil || m.Version != metadataCacheVersion {
		// Corrupt or stale manifest: start fresh rather than fail the build.
		return c, nil
	}
	if m.Entries == nil {
		m.Entries = make(map[string]*MetadataEntry)
	}
	c.manifest = m
	return c, nil
}

// Lookup returns the cached metadata for srcPath if it matches contentHash.
func (c *MetadataCache) Lookup(srcPath, contentHash string) (MetadataEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.manifest.Entries[srcPath]
	if !ok || entry.ContentHash != contentHash {
		return MetadataEntry{}, false
	}
	return *entry, true
}

// Store records metadata for srcPath and persists the manifest to disk.
func (c *MetadataCache) Store(srcPath string, entry MetadataEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manifest.Entries[srcPath] = &entry
	data, err := json.MarshalIndent(c.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling image metadata manifest: %w", err)
	}
	return os.WriteFile(filepath.Join(c.dir, "manifest.json"), data, 0o644)
}

// HashFile computes the SHA-256 hex digest of the file at path. It is used
// to invalidate cached metadata when a source image's bytes change.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
