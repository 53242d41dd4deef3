package build

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kilnhq/kiln/internal/content"
)

// renderParallel processes pages concurrently, bounded to workers (or
// runtime.NumCPU() goroutines if workers <= 0). The fn callback is invoked
// for each page. An error does not stop the remaining pages: every page is
// still processed, and the first error is returned once all of them have
// finished.
func renderParallel(pages []*content.Page, workers int, fn func(*content.Page) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if len(pages) == 0 {
		return nil
	}
	if workers > len(pages) {
		workers = len(pages)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	for _, p := range pages {
		p := p
		g.Go(func() error {
			if err := fn(p); err != nil {
				return fmt.Errorf("processing page %s: %w", p.SourcePath, err)
			}
			return nil
		})
	}

	return g.Wait()
}
