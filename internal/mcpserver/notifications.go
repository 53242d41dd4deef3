package mcpserver

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kilnhq/kiln/internal/server"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// startWatcher starts a file watcher that marks the site context dirty and
// sends resource update notifications when content files change.
func (ks *KilnServer) startWatcher(ctx context.Context) error {
	watchPaths := []string{
		filepath.Join(ks.siteDir, "content"),
		filepath.Join(ks.siteDir, "kiln.yaml"),
		filepath.Join(ks.siteDir, "layouts"),
		filepath.Join(ks.siteDir, "data"),
	}

	watcher := server.NewWatcher(watchPaths, 500*time.Millisecond, func(events []fsnotify.Event) {
		if len(events) == 0 {
			return
		}
		ks.ctx.MarkDirty()
		_ = ks.server.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{
			URI: "kiln://content/pages",
		})
	})

	go func() {
		if err := watcher.Start(); err != nil {
			// Non-fatal: file watching is best-effort
			return
		}
		<-ctx.Done()
		watcher.Stop()
	}()

	return nil
}
