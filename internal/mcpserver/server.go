package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// KilnServer exposes a site's content graph, build system, and
// configuration to MCP clients over a transport (typically stdio).
type KilnServer struct {
	server    *mcp.Server
	siteDir   string
	ctx       *SiteContext
	lastBuild *BuildResultDetail
	version   string
}

// New constructs a KilnServer rooted at siteDir, registering every resource,
// tool, and prompt it exposes.
func New(siteDir, version string) *KilnServer {
	ks := &KilnServer{
		server:  mcp.NewServer(&mcp.Implementation{Name: "kiln", Version: version}, nil),
		siteDir: siteDir,
		ctx:     NewSiteContext(siteDir),
		version: version,
	}
	ks.registerResources()
	ks.registerTools()
	ks.registerPrompts()
	return ks
}

// Run starts the server on the given transport and blocks until the client
// disconnects or ctx is canceled.
func (ks *KilnServer) Run(ctx context.Context, transport mcp.Transport) error {
	if err := ks.startWatcher(ctx); err != nil {
		// Non-fatal: file watching is best-effort; the client can still
		// query a manually-reloaded snapshot.
		_ = err
	}
	return ks.server.Run(ctx, transport)
}

func ptr[T any](v T) *T { return &v }
