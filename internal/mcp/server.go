package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/snaplabel/internal/inference"
	"github.com/hpungsan/snaplabel/internal/session"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"image_classify": {
		def:     classifyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClassify },
	},
	"label_content_get": {
		def:     contentGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContentGet },
	},
	"label_content_set": {
		def:     contentSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContentSet },
	},
	"video_thumbnail": {
		def:     thumbnailToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleThumbnail },
	},
	"model_vocabulary": {
		def:     vocabularyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVocabulary },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer creates a new MCP server with the classifier tools registered.
// All tools share sess, the single implicit session of a stdio client.
func NewServer(sess *session.Session, provider inference.Provider, version string, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"snaplabel",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(sess, provider, logger)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(sess *session.Session, provider inference.Provider, version string, logger *zap.Logger) error {
	s := NewServer(sess, provider, version, logger)
	return server.ServeStdio(s)
}
