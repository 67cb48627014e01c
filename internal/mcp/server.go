package mcp

import (
	"context"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/engine"
)

// KnownTypes lists the tool groups that disabled_types may name.
var KnownTypes = []string{"cipher", "module"}

// tool binds a definition to the Handlers method serving it.
type tool struct {
	def    mcp.Tool
	handle func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// tools is every tool the server can expose, in registration order.
// Names follow "type_action".
var tools = []tool{
	{encodeToolDef, (*Handlers).HandleEncode},
	{decodeToolDef, (*Handlers).HandleDecode},
	{detectToolDef, (*Handlers).HandleDetect},
	{moduleListToolDef, (*Handlers).HandleModuleList},
	{moduleFetchToolDef, (*Handlers).HandleModuleFetch},
}

func lookupTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

// AllToolNames returns the name of every tool.
func AllToolNames() []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.def.Name
	}
	return names
}

// ValidateDisabledTools returns the names that match no tool.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := lookupTool(name); !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the names that are not in KnownTypes.
func ValidateDisabledTypes(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if !slices.Contains(KnownTypes, name) {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the type prefix of a tool name ("cipher_decode" → "cipher").
func GetTypeForTool(toolName string) string {
	typ, _, found := strings.Cut(toolName, "_")
	if !found {
		return ""
	}
	return typ
}

// ExpandTypesToTools returns the tools belonging to any of types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, 0)
	for _, t := range tools {
		if slices.Contains(types, GetTypeForTool(t.def.Name)) {
			names = append(names, t.def.Name)
		}
	}
	return names
}

// disabledTools collects cfg.DisabledTools plus every tool of cfg.DisabledTypes.
func disabledTools(cfg *config.Config) map[string]bool {
	disabled := make(map[string]bool)
	if cfg == nil {
		return disabled
	}
	for _, name := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[name] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	return disabled
}

// NewServer creates the MCP server over eng. Disabled tools and types are
// left out of registration.
func NewServer(eng *engine.Engine, cfg *config.Config, version string, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"cipherbox",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(eng, cfg, logger)
	disabled := disabledTools(cfg)
	for _, t := range tools {
		if disabled[t.def.Name] {
			continue
		}
		handle := t.handle
		s.AddTool(t.def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handle(h, ctx, req)
		})
	}
	return s
}

// Run serves the MCP tools over stdio until stdin closes.
func Run(eng *engine.Engine, cfg *config.Config, version string, logger *zap.Logger) error {
	return server.ServeStdio(NewServer(eng, cfg, version, logger))
}
