package docparse

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/docparse/kit"
)

// RegisterMCP registers docparse_parse, docparse_detect and docparse_formats on srv.
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name: "docparse_parse",
		Description: "Parse a .csv or .pdf file into structured data. CSV yields one object per row " +
			"with inferred types; PDF yields {page_number, content} per non-blank page.",
		InputSchema: inputSchema(map[string]any{
			"path":     map[string]any{"type": "string", "description": "File path to parse"},
			"password": map[string]any{"type": "string", "description": "Password for an encrypted PDF"},
		}, []string{"path"}),
	}, p.parseEndpoint(), kit.DecodeArgs[ParseRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docparse_detect",
		Description: "Detect the format of a file from its extension.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to detect"},
		}, []string{"path"}),
	}, p.detectEndpoint(), kit.DecodeArgs[DetectRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "docparse_formats",
		Description: "List the supported file formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, formatsEndpoint, kit.DecodeArgs[struct{}]())
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
