package relay

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Lanshuns/ebutia/kit"
)

// RegisterMCP registers the relay's tools on an MCP server, so agent
// hosts can drive the same pipeline the HTTP surface exposes.
func (r *Relay) RegisterMCP(srv *mcp.Server) {
	r.registerSummarizeTool(srv)
	r.registerAskTool(srv)
	r.registerTranscriptTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
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

func (r *Relay) registerSummarizeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ebutia_summarize",
		Description: "Summarize a video: extract its transcript when available, compose a summary prompt, and deliver it to the configured chatbot.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Watch-page URL of the video"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		p := req.(*summarizePayload)
		return r.Summarize(ctx, p.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p summarizePayload
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (r *Relay) registerAskTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ebutia_ask",
		Description: "Send a free-form prompt to the configured chatbot, optionally anchored to a video or link URL.",
		InputSchema: inputSchema(map[string]any{
			"prompt": map[string]any{"type": "string", "description": "The prompt text"},
			"url":    map[string]any{"type": "string", "description": "Optional video or link URL to reference"},
			"hover":  map[string]any{"type": "boolean", "description": "Treat url as a link target rather than the current page"},
		}, []string{"prompt"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		p := req.(*askPayload)
		return r.Ask(ctx, p.Prompt, p.URL, p.Hover)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p askPayload
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func (r *Relay) registerTranscriptTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ebutia_get_transcript",
		Description: "Fetch the transcript of a video as structured segments, without delivering anything.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string", "description": "Watch-page URL of the video"},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		p := req.(*urlPayload)
		return r.Transcript(ctx, p.URL)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var p urlPayload
		if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &p}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
