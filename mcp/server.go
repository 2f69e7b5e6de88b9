// Package mcp provides the MCP (Model Context Protocol) server for contexter.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/contexter-go/internal/config"
	"github.com/Benny93/contexter-go/internal/graph"
	"github.com/Benny93/contexter-go/internal/ingestion"
	"github.com/Benny93/contexter-go/internal/logging"
	"github.com/Benny93/contexter-go/internal/pack"
	"github.com/Benny93/contexter-go/internal/storage"
)

// Tool and resource names.
const (
	ToolPack         = "contexter_pack"
	ToolGraph        = "contexter_graph"
	ToolHubNeighbors = "contexter_hub_neighbors"

	ResourcePack = "contexter://pack"
	ResourceHub  = "contexter://hub"
)

// Server represents the MCP server.
type Server struct {
	root  string
	cfg   *config.Config
	store storage.Backend

	// runMu serializes pack runs; two runs would race on the same output.
	runMu sync.Mutex

	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server for the repository at root. store may
// be nil, in which case the hub tool reports that no store is available.
func NewServer(root string, cfg *config.Config, store storage.Backend) *Server {
	s := &Server{
		root:  root,
		cfg:   cfg,
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "contexter-go",
		Version: "0.1.0",
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        ToolPack,
			Description: "Regenerate the context pack for the repository and report the run status.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"token_limit": {Type: "integer", Description: "Token limit for this run (defaults to the configured limit)"},
				},
			},
		},
		{
			Name:        ToolGraph,
			Description: "List dependency edges of the current pack, optionally filtered by file and kind.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"file": {Type: "string", Description: "Only edges whose source or target contains this text"},
					"kind": {Type: "string", Description: "Only edges of this kind (import, http, db, queue)"},
				},
			},
		},
		{
			Name:        ToolHubNeighbors,
			Description: "Walk the cross-repository hub graph from a qualified node (repo:path).",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"node":      {Type: "string", Description: "Qualified node ID, e.g. api:server.py"},
					"direction": {Type: "string", Description: "out, in or both"},
					"depth":     {Type: "integer", Description: "Maximum traversal depth"},
				},
				Required: []string{"node"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         ResourcePack,
			Name:        "Context Pack",
			Description: "The most recently generated context pack",
			MimeType:    "text/markdown",
		},
		{
			URI:         ResourceHub,
			Name:        "Hub Graph",
			Description: "The merged dependency graph of all linked repositories",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolPack:
		limit, _ := args["token_limit"].(float64)
		return s.handlePack(ctx, int(limit))
	case ToolGraph:
		file, _ := args["file"].(string)
		kind, _ := args["kind"].(string)
		return s.handleGraph(file, kind)
	case ToolHubNeighbors:
		node, _ := args["node"].(string)
		direction, _ := args["direction"].(string)
		depth, _ := args["depth"].(float64)
		if depth == 0 {
			depth = 1
		}
		return s.handleHubNeighbors(ctx, node, direction, int(depth))
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case ResourcePack:
		return s.readOutput(s.cfg.PackPath())
	case ResourceHub:
		return s.readOutput(s.cfg.HubPath())
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves the protocol over stdin and stdout until ctx is done or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) handlePack(ctx context.Context, tokenLimit int) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	cfg := *s.cfg
	if tokenLimit > 0 {
		cfg.TokenLimit = tokenLimit
	}

	res, err := ingestion.Run(ctx, ingestion.Options{Root: s.root, Config: &cfg})
	if err != nil {
		return "", err
	}

	m := res.Pack.Metrics
	var sb strings.Builder
	fmt.Fprintf(&sb, "Status: %s\n", res.Status)
	fmt.Fprintf(&sb, "Pack: %s\n", res.PackPath)
	fmt.Fprintf(&sb, "Tokens: %d / %d\n", m.Tokens, cfg.TokenLimit)
	fmt.Fprintf(&sb, "Files: %d packed (%d full, %d truncated), %d omitted\n",
		m.FilesPacked, m.Full, m.Truncated, m.Omitted)
	fmt.Fprintf(&sb, "Edges: %d (%d dropped)\n", m.Edges, m.EdgesDropped)
	for _, r := range res.GateReasons {
		fmt.Fprintf(&sb, "Gate: %s\n", r)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", w)
	}
	return sb.String(), nil
}

func (s *Server) handleGraph(file, kind string) (string, error) {
	var want graph.EdgeKind
	if kind != "" {
		k, err := graph.ParseKind(kind)
		if err != nil {
			return "", err
		}
		want = k
	}

	text, err := s.readOutput(s.cfg.PackPath())
	if err != nil {
		return "", err
	}
	doc, err := pack.Parse([]byte(text))
	if err != nil {
		return "", fmt.Errorf("parsing pack: %w", err)
	}

	var sb strings.Builder
	n := 0
	for _, e := range doc.Edges {
		if want != "" && e.Kind != want {
			continue
		}
		if file != "" && !strings.Contains(e.Source, file) && !strings.Contains(e.Target, file) {
			continue
		}
		sb.WriteString(graph.FormatEdge(e))
		sb.WriteByte('\n')
		n++
	}
	if n == 0 {
		return "No matching edges.\n", nil
	}
	return fmt.Sprintf("%d edges (pack generated %s):\n%s", n, doc.FrontMatter.Generated, sb.String()), nil
}

func (s *Server) handleHubNeighbors(ctx context.Context, node, direction string, depth int) (string, error) {
	if s.store == nil {
		return "", errors.New("hub store not available: run `contexter hub build` first")
	}
	if node == "" {
		return "", errors.New("node is required")
	}
	dir, err := storage.ParseDirection(direction)
	if err != nil {
		return "", err
	}

	start, err := s.store.GetNode(ctx, node)
	if err != nil {
		return "", err
	}
	if start == nil {
		return "", fmt.Errorf("node not found: %s", node)
	}

	hops, err := s.store.Traverse(ctx, node, depth, dir)
	if err != nil {
		return "", err
	}
	if len(hops) == 0 {
		return fmt.Sprintf("%s has no %s neighbors.\n", node, dir), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Neighbors of %s (%s, depth %d):\n", node, dir, depth)
	for _, h := range hops {
		fmt.Fprintf(&sb, "  [%d] %s via %s\n", h.Depth, h.Node, graph.FormatEdge(h.Via))
	}
	return sb.String(), nil
}

func (s *Server) readOutput(rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s does not exist yet", rel)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Server) registerTools() {
	logger := logging.GetLogger("mcp")
	for _, t := range s.ListTools() {
		name := t.Name
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]any{}
			if raw := req.Params.Arguments; len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return toolError("invalid arguments: %v", err), nil
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				logger.Debug().Err(err).Str("tool", name).Msg("tool failed")
				return toolError("%v", err), nil
			}
			return toolText(text), nil
		})
	}
}

func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		res := r
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, res.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: res.URI, MIMEType: res.MimeType, Text: text}},
			}, nil
		})
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
