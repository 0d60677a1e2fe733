// Package mcpserver exposes the Content Base Facade's submit, cancel,
// delete, and query operations as MCP tools over a stdio transport, the
// same second front-end the teacher runs alongside its CLI.
package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/contentbase/internal/artifact"
	"github.com/standardbeagle/contentbase/internal/contentbase"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
	"github.com/standardbeagle/contentbase/internal/version"
)

// Server adapts a ContentBase to the MCP tool-calling protocol.
type Server struct {
	cb     *contentbase.ContentBase
	rc     *tasks.RunContext
	server *mcp.Server
}

// New builds a Server and registers its tools. Run must be called to
// actually serve the protocol.
func New(cb *contentbase.ContentBase, rc *tasks.RunContext) *Server {
	s := &Server{cb: cb, rc: rc}
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "contentbase-mcp-server",
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s
}

// Run serves the MCP protocol over stdio until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "submit",
		Description: "Ingest a file at a given path and enqueue its content-processing task pipeline",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":     {Type: "string", Description: "path to the file on disk"},
				"kind":     {Type: "string", Description: "video|audio|image|raw_text|web_page"},
				"priority": {Type: "string", Description: "low|normal|high, default normal"},
			},
			Required: []string{"path", "kind"},
		},
	}, s.handleSubmit)

	s.server.AddTool(&mcp.Tool{
		Name:        "cancel",
		Description: "Cancel a file's pending and in-flight tasks",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_id": {Type: "string", Description: "file identifier returned by submit"},
				"kind":    {Type: "string", Description: "restrict cancellation to one content kind, paired with task"},
				"task":    {Type: "string", Description: "restrict cancellation to one task name, paired with kind"},
			},
			Required: []string{"file_id"},
		},
	}, s.handleCancel)

	s.server.AddTool(&mcp.Tool{
		Name:        "delete",
		Description: "Purge a file's index entries and artifacts",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file_id": {Type: "string"},
			},
			Required: []string{"file_id"},
		},
	}, s.handleDelete)

	s.server.AddTool(&mcp.Tool{
		Name:        "query",
		Description: "Search the index with a natural-language text query",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text":    {Type: "string", Description: "search text"},
				"kind":    {Type: "string", Description: "restrict results to one content kind"},
				"k":       {Type: "integer", Description: "max results, default 10"},
				"offset":  {Type: "integer", Description: "result offset for pagination"},
				"file_id": {Type: "string", Description: "restrict results to one file"},
			},
			Required: []string{"text"},
		},
	}, s.handleQuery)
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(content)}}}, nil
}

func errResult(operation string, err error) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"success": false, "operation": operation, "error": err.Error()})
}

type submitParams struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Priority string `json:"priority"`
}

func (s *Server) handleSubmit(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p submitParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errResult("submit", fmt.Errorf("invalid parameters: %w", err))
	}
	kind := types.ContentKind(p.Kind)
	if !kind.Valid() {
		return errResult("submit", fmt.Errorf("unrecognized content kind %q", p.Kind))
	}
	priority, err := types.ParsePriority(p.Priority)
	if err != nil {
		return errResult("submit", err)
	}

	fileID, err := s.ingest(ctx, p.Path, kind, priority)
	if err != nil {
		return errResult("submit", err)
	}
	return jsonResult(map[string]any{"success": true, "file_id": string(fileID)})
}

// ingest hashes path's contents into a FileIdentifier, writes the
// original blob, and enqueues the task pipeline - the MCP-side twin of
// cmd/contentbase's submitFile.
func (s *Server) ingest(ctx context.Context, path string, kind types.ContentKind, priority types.PriorityLevel) (types.FileIdentifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	fileID := types.FileIdentifier(hex.EncodeToString(sum[:]))

	if err := s.cb.Blob.Write(ctx, artifact.OriginalBlobPath(fileID), data); err != nil {
		return "", err
	}
	file := types.FileInfo{FileID: fileID, FilePath: path, FileFullPathOnDisk: path}
	if err := s.cb.Submit(ctx, file, kind, priority); err != nil {
		return "", err
	}
	return fileID, nil
}

type cancelParams struct {
	FileID string `json:"file_id"`
	Kind   string `json:"kind"`
	Task   string `json:"task"`
}

func (s *Server) handleCancel(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p cancelParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errResult("cancel", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.FileID == "" {
		return errResult("cancel", fmt.Errorf("file_id is required"))
	}

	var taskType *types.ContentTaskType
	if p.Kind != "" && p.Task != "" {
		t := types.NewTaskType(types.ContentKind(p.Kind), p.Task)
		taskType = &t
	}
	s.cb.Cancel(types.FileIdentifier(p.FileID), taskType)
	return jsonResult(map[string]any{"success": true, "file_id": p.FileID})
}

type deleteParams struct {
	FileID string `json:"file_id"`
}

func (s *Server) handleDelete(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p deleteParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errResult("delete", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.FileID == "" {
		return errResult("delete", fmt.Errorf("file_id is required"))
	}
	if err := s.cb.Delete(ctx, types.FileIdentifier(p.FileID)); err != nil {
		return errResult("delete", err)
	}
	return jsonResult(map[string]any{"success": true, "file_id": p.FileID})
}

type queryParams struct {
	Text   string `json:"text"`
	Kind   string `json:"kind"`
	K      int    `json:"k"`
	Offset int    `json:"offset"`
	FileID string `json:"file_id"`
}

func (s *Server) handleQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p queryParams
	if err := json.Unmarshal(req.Params.Arguments, &p); err != nil {
		return errResult("query", fmt.Errorf("invalid parameters: %w", err))
	}
	if p.Text == "" {
		return errResult("query", fmt.Errorf("text is required"))
	}
	if p.K <= 0 {
		p.K = 10
	}

	filter := types.SearchFilter{}
	if p.Kind != "" {
		filter.ContentKinds = append(filter.ContentKinds, types.ContentKind(p.Kind))
	}
	if p.FileID != "" {
		f := types.FileIdentifier(p.FileID)
		filter.FileIdentifier = &f
	}

	hits, err := s.cb.QueryText(ctx, s.rc, p.Text, filter, p.K, p.Offset)
	if err != nil {
		return errResult("query", err)
	}
	return jsonResult(hits)
}
