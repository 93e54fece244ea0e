// Package mcp exposes page analysis and its bookkeeping as MCP tools over
// stdio, so assistants can drive the same coordinator the extension talks to.
package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/pagelens-ai/pagelens/pkg/content"
	"github.com/pagelens-ai/pagelens/pkg/coordinator"
	"github.com/pagelens-ai/pagelens/pkg/history"
	"github.com/pagelens-ai/pagelens/pkg/jsonutil"
)

// Server is a minimal MCP server that communicates over stdio using JSON-RPC 2.0.
type Server struct {
	coord      *coordinator.Coordinator
	history    history.Store
	normalizer *content.Normalizer
	version    string
}

// New creates a new MCP Server. A nil history store disables the history
// backed tools.
func New(coord *coordinator.Coordinator, hist history.Store, normalizer *content.Normalizer, version string) *Server {
	return &Server{
		coord:      coord,
		history:    hist,
		normalizer: normalizer,
		version:    version,
	}
}

// Run reads JSON-RPC requests from r line-by-line and writes responses to w.
// It blocks until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := jsonutil.Unmarshal(line, &req); err != nil {
			s.writeResponse(w, Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		resp := s.dispatch(ctx, &req)
		if resp == nil {
			// notification — no response
			continue
		}
		s.writeResponse(w, *resp)
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil // notification, no response
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) handleInitialize(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      ServerInfo{Name: "pagelens", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		},
	}
}

func (s *Server) handleToolsList(req *Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  ToolsListResult{Tools: allTools},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := jsonutil.Unmarshal(req.Params, &params); err != nil {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
		}
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("unknown tool: %s", params.Name)}},
				IsError: true,
			},
		}
	}

	result := handler(ctx, s, params.Arguments)
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

func (s *Server) writeResponse(w io.Writer, resp Response) {
	data, err := jsonutil.Marshal(resp)
	if err != nil {
		log.Printf("mcp: marshal error: %v", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		log.Printf("mcp: write error: %v", err)
	}
}
