// Package mcp serves cost, budget and processing log queries to MCP clients
// over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/postwright/postwright/pkg/logger"
	"github.com/postwright/postwright/pkg/models"
)

// Budget reports spend against the budget.
type Budget interface {
	Summary(ctx context.Context) (models.CostSummary, error)
	Status(ctx context.Context) (models.BudgetStatus, error)
}

// Costs reads the cost ledger.
type Costs interface {
	Recent(ctx context.Context, limit int) ([]models.CostEntry, error)
}

// Logs queries the processing log.
type Logs interface {
	Query(ctx context.Context, q models.ProcessingLogQuery) ([]models.ProcessingLog, error)
}

// CacheStatter provides prompt cache statistics.
type CacheStatter interface {
	Stats(ctx context.Context) (models.CacheStats, error)
}

// Deps are the data sources behind the tools. Nil sources make their tools
// answer "not configured".
type Deps struct {
	Budget Budget
	Costs  Costs
	Logs   Logs
	Cache  CacheStatter
	Log    *logger.Logger
}

// Server is a minimal MCP server speaking JSON-RPC 2.0, one message per line.
type Server struct {
	deps    Deps
	log     *logger.Logger
	version string
}

// New creates a Server.
func New(deps Deps, version string) *Server {
	l := deps.Log
	if l == nil {
		l = logger.Nop()
	}
	return &Server{deps: deps, log: l.Named("mcp"), version: version}
}

// Run reads requests from r and writes responses to w until r is closed or
// ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, replyError(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return reply(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "postwright", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "ping":
		return reply(req.ID, map[string]any{})
	case "tools/list":
		return reply(req.ID, ToolsListResult{Tools: allTools})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		if len(req.ID) == 0 {
			return nil
		}
		return replyError(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) callTool(ctx context.Context, req *Request) *Response {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return replyError(req.ID, CodeInvalidParams, "invalid params")
	}

	handler, ok := toolHandlers[params.Name]
	if !ok {
		return reply(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
	}
	s.log.Debugw("tool call", "tool", params.Name)
	return reply(req.ID, handler(ctx, s, params.Arguments))
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Errorw("marshal response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Errorw("write response", "error", err)
	}
}
