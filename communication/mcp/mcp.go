// Package mcp exposes an engine as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"tqa/communication"
	"tqa/engine"
)

const (
	AnswerTool = "answer_table_question"
	RunTool    = "get_run"
)

type AnswerInput struct {
	Question   string `json:"question"`
	Table      string `json:"table"`
	Gold       string `json:"gold_answer,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
}

type RunInput struct {
	RunID string `json:"run_id"`
}

type Server struct {
	engine engine.Engine
	mcp    *server.MCPServer
}

func New(eng engine.Engine, version string) *Server {
	if eng == nil {
		panic("MCP server requires an engine")
	}
	s := &Server{
		engine: eng,
		mcp: server.NewMCPServer("tqa", version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(mcpgo.NewTool(AnswerTool,
		mcpgo.WithDescription("Answer a question about a table (markdown, CSV, TSV or aligned text) with tree search over table operations"),
		mcpgo.WithString("question", mcpgo.Required(), mcpgo.Description("Question about the table")),
		mcpgo.WithString("table", mcpgo.Required(), mcpgo.Description("Table text, first line is the header")),
		mcpgo.WithString("gold_answer", mcpgo.Description("Expected answer, used only to grade the result")),
		mcpgo.WithNumber("iterations", mcpgo.Description("Search iterations, overrides the server default")),
	), mcpgo.NewTypedToolHandler(s.answer))

	s.mcp.AddTool(mcpgo.NewTool(RunTool,
		mcpgo.WithDescription("Fetch a stored run with every candidate reasoning path"),
		mcpgo.WithString("run_id", mcpgo.Required(), mcpgo.Description("Run ID returned by "+AnswerTool)),
	), mcpgo.NewTypedToolHandler(s.run))
	return s
}

// Serve speaks MCP on stdin and stdout until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) answer(ctx context.Context, _ mcpgo.CallToolRequest, in AnswerInput) (*mcpgo.CallToolResult, error) {
	req := engine.Request{Question: in.Question, Table: in.Table, Iterations: in.Iterations}
	if gold := strings.TrimSpace(in.Gold); gold != "" {
		req.Gold = gold
	}
	res, err := s.engine.Answer(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("tool call failed")
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(communication.Summarize(res))
}

func (s *Server) run(ctx context.Context, _ mcpgo.CallToolRequest, in RunInput) (*mcpgo.CallToolResult, error) {
	if strings.TrimSpace(in.RunID) == "" {
		return mcpgo.NewToolResultError("run_id is required"), nil
	}
	res, err := s.engine.Run(ctx, in.RunID)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
