// Package server wires the market-data and optimization tools into an MCP
// server reachable over streamable HTTP.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/gahoccode/vnstock-mcp/internal/openai"
	"github.com/gahoccode/vnstock-mcp/internal/storage"
	"github.com/gahoccode/vnstock-mcp/internal/vnstock"
)

const Version = "1.0.0"

// Server owns the tool dependencies and registers every tool on an MCP
// server instance.
type Server struct {
	data        *vnstock.Client
	store       *storage.Store
	commentator *openai.Commentator
	log         zerolog.Logger
}

func New(data *vnstock.Client, store *storage.Store, commentator *openai.Commentator, log zerolog.Logger) *Server {
	return &Server{data: data, store: store, commentator: commentator, log: log}
}

// MCPServer builds the MCP server with all tools registered.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	m := mcpserver.NewMCPServer("vnstock-mcp", Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	s.registerQuoteTools(m)
	s.registerFinanceTools(m)
	s.registerMarketTools(m)
	s.registerFundTools(m)
	s.registerPortfolioTools(m)
	s.registerMetaTools(m)
	return m
}

// Serve blocks listening for streamable-HTTP MCP traffic on addr, with a
// health endpoint beside it.
func (s *Server) Serve(addr string) error {
	httpServer := mcpserver.NewStreamableHTTPServer(s.MCPServer(),
		mcpserver.WithEndpointPath("/mcp"),
	)
	mux := NewHTTPMux(httpServer)
	s.log.Info().Str("addr", addr).Msg("listening")
	return ListenAndServe(addr, mux)
}

// instrument wraps a handler with usage recording and latency logging.
func (s *Server) instrument(tool, category string, h mcpserver.ToolHandlerFunc) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)
		elapsed := time.Since(start)

		ok := err == nil && (result == nil || !result.IsError)
		if s.store != nil {
			if recErr := s.store.RecordUsage(tool, category, ok, elapsed, start.Unix()); recErr != nil {
				s.log.Warn().Err(recErr).Str("tool", tool).Msg("usage recording failed")
			}
		}
		s.log.Debug().Str("tool", tool).Dur("elapsed", elapsed).Bool("ok", ok).Msg("tool call")
		return result, err
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

func imageResult(png []byte, caption string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(caption),
			mcp.NewImageContent(encodeBase64(png), "image/png"),
		},
	}
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// jsonResult marshals v with indentation for readable tool output.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	return textResult(string(data))
}
