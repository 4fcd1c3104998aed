// Package mcp provides an MCP (Model Context Protocol) server exposing mnemo
// capture and recall as tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/utils"
)

// Source tags activity captured through MCP.
const Source = "mcp"

type Config struct {
	// Memory captures and recalls records
	Memory memory.Driver

	// Classifier backs the classify and evaluate_value tools. Defaults to
	// classify.Default().
	Classifier *classify.Classifier

	// Ranges enables the extract_diff_ranges tool when set
	Ranges *diffrange.Extractor

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config     Config
	classifier *classify.Classifier
	logger     *slog.Logger
	mcpServer  *mcp.Server
	handler    *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the mnemo tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config:     c,
		classifier: c.Classifier,
		logger:     logger.OrNop(c.Logger),
	}
	if s.classifier == nil {
		s.classifier = classify.Default()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mnemo",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Memory == nil {
			return nil, errors.New("memory driver is required")
		}
		s.addTools(mcpServer)
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

func (s *Server) addTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{Name: classifyToolName, Description: classifyDescription}, s.handleClassify)
	mcp.AddTool(srv, &mcp.Tool{Name: evaluateToolName, Description: evaluateDescription}, s.handleEvaluate)
	mcp.AddTool(srv, &mcp.Tool{Name: captureToolName, Description: captureDescription}, s.handleCapture)
	mcp.AddTool(srv, &mcp.Tool{Name: resolveToolName, Description: resolveDescription}, s.handleResolve)
	mcp.AddTool(srv, &mcp.Tool{Name: qualityToolName, Description: qualityDescription}, s.handleQuality)
	mcp.AddTool(srv, &mcp.Tool{Name: searchToolName, Description: searchDescription}, s.handleSearch)

	if s.config.Ranges != nil {
		mcp.AddTool(srv, &mcp.Tool{Name: rangesToolName, Description: rangesDescription}, s.handleRanges)
	}
}

// RunStdio serves MCP over stdin and stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
