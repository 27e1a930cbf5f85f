// ABOUTME: MCP tool server exposing the pipeline config store to MCP clients over stdio.
// ABOUTME: Registers list, get, settings update, and validation tools against a store.Store.
package mcpserver

import (
	"context"
	"errors"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/pipeconf/pipeline"
	"github.com/2389-research/pipeconf/store"
)

// Config configures the tool server.
type Config struct {
	Store store.Store
	// Sealer seals plaintext secure values in documents passed to validate_pipeline.
	Sealer  pipeline.Sealer
	Version string
}

// Server is an MCP server over a pipeline config store.
type Server struct {
	store  store.Store
	sealer pipeline.Sealer
	mcp    *mcp.Server
}

// New creates a Server with every tool registered.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("mcpserver: store is required")
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:  cfg.Store,
		sealer: cfg.Sealer,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: "pipeconf", Version: version}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves the tools on stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("component=mcp action=start transport=stdio")
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("component=mcp action=stop err=%v", err)
		return err
	}
	log.Printf("component=mcp action=stop")
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_pipelines",
		Description: "List every configured pipeline with its label template, template, locking flag, and ETag.",
	}, s.listPipelines)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_pipeline",
		Description: "Fetch one pipeline configuration document and its ETag by pipeline name.",
	}, s.getPipeline)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "update_pipeline_settings",
		Description: "Change a pipeline's label template, pipeline locking, or timer. Pass the ETag from " +
			"get_pipeline to guard against concurrent edits. An empty timer_spec removes the timer.",
	}, s.updateSettings)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "validate_pipeline",
		Description: "Decode and validate a pipeline configuration document given as JSON or YAML text.",
	}, s.validatePipeline)
}
