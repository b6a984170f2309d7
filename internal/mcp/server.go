package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ontosearch/internal/config"
	apperrors "github.com/Aman-CERP/ontosearch/internal/errors"
	"github.com/Aman-CERP/ontosearch/internal/index"
	"github.com/Aman-CERP/ontosearch/internal/query"
	"github.com/Aman-CERP/ontosearch/internal/search"
	"github.com/Aman-CERP/ontosearch/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "ontosearch"

// Searcher is the part of the search manager the server uses.
type Searcher interface {
	SearchSync(ctx context.Context, text string) (*query.ResultSet, error)
	Stats() search.Stats
}

// Server bridges MCP clients with a search manager.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	config   *config.Config
	timeout  time.Duration
	logger   *slog.Logger
}

// NewServer creates an MCP server backed by searcher.
func NewServer(searcher Searcher, cfg *config.Config) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	timeout, err := cfg.SearchTimeout()
	if err != nil {
		return nil, err
	}

	s := &Server{
		searcher: searcher,
		config:   cfg,
		timeout:  timeout,
		logger:   slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: version.Version,
	}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the knowledge base by display name, identifier and annotation values. Returns matching items with the field that matched.",
	}, s.mcpSearchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report whether the search index is current, which categories are indexed and which indexes are persisted.",
	}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 2))
}

// Search runs a search and converts the result set to tool output.
func (s *Server) Search(ctx context.Context, input SearchInput) (SearchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	requestID := generateRequestID()
	limit := clampLimit(input.Limit)
	start := time.Now()

	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", input.Query),
		slog.Int("limit", limit))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rs, err := s.searcher.SearchSync(ctx, input.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.New(apperrors.ErrCodeSearchTimeout,
				fmt.Sprintf("search did not finish within %s", s.timeout), err).
				WithSuggestion("Retry, or raise search.timeout.")
		}
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	results := rs.Results()
	out := SearchOutput{
		Query:   input.Query,
		Total:   len(results),
		Results: results,
	}
	if len(results) > limit {
		out.Results = results[:limit]
		out.Truncated = true
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", out.Total))
	return out, nil
}

// IndexStatus reports the live manager state and persisted indexes.
func (s *Server) IndexStatus() (*IndexStatusOutput, error) {
	out := &IndexStatusOutput{
		Search:    s.searcher.Stats(),
		IndexRoot: s.config.IndexRoot(),
		Persisted: []PersistedIndex{},
	}
	if out.IndexRoot != "" {
		statuses, err := index.ListMarkers(out.IndexRoot)
		if err != nil {
			return nil, err
		}
		for _, st := range statuses {
			out.Persisted = append(out.Persisted, toPersistedIndex(st))
		}
	}
	return out, nil
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.Search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.IndexStatus()
	if err != nil {
		return nil, nil, MapError(err)
	}
	return nil, out, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
