package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/value"
)

var (
	classifyToolName    = "classify"
	classifyDescription = "Classify a piece of development activity (bug_fix, feature_add, code_change, refactor, solution_design, test, documentation) and extract the files, functions, classes and keywords it mentions."

	evaluateToolName    = "evaluate_value"
	evaluateDescription = "Score how valuable a piece of development activity is to remember, from 0 to 100, with a per-dimension breakdown."

	captureToolName    = "capture"
	captureDescription = "Offer development activity to the memory layer. High-value activity is recorded, low-value activity is discarded, and ambiguous activity returns a pending_id to confirm with resolve_confirmation."

	resolveToolName    = "resolve_confirmation"
	resolveDescription = "Answer a pending capture confirmation with yes, no or maybe."

	qualityToolName    = "score_quality"
	qualityDescription = "Compute the quality metrics (relevance, freshness, completeness, accuracy, usefulness) of a stored record."

	rangesToolName    = "extract_diff_ranges"
	rangesDescription = "Report the line ranges changed in a file relative to the last commit."

	searchToolName    = "hybrid_search"
	searchDescription = "Search stored development memory. Combines semantic similarity with file, tag, recency and quality signals and returns the best matching records."
)

// ClassifyInput represents the input arguments for the classify tool.
type ClassifyInput struct {
	Text    string   `json:"text" jsonschema:"the activity text to classify"`
	History []string `json:"history,omitempty" jsonschema:"recent activity types, oldest first"`
}

// EvaluateInput represents the input arguments for the evaluate_value tool.
type EvaluateInput struct {
	Text         string `json:"text" jsonschema:"the activity text to score"`
	ActivityType string `json:"activity_type,omitempty" jsonschema:"activity type; classified from the text when omitted"`
}

// EvaluateOutput is the scored type and its value.
type EvaluateOutput struct {
	ActivityType record.ActivityType `json:"activity_type"`
	Value        value.Score         `json:"value"`
}

// CaptureInput represents the input arguments for the capture tool.
type CaptureInput struct {
	Content  string `json:"content" jsonschema:"what was done, in a sentence or two"`
	Dir      string `json:"dir,omitempty" jsonschema:"a directory inside the project"`
	FilePath string `json:"file_path,omitempty" jsonschema:"the changed file"`
}

// ResolveInput represents the input arguments for the resolve_confirmation tool.
type ResolveInput struct {
	PendingID string `json:"pending_id" jsonschema:"the pending_id returned by capture"`
	Choice    string `json:"choice" jsonschema:"yes, no or maybe"`
}

// QualityInput represents the input arguments for the score_quality tool.
type QualityInput struct {
	RecordID string `json:"record_id" jsonschema:"the record id"`
}

// RangesInput represents the input arguments for the extract_diff_ranges tool.
type RangesInput struct {
	Path string `json:"path" jsonschema:"path of the changed file"`
}

// SearchInput represents the input arguments for the hybrid_search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"the search query text"`
	ProjectID string   `json:"project_id,omitempty" jsonschema:"restrict to one project"`
	Dir       string   `json:"dir,omitempty" jsonschema:"resolve the project from a directory"`
	FilePath  string   `json:"file_path,omitempty" jsonschema:"boost records about this file"`
	Tags      []string `json:"tags,omitempty" jsonschema:"boost records with these tags"`
	Limit     int      `json:"limit,omitempty" jsonschema:"number of results to return (default: 10)"`
}

// SearchOutput represents the output of the hybrid_search tool.
type SearchOutput struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// SearchResult is one record, trimmed for model context.
type SearchResult struct {
	RecordID   string              `json:"record_id"`
	Type       record.ActivityType `json:"type"`
	Content    string              `json:"content"`
	FilePath   string              `json:"file_path,omitempty"`
	LineRanges []record.LineRange  `json:"line_ranges,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
	Score      float64             `json:"score"`
	Quality    float64             `json:"quality"`
}

const defaultSearchLimit = 10

func (s *Server) handleClassify(_ context.Context, _ *mcp.CallToolRequest, input ClassifyInput) (*mcp.CallToolResult, classify.Classification, error) {
	if input.Text == "" {
		return toolError("text is required"), classify.Classification{}, nil
	}

	history, err := record.ParseActivityTypes(input.History)
	if err != nil {
		return toolError(err.Error()), classify.Classification{}, nil
	}

	return toolResult(s.classifier.Classify(input.Text, history))
}

func (s *Server) handleEvaluate(_ context.Context, _ *mcp.CallToolRequest, input EvaluateInput) (*mcp.CallToolResult, EvaluateOutput, error) {
	if input.Text == "" {
		return toolError("text is required"), EvaluateOutput{}, nil
	}

	var t record.ActivityType
	if input.ActivityType != "" {
		parsed, err := record.ParseActivityType(input.ActivityType)
		if err != nil {
			return toolError(err.Error()), EvaluateOutput{}, nil
		}
		t = parsed
	} else {
		t = s.classifier.Classify(input.Text, nil).Type
	}

	return toolResult(EvaluateOutput{ActivityType: t, Value: value.Evaluate(input.Text, t)})
}

func (s *Server) handleCapture(ctx context.Context, _ *mcp.CallToolRequest, input CaptureInput) (*mcp.CallToolResult, memory.CaptureOutcome, error) {
	out, err := s.config.Memory.Capture(ctx, memory.Activity{
		Content:  input.Content,
		Dir:      input.Dir,
		FilePath: input.FilePath,
		Source:   Source,
	})
	if err != nil {
		s.logger.Error("MCP capture failed", "error", err)
		return toolError(fmt.Sprintf("Capture failed: %v", err)), memory.CaptureOutcome{}, nil
	}
	return toolResult(*out)
}

func (s *Server) handleResolve(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, memory.CaptureOutcome, error) {
	choice, err := capture.ParseChoice(input.Choice)
	if err != nil {
		return toolError(err.Error()), memory.CaptureOutcome{}, nil
	}

	out, err := s.config.Memory.Resolve(ctx, input.PendingID, choice)
	if err != nil {
		s.logger.Error("MCP resolve failed", "pending_id", input.PendingID, "error", err)
		return toolError(fmt.Sprintf("Resolve failed: %v", err)), memory.CaptureOutcome{}, nil
	}
	return toolResult(*out)
}

func (s *Server) handleQuality(ctx context.Context, _ *mcp.CallToolRequest, input QualityInput) (*mcp.CallToolResult, record.QualityMetrics, error) {
	if input.RecordID == "" {
		return toolError("record_id is required"), record.QualityMetrics{}, nil
	}

	q, err := s.config.Memory.Quality(ctx, input.RecordID)
	if err != nil {
		return toolError(fmt.Sprintf("Quality scoring failed: %v", err)), record.QualityMetrics{}, nil
	}
	return toolResult(q)
}

func (s *Server) handleRanges(ctx context.Context, _ *mcp.CallToolRequest, input RangesInput) (*mcp.CallToolResult, diffrange.Result, error) {
	if input.Path == "" {
		return toolError("path is required"), diffrange.Result{}, nil
	}
	return toolResult(s.config.Ranges.Extract(ctx, input.Path))
}

// handleSearch processes a hybrid_search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	s.logger.Debug("MCP search request", "query", input.Query, "limit", limit)

	results, err := s.config.Memory.Recall(ctx, memory.Query{
		Text:      input.Query,
		ProjectID: input.ProjectID,
		Dir:       input.Dir,
		FilePath:  input.FilePath,
		Tags:      input.Tags,
		Limit:     limit,
	})
	if err != nil {
		s.logger.Error("MCP search failed", "error", err)
		return toolError(fmt.Sprintf("Search failed: %v", err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: make([]SearchResult, 0, len(results)),
	}
	for _, r := range results {
		output.Results = append(output.Results, buildSearchResult(r))
	}
	output.Count = len(output.Results)

	return toolResult(output)
}

func buildSearchResult(r retrieval.Result) SearchResult {
	return SearchResult{
		RecordID:   r.Record.ID,
		Type:       r.Record.Type,
		Content:    r.Record.Content,
		FilePath:   r.Record.FilePath,
		LineRanges: r.Record.LineRanges,
		Tags:       r.Record.Tags,
		Score:      r.Score,
		Quality:    r.Record.QualityScore,
	}
}

// toolResult serializes the structured output as JSON for the text field.
// Tools returning structured content should also return serialized JSON in
// a TextContent block for backwards compatibility.
func toolResult[T any](out T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(out)
	if err != nil {
		var zero T
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, out, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
