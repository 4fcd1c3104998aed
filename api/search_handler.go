package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
)

// maxBatchQueries caps POST /v1/search/batch.
const maxBatchQueries = 50

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []retrieval.Result `json:"results"`
	Count   int                `json:"count"`
}

// BatchSearchRequest is the body of POST /v1/search/batch.
type BatchSearchRequest struct {
	Queries []memory.Query `json:"queries"`
}

// BatchSearchItem is the outcome of one batched query.
type BatchSearchItem struct {
	Results []retrieval.Result `json:"results"`
	Error   string             `json:"error,omitempty"`
}

// BatchSearchResponse lines up with BatchSearchRequest.Queries.
type BatchSearchResponse struct {
	Results []BatchSearchItem `json:"results"`
}

// handleSearch handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - project (optional): project id to search; all projects when omitted
//   - dir (optional): resolve the project from a directory instead
//   - file (optional): boost records about this file
//   - tags (optional): comma-separated tags to boost
//   - limit (optional): maximum number of results
//   - semantic (optional): "false" returns unscored candidates
func (s *Server) handleSearch(c *fiber.Ctx) error {
	q := memory.Query{
		Text:      c.Query("query"),
		ProjectID: c.Query("project"),
		Dir:       c.Query("dir"),
		FilePath:  c.Query("file"),
		Tags:      config.SplitList(c.Query("tags")),
	}
	if q.Text == "" {
		return errorJSON(c, fiber.StatusBadRequest, "query parameter is required")
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			return errorJSON(c, fiber.StatusBadRequest, "limit must be a positive integer")
		}
		q.Limit = limit
	}
	q.DisableSemantic = c.Query("semantic") == "false"

	results, err := s.memory.Recall(c.Context(), q)
	if err != nil {
		if errors.Is(err, retrieval.ErrEmptyQuery) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		s.logger.Error("search failed", "query", q.Text, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "search failed")
	}
	if results == nil {
		results = []retrieval.Result{}
	}

	return c.JSON(SearchResponse{Query: q.Text, Results: results, Count: len(results)})
}

// handleBatchSearch runs several searches concurrently.
func (s *Server) handleBatchSearch(c *fiber.Ctx) error {
	var req BatchSearchRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.Queries) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "queries are required")
	}
	if len(req.Queries) > maxBatchQueries {
		return errorJSON(c, fiber.StatusBadRequest, "too many queries (max "+strconv.Itoa(maxBatchQueries)+")")
	}

	batch := s.memory.BatchRecall(c.Context(), req.Queries)
	resp := BatchSearchResponse{Results: make([]BatchSearchItem, len(batch))}
	for i, r := range batch {
		item := BatchSearchItem{Results: r.Results}
		if item.Results == nil {
			item.Results = []retrieval.Result{}
		}
		if r.Err != nil {
			item.Error = r.Err.Error()
		}
		resp.Results[i] = item
	}

	return c.JSON(resp)
}
