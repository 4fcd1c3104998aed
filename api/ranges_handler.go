package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/storage"
)

// RangesRequest is the body of POST /v1/ranges.
type RangesRequest struct {
	Path string `json:"path"`
}

// handleRanges extracts the changed line ranges of a file.
func (s *Server) handleRanges(c *fiber.Ctx) error {
	if s.config.Ranges == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "range extraction is not configured")
	}

	var req RangesRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" {
		return errorJSON(c, fiber.StatusBadRequest, "path is required")
	}

	return c.JSON(s.config.Ranges.Extract(c.Context(), req.Path))
}

// handleStatus reports the project at ?dir= (default: server working
// directory).
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, err := s.memory.Status(c.Context(), c.Query("dir"))
	if err != nil {
		s.logger.Error("status failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "status failed")
	}
	return c.JSON(st)
}

// handleEndSession completes the active session of a project.
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	sess, err := s.memory.EndSession(c.Context(), c.Params("id"))
	if err != nil {
		if storage.IsNotFound(err) {
			return errorJSON(c, fiber.StatusNotFound, "no active session")
		}
		s.logger.Error("end session failed", "project", c.Params("id"), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "end session failed")
	}
	return c.JSON(sess)
}

// handleCacheStats reports retrieval cache counters.
func (s *Server) handleCacheStats(c *fiber.Ctx) error {
	if s.config.Retrieval == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "retrieval engine is not configured")
	}
	return c.JSON(s.config.Retrieval.Stats())
}

// handleClearCache empties the retrieval caches.
func (s *Server) handleClearCache(c *fiber.Ctx) error {
	if s.config.Retrieval == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "retrieval engine is not configured")
	}
	s.config.Retrieval.Clear()
	return c.SendStatus(fiber.StatusNoContent)
}
