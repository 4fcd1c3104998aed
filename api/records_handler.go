package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// FeedbackRequest is the body of POST /v1/records/:id/feedback.
type FeedbackRequest struct {
	Kind   memory.FeedbackKind `json:"kind"`
	Rating float64             `json:"rating,omitempty"`
}

// handleGetRecord returns a single record by id.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	rec, err := s.memory.Record(c.Context(), c.Params("id"))
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(rec)
}

// handleRecordQuality recomputes the quality metrics of a record.
func (s *Server) handleRecordQuality(c *fiber.Ctx) error {
	q, err := s.memory.Quality(c.Context(), c.Params("id"))
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(q)
}

// handleRecordFeedback records a reference or rating.
func (s *Server) handleRecordFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	rec, err := s.memory.Feedback(c.Context(), c.Params("id"), req.Kind, req.Rating)
	if err != nil {
		return s.recordError(c, err)
	}
	return c.JSON(rec)
}

func (s *Server) recordError(c *fiber.Ctx, err error) error {
	switch {
	case storage.IsNotFound(err):
		return errorJSON(c, fiber.StatusNotFound, "record not found")
	case errors.Is(err, memory.ErrInvalidFeedback):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	default:
		s.logger.Error("record request failed", "id", c.Params("id"), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "record request failed")
	}
}
