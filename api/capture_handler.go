package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

const captureSource = "api"

// ResolveRequest is the body of POST /v1/pending/:id.
type ResolveRequest struct {
	Choice string `json:"choice"`
}

// QueuedResponse acknowledges an async capture.
type QueuedResponse struct {
	Queued bool `json:"queued"`
}

// handleCapture handles POST /v1/capture.
// Query parameters:
//   - async (optional): when "true" the activity is queued on the worker
//     pool and 202 is returned immediately
func (s *Server) handleCapture(c *fiber.Ctx) error {
	var a memory.Activity
	if err := c.BodyParser(&a); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if a.Source == "" {
		a.Source = captureSource
	}

	if c.QueryBool("async") {
		if s.config.Pool == nil {
			return errorJSON(c, fiber.StatusServiceUnavailable, "async capture is not configured")
		}
		if a.Content == "" {
			return errorJSON(c, fiber.StatusBadRequest, capture.ErrEmptyContent.Error())
		}
		if !s.config.Pool.Enqueue(worker.Job{Activity: a}) {
			return errorJSON(c, fiber.StatusServiceUnavailable, "capture queue is full")
		}
		return c.Status(fiber.StatusAccepted).JSON(QueuedResponse{Queued: true})
	}

	out, err := s.memory.Capture(c.Context(), a)
	if err != nil {
		if errors.Is(err, capture.ErrEmptyContent) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		s.logger.Error("capture failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "capture failed")
	}

	return c.JSON(out)
}

// handleListPending returns the outstanding confirmations.
func (s *Server) handleListPending(c *fiber.Ctx) error {
	return c.JSON(s.memory.Pending())
}

// handleResolvePending answers a pending confirmation.
func (s *Server) handleResolvePending(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	choice, err := capture.ParseChoice(req.Choice)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	out, err := s.memory.Resolve(c.Context(), c.Params("id"), choice)
	if err != nil {
		s.logger.Error("resolve failed", "id", c.Params("id"), "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "resolve failed")
	}

	return c.JSON(out)
}
