package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/value"
)

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Text    string                `json:"text"`
	History []record.ActivityType `json:"history,omitempty"`
}

// EvaluateRequest is the body of POST /v1/evaluate. When ActivityType is
// omitted the text is classified first.
type EvaluateRequest struct {
	Text         string               `json:"text"`
	ActivityType *record.ActivityType `json:"activity_type,omitempty"`
}

// EvaluateResponse pairs the scored type with its value.
type EvaluateResponse struct {
	ActivityType record.ActivityType `json:"activity_type"`
	Value        value.Score         `json:"value"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleClassify classifies text without recording anything.
func (s *Server) handleClassify(c *fiber.Ctx) error {
	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	return c.JSON(s.classifier.Classify(req.Text, req.History))
}

// handleEvaluate scores the value of text for an activity type.
func (s *Server) handleEvaluate(c *fiber.Ctx) error {
	var req EvaluateRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	return c.JSON(evaluate(s.classifier, req))
}

func evaluate(cls *classify.Classifier, req EvaluateRequest) EvaluateResponse {
	var t record.ActivityType
	if req.ActivityType != nil {
		t = *req.ActivityType
	} else {
		t = cls.Classify(req.Text, nil).Type
	}
	return EvaluateResponse{ActivityType: t, Value: value.Evaluate(req.Text, t)}
}
