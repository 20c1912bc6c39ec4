package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arcanumlabs/canary/pkg/agentspec"
	"github.com/arcanumlabs/canary/pkg/canary"
	"github.com/arcanumlabs/canary/pkg/deployment"
	"github.com/arcanumlabs/canary/pkg/storage"
)

// ErrorResponse is the standard error JSON envelope.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

// CreateDeploymentRequest is the body for POST /deployments.
type CreateDeploymentRequest struct {
	AgentName    string `json:"agent_name"`
	CanaryConfig string `json:"canary_config"`
	SplitPercent int    `json:"split_percent,omitempty"`
	Duration     string `json:"duration,omitempty"`
	MinSamples   int64  `json:"min_samples,omitempty"`
}

// TrafficRequest is the body for PUT /deployments/:id/traffic.
type TrafficRequest struct {
	SplitPercent int `json:"split_percent"`
}

// RollbackRequest is the body for POST /deployments/:id/rollback.
type RollbackRequest struct {
	Reason string `json:"reason,omitempty"`
}

// EvaluationResponse is the body returned by POST /deployments/:id/evaluate.
type EvaluationResponse struct {
	Deployment *deployment.Record `json:"deployment"`
	Passed     bool               `json:"passed"`
	Reasons    []string           `json:"reasons,omitempty"`
	SampleSize int64              `json:"sample_size"`
	RolledBack bool               `json:"rolled_back"`
	Cached     bool               `json:"cached"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListAgents returns every valid agent spec, sorted by name.
func (s *Server) handleListAgents(c *fiber.Ctx) error {
	specs, err := s.specs.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list agents"})
	}

	return c.JSON(map[string]any{
		"count":  len(specs),
		"agents": specs,
	})
}

// handleGetAgent returns a single agent spec by name.
func (s *Server) handleGetAgent(c *fiber.Ctx) error {
	name := c.Params("name")

	spec, err := s.specs.Get(name)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(spec)
}

// handleAgentRoute returns the agent's live canary deployment, or 204 when
// all traffic goes to the baseline.
func (s *Server) handleAgentRoute(c *fiber.Ctx) error {
	rec, err := s.manager.Route(c.Context(), c.Params("name"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	if rec == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(rec)
}

// handleAgentBaseline returns the agent's promoted baseline config, or 204
// when no promotion has happened yet.
func (s *Server) handleAgentBaseline(c *fiber.Ctx) error {
	config, err := s.manager.Baseline(c.Context(), c.Params("name"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	if config == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(config)
}

// handleListDeployments returns deployments, newest first. Supports
// ?agent= and ?state= filters.
func (s *Server) handleListDeployments(c *fiber.Ctx) error {
	filter := storage.Filter{
		AgentName: c.Query("agent"),
		State:     deployment.State(c.Query("state")),
	}

	records, err := s.manager.List(c.Context(), filter)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list deployments"})
	}

	return c.JSON(map[string]any{
		"count":       len(records),
		"deployments": records,
	})
}

// handleCreateDeployment opens a new canary deployment.
func (s *Server) handleCreateDeployment(c *fiber.Ctx) error {
	var req CreateDeploymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.AgentName == "" || req.CanaryConfig == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "agent_name and canary_config are required"})
	}

	opts := canary.CreateOptions{
		SplitPercent:  req.SplitPercent,
		MinSampleSize: req.MinSamples,
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid duration: " + err.Error()})
		}
		opts.Duration = d
		opts.ExpireImmediately = d == 0
	}

	rec, err := s.manager.Create(c.Context(), req.AgentName, []byte(req.CanaryConfig), opts)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(rec)
}

// handleGetDeployment returns a deployment by id.
func (s *Server) handleGetDeployment(c *fiber.Ctx) error {
	rec, err := s.manager.Get(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(rec)
}

// handleEvaluateDeployment runs quality gates against live metrics.
func (s *Server) handleEvaluateDeployment(c *fiber.Ctx) error {
	eval, err := s.manager.Evaluate(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(EvaluationResponse{
		Deployment: eval.Record,
		Passed:     eval.Verdict.Passed,
		Reasons:    eval.Verdict.ReasonStrings(),
		SampleSize: eval.Verdict.SampleSize,
		RolledBack: eval.RolledBack,
		Cached:     eval.Cached,
	})
}

// handlePromoteDeployment promotes the canary config to baseline.
func (s *Server) handlePromoteDeployment(c *fiber.Ctx) error {
	rec, err := s.manager.Promote(c.Context(), c.Params("id"))
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(rec)
}

// handleRollbackDeployment rolls a deployment back manually.
func (s *Server) handleRollbackDeployment(c *fiber.Ctx) error {
	var req RollbackRequest
	// An empty body is fine; the manager supplies a default reason.
	_ = c.BodyParser(&req)

	rec, err := s.manager.Rollback(c.Context(), c.Params("id"), req.Reason)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(rec)
}

// handleSetTrafficSplit adjusts the canary traffic share.
func (s *Server) handleSetTrafficSplit(c *fiber.Ctx) error {
	var req TrafficRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	rec, err := s.manager.SetTrafficSplit(c.Context(), c.Params("id"), req.SplitPercent)
	if err != nil {
		return s.errorJSON(c, err)
	}

	return c.JSON(rec)
}

// handleCheckExpired sweeps active deployments past their expiry.
func (s *Server) handleCheckExpired(c *fiber.Ctx) error {
	swept, err := s.manager.CheckExpired(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "expiry sweep failed"})
	}

	return c.JSON(map[string]any{
		"count":   len(swept),
		"expired": swept,
	})
}

// errorJSON maps domain errors to HTTP statuses.
func (s *Server) errorJSON(c *fiber.Ctx, err error) error {
	var (
		storeNotFound storage.NotFoundError
		specNotFound  agentspec.NotFoundError
		conflict      storage.ConflictError
		invalidState  canary.InvalidStateError
		insufficient  canary.InsufficientSamplesError
		validation    agentspec.ValidationError
	)

	switch {
	case errors.As(err, &storeNotFound), errors.As(err, &specNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &conflict), errors.As(err, &invalidState):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &insufficient):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "canary config failed validation",
			Reasons: validation.Verdict.ReasonStrings(),
		})
	}

	s.logger.Error("request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
}
