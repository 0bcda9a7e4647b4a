package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/relaydesk/relaydesk/internal/api/dto"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/repository"
	"github.com/relaydesk/relaydesk/internal/workflow"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

// WorkflowHandler manages automation rule CRUD and dry-run testing.
type WorkflowHandler struct {
	rules   repository.WorkflowRuleRepository
	tickets repository.TicketRepository
	engine  *workflow.Engine
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(rules repository.WorkflowRuleRepository, tickets repository.TicketRepository, engine *workflow.Engine) *WorkflowHandler {
	return &WorkflowHandler{rules: rules, tickets: tickets, engine: engine}
}

// ListRules GET /workflows.
func (h *WorkflowHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.rules.List(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.WorkflowRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateRule POST /workflows.
func (h *WorkflowHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.WorkflowRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := ruleFromRequest(req)
	if err != nil {
		return err
	}
	if err := h.rules.Create(c.UserContext(), rule); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// UpdateRule PUT /workflows/:id.
func (h *WorkflowHandler) UpdateRule(c *fiber.Ctx) error {
	var req dto.WorkflowRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := ruleFromRequest(req)
	if err != nil {
		return err
	}
	rule.ID = c.Params("id")
	if err := h.rules.Update(c.UserContext(), rule); err != nil {
		return apperrors.MapError(err)
	}
	stored, err := h.rules.GetByID(c.UserContext(), rule.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": ruleResponse(stored)})
}

// TestRule POST /workflows/test. Evaluates the submitted rule against a
// stored, inline, or fabricated ticket without persisting anything or
// executing actions.
func (h *WorkflowHandler) TestRule(c *fiber.Ctx) error {
	var req dto.TestRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := ruleFromRequest(req.Rule)
	if err != nil {
		return err
	}

	ticket := workflow.SampleTicket()
	switch {
	case req.TicketID != "":
		stored, err := h.tickets.GetByID(c.UserContext(), req.TicketID)
		if err != nil {
			return apperrors.MapError(err)
		}
		ticket = stored
	case req.Ticket != nil:
		applyTestTicket(ticket, req.Ticket)
	}

	report := h.engine.TestRule(rule, ticket, nil, req.EventData)
	return c.JSON(fiber.Map{"data": report})
}

func ruleFromRequest(req dto.WorkflowRuleRequest) (*domain.WorkflowRule, error) {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	rule := &domain.WorkflowRule{
		Name:         req.Name,
		IsActive:     active,
		TriggerEvent: domain.TriggerEvent(req.Trigger),
		Conditions:   req.Conditions,
		Actions:      req.Actions,
		Priority:     req.Priority,
	}
	if err := rule.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	return rule, nil
}

func applyTestTicket(ticket *domain.Ticket, t *dto.TestTicket) {
	if t.Subject != "" {
		ticket.Subject = t.Subject
	}
	if t.Status != "" {
		ticket.Status = domain.TicketStatus(t.Status)
	}
	if t.Priority != "" {
		ticket.Priority = domain.TicketPriority(t.Priority)
	}
	if t.QueueType != "" {
		ticket.QueueType = domain.QueueType(t.QueueType)
	}
	if t.Tags != nil {
		ticket.Tags = t.Tags
	}
	if t.AIHandled != nil {
		ticket.AIHandled = *t.AIHandled
	}
	if t.AssignedAgentID != "" {
		agentID := t.AssignedAgentID
		ticket.AssignedAgentID = &agentID
	}
}

func ruleResponse(rule *domain.WorkflowRule) dto.WorkflowRuleResponse {
	return dto.WorkflowRuleResponse{
		ID:         rule.ID,
		Name:       rule.Name,
		IsActive:   rule.IsActive,
		Trigger:    string(rule.TriggerEvent),
		Conditions: rule.Conditions,
		Actions:    rule.Actions,
		Priority:   rule.Priority,
		CreatedAt:  rule.CreatedAt,
	}
}
