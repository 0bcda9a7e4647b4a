package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/relaydesk/relaydesk/internal/auth"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/repository"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

// AgentsHandler manages agent records and credential issuance. Both
// endpoints sit behind the operator (ingest) token.
type AgentsHandler struct {
	agents repository.AgentRepository
	tokens *auth.TokenManager
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agents repository.AgentRepository, tokens *auth.TokenManager) *AgentsHandler {
	return &AgentsHandler{agents: agents, tokens: tokens}
}

type createAgentRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Team  *string `json:"team,omitempty"`
}

// CreateAgent POST /agents.
func (h *AgentsHandler) CreateAgent(c *fiber.Ctx) error {
	var req createAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("name and email required", nil)
	}

	agent := &domain.Agent{
		Name:   strings.TrimSpace(req.Name),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
		Team:   req.Team,
		Active: true,
	}
	if err := h.agents.Create(c.UserContext(), agent); err != nil {
		return apperrors.MapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agent})
}

// IssueToken POST /agents/:id/token. Exchanges the operator credential for
// an agent-scoped JWT used on the workflow management routes.
func (h *AgentsHandler) IssueToken(c *fiber.Ctx) error {
	agent, err := h.agents.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("agent", nil)
		}
		return apperrors.MapError(err)
	}
	if !agent.Active {
		return apperrors.NewForbidden("agent deactivated")
	}

	team := ""
	if agent.Team != nil {
		team = *agent.Team
	}
	token, expiresAt, err := h.tokens.GenerateToken(agent.ID, team)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"token":      token,
		"expires_at": expiresAt,
	}})
}
