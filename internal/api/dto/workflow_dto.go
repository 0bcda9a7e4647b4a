package dto

import (
	"time"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// WorkflowRuleRequest is the create/update payload for automation rules.
type WorkflowRuleRequest struct {
	Name       string                 `json:"name"`
	IsActive   *bool                  `json:"is_active,omitempty"`
	Trigger    string                 `json:"trigger_event"`
	Conditions []domain.RuleCondition `json:"conditions"`
	Actions    []domain.RuleAction    `json:"actions"`
	Priority   int                    `json:"priority"`
}

// WorkflowRuleResponse is the stored rule representation.
type WorkflowRuleResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	IsActive   bool                   `json:"is_active"`
	Trigger    string                 `json:"trigger_event"`
	Conditions []domain.RuleCondition `json:"conditions"`
	Actions    []domain.RuleAction    `json:"actions"`
	Priority   int                    `json:"priority"`
	CreatedAt  time.Time              `json:"created_at"`
}

// TestRuleRequest exercises a rule in dry-run mode. Either a stored
// ticket_id or an inline ticket snapshot may be supplied; with neither, a
// fabricated sample ticket is used.
type TestRuleRequest struct {
	Rule      WorkflowRuleRequest `json:"rule"`
	TicketID  string              `json:"ticket_id,omitempty"`
	Ticket    *TestTicket         `json:"ticket,omitempty"`
	EventData map[string]any      `json:"event_data,omitempty"`
}

// TestTicket is an inline ticket snapshot for dry runs.
type TestTicket struct {
	Subject         string   `json:"subject,omitempty"`
	Status          string   `json:"status,omitempty"`
	Priority        string   `json:"priority,omitempty"`
	QueueType       string   `json:"queue_type,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	AIHandled       *bool    `json:"ai_handled,omitempty"`
	AssignedAgentID string   `json:"assigned_agent_id,omitempty"`
}
