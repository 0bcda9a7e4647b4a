package domain

import (
	"fmt"
	"time"
)

// TriggerEvent enumerates the ticket-lifecycle occurrences that cause
// workflow evaluation.
type TriggerEvent string

const (
	TriggerTicketCreated   TriggerEvent = "ticket_created"
	TriggerStatusChanged   TriggerEvent = "status_changed"
	TriggerPriorityChanged TriggerEvent = "priority_changed"
	TriggerTicketAssigned  TriggerEvent = "ticket_assigned"
	TriggerSLABreach       TriggerEvent = "sla_breach"
	TriggerMessageReceived TriggerEvent = "message_received"
)

// IsValidTrigger reports whether the trigger event is part of the fixed set.
func IsValidTrigger(t TriggerEvent) bool {
	switch t {
	case TriggerTicketCreated, TriggerStatusChanged, TriggerPriorityChanged,
		TriggerTicketAssigned, TriggerSLABreach, TriggerMessageReceived:
		return true
	}
	return false
}

// ConditionOperator enumerates supported condition operators.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpContains    ConditionOperator = "contains"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpIsEmpty     ConditionOperator = "is_empty"
	OpIsNotEmpty  ConditionOperator = "is_not_empty"
)

// RuleCondition is one field/operator/value predicate. All conditions of a
// rule must hold for the rule to match.
type RuleCondition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value,omitempty"`
}

// ActionType enumerates supported workflow action kinds.
type ActionType string

const (
	ActionChangeStatus     ActionType = "change_status"
	ActionChangePriority   ActionType = "change_priority"
	ActionAssignAgent      ActionType = "assign_agent"
	ActionAddTag           ActionType = "add_tag"
	ActionSendNotification ActionType = "send_notification"
	ActionSendWebhook      ActionType = "send_webhook"
	ActionSendMessage      ActionType = "send_message"
)

// RuleAction is one side-effect instruction resolved when a rule matches.
// Filter narrows assignment targets (e.g. a team name for round-robin);
// Template carries the message body for send_message actions.
type RuleAction struct {
	Type     ActionType `json:"type"`
	Value    string     `json:"value,omitempty"`
	Filter   string     `json:"filter,omitempty"`
	Template string     `json:"template,omitempty"`
}

// WorkflowRule is a configured automation: trigger + conditions + actions.
// Higher Priority runs first; ties break on earliest CreatedAt.
type WorkflowRule struct {
	ID           string
	Name         string
	IsActive     bool
	TriggerEvent TriggerEvent
	Conditions   []RuleCondition
	Actions      []RuleAction
	Priority     int
	CreatedAt    time.Time
}

var validOperators = map[ConditionOperator]bool{
	OpEquals:      true,
	OpNotEquals:   true,
	OpContains:    true,
	OpGreaterThan: true,
	OpLessThan:    true,
	OpIsEmpty:     true,
	OpIsNotEmpty:  true,
}

var validActionTypes = map[ActionType]bool{
	ActionChangeStatus:     true,
	ActionChangePriority:   true,
	ActionAssignAgent:      true,
	ActionAddTag:           true,
	ActionSendNotification: true,
	ActionSendWebhook:      true,
	ActionSendMessage:      true,
}

// Validate rejects malformed rule shapes before persistence. Unknown
// operators and action types are rejected rather than silently ignored.
func (r *WorkflowRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name required")
	}
	if !IsValidTrigger(r.TriggerEvent) {
		return fmt.Errorf("unknown trigger event %q", r.TriggerEvent)
	}
	for i, cond := range r.Conditions {
		if cond.Field == "" {
			return fmt.Errorf("condition %d: field required", i)
		}
		if !validOperators[cond.Operator] {
			return fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator)
		}
	}
	for i, action := range r.Actions {
		if !validActionTypes[action.Type] {
			return fmt.Errorf("action %d: unknown action type %q", i, action.Type)
		}
		if action.Type == ActionSendMessage && action.Template == "" {
			return fmt.Errorf("action %d: send_message requires a template", i)
		}
	}
	return nil
}
