package workflow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// ConditionResult is the per-condition diagnostic produced by evaluation.
type ConditionResult struct {
	Field    string                   `json:"field"`
	Operator domain.ConditionOperator `json:"operator"`
	Expected any                      `json:"expected,omitempty"`
	Actual   any                      `json:"actual"`
	Matched  bool                     `json:"matched"`
}

// EvaluateCondition checks one condition against a ticket snapshot and the
// triggering event's data. It is a pure function: no I/O, no mutation, so
// the live engine and the dry-run tester share it byte for byte.
func EvaluateCondition(cond domain.RuleCondition, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) ConditionResult {
	actual := resolveField(cond.Field, ticket, customer, eventData)
	result := ConditionResult{
		Field:    cond.Field,
		Operator: cond.Operator,
		Expected: cond.Value,
		Actual:   actual,
	}

	switch cond.Operator {
	case domain.OpEquals:
		result.Matched = valuesEqual(actual, cond.Value)
	case domain.OpNotEquals:
		result.Matched = !valuesEqual(actual, cond.Value)
	case domain.OpContains:
		result.Matched = valueContains(actual, cond.Value)
	case domain.OpGreaterThan:
		result.Matched = valueCompare(cond.Field, actual, cond.Value) > 0
	case domain.OpLessThan:
		result.Matched = valueCompare(cond.Field, actual, cond.Value) < 0
	case domain.OpIsEmpty:
		result.Matched = valueEmpty(actual)
	case domain.OpIsNotEmpty:
		result.Matched = !valueEmpty(actual)
	}
	return result
}

// RuleMatches applies AND semantics over a rule's conditions. An empty
// condition list matches unconditionally.
func RuleMatches(rule *domain.WorkflowRule, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) (bool, []ConditionResult) {
	results := make([]ConditionResult, 0, len(rule.Conditions))
	matched := true
	for _, cond := range rule.Conditions {
		result := EvaluateCondition(cond, ticket, customer, eventData)
		results = append(results, result)
		if !result.Matched {
			matched = false
		}
	}
	return matched, results
}

// resolveField reads a condition field from the ticket snapshot, the
// customer, or the event payload. Unknown fields fall back to event data so
// trigger-specific values (old_status, new_priority) are addressable.
func resolveField(field string, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) any {
	switch field {
	case "status":
		if ticket == nil {
			return nil
		}
		return string(ticket.Status)
	case "priority":
		if ticket == nil {
			return nil
		}
		return string(ticket.Priority)
	case "queue_type":
		if ticket == nil {
			return nil
		}
		return string(ticket.QueueType)
	case "subject":
		if ticket == nil {
			return nil
		}
		return ticket.Subject
	case "tags":
		if ticket == nil {
			return nil
		}
		return ticket.Tags
	case "ai_handled":
		if ticket == nil {
			return nil
		}
		return ticket.AIHandled
	case "ai_confidence":
		if ticket == nil || ticket.AIConfidence == nil {
			return nil
		}
		return *ticket.AIConfidence
	case "assigned_agent_id":
		if ticket == nil || ticket.AssignedAgentID == nil {
			return nil
		}
		return *ticket.AssignedAgentID
	case "customer.email":
		if customer == nil || customer.Email == nil {
			return nil
		}
		return *customer.Email
	case "customer.name":
		if customer == nil || customer.Name == nil {
			return nil
		}
		return *customer.Name
	case "customer.preferred_channel":
		if customer == nil {
			return nil
		}
		return string(customer.PreferredChannel)
	case "customer.preferred_language":
		if customer == nil || customer.Metadata == nil {
			return nil
		}
		return customer.Metadata["preferred_language"]
	default:
		if eventData == nil {
			return nil
		}
		return eventData[field]
	}
}

func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return stringify(actual) == stringify(expected)
}

// valueContains handles tag/array membership and substring matching.
func valueContains(actual, expected any) bool {
	needle := stringify(expected)
	switch value := actual.(type) {
	case []string:
		for _, item := range value {
			if item == needle {
				return true
			}
		}
		return false
	case []any:
		for _, item := range value {
			if stringify(item) == needle {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
	default:
		return false
	}
}

// valueCompare orders two values: priorities compare by rank, everything
// else numerically. Returns 0 on incomparable inputs so neither
// greater_than nor less_than matches.
func valueCompare(field string, actual, expected any) int {
	if isPriorityField(field, actual, expected) {
		actualRank, okA := domain.PriorityRank[domain.TicketPriority(stringify(actual))]
		expectedRank, okB := domain.PriorityRank[domain.TicketPriority(stringify(expected))]
		if okA && okB {
			return actualRank - expectedRank
		}
		return 0
	}

	actualNum, okA := toFloat(actual)
	expectedNum, okB := toFloat(expected)
	if !okA || !okB {
		return 0
	}
	switch {
	case actualNum > expectedNum:
		return 1
	case actualNum < expectedNum:
		return -1
	default:
		return 0
	}
}

func isPriorityField(field string, actual, expected any) bool {
	if field == "priority" || strings.HasSuffix(field, "_priority") {
		return true
	}
	return domain.IsValidPriority(domain.TicketPriority(stringify(actual))) &&
		domain.IsValidPriority(domain.TicketPriority(stringify(expected)))
}

func valueEmpty(actual any) bool {
	switch value := actual.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(value) == ""
	case []string:
		return len(value) == 0
	case []any:
		return len(value) == 0
	case map[string]any:
		return len(value) == 0
	default:
		return false
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
