package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/observability"
)

// ActionStatus reports the outcome of one action in a report.
type ActionStatus string

const (
	ActionExecuted ActionStatus = "executed"
	ActionFailed   ActionStatus = "failed"
	ActionDryRun   ActionStatus = "dry_run"
)

// ActionReport describes one resolved action and, in live mode, whether it
// ran.
type ActionReport struct {
	Type   domain.ActionType `json:"type"`
	Value  string            `json:"value,omitempty"`
	Detail string            `json:"detail,omitempty"`
	Status ActionStatus      `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// RuleReport describes the evaluation of one rule.
type RuleReport struct {
	RuleID     string            `json:"rule_id,omitempty"`
	RuleName   string            `json:"rule_name"`
	Priority   int               `json:"priority"`
	Matched    bool              `json:"matched"`
	Conditions []ConditionResult `json:"conditions"`
	Actions    []ActionReport    `json:"actions,omitempty"`
}

// ExecutionReport is the full outcome of one engine run.
type ExecutionReport struct {
	Trigger      domain.TriggerEvent `json:"trigger"`
	TicketID     string              `json:"ticket_id,omitempty"`
	RulesChecked int                 `json:"rules_checked"`
	RulesMatched int                 `json:"rules_matched"`
	Rules        []RuleReport        `json:"rules"`
}

// RuleSource loads the active evaluation set for a trigger.
type RuleSource interface {
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error)
}

// Engine evaluates automation rules against ticket lifecycle events. Rules
// evaluate against the snapshot captured at trigger time, so every rule in
// one run sees the same ticket state regardless of what earlier actions
// changed.
type Engine struct {
	rules    RuleSource
	executor ActionExecutor
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEngine constructs the rule engine.
func NewEngine(rules RuleSource, executor ActionExecutor, metrics *observability.Metrics, logger *zap.Logger) *Engine {
	return &Engine{rules: rules, executor: executor, metrics: metrics, logger: logger}
}

// Run evaluates every active rule for the trigger, highest priority first,
// and executes the actions of each matching rule. A failing action is
// recorded in the report and never stops the remaining actions or rules.
func (e *Engine) Run(ctx context.Context, trigger domain.TriggerEvent, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) (*ExecutionReport, error) {
	rules, err := e.rules.ListActiveByTrigger(ctx, trigger)
	if err != nil {
		return nil, err
	}

	snapshot := snapshotTicket(ticket)
	report := &ExecutionReport{
		Trigger: trigger,
		Rules:   make([]RuleReport, 0, len(rules)),
	}
	if ticket != nil {
		report.TicketID = ticket.ID
	}

	for i := range rules {
		rule := &rules[i]
		ruleReport := evaluateRule(rule, snapshot, customer, eventData)
		if ruleReport.Matched {
			report.RulesMatched++
			for j := range ruleReport.Actions {
				action := rule.Actions[j]
				if err := e.executor.Execute(ctx, action, ticket, customer); err != nil {
					ruleReport.Actions[j].Status = ActionFailed
					ruleReport.Actions[j].Error = err.Error()
					e.logger.Warn("workflow action failed",
						zap.String("rule", rule.Name),
						zap.String("action", string(action.Type)),
						zap.Error(err))
					continue
				}
				ruleReport.Actions[j].Status = ActionExecuted
			}
		}
		report.Rules = append(report.Rules, ruleReport)
	}

	report.RulesChecked = len(rules)
	e.metrics.RecordWorkflowRun(string(trigger), report.RulesMatched)
	e.logger.Debug("workflow run complete",
		zap.String("trigger", string(trigger)),
		zap.Int("checked", report.RulesChecked),
		zap.Int("matched", report.RulesMatched))
	return report, nil
}

// TestRule evaluates a single rule without persisting it or executing any
// action. It goes through the same evaluateRule path as Run; only the final
// action status differs.
func (e *Engine) TestRule(rule *domain.WorkflowRule, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) RuleReport {
	ruleReport := evaluateRule(rule, snapshotTicket(ticket), customer, eventData)
	if ruleReport.Matched {
		for i := range ruleReport.Actions {
			ruleReport.Actions[i].Status = ActionDryRun
		}
	}
	return ruleReport
}

// evaluateRule is the single evaluation path shared by live runs and
// dry-run tests. It matches conditions and resolves action details but
// performs no side effects.
func evaluateRule(rule *domain.WorkflowRule, ticket *domain.Ticket, customer *domain.Customer, eventData map[string]any) RuleReport {
	matched, conditions := RuleMatches(rule, ticket, customer, eventData)
	ruleReport := RuleReport{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Priority:   rule.Priority,
		Matched:    matched,
		Conditions: conditions,
	}
	if !matched {
		return ruleReport
	}

	ruleReport.Actions = make([]ActionReport, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		ruleReport.Actions = append(ruleReport.Actions, ActionReport{
			Type:   action.Type,
			Value:  action.Value,
			Detail: resolveActionDetail(action, ticket, customer),
		})
	}
	return ruleReport
}

// resolveActionDetail renders what an action would do, for reports.
func resolveActionDetail(action domain.RuleAction, ticket *domain.Ticket, customer *domain.Customer) string {
	if action.Type == domain.ActionSendMessage && action.Template != "" {
		return RenderTemplate(action.Template, ticket, customer)
	}
	return ""
}

// snapshotTicket copies the ticket so condition evaluation is isolated from
// the mutations executed actions apply.
func snapshotTicket(ticket *domain.Ticket) *domain.Ticket {
	if ticket == nil {
		return nil
	}
	copied := *ticket
	if ticket.Tags != nil {
		copied.Tags = append([]string(nil), ticket.Tags...)
	}
	return &copied
}

// SampleTicket fabricates a representative ticket for dry-run requests that
// do not reference a stored one.
func SampleTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          "00000000-0000-0000-0000-000000000000",
		ExternalKey: "TCK-SAMPLE",
		Subject:     "Sample ticket",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityNormal,
		QueueType:   domain.QueueTypeAI,
		AIHandled:   true,
		Tags:        []string{},
	}
}
