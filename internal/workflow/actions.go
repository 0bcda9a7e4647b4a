package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// ActionExecutor applies one matched rule action. The engine treats
// execution as opaque: every failure is isolated to its own action report.
type ActionExecutor interface {
	Execute(ctx context.Context, action domain.RuleAction, ticket *domain.Ticket, customer *domain.Customer) error
}

// TicketStore persists ticket mutations performed by actions.
type TicketStore interface {
	Update(ctx context.Context, ticket *domain.Ticket) error
}

// AgentDirectory lists assignment candidates.
type AgentDirectory interface {
	ListActive(ctx context.Context, team *string) ([]domain.Agent, error)
}

// MessageAppender writes automation replies into the ticket timeline.
type MessageAppender interface {
	Append(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, sender domain.SenderType, content string, source domain.ChannelType, externalID string, metadata map[string]any) (*domain.Message, bool, error)
}

// Notifier delivers agent notifications and outbound customer messages.
type Notifier interface {
	NotifyAgent(ctx context.Context, recipient, subject, body string) error
	SendOutbound(ctx context.Context, channel domain.ChannelType, customer *domain.Customer, content string) error
}

// WebhookSender posts signed payloads to external endpoints.
type WebhookSender interface {
	Dispatch(ctx context.Context, url, event string, payload any) error
}

// Executor is the default ActionExecutor. Nothing it does re-enters the
// event dispatcher: ticket mutations never trigger the status_changed or
// priority_changed rules, and the replies send_message appends are
// agent-authored and therefore never fan out as message_received. Both
// halves keep rule graphs cycle-free.
type Executor struct {
	tickets  TicketStore
	agents   AgentDirectory
	messages MessageAppender
	notifier Notifier
	webhooks WebhookSender
	logger   *zap.Logger

	mu      sync.Mutex
	rrIndex map[string]int
}

// ExecutorDependencies bundles the executor's collaborators.
type ExecutorDependencies struct {
	Tickets  TicketStore
	Agents   AgentDirectory
	Messages MessageAppender
	Notifier Notifier
	Webhooks WebhookSender
	Logger   *zap.Logger
}

// NewExecutor constructs the default action executor.
func NewExecutor(deps ExecutorDependencies) *Executor {
	return &Executor{
		tickets:  deps.Tickets,
		agents:   deps.Agents,
		messages: deps.Messages,
		notifier: deps.Notifier,
		webhooks: deps.Webhooks,
		logger:   deps.Logger,
		rrIndex:  make(map[string]int),
	}
}

// Execute applies one action to the live ticket.
func (x *Executor) Execute(ctx context.Context, action domain.RuleAction, ticket *domain.Ticket, customer *domain.Customer) error {
	if ticket == nil {
		return fmt.Errorf("action %s: no ticket in scope", action.Type)
	}

	switch action.Type {
	case domain.ActionChangeStatus:
		return x.changeStatus(ctx, ticket, action.Value)
	case domain.ActionChangePriority:
		return x.changePriority(ctx, ticket, action.Value)
	case domain.ActionAssignAgent:
		return x.assignAgent(ctx, ticket, action)
	case domain.ActionAddTag:
		return x.addTag(ctx, ticket, action.Value)
	case domain.ActionSendNotification:
		return x.sendNotification(ctx, ticket, customer, action)
	case domain.ActionSendWebhook:
		return x.sendWebhook(ctx, ticket, customer, action.Value)
	case domain.ActionSendMessage:
		return x.sendMessage(ctx, ticket, customer, action)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (x *Executor) changeStatus(ctx context.Context, ticket *domain.Ticket, value string) error {
	status := domain.TicketStatus(value)
	switch status {
	case domain.TicketStatusOpen, domain.TicketStatusPending,
		domain.TicketStatusResolved, domain.TicketStatusEscalated:
	default:
		return fmt.Errorf("invalid status %q", value)
	}
	if ticket.Status == status {
		return nil
	}
	ticket.Status = status
	if status == domain.TicketStatusEscalated {
		ticket.QueueType = domain.QueueTypeHuman
		ticket.AIHandled = false
	}
	return x.tickets.Update(ctx, ticket)
}

func (x *Executor) changePriority(ctx context.Context, ticket *domain.Ticket, value string) error {
	priority := domain.TicketPriority(value)
	if !domain.IsValidPriority(priority) {
		return fmt.Errorf("invalid priority %q", value)
	}
	if ticket.Priority == priority {
		return nil
	}
	ticket.Priority = priority
	return x.tickets.Update(ctx, ticket)
}

// assignAgent assigns directly when the action names an agent id, otherwise
// rotates round-robin over the active agents matching the team filter.
func (x *Executor) assignAgent(ctx context.Context, ticket *domain.Ticket, action domain.RuleAction) error {
	agentID := strings.TrimSpace(action.Value)
	if agentID == "" {
		var team *string
		if action.Filter != "" {
			team = &action.Filter
		}
		candidates, err := x.agents.ListActive(ctx, team)
		if err != nil {
			return fmt.Errorf("assign_agent: %w", err)
		}
		if len(candidates) == 0 {
			return fmt.Errorf("assign_agent: no active agents for filter %q", action.Filter)
		}
		agentID = candidates[x.nextIndex(action.Filter, len(candidates))].ID
	}

	ticket.AssignedAgentID = &agentID
	ticket.QueueType = domain.QueueTypeHuman
	return x.tickets.Update(ctx, ticket)
}

func (x *Executor) nextIndex(key string, size int) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	index := x.rrIndex[key] % size
	x.rrIndex[key] = index + 1
	return index
}

func (x *Executor) addTag(ctx context.Context, ticket *domain.Ticket, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return fmt.Errorf("add_tag: empty tag")
	}
	if ticket.HasTag(tag) {
		return nil
	}
	ticket.Tags = append(ticket.Tags, tag)
	return x.tickets.Update(ctx, ticket)
}

func (x *Executor) sendNotification(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, action domain.RuleAction) error {
	body := action.Template
	if body == "" {
		body = "Ticket {{ticket.external_key}} ({{ticket.priority}}): {{ticket.subject}}"
	}
	return x.notifier.NotifyAgent(ctx, action.Value,
		fmt.Sprintf("Ticket %s requires attention", ticket.ExternalKey),
		RenderTemplate(body, ticket, customer))
}

func (x *Executor) sendWebhook(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, url string) error {
	if url == "" {
		return fmt.Errorf("send_webhook: empty url")
	}
	payload := map[string]any{
		"ticket_id":    ticket.ID,
		"external_key": ticket.ExternalKey,
		"subject":      ticket.Subject,
		"status":       string(ticket.Status),
		"priority":     string(ticket.Priority),
	}
	if customer != nil {
		payload["customer_id"] = customer.ID
	}
	return x.webhooks.Dispatch(ctx, url, "workflow.action", payload)
}

// sendMessage appends a templated reply to the timeline and relays it over
// the customer's preferred channel.
func (x *Executor) sendMessage(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, action domain.RuleAction) error {
	content := RenderTemplate(action.Template, ticket, customer)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("send_message: empty rendered template")
	}

	channel := domain.ChannelEmail
	if customer != nil && customer.PreferredChannel != "" {
		channel = customer.PreferredChannel
	}

	if _, _, err := x.messages.Append(ctx, ticket, customer, domain.SenderAgent, content, channel, "", map[string]any{"automated": true}); err != nil {
		return fmt.Errorf("send_message: %w", err)
	}
	if err := x.notifier.SendOutbound(ctx, channel, customer, content); err != nil {
		x.logger.Warn("outbound relay failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("channel", string(channel)),
			zap.Error(err))
	}
	return nil
}
