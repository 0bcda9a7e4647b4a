package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/worker"
	"github.com/relaydesk/relaydesk/internal/workflow"
)

type fixedRuleSource struct {
	mu    sync.Mutex
	rules []domain.WorkflowRule
	loads int
}

func (s *fixedRuleSource) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	var out []domain.WorkflowRule
	for _, rule := range s.rules {
		if rule.TriggerEvent == trigger {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *fixedRuleSource) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

type noopNotifier struct{}

func (noopNotifier) NotifyAgent(ctx context.Context, recipient, subject, body string) error {
	return nil
}

func (noopNotifier) SendOutbound(ctx context.Context, channel domain.ChannelType, customer *domain.Customer, content string) error {
	return nil
}

type noopAgents struct{}

func (noopAgents) ListActive(ctx context.Context, team *string) ([]domain.Agent, error) {
	return nil, nil
}

type noopWebhooks struct{}

func (noopWebhooks) Dispatch(ctx context.Context, url, event string, payload any) error {
	return nil
}

// An unconditioned message_received rule that itself appends a message is
// the tightest automation cycle a customer can configure. One inbound
// message must run it exactly once.
func TestAutomatedReplyDoesNotRetriggerRules(t *testing.T) {
	logger := zap.NewNop()
	tickets := newFakeTicketRepo()
	messages := newFakeMessageRepo()
	dispatcher := events.NewInMemoryDispatcher(logger)

	messageService := NewMessageService(MessageDependencies{
		MessageRepo: messages,
		TicketRepo:  tickets,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	rules := &fixedRuleSource{rules: []domain.WorkflowRule{{
		ID:           "rule-1",
		Name:         "Auto acknowledge",
		IsActive:     true,
		TriggerEvent: domain.TriggerMessageReceived,
		Actions: []domain.RuleAction{{
			Type:     domain.ActionSendMessage,
			Template: "We received your message about {{ticket.subject}}.",
		}},
	}}}

	executor := workflow.NewExecutor(workflow.ExecutorDependencies{
		Tickets:  tickets,
		Agents:   noopAgents{},
		Messages: messageService,
		Notifier: noopNotifier{},
		Webhooks: noopWebhooks{},
		Logger:   logger,
	})
	engine := workflow.NewEngine(rules, executor, nil, logger)
	worker.NewAutomationWorker(engine, logger).Register(dispatcher)

	ticket := &domain.Ticket{
		ExternalKey: "TCK-LOOP",
		CustomerID:  "cust-1",
		Subject:     "Cannot log in",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityNormal,
		QueueType:   domain.QueueTypeAI,
	}
	require.NoError(t, tickets.Create(context.Background(), ticket))
	customer := &domain.Customer{ID: "cust-1", PreferredChannel: domain.ChannelEmail}

	_, _, err := messageService.Append(context.Background(), ticket, customer,
		domain.SenderCustomer, "I cannot log in", domain.ChannelEmail, "<msg-1@mail>", nil)
	require.NoError(t, err)

	// inbound message plus exactly one automated acknowledgement
	assert.Equal(t, 2, messages.count())
	assert.Equal(t, 1, rules.loadCount())

	history, err := messages.ListByTicket(context.Background(), ticket.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.SenderAgent, history[0].SenderType)
	assert.Equal(t, "We received your message about Cannot log in.", history[0].Content)
	assert.Equal(t, domain.SenderCustomer, history[1].SenderType)
}
