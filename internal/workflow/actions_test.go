package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
)

type memTicketStore struct {
	updated []*domain.Ticket
}

func (s *memTicketStore) Update(ctx context.Context, ticket *domain.Ticket) error {
	copied := *ticket
	s.updated = append(s.updated, &copied)
	return nil
}

type memAgentDirectory struct {
	agents []domain.Agent
}

func (d *memAgentDirectory) ListActive(ctx context.Context, team *string) ([]domain.Agent, error) {
	if team == nil {
		return d.agents, nil
	}
	var filtered []domain.Agent
	for _, agent := range d.agents {
		if agent.Team != nil && *agent.Team == *team {
			filtered = append(filtered, agent)
		}
	}
	return filtered, nil
}

type memAppender struct {
	appended []string
	channels []domain.ChannelType
}

func (a *memAppender) Append(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, sender domain.SenderType, content string, source domain.ChannelType, externalID string, metadata map[string]any) (*domain.Message, bool, error) {
	a.appended = append(a.appended, content)
	a.channels = append(a.channels, source)
	return &domain.Message{ID: "m-1", Content: content}, false, nil
}

type memNotifier struct {
	notifications []string
	outbound      []string
}

func (n *memNotifier) NotifyAgent(ctx context.Context, recipient, subject, body string) error {
	n.notifications = append(n.notifications, recipient+": "+body)
	return nil
}

func (n *memNotifier) SendOutbound(ctx context.Context, channel domain.ChannelType, customer *domain.Customer, content string) error {
	n.outbound = append(n.outbound, content)
	return nil
}

type memWebhooks struct {
	urls []string
}

func (w *memWebhooks) Dispatch(ctx context.Context, url, event string, payload any) error {
	w.urls = append(w.urls, url)
	return nil
}

func newTestExecutor() (*Executor, *memTicketStore, *memAgentDirectory, *memAppender, *memNotifier, *memWebhooks) {
	tickets := &memTicketStore{}
	support := "support"
	agents := &memAgentDirectory{agents: []domain.Agent{
		{ID: "agent-1", Name: "Kim", Team: &support, Active: true},
		{ID: "agent-2", Name: "Lee", Team: &support, Active: true},
	}}
	appender := &memAppender{}
	notifier := &memNotifier{}
	webhooks := &memWebhooks{}

	executor := NewExecutor(ExecutorDependencies{
		Tickets:  tickets,
		Agents:   agents,
		Messages: appender,
		Notifier: notifier,
		Webhooks: webhooks,
		Logger:   zap.NewNop(),
	})
	return executor, tickets, agents, appender, notifier, webhooks
}

func actionTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          "t-1",
		ExternalKey: "TCK-ABC123",
		Subject:     "Payment failed",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityNormal,
		QueueType:   domain.QueueTypeAI,
		Tags:        []string{},
	}
}

func TestExecuteChangeStatus(t *testing.T) {
	executor, tickets, _, _, _, _ := newTestExecutor()
	ticket := actionTicket()

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type: domain.ActionChangeStatus, Value: "escalated",
	}, ticket, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusEscalated, ticket.Status)
	assert.Equal(t, domain.QueueTypeHuman, ticket.QueueType, "escalation leaves the AI queue")
	require.Len(t, tickets.updated, 1)
}

func TestExecuteChangeStatusRejectsUnknownValue(t *testing.T) {
	executor, tickets, _, _, _, _ := newTestExecutor()

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type: domain.ActionChangeStatus, Value: "vanished",
	}, actionTicket(), nil)
	assert.Error(t, err)
	assert.Empty(t, tickets.updated)
}

func TestExecuteAssignAgentRoundRobin(t *testing.T) {
	executor, _, _, _, _, _ := newTestExecutor()

	var assigned []string
	for i := 0; i < 4; i++ {
		ticket := actionTicket()
		err := executor.Execute(context.Background(), domain.RuleAction{
			Type: domain.ActionAssignAgent, Filter: "support",
		}, ticket, nil)
		require.NoError(t, err)
		require.NotNil(t, ticket.AssignedAgentID)
		assigned = append(assigned, *ticket.AssignedAgentID)
		assert.Equal(t, domain.QueueTypeHuman, ticket.QueueType)
	}
	assert.Equal(t, []string{"agent-1", "agent-2", "agent-1", "agent-2"}, assigned)
}

func TestExecuteAssignAgentDirect(t *testing.T) {
	executor, _, _, _, _, _ := newTestExecutor()
	ticket := actionTicket()

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type: domain.ActionAssignAgent, Value: "agent-2",
	}, ticket, nil)
	require.NoError(t, err)
	require.NotNil(t, ticket.AssignedAgentID)
	assert.Equal(t, "agent-2", *ticket.AssignedAgentID)
}

func TestExecuteAddTagIsIdempotent(t *testing.T) {
	executor, tickets, _, _, _, _ := newTestExecutor()
	ticket := actionTicket()
	action := domain.RuleAction{Type: domain.ActionAddTag, Value: "vip"}

	require.NoError(t, executor.Execute(context.Background(), action, ticket, nil))
	require.NoError(t, executor.Execute(context.Background(), action, ticket, nil))

	assert.Equal(t, []string{"vip"}, ticket.Tags)
	assert.Len(t, tickets.updated, 1, "duplicate tag does not write")
}

func TestExecuteSendMessageRendersTemplate(t *testing.T) {
	executor, _, _, appender, notifier, _ := newTestExecutor()
	ticket := actionTicket()
	name := "Ana"
	customer := &domain.Customer{ID: "c-1", Name: &name, PreferredChannel: domain.ChannelSMS}

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type:     domain.ActionSendMessage,
		Template: "Hi {{customer.name}}, ticket {{ticket.external_key}} was received.",
	}, ticket, customer)
	require.NoError(t, err)

	require.Len(t, appender.appended, 1)
	assert.Equal(t, "Hi Ana, ticket TCK-ABC123 was received.", appender.appended[0])
	assert.Equal(t, domain.ChannelSMS, appender.channels[0])
	require.Len(t, notifier.outbound, 1)
	assert.Equal(t, appender.appended[0], notifier.outbound[0])
}

func TestExecuteSendWebhook(t *testing.T) {
	executor, _, _, _, _, webhooks := newTestExecutor()

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type: domain.ActionSendWebhook, Value: "https://hooks.example/incoming",
	}, actionTicket(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://hooks.example/incoming"}, webhooks.urls)
}

func TestExecuteSendNotification(t *testing.T) {
	executor, _, _, _, notifier, _ := newTestExecutor()

	err := executor.Execute(context.Background(), domain.RuleAction{
		Type: domain.ActionSendNotification, Value: "oncall@example.com",
	}, actionTicket(), nil)
	require.NoError(t, err)
	require.Len(t, notifier.notifications, 1)
	assert.Contains(t, notifier.notifications[0], "oncall@example.com")
	assert.Contains(t, notifier.notifications[0], "TCK-ABC123")
}
