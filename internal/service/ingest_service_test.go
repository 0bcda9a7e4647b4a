package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/ai"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
)

type pipeline struct {
	ingest    *IngestService
	customers *fakeCustomerRepo
	tickets   *fakeTicketRepo
	messages  *fakeMessageRepo
	completer *fakeCompleter
}

func newTestPipeline(t *testing.T, completer *fakeCompleter) *pipeline {
	t.Helper()

	logger := zap.NewNop()
	customers := newFakeCustomerRepo()
	tickets := newFakeTicketRepo()
	messages := newFakeMessageRepo()
	dispatcher := events.NewInMemoryDispatcher(logger)

	aiCfg := config.AIConfig{
		Endpoint:            "http://ai.internal",
		MaxTokens:           512,
		TimeoutSeconds:      5,
		ConfidenceThreshold: 0.6,
		HistoryWindow:       10,
		AutoRespondChannels: map[string]bool{
			"sms": true, "email": true, "widget": true, "slack": true,
		},
	}

	identity := NewIdentityService(IdentityDependencies{
		CustomerRepo: customers,
		TicketRepo:   tickets,
		Logger:       logger,
	})
	threads := NewThreadService(ThreadDependencies{
		TicketRepo:  tickets,
		MessageRepo: messages,
		AIConfig:    aiCfg,
		Logger:      logger,
	})
	messageService := NewMessageService(MessageDependencies{
		MessageRepo: messages,
		TicketRepo:  tickets,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	responder := NewResponderService(ResponderDependencies{
		AIConfig:       aiCfg,
		Completer:      completer,
		Knowledge:      &fakeSearcher{},
		MessageService: messageService,
		MessageRepo:    messages,
		TicketRepo:     tickets,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	ingest := NewIngestService(IngestDependencies{
		Identity:   identity,
		Threads:    threads,
		Messages:   messageService,
		Responder:  responder,
		Dispatcher: dispatcher,
		Tasks:      syncTasks{},
		Logger:     logger,
	})

	return &pipeline{
		ingest:    ingest,
		customers: customers,
		tickets:   tickets,
		messages:  messages,
		completer: completer,
	}
}

func TestIngestSMSFirstContact(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result:   ai.CompletionResult{Content: "Thanks, we are on it.", Confidence: 0.92},
		priority: domain.TicketPriorityNormal,
	})

	result, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "My order never arrived",
		ExternalID:         "SM123",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.IsNewTicket)
	assert.NotEmpty(t, result.TicketID)
	assert.NotEmpty(t, result.MessageID)

	customer, err := p.customers.GetByID(context.Background(), result.CustomerID)
	require.NoError(t, err)
	require.NotNil(t, customer.PhoneNumber)
	assert.Equal(t, "+15551234567", *customer.PhoneNumber)
	assert.Equal(t, "+15551234567", customer.Metadata["sms_id"])

	ticket, err := p.tickets.GetByID(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.QueueTypeAI, ticket.QueueType)

	require.NotNil(t, result.AIResponse)
	assert.True(t, result.AIResponse.Sent)
	assert.Equal(t, "Thanks, we are on it.", result.AIResponse.Content)

	// customer message plus the AI reply
	history, err := p.messages.ListByTicket(context.Background(), result.TicketID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.SenderAI, history[0].SenderType)
	assert.Equal(t, domain.SenderCustomer, history[1].SenderType)
}

func TestIngestIdempotentOnRedelivery(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	req := IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "My order never arrived",
		ExternalID:         "SM123",
	}

	first, err := p.ingest.Ingest(context.Background(), req)
	require.NoError(t, err)
	messagesAfterFirst := p.messages.count()

	second, err := p.ingest.Ingest(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, first.MessageID, second.MessageID)
	assert.False(t, second.IsNewTicket)
	assert.Nil(t, second.AIResponse)
	assert.Equal(t, 1, p.tickets.count())
	assert.Equal(t, messagesAfterFirst, p.messages.count())
}

func TestIngestThreadContinuity(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	first, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelEmail,
		CustomerIdentifier: "ana@example.com",
		CustomerName:       "Ana",
		MessageContent:     "Subject line\nOriginal question",
		ExternalID:         "<msg-1@mail>",
		Metadata:           map[string]any{"thread_ref": "<msg-1@mail>"},
	})
	require.NoError(t, err)
	require.True(t, first.IsNewTicket)

	second, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelEmail,
		CustomerIdentifier: "ana@example.com",
		MessageContent:     "Following up on this",
		ExternalID:         "<msg-2@mail>",
		Metadata:           map[string]any{"thread_ref": "<msg-1@mail>"},
	})
	require.NoError(t, err)

	assert.False(t, second.IsNewTicket)
	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Equal(t, 1, p.tickets.count())
}

func TestIngestSMSFollowUpContinuesOpenTicket(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	first, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "My order never arrived",
		ExternalID:         "SM1",
	})
	require.NoError(t, err)
	require.True(t, first.IsNewTicket)

	// SMS has no thread reference; the follow-up text joins the open ticket
	second, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "Any update?",
		ExternalID:         "SM2",
	})
	require.NoError(t, err)

	assert.False(t, second.IsNewTicket)
	assert.Equal(t, first.TicketID, second.TicketID)
	assert.Equal(t, 1, p.tickets.count())
}

func TestIngestSMSAfterResolutionOpensNewTicket(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	first, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "My order never arrived",
		ExternalID:         "SM1",
	})
	require.NoError(t, err)

	ticket, err := p.tickets.GetByID(context.Background(), first.TicketID)
	require.NoError(t, err)
	ticket.Status = domain.TicketStatusResolved
	require.NoError(t, p.tickets.Update(context.Background(), ticket))

	second, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15551234567",
		MessageContent:     "New problem now",
		ExternalID:         "SM2",
	})
	require.NoError(t, err)

	assert.True(t, second.IsNewTicket)
	assert.NotEqual(t, first.TicketID, second.TicketID)
}

func TestIngestResolvedTicketStartsNewThread(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	first, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelEmail,
		CustomerIdentifier: "ana@example.com",
		MessageContent:     "Original question",
		ExternalID:         "<msg-1@mail>",
		Metadata:           map[string]any{"thread_ref": "<msg-1@mail>"},
	})
	require.NoError(t, err)

	ticket, err := p.tickets.GetByID(context.Background(), first.TicketID)
	require.NoError(t, err)
	ticket.Status = domain.TicketStatusResolved
	require.NoError(t, p.tickets.Update(context.Background(), ticket))

	second, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelEmail,
		CustomerIdentifier: "ana@example.com",
		MessageContent:     "New problem, same thread",
		ExternalID:         "<msg-2@mail>",
		Metadata:           map[string]any{"thread_ref": "<msg-1@mail>"},
	})
	require.NoError(t, err)

	assert.True(t, second.IsNewTicket)
	assert.NotEqual(t, first.TicketID, second.TicketID)
}

func TestIngestAIFailureDoesNotBlock(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{err: errors.New("completion service down")})

	result, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelWidget,
		CustomerIdentifier: "visitor-77",
		MessageContent:     "Help please",
	})
	require.NoError(t, err)
	require.NotNil(t, result.AIResponse)
	assert.False(t, result.AIResponse.Sent)

	ticket, err := p.tickets.GetByID(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueTypeHuman, ticket.QueueType)
	assert.False(t, ticket.AIHandled)
}

func TestIngestLowConfidenceHandsOff(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Maybe try rebooting?", Confidence: 0.2},
	})

	result, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelWidget,
		CustomerIdentifier: "visitor-42",
		MessageContent:     "Strange billing discrepancy",
	})
	require.NoError(t, err)
	assert.False(t, result.AIResponse.Sent)

	ticket, err := p.tickets.GetByID(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueTypeHuman, ticket.QueueType)

	// no AI message appended below the threshold
	history, err := p.messages.ListByTicket(context.Background(), result.TicketID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.SenderCustomer, history[0].SenderType)
}

func TestIngestRejectsUnsupportedChannel(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{})

	_, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelType("carrier_pigeon"),
		CustomerIdentifier: "someone",
		MessageContent:     "hello",
	})
	require.Error(t, err)
	assert.Equal(t, 0, p.tickets.count())
	assert.Equal(t, 0, p.messages.count())
}

func TestIngestRejectsEmptyContent(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{})

	_, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelSMS,
		CustomerIdentifier: "+15550000000",
		MessageContent:     "   ",
	})
	require.Error(t, err)
	assert.Equal(t, 0, p.messages.count())
}

func TestIngestExplicitTicketID(t *testing.T) {
	p := newTestPipeline(t, &fakeCompleter{
		result: ai.CompletionResult{Content: "Reply", Confidence: 0.9},
	})

	first, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelWidget,
		CustomerIdentifier: "visitor-9",
		MessageContent:     "First message",
	})
	require.NoError(t, err)

	second, err := p.ingest.Ingest(context.Background(), IngestRequest{
		Channel:            domain.ChannelWidget,
		CustomerIdentifier: "visitor-9",
		MessageContent:     "Second message",
		TicketID:           first.TicketID,
	})
	require.NoError(t, err)

	assert.False(t, second.IsNewTicket)
	assert.Equal(t, first.TicketID, second.TicketID)
}
