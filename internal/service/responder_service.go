package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/ai"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/repository"
)

// AIResponse reports the outcome of the responder gate for one ingest.
type AIResponse struct {
	Sent    bool   `json:"sent"`
	Content string `json:"content,omitempty"`
}

// ResponderService decides whether an automatic AI reply is generated for a
// ticket. Any degradation (completion failure, timeout, low confidence)
// results in no message and a human-queue handoff, never an ingest failure.
type ResponderService struct {
	cfg            config.AIConfig
	completer      ai.Completer
	knowledge      ai.Searcher
	messageService *MessageService
	messages       repository.MessageRepository
	tickets        repository.TicketRepository
	dispatcher     events.Dispatcher
	logger         *zap.Logger
}

// ResponderDependencies bundles collaborators for the responder gate.
type ResponderDependencies struct {
	AIConfig       config.AIConfig
	Completer      ai.Completer
	Knowledge      ai.Searcher
	MessageService *MessageService
	MessageRepo    repository.MessageRepository
	TicketRepo     repository.TicketRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewResponderService constructs the gate.
func NewResponderService(deps ResponderDependencies) *ResponderService {
	return &ResponderService{
		cfg:            deps.AIConfig,
		completer:      deps.Completer,
		knowledge:      deps.Knowledge,
		messageService: deps.MessageService,
		messages:       deps.MessageRepo,
		tickets:        deps.TicketRepo,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
	}
}

// MaybeRespond generates and appends an AI reply when the ticket is in the
// AI queue, the channel allows auto-response, and the completion succeeds
// with sufficient confidence. The reply's source matches the originating
// channel so it is relayed back out the way the customer wrote in.
func (s *ResponderService) MaybeRespond(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, channel domain.ChannelType) AIResponse {
	if ticket.QueueType != domain.QueueTypeAI {
		return AIResponse{Sent: false}
	}
	if ticket.Status == domain.TicketStatusEscalated || ticket.Status == domain.TicketStatusResolved {
		return AIResponse{Sent: false}
	}
	if !s.cfg.AutoRespond(string(channel)) {
		return AIResponse{Sent: false}
	}

	history, err := s.messages.ListByTicket(ctx, ticket.ID, s.cfg.HistoryWindow)
	if err != nil {
		s.logger.Warn("ai responder: failed to load history",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return s.degrade(ctx, ticket)
	}

	latest := latestCustomerMessage(history)
	if latest == "" {
		return AIResponse{Sent: false}
	}

	var knowledge []ai.KnowledgeResult
	if s.knowledge != nil {
		knowledge = s.knowledge.Search(ctx, latest)
	}

	// The deadline bounds only the completion call. Degrading to the human
	// queue must still work after a timeout, so everything else keeps the
	// caller's context.
	completionCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout())
	defer cancel()

	result, err := s.completer.Complete(completionCtx, ai.CompletionRequest{
		System:    buildSystemPrompt(channel, customer, knowledge),
		Messages:  historyToChat(history),
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Warn("ai responder: completion failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return s.degrade(ctx, ticket)
	}
	if result.Confidence < s.cfg.ConfidenceThreshold || strings.TrimSpace(result.Content) == "" {
		s.logger.Info("ai responder: below confidence threshold",
			zap.String("ticket_id", ticket.ID),
			zap.Float64("confidence", result.Confidence))
		return s.degrade(ctx, ticket)
	}

	if _, _, err := s.messageService.Append(ctx, ticket, customer, domain.SenderAI, result.Content, channel, "", nil); err != nil {
		s.logger.Error("ai responder: failed to append reply",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return AIResponse{Sent: false}
	}

	confidence := result.Confidence
	ticket.AIConfidence = &confidence
	if err := s.tickets.Update(ctx, ticket); err != nil {
		s.logger.Warn("ai responder: failed to record confidence",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	return AIResponse{Sent: true, Content: result.Content}
}

// ClassifyPriority assigns the ticket's initial priority from its first
// message. Best effort: any classifier failure leaves the default.
func (s *ResponderService) ClassifyPriority(ctx context.Context, ticketID, content string) {
	priority, err := s.completer.ClassifyPriority(ctx, content)
	if err != nil {
		s.logger.Debug("priority classification skipped",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("priority classification: ticket fetch failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	if ticket.Priority == priority {
		return
	}

	old := ticket.Priority
	ticket.Priority = priority
	if err := s.tickets.Update(ctx, ticket); err != nil {
		s.logger.Warn("priority classification: update failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	publishEvent(ctx, s.dispatcher, events.PriorityChanged(ticket, old, priority))
}

// degrade hands the ticket to the human queue after an AI failure.
func (s *ResponderService) degrade(ctx context.Context, ticket *domain.Ticket) AIResponse {
	if ticket.QueueType != domain.QueueTypeHuman {
		ticket.QueueType = domain.QueueTypeHuman
		ticket.AIHandled = false
		if err := s.tickets.Update(ctx, ticket); err != nil {
			s.logger.Warn("failed to move ticket to human queue",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return AIResponse{Sent: false}
}

// latestCustomerMessage returns the newest customer-authored content from a
// most-recent-first history window.
func latestCustomerMessage(history []domain.Message) string {
	for _, msg := range history {
		if msg.SenderType == domain.SenderCustomer {
			return msg.Content
		}
	}
	return ""
}

// historyToChat converts the most-recent-first window into chronological
// chat turns.
func historyToChat(history []domain.Message) []ai.ChatMessage {
	chat := make([]ai.ChatMessage, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		role := "user"
		if history[i].SenderType != domain.SenderCustomer {
			role = "assistant"
		}
		chat = append(chat, ai.ChatMessage{Role: role, Content: history[i].Content})
	}
	return chat
}

func buildSystemPrompt(channel domain.ChannelType, customer *domain.Customer, knowledge []ai.KnowledgeResult) string {
	var b strings.Builder
	b.WriteString("You are a support agent answering a customer inquiry.")
	if customer != nil {
		fmt.Fprintf(&b, " The customer's name is %s.", customer.DisplayName())
	}

	switch channel {
	case domain.ChannelSMS:
		b.WriteString(" Reply in plain text, at most two short sentences.")
	case domain.ChannelSlack:
		b.WriteString(" Reply concisely in a conversational tone.")
	case domain.ChannelEmail:
		b.WriteString(" Reply in a complete, politely formal email body.")
	default:
		b.WriteString(" Reply concisely and helpfully.")
	}

	if len(knowledge) > 0 {
		b.WriteString("\n\nRelevant knowledge base articles:")
		for _, result := range knowledge {
			fmt.Fprintf(&b, "\n- %s: %s", result.Title, result.Snippet)
		}
	}
	return b.String()
}
