package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/observability"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

// IngestRequest is the channel-agnostic envelope every adapter builds.
type IngestRequest struct {
	Channel            domain.ChannelType
	CustomerIdentifier string
	CustomerName       string
	MessageContent     string
	ExternalID         string
	TicketID           string
	Metadata           map[string]any
}

// IngestResult is the normalized outcome returned to the adapter.
type IngestResult struct {
	TicketID    string      `json:"ticket_id"`
	MessageID   string      `json:"message_id"`
	CustomerID  string      `json:"customer_id"`
	IsNewTicket bool        `json:"is_new_ticket"`
	AIResponse  *AIResponse `json:"ai_response,omitempty"`
}

// TaskSubmitter schedules best-effort background work.
type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) bool
}

// IngestService is the single entry point every channel adapter calls. It
// sequences identity resolution, thread resolution, message append and the
// AI responder gate for one inbound event.
type IngestService struct {
	identity   *IdentityService
	threads    *ThreadService
	messages   *MessageService
	responder  *ResponderService
	dispatcher events.Dispatcher
	tasks      TaskSubmitter
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IngestDependencies bundles the pipeline stages.
type IngestDependencies struct {
	Identity   *IdentityService
	Threads    *ThreadService
	Messages   *MessageService
	Responder  *ResponderService
	Dispatcher events.Dispatcher
	Tasks      TaskSubmitter
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewIngestService constructs the orchestrator.
func NewIngestService(deps IngestDependencies) *IngestService {
	return &IngestService{
		identity:   deps.Identity,
		threads:    deps.Threads,
		messages:   deps.Messages,
		responder:  deps.Responder,
		dispatcher: deps.Dispatcher,
		tasks:      deps.Tasks,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
	}
}

// Ingest normalizes and records one inbound message. Step failures
// short-circuit with typed errors; completed steps are not rolled back —
// idempotency at the thread/message layers absorbs provider retries.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// A redelivered provider event short-circuits before thread resolution
	// so it can never open a second ticket.
	if req.ExternalID != "" {
		existing, err := s.messages.FindExisting(ctx, req.Channel, req.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			ticket, err := s.threads.tickets.GetByID(ctx, existing.TicketID)
			if err != nil {
				return nil, apperrors.MapError(err)
			}
			return &IngestResult{
				TicketID:    existing.TicketID,
				MessageID:   existing.ID,
				CustomerID:  ticket.CustomerID,
				IsNewTicket: false,
			}, nil
		}
	}

	customer, _, err := s.identity.Resolve(ctx, req.CustomerIdentifier, req.Channel, req.CustomerName)
	if err != nil {
		return nil, err
	}

	threadRef := threadRefFromMetadata(req.Metadata)
	ticket, isNew, err := s.threads.Resolve(ctx, customer.ID, req.Channel, threadRef, req.TicketID, req.MessageContent)
	if err != nil {
		return nil, err
	}

	msg, duplicate, err := s.messages.Append(ctx, ticket, customer, domain.SenderCustomer, req.MessageContent, req.Channel, req.ExternalID, req.Metadata)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		TicketID:    ticket.ID,
		MessageID:   msg.ID,
		CustomerID:  customer.ID,
		IsNewTicket: isNew,
	}
	if duplicate {
		return result, nil
	}

	if isNew {
		publishEvent(ctx, s.dispatcher, events.TicketCreated(ticket, customer, req.Channel))
		s.scheduleClassification(ticket.ID, req.MessageContent)
	}

	aiResponse := s.responder.MaybeRespond(ctx, ticket, customer, req.Channel)
	result.AIResponse = &aiResponse

	s.metrics.RecordIngest(string(req.Channel), isNew)
	s.logger.Info("ingest complete",
		zap.String("channel", string(req.Channel)),
		zap.String("ticket_id", ticket.ID),
		zap.String("message_id", msg.ID),
		zap.Bool("is_new_ticket", isNew),
		zap.Bool("ai_sent", aiResponse.Sent))
	return result, nil
}

// MarkDelivery records a provider delivery-status callback against the
// message it correlates to by (source, external_id).
func (s *IngestService) MarkDelivery(ctx context.Context, source domain.ChannelType, externalID string, status domain.DeliveryStatus) error {
	return s.messages.MarkDelivery(ctx, source, externalID, status)
}

// MergeCustomers exposes the identity merge as the operator action used to
// correct first-contact duplicates.
func (s *IngestService) MergeCustomers(ctx context.Context, primaryID, secondaryID string) (*domain.Customer, error) {
	return s.identity.MergeCustomers(ctx, primaryID, secondaryID)
}

func (s *IngestService) scheduleClassification(ticketID, content string) {
	if s.tasks == nil {
		return
	}
	s.tasks.Submit("classify_priority", func(ctx context.Context) error {
		s.responder.ClassifyPriority(ctx, ticketID, content)
		return nil
	})
}

// validateRequest rejects malformed envelopes before any side effect.
func validateRequest(req IngestRequest) error {
	if !domain.IsValidChannel(req.Channel) {
		return apperrors.NewUnsupportedChannel(string(req.Channel))
	}
	if strings.TrimSpace(req.CustomerIdentifier) == "" {
		return apperrors.NewValidationError("customer_identifier required", nil)
	}
	if strings.TrimSpace(req.MessageContent) == "" {
		return apperrors.NewValidationError("message_content required", nil)
	}
	return nil
}

func threadRefFromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if ref, ok := metadata["thread_ref"].(string); ok {
		return ref
	}
	return ""
}
