package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/repository"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

const maxSubjectLength = 80

// ThreadService decides whether an inbound event continues an existing
// ticket or opens a new one.
type ThreadService struct {
	tickets  repository.TicketRepository
	messages repository.MessageRepository
	aiCfg    config.AIConfig
	logger   *zap.Logger
}

// ThreadDependencies bundles repositories for the thread service.
type ThreadDependencies struct {
	TicketRepo  repository.TicketRepository
	MessageRepo repository.MessageRepository
	AIConfig    config.AIConfig
	Logger      *zap.Logger
}

// NewThreadService constructs the service.
func NewThreadService(deps ThreadDependencies) *ThreadService {
	return &ThreadService{
		tickets:  deps.TicketRepo,
		messages: deps.MessageRepo,
		aiCfg:    deps.AIConfig,
		logger:   deps.Logger,
	}
}

// Resolve returns the ticket for this inbound event. Resolution order:
// explicit ticket id, then channel thread reference, then a new ticket.
// Callers must run the external-id dedup check before this, so a retried
// delivery never opens a second ticket.
func (s *ThreadService) Resolve(ctx context.Context, customerID string, channel domain.ChannelType, threadRef, explicitTicketID, subject string) (*domain.Ticket, bool, error) {
	if explicitTicketID != "" {
		ticket, err := s.resolveExplicit(ctx, customerID, explicitTicketID)
		if err != nil {
			return nil, false, err
		}
		if ticket != nil {
			return ticket, false, nil
		}
	}

	if threadRef != "" {
		ticket, err := s.resolveByThreadRef(ctx, channel, threadRef)
		if err != nil {
			return nil, false, err
		}
		if ticket != nil {
			return ticket, false, nil
		}
	}

	// SMS carries no thread reference, so a sender's follow-up texts
	// continue their most recent open ticket rather than opening a new
	// ticket per message.
	if channel == domain.ChannelSMS {
		ticket, err := s.resolveOpenTicket(ctx, customerID)
		if err != nil {
			return nil, false, err
		}
		if ticket != nil {
			return ticket, false, nil
		}
	}

	ticket, err := s.createTicket(ctx, customerID, channel, subject)
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

// resolveExplicit validates a caller-supplied ticket id. An id that does
// not belong to the customer or is already terminal falls through to the
// remaining resolution steps rather than failing the ingest.
func (s *ThreadService) resolveExplicit(ctx context.Context, customerID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("explicit ticket not found", zap.String("ticket_id", ticketID))
			return nil, nil
		}
		return nil, apperrors.NewThreadResolutionError(err)
	}
	if ticket.CustomerID != customerID {
		s.logger.Warn("explicit ticket belongs to another customer",
			zap.String("ticket_id", ticketID),
			zap.String("customer_id", customerID))
		return nil, nil
	}
	if ticket.Status.IsTerminal() {
		return nil, nil
	}
	return ticket, nil
}

func (s *ThreadService) resolveByThreadRef(ctx context.Context, channel domain.ChannelType, threadRef string) (*domain.Ticket, error) {
	ticketID, err := s.messages.FindTicketByThreadRef(ctx, channel, threadRef)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewThreadResolutionError(err)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewThreadResolutionError(err)
	}
	if ticket.Status.IsTerminal() {
		return nil, nil
	}
	return ticket, nil
}

// resolveOpenTicket returns the customer's most recently active open
// ticket, if any. ListOpenByCustomer orders by updated_at descending.
func (s *ThreadService) resolveOpenTicket(ctx context.Context, customerID string) (*domain.Ticket, error) {
	open, err := s.tickets.ListOpenByCustomer(ctx, customerID)
	if err != nil {
		return nil, apperrors.NewThreadResolutionError(err)
	}
	if len(open) == 0 {
		return nil, nil
	}
	return &open[0], nil
}

func (s *ThreadService) createTicket(ctx context.Context, customerID string, channel domain.ChannelType, subject string) (*domain.Ticket, error) {
	queueType := domain.QueueTypeAI
	if !s.aiCfg.AutoRespond(string(channel)) {
		queueType = domain.QueueTypeHuman
	}

	ticket := &domain.Ticket{
		ExternalKey: generateTicketKey(),
		CustomerID:  customerID,
		Subject:     deriveSubject(subject),
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityNormal,
		QueueType:   queueType,
		AIHandled:   true,
		Tags:        []string{},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewThreadResolutionError(err)
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("customer_id", customerID),
		zap.String("channel", string(channel)))
	return ticket, nil
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func deriveSubject(content string) string {
	subject := strings.TrimSpace(content)
	if idx := strings.IndexAny(subject, "\r\n"); idx >= 0 {
		subject = subject[:idx]
	}
	if len(subject) > maxSubjectLength {
		cut := maxSubjectLength - 3
		for cut > 0 && !utf8.RuneStart(subject[cut]) {
			cut--
		}
		subject = subject[:cut] + "..."
	}
	if subject == "" {
		subject = "New conversation"
	}
	return subject
}
