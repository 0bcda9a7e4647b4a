package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/repository"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

const dedupReservationTTL = 24 * time.Hour

// DedupReserver claims idempotency keys ahead of the authoritative database
// lookup. *persistence.Redis satisfies it.
type DedupReserver interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MessageService is the sole writer of message rows. It dedupes on
// (source, external_id), touches the ticket activity timestamp, and emits
// message_received events for customer-authored messages.
type MessageService struct {
	messages   repository.MessageRepository
	tickets    repository.TicketRepository
	reserver   DedupReserver
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	MessageRepo repository.MessageRepository
	TicketRepo  repository.TicketRepository
	Redis       DedupReserver
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	return &MessageService{
		messages:   deps.MessageRepo,
		tickets:    deps.TicketRepo,
		reserver:   deps.Redis,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// FindExisting returns the message previously created for the same provider
// event, or nil when none exists. The orchestrator calls this before thread
// resolution so a redelivered webhook cannot open a second ticket.
func (s *MessageService) FindExisting(ctx context.Context, source domain.ChannelType, externalID string) (*domain.Message, error) {
	if externalID == "" {
		return nil, nil
	}
	msg, err := s.messages.GetByExternalID(ctx, source, externalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return msg, nil
}

// Append writes a message into the ticket timeline. Redelivery of a known
// (source, external_id) pair returns the existing message unchanged. The
// ticket timestamp is only touched after a successful insert.
//
// Only customer-authored messages fan out as message_received events:
// replies appended by the AI gate or by workflow actions must not re-enter
// the automation that produced them.
func (s *MessageService) Append(ctx context.Context, ticket *domain.Ticket, customer *domain.Customer, sender domain.SenderType, content string, source domain.ChannelType, externalID string, metadata map[string]any) (*domain.Message, bool, error) {
	if externalID != "" && !s.claim(ctx, source, externalID) {
		// Another delivery holds (or recently held) the reservation, so
		// this is a probable duplicate. The database lookup decides.
		existing, err := s.FindExisting(ctx, source, externalID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.logger.Debug("duplicate delivery ignored",
				zap.String("source", string(source)),
				zap.String("external_id", externalID))
			return existing, true, nil
		}
	}

	msg := &domain.Message{
		TicketID:       ticket.ID,
		SenderType:     sender,
		Content:        strings.TrimSpace(content),
		Source:         source,
		DeliveryStatus: domain.DeliveryPending,
		Metadata:       metadata,
	}
	if externalID != "" {
		msg.ExternalID = &externalID
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		// A claimed reservation skips the pre-insert lookup, so a
		// concurrent or post-eviction redelivery surfaces here as a
		// unique violation on (source, external_id).
		if externalID != "" && isUniqueViolation(err) {
			existing, lookupErr := s.FindExisting(ctx, source, externalID)
			if lookupErr == nil && existing != nil {
				s.logger.Debug("duplicate delivery ignored",
					zap.String("source", string(source)),
					zap.String("external_id", externalID))
				return existing, true, nil
			}
		}
		return nil, false, apperrors.NewMessageAppendError(err)
	}
	if err := s.tickets.TouchUpdatedAt(ctx, ticket.ID); err != nil {
		s.logger.Warn("failed to touch ticket activity",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	if sender == domain.SenderCustomer {
		publishEvent(ctx, s.dispatcher, events.MessageReceived(ticket, customer, msg))
	}
	return msg, false, nil
}

// MarkDelivery records a channel delivery-status callback, correlated by the
// provider message id. An unknown id is a no-op; providers retry callbacks
// past the message retention window.
func (s *MessageService) MarkDelivery(ctx context.Context, source domain.ChannelType, externalID string, status domain.DeliveryStatus) error {
	msg, err := s.FindExisting(ctx, source, externalID)
	if err != nil {
		return err
	}
	if msg == nil {
		s.logger.Debug("delivery callback for unknown message",
			zap.String("source", string(source)),
			zap.String("external_id", externalID))
		return nil
	}
	return apperrors.MapError(s.messages.UpdateDeliveryStatus(ctx, msg.ID, status))
}

// claim reserves the dedup key. A successful claim means this delivery is
// the first sighting, so Append may skip the pre-insert lookup; a failed or
// unavailable claim falls back to the authoritative database check.
func (s *MessageService) claim(ctx context.Context, source domain.ChannelType, externalID string) bool {
	if s.reserver == nil {
		return false
	}
	key := fmt.Sprintf("ingest:dedup:%s:%s", source, externalID)
	claimed, err := s.reserver.Reserve(ctx, key, dedupReservationTTL)
	if err != nil {
		s.logger.Debug("dedup reservation unavailable", zap.Error(err))
		return false
	}
	return claimed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
