package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// MessageRepository manages ticket timeline messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByExternalID(ctx context.Context, source domain.ChannelType, externalID string) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Message, error)
	FindTicketByThreadRef(ctx context.Context, source domain.ChannelType, threadRef string) (string, error)
	UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

const messageColumns = `id, ticket_id, sender_type, content, source, external_id, delivery_status, metadata, created_at`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO messages (ticket_id, sender_type, content, source, external_id, delivery_status, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.TicketID,
		msg.SenderType,
		msg.Content,
		msg.Source,
		msg.ExternalID,
		msg.DeliveryStatus,
		metadata,
	).Scan(&msg.ID, &msg.CreatedAt)
}

// GetByExternalID finds the message previously ingested for the same
// provider event; this is the authoritative idempotency check.
func (r *messageRepository) GetByExternalID(ctx context.Context, source domain.ChannelType, externalID string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages WHERE source=$1 AND external_id=$2 LIMIT 1`

	var msg domain.Message
	var metadata []byte
	if err := r.pool.QueryRow(ctx, query, source, externalID).Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.SenderType,
		&msg.Content,
		&msg.Source,
		&msg.ExternalID,
		&msg.DeliveryStatus,
		&metadata,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadata, &msg.Metadata); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByTicket returns the most recent messages first, bounded by limit.
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + messageColumns + `
        FROM messages WHERE ticket_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, ticketID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		var metadata []byte
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.SenderType,
			&msg.Content,
			&msg.Source,
			&msg.ExternalID,
			&msg.DeliveryStatus,
			&metadata,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := unmarshalMetadata(metadata, &msg.Metadata); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

// FindTicketByThreadRef locates the ticket whose timeline already carries
// the channel thread reference (email In-Reply-To, slack thread_ts).
func (r *messageRepository) FindTicketByThreadRef(ctx context.Context, source domain.ChannelType, threadRef string) (string, error) {
	const query = `
        SELECT ticket_id FROM messages
        WHERE source=$1 AND metadata->>'thread_ref'=$2
        ORDER BY created_at DESC LIMIT 1`
	var ticketID string
	if err := r.pool.QueryRow(ctx, query, source, threadRef).Scan(&ticketID); err != nil {
		return "", err
	}
	return ticketID, nil
}

// UpdateDeliveryStatus records delivery progress reported by channel
// status callbacks.
func (r *messageRepository) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE messages SET delivery_status=$1 WHERE id=$2`, status, id)
	return err
}
