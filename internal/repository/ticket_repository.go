package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListOpenByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error)
	TouchUpdatedAt(ctx context.Context, id string) error
	ReassignCustomer(ctx context.Context, fromCustomerID, toCustomerID string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, customer_id, subject, status, priority, queue_type,
               ai_handled, ai_confidence, assigned_agent_id, tags, follow_up_at, auto_close_at,
               created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, customer_id, subject, status, priority, queue_type,
            ai_handled, ai_confidence, assigned_agent_id, tags, follow_up_at, auto_close_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.CustomerID,
		ticket.Subject,
		ticket.Status,
		ticket.Priority,
		ticket.QueueType,
		ticket.AIHandled,
		ticket.AIConfidence,
		ticket.AssignedAgentID,
		ticket.Tags,
		ticket.FollowUpAt,
		ticket.AutoCloseAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET subject=$1, status=$2, priority=$3, queue_type=$4, ai_handled=$5,
            ai_confidence=$6, assigned_agent_id=$7, tags=$8, follow_up_at=$9, auto_close_at=$10,
            updated_at=NOW()
        WHERE id=$11`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Subject,
		ticket.Status,
		ticket.Priority,
		ticket.QueueType,
		ticket.AIHandled,
		ticket.AIConfidence,
		ticket.AssignedAgentID,
		ticket.Tags,
		ticket.FollowUpAt,
		ticket.AutoCloseAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(ticketFields(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListOpenByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + `
        FROM tickets WHERE customer_id=$1 AND status NOT IN ('resolved')
        ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// TouchUpdatedAt bumps the activity timestamp after a message append.
func (r *ticketRepository) TouchUpdatedAt(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, id)
	return err
}

// ReassignCustomer re-points every ticket of one customer to another;
// used by identity merge.
func (r *ticketRepository) ReassignCustomer(ctx context.Context, fromCustomerID, toCustomerID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tickets SET customer_id=$1, updated_at=NOW() WHERE customer_id=$2`,
		toCustomerID, fromCustomerID)
	return err
}

func ticketFields(t *domain.Ticket) []any {
	return []any{
		&t.ID,
		&t.ExternalKey,
		&t.CustomerID,
		&t.Subject,
		&t.Status,
		&t.Priority,
		&t.QueueType,
		&t.AIHandled,
		&t.AIConfidence,
		&t.AssignedAgentID,
		&t.Tags,
		&t.FollowUpAt,
		&t.AutoCloseAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	}
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(ticketFields(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
