package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// CustomerRepository encapsulates customer identity persistence.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByMetadataID(ctx context.Context, key, value string) (*domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository instantiates repository.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	metadata, err := marshalMetadata(customer.Metadata)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO customers (email, phone_number, name, preferred_channel, metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		customer.Email,
		customer.PhoneNumber,
		customer.Name,
		customer.PreferredChannel,
		metadata,
	).Scan(&customer.ID, &customer.CreatedAt)
}

func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	metadata, err := marshalMetadata(customer.Metadata)
	if err != nil {
		return err
	}
	const query = `
        UPDATE customers SET email=$1, phone_number=$2, name=$3, preferred_channel=$4, metadata=$5
        WHERE id=$6`
	_, err = r.pool.Exec(ctx, query,
		customer.Email,
		customer.PhoneNumber,
		customer.Name,
		customer.PreferredChannel,
		metadata,
		customer.ID,
	)
	return err
}

func (r *customerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	return err
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `WHERE id=$1`, id)
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	return r.fetchSingle(ctx, `WHERE email=$1`, email)
}

// GetByMetadataID looks up a customer by a channel-scoped identity stored in
// metadata, e.g. key "slack_id". Uses JSONB containment so the query can use
// the GIN index on metadata.
func (r *customerRepository) GetByMetadataID(ctx context.Context, key, value string) (*domain.Customer, error) {
	probe, err := json.Marshal(map[string]string{key: value})
	if err != nil {
		return nil, err
	}
	return r.fetchSingle(ctx, `WHERE metadata @> $1`, probe)
}

func (r *customerRepository) fetchSingle(ctx context.Context, where string, arg any) (*domain.Customer, error) {
	query := fmt.Sprintf(`
        SELECT id, email, phone_number, name, preferred_channel, metadata, created_at
        FROM customers %s LIMIT 1`, where)

	var customer domain.Customer
	var metadata []byte
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&customer.ID,
		&customer.Email,
		&customer.PhoneNumber,
		&customer.Name,
		&customer.PreferredChannel,
		&metadata,
		&customer.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metadata, &customer.Metadata); err != nil {
		return nil, err
	}
	return &customer, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return json.Marshal(metadata)
}

func unmarshalMetadata(raw []byte, target *map[string]any) error {
	if len(raw) == 0 {
		*target = map[string]any{}
		return nil
	}
	return json.Unmarshal(raw, target)
}
