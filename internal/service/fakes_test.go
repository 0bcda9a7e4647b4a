package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relaydesk/relaydesk/internal/ai"
	"github.com/relaydesk/relaydesk/internal/domain"
)

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*domain.Customer
	failNext  error
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (r *fakeCustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	customer.ID = uuid.NewString()
	customer.CreatedAt = time.Now()
	stored := *customer
	r.customers[customer.ID] = &stored
	return nil
}

func (r *fakeCustomerRepo) Update(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[customer.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *customer
	r.customers[customer.ID] = &stored
	return nil
}

func (r *fakeCustomerRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.customers, id)
	return nil
}

func (r *fakeCustomerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer, ok := r.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *customer
	return &copied, nil
}

func (r *fakeCustomerRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, customer := range r.customers {
		if customer.Email != nil && *customer.Email == email {
			copied := *customer
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeCustomerRepo) GetByMetadataID(ctx context.Context, key, value string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, customer := range r.customers {
		if customer.Metadata != nil && customer.Metadata[key] == value {
			copied := *customer
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	updates int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.updates++
	stored := *ticket
	stored.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListOpenByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.CustomerID == customerID && !ticket.Status.IsTerminal() {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) TouchUpdatedAt(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTicketRepo) ReassignCustomer(ctx context.Context, fromCustomerID, toCustomerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.CustomerID == fromCustomerID {
			ticket.CustomerID = toCustomerID
		}
	}
	return nil
}

func (r *fakeTicketRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*domain.Message
	lookups  int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ExternalID != nil {
		for _, existing := range r.messages {
			if existing.Source == msg.Source && existing.ExternalID != nil && *existing.ExternalID == *msg.ExternalID {
				return &pgconn.PgError{Code: "23505", ConstraintName: "messages_source_external_id_key"}
			}
		}
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = time.Now()
	stored := *msg
	r.messages = append(r.messages, &stored)
	return nil
}

func (r *fakeMessageRepo) GetByExternalID(ctx context.Context, source domain.ChannelType, externalID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	for _, msg := range r.messages {
		if msg.Source == source && msg.ExternalID != nil && *msg.ExternalID == externalID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) ListByTicket(ctx context.Context, ticketID string, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].TicketID == ticketID {
			result = append(result, *r.messages[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *fakeMessageRepo) FindTicketByThreadRef(ctx context.Context, source domain.ChannelType, threadRef string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.Source == source && msg.ThreadRef() == threadRef {
			return msg.TicketID, nil
		}
	}
	return "", pgx.ErrNoRows
}

func (r *fakeMessageRepo) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.messages {
		if msg.ID == id {
			msg.DeliveryStatus = status
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeReserver struct {
	mu    sync.Mutex
	held  map[string]bool
	err   error
	calls int
}

func newFakeReserver() *fakeReserver {
	return &fakeReserver{held: make(map[string]bool)}
}

func (f *fakeReserver) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

type fakeCompleter struct {
	result   ai.CompletionResult
	err      error
	priority domain.TicketPriority
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResult, error) {
	f.calls++
	if f.err != nil {
		return ai.CompletionResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeCompleter) ClassifyPriority(ctx context.Context, text string) (domain.TicketPriority, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.priority == "" {
		return domain.TicketPriorityNormal, nil
	}
	return f.priority, nil
}

type fakeSearcher struct {
	results []ai.KnowledgeResult
}

func (f *fakeSearcher) Search(ctx context.Context, query string) []ai.KnowledgeResult {
	return f.results
}

type syncTasks struct{}

func (syncTasks) Submit(name string, fn func(ctx context.Context) error) bool {
	_ = fn(context.Background())
	return true
}
