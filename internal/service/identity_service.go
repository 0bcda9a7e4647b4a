package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/repository"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IdentityService finds or creates the durable customer record behind a
// channel identifier, and merges duplicate identities.
type IdentityService struct {
	customers repository.CustomerRepository
	tickets   repository.TicketRepository
	logger    *zap.Logger
}

// IdentityDependencies bundles repositories for the identity service.
type IdentityDependencies struct {
	CustomerRepo repository.CustomerRepository
	TicketRepo   repository.TicketRepository
	Logger       *zap.Logger
}

// NewIdentityService constructs the service.
func NewIdentityService(deps IdentityDependencies) *IdentityService {
	return &IdentityService{
		customers: deps.CustomerRepo,
		tickets:   deps.TicketRepo,
		logger:    deps.Logger,
	}
}

// Resolve returns the customer for the given channel identifier, creating
// one on first contact. Persistence failures are fatal for the ingest
// attempt; the orchestrator must not proceed without a resolved customer.
func (s *IdentityService) Resolve(ctx context.Context, identifier string, channel domain.ChannelType, name string) (*domain.Customer, bool, error) {
	identifier = strings.TrimSpace(identifier)
	name = strings.TrimSpace(name)

	if emailPattern.MatchString(identifier) {
		return s.resolveByEmail(ctx, strings.ToLower(identifier), channel, name)
	}
	return s.resolveByChannelID(ctx, identifier, channel, name)
}

func (s *IdentityService) resolveByEmail(ctx context.Context, email string, channel domain.ChannelType, name string) (*domain.Customer, bool, error) {
	customer, err := s.customers.GetByEmail(ctx, email)
	if err == nil {
		if name != "" && (customer.Name == nil || *customer.Name == "") {
			customer.Name = &name
			if err := s.customers.Update(ctx, customer); err != nil {
				return nil, false, apperrors.NewIdentityResolutionError(err)
			}
		}
		return customer, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.NewIdentityResolutionError(err)
	}

	customer = &domain.Customer{
		Email:            &email,
		PreferredChannel: domain.ChannelEmail,
		Metadata:         map[string]any{},
	}
	if name != "" {
		customer.Name = &name
	}
	if channel != domain.ChannelEmail {
		customer.PreferredChannel = channel
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, false, apperrors.NewIdentityResolutionError(err)
	}
	s.logger.Info("customer created",
		zap.String("customer_id", customer.ID),
		zap.String("channel", string(channel)))
	return customer, true, nil
}

func (s *IdentityService) resolveByChannelID(ctx context.Context, identifier string, channel domain.ChannelType, name string) (*domain.Customer, bool, error) {
	key := channel.MetadataIDKey()

	customer, err := s.customers.GetByMetadataID(ctx, key, identifier)
	if err == nil {
		if name != "" && (customer.Name == nil || *customer.Name == "") {
			customer.Name = &name
			if err := s.customers.Update(ctx, customer); err != nil {
				return nil, false, apperrors.NewIdentityResolutionError(err)
			}
		}
		return customer, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.NewIdentityResolutionError(err)
	}

	displayName := name
	if displayName == "" {
		displayName = identifier
	}
	customer = &domain.Customer{
		Name:             &displayName,
		PreferredChannel: channel,
		Metadata:         map[string]any{key: identifier},
	}
	if channel == domain.ChannelSMS {
		phone := identifier
		customer.PhoneNumber = &phone
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, false, apperrors.NewIdentityResolutionError(err)
	}
	s.logger.Info("customer created",
		zap.String("customer_id", customer.ID),
		zap.String("channel", string(channel)))
	return customer, true, nil
}

// MergeCustomers folds secondary into primary: tickets are re-pointed,
// metadata merges with primary keys winning, missing contact fields are
// backfilled, and secondary is deleted. This is an operator action, not an
// automatic one.
func (s *IdentityService) MergeCustomers(ctx context.Context, primaryID, secondaryID string) (*domain.Customer, error) {
	if primaryID == secondaryID {
		return nil, apperrors.NewValidationError("cannot merge a customer into itself", nil)
	}

	primary, err := s.customers.GetByID(ctx, primaryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": primaryID})
		}
		return nil, apperrors.MapError(err)
	}
	secondary, err := s.customers.GetByID(ctx, secondaryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": secondaryID})
		}
		return nil, apperrors.MapError(err)
	}

	if err := s.tickets.ReassignCustomer(ctx, secondary.ID, primary.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	if primary.Metadata == nil {
		primary.Metadata = map[string]any{}
	}
	for key, value := range secondary.Metadata {
		if _, exists := primary.Metadata[key]; !exists {
			primary.Metadata[key] = value
		}
	}
	if primary.Email == nil && secondary.Email != nil {
		primary.Email = secondary.Email
	}
	if primary.PhoneNumber == nil && secondary.PhoneNumber != nil {
		primary.PhoneNumber = secondary.PhoneNumber
	}
	if (primary.Name == nil || *primary.Name == "") && secondary.Name != nil {
		primary.Name = secondary.Name
	}

	if err := s.customers.Update(ctx, primary); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.customers.Delete(ctx, secondary.ID); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("customers merged",
		zap.String("primary_id", primary.ID),
		zap.String("secondary_id", secondary.ID))
	return primary, nil
}
