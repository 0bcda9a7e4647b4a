package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// Notifier delivers agent notifications and outbound customer messages.
// The vendor transports (email/SMS/Slack senders) are external
// collaborators; this default implementation records intent and logs.
type Notifier interface {
	NotifyAgent(ctx context.Context, recipient, subject, body string) error
	SendOutbound(ctx context.Context, channel domain.ChannelType, customer *domain.Customer, content string) error
}

// NotificationService is the default Notifier backed by the external
// sender collaborators.
type NotificationService struct {
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger) *NotificationService {
	return &NotificationService{logger: logger}
}

// NotifyAgent delivers an internal notification to an agent.
func (n *NotificationService) NotifyAgent(ctx context.Context, recipient, subject, body string) error {
	n.logger.Info("agent notification",
		zap.String("recipient", recipient),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

// SendOutbound relays a message to the customer over the given channel.
func (n *NotificationService) SendOutbound(ctx context.Context, channel domain.ChannelType, customer *domain.Customer, content string) error {
	target := ""
	if customer != nil {
		target = customer.DisplayName()
	}
	n.logger.Info("outbound message",
		zap.String("channel", string(channel)),
		zap.String("customer", target),
		zap.Int("content_length", len(content)))
	return nil
}
