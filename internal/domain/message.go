package domain

import "time"

// SenderType indicates who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderAI       SenderType = "ai"
)

// DeliveryStatus tracks outbound delivery progress for a message.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// Message is one unit of conversation in a ticket timeline. ExternalID is
// the provider-assigned message id; together with Source it dedupes webhook
// redeliveries and correlates delivery-status callbacks.
type Message struct {
	ID             string
	TicketID       string
	SenderType     SenderType
	Content        string
	Source         ChannelType
	ExternalID     *string
	DeliveryStatus DeliveryStatus
	Metadata       map[string]any
	CreatedAt      time.Time
}

// ThreadRef returns the channel thread reference carried in metadata
// (email In-Reply-To, slack thread_ts), if any.
func (m *Message) ThreadRef() string {
	if m.Metadata == nil {
		return ""
	}
	if ref, ok := m.Metadata["thread_ref"].(string); ok {
		return ref
	}
	return ""
}
