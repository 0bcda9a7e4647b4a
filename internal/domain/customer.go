package domain

import "time"

// Customer is the durable identity record behind every conversation.
// Channel-specific identifiers (slack user id, phone number under its own
// channel key, widget fingerprint) live in Metadata when no email is known.
type Customer struct {
	ID               string
	Email            *string
	PhoneNumber      *string
	Name             *string
	PreferredChannel ChannelType
	Metadata         map[string]any
	CreatedAt        time.Time
}

// DisplayName returns the best human-readable label for the customer.
func (c *Customer) DisplayName() string {
	if c.Name != nil && *c.Name != "" {
		return *c.Name
	}
	if c.Email != nil && *c.Email != "" {
		return *c.Email
	}
	return c.ID
}
