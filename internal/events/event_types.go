package events

import (
	"time"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// Event is a ticket-lifecycle occurrence published by services and consumed
// by the workflow engine. Ticket is a snapshot taken at publish time; Data
// carries event-specific values (status transitions, message ids) that
// workflow conditions can reference alongside ticket fields.
type Event struct {
	ID        string              `json:"id"`
	Type      domain.TriggerEvent `json:"type"`
	Ticket    *domain.Ticket      `json:"ticket"`
	Customer  *domain.Customer    `json:"customer,omitempty"`
	Data      map[string]any      `json:"data,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// TicketCreated builds a ticket_created event.
func TicketCreated(ticket *domain.Ticket, customer *domain.Customer, channel domain.ChannelType) Event {
	return Event{
		Type:     domain.TriggerTicketCreated,
		Ticket:   ticket,
		Customer: customer,
		Data: map[string]any{
			"channel": string(channel),
		},
	}
}

// StatusChanged builds a status_changed event carrying the transition.
func StatusChanged(ticket *domain.Ticket, from, to domain.TicketStatus) Event {
	return Event{
		Type:   domain.TriggerStatusChanged,
		Ticket: ticket,
		Data: map[string]any{
			"old_status": string(from),
			"new_status": string(to),
		},
	}
}

// PriorityChanged builds a priority_changed event carrying the transition.
func PriorityChanged(ticket *domain.Ticket, from, to domain.TicketPriority) Event {
	return Event{
		Type:   domain.TriggerPriorityChanged,
		Ticket: ticket,
		Data: map[string]any{
			"old_priority": string(from),
			"new_priority": string(to),
		},
	}
}

// TicketAssigned builds a ticket_assigned event.
func TicketAssigned(ticket *domain.Ticket, agentID string) Event {
	return Event{
		Type:   domain.TriggerTicketAssigned,
		Ticket: ticket,
		Data: map[string]any{
			"agent_id": agentID,
		},
	}
}

// SLABreach builds an sla_breach event; kind names the breached clock
// (first_response, resolution).
func SLABreach(ticket *domain.Ticket, kind string) Event {
	return Event{
		Type:   domain.TriggerSLABreach,
		Ticket: ticket,
		Data: map[string]any{
			"breach_kind": kind,
		},
	}
}

// MessageReceived builds a message_received event carrying the new message.
func MessageReceived(ticket *domain.Ticket, customer *domain.Customer, msg *domain.Message) Event {
	return Event{
		Type:     domain.TriggerMessageReceived,
		Ticket:   ticket,
		Customer: customer,
		Data: map[string]any{
			"message_id":  msg.ID,
			"sender_type": string(msg.SenderType),
			"source":      string(msg.Source),
			"content":     msg.Content,
		},
	}
}
