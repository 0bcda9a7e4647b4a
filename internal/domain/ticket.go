package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "open"
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusResolved  TicketStatus = "resolved"
	TicketStatusEscalated TicketStatus = "escalated"
)

// IsTerminal reports whether a ticket in this status no longer accepts
// thread continuation.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved
}

// TicketPriority enumerates urgency, ordered urgent > high > normal > low.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// PriorityRank maps priorities onto an ordered scale for relational
// comparisons in workflow conditions.
var PriorityRank = map[TicketPriority]int{
	TicketPriorityLow:    1,
	TicketPriorityNormal: 2,
	TicketPriorityHigh:   3,
	TicketPriorityUrgent: 4,
}

// IsValidPriority reports whether the value is a known priority.
func IsValidPriority(p TicketPriority) bool {
	_, ok := PriorityRank[p]
	return ok
}

// QueueType routes a ticket to AI handling or a human agent.
type QueueType string

const (
	QueueTypeAI    QueueType = "ai"
	QueueTypeHuman QueueType = "human"
)

// Ticket is the aggregate for a single support conversation thread.
type Ticket struct {
	ID              string
	ExternalKey     string
	CustomerID      string
	Subject         string
	Status          TicketStatus
	Priority        TicketPriority
	QueueType       QueueType
	AIHandled       bool
	AIConfidence    *float64
	AssignedAgentID *string
	Tags            []string
	FollowUpAt      *time.Time
	AutoCloseAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasTag reports whether the ticket already carries the given tag.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
